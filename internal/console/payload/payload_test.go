package payload_test

import (
	"testing"

	"github.com/cloudcrafter/console/internal/console/oracle"
	"github.com/cloudcrafter/console/internal/console/payload"
	"github.com/cloudcrafter/console/internal/console/session"
)

func turn(messages []string, uiPayload string) *oracle.TurnResult {
	attrs := map[string]string{}
	if uiPayload != "" {
		attrs[session.AttrUIPayload] = uiPayload
	}
	return &oracle.TurnResult{Messages: messages, SessionAttributes: attrs}
}

func TestInterpretPlanStarted(t *testing.T) {
	in := payload.Interpret(turn(
		[]string{"Generating your plan now."},
		`{"type":"PLAN_STARTED","job_id":"j1","ui":{"disableInput":true}}`,
	))
	if in.Kind != payload.KindPlanStarted {
		t.Fatalf("kind: got %q", in.Kind)
	}
	if in.JobID != "j1" {
		t.Errorf("job id: got %q", in.JobID)
	}
	if !in.DisableInput {
		t.Error("expected DisableInput")
	}
	if in.Text != "Generating your plan now." {
		t.Errorf("text: got %q", in.Text)
	}
}

func TestInterpretApplyStarted(t *testing.T) {
	in := payload.Interpret(turn(nil, `{"type":"APPLY_STARTED","job_id":"a9","message":"Deploying."}`))
	if in.Kind != payload.KindApplyStarted || in.JobID != "a9" {
		t.Fatalf("got kind=%q job=%q", in.Kind, in.JobID)
	}
	if in.Text != "Deploying." {
		t.Errorf("payload message should win: got %q", in.Text)
	}
}

func TestInterpretPlanDisplay(t *testing.T) {
	in := payload.Interpret(turn(nil, `{"type":"PLAN_DISPLAY","plan":{"resource_changes":[]},"message":"Here is the plan."}`))
	if in.Kind != payload.KindPlanDisplay {
		t.Fatalf("kind: got %q", in.Kind)
	}
	if string(in.Plan) != `{"resource_changes":[]}` {
		t.Errorf("plan: got %s", in.Plan)
	}
}

func TestInterpretJobTokenFallback(t *testing.T) {
	in := payload.Interpret(turn([]string{"Working on it.", "Job ID: job-42"}, ""))
	if in.Kind != payload.KindJobToken {
		t.Fatalf("kind: got %q", in.Kind)
	}
	if in.JobID != "job-42" {
		t.Errorf("job id: got %q", in.JobID)
	}
}

func TestInterpretTypedPayloadBeatsTokenScan(t *testing.T) {
	// Both channels present: the structured discriminator wins.
	in := payload.Interpret(turn(
		[]string{"Job ID: stale-1"},
		`{"type":"PLAN_STARTED","job_id":"fresh-2"}`,
	))
	if in.Kind != payload.KindPlanStarted || in.JobID != "fresh-2" {
		t.Fatalf("got kind=%q job=%q", in.Kind, in.JobID)
	}
}

func TestInterpretMalformedPayloadEqualsAbsent(t *testing.T) {
	messages := []string{"hello there"}
	malformed := payload.Interpret(turn(messages, `{"type":"PLAN_STARTED",`))
	absent := payload.Interpret(turn(messages, ""))

	if malformed.Kind != absent.Kind || malformed.Text != absent.Text || malformed.JobID != absent.JobID {
		t.Fatalf("malformed %+v != absent %+v", malformed, absent)
	}
	if malformed.Kind != payload.KindMessage || malformed.Text != "hello there" {
		t.Errorf("expected plain message, got %+v", malformed)
	}
}

func TestInterpretButtonsAndCost(t *testing.T) {
	in := payload.Interpret(turn(nil, `{
		"message":"Pick an instance type",
		"buttons":[{"text":"Small","value":"t3.micro"},{"text":"Large","value":"m5.large"}],
		"cost":{"monthly":12.5}
	}`))
	if in.Kind != payload.KindMessage {
		t.Fatalf("kind: got %q", in.Kind)
	}
	if len(in.Buttons) != 2 || in.Buttons[0].Value != "t3.micro" || in.Buttons[1].Label != "Large" {
		t.Errorf("buttons: got %v", in.Buttons)
	}
	if string(in.Cost) != `{"monthly":12.5}` {
		t.Errorf("cost: got %s", in.Cost)
	}
}

func TestInterpretTextFallbackChain(t *testing.T) {
	// payload.message wins over joined raw messages.
	in := payload.Interpret(turn([]string{"raw"}, `{"message":"from payload"}`))
	if in.Text != "from payload" {
		t.Errorf("payload message should win: got %q", in.Text)
	}
	// joined raw messages when no payload message.
	in = payload.Interpret(turn([]string{"first", "second"}, ""))
	if in.Text != "first\nsecond" {
		t.Errorf("joined: got %q", in.Text)
	}
	// static fallback when nothing at all.
	in = payload.Interpret(turn(nil, ""))
	if in.Text != payload.FallbackText {
		t.Errorf("fallback: got %q", in.Text)
	}
}

func TestInterpretNaming(t *testing.T) {
	tr := turn([]string{"Welcome!"}, "")
	tr.IntentName = "CreateInfraIntent"
	tr.SlotToElicit = "region"
	in := payload.Interpret(tr)
	if in.ConversationName != "Create Infrastructure" {
		t.Errorf("intent title: got %q", in.ConversationName)
	}
	if in.Topic != "Collecting region" {
		t.Errorf("slot topic: got %q", in.Topic)
	}

	// ui.conversationName overrides the intent title; unknown slots get the
	// generic topic.
	tr = turn(nil, `{"ui":{"conversationName":"My Stack"}}`)
	tr.IntentName = "CreateInfraIntent"
	tr.SlotToElicit = "exotic_slot"
	in = payload.Interpret(tr)
	if in.ConversationName != "My Stack" {
		t.Errorf("ui name should win: got %q", in.ConversationName)
	}
	if in.Topic != "Collecting details" {
		t.Errorf("generic topic: got %q", in.Topic)
	}
}

// Package payload interprets the structured UI channel embedded in oracle
// turn results.
//
// The oracle stores a JSON-encoded instruction object under the ui_payload
// session attribute.  The channel is optional and untrusted: a missing or
// malformed payload is never an error, it simply degrades interpretation to
// the text-scanning fallback and finally to a plain message.
package payload

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/cloudcrafter/console/internal/console/oracle"
	"github.com/cloudcrafter/console/internal/console/session"
)

// Payload type discriminators recognized on the structured channel.
const (
	TypePlanDisplay  = "PLAN_DISPLAY"
	TypePlanStarted  = "PLAN_STARTED"
	TypeApplyStarted = "APPLY_STARTED"
)

// FallbackText is shown when a turn produced neither payload text nor raw
// messages.
const FallbackText = "I'm sorry, I didn't catch that."

// jobTokenPattern is the legacy free-text contract for job hand-off: some
// oracle intents embed the job identifier directly in the bot text instead
// of using a typed payload.  Kept as a documented fallback; the structured
// PLAN_STARTED/APPLY_STARTED discriminators are preferred.
var jobTokenPattern = regexp.MustCompile(`Job ID:\s*(\S+)`)

// slotTopics maps slot-elicitation names to the topic label shown above the
// bot message while that slot is being collected.
var slotTopics = map[string]string{
	"instance_type":     "Collecting instance type",
	"region":            "Collecting region",
	"environment":       "Collecting environment",
	"instance_id":       "Collecting instance ID",
	"new_instance_type": "Collecting new instance type",
}

// intentTitles maps oracle intent names to server-driven conversation titles.
var intentTitles = map[string]string{
	"CreateInfraIntent":    "Create Infrastructure",
	"ModifyInfraIntent":    "Modify Infrastructure",
	"TerminateInfraIntent": "Terminate Infrastructure",
	"HelloIntent":          "Welcome",
	"FallbackIntent":       "General Assistance",
}

// Button is one clickable option attached to a bot message.  Clicking sends
// Value back through the normal utterance path.
type Button struct {
	Label string `json:"text"`
	Value string `json:"value"`
}

// uiDirectives is the nested "ui" object of the payload channel.
type uiDirectives struct {
	DisableInput     bool   `json:"disableInput"`
	ConversationName string `json:"conversationName"`
	Topic            string `json:"topic"`
}

// envelope is the wire shape of the ui_payload channel.
type envelope struct {
	Type    string          `json:"type"`
	Message string          `json:"message"`
	Buttons []Button        `json:"buttons"`
	Cost    json.RawMessage `json:"cost"`
	JobID   string          `json:"job_id"`
	Plan    json.RawMessage `json:"plan"`
	UI      *uiDirectives   `json:"ui"`
}

// Kind discriminates the interpreted UI intent.
type Kind string

const (
	// KindMessage is a plain bot reply (optionally with buttons or a cost
	// estimate attached).
	KindMessage Kind = "message"
	// KindPlanStarted means the backend began generating a Terraform plan.
	KindPlanStarted Kind = "plan-started"
	// KindApplyStarted means the backend began applying infrastructure.
	KindApplyStarted Kind = "apply-started"
	// KindJobToken means a job id was scraped from free text; the caller
	// decides whether it is a plan or an apply from conversation phase.
	KindJobToken Kind = "job-token"
	// KindPlanDisplay carries an inline structured plan for display.
	KindPlanDisplay Kind = "plan-display"
)

// Intent is the typed interpretation of one turn result.  Kind-specific
// fields (JobID, Plan) are populated only for the matching kinds; the
// display fields (Text, Buttons, Cost, directives) are populated whenever
// the turn carried them, regardless of kind.
type Intent struct {
	Kind Kind

	// Text is the best available bot text for this turn.
	Text string

	Buttons []Button
	Cost    json.RawMessage

	// JobID is set for KindPlanStarted, KindApplyStarted and KindJobToken.
	JobID string

	// Plan is set for KindPlanDisplay.
	Plan json.RawMessage

	// DisableInput locks the command input until the next turn re-enables it.
	DisableInput bool

	// ConversationName overrides the client-derived label when non-empty.
	ConversationName string

	// Topic is the slot-collection label attached to the bot message.
	Topic string
}

// Interpret parses the turn result's payload channel into a typed Intent.
//
// Resolution order: typed payload discriminator, then the "Job ID:" text
// fallback, then a plain message.  A malformed payload never raises — it is
// treated exactly like an absent one.
func Interpret(tr *oracle.TurnResult) Intent {
	joined := strings.Join(tr.Messages, "\n")

	var env envelope
	if raw := tr.SessionAttributes[session.AttrUIPayload]; raw != "" {
		// Parse failures degrade silently; env stays zero.
		_ = json.Unmarshal([]byte(raw), &env)
	}

	in := Intent{
		Kind:    KindMessage,
		Buttons: env.Buttons,
		Cost:    env.Cost,
	}

	in.Text = env.Message
	if in.Text == "" {
		in.Text = joined
	}
	if in.Text == "" {
		in.Text = FallbackText
	}

	if env.UI != nil {
		in.DisableInput = env.UI.DisableInput
		in.ConversationName = env.UI.ConversationName
		in.Topic = env.UI.Topic
	}
	if in.ConversationName == "" {
		in.ConversationName = intentTitles[tr.IntentName]
	}
	if in.Topic == "" && tr.SlotToElicit != "" {
		topic, ok := slotTopics[tr.SlotToElicit]
		if !ok {
			topic = "Collecting details"
		}
		in.Topic = topic
	}

	switch env.Type {
	case TypePlanDisplay:
		in.Kind = KindPlanDisplay
		in.Plan = env.Plan
		return in
	case TypePlanStarted:
		in.Kind = KindPlanStarted
		in.JobID = env.JobID
		return in
	case TypeApplyStarted:
		in.Kind = KindApplyStarted
		in.JobID = env.JobID
		return in
	}

	if m := jobTokenPattern.FindStringSubmatch(joined); m != nil {
		in.Kind = KindJobToken
		in.JobID = m[1]
		return in
	}

	return in
}

// Package convo implements the conversation orchestrator: the controller
// that runs user input through the oracle dispatcher, interprets the reply,
// drives job polling, and maintains the append-only message log consumed by
// the presentation layer.
package convo

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cloudcrafter/console/common/redact"
	"github.com/cloudcrafter/console/common/trace"
	"github.com/cloudcrafter/console/internal/console/jobs"
	"github.com/cloudcrafter/console/internal/console/observability"
	"github.com/cloudcrafter/console/internal/console/oracle"
	"github.com/cloudcrafter/console/internal/console/payload"
	"github.com/cloudcrafter/console/internal/console/session"
)

var (
	// ErrEmptyInput is returned for empty or whitespace-only input; no turn
	// is issued.
	ErrEmptyInput = errors.New("convo: empty input")

	// ErrBusy is returned when a turn is submitted while the previous one is
	// still outstanding.  Input is serialized per conversation: concurrent
	// submissions are rejected, never interleaved.
	ErrBusy = errors.New("convo: a turn is already in progress")

	// ErrUnknownMessage is returned by ConfirmMessage for an id not in the log.
	ErrUnknownMessage = errors.New("convo: unknown message")

	// ErrNotConfirmable is returned when the addressed message carries no
	// pending confirmation action.
	ErrNotConfirmable = errors.New("convo: message has no confirmation action")
)

// Role identifies the author of a log entry.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// MessageKind determines which optional fields of a Message are populated.
type MessageKind string

const (
	KindPlain       MessageKind = "plain"
	KindButtons     MessageKind = "buttons"
	KindPlanDisplay MessageKind = "plan-display"
)

// Message is one append-only log entry.  Entries are never mutated after
// creation; the confirm action is bound when the entry is built.
type Message struct {
	ID        string
	Role      Role
	Kind      MessageKind
	Text      string
	Topic     string
	Buttons   []payload.Button
	Plan      json.RawMessage
	CreatedAt time.Time

	// confirm starts the apply phase for the plan this message represents.
	// Set only on plan-display entries whose plan job succeeded.  It closes
	// over that plan's job id; the blueprint itself is read from session
	// attributes at confirm time, so confirming an old plan message after a
	// newer plan was generated deploys the newest blueprint.
	confirm func(ctx context.Context) error
}

// DefaultLabel is the conversation label before the first turn.
const DefaultLabel = "New Conversation"

// Status and canned-message strings shown by the presentation layer.
const (
	statusThinking = "CloudCrafter is thinking..."
	statusPlanning = "Terraform is planning..."
	statusApplying = "Provisioning resources..."

	apologyText = "CloudCrafter is temporarily unavailable. Please check your connection."
)

// maxLabelRunes bounds the label derived from the first input.
const maxLabelRunes = 40

// maxInlinePlanRunes bounds the raw plan text inlined into a bot message.
const maxInlinePlanRunes = 2000

// Recorder persists conversations and messages.  Persistence is best-effort:
// a failing recorder is logged and never fails a turn.
type Recorder interface {
	SaveConversation(ctx context.Context, id, label string) error
	SaveMessage(ctx context.Context, conversationID string, m *Message) error
}

// Config wires a Conversation's collaborators.  Oracle and Jobs are
// required; Recorder may be nil.
type Config struct {
	SessionID   string
	Oracle      oracle.Client
	Jobs        jobs.Client
	PollOptions jobs.Options
	Recorder    Recorder
}

// Conversation owns one independent conversation: its session, message log,
// status line, and at most one live job poll.  All methods are safe for
// concurrent use.
type Conversation struct {
	id        string
	createdAt time.Time

	sess       *session.Session
	oracle     oracle.Client
	jobsClient jobs.Client
	poller     *jobs.Poller
	recorder   Recorder

	// lifeCtx is cancelled on Close so torn-down conversations stop polling.
	lifeCtx context.Context
	cancel  context.CancelFunc

	mu          sync.Mutex
	label       string
	started     bool
	busy        bool
	pollBusy    bool
	status      string
	pollStatus  string
	inputLocked bool
	cost        json.RawMessage
	messages    []*Message

	// planPending is true while a completed plan awaits confirmation; it
	// routes ambiguous free-text job tokens to the apply phase.
	planPending bool
}

// New creates an idle conversation.
func New(cfg Config) *Conversation {
	lifeCtx, cancel := context.WithCancel(context.Background())
	c := &Conversation{
		id:         uuid.NewString(),
		createdAt:  time.Now().UTC(),
		sess:       session.New(cfg.SessionID),
		oracle:     cfg.Oracle,
		jobsClient: cfg.Jobs,
		poller:     jobs.NewPoller(cfg.Jobs, cfg.PollOptions),
		recorder:   cfg.Recorder,
		lifeCtx:    lifeCtx,
		cancel:     cancel,
		label:      DefaultLabel,
	}
	c.record(func(ctx context.Context, r Recorder) error {
		return r.SaveConversation(ctx, c.id, c.label)
	})
	return c
}

// ID returns the conversation identifier.
func (c *Conversation) ID() string { return c.id }

// Close tears the conversation down, cancelling any live job poll.
// Idempotent.
func (c *Conversation) Close() {
	c.poller.Cancel()
	c.cancel()
}

// Send runs one turn: append the user message, exchange with the oracle,
// interpret the reply, and react to job-start intents.
//
// Empty input returns ErrEmptyInput without issuing a turn.  A submission
// while a previous turn is outstanding returns ErrBusy.  An oracle outage is
// recovered locally: a single apology message is appended, the session
// attributes stay untouched, and nil is returned.
func (c *Conversation) Send(ctx context.Context, rawText string) error {
	text := strings.TrimSpace(rawText)
	if text == "" {
		return ErrEmptyInput
	}

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	c.busy = true
	if !c.started {
		c.started = true
		c.label = truncateLabel(text)
		c.saveLabelLocked()
	}
	c.appendLocked(&Message{Role: RoleUser, Kind: KindPlain, Text: text})
	c.status = statusThinking
	c.mu.Unlock()

	ctx = trace.WithTraceID(ctx, trace.GenerateID())
	log := observability.WithTrace(ctx).With("conversation_id", c.id)

	res, err := c.oracle.Recognize(ctx, oracle.TurnRequest{
		SessionID:         c.sess.ID(),
		Text:              text,
		SessionAttributes: c.sess.Current(),
	})

	c.mu.Lock()
	c.busy = false
	if err != nil {
		log.Warn("oracle exchange failed", "err", err)
		c.appendLocked(&Message{Role: RoleBot, Kind: KindPlain, Text: apologyText})
		c.restoreStatusLocked()
		c.mu.Unlock()
		return nil
	}

	c.sess.Replace(res.SessionAttributes)
	log.Debug("session attributes replaced", "attrs", redact.Attributes(res.SessionAttributes))
	in := payload.Interpret(res)

	if in.ConversationName != "" {
		c.label = in.ConversationName
		c.saveLabelLocked()
	}
	c.inputLocked = in.DisableInput
	if len(in.Cost) > 0 {
		c.cost = in.Cost
	}

	bot := &Message{
		Role:    RoleBot,
		Kind:    KindPlain,
		Text:    in.Text,
		Topic:   in.Topic,
		Buttons: in.Buttons,
	}
	if len(in.Buttons) > 0 {
		bot.Kind = KindButtons
	}
	if in.Kind == payload.KindPlanDisplay {
		bot.Kind = KindPlanDisplay
		bot.Plan = in.Plan
	}
	c.appendLocked(bot)

	var startKind jobs.Kind
	var startID string
	switch in.Kind {
	case payload.KindPlanStarted:
		startKind, startID = jobs.KindPlan, in.JobID
	case payload.KindApplyStarted:
		startKind, startID = jobs.KindApply, in.JobID
	case payload.KindJobToken:
		// The free-text token does not say which phase it belongs to; route
		// by conversation phase.
		startKind, startID = jobs.KindPlan, in.JobID
		if c.planPending {
			startKind = jobs.KindApply
		}
	}
	if startID == "" {
		c.restoreStatusLocked()
	}
	c.mu.Unlock()

	if startID != "" {
		log.Info("job started by oracle turn", "job_id", startID, "kind", string(startKind))
		c.startJob(startKind, startID)
	}
	return nil
}

// ConfirmMessage invokes the confirm action bound to the given plan-display
// message, starting the apply phase for that plan.
func (c *Conversation) ConfirmMessage(ctx context.Context, messageID string) error {
	c.mu.Lock()
	var target *Message
	for _, m := range c.messages {
		if m.ID == messageID {
			target = m
			break
		}
	}
	if target == nil {
		c.mu.Unlock()
		return ErrUnknownMessage
	}
	confirm := target.confirm
	c.mu.Unlock()

	if confirm == nil {
		return ErrNotConfirmable
	}
	return confirm(ctx)
}

// startJob marks the status line occupied and hands the job to the poller,
// superseding any live poll.
func (c *Conversation) startJob(kind jobs.Kind, jobID string) {
	c.mu.Lock()
	c.pollBusy = true
	c.mu.Unlock()
	c.poller.Start(c.lifeCtx, kind, jobID, c.onJobEvent)
}

// onJobEvent applies poller lifecycle events to the log and status line.
// The poller guarantees no events arrive for superseded or cancelled jobs.
func (c *Conversation) onJobEvent(ev jobs.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.State {
	case jobs.StateStarted:
		c.pollStatus = jobStatus(ev.Kind)
		c.status = c.pollStatus

	case jobs.StateRunning:
		c.pollStatus = jobStatus(ev.Kind)
		if ev.Transient != "" {
			c.pollStatus = ev.Transient
		}
		c.status = c.pollStatus

	case jobs.StateCompleted:
		if ev.Kind == jobs.KindPlan {
			c.appendPlanReadyLocked(ev)
		} else {
			c.appendApplyDoneLocked(ev)
		}
		c.pollBusy = false
		c.pollStatus = ""
		if !c.busy {
			c.status = ""
		}

	case jobs.StateFailed:
		detail := ""
		if ev.Result != nil {
			detail = ev.Result.Result
		}
		c.appendLocked(&Message{
			Role: RoleBot,
			Kind: KindPlain,
			Text: jobFailureText(ev.Kind, detail),
		})
		c.pollBusy = false
		c.pollStatus = ""
		if !c.busy {
			c.status = ""
		}
	}
}

// restoreStatusLocked puts the status line back to whatever a live poll was
// showing before the turn claimed it, or clears it when no poll is running.
// Caller holds c.mu.
func (c *Conversation) restoreStatusLocked() {
	if c.pollBusy {
		c.status = c.pollStatus
		return
	}
	c.status = ""
}

// appendPlanReadyLocked appends the plan-display message for a completed
// plan job and arms its confirm action.
func (c *Conversation) appendPlanReadyLocked(ev jobs.Event) {
	text := "✅ Terraform Plan Ready"
	if len(ev.Result.StructuredPlan) == 0 && ev.Result.Result != "" {
		text += "\n\n```hcl\n" + truncateRunes(ev.Result.Result, maxInlinePlanRunes) + "\n```"
	}

	planJobID := ev.JobID
	m := &Message{
		Role: RoleBot,
		Kind: KindPlanDisplay,
		Text: text,
		Plan: ev.Result.StructuredPlan,
	}
	m.confirm = func(ctx context.Context) error {
		return c.confirmPlan(ctx, planJobID)
	}
	c.appendLocked(m)
	c.planPending = true
}

func (c *Conversation) appendApplyDoneLocked(ev jobs.Event) {
	text := "✅ Provisioning complete."
	if ev.Result != nil && ev.Result.Result != "" {
		text += "\n\n" + truncateRunes(ev.Result.Result, maxInlinePlanRunes)
	}
	c.appendLocked(&Message{Role: RoleBot, Kind: KindPlain, Text: text})
	c.planPending = false
}

func jobStatus(kind jobs.Kind) string {
	if kind == jobs.KindApply {
		return statusApplying
	}
	return statusPlanning
}

func jobFailureText(kind jobs.Kind, detail string) string {
	title := "❌ Terraform Plan Failed"
	if kind == jobs.KindApply {
		title = "❌ Provisioning Failed"
	}
	if detail == "" {
		return title
	}
	return title + "\n\nError: " + detail
}

// appendLocked adds a message to the log and persists it best-effort.
// Caller holds c.mu.
func (c *Conversation) appendLocked(m *Message) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	c.messages = append(c.messages, m)
	c.record(func(ctx context.Context, r Recorder) error {
		return r.SaveMessage(ctx, c.id, m)
	})
}

func (c *Conversation) saveLabelLocked() {
	label := c.label
	c.record(func(ctx context.Context, r Recorder) error {
		return r.SaveConversation(ctx, c.id, label)
	})
}

// record applies fn to the recorder when one is configured.  Persistence
// failures are logged, never propagated: the in-memory log is the source of
// truth for the conversation.
func (c *Conversation) record(fn func(ctx context.Context, r Recorder) error) {
	if c.recorder == nil {
		return
	}
	if err := fn(c.lifeCtx, c.recorder); err != nil {
		observability.WithTrace(c.lifeCtx).Warn("conversation persistence failed",
			"conversation_id", c.id, "err", err)
	}
}

// truncateLabel derives the conversation label from the first user input.
func truncateLabel(text string) string {
	runes := []rune(text)
	if len(runes) <= maxLabelRunes {
		return text
	}
	return string(runes[:maxLabelRunes]) + "..."
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

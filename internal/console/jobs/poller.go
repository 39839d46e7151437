package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cloudcrafter/console/internal/console/observability"
)

// Kind distinguishes the two backend job types.  Plans are short-lived and
// polled faster; applies take minutes and are polled on a slower interval.
type Kind string

const (
	KindPlan  Kind = "plan"
	KindApply Kind = "apply"
)

// State is the poller-internal lifecycle of one job.
//
// StateStarted and StateRunning both map to the backend's RUNNING: they are
// distinguished so the caller can show a kind-specific status line the
// moment the job starts, before the first fetch returns.
type State string

const (
	StateStarted   State = "STARTED"
	StateRunning   State = "RUNNING"
	StateCompleted State = "COMPLETED"
	StateFailed    State = "FAILED"
	StateCancelled State = "CANCELLED"
)

// Event is one lifecycle notification for a tracked job.
type Event struct {
	JobID string
	Kind  Kind
	State State

	// Transient is a human-readable note for a failed status fetch; the
	// poll continues.  Set only on StateRunning events caused by a fetch
	// error.
	Transient string

	// Result carries the backend response on terminal events.  For a
	// poll-budget exhaustion it is a synthetic FAILED result.
	Result *StatusResult
}

// Options tunes the polling loops.
type Options struct {
	// PlanInterval is the wait between plan status fetches.  Default 5s.
	PlanInterval time.Duration
	// ApplyInterval is the wait between apply status fetches.  Default 10s.
	ApplyInterval time.Duration
	// MaxPlanPolls and MaxApplyPolls bound the number of status fetches
	// before the poller gives up and reports a synthetic failure.  The
	// backend offers no deadline of its own, so an unbounded loop would
	// poll forever on a wedged job.  Defaults: 360 and 720.
	MaxPlanPolls  int
	MaxApplyPolls int
}

const (
	defaultPlanInterval  = 5 * time.Second
	defaultApplyInterval = 10 * time.Second
	defaultMaxPlanPolls  = 360
	defaultMaxApplyPolls = 720
)

// Poller runs at most one job-status polling loop at a time.
//
// Starting a new job of either kind cancels the previous one before the new
// job reaches STARTED.  A cancelled loop's in-flight fetch is allowed to
// finish, but its result is discarded: every event is gated on a generation
// check, so nothing a stale loop produces can reach the caller.
type Poller struct {
	client Client
	opts   Options

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

// NewPoller creates a Poller using the given backend client.
func NewPoller(client Client, opts Options) *Poller {
	if opts.PlanInterval <= 0 {
		opts.PlanInterval = defaultPlanInterval
	}
	if opts.ApplyInterval <= 0 {
		opts.ApplyInterval = defaultApplyInterval
	}
	if opts.MaxPlanPolls <= 0 {
		opts.MaxPlanPolls = defaultMaxPlanPolls
	}
	if opts.MaxApplyPolls <= 0 {
		opts.MaxApplyPolls = defaultMaxApplyPolls
	}
	return &Poller{client: client, opts: opts}
}

// Start begins polling the given job, superseding any live poll.  The
// STARTED event is emitted synchronously before Start returns; all later
// events arrive on a background goroutine.  emit is never called for a
// superseded or cancelled job.
func (p *Poller) Start(ctx context.Context, kind Kind, jobID string, emit func(Event)) {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.gen++
	gen := p.gen
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()

	deliver := func(ev Event) bool {
		p.mu.Lock()
		live := p.gen == gen
		p.mu.Unlock()
		if live {
			emit(ev)
		}
		return live
	}

	deliver(Event{JobID: jobID, Kind: kind, State: StateStarted})
	go p.loop(runCtx, gen, kind, jobID, deliver)
}

// Cancel stops the current poll, if any.  Idempotent.  No event is emitted:
// cancellation is either supersession (the new job's events take over) or
// teardown (nobody is listening).
func (p *Poller) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.gen++
}

// Active reports whether a poll loop is currently live.
func (p *Poller) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *Poller) interval(kind Kind) time.Duration {
	if kind == KindApply {
		return p.opts.ApplyInterval
	}
	return p.opts.PlanInterval
}

func (p *Poller) maxPolls(kind Kind) int {
	if kind == KindApply {
		return p.opts.MaxApplyPolls
	}
	return p.opts.MaxPlanPolls
}

// loop fetches the job status until a terminal state, cancellation, or poll
// budget exhaustion.
func (p *Poller) loop(ctx context.Context, gen uint64, kind Kind, jobID string, deliver func(Event) bool) {
	log := observability.WithTrace(ctx).With("job_id", jobID, "kind", string(kind))
	interval := p.interval(kind)
	maxPolls := p.maxPolls(kind)

	for attempt := 1; ; attempt++ {
		result, err := p.client.Status(ctx, jobID)
		if ctx.Err() != nil {
			return
		}

		switch {
		case err != nil:
			log.Warn("status fetch failed, will retry", "attempt", attempt, "err", err)
			if !deliver(Event{JobID: jobID, Kind: kind, State: StateRunning,
				Transient: "Reconnecting to the provisioning service..."}) {
				return
			}
		case result.Status == StatusCompleted:
			log.Info("job completed", "attempts", attempt)
			deliver(Event{JobID: jobID, Kind: kind, State: StateCompleted, Result: result})
			p.finish(gen)
			return
		case result.Status == StatusFailed:
			log.Info("job failed", "attempts", attempt, "detail", result.Result)
			deliver(Event{JobID: jobID, Kind: kind, State: StateFailed, Result: result})
			p.finish(gen)
			return
		default:
			if !deliver(Event{JobID: jobID, Kind: kind, State: StateRunning}) {
				return
			}
		}

		if attempt >= maxPolls {
			log.Warn("poll budget exhausted, giving up", "attempts", attempt)
			deliver(Event{JobID: jobID, Kind: kind, State: StateFailed, Result: &StatusResult{
				Status: StatusFailed,
				Result: fmt.Sprintf("gave up waiting for %s job after %d status checks", kind, attempt),
			}})
			p.finish(gen)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// finish releases the cancel slot if this loop is still the current one.
func (p *Poller) finish(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen == gen && p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

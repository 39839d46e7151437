// Package oracle provides the utterance dispatcher: the thin client layer
// that performs exactly one exchange per turn with the remote
// intent-recognition service.
//
// The dispatcher is deliberately dumb.  It does not poll, does not retry,
// and attaches no meaning to the payload channel — retry policy belongs to
// the orchestrator, payload semantics to the interpreter.  Session
// attributes pass through verbatim in both directions: the outbound bag is
// whatever the caller supplies, and the inbound bag is returned exactly as
// received so the session store can adopt it wholesale.
package oracle

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the remote oracle cannot be reached or
// times out.  Callers surface a single apology message and leave the
// session attributes untouched; they never retry automatically.
var ErrUnavailable = errors.New("oracle: service unavailable")

// TurnRequest is the input to a single oracle exchange.
type TurnRequest struct {
	// SessionID is the stable conversation identifier echoed on every turn.
	SessionID string
	// Text is the user utterance (or synthetic event, e.g. a button value).
	Text string
	// SessionAttributes is the server-authoritative bag from the previous
	// turn, passed through without transformation.
	SessionAttributes map[string]string
}

// TurnResult is the normalized outcome of one oracle exchange.
type TurnResult struct {
	// Messages holds the oracle-produced text fragments in order.
	// May be empty.
	Messages []string

	// SessionAttributes is the new authoritative bag.  Never nil: an absent
	// bag in the reply means the oracle cleared the session, and is
	// returned as the empty map.
	SessionAttributes map[string]string

	// IntentName is the oracle-recognized intent for this turn, when the
	// service reports one (e.g. "CreateInfraIntent").  Used for
	// server-driven conversation naming only.
	IntentName string

	// SlotToElicit names the slot the oracle is currently collecting, when
	// the dialog is mid-elicitation.  Used for topic labels only.
	SlotToElicit string
}

// Client performs one turn exchange with the remote oracle.
//
// Implementations must be safe for concurrent use and must honour ctx
// cancellation.  Transport failures and timeouts are reported as errors
// wrapping ErrUnavailable.
type Client interface {
	Recognize(ctx context.Context, req TurnRequest) (*TurnResult, error)
}

// Package session holds the per-conversation session state required by the
// intent oracle.
//
// The oracle is the authority over session attributes: it may add, rewrite,
// or delete keys between turns.  The store therefore never merges — it only
// replaces its local copy wholesale with whatever the last turn returned.
// The attributes sent on turn N+1 are exactly the attributes received at the
// end of turn N (or the empty bag before the first turn).
package session

import (
	"sync"

	"github.com/google/uuid"
)

// Well-known attribute keys written by the oracle backend.
const (
	// AttrUIPayload holds the JSON-encoded UI instruction channel.
	AttrUIPayload = "ui_payload"
	// AttrBlueprint holds the JSON-encoded infrastructure blueprint consumed
	// by the apply phase.
	AttrBlueprint = "infra_blueprint"
)

// Session is the opaque attribute carrier for one conversation lifetime.
// It is safe for concurrent use.
type Session struct {
	id string

	mu    sync.Mutex
	attrs map[string]string
}

// New creates an empty session with the given stable identifier.  When id is
// empty an anonymous identifier is generated, mirroring the behaviour of the
// identity fallback: the oracle requires some session id on every turn.
func New(id string) *Session {
	if id == "" {
		id = "anon-" + uuid.NewString()
	}
	return &Session{
		id:    id,
		attrs: map[string]string{},
	}
}

// ID returns the stable session identifier.  It is assigned once and never
// reassigned.
func (s *Session) ID() string {
	return s.id
}

// Current returns a copy of the current attribute bag.  Callers may freely
// mutate the returned map.
func (s *Session) Current() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.attrs))
	for k, v := range s.attrs {
		out[k] = v
	}
	return out
}

// Replace discards the stored attributes and adopts newAttrs wholesale.
// A nil map resets the session to the empty bag.  No merging, no key
// validation: the store is a dumb opaque carrier.
func (s *Session) Replace(newAttrs map[string]string) {
	copied := make(map[string]string, len(newAttrs))
	for k, v := range newAttrs {
		copied[k] = v
	}
	s.mu.Lock()
	s.attrs = copied
	s.mu.Unlock()
}

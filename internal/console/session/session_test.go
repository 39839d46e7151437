package session_test

import (
	"strings"
	"testing"

	"github.com/cloudcrafter/console/internal/console/session"
)

func TestNewStartsEmpty(t *testing.T) {
	s := session.New("sess-1")
	if s.ID() != "sess-1" {
		t.Errorf("id: got %q", s.ID())
	}
	if got := s.Current(); len(got) != 0 {
		t.Errorf("expected empty attributes, got %v", got)
	}
}

func TestNewGeneratesAnonymousID(t *testing.T) {
	s := session.New("")
	if !strings.HasPrefix(s.ID(), "anon-") {
		t.Errorf("expected anonymous id, got %q", s.ID())
	}
}

func TestReplaceIsWholesale(t *testing.T) {
	s := session.New("sess-1")
	s.Replace(map[string]string{"a": "1", "b": "2"})

	// The oracle deleted "b" and rewrote "a"; the store must not resurrect "b".
	s.Replace(map[string]string{"a": "9"})

	got := s.Current()
	if len(got) != 1 || got["a"] != "9" {
		t.Fatalf("expected exactly {a:9}, got %v", got)
	}
}

func TestReplaceNilResetsToEmpty(t *testing.T) {
	s := session.New("sess-1")
	s.Replace(map[string]string{"a": "1"})
	s.Replace(nil)
	if got := s.Current(); len(got) != 0 {
		t.Fatalf("expected empty bag, got %v", got)
	}
}

func TestCurrentReturnsCopy(t *testing.T) {
	s := session.New("sess-1")
	s.Replace(map[string]string{"a": "1"})

	snapshot := s.Current()
	snapshot["a"] = "mutated"
	snapshot["b"] = "new"

	got := s.Current()
	if got["a"] != "1" || len(got) != 1 {
		t.Fatalf("mutating a snapshot leaked into the store: %v", got)
	}
}

func TestReplaceCopiesInput(t *testing.T) {
	s := session.New("sess-1")
	in := map[string]string{"a": "1"}
	s.Replace(in)
	in["a"] = "mutated"
	if got := s.Current(); got["a"] != "1" {
		t.Fatalf("mutating the input map leaked into the store: %v", got)
	}
}

package session

import (
	"testing"

	"overhear/provider"
)

func TestAddPreservesOrder(t *testing.T) {
	s := NewStore()
	s.AddUser("first question")
	s.AddAssistant("first answer")
	s.AddUser("second question")

	turns := s.Turns()
	want := []provider.Turn{
		{Role: provider.RoleUser, Content: "first question"},
		{Role: provider.RoleAssistant, Content: "first answer"},
		{Role: provider.RoleUser, Content: "second question"},
	}
	if len(turns) != len(want) {
		t.Fatalf("got %d turns, want %d", len(turns), len(want))
	}
	for i := range want {
		if turns[i] != want[i] {
			t.Errorf("turn %d = %+v, want %+v", i, turns[i], want[i])
		}
	}
}

func TestBlankTurnsDropped(t *testing.T) {
	s := NewStore()
	s.AddUser("")
	s.AddUser("   \n\t")
	s.AddAssistant("")
	if !s.IsEmpty() {
		t.Errorf("store has %d turns, want 0", s.Len())
	}
}

func TestSnapshotIsolation(t *testing.T) {
	s := NewStore()
	s.AddUser("original")

	snap := s.Turns()
	s.AddAssistant("appended later")

	if len(snap) != 1 {
		t.Fatalf("snapshot grew to %d turns", len(snap))
	}
	if snap[0].Content != "original" {
		t.Errorf("snapshot[0] = %+v", snap[0])
	}

	// Mutating the snapshot must not touch the store either.
	snap[0].Content = "tampered"
	if got := s.Turns()[0].Content; got != "original" {
		t.Errorf("store turn = %q after snapshot mutation", got)
	}
}

func TestClear(t *testing.T) {
	s := NewStore()
	s.AddUser("one")
	s.AddAssistant("two")
	s.Clear()
	if !s.IsEmpty() || s.Len() != 0 {
		t.Error("store not empty after Clear")
	}
}

func TestContextTurnsRespectsPersistentMode(t *testing.T) {
	s := NewStore()
	s.AddUser("a")
	s.AddAssistant("b")

	if got := s.ContextTurns(); got != nil {
		t.Errorf("non-persistent ContextTurns = %v, want nil", got)
	}

	s.SetPersistent(true)
	if got := s.ContextTurns(); len(got) != 2 {
		t.Errorf("persistent ContextTurns has %d turns, want 2", len(got))
	}

	s.SetPersistent(false)
	if got := s.ContextTurns(); got != nil {
		t.Error("history leaked into single-turn mode")
	}
	if s.Len() != 2 {
		t.Error("toggling persistent mode must not discard stored turns")
	}
}

// Package session keeps the ordered conversation history used for
// persistent (multi-turn) mode. It owns the turn list exclusively; readers
// always get defensive copies.
package session

import (
	"strings"
	"sync"

	"overhear/provider"
)

type Store struct {
	mu         sync.Mutex
	turns      []provider.Turn
	persistent bool
}

func NewStore() *Store {
	return &Store{}
}

// AddUser appends a user turn. Empty or whitespace-only text is dropped,
// so the history never contains blank turns.
func (s *Store) AddUser(text string) {
	s.add(provider.RoleUser, text)
}

// AddAssistant appends an assistant turn, same trimming rule as AddUser.
func (s *Store) AddAssistant(text string) {
	s.add(provider.RoleAssistant, text)
}

func (s *Store) add(role, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	s.mu.Lock()
	s.turns = append(s.turns, provider.Turn{Role: role, Content: text})
	s.mu.Unlock()
}

// Turns returns a snapshot of the history. Later appends never mutate a
// snapshot already handed out, so an in-flight call sees stable context.
func (s *Store) Turns() []provider.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]provider.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

func (s *Store) Clear() {
	s.mu.Lock()
	s.turns = nil
	s.mu.Unlock()
}

func (s *Store) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns) == 0
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// SetPersistent toggles whether callers should pass history into LLM
// calls at all. The stored turns survive a toggle; only their use changes.
func (s *Store) SetPersistent(on bool) {
	s.mu.Lock()
	s.persistent = on
	s.mu.Unlock()
}

func (s *Store) Persistent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistent
}

// ContextTurns returns the history to pass into an LLM call: the full
// snapshot in persistent mode, nil otherwise.
func (s *Store) ContextTurns() []provider.Turn {
	if !s.Persistent() {
		return nil
	}
	return s.Turns()
}

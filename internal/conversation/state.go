// Package conversation implements the per-user conversation state machine
// that decides which handler may consume the next inbound event, together
// with the dispatch layer that serializes events per user.
package conversation

import "sync"

// State is the per-user conversation state. It is ephemeral, held only in
// process memory, and lost on restart.
type State string

const (
	// StateIdle is the initial state for any external id not yet seen.
	StateIdle State = "idle"

	// StateAwaitingNoteText means the next free-text message is consumed
	// as a note to archive.
	StateAwaitingNoteText State = "awaiting_note_text"

	// StateAwaitingManualPhone means the next free-text message is run
	// through the phone normalizer.
	StateAwaitingManualPhone State = "awaiting_manual_phone"
)

// StateStore is a concurrency-safe map of external id to conversation state.
// It is an explicit, owned value injected into the dispatch layer; lifecycle
// and test isolation stay visible at the call site.
//
// Pending states have no expiry: a user left in AwaitingNoteText stays there
// until their next event arrives.
type StateStore struct {
	mu sync.Mutex
	m  map[int64]State
}

// NewStateStore returns an empty state store.
func NewStateStore() *StateStore {
	return &StateStore{m: make(map[int64]State)}
}

// Get returns the current state for externalID, StateIdle when unseen.
func (s *StateStore) Get(externalID int64) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.m[externalID]; ok {
		return st
	}
	return StateIdle
}

// Set records the state for externalID. Setting StateIdle removes the entry
// so the map only holds users with a pending interaction.
func (s *StateStore) Set(externalID int64, st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st == StateIdle {
		delete(s.m, externalID)
		return
	}
	s.m[externalID] = st
}

// CompareAndSwap transitions externalID from old to new only if the observed
// state matches old. It reports whether the swap happened.
func (s *StateStore) CompareAndSwap(externalID int64, old, new State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.m[externalID]
	if !ok {
		cur = StateIdle
	}
	if cur != old {
		return false
	}
	if new == StateIdle {
		delete(s.m, externalID)
	} else {
		s.m[externalID] = new
	}
	return true
}

// Len returns the number of users with a pending (non-idle) state.
func (s *StateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

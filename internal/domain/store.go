package domain

import "sync"

// Store holds the ordered feed entries. All mutations go through a single
// mutex so concurrently completing fetches never lose each other's updates,
// and every committed state is handed to the publish callback in commit
// order.
type Store struct {
	mu      sync.Mutex
	state   UiState
	publish func(UiState)
}

// NewStore creates an empty store. publish may be nil.
func NewStore(publish func(UiState)) *Store {
	if publish == nil {
		publish = func(UiState) {}
	}
	return &Store{publish: publish}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() UiState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// View calls fn with the store locked and returns the state fn ran against.
// No commit can happen while fn runs.
func (s *Store) View(fn func()) UiState {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
	return s.state
}

// Modify applies fn to the whole state. If fn reports no change nothing is
// published. Returns whether the state changed.
func (s *Store) Modify(fn func(UiState) (UiState, bool)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, changed := fn(s.state)
	if !changed {
		return false
	}
	s.commit(next)
	return true
}

// Update applies transform to the entry with the given key and keeps it at
// the same position. A missing key is a no-op. Returns whether the state
// changed.
func (s *Store) Update(key string, transform func(FeedEntry) (FeedEntry, bool)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, e := range s.state.Entries {
		if e.Key() == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	updated, changed := transform(s.state.Entries[idx])
	if !changed {
		return false
	}
	updated.Tag = s.state.Entries[idx].Tag

	next := s.state
	next.Entries = append([]FeedEntry(nil), s.state.Entries...)
	next.Entries[idx] = updated
	s.commit(next)
	return true
}

// UpdateEach applies transform to every entry in one atomic step. Returns
// the number of entries that changed.
func (s *Store) UpdateEach(transform func(FeedEntry) (FeedEntry, bool)) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, n := applyEach(s.state, transform)
	if n == 0 {
		return 0
	}
	s.commit(next)
	return n
}

// applyEach returns a copy of state with transform applied to every entry,
// plus the number of entries that changed. state itself is not modified.
func applyEach(state UiState, transform func(FeedEntry) (FeedEntry, bool)) (UiState, int) {
	var entries []FeedEntry
	n := 0
	for i, e := range state.Entries {
		updated, changed := transform(e)
		if !changed {
			continue
		}
		if entries == nil {
			entries = append([]FeedEntry(nil), state.Entries...)
		}
		updated.Tag = e.Tag
		entries[i] = updated
		n++
	}
	if n == 0 {
		return state, 0
	}
	state.Entries = entries
	return state, n
}

func (s *Store) commit(next UiState) {
	s.state = next
	s.publish(next)
}

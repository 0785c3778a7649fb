package orchestrator

import "sync"

// StopSet is the shared cooperative-cancellation set. Stages poll it
// at well-defined points; in-flight network calls are never force
// aborted, the sequencing simply stops advancing.
type StopSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
	all bool
}

// NewStopSet creates an empty stop set.
func NewStopSet() *StopSet {
	return &StopSet{ids: make(map[string]struct{})}
}

// Stop flags one item.
func (s *StopSet) Stop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[id] = struct{}{}
}

// StopAll flags every current and future item.
func (s *StopSet) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.all = true
}

// Stopped reports whether the item should stop advancing.
func (s *StopSet) Stopped(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.all {
		return true
	}
	_, ok := s.ids[id]
	return ok
}

// AllStopped reports whether the whole batch was stopped.
func (s *StopSet) AllStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.all
}

// Clear removes one item's flag, typically after it has been returned
// to idle.
func (s *StopSet) Clear(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, id)
}

// ResetAll clears the batch-wide flag before a new batch starts.
// Per-item flags survive so an item stopped just before a batch is
// still skipped at entry.
func (s *StopSet) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.all = false
}

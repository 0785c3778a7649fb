package api

import (
	"sync"

	"github.com/Papalexios/ai-seo-rank/internal/domain"
)

// Store keeps the live content items handed to the pipeline plus
// read-only snapshots for API responses. Snapshots are updated only
// through the event sink, so readers never observe a half-written
// item.
type Store struct {
	mu        sync.RWMutex
	live      map[string]*domain.ContentItem
	snapshots map[string]domain.ContentItem
	order     []string
	progress  domain.Progress
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		live:      make(map[string]*domain.ContentItem),
		snapshots: make(map[string]domain.ContentItem),
	}
}

// Register adds items before a batch starts. Re-registering an ID
// replaces the live item and its snapshot.
func (s *Store) Register(items []*domain.ContentItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		if _, known := s.live[item.ID]; !known {
			s.order = append(s.order, item.ID)
		}
		s.live[item.ID] = item
		snapshot := *item
		snapshot.GeneratedContent = item.GeneratedContent.Clone()
		s.snapshots[item.ID] = snapshot
	}
}

// Live returns the live items for the given IDs, skipping unknown ones.
func (s *Store) Live(ids []string) []*domain.ContentItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]*domain.ContentItem, 0, len(ids))
	for _, id := range ids {
		if item, ok := s.live[id]; ok {
			items = append(items, item)
		}
	}
	return items
}

// AllLive returns every live item in registration order.
func (s *Store) AllLive() []*domain.ContentItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]*domain.ContentItem, 0, len(s.order))
	for _, id := range s.order {
		items = append(items, s.live[id])
	}
	return items
}

// Get returns one snapshot.
func (s *Store) Get(id string) (domain.ContentItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.snapshots[id]
	return item, ok
}

// List returns all snapshots in registration order.
func (s *Store) List() []domain.ContentItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]domain.ContentItem, 0, len(s.order))
	for _, id := range s.order {
		items = append(items, s.snapshots[id])
	}
	return items
}

// Progress returns the latest batch progress.
func (s *Store) Progress() domain.Progress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progress
}

// OnStatus implements domain.EventSink.
func (s *Store) OnStatus(update domain.StatusUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot, ok := s.snapshots[update.ID]
	if !ok {
		return
	}
	snapshot.Status = update.Status
	snapshot.StatusText = update.StatusText
	s.snapshots[update.ID] = snapshot
}

// OnContent implements domain.EventSink.
func (s *Store) OnContent(update domain.ContentUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot, ok := s.snapshots[update.ID]
	if !ok || update.Content == nil {
		return
	}
	// The pipeline keeps mutating the emitted content (image URLs,
	// media IDs land after this event), so the snapshot must not share
	// backing arrays with it.
	snapshot.GeneratedContent = update.Content.Clone()
	s.snapshots[update.ID] = snapshot
}

// OnProgress implements domain.EventSink.
func (s *Store) OnProgress(progress domain.Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = progress
}

package domain

// StatusUpdate is emitted after every stage transition of an item.
type StatusUpdate struct {
	ID         string        `json:"id"`
	Status     ContentStatus `json:"status"`
	StatusText string        `json:"status_text"`
}

// ContentUpdate carries the progressively built content for an item.
type ContentUpdate struct {
	ID      string            `json:"id"`
	Content *GeneratedContent `json:"content"`
}

// Progress reports batch completion after every processed item.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// EventSink receives pipeline events. Implementations must be safe for
// concurrent use; the orchestrator calls them from worker goroutines.
type EventSink interface {
	OnStatus(update StatusUpdate)
	OnContent(update ContentUpdate)
	OnProgress(progress Progress)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) OnStatus(StatusUpdate)   {}
func (NopSink) OnContent(ContentUpdate) {}
func (NopSink) OnProgress(Progress)     {}

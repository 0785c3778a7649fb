// Package domain contains the core domain models for the content
// generation pipeline.
package domain

import (
	"maps"
	"slices"
	"time"
)

// ContentType classifies a content item within a topical cluster.
type ContentType string

const (
	ContentTypePillar   ContentType = "pillar"
	ContentTypeCluster  ContentType = "cluster"
	ContentTypeStandard ContentType = "standard"
)

// ContentStatus represents the lifecycle state of a content item.
type ContentStatus string

const (
	StatusIdle       ContentStatus = "idle"
	StatusGenerating ContentStatus = "generating"
	StatusDone       ContentStatus = "done"
	StatusError      ContentStatus = "error"
)

// ContentItem is the unit of work flowing through the pipeline.
//
// The ID is stable: the source URL for rewrites of existing pages, or a
// generated UUID for new content. Items are never deleted
// mid-pipeline; a stop request returns the item to idle without
// clearing any partially generated content.
type ContentItem struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Type       ContentType   `json:"type"`
	Status     ContentStatus `json:"status"`
	StatusText string        `json:"status_text"`

	// OriginalURL is set only when this item rewrites an existing
	// published page. Its presence switches publishing to
	// update-in-place instead of create.
	OriginalURL string `json:"original_url,omitempty"`

	// CrawledContent and Analysis are optional inputs carried over
	// from a prior content-audit stage.
	CrawledContent string `json:"crawled_content,omitempty"`
	Analysis       string `json:"analysis,omitempty"`

	// GeneratedContent is populated progressively during generation
	// and retained on failure for manual review.
	GeneratedContent *GeneratedContent `json:"generated_content,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsRewrite reports whether publishing should update an existing page.
func (c *ContentItem) IsRewrite() bool {
	return c.OriginalURL != ""
}

// GeneratedContent is the work product of a generation run.
type GeneratedContent struct {
	Title            string   `json:"title"`
	MetaDescription  string   `json:"meta_description"`
	Slug             string   `json:"slug"`
	PrimaryKeyword   string   `json:"primary_keyword"`
	SemanticKeywords []string `json:"semantic_keywords"`

	// Content is the article HTML, built incrementally across stages.
	Content string `json:"content"`

	ImageDetails []ImageDetail `json:"image_details,omitempty"`
	References   []Reference   `json:"references,omitempty"`
	FAQSection   []FAQItem     `json:"faq_section,omitempty"`
	KeyTakeaways []string      `json:"key_takeaways,omitempty"`
	Outline      []string      `json:"outline,omitempty"`

	// JSONLDSchema is always present in the final state; schema
	// generation falls back to a minimal valid object on failure.
	JSONLDSchema map[string]any `json:"json_ld_schema,omitempty"`

	WordCount int `json:"word_count,omitempty"`
}

// Clone returns a deep copy. The pipeline keeps mutating slice elements
// (image URLs, media IDs) after emitting content events, so anything
// held past an event callback must not share backing arrays with the
// live item.
func (g *GeneratedContent) Clone() *GeneratedContent {
	if g == nil {
		return nil
	}
	c := *g
	c.SemanticKeywords = slices.Clone(g.SemanticKeywords)
	c.ImageDetails = slices.Clone(g.ImageDetails)
	c.References = slices.Clone(g.References)
	c.FAQSection = slices.Clone(g.FAQSection)
	c.KeyTakeaways = slices.Clone(g.KeyTakeaways)
	c.Outline = slices.Clone(g.Outline)
	if g.JSONLDSchema != nil {
		c.JSONLDSchema = maps.Clone(g.JSONLDSchema)
	}
	return &c
}

// ImageDetail describes one in-article image slot.
type ImageDetail struct {
	Prompt      string `json:"prompt"`
	AltText     string `json:"alt_text"`
	Title       string `json:"title"`
	Placeholder string `json:"placeholder"`

	// Data holds the generated image bytes (base64) until publishing.
	Data string `json:"-"`

	// URL and MediaID are filled once the image has been published.
	URL     string `json:"url,omitempty"`
	MediaID *int   `json:"media_id,omitempty"`
}

// Reference is a validated citation record. The URL passed a liveness
// check at validation time.
type Reference struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Source string `json:"source"`
	Year   int    `json:"year,omitempty"`
}

// FAQItem is one question/answer pair for the FAQ section.
type FAQItem struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// VideoEmbed is a validated video candidate for in-article embedding.
type VideoEmbed struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	URL      string        `json:"url"`
	Channel  string        `json:"channel,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// UploadResult is the outcome of publishing an image. MediaID is set
// only when the direct provider path succeeded; its absence must not
// block publishing.
type UploadResult struct {
	URL     string `json:"url"`
	MediaID *int   `json:"media_id,omitempty"`
}

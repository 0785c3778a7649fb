// Package schema builds the JSON-LD structured data attached to every
// generated article. Construction is wrapped in a fail-safe: the
// schema object is always present in the final item, degrading to a
// minimal valid object rather than aborting generation.
package schema

import (
	"fmt"
	"time"

	"github.com/Papalexios/ai-seo-rank/internal/domain"
	"github.com/Papalexios/ai-seo-rank/internal/logger"
)

const schemaContext = "https://schema.org"

// Input carries everything the builder renders into structured data.
type Input struct {
	Content     domain.GeneratedContent
	SiteName    string
	SiteURL     string
	AuthorName  string
	PublishedAt time.Time
}

// Builder produces JSON-LD objects.
type Builder struct {
	logger logger.Logger
}

// New creates a schema builder.
func New(log logger.Logger) *Builder {
	return &Builder{logger: log}
}

// Build returns the article's JSON-LD object. Any failure during
// construction substitutes the minimal valid schema and logs a
// warning; Build never returns an error.
func (b *Builder) Build(in Input) map[string]any {
	result, err := b.build(in)
	if err != nil {
		b.logger.Warn("schema generation degraded to minimal object",
			logger.String("title", in.Content.Title),
			logger.Error(err),
		)
		return Minimal(in.Content.Title)
	}
	return result
}

func (b *Builder) build(in Input) (map[string]any, error) {
	if in.Content.Title == "" {
		return nil, fmt.Errorf("%w: article title is required for schema", domain.ErrInvalidParams)
	}

	published := in.PublishedAt
	if published.IsZero() {
		published = time.Now().UTC()
	}

	article := map[string]any{
		"@context":      schemaContext,
		"@type":         "Article",
		"headline":      in.Content.Title,
		"description":   in.Content.MetaDescription,
		"keywords":      in.Content.PrimaryKeyword,
		"wordCount":     in.Content.WordCount,
		"datePublished": published.Format(time.RFC3339),
		"dateModified":  published.Format(time.RFC3339),
	}

	if in.AuthorName != "" {
		article["author"] = map[string]any{
			"@type": "Person",
			"name":  in.AuthorName,
		}
	}
	if in.SiteName != "" {
		article["publisher"] = map[string]any{
			"@type": "Organization",
			"name":  in.SiteName,
			"url":   in.SiteURL,
		}
	}
	if in.SiteURL != "" && in.Content.Slug != "" {
		article["mainEntityOfPage"] = map[string]any{
			"@type": "WebPage",
			"@id":   in.SiteURL + "/" + in.Content.Slug,
		}
	}

	if img := firstImageURL(in.Content.ImageDetails); img != "" {
		article["image"] = img
	}

	if len(in.Content.FAQSection) > 0 {
		// FAQ content ships as a graph of both types.
		return map[string]any{
			"@context": schemaContext,
			"@graph": []map[string]any{
				article,
				{
					"@type":      "FAQPage",
					"mainEntity": faqEntities(in.Content.FAQSection),
				},
			},
		}, nil
	}

	return article, nil
}

func faqEntities(faqs []domain.FAQItem) []map[string]any {
	entities := make([]map[string]any, 0, len(faqs))
	for _, faq := range faqs {
		if faq.Question == "" || faq.Answer == "" {
			continue
		}
		entities = append(entities, map[string]any{
			"@type": "Question",
			"name":  faq.Question,
			"acceptedAnswer": map[string]any{
				"@type": "Answer",
				"text":  faq.Answer,
			},
		})
	}
	return entities
}

func firstImageURL(images []domain.ImageDetail) string {
	for _, img := range images {
		if img.URL != "" {
			return img.URL
		}
	}
	return ""
}

// Minimal returns the smallest valid schema object. Used as the
// fail-safe substitute and never absent from a finished item.
func Minimal(title string) map[string]any {
	if title == "" {
		title = "Article"
	}
	return map[string]any{
		"@context": schemaContext,
		"@type":    "Article",
		"headline": title,
	}
}

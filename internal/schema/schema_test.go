package schema_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Papalexios/ai-seo-rank/internal/domain"
	"github.com/Papalexios/ai-seo-rank/internal/logger"
	"github.com/Papalexios/ai-seo-rank/internal/schema"
)

func TestBuild_FullArticle(t *testing.T) {
	b := schema.New(logger.NewNopLogger())

	result := b.Build(schema.Input{
		Content: domain.GeneratedContent{
			Title:           "Best Budget Laptops 2025",
			MetaDescription: "The laptops worth buying this year.",
			Slug:            "best-budget-laptops-2025",
			PrimaryKeyword:  "budget laptops",
			WordCount:       2400,
			ImageDetails: []domain.ImageDetail{
				{URL: "https://cdn.example.com/hero.webp"},
			},
		},
		SiteName:    "TechAdvisor",
		SiteURL:     "https://site.example.com",
		AuthorName:  "Jordan Reyes",
		PublishedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	})

	assert.Equal(t, "https://schema.org", result["@context"])
	assert.Equal(t, "Article", result["@type"])
	assert.Equal(t, "Best Budget Laptops 2025", result["headline"])
	assert.Equal(t, "https://cdn.example.com/hero.webp", result["image"])
	assert.Equal(t, "2025-06-01T12:00:00Z", result["datePublished"])

	author, ok := result["author"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Jordan Reyes", author["name"])

	page, ok := result["mainEntityOfPage"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "https://site.example.com/best-budget-laptops-2025", page["@id"])

	// The object must serialize cleanly for embedding.
	_, err := json.Marshal(result)
	require.NoError(t, err)
}

func TestBuild_FAQProducesGraph(t *testing.T) {
	b := schema.New(logger.NewNopLogger())

	result := b.Build(schema.Input{
		Content: domain.GeneratedContent{
			Title: "Best Budget Laptops 2025",
			FAQSection: []domain.FAQItem{
				{Question: "How much RAM do I need?", Answer: "16GB for most users."},
				{Question: "", Answer: "orphaned answer"},
			},
		},
	})

	graph, ok := result["@graph"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, graph, 2)
	assert.Equal(t, "Article", graph[0]["@type"])
	assert.Equal(t, "FAQPage", graph[1]["@type"])

	entities, ok := graph[1]["mainEntity"].([]map[string]any)
	require.True(t, ok)
	assert.Len(t, entities, 1, "incomplete FAQ pairs dropped")
}

func TestBuild_MissingTitleFallsBackToMinimal(t *testing.T) {
	b := schema.New(logger.NewNopLogger())

	result := b.Build(schema.Input{})

	assert.Equal(t, "https://schema.org", result["@context"])
	assert.Equal(t, "Article", result["@type"])
	assert.NotEmpty(t, result["headline"], "fail-safe schema is still valid")
	assert.NotContains(t, result, "author")
}

func TestMinimal(t *testing.T) {
	result := schema.Minimal("")

	assert.Equal(t, "Article", result["@type"])
	assert.Equal(t, "Article", result["headline"])

	_, err := json.Marshal(result)
	require.NoError(t, err)
}

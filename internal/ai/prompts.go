package ai

import (
	"fmt"

	"github.com/Papalexios/ai-seo-rank/internal/domain"
)

// Prompt keys understood by the router. Each maps to a system
// instruction and a user-prompt template.
const (
	PromptNLPTerms   = "nlp_terms"
	PromptResearch   = "research"
	PromptMetadata   = "metadata"
	PromptArticle    = "article"
	PromptJSONRepair = "json_repair"
)

type promptSpec struct {
	system string
	user   string
}

var prompts = map[string]promptSpec{
	PromptNLPTerms: {
		system: "You are an SEO specialist extracting salient entities and terms from content.",
		user: "Analyze the topic %q and list the 20 most important NLP terms, entities and " +
			"concepts a comprehensive article must cover. Return a JSON object: " +
			`{"terms": ["..."]}`,
	},
	PromptResearch: {
		system: "You are a content researcher. Be factual and current.",
		user: "Research the topic %q. Summarize the current state of the subject, the questions " +
			"searchers ask, and notable facts with figures. Return a JSON object: " +
			`{"summary": "...", "semantic_keywords": ["..."], "questions": ["..."]}`,
	},
	PromptMetadata: {
		system: "You are an SEO strategist producing article plans.",
		user: "Create the metadata and outline for an article titled %q targeting the primary " +
			"keyword %q. Research context: %s. Return a JSON object: " +
			`{"title": "...", "meta_description": "...", "slug": "...", "primary_keyword": "...", ` +
			`"semantic_keywords": ["..."], "outline": ["..."], "key_takeaways": ["..."], ` +
			`"faq_section": [{"question": "...", "answer": "..."}], ` +
			`"image_details": [{"prompt": "...", "alt_text": "...", "title": "...", "placeholder": "[IMAGE-1]"}]}`,
	},
	PromptArticle: {
		system: "You are an expert long-form writer. Write clean semantic HTML using h2/h3/p/ul " +
			"tags only, no inline styles, no html/head/body wrapper.",
		user: "Write a comprehensive article titled %q for the primary keyword %q following this " +
			"outline: %s. Weave in these semantic keywords naturally: %s. Place the image " +
			"placeholder tokens %s on their own lines where the images belong. Target length: " +
			"%d-%d words.",
	},
	PromptJSONRepair: {
		system: "You repair malformed JSON. Output only the corrected JSON, nothing else.",
		user:   "Fix this malformed JSON so it parses. Preserve all data:\n\n%s",
	},
}

// buildPrompt renders a registered prompt template with args.
func buildPrompt(key string, args []any) (Request, error) {
	spec, ok := prompts[key]
	if !ok {
		return Request{}, fmt.Errorf("%w: unknown prompt key %q", domain.ErrInvalidParams, key)
	}
	return Request{
		System: spec.system,
		Prompt: fmt.Sprintf(spec.user, args...),
	}, nil
}

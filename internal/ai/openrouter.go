package ai

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Papalexios/ai-seo-rank/internal/httpclient"
	"github.com/Papalexios/ai-seo-rank/internal/logger"
)

const (
	openrouterBaseURL = "https://openrouter.ai/api"
	openrouterTimeout = 120 * time.Second
)

// defaultOpenRouterModels is the ordered list of underlying models the
// aggregator tries until one returns non-empty content.
var defaultOpenRouterModels = []string{
	"google/gemini-2.5-flash",
	"openai/gpt-4o-mini",
	"anthropic/claude-sonnet-4",
	"meta-llama/llama-3.3-70b-instruct",
}

// OpenRouter is the multi-model aggregator adapter. Unlike the direct
// providers it iterates a configured model list per call.
type OpenRouter struct {
	baseURL string
	apiKey  string
	models  []string
	client  *http.Client
	logger  logger.Logger
}

// NewOpenRouter creates an OpenRouter provider. baseURL and models may
// be empty to use defaults.
func NewOpenRouter(baseURL, apiKey string, models []string, log logger.Logger) *OpenRouter {
	if baseURL == "" {
		baseURL = openrouterBaseURL
	}
	if len(models) == 0 {
		models = defaultOpenRouterModels
	}
	return &OpenRouter{
		baseURL: baseURL,
		apiKey:  apiKey,
		models:  models,
		client:  httpclient.New(openrouterTimeout),
		logger:  log,
	}
}

func (o *OpenRouter) Name() string { return ProviderOpenRouter }

// Generate tries each configured model in order until one returns
// non-empty content. If all fail, the last error propagates.
func (o *OpenRouter) Generate(ctx context.Context, req Request) (string, error) {
	var lastErr error

	for _, model := range o.models {
		text, err := chatCompletion(ctx, o.client, o.baseURL+"/v1/chat/completions", o.apiKey, model, req, "openrouter")
		if err != nil {
			lastErr = err
			o.logger.Warn("openrouter model failed, trying next",
				logger.String("model", model),
				logger.Error(err),
			)
			continue
		}
		if strings.TrimSpace(text) != "" {
			return text, nil
		}
		o.logger.Warn("openrouter model returned empty content, trying next",
			logger.String("model", model),
		)
	}

	if lastErr != nil {
		return "", lastErr
	}
	return "", nil
}

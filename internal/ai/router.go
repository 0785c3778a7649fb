package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/Papalexios/ai-seo-rank/internal/cache"
	"github.com/Papalexios/ai-seo-rank/internal/domain"
	"github.com/Papalexios/ai-seo-rank/internal/logger"
	"github.com/Papalexios/ai-seo-rank/internal/retry"
)

const (
	// sessionCacheTTL bounds how long a response is served from the
	// session cache; it doubles as the in-flight memo eviction window.
	sessionCacheTTL = 5 * time.Minute

	// defaultProviderRPS throttles calls per provider to respect rate
	// limits.
	defaultProviderRPS = 2
)

// RouterConfig tunes the router.
type RouterConfig struct {
	Retry       retry.Config
	ProviderRPS float64
	CacheTTL    time.Duration

	// OnProviderCall observes every provider invocation with outcome
	// "success" or "error". Optional.
	OnProviderCall func(provider, outcome string)
}

// Router maps a logical model selection to a configured provider, with
// automatic fallback, response caching and in-flight deduplication.
type Router struct {
	providers map[string]Provider
	limiters  map[string]*rate.Limiter
	store     cache.Store
	flight    singleflight.Group
	retryCfg  retry.Config
	cacheTTL  time.Duration
	observe   func(provider, outcome string)
	logger    logger.Logger
}

// NewRouter creates a router over the given providers. store holds the
// session response cache.
func NewRouter(providers []Provider, store cache.Store, cfg RouterConfig, log logger.Logger) *Router {
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	if cfg.ProviderRPS <= 0 {
		cfg.ProviderRPS = defaultProviderRPS
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = sessionCacheTTL
	}

	byName := make(map[string]Provider, len(providers))
	limiters := make(map[string]*rate.Limiter, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
		limiters[p.Name()] = rate.NewLimiter(rate.Limit(cfg.ProviderRPS), 1)
	}

	return &Router{
		providers: byName,
		limiters:  limiters,
		store:     store,
		retryCfg:  cfg.Retry,
		cacheTTL:  cfg.CacheTTL,
		observe:   cfg.OnProviderCall,
		logger:    log,
	}
}

// Call renders the registered prompt, resolves a provider (with
// fallback substitution) and executes the request through the
// resilient invoker. Responses are cached by prompt identity;
// concurrent duplicate requests share one network call.
func (r *Router) Call(ctx context.Context, selected, promptKey string, args []any, format Format, grounding bool) (string, error) {
	req, err := buildPrompt(promptKey, args)
	if err != nil {
		return "", err
	}
	req.Format = format
	req.Grounding = grounding

	return r.Generate(ctx, selected, promptKey, req)
}

// Generate executes an already-built request. Exposed for callers that
// assemble prompts outside the registry (e.g. the JSON repairer).
func (r *Router) Generate(ctx context.Context, selected, promptKey string, req Request) (string, error) {
	key := cache.Fingerprint(promptKey, req.System, req.Prompt, string(req.Format), fmt.Sprint(req.Grounding))

	if cached, ok := r.store.Get(ctx, key); ok {
		r.logger.Debug("ai response served from cache", logger.String("prompt_key", promptKey))
		return cached, nil
	}

	result, err, _ := r.flight.Do(key, func() (any, error) {
		text, genErr := r.generateWithFallback(ctx, selected, promptKey, req)
		if genErr != nil {
			return "", genErr
		}
		if setErr := r.store.Set(ctx, key, text, r.cacheTTL); setErr != nil {
			r.logger.Warn("failed to cache ai response", logger.Error(setErr))
		}
		return text, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (r *Router) generateWithFallback(ctx context.Context, selected, promptKey string, req Request) (string, error) {
	provider, err := r.resolve(selected)
	if err != nil {
		return "", err
	}

	text, err := r.invoke(ctx, provider, promptKey, req)
	if err == nil && strings.TrimSpace(text) != "" {
		return text, nil
	}

	// An empty response gets one more chance on the next available
	// provider before surfacing.
	if err == nil {
		r.logger.Warn("provider returned empty response, trying fallback",
			logger.String("provider", provider.Name()),
			logger.String("prompt_key", promptKey),
		)
		if alt := r.nextAvailable(provider.Name()); alt != nil {
			text, err = r.invoke(ctx, alt, promptKey, req)
			if err == nil && strings.TrimSpace(text) != "" {
				return text, nil
			}
		}
		if err == nil {
			return "", fmt.Errorf("%w (prompt %q)", domain.ErrEmptyResponse, promptKey)
		}
	}

	return "", err
}

func (r *Router) invoke(ctx context.Context, provider Provider, promptKey string, req Request) (string, error) {
	if limiter := r.limiters[provider.Name()]; limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	start := time.Now()
	text, err := retry.Do(ctx, r.retryCfg, func(ctx context.Context) (string, error) {
		return provider.Generate(ctx, req)
	})
	if r.observe != nil {
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		r.observe(provider.Name(), outcome)
	}
	if err != nil {
		return "", err
	}

	r.logger.Debug("ai call completed",
		logger.String("provider", provider.Name()),
		logger.String("prompt_key", promptKey),
		logger.Int("response_length", len(text)),
		logger.Duration("duration", time.Since(start)),
	)
	return text, nil
}

// resolve returns the selected provider, or walks the fixed fallback
// order and substitutes the first available one. Substitution is
// always logged, never silent.
func (r *Router) resolve(selected string) (Provider, error) {
	if p, ok := r.providers[selected]; ok {
		return p, nil
	}

	for _, name := range FallbackOrder {
		if p, ok := r.providers[name]; ok {
			r.logger.Warn("selected provider not configured, substituting",
				logger.String("selected", selected),
				logger.String("substitute", name),
			)
			return p, nil
		}
	}

	return nil, domain.ErrAuthFailed
}

// nextAvailable returns the first configured provider after `after` in
// the fallback order, nil when none exists.
func (r *Router) nextAvailable(after string) Provider {
	seen := false
	for _, name := range FallbackOrder {
		if name == after {
			seen = true
			continue
		}
		if seen {
			if p, ok := r.providers[name]; ok {
				return p
			}
		}
	}
	// Wrap around so a provider late in the order still has a fallback.
	for _, name := range FallbackOrder {
		if name == after {
			break
		}
		if p, ok := r.providers[name]; ok {
			return p
		}
	}
	return nil
}

// RepairFunc returns a jsonrepair-compatible function backed by a
// dedicated repair prompt on the selected provider.
func (r *Router) RepairFunc(ctx context.Context, selected string) func(raw string) (string, error) {
	return func(raw string) (string, error) {
		return r.Call(ctx, selected, PromptJSONRepair, []any{raw}, FormatJSON, false)
	}
}

// Available reports whether at least one provider is configured.
func (r *Router) Available() bool {
	return len(r.providers) > 0
}

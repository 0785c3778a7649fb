package ai_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Papalexios/ai-seo-rank/internal/ai"
	"github.com/Papalexios/ai-seo-rank/internal/cache"
	"github.com/Papalexios/ai-seo-rank/internal/domain"
	"github.com/Papalexios/ai-seo-rank/internal/logger"
	"github.com/Papalexios/ai-seo-rank/internal/retry"
)

// fakeProvider is a scriptable Provider for router tests.
type fakeProvider struct {
	name     string
	response string
	err      error
	calls    atomic.Int32
	delay    time.Duration
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Generate(ctx context.Context, req ai.Request) (string, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.response, f.err
}

func newRouter(store cache.Store, providers ...ai.Provider) *ai.Router {
	cfg := ai.RouterConfig{
		Retry:       retry.Config{MaxRetries: 1, InitialDelay: time.Millisecond},
		ProviderRPS: 10000,
	}
	return ai.NewRouter(providers, store, cfg, logger.NewNopLogger())
}

func TestRouter_CallSelectedProvider(t *testing.T) {
	gemini := &fakeProvider{name: ai.ProviderGemini, response: `{"terms": ["laptop"]}`}
	router := newRouter(cache.NewMemory(), gemini)

	text, err := router.Call(context.Background(), ai.ProviderGemini, ai.PromptNLPTerms,
		[]any{"budget laptops"}, ai.FormatJSON, false)

	require.NoError(t, err)
	require.Equal(t, `{"terms": ["laptop"]}`, text)
	require.Equal(t, int32(1), gemini.calls.Load())
}

func TestRouter_FallbackSubstitution(t *testing.T) {
	// Selected provider (gemini) is not configured; openai is next in
	// the fixed fallback order and must be substituted.
	openai := &fakeProvider{name: ai.ProviderOpenAI, response: "fallback response"}
	anthropic := &fakeProvider{name: ai.ProviderAnthropic, response: "wrong provider"}
	router := newRouter(cache.NewMemory(), openai, anthropic)

	text, err := router.Call(context.Background(), ai.ProviderGemini, ai.PromptResearch,
		[]any{"topic"}, ai.FormatText, false)

	require.NoError(t, err)
	require.Equal(t, "fallback response", text)
	require.Equal(t, int32(1), openai.calls.Load())
	require.Equal(t, int32(0), anthropic.calls.Load())
}

func TestRouter_NoProvidersIsAuthFailed(t *testing.T) {
	router := newRouter(cache.NewMemory())

	_, err := router.Call(context.Background(), ai.ProviderGemini, ai.PromptResearch,
		[]any{"topic"}, ai.FormatText, false)

	require.ErrorIs(t, err, domain.ErrAuthFailed)
}

func TestRouter_EmptyResponseFallsBackOnce(t *testing.T) {
	gemini := &fakeProvider{name: ai.ProviderGemini, response: "   "}
	openai := &fakeProvider{name: ai.ProviderOpenAI, response: "recovered"}
	router := newRouter(cache.NewMemory(), gemini, openai)

	text, err := router.Call(context.Background(), ai.ProviderGemini, ai.PromptResearch,
		[]any{"topic"}, ai.FormatText, false)

	require.NoError(t, err)
	require.Equal(t, "recovered", text)
	require.Equal(t, int32(1), gemini.calls.Load())
	require.Equal(t, int32(1), openai.calls.Load())
}

func TestRouter_EmptyResponseEverywhereSurfaces(t *testing.T) {
	gemini := &fakeProvider{name: ai.ProviderGemini, response: ""}
	router := newRouter(cache.NewMemory(), gemini)

	_, err := router.Call(context.Background(), ai.ProviderGemini, ai.PromptResearch,
		[]any{"topic"}, ai.FormatText, false)

	require.ErrorIs(t, err, domain.ErrEmptyResponse)
}

func TestRouter_ResponseCacheShortCircuits(t *testing.T) {
	gemini := &fakeProvider{name: ai.ProviderGemini, response: "cached result"}
	router := newRouter(cache.NewMemory(), gemini)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		text, err := router.Call(ctx, ai.ProviderGemini, ai.PromptResearch,
			[]any{"same topic"}, ai.FormatText, false)
		require.NoError(t, err)
		require.Equal(t, "cached result", text)
	}

	require.Equal(t, int32(1), gemini.calls.Load(), "repeat calls must hit the cache")
}

func TestRouter_ConcurrentDuplicatesShareOneCall(t *testing.T) {
	gemini := &fakeProvider{name: ai.ProviderGemini, response: "shared", delay: 50 * time.Millisecond}
	router := newRouter(cache.NewMemory(), gemini)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			text, err := router.Call(context.Background(), ai.ProviderGemini, ai.PromptResearch,
				[]any{"concurrent topic"}, ai.FormatText, false)
			require.NoError(t, err)
			require.Equal(t, "shared", text)
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), gemini.calls.Load(), "concurrent duplicates must share one network call")
}

func TestRouter_ProviderErrorPropagates(t *testing.T) {
	gemini := &fakeProvider{
		name: ai.ProviderGemini,
		err:  &domain.APIError{StatusCode: 400, Message: "bad request"},
	}
	router := newRouter(cache.NewMemory(), gemini)

	_, err := router.Call(context.Background(), ai.ProviderGemini, ai.PromptResearch,
		[]any{"topic"}, ai.FormatText, false)

	var apiErr *domain.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, 400, apiErr.StatusCode)
	require.Equal(t, int32(1), gemini.calls.Load(), "fatal errors must not be retried")
}

func TestRouter_UnknownPromptKey(t *testing.T) {
	router := newRouter(cache.NewMemory(), &fakeProvider{name: ai.ProviderGemini})

	_, err := router.Call(context.Background(), ai.ProviderGemini, "nonexistent",
		nil, ai.FormatText, false)

	require.ErrorIs(t, err, domain.ErrInvalidParams)
}

func TestRouter_RateLimitErrorIsDistinct(t *testing.T) {
	gemini := &fakeProvider{
		name: ai.ProviderGemini,
		err:  &domain.APIError{StatusCode: 429, Message: "slow down"},
	}
	router := ai.NewRouter([]ai.Provider{gemini}, cache.NewMemory(), ai.RouterConfig{
		Retry:       retry.Config{MaxRetries: 1, InitialDelay: time.Millisecond},
		ProviderRPS: 10000,
	}, logger.NewNopLogger())

	_, err := router.Call(context.Background(), ai.ProviderGemini, ai.PromptResearch,
		[]any{"topic"}, ai.FormatText, false)

	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrRateLimit),
		"throttling must be distinguishable from generic failures")
}

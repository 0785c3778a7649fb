// Package retry provides the resilient invoker used for every external
// network call in the pipeline. It retries transient failures with
// exponential backoff and classifies provider errors into retriable and
// fatal categories.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/Papalexios/ai-seo-rank/internal/domain"
)

var (
	// ErrMaxAttemptsExceeded is returned when max retry attempts are exceeded.
	ErrMaxAttemptsExceeded = errors.New("max retry attempts exceeded")
	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled during retry")
)

const (
	// DefaultMaxRetries is the default number of attempts.
	DefaultMaxRetries = 5
	// DefaultInitialDelay is the default base backoff delay.
	DefaultInitialDelay = 5 * time.Second
	// rateLimitBuffer is added on top of a provider-supplied
	// Retry-After duration.
	rateLimitBuffer = 2 * time.Second
	// maxJitter bounds the random jitter added to every backoff.
	maxJitter = time.Second
)

// Config configures retry behavior.
type Config struct {
	// MaxRetries is the maximum number of attempts (including the
	// initial attempt).
	MaxRetries int
	// InitialDelay is the base delay; attempt n waits
	// InitialDelay * 2^n plus jitter.
	InitialDelay time.Duration
}

// DefaultConfig returns the default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   DefaultMaxRetries,
		InitialDelay: DefaultInitialDelay,
	}
}

// statusRe extracts an HTTP status code from unstructured error text,
// e.g. "got status 429" or "HTTP 503".
var statusRe = regexp.MustCompile(`\b([45]\d{2})\b`)

// StatusCode returns the HTTP status associated with err: the
// structured code from a domain.APIError when present, otherwise a
// best-effort parse of the message text. Zero means unknown.
func StatusCode(err error) int {
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode > 0 {
		return apiErr.StatusCode
	}
	if m := statusRe.FindString(err.Error()); m != "" {
		var code int
		if _, scanErr := fmt.Sscanf(m, "%d", &code); scanErr == nil {
			return code
		}
	}
	return 0
}

// fatalPatterns are message heuristics for errors that retrying cannot
// fix, used only when no structured status code is available.
var fatalPatterns = []string{
	"context length",
	"context_length",
	"maximum context",
	"token limit",
	"max_tokens",
	"invalid api key",
	"invalid_api_key",
	"incorrect api key",
	"api key not valid",
	"unauthorized",
}

// IsRetryable reports whether err should be retried. 429 and 5xx are
// retriable; any other 4xx, token-limit and invalid-key errors are
// fatal. Unclassifiable errors (network failures, timeouts) are
// treated as retriable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, p := range fatalPatterns {
		if strings.Contains(msg, p) {
			return false
		}
	}

	code := StatusCode(err)
	switch {
	case code == 429:
		return true
	case code >= 400 && code < 500:
		return false
	case code >= 500:
		return true
	}

	// No status: assume a network-level failure, which is retriable.
	return true
}

// retryAfter returns the provider-supplied backoff for rate-limit
// errors, zero when absent.
func retryAfter(err error) time.Duration {
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return apiErr.RetryAfter
	}
	return 0
}

// backoffDelay computes the wait before the next attempt. Rate-limit
// errors honor the provider's Retry-After plus a fixed buffer;
// everything else uses exponential backoff. Both get jitter.
func backoffDelay(err error, attempt int, initialDelay time.Duration) time.Duration {
	jitter := time.Duration(rand.Int63n(int64(maxJitter)))

	if StatusCode(err) == 429 {
		if ra := retryAfter(err); ra > 0 {
			return ra + rateLimitBuffer + jitter
		}
	}

	return initialDelay*(1<<attempt) + jitter
}

// Do executes fn with retry and classification. Fatal errors propagate
// immediately; retriable errors back off exponentially (or per the
// provider's Retry-After for rate limits) until cfg.MaxRetries is
// exhausted, at which point the last error is returned.
func Do[T any](ctx context.Context, cfg Config, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultInitialDelay
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return zero, fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return zero, err
		}

		// Don't sleep after the last attempt.
		if attempt == cfg.MaxRetries-1 {
			break
		}

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-time.After(backoffDelay(err, attempt, cfg.InitialDelay)):
		}
	}

	return zero, fmt.Errorf("%w after %d attempts: %w", ErrMaxAttemptsExceeded, cfg.MaxRetries, lastErr)
}

// ParseRetryAfter interprets a Retry-After header value, which may be
// either delay seconds or an HTTP-date. Zero means unparseable.
func ParseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}

	var seconds int
	if _, err := fmt.Sscanf(value, "%d", &seconds); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}

	if t, err := time.Parse(time.RFC1123, value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}

	return 0
}

package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Papalexios/ai-seo-rank/internal/domain"
	"github.com/Papalexios/ai-seo-rank/internal/retry"
)

// fastConfig keeps test backoffs in the millisecond range.
func fastConfig(maxRetries int) retry.Config {
	return retry.Config{MaxRetries: maxRetries, InitialDelay: time.Millisecond}
}

func TestDo_FatalErrorsSingleAttempt(t *testing.T) {
	fatalCodes := []int{400, 401, 403, 404, 422}

	for _, code := range fatalCodes {
		attempts := 0
		_, err := retry.Do(context.Background(), fastConfig(5), func(ctx context.Context) (string, error) {
			attempts++
			return "", &domain.APIError{StatusCode: code, Message: "request rejected"}
		})

		if err == nil {
			t.Fatalf("status %d: expected error", code)
		}
		if attempts != 1 {
			t.Errorf("status %d: attempts = %d, want 1", code, attempts)
		}
	}
}

func TestDo_RetriableErrorsExhaustRetries(t *testing.T) {
	retriableCodes := []int{429, 500, 502, 503}

	for _, code := range retriableCodes {
		attempts := 0
		_, err := retry.Do(context.Background(), fastConfig(3), func(ctx context.Context) (string, error) {
			attempts++
			return "", &domain.APIError{StatusCode: code, Message: "transient"}
		})

		if !errors.Is(err, retry.ErrMaxAttemptsExceeded) {
			t.Errorf("status %d: err = %v, want ErrMaxAttemptsExceeded", code, err)
		}
		if attempts != 3 {
			t.Errorf("status %d: attempts = %d, want 3", code, attempts)
		}
	}
}

func TestDo_SucceedsAfterTransientFailure(t *testing.T) {
	attempts := 0
	result, err := retry.Do(context.Background(), fastConfig(5), func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", &domain.APIError{StatusCode: 503, Message: "unavailable"}
		}
		return "ok", nil
	})

	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if result != "ok" {
		t.Errorf("result = %q, want %q", result, "ok")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestDo_TokenLimitMessageIsFatal(t *testing.T) {
	attempts := 0
	_, err := retry.Do(context.Background(), fastConfig(5), func(ctx context.Context) (string, error) {
		attempts++
		return "", errors.New("request exceeds the maximum context length of the model")
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestDo_InvalidKeyMessageIsFatal(t *testing.T) {
	attempts := 0
	_, err := retry.Do(context.Background(), fastConfig(5), func(ctx context.Context) (string, error) {
		attempts++
		return "", errors.New("invalid API key provided")
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestDo_NetworkErrorIsRetriable(t *testing.T) {
	attempts := 0
	_, err := retry.Do(context.Background(), fastConfig(2), func(ctx context.Context) (string, error) {
		attempts++
		return "", errors.New("dial tcp: connection refused")
	})

	if !errors.Is(err, retry.ErrMaxAttemptsExceeded) {
		t.Errorf("err = %v, want ErrMaxAttemptsExceeded", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestDo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	_, err := retry.Do(ctx, fastConfig(5), func(ctx context.Context) (string, error) {
		attempts++
		return "", errors.New("should not run")
	})

	if !errors.Is(err, retry.ErrContextCancelled) {
		t.Errorf("err = %v, want ErrContextCancelled", err)
	}
	if attempts != 0 {
		t.Errorf("attempts = %d, want 0", attempts)
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "structured api error",
			err:  &domain.APIError{StatusCode: 429, Message: "slow down"},
			want: 429,
		},
		{
			name: "wrapped api error",
			err:  errors.Join(errors.New("call failed"), &domain.APIError{StatusCode: 503}),
			want: 503,
		},
		{
			name: "status in message text",
			err:  errors.New("upstream returned HTTP 502"),
			want: 502,
		},
		{
			name: "no status",
			err:  errors.New("connection reset by peer"),
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retry.StatusCode(tt.err); got != tt.want {
				t.Errorf("StatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDo_RateLimitHonorsRetryAfter(t *testing.T) {
	attempts := 0
	start := time.Now()
	_, err := retry.Do(context.Background(), retry.Config{MaxRetries: 2, InitialDelay: time.Millisecond},
		func(ctx context.Context) (string, error) {
			attempts++
			if attempts == 1 {
				return "", &domain.APIError{StatusCode: 429, Message: "rate limited", RetryAfter: 50 * time.Millisecond}
			}
			return "ok", nil
		})

	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	// Retry-After (50ms) + buffer (2s) must have elapsed.
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("elapsed = %v, want >= 50ms", elapsed)
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{name: "seconds", value: "30", want: 30 * time.Second},
		{name: "zero seconds", value: "0", want: 0},
		{name: "empty", value: "", want: 0},
		{name: "garbage", value: "not-a-duration", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retry.ParseRetryAfter(tt.value); got != tt.want {
				t.Errorf("ParseRetryAfter(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}

	t.Run("http date", func(t *testing.T) {
		future := time.Now().Add(90 * time.Second).UTC().Format(time.RFC1123)
		got := retry.ParseRetryAfter(future)
		if got < 80*time.Second || got > 90*time.Second {
			t.Errorf("ParseRetryAfter(http-date) = %v, want ~90s", got)
		}
	})
}

package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors forming the pipeline error taxonomy. Stage-local
// errors are converted to item status at the orchestrator boundary and
// never abort sibling items; only ErrInvalidParams aborts a batch
// before any item starts.
var (
	// ErrInvalidParams indicates malformed or missing configuration.
	ErrInvalidParams = errors.New("invalid parameters")

	// ErrAuthFailed indicates no usable provider credential is configured.
	ErrAuthFailed = errors.New("no configured AI provider available")

	// ErrEmptyResponse indicates a provider returned no usable content.
	ErrEmptyResponse = errors.New("provider returned empty response")

	// ErrRateLimit distinguishes throttling from hard failures.
	ErrRateLimit = errors.New("rate limited by provider")

	// ErrNoJSONFound indicates no JSON object or array was present in
	// the model output.
	ErrNoJSONFound = errors.New("no JSON found in response")

	// ErrUploadExhausted indicates all image-publishing layers failed.
	ErrUploadExhausted = errors.New("all image upload strategies failed")

	// ErrItemStopped indicates the item was cancelled by the user.
	ErrItemStopped = errors.New("stopped by user")
)

// APIError is a structured error surfaced by provider and HTTP
// clients. Retry classification inspects StatusCode first and falls
// back to message heuristics only for unstructured upstream errors.
type APIError struct {
	StatusCode int
	Message    string

	// RetryAfter is the provider-supplied backoff hint for 429
	// responses, zero when absent.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error: %s", e.Message)
}

// Is lets APIError with status 429 match ErrRateLimit.
func (e *APIError) Is(target error) bool {
	return target == ErrRateLimit && e.StatusCode == 429
}

// WordCountKind tags which quality-gate bound was violated.
type WordCountKind string

const (
	WordCountTooShort WordCountKind = "too_short"
	WordCountTooLong  WordCountKind = "too_long"
)

// WordCountError is the quality-gate rejection. It carries the
// offending content so the item can be reviewed and published manually.
type WordCountError struct {
	Kind    WordCountKind
	Count   int
	Min     int
	Max     int
	Content string
}

func (e *WordCountError) Error() string {
	if e.Kind == WordCountTooShort {
		return fmt.Sprintf("content too short: %d words (minimum %d)", e.Count, e.Min)
	}
	return fmt.Sprintf("content too long: %d words (maximum %d)", e.Count, e.Max)
}

// RepairError is raised when both local and AI-assisted JSON repair
// failed. It retains both raw texts for diagnosis.
type RepairError struct {
	ParseErr   error
	RepairErr  error
	Raw        string
	RepairedRaw string
}

func (e *RepairError) Error() string {
	return fmt.Sprintf("JSON unrecoverable: parse failed (%v), AI repair failed (%v)", e.ParseErr, e.RepairErr)
}

func (e *RepairError) Unwrap() error {
	return e.ParseErr
}

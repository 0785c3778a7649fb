package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Papalexios/ai-seo-rank/internal/domain"
	"github.com/Papalexios/ai-seo-rank/internal/httpclient"
	"github.com/Papalexios/ai-seo-rank/internal/retry"
)

const (
	anthropicBaseURL      = "https://api.anthropic.com"
	anthropicDefaultModel = "claude-sonnet-4-20250514"
	anthropicVersion      = "2023-06-01"
	anthropicTimeout      = 120 * time.Second
	anthropicMaxTokens    = 8192
)

// Anthropic is the Anthropic Messages API adapter.
type Anthropic struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewAnthropic creates an Anthropic provider. baseURL and model may be
// empty to use defaults.
func NewAnthropic(baseURL, apiKey, model string) *Anthropic {
	if baseURL == "" {
		baseURL = anthropicBaseURL
	}
	if model == "" {
		model = anthropicDefaultModel
	}
	return &Anthropic{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client:  httpclient.New(anthropicTimeout),
	}
}

func (a *Anthropic) Name() string { return ProviderAnthropic }

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *Anthropic) Generate(ctx context.Context, req Request) (string, error) {
	prompt := req.Prompt
	// The Messages API has no structured-output switch; steer JSON
	// responses through the prompt instead.
	if req.Format == FormatJSON {
		prompt += "\n\nRespond with valid JSON only, no prose and no code fences."
	}

	payload := map[string]any{
		"model":      a.model,
		"max_tokens": anthropicMaxTokens,
		"messages": []chatMessage{
			{Role: "user", Content: prompt},
		},
	}
	if req.System != "" {
		payload["system"] = req.System
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal anthropic payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create anthropic request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("anthropic request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &domain.APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("anthropic: %s", string(respBody)),
			RetryAfter: retry.ParseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var decoded anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode anthropic response: %w", err)
	}
	if decoded.Error != nil {
		return "", &domain.APIError{Message: "anthropic: " + decoded.Error.Message}
	}

	var text string
	for _, block := range decoded.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}

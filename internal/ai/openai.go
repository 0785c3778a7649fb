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
	openaiBaseURL      = "https://api.openai.com"
	openaiDefaultModel = "gpt-4o-mini"
	openaiTimeout      = 120 * time.Second
)

// OpenAI is the OpenAI chat completions adapter.
type OpenAI struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewOpenAI creates an OpenAI provider. baseURL and model may be empty
// to use defaults.
func NewOpenAI(baseURL, apiKey, model string) *OpenAI {
	if baseURL == "" {
		baseURL = openaiBaseURL
	}
	if model == "" {
		model = openaiDefaultModel
	}
	return &OpenAI{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client:  httpclient.New(openaiTimeout),
	}
}

func (o *OpenAI) Name() string { return ProviderOpenAI }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (o *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	text, err := chatCompletion(ctx, o.client, o.baseURL+"/v1/chat/completions", o.apiKey, o.model, req, "openai")
	if err != nil {
		return "", err
	}
	return text, nil
}

// chatCompletion issues an OpenAI-compatible chat completions request.
// Shared by the OpenAI and OpenRouter adapters.
func chatCompletion(ctx context.Context, client *http.Client, endpoint, apiKey, model string, req Request, label string) (string, error) {
	messages := []chatMessage{}
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	payload := map[string]any{
		"model":    model,
		"messages": messages,
	}
	if req.Format == FormatJSON {
		payload["response_format"] = map[string]string{"type": "json_object"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal %s payload: %w", label, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create %s request: %w", label, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%s request: %w", label, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &domain.APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("%s: %s", label, string(respBody)),
			RetryAfter: retry.ParseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode %s response: %w", label, err)
	}
	if decoded.Error != nil {
		return "", &domain.APIError{Message: fmt.Sprintf("%s: %s", label, decoded.Error.Message)}
	}
	if len(decoded.Choices) == 0 {
		return "", nil
	}
	return decoded.Choices[0].Message.Content, nil
}

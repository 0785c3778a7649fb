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
	geminiBaseURL      = "https://generativelanguage.googleapis.com"
	geminiDefaultModel = "gemini-2.5-flash"
	geminiTimeout      = 120 * time.Second
)

// Gemini is the Google Generative Language API adapter.
type Gemini struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewGemini creates a Gemini provider. baseURL and model may be empty
// to use defaults.
func NewGemini(baseURL, apiKey, model string) *Gemini {
	if baseURL == "" {
		baseURL = geminiBaseURL
	}
	if model == "" {
		model = geminiDefaultModel
	}
	return &Gemini{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client:  httpclient.New(geminiTimeout),
	}
}

func (g *Gemini) Name() string { return ProviderGemini }

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate executes one generateContent call. Structured-output mode
// sets the JSON response MIME type; grounding attaches the search tool.
func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	payload := map[string]any{
		"contents": []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}},
		},
	}
	if req.System != "" {
		payload["system_instruction"] = geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}
	if req.Format == FormatJSON {
		payload["generationConfig"] = map[string]any{"responseMimeType": "application/json"}
	}
	if req.Grounding {
		payload["tools"] = []map[string]any{{"google_search": map[string]any{}}}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal gemini payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, g.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create gemini request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &domain.APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("gemini: %s", string(respBody)),
			RetryAfter: retry.ParseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var decoded geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}
	if decoded.Error != nil {
		return "", &domain.APIError{StatusCode: decoded.Error.Code, Message: decoded.Error.Message}
	}

	var text string
	for _, cand := range decoded.Candidates {
		for _, part := range cand.Content.Parts {
			text += part.Text
		}
	}
	return text, nil
}

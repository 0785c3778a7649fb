package ai

import (
	"bytes"
	"context"
	"encoding/base64"
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
	geminiImageDefaultModel = "gemini-2.5-flash-image"
	geminiImageTimeout      = 120 * time.Second
)

// GeminiImage generates in-article images through the Gemini image
// model.
type GeminiImage struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewGeminiImage creates a Gemini image generator. baseURL and model
// may be empty to use defaults.
func NewGeminiImage(baseURL, apiKey, model string) *GeminiImage {
	if baseURL == "" {
		baseURL = geminiBaseURL
	}
	if model == "" {
		model = geminiImageDefaultModel
	}
	return &GeminiImage{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client:  httpclient.New(geminiImageTimeout),
	}
}

type geminiImageResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				InlineData *struct {
					MimeType string `json:"mimeType"`
					Data     string `json:"data"`
				} `json:"inlineData"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// GenerateImage renders one image for the prompt and returns its raw
// bytes.
func (g *GeminiImage) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	payload := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]any{{"text": prompt}}},
		},
		"generationConfig": map[string]any{
			"responseModalities": []string{"IMAGE"},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal image payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create image request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &domain.APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("gemini image: %s", string(respBody)),
			RetryAfter: retry.ParseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var decoded geminiImageResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode image response: %w", err)
	}

	for _, candidate := range decoded.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return nil, fmt.Errorf("decode image data: %w", err)
			}
			return data, nil
		}
	}

	return nil, fmt.Errorf("%w: no image data in response", domain.ErrEmptyResponse)
}

// Package serp provides the search-provider client used by the
// reference validation engine and the video finder.
package serp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Papalexios/ai-seo-rank/internal/domain"
	"github.com/Papalexios/ai-seo-rank/internal/httpclient"
	"github.com/Papalexios/ai-seo-rank/internal/logger"
	"github.com/Papalexios/ai-seo-rank/internal/retry"
)

const (
	defaultBaseURL = "https://google.serper.dev"
	searchTimeout  = 15 * time.Second
)

// OrganicResult is one organic search hit.
type OrganicResult struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Position int    `json:"position"`
}

// VideoResult is one video search hit.
type VideoResult struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Channel  string `json:"channel"`
	Duration string `json:"duration"`
	Snippet  string `json:"snippet"`
}

// Results is a search response.
type Results struct {
	Organic []OrganicResult `json:"organic"`
	Videos  []VideoResult   `json:"videos"`
}

// Options tunes a single search call.
type Options struct {
	// Num caps the number of results; zero uses the provider default.
	Num int
	// Videos switches to the video search endpoint.
	Videos bool
}

// Client is a Serper-style SERP API client.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  logger.Logger
}

// NewClient creates a SERP client. baseURL may be empty to use the
// default endpoint.
func NewClient(baseURL, apiKey string, log logger.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: search API key is required", domain.ErrInvalidParams)
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  httpclient.New(searchTimeout),
		logger:  log,
	}, nil
}

// Search issues one query through the resilient invoker. An empty
// result set returns ErrNoResults; it is checked after the retry loop
// because an empty response is a valid answer, not a transient fault.
func (c *Client) Search(ctx context.Context, query string, opts Options) (Results, error) {
	results, err := retry.Do(ctx, retry.Config{MaxRetries: 3, InitialDelay: 2 * time.Second},
		func(ctx context.Context) (Results, error) {
			return c.doSearch(ctx, query, opts)
		})
	if err != nil {
		return results, err
	}
	if len(results.Organic) == 0 && len(results.Videos) == 0 {
		return results, fmt.Errorf("%w: %q", ErrNoResults, query)
	}
	return results, nil
}

func (c *Client) doSearch(ctx context.Context, query string, opts Options) (Results, error) {
	endpoint := c.baseURL + "/search"
	if opts.Videos {
		endpoint = c.baseURL + "/videos"
	}

	payload := map[string]any{"q": query}
	if opts.Num > 0 {
		payload["num"] = opts.Num
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Results{}, fmt.Errorf("marshal search payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Results{}, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return Results{}, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return Results{}, &domain.APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("search API: %s", string(respBody)),
			RetryAfter: retry.ParseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var results Results
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return Results{}, fmt.Errorf("decode search response: %w", err)
	}

	c.logger.Debug("search completed",
		logger.String("query", query),
		logger.Bool("videos", opts.Videos),
		logger.Int("organic", len(results.Organic)),
		logger.Int("video_results", len(results.Videos)),
		logger.Duration("duration", time.Since(start)),
	)

	return results, nil
}

// ErrNoResults indicates the provider returned an empty result set.
var ErrNoResults = errors.New("search returned no results")

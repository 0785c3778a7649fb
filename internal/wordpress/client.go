// Package wordpress is the CMS client used by the publish stage. It
// speaks the WP REST API with application-password basic auth.
package wordpress

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Papalexios/ai-seo-rank/internal/domain"
	"github.com/Papalexios/ai-seo-rank/internal/httpclient"
	"github.com/Papalexios/ai-seo-rank/internal/logger"
	"github.com/Papalexios/ai-seo-rank/internal/retry"
)

const (
	postTimeout  = 30 * time.Second
	mediaTimeout = 90 * time.Second
)

// Post is the payload for creating or updating a post.
type Post struct {
	Title           string `json:"title"`
	Content         string `json:"content"`
	Slug            string `json:"slug,omitempty"`
	Excerpt         string `json:"excerpt,omitempty"`
	Status          string `json:"status,omitempty"`
	FeaturedMediaID int    `json:"featured_media,omitempty"`
}

// PostResult identifies a post on the destination site.
type PostResult struct {
	ID   int    `json:"id"`
	Link string `json:"link"`
	Slug string `json:"slug"`
}

// MediaResult identifies an uploaded media item.
type MediaResult struct {
	ID        int    `json:"id"`
	SourceURL string `json:"source_url"`
}

// Client talks to one WordPress site.
type Client struct {
	baseURL     string
	authHeader  string
	postClient  *http.Client
	mediaClient *http.Client
	logger      logger.Logger
}

// NewClient creates a WordPress client. username and appPassword form
// the basic-auth credential pair.
func NewClient(baseURL, username, appPassword string, log logger.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: wordpress URL is required", domain.ErrInvalidParams)
	}
	if username == "" || appPassword == "" {
		return nil, fmt.Errorf("%w: wordpress username and application password are required", domain.ErrInvalidParams)
	}

	credential := base64.StdEncoding.EncodeToString([]byte(username + ":" + appPassword))

	return &Client{
		baseURL:     baseURL,
		authHeader:  "Basic " + credential,
		postClient:  httpclient.New(postTimeout),
		mediaClient: httpclient.New(mediaTimeout),
		logger:      log,
	}, nil
}

// CreatePost publishes a new post.
func (c *Client) CreatePost(ctx context.Context, post Post) (PostResult, error) {
	if post.Status == "" {
		post.Status = "publish"
	}
	return c.writePost(ctx, c.baseURL+"/wp-json/wp/v2/posts", post)
}

// UpdatePost overwrites an existing post in place.
func (c *Client) UpdatePost(ctx context.Context, postID int, post Post) (PostResult, error) {
	return c.writePost(ctx, fmt.Sprintf("%s/wp-json/wp/v2/posts/%d", c.baseURL, postID), post)
}

func (c *Client) writePost(ctx context.Context, endpoint string, post Post) (PostResult, error) {
	payload, err := json.Marshal(post)
	if err != nil {
		return PostResult{}, fmt.Errorf("marshal post payload: %w", err)
	}

	return retry.Do(ctx, retry.Config{MaxRetries: 3, InitialDelay: 3 * time.Second},
		func(ctx context.Context) (PostResult, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
			if err != nil {
				return PostResult{}, fmt.Errorf("create post request: %w", err)
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", c.authHeader)

			start := time.Now()
			resp, err := c.postClient.Do(req)
			if err != nil {
				return PostResult{}, fmt.Errorf("post request: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
				return PostResult{}, c.apiError(resp, "post write")
			}

			var result PostResult
			if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
				return PostResult{}, fmt.Errorf("decode post response: %w", err)
			}

			c.logger.Info("post written",
				logger.Int("post_id", result.ID),
				logger.String("slug", result.Slug),
				logger.String("link", result.Link),
				logger.Duration("duration", time.Since(start)),
			)
			return result, nil
		})
}

// FindPostBySlug looks up an existing post. A missing slug is reported
// with found=false, not an error.
func (c *Client) FindPostBySlug(ctx context.Context, slug string) (PostResult, bool, error) {
	endpoint := fmt.Sprintf("%s/wp-json/wp/v2/posts?slug=%s&status=publish,draft", c.baseURL, url.QueryEscape(slug))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return PostResult{}, false, fmt.Errorf("create lookup request: %w", err)
	}
	req.Header.Set("Authorization", c.authHeader)

	resp, err := c.postClient.Do(req)
	if err != nil {
		return PostResult{}, false, fmt.Errorf("lookup request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return PostResult{}, false, c.apiError(resp, "post lookup")
	}

	var posts []PostResult
	if err := json.NewDecoder(resp.Body).Decode(&posts); err != nil {
		return PostResult{}, false, fmt.Errorf("decode lookup response: %w", err)
	}
	if len(posts) == 0 {
		return PostResult{}, false, nil
	}
	return posts[0], true, nil
}

// UploadMedia pushes image bytes to the native media endpoint. This is
// the first rung of the image fallback chain; failures here are
// expected on restrictive hosts and handled by the caller.
func (c *Client) UploadMedia(ctx context.Context, filename, contentType string, data []byte) (MediaResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/wp-json/wp/v2/media", bytes.NewReader(data))
	if err != nil {
		return MediaResult{}, fmt.Errorf("create media request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filename))
	req.Header.Set("Authorization", c.authHeader)

	start := time.Now()
	resp, err := c.mediaClient.Do(req)
	if err != nil {
		return MediaResult{}, fmt.Errorf("media upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return MediaResult{}, c.apiError(resp, "media upload")
	}

	var result MediaResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return MediaResult{}, fmt.Errorf("decode media response: %w", err)
	}

	c.logger.Info("media uploaded",
		logger.Int("media_id", result.ID),
		logger.String("source_url", result.SourceURL),
		logger.Int("bytes", len(data)),
		logger.Duration("duration", time.Since(start)),
	)
	return result, nil
}

// wpError is the REST API error envelope.
type wpError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *Client) apiError(resp *http.Response, operation string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	message := string(body)
	var decoded wpError
	if err := json.Unmarshal(body, &decoded); err == nil && decoded.Message != "" {
		message = decoded.Message
	}

	c.logger.Warn("wordpress API error",
		logger.String("operation", operation),
		logger.Int("status_code", resp.StatusCode),
		logger.String("message", message),
	)

	return &domain.APIError{
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("wordpress %s: %s", operation, message),
		RetryAfter: retry.ParseRetryAfter(resp.Header.Get("Retry-After")),
	}
}

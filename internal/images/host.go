package images

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Papalexios/ai-seo-rank/internal/domain"
	"github.com/Papalexios/ai-seo-rank/internal/httpclient"
	"github.com/Papalexios/ai-seo-rank/internal/logger"
)

const hostTimeout = 60 * time.Second

// HostConfig points at the third-party image host.
type HostConfig struct {
	Endpoint string
	APIKey   string
}

// HostClient uploads to a third-party image host. It needs no
// destination credentials, so it works even when the destination
// rejects uploads entirely.
type HostClient struct {
	cfg    HostConfig
	client *http.Client
	logger logger.Logger
}

// NewHostClient creates a third-party host uploader.
func NewHostClient(cfg HostConfig, log logger.Logger) (*HostClient, error) {
	if cfg.Endpoint == "" || cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: image host endpoint and API key are required", domain.ErrInvalidParams)
	}
	return &HostClient{
		cfg:    cfg,
		client: httpclient.New(hostTimeout),
		logger: log,
	}, nil
}

type hostResponse struct {
	Data struct {
		URL string `json:"url"`
	} `json:"data"`
	Success bool `json:"success"`
	Status  int  `json:"status_code"`
}

// Host uploads the image as a base64 form field and returns the
// public URL.
func (h *HostClient) Host(ctx context.Context, filename string, data []byte) (string, error) {
	form := url.Values{}
	form.Set("key", h.cfg.APIKey)
	form.Set("name", filename)
	form.Set("image", base64.StdEncoding.EncodeToString(data))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create host request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("host request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", &domain.APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("image host: %s", string(body)),
		}
	}

	var decoded hostResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode host response: %w", err)
	}
	if !decoded.Success || decoded.Data.URL == "" {
		return "", fmt.Errorf("image host rejected upload (status %d)", decoded.Status)
	}

	h.logger.Debug("third-party host upload completed",
		logger.String("filename", filename),
		logger.String("url", decoded.Data.URL),
		logger.Duration("duration", time.Since(start)),
	)
	return decoded.Data.URL, nil
}

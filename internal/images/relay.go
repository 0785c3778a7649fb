package images

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
	"github.com/Papalexios/ai-seo-rank/internal/logger"
)

const relayTimeout = 90 * time.Second

// RelayConfig points at the intermediary upload service and carries
// the destination credentials it uses server-side.
type RelayConfig struct {
	Endpoint       string
	DestinationURL string
	Username       string
	AppPassword    string
}

// RelayClient uploads through an intermediary that performs the
// destination upload on its side, bypassing client-side host
// restrictions.
type RelayClient struct {
	cfg    RelayConfig
	client *http.Client
	logger logger.Logger
}

// NewRelayClient creates a relay uploader.
func NewRelayClient(cfg RelayConfig, log logger.Logger) (*RelayClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: relay endpoint is required", domain.ErrInvalidParams)
	}
	return &RelayClient{
		cfg:    cfg,
		client: httpclient.New(relayTimeout),
		logger: log,
	}, nil
}

type relayRequest struct {
	Destination string `json:"destination"`
	Username    string `json:"username"`
	AppPassword string `json:"app_password"`
	Filename    string `json:"filename"`
	Data        string `json:"data"`
}

type relayResponse struct {
	URL   string `json:"url"`
	Error string `json:"error,omitempty"`
}

// Relay sends the image to the intermediary and returns the hosted
// URL. No media ID is available through this path.
func (r *RelayClient) Relay(ctx context.Context, filename string, data []byte) (string, error) {
	payload, err := json.Marshal(relayRequest{
		Destination: r.cfg.DestinationURL,
		Username:    r.cfg.Username,
		AppPassword: r.cfg.AppPassword,
		Filename:    filename,
		Data:        base64.StdEncoding.EncodeToString(data),
	})
	if err != nil {
		return "", fmt.Errorf("marshal relay payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("relay request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", &domain.APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("relay service: %s", string(body)),
		}
	}

	var decoded relayResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode relay response: %w", err)
	}
	if decoded.Error != "" {
		return "", fmt.Errorf("relay service: %s", decoded.Error)
	}
	if decoded.URL == "" {
		return "", fmt.Errorf("relay service returned no URL")
	}

	r.logger.Debug("relay upload completed",
		logger.String("filename", filename),
		logger.String("url", decoded.URL),
		logger.Duration("duration", time.Since(start)),
	)
	return decoded.URL, nil
}

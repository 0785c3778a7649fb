// Package images implements the three-layer image publishing fallback
// chain: direct media upload, relay upload, third-party host. An
// article never ships with a broken image reference; when every layer
// fails the containing item's publish is aborted.
package images

import (
	"context"
	"errors"
	"fmt"

	"github.com/Papalexios/ai-seo-rank/internal/domain"
	"github.com/Papalexios/ai-seo-rank/internal/logger"
	"github.com/Papalexios/ai-seo-rank/internal/wordpress"
)

const defaultContentType = "image/webp"

// DirectUploader is the destination's native media endpoint. Only this
// layer yields a media ID.
type DirectUploader interface {
	UploadMedia(ctx context.Context, filename, contentType string, data []byte) (wordpress.MediaResult, error)
}

// RelayUploader performs the destination upload server-side, for hosts
// that reject direct client uploads.
type RelayUploader interface {
	Relay(ctx context.Context, filename string, data []byte) (string, error)
}

// HostUploader stores the image on a third-party host with no
// destination credentials. Last resort.
type HostUploader interface {
	Host(ctx context.Context, filename string, data []byte) (string, error)
}

// Chain runs the ordered fallback strategies.
type Chain struct {
	direct  DirectUploader
	relay   RelayUploader
	host    HostUploader
	observe func(layer string)
	logger  logger.Logger
}

// NewChain builds a fallback chain. relay and host may be nil when the
// corresponding service is not configured; nil layers are skipped.
func NewChain(direct DirectUploader, relay RelayUploader, host HostUploader, log logger.Logger) *Chain {
	return &Chain{direct: direct, relay: relay, host: host, logger: log}
}

// WithObserver attaches a hook called with the layer that served each
// upload ("direct", "relay", "host") or "exhausted" when all failed.
func (c *Chain) WithObserver(fn func(layer string)) *Chain {
	c.observe = fn
	return c
}

func (c *Chain) report(layer string) {
	if c.observe != nil {
		c.observe(layer)
	}
}

// Publish attempts each strategy in order until one yields a hosted
// URL. All layers failing returns ErrUploadExhausted carrying every
// layer's error.
func (c *Chain) Publish(ctx context.Context, filename string, data []byte) (domain.UploadResult, error) {
	if len(data) == 0 {
		return domain.UploadResult{}, fmt.Errorf("%w: image data is empty", domain.ErrInvalidParams)
	}

	var failures []error

	if c.direct != nil {
		media, err := c.direct.UploadMedia(ctx, filename, defaultContentType, data)
		if err == nil {
			c.report("direct")
			return domain.UploadResult{URL: media.SourceURL, MediaID: &media.ID}, nil
		}
		failures = append(failures, fmt.Errorf("direct upload: %w", err))
		c.logger.Warn("direct media upload failed, trying relay",
			logger.String("filename", filename),
			logger.Error(err),
		)
	}

	if c.relay != nil {
		url, err := c.relay.Relay(ctx, filename, data)
		if err == nil {
			c.report("relay")
			return domain.UploadResult{URL: url}, nil
		}
		failures = append(failures, fmt.Errorf("relay upload: %w", err))
		c.logger.Warn("relay upload failed, trying third-party host",
			logger.String("filename", filename),
			logger.Error(err),
		)
	}

	if c.host != nil {
		url, err := c.host.Host(ctx, filename, data)
		if err == nil {
			c.report("host")
			return domain.UploadResult{URL: url}, nil
		}
		failures = append(failures, fmt.Errorf("host upload: %w", err))
	}

	c.logger.Error("all image upload strategies failed",
		logger.String("filename", filename),
		logger.Int("strategies_attempted", len(failures)),
		logger.NamedError("failures", errors.Join(failures...)),
	)
	c.report("exhausted")
	return domain.UploadResult{}, fmt.Errorf("%w: %w", domain.ErrUploadExhausted, errors.Join(failures...))
}

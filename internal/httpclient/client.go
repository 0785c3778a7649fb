// Package httpclient provides shared HTTP client construction for the
// pipeline's external collaborators (AI providers, SERP, CMS, relays).
package httpclient

import (
	"net/http"
	"time"
)

const (
	// DefaultTimeout is the default timeout for direct HTTP requests.
	DefaultTimeout = 30 * time.Second

	// RelayTimeout is the longer timeout used for proxy/relay calls,
	// which add a server-side hop.
	RelayTimeout = 60 * time.Second

	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultIdleConnTimeout     = 90 * time.Second
	defaultTLSHandshakeTimeout = 10 * time.Second
)

// New creates an HTTP client with the pipeline's standard transport
// tuning and the given overall request timeout. A zero timeout falls
// back to DefaultTimeout.
func New(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        defaultMaxIdleConns,
			MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
			IdleConnTimeout:     defaultIdleConnTimeout,
			TLSHandshakeTimeout: defaultTLSHandshakeTimeout,
		},
	}
}

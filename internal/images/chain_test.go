package images_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Papalexios/ai-seo-rank/internal/domain"
	"github.com/Papalexios/ai-seo-rank/internal/images"
	"github.com/Papalexios/ai-seo-rank/internal/logger"
	"github.com/Papalexios/ai-seo-rank/internal/wordpress"
)

type fakeDirect struct {
	media wordpress.MediaResult
	err   error
	calls int
}

func (f *fakeDirect) UploadMedia(ctx context.Context, filename, contentType string, data []byte) (wordpress.MediaResult, error) {
	f.calls++
	return f.media, f.err
}

type fakeRelay struct {
	url   string
	err   error
	calls int
}

func (f *fakeRelay) Relay(ctx context.Context, filename string, data []byte) (string, error) {
	f.calls++
	return f.url, f.err
}

type fakeHost struct {
	url   string
	err   error
	calls int
}

func (f *fakeHost) Host(ctx context.Context, filename string, data []byte) (string, error) {
	f.calls++
	return f.url, f.err
}

var imageData = []byte{0x52, 0x49, 0x46, 0x46}

func TestChain_DirectSucceedsYieldsMediaID(t *testing.T) {
	direct := &fakeDirect{media: wordpress.MediaResult{ID: 12, SourceURL: "https://site/img.webp"}}
	relay := &fakeRelay{url: "https://relay/img.webp"}
	host := &fakeHost{url: "https://host/img.webp"}

	chain := images.NewChain(direct, relay, host, logger.NewNopLogger())
	result, err := chain.Publish(context.Background(), "img.webp", imageData)

	require.NoError(t, err)
	assert.Equal(t, "https://site/img.webp", result.URL)
	require.NotNil(t, result.MediaID)
	assert.Equal(t, 12, *result.MediaID)
	assert.Equal(t, 0, relay.calls, "later layers untouched on success")
	assert.Equal(t, 0, host.calls)
}

func TestChain_DirectFailsRelayUsed(t *testing.T) {
	direct := &fakeDirect{err: &domain.APIError{StatusCode: 403, Message: "uploads disabled"}}
	relay := &fakeRelay{url: "https://relay/img.webp"}
	host := &fakeHost{url: "https://host/img.webp"}

	chain := images.NewChain(direct, relay, host, logger.NewNopLogger())
	result, err := chain.Publish(context.Background(), "img.webp", imageData)

	require.NoError(t, err)
	assert.Equal(t, "https://relay/img.webp", result.URL)
	assert.Nil(t, result.MediaID, "only direct upload yields a media ID")
	assert.Equal(t, 1, direct.calls)
	assert.Equal(t, 0, host.calls)
}

func TestChain_HostIsLastResort(t *testing.T) {
	direct := &fakeDirect{err: errors.New("direct down")}
	relay := &fakeRelay{err: errors.New("relay down")}
	host := &fakeHost{url: "https://host/img.webp"}

	chain := images.NewChain(direct, relay, host, logger.NewNopLogger())
	result, err := chain.Publish(context.Background(), "img.webp", imageData)

	require.NoError(t, err)
	assert.Equal(t, "https://host/img.webp", result.URL)
	assert.Nil(t, result.MediaID)
}

func TestChain_AllFailExhausted(t *testing.T) {
	direct := &fakeDirect{err: errors.New("direct down")}
	relay := &fakeRelay{err: errors.New("relay down")}
	host := &fakeHost{err: errors.New("host down")}

	chain := images.NewChain(direct, relay, host, logger.NewNopLogger())
	_, err := chain.Publish(context.Background(), "img.webp", imageData)

	require.ErrorIs(t, err, domain.ErrUploadExhausted)
	assert.Contains(t, err.Error(), "direct down")
	assert.Contains(t, err.Error(), "relay down")
	assert.Contains(t, err.Error(), "host down")
}

func TestChain_NilLayersSkipped(t *testing.T) {
	host := &fakeHost{url: "https://host/img.webp"}

	chain := images.NewChain(nil, nil, host, logger.NewNopLogger())
	result, err := chain.Publish(context.Background(), "img.webp", imageData)

	require.NoError(t, err)
	assert.Equal(t, "https://host/img.webp", result.URL)
}

func TestChain_EmptyData(t *testing.T) {
	chain := images.NewChain(&fakeDirect{}, nil, nil, logger.NewNopLogger())

	_, err := chain.Publish(context.Background(), "img.webp", nil)
	require.ErrorIs(t, err, domain.ErrInvalidParams)
}

func TestRelayClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "https://dest.example.com", req["destination"])
		assert.Equal(t, base64.StdEncoding.EncodeToString(imageData), req["data"])

		json.NewEncoder(w).Encode(map[string]string{"url": "https://dest.example.com/wp-content/uploads/img.webp"})
	}))
	defer srv.Close()

	client, err := images.NewRelayClient(images.RelayConfig{
		Endpoint:       srv.URL,
		DestinationURL: "https://dest.example.com",
		Username:       "editor",
		AppPassword:    "secret",
	}, logger.NewNopLogger())
	require.NoError(t, err)

	url, err := client.Relay(context.Background(), "img.webp", imageData)
	require.NoError(t, err)
	assert.Equal(t, "https://dest.example.com/wp-content/uploads/img.webp", url)
}

func TestRelayClient_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"error": "destination refused credentials"})
	}))
	defer srv.Close()

	client, err := images.NewRelayClient(images.RelayConfig{Endpoint: srv.URL}, logger.NewNopLogger())
	require.NoError(t, err)

	_, err = client.Relay(context.Background(), "img.webp", imageData)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "destination refused credentials")
}

func TestHostClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "test-key", r.FormValue("key"))
		assert.NotEmpty(t, r.FormValue("image"))

		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]string{"url": "https://cdn.host.example/img.webp"},
		})
	}))
	defer srv.Close()

	client, err := images.NewHostClient(images.HostConfig{Endpoint: srv.URL, APIKey: "test-key"}, logger.NewNopLogger())
	require.NoError(t, err)

	url, err := client.Host(context.Background(), "img.webp", imageData)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.host.example/img.webp", url)
}

func TestHostClient_Rejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": false, "status_code": 400})
	}))
	defer srv.Close()

	client, err := images.NewHostClient(images.HostConfig{Endpoint: srv.URL, APIKey: "k"}, logger.NewNopLogger())
	require.NoError(t, err)

	_, err = client.Host(context.Background(), "img.webp", imageData)
	require.Error(t, err)
}

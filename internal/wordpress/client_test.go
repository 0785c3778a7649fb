package wordpress_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Papalexios/ai-seo-rank/internal/domain"
	"github.com/Papalexios/ai-seo-rank/internal/logger"
	"github.com/Papalexios/ai-seo-rank/internal/wordpress"
)

func newClient(t *testing.T, baseURL string) *wordpress.Client {
	t.Helper()
	c, err := wordpress.NewClient(baseURL, "editor", "app pass word", logger.NewNopLogger())
	require.NoError(t, err)
	return c
}

func TestNewClient_Validation(t *testing.T) {
	log := logger.NewNopLogger()

	_, err := wordpress.NewClient("", "u", "p", log)
	assert.ErrorIs(t, err, domain.ErrInvalidParams)

	_, err = wordpress.NewClient("https://site.example.com", "", "p", log)
	assert.ErrorIs(t, err, domain.ErrInvalidParams)

	_, err = wordpress.NewClient("https://site.example.com", "u", "", log)
	assert.ErrorIs(t, err, domain.ErrInvalidParams)
}

func TestCreatePost(t *testing.T) {
	wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("editor:app pass word"))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/wp-json/wp/v2/posts", r.URL.Path)
		assert.Equal(t, wantAuth, r.Header.Get("Authorization"))

		var post wordpress.Post
		require.NoError(t, json.NewDecoder(r.Body).Decode(&post))
		assert.Equal(t, "Best Budget Laptops", post.Title)
		assert.Equal(t, "publish", post.Status, "status defaults to publish")

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(wordpress.PostResult{ID: 42, Slug: "best-budget-laptops", Link: "https://site/best-budget-laptops"})
	}))
	defer srv.Close()

	result, err := newClient(t, srv.URL).CreatePost(context.Background(), wordpress.Post{
		Title:   "Best Budget Laptops",
		Content: "<p>Body.</p>",
		Slug:    "best-budget-laptops",
	})

	require.NoError(t, err)
	assert.Equal(t, 42, result.ID)
	assert.Equal(t, "best-budget-laptops", result.Slug)
}

func TestUpdatePost_TargetsExistingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wp-json/wp/v2/posts/7", r.URL.Path)
		json.NewEncoder(w).Encode(wordpress.PostResult{ID: 7, Slug: "updated"})
	}))
	defer srv.Close()

	result, err := newClient(t, srv.URL).UpdatePost(context.Background(), 7, wordpress.Post{Title: "Updated"})

	require.NoError(t, err)
	assert.Equal(t, 7, result.ID)
}

func TestFindPostBySlug(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "best-budget-laptops", r.URL.Query().Get("slug"))
		if r.URL.Query().Get("slug") == "best-budget-laptops" {
			json.NewEncoder(w).Encode([]wordpress.PostResult{{ID: 42, Slug: "best-budget-laptops"}})
			return
		}
		json.NewEncoder(w).Encode([]wordpress.PostResult{})
	}))
	defer srv.Close()

	client := newClient(t, srv.URL)

	result, found, err := client.FindPostBySlug(context.Background(), "best-budget-laptops")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 42, result.ID)
}

func TestFindPostBySlug_MissingIsNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]wordpress.PostResult{})
	}))
	defer srv.Close()

	_, found, err := newClient(t, srv.URL).FindPostBySlug(context.Background(), "no-such-post")

	require.NoError(t, err)
	assert.False(t, found)
}

func TestUploadMedia(t *testing.T) {
	payload := []byte{0xFF, 0xD8, 0xFF, 0xE0}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wp-json/wp/v2/media", r.URL.Path)
		assert.Equal(t, "image/webp", r.Header.Get("Content-Type"))
		assert.Contains(t, r.Header.Get("Content-Disposition"), `filename="hero.webp"`)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(wordpress.MediaResult{ID: 99, SourceURL: "https://site/wp-content/uploads/hero.webp"})
	}))
	defer srv.Close()

	result, err := newClient(t, srv.URL).UploadMedia(context.Background(), "hero.webp", "image/webp", payload)

	require.NoError(t, err)
	assert.Equal(t, 99, result.ID)
	assert.Equal(t, "https://site/wp-content/uploads/hero.webp", result.SourceURL)
}

func TestUploadMedia_RejectionIsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"code": "rest_cannot_create", "message": "Sorry, you are not allowed"})
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL).UploadMedia(context.Background(), "hero.webp", "image/webp", []byte{1})

	var apiErr *domain.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "Sorry, you are not allowed")
}

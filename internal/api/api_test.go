package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Papalexios/ai-seo-rank/internal/database"
	"github.com/Papalexios/ai-seo-rank/internal/domain"
	"github.com/Papalexios/ai-seo-rank/internal/logger"
)

type fakePipeline struct {
	mu         sync.Mutex
	generated  [][]*domain.ContentItem
	published  [][]*domain.ContentItem
	stopped    []string
	stoppedAll bool
	done       chan struct{}
}

func newFakePipeline() *fakePipeline {
	return &fakePipeline{done: make(chan struct{}, 8)}
}

func (f *fakePipeline) GenerateBatch(_ context.Context, items []*domain.ContentItem) {
	f.mu.Lock()
	f.generated = append(f.generated, items)
	f.mu.Unlock()
	f.done <- struct{}{}
}

func (f *fakePipeline) PublishBatch(_ context.Context, items []*domain.ContentItem) {
	f.mu.Lock()
	f.published = append(f.published, items)
	f.mu.Unlock()
	f.done <- struct{}{}
}

func (f *fakePipeline) Stop(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, id)
}

func (f *fakePipeline) StopAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stoppedAll = true
}

func (f *fakePipeline) waitBatch(t *testing.T) {
	t.Helper()
	select {
	case <-f.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for batch dispatch")
	}
}

type fakeHistory struct {
	runs  []database.Run
	stats database.Stats
	err   error
}

func (f *fakeHistory) Recent(context.Context, int) ([]database.Run, error) {
	return f.runs, f.err
}

func (f *fakeHistory) Stats(context.Context) (database.Stats, error) {
	return f.stats, f.err
}

type apiFixture struct {
	pipeline *fakePipeline
	store    *Store
	history  *fakeHistory
	engine   http.Handler
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	pipeline := newFakePipeline()
	store := NewStore()
	history := &fakeHistory{}
	handlers := NewHandlers(pipeline, store, history, logger.NewNopLogger(), "test")
	router := NewRouter(handlers, prometheus.NewRegistry(), false)
	return &apiFixture{
		pipeline: pipeline,
		store:    store,
		history:  history,
		engine:   router.Engine(),
	}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func TestGenerate_AcceptsBatch(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/generate", gin.H{
		"items": []map[string]string{
			{"title": "How to Brew Coffee", "type": "pillar"},
			{"title": "Grind Size Guide", "original_url": "https://example.com/grind-size"},
		},
	})

	require.Equal(t, http.StatusAccepted, rec.Code)
	f.pipeline.waitBatch(t)

	var resp struct {
		Accepted int      `json:"accepted"`
		IDs      []string `json:"ids"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Accepted)
	require.Len(t, resp.IDs, 2)

	// Rewrites keep the source URL as their stable ID.
	assert.Equal(t, "https://example.com/grind-size", resp.IDs[1])

	f.pipeline.mu.Lock()
	defer f.pipeline.mu.Unlock()
	require.Len(t, f.pipeline.generated, 1)
	require.Len(t, f.pipeline.generated[0], 2)
	assert.Equal(t, domain.ContentTypePillar, f.pipeline.generated[0][0].Type)
	assert.Equal(t, domain.ContentTypeStandard, f.pipeline.generated[0][1].Type)
}

func TestGenerate_RejectsEmptyAndUntitled(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/generate", gin.H{"items": []map[string]string{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/generate", gin.H{
		"items": []map[string]string{{"title": "   "}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPublish_DispatchesLiveItems(t *testing.T) {
	f := newAPIFixture(t)
	item := &domain.ContentItem{ID: "item-1", Title: "Done Article", Status: domain.StatusDone}
	f.store.Register([]*domain.ContentItem{item})

	rec := f.do(t, http.MethodPost, "/api/v1/publish", gin.H{"ids": []string{"item-1", "missing"}})
	require.Equal(t, http.StatusAccepted, rec.Code)
	f.pipeline.waitBatch(t)

	f.pipeline.mu.Lock()
	defer f.pipeline.mu.Unlock()
	require.Len(t, f.pipeline.published, 1)
	require.Len(t, f.pipeline.published[0], 1)

	// The pipeline must receive the live pointer, not a copy.
	assert.Same(t, item, f.pipeline.published[0][0])
}

func TestPublish_UnknownIDs(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodPost, "/api/v1/publish", gin.H{"ids": []string{"missing"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStop_SingleAndAll(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/stop", gin.H{"id": "item-1"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/stop", gin.H{"all": true})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/stop", gin.H{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.pipeline.mu.Lock()
	defer f.pipeline.mu.Unlock()
	assert.Equal(t, []string{"item-1"}, f.pipeline.stopped)
	assert.True(t, f.pipeline.stoppedAll)
}

func TestItems_SnapshotsFollowEvents(t *testing.T) {
	f := newAPIFixture(t)
	item := &domain.ContentItem{ID: "item-1", Title: "Article", Status: domain.StatusIdle}
	f.store.Register([]*domain.ContentItem{item})

	f.store.OnStatus(domain.StatusUpdate{ID: "item-1", Status: domain.StatusGenerating, StatusText: "Researching live data"})
	f.store.OnContent(domain.ContentUpdate{ID: "item-1", Content: &domain.GeneratedContent{Title: "Article", Slug: "article"}})
	f.store.OnProgress(domain.Progress{Current: 1, Total: 3})

	rec := f.do(t, http.MethodGet, "/api/v1/items/item-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.ContentItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, domain.StatusGenerating, got.Status)
	assert.Equal(t, "Researching live data", got.StatusText)
	require.NotNil(t, got.GeneratedContent)
	assert.Equal(t, "article", got.GeneratedContent.Slug)

	rec = f.do(t, http.MethodGet, "/api/v1/items", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Count    int             `json:"count"`
		Progress domain.Progress `json:"progress"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, domain.Progress{Current: 1, Total: 3}, list.Progress)
}

func TestStore_SnapshotsDetachedFromLiveItem(t *testing.T) {
	store := NewStore()
	item := &domain.ContentItem{ID: "item-1", Title: "Article"}
	store.Register([]*domain.ContentItem{item})

	gc := &domain.GeneratedContent{
		Title:        "Article",
		ImageDetails: []domain.ImageDetail{{Placeholder: "[IMAGE-1]"}},
		References:   []domain.Reference{{Title: "Study", URL: "https://example.edu/study"}},
	}
	item.GeneratedContent = gc
	store.OnContent(domain.ContentUpdate{ID: "item-1", Content: gc})

	// Publishing fills in image URLs and media IDs on the live item
	// well after the content event fired.
	mediaID := 42
	gc.ImageDetails[0].URL = "https://cdn.example.com/img1.webp"
	gc.ImageDetails[0].MediaID = &mediaID
	gc.References[0].Title = "Changed"

	got, ok := store.Get("item-1")
	require.True(t, ok)
	require.NotNil(t, got.GeneratedContent)
	assert.Empty(t, got.GeneratedContent.ImageDetails[0].URL)
	assert.Nil(t, got.GeneratedContent.ImageDetails[0].MediaID)
	assert.Equal(t, "Study", got.GeneratedContent.References[0].Title)
}

func TestStore_ConcurrentReadsDuringUpdates(t *testing.T) {
	store := NewStore()
	item := &domain.ContentItem{ID: "item-1", Title: "Article"}
	store.Register([]*domain.ContentItem{item})

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			gc := &domain.GeneratedContent{
				Title:        "Article",
				ImageDetails: []domain.ImageDetail{{Placeholder: "[IMAGE-1]"}},
			}
			store.OnContent(domain.ContentUpdate{ID: "item-1", Content: gc})
			// Mutations after the event must stay invisible to readers.
			gc.ImageDetails[0].URL = "https://cdn.example.com/img1.webp"
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			got, ok := store.Get("item-1")
			if !ok {
				continue
			}
			if content := got.GeneratedContent; content != nil && len(content.ImageDetails) > 0 {
				_ = content.ImageDetails[0].URL
			}
		}
	}()

	wg.Wait()

	got, ok := store.Get("item-1")
	require.True(t, ok)
	require.NotNil(t, got.GeneratedContent)
	assert.Empty(t, got.GeneratedContent.ImageDetails[0].URL)
}

func TestGetItem_NotFound(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodGet, "/api/v1/items/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistoryEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	f.history.stats = database.Stats{TotalRuns: 4, DoneRuns: 3, ErrorRuns: 1}
	f.history.runs = []database.Run{{ItemID: "item-1", Status: "done"}}

	rec := f.do(t, http.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats database.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 4, stats.TotalRuns)

	rec = f.do(t, http.MethodGet, "/api/v1/history/recent?limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	f.history.err = errors.New("db down")
	rec = f.do(t, http.MethodGet, "/api/v1/stats", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHistoryEndpoints_Unconfigured(t *testing.T) {
	pipeline := newFakePipeline()
	handlers := NewHandlers(pipeline, NewStore(), nil, logger.NewNopLogger(), "test")
	engine := NewRouter(handlers, nil, false).Engine()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"contentforge"`)

	rec = f.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

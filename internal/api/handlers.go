package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Papalexios/ai-seo-rank/internal/database"
	"github.com/Papalexios/ai-seo-rank/internal/domain"
	"github.com/Papalexios/ai-seo-rank/internal/logger"
)

// Pipeline is the orchestration capability the API drives. Batch calls
// block until the batch finishes, so handlers dispatch them on their
// own goroutines.
type Pipeline interface {
	GenerateBatch(ctx context.Context, items []*domain.ContentItem)
	PublishBatch(ctx context.Context, items []*domain.ContentItem)
	Stop(id string)
	StopAll()
}

// HistoryReader exposes the persisted run history.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]database.Run, error)
	Stats(ctx context.Context) (database.Stats, error)
}

// Handlers provides HTTP handlers for the API.
type Handlers struct {
	pipeline Pipeline
	store    *Store
	history  HistoryReader
	logger   logger.Logger
	version  string
}

// NewHandlers creates a new handlers instance. history may be nil when
// no database is configured.
func NewHandlers(pipeline Pipeline, store *Store, history HistoryReader, log logger.Logger, version string) *Handlers {
	return &Handlers{
		pipeline: pipeline,
		store:    store,
		history:  history,
		logger:   log,
		version:  version,
	}
}

type generateItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Type        string `json:"type"`
	OriginalURL string `json:"original_url"`
}

type generateRequest struct {
	Items []generateItem `json:"items"`
}

// Generate handles POST /api/v1/generate. It registers the requested
// items and starts a generation batch in the background.
func (h *Handlers) Generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(req.Items) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "items is required"})
		return
	}

	items := make([]*domain.ContentItem, 0, len(req.Items))
	for _, in := range req.Items {
		if strings.TrimSpace(in.Title) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "every item needs a title"})
			return
		}
		items = append(items, newContentItem(in))
	}

	h.store.Register(items)
	go h.pipeline.GenerateBatch(context.Background(), items)

	h.logger.Info("generation batch accepted", logger.Int("items", len(items)))
	c.JSON(http.StatusAccepted, gin.H{
		"accepted": len(items),
		"ids":      itemIDs(items),
	})
}

type publishRequest struct {
	IDs []string `json:"ids"`
}

// Publish handles POST /api/v1/publish.
func (h *Handlers) Publish(c *gin.Context) {
	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(req.IDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ids is required"})
		return
	}

	items := h.store.Live(req.IDs)
	if len(items) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no matching items"})
		return
	}

	go h.pipeline.PublishBatch(context.Background(), items)

	h.logger.Info("publish batch accepted", logger.Int("items", len(items)))
	c.JSON(http.StatusAccepted, gin.H{"accepted": len(items)})
}

type stopRequest struct {
	ID  string `json:"id"`
	All bool   `json:"all"`
}

// Stop handles POST /api/v1/stop.
func (h *Handlers) Stop(c *gin.Context) {
	var req stopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	switch {
	case req.All:
		h.pipeline.StopAll()
		h.logger.Info("stop requested for all items")
	case req.ID != "":
		h.pipeline.Stop(req.ID)
		h.logger.Info("stop requested", logger.String("item_id", req.ID))
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "id or all is required"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "stopping"})
}

// ListItems handles GET /api/v1/items.
func (h *Handlers) ListItems(c *gin.Context) {
	items := h.store.List()
	c.JSON(http.StatusOK, gin.H{
		"items":    items,
		"count":    len(items),
		"progress": h.store.Progress(),
	})
}

// GetItem handles GET /api/v1/items/:id.
func (h *Handlers) GetItem(c *gin.Context) {
	item, ok := h.store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		return
	}
	c.JSON(http.StatusOK, item)
}

// GetStats handles GET /api/v1/stats.
func (h *Handlers) GetStats(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history is not configured"})
		return
	}

	stats, err := h.history.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to get stats",
			logger.Error(err),
			logger.String("path", c.Request.URL.Path),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve statistics"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetRecentRuns handles GET /api/v1/history/recent.
func (h *Handlers) GetRecentRuns(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history is not configured"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		limit = 50
	}

	runs, err := h.history.Recent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("failed to get recent runs",
			logger.Error(err),
			logger.String("path", c.Request.URL.Path),
			logger.Int("limit", limit),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve run history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"count": len(runs),
	})
}

// Health handles GET /health.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "contentforge",
		"version": h.version,
	})
}

func newContentItem(in generateItem) *domain.ContentItem {
	id := in.ID
	if id == "" {
		if in.OriginalURL != "" {
			id = in.OriginalURL
		} else {
			id = uuid.NewString()
		}
	}

	contentType := domain.ContentType(in.Type)
	switch contentType {
	case domain.ContentTypePillar, domain.ContentTypeCluster, domain.ContentTypeStandard:
	default:
		contentType = domain.ContentTypeStandard
	}

	now := time.Now().UTC()
	return &domain.ContentItem{
		ID:          id,
		Title:       strings.TrimSpace(in.Title),
		Type:        contentType,
		Status:      domain.StatusIdle,
		OriginalURL: in.OriginalURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func itemIDs(items []*domain.ContentItem) []string {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return ids
}

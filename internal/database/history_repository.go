package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Run is one generation-history record, written when an item finishes
// (done, error or stopped).
type Run struct {
	ID         uuid.UUID `db:"id" json:"id"`
	ItemID     string    `db:"item_id" json:"item_id"`
	Title      string    `db:"title" json:"title"`
	Status     string    `db:"status" json:"status"`
	StatusText string    `db:"status_text" json:"status_text"`
	WordCount  int       `db:"word_count" json:"word_count"`
	DurationMS int64     `db:"duration_ms" json:"duration_ms"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Stats aggregates generation history.
type Stats struct {
	TotalRuns     int     `db:"total_runs" json:"total_runs"`
	DoneRuns      int     `db:"done_runs" json:"done_runs"`
	ErrorRuns     int     `db:"error_runs" json:"error_runs"`
	AvgWordCount  float64 `db:"avg_word_count" json:"avg_word_count"`
	AvgDurationMS float64 `db:"avg_duration_ms" json:"avg_duration_ms"`
}

// HistoryRepository stores generation runs.
type HistoryRepository struct {
	db *sqlx.DB
}

// NewHistoryRepository creates a history repository.
func NewHistoryRepository(db *sqlx.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Record inserts one finished run.
func (r *HistoryRepository) Record(ctx context.Context, run Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO generation_history (id, item_id, title, status, status_text, word_count, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(
		ctx, query,
		run.ID, run.ItemID, run.Title, run.Status, run.StatusText, run.WordCount, run.DurationMS, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record generation run: %w", err)
	}

	return nil
}

// Recent returns the latest runs, newest first.
func (r *HistoryRepository) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}

	runs := []Run{}
	query := `
		SELECT id, item_id, title, status, status_text, word_count, duration_ms, created_at
		FROM generation_history
		ORDER BY created_at DESC
		LIMIT $1
	`

	if err := r.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list generation runs: %w", err)
	}

	return runs, nil
}

// Stats aggregates across the whole history table.
func (r *HistoryRepository) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{}
	query := `
		SELECT
			COUNT(*) AS total_runs,
			COUNT(*) FILTER (WHERE status = 'done') AS done_runs,
			COUNT(*) FILTER (WHERE status = 'error') AS error_runs,
			COALESCE(AVG(word_count) FILTER (WHERE status = 'done'), 0) AS avg_word_count,
			COALESCE(AVG(duration_ms), 0) AS avg_duration_ms
		FROM generation_history
	`

	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return Stats{}, fmt.Errorf("failed to load generation stats: %w", err)
	}

	return stats, nil
}

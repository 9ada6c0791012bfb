package store

import (
	"context"
	"time"

	"github.com/nhle/inbox-triage/internal/model"
)

// Store defines the persistence interface for triaged email records.
// It is injected into each pipeline stage so stages can be tested
// independently against an in-memory database.
type Store interface {
	// UpsertNew inserts a record only if its message ID is absent.
	// Re-ingesting an already-stored ID is a no-op for content fields.
	UpsertNew(ctx context.Context, rec model.EmailRecord) error

	// SetCategory updates the category, confidence, and last-updated
	// timestamp for an existing record. Unknown IDs are a no-op.
	SetCategory(
		ctx context.Context,
		messageID string,
		category model.Category,
		confidence float64,
		at time.Time,
	) error

	// SetConfidence updates only the confidence and timestamp, used when
	// a validation pass confirms the existing category.
	SetConfidence(
		ctx context.Context,
		messageID string,
		confidence float64,
		at time.Time,
	) error

	// MarkScheduled records that a calendar block was reserved for the
	// message, so later runs skip it.
	MarkScheduled(ctx context.Context, messageID string, at time.Time) error

	// GetByCategory returns records with the given category, ordered by
	// last_updated_at descending. When unscheduledOnly is set, records
	// that already have a calendar block are excluded.
	GetByCategory(
		ctx context.Context,
		category model.Category,
		unscheduledOnly bool,
	) ([]model.EmailRecord, error)

	// GetRecentCategorized returns the most recently updated categorized
	// records, ordered by last_updated_at descending. A limit <= 0
	// returns all of them.
	GetRecentCategorized(ctx context.Context, limit int) ([]model.EmailRecord, error)
}

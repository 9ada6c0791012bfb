package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/inbox-triage/internal/model"
)

// UpsertNew inserts an email record only if its message ID is absent.
// Content fields of an existing row are never overwritten.
func (s *SQLiteStore) UpsertNew(ctx context.Context, rec model.EmailRecord) error {
	labels, err := json.Marshal(rec.Labels)
	if err != nil {
		return fmt.Errorf("marshaling labels for %s: %w", rec.MessageID, err)
	}

	lastUpdated := rec.LastUpdatedAt
	if lastUpdated.IsZero() {
		lastUpdated = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO emails (
			message_id, thread_id, from_addr, to_addr,
			subject, snippet, body, received_at, labels,
			category, category_confidence, scheduled_at, last_updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, NULL, NULL, ?)`,
		rec.MessageID, rec.ThreadID, rec.FromAddr, rec.ToAddr,
		rec.Subject, rec.Snippet, rec.Body, rec.ReceivedAt,
		string(labels), lastUpdated.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting email %s: %w", rec.MessageID, err)
	}

	return nil
}

// SetCategory updates the category fields for an existing record.
// Unknown message IDs are a silent no-op.
func (s *SQLiteStore) SetCategory(
	ctx context.Context,
	messageID string,
	category model.Category,
	confidence float64,
	at time.Time,
) error {
	if !category.Valid() {
		return fmt.Errorf("refusing to persist unknown category %q", category)
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE emails
		   SET category = ?,
		       category_confidence = ?,
		       last_updated_at = ?
		 WHERE message_id = ?`,
		string(category), confidence, at.UTC(), messageID,
	)
	if err != nil {
		return fmt.Errorf("setting category for %s: %w", messageID, err)
	}

	return nil
}

// SetConfidence updates only the confidence and timestamp of a record,
// used when a validation pass confirms the existing category.
func (s *SQLiteStore) SetConfidence(
	ctx context.Context,
	messageID string,
	confidence float64,
	at time.Time,
) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE emails
		   SET category_confidence = ?,
		       last_updated_at = ?
		 WHERE message_id = ?`,
		confidence, at.UTC(), messageID,
	)
	if err != nil {
		return fmt.Errorf("setting confidence for %s: %w", messageID, err)
	}

	return nil
}

// MarkScheduled records the time a calendar block was reserved for the
// message.
func (s *SQLiteStore) MarkScheduled(
	ctx context.Context, messageID string, at time.Time,
) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE emails
		   SET scheduled_at = ?
		 WHERE message_id = ?`,
		at.UTC(), messageID,
	)
	if err != nil {
		return fmt.Errorf("marking %s scheduled: %w", messageID, err)
	}

	return nil
}

// GetByCategory returns records carrying the given category, most
// recently updated first.
func (s *SQLiteStore) GetByCategory(
	ctx context.Context,
	category model.Category,
	unscheduledOnly bool,
) ([]model.EmailRecord, error) {
	query := `
		SELECT * FROM emails
		 WHERE category = ?`
	if unscheduledOnly {
		query += " AND scheduled_at IS NULL"
	}
	query += " ORDER BY last_updated_at DESC"

	rows, err := s.db.QueryxContext(ctx, query, string(category))
	if err != nil {
		return nil, fmt.Errorf("querying emails by category: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// GetRecentCategorized returns the most recently updated categorized
// records. A limit <= 0 returns all of them.
func (s *SQLiteStore) GetRecentCategorized(
	ctx context.Context, limit int,
) ([]model.EmailRecord, error) {
	query := `
		SELECT * FROM emails
		 WHERE category IS NOT NULL
		 ORDER BY last_updated_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying recent categorized emails: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// collectRecords scans all rows into email records.
func collectRecords(rows *sqlx.Rows) ([]model.EmailRecord, error) {
	var records []model.EmailRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// scanRecord scans an email row from a sqlx.Rows result set.
func scanRecord(rows *sqlx.Rows) (model.EmailRecord, error) {
	var (
		rec         model.EmailRecord
		labels      string
		category    sql.NullString
		confidence  sql.NullFloat64
		scheduledAt sql.NullTime
		lastUpdated time.Time
	)

	err := rows.Scan(
		&rec.MessageID, &rec.ThreadID, &rec.FromAddr, &rec.ToAddr,
		&rec.Subject, &rec.Snippet, &rec.Body, &rec.ReceivedAt,
		&labels, &category, &confidence, &scheduledAt, &lastUpdated,
	)
	if err != nil {
		return model.EmailRecord{}, fmt.Errorf("scanning email row: %w", err)
	}

	if labels != "" {
		if err := json.Unmarshal([]byte(labels), &rec.Labels); err != nil {
			return model.EmailRecord{}, fmt.Errorf("unmarshaling labels: %w", err)
		}
	}

	if category.Valid {
		cat := model.Category(category.String)
		rec.Category = &cat
	}
	if confidence.Valid {
		conf := confidence.Float64
		rec.Confidence = &conf
	}
	if scheduledAt.Valid {
		at := scheduledAt.Time
		rec.ScheduledAt = &at
	}
	rec.LastUpdatedAt = lastUpdated

	return rec, nil
}

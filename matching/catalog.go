package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MatchRecord is one persisted catalog edge between a found and a lost
// report. notified is preserved across recomputes so a score refresh never
// triggers a duplicate alert.
type MatchRecord struct {
	FoundItemID string
	LostItemID  string
	Score       float64
	Breakdown   Breakdown
	Notified    bool
	ComputedAt  time.Time
}

// CatalogRepository persists the match catalog.
type CatalogRepository interface {
	PruneOrphans(ctx context.Context) (int64, error)
	ReplaceForFoundItem(ctx context.Context, tx pgx.Tx, foundItemID string, records []MatchRecord) error
	UnnotifiedForFoundItem(ctx context.Context, tx pgx.Tx, foundItemID string) ([]MatchRecord, error)
	MarkNotified(ctx context.Context, tx pgx.Tx, foundItemID, lostItemID string) error
	TopForFoundItem(ctx context.Context, foundItemID string, limit int) ([]MatchRecord, error)
	TopForLostItem(ctx context.Context, lostItemID string, limit int) ([]MatchRecord, error)
}

// PGCatalog implements CatalogRepository backed by PostgreSQL.
type PGCatalog struct {
	pool *pgxpool.Pool
}

func NewCatalog(pool *pgxpool.Pool) *PGCatalog {
	return &PGCatalog{pool: pool}
}

// PruneOrphans removes catalog rows whose lost report was resolved or whose
// found report left the open state. Foreign keys already cascade hard
// deletes; this covers soft state changes.
func (c *PGCatalog) PruneOrphans(ctx context.Context) (int64, error) {
	const query = `
		DELETE FROM match_records m
		WHERE NOT EXISTS (
			SELECT 1 FROM lost_items l WHERE l.id = m.lost_item_id AND NOT l.resolved
		)
		OR NOT EXISTS (
			SELECT 1 FROM found_items f WHERE f.id = m.found_item_id AND f.status = 'open'
		)
	`
	tag, err := c.pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("matching: prune orphans: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ReplaceForFoundItem upserts the qualifying records for one found item and
// deletes any previously stored pairing that no longer qualifies. The upsert
// deliberately leaves the notified column alone.
func (c *PGCatalog) ReplaceForFoundItem(ctx context.Context, tx pgx.Tx, foundItemID string, records []MatchRecord) error {
	keep := make([]string, 0, len(records))
	for _, rec := range records {
		keep = append(keep, rec.LostItemID)

		breakdown, err := json.Marshal(rec.Breakdown)
		if err != nil {
			return fmt.Errorf("matching: marshal breakdown: %w", err)
		}

		const upsertSQL = `
			INSERT INTO match_records (found_item_id, lost_item_id, score, breakdown, notified, computed_at)
			VALUES ($1, $2, $3, $4, FALSE, $5)
			ON CONFLICT (found_item_id, lost_item_id)
			DO UPDATE SET score = EXCLUDED.score, breakdown = EXCLUDED.breakdown, computed_at = EXCLUDED.computed_at
		`
		if _, err := tx.Exec(ctx, upsertSQL, rec.FoundItemID, rec.LostItemID, rec.Score, breakdown, rec.ComputedAt); err != nil {
			return fmt.Errorf("matching: upsert record %s/%s: %w", rec.FoundItemID, rec.LostItemID, err)
		}
	}

	const deleteSQL = `
		DELETE FROM match_records
		WHERE found_item_id = $1 AND lost_item_id <> ALL($2::uuid[])
	`
	if _, err := tx.Exec(ctx, deleteSQL, foundItemID, keep); err != nil {
		return fmt.Errorf("matching: delete stale records: %w", err)
	}
	return nil
}

func (c *PGCatalog) UnnotifiedForFoundItem(ctx context.Context, tx pgx.Tx, foundItemID string) ([]MatchRecord, error) {
	const query = `
		SELECT found_item_id, lost_item_id, score, breakdown, notified, computed_at
		FROM match_records
		WHERE found_item_id = $1 AND NOT notified
		ORDER BY score DESC
		FOR UPDATE
	`
	rows, err := tx.Query(ctx, query, foundItemID)
	if err != nil {
		return nil, fmt.Errorf("matching: list unnotified: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (c *PGCatalog) MarkNotified(ctx context.Context, tx pgx.Tx, foundItemID, lostItemID string) error {
	const query = `
		UPDATE match_records SET notified = TRUE
		WHERE found_item_id = $1 AND lost_item_id = $2
	`
	if _, err := tx.Exec(ctx, query, foundItemID, lostItemID); err != nil {
		return fmt.Errorf("matching: mark notified: %w", err)
	}
	return nil
}

func (c *PGCatalog) TopForFoundItem(ctx context.Context, foundItemID string, limit int) ([]MatchRecord, error) {
	const query = `
		SELECT found_item_id, lost_item_id, score, breakdown, notified, computed_at
		FROM match_records
		WHERE found_item_id = $1
		ORDER BY score DESC
		LIMIT $2
	`
	rows, err := c.pool.Query(ctx, query, foundItemID, limit)
	if err != nil {
		return nil, fmt.Errorf("matching: top for found item: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (c *PGCatalog) TopForLostItem(ctx context.Context, lostItemID string, limit int) ([]MatchRecord, error) {
	const query = `
		SELECT found_item_id, lost_item_id, score, breakdown, notified, computed_at
		FROM match_records
		WHERE lost_item_id = $1
		ORDER BY score DESC
		LIMIT $2
	`
	rows, err := c.pool.Query(ctx, query, lostItemID, limit)
	if err != nil {
		return nil, fmt.Errorf("matching: top for lost item: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

func collectRecords(rows pgx.Rows) ([]MatchRecord, error) {
	records := make([]MatchRecord, 0, 16)
	for rows.Next() {
		var rec MatchRecord
		var breakdown []byte
		if err := rows.Scan(&rec.FoundItemID, &rec.LostItemID, &rec.Score, &breakdown, &rec.Notified, &rec.ComputedAt); err != nil {
			return nil, fmt.Errorf("matching: scan record: %w", err)
		}
		if err := json.Unmarshal(breakdown, &rec.Breakdown); err != nil {
			return nil, fmt.Errorf("matching: unmarshal breakdown: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("matching: iterate records: %w", err)
	}
	return records, nil
}

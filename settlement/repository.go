package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akshitha1024/traceback/report"
)

var (
	// ErrTooEarly signals a finalization before the decision window closed.
	ErrTooEarly = errors.New("settlement: decision window still open")
	// ErrAlreadyResolved signals that the item was already finalized.
	ErrAlreadyResolved = errors.New("settlement: already resolved")
	// ErrNotOwner signals that the caller is not the item's finder.
	ErrNotOwner = errors.New("settlement: not the finder")
	// ErrNotFound signals a missing item.
	ErrNotFound = errors.New("settlement: not found")
)

// Return is the archived record of one completed handover. It captures a
// snapshot of the found report because the report row is deleted on
// finalization.
type Return struct {
	ID             string
	FoundItemID    string
	Title          string
	Description    string
	Category       string
	Location       string
	DateFound      time.Time
	FinderEmail    string
	ClaimantEmail  string
	Justification  string
	DaysToFinalize int
	ReturnedAt     time.Time
}

// Repository persists finalization state. The transactional methods run
// inside the finalize transaction; the purge methods run standalone.
type Repository interface {
	GetFoundForUpdate(ctx context.Context, tx pgx.Tx, id string) (report.FoundItem, error)
	SetClaimed(ctx context.Context, tx pgx.Tx, id string, at time.Time) error
	InsertReturn(ctx context.Context, tx pgx.Tx, ret Return) error
	DeleteFound(ctx context.Context, tx pgx.Tx, id string) error
	PurgeClaimedFound(ctx context.Context, before time.Time) (int64, error)
	PurgeExpiredFound(ctx context.Context, before time.Time) (int64, error)
	PurgeStaleLost(ctx context.Context, before time.Time) (int64, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) GetFoundForUpdate(ctx context.Context, tx pgx.Tx, id string) (report.FoundItem, error) {
	const query = `
		SELECT id, title, description, category, location, color, current_location,
		       date_found, image_ref, finder_email, finder_phone,
		       status::text, visibility::text, privacy_expires_at, claimed_at, created_at
		FROM found_items
		WHERE id = $1
		FOR UPDATE
	`
	var item report.FoundItem
	err := tx.QueryRow(ctx, query, id).Scan(
		&item.ID,
		&item.Title,
		&item.Description,
		&item.Category,
		&item.Location,
		&item.Color,
		&item.CurrentLocation,
		&item.DateFound,
		&item.ImageRef,
		&item.FinderEmail,
		&item.FinderPhone,
		&item.Status,
		&item.Visibility,
		&item.PrivacyExpiresAt,
		&item.ClaimedAt,
		&item.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return report.FoundItem{}, ErrNotFound
		}
		return report.FoundItem{}, fmt.Errorf("settlement: lock found item: %w", err)
	}
	return item, nil
}

func (r *PGRepository) SetClaimed(ctx context.Context, tx pgx.Tx, id string, at time.Time) error {
	const query = `
		UPDATE found_items SET status = 'claimed', claimed_at = $2
		WHERE id = $1
	`
	tag, err := tx.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("settlement: set claimed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepository) InsertReturn(ctx context.Context, tx pgx.Tx, ret Return) error {
	const query = `
		INSERT INTO successful_returns (id, found_item_id, title, description, category,
			location, date_found, finder_email, claimant_email, justification,
			days_to_finalize, returned_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := tx.Exec(ctx, query,
		ret.ID,
		ret.FoundItemID,
		ret.Title,
		ret.Description,
		ret.Category,
		ret.Location,
		ret.DateFound,
		ret.FinderEmail,
		ret.ClaimantEmail,
		ret.Justification,
		ret.DaysToFinalize,
		ret.ReturnedAt,
	)
	if err != nil {
		return fmt.Errorf("settlement: insert return: %w", err)
	}
	return nil
}

// DeleteFound removes the live report; security questions, claim attempts
// and match records cascade with it.
func (r *PGRepository) DeleteFound(ctx context.Context, tx pgx.Tx, id string) error {
	tag, err := tx.Exec(ctx, `DELETE FROM found_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("settlement: delete found item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepository) PurgeClaimedFound(ctx context.Context, before time.Time) (int64, error) {
	const query = `DELETE FROM found_items WHERE status = 'claimed' AND claimed_at < $1`
	tag, err := r.pool.Exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("settlement: purge claimed found: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PGRepository) PurgeExpiredFound(ctx context.Context, before time.Time) (int64, error) {
	const query = `DELETE FROM found_items WHERE status = 'open' AND created_at < $1`
	tag, err := r.pool.Exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("settlement: purge expired found: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PGRepository) PurgeStaleLost(ctx context.Context, before time.Time) (int64, error) {
	const query = `DELETE FROM lost_items WHERE NOT resolved AND created_at < $1`
	tag, err := r.pool.Exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("settlement: purge stale lost: %w", err)
	}
	return tag.RowsAffected(), nil
}

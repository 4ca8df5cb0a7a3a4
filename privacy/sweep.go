package privacy

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akshitha1024/traceback/metrics"
	"github.com/akshitha1024/traceback/notify"
	"github.com/akshitha1024/traceback/report"
)

// Store publishes found items whose privacy window has elapsed.
type Store interface {
	PublishExpired(ctx context.Context, now time.Time) ([]report.FoundItem, error)
}

// PGStore implements Store backed by PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// PublishExpired flips visibility to public for every open private item
// whose window closed, returning the items that changed. The transition is
// one way; nothing ever moves an item back to private.
func (s *PGStore) PublishExpired(ctx context.Context, now time.Time) ([]report.FoundItem, error) {
	const query = `
		UPDATE found_items
		SET visibility = 'public'
		WHERE visibility = 'private'
		  AND status = 'open'
		  AND privacy_expires_at IS NOT NULL
		  AND privacy_expires_at <= $1
		RETURNING id, title, description, category, location, color, current_location,
		          date_found, image_ref, finder_email, finder_phone,
		          status::text, visibility::text, privacy_expires_at, claimed_at, created_at
	`
	rows, err := s.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("privacy: publish expired: %w", err)
	}
	defer rows.Close()

	items := make([]report.FoundItem, 0, 8)
	for rows.Next() {
		var item report.FoundItem
		if err := rows.Scan(
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
		); err != nil {
			return nil, fmt.Errorf("privacy: scan published item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("privacy: iterate published items: %w", err)
	}
	return items, nil
}

// RecipientLister enumerates broadcast recipients.
type RecipientLister interface {
	ListRecipients(ctx context.Context, excludeEmail string) ([]string, error)
}

// DeliveryLedger deduplicates broadcast sends.
type DeliveryLedger interface {
	Record(ctx context.Context, itemID, recipient, kind string) (bool, error)
}

// Sweeper publishes expired items and announces each one to every
// registered user except the finder, exactly once per recipient.
type Sweeper struct {
	store    Store
	reports  RecipientLister
	ledger   DeliveryLedger
	notifier notify.Notifier

	now func() time.Time
}

func NewSweeper(store Store, reports RecipientLister, ledger DeliveryLedger, notifier notify.Notifier) *Sweeper {
	return &Sweeper{
		store:    store,
		reports:  reports,
		ledger:   ledger,
		notifier: notifier,
		now:      time.Now,
	}
}

// Sweep runs one publish pass and returns how many notifications went out.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	published, err := s.store.PublishExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}

	var sent int
	for _, item := range published {
		recipients, err := s.reports.ListRecipients(ctx, item.FinderEmail)
		if err != nil {
			return sent, err
		}
		subject, body := notify.ItemPublicMessage(item.Title, item.Category, item.Location)
		for _, recipient := range recipients {
			created, err := s.ledger.Record(ctx, item.ID, recipient, notify.KindItemPublic)
			if err != nil {
				return sent, err
			}
			if !created {
				continue
			}
			if err := s.notifier.Send(ctx, recipient, subject, body); err != nil {
				log.Printf("privacy: announce %s to %s: %v", item.ID, recipient, err)
				continue
			}
			sent++
		}
	}

	metrics.NotificationsSent.Add(float64(sent))
	return sent, nil
}

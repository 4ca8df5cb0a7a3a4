package notify

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Ledger records which notifications were delivered, keyed by item,
// recipient and kind, so broadcast sweeps never repeat a send.
type Ledger struct {
	pool *pgxpool.Pool
}

func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

// Record inserts a delivery row if one does not exist yet. It returns true
// when this call created the row, false when the notification was already
// recorded.
func (l *Ledger) Record(ctx context.Context, itemID, recipient, kind string) (bool, error) {
	const query = `
		INSERT INTO notification_log (item_id, recipient, notification_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (item_id, recipient, notification_type) DO NOTHING
	`
	tag, err := l.pool.Exec(ctx, query, itemID, recipient, kind)
	if err != nil {
		return false, fmt.Errorf("notify: record delivery: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

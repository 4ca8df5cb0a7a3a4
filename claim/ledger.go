package claim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrAlreadyAttempted signals that this claimant already used their one
	// verification attempt for the item.
	ErrAlreadyAttempted = errors.New("claim: already attempted")
	// ErrNotFound signals a missing attempt record.
	ErrNotFound = errors.New("claim: attempt not found")
	// ErrForbidden signals that the caller may not perform the operation.
	ErrForbidden = errors.New("claim: forbidden")
	// ErrItemClosed signals that the item no longer accepts claims.
	ErrItemClosed = errors.New("claim: item closed")
	// ErrNoQuestions signals that the item carries no security questions.
	ErrNoQuestions = errors.New("claim: no security questions")
)

// Attempt is one recorded verification attempt. Answers holds what the
// claimant submitted, keyed by question id; the canonical answers exist only
// as digests and are never stored here.
type Attempt struct {
	ID             string
	FoundItemID    string
	ClaimantEmail  string
	Verified       bool
	CorrectCount   int
	TotalCount     int
	Answers        map[string]string
	PotentialOwner bool
	CreatedAt      time.Time
}

// Ledger persists verification attempts. The one-attempt rule is enforced
// by a uniqueness constraint on (found_item_id, claimant_email).
type Ledger interface {
	Insert(ctx context.Context, attempt Attempt) error
	Get(ctx context.Context, foundItemID, claimantEmail string) (Attempt, error)
	ListForItem(ctx context.Context, foundItemID string) ([]Attempt, error)
	SetPotential(ctx context.Context, foundItemID, claimantEmail string, potential bool) error
}

// PGLedger implements Ledger backed by PostgreSQL.
type PGLedger struct {
	pool *pgxpool.Pool
}

func NewLedger(pool *pgxpool.Pool) *PGLedger {
	return &PGLedger{pool: pool}
}

const attemptColumns = `id, found_item_id, claimant_email, verified, correct_count, total_count, answers, potential_owner, created_at`

func (l *PGLedger) Insert(ctx context.Context, attempt Attempt) error {
	const query = `
		INSERT INTO claim_attempts (id, found_item_id, claimant_email, verified, correct_count, total_count, answers, potential_owner, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	answers, err := json.Marshal(attempt.Answers)
	if err != nil {
		return fmt.Errorf("claim: marshal answers: %w", err)
	}
	_, err = l.pool.Exec(ctx, query,
		attempt.ID,
		attempt.FoundItemID,
		attempt.ClaimantEmail,
		attempt.Verified,
		attempt.CorrectCount,
		attempt.TotalCount,
		answers,
		attempt.PotentialOwner,
		attempt.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyAttempted
		}
		return fmt.Errorf("claim: insert attempt: %w", err)
	}
	return nil
}

func (l *PGLedger) Get(ctx context.Context, foundItemID, claimantEmail string) (Attempt, error) {
	query := fmt.Sprintf(`SELECT %s FROM claim_attempts WHERE found_item_id = $1 AND claimant_email = $2`, attemptColumns)
	attempt, err := scanAttempt(l.pool.QueryRow(ctx, query, foundItemID, claimantEmail))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Attempt{}, ErrNotFound
		}
		return Attempt{}, fmt.Errorf("claim: get attempt: %w", err)
	}
	return attempt, nil
}

func (l *PGLedger) ListForItem(ctx context.Context, foundItemID string) ([]Attempt, error) {
	query := fmt.Sprintf(`SELECT %s FROM claim_attempts WHERE found_item_id = $1 ORDER BY created_at`, attemptColumns)
	rows, err := l.pool.Query(ctx, query, foundItemID)
	if err != nil {
		return nil, fmt.Errorf("claim: list attempts: %w", err)
	}
	defer rows.Close()

	attempts := make([]Attempt, 0, 8)
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("claim: scan attempt: %w", err)
		}
		attempts = append(attempts, attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim: iterate attempts: %w", err)
	}
	return attempts, nil
}

func (l *PGLedger) SetPotential(ctx context.Context, foundItemID, claimantEmail string, potential bool) error {
	const query = `
		UPDATE claim_attempts SET potential_owner = $3
		WHERE found_item_id = $1 AND claimant_email = $2
	`
	tag, err := l.pool.Exec(ctx, query, foundItemID, claimantEmail, potential)
	if err != nil {
		return fmt.Errorf("claim: set potential owner: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAttempt(row pgx.Row) (Attempt, error) {
	var (
		a       Attempt
		answers []byte
	)
	err := row.Scan(
		&a.ID,
		&a.FoundItemID,
		&a.ClaimantEmail,
		&a.Verified,
		&a.CorrectCount,
		&a.TotalCount,
		&answers,
		&a.PotentialOwner,
		&a.CreatedAt,
	)
	if err != nil {
		return Attempt{}, err
	}
	if err := json.Unmarshal(answers, &a.Answers); err != nil {
		return Attempt{}, fmt.Errorf("claim: unmarshal answers: %w", err)
	}
	return a, nil
}

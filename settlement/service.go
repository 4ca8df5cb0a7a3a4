package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/akshitha1024/traceback/metrics"
	"github.com/akshitha1024/traceback/report"
)

// TxBeginner abstracts pool.Begin for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Service finalizes handovers and applies the retention purges.
type Service struct {
	pool TxBeginner
	repo Repository

	decisionWindow   time.Duration
	claimedRetention time.Duration
	foundRetention   time.Duration
	lostRetention    time.Duration

	now   func() time.Time
	idGen func() string
}

func NewService(pool TxBeginner, repo Repository, decisionWindow, claimedRetention, foundRetention, lostRetention time.Duration) *Service {
	return &Service{
		pool:             pool,
		repo:             repo,
		decisionWindow:   decisionWindow,
		claimedRetention: claimedRetention,
		foundRetention:   foundRetention,
		lostRetention:    lostRetention,
		now:              time.Now,
		idGen:            uuid.NewString,
	}
}

// Finalize archives the handover and deletes the live report in one
// transaction. Only the finder may finalize, only after the decision window
// has elapsed since the item was found, and only once.
func (s *Service) Finalize(ctx context.Context, foundItemID, requesterEmail, claimantEmail, justification string) (string, error) {
	now := s.now().UTC()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("settlement: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	item, err := s.repo.GetFoundForUpdate(ctx, tx, foundItemID)
	if err != nil {
		return "", err
	}
	if item.FinderEmail != requesterEmail {
		return "", ErrNotOwner
	}
	if item.Status == report.StatusClaimed {
		return "", ErrAlreadyResolved
	}

	// The window runs from the find date, not the report date: owners get
	// the full window even when the finder files late.
	elapsed := now.Sub(item.DateFound)
	if elapsed < s.decisionWindow {
		return "", ErrTooEarly
	}

	ret := Return{
		ID:             s.idGen(),
		FoundItemID:    item.ID,
		Title:          item.Title,
		Description:    item.Description,
		Category:       item.Category,
		Location:       item.Location,
		DateFound:      item.DateFound,
		FinderEmail:    item.FinderEmail,
		ClaimantEmail:  claimantEmail,
		Justification:  justification,
		DaysToFinalize: int(elapsed.Hours() / 24),
		ReturnedAt:     now,
	}
	if err := s.repo.InsertReturn(ctx, tx, ret); err != nil {
		return "", err
	}
	if err := s.repo.DeleteFound(ctx, tx, item.ID); err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("settlement: commit tx: %w", err)
	}
	return ret.ID, nil
}

// MarkClaimed records an informal handover: the item closes to further
// claims and matching, and the retention purge removes it later. Unlike
// Finalize it leaves no archived return.
func (s *Service) MarkClaimed(ctx context.Context, foundItemID, requesterEmail string) error {
	now := s.now().UTC()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("settlement: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	item, err := s.repo.GetFoundForUpdate(ctx, tx, foundItemID)
	if err != nil {
		return err
	}
	if item.FinderEmail != requesterEmail {
		return ErrNotOwner
	}
	if item.Status == report.StatusClaimed {
		return ErrAlreadyResolved
	}

	if err := s.repo.SetClaimed(ctx, tx, item.ID, now); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("settlement: commit tx: %w", err)
	}
	return nil
}

// Purge applies the retention windows. Cascading foreign keys take the
// dependent questions, attempts and match records with each item.
func (s *Service) Purge(ctx context.Context) error {
	now := s.now().UTC()

	claimed, err := s.repo.PurgeClaimedFound(ctx, now.Add(-s.claimedRetention))
	if err != nil {
		return err
	}
	metrics.ItemsPurged.WithLabelValues("claimed").Add(float64(claimed))

	expired, err := s.repo.PurgeExpiredFound(ctx, now.Add(-s.foundRetention))
	if err != nil {
		return err
	}
	metrics.ItemsPurged.WithLabelValues("found_expired").Add(float64(expired))

	stale, err := s.repo.PurgeStaleLost(ctx, now.Add(-s.lostRetention))
	if err != nil {
		return err
	}
	metrics.ItemsPurged.WithLabelValues("lost_stale").Add(float64(stale))

	return nil
}

package matching

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/akshitha1024/traceback/metrics"
	"github.com/akshitha1024/traceback/notify"
	"github.com/akshitha1024/traceback/report"
)

// ErrPassActive signals that a recompute pass is already running.
var ErrPassActive = errors.New("matching: pass already active")

// TxBeginner abstracts pool.Begin for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PairScorer abstracts the scorer for testability.
type PairScorer interface {
	Score(ctx context.Context, lost report.LostItem, found report.FoundItem) (Breakdown, error)
}

// ReportSource is the slice of the report repository the scheduler needs.
type ReportSource interface {
	ListOpenFound(ctx context.Context) ([]report.FoundItem, error)
	ListUnresolvedLost(ctx context.Context) ([]report.LostItem, error)
}

// Stats summarizes one recompute pass.
type Stats struct {
	FoundProcessed    int
	PairsScored       int
	PairsSkipped      int
	MatchesStored     int
	NotificationsSent int
	Pruned            int64
}

// Scheduler drives the periodic full recompute of the match catalog.
type Scheduler struct {
	pool     TxBeginner
	reports  ReportSource
	catalog  CatalogRepository
	scorer   PairScorer
	notifier notify.Notifier

	minScore float64
	topK     int
	workers  int

	mu  sync.Mutex
	now func() time.Time
}

func NewScheduler(pool TxBeginner, reports ReportSource, catalog CatalogRepository, scorer PairScorer, notifier notify.Notifier, minScore float64, topK, workers int) *Scheduler {
	if topK <= 0 {
		topK = 10
	}
	if workers <= 0 {
		workers = 4
	}
	return &Scheduler{
		pool:     pool,
		reports:  reports,
		catalog:  catalog,
		scorer:   scorer,
		notifier: notifier,
		minScore: minScore,
		topK:     topK,
		workers:  workers,
		now:      time.Now,
	}
}

type scoredPair struct {
	lost      report.LostItem
	breakdown Breakdown
	err       error
}

// RunOnce executes a single full recompute pass. Only one pass runs at a
// time; an overlapping call returns ErrPassActive instead of queuing.
func (s *Scheduler) RunOnce(ctx context.Context) (Stats, error) {
	if !s.mu.TryLock() {
		return Stats{}, ErrPassActive
	}
	defer s.mu.Unlock()

	var stats Stats

	pruned, err := s.catalog.PruneOrphans(ctx)
	if err != nil {
		return stats, err
	}
	stats.Pruned = pruned

	foundItems, err := s.reports.ListOpenFound(ctx)
	if err != nil {
		return stats, fmt.Errorf("matching: load found items: %w", err)
	}
	lostItems, err := s.reports.ListUnresolvedLost(ctx)
	if err != nil {
		return stats, fmt.Errorf("matching: load lost items: %w", err)
	}

	lostByID := make(map[string]report.LostItem, len(lostItems))
	for _, l := range lostItems {
		lostByID[l.ID] = l
	}

	computedAt := s.now().UTC()

	for _, found := range foundItems {
		records, scored, skipped := s.scorePairs(ctx, found, lostItems, computedAt)
		stats.PairsScored += scored
		stats.PairsSkipped += skipped
		metrics.PairsScored.Add(float64(scored))
		metrics.PairsSkipped.Add(float64(skipped))

		sent, err := s.storeAndNotify(ctx, found, records, lostByID)
		if err != nil {
			log.Printf("matching: store pass for found item %s: %v", found.ID, err)
			continue
		}
		stats.FoundProcessed++
		stats.MatchesStored += len(records)
		stats.NotificationsSent += sent
		metrics.MatchesStored.Add(float64(len(records)))
		metrics.NotificationsSent.Add(float64(sent))
	}

	return stats, nil
}

// scorePairs computes every qualifying pairing for one found item and
// returns the top-K by score. A failed pair is skipped, never stored.
func (s *Scheduler) scorePairs(ctx context.Context, found report.FoundItem, lostItems []report.LostItem, computedAt time.Time) ([]MatchRecord, int, int) {
	results := make([]scoredPair, len(lostItems))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, lost := range lostItems {
		g.Go(func() error {
			b, err := s.scorer.Score(gctx, lost, found)
			results[i] = scoredPair{lost: lost, breakdown: b, err: err}
			return nil
		})
	}
	// Workers record per-pair failures in results rather than returning them.
	_ = g.Wait()

	var scored, skipped int
	records := make([]MatchRecord, 0, len(results))
	for _, res := range results {
		if res.err != nil {
			skipped++
			log.Printf("matching: score %s/%s: %v", found.ID, res.lost.ID, res.err)
			continue
		}
		scored++
		if res.breakdown.Composite < s.minScore {
			continue
		}
		records = append(records, MatchRecord{
			FoundItemID: found.ID,
			LostItemID:  res.lost.ID,
			Score:       res.breakdown.Composite,
			Breakdown:   res.breakdown,
			ComputedAt:  computedAt,
		})
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Score > records[j].Score })
	if len(records) > s.topK {
		records = records[:s.topK]
	}
	return records, scored, skipped
}

// storeAndNotify replaces the catalog rows for one found item and alerts the
// owners of newly matched lost reports, all within one transaction. A failed
// send leaves the notified flag false so the next pass retries it.
func (s *Scheduler) storeAndNotify(ctx context.Context, found report.FoundItem, records []MatchRecord, lostByID map[string]report.LostItem) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("matching: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.catalog.ReplaceForFoundItem(ctx, tx, found.ID, records); err != nil {
		return 0, err
	}

	pending, err := s.catalog.UnnotifiedForFoundItem(ctx, tx, found.ID)
	if err != nil {
		return 0, err
	}

	var sent int
	for _, rec := range pending {
		lost, ok := lostByID[rec.LostItemID]
		if !ok {
			continue
		}
		subject, body := notify.MatchFoundMessage(lost.Title, found.Title, rec.Score)
		if err := s.notifier.Send(ctx, lost.ReporterEmail, subject, body); err != nil {
			log.Printf("matching: notify %s about %s: %v", lost.ReporterEmail, found.ID, err)
			continue
		}
		if err := s.catalog.MarkNotified(ctx, tx, rec.FoundItemID, rec.LostItemID); err != nil {
			return sent, err
		}
		sent++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("matching: commit tx: %w", err)
	}
	return sent, nil
}

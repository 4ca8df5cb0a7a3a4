package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/akshitha1024/traceback/report"
)

type fakePool struct {
	txs []*fakeTx
}

func (f *fakePool) Begin(ctx context.Context) (pgx.Tx, error) {
	tx := &fakeTx{}
	f.txs = append(f.txs, tx)
	return tx, nil
}

type fakeTx struct {
	rolled    bool
	committed bool
}

func (f *fakeTx) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("fakeTx does not support nested transactions")
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rolled = true
	return nil
}

func (f *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}

func (f *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}

func (f *fakeTx) LargeObjects() pgx.LargeObjects {
	panic("not implemented")
}

func (f *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}

func (f *fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}

func (f *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("not implemented")
}

func (f *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("not implemented")
}

func (f *fakeTx) Conn() *pgx.Conn {
	return nil
}

type fakeReports struct {
	found []report.FoundItem
	lost  []report.LostItem
}

func (f *fakeReports) ListOpenFound(context.Context) ([]report.FoundItem, error) {
	return f.found, nil
}

func (f *fakeReports) ListUnresolvedLost(context.Context) ([]report.LostItem, error) {
	return f.lost, nil
}

// fakeCatalog mimics the upsert semantics of the real catalog: a replace
// refreshes score and breakdown but never touches notified.
type fakeCatalog struct {
	records map[string]map[string]MatchRecord
	pruned  int64
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{records: make(map[string]map[string]MatchRecord)}
}

func (f *fakeCatalog) PruneOrphans(context.Context) (int64, error) {
	return f.pruned, nil
}

func (f *fakeCatalog) ReplaceForFoundItem(_ context.Context, _ pgx.Tx, foundItemID string, records []MatchRecord) error {
	existing := f.records[foundItemID]
	next := make(map[string]MatchRecord, len(records))
	for _, rec := range records {
		if prev, ok := existing[rec.LostItemID]; ok {
			rec.Notified = prev.Notified
		}
		next[rec.LostItemID] = rec
	}
	f.records[foundItemID] = next
	return nil
}

func (f *fakeCatalog) UnnotifiedForFoundItem(_ context.Context, _ pgx.Tx, foundItemID string) ([]MatchRecord, error) {
	var pending []MatchRecord
	for _, rec := range f.records[foundItemID] {
		if !rec.Notified {
			pending = append(pending, rec)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Score > pending[j].Score })
	return pending, nil
}

func (f *fakeCatalog) MarkNotified(_ context.Context, _ pgx.Tx, foundItemID, lostItemID string) error {
	rec, ok := f.records[foundItemID][lostItemID]
	if !ok {
		return fmt.Errorf("no record %s/%s", foundItemID, lostItemID)
	}
	rec.Notified = true
	f.records[foundItemID][lostItemID] = rec
	return nil
}

func (f *fakeCatalog) TopForFoundItem(_ context.Context, foundItemID string, limit int) ([]MatchRecord, error) {
	var out []MatchRecord
	for _, rec := range f.records[foundItemID] {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeCatalog) TopForLostItem(_ context.Context, lostItemID string, limit int) ([]MatchRecord, error) {
	var out []MatchRecord
	for _, byLost := range f.records {
		if rec, ok := byLost[lostItemID]; ok {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakePairScorer struct {
	scores map[string]float64
	errs   map[string]error
}

func pairKey(lostID, foundID string) string { return lostID + "/" + foundID }

func (f *fakePairScorer) Score(_ context.Context, lost report.LostItem, found report.FoundItem) (Breakdown, error) {
	key := pairKey(lost.ID, found.ID)
	if err, ok := f.errs[key]; ok {
		return Breakdown{}, err
	}
	score := f.scores[key]
	return Breakdown{Composite: score, Description: score}, nil
}

type fakeNotifier struct {
	sent    []string
	failFor map[string]bool
}

func (f *fakeNotifier) Send(_ context.Context, recipient, subject, _ string) error {
	if f.failFor[recipient] {
		return errors.New("smtp unavailable")
	}
	f.sent = append(f.sent, recipient)
	return nil
}

func schedulerFixture() (*fakeReports, *fakePairScorer) {
	reports := &fakeReports{
		found: []report.FoundItem{{ID: "found-1", Title: "wallet", FinderEmail: "finder@campus.edu", Status: report.StatusOpen}},
		lost: []report.LostItem{
			{ID: "lost-1", Title: "wallet", ReporterEmail: "a@campus.edu"},
			{ID: "lost-2", Title: "wallet", ReporterEmail: "b@campus.edu"},
			{ID: "lost-3", Title: "keys", ReporterEmail: "c@campus.edu"},
		},
	}
	scorer := &fakePairScorer{
		scores: map[string]float64{
			pairKey("lost-1", "found-1"): 0.9,
			pairKey("lost-2", "found-1"): 0.7,
			pairKey("lost-3", "found-1"): 0.4,
		},
	}
	return reports, scorer
}

func TestRunOnceStoresQualifyingMatchesAndNotifies(t *testing.T) {
	reports, scorer := schedulerFixture()
	pool := &fakePool{}
	catalog := newFakeCatalog()
	notifier := &fakeNotifier{}

	s := NewScheduler(pool, reports, catalog, scorer, notifier, 0.6, 10, 4)

	stats, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if stats.PairsScored != 3 {
		t.Errorf("pairs scored = %d, want 3", stats.PairsScored)
	}
	if stats.MatchesStored != 2 {
		t.Errorf("matches stored = %d, want 2", stats.MatchesStored)
	}
	if stats.NotificationsSent != 2 {
		t.Errorf("notifications sent = %d, want 2", stats.NotificationsSent)
	}

	stored := catalog.records["found-1"]
	if len(stored) != 2 {
		t.Fatalf("stored records = %d, want 2", len(stored))
	}
	if _, ok := stored["lost-3"]; ok {
		t.Errorf("sub-threshold pair should not be stored")
	}
	for lostID, rec := range stored {
		if !rec.Notified {
			t.Errorf("record %s should be marked notified", lostID)
		}
	}

	if len(pool.txs) != 1 || !pool.txs[0].committed {
		t.Errorf("expected a single committed transaction")
	}
}

func TestRunOnceHonorsTopK(t *testing.T) {
	reports, scorer := schedulerFixture()
	scorer.scores[pairKey("lost-3", "found-1")] = 0.65

	s := NewScheduler(&fakePool{}, reports, newFakeCatalog(), scorer, &fakeNotifier{}, 0.6, 2, 4)

	stats, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if stats.MatchesStored != 2 {
		t.Errorf("matches stored = %d, want top-2", stats.MatchesStored)
	}
}

func TestRunOncePreservesNotifiedFlagAcrossRecompute(t *testing.T) {
	reports, scorer := schedulerFixture()
	catalog := newFakeCatalog()
	notifier := &fakeNotifier{}

	s := NewScheduler(&fakePool{}, reports, catalog, scorer, notifier, 0.6, 10, 4)

	if _, err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	firstSends := len(notifier.sent)

	// Scores shift, the pairs stay qualifying.
	scorer.scores[pairKey("lost-1", "found-1")] = 0.85
	scorer.scores[pairKey("lost-2", "found-1")] = 0.75

	if _, err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("second pass: %v", err)
	}

	if len(notifier.sent) != firstSends {
		t.Errorf("recompute re-sent notifications: %d -> %d", firstSends, len(notifier.sent))
	}

	rec := catalog.records["found-1"]["lost-1"]
	if !rec.Notified {
		t.Errorf("notified flag lost across recompute")
	}
	if rec.Score != 0.85 {
		t.Errorf("score not refreshed: %v", rec.Score)
	}
}

func TestRunOnceSendFailureLeavesFlagUnset(t *testing.T) {
	reports, scorer := schedulerFixture()
	catalog := newFakeCatalog()
	notifier := &fakeNotifier{failFor: map[string]bool{"a@campus.edu": true}}

	s := NewScheduler(&fakePool{}, reports, catalog, scorer, notifier, 0.6, 10, 4)

	stats, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if stats.NotificationsSent != 1 {
		t.Errorf("notifications sent = %d, want 1", stats.NotificationsSent)
	}
	if catalog.records["found-1"]["lost-1"].Notified {
		t.Errorf("failed send must leave the record unnotified for retry")
	}
	if !catalog.records["found-1"]["lost-2"].Notified {
		t.Errorf("successful send should mark the record")
	}

	// Next pass retries the failed recipient.
	notifier.failFor = nil
	if _, err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("retry pass: %v", err)
	}
	if !catalog.records["found-1"]["lost-1"].Notified {
		t.Errorf("retry pass should deliver and mark the record")
	}
}

func TestRunOnceSkipsFailedPairs(t *testing.T) {
	reports, scorer := schedulerFixture()
	scorer.errs = map[string]error{pairKey("lost-1", "found-1"): errors.New("embed service down")}

	catalog := newFakeCatalog()
	s := NewScheduler(&fakePool{}, reports, catalog, scorer, &fakeNotifier{}, 0.6, 10, 4)

	stats, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if stats.PairsSkipped != 1 {
		t.Errorf("pairs skipped = %d, want 1", stats.PairsSkipped)
	}
	if stats.PairsScored != 2 {
		t.Errorf("pairs scored = %d, want 2", stats.PairsScored)
	}
	if _, ok := catalog.records["found-1"]["lost-1"]; ok {
		t.Errorf("failed pair must not be stored")
	}
	if _, ok := catalog.records["found-1"]["lost-2"]; !ok {
		t.Errorf("healthy pair should still be stored")
	}
}

func TestRunOnceRejectsOverlappingPass(t *testing.T) {
	reports, scorer := schedulerFixture()
	s := NewScheduler(&fakePool{}, reports, newFakeCatalog(), scorer, &fakeNotifier{}, 0.6, 10, 4)

	s.mu.Lock()
	defer s.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		_, err := s.RunOnce(context.Background())
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, ErrPassActive) {
			t.Fatalf("expected ErrPassActive, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("overlapping pass should fail fast, not block")
	}
}

func TestServiceRanksFromCatalog(t *testing.T) {
	reports, scorer := schedulerFixture()
	catalog := newFakeCatalog()
	s := NewScheduler(&fakePool{}, reports, catalog, scorer, &fakeNotifier{}, 0.6, 10, 4)
	if _, err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("seed pass: %v", err)
	}

	svc := NewService(catalog, 10)

	ranked, err := svc.MatchesForFound(context.Background(), "found-1")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(ranked) != 2 {
		t.Fatalf("ranked = %d, want 2", len(ranked))
	}
	if ranked[0].ItemID != "lost-1" || ranked[1].ItemID != "lost-2" {
		t.Errorf("wrong order: %s, %s", ranked[0].ItemID, ranked[1].ItemID)
	}

	byLost, err := svc.MatchesForLost(context.Background(), "lost-2")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(byLost) != 1 || byLost[0].ItemID != "found-1" {
		t.Errorf("lost-side lookup wrong: %+v", byLost)
	}
}

package matching

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akshitha1024/traceback/test/infra"
)

func startHarness(t *testing.T) (*infra.Harness, context.Context) {
	t.Helper()
	if os.Getenv("TRACEBACK_INTEGRATION") == "" {
		t.Skip("TRACEBACK_INTEGRATION not set; skipping integration test")
	}

	ctx := context.Background()
	h, err := infra.NewHarness(ctx)
	if err != nil {
		t.Fatalf("start harness: %v", err)
	}
	t.Cleanup(func() { h.Close(context.Background()) })
	return h, ctx
}

func seedLost(t *testing.T, ctx context.Context, pool *pgxpool.Pool, resolved bool) string {
	t.Helper()
	id := uuid.NewString()
	_, err := pool.Exec(ctx, `
		INSERT INTO lost_items (id, title, category, location, date_lost, reporter_email, resolved)
		VALUES ($1, 'black wallet', 'Accessories', 'Library', now(), 'owner@campus.edu', $2)
	`, id, resolved)
	if err != nil {
		t.Fatalf("seed lost item: %v", err)
	}
	return id
}

func seedFound(t *testing.T, ctx context.Context, pool *pgxpool.Pool, status string) string {
	t.Helper()
	id := uuid.NewString()
	_, err := pool.Exec(ctx, `
		INSERT INTO found_items (id, title, category, location, date_found, finder_email, status)
		VALUES ($1, 'black wallet', 'Accessories', 'Library', now(), 'finder@campus.edu', $2)
	`, id, status)
	if err != nil {
		t.Fatalf("seed found item: %v", err)
	}
	return id
}

func TestCatalogUpsertPreservesNotified(t *testing.T) {
	h, ctx := startHarness(t)
	pool := h.Pool()
	catalog := NewCatalog(pool)

	lostID := seedLost(t, ctx, pool, false)
	foundID := seedFound(t, ctx, pool, "open")

	record := MatchRecord{
		FoundItemID: foundID,
		LostItemID:  lostID,
		Score:       0.82,
		Breakdown:   Breakdown{Composite: 0.82, Description: 0.9},
		ComputedAt:  time.Now().UTC(),
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := catalog.ReplaceForFoundItem(ctx, tx, foundID, []MatchRecord{record}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := catalog.MarkNotified(ctx, tx, foundID, lostID); err != nil {
		t.Fatalf("mark notified: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	// Recompute with a different score; the flag must survive.
	record.Score = 0.74
	record.Breakdown.Composite = 0.74

	tx, err = pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := catalog.ReplaceForFoundItem(ctx, tx, foundID, []MatchRecord{record}); err != nil {
		t.Fatalf("replace again: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	stored, err := catalog.TopForFoundItem(ctx, foundID, 10)
	if err != nil {
		t.Fatalf("top for found: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("stored = %d, want 1", len(stored))
	}
	if stored[0].Score != 0.74 {
		t.Errorf("score not refreshed: %v", stored[0].Score)
	}
	if !stored[0].Notified {
		t.Errorf("notified flag lost across upsert")
	}
	if stored[0].Breakdown.Description != 0.9 {
		t.Errorf("breakdown not round-tripped: %+v", stored[0].Breakdown)
	}
}

func TestCatalogReplaceDropsNoLongerQualifyingPairs(t *testing.T) {
	h, ctx := startHarness(t)
	pool := h.Pool()
	catalog := NewCatalog(pool)

	foundID := seedFound(t, ctx, pool, "open")
	keepID := seedLost(t, ctx, pool, false)
	dropID := seedLost(t, ctx, pool, false)

	now := time.Now().UTC()
	both := []MatchRecord{
		{FoundItemID: foundID, LostItemID: keepID, Score: 0.8, Breakdown: Breakdown{Composite: 0.8}, ComputedAt: now},
		{FoundItemID: foundID, LostItemID: dropID, Score: 0.65, Breakdown: Breakdown{Composite: 0.65}, ComputedAt: now},
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := catalog.ReplaceForFoundItem(ctx, tx, foundID, both); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	tx, err = pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := catalog.ReplaceForFoundItem(ctx, tx, foundID, both[:1]); err != nil {
		t.Fatalf("replace subset: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	stored, err := catalog.TopForFoundItem(ctx, foundID, 10)
	if err != nil {
		t.Fatalf("top for found: %v", err)
	}
	if len(stored) != 1 || stored[0].LostItemID != keepID {
		t.Errorf("stored = %+v, want only %s", stored, keepID)
	}
}

func TestCatalogPruneOrphans(t *testing.T) {
	h, ctx := startHarness(t)
	pool := h.Pool()
	catalog := NewCatalog(pool)

	foundID := seedFound(t, ctx, pool, "open")
	liveID := seedLost(t, ctx, pool, false)
	resolvedID := seedLost(t, ctx, pool, true)

	now := time.Now().UTC()
	records := []MatchRecord{
		{FoundItemID: foundID, LostItemID: liveID, Score: 0.8, Breakdown: Breakdown{Composite: 0.8}, ComputedAt: now},
		{FoundItemID: foundID, LostItemID: resolvedID, Score: 0.7, Breakdown: Breakdown{Composite: 0.7}, ComputedAt: now},
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := catalog.ReplaceForFoundItem(ctx, tx, foundID, records); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	pruned, err := catalog.PruneOrphans(ctx)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if pruned != 1 {
		t.Errorf("pruned = %d, want 1", pruned)
	}

	stored, err := catalog.TopForFoundItem(ctx, foundID, 10)
	if err != nil {
		t.Fatalf("top for found: %v", err)
	}
	if len(stored) != 1 || stored[0].LostItemID != liveID {
		t.Errorf("stored = %+v, want only %s", stored, liveID)
	}
}

package claim

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/akshitha1024/traceback/test/infra"
)

func TestLedgerEnforcesOneAttemptPerClaimant(t *testing.T) {
	if os.Getenv("TRACEBACK_INTEGRATION") == "" {
		t.Skip("TRACEBACK_INTEGRATION not set; skipping integration test")
	}

	ctx := context.Background()
	h, err := infra.NewHarness(ctx)
	if err != nil {
		t.Fatalf("start harness: %v", err)
	}
	t.Cleanup(func() { h.Close(context.Background()) })

	pool := h.Pool()
	foundID := uuid.NewString()
	if _, err := pool.Exec(ctx, `
		INSERT INTO found_items (id, title, category, location, date_found, finder_email)
		VALUES ($1, 'calculator', 'Electronics', 'Math building', now(), 'finder@campus.edu')
	`, foundID); err != nil {
		t.Fatalf("seed found item: %v", err)
	}

	ledger := NewLedger(pool)
	attempt := Attempt{
		ID:            uuid.NewString(),
		FoundItemID:   foundID,
		ClaimantEmail: "claimant@campus.edu",
		Verified:      false,
		CorrectCount:  1,
		TotalCount:    3,
		Answers:       map[string]string{"q1": "TI-84", "q2": "physics club"},
		CreatedAt:     time.Now().UTC(),
	}

	if err := ledger.Insert(ctx, attempt); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	attempt.ID = uuid.NewString()
	attempt.Verified = true
	if err := ledger.Insert(ctx, attempt); !errors.Is(err, ErrAlreadyAttempted) {
		t.Fatalf("expected ErrAlreadyAttempted, got %v", err)
	}

	attempts, err := ledger.ListForItem(ctx, foundID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(attempts) != 1 {
		t.Errorf("attempts = %d, want 1", len(attempts))
	}
	if attempts[0].Verified {
		t.Errorf("rejected duplicate must not overwrite the original attempt")
	}
	if attempts[0].Answers["q1"] != "TI-84" {
		t.Errorf("submitted answers not round-tripped: %+v", attempts[0].Answers)
	}
}

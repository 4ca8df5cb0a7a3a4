package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/akshitha1024/traceback/claim"
	"github.com/akshitha1024/traceback/report"
)

type memLedger struct {
	attempts map[string]claim.Attempt
}

func (m *memLedger) key(foundItemID, email string) string {
	return foundItemID + "/" + email
}

func (m *memLedger) Insert(_ context.Context, attempt claim.Attempt) error {
	key := m.key(attempt.FoundItemID, attempt.ClaimantEmail)
	if _, ok := m.attempts[key]; ok {
		return claim.ErrAlreadyAttempted
	}
	m.attempts[key] = attempt
	return nil
}

func (m *memLedger) Get(_ context.Context, foundItemID, email string) (claim.Attempt, error) {
	attempt, ok := m.attempts[m.key(foundItemID, email)]
	if !ok {
		return claim.Attempt{}, claim.ErrNotFound
	}
	return attempt, nil
}

func (m *memLedger) ListForItem(_ context.Context, foundItemID string) ([]claim.Attempt, error) {
	var out []claim.Attempt
	for _, attempt := range m.attempts {
		if attempt.FoundItemID == foundItemID {
			out = append(out, attempt)
		}
	}
	return out, nil
}

func (m *memLedger) SetPotential(context.Context, string, string, bool) error {
	return nil
}

type staticTokens struct{}

func (staticTokens) Issue(itemID, email string) (string, error) {
	return "token-" + itemID, nil
}

func claimRouter(t *testing.T, repo *fakeRepo) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := claim.NewService(&memLedger{attempts: make(map[string]claim.Attempt)}, repo, staticTokens{})
	verify := NewClaimHandler(svc)

	r := gin.New()
	r.GET("/api/v1/found/:id/questions", verify.Questions)
	r.POST("/api/v1/found/:id/claims", verify.Verify)
	r.GET("/api/v1/found/:id/claims/:email", verify.GetAttempt)
	return r
}

func claimFixtureRepo(t *testing.T) *fakeRepo {
	t.Helper()
	digest, err := report.HashAnswer("red dragon")
	if err != nil {
		t.Fatalf("hash answer: %v", err)
	}
	return &fakeRepo{
		found: map[string]report.FoundItem{
			"found-1": {
				ID:          "found-1",
				Title:       "silver laptop",
				FinderEmail: "finder@campus.edu",
				Status:      report.StatusOpen,
			},
		},
		questions: []report.SecurityQuestion{
			{ID: "q1", FoundItemID: "found-1", Question: "What sticker is on the lid?", AnswerDigest: digest, Kind: report.AnswerFreeText, Position: 0},
		},
	}
}

func TestQuestionsEndpointOmitsDigests(t *testing.T) {
	r := claimRouter(t, claimFixtureRepo(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/found/found-1/questions", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Questions []claim.Question `json:"questions"`
		Count     int              `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || resp.Questions[0].ID != "q1" {
		t.Errorf("response = %+v", resp)
	}
	if strings.Contains(w.Body.String(), "digest") || strings.Contains(w.Body.String(), "$2a$") {
		t.Errorf("answer digest leaked: %s", w.Body.String())
	}
}

func TestAttemptStatusEndpoint(t *testing.T) {
	r := claimRouter(t, claimFixtureRepo(t))

	attemptURL := "/api/v1/found/found-1/claims/claimant@campus.edu"

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, attemptURL, nil)
	req.Header.Set("X-User-Email", "claimant@campus.edu")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Attempted bool `json:"attempted"`
		Attempt   *struct {
			Verified bool `json:"verified"`
			Correct  int  `json:"correct"`
		} `json:"attempt"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Attempted || resp.Attempt != nil {
		t.Errorf("fresh claimant should have no attempt: %s", w.Body.String())
	}

	// Spend the attempt, then the status flips and carries the summary.
	body := strings.NewReader(`{"answers": {"q1": "red dragon"}}`)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/found/found-1/claims", body)
	req.Header.Set("X-User-Email", "claimant@campus.edu")
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("verify status = %d, body = %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, attemptURL, nil)
	req.Header.Set("X-User-Email", "claimant@campus.edu")
	r.ServeHTTP(w, req)

	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Attempted || resp.Attempt == nil {
		t.Fatalf("attempt not reported: %s", w.Body.String())
	}
	if !resp.Attempt.Verified || resp.Attempt.Correct != 1 {
		t.Errorf("attempt summary = %+v", resp.Attempt)
	}

	// Claimants cannot read someone else's record.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, attemptURL, nil)
	req.Header.Set("X-User-Email", "snoop@campus.edu")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("foreign lookup status = %d, want 403", w.Code)
	}
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/akshitha1024/traceback/privacy"
	"github.com/akshitha1024/traceback/report"
)

type fakeRepo struct {
	found     map[string]report.FoundItem
	questions []report.SecurityQuestion
}

func (f *fakeRepo) GetLost(context.Context, string) (report.LostItem, error) {
	return report.LostItem{}, report.ErrNotFound
}

func (f *fakeRepo) GetFound(_ context.Context, id string) (report.FoundItem, error) {
	item, ok := f.found[id]
	if !ok {
		return report.FoundItem{}, report.ErrNotFound
	}
	return item, nil
}

func (f *fakeRepo) ListUnresolvedLost(context.Context) ([]report.LostItem, error) {
	return nil, nil
}

func (f *fakeRepo) ListOpenFound(context.Context) ([]report.FoundItem, error) {
	return nil, nil
}

func (f *fakeRepo) ListFound(context.Context, report.Filters) ([]report.FoundItem, error) {
	out := make([]report.FoundItem, 0, len(f.found))
	for _, item := range f.found {
		out = append(out, item)
	}
	return out, nil
}

func (f *fakeRepo) QuestionsForItem(context.Context, string) ([]report.SecurityQuestion, error) {
	return f.questions, nil
}

func (f *fakeRepo) ListRecipients(context.Context, string) ([]string, error) {
	return nil, nil
}

func (f *fakeRepo) CreateLost(context.Context, report.CreateLostParams) (report.LostItem, error) {
	return report.LostItem{}, nil
}

func (f *fakeRepo) CreateFound(context.Context, report.CreateFoundParams) (report.FoundItem, error) {
	return report.FoundItem{}, nil
}

func itemRouter(t *testing.T, tokens *privacy.TokenIssuer, repo *fakeRepo) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	items := NewItemHandler(repo, privacy.NewManager(tokens), 30*24*time.Hour)
	r.GET("/api/v1/found/:id", items.GetFound)
	return r
}

func TestGetFoundRedactsPrivateItem(t *testing.T) {
	expires := time.Now().Add(10 * 24 * time.Hour)
	repo := &fakeRepo{found: map[string]report.FoundItem{
		"found-1": {
			ID:               "found-1",
			Title:            "silver watch",
			Description:      "engraved on the back",
			FinderEmail:      "finder@campus.edu",
			FinderName:       "Sam Finder",
			Status:           report.StatusOpen,
			Visibility:       report.VisibilityPrivate,
			PrivacyExpiresAt: &expires,
		},
	}}
	tokens := privacy.NewTokenIssuer("test-secret", time.Hour)
	r := itemRouter(t, tokens, repo)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/found/found-1", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var view privacy.View
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !view.Redacted {
		t.Errorf("expected redacted view without a token")
	}
	if view.Description != privacy.RedactedDetails {
		t.Errorf("description = %q", view.Description)
	}

	// Same request with a reveal token gets the full record.
	token, err := tokens.Issue("found-1", "claimant@campus.edu")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/found/found-1", nil)
	req.Header.Set("X-Reveal-Token", token)
	r.ServeHTTP(w, req)

	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Redacted {
		t.Errorf("valid token should reveal the item")
	}
	if view.FinderContact != "finder@campus.edu" {
		t.Errorf("finder contact = %q", view.FinderContact)
	}
}

func TestGetFoundMissingItem(t *testing.T) {
	r := itemRouter(t, privacy.NewTokenIssuer("test-secret", time.Hour), &fakeRepo{found: map[string]report.FoundItem{}})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/found/nope", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

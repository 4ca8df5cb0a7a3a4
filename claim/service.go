package claim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/akshitha1024/traceback/metrics"
	"github.com/akshitha1024/traceback/report"
)

// passFraction is the share of questions a claimant must answer correctly.
const passFraction = 0.67

// ItemStore is the slice of the report repository the verifier needs.
type ItemStore interface {
	GetFound(ctx context.Context, id string) (report.FoundItem, error)
	QuestionsForItem(ctx context.Context, foundItemID string) ([]report.SecurityQuestion, error)
}

// TokenIssuer mints reveal tokens for verified claimants.
type TokenIssuer interface {
	Issue(itemID, email string) (string, error)
}

// VerifyResult reports the outcome of one verification attempt.
type VerifyResult struct {
	Verified      bool
	CorrectCount  int
	TotalCount    int
	RequiredCount int
	RevealToken   string
	Item          *report.FoundItem
}

// Service enforces the claim verification rules.
type Service struct {
	ledger Ledger
	items  ItemStore
	tokens TokenIssuer

	now   func() time.Time
	idGen func() string
}

func NewService(ledger Ledger, items ItemStore, tokens TokenIssuer) *Service {
	return &Service{
		ledger: ledger,
		items:  items,
		tokens: tokens,
		now:    time.Now,
		idGen:  uuid.NewString,
	}
}

// Verify checks the claimant's answers, keyed by question id, against the
// item's security questions and records the attempt. Each claimant gets
// exactly one attempt per item regardless of outcome. On success the result
// carries a reveal token and the unredacted item.
func (s *Service) Verify(ctx context.Context, foundItemID, claimantEmail string, answers map[string]string) (VerifyResult, error) {
	item, err := s.items.GetFound(ctx, foundItemID)
	if err != nil {
		return VerifyResult{}, err
	}
	if item.Status != report.StatusOpen {
		return VerifyResult{}, ErrItemClosed
	}
	if claimantEmail == item.FinderEmail {
		return VerifyResult{}, ErrForbidden
	}

	questions, err := s.items.QuestionsForItem(ctx, foundItemID)
	if err != nil {
		return VerifyResult{}, err
	}
	if len(questions) == 0 {
		return VerifyResult{}, ErrNoQuestions
	}

	correct := 0
	for _, q := range questions {
		answer, ok := answers[q.ID]
		if !ok {
			continue
		}
		if report.AnswerMatches(q.AnswerDigest, answer) {
			correct++
		}
	}

	required := requiredCorrect(len(questions))
	result := VerifyResult{
		Verified:      correct >= required,
		CorrectCount:  correct,
		TotalCount:    len(questions),
		RequiredCount: required,
	}

	attempt := Attempt{
		ID:            s.idGen(),
		FoundItemID:   foundItemID,
		ClaimantEmail: claimantEmail,
		Verified:      result.Verified,
		CorrectCount:  correct,
		TotalCount:    len(questions),
		Answers:       answers,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.ledger.Insert(ctx, attempt); err != nil {
		if errors.Is(err, ErrAlreadyAttempted) {
			metrics.ClaimAttempts.WithLabelValues("duplicate").Inc()
		}
		return VerifyResult{}, err
	}

	if result.Verified {
		metrics.ClaimAttempts.WithLabelValues("verified").Inc()
		token, err := s.tokens.Issue(foundItemID, claimantEmail)
		if err != nil {
			return VerifyResult{}, fmt.Errorf("claim: issue reveal token: %w", err)
		}
		result.RevealToken = token
		result.Item = &item
	} else {
		metrics.ClaimAttempts.WithLabelValues("failed").Inc()
	}

	return result, nil
}

// HasAttempted reports whether a claimant already used their attempt and
// returns the recorded attempt when they have.
func (s *Service) HasAttempted(ctx context.Context, foundItemID, claimantEmail string) (bool, *Attempt, error) {
	attempt, err := s.ledger.Get(ctx, foundItemID, claimantEmail)
	if errors.Is(err, ErrNotFound) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	return true, &attempt, nil
}

// Question is one security question as shown to a claimant. The answer
// digest never leaves the store.
type Question struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Kind     string `json:"kind"`
	Position int    `json:"position"`
}

// Questions lists the item's security questions for a prospective claimant.
func (s *Service) Questions(ctx context.Context, foundItemID string) ([]Question, error) {
	item, err := s.items.GetFound(ctx, foundItemID)
	if err != nil {
		return nil, err
	}
	if item.Status != report.StatusOpen {
		return nil, ErrItemClosed
	}

	stored, err := s.items.QuestionsForItem(ctx, foundItemID)
	if err != nil {
		return nil, err
	}
	out := make([]Question, 0, len(stored))
	for _, q := range stored {
		out = append(out, Question{
			ID:       q.ID,
			Question: q.Question,
			Kind:     string(q.Kind),
			Position: q.Position,
		})
	}
	return out, nil
}

// ListAttempts returns every attempt against the item. Only the item's
// finder may see the ledger.
func (s *Service) ListAttempts(ctx context.Context, foundItemID, requesterEmail string) ([]Attempt, error) {
	item, err := s.items.GetFound(ctx, foundItemID)
	if err != nil {
		return nil, err
	}
	if item.FinderEmail != requesterEmail {
		return nil, ErrForbidden
	}
	return s.ledger.ListForItem(ctx, foundItemID)
}

// MarkPotential lets the finder flag a claimant as the likely owner.
func (s *Service) MarkPotential(ctx context.Context, foundItemID, claimantEmail, requesterEmail string, potential bool) error {
	item, err := s.items.GetFound(ctx, foundItemID)
	if err != nil {
		return err
	}
	if item.FinderEmail != requesterEmail {
		return ErrForbidden
	}
	return s.ledger.SetPotential(ctx, foundItemID, claimantEmail, potential)
}

// requiredCorrect is the minimum correct answers to pass. Two of three
// passes: int truncation of 0.67*3 gives 2.
func requiredCorrect(total int) int {
	required := int(passFraction * float64(total))
	if required < 1 {
		required = 1
	}
	return required
}

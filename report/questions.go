package report

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// NormalizeAnswer reduces an answer to its comparable form: trimmed and
// lowercased. Both the canonical answer (at question creation) and every
// submitted answer (at verification) pass through here.
func NormalizeAnswer(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}

// HashAnswer produces the bcrypt digest stored for a canonical answer.
// Plaintext answers never reach the database.
func HashAnswer(answer string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(NormalizeAnswer(answer)), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("report: hash answer: %w", err)
	}
	return string(digest), nil
}

// AnswerMatches reports whether a submitted answer matches the stored digest.
func AnswerMatches(digest, submitted string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(NormalizeAnswer(submitted))) == nil
}

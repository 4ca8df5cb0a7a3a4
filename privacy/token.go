package privacy

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenInvalid signals a reveal token that is missing, expired, forged
// or issued for a different item.
var ErrTokenInvalid = errors.New("privacy: invalid reveal token")

type revealClaims struct {
	ItemID string `json:"item_id"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies short-lived reveal tokens. A token grants
// one verified claimant access to an item's unredacted details.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration

	now func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *TokenIssuer) Issue(itemID, email string) (string, error) {
	now := t.now()
	claims := revealClaims{
		ItemID: itemID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("privacy: sign reveal token: %w", err)
	}
	return signed, nil
}

// Verify returns the item and claimant e-mail a valid token was issued for.
func (t *TokenIssuer) Verify(token string) (itemID, email string, err error) {
	var claims revealClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil || !parsed.Valid {
		return "", "", ErrTokenInvalid
	}
	return claims.ItemID, claims.Subject, nil
}

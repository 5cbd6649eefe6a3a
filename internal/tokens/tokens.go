// Package tokens mints and verifies the opaque session tokens handed to
// chat clients. Tokens are compact HS256 JWTs carrying the session and
// tutor identity; clients treat them as opaque strings.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers every verification failure: bad signature, wrong
// algorithm, expiry, malformed payload. Callers translate it to 401.
var ErrInvalidToken = errors.New("invalid session token")

// Claims is the token payload.
type Claims struct {
	SessionID string `json:"sid"`
	TutorID   string `json:"tid"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies session tokens with a shared symmetric key.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer builds an issuer. The secret must be non-empty; ttl bounds the
// token (and therefore session) lifetime.
func NewIssuer(secret []byte, ttl time.Duration) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("tokens: empty signing secret")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{secret: secret, ttl: ttl, now: time.Now}, nil
}

// Mint issues a token for the given session.
func (i *Issuer) Mint(sessionID, tutorID string) (string, error) {
	now := i.now().UTC()
	claims := Claims{
		SessionID: sessionID,
		TutorID:   tutorID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "brainmate",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning its claims.
func (i *Issuer) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithLeeway(30*time.Second),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.SessionID == "" || claims.TutorID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

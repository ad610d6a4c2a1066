package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// TokenTTL is the fixed lifetime of a session token.
const TokenTTL = time.Hour

// Claims is the session token payload. Subject carries the user id.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies HS256-signed session tokens.
// There is no revocation list: a token stays valid until it expires.
type TokenIssuer struct {
	secret []byte
	now    func() time.Time
}

// TokenOption configures a TokenIssuer.
type TokenOption func(*TokenIssuer)

// WithClock replaces the issuer's time source.
func WithClock(now func() time.Time) TokenOption {
	return func(t *TokenIssuer) { t.now = now }
}

// NewTokenIssuer creates an issuer signing with secret.
// An empty secret is rejected with ErrMissingSecret.
func NewTokenIssuer(secret string, opts ...TokenOption) (*TokenIssuer, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	t := &TokenIssuer{secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Issue returns a signed token for userID that expires TokenTTL from now.
func (t *TokenIssuer) Issue(userID string) (string, error) {
	if userID == "" {
		return "", oops.Code("TOKEN_ISSUE_FAILED").Errorf("empty user id")
	}

	issuedAt := t.now().Truncate(time.Second)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(TokenTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", oops.Code("TOKEN_ISSUE_FAILED").Wrap(err)
	}
	return signed, nil
}

// Verify checks the token's signature and expiry and returns its user id.
// Expired tokens yield ErrTokenExpired; anything else wrong yields ErrInvalidToken.
func (t *TokenIssuer) Verify(token string) (string, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, t.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", oops.Code("TOKEN_EXPIRED").Wrap(ErrTokenExpired)
		}
		return "", oops.Code("TOKEN_INVALID").With("reason", err.Error()).Wrap(ErrInvalidToken)
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", oops.Code("TOKEN_INVALID").Wrap(ErrInvalidToken)
	}
	return claims.Subject, nil
}

func (t *TokenIssuer) keyFunc(*jwt.Token) (any, error) {
	return t.secret, nil
}

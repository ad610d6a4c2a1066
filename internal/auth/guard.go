package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"pennytrail/internal/models"
	"pennytrail/internal/storage"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "token"

// Context key type to avoid collisions.
type contextKey string

// userContextKey is the context key for the authenticated user.
const userContextKey contextKey = "user"

// UserLookup resolves a user id to a live user.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// Guard authenticates requests by their session cookie.
type Guard struct {
	tokens *TokenIssuer
	users  UserLookup
}

// NewGuard creates a Guard.
func NewGuard(tokens *TokenIssuer, users UserLookup) *Guard {
	return &Guard{tokens: tokens, users: users}
}

// Authenticate resolves the request's session to a user.
//
// It returns ErrAuthenticationRequired when no token is present and
// ErrInvalidSession when the token does not verify or names a user that no
// longer exists. Other errors come from the user store.
func (g *Guard) Authenticate(r *http.Request) (*models.User, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrAuthenticationRequired
	}

	userID, err := g.tokens.Verify(cookie.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}

	user, err := g.users.GetUserByID(r.Context(), userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Middleware rejects unauthenticated requests through onError and otherwise
// stores the resolved user in the request context. It never refreshes the token.
func (g *Guard) Middleware(onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := g.Authenticate(r)
			if err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext retrieves the authenticated user from ctx.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userContextKey).(*models.User)
	return user, ok && user != nil
}

package auth

import "errors"

var (
	// ErrMissingSecret is returned when the token signing secret is empty.
	ErrMissingSecret = errors.New("auth: token signing secret is not set")
	// ErrInvalidToken is returned for tokens with a bad signature or payload.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrTokenExpired is returned for tokens presented at or after their expiry.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrAuthenticationRequired is returned when no session token was presented.
	ErrAuthenticationRequired = errors.New("auth: authentication required")
	// ErrInvalidSession is returned when a token fails verification or its user no longer exists.
	ErrInvalidSession = errors.New("auth: invalid session")
)

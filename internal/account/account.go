// Package account implements the credential lifecycle: signup, login,
// profile reads and updates, and password changes.
package account

import (
	"context"
	"errors"
	"sync"

	"github.com/samber/oops"

	"pennytrail/internal/auth"
	"pennytrail/internal/models"
	"pennytrail/internal/storage"
	"pennytrail/internal/validation"
)

// ErrInvalidCredentials is returned for an unknown email or a wrong password.
// Callers cannot tell the two cases apart.
var ErrInvalidCredentials = errors.New("invalid credentials")

// TokenIssuer mints session tokens.
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

// Service orchestrates the credential store, hasher and token issuer.
type Service struct {
	users  storage.UserStore
	hasher auth.Hasher
	tokens TokenIssuer

	dummyOnce sync.Once
	dummyHash string
}

// NewService creates a Service.
func NewService(users storage.UserStore, hasher auth.Hasher, tokens TokenIssuer) *Service {
	return &Service{users: users, hasher: hasher, tokens: tokens}
}

// Signup registers a new account. No token is issued; the caller logs in separately.
func (s *Service) Signup(ctx context.Context, in validation.SignupInput) (*models.User, error) {
	if err := validation.Signup(&in); err != nil {
		return nil, err
	}

	_, err := s.users.GetUserByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return nil, oops.Code("USER_DUPLICATE_EMAIL").Wrap(storage.ErrDuplicateEmail)
	case !errors.Is(err, storage.ErrNotFound):
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	// A concurrent signup may still win the race; the store's unique index decides.
	return s.users.CreateUser(ctx, in.Name, in.Email, hash)
}

// Login verifies credentials and returns the user with a fresh session token.
func (s *Service) Login(ctx context.Context, in validation.LoginInput) (*models.User, string, error) {
	if err := validation.Login(&in); err != nil {
		return nil, "", err
	}

	creds, err := s.users.GetCredentialsByEmail(ctx, in.Email)
	if errors.Is(err, storage.ErrNotFound) {
		// Spend the same hashing time as a real comparison.
		s.hasher.Verify(in.Password, s.dummy())
		return nil, "", oops.Code("INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
	}
	if err != nil {
		return nil, "", err
	}

	if !s.hasher.Verify(in.Password, creds.PasswordHash) {
		return nil, "", oops.Code("INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
	}

	token, err := s.tokens.Issue(creds.User.ID)
	if err != nil {
		return nil, "", err
	}
	user := creds.User
	return &user, token, nil
}

// Profile returns the user's public record.
func (s *Service) Profile(ctx context.Context, userID string) (*models.User, error) {
	return s.users.GetUserByID(ctx, userID)
}

// UpdateProfile changes the user's name and email.
func (s *Service) UpdateProfile(ctx context.Context, userID string, in validation.ProfileInput) (*models.User, error) {
	if err := validation.Profile(&in); err != nil {
		return nil, err
	}
	return s.users.UpdateProfile(ctx, userID, in.Name, in.Email)
}

// ChangePassword replaces the user's password after checking the old one.
// Tokens issued before the change stay valid until they expire.
func (s *Service) ChangePassword(ctx context.Context, userID string, in validation.ChangePasswordInput) error {
	if err := validation.ChangePassword(&in); err != nil {
		return err
	}

	creds, err := s.users.GetCredentialsByID(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(in.OldPassword, creds.PasswordHash) {
		return oops.Code("INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
	}

	if err := validation.NewPassword(in.NewPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return err
	}
	return s.users.UpdatePasswordHash(ctx, userID, hash)
}

// fallbackDummyHash is a well-formed bcrypt hash at auth.DefaultCost, used
// when the hasher cannot produce one of its own.
const fallbackDummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("pennytrail-dummy-password")
		if err != nil {
			hash = fallbackDummyHash
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

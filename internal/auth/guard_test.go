package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"pennytrail/internal/models"
	"pennytrail/internal/storage"
)

type fakeUsers struct {
	users map[string]*models.User
	err   error
}

func (f *fakeUsers) GetUserByID(_ context.Context, id string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	user, ok := f.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return user, nil
}

type GuardTestSuite struct {
	suite.Suite
	clock  *fakeClock
	tokens *TokenIssuer
	users  *fakeUsers
	guard  *Guard
}

func (s *GuardTestSuite) SetupTest() {
	s.clock = &fakeClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	tokens, err := NewTokenIssuer("secret", WithClock(s.clock.Now))
	s.Require().NoError(err)
	s.tokens = tokens
	s.users = &fakeUsers{users: map[string]*models.User{
		"u-1": {ID: "u-1", Name: "Ana", Email: "ana@x.com"},
	}}
	s.guard = NewGuard(s.tokens, s.users)
}

func TestGuardTestSuite(t *testing.T) {
	suite.Run(t, new(GuardTestSuite))
}

func (s *GuardTestSuite) requestWithToken(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/user/profile", nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	}
	return req
}

func (s *GuardTestSuite) TestNoCookie() {
	_, err := s.guard.Authenticate(s.requestWithToken(""))
	s.ErrorIs(err, ErrAuthenticationRequired)
}

func (s *GuardTestSuite) TestEmptyCookie() {
	req := httptest.NewRequest(http.MethodGet, "/user/profile", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: ""})

	_, err := s.guard.Authenticate(req)
	s.ErrorIs(err, ErrAuthenticationRequired)
}

func (s *GuardTestSuite) TestGarbageToken() {
	_, err := s.guard.Authenticate(s.requestWithToken("not-a-jwt"))
	s.ErrorIs(err, ErrInvalidSession)
	s.ErrorIs(err, ErrInvalidToken)
}

func (s *GuardTestSuite) TestExpiredToken() {
	token, err := s.tokens.Issue("u-1")
	s.Require().NoError(err)

	s.clock.now = s.clock.now.Add(TokenTTL + time.Minute)
	_, err = s.guard.Authenticate(s.requestWithToken(token))
	s.ErrorIs(err, ErrInvalidSession)
	s.ErrorIs(err, ErrTokenExpired)
}

func (s *GuardTestSuite) TestVanishedUser() {
	token, err := s.tokens.Issue("u-gone")
	s.Require().NoError(err)

	_, err = s.guard.Authenticate(s.requestWithToken(token))
	s.ErrorIs(err, ErrInvalidSession)
}

func (s *GuardTestSuite) TestStoreFailurePassesThrough() {
	token, err := s.tokens.Issue("u-1")
	s.Require().NoError(err)
	s.users.err = errors.New("database is locked")

	_, err = s.guard.Authenticate(s.requestWithToken(token))
	s.Require().Error(err)
	s.NotErrorIs(err, ErrInvalidSession)
	s.NotErrorIs(err, ErrAuthenticationRequired)
}

func (s *GuardTestSuite) TestValidToken() {
	token, err := s.tokens.Issue("u-1")
	s.Require().NoError(err)

	user, err := s.guard.Authenticate(s.requestWithToken(token))
	s.Require().NoError(err)
	s.Equal("Ana", user.Name)
}

func (s *GuardTestSuite) TestMiddlewareInjectsUser() {
	token, err := s.tokens.Issue("u-1")
	s.Require().NoError(err)

	var seen *models.User
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	onError := func(w http.ResponseWriter, _ *http.Request, _ error) {
		s.Fail("onError must not be called for a valid session")
	}

	rec := httptest.NewRecorder()
	s.guard.Middleware(onError)(next).ServeHTTP(rec, s.requestWithToken(token))

	s.Equal(http.StatusOK, rec.Code)
	s.Require().NotNil(seen)
	s.Equal("u-1", seen.ID)
	s.Empty(rec.Result().Cookies(), "the session must not be refreshed")
}

func (s *GuardTestSuite) TestMiddlewareRejects() {
	called := false
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })

	var gotErr error
	onError := func(w http.ResponseWriter, _ *http.Request, err error) {
		gotErr = err
		w.WriteHeader(http.StatusUnauthorized)
	}

	rec := httptest.NewRecorder()
	s.guard.Middleware(onError)(next).ServeHTTP(rec, s.requestWithToken(""))

	s.False(called)
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.ErrorIs(gotErr, ErrAuthenticationRequired)
}

func TestUserFromContext(t *testing.T) {
	_, ok := UserFromContext(context.Background())
	assert.False(t, ok)

	_, ok = UserFromContext(WithUser(context.Background(), nil))
	assert.False(t, ok)

	user, ok := UserFromContext(WithUser(context.Background(), &models.User{ID: "u-1"}))
	require.True(t, ok)
	assert.Equal(t, "u-1", user.ID)
}

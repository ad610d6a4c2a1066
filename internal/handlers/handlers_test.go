package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"pennytrail/internal/account"
	"pennytrail/internal/auth"
	"pennytrail/internal/metrics"
	"pennytrail/internal/models"
	"pennytrail/internal/storage"
)

type HandlersTestSuite struct {
	suite.Suite
	db      *storage.DB
	tokens  *auth.TokenIssuer
	h       *Handlers
	handler http.Handler
	now     time.Time
}

func (s *HandlersTestSuite) SetupTest() {
	db, err := storage.NewDB(":memory:")
	s.Require().NoError(err)
	s.db = db

	s.now = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return s.now }
	tokens, err := auth.NewTokenIssuer("test-secret", auth.WithClock(clock))
	s.Require().NoError(err)
	s.tokens = tokens

	accounts := account.NewService(db, auth.NewBcryptHasher(auth.WithCost(bcrypt.MinCost)), tokens)
	s.h = NewHandlers(accounts, db, auth.NewGuard(tokens, db), metrics.New(), false)
	s.h.now = clock
	s.handler = s.h.Routes()
}

func (s *HandlersTestSuite) TearDownTest() {
	s.db.Close()
}

func TestHandlersTestSuite(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}

func (s *HandlersTestSuite) do(method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *HandlersTestSuite) decode(rec *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (s *HandlersTestSuite) message(rec *httptest.ResponseRecorder) string {
	msg, _ := s.decode(rec)["message"].(string)
	return msg
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			return c
		}
	}
	return nil
}

func (s *HandlersTestSuite) signup(name, email, password string) {
	rec := s.do(http.MethodPost, "/user/signup", map[string]string{"name": name, "email": email, "password": password}, nil)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
}

func (s *HandlersTestSuite) login(email, password string) *http.Cookie {
	rec := s.do(http.MethodPost, "/user/login", map[string]string{"email": email, "password": password}, nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	cookie := sessionCookie(rec)
	s.Require().NotNil(cookie)
	return cookie
}

func (s *HandlersTestSuite) addExpense(cookie *http.Cookie, amount float64, category, date, description string) *models.Expense {
	rec := s.do(http.MethodPost, "/expense/add", map[string]any{
		"amount": amount, "category": category, "date": date, "description": description,
	}, cookie)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	var resp expenseResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Expense
}

func (s *HandlersTestSuite) TestWelcomeAndHealth() {
	rec := s.do(http.MethodGet, "/", nil, nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("Welcome to Penny Trail", s.message(rec))

	rec = s.do(http.MethodGet, "/healthz", nil, nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("ok", s.decode(rec)["status"])

	rec = s.do(http.MethodGet, "/metrics", nil, nil)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *HandlersTestSuite) TestUnmatchedRoutesGetWelcome() {
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/nowhere"},
		{http.MethodPost, "/"},
		{http.MethodDelete, "/expense"},
		{http.MethodGet, "/user/signup"},
	} {
		rec := s.do(tc.method, tc.path, nil, nil)
		s.Equal(http.StatusOK, rec.Code, "%s %s", tc.method, tc.path)
		s.Equal("Welcome to Penny Trail", s.message(rec), "%s %s", tc.method, tc.path)
	}
}

func (s *HandlersTestSuite) TestSignupAndLoginExample() {
	rec := s.do(http.MethodPost, "/user/signup", map[string]string{"name": "Ana", "email": "ana@x.com", "password": "Str0ng!pw"}, nil)
	s.Equal(http.StatusCreated, rec.Code)
	s.Equal("User created successfully. Please Log In!", s.message(rec))
	s.Nil(sessionCookie(rec), "signup does not log the user in")

	rec = s.do(http.MethodPost, "/user/login", map[string]string{"email": "ana@x.com", "password": "Str0ng!pw"}, nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	cookie := sessionCookie(rec)
	s.Require().NotNil(cookie)
	s.True(cookie.HttpOnly)
	s.False(cookie.Secure)
	s.Equal(http.SameSiteLaxMode, cookie.SameSite)
	s.Equal(3600, cookie.MaxAge)

	body := s.decode(rec)
	s.Equal("Login successful", body["message"])
	data, ok := body["data"].(map[string]any)
	s.Require().True(ok)
	s.Equal("Ana", data["name"])
	s.Equal("ana@x.com", data["email"])
	s.NotContains(data, "password")
	s.NotContains(data, "passwordHash")
	s.NotContains(rec.Body.String(), "$2a$", "no hash leaks into the body")
}

func (s *HandlersTestSuite) TestSignupValidation() {
	tests := []struct {
		name    string
		body    map[string]string
		wantMsg string
	}{
		{"missing fields", map[string]string{"email": "ana@x.com"}, "Please fill all fields"},
		{"bad email", map[string]string{"name": "Ana", "email": "ana", "password": "Str0ng!pw"}, "Email is not valid"},
		{"weak password", map[string]string{"name": "Ana", "email": "ana@x.com", "password": "password"}, "Password is not strong enough"},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			rec := s.do(http.MethodPost, "/user/signup", tt.body, nil)
			s.Equal(http.StatusBadRequest, rec.Code)
			s.Equal(tt.wantMsg, s.message(rec))
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/user/signup", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(msgInvalidBody, s.message(rec))
}

func (s *HandlersTestSuite) TestSignupDuplicate() {
	s.signup("Ana", "ana@x.com", "Str0ng!pw")

	rec := s.do(http.MethodPost, "/user/signup", map[string]string{"name": "Ana 2", "email": "ana@x.com", "password": "Str0ng!pw2"}, nil)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("User already exists", s.message(rec))

	count, err := s.db.UserCount(context.Background())
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *HandlersTestSuite) TestLoginFailures() {
	s.signup("Ana", "ana@x.com", "Str0ng!pw")

	wrong := s.do(http.MethodPost, "/user/login", map[string]string{"email": "ana@x.com", "password": "Wr0ng!pw"}, nil)
	unknown := s.do(http.MethodPost, "/user/login", map[string]string{"email": "bob@x.com", "password": "Str0ng!pw"}, nil)

	s.Equal(http.StatusUnauthorized, wrong.Code)
	s.Equal(http.StatusUnauthorized, unknown.Code)
	s.Equal("Invalid credentials", s.message(wrong))
	s.Equal(wrong.Body.String(), unknown.Body.String(), "unknown email and wrong password look the same")
	s.Nil(sessionCookie(wrong))

	rec := s.do(http.MethodPost, "/user/login", map[string]string{"email": "ana@x.com"}, nil)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("Please fill all fields", s.message(rec))
}

func (s *HandlersTestSuite) TestProtectedRoutesRequireSession() {
	routes := []struct{ method, path string }{
		{http.MethodGet, "/user/profile"},
		{http.MethodPut, "/user/profile"},
		{http.MethodPut, "/user/changepassword"},
		{http.MethodGet, "/user/logout"},
		{http.MethodPost, "/expense/add"},
		{http.MethodGet, "/expense/get"},
		{http.MethodGet, "/expense/stats"},
		{http.MethodPut, "/expense/update/0b4c9d1e-5f6a-4b7c-8d9e-0f1a2b3c4d5e"},
		{http.MethodDelete, "/expense/delete/0b4c9d1e-5f6a-4b7c-8d9e-0f1a2b3c4d5e"},
	}
	for _, rt := range routes {
		rec := s.do(rt.method, rt.path, nil, nil)
		s.Equal(http.StatusUnauthorized, rec.Code, "%s %s", rt.method, rt.path)
		s.Equal(msgAuthRequired, s.message(rec))

		rec = s.do(rt.method, rt.path, nil, &http.Cookie{Name: auth.SessionCookieName, Value: "garbage"})
		s.Equal(http.StatusUnauthorized, rec.Code, "%s %s", rt.method, rt.path)
		s.Equal(msgInvalidSession, s.message(rec))
	}
}

func (s *HandlersTestSuite) TestTokenResolvesToSameUserWithinAnHour() {
	s.signup("Ana", "ana@x.com", "Str0ng!pw")
	cookie := s.login("ana@x.com", "Str0ng!pw")

	user, err := s.db.GetUserByEmail(context.Background(), "ana@x.com")
	s.Require().NoError(err)

	s.now = s.now.Add(59 * time.Minute)
	rec := s.do(http.MethodGet, "/user/profile", nil, cookie)
	s.Require().Equal(http.StatusOK, rec.Code)
	body := s.decode(rec)
	s.Equal(user.ID, body["id"])
	s.NotContains(body, "password")
	s.NotContains(body, "passwordHash")
}

func (s *HandlersTestSuite) TestExpiredTokenRejected() {
	s.signup("Ana", "ana@x.com", "Str0ng!pw")
	cookie := s.login("ana@x.com", "Str0ng!pw")

	s.now = s.now.Add(time.Hour)
	rec := s.do(http.MethodGet, "/user/profile", nil, cookie)
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Equal(msgInvalidSession, s.message(rec))
}

func (s *HandlersTestSuite) TestTokenForVanishedUserRejected() {
	token, err := s.tokens.Issue("no-such-user")
	s.Require().NoError(err)

	rec := s.do(http.MethodGet, "/user/profile", nil, &http.Cookie{Name: auth.SessionCookieName, Value: token})
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Equal(msgInvalidSession, s.message(rec))
}

func (s *HandlersTestSuite) TestUpdateProfile() {
	s.signup("Ana", "ana@x.com", "Str0ng!pw")
	s.signup("Bob", "bob@x.com", "B0b!secret")
	cookie := s.login("ana@x.com", "Str0ng!pw")

	rec := s.do(http.MethodPut, "/user/profile", map[string]string{"name": "Ana Maria", "email": "AM@x.com"}, cookie)
	s.Require().Equal(http.StatusOK, rec.Code)
	body := s.decode(rec)
	s.Equal("Ana Maria", body["name"])
	s.Equal("am@x.com", body["email"])
	s.NotContains(body, "passwordHash")

	rec = s.do(http.MethodPut, "/user/profile", map[string]string{"email": "am@x.com"}, cookie)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("Name is required", s.message(rec))

	rec = s.do(http.MethodPut, "/user/profile", map[string]string{"name": "Ana", "email": "bob@x.com"}, cookie)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("User already exists", s.message(rec))
}

func (s *HandlersTestSuite) TestChangePassword() {
	s.signup("Ana", "ana@x.com", "Str0ng!pw")
	cookie := s.login("ana@x.com", "Str0ng!pw")

	rec := s.do(http.MethodPut, "/user/changepassword", map[string]string{"oldPassword": "Wr0ng!pw", "newPassword": "N3w!passw"}, cookie)
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Equal("Invalid credentials", s.message(rec))

	rec = s.do(http.MethodPut, "/user/changepassword", map[string]string{"oldPassword": "Str0ng!pw", "newPassword": "weak"}, cookie)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("Password is not strong enough", s.message(rec))

	rec = s.do(http.MethodPut, "/user/changepassword", map[string]string{"oldPassword": "Str0ng!pw"}, cookie)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("Please fill all fields", s.message(rec))

	rec = s.do(http.MethodPut, "/user/changepassword", map[string]string{"oldPassword": "Str0ng!pw", "newPassword": "N3w!passw"}, cookie)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("Password changed successfully", s.message(rec))

	rec = s.do(http.MethodPost, "/user/login", map[string]string{"email": "ana@x.com", "password": "Str0ng!pw"}, nil)
	s.Equal(http.StatusUnauthorized, rec.Code, "old password no longer authenticates")

	s.login("ana@x.com", "N3w!passw")

	rec = s.do(http.MethodGet, "/user/profile", nil, cookie)
	s.Equal(http.StatusOK, rec.Code, "tokens issued before the change remain usable")
}

func (s *HandlersTestSuite) TestLogout() {
	s.signup("Ana", "ana@x.com", "Str0ng!pw")
	cookie := s.login("ana@x.com", "Str0ng!pw")

	rec := s.do(http.MethodGet, "/user/logout", nil, cookie)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("Logout successful", s.message(rec))

	cleared := sessionCookie(rec)
	s.Require().NotNil(cleared)
	s.Empty(cleared.Value)
	s.Negative(cleared.MaxAge)

	rec = s.do(http.MethodGet, "/user/profile", nil, cookie)
	s.Equal(http.StatusOK, rec.Code, "logout does not revoke the token server-side")
}

func (s *HandlersTestSuite) TestProductionCookie() {
	s.h.secureCookie = true
	s.signup("Ana", "ana@x.com", "Str0ng!pw")
	cookie := s.login("ana@x.com", "Str0ng!pw")

	s.True(cookie.Secure)
	s.Equal(http.SameSiteNoneMode, cookie.SameSite)
}

func (s *HandlersTestSuite) TestExpenseLifecycle() {
	s.signup("Ana", "ana@x.com", "Str0ng!pw")
	cookie := s.login("ana@x.com", "Str0ng!pw")

	rec := s.do(http.MethodGet, "/expense/get", nil, cookie)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`[]`, rec.Body.String())

	rec = s.do(http.MethodPost, "/expense/add", map[string]any{
		"amount": 42.5, "category": "Food & Groceries", "date": "2026-03-10", "description": "Market",
	}, cookie)
	s.Require().Equal(http.StatusCreated, rec.Code)
	s.Equal("Expense added successfully", s.message(rec))
	var added expenseResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &added))
	s.NotEmpty(added.Expense.ID)
	s.Equal(models.CategoryFood, added.Expense.Category)

	s.addExpense(cookie, 3, "Transport", "2026-03-12", "Bus")

	rec = s.do(http.MethodGet, "/expense/get", nil, cookie)
	var list []models.Expense
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &list))
	s.Require().Len(list, 2)
	s.Equal("Bus", list[0].Description, "newest first")

	rec = s.do(http.MethodPut, "/expense/update/"+added.Expense.ID, map[string]any{
		"amount": 50, "category": "Lifestyle", "date": "2026-03-11", "description": "Dinner",
	}, cookie)
	s.Require().Equal(http.StatusOK, rec.Code)
	var updated expenseResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &updated))
	s.Equal("Expense updated successfully", updated.Message)
	s.Equal(50.0, updated.Expense.Amount)
	s.Equal(models.CategoryLifestyle, updated.Expense.Category)
	s.Equal(added.Expense.ID, updated.Expense.ID)

	rec = s.do(http.MethodDelete, "/expense/delete/"+added.Expense.ID, nil, cookie)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("Expense deleted successfully", s.message(rec))

	rec = s.do(http.MethodDelete, "/expense/delete/"+added.Expense.ID, nil, cookie)
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal("Expense not found", s.message(rec))
}

func (s *HandlersTestSuite) TestInvalidCategoryPersistsNothing() {
	s.signup("Ana", "ana@x.com", "Str0ng!pw")
	cookie := s.login("ana@x.com", "Str0ng!pw")

	rec := s.do(http.MethodPost, "/expense/add", map[string]any{
		"amount": 10, "category": "Invalid", "date": "2026-03-10", "description": "Mystery",
	}, cookie)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("Invalid category", s.message(rec))

	rec = s.do(http.MethodPost, "/expense/add", map[string]any{"category": "Health"}, cookie)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("Amount, category, date, and description are required", s.message(rec))

	user, err := s.db.GetUserByEmail(context.Background(), "ana@x.com")
	s.Require().NoError(err)
	expenses, err := s.db.ListExpenses(context.Background(), user.ID)
	s.Require().NoError(err)
	s.Empty(expenses)
}

func (s *HandlersTestSuite) TestExpenseIDValidation() {
	s.signup("Ana", "ana@x.com", "Str0ng!pw")
	cookie := s.login("ana@x.com", "Str0ng!pw")

	rec := s.do(http.MethodDelete, "/expense/delete/not-a-uuid", nil, cookie)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("Invalid expense ID", s.message(rec))

	rec = s.do(http.MethodDelete, "/expense/delete/", nil, cookie)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("Expense ID is required", s.message(rec))

	rec = s.do(http.MethodPut, "/expense/update/", nil, cookie)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("Expense ID is required", s.message(rec))
}

func (s *HandlersTestSuite) TestOwnershipIsNotFound() {
	s.signup("Alice", "alice@x.com", "Al1ce!pwd")
	s.signup("Bob", "bob@x.com", "B0b!secret")
	alice := s.login("alice@x.com", "Al1ce!pwd")
	bob := s.login("bob@x.com", "B0b!secret")

	bobs := s.addExpense(bob, 99, "Health", "2026-03-01", "Dentist")

	rec := s.do(http.MethodPut, "/expense/update/"+bobs.ID, map[string]any{
		"amount": 1, "category": "Others", "date": "2026-03-02", "description": "Hijacked",
	}, alice)
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal("Expense not found", s.message(rec))

	rec = s.do(http.MethodPut, "/expense/update/"+bobs.ID, map[string]any{"category": "Invalid"}, alice)
	s.Equal(http.StatusNotFound, rec.Code, "ownership is checked before the body")

	rec = s.do(http.MethodDelete, "/expense/delete/"+bobs.ID, nil, alice)
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal("Expense not found", s.message(rec))

	rec = s.do(http.MethodGet, "/expense/get", nil, alice)
	s.JSONEq(`[]`, rec.Body.String())

	rec = s.do(http.MethodGet, "/expense/get", nil, bob)
	var list []models.Expense
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &list))
	s.Require().Len(list, 1)
	s.Equal("Dentist", list[0].Description)
	s.Equal(99.0, list[0].Amount)
}

func (s *HandlersTestSuite) TestStatistics() {
	s.signup("Ana", "ana@x.com", "Str0ng!pw")
	s.signup("Bob", "bob@x.com", "B0b!secret")
	ana := s.login("ana@x.com", "Str0ng!pw")
	bob := s.login("bob@x.com", "B0b!secret")

	s.addExpense(ana, 30, "Food & Groceries", "2026-03-02", "Market")
	s.addExpense(ana, 10, "Food & Groceries", "2026-03-20", "Bakery")
	s.addExpense(ana, 60, "Transport", "2026-03-05", "Train")
	s.addExpense(ana, 500, "Transport", "2026-02-05", "Flight")
	s.addExpense(bob, 1000, "Lifestyle", "2026-03-05", "Watch")

	rec := s.do(http.MethodGet, "/expense/stats", nil, ana)
	s.Require().Equal(http.StatusOK, rec.Code)

	var stats StatsResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &stats))
	s.Equal(2026, stats.Year)
	s.Equal(3, stats.Month)
	s.Equal("March", stats.MonthName)
	s.True(stats.IsCurrentMonth)
	s.Equal(100.0, stats.Total)
	s.Equal(MonthRef{Year: 2026, Month: 2}, stats.Prev)
	s.Equal(MonthRef{Year: 2026, Month: 4}, stats.Next)

	byCategory := map[models.Category]StatsCategoryItem{}
	for _, item := range stats.Categories {
		byCategory[item.Category] = item
	}
	s.Require().Len(byCategory, 2)
	s.Equal(40.0, byCategory[models.CategoryFood].Total)
	s.Equal(2, byCategory[models.CategoryFood].Count)
	s.InDelta(60.0, byCategory[models.CategoryTransport].Percentage, 0.001)

	rec = s.do(http.MethodGet, "/expense/stats?year=2026&month=2", nil, ana)
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &stats))
	s.False(stats.IsCurrentMonth)
	s.Equal(500.0, stats.Total)

	rec = s.do(http.MethodGet, "/expense/stats?year=2026&month=13", nil, ana)
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &stats))
	s.Equal(3, stats.Month, "an invalid month falls back to the current one")
}

func (s *HandlersTestSuite) TestCORS() {
	handler := CORS(DefaultCORSConfig([]string{"http://localhost:5173"}))(s.handler)

	req := httptest.NewRequest(http.MethodOptions, "/user/login", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	s.Equal(http.StatusNoContent, rec.Code)
	s.Equal("http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	s.Equal("true", rec.Header().Get("Access-Control-Allow-Credentials"))
	s.Contains(rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPut)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	s.Equal(http.StatusOK, rec.Code)
	s.Empty(rec.Header().Get("Access-Control-Allow-Origin"))
}

// Package handlers implements the JSON HTTP API.
package handlers

import (
	"net/http"
	"time"

	"pennytrail/internal/account"
	"pennytrail/internal/auth"
	"pennytrail/internal/metrics"
	"pennytrail/internal/models"
	"pennytrail/internal/storage"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	accounts     *account.Service
	store        storage.Store
	guard        *auth.Guard
	metrics      *metrics.Metrics
	secureCookie bool
	now          func() time.Time
}

// NewHandlers creates a new Handlers instance. secureCookie selects the
// production cookie attributes (Secure, SameSite=None).
func NewHandlers(accounts *account.Service, store storage.Store, guard *auth.Guard, m *metrics.Metrics, secureCookie bool) *Handlers {
	return &Handlers{
		accounts:     accounts,
		store:        store,
		guard:        guard,
		metrics:      m,
		secureCookie: secureCookie,
		now:          time.Now,
	}
}

// Routes registers every endpoint on a new ServeMux.
func (h *Handlers) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", h.Welcome)
	mux.HandleFunc("GET /healthz", h.Health)
	mux.Handle("GET /metrics", h.metrics.Handler())

	mux.HandleFunc("POST /user/signup", h.Signup)
	mux.HandleFunc("POST /user/login", h.Login)
	mux.Handle("GET /user/profile", h.AuthMiddleware(http.HandlerFunc(h.Profile)))
	mux.Handle("PUT /user/profile", h.AuthMiddleware(http.HandlerFunc(h.UpdateProfile)))
	mux.Handle("PUT /user/changepassword", h.AuthMiddleware(http.HandlerFunc(h.ChangePassword)))
	mux.Handle("GET /user/logout", h.AuthMiddleware(http.HandlerFunc(h.Logout)))

	mux.Handle("POST /expense/add", h.AuthMiddleware(http.HandlerFunc(h.AddExpense)))
	mux.Handle("GET /expense/get", h.AuthMiddleware(http.HandlerFunc(h.ListExpenses)))
	mux.Handle("GET /expense/stats", h.AuthMiddleware(http.HandlerFunc(h.Statistics)))
	mux.Handle("PUT /expense/update/{id}", h.AuthMiddleware(http.HandlerFunc(h.UpdateExpense)))
	mux.Handle("PUT /expense/update/{$}", h.AuthMiddleware(http.HandlerFunc(h.UpdateExpense)))
	mux.Handle("DELETE /expense/delete/{id}", h.AuthMiddleware(http.HandlerFunc(h.DeleteExpense)))
	mux.Handle("DELETE /expense/delete/{$}", h.AuthMiddleware(http.HandlerFunc(h.DeleteExpense)))

	return mux
}

// AuthMiddleware wraps handlers to require a valid session.
func (h *Handlers) AuthMiddleware(next http.Handler) http.Handler {
	return h.guard.Middleware(h.rejectSession)(next)
}

func (h *Handlers) rejectSession(w http.ResponseWriter, r *http.Request, err error) {
	h.metrics.RecordAuth(metrics.EventSession, outcome(err))
	h.writeError(w, r, err)
}

// currentUser returns the user placed in the context by AuthMiddleware.
func currentUser(r *http.Request) *models.User {
	user, _ := auth.UserFromContext(r.Context())
	return user
}

// Welcome answers the root path.
func (h *Handlers) Welcome(w http.ResponseWriter, r *http.Request) {
	writeMessage(w, http.StatusOK, "Welcome to Penny Trail")
}

// Health reports whether the store is reachable.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		logger(r).Error().Err(err).Msg("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

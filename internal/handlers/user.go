package handlers

import (
	"net/http"

	"pennytrail/internal/auth"
	"pennytrail/internal/metrics"
	"pennytrail/internal/models"
	"pennytrail/internal/validation"
)

// loginResponse is the body of a successful login.
type loginResponse struct {
	Message string       `json:"message"`
	Data    *models.User `json:"data"`
}

// Signup registers a new account. The client must log in afterwards.
func (h *Handlers) Signup(w http.ResponseWriter, r *http.Request) {
	var in validation.SignupInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	user, err := h.accounts.Signup(r.Context(), in)
	h.metrics.RecordAuth(metrics.EventSignup, outcome(err))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	logger(r).Info().Str("user_id", user.ID).Msg("user signed up")
	writeMessage(w, http.StatusCreated, "User created successfully. Please Log In!")
}

// Login checks credentials and sets the session cookie.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in validation.LoginInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	user, token, err := h.accounts.Login(r.Context(), in)
	h.metrics.RecordAuth(metrics.EventLogin, outcome(err))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.setSessionCookie(w, token)
	logger(r).Info().Str("user_id", user.ID).Msg("user logged in")
	writeJSON(w, http.StatusOK, loginResponse{Message: "Login successful", Data: user})
}

// Profile returns the authenticated user.
func (h *Handlers) Profile(w http.ResponseWriter, r *http.Request) {
	user, err := h.accounts.Profile(r.Context(), currentUser(r).ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateProfile changes the authenticated user's name and email.
func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var in validation.ProfileInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	user, err := h.accounts.UpdateProfile(r.Context(), currentUser(r).ID, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// ChangePassword replaces the authenticated user's password. The current
// session cookie is left untouched.
func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var in validation.ChangePasswordInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	err := h.accounts.ChangePassword(r.Context(), currentUser(r).ID, in)
	h.metrics.RecordAuth(metrics.EventChangePassword, outcome(err))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Password changed successfully")
}

// Logout clears the session cookie. The token itself stays valid until it expires.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearSessionCookie(w)
	h.metrics.RecordAuth(metrics.EventLogout, metrics.OutcomeSuccess)
	writeMessage(w, http.StatusOK, "Logout successful")
}

func (h *Handlers) sameSite() http.SameSite {
	if h.secureCookie {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

func (h *Handlers) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.TokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: h.sameSite(),
	})
}

func (h *Handlers) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: h.sameSite(),
	})
}

package http

import (
	"errors"
	"log/slog"
	"net/http"

	"potrosnja/internal/core"
)

type authPageData struct {
	Error string
}

func (s *Server) handleSignupForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "signup.html", authPageData{})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	firstName := sanitizeInput(r.Form.Get("first_name"))
	lastName := sanitizeInput(r.Form.Get("last_name"))
	username := sanitizeInput(r.Form.Get("username"))
	password := r.Form.Get("password")

	_, err := s.auth.Register(r.Context(), firstName, lastName, username, password)
	switch {
	case errors.Is(err, core.ErrMissingField):
		s.renderStatus(w, r, http.StatusUnprocessableEntity, "signup.html", authPageData{Error: "Sva polja su obavezna."})
		return
	case errors.Is(err, core.ErrDuplicateUsername):
		s.renderStatus(w, r, http.StatusConflict, "signup.html", authPageData{Error: "Korisničko ime je zauzeto."})
		return
	case err != nil:
		slog.ErrorContext(r.Context(), "Signup failed", "error", err, "username", username)
		http.Error(w, "signup failed", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "login.html", authPageData{})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	username := sanitizeInput(r.Form.Get("username"))
	password := r.Form.Get("password")

	token, err := s.auth.Login(r.Context(), username, password)
	switch {
	case errors.Is(err, core.ErrUserNotFound):
		s.metrics.recordAuthFailure()
		s.renderStatus(w, r, http.StatusUnauthorized, "login.html", authPageData{Error: "Korisnik ne postoji."})
		return
	case errors.Is(err, core.ErrInvalidCredentials):
		s.metrics.recordAuthFailure()
		s.renderStatus(w, r, http.StatusUnauthorized, "login.html", authPageData{Error: "Pogrešna lozinka."})
		return
	case err != nil:
		slog.ErrorContext(r.Context(), "Login failed", "error", err, "username", username)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	s.setSessionCookie(w, token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Logout(r.Context(), sessionToken(r)); err != nil {
		slog.ErrorContext(r.Context(), "Logout failed", "error", err)
	}
	s.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

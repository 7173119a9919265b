package api

import (
	"errors"
	"net/http"

	"github.com/cryptobuddy/internal/session"
	"github.com/cryptobuddy/pkg/models"
)

// LoginRequest represents a login or registration request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

// handleLogin signs a user in
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// handleRegister signs a user in under a chosen display name
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.sessions.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// handleLogout removes the user together with their chat history
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Logout(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Logged out successfully",
	})
}

// handleMe returns the signed-in user
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.sessions.CurrentUser(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// currentUser resolves the user for session endpoints, writing 401 when
// nobody is signed in
func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, err := s.sessions.CurrentUser(r.Context())
	if err != nil {
		if !errors.Is(err, session.ErrNotAuthenticated) {
			s.fail(w, r, err)
			return nil, false
		}
		writeError(w, http.StatusUnauthorized, err.Error())
		return nil, false
	}
	return user, true
}

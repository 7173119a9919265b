package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/cryptobuddy/internal/chat"
)

// handleChat runs one conversation turn
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chat.TurnRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.turns.HandleTurn(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleListSessions lists the signed-in user's sessions, most recent first
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	sessions, err := s.sessions.LoadSessions(r.Context(), user.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	cs, err := s.sessions.GetSession(r.Context(), user.ID, mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, cs)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	if err := s.sessions.DeleteSession(r.Context(), user.ID, mux.Vars(r)["id"]); err != nil {
		s.fail(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

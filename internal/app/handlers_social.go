package app

import (
	"net/http"
	"strconv"

	"vrhub/api/internal/apperr"
)

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request, p params, id identity) {
	view, err := s.social.User(id.AccountID, p["id"])
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleV1Profile(w http.ResponseWriter, r *http.Request, p params, id identity) {
	view, err := s.social.User(id.AccountID, p["id"])
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleAddFriend(w http.ResponseWriter, r *http.Request, p params, id identity) {
	accepted, err := s.social.AddFriend(r.Context(), id.AccountID, p["id"])
	if err != nil {
		// Friend errors ride inside a 200 body so clients can surface
		// them inline.
		writeJSON(w, http.StatusOK, map[string]any{"accepted": false, "error": apperr.From(err).Message})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accepted": accepted})
}

func (s *Server) handleRemoveFriend(w http.ResponseWriter, r *http.Request, p params, id identity) {
	if err := s.social.RemoveFriend(id.AccountID, p["id"]); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleBlock(w http.ResponseWriter, r *http.Request, p params, id identity) {
	blocked, err := s.social.Block(id.AccountID, p["id"])
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"blocked": blocked})
}

func (s *Server) handleFriends(w http.ResponseWriter, r *http.Request, _ params, id identity) {
	friends, err := s.social.Friends(id.AccountID)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"friends": friends})
}

func (s *Server) handleFriendRequests(w http.ResponseWriter, r *http.Request, _ params, id identity) {
	requests, err := s.social.FriendRequests(id.AccountID)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": requests})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

package app

import (
	"encoding/json"
	"net/http"
	"strings"

	"vrhub/api/internal/account"
	"vrhub/api/internal/apperr"
	"vrhub/api/internal/auth"
	"vrhub/api/internal/blob"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request, _ params, _ identity) {
	var body struct {
		Handle   string `json:"handle"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp, err := s.accounts.Register(account.RegisterRequest{
		Handle:   body.Handle,
		Email:    body.Email,
		Password: body.Password,
	})
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":   true,
		"accountId": resp.AccountID,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request, p params, id identity) {
	s.login(w, r, auth.SchemeSession)
}

func (s *Server) handleV1Login(w http.ResponseWriter, r *http.Request, p params, id identity) {
	s.login(w, r, auth.SchemeAPI)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request, scheme string) {
	var body struct {
		Handle   string `json:"handle"`
		Password string `json:"password"`
		Device   string `json:"device"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Device == "" {
		body.Device = r.UserAgent()
	}
	resp, err := s.accounts.Login(account.LoginRequest{
		Handle:   body.Handle,
		Password: body.Password,
		Device:   body.Device,
		Scheme:   scheme,
	})
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request, _ params, id identity) {
	acct, err := s.accounts.Account(id.AccountID)
	if err != nil {
		fail(w, err)
		return
	}
	prof, err := s.accounts.Profile(id.AccountID)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":       acct.ID,
		"handle":   acct.Handle,
		"email":    acct.Email,
		"verified": acct.Verified,
		"rank":     acct.Rank,
		"profile":  prof,
	})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request, _ params, _ identity) {
	var body struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.accounts.VerifyEmail(body.Email, body.Code); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleResendVerify(w http.ResponseWriter, r *http.Request, _ params, id identity) {
	if _, err := s.accounts.ResendVerification(id.AccountID); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleUpdateProfile takes JSON, or a multipart form with an `updates`
// JSON parameter plus optional `image` and `banner` parts.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request, _ params, id identity) {
	var upd account.ProfileUpdate

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid multipart body")
			return
		}
		if raw := r.FormValue("updates"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &upd); err != nil {
				writeError(w, http.StatusBadRequest, "Invalid updates JSON")
				return
			}
		}
		if err := s.storeProfileImage(r, "image", blob.ImageKey(id.AccountID)); err != nil {
			fail(w, err)
			return
		}
		if err := s.storeProfileImage(r, "banner", blob.BannerKey(id.AccountID)); err != nil {
			fail(w, err)
			return
		}
	} else if err := decodeBody(r, &upd); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	prof, err := s.accounts.UpdateProfile(id.AccountID, upd)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prof)
}

func (s *Server) storeProfileImage(r *http.Request, part, key string) error {
	file, header, err := r.FormFile(part)
	if err != nil {
		return nil
	}
	defer file.Close()
	if s.blobs == nil {
		return apperr.Unavailable("File storage is not available")
	}
	return s.blobs.Put(r.Context(), key, file, header.Size, contentTypeByExt(header.Filename))
}

func (s *Server) handleUpdateHandle(w http.ResponseWriter, r *http.Request, _ params, id identity) {
	var body struct {
		Handle string `json:"handle"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.accounts.UpdateHandle(id.AccountID, body.Handle); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleUpdateEmail(w http.ResponseWriter, r *http.Request, _ params, id identity) {
	var body struct {
		Email string `json:"email"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.accounts.UpdateEmail(id.AccountID, body.Email); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleUpdatePassword(w http.ResponseWriter, r *http.Request, _ params, id identity) {
	var body struct {
		Current string `json:"current"`
		New     string `json:"new"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.accounts.UpdatePassword(id.AccountID, body.Current, body.New); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request, _ params, id identity) {
	var body struct {
		Handle   string `json:"handle"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.accounts.Delete(id.AccountID, body.Handle, body.Password); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request, _ params, id identity) {
	sessions, err := s.accounts.Sessions(id.AccountID)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request, p params, id identity) {
	if err := s.accounts.DeleteSession(id.AccountID, p["id"]); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleDeleteAllSessions(w http.ResponseWriter, r *http.Request, _ params, id identity) {
	n, err := s.accounts.DeleteAllSessions(id.AccountID)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "deleted": n})
}

func (s *Server) handleGameToken(w http.ResponseWriter, r *http.Request, _ params, id identity) {
	token, err := s.accounts.GameToken(id.AccountID)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"gameToken": token})
}

func (s *Server) handleRegenerateGameToken(w http.ResponseWriter, r *http.Request, _ params, id identity) {
	token, err := s.accounts.RegenerateGameToken(id.AccountID)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"gameToken": token})
}

func (s *Server) handleIssueJoinToken(w http.ResponseWriter, r *http.Request, _ params, id identity) {
	tok, err := s.accounts.IssueJoinToken(id.AccountID)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

func (s *Server) handleVerifyJoinToken(w http.ResponseWriter, r *http.Request, _ params, _ identity) {
	var body struct {
		Handle string `json:"handle"`
		Secret string `json:"secret"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	accountID, err := s.accounts.VerifyJoinToken(body.Handle, body.Secret)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accountId": accountID})
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request, _ params, id identity) {
	notifs, err := s.accounts.Notifications(id.AccountID)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": notifs})
}

func (s *Server) handleTickets(w http.ResponseWriter, r *http.Request, _ params, id identity) {
	tickets, err := s.accounts.Tickets(id.AccountID)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tickets": tickets})
}

func (s *Server) handleCreateTicket(w http.ResponseWriter, r *http.Request, _ params, id identity) {
	var req account.TicketRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ticket, err := s.accounts.CreateTicket(id.AccountID, req)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ticket)
}

func (s *Server) handleAuthTest(w http.ResponseWriter, r *http.Request, _ params, id identity) {
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"accountId":     id.AccountID,
		"handle":        id.Handle,
		"rank":          id.Rank,
	})
}

// Package account manages credentials, sessions, tokens and profiles.
package account

import (
	"fmt"
	"strings"
	"time"

	"vrhub/api/internal/apperr"
	"vrhub/api/internal/auth"
	"vrhub/api/internal/password"
	"vrhub/api/internal/search"
	"vrhub/api/internal/store"
	"vrhub/api/internal/util"
)

const joinTokenTTL = 5 * time.Minute

type Service struct {
	store  *store.Store
	tokens *auth.Tokens
	search *search.Service
	now    func() time.Time
}

func NewService(st *store.Store, tokens *auth.Tokens, searcher *search.Service) *Service {
	return &Service{store: st, tokens: tokens, search: searcher, now: time.Now}
}

type RegisterRequest struct {
	Handle   string
	Email    string
	Password string
}

type RegisterResponse struct {
	AccountID string
	// VerificationCode goes out via the mail pipeline, never the API response.
	VerificationCode string
}

func (s *Service) Register(req RegisterRequest) (*RegisterResponse, error) {
	handle := strings.TrimSpace(req.Handle)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if len(handle) < 3 {
		return nil, apperr.Validation("Handle must be at least 3 characters")
	}
	if !validEmail(email) {
		return nil, apperr.Validation("Invalid email address")
	}
	if len(req.Password) < 8 {
		return nil, apperr.Validation("Password must be at least 8 characters")
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	acct := store.Account{
		ID:           util.NewID(),
		Handle:       handle,
		Email:        email,
		PasswordHash: hash,
		Rank:         store.RankUser,
		VerifyCode:   util.NewSecret(),
		GameToken:    util.NewSecret(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	profile := store.Profile{
		ID:           acct.ID,
		Handle:       handle,
		DisplayName:  handle,
		CreatedAt:    now,
		UpdatedAt:    now,
		LastActiveAt: now,
	}

	err = s.store.Execute(func(tx *store.Tx) error {
		if taken, err := store.Accounts.Exists(tx, func(a store.Account) bool {
			return strings.EqualFold(a.Handle, handle)
		}); err != nil {
			return err
		} else if taken {
			return apperr.Conflict("Handle already taken")
		}
		if taken, err := store.Accounts.Exists(tx, func(a store.Account) bool {
			return a.Email == email
		}); err != nil {
			return err
		} else if taken {
			return apperr.Conflict("Email already registered")
		}
		if err := store.Accounts.Insert(tx, acct); err != nil {
			return err
		}
		return store.Profiles.Insert(tx, profile)
	})
	if err != nil {
		return nil, err
	}

	s.search.IndexUser(search.UserRecord{ID: acct.ID, Handle: handle, DisplayName: handle})
	return &RegisterResponse{AccountID: acct.ID, VerificationCode: acct.VerifyCode}, nil
}

// VerifyEmail marks the account verified when the code matches.
func (s *Service) VerifyEmail(email, code string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	return s.store.Execute(func(tx *store.Tx) error {
		acct, found, err := store.Accounts.FindOne(tx, func(a store.Account) bool {
			return a.Email == email
		})
		if err != nil {
			return err
		}
		if !found || acct.VerifyCode == "" || acct.VerifyCode != code {
			return apperr.Validation("Invalid verification code")
		}
		acct.Verified = true
		acct.VerifyCode = ""
		acct.UpdatedAt = s.now()
		return store.Accounts.Update(tx, acct)
	})
}

// ResendVerification rotates the verification code for an unverified account.
func (s *Service) ResendVerification(accountID string) (string, error) {
	code := util.NewSecret()
	err := s.store.Execute(func(tx *store.Tx) error {
		acct, found, err := store.Accounts.Get(tx, accountID)
		if err != nil {
			return err
		}
		if !found {
			return apperr.NotFound("Account not found")
		}
		if acct.Verified {
			return apperr.Validation("Account already verified")
		}
		acct.VerifyCode = code
		acct.UpdatedAt = s.now()
		return store.Accounts.Update(tx, acct)
	})
	if err != nil {
		return "", err
	}
	return code, nil
}

type LoginRequest struct {
	Handle   string
	Password string
	Device   string
	// Scheme selects session or api tokens; each surface issues its own.
	Scheme string
}

type LoginResponse struct {
	Token     string `json:"token"`
	AccountID string `json:"accountId"`
	Handle    string `json:"handle"`
	Rank      string `json:"rank"`
}

// Login verifies credentials, mints a token and records the session,
// all in one pass so a half-logged-in state cannot be observed.
func (s *Service) Login(req LoginRequest) (*LoginResponse, error) {
	handle := strings.TrimSpace(req.Handle)
	if handle == "" || req.Password == "" {
		return nil, apperr.Validation("Handle and password are required")
	}

	var acct store.Account
	var token string
	err := s.store.Execute(func(tx *store.Tx) error {
		found := false
		var err error
		acct, found, err = store.Accounts.FindOne(tx, func(a store.Account) bool {
			return strings.EqualFold(a.Handle, handle) || a.Email == strings.ToLower(handle)
		})
		if err != nil {
			return err
		}
		if !found {
			return apperr.Unauthenticated("Invalid credentials")
		}
		if err := password.Verify(req.Password, acct.PasswordHash); err != nil {
			return apperr.Unauthenticated("Invalid credentials")
		}

		now := s.now()
		session := store.Session{
			ID:         util.NewID(),
			AccountID:  acct.ID,
			Device:     req.Device,
			TokenID:    util.NewID(),
			CreatedAt:  now,
			LastUsedAt: now,
		}
		if err := store.Sessions.Insert(tx, session); err != nil {
			return err
		}

		if prof, found, err := store.Profiles.Get(tx, acct.ID); err == nil && found {
			prof.LastActiveAt = now
			if err := store.Profiles.Update(tx, prof); err != nil {
				return err
			}
		}

		if req.Scheme == auth.SchemeAPI {
			token, err = s.tokens.IssueAPI(acct.ID, acct.Handle, acct.Rank, session.TokenID)
		} else {
			token, err = s.tokens.IssueSession(acct.ID, acct.Handle, acct.Rank, session.TokenID)
		}
		if err != nil {
			return fmt.Errorf("issue token: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &LoginResponse{Token: token, AccountID: acct.ID, Handle: acct.Handle, Rank: acct.Rank}, nil
}

func (s *Service) Account(accountID string) (store.Account, error) {
	var acct store.Account
	err := s.store.Execute(func(tx *store.Tx) error {
		a, found, err := store.Accounts.Get(tx, accountID)
		if err != nil {
			return err
		}
		if !found {
			return apperr.NotFound("Account not found")
		}
		acct = a
		return nil
	})
	return acct, err
}

func (s *Service) Profile(id string) (store.Profile, error) {
	var prof store.Profile
	err := s.store.Execute(func(tx *store.Tx) error {
		p, found, err := store.Profiles.Get(tx, id)
		if err != nil {
			return err
		}
		if !found {
			return apperr.NotFound("User not found")
		}
		prof = p
		return nil
	})
	return prof, err
}

type ProfileUpdate struct {
	DisplayName  util.Opt[string] `json:"displayName"`
	Bio          util.Opt[string] `json:"bio"`
	Status       util.Opt[string] `json:"status"`
	DoNotDisturb util.Opt[bool]   `json:"doNotDisturb"`
}

func (s *Service) UpdateProfile(accountID string, upd ProfileUpdate) (store.Profile, error) {
	var prof store.Profile
	err := s.store.Execute(func(tx *store.Tx) error {
		p, found, err := store.Profiles.Get(tx, accountID)
		if err != nil {
			return err
		}
		if !found {
			return apperr.NotFound("User not found")
		}
		changed := false
		changed = upd.DisplayName.Apply(&p.DisplayName) || changed
		changed = upd.Bio.Apply(&p.Bio) || changed
		changed = upd.Status.Apply(&p.Status) || changed
		changed = upd.DoNotDisturb.Apply(&p.DoNotDisturb) || changed
		if changed {
			p.UpdatedAt = s.now()
			if err := store.Profiles.Update(tx, p); err != nil {
				return err
			}
		}
		prof = p
		return nil
	})
	if err != nil {
		return store.Profile{}, err
	}
	s.search.IndexUser(search.UserRecord{ID: prof.ID, Handle: prof.Handle, DisplayName: prof.DisplayName, Bio: prof.Bio})
	return prof, nil
}

func (s *Service) UpdateHandle(accountID, newHandle string) error {
	newHandle = strings.TrimSpace(newHandle)
	if len(newHandle) < 3 {
		return apperr.Validation("Handle must be at least 3 characters")
	}
	var prof store.Profile
	err := s.store.Execute(func(tx *store.Tx) error {
		if taken, err := store.Accounts.Exists(tx, func(a store.Account) bool {
			return a.ID != accountID && strings.EqualFold(a.Handle, newHandle)
		}); err != nil {
			return err
		} else if taken {
			return apperr.Conflict("Handle already taken")
		}
		acct, found, err := store.Accounts.Get(tx, accountID)
		if err != nil {
			return err
		}
		if !found {
			return apperr.NotFound("Account not found")
		}
		acct.Handle = newHandle
		acct.UpdatedAt = s.now()
		if err := store.Accounts.Update(tx, acct); err != nil {
			return err
		}
		p, found, err := store.Profiles.Get(tx, accountID)
		if err != nil {
			return err
		}
		if found {
			p.Handle = newHandle
			p.UpdatedAt = s.now()
			if err := store.Profiles.Update(tx, p); err != nil {
				return err
			}
			prof = p
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.search.IndexUser(search.UserRecord{ID: accountID, Handle: newHandle, DisplayName: prof.DisplayName, Bio: prof.Bio})
	return nil
}

// UpdateEmail changes the address and drops verified status until the new
// address confirms. Returns the fresh verification code.
func (s *Service) UpdateEmail(accountID, newEmail string) (string, error) {
	newEmail = strings.ToLower(strings.TrimSpace(newEmail))
	if !validEmail(newEmail) {
		return "", apperr.Validation("Invalid email address")
	}
	code := util.NewSecret()
	err := s.store.Execute(func(tx *store.Tx) error {
		if taken, err := store.Accounts.Exists(tx, func(a store.Account) bool {
			return a.ID != accountID && a.Email == newEmail
		}); err != nil {
			return err
		} else if taken {
			return apperr.Conflict("Email already registered")
		}
		acct, found, err := store.Accounts.Get(tx, accountID)
		if err != nil {
			return err
		}
		if !found {
			return apperr.NotFound("Account not found")
		}
		acct.Email = newEmail
		acct.Verified = false
		acct.VerifyCode = code
		acct.UpdatedAt = s.now()
		return store.Accounts.Update(tx, acct)
	})
	if err != nil {
		return "", err
	}
	return code, nil
}

func (s *Service) UpdatePassword(accountID, current, next string) error {
	if len(next) < 8 {
		return apperr.Validation("Password must be at least 8 characters")
	}
	hash, err := password.Hash(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.store.Execute(func(tx *store.Tx) error {
		acct, found, err := store.Accounts.Get(tx, accountID)
		if err != nil {
			return err
		}
		if !found {
			return apperr.NotFound("Account not found")
		}
		if err := password.Verify(current, acct.PasswordHash); err != nil {
			return apperr.Unauthenticated("Invalid credentials")
		}
		acct.PasswordHash = hash
		acct.UpdatedAt = s.now()
		return store.Accounts.Update(tx, acct)
	})
}

func (s *Service) Sessions(accountID string) ([]store.Session, error) {
	var out []store.Session
	err := s.store.Execute(func(tx *store.Tx) error {
		sessions, err := store.Sessions.Find(tx, func(sess store.Session) bool {
			return sess.AccountID == accountID
		})
		if err != nil {
			return err
		}
		out = sessions
		return nil
	})
	return out, err
}

// DeleteSession removes one session record. The signed token stays valid
// until natural expiry; this trims the device list, it does not revoke.
func (s *Service) DeleteSession(accountID, sessionID string) error {
	return s.store.Execute(func(tx *store.Tx) error {
		sess, found, err := store.Sessions.Get(tx, sessionID)
		if err != nil {
			return err
		}
		if !found || sess.AccountID != accountID {
			return apperr.NotFound("Session not found")
		}
		return store.Sessions.Delete(tx, sessionID)
	})
}

func (s *Service) DeleteAllSessions(accountID string) (int, error) {
	var n int
	err := s.store.Execute(func(tx *store.Tx) error {
		var err error
		n, err = store.Sessions.DeleteWhere(tx, func(sess store.Session) bool {
			return sess.AccountID == accountID
		})
		return err
	})
	return n, err
}

func (s *Service) GameToken(accountID string) (string, error) {
	acct, err := s.Account(accountID)
	if err != nil {
		return "", err
	}
	return acct.GameToken, nil
}

// RegenerateGameToken rotates the secret in one read-modify-write closure.
func (s *Service) RegenerateGameToken(accountID string) (string, error) {
	token := util.NewSecret()
	err := s.store.Execute(func(tx *store.Tx) error {
		acct, found, err := store.Accounts.Get(tx, accountID)
		if err != nil {
			return err
		}
		if !found {
			return apperr.NotFound("Account not found")
		}
		acct.GameToken = token
		acct.UpdatedAt = s.now()
		return store.Accounts.Update(tx, acct)
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

type JoinTokenResponse struct {
	Secret    string    `json:"secret"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// IssueJoinToken mints a short-lived join secret, replacing any live one.
func (s *Service) IssueJoinToken(accountID string) (*JoinTokenResponse, error) {
	tok := store.JoinToken{
		AccountID: accountID,
		Secret:    util.NewSecret(),
		ExpiresAt: s.now().Add(joinTokenTTL),
	}
	err := s.store.Execute(func(tx *store.Tx) error {
		if err := store.JoinTokens.Delete(tx, accountID); err != nil {
			return err
		}
		return store.JoinTokens.Insert(tx, tok)
	})
	if err != nil {
		return nil, err
	}
	return &JoinTokenResponse{Secret: tok.Secret, ExpiresAt: tok.ExpiresAt}, nil
}

// VerifyJoinToken resolves handle+secret to an account id. Expired or
// unknown tokens fail identically.
func (s *Service) VerifyJoinToken(handle, secret string) (string, error) {
	var accountID string
	err := s.store.Execute(func(tx *store.Tx) error {
		acct, found, err := store.Accounts.FindOne(tx, func(a store.Account) bool {
			return strings.EqualFold(a.Handle, handle)
		})
		if err != nil {
			return err
		}
		if !found {
			return apperr.Unauthenticated("Invalid join token")
		}
		tok, found, err := store.JoinTokens.Get(tx, acct.ID)
		if err != nil {
			return err
		}
		if !found || tok.Secret != secret || s.now().After(tok.ExpiresAt) {
			return apperr.Unauthenticated("Invalid join token")
		}
		accountID = acct.ID
		return nil
	})
	return accountID, err
}

func (s *Service) Notifications(accountID string) ([]store.Notification, error) {
	var out []store.Notification
	err := s.store.Execute(func(tx *store.Tx) error {
		notifs, err := store.Notifications.Find(tx, func(n store.Notification) bool {
			return n.Recipient == accountID
		})
		if err != nil {
			return err
		}
		out = notifs
		return nil
	})
	return out, err
}

// Delete removes the account and everything anchored to it. Handle and
// password are re-confirmed so a leaked token alone cannot destroy data.
func (s *Service) Delete(accountID, handle, pass string) error {
	err := s.store.Execute(func(tx *store.Tx) error {
		acct, found, err := store.Accounts.Get(tx, accountID)
		if err != nil {
			return err
		}
		if !found {
			return apperr.NotFound("Account not found")
		}
		if !strings.EqualFold(acct.Handle, handle) {
			return apperr.Validation("Handle does not match")
		}
		if err := password.Verify(pass, acct.PasswordHash); err != nil {
			return apperr.Unauthenticated("Invalid credentials")
		}

		if err := store.Profiles.Delete(tx, accountID); err != nil {
			return err
		}
		if err := store.JoinTokens.Delete(tx, accountID); err != nil {
			return err
		}
		if _, err := store.Sessions.DeleteWhere(tx, func(s store.Session) bool {
			return s.AccountID == accountID
		}); err != nil {
			return err
		}
		if _, err := store.FriendRequests.DeleteWhere(tx, func(r store.FriendRequest) bool {
			return r.From == accountID || r.To == accountID
		}); err != nil {
			return err
		}
		if _, err := store.Friendships.DeleteWhere(tx, func(f store.Friendship) bool {
			return f.User1 == accountID || f.User2 == accountID
		}); err != nil {
			return err
		}
		if _, err := store.Blocks.DeleteWhere(tx, func(b store.Block) bool {
			return b.UserID == accountID || b.BlockedID == accountID
		}); err != nil {
			return err
		}
		if _, err := store.Notifications.DeleteWhere(tx, func(n store.Notification) bool {
			return n.Recipient == accountID
		}); err != nil {
			return err
		}
		return store.Accounts.Delete(tx, accountID)
	})
	if err != nil {
		return err
	}
	s.search.DeleteUser(accountID)
	return nil
}

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	if at < 1 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	return strings.Contains(domain, ".") && !strings.ContainsAny(email, " \t")
}

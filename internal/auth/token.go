// Package auth issues and validates the two bearer token schemes: short-lived
// session tokens for the client surface and long-lived API tokens for /v1.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	SchemeSession = "session"
	SchemeAPI     = "api"
)

var (
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrExpiredToken = errors.New("auth: expired token")
)

type Claims struct {
	jwt.RegisteredClaims
	Handle string `json:"handle,omitempty"`
	Rank   string `json:"rank,omitempty"`
	Scheme string `json:"scheme"`
}

type Tokens struct {
	secret     []byte
	sessionTTL time.Duration
	apiTTL     time.Duration
	now        func() time.Time
}

func NewTokens(secret string, sessionTTL, apiTTL time.Duration) *Tokens {
	return &Tokens{
		secret:     []byte(secret),
		sessionTTL: sessionTTL,
		apiTTL:     apiTTL,
		now:        time.Now,
	}
}

// IssueSession mints a session token for the client surface. The jti
// identifies the backing session record.
func (t *Tokens) IssueSession(accountID, handle, rank, jti string) (string, error) {
	return t.issue(accountID, handle, rank, SchemeSession, jti, t.sessionTTL)
}

// IssueAPI mints an API token for /v1. The jti identifies the backing session
// record so tokens can be enumerated and deleted per device.
func (t *Tokens) IssueAPI(accountID, handle, rank, jti string) (string, error) {
	return t.issue(accountID, handle, rank, SchemeAPI, jti, t.apiTTL)
}

func (t *Tokens) issue(accountID, handle, rank, scheme, jti string, ttl time.Duration) (string, error) {
	now := t.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Handle: handle,
		Rank:   rank,
		Scheme: scheme,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// ValidateSession parses a session-scheme token. API tokens are rejected so
// the long-lived credential cannot be replayed against the client surface.
func (t *Tokens) ValidateSession(raw string) (*Claims, error) {
	return t.validate(raw, SchemeSession)
}

// ValidateAPI parses an api-scheme token.
func (t *Tokens) ValidateAPI(raw string) (*Claims, error) {
	return t.validate(raw, SchemeAPI)
}

func (t *Tokens) validate(raw, scheme string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if claims.Scheme != scheme || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

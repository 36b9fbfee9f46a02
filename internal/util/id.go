package util

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
)

// NewID returns a 32-char hex identifier.
func NewID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

// NewSecret returns a URL-safe random secret suitable for one-shot tokens.
func NewSecret() string {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

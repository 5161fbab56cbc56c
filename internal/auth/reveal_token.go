// Package auth verifies the bearer token that unlocks unmasked credential
// responses on the HTTP side-channel.
package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

var ErrInvalidToken = errors.New("invalid reveal token")

// TokenVerifier compares presented bearer tokens against the configured
// reveal token in constant time.
type TokenVerifier struct {
	Expected string
}

// Enabled reports whether a reveal token is configured at all. When disabled,
// every presented token is invalid.
func (v TokenVerifier) Enabled() bool {
	return v.Expected != ""
}

func (v TokenVerifier) Verify(token string) error {
	if token == "" || v.Expected == "" {
		return ErrInvalidToken
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(v.Expected)) != 1 {
		return ErrInvalidToken
	}
	return nil
}

// BearerToken extracts the token from an Authorization header. The second
// return value reports whether a bearer token was presented at all, which
// callers use to distinguish "no reveal requested" from "wrong token".
func BearerToken(h http.Header) (string, bool) {
	raw := strings.TrimSpace(h.Get("Authorization"))
	if raw == "" {
		return "", false
	}
	const prefix = "Bearer "
	if len(raw) < len(prefix) || !strings.EqualFold(raw[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(raw[len(prefix):]), true
}

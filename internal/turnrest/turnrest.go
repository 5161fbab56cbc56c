// Package turnrest mints coturn-compatible ephemeral TURN credentials.
//
// Algorithm (draft-uberti-behave-turn-rest):
//
//	username   = <unix_expiry_timestamp>:<username_prefix>:<session_id>
//	credential = base64(hmac_sha1(shared_secret, username))
//
// Expiry is computed from the server clock in UTC: now + ttl_seconds.
// Revealed /ice responses use these in place of static TURN secrets so the
// long-lived shared secret never crosses the wire.
package turnrest

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Generator struct {
	sharedSecret   []byte
	ttlSeconds     int64
	usernamePrefix string
	now            func() time.Time

	sessionIDSource func() (string, error)
}

type GeneratorConfig struct {
	SharedSecret    string
	TTLSeconds      int64
	UsernamePrefix  string
	Now             func() time.Time
	SessionIDSource func() (string, error)
}

func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	if cfg.SharedSecret == "" {
		return nil, errors.New("shared secret is required")
	}
	if cfg.TTLSeconds <= 0 {
		return nil, errors.New("TTLSeconds must be > 0")
	}
	if cfg.UsernamePrefix == "" {
		return nil, errors.New("UsernamePrefix is required")
	}
	if strings.Contains(cfg.UsernamePrefix, ":") {
		return nil, errors.New("UsernamePrefix must not contain ':'")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.SessionIDSource == nil {
		cfg.SessionIDSource = cryptoRandomSessionID
	}
	return &Generator{
		sharedSecret:    []byte(cfg.SharedSecret),
		ttlSeconds:      cfg.TTLSeconds,
		usernamePrefix:  cfg.UsernamePrefix,
		now:             cfg.Now,
		sessionIDSource: cfg.SessionIDSource,
	}, nil
}

type Credentials struct {
	Username   string
	Credential string
	ExpiryUnix int64
}

func (g *Generator) Generate(sessionID string) (Credentials, error) {
	if sessionID == "" {
		return Credentials{}, errors.New("sessionID is required")
	}
	if strings.Contains(sessionID, ":") {
		return Credentials{}, errors.New("sessionID must not contain ':'")
	}
	expiryUnix := g.now().UTC().Unix() + g.ttlSeconds
	username := fmt.Sprintf("%d:%s:%s", expiryUnix, g.usernamePrefix, sessionID)
	return Credentials{
		Username:   username,
		Credential: signUsername(g.sharedSecret, username),
		ExpiryUnix: expiryUnix,
	}, nil
}

func (g *Generator) GenerateRandom() (Credentials, error) {
	sessionID, err := g.sessionIDSource()
	if err != nil {
		return Credentials{}, err
	}
	return g.Generate(sessionID)
}

func cryptoRandomSessionID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

func signUsername(sharedSecret []byte, username string) string {
	mac := hmac.New(sha1.New, sharedSecret)
	_, _ = mac.Write([]byte(username))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

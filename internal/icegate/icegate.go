// Package icegate prepares relay-server descriptor lists for the credential
// gateway: masked by default, unmasked (optionally with ephemeral TURN REST
// credentials injected) for reveal-authenticated callers.
package icegate

import (
	"strings"

	"github.com/pion/webrtc/v4"
)

// RedactedMarker replaces credential fields in masked responses.
const RedactedMarker = "[redacted]"

// MaskUsername keeps the first and last character of a username and replaces
// the rest with mask characters. Values of length <= 2 are fully masked so
// short usernames never survive intact.
func MaskUsername(s string) string {
	if s == "" {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= 2 {
		return strings.Repeat("*", len(runes))
	}
	return string(runes[0]) + strings.Repeat("*", len(runes)-2) + string(runes[len(runes)-1])
}

// Masked returns a copy of servers with usernames masked and credentials
// replaced by the redaction marker. The input is never mutated.
func Masked(servers []webrtc.ICEServer) []webrtc.ICEServer {
	if len(servers) == 0 {
		// Keep empty (non-nil) slices so JSON responses encode as `[]`.
		return servers
	}
	out := make([]webrtc.ICEServer, len(servers))
	for i, server := range servers {
		out[i] = server
		out[i].Username = MaskUsername(server.Username)
		if cred, ok := server.Credential.(string); ok && cred != "" {
			out[i].Credential = RedactedMarker
		}
	}
	return out
}

// WithEphemeralCredentials returns a copy of servers with username/credential
// replaced on every TURN entry. STUN entries carry no secrets and pass
// through unchanged.
func WithEphemeralCredentials(servers []webrtc.ICEServer, username, credential string) []webrtc.ICEServer {
	if len(servers) == 0 {
		return servers
	}
	out := make([]webrtc.ICEServer, len(servers))
	for i, server := range servers {
		out[i] = server
		if HasTURNURL(server) {
			out[i].Username = username
			out[i].Credential = credential
		}
	}
	return out
}

// HasTURNURL reports whether any of the server's URLs uses a turn: or turns:
// scheme.
func HasTURNURL(server webrtc.ICEServer) bool {
	for _, raw := range server.URLs {
		url := strings.TrimSpace(raw)
		if hasPrefixFold(url, "turn:") || hasPrefixFold(url, "turns:") {
			return true
		}
	}
	return false
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

package auth

import (
	"net/http"
	"testing"
)

func TestTokenVerifier(t *testing.T) {
	v := TokenVerifier{Expected: "s3cret"}

	if err := v.Verify("s3cret"); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
	if err := v.Verify("wrong"); err == nil {
		t.Fatalf("expected mismatch error")
	}
	if err := v.Verify(""); err == nil {
		t.Fatalf("expected empty token to fail")
	}
}

func TestTokenVerifier_DisabledRejectsEverything(t *testing.T) {
	v := TokenVerifier{}
	if v.Enabled() {
		t.Fatalf("expected disabled")
	}
	if err := v.Verify("anything"); err == nil {
		t.Fatalf("expected rejection when no token configured")
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		wantToken string
		wantOK    bool
	}{
		{"missing", "", "", false},
		{"bearer", "Bearer abc", "abc", true},
		{"case insensitive scheme", "bearer abc", "abc", true},
		{"padded", "Bearer   abc  ", "abc", true},
		{"basic scheme", "Basic abc", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.header != "" {
				h.Set("Authorization", tt.header)
			}
			token, ok := BearerToken(h)
			if ok != tt.wantOK || token != tt.wantToken {
				t.Fatalf("BearerToken(%q) = (%q, %v), want (%q, %v)", tt.header, token, ok, tt.wantToken, tt.wantOK)
			}
		})
	}
}

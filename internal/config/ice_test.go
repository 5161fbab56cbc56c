package config

import (
	"testing"
)

func TestParseICEServersJSON(t *testing.T) {
	raw := `[
		{"urls": "stun:stun.example.com:3478"},
		{"urls": ["turn:turn.example.com:3478", "turns:turn.example.com:5349"], "username": "u", "credential": "c"}
	]`

	servers, err := ParseICEServersJSON(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(servers) != 2 {
		t.Fatalf("expected 2 servers, got %d", len(servers))
	}
	if len(servers[0].URLs) != 1 || servers[0].URLs[0] != "stun:stun.example.com:3478" {
		t.Fatalf("server 0 = %+v", servers[0])
	}
	if servers[1].Username != "u" || servers[1].Credential != "c" {
		t.Fatalf("server 1 = %+v", servers[1])
	}
}

func TestParseICEServersJSON_Invalid(t *testing.T) {
	cases := []string{
		`not json`,
		`[{"urls": []}]`,
		`[{"urls": "http://example.com"}]`,
		`[{"urls": "stun:"}]`,
	}
	for _, raw := range cases {
		if _, err := ParseICEServersJSON(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestParseICEServersFromConvenienceEnv(t *testing.T) {
	servers, err := parseICEServersFromConvenienceEnv(
		"stun:a.example.com, stun:b.example.com",
		"turn:t.example.com",
		"user",
		"pass",
	)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(servers) != 2 {
		t.Fatalf("expected 2 servers, got %d", len(servers))
	}
	if len(servers[0].URLs) != 2 {
		t.Fatalf("stun urls = %v", servers[0].URLs)
	}
	if servers[1].Username != "user" || servers[1].Credential != "pass" {
		t.Fatalf("turn server = %+v", servers[1])
	}
}

func TestParseICEServersFromConvenienceEnv_TURNNeedsCredentials(t *testing.T) {
	if _, err := parseICEServersFromConvenienceEnv("", "turn:t.example.com", "", ""); err == nil {
		t.Fatalf("expected credential error")
	}
}

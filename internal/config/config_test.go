package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(lookupFrom(nil), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.ListenAddr != ":8080" {
		t.Fatalf("listen addr = %q", cfg.ListenAddr)
	}
	if cfg.DBPath != DefaultDBPath {
		t.Fatalf("db path = %q", cfg.DBPath)
	}
	if cfg.HeartbeatInterval != 30*time.Second {
		t.Fatalf("heartbeat = %v", cfg.HeartbeatInterval)
	}
	if cfg.RevealWindow != time.Minute || cfg.RevealMaxAttempts != 10 {
		t.Fatalf("reveal limits = %v/%d", cfg.RevealWindow, cfg.RevealMaxAttempts)
	}
	if cfg.Mode != ModeDev || cfg.LogFormat != LogFormatText || cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("dev defaults = %v/%v/%v", cfg.Mode, cfg.LogFormat, cfg.LogLevel)
	}
	if cfg.TLSEnabled() {
		t.Fatalf("TLS should be off by default")
	}
}

func TestLoad_PortEnv(t *testing.T) {
	cfg, err := load(lookupFrom(map[string]string{"PORT": "9443"}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":9443" {
		t.Fatalf("listen addr = %q", cfg.ListenAddr)
	}

	// ICHAT_LISTEN_ADDR wins over PORT.
	cfg, err = load(lookupFrom(map[string]string{"PORT": "9443", "ICHAT_LISTEN_ADDR": "127.0.0.1:7000"}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:7000" {
		t.Fatalf("listen addr = %q", cfg.ListenAddr)
	}

	if _, err := load(lookupFrom(map[string]string{"PORT": "not-a-port"}), nil); err == nil {
		t.Fatalf("expected invalid PORT error")
	}
}

func TestLoad_ProdModeDefaults(t *testing.T) {
	cfg, err := load(lookupFrom(map[string]string{"ICHAT_MODE": "prod"}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogFormat != LogFormatJSON || cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("prod defaults = %v/%v", cfg.LogFormat, cfg.LogLevel)
	}
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	cfg, err := load(
		lookupFrom(map[string]string{"ICHAT_REVEAL_MAX_ATTEMPTS": "3"}),
		[]string{"--reveal-max-attempts", "7", "--listen-addr", ":9000"},
	)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RevealMaxAttempts != 7 {
		t.Fatalf("reveal max attempts = %d", cfg.RevealMaxAttempts)
	}
	if cfg.ListenAddr != ":9000" {
		t.Fatalf("listen addr = %q", cfg.ListenAddr)
	}
}

func TestLoad_TLSPairRequired(t *testing.T) {
	_, err := load(lookupFrom(map[string]string{"ICHAT_TLS_CERT_FILE": "/tmp/cert.pem"}), nil)
	if err == nil || !strings.Contains(err.Error(), "must be set together") {
		t.Fatalf("expected TLS pair error, got %v", err)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := map[string]map[string]string{
		"bad heartbeat":       {"ICHAT_HEARTBEAT_INTERVAL": "0s"},
		"bad reveal window":   {"ICHAT_REVEAL_WINDOW": "-1m"},
		"bad reveal attempts": {"ICHAT_REVEAL_MAX_ATTEMPTS": "0"},
		"bad message bytes":   {"ICHAT_MAX_MESSAGE_BYTES": "0"},
		"bad message rate":    {"ICHAT_MAX_MESSAGES_PER_SECOND": "-1"},
		"bad send queue":      {"ICHAT_SEND_QUEUE_LENGTH": "0"},
		"bad mode":            {"ICHAT_MODE": "staging"},
		"bad log level":       {"ICHAT_LOG_LEVEL": "verbose"},
	}
	for name, env := range cases {
		if _, err := load(lookupFrom(env), nil); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoad_TURNRESTConfig(t *testing.T) {
	cfg, err := load(lookupFrom(map[string]string{
		"ICHAT_TURN_REST_SHARED_SECRET": "north",
	}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.TURNREST.Enabled() {
		t.Fatalf("TURN REST should be enabled")
	}
	if cfg.TURNREST.TTLSeconds != DefaultTURNRESTTTLSeconds || cfg.TURNREST.UsernamePrefix != "ichat" {
		t.Fatalf("TURN REST defaults = %+v", cfg.TURNREST)
	}

	if _, err := load(lookupFrom(map[string]string{
		"ICHAT_TURN_REST_SHARED_SECRET": "north",
		"ICHAT_TURN_REST_TTL_SECONDS":   "0",
	}), nil); err == nil {
		t.Fatalf("expected TTL validation error")
	}
}

package main

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/pion/webrtc/v4"

	"github.com/l3kza08/ichat-api/internal/config"
)

type recordedLog struct {
	level slog.Level
	msg   string
	attrs map[string]any
}

type recordingHandler struct {
	mu      *sync.Mutex
	records *[]recordedLog
	attrs   []slog.Attr
}

func newRecordingLogger() (*slog.Logger, func() []recordedLog) {
	mu := &sync.Mutex{}
	records := &[]recordedLog{}
	h := &recordingHandler{mu: mu, records: records}
	logger := slog.New(h)
	return logger, func() []recordedLog {
		mu.Lock()
		defer mu.Unlock()
		out := make([]recordedLog, len(*records))
		copy(out, *records)
		return out
	}
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	rec := recordedLog{
		level: r.Level,
		msg:   r.Message,
		attrs: map[string]any{},
	}
	for _, a := range h.attrs {
		rec.attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		rec.attrs[a.Key] = a.Value.Any()
		return true
	})

	h.mu.Lock()
	*h.records = append(*h.records, rec)
	h.mu.Unlock()
	return nil
}

func (h *recordingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := &recordingHandler{mu: h.mu, records: h.records}
	nh.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return nh
}

func (h *recordingHandler) WithGroup(string) slog.Handler {
	return h
}

func warningCodes(records []recordedLog) map[string]bool {
	codes := map[string]bool{}
	for _, r := range records {
		if r.level != slog.LevelWarn {
			continue
		}
		if code, ok := r.attrs["warning_code"].(string); ok {
			codes[code] = true
		}
	}
	return codes
}

func TestStartupSecurityWarnings_RevealTokenUnset(t *testing.T) {
	logger, records := newRecordingLogger()

	cfg := config.Config{Mode: config.ModeDev}
	logStartupSecurityWarnings(logger, cfg)

	if !warningCodes(records())["reveal_token_unset"] {
		t.Fatalf("expected warning_code=reveal_token_unset, got %#v", records())
	}
}

func TestStartupSecurityWarnings_TLSDisabledInProd(t *testing.T) {
	logger, records := newRecordingLogger()

	cfg := config.Config{Mode: config.ModeProd, RevealToken: "t"}
	logStartupSecurityWarnings(logger, cfg)

	codes := warningCodes(records())
	if !codes["tls_disabled_in_prod"] {
		t.Fatalf("expected warning_code=tls_disabled_in_prod, got %#v", records())
	}
	if codes["reveal_token_unset"] {
		t.Fatal("reveal_token_unset warned despite a configured token")
	}
}

func TestStartupSecurityWarnings_TLSEnabledNoWarning(t *testing.T) {
	logger, records := newRecordingLogger()

	cfg := config.Config{
		Mode:        config.ModeProd,
		RevealToken: "t",
		TLSCertFile: "cert.pem",
		TLSKeyFile:  "key.pem",
		ICEServers:  []webrtc.ICEServer{{URLs: []string{"stun:stun.example.com"}}},
	}
	logStartupSecurityWarnings(logger, cfg)

	if codes := warningCodes(records()); len(codes) != 0 {
		t.Fatalf("unexpected warnings: %#v", codes)
	}
}

func TestStartupSecurityWarnings_TURNWithoutCredentials(t *testing.T) {
	logger, records := newRecordingLogger()

	cfg := config.Config{
		Mode:        config.ModeDev,
		RevealToken: "t",
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{"turn:turn.example.com:3478"}},
		},
	}
	logStartupSecurityWarnings(logger, cfg)

	if !warningCodes(records())["turn_without_credentials"] {
		t.Fatalf("expected warning_code=turn_without_credentials, got %#v", records())
	}
}

// Package httpserver is the HTTP side of the service: health and metrics
// endpoints plus the credential-reveal gateway over the ICE and status views.
package httpserver

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/l3kza08/ichat-api/internal/auth"
	"github.com/l3kza08/ichat-api/internal/config"
	"github.com/l3kza08/ichat-api/internal/icegate"
	"github.com/l3kza08/ichat-api/internal/identity"
	"github.com/l3kza08/ichat-api/internal/metrics"
	"github.com/l3kza08/ichat-api/internal/presence"
	"github.com/l3kza08/ichat-api/internal/ratelimit"
	"github.com/l3kza08/ichat-api/internal/registry"
	"github.com/l3kza08/ichat-api/internal/turnrest"
)

var ErrServerClosed = http.ErrServerClosed

type Server struct {
	log      *slog.Logger
	cfg      *config.Config
	verifier auth.TokenVerifier
	limiter  *ratelimit.AttemptLimiter
	reg      *registry.Registry
	store    *identity.Store
	turnGen  *turnrest.Generator
	metrics  *metrics.Metrics

	mux *http.ServeMux
	srv *http.Server
}

func New(cfg *config.Config, store *identity.Store, reg *registry.Registry, turnGen *turnrest.Generator, logger *slog.Logger, m *metrics.Metrics) *Server {
	s := &Server{
		log:      logger,
		cfg:      cfg,
		verifier: auth.TokenVerifier{Expected: cfg.RevealToken},
		limiter:  ratelimit.NewAttemptLimiter(ratelimit.RealClock{}, cfg.RevealWindow, cfg.RevealMaxAttempts),
		reg:      reg,
		store:    store,
		turnGen:  turnGen,
		metrics:  m,
		mux:      http.NewServeMux(),
	}

	s.registerRoutes()

	handler := chain(s.mux,
		recoverMiddleware(s.log),
		requestIDMiddleware(),
		requestLoggerMiddleware(s.log),
		corsMiddleware(),
	)

	s.srv = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		// Other timeouts stay zero: the websocket endpoint mounted on this
		// mux holds long-lived connections.
	}

	return s
}

// Mux returns the underlying ServeMux for registering additional routes.
// It must only be used during startup before Serve is called.
func (s *Server) Mux() *http.ServeMux {
	return s.mux
}

func (s *Server) Serve(l net.Listener) error {
	s.log.Info("http server serving", "addr", l.Addr().String())
	return s.srv.Serve(l)
}

func (s *Server) ServeTLS(l net.Listener, certFile, keyFile string) error {
	s.log.Info("https server serving", "addr", l.Addr().String())
	return s.srv.ServeTLS(l, certFile, keyFile)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.srv.Close()
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	s.mux.HandleFunc("GET /status", s.handleStatus)
	s.mux.HandleFunc("GET /ice", s.handleICE)

	s.mux.Handle("GET /metrics", metrics.PrometheusHandler(s.metrics))
}

// handleStatus reports live connection counts and the presence view. Without
// a valid reveal token the usernames come back masked.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	revealed, done := s.reveal(w, r)
	if done {
		return
	}

	users := presence.Build(s.store, s.reg)
	if !revealed {
		for i := range users {
			users[i].Username = icegate.MaskUsername(users[i].Username)
		}
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"connections": s.reg.Len(),
		"knownUsers":  s.store.Len(),
		"users":       users,
	})
}

// handleICE serves the ICE server list. The default response masks static
// TURN credentials; a valid reveal token gets the real ones, with ephemeral
// TURN REST credentials minted when a shared secret is configured.
func (s *Server) handleICE(w http.ResponseWriter, r *http.Request) {
	revealed, done := s.reveal(w, r)
	if done {
		return
	}

	servers := s.cfg.ICEServers
	if !revealed {
		WriteJSON(w, http.StatusOK, map[string]any{"iceServers": icegate.Masked(servers)})
		return
	}

	resp := map[string]any{"iceServers": servers}
	if s.turnGen != nil {
		creds, err := s.turnGen.GenerateRandom()
		if err != nil {
			s.log.Error("turn credential generation failed", "err", err)
			WriteJSON(w, http.StatusInternalServerError, map[string]any{"error": "credential generation failed"})
			return
		}
		resp["iceServers"] = icegate.WithEphemeralCredentials(servers, creds.Username, creds.Credential)
		resp["ttl"] = creds.ExpiryUnix
	}
	WriteJSON(w, http.StatusOK, resp)
}

// reveal resolves whether this request may see unmasked data. It returns
// done=true when a response has already been written: blocked sources get
// 429 before anything else is considered, and a presented-but-wrong bearer
// token gets 403 and counts against the source. Requests without any token
// proceed masked and are never counted.
func (s *Server) reveal(w http.ResponseWriter, r *http.Request) (revealed, done bool) {
	key := clientIP(r)
	if s.limiter.Blocked(key) {
		s.metrics.Inc(metrics.RevealBlocked)
		WriteJSON(w, http.StatusTooManyRequests, map[string]any{"error": "too many failed attempts"})
		return false, true
	}

	token, presented := auth.BearerToken(r.Header)
	if !presented {
		return false, false
	}
	if !s.verifier.Enabled() {
		// No token configured means nothing can be revealed.
		return false, false
	}
	if err := s.verifier.Verify(token); err != nil {
		s.limiter.RecordFailure(key)
		s.metrics.Inc(metrics.RevealDenied)
		s.log.Warn("reveal token rejected", "remote", key)
		WriteJSON(w, http.StatusForbidden, map[string]any{"error": "invalid token"})
		return false, true
	}
	s.metrics.Inc(metrics.RevealGranted)
	return true, false
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type Middleware func(http.Handler) http.Handler

func chain(handler http.Handler, middlewares ...Middleware) http.Handler {
	h := handler
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

func recoverMiddleware(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic in http handler", "recover", rec, "stack", string(debug.Stack()))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func requestIDMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get("X-Request-ID")
			if reqID == "" {
				var buf [16]byte
				if _, err := rand.Read(buf[:]); err == nil {
					reqID = hex.EncodeToString(buf[:])
				}
			}
			if reqID != "" {
				r.Header.Set("X-Request-ID", reqID)
				w.Header().Set("X-Request-ID", reqID)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// corsMiddleware allows any origin. The API carries no cookies and the
// reveal token travels in an explicit header, so a wildcard is safe.
func corsMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Hijack passes through to the underlying writer so websocket upgrades work
// on routes mounted behind the middleware chain.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hj.Hijack()
}

func requestLoggerMiddleware(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			next.ServeHTTP(sw, r)

			reqID := r.Header.Get("X-Request-ID")
			logger.Info("http_request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_addr", r.RemoteAddr,
				"request_id", reqID,
			)
		})
	}
}

// WriteJSON writes a JSON response body and sets the Content-Type header.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(v)
}

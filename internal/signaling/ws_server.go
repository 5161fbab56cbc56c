package signaling

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/l3kza08/ichat-api/internal/config"
	"github.com/l3kza08/ichat-api/internal/registry"
)

// WebSocketServer upgrades HTTP requests and runs the per-connection read
// loop. Frame size and message rate limits come from configuration; a client
// that exceeds the rate limit is closed with a policy violation.
type WebSocketServer struct {
	log      *slog.Logger
	cfg      *config.Config
	router   *Router
	reg      *registry.Registry
	upgrader websocket.Upgrader
}

func NewWebSocketServer(cfg *config.Config, router *Router, reg *registry.Registry, logger *slog.Logger) *WebSocketServer {
	return &WebSocketServer{
		log:    logger,
		cfg:    cfg,
		router: router,
		reg:    reg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser clients connect from arbitrary origins; the protocol
			// carries no cookies so cross-origin upgrades are safe to allow.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (s *WebSocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	client := newWSClient(ws, s.log, s.cfg.SendQueueLength)
	s.log.Info("client connected", "conn_id", client.ID(), "remote", r.RemoteAddr)

	ws.SetReadLimit(s.cfg.MaxMessageBytes)
	ws.SetPongHandler(func(string) error {
		s.reg.MarkAlive(client)
		return nil
	})

	limiter := rate.NewLimiter(rate.Limit(s.cfg.MaxMessagesPerSecond), s.cfg.MaxMessagesPerSecond)

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			s.log.Debug("read loop ended", "conn_id", client.ID(), "err", err)
			break
		}
		if !limiter.Allow() {
			s.log.Warn("message rate exceeded, closing connection", "conn_id", client.ID(), "remote", r.RemoteAddr)
			s.writeClose(ws, websocket.ClosePolicyViolation, "message rate exceeded")
			break
		}
		s.router.HandleMessage(client, client.ID(), raw)
	}

	_ = client.Close()
	s.router.HandleDisconnect(client)
}

func (s *WebSocketServer) writeClose(ws *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
}

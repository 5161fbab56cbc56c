// Package signaling implements the WebSocket wire protocol: the message
// router, the per-connection transport, and the liveness monitor.
package signaling

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/l3kza08/ichat-api/internal/identity"
	"github.com/l3kza08/ichat-api/internal/metrics"
	"github.com/l3kza08/ichat-api/internal/presence"
	"github.com/l3kza08/ichat-api/internal/registry"
)

// Router classifies inbound messages and dispatches them. It holds no state
// of its own; all registry and store mutation is fenced behind a single mutex
// so handlers observe each other's effects atomically.
type Router struct {
	log         *slog.Logger
	store       *identity.Store
	reg         *registry.Registry
	broadcaster *presence.Broadcaster
	metrics     *metrics.Metrics

	mu sync.Mutex
}

func NewRouter(store *identity.Store, reg *registry.Registry, broadcaster *presence.Broadcaster, logger *slog.Logger, m *metrics.Metrics) *Router {
	return &Router{
		log:         logger,
		store:       store,
		reg:         reg,
		broadcaster: broadcaster,
		metrics:     m,
	}
}

// HandleMessage processes one inbound frame from conn. Malformed frames and
// unknown types are dropped silently; nothing in here may take down the
// connection.
func (r *Router) HandleMessage(conn registry.Conn, connID string, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		r.metrics.Inc(metrics.MalformedDropped)
		return
	}

	switch {
	case env.Type == msgTypeAnnounce:
		r.handleAnnounce(conn, connID, env)
	case env.Type == msgTypeRequestUserProfile:
		r.handleProfileRequest(conn, env)
	case env.Type == msgTypeSearchUsers:
		r.handleSearch(conn, env)
	case isRelayType(env.Type):
		r.handleRelay(conn, raw)
	case env.Type == msgTypeLeave:
		r.handleLeave(env)
	default:
		r.log.Debug("ignoring unknown message type", "type", env.Type, "conn_id", connID)
	}
}

// HandleDisconnect reclaims conn's registry entry after its read loop exits.
func (r *Router) HandleDisconnect(conn registry.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.reg.RemoveByConn(conn)
	if !ok {
		return
	}
	r.store.MarkOffline(entry.UID)
	r.log.Info("client disconnected", "uid", entry.UID, "conn_id", entry.ConnID)
	r.broadcaster.Broadcast()
}

func (r *Router) handleAnnounce(conn registry.Conn, connID string, env envelope) {
	if env.User == nil || env.User.UID == "" {
		r.metrics.Inc(metrics.MalformedDropped)
		return
	}
	update := env.User.toRecord().Normalized()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Uniqueness is validated before any write so a rejected announce
	// performs zero mutations.
	if update.Username != "" {
		if owner, ok := r.store.FindByUsername(update.Username); ok && owner.UID != update.UID {
			r.rejectAnnounce(conn, env.RequestID, "username already taken")
			return
		}
	}
	if update.Email != "" {
		if owner, ok := r.store.FindByEmail(update.Email); ok && owner.UID != update.UID {
			r.rejectAnnounce(conn, env.RequestID, "email already registered")
			return
		}
	}

	rec := update
	if existing, ok := r.store.Get(update.UID); ok {
		rec = existing.Merge(update)
	}
	r.store.Put(rec)

	prev := r.reg.Register(update.UID, connID, conn, update)
	if prev != nil && prev.Conn != conn {
		// Close the superseded socket instead of leaving it orphaned until
		// the next failed heartbeat.
		_ = prev.Conn.Close()
		r.metrics.Inc(metrics.ConnectionsReplaced)
		r.log.Info("replaced live connection", "uid", update.UID, "old_conn_id", prev.ConnID, "new_conn_id", connID)
	}

	if env.RequestID != "" {
		// The requester gets its acknowledgment before the presence
		// broadcast below reaches it.
		r.send(conn, announceResponse{Type: msgTypeAnnounceResponse, RequestID: env.RequestID, Status: statusSuccess})
	}
	r.metrics.Inc(metrics.AnnounceAccepted)
	r.broadcaster.Broadcast()
}

func (r *Router) rejectAnnounce(conn registry.Conn, requestID, reason string) {
	r.metrics.Inc(metrics.AnnounceRejected)
	if requestID == "" {
		return
	}
	r.send(conn, announceResponse{
		Type:      msgTypeAnnounceResponse,
		RequestID: requestID,
		Status:    statusError,
		Message:   reason,
	})
}

// handleProfileRequest serves the three lookup modes: by uid, by email plus
// password hash (login), and by recovery phrase hash (account recovery). A
// miss is a success-shaped response with no user, not an error.
func (r *Router) handleProfileRequest(conn registry.Conn, env envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		rec identity.Record
		ok  bool
	)
	switch {
	case env.UID != "":
		rec, ok = r.store.Get(env.UID)
	case env.Email != "" && env.PasswordHash != "":
		rec, ok = r.store.FindByEmailAndPasswordHash(env.Email, env.PasswordHash)
	case env.RecoveryPhraseHash != "":
		rec, ok = r.store.FindByRecoveryHash(env.RecoveryPhraseHash)
	}

	resp := profileResponse{
		Type:      msgTypeUserProfileResponse,
		RequestID: env.RequestID,
		Status:    statusSuccess,
	}
	if ok {
		public := rec.Public()
		resp.User = &public
	}
	r.send(conn, resp)
}

func (r *Router) handleSearch(conn registry.Conn, env envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := r.store.Search(env.Query)
	if users == nil {
		users = []identity.PublicProfile{}
	}
	r.send(conn, searchResponse{
		Type:      msgTypeSearchUsersResponse,
		RequestID: env.RequestID,
		Users:     users,
	})
}

// handleRelay forwards an opaque signaling payload verbatim, with a from
// field stamped in. A named target receives it alone; without a target the
// message floods to every other live connection.
func (r *Router) handleRelay(conn registry.Conn, raw []byte) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		r.metrics.Inc(metrics.MalformedDropped)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	senderUID := ""
	if sender, ok := r.reg.LookupByConn(conn); ok {
		senderUID = sender.UID
		fields["from"] = senderUID
	}
	target, _ := fields["target"].(string)

	payload, err := json.Marshal(fields)
	if err != nil {
		r.metrics.Inc(metrics.MalformedDropped)
		return
	}

	if target != "" {
		if target == senderUID {
			return
		}
		entry, ok := r.reg.Lookup(target)
		if !ok || entry.Conn == conn {
			r.metrics.Inc(metrics.RelayTargetMissing)
			return
		}
		if err := entry.Conn.Send(payload); err != nil {
			r.log.Debug("targeted relay send failed", "target", target, "err", err)
		}
		r.metrics.Inc(metrics.RelayTargeted)
		return
	}

	// Flood relay is kept for protocol compatibility; steady-state clients
	// always name a target.
	for _, entry := range r.reg.Entries() {
		if entry.Conn == conn {
			continue
		}
		if err := entry.Conn.Send(payload); err != nil {
			r.log.Debug("flood relay send failed", "uid", entry.UID, "err", err)
		}
	}
	r.metrics.Inc(metrics.RelayFlood)
}

func (r *Router) handleLeave(env envelope) {
	if env.UID == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// The record survives; the uid is only marked offline, symmetric with
	// disconnect handling.
	r.reg.Remove(env.UID)
	r.store.MarkOffline(env.UID)
	r.broadcaster.Broadcast()
}

func (r *Router) send(conn registry.Conn, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		r.log.Error("failed to encode response", "err", err)
		return
	}
	if err := conn.Send(payload); err != nil {
		r.log.Debug("response send failed", "err", err)
	}
}

// Package presence derives the merged online/offline view of every known
// user and pushes it to all live connections.
package presence

import (
	"encoding/json"
	"log/slog"
	"sort"

	"github.com/l3kza08/ichat-api/internal/identity"
	"github.com/l3kza08/ichat-api/internal/metrics"
	"github.com/l3kza08/ichat-api/internal/registry"
)

// User is one entry of the presence view: the public fields of a known uid
// with its liveness resolved. Live state takes precedence over persisted
// state.
type User struct {
	UID            string          `json:"uid"`
	Name           string          `json:"name,omitempty"`
	Username       string          `json:"username,omitempty"`
	PhotoReference string          `json:"photoReference,omitempty"`
	StatusType     identity.Status `json:"statusType"`
	Online         bool            `json:"online"`
}

// Build computes the presence view: every persisted record marked with its
// last known status (default offline), overlaid with every live connection's
// announce-time info marked online. The view is recomputed on demand and
// never stored.
func Build(store *identity.Store, reg *registry.Registry) []User {
	byUID := make(map[string]User)

	for _, rec := range store.All() {
		status := rec.StatusType
		if status == "" {
			status = identity.StatusOffline
		}
		byUID[rec.UID] = User{
			UID:            rec.UID,
			Name:           rec.Name,
			Username:       rec.Username,
			PhotoReference: rec.PhotoReference,
			StatusType:     status,
			Online:         false,
		}
	}

	for _, entry := range reg.Entries() {
		u := byUID[entry.UID]
		u.UID = entry.UID
		if entry.Info.Name != "" {
			u.Name = entry.Info.Name
		}
		if entry.Info.Username != "" {
			u.Username = entry.Info.Username
		}
		if entry.Info.PhotoReference != "" {
			u.PhotoReference = entry.Info.PhotoReference
		}
		u.StatusType = identity.StatusOnline
		u.Online = true
		byUID[entry.UID] = u
	}

	out := make([]User, 0, len(byUID))
	for _, u := range byUID {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out
}

// Broadcaster serializes the presence view as a single users event and sends
// it to every live connection.
type Broadcaster struct {
	log     *slog.Logger
	store   *identity.Store
	reg     *registry.Registry
	metrics *metrics.Metrics
}

func NewBroadcaster(store *identity.Store, reg *registry.Registry, logger *slog.Logger, m *metrics.Metrics) *Broadcaster {
	return &Broadcaster{
		log:     logger,
		store:   store,
		reg:     reg,
		metrics: m,
	}
}

type usersEvent struct {
	Type  string `json:"type"`
	Users []User `json:"users"`
}

// Broadcast pushes the current presence view to every live connection.
// Delivery is best-effort: a failed send to one connection never prevents
// delivery to the others.
func (b *Broadcaster) Broadcast() {
	users := Build(b.store, b.reg)
	payload, err := json.Marshal(usersEvent{Type: "users", Users: users})
	if err != nil {
		b.log.Error("failed to encode presence view", "err", err)
		return
	}

	for _, entry := range b.reg.Entries() {
		if err := entry.Conn.Send(payload); err != nil {
			b.log.Debug("presence send failed", "uid", entry.UID, "conn_id", entry.ConnID, "err", err)
		}
	}
	b.metrics.Inc(metrics.PresenceBroadcasts)
}

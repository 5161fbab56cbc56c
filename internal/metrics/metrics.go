package metrics

import "sync"

// Counter names used across the signaling server.
const (
	AnnounceAccepted    = "announce_accepted"
	AnnounceRejected    = "announce_rejected"
	ConnectionsEvicted  = "connections_evicted"
	ConnectionsReplaced = "connections_replaced"
	MalformedDropped    = "malformed_dropped"
	PresenceBroadcasts  = "presence_broadcasts"
	RelayFlood          = "relay_flood"
	RelayTargetMissing  = "relay_target_missing"
	RelayTargeted       = "relay_targeted"
	RevealBlocked       = "reveal_blocked"
	RevealDenied        = "reveal_denied"
	RevealGranted       = "reveal_granted"
)

// Metrics is a minimal, concurrency-safe counter registry.
//
// Keeping it in-process (instead of a full metrics SDK) keeps routing and
// eviction logic testable; the counters are exported in Prometheus' text
// format by PrometheusHandler.
type Metrics struct {
	mu sync.Mutex
	m  map[string]uint64
}

func New() *Metrics {
	return &Metrics{
		m: make(map[string]uint64),
	}
}

func (m *Metrics) Inc(name string) {
	m.mu.Lock()
	m.m[name]++
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

// Snapshot returns a copy of all counters.
func (m *Metrics) Snapshot() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.m))
	for k, v := range m.m {
		out[k] = v
	}
	return out
}

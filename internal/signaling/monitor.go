package signaling

import (
	"log/slog"
	"time"

	"github.com/l3kza08/ichat-api/internal/identity"
	"github.com/l3kza08/ichat-api/internal/metrics"
	"github.com/l3kza08/ichat-api/internal/presence"
	"github.com/l3kza08/ichat-api/internal/registry"
)

// Monitor periodically sweeps the registry: connections that answered the
// previous ping stay, the rest are evicted. Each sweep arms the next round by
// clearing the alive flag and sending a fresh ping.
type Monitor struct {
	log         *slog.Logger
	store       *identity.Store
	reg         *registry.Registry
	broadcaster *presence.Broadcaster
	metrics     *metrics.Metrics
	interval    time.Duration

	stop chan struct{}
	done chan struct{}
}

func NewMonitor(store *identity.Store, reg *registry.Registry, broadcaster *presence.Broadcaster, interval time.Duration, logger *slog.Logger, m *metrics.Metrics) *Monitor {
	return &Monitor{
		log:         logger,
		store:       store,
		reg:         reg,
		broadcaster: broadcaster,
		metrics:     m,
		interval:    interval,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

func (m *Monitor) Start() {
	go m.run()
}

func (m *Monitor) Stop() {
	close(m.stop)
	<-m.done
}

func (m *Monitor) run() {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stop:
			return
		}
	}
}

func (m *Monitor) sweep() {
	evicted := 0
	for _, entry := range m.reg.Entries() {
		if !entry.Alive() {
			m.log.Info("evicting unresponsive connection", "uid", entry.UID, "conn_id", entry.ConnID)
			_ = entry.Conn.Close()
			m.reg.RemoveByConn(entry.Conn)
			// Eviction is a teardown path like leave and disconnect, so the
			// persisted record goes offline too.
			m.store.MarkOffline(entry.UID)
			m.metrics.Inc(metrics.ConnectionsEvicted)
			evicted++
			continue
		}
		entry.SetAlive(false)
		if err := entry.Conn.Ping(); err != nil {
			m.log.Debug("ping enqueue failed", "uid", entry.UID, "err", err)
		}
	}
	if evicted > 0 {
		m.broadcaster.Broadcast()
	}
}

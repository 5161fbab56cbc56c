// Package registry tracks live client connections. It enforces the core
// invariant of the signaling server: at most one live connection per uid.
package registry

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/l3kza08/ichat-api/internal/identity"
)

// Conn is the transport handle the registry holds for a live client. Send and
// Ping are queued writes; both are best-effort and must never block the
// caller for long.
type Conn interface {
	Send(payload []byte) error
	Ping() error
	Close() error
}

// Entry is one live connection plus the presence info supplied at announce
// time. The alive flag is cleared by each liveness sweep and set again when a
// heartbeat response arrives.
type Entry struct {
	UID    string
	ConnID string
	Conn   Conn
	Info   identity.Record

	alive atomic.Bool
}

func (e *Entry) Alive() bool     { return e.alive.Load() }
func (e *Entry) SetAlive(v bool) { e.alive.Store(v) }

type Registry struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

func New() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Register inserts or replaces the live connection for uid and returns the
// displaced entry, if any. The caller decides what to do with the previous
// connection; the registry only guarantees it is no longer addressable.
func (r *Registry) Register(uid, connID string, conn Conn, info identity.Record) *Entry {
	entry := &Entry{UID: uid, ConnID: connID, Conn: conn, Info: info}
	entry.alive.Store(true)

	r.mu.Lock()
	prev := r.entries[uid]
	r.entries[uid] = entry
	r.mu.Unlock()
	return prev
}

func (r *Registry) Lookup(uid string) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[uid]
	return e, ok
}

func (r *Registry) Remove(uid string) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[uid]
	if ok {
		delete(r.entries, uid)
	}
	return e, ok
}

// RemoveByConn removes the entry holding conn, used on disconnect when the
// uid is not known up front. It returns the removed entry. A connection that
// was already replaced by a newer announce for the same uid matches nothing.
func (r *Registry) RemoveByConn(conn Conn) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for uid, e := range r.entries {
		if e.Conn == conn {
			delete(r.entries, uid)
			return e, true
		}
	}
	return nil, false
}

// LookupByConn returns the entry holding conn, used to resolve the sender of
// a relay message to its announced uid.
func (r *Registry) LookupByConn(conn Conn) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.Conn == conn {
			return e, true
		}
	}
	return nil, false
}

// MarkAlive sets the alive flag on the entry holding conn, if it is still
// registered.
func (r *Registry) MarkAlive(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.Conn == conn {
			e.alive.Store(true)
			return
		}
	}
}

// Entries returns a snapshot of all live entries ordered by uid.
func (r *Registry) Entries() []*Entry {
	r.mu.Lock()
	out := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

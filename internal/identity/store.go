package identity

import (
	"database/sql"
	"log/slog"
	"sort"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// Store is the persisted identity store. All reads are served from an
// in-memory map loaded once at startup; every mutation upserts the single
// affected row, so write cost stays constant as the user base grows.
//
// Persistence failures degrade rather than crash: if the database cannot be
// opened or read, the store starts empty and later writes are memory-only.
// Both conditions are logged.
type Store struct {
	mu      sync.Mutex
	log     *slog.Logger
	db      *sql.DB
	records map[string]Record
}

const schema = `CREATE TABLE IF NOT EXISTS users (
	uid           TEXT PRIMARY KEY,
	name          TEXT NOT NULL DEFAULT '',
	email         TEXT NOT NULL DEFAULT '',
	username      TEXT NOT NULL DEFAULT '',
	photo_ref     TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'offline',
	password_hash TEXT NOT NULL DEFAULT '',
	recovery_hash TEXT NOT NULL DEFAULT ''
)`

// Open opens (or creates) the backing database at path and loads every record
// into memory. It never fails: on any persistence error the returned store is
// memory-only and the error is logged.
func Open(path string, logger *slog.Logger) *Store {
	s := &Store{
		log:     logger,
		records: make(map[string]Record),
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		logger.Error("identity store unavailable, continuing without persistence", "path", path, "err", err)
		return s
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logger.Error("identity store unavailable, continuing without persistence", "path", path, "err", err)
			_ = db.Close()
			return s
		}
	}

	if _, err := db.Exec(schema); err != nil {
		logger.Error("identity store unavailable, continuing without persistence", "path", path, "err", err)
		_ = db.Close()
		return s
	}

	s.db = db
	s.loadAll()
	return s
}

// loadAll reads the whole users table into memory. Malformed rows are logged
// and skipped; a scan failure leaves the store empty rather than aborting
// startup.
func (s *Store) loadAll() {
	rows, err := s.db.Query(`SELECT uid, name, email, username, photo_ref, status, password_hash, recovery_hash FROM users`)
	if err != nil {
		s.log.Error("identity store load failed, starting empty", "err", err)
		return
	}
	defer rows.Close()

	loaded := 0
	for rows.Next() {
		var r Record
		var status string
		if err := rows.Scan(&r.UID, &r.Name, &r.Email, &r.Username, &r.PhotoReference, &status, &r.PasswordHash, &r.RecoveryPhraseHash); err != nil {
			s.log.Warn("skipping malformed identity row", "err", err)
			continue
		}
		r.StatusType = Status(status)
		s.records[r.UID] = r
		loaded++
	}
	if err := rows.Err(); err != nil {
		s.log.Error("identity store load incomplete", "err", err, "loaded", loaded)
		return
	}
	s.log.Info("identity store loaded", "records", loaded)
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Get(uid string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[uid]
	return r, ok
}

// Put stores rec in memory and synchronously upserts its row. Save errors are
// logged; the in-memory state is authoritative for the running process.
func (s *Store) Put(rec Record) {
	s.mu.Lock()
	s.records[rec.UID] = rec
	s.mu.Unlock()
	s.save(rec)
}

// MarkOffline records the last known status for uid as offline. Records are
// never deleted, only marked.
func (s *Store) MarkOffline(uid string) {
	s.mu.Lock()
	rec, ok := s.records[uid]
	if ok {
		rec.StatusType = StatusOffline
		s.records[uid] = rec
	}
	s.mu.Unlock()
	if ok {
		s.save(rec)
	}
}

func (s *Store) save(rec Record) {
	if s.db == nil {
		return
	}
	_, err := s.db.Exec(`INSERT INTO users (uid, name, email, username, photo_ref, status, password_hash, recovery_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET
			name=excluded.name,
			email=excluded.email,
			username=excluded.username,
			photo_ref=excluded.photo_ref,
			status=excluded.status,
			password_hash=excluded.password_hash,
			recovery_hash=excluded.recovery_hash`,
		rec.UID, rec.Name, rec.Email, rec.Username, rec.PhotoReference, string(rec.StatusType), rec.PasswordHash, rec.RecoveryPhraseHash)
	if err != nil {
		s.log.Error("identity store save failed", "uid", rec.UID, "err", err)
	}
}

// FindByUsername returns the record owning username (case-insensitive).
func (s *Store) FindByUsername(username string) (Record, bool) {
	username = strings.ToLower(username)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.Username != "" && r.Username == username {
			return r, true
		}
	}
	return Record{}, false
}

// FindByEmail returns the record owning email (case-insensitive).
func (s *Store) FindByEmail(email string) (Record, bool) {
	email = strings.ToLower(email)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.Email != "" && r.Email == email {
			return r, true
		}
	}
	return Record{}, false
}

func (s *Store) FindByRecoveryHash(hash string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.RecoveryPhraseHash != "" && r.RecoveryPhraseHash == hash {
			return r, true
		}
	}
	return Record{}, false
}

func (s *Store) FindByEmailAndPasswordHash(email, hash string) (Record, bool) {
	email = strings.ToLower(email)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.Email != "" && r.Email == email && r.PasswordHash != "" && r.PasswordHash == hash {
			return r, true
		}
	}
	return Record{}, false
}

// Search returns the public profiles whose name or username contains query,
// case-insensitively, ordered by uid.
func (s *Store) Search(query string) []PublicProfile {
	query = strings.ToLower(query)
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []PublicProfile
	for _, r := range s.records {
		if strings.Contains(strings.ToLower(r.Name), query) || strings.Contains(strings.ToLower(r.Username), query) {
			out = append(out, r.Public())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out
}

// All returns every record ordered by uid.
func (s *Store) All() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

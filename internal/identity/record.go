// Package identity holds the durable user profiles the signaling server knows
// about and the SQLite-backed store that persists them across restarts.
package identity

import "strings"

type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusOffline Status = "offline"
	StatusCustom  Status = "custom"
)

// Record is the persisted profile for a single uid. Records are created on
// first announce and updated by field-level merge on every later announce;
// the server never deletes them.
type Record struct {
	UID                string `json:"uid"`
	Name               string `json:"name,omitempty"`
	Email              string `json:"email,omitempty"`
	Username           string `json:"username,omitempty"`
	PhotoReference     string `json:"photoReference,omitempty"`
	StatusType         Status `json:"statusType,omitempty"`
	PasswordHash       string `json:"passwordHash,omitempty"`
	RecoveryPhraseHash string `json:"recoveryPhraseHash,omitempty"`
}

// Normalized returns a copy with email and username lower-cased. Uniqueness
// checks and lookups are case-insensitive, so normalization happens once at
// the announce boundary.
func (r Record) Normalized() Record {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Username = strings.ToLower(strings.TrimSpace(r.Username))
	return r
}

// Merge overlays the non-absent fields of update over r. Absent fields never
// overwrite present ones, so a partial announce cannot erase profile data.
func (r Record) Merge(update Record) Record {
	out := r
	if update.Name != "" {
		out.Name = update.Name
	}
	if update.Email != "" {
		out.Email = update.Email
	}
	if update.Username != "" {
		out.Username = update.Username
	}
	if update.PhotoReference != "" {
		out.PhotoReference = update.PhotoReference
	}
	if update.StatusType != "" {
		out.StatusType = update.StatusType
	}
	if update.PasswordHash != "" {
		out.PasswordHash = update.PasswordHash
	}
	if update.RecoveryPhraseHash != "" {
		out.RecoveryPhraseHash = update.RecoveryPhraseHash
	}
	return out
}

// PublicProfile is the reduced view returned to other clients. It never
// carries password or recovery hashes.
type PublicProfile struct {
	UID            string `json:"uid"`
	Name           string `json:"name,omitempty"`
	Email          string `json:"email,omitempty"`
	Username       string `json:"username,omitempty"`
	PhotoReference string `json:"photoReference,omitempty"`
	StatusType     Status `json:"statusType,omitempty"`
}

func (r Record) Public() PublicProfile {
	return PublicProfile{
		UID:            r.UID,
		Name:           r.Name,
		Email:          r.Email,
		Username:       r.Username,
		PhotoReference: r.PhotoReference,
		StatusType:     r.StatusType,
	}
}

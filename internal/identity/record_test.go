package identity

import "testing"

func TestRecord_Normalized(t *testing.T) {
	r := Record{UID: "u1", Email: " Alice@Example.COM ", Username: "ALice"}
	n := r.Normalized()
	if n.Email != "alice@example.com" {
		t.Fatalf("email = %q", n.Email)
	}
	if n.Username != "alice" {
		t.Fatalf("username = %q", n.Username)
	}
	if r.Email != " Alice@Example.COM " {
		t.Fatalf("Normalized must not mutate the receiver")
	}
}

func TestRecord_MergeAbsentFieldsNeverOverwrite(t *testing.T) {
	old := Record{
		UID:          "u1",
		Name:         "Alice",
		Email:        "alice@example.com",
		Username:     "alice",
		PasswordHash: "hash1",
	}

	merged := old.Merge(Record{UID: "u1", Name: "Alice B."})
	if merged.Name != "Alice B." {
		t.Fatalf("name not overwritten: %q", merged.Name)
	}
	if merged.Email != "alice@example.com" || merged.Username != "alice" || merged.PasswordHash != "hash1" {
		t.Fatalf("absent fields overwrote present ones: %+v", merged)
	}
}

func TestRecord_MergeOverwritesAllPresentFields(t *testing.T) {
	old := Record{UID: "u1", StatusType: StatusOffline}
	merged := old.Merge(Record{
		UID:                "u1",
		PhotoReference:     "photo2",
		StatusType:         StatusAway,
		RecoveryPhraseHash: "rec2",
	})
	if merged.PhotoReference != "photo2" || merged.StatusType != StatusAway || merged.RecoveryPhraseHash != "rec2" {
		t.Fatalf("merge missed fields: %+v", merged)
	}
}

func TestRecord_PublicExcludesSecrets(t *testing.T) {
	r := Record{
		UID:                "u1",
		Name:               "Alice",
		PasswordHash:       "hash",
		RecoveryPhraseHash: "rec",
	}
	p := r.Public()
	if p.UID != "u1" || p.Name != "Alice" {
		t.Fatalf("public profile missing fields: %+v", p)
	}
}

package sqlite

import (
	"context"
	"testing"

	"github.com/ByteWisdomTech/docs/internal/model"
)

func TestTokenAppendAndLatest(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "1", "alice")

	rec := &model.TokenRecord{
		UserID:     user.ID,
		Provider:   "github",
		Ciphertext: "b64-cipher-1",
	}
	if err := db.AppendToken(context.Background(), rec); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if rec.ID == "" {
		t.Error("Append() did not set record ID")
	}

	got, err := db.LatestToken(context.Background(), user.ID, "github")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if got == nil {
		t.Fatal("Latest() = nil, want the appended record")
	}
	if got.Ciphertext != "b64-cipher-1" {
		t.Errorf("Ciphertext = %q, want %q", got.Ciphertext, "b64-cipher-1")
	}
}

func TestTokenLatest_LastAppendWins(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "1", "alice")

	// Append three tokens in rapid succession. They may share a
	// created_at tick, so this also exercises the id tiebreak.
	for _, c := range []string{"cipher-old", "cipher-mid", "cipher-new"} {
		rec := &model.TokenRecord{UserID: user.ID, Provider: "github", Ciphertext: c}
		if err := db.AppendToken(context.Background(), rec); err != nil {
			t.Fatalf("Append(%s) error = %v", c, err)
		}
	}

	got, err := db.LatestToken(context.Background(), user.ID, "github")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if got.Ciphertext != "cipher-new" {
		t.Errorf("Latest() ciphertext = %q, want %q", got.Ciphertext, "cipher-new")
	}
}

func TestTokenLatest_AbsentIsNotAnError(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "1", "alice")

	got, err := db.LatestToken(context.Background(), user.ID, "github")
	if err != nil {
		t.Fatalf("Latest() error = %v, want nil for absent token", err)
	}
	if got != nil {
		t.Errorf("Latest() = %+v, want nil", got)
	}
}

func TestTokenLatest_ScopedToProvider(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "1", "alice")

	gh := &model.TokenRecord{UserID: user.ID, Provider: "github", Ciphertext: "gh-cipher"}
	if err := db.AppendToken(context.Background(), gh); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	got, err := db.LatestToken(context.Background(), user.ID, "gitlab")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if got != nil {
		t.Errorf("Latest(gitlab) = %+v, want nil — token belongs to github", got)
	}
}

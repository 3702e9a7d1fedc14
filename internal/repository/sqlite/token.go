package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/ByteWisdomTech/docs/internal/model"
	"github.com/ByteWisdomTech/docs/internal/repository"
)

// compile-time check that *DB implements repository.TokenRepository
var _ repository.TokenRepository = (*DB)(nil)

// AppendToken adds a new encrypted token record.
//
// APPEND-ONLY: this is the only statement that ever touches the tokens
// table besides SELECT. A re-login appends a fresh row; the previous
// token stays behind as history. The INSERT is synchronous — when it
// returns nil, the record is durable (no background write queue).
func (db *DB) AppendToken(ctx context.Context, rec *model.TokenRecord) error {
	rec.ID = xid.New().String()
	rec.CreatedAt = time.Now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO tokens (id, user_id, provider, ciphertext, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.ID,
		rec.UserID,
		rec.Provider,
		rec.Ciphertext,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: appending token for user %s: %w", rec.UserID, err)
	}

	return nil
}

// LatestToken returns the most recently appended token record for the
// (userID, provider) pair — "latest wins". The id tiebreak covers two
// appends landing in the same created_at tick: xid values are
// time-ordered, so the later insert sorts higher.
//
// Returns (nil, nil) when no record exists: an operator who has never
// logged in with this provider is a normal state, not an error.
func (db *DB) LatestToken(ctx context.Context, userID, provider string) (*model.TokenRecord, error) {
	var rec model.TokenRecord

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, provider, ciphertext, created_at
		 FROM tokens
		 WHERE user_id = ? AND provider = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		userID, provider,
	).Scan(
		&rec.ID,
		&rec.UserID,
		&rec.Provider,
		&rec.Ciphertext,
		&rec.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite: getting latest token for user %s: %w", userID, err)
	}

	return &rec, nil
}

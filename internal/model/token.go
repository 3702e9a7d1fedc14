package model

import "time"

// TokenRecord is one encrypted access token in the credential vault.
//
// Records are APPEND-ONLY: storing a new token for the same
// (userID, provider) pair appends a fresh row rather than updating the old
// one. The "current" token is simply the most recently appended record —
// older rows stay behind as history and are never rewritten.
//
// Ciphertext is base64(nonce ‖ tag ‖ encrypted payload) produced by the
// vault. The plaintext token exists only in memory, never in this struct,
// the database, or a log line.
type TokenRecord struct {
	ID         string    `db:"id"`
	UserID     string    `db:"user_id"`
	Provider   string    `db:"provider"`
	Ciphertext string    `db:"ciphertext"`
	CreatedAt  time.Time `db:"created_at"`
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/ByteWisdomTech/docs/internal/apperror"
	"github.com/ByteWisdomTech/docs/internal/model"
	"github.com/ByteWisdomTech/docs/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// UpsertUser inserts or updates a user based on their (provider, providerID).
//
// ONE STATEMENT, NOT LOOKUP-THEN-WRITE:
// Two concurrent first logins for the same account would both pass a
// lookup and race the insert; ON CONFLICT resolves the race inside SQLite.
// The conflict clause updates only the mutable profile fields, so the
// internal ID and CreatedAt survive every login. (INSERT OR REPLACE would
// delete-and-reinsert under a new primary key, breaking the tokens and
// sites foreign keys.) RETURNING hands back the canonical row values for
// both outcomes.
func (db *DB) UpsertUser(ctx context.Context, user *model.User) error {
	now := time.Now()
	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO users (id, provider, provider_id, username, display_name, avatar_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (provider, provider_id) DO UPDATE SET
		 	username     = excluded.username,
		 	display_name = excluded.display_name,
		 	avatar_url   = excluded.avatar_url,
		 	updated_at   = excluded.updated_at
		 RETURNING id, created_at, updated_at`,
		xid.New().String(),
		user.Provider,
		user.ProviderID,
		user.Username,
		user.DisplayName,
		user.AvatarURL,
		now,
		now,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: upserting user (%s/%s): %w", user.Provider, user.ProviderID, err)
	}

	return nil
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, provider, provider_id, username, display_name, avatar_url, created_at, updated_at
		 FROM users WHERE id = ?`,
		id,
	).Scan(
		&u.ID,
		&u.Provider,
		&u.ProviderID,
		&u.Username,
		&u.DisplayName,
		&u.AvatarURL,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}

	return &u, nil
}

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

// compile-time check that *DB implements repository.SiteRepository
var _ repository.SiteRepository = (*DB)(nil)

// UpsertSite inserts the site or updates the existing row for the
// (user_id, provider, owner, repo) key. Like the user upsert, this is a
// single atomic statement: the conflict clause moves only DefaultBranch,
// LocalPath, and UpdatedAt, so the row keeps its ID and CreatedAt across
// re-imports — even when two imports of the same repo race.
func (db *DB) UpsertSite(ctx context.Context, site *model.Site) error {
	now := time.Now()
	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO sites (id, user_id, provider, owner, repo, default_branch, local_path, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, provider, owner, repo) DO UPDATE SET
		 	default_branch = excluded.default_branch,
		 	local_path     = excluded.local_path,
		 	updated_at     = excluded.updated_at
		 RETURNING id, created_at, updated_at`,
		xid.New().String(),
		site.UserID,
		site.Provider,
		site.Owner,
		site.Repo,
		site.DefaultBranch,
		site.LocalPath,
		now,
		now,
	).Scan(&site.ID, &site.CreatedAt, &site.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: upserting site %s/%s: %w", site.Owner, site.Repo, err)
	}

	return nil
}

// ListSitesByUser returns all sites registered by the user, newest first.
func (db *DB) ListSitesByUser(ctx context.Context, userID string) ([]model.Site, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, provider, owner, repo, default_branch, local_path, created_at, updated_at
		 FROM sites WHERE user_id = ?
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing sites for user %s: %w", userID, err)
	}
	defer rows.Close()

	// Start with an empty (non-nil) slice so the JSON encoding is []
	// rather than null when the user has no sites.
	sites := []model.Site{}
	for rows.Next() {
		var s model.Site
		if err := rows.Scan(
			&s.ID,
			&s.UserID,
			&s.Provider,
			&s.Owner,
			&s.Repo,
			&s.DefaultBranch,
			&s.LocalPath,
			&s.CreatedAt,
			&s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning site row: %w", err)
		}
		sites = append(sites, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating site rows: %w", err)
	}

	return sites, nil
}

// GetSite returns the site for the (userID, provider, owner, repo) key.
// Returns apperror.ErrNotFound if the site hasn't been imported.
func (db *DB) GetSite(ctx context.Context, userID, provider, owner, repo string) (*model.Site, error) {
	var s model.Site

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, provider, owner, repo, default_branch, local_path, created_at, updated_at
		 FROM sites
		 WHERE user_id = ? AND provider = ? AND owner = ? AND repo = ?`,
		userID, provider, owner, repo,
	).Scan(
		&s.ID,
		&s.UserID,
		&s.Provider,
		&s.Owner,
		&s.Repo,
		&s.DefaultBranch,
		&s.LocalPath,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("site", owner+"/"+repo)
		}
		return nil, fmt.Errorf("sqlite: getting site %s/%s: %w", owner, repo, err)
	}

	return &s, nil
}

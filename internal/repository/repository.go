// Package repository declares the persistence interfaces the service and
// vault layers depend on. The sqlite subpackage provides the concrete
// implementation; tests substitute in-memory fakes.
package repository

import (
	"context"

	"github.com/ByteWisdomTech/docs/internal/model"
)

// Method names carry the entity (UpsertUser, UpsertSite) because the
// sqlite DB type implements all three interfaces on one receiver.

// UserRepository persists operator accounts.
type UserRepository interface {
	// UpsertUser creates the user on first login and updates the mutable
	// profile fields (username, display name, avatar) on subsequent
	// logins. Keyed on (Provider, ProviderID); ID and CreatedAt are
	// preserved across updates and filled in on the passed struct.
	UpsertUser(ctx context.Context, user *model.User) error

	// GetUserByID returns the user or apperror.ErrNotFound.
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// TokenRepository persists encrypted access tokens, append-only.
type TokenRepository interface {
	// AppendToken adds a new token record. Existing records are never
	// modified or deleted.
	AppendToken(ctx context.Context, rec *model.TokenRecord) error

	// LatestToken returns the most recently appended record for the
	// (userID, provider) pair, or (nil, nil) when none exists —
	// absence is a normal outcome, not an error.
	LatestToken(ctx context.Context, userID, provider string) (*model.TokenRecord, error)
}

// SiteRepository persists the site registry.
type SiteRepository interface {
	// UpsertSite inserts the site or, when one already exists for
	// (UserID, Provider, Owner, Repo), overwrites its mutable fields in
	// place, preserving ID and CreatedAt. The passed struct is updated
	// with the canonical record.
	UpsertSite(ctx context.Context, site *model.Site) error

	// ListSitesByUser returns all sites registered by the user, newest
	// first.
	ListSitesByUser(ctx context.Context, userID string) ([]model.Site, error)

	// GetSite returns the site for the key, or apperror.ErrNotFound.
	GetSite(ctx context.Context, userID, provider, owner, repo string) (*model.Site, error)
}

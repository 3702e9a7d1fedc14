// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data — similar to classes in other
// languages, but without inheritance. Go favours composition over inheritance.
package model

import "time"

// User represents an operator account.
//
// Identity comes from an OAuth provider (GitHub today), so the external
// identifier is the (provider, providerID) pair. We still generate our own
// internal string ID (xid) so our primary keys aren't tied to a third
// party's numbering scheme, and so a second provider can be added without
// a schema change.
//
// WHY ProviderID string?
// GitHub user IDs are numeric, but other providers use opaque strings.
// Storing the provider's ID as a string keeps the column provider-neutral;
// the UNIQUE constraint on (provider, provider_id) guarantees one remote
// account maps to exactly one local account.
type User struct {
	ID          string    `json:"id"          db:"id"`
	Provider    string    `json:"provider"    db:"provider"`     // e.g. "github"
	ProviderID  string    `json:"providerId"  db:"provider_id"`  // provider's stable user ID
	Username    string    `json:"username"    db:"username"`     // provider login, e.g. "octocat"
	DisplayName string    `json:"displayName" db:"display_name"` // may be empty
	AvatarURL   string    `json:"avatarUrl"   db:"avatar_url"`   // may be empty
	CreatedAt   time.Time `json:"createdAt"   db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt"   db:"updated_at"`
}

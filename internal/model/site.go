package model

import "time"

// Site is a registered documentation repository: the mapping from
// (user, provider, owner, repo) to its default branch and the local
// directory its docs subset is mirrored into.
//
// Sites are UPSERTED on import, keyed on (userID, provider, owner, repo):
// re-importing overwrites DefaultBranch and LocalPath in place but
// preserves ID and CreatedAt. LocalPath is derived deterministically from
// (userID, owner, repo), so a re-import always lands in the same directory.
type Site struct {
	ID            string    `json:"id"            db:"id"`
	UserID        string    `json:"userId"        db:"user_id"`
	Provider      string    `json:"provider"      db:"provider"`
	Owner         string    `json:"owner"         db:"owner"`
	Repo          string    `json:"repo"          db:"repo"`
	DefaultBranch string    `json:"defaultBranch" db:"default_branch"`
	LocalPath     string    `json:"localPath"     db:"local_path"`
	CreatedAt     time.Time `json:"createdAt"     db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt"     db:"updated_at"`
}

// RemoteFile is the transient result of fetching a single file from the
// remote platform for editing. It lives for one request only — the content
// sha is the optimistic-concurrency token the remote requires on update,
// so caching it beyond the edit request would invite stale-sha conflicts.
type RemoteFile struct {
	Path    string `json:"path"`
	SHA     string `json:"sha"`
	Content string `json:"content"` // decoded UTF-8 content
}

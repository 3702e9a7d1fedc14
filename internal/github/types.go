// Package github is a thin typed client for the GitHub REST v3 API —
// the content, ref, and pull-request operations the rest of the app needs,
// and nothing else.
//
// The exported surface is the ContentClient interface; the service layer
// and the mirror engine depend on that, never on *Client directly, so
// tests substitute deterministic fixtures.
package github

import (
	"context"
	"encoding/base64"
	"strings"
)

// Repo is a repository handle from the listing API.
type Repo struct {
	Owner         string `json:"owner"`
	Name          string `json:"name"`
	DefaultBranch string `json:"defaultBranch"`
	HTMLURL       string `json:"htmlUrl"`
}

// EntryType distinguishes files from directories in a listing.
type EntryType string

const (
	EntryFile EntryType = "file"
	EntryDir  EntryType = "dir"
)

// TreeEntry is one item of a directory listing.
type TreeEntry struct {
	Name string
	Path string
	Type EntryType
}

// File is a single file fetched from the contents API. Content is the
// base64 payload exactly as the API returned it (GitHub wraps it with
// newlines); use Bytes or Text to decode.
type File struct {
	Path    string
	SHA     string
	Content string
}

// Bytes decodes the base64 content.
func (f *File) Bytes() ([]byte, error) {
	// GitHub inserts line breaks into the base64 body; strip all
	// whitespace before decoding.
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, f.Content)
	return base64.StdEncoding.DecodeString(clean)
}

// Text decodes the content as UTF-8 text.
func (f *File) Text() (string, error) {
	b, err := f.Bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Content is the tagged union a contents request resolves to: exactly one
// of File or Entries is set. The file-vs-directory decision is made ONCE,
// at the API boundary — downstream code switches on IsDir and never
// inspects raw response shapes.
type Content struct {
	File    *File
	Entries []TreeEntry
}

// IsDir reports whether the content is a directory listing.
func (c *Content) IsDir() bool {
	return c.File == nil
}

// RepoIterator walks a repository listing page by page, yielding one
// repository at a time. Usage follows the bufio.Scanner pattern:
//
//	it := client.ListRepositories()
//	for it.Next(ctx) {
//	    r := it.Repo()
//	    ...
//	}
//	if err := it.Err(); err != nil { ... }
//
// The iterator is finite and single-pass; it fetches the next page lazily
// so the full listing is never resident in memory at once.
type RepoIterator interface {
	Next(ctx context.Context) bool
	Repo() Repo
	Err() error
}

// ContentClient is the façade over the remote platform's content, ref,
// and pull-request operations. Errors carry the apperror taxonomy:
// ErrNotFound for absent paths/refs, ErrConflict for existing refs or
// stale content shas, ErrUnauthorized for credential problems.
type ContentClient interface {
	// GetContent fetches a file or directory listing at a ref
	// (empty ref = the repository's default branch).
	GetContent(ctx context.Context, owner, repo, path, ref string) (*Content, error)

	// GetRef resolves a branch name to its head commit sha.
	GetRef(ctx context.Context, owner, repo, ref string) (string, error)

	// CreateRef creates branch newRef pointing at fromSHA.
	CreateRef(ctx context.Context, owner, repo, newRef, fromSHA string) error

	// CreateOrUpdateFile writes content to path on branch. priorSHA must
	// be the file's current blob sha when updating an existing file and
	// empty when creating a new one; a mismatch is ErrConflict.
	CreateOrUpdateFile(ctx context.Context, owner, repo, path, message string, content []byte, branch, priorSHA string) error

	// CreatePullRequest opens a PR from head into base and returns its URL.
	CreatePullRequest(ctx context.Context, owner, repo, head, base, title string) (string, error)

	// ListRepositories returns an iterator over the repositories the
	// authenticated user can access.
	ListRepositories() RepoIterator
}

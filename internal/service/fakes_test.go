package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/ByteWisdomTech/docs/internal/apperror"
	"github.com/ByteWisdomTech/docs/internal/github"
	"github.com/ByteWisdomTech/docs/internal/model"
)

// In-memory repository fakes. Each implements just enough of its
// interface contract for the service tests; the sqlite package has its
// own tests for the real implementations.

type memUsers struct {
	mu    sync.Mutex
	users map[string]*model.User // keyed by internal ID
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[string]*model.User)}
}

func (m *memUsers) UpsertUser(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Provider == user.Provider && existing.ProviderID == user.ProviderID {
			user.ID = existing.ID
			user.CreatedAt = existing.CreatedAt
			user.UpdatedAt = time.Now()
			m.users[user.ID] = user
			return nil
		}
	}
	user.ID = xid.New().String()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.users[user.ID] = user
	return nil
}

func (m *memUsers) GetUserByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, apperror.NotFound("user", id)
}

type memTokens struct {
	mu   sync.Mutex
	recs []*model.TokenRecord
}

func (m *memTokens) AppendToken(_ context.Context, rec *model.TokenRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.ID = xid.New().String()
	rec.CreatedAt = time.Now()
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memTokens) LatestToken(_ context.Context, userID, provider string) (*model.TokenRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.recs) - 1; i >= 0; i-- {
		if m.recs[i].UserID == userID && m.recs[i].Provider == provider {
			return m.recs[i], nil
		}
	}
	return nil, nil
}

type memSites struct {
	mu    sync.Mutex
	sites []*model.Site
}

func (m *memSites) UpsertSite(_ context.Context, site *model.Site) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.sites {
		if existing.UserID == site.UserID && existing.Provider == site.Provider &&
			existing.Owner == site.Owner && existing.Repo == site.Repo {
			site.ID = existing.ID
			site.CreatedAt = existing.CreatedAt
			site.UpdatedAt = time.Now()
			*existing = *site
			return nil
		}
	}
	site.ID = xid.New().String()
	site.CreatedAt = time.Now()
	site.UpdatedAt = site.CreatedAt
	cp := *site
	m.sites = append(m.sites, &cp)
	return nil
}

func (m *memSites) ListSitesByUser(_ context.Context, userID string) ([]model.Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Site, 0)
	for _, s := range m.sites {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memSites) GetSite(_ context.Context, userID, provider, owner, repo string) (*model.Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sites {
		if s.UserID == userID && s.Provider == provider && s.Owner == owner && s.Repo == repo {
			cp := *s
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("site", owner+"/"+repo)
}

// fakeRemote is a scripted ContentClient. It serves an in-memory tree,
// tracks refs, records every mutating call in order, and remembers the
// token it was constructed with so tests can assert the vaulted
// credential reached the client factory.
type fakeRemote struct {
	mu sync.Mutex

	token string

	files map[string]string             // "path@ref" → body
	dirs  map[string][]github.TreeEntry // "path@ref" → listing
	refs  map[string]string             // branch → head sha
	repos []github.Repo

	calls    []string          // ordered log of mutating operations
	branches []string          // branches created, in order
	written  map[string][]byte // "path@branch" → content written
	prs      []string          // "head→base" per opened PR

	lastCommitMessage string
	lastPRTitle       string
}

func newFakeRemote(token string) *fakeRemote {
	return &fakeRemote{
		token:   token,
		files:   make(map[string]string),
		dirs:    make(map[string][]github.TreeEntry),
		refs:    make(map[string]string),
		written: make(map[string][]byte),
	}
}

func key(path, ref string) string { return path + "@" + ref }

func (f *fakeRemote) addFile(path, ref, body string) { f.files[key(path, ref)] = body }

func (f *fakeRemote) addDir(path, ref string, entries ...github.TreeEntry) {
	f.dirs[key(path, ref)] = entries
}

func (f *fakeRemote) setRef(branch, sha string) { f.refs[branch] = sha }

func (f *fakeRemote) GetContent(_ context.Context, _, _, path, ref string) (*github.Content, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if body, ok := f.files[key(path, ref)]; ok {
		return &github.Content{File: &github.File{
			Path:    path,
			SHA:     "sha-" + path,
			Content: base64.StdEncoding.EncodeToString([]byte(body)),
		}}, nil
	}
	if entries, ok := f.dirs[key(path, ref)]; ok {
		return &github.Content{Entries: entries}, nil
	}
	return nil, apperror.NotFound("remote path", path)
}

func (f *fakeRemote) GetRef(_ context.Context, _, _, ref string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "GetRef:"+ref)
	if sha, ok := f.refs[ref]; ok {
		return sha, nil
	}
	return "", apperror.NotFound("ref", ref)
}

func (f *fakeRemote) CreateRef(_ context.Context, _, _, newRef, fromSHA string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "CreateRef:"+newRef)
	if _, exists := f.refs[newRef]; exists {
		return apperror.Conflict("ref", newRef)
	}
	f.refs[newRef] = fromSHA
	f.branches = append(f.branches, newRef)
	return nil
}

func (f *fakeRemote) CreateOrUpdateFile(_ context.Context, _, _, path, message string, content []byte, branch, priorSHA string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("Put:%s@%s(sha=%s)", path, branch, priorSHA))
	f.written[key(path, branch)] = content
	f.lastCommitMessage = message
	return nil
}

func (f *fakeRemote) CreatePullRequest(_ context.Context, owner, repo, head, base, title string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "PR:"+head+"→"+base)
	f.prs = append(f.prs, head+"→"+base)
	f.lastPRTitle = title
	return fmt.Sprintf("https://github.com/%s/%s/pull/%d", owner, repo, len(f.prs)), nil
}

func (f *fakeRemote) ListRepositories() github.RepoIterator {
	return &sliceIter{repos: f.repos}
}

func (f *fakeRemote) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type sliceIter struct {
	repos []github.Repo
	idx   int
	cur   github.Repo
}

func (s *sliceIter) Next(context.Context) bool {
	if s.idx >= len(s.repos) {
		return false
	}
	s.cur = s.repos[s.idx]
	s.idx++
	return true
}
func (s *sliceIter) Repo() github.Repo { return s.cur }
func (s *sliceIter) Err() error        { return nil }

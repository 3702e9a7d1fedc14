package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ByteWisdomTech/docs/internal/apperror"
	"github.com/ByteWisdomTech/docs/internal/model"
)

func TestSiteUpsert_Insert(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "1", "alice")

	site := &model.Site{
		UserID:        user.ID,
		Provider:      "github",
		Owner:         "octo",
		Repo:          "docs",
		DefaultBranch: "main",
		LocalPath:     "/data/u1-octo-docs",
	}

	if err := db.UpsertSite(context.Background(), site); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if site.ID == "" {
		t.Error("Upsert() did not set site.ID")
	}

	got, err := db.GetSite(context.Background(), user.ID, "github", "octo", "docs")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.DefaultBranch != "main" || got.LocalPath != "/data/u1-octo-docs" {
		t.Errorf("Get() = %+v", got)
	}
}

func TestSiteUpsert_ReimportPreservesIDAndCreatedAt(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "1", "alice")

	first := &model.Site{
		UserID: user.ID, Provider: "github", Owner: "octo", Repo: "docs",
		DefaultBranch: "main", LocalPath: "/data/u1-octo-docs",
	}
	if err := db.UpsertSite(context.Background(), first); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	// Re-import after the repo switched default branches.
	second := &model.Site{
		UserID: user.ID, Provider: "github", Owner: "octo", Repo: "docs",
		DefaultBranch: "trunk", LocalPath: "/data/u1-octo-docs",
	}
	if err := db.UpsertSite(context.Background(), second); err != nil {
		t.Fatalf("Upsert() (re-import) error = %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("re-import changed site ID: %q → %q", first.ID, second.ID)
	}

	got, err := db.GetSite(context.Background(), user.ID, "github", "octo", "docs")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.DefaultBranch != "trunk" {
		t.Errorf("DefaultBranch = %q, want %q", got.DefaultBranch, "trunk")
	}
	if !got.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("CreatedAt changed across re-import: %v → %v", first.CreatedAt, got.CreatedAt)
	}

	// Upsert-by-key means exactly one row per (user, provider, owner, repo).
	sites, err := db.ListSitesByUser(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(sites) != 1 {
		t.Errorf("ListByUser() returned %d sites, want 1", len(sites))
	}
}

func TestSiteListByUser_OnlyOwnSites(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "1", "alice")
	bob := createTestUser(t, db, "2", "bob")

	for _, s := range []*model.Site{
		{UserID: alice.ID, Provider: "github", Owner: "octo", Repo: "docs", DefaultBranch: "main", LocalPath: "/a"},
		{UserID: alice.ID, Provider: "github", Owner: "octo", Repo: "blog", DefaultBranch: "main", LocalPath: "/b"},
		{UserID: bob.ID, Provider: "github", Owner: "octo", Repo: "docs", DefaultBranch: "main", LocalPath: "/c"},
	} {
		if err := db.UpsertSite(context.Background(), s); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
	}

	sites, err := db.ListSitesByUser(context.Background(), alice.ID)
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(sites) != 2 {
		t.Errorf("ListByUser(alice) returned %d sites, want 2", len(sites))
	}
	for _, s := range sites {
		if s.UserID != alice.ID {
			t.Errorf("ListByUser(alice) returned a site owned by %s", s.UserID)
		}
	}
}

func TestSiteUpsert_ConcurrentImportsConverge(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "1", "alice")

	const imports = 8
	var wg sync.WaitGroup
	errs := make([]error, imports)

	for i := 0; i < imports; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = db.UpsertSite(context.Background(), &model.Site{
				UserID: user.ID, Provider: "github", Owner: "octo", Repo: "docs",
				DefaultBranch: "main", LocalPath: "/data/u1-octo-docs",
			})
		}(i)
	}
	wg.Wait()

	for i := 0; i < imports; i++ {
		if errs[i] != nil {
			t.Fatalf("concurrent UpsertSite() #%d error = %v", i, errs[i])
		}
	}

	sites, err := db.ListSitesByUser(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("ListSitesByUser() error = %v", err)
	}
	if len(sites) != 1 {
		t.Errorf("racing imports left %d rows, want 1", len(sites))
	}
}

func TestSiteGet_NotFound(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "1", "alice")

	_, err := db.GetSite(context.Background(), user.ID, "github", "octo", "missing")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

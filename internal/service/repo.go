package service

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/ByteWisdomTech/docs/internal/apperror"
	"github.com/ByteWisdomTech/docs/internal/detector"
	"github.com/ByteWisdomTech/docs/internal/github"
	"github.com/ByteWisdomTech/docs/internal/mirror"
	"github.com/ByteWisdomTech/docs/internal/model"
	"github.com/ByteWisdomTech/docs/internal/repository"
	"github.com/ByteWisdomTech/docs/internal/vault"
)

// mirrorSubset is the fixed set of paths an import copies from a
// Docusaurus repository: the docs content plus the config files an editor
// needs for context. Paths absent in a given repo are skipped.
var mirrorSubset = []string{
	"docs",
	"blog",
	"docusaurus.config.js",
	"docusaurus.config.ts",
	"sidebars.js",
	"sidebars.ts",
}

// RepoService lists the user's Docusaurus repositories and imports them
// into the site registry.
type RepoService struct {
	sites    repository.SiteRepository
	vault    *vault.Vault
	detector *detector.Detector
	mirror   *mirror.Engine
	clients  ClientFactory
	logger   *slog.Logger

	// dataDir is the root under which every site mirror lives. Each site
	// gets the deterministic subdirectory u<userID>-<owner>-<repo>, so a
	// re-import converges on the same directory.
	dataDir string
}

// NewRepoService creates a RepoService.
func NewRepoService(
	sites repository.SiteRepository,
	v *vault.Vault,
	det *detector.Detector,
	eng *mirror.Engine,
	clients ClientFactory,
	dataDir string,
	logger *slog.Logger,
) *RepoService {
	return &RepoService{
		sites:    sites,
		vault:    v,
		detector: det,
		mirror:   eng,
		clients:  clients,
		dataDir:  dataDir,
		logger:   logger,
	}
}

// clientFor resolves the user's GitHub token from the vault and builds a
// content client around it. A user with no stored token gets
// ErrUnauthorized — the session is valid but there is no credential to
// act with, and the fix is to re-run the OAuth flow.
func clientFor(ctx context.Context, v *vault.Vault, clients ClientFactory, userID string) (github.ContentClient, error) {
	token, ok, err := v.Latest(ctx, userID, "github")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.Unauthorized("no GitHub credential on file; sign in again")
	}
	return clients(token), nil
}

// ListDocusaurusRepos returns the user's accessible repositories filtered
// down to the ones that look like Docusaurus sites, in listing order.
func (s *RepoService) ListDocusaurusRepos(ctx context.Context, userID string) ([]github.Repo, error) {
	client, err := clientFor(ctx, s.vault, s.clients, userID)
	if err != nil {
		return nil, err
	}

	repos, err := s.detector.FilterRepos(ctx, client, client.ListRepositories())
	if err != nil {
		return nil, fmt.Errorf("service/repo: listing repositories: %w", err)
	}
	return repos, nil
}

// ImportResult is returned by Import: the registered site plus the
// per-path mirror outcomes.
type ImportResult struct {
	Site   *model.Site         `json:"site"`
	Mirror []mirror.PathResult `json:"mirror"`
}

// Import mirrors the docs subset of owner/repo to local disk and upserts
// the site registry entry. Importing the same repository again is
// idempotent at the registry level: the site keeps its ID and the mirror
// converges on the current remote state.
//
// defaultBranch comes from the repository listing; empty falls back to
// "main".
func (s *RepoService) Import(ctx context.Context, userID, owner, repo, defaultBranch string) (*ImportResult, error) {
	owner = strings.TrimSpace(owner)
	repo = strings.TrimSpace(repo)
	if err := validateRepoName("owner", owner); err != nil {
		return nil, err
	}
	if err := validateRepoName("repo", repo); err != nil {
		return nil, err
	}
	if defaultBranch == "" {
		defaultBranch = "main"
	}

	client, err := clientFor(ctx, s.vault, s.clients, userID)
	if err != nil {
		return nil, err
	}

	localPath := filepath.Join(s.dataDir, fmt.Sprintf("u%s-%s-%s", userID, owner, repo))

	results, err := s.mirror.MirrorSubset(ctx, client, owner, repo, defaultBranch, localPath, mirrorSubset)
	if err != nil {
		return nil, fmt.Errorf("service/repo: mirroring %s/%s: %w", owner, repo, err)
	}

	site := &model.Site{
		UserID:        userID,
		Provider:      "github",
		Owner:         owner,
		Repo:          repo,
		DefaultBranch: defaultBranch,
		LocalPath:     localPath,
	}
	if err := s.sites.UpsertSite(ctx, site); err != nil {
		return nil, fmt.Errorf("service/repo: registering site %s/%s: %w", owner, repo, err)
	}

	s.logger.Info("site imported",
		slog.String("userID", userID),
		slog.String("repo", owner+"/"+repo),
		slog.String("localPath", localPath),
	)

	return &ImportResult{Site: site, Mirror: results}, nil
}

// ListSites returns the user's registered sites, newest first.
func (s *RepoService) ListSites(ctx context.Context, userID string) ([]model.Site, error) {
	sites, err := s.sites.ListSitesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/repo: listing sites: %w", err)
	}
	return sites, nil
}

// validateRepoName rejects anything that is not a plausible GitHub
// owner/repo segment. This is defence in depth for the local mirror path:
// the name becomes part of a directory name under dataDir, so separators
// and dot-runs must never get that far.
func validateRepoName(field, name string) error {
	if name == "" {
		return apperror.ValidationFailed(field, field+" is required")
	}
	if name == "." || name == ".." {
		return apperror.ValidationFailed(field, field+" is not a valid repository name")
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return apperror.ValidationFailed(field,
				fmt.Sprintf("%s contains an invalid character %q", field, r))
		}
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/ByteWisdomTech/docs/internal/apperror"
	"github.com/ByteWisdomTech/docs/internal/metrics"
	"github.com/ByteWisdomTech/docs/internal/model"
	"github.com/ByteWisdomTech/docs/internal/repository"
	"github.com/ByteWisdomTech/docs/internal/vault"
)

// EditService fetches files for editing and submits edits as pull
// requests. Both operations are scoped to sites the user has imported:
// an unregistered repository is not editable through this surface even
// if the user's token could technically reach it.
type EditService struct {
	sites   repository.SiteRepository
	vault   *vault.Vault
	clients ClientFactory
	metrics *metrics.Collector
	logger  *slog.Logger
}

// NewEditService creates an EditService.
func NewEditService(
	sites repository.SiteRepository,
	v *vault.Vault,
	clients ClientFactory,
	m *metrics.Collector,
	logger *slog.Logger,
) *EditService {
	return &EditService{
		sites:   sites,
		vault:   v,
		clients: clients,
		metrics: m,
		logger:  logger,
	}
}

// FetchFile returns the file at path, decoded, together with the content
// sha the remote requires for an update. The sha is valid for this edit
// session only. ref selects the branch to read from; empty means the
// site's default branch, which is where Submit writes its prior-sha
// lookup against.
func (s *EditService) FetchFile(ctx context.Context, userID, owner, repo, path, ref string) (*model.RemoteFile, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, apperror.ValidationFailed("path", "file path is required")
	}

	site, err := s.sites.GetSite(ctx, userID, "github", owner, repo)
	if err != nil {
		return nil, err
	}

	client, err := clientFor(ctx, s.vault, s.clients, userID)
	if err != nil {
		return nil, err
	}

	if ref = strings.TrimSpace(ref); ref == "" {
		ref = site.DefaultBranch
	}

	content, err := client.GetContent(ctx, owner, repo, path, ref)
	if err != nil {
		return nil, err
	}
	if content.IsDir() {
		return nil, apperror.ValidationFailed("path", "path is a directory, not a file")
	}

	text, err := content.File.Text()
	if err != nil {
		return nil, fmt.Errorf("service/edit: decoding %s: %w", path, err)
	}

	return &model.RemoteFile{
		Path:    content.File.Path,
		SHA:     content.File.SHA,
		Content: text,
	}, nil
}

// EditSubmission is the input to Submit.
type EditSubmission struct {
	Path    string // repo-relative file path
	Content string // full new file content
	Message string // commit message / PR title; empty → "Edit <path>"
}

// Submit runs the edit-to-PR pipeline:
//
//	resolve base head → create branch → write file on branch → open PR
//
// The steps are strictly ordered and there is no internal retry; the
// first failure propagates and later steps never run. A branch created
// before a later step failed is left behind — orphan branches on the
// remote are cheap, and silently deleting refs we just created is a
// riskier cleanup than it is worth.
//
// Branch names are admin-edit-<unix-ms>-<xid>: sortable by creation time,
// and collision-free even for submissions within the same millisecond.
func (s *EditService) Submit(ctx context.Context, userID, owner, repo string, sub EditSubmission) (string, error) {
	sub.Path = strings.TrimSpace(sub.Path)
	if sub.Path == "" {
		return "", apperror.ValidationFailed("path", "file path is required")
	}

	site, err := s.sites.GetSite(ctx, userID, "github", owner, repo)
	if err != nil {
		return "", err
	}

	client, err := clientFor(ctx, s.vault, s.clients, userID)
	if err != nil {
		return "", err
	}

	message := strings.TrimSpace(sub.Message)
	if message == "" {
		message = "Edit " + sub.Path
	}

	base := site.DefaultBranch

	baseSHA, err := client.GetRef(ctx, owner, repo, base)
	if err != nil {
		return "", fmt.Errorf("service/edit: resolving base branch %q: %w", base, err)
	}

	branch := fmt.Sprintf("admin-edit-%d-%s", time.Now().UnixMilli(), xid.New())
	if err := client.CreateRef(ctx, owner, repo, branch, baseSHA); err != nil {
		return "", fmt.Errorf("service/edit: creating branch %q: %w", branch, err)
	}

	// Prior-sha lookup is best effort: a missing file means we are
	// creating it, anything else we let the write itself surface.
	priorSHA := ""
	if existing, err := client.GetContent(ctx, owner, repo, sub.Path, base); err == nil && !existing.IsDir() {
		priorSHA = existing.File.SHA
	} else if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return "", fmt.Errorf("service/edit: checking existing file %s: %w", sub.Path, err)
	}

	if err := client.CreateOrUpdateFile(ctx, owner, repo, sub.Path, message, []byte(sub.Content), branch, priorSHA); err != nil {
		return "", fmt.Errorf("service/edit: writing %s on %s: %w", sub.Path, branch, err)
	}

	prURL, err := client.CreatePullRequest(ctx, owner, repo, branch, base, message)
	if err != nil {
		return "", fmt.Errorf("service/edit: opening pull request from %s: %w", branch, err)
	}

	s.metrics.RecordPullRequest()
	s.logger.Info("edit submitted as pull request",
		slog.String("userID", userID),
		slog.String("repo", owner+"/"+repo),
		slog.String("path", sub.Path),
		slog.String("branch", branch),
		slog.String("pr", prURL),
	)

	return prURL, nil
}

package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ByteWisdomTech/docs/internal/apperror"
	"github.com/ByteWisdomTech/docs/internal/auth"
	"github.com/ByteWisdomTech/docs/internal/service"
)

// SiteHandler exposes the site registry and the edit-to-PR pipeline.
type SiteHandler struct {
	repos  *service.RepoService
	edits  *service.EditService
	logger *slog.Logger
}

// NewSiteHandler creates a SiteHandler.
func NewSiteHandler(repos *service.RepoService, edits *service.EditService, logger *slog.Logger) *SiteHandler {
	return &SiteHandler{repos: repos, edits: edits, logger: logger}
}

// HandleListSites returns the user's registered sites, newest first.
//
// HTTP: GET /api/sites (auth required)
func (h *SiteHandler) HandleListSites(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	sites, err := h.repos.ListSites(r.Context(), userID)
	if err != nil {
		h.logger.Error("HandleListSites: listing failed",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"sites": sites})
}

// HandleFetchFile returns a file for editing, with the content sha the
// later submit needs. An optional ref parameter reads from another
// branch; the default is the site's default branch.
//
// HTTP: GET /api/sites/{owner}/{repo}/file?path=docs/intro.md&ref=branch (auth required)
func (h *SiteHandler) HandleFetchFile(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	owner := chi.URLParam(r, "owner")
	repo := chi.URLParam(r, "repo")
	path := r.URL.Query().Get("path")
	ref := r.URL.Query().Get("ref")

	file, err := h.edits.FetchFile(r.Context(), userID, owner, repo, path, ref)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, file)
}

// editRequest is the POST /api/sites/{owner}/{repo}/edit body.
type editRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Message string `json:"message"` // optional; defaults to "Edit <path>"
}

// HandleSubmitEdit runs the edit-to-PR pipeline and returns the PR URL.
//
// HTTP: POST /api/sites/{owner}/{repo}/edit (auth required)
func (h *SiteHandler) HandleSubmitEdit(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	owner := chi.URLParam(r, "owner")
	repo := chi.URLParam(r, "repo")

	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "request body must be valid JSON"))
		return
	}

	prURL, err := h.edits.Submit(r.Context(), userID, owner, repo, service.EditSubmission{
		Path:    req.Path,
		Content: req.Content,
		Message: req.Message,
	})
	if err != nil {
		h.logger.Error("HandleSubmitEdit: submit failed",
			slog.String("userID", userID),
			slog.String("repo", owner+"/"+repo),
			slog.String("path", req.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"pullRequestUrl": prURL})
}

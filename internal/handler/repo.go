package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ByteWisdomTech/docs/internal/apperror"
	"github.com/ByteWisdomTech/docs/internal/auth"
	"github.com/ByteWisdomTech/docs/internal/service"
)

// RepoHandler exposes the repository listing and the import operation.
type RepoHandler struct {
	repos  *service.RepoService
	logger *slog.Logger
}

// NewRepoHandler creates a RepoHandler.
func NewRepoHandler(repos *service.RepoService, logger *slog.Logger) *RepoHandler {
	return &RepoHandler{repos: repos, logger: logger}
}

// HandleList returns the user's repositories that look like Docusaurus
// sites.
//
// HTTP: GET /api/repos (auth required)
func (h *RepoHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	repos, err := h.repos.ListDocusaurusRepos(r.Context(), userID)
	if err != nil {
		h.logger.Error("HandleList: listing failed",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"repos": repos})
}

// importRequest is the POST /api/repos/import body.
type importRequest struct {
	Owner         string `json:"owner"`
	Repo          string `json:"repo"`
	DefaultBranch string `json:"defaultBranch"`
}

// HandleImport mirrors the docs subset of a repository and registers it
// as a site.
//
// HTTP: POST /api/repos/import (auth required)
func (h *RepoHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "request body must be valid JSON"))
		return
	}

	result, err := h.repos.Import(r.Context(), userID, req.Owner, req.Repo, req.DefaultBranch)
	if err != nil {
		h.logger.Error("HandleImport: import failed",
			slog.String("userID", userID),
			slog.String("repo", req.Owner+"/"+req.Repo),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

package handler

// RESPONSE HELPERS:
// Every handler sends JSON through writeJSON and errors through
// writeError, so the API has exactly one error shape:
//
//	{"error": "not_found", "message": "site not found: octo/docs"}
//
// and exactly one place where domain errors become status codes.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ByteWisdomTech/docs/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // machine-readable kind, e.g. "not_found"
	Message string `json:"message"` // human-readable description
}

// writeJSON sends a JSON response with the given status code. Headers and
// status must go out before the body — once Encode writes, they are sent.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to its HTTP status and sends it.
//
// The mapping is the ONLY place in the codebase that knows both the
// apperror taxonomy and HTTP status codes.
//
// ErrPathTraversal, ErrDecryption, and ErrConfig deliberately fall
// through to the generic 500: their messages name file paths, key
// problems, and configuration detail that belongs in the server log,
// never in a response body.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := 0
		errorType := ""

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status, errorType = http.StatusBadRequest, "validation_error"
		case errors.Is(err, apperror.ErrNotFound):
			status, errorType = http.StatusNotFound, "not_found"
		case errors.Is(err, apperror.ErrUnauthorized):
			status, errorType = http.StatusUnauthorized, "unauthorized"
		case errors.Is(err, apperror.ErrForbidden):
			status, errorType = http.StatusForbidden, "forbidden"
		case errors.Is(err, apperror.ErrConflict):
			status, errorType = http.StatusConflict, "conflict"
		}

		if status != 0 {
			writeJSON(w, status, ErrorResponse{
				Error:   errorType,
				Message: appErr.Message,
			})
			return
		}
	}

	// Unknown or internal-only error. The raw message may contain paths,
	// SQL, or crypto detail — log it upstream, never echo it.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

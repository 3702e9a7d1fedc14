// Package apperror defines the application's error taxonomy.
//
// ERROR DESIGN:
// Every layer below the HTTP handlers returns one of these typed errors.
// The handlers translate them to status codes in exactly one place
// (handler/response.go) — nothing else in the codebase knows about HTTP.
//
// The sentinels fall into two groups:
//
//	Recoverable — the caller can retry or treat as a normal outcome:
//	  ErrNotFound   remote path / record absent
//	  ErrConflict   ref already exists, or content sha mismatch
//	  ErrValidation bad input from the caller
//
//	Fatal for the operation — retrying the same call cannot help:
//	  ErrPathTraversal  a mirror write tried to escape its target root
//	  ErrDecryption     a stored token failed its authentication tag
//	  ErrConfig         a required secret/credential is missing
//	  ErrUnauthorized   no valid credential for the remote platform
//	  ErrForbidden      authenticated but not allowed
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation error")
	ErrConflict      = errors.New("conflict")
	ErrForbidden     = errors.New("forbidden")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrPathTraversal = errors.New("path traversal")
	ErrDecryption    = errors.New("decryption failed")
	ErrConfig        = errors.New("configuration error")
)

type AppError struct {
	Err     error  // sentinel identifying the error kind
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict: %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized returns an AppError indicating the caller has no usable
// credential for the remote platform. HTTP handlers map this to 401 so
// the client can restart the OAuth flow.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// PathTraversal marks a local-write safety violation. It is always fatal
// to the mirror operation that raised it — a traversal attempt means the
// remote tree (or a caller) supplied a hostile path.
//
// The offending path goes to the server log only; handlers never echo it
// back to the client.
func PathTraversal(path string) *AppError {
	return &AppError{
		Err:     ErrPathTraversal,
		Message: fmt.Sprintf("refusing to write outside target root: %s", path),
	}
}

// Decryption marks a vault read whose authentication tag did not verify.
// The ciphertext was tampered with or the encryption key changed — either
// way no plaintext may be returned.
func Decryption(message string) *AppError {
	return &AppError{
		Err:     ErrDecryption,
		Message: message,
	}
}

// Config marks a missing required secret or credential. These surface at
// the start of an operation (or at process startup), never per-call.
func Config(message string) *AppError {
	return &AppError{
		Err:     ErrConfig,
		Message: message,
	}
}

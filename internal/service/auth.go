// Package service contains the business logic layer.
//
// LAYERING:
//
//	Handler (HTTP)  → parses requests, writes responses
//	Service (rules) → validates, authorizes, orchestrates
//	Repository (DB) → reads/writes records
//
// Services accept primitives and return domain errors from the apperror
// taxonomy; they know nothing about HTTP. The handler translates errors
// to status codes in one place.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/ByteWisdomTech/docs/internal/auth"
	"github.com/ByteWisdomTech/docs/internal/github"
	"github.com/ByteWisdomTech/docs/internal/model"
	"github.com/ByteWisdomTech/docs/internal/repository"
	"github.com/ByteWisdomTech/docs/internal/vault"
)

// ClientFactory builds a remote content client bound to one user's access
// token. Services resolve the token from the vault per operation and
// construct a client on the spot — tokens are never cached in memory
// across requests.
type ClientFactory func(token string) github.ContentClient

// AuthService orchestrates the OAuth callback: upsert the user, vault the
// access token, issue the session JWT.
type AuthService struct {
	users  repository.UserRepository
	tokens *auth.TokenService
	vault  *vault.Vault
	logger *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	v *vault.Vault,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		vault:  v,
		logger: logger,
	}
}

// AuthResult bundles the user record and the issued session JWT so the
// handler can set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// LoginOrRegisterGitHub completes the GitHub OAuth callback.
//
// After the handler exchanges the code for a profile and access token,
// this method:
//
//  1. Upserts the user keyed on (provider, providerID) — first login
//     inserts, later logins refresh the mutable profile fields
//  2. Stores the access token in the credential vault (the ONLY place
//     the plaintext token goes; it is never logged or returned)
//  3. Issues the session JWT
//
// The vault write happens before the JWT is issued: a session without a
// usable GitHub credential behind it would fail on its first API call
// anyway.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser, accessToken string) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	user := &model.User{
		Provider:    "github",
		ProviderID:  strconv.FormatInt(ghUser.ID, 10),
		Username:    ghUser.Login,
		DisplayName: ghUser.Name,
		AvatarURL:   ghUser.AvatarURL,
	}

	// After Upsert the struct carries the canonical ID and timestamps.
	if err := s.users.UpsertUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting user (githubID=%d): %w", ghUser.ID, err)
	}

	if err := s.vault.Store(ctx, user.ID, "github", accessToken); err != nil {
		return nil, fmt.Errorf("service/auth: storing access token for user %s: %w", user.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating session token for user %s: %w", user.ID, err)
	}

	return &AuthResult{User: user, Token: token}, nil
}

// GetUserByID returns the user for the given internal ID. Used by the
// /api/me handler after the middleware validates the session.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, fmt.Errorf("service/auth: user ID must not be empty")
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}

	return user, nil
}

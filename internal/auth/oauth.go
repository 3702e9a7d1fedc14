package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// GitHubUser is the slice of the GitHub /user response we keep. GitHub
// returns a much larger object; we unmarshal only what the user record
// needs.
type GitHubUser struct {
	ID        int64  `json:"id"`         // numeric GitHub user ID — stable across renames
	Login     string `json:"login"`      // GitHub username
	Name      string `json:"name"`       // display name (may be empty)
	AvatarURL string `json:"avatar_url"` // profile picture URL
}

// GitHubProvider wraps golang.org/x/oauth2 for the GitHub Authorization
// Code flow.
//
// SCOPES:
// Besides the profile scopes, this app asks for "repo" — the whole point
// is to list the user's repositories, mirror their contents, and push
// edit branches. The access token that grants this is the credential the
// vault encrypts; it never reaches the browser.
type GitHubProvider struct {
	config *oauth2.Config

	// userAPIURL is overridable so tests can point Exchange at an
	// httptest server instead of api.github.com.
	userAPIURL string
}

// NewGitHubProvider creates a provider for the given OAuth app
// credentials. callbackURL must match the app's configured callback
// exactly.
func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email", "repo"},
			Endpoint:     github.Endpoint,
		},
		userAPIURL: "https://api.github.com/user",
	}
}

// AuthURL returns the GitHub authorization URL for the given state.
//
// The state is a random value stored in a short-lived cookie before the
// redirect; the callback handler verifies GitHub echoed it back, which
// blocks CSRF-style flow injection.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the authorization code for the user's profile AND the
// raw access token. The token is returned separately because it has
// exactly one legitimate destination: the credential vault. Callers must
// not log it or put it anywhere else.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*GitHubUser, string, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, "", fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	// oauth2.Config.Client attaches the bearer token to every request.
	client := p.config.Client(ctx, oauthToken)

	resp, err := client.Get(p.userAPIURL)
	if err != nil {
		return nil, "", fmt.Errorf("auth: calling GitHub /user API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("auth: GitHub /user API returned status %d", resp.StatusCode)
	}

	var ghUser GitHubUser
	if err := json.NewDecoder(resp.Body).Decode(&ghUser); err != nil {
		return nil, "", fmt.Errorf("auth: decoding GitHub /user response: %w", err)
	}

	if ghUser.ID == 0 {
		return nil, "", fmt.Errorf("auth: GitHub returned an invalid user (ID = 0)")
	}

	return &ghUser, oauthToken.AccessToken, nil
}

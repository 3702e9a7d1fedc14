package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ByteWisdomTech/docs/internal/apperror"
)

// newTestClient spins up an httptest server with the given handler and a
// Client pointed at it.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-token", WithBaseURL(srv.URL))
}

func TestGetContent_File(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("# Intro\n"))
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/octo/docs/contents/docs/intro.md", r.URL.Path)
		assert.Equal(t, "main", r.URL.Query().Get("ref"))
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]string{
			"name":    "intro.md",
			"path":    "docs/intro.md",
			"sha":     "def456",
			"type":    "file",
			"content": encoded,
		})
	})

	content, err := client.GetContent(context.Background(), "octo", "docs", "docs/intro.md", "main")
	assert.NoError(t, err)
	assert.False(t, content.IsDir())
	assert.Equal(t, "def456", content.File.SHA)

	text, err := content.File.Text()
	assert.NoError(t, err)
	assert.Equal(t, "# Intro\n", text)
}

func TestGetContent_FileWithWrappedBase64(t *testing.T) {
	// GitHub line-wraps the base64 body; the decoder must cope.
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"path":    "docs/intro.md",
			"sha":     "def456",
			"type":    "file",
			"content": "IyBJbnRy\nbwo=\n",
		})
	})

	content, err := client.GetContent(context.Background(), "octo", "docs", "docs/intro.md", "")
	assert.NoError(t, err)
	text, err := content.File.Text()
	assert.NoError(t, err)
	assert.Equal(t, "# Intro\n", text)
}

func TestGetContent_Directory(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]string{
			{"name": "intro.md", "path": "docs/intro.md", "type": "file"},
			{"name": "guides", "path": "docs/guides", "type": "dir"},
		})
	})

	content, err := client.GetContent(context.Background(), "octo", "docs", "docs", "main")
	assert.NoError(t, err)
	assert.True(t, content.IsDir())
	assert.Len(t, content.Entries, 2)
	assert.Equal(t, EntryFile, content.Entries[0].Type)
	assert.Equal(t, EntryDir, content.Entries[1].Type)
}

func TestGetContent_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"message": "Not Found"})
	})

	_, err := client.GetContent(context.Background(), "octo", "docs", "missing.md", "main")
	assert.True(t, errors.Is(err, apperror.ErrNotFound), "error = %v", err)
}

func TestGetContent_BadTokenIsUnauthorized(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.GetContent(context.Background(), "octo", "docs", "docs", "main")
	assert.True(t, errors.Is(err, apperror.ErrUnauthorized), "error = %v", err)
}

func TestGetRef(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/octo/docs/git/ref/heads/main", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"object": map[string]string{"sha": "abc123"},
		})
	})

	sha, err := client.GetRef(context.Background(), "octo", "docs", "main")
	assert.NoError(t, err)
	assert.Equal(t, "abc123", sha)
}

func TestCreateRef_ExistingRefIsConflict(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"message": "Reference already exists"})
	})

	err := client.CreateRef(context.Background(), "octo", "docs", "admin-edit-1", "abc123")
	assert.True(t, errors.Is(err, apperror.ErrConflict), "error = %v", err)
}

func TestCreateOrUpdateFile_SendsShaOnlyWhenUpdating(t *testing.T) {
	var got map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, "{}")
	})

	// Create: no prior sha → no "sha" key in the payload at all.
	err := client.CreateOrUpdateFile(context.Background(),
		"octo", "docs", "docs/new.md", "Add page", []byte("hello"), "feature", "")
	assert.NoError(t, err)
	_, hasSHA := got["sha"]
	assert.False(t, hasSHA, "create must omit the sha field")
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("hello")), got["content"])
	assert.Equal(t, "feature", got["branch"])

	// Update: prior sha present.
	err = client.CreateOrUpdateFile(context.Background(),
		"octo", "docs", "docs/intro.md", "Edit page", []byte("hi"), "feature", "def456")
	assert.NoError(t, err)
	assert.Equal(t, "def456", got["sha"])
}

func TestCreateOrUpdateFile_StaleShaIsConflict(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"message": "is at abc but expected def"})
	})

	err := client.CreateOrUpdateFile(context.Background(),
		"octo", "docs", "docs/intro.md", "Edit", []byte("x"), "feature", "stale")
	assert.True(t, errors.Is(err, apperror.ErrConflict), "error = %v", err)
}

func TestCreatePullRequest(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "admin-edit-1", body["head"])
		assert.Equal(t, "main", body["base"])
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"html_url": "https://github.com/octo/docs/pull/7",
			"number":   7,
		})
	})

	url, err := client.CreatePullRequest(context.Background(),
		"octo", "docs", "admin-edit-1", "main", "Edit docs/intro.md")
	assert.NoError(t, err)
	assert.Equal(t, "https://github.com/octo/docs/pull/7", url)
}

func TestListRepositories_Paginates(t *testing.T) {
	// Two pages linked via the Link header. The iterator must fetch the
	// second page lazily and stop when there is no rel="next".
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/user/repos", func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		if page == "" || page == "1" {
			w.Header().Set("Link", fmt.Sprintf(`<%s/user/repos?page=2>; rel="next"`, srv.URL))
			json.NewEncoder(w).Encode([]map[string]any{
				{"name": "docs", "default_branch": "main", "owner": map[string]string{"login": "octo"}},
				{"name": "blog", "default_branch": "main", "owner": map[string]string{"login": "octo"}},
			})
			return
		}
		json.NewEncoder(w).Encode([]map[string]any{
			{"name": "site", "default_branch": "trunk", "owner": map[string]string{"login": "octo"}},
		})
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := NewClient("test-token", WithBaseURL(srv.URL))

	var names []string
	it := client.ListRepositories()
	for it.Next(context.Background()) {
		names = append(names, it.Repo().Name)
	}
	assert.NoError(t, it.Err())
	assert.Equal(t, []string{"docs", "blog", "site"}, names)
}

func TestListRepositories_ErrorStopsIteration(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	it := client.ListRepositories()
	assert.False(t, it.Next(context.Background()))
	assert.True(t, errors.Is(it.Err(), apperror.ErrUnauthorized), "error = %v", it.Err())
}

func TestNextLink(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{
			name:   "next and last",
			header: `<https://api.github.com/user/repos?page=2>; rel="next", <https://api.github.com/user/repos?page=5>; rel="last"`,
			want:   "/user/repos?page=2",
		},
		{
			name:   "no next",
			header: `<https://api.github.com/user/repos?page=1>; rel="prev"`,
			want:   "",
		},
		{
			name:   "empty header",
			header: "",
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nextLink(tt.header, "https://api.github.com")
			assert.Equal(t, tt.want, got)
		})
	}
}

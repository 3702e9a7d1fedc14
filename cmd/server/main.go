// Package main is the entry point for the docs admin server: read
// configuration from the environment, build the logger, start the server.
// Everything else lives in internal/.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ByteWisdomTech/docs/internal/server"
)

func main() {
	// === 1. LOGGING ===
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// === 2. CORE CONFIGURATION ===
	port := 8080
	if portStr := os.Getenv("PORT"); portStr != "" {
		var err error
		port, err = strconv.Atoi(portStr)
		if err != nil {
			logger.Error("invalid PORT value", slog.String("value", portStr))
			os.Exit(1)
		}
	}

	dbPath := "data/docs-admin.db"
	if envDB := os.Getenv("DB_PATH"); envDB != "" {
		dbPath = envDB
	}

	dataDir := "data/mirrors"
	if envDir := os.Getenv("DATA_DIR"); envDir != "" {
		dataDir = envDir
	}

	for _, dir := range []string{filepath.Dir(dbPath), dataDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error("failed to create directory",
				slog.String("dir", dir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	// === 3. SECRETS ===
	// TOKEN_ENCRYPTION_KEY protects the stored GitHub tokens. There is no
	// degraded mode for it: a server that would store tokens in plaintext
	// must not start. Generate one with: openssl rand -hex 32
	tokenKey := os.Getenv("TOKEN_ENCRYPTION_KEY")
	if tokenKey == "" {
		logger.Error("TOKEN_ENCRYPTION_KEY is not set; refusing to start")
		os.Exit(1)
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Error("JWT_SECRET is not set; refusing to start")
		os.Exit(1)
	}

	// === 4. GITHUB OAUTH APP ===
	// Missing client credentials put the server in degraded mode: it
	// serves everything except sign-in. Useful for smoke tests and for
	// bringing the service up before the OAuth app is registered.
	githubClientID := os.Getenv("GITHUB_CLIENT_ID")
	githubClientSecret := os.Getenv("GITHUB_CLIENT_SECRET")
	githubCallbackURL := os.Getenv("GITHUB_CALLBACK_URL")
	if githubCallbackURL == "" {
		githubCallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", port)
	}

	// === 5. TUNING ===
	mirrorConcurrent := envInt(logger, "MIRROR_MAX_CONCURRENT", 4)
	probeConcurrent := envInt(logger, "PROBE_MAX_CONCURRENT", 4)
	requestsPerMinute := envInt(logger, "RATE_LIMIT_PER_MINUTE", 120)

	// === 6. START ===
	cfg := server.Config{
		Port:                port,
		DBPath:              dbPath,
		DataDir:             dataDir,
		JWTSecret:           jwtSecret,
		TokenEncryptionKey:  tokenKey,
		GitHubClientID:      githubClientID,
		GitHubClientSecret:  githubClientSecret,
		GitHubCallbackURL:   githubCallbackURL,
		GitHubAPIURL:        os.Getenv("GITHUB_API_URL"),
		MirrorMaxConcurrent: mirrorConcurrent,
		ProbeMaxConcurrent:  probeConcurrent,
		RequestsPerMinute:   requestsPerMinute,
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// envInt reads an integer environment variable, falling back to def when
// unset and exiting on garbage — a silently ignored tuning knob is worse
// than a crash at startup.
func envInt(logger *slog.Logger, name string, def int) int {
	val := os.Getenv(name)
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		logger.Error("invalid value for "+name, slog.String("value", val))
		os.Exit(1)
	}
	return n
}

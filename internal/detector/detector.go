// Package detector classifies repositories: does this repo look like a
// Docusaurus site?
//
// Two signals, probed in order:
//
//  1. MARKER FILES — a docusaurus config file at the repo root. Cheapest
//     and most reliable; the first hit short-circuits the whole check.
//  2. MANIFEST — package.json declares a dependency under the
//     "@docusaurus/" namespace. Covers repos that moved or renamed their
//     config.
//
// EVIDENCE, NOT ERRORS:
// A failed probe (missing file, unparsable manifest) is negative evidence
// for that probe, never a propagated error — absence of evidence is not
// failure. Only a total inability to reach the repository surfaces to the
// caller, and that only from the listing layer above.
package detector

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/ByteWisdomTech/docs/internal/github"
)

// markerFiles are checked in order; any hit means "docusaurus repo".
var markerFiles = []string{
	"docusaurus.config.js",
	"docusaurus.config.ts",
}

const (
	manifestPath    = "package.json"
	namespacePrefix = "@docusaurus/"
)

// Detector probes repositories for the Docusaurus project shape.
type Detector struct {
	logger *slog.Logger

	// maxConcurrent bounds the fan-out of FilterRepos. Each probed repo
	// costs up to three content requests; unbounded parallelism would
	// trip the remote API's abuse limits on any decent-sized account.
	maxConcurrent int
}

// New creates a Detector. maxConcurrent <= 0 falls back to a sane default.
func New(logger *slog.Logger, maxConcurrent int) *Detector {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &Detector{logger: logger, maxConcurrent: maxConcurrent}
}

// IsDocusaurusRepo reports whether owner/repo looks like a Docusaurus
// site at its default branch.
func (d *Detector) IsDocusaurusRepo(ctx context.Context, client github.ContentClient, owner, repo string) bool {
	// Probe 1: marker config files, short-circuit on the first hit.
	for _, marker := range markerFiles {
		content, err := client.GetContent(ctx, owner, repo, marker, "")
		if err != nil {
			// Not found, not authorized, transient — all negative
			// evidence for this marker. Move on.
			continue
		}
		if !content.IsDir() {
			return true
		}
	}

	// Probe 2: package.json dependency namespace.
	content, err := client.GetContent(ctx, owner, repo, manifestPath, "")
	if err != nil || content.IsDir() {
		return false
	}

	raw, err := content.File.Bytes()
	if err != nil {
		return false
	}

	return manifestDeclaresNamespace(raw)
}

// manifestDeclaresNamespace parses a package.json body and reports whether
// any dependency (regular or dev) starts with the docusaurus namespace.
// A malformed manifest is negative evidence.
func manifestDeclaresNamespace(raw []byte) bool {
	var manifest struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return false
	}

	for name := range manifest.Dependencies {
		if strings.HasPrefix(name, namespacePrefix) {
			return true
		}
	}
	for name := range manifest.DevDependencies {
		if strings.HasPrefix(name, namespacePrefix) {
			return true
		}
	}
	return false
}

// FilterRepos drains the repository iterator and returns the subset that
// matches the Docusaurus shape, preserving listing order.
//
// BOUNDED FAN-OUT:
// Listing produces repos one at a time; each candidate is probed on a
// worker goroutine admitted through a buffered-channel semaphore, so at
// most maxConcurrent repos are being probed at once no matter how large
// the account is.
func (d *Detector) FilterRepos(ctx context.Context, client github.ContentClient, it github.RepoIterator) ([]github.Repo, error) {
	type probe struct {
		repo  github.Repo
		order int
	}

	var (
		mu      sync.Mutex
		matched []probe
		wg      sync.WaitGroup
	)
	sem := make(chan struct{}, d.maxConcurrent)

	order := 0
	for it.Next(ctx) {
		repo := it.Repo()
		idx := order
		order++

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return nil, ctx.Err()
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			if d.IsDocusaurusRepo(ctx, client, repo.Owner, repo.Name) {
				mu.Lock()
				matched = append(matched, probe{repo: repo, order: idx})
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if err := it.Err(); err != nil {
		// The listing itself failed — this IS a real error (we could not
		// reach the repository set at all), unlike a failed probe.
		return nil, err
	}

	// Restore listing order: workers finish in arbitrary sequence.
	result := make([]github.Repo, 0, len(matched))
	for i := 0; i < order; i++ {
		for _, p := range matched {
			if p.order == i {
				result = append(result, p.repo)
				break
			}
		}
	}

	d.logger.Info("repository listing filtered",
		slog.Int("scanned", order),
		slog.Int("matched", len(result)),
	)

	return result, nil
}

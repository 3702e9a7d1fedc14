// Package mirror copies a subset of a remote repository tree onto local
// disk.
//
// The engine is deliberately paranoid about two things:
//
//  1. WHERE it writes. Every destination path is produced by SafeJoin,
//     which refuses — lexically, before touching the filesystem — any
//     path that would land outside the target root. Remote trees are
//     untrusted input; a hostile entry name must not become a write to
//     /etc or a sibling site's directory.
//  2. WHAT a reader can observe. Files are written to a temp sibling and
//     renamed into place, so a concurrently-read mirror never contains a
//     half-written file. A re-run overwrites in place and converges to
//     the remote state.
//
// Mirroring is best-effort PER PATH: a subset path that is missing
// remotely is skipped, a path that fails mid-way is reported in its
// result, and the remaining paths still run. The single exception is a
// path-traversal attempt, which aborts the whole operation — at that
// point the remote tree is hostile and nothing it names should be
// trusted.
package mirror

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/xid"

	"github.com/ByteWisdomTech/docs/internal/apperror"
	"github.com/ByteWisdomTech/docs/internal/github"
	"github.com/ByteWisdomTech/docs/internal/metrics"
)

// PathResult reports the outcome of mirroring one subset path.
type PathResult struct {
	Path     string `json:"path"`
	Mirrored int    `json:"mirrored"`        // files written
	Skipped  bool   `json:"skipped"`         // path absent remotely
	Error    string `json:"error,omitempty"` // non-fatal failure, if any
}

// Engine mirrors remote subtrees to local directories.
type Engine struct {
	logger  *slog.Logger
	metrics *metrics.Collector

	// maxConcurrent bounds parallel file downloads within one mirror run.
	maxConcurrent int

	// locks serializes mirrors of the same target root. Two imports of
	// the same site racing each other would interleave renames and leave
	// a mix of two remote states on disk.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewEngine creates a mirror engine. maxConcurrent <= 0 falls back to a
// sane default.
func NewEngine(logger *slog.Logger, m *metrics.Collector, maxConcurrent int) *Engine {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &Engine{
		logger:        logger,
		metrics:       m,
		maxConcurrent: maxConcurrent,
		locks:         make(map[string]*sync.Mutex),
	}
}

// SafeJoin joins rel onto root and verifies — by lexical inspection of
// the cleaned result, never by consulting the filesystem — that the
// destination stays inside root. A result that escapes is
// ErrPathTraversal.
func SafeJoin(root, rel string) (string, error) {
	cleanRoot := filepath.Clean(root)
	dst := filepath.Join(cleanRoot, filepath.FromSlash(rel))
	if dst != cleanRoot && !strings.HasPrefix(dst, cleanRoot+string(os.PathSeparator)) {
		return "", apperror.PathTraversal(rel)
	}
	return dst, nil
}

// lock acquires the per-target mutex, creating it on first use. The
// returned function releases it.
func (e *Engine) lock(targetRoot string) func() {
	e.mu.Lock()
	m, ok := e.locks[targetRoot]
	if !ok {
		m = &sync.Mutex{}
		e.locks[targetRoot] = m
	}
	e.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// MirrorSubset mirrors each of paths from owner/repo at ref into
// targetRoot. Missing paths are skipped; failing paths are reported in
// their PathResult; a traversal attempt aborts everything.
func (e *Engine) MirrorSubset(ctx context.Context, client github.ContentClient, owner, repo, ref, targetRoot string, paths []string) ([]PathResult, error) {
	unlock := e.lock(targetRoot)
	defer unlock()

	if err := os.MkdirAll(targetRoot, 0o755); err != nil {
		return nil, err
	}

	results := make([]PathResult, 0, len(paths))
	total := 0
	for _, p := range paths {
		n, skipped, err := e.mirrorPath(ctx, client, owner, repo, ref, targetRoot, p)
		total += n

		if errors.Is(err, apperror.ErrPathTraversal) {
			e.logger.Error("mirror aborted: hostile path in remote tree",
				slog.String("repo", owner+"/"+repo),
				slog.String("subset_path", p),
			)
			return nil, err
		}

		res := PathResult{Path: p, Mirrored: n, Skipped: skipped}
		if skipped {
			e.metrics.RecordMirrorSkip()
		} else if err != nil {
			res.Error = err.Error()
		}
		results = append(results, res)
	}

	e.logger.Info("mirror complete",
		slog.String("repo", owner+"/"+repo),
		slog.String("target", targetRoot),
		slog.Int("files", total),
	)
	return results, nil
}

// mirrorPath mirrors one subset path, a single file or a whole subtree.
// It returns the number of files written, whether the path was absent
// remotely (only the top-level probe counts as a skip), and the first
// error seen during the walk.
func (e *Engine) mirrorPath(ctx context.Context, client github.ContentClient, owner, repo, ref, targetRoot, start string) (int, bool, error) {
	content, err := client.GetContent(ctx, owner, repo, start, ref)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return 0, true, nil
		}
		return 0, false, err
	}

	if !content.IsDir() {
		if err := e.writeRemoteFile(targetRoot, content.File); err != nil {
			return 0, false, err
		}
		return 1, false, nil
	}

	// DIRECTORY WALK:
	// Explicit worklist instead of recursion — remote trees can be
	// arbitrarily deep, and the loop shape makes the early abort on
	// traversal obvious. Directory listings are fetched sequentially;
	// file downloads fan out through a bounded semaphore.
	var (
		wg       sync.WaitGroup
		resMu    sync.Mutex
		written  int
		firstErr error
	)
	sem := make(chan struct{}, e.maxConcurrent)

	recordErr := func(err error) {
		resMu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		resMu.Unlock()
	}

	work := append([]github.TreeEntry(nil), content.Entries...)
	for len(work) > 0 {
		entry := work[len(work)-1]
		work = work[:len(work)-1]

		if err := ctx.Err(); err != nil {
			recordErr(err)
			break
		}

		// Check containment BEFORE any fetch or goroutine: a hostile
		// entry name stops the walk here and aborts the operation.
		dst, err := SafeJoin(targetRoot, entry.Path)
		if err != nil {
			wg.Wait()
			return written, false, err
		}

		switch entry.Type {
		case github.EntryDir:
			sub, err := client.GetContent(ctx, owner, repo, entry.Path, ref)
			if err != nil {
				recordErr(err)
				continue
			}
			work = append(work, sub.Entries...)

		case github.EntryFile:
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				recordErr(ctx.Err())
				wg.Wait()
				return written, false, firstErr
			}

			wg.Add(1)
			go func(entry github.TreeEntry, dst string) {
				defer wg.Done()
				defer func() { <-sem }()

				sub, err := client.GetContent(ctx, owner, repo, entry.Path, ref)
				if err != nil {
					recordErr(err)
					return
				}
				if sub.IsDir() {
					recordErr(apperror.NotFound("remote file", entry.Path))
					return
				}
				data, err := sub.File.Bytes()
				if err != nil {
					recordErr(err)
					return
				}
				if err := writeFileAtomic(dst, data); err != nil {
					recordErr(err)
					return
				}
				e.metrics.RecordMirroredFile()
				resMu.Lock()
				written++
				resMu.Unlock()
			}(entry, dst)
		}
	}
	wg.Wait()

	return written, false, firstErr
}

// writeRemoteFile decodes and atomically writes one fetched file under
// targetRoot at its repo-relative path.
func (e *Engine) writeRemoteFile(targetRoot string, f *github.File) error {
	dst, err := SafeJoin(targetRoot, f.Path)
	if err != nil {
		return err
	}
	data, err := f.Bytes()
	if err != nil {
		return err
	}
	if err := writeFileAtomic(dst, data); err != nil {
		return err
	}
	e.metrics.RecordMirroredFile()
	return nil
}

// writeFileAtomic writes data to a temp sibling and renames it over dst,
// so readers never see a partial file. The rename is atomic on the same
// filesystem, which the sibling placement guarantees.
func writeFileAtomic(dst string, data []byte) error {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp := filepath.Join(dir, ".tmp-"+xid.New().String())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

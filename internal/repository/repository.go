// Package repository acquires a source repository (by remote URL or local
// path) into a cache directory and enumerates its files, pruning directories
// that carry no analyzable signal (VCS metadata, dependency trees, build
// output).
package repository

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-git/v5"

	"github.com/reposcorer/reposcorer/internal/utils"
)

// excludedDirs are pruned unconditionally during Walk, regardless of the
// includeHidden flag — grounded on the corpus's directory-exclusion
// conventions for code indexers and repository walkers.
var excludedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"target":       true,
	".next":        true,
	"__pycache__":  true,
}

// RepoAcquireError wraps a failure to fetch or locate a repository.
type RepoAcquireError struct {
	URL string
	Err error
}

func (e *RepoAcquireError) Error() string {
	return fmt.Sprintf("acquire repository %q: %v", e.URL, e.Err)
}

func (e *RepoAcquireError) Unwrap() error { return e.Err }

// FileEntry is one file discovered by Walk.
type FileEntry struct {
	Relative string
	Absolute string
}

// Metadata is the memoized acquisition result for one repository URL.
type Metadata struct {
	URL       string
	RepoName  string
	LocalPath string
	Files     []FileEntry
}

// Acquirer fetches repositories into cacheRoot and memoizes metadata by URL
// with first-writer-wins semantics, so concurrent runs against the same
// repository share one clone and one file listing.
type Acquirer struct {
	cacheRoot     string
	excludeGlobs  []string
	includeHidden bool

	mu    sync.Mutex
	cache map[string]*Metadata
}

// New creates an Acquirer rooted at cacheRoot. excludeGlobs are additional
// doublestar glob patterns (evaluated against the path relative to the
// repository root) pruned during Walk on top of excludedDirs.
func New(cacheRoot string, excludeGlobs []string, includeHidden bool) *Acquirer {
	return &Acquirer{
		cacheRoot:     cacheRoot,
		excludeGlobs:  excludeGlobs,
		includeHidden: includeHidden,
		cache:         make(map[string]*Metadata),
	}
}

// Acquire fetches (or reuses) the repository at rawURL and returns its
// metadata, including the full file listing from Walk. Idempotent: a second
// call for the same URL returns the cached metadata without touching disk or
// network again.
func (a *Acquirer) Acquire(rawURL string) (*Metadata, error) {
	a.mu.Lock()
	if m, ok := a.cache[rawURL]; ok {
		a.mu.Unlock()
		return m, nil
	}
	a.mu.Unlock()

	localPath, repoName, err := a.acquireLocal(rawURL)
	if err != nil {
		return nil, &RepoAcquireError{URL: rawURL, Err: err}
	}

	files, err := a.Walk(localPath)
	if err != nil {
		return nil, &RepoAcquireError{URL: rawURL, Err: fmt.Errorf("walk: %w", err)}
	}

	m := &Metadata{URL: rawURL, RepoName: repoName, LocalPath: localPath, Files: files}

	a.mu.Lock()
	defer a.mu.Unlock()
	if existing, ok := a.cache[rawURL]; ok {
		// Another goroutine won the race; first writer wins.
		return existing, nil
	}
	a.cache[rawURL] = m
	return m, nil
}

// acquireLocal resolves rawURL to a local directory, cloning it under
// cacheRoot when it is a remote URL and it isn't already cached on disk.
// Supplement to spec.md §4.2: a bare local path or a file:// URL is treated
// as an already-acquired working copy rather than something to clone — the
// original tool accepted local working copies as well as remote URLs.
func (a *Acquirer) acquireLocal(rawURL string) (localPath, repoName string, err error) {
	if p, ok := localFilePath(rawURL); ok {
		info, statErr := os.Stat(p)
		if statErr != nil {
			return "", "", statErr
		}
		if !info.IsDir() {
			return "", "", fmt.Errorf("local repository path %q is not a directory", p)
		}
		return p, filepath.Base(filepath.Clean(p)), nil
	}

	repoName = basenameFromURL(rawURL)
	localPath = filepath.Join(a.cacheRoot, repoName)

	if info, statErr := os.Stat(localPath); statErr == nil && info.IsDir() {
		return localPath, repoName, nil
	}

	if err := os.MkdirAll(a.cacheRoot, 0o755); err != nil {
		return "", "", fmt.Errorf("create cache root: %w", err)
	}

	_, err = git.PlainClone(localPath, false, &git.CloneOptions{
		URL:   rawURL,
		Depth: 1,
	})
	if err != nil {
		_ = os.RemoveAll(localPath)
		return "", "", fmt.Errorf("clone: %w", err)
	}
	return localPath, repoName, nil
}

// localFilePath reports whether rawURL names a local filesystem path (either
// a file:// URL or a bare absolute/relative path with no scheme) and returns
// the resolved directory path.
func localFilePath(rawURL string) (string, bool) {
	if strings.HasPrefix(rawURL, "file://") {
		return strings.TrimPrefix(rawURL, "file://"), true
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		if _, statErr := os.Stat(rawURL); statErr == nil {
			return rawURL, true
		}
	}
	return "", false
}

// basenameFromURL derives the cache directory name from a repository URL,
// stripping a trailing ".git" suffix the way git clone tooling conventionally
// names checkouts.
func basenameFromURL(rawURL string) string {
	trimmed := strings.TrimSuffix(rawURL, "/")
	trimmed = strings.TrimSuffix(trimmed, ".git")
	base := filepath.Base(trimmed)
	if base == "" || base == "." || base == "/" {
		return utils.Slugify(rawURL)
	}
	return base
}

// Walk enumerates files under root, pruning excludedDirs and, unless
// includeHidden was configured, any dot-directory. Files are returned with
// both the path relative to root and the absolute path.
func (a *Acquirer) Walk(root string) ([]FileEntry, error) {
	var entries []FileEntry

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		name := d.Name()

		if d.IsDir() {
			if excludedDirs[name] {
				return filepath.SkipDir
			}
			if !a.includeHidden && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if a.matchesExclude(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		if !a.includeHidden && strings.HasPrefix(name, ".") {
			return nil
		}
		if a.matchesExclude(rel) {
			return nil
		}

		entries = append(entries, FileEntry{Relative: rel, Absolute: path})
		return nil
	})
	if err != nil && !errors.Is(err, filepath.SkipDir) {
		return nil, err
	}
	return entries, nil
}

func (a *Acquirer) matchesExclude(rel string) bool {
	for _, pattern := range a.excludeGlobs {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

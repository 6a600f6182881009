// Package reportstore persists pipeline artifacts to the filesystem
// under the reports root, using the write-temp-then-rename pattern for
// every write so a reader never observes a partially written file.
package reportstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Store roots every run's artifacts under <reportsRoot>/<repoName>/run-<runId>/.
type Store struct {
	reportsRoot string
}

// New creates a Store rooted at reportsRoot, creating the root directory
// if it does not already exist.
func New(reportsRoot string) (*Store, error) {
	if err := os.MkdirAll(reportsRoot, 0o755); err != nil {
		return nil, fmt.Errorf("reportstore: create reports root: %w", err)
	}
	return &Store{reportsRoot: reportsRoot}, nil
}

// RunDir returns the directory holding a given run's artifacts.
func (s *Store) RunDir(repoName, runID string) string {
	return filepath.Join(s.reportsRoot, repoName, "run-"+runID)
}

// Path names for spec.md §6's filesystem layout.
const (
	ChunkingAnalysisFile = "chunking-analysis.json"
	FileSelectionFile    = "file-selection.json"
	ProjectScorecardFile = "project-scorecard.json"
	finalReviewsDir      = "final-reviews2"
)

// WriteJSON atomically writes v as JSON to <runDir>/<name>, creating
// runDir if needed. Grounded on the teacher's file-store save routine:
// marshal, write to a sibling temp file, then os.Rename into place.
func (s *Store) WriteJSON(runDir, name string, v any) error {
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("reportstore: create run dir: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("reportstore: marshal %s: %w", name, err)
	}

	finalPath := filepath.Join(runDir, name)
	tempPath := finalPath + ".tmp"
	defer func() { _ = os.Remove(tempPath) }()

	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("reportstore: write temp %s: %w", name, err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		return fmt.Errorf("reportstore: rename into place %s: %w", name, err)
	}
	return nil
}

// ReadJSON reads and unmarshals <runDir>/<name> into v.
func (s *Store) ReadJSON(runDir, name string, v any) error {
	data, err := os.ReadFile(filepath.Join(runDir, name))
	if err != nil {
		return fmt.Errorf("reportstore: read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("reportstore: unmarshal %s: %w", name, err)
	}
	return nil
}

// WriteCalibratedScorecard atomically writes a timestamped final-review
// artifact under <runDir>/final-reviews2/calibrated-scorecard-<ts>.json.
func (s *Store) WriteCalibratedScorecard(runDir string, ts int64, v any) error {
	dir := filepath.Join(runDir, finalReviewsDir)
	name := fmt.Sprintf("calibrated-scorecard-%d.json", ts)
	return s.WriteJSON(dir, name, v)
}

// LatestCalibratedScorecard finds the most recently modified
// final-reviews2/*.json artifact under runDir, per spec.md §4.7's
// cache-hit lookup, sorting by full mtime (not millisecond-of-mtime —
// see DESIGN.md's Open Question decision).
func (s *Store) LatestCalibratedScorecard(runDir string) (string, bool, error) {
	dir := filepath.Join(runDir, finalReviewsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reportstore: list %s: %w", dir, err)
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	var candidates []candidate
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{path: filepath.Join(dir, e.Name()), modTime: info.ModTime()})
	}
	if len(candidates) == 0 {
		return "", false, nil
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].modTime.After(candidates[j].modTime) })
	return candidates[0].path, true, nil
}

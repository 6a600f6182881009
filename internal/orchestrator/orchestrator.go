// Package orchestrator is the run state machine: it drives a repository
// through selection, chunking, scoring, and final review, persisting
// artifacts as it goes and exposing incremental per-file operations.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/reposcorer/reposcorer/internal/aiclient"
	"github.com/reposcorer/reposcorer/internal/chunker"
	"github.com/reposcorer/reposcorer/internal/metrics"
	"github.com/reposcorer/reposcorer/internal/repository"
	"github.com/reposcorer/reposcorer/internal/scoring"
)

// RepoAcquirer is the subset of *repository.Acquirer the orchestrator
// needs; narrowed to an interface so tests can substitute a fake.
type RepoAcquirer interface {
	Acquire(rawURL string) (*repository.Metadata, error)
}

// FileChunker is the subset of *chunker.Chunker the orchestrator needs.
type FileChunker interface {
	ChunkFile(code, path string) (*chunker.FileChunkGroup, error)
}

// FileSelector is the subset of *scoring.Selector the orchestrator needs.
type FileSelector interface {
	InferProjectContext(ctx context.Context, readmeExcerpt string, fileTree []string) (scoring.ProjectContext, aiclient.Usage, error)
	SelectFiles(ctx context.Context, projectCtx scoring.ProjectContext, allFiles []string) (scoring.FileSelection, error)
}

// ScoringEngine is the subset of *scoring.Engine the orchestrator needs.
type ScoringEngine interface {
	ScoreProject(ctx context.Context, runID, repoName string, fcgs []*chunker.FileChunkGroup, projectCtx scoring.ProjectContext) (*scoring.ProjectScorecard, error)
	RunFinalReview(ctx context.Context, scorecard *scoring.ProjectScorecard, projectCtx scoring.ProjectContext) error
}

// ArtifactStore is the subset of *reportstore.Store the orchestrator needs.
type ArtifactStore interface {
	RunDir(repoName, runID string) string
	WriteJSON(runDir, name string, v any) error
	ReadJSON(runDir, name string, v any) error
	WriteCalibratedScorecard(runDir string, ts int64, v any) error
	LatestCalibratedScorecard(runDir string) (string, bool, error)
}

// readmeCandidates are checked, in order, for a README excerpt when the
// caller doesn't supply one.
var readmeCandidates = []string{"README.md", "Readme.md", "README", "README.rst", "README.txt"}

const readmeExcerptMaxBytes = 4000

// Orchestrator owns the process-wide run map and the pipeline stages.
type Orchestrator struct {
	mu   sync.RWMutex
	runs map[string]*RunState

	acquirer RepoAcquirer
	chunker  FileChunker
	selector FileSelector
	engine   ScoringEngine
	store    ArtifactStore
}

// New wires an Orchestrator from its dependencies.
func New(acquirer RepoAcquirer, chunker FileChunker, selector FileSelector, engine ScoringEngine, store ArtifactStore) *Orchestrator {
	return &Orchestrator{
		runs:     make(map[string]*RunState),
		acquirer: acquirer,
		chunker:  chunker,
		selector: selector,
		engine:   engine,
		store:    store,
	}
}

// Start begins a new run (or reuses an existing one by runID), returning
// the run and the full walked file list, per spec.md §4.7 and §6's
// POST /analysis contract.
func (o *Orchestrator) Start(ctx context.Context, runID, repoURL, readmeOverride string) (*RunState, error) {
	reuse := runID != ""
	if runID == "" {
		runID = uuid.NewString()
	}

	meta, err := o.acquirer.Acquire(repoURL)
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	allFiles := make([]string, len(meta.Files))
	for i, f := range meta.Files {
		allFiles[i] = f.Relative
	}

	rs := newRunState(runID, repoURL)
	rs.RepoName = meta.RepoName
	rs.LocalPath = meta.LocalPath
	rs.AllFiles = allFiles

	o.mu.Lock()
	o.runs[runID] = rs
	o.mu.Unlock()

	runDir := o.store.RunDir(meta.RepoName, runID)

	if reuse {
		if cached, loaded := o.tryLoadCached(rs, runDir); loaded {
			return cached, nil
		}
	}

	go o.runPipeline(ctx, rs, meta, readmeOverride, runDir)

	return rs, nil
}

// tryLoadCached implements the start() cache-hit path: if a calibrated
// scorecard already exists for this run, load it and transition straight
// to complete (scenario F).
func (o *Orchestrator) tryLoadCached(rs *RunState, runDir string) (*RunState, bool) {
	path, found, err := o.store.LatestCalibratedScorecard(runDir)
	if err != nil || !found {
		return rs, false
	}

	var scorecard scoring.ProjectScorecard
	data, err := os.ReadFile(path)
	if err != nil {
		return rs, false
	}
	if err := json.Unmarshal(data, &scorecard); err != nil {
		return rs, false
	}

	rs.setScorecard(&scorecard, path)
	rs.transition(StatusComplete, "loaded cached final review")
	return rs, true
}

// runPipeline drives a run through selecting_files → chunking_and_scoring
// → final_review → complete, failing to error on any unrecoverable step.
func (o *Orchestrator) runPipeline(ctx context.Context, rs *RunState, meta *repository.Metadata, readmeOverride, runDir string) {
	start := time.Now()
	defer func() {
		status := string(rs.View().Status)
		metrics.Default.RunsTotal.WithLabelValues(status).Inc()
		metrics.Default.RunDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}()

	rs.transition(StatusSelectingFiles, "selecting files")

	if len(rs.AllFiles) == 0 {
		rs.fail(ErrNoFilesSelected)
		return
	}

	readme := readmeOverride
	if readme == "" {
		readme = loadReadmeExcerpt(meta)
	}

	projectCtx, _, err := o.selector.InferProjectContext(ctx, readme, rs.AllFiles)
	if err != nil {
		rs.fail(err)
		return
	}
	rs.mu.Lock()
	rs.ProjectContext = &projectCtx
	rs.mu.Unlock()

	selection, err := o.selector.SelectFiles(ctx, projectCtx, rs.AllFiles)
	if err != nil {
		rs.fail(err)
		return
	}
	if len(selection.Files) == 0 {
		rs.fail(ErrNoFilesSelected)
		return
	}
	if err := o.store.WriteJSON(runDir, "file-selection.json", selection); err != nil {
		rs.log("warning: failed to persist file selection: " + err.Error())
	}

	rs.transition(StatusChunkingAndScoring, "chunking and scoring")

	fcgs, err := o.chunkFiles(meta, selection.Files)
	if err != nil {
		rs.fail(err)
		return
	}
	chunked := make(map[string]bool, len(fcgs))
	for _, fcg := range fcgs {
		chunked[fcg.FilePath] = true
	}
	for _, rel := range selection.Files {
		if !chunked[rel] {
			rs.log("skipped " + rel + ": could not be read or chunked")
		}
	}
	if err := o.store.WriteJSON(runDir, "chunking-analysis.json", fcgs); err != nil {
		rs.log("warning: failed to persist chunking analysis: " + err.Error())
	}

	scorecard, err := o.engine.ScoreProject(ctx, rs.RunID, rs.RepoName, fcgs, projectCtx)
	if err != nil {
		rs.fail(err)
		return
	}
	if err := o.store.WriteJSON(runDir, "project-scorecard.json", scorecard); err != nil {
		rs.log("warning: failed to persist preliminary scorecard: " + err.Error())
	}

	rs.transition(StatusFinalReview, "final review")

	if err := o.engine.RunFinalReview(ctx, scorecard, projectCtx); err != nil {
		rs.fail(err)
		return
	}

	ts := time.Now().Unix()
	scorecardPath := filepath.Join(runDir, "final-reviews2", fmt.Sprintf("calibrated-scorecard-%d.json", ts))
	if err := o.store.WriteCalibratedScorecard(runDir, ts, scorecard); err != nil {
		rs.log("warning: failed to persist calibrated scorecard: " + err.Error())
	}

	rs.setScorecard(scorecard, scorecardPath)
	rs.transition(StatusComplete, "complete")
}

// chunkFiles reads and chunks every selected file, leaving out files it
// cannot read or the chunker cannot parse rather than failing the whole
// run, per spec.md §7's ParseError policy; runPipeline writes one log
// entry for each file left out.
func (o *Orchestrator) chunkFiles(meta *repository.Metadata, selected []string) ([]*chunker.FileChunkGroup, error) {
	byRelative := make(map[string]string, len(meta.Files))
	for _, f := range meta.Files {
		byRelative[f.Relative] = f.Absolute
	}

	var fcgs []*chunker.FileChunkGroup
	for _, rel := range selected {
		abs, ok := byRelative[rel]
		if !ok {
			continue
		}
		content, err := os.ReadFile(abs)
		if err != nil {
			continue
		}
		fcg, err := o.chunker.ChunkFile(string(content), rel)
		if err != nil {
			continue
		}
		fcgs = append(fcgs, fcg)
	}
	return fcgs, nil
}

// Status returns a run's current projection, per GET /analysis/{runId}/status.
func (o *Orchestrator) Status(runID string) (View, error) {
	rs, err := o.get(runID)
	if err != nil {
		return View{}, err
	}
	return rs.View(), nil
}

// ScoreFile scores one additional file on demand, even after the run has
// completed. A file already present in the scorecard is returned as-is,
// without issuing new AI calls (invariant 11).
func (o *Orchestrator) ScoreFile(ctx context.Context, runID, path string) (*scoring.ScoredFile, error) {
	rs, err := o.get(runID)
	if err != nil {
		return nil, err
	}

	rs.mu.Lock()
	scorecard := rs.Scorecard
	localPath := rs.LocalPath
	repoName := rs.RepoName
	projectCtx := rs.ProjectContext
	rs.mu.Unlock()

	if scorecard == nil || projectCtx == nil {
		return nil, ErrFileNotFound
	}

	if !containsPath(rs.AllFiles, path) {
		return nil, ErrFileNotFound
	}

	for i := range scorecard.ScoredFiles {
		if scorecard.ScoredFiles[i].FilePath == path {
			return &scorecard.ScoredFiles[i], nil
		}
	}

	abs := filepath.Join(localPath, path)
	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, ErrFileNotFound
	}

	fcg, err := o.chunker.ChunkFile(string(content), path)
	if err != nil {
		return nil, fmt.Errorf("score_file: %w", err)
	}

	newCard, err := o.engine.ScoreProject(ctx, runID, repoName, []*chunker.FileChunkGroup{fcg}, *projectCtx)
	if err != nil || len(newCard.ScoredFiles) == 0 {
		return nil, fmt.Errorf("score_file: scoring failed for %s", path)
	}
	scored := newCard.ScoredFiles[0]

	rs.mu.Lock()
	rs.Scorecard.ScoredFiles = append(rs.Scorecard.ScoredFiles, scored)
	rs.Scorecard.Usage = rs.Scorecard.Usage.Add(scored.Usage)
	rs.Scorecard.SortByImpactDescending()
	runDir := o.store.RunDir(rs.RepoName, rs.RunID)
	updated := rs.Scorecard
	rs.mu.Unlock()

	if err := o.store.WriteJSON(runDir, "project-scorecard.json", updated); err != nil {
		rs.log("warning: failed to persist updated scorecard: " + err.Error())
	}

	return &scored, nil
}

// FileContent returns the raw bytes of path under the run's local
// repository copy, denying any path that escapes the repository root.
func (o *Orchestrator) FileContent(runID, path string) ([]byte, error) {
	rs, err := o.get(runID)
	if err != nil {
		return nil, err
	}

	rs.mu.Lock()
	localPath := rs.LocalPath
	rs.mu.Unlock()

	root, err := filepath.Abs(localPath)
	if err != nil {
		return nil, err
	}
	target, err := filepath.Abs(filepath.Join(root, path))
	if err != nil {
		return nil, err
	}
	if target != root && !strings.HasPrefix(target, root+string(filepath.Separator)) {
		return nil, ErrPathEscape
	}

	data, err := os.ReadFile(target)
	if err != nil {
		return nil, ErrFileNotFound
	}
	return data, nil
}

func (o *Orchestrator) get(runID string) (*RunState, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	rs, ok := o.runs[runID]
	if !ok {
		return nil, ErrRunNotFound
	}
	return rs, nil
}

func containsPath(haystack []string, needle string) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}

func loadReadmeExcerpt(meta *repository.Metadata) string {
	for _, candidate := range readmeCandidates {
		for _, f := range meta.Files {
			if f.Relative == candidate {
				data, err := os.ReadFile(f.Absolute)
				if err != nil {
					continue
				}
				if len(data) > readmeExcerptMaxBytes {
					data = data[:readmeExcerptMaxBytes]
				}
				return string(data)
			}
		}
	}
	return ""
}

package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reposcorer/reposcorer/internal/aiclient"
	"github.com/reposcorer/reposcorer/internal/chunker"
	"github.com/reposcorer/reposcorer/internal/repository"
	"github.com/reposcorer/reposcorer/internal/reportstore"
	"github.com/reposcorer/reposcorer/internal/scoring"
)

type fakeAcquirer struct {
	meta *repository.Metadata
	err  error
}

func (f *fakeAcquirer) Acquire(string) (*repository.Metadata, error) {
	return f.meta, f.err
}

type fakeChunker struct{}

func (fakeChunker) ChunkFile(code, path string) (*chunker.FileChunkGroup, error) {
	return &chunker.FileChunkGroup{
		FilePath:        path,
		SendStrategy:    chunker.SendFullFile,
		FinalTokenCount: 10,
		GroupedChunks: []chunker.ChunkGroup{
			{ID: 0, CombinedText: code},
		},
	}, nil
}

type fakeSelector struct {
	ctx       scoring.ProjectContext
	selection scoring.FileSelection
	ctxErr    error
	selErr    error
}

func (f *fakeSelector) InferProjectContext(context.Context, string, []string) (scoring.ProjectContext, aiclient.Usage, error) {
	return f.ctx, aiclient.Usage{}, f.ctxErr
}

func (f *fakeSelector) SelectFiles(context.Context, scoring.ProjectContext, []string) (scoring.FileSelection, error) {
	return f.selection, f.selErr
}

type fakeEngine struct {
	scoreErr  error
	reviewErr error
}

func (f *fakeEngine) ScoreProject(_ context.Context, runID, repoName string, fcgs []*chunker.FileChunkGroup, _ scoring.ProjectContext) (*scoring.ProjectScorecard, error) {
	if f.scoreErr != nil {
		return nil, f.scoreErr
	}
	sc := &scoring.ProjectScorecard{RunID: runID, RepoName: repoName}
	for _, fcg := range fcgs {
		sc.ScoredFiles = append(sc.ScoredFiles, scoring.ScoredFile{
			FilePath:    fcg.FilePath,
			ImpactScore: 1.0,
		})
	}
	return sc, nil
}

func (f *fakeEngine) RunFinalReview(_ context.Context, scorecard *scoring.ProjectScorecard, _ scoring.ProjectContext) error {
	if f.reviewErr != nil {
		return f.reviewErr
	}
	final := 1.0
	scorecard.FinalProjectScore = &final
	scorecard.FinalReview = &scoring.FinalReview{FinalScoreMultiplier: 1.0}
	return nil
}

func writeTempRepo(t *testing.T, files map[string]string) (*repository.Metadata, string) {
	t.Helper()
	dir := t.TempDir()
	var entries []repository.FileEntry
	for rel, content := range files {
		abs := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
		require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
		entries = append(entries, repository.FileEntry{Relative: rel, Absolute: abs})
	}
	return &repository.Metadata{URL: "https://example.com/repo.git", RepoName: "repo", LocalPath: dir, Files: entries}, dir
}

func newTestOrchestrator(t *testing.T, acq RepoAcquirer, sel FileSelector, eng ScoringEngine) (*Orchestrator, *reportstore.Store) {
	t.Helper()
	store, err := reportstore.New(t.TempDir())
	require.NoError(t, err)
	return New(acq, fakeChunker{}, sel, eng, store), store
}

func TestStart_EmptyFileListFailsWithNoFilesSelected(t *testing.T) {
	meta, _ := writeTempRepo(t, map[string]string{})
	o, _ := newTestOrchestrator(t, &fakeAcquirer{meta: meta}, &fakeSelector{}, &fakeEngine{})

	rs, err := o.Start(context.Background(), "", "https://example.com/repo.git", "")
	require.NoError(t, err)

	waitForTerminal(t, o, rs.RunID)

	view, err := o.Status(rs.RunID)
	require.NoError(t, err)
	assert.Equal(t, StatusError, view.Status)
	require.NotNil(t, view.Error)
	assert.Equal(t, "no files were selected", *view.Error)
	assert.Nil(t, view.Report)
}

func TestStart_EmptySelectionFailsWithNoFilesSelected(t *testing.T) {
	meta, _ := writeTempRepo(t, map[string]string{"main.go": "package main"})
	sel := &fakeSelector{selection: scoring.FileSelection{Files: nil}}
	o, _ := newTestOrchestrator(t, &fakeAcquirer{meta: meta}, sel, &fakeEngine{})

	rs, err := o.Start(context.Background(), "", "https://example.com/repo.git", "")
	require.NoError(t, err)
	waitForTerminal(t, o, rs.RunID)

	view, err := o.Status(rs.RunID)
	require.NoError(t, err)
	assert.Equal(t, StatusError, view.Status)
	require.NotNil(t, view.Error)
	assert.Equal(t, "no files were selected", *view.Error)
}

func TestStart_HappyPathReachesComplete(t *testing.T) {
	meta, _ := writeTempRepo(t, map[string]string{"main.go": "package main\n"})
	sel := &fakeSelector{selection: scoring.FileSelection{Files: []string{"main.go"}}}
	o, _ := newTestOrchestrator(t, &fakeAcquirer{meta: meta}, sel, &fakeEngine{})

	rs, err := o.Start(context.Background(), "", "https://example.com/repo.git", "")
	require.NoError(t, err)
	waitForTerminal(t, o, rs.RunID)

	view, err := o.Status(rs.RunID)
	require.NoError(t, err)
	require.Equal(t, StatusComplete, view.Status)
	require.NotNil(t, view.Report)
	assert.Nil(t, view.Error)
	require.NotNil(t, view.Report.FinalProjectScore)
	assert.Equal(t, 1.0, *view.Report.FinalProjectScore)

	// invariant 12: strictly increasing log IDs, non-decreasing timestamps
	var lastID int
	var lastTS time.Time
	for i, entry := range view.LogHistory {
		if i > 0 {
			assert.Greater(t, entry.ID, lastID)
			assert.False(t, entry.Timestamp.Before(lastTS))
		}
		lastID = entry.ID
		lastTS = entry.Timestamp
	}
}

func TestScoreFile_IdempotentOnAlreadyScoredFile(t *testing.T) {
	meta, _ := writeTempRepo(t, map[string]string{"main.go": "package main\n"})
	sel := &fakeSelector{selection: scoring.FileSelection{Files: []string{"main.go"}}}
	o, _ := newTestOrchestrator(t, &fakeAcquirer{meta: meta}, sel, &fakeEngine{})

	rs, err := o.Start(context.Background(), "", "https://example.com/repo.git", "")
	require.NoError(t, err)
	waitForTerminal(t, o, rs.RunID)

	scored, err := o.ScoreFile(context.Background(), rs.RunID, "main.go")
	require.NoError(t, err)
	assert.Equal(t, "main.go", scored.FilePath)
}

func TestFileContent_RejectsPathEscape(t *testing.T) {
	meta, _ := writeTempRepo(t, map[string]string{"main.go": "package main\n"})
	sel := &fakeSelector{selection: scoring.FileSelection{Files: []string{"main.go"}}}
	o, _ := newTestOrchestrator(t, &fakeAcquirer{meta: meta}, sel, &fakeEngine{})

	rs, err := o.Start(context.Background(), "", "https://example.com/repo.git", "")
	require.NoError(t, err)
	waitForTerminal(t, o, rs.RunID)

	_, err = o.FileContent(rs.RunID, "../../etc/passwd")
	assert.ErrorIs(t, err, ErrPathEscape)

	data, err := o.FileContent(rs.RunID, "main.go")
	require.NoError(t, err)
	assert.Equal(t, "package main\n", string(data))
}

func TestStatus_UnknownRunReturnsNotFound(t *testing.T) {
	o, _ := newTestOrchestrator(t, &fakeAcquirer{}, &fakeSelector{}, &fakeEngine{})
	_, err := o.Status("does-not-exist")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestStart_CacheHitShortCircuitsToComplete(t *testing.T) {
	meta, _ := writeTempRepo(t, map[string]string{"main.go": "package main\n"})
	sel := &fakeSelector{selection: scoring.FileSelection{Files: []string{"main.go"}}}
	o, store := newTestOrchestrator(t, &fakeAcquirer{meta: meta}, sel, &fakeEngine{})

	runID := "fixed-run-id"
	runDir := store.RunDir(meta.RepoName, runID)
	cached := scoring.ProjectScorecard{RunID: runID, RepoName: meta.RepoName}
	require.NoError(t, store.WriteCalibratedScorecard(runDir, 1234, cached))

	rs, err := o.Start(context.Background(), runID, "https://example.com/repo.git", "")
	require.NoError(t, err)

	view, err := o.Status(rs.RunID)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, view.Status)
	require.NotNil(t, view.Report)
	assert.Equal(t, runID, view.Report.RunID)
}

func waitForTerminal(t *testing.T, o *Orchestrator, runID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		view, err := o.Status(runID)
		require.NoError(t, err)
		if view.Status == StatusComplete || view.Status == StatusError {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("run did not reach a terminal state in time")
}

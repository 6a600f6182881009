package scoring

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reposcorer/reposcorer/internal/aiclient"
	"github.com/reposcorer/reposcorer/internal/chunker"
)

func batchableFile(path string, tokens int) BatchableFile {
	return BatchableFile{
		FilePath: path,
		FCG: &chunker.FileChunkGroup{
			FilePath:        path,
			TotalFileTokens: tokens,
			FinalTokenCount: tokens,
			SendStrategy:    chunker.SendFullFile,
			GroupedChunks: []chunker.ChunkGroup{
				{ID: 1, CombinedText: "package main", TotalTokens: tokens},
			},
		},
	}
}

func TestPackBatches_FirstFitDecreasing(t *testing.T) {
	files := []BatchableFile{
		batchableFile("a.go", 4000),
		batchableFile("b.go", 1500),
		batchableFile("c.go", 900),
	}

	batches := PackBatches(files, 5100)
	require.Len(t, batches, 2)

	require.Len(t, batches[0], 2)
	assert.Equal(t, "a.go", batches[0][0].FilePath)
	assert.Equal(t, "c.go", batches[0][1].FilePath)

	require.Len(t, batches[1], 1)
	assert.Equal(t, "b.go", batches[1][0].FilePath)
}

func TestPackBatches_OversizedFileGetsOwnBatch(t *testing.T) {
	files := []BatchableFile{batchableFile("huge.go", 9000)}
	batches := PackBatches(files, 5100)
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 1)
}

func TestIsBatchable(t *testing.T) {
	full := &chunker.FileChunkGroup{SendStrategy: chunker.SendFullFile, FinalTokenCount: 100}
	assert.True(t, IsBatchable(full, 200))
	assert.False(t, IsBatchable(full, 100))

	multi := &chunker.FileChunkGroup{SendStrategy: chunker.SendMultipleGroups, FinalTokenCount: 50}
	assert.False(t, IsBatchable(multi, 200))
}

type fixedBatchCompleter struct {
	content string
}

func (f *fixedBatchCompleter) Chat(_ context.Context, _ []aiclient.Message, _ aiclient.Params) (aiclient.Response, error) {
	return aiclient.Response{Content: f.content, Usage: aiclient.Usage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120}}, nil
}

func TestScoreBatches_ReconciliationBySuffixMatch(t *testing.T) {
	batch := []BatchableFile{
		batchableFile("internal/a.go", 100),
		batchableFile("internal/b.go", 100),
	}
	client := &fixedBatchCompleter{content: `{"reviews": [
		{"file_path": "a.go", "complexity": 5, "code_quality": 6, "maintainability": 7, "best_practices": 8, "group_summary": "ok"},
		{"file_path": "b.go", "complexity": 3, "code_quality": 4, "maintainability": 5, "best_practices": 6, "group_summary": "ok"}
	]}`}

	scored := ScoreBatches(context.Background(), client, [][]BatchableFile{batch}, ProjectContext{}, 1)
	require.Len(t, scored, 2)
	for _, sf := range scored {
		assert.False(t, sf.HadError)
		assert.Equal(t, 0, sf.Retries)
	}
}

type partialReviewCompleter struct{ calls int }

func (p *partialReviewCompleter) Chat(_ context.Context, _ []aiclient.Message, _ aiclient.Params) (aiclient.Response, error) {
	p.calls++
	if p.calls == 1 {
		return aiclient.Response{
			Content: `{"reviews": [
				{"file_path": "a.go", "complexity": 5, "code_quality": 6, "maintainability": 7, "best_practices": 8},
				{"file_path": "b.go", "complexity": 3, "code_quality": 4, "maintainability": 5, "best_practices": 6}
			]}`,
			Usage: aiclient.Usage{TotalTokens: 100},
		}, nil
	}
	return aiclient.Response{
		Content: `{"reviews": [{"file_path": "c.go", "complexity": 2, "code_quality": 2, "maintainability": 2, "best_practices": 2}]}`,
		Usage:   aiclient.Usage{TotalTokens: 30},
	}, nil
}

func TestScoreBatches_RetriesUnmatchedFile(t *testing.T) {
	batch := []BatchableFile{
		batchableFile("a.go", 100),
		batchableFile("b.go", 100),
		batchableFile("c.go", 100),
	}
	client := &partialReviewCompleter{}

	scored := ScoreBatches(context.Background(), client, [][]BatchableFile{batch}, ProjectContext{}, 1)
	require.Len(t, scored, 3)

	var c *ScoredFile
	for i := range scored {
		if scored[i].FilePath == "c.go" {
			c = &scored[i]
		}
	}
	require.NotNil(t, c)
	assert.False(t, c.HadError)
	assert.Equal(t, 1, c.Retries)
	assert.Equal(t, 2, client.calls)
}

type alwaysFailCompleter struct{}

func (alwaysFailCompleter) Chat(_ context.Context, _ []aiclient.Message, _ aiclient.Params) (aiclient.Response, error) {
	return aiclient.Response{}, assertError{}
}

type assertError struct{}

func (assertError) Error() string { return "boom" }

func TestScoreBatches_StillFailedAfterRetryIsZeroed(t *testing.T) {
	batch := []BatchableFile{batchableFile("a.go", 100)}
	scored := ScoreBatches(context.Background(), alwaysFailCompleter{}, [][]BatchableFile{batch}, ProjectContext{}, 0)
	require.Len(t, scored, 1)
	assert.True(t, scored[0].HadError)
	assert.Equal(t, 1, scored[0].Retries)
	assert.Equal(t, float64(0), scored[0].ImpactScore)
}

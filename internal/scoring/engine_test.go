package scoring

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reposcorer/reposcorer/internal/chunker"
)

func TestEngine_ScoreProject_RoutesBatchableAndIndividual(t *testing.T) {
	small := &chunker.FileChunkGroup{
		FilePath:        "small.go",
		TotalFileTokens: 50,
		FinalTokenCount: 50,
		SendStrategy:    chunker.SendFullFile,
		GroupedChunks:   []chunker.ChunkGroup{{ID: 1, CombinedText: "package main", TotalTokens: 50}},
	}
	large := &chunker.FileChunkGroup{
		FilePath:        "large.go",
		TotalFileTokens: 9000,
		FinalTokenCount: 9000,
		SendStrategy:    chunker.SendMultipleGroups,
		GroupedChunks: []chunker.ChunkGroup{
			{ID: 1, CombinedText: "group one", TotalTokens: 4500},
			{ID: 2, CombinedText: "group two", TotalTokens: 4500},
		},
	}

	engine := &Engine{
		ScoringClient: scriptedCompleter{content: scoreJSON()},
		ReviewClient:  scriptedCompleter{content: `{"final_score_multiplier": 1.1}`},
		Config: EngineConfig{
			BatchBudget:     5100,
			DossierBudget:   20000,
			DossierStrategy: StrategyGlobalTopImpact,
			MaxRetries:      1,
			ScoringModel:    "test-model",
		},
	}

	scorecard, err := engine.ScoreProject(context.Background(), "run-1", "myrepo", []*chunker.FileChunkGroup{small, large}, ProjectContext{PrimaryDomain: "web"})
	require.NoError(t, err)
	require.Len(t, scorecard.ScoredFiles, 2)
	assert.Equal(t, "run-1", scorecard.RunID)
	assert.Equal(t, "myrepo", scorecard.RepoName)

	err = engine.RunFinalReview(context.Background(), scorecard, ProjectContext{})
	require.NoError(t, err)
	require.NotNil(t, scorecard.FinalProjectScore)
	assert.InDelta(t, scorecard.PreliminaryProjectScore*1.1, *scorecard.FinalProjectScore, 1e-9)

	// invariant 10: sorted by impact descending
	for i := 1; i < len(scorecard.ScoredFiles); i++ {
		assert.GreaterOrEqual(t, scorecard.ScoredFiles[i-1].ImpactScore, scorecard.ScoredFiles[i].ImpactScore)
	}
}

func scoreJSON() string {
	return `{"reviews": [{"file_path": "small.go", "complexity": 5, "code_quality": 6, "maintainability": 7, "best_practices": 8, "group_summary": "ok"}], "complexity": 5, "code_quality": 6, "maintainability": 7, "best_practices": 8, "group_summary": "ok"}`
}

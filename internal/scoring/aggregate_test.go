package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregateProject_TokenWeightedMean(t *testing.T) {
	files := []ScoredFile{
		{TotalOriginalTokens: 100, AverageComplexity: 8, AverageCodeQuality: 6, AverageMaintainability: 7, AverageBestPractices: 5},
		{TotalOriginalTokens: 300, AverageComplexity: 4, AverageCodeQuality: 9, AverageMaintainability: 8, AverageBestPractices: 7},
	}

	profile, preliminary := AggregateProject(files)

	wantComplexity := (8*100 + 4*300) / 400.0
	wantQuality := (6*100 + 9*300) / 400.0
	wantMaintainability := (7*100 + 8*300) / 400.0
	wantBestPractices := (5*100 + 7*300) / 400.0

	assert.InDelta(t, wantComplexity, profile.Complexity, 1e-9)
	assert.InDelta(t, wantQuality, profile.Quality, 1e-9)
	assert.InDelta(t, wantMaintainability, profile.Maintainability, 1e-9)
	assert.InDelta(t, wantBestPractices, profile.BestPractices, 1e-9)

	wantPreliminary := 0.40*wantComplexity + 0.25*wantQuality + 0.15*wantMaintainability + 0.20*wantBestPractices
	assert.InDelta(t, wantPreliminary, preliminary, 1e-9)
}

func TestAggregateProject_EmptyYieldsZero(t *testing.T) {
	profile, preliminary := AggregateProject(nil)
	assert.Equal(t, Profile{}, profile)
	assert.Equal(t, float64(0), preliminary)
}

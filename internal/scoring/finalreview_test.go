package scoring

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reposcorer/reposcorer/internal/aiclient"
)

type scriptedCompleter struct {
	content string
	err     error
}

func (s scriptedCompleter) Chat(_ context.Context, _ []aiclient.Message, _ aiclient.Params) (aiclient.Response, error) {
	if s.err != nil {
		return aiclient.Response{}, s.err
	}
	return aiclient.Response{Content: s.content, Usage: aiclient.Usage{TotalTokens: 50}}, nil
}

func TestFinalReviewer_ClampsMultiplier(t *testing.T) {
	r := &FinalReviewer{Client: scriptedCompleter{content: `{"final_score_multiplier": 2.0, "refined_tech_stack": "Go"}`}, MaxRetries: 0}
	review, _ := r.Review(context.Background(), "dossier text", ProjectContext{}, 7.0)
	assert.Equal(t, maxMultiplier, review.FinalScoreMultiplier)
	assert.Equal(t, "Go", review.RefinedTechStack)
}

func TestFinalReviewer_DefaultsToOneOnFailure(t *testing.T) {
	r := &FinalReviewer{Client: scriptedCompleter{err: errors.New("down")}, MaxRetries: 0}
	review, _ := r.Review(context.Background(), "dossier text", ProjectContext{}, 7.0)
	assert.Equal(t, 1.0, review.FinalScoreMultiplier)
}

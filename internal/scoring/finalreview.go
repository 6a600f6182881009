package scoring

import (
	"context"
	"fmt"

	"github.com/reposcorer/reposcorer/internal/aiclient"
)

// minMultiplier and maxMultiplier bound the final-review calibration
// factor, per spec.md §4.6.5.
const (
	minMultiplier = 0.8
	maxMultiplier = 1.25
)

type finalReviewResponse struct {
	FinalScoreMultiplier float64 `json:"final_score_multiplier"`
	RefinedTechStack     string  `json:"refined_tech_stack"`
	Summary              string  `json:"summary"`
	Reasoning            string  `json:"reasoning"`
}

// FinalReviewer runs the holistic calibration call over a dossier.
type FinalReviewer struct {
	Client     aiclient.ChatCompleter
	MaxRetries int
}

// Review calls the final-review AI with the given dossier and project
// stats. A failed call (nil result) yields a multiplier of 1.0 rather
// than aborting the run, per spec.md §4.6.5 and §7.
func (r *FinalReviewer) Review(ctx context.Context, dossier string, projectCtx ProjectContext, preliminaryScore float64) (FinalReview, aiclient.Usage) {
	prompt := fmt.Sprintf(
		"Project essence: %s\nDomain: %s\nStack: %s\nPreliminary score: %.2f\n\nEvidence dossier:\n%s\n\nReturn JSON: {\"final_score_multiplier\" (0.8-1.25), \"refined_tech_stack\", \"summary\", \"reasoning\"}.",
		projectCtx.ProjectEssence, projectCtx.PrimaryDomain, projectCtx.PrimaryStack, preliminaryScore, dossier,
	)
	messages := []aiclient.Message{
		{Role: aiclient.RoleSystem, Content: "You perform a holistic final review calibrating a preliminary code-quality score. Respond with JSON only."},
		{Role: aiclient.RoleUser, Content: prompt},
	}

	result, usage := aiclient.SafeJSONChat[finalReviewResponse](ctx, r.Client, messages, aiclient.Params{Temperature: 0.3}, r.MaxRetries)
	if result == nil {
		return FinalReview{FinalScoreMultiplier: 1.0}, usage
	}

	multiplier := result.FinalScoreMultiplier
	if multiplier < minMultiplier {
		multiplier = minMultiplier
	}
	if multiplier > maxMultiplier {
		multiplier = maxMultiplier
	}

	return FinalReview{
		FinalScoreMultiplier: multiplier,
		RefinedTechStack:     result.RefinedTechStack,
		Summary:              result.Summary,
		Reasoning:            result.Reasoning,
	}, usage
}

package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/reposcorer/reposcorer/internal/aiclient"
	"github.com/reposcorer/reposcorer/internal/chunker"
	"github.com/reposcorer/reposcorer/internal/metrics"
)

// EngineConfig carries the budgets and model identifiers the scoring
// engine needs, independent of the chunker's own configuration.
type EngineConfig struct {
	BatchBudget     int
	DossierBudget   int
	DossierStrategy DossierStrategy
	MaxRetries      int
	ScoringModel    string
	ReviewModel     string
}

// Engine orchestrates per-file scoring, batching, aggregation, and final
// review into one ProjectScorecard, per spec.md §4.6.
type Engine struct {
	ScoringClient aiclient.ChatCompleter
	ReviewClient  aiclient.ChatCompleter
	Config        EngineConfig
}

// ScoreProject scores every FileChunkGroup in fcgs and returns the
// preliminary project scorecard, with FinalProjectScore unset. It is the
// entry point of the orchestrator's chunking_and_scoring state;
// RunFinalReview calibrates the result in the final_review state.
func (e *Engine) ScoreProject(ctx context.Context, runID, repoName string, fcgs []*chunker.FileChunkGroup, projectCtx ProjectContext) (*ProjectScorecard, error) {
	var batchable []BatchableFile
	var individual []*chunker.FileChunkGroup

	for _, fcg := range fcgs {
		if IsBatchable(fcg, e.Config.BatchBudget) {
			batchable = append(batchable, BatchableFile{FilePath: fcg.FilePath, FCG: fcg})
			continue
		}
		individual = append(individual, fcg)
	}

	interFileContext := fmt.Sprintf("Project domain: %s. Stack: %s.", projectCtx.PrimaryDomain, projectCtx.PrimaryStack)

	var scoredFiles []ScoredFile

	batches := PackBatches(batchable, e.Config.BatchBudget)
	for _, b := range batches {
		metrics.Default.BatchSize.Observe(float64(len(b)))
	}

	callStart := time.Now()
	scoredFiles = append(scoredFiles, ScoreBatches(ctx, e.ScoringClient, batches, projectCtx, e.Config.MaxRetries)...)

	scorer := &FileScorer{Client: e.ScoringClient, MaxRetries: e.Config.MaxRetries, InterFileContext: interFileContext}
	for _, fcg := range individual {
		scoredFiles = append(scoredFiles, scorer.ScoreFile(ctx, fcg, projectCtx))
	}
	metrics.Default.AICallLatency.WithLabelValues("scoring").Observe(time.Since(callStart).Seconds())
	metrics.Default.AICallTotal.WithLabelValues("scoring").Add(float64(len(batches) + len(individual)))

	profile, preliminary := AggregateProject(scoredFiles)

	var totalUsage aiclient.Usage
	totalRetries := 0
	totalFailed := 0
	for _, f := range scoredFiles {
		totalUsage = totalUsage.Add(f.Usage)
		totalRetries += f.Retries
		if f.HadError {
			totalFailed++
		}
		if f.Retries > 0 {
			metrics.Default.AIRetries.Add(float64(f.Retries))
		}
		if f.HadError {
			metrics.Default.AICallErrors.WithLabelValues("scoring").Inc()
		}
	}

	scorecard := &ProjectScorecard{
		RunID:                   runID,
		RepoName:                repoName,
		Model:                   e.Config.ScoringModel,
		PreliminaryProjectScore: preliminary,
		MainDomain:              projectCtx.PrimaryDomain,
		TechStack:               projectCtx.PrimaryStack,
		ProjectEssence:          projectCtx.ProjectEssence,
		Profile:                 profile,
		Usage:                   totalUsage,
		TotalRetries:            totalRetries,
		TotalFailedFiles:        totalFailed,
		ScoredFiles:             scoredFiles,
	}
	scorecard.SortByImpactDescending()

	return scorecard, nil
}

// RunFinalReview builds the dossier and calibrates the preliminary score.
// Returns ErrEmptyDossier (terminal for the run) if nothing fits the
// dossier budget; any other final-review failure defaults the multiplier
// to 1.0 rather than aborting.
func (e *Engine) RunFinalReview(ctx context.Context, scorecard *ProjectScorecard, projectCtx ProjectContext) error {
	dossier, admitted, err := BuildDossier(scorecard.ScoredFiles, e.Config.DossierStrategy, e.Config.DossierBudget)
	if err != nil {
		return err
	}
	_ = admitted

	reviewer := &FinalReviewer{Client: e.ReviewClient, MaxRetries: e.Config.MaxRetries}
	reviewStart := time.Now()
	review, usage := reviewer.Review(ctx, dossier, projectCtx, scorecard.PreliminaryProjectScore)
	metrics.Default.AICallLatency.WithLabelValues("review").Observe(time.Since(reviewStart).Seconds())
	metrics.Default.AICallTotal.WithLabelValues("review").Inc()

	scorecard.Usage = scorecard.Usage.Add(usage)
	scorecard.FinalReview = &review
	final := scorecard.PreliminaryProjectScore * review.FinalScoreMultiplier
	scorecard.FinalProjectScore = &final
	if review.RefinedTechStack != "" {
		scorecard.TechStack = review.RefinedTechStack
	}

	return nil
}

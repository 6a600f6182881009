// Package scoring implements the AI scoring pipeline: domain and file
// selection, per-file and batched chunk-group scoring with retry and
// reconciliation, project-level aggregation, and final-review calibration.
package scoring

import (
	"sort"

	"github.com/reposcorer/reposcorer/internal/aiclient"
	"github.com/reposcorer/reposcorer/internal/chunker"
)

// ProjectContext is Stage 1's inference over the repository's README
// excerpt and file tree.
type ProjectContext struct {
	ProjectEssence string   `json:"project_essence"`
	PrimaryDomain  string   `json:"primary_domain"`
	PrimaryStack   string   `json:"primary_stack"`
	CoreConcepts   []string `json:"core_concepts"`
}

// FlaggedPath is a selection-stage entry suspected of being vendored or
// otherwise excluded, carrying the AI's stated reason.
type FlaggedPath struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// FileSelection is the persisted result of the two-stage selection call.
type FileSelection struct {
	Context  ProjectContext  `json:"context"`
	Files    []string        `json:"files"`
	Flagged  []FlaggedPath   `json:"flagged"`
	Warnings []string        `json:"warnings"`
	Usage    aiclient.Usage  `json:"usage"`
}

// AIScore is one scoring call's verdict over a chunk group or a batched
// file review.
type AIScore struct {
	Complexity      float64 `json:"complexity"`
	CodeQuality     float64 `json:"code_quality"`
	Maintainability float64 `json:"maintainability"`
	BestPractices   float64 `json:"best_practices"`
	GroupSummary    string  `json:"group_summary,omitempty"`
}

// qualityMean is the arithmetic mean of one group's three quality-adjacent
// axes. The dossier uses it (times complexity) to rank groups and prints it
// in section headers; a file's average_quality and impact_score are computed
// from its token-weighted per-axis averages instead.
func (s AIScore) qualityMean() float64 {
	return (s.CodeQuality + s.Maintainability + s.BestPractices) / 3
}

// failureSentinel is the group_summary recorded for a zeroed, failed score.
const failureSentinel = "scoring failed for this group"

// ScoredChunkGroup is one group's scoring outcome.
type ScoredChunkGroup struct {
	GroupID     int            `json:"group_id"`
	Score       AIScore        `json:"score"`
	TotalTokens int            `json:"total_tokens"`
	Usage       aiclient.Usage `json:"usage"`
	Failed      bool           `json:"failed"`
}

// ScoredFile is a fully scored file: per-axis token-weighted averages,
// the derived impact score, and the groups that produced them.
type ScoredFile struct {
	FilePath            string             `json:"file_path"`
	TotalOriginalTokens int                `json:"total_original_tokens"`
	FinalTokenCount     int                `json:"final_token_count"`
	ImpactScore         float64            `json:"impact_score"`
	AverageComplexity   float64            `json:"average_complexity"`
	AverageCodeQuality  float64            `json:"average_code_quality"`
	AverageQuality      float64            `json:"average_quality"`
	AverageMaintainability float64         `json:"average_maintainability"`
	AverageBestPractices   float64         `json:"average_best_practices"`
	Usage               aiclient.Usage     `json:"usage"`
	Retries             int                `json:"retries"`
	HadError            bool               `json:"had_error"`
	FailureReason       string             `json:"failure_reason,omitempty"`
	ScoredChunkGroups   []ScoredChunkGroup `json:"scored_chunk_groups"`
	ChunkingDetails     *chunker.FileChunkGroup `json:"chunking_details,omitempty"`
}

// Profile is the project's token-weighted mean over the four score axes.
type Profile struct {
	Complexity      float64 `json:"complexity"`
	Quality         float64 `json:"quality"`
	Maintainability float64 `json:"maintainability"`
	BestPractices   float64 `json:"best_practices"`
}

// FinalReview is the calibration call's parsed verdict.
type FinalReview struct {
	FinalScoreMultiplier float64 `json:"final_score_multiplier"`
	RefinedTechStack     string  `json:"refined_tech_stack"`
	Summary              string  `json:"summary"`
	Reasoning            string  `json:"reasoning"`
}

// ProjectScorecard is the run's top-level scoring artifact.
type ProjectScorecard struct {
	RunID                  string         `json:"run_id"`
	RepoName               string         `json:"repo_name"`
	Model                  string         `json:"model"`
	PreliminaryProjectScore float64       `json:"preliminary_project_score"`
	FinalProjectScore      *float64       `json:"final_project_score,omitempty"`
	MainDomain             string         `json:"main_domain"`
	TechStack              string         `json:"tech_stack"`
	ProjectEssence         string         `json:"project_essence"`
	Profile                Profile        `json:"profile"`
	Usage                  aiclient.Usage `json:"usage"`
	TotalRetries           int            `json:"total_retries"`
	TotalFailedFiles       int            `json:"total_failed_files"`
	FinalReview            *FinalReview   `json:"final_review,omitempty"`
	ScoredFiles            []ScoredFile   `json:"scored_files"`
	Warnings               []string       `json:"warnings"`
}

// SortByImpactDescending restores invariant 10: scored_files sorted by
// impact_score descending. Called after every insertion.
func (p *ProjectScorecard) SortByImpactDescending() {
	sort.SliceStable(p.ScoredFiles, func(i, j int) bool {
		return p.ScoredFiles[i].ImpactScore > p.ScoredFiles[j].ImpactScore
	})
}

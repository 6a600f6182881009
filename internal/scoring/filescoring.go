package scoring

import (
	"context"
	"fmt"
	"strings"

	"github.com/reposcorer/reposcorer/internal/aiclient"
	"github.com/reposcorer/reposcorer/internal/chunker"
)

// initialIntraFileContext is the sentinel summary fed into the first
// group of a file, before any group has produced a real summary.
const initialIntraFileContext = "no prior context in this file"

// FileScorer scores a single FileChunkGroup's groups in order, threading
// a running intra-file context string between calls.
type FileScorer struct {
	Client          aiclient.ChatCompleter
	MaxRetries      int
	InterFileContext string
}

type groupScoreResponse struct {
	Complexity      float64 `json:"complexity"`
	CodeQuality     float64 `json:"code_quality"`
	Maintainability float64 `json:"maintainability"`
	BestPractices   float64 `json:"best_practices"`
	GroupSummary    string  `json:"group_summary"`
}

// ScoreFile scores every group of fcg in ascending order, then computes
// the file's token-weighted per-axis averages and impact score.
func (f *FileScorer) ScoreFile(ctx context.Context, fcg *chunker.FileChunkGroup, projectCtx ProjectContext) ScoredFile {
	intraContext := initialIntraFileContext
	groups := make([]ScoredChunkGroup, 0, len(fcg.GroupedChunks))
	var totalUsage aiclient.Usage

	for _, g := range fcg.GroupedChunks {
		messages := buildGroupScoreMessages(projectCtx, f.InterFileContext, intraContext, fcg.FilePath, g.CombinedText)
		result, usage := aiclient.SafeJSONChat[groupScoreResponse](ctx, f.Client, messages, aiclient.Params{Temperature: 0.2}, f.MaxRetries)
		totalUsage = totalUsage.Add(usage)

		if result == nil {
			groups = append(groups, ScoredChunkGroup{
				GroupID:     g.ID,
				Score:       AIScore{GroupSummary: failureSentinel},
				TotalTokens: g.TotalTokens,
				Usage:       usage,
				Failed:      true,
			})
			continue
		}

		score := AIScore{
			Complexity:      result.Complexity,
			CodeQuality:     result.CodeQuality,
			Maintainability: result.Maintainability,
			BestPractices:   result.BestPractices,
			GroupSummary:    result.GroupSummary,
		}
		groups = append(groups, ScoredChunkGroup{GroupID: g.ID, Score: score, TotalTokens: g.TotalTokens, Usage: usage})
		if result.GroupSummary != "" {
			intraContext = result.GroupSummary
		}
	}

	return aggregateFileScore(fcg, groups, totalUsage)
}

// aggregateFileScore computes a file's token-weighted per-axis averages
// over its successful (complexity > 0) groups, per spec.md §4.6.2.
func aggregateFileScore(fcg *chunker.FileChunkGroup, groups []ScoredChunkGroup, usage aiclient.Usage) ScoredFile {
	var weightSum float64
	var complexitySum, qualitySum, maintainabilitySum, bestPracticesSum float64

	for _, g := range groups {
		if g.Failed || g.Score.Complexity <= 0 {
			continue
		}
		w := float64(g.TotalTokens)
		weightSum += w
		complexitySum += g.Score.Complexity * w
		qualitySum += g.Score.CodeQuality * w
		maintainabilitySum += g.Score.Maintainability * w
		bestPracticesSum += g.Score.BestPractices * w
	}

	sf := ScoredFile{
		FilePath:            fcg.FilePath,
		TotalOriginalTokens: fcg.TotalFileTokens,
		FinalTokenCount:     fcg.FinalTokenCount,
		Usage:               usage,
		ScoredChunkGroups:   groups,
		ChunkingDetails:     fcg,
	}

	if weightSum > 0 {
		sf.AverageComplexity = complexitySum / weightSum
		sf.AverageCodeQuality = qualitySum / weightSum
		sf.AverageQuality = (sf.AverageCodeQuality + maintainabilitySum/weightSum + bestPracticesSum/weightSum) / 3
		sf.AverageMaintainability = maintainabilitySum / weightSum
		sf.AverageBestPractices = bestPracticesSum / weightSum
		sf.ImpactScore = sf.AverageQuality * sf.AverageComplexity
	} else {
		sf.HadError = true
		failure := &ScoringFailure{FilePath: fcg.FilePath, Reason: "every group failed or returned non-positive complexity"}
		sf.FailureReason = failure.Error()
	}

	return sf
}

func buildGroupScoreMessages(projectCtx ProjectContext, interFileContext, intraFileContext, filePath, combinedText string) []aiclient.Message {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Domain: %s\nStack: %s\n", projectCtx.PrimaryDomain, projectCtx.PrimaryStack))
	sb.WriteString("Cross-file context: ")
	sb.WriteString(interFileContext)
	sb.WriteString("\nContext so far in this file: ")
	sb.WriteString(intraFileContext)
	sb.WriteString("\n\nFile: ")
	sb.WriteString(filePath)
	sb.WriteString("\n\n")
	sb.WriteString(combinedText)
	sb.WriteString("\n\nScore this code on complexity, code_quality, maintainability, and best_practices, each 0-10. Return JSON: {\"complexity\",\"code_quality\",\"maintainability\",\"best_practices\",\"group_summary\"}.")

	return []aiclient.Message{
		{Role: aiclient.RoleSystem, Content: "You are a senior code reviewer scoring a chunk of a larger file. Respond with JSON only."},
		{Role: aiclient.RoleUser, Content: sb.String()},
	}
}

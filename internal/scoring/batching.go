package scoring

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/reposcorer/reposcorer/internal/aiclient"
	"github.com/reposcorer/reposcorer/internal/chunker"
)

const batchBoundary = "\n\n// --- next file ---\n\n"

// BatchableFile is the scoring-ready view of a file eligible for
// multi-file batching: single-group or full-file send strategy, under
// budget.
type BatchableFile struct {
	FilePath string
	FCG      *chunker.FileChunkGroup
}

// IsBatchable reports whether fcg's send strategy and size admit it to
// multi-file batching, per spec.md §4.6.3.
func IsBatchable(fcg *chunker.FileChunkGroup, batchBudget int) bool {
	if fcg.SendStrategy != chunker.SendFullFile && fcg.SendStrategy != chunker.SendSingleGroup {
		return false
	}
	return fcg.FinalTokenCount < batchBudget
}

// combinedText returns the file's sole group text (full_file and
// single_group both have exactly one group).
func (b BatchableFile) combinedText() string {
	if len(b.FCG.GroupedChunks) == 0 {
		return ""
	}
	return b.FCG.GroupedChunks[0].CombinedText
}

// PackBatches bins files into batches via first-fit-decreasing per batch,
// best-fit-over-remaining across batches: sort descending by token count,
// then repeatedly scan the remaining list admitting every file that still
// fits the running sum, emit the batch, and repeat until empty.
func PackBatches(files []BatchableFile, batchBudget int) [][]BatchableFile {
	remaining := make([]BatchableFile, len(files))
	copy(remaining, files)
	sort.SliceStable(remaining, func(i, j int) bool {
		return remaining[i].FCG.FinalTokenCount > remaining[j].FCG.FinalTokenCount
	})

	var batches [][]BatchableFile
	for len(remaining) > 0 {
		var batch []BatchableFile
		var next []BatchableFile
		sum := 0
		for _, f := range remaining {
			if sum+f.FCG.FinalTokenCount <= batchBudget {
				batch = append(batch, f)
				sum += f.FCG.FinalTokenCount
				continue
			}
			next = append(next, f)
		}
		if len(batch) == 0 {
			// A single file exceeds the budget on its own; isolate it so
			// the loop still terminates.
			batch = append(batch, remaining[0])
			next = remaining[1:]
		}
		batches = append(batches, batch)
		remaining = next
	}
	return batches
}

type batchReview struct {
	FilePath        string  `json:"file_path"`
	Complexity      float64 `json:"complexity"`
	CodeQuality     float64 `json:"code_quality"`
	Maintainability float64 `json:"maintainability"`
	BestPractices   float64 `json:"best_practices"`
	GroupSummary    string  `json:"group_summary"`
}

type batchResponse struct {
	Reviews []batchReview `json:"reviews"`
}

// defaultMaxConcurrentBatches bounds how many batches are scored at once
// when ScoreBatches is run concurrently.
const defaultMaxConcurrentBatches = 5

// ScoreBatches scores every batch, retrying each batch's unmatched files
// once as a fresh single batch, per the retry policy in spec.md §4.6.3.
// Batches are independent units of work, so they are fanned out across a
// semaphore-bounded pool of goroutines and aggregated over a channel —
// the per-run pipeline itself stays sequential (spec.md §5's default),
// but nothing stops a single scoring stage from running its own
// internally-parallel batch of AI calls.
func ScoreBatches(ctx context.Context, client aiclient.ChatCompleter, batches [][]BatchableFile, projectCtx ProjectContext, maxRetries int) []ScoredFile {
	return scoreBatchesConcurrently(ctx, client, batches, projectCtx, maxRetries, defaultMaxConcurrentBatches)
}

func scoreBatchesConcurrently(ctx context.Context, client aiclient.ChatCompleter, batches [][]BatchableFile, projectCtx ProjectContext, maxRetries, maxConcurrent int) []ScoredFile {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	type batchOutcome struct {
		index int
		files []ScoredFile
	}

	resultChan := make(chan batchOutcome, len(batches))
	semaphore := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup

	for i, batch := range batches {
		wg.Add(1)
		go func(idx int, b []BatchableFile) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			var outcome []ScoredFile
			scored, failed := scoreBatchOnce(ctx, client, b, projectCtx, maxRetries, 0)
			outcome = append(outcome, scored...)

			if len(failed) > 0 {
				retryScored, stillFailed := scoreBatchOnce(ctx, client, failed, projectCtx, maxRetries, 1)
				outcome = append(outcome, retryScored...)
				for _, f := range stillFailed {
					outcome = append(outcome, emptyScoredFile(f, 1))
				}
			}

			resultChan <- batchOutcome{index: idx, files: outcome}
		}(i, batch)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	ordered := make([][]ScoredFile, len(batches))
	for outcome := range resultChan {
		ordered[outcome.index] = outcome.files
	}

	var results []ScoredFile
	for _, files := range ordered {
		results = append(results, files...)
	}
	return results
}

// scoreBatchOnce issues one scoring call for batch and reconciles the
// response. retriesIfMatched is the retries value recorded for files
// matched in this attempt (0 for the first pass, 1 for the retry pass).
func scoreBatchOnce(ctx context.Context, client aiclient.ChatCompleter, batch []BatchableFile, projectCtx ProjectContext, maxRetries, retriesIfMatched int) (scored []ScoredFile, failed []BatchableFile) {
	if len(batch) == 0 {
		return nil, nil
	}

	messages := buildBatchMessages(projectCtx, batch)
	result, usage := aiclient.SafeJSONChat[batchResponse](ctx, client, messages, aiclient.Params{Temperature: 0.2}, maxRetries)
	if result == nil {
		return nil, batch
	}

	matchedIdx := make(map[int]batchReview)
	used := make(map[int]bool)
	for _, review := range result.Reviews {
		for i, f := range batch {
			if used[i] {
				continue
			}
			if strings.HasSuffix(f.FilePath, review.FilePath) {
				matchedIdx[i] = review
				used[i] = true
				break
			}
		}
	}

	batchTotalTokens := 0
	for _, f := range batch {
		batchTotalTokens += f.FCG.FinalTokenCount
	}
	numMatched := len(matchedIdx)

	for i, f := range batch {
		review, ok := matchedIdx[i]
		if !ok {
			failed = append(failed, f)
			continue
		}

		fileUsage := aiclient.Usage{}
		if batchTotalTokens > 0 {
			fileUsage.PromptTokens = usage.PromptTokens * f.FCG.FinalTokenCount / batchTotalTokens
		}
		if numMatched > 0 {
			fileUsage.CompletionTokens = usage.CompletionTokens / numMatched
		}
		fileUsage.TotalTokens = fileUsage.PromptTokens + fileUsage.CompletionTokens

		score := AIScore{
			Complexity:      review.Complexity,
			CodeQuality:     review.CodeQuality,
			Maintainability: review.Maintainability,
			BestPractices:   review.BestPractices,
			GroupSummary:    review.GroupSummary,
		}
		group := ScoredChunkGroup{GroupID: 1, Score: score, TotalTokens: f.FCG.FinalTokenCount, Usage: fileUsage}

		sf := aggregateFileScore(f.FCG, []ScoredChunkGroup{group}, fileUsage)
		sf.Retries = retriesIfMatched
		scored = append(scored, sf)
	}

	return scored, failed
}

func emptyScoredFile(f BatchableFile, retries int) ScoredFile {
	failure := &ScoringFailure{FilePath: f.FilePath, Reason: "no matching review returned by batch scoring"}
	return ScoredFile{
		FilePath:            f.FilePath,
		TotalOriginalTokens: f.FCG.TotalFileTokens,
		FinalTokenCount:     f.FCG.FinalTokenCount,
		Retries:             retries,
		HadError:            true,
		FailureReason:       failure.Error(),
		ChunkingDetails:      f.FCG,
	}
}

func buildBatchMessages(projectCtx ProjectContext, batch []BatchableFile) []aiclient.Message {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Domain: %s\nStack: %s\n\n", projectCtx.PrimaryDomain, projectCtx.PrimaryStack))
	sb.WriteString("Score each of the following files independently on complexity, code_quality, maintainability, and best_practices, each 0-10.\n")

	for i, f := range batch {
		if i > 0 {
			sb.WriteString(batchBoundary)
		}
		sb.WriteString("File: ")
		sb.WriteString(f.FilePath)
		sb.WriteString("\n\n")
		sb.WriteString(f.combinedText())
	}

	sb.WriteString("\n\nReturn JSON: {\"reviews\": [{\"file_path\", \"complexity\", \"code_quality\", \"maintainability\", \"best_practices\", \"group_summary\"}, ...]} with exactly one review per file.")

	return []aiclient.Message{
		{Role: aiclient.RoleSystem, Content: "You are a senior code reviewer scoring multiple files in one pass. Respond with JSON only."},
		{Role: aiclient.RoleUser, Content: sb.String()},
	}
}

package chunker

import (
	"fmt"
	"sort"
	"strings"

	"github.com/reposcorer/reposcorer/internal/langstrategy"
)

const endOfSubChunksMarker = "// --- end of sub-chunks ---\n"

// CountFunc counts the tokens in a string. The chunker takes it as a
// dependency rather than importing internal/tokenizer directly, so the
// algorithm is testable without the tokenizer singleton.
type CountFunc func(string) int

// Registry resolves a LanguageStrategy for a file path.
type Registry interface {
	For(filePath string) langstrategy.LanguageStrategy
}

// Chunker turns a file's source text into a FileChunkGroup per spec.md
// §4.4's algorithm.
type Chunker struct {
	strategies Registry
	cfg        Config
	count      CountFunc
}

// New creates a Chunker. count is typically tokenizer.Count.
func New(strategies Registry, cfg Config, count CountFunc) *Chunker {
	return &Chunker{strategies: strategies, cfg: cfg, count: count}
}

// ChunkFile runs the full chunking algorithm for one file's code.
func (c *Chunker) ChunkFile(code, path string) (*FileChunkGroup, error) {
	strat := c.strategies.For(path)

	// An empty or whitespace-only file has nothing to parse (go/parser would
	// reject it); it becomes a full_file group holding just the header.
	var tree langstrategy.Tree
	if strings.TrimSpace(code) != "" {
		var err error
		tree, err = strat.Parse(code)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	header := c.buildHeader(strat, tree, code, path)
	headerTokens := c.count(header)

	totalFileTokens := c.count(code)

	chunks := c.buildChunks(strat, tree, code)
	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].StartLine < chunks[j].StartLine })

	var oversized []Chunk
	var skippedContent []SkippedContent
	active := make([]Chunk, 0, len(chunks))

	for _, ch := range chunks {
		if ch.Oversized {
			oversized = append(oversized, ch)
			continue
		}
		if reason, skip := strat.ShouldSkip(langstrategy.SkipCandidate{Type: ch.Type, Text: ch.OriginalText}); skip {
			ch.SkipReason = reason
			skippedContent = append(skippedContent, SkippedContent{
				StartLine: ch.StartLine, EndLine: ch.EndLine, Type: ch.Type, Reason: reason,
			})
		}
		if ch.Skipped() {
			// Skipped chunks stay in the all-chunks list but are excluded
			// from the active set used for grouping.
			continue
		}
		active = append(active, ch)
	}

	fcg := &FileChunkGroup{
		FilePath:        path,
		TotalFileTokens: totalFileTokens,
		Chunks:          annotateAllChunks(chunks, skippedContent),
		OversizedChunks: oversized,
		SkippedContent:  skippedContent,
		ContextHeader:   header,
	}

	if totalFileTokens+headerTokens <= c.cfg.MaxTokensPerGroup && len(oversized) == 0 {
		fcg.SendStrategy = SendFullFile
		fcg.GroupedChunks = []ChunkGroup{c.buildFullFileGroup(code, header, path)}
	} else {
		groups := c.groupActiveChunks(active, headerTokens)
		switch {
		case len(groups) == 0 && len(oversized) > 0:
			fcg.SendStrategy = SendUnprocessed
		case len(groups) == 1:
			fcg.SendStrategy = SendSingleGroup
		default:
			fcg.SendStrategy = SendMultipleGroups
		}
		fcg.GroupedChunks = c.finalizeGroups(groups, header)
	}

	fcg.TokenBreakdown = c.buildBreakdown(fcg, headerTokens)
	fcg.FinalTokenCount = fcg.TokenBreakdown.FinalSent

	return fcg, nil
}

// buildHeader concatenates the file marker, a marker line, and the
// strategy's header lines (capped by ContextItemLimit), then truncates
// lines from the tail until it fits MaxContextTokens.
func (c *Chunker) buildHeader(strat langstrategy.LanguageStrategy, tree langstrategy.Tree, code, path string) string {
	var sb strings.Builder
	sb.WriteString("// File: " + path + "\n")
	sb.WriteString("// --- file context ---\n")

	strategyHeader := strat.HeaderText(tree, code)
	lines := splitNonEmptyLines(strategyHeader)
	if len(lines) > c.cfg.ContextItemLimit {
		lines = lines[:c.cfg.ContextItemLimit]
	}
	for _, l := range lines {
		sb.WriteString(l)
		sb.WriteString("\n")
	}

	header := sb.String()
	for c.count(header) > c.cfg.MaxContextTokens {
		idx := strings.LastIndexByte(strings.TrimRight(header, "\n"), '\n')
		if idx < 0 {
			break
		}
		header = header[:idx+1]
	}
	return header
}

// buildChunks enumerates top-level nodes and, for oversized ones, either
// sub-chunks with a shell context or falls back to line accumulation.
func (c *Chunker) buildChunks(strat langstrategy.LanguageStrategy, tree langstrategy.Tree, code string) []Chunk {
	var chunks []Chunk

	for _, node := range strat.TopLevelNodes(tree, code) {
		nodeTokens := c.count(node.Text)
		if nodeTokens <= c.cfg.MaxTokensPerChunk {
			chunks = append(chunks, Chunk{
				OriginalText: node.Text,
				CodeTokens:   nodeTokens,
				StartLine:    node.StartLine,
				EndLine:      node.EndLine,
				Type:         node.Type,
			})
			continue
		}

		subs := strat.SubNodes(node)
		if len(subs) > 0 {
			shell := c.buildShellContext(node, subs)
			for _, sub := range subs {
				subTokens := c.count(sub.Text)
				chunks = append(chunks, Chunk{
					OriginalText: sub.Text,
					CodeTokens:   subTokens,
					StartLine:    sub.StartLine,
					EndLine:      sub.EndLine,
					Type:         sub.Type,
					ShellContext: shell,
					Oversized:    subTokens > c.cfg.MaxTokensPerChunk,
				})
			}
			continue
		}

		parts := strat.FallbackSplit(node, c.cfg.MaxTokensPerChunk, langstrategy.CountFunc(c.count))
		for _, p := range parts {
			chunks = append(chunks, Chunk{
				OriginalText: p.Text,
				CodeTokens:   c.count(p.Text),
				StartLine:    p.StartLine,
				EndLine:      p.EndLine,
				Type:         p.Type,
				Oversized:    false,
			})
		}
	}

	return chunks
}

// buildShellContext extracts the parent node's opening text (up to the
// first sub-node) and closing text (from the last sub-node to the parent's
// end), joined by a placeholder marker.
func (c *Chunker) buildShellContext(node langstrategy.Node, subs []langstrategy.Node) *ShellContext {
	lines := splitLinesKeepEnds(node.Text)

	firstRel := subs[0].StartLine - node.StartLine
	lastRel := subs[len(subs)-1].EndLine - node.StartLine

	opening := joinLineRange(lines, 0, firstRel-1)
	closing := joinLineRange(lines, lastRel+1, len(lines)-1)

	text := opening + "// ... sub-chunks omitted ...\n" + closing
	return &ShellContext{Text: text, Tokens: c.count(text)}
}

// groupActiveChunks packs active chunks, in order, into groups bounded by
// MaxTokensPerGroup minus the header cost. Each chunk's cost includes the
// separator preamble finalizeGroups writes before it and, on entering a new
// shell context, the shell text plus its end-of-sub-chunks marker. Grouping is a simple sequential
// greedy accumulation (not a bin-pack): invariant #3 requires ascending
// start_line within a file, so chunks are never reordered to improve
// packing density the way the scoring engine's cross-file batching does.
func (c *Chunker) groupActiveChunks(active []Chunk, headerTokens int) [][]Chunk {
	if len(active) == 0 {
		return nil
	}

	budget := c.cfg.MaxTokensPerGroup - headerTokens
	if budget < 1 {
		budget = 1
	}

	var groups [][]Chunk
	var current []Chunk
	currentTokens := 0
	var currentShell *ShellContext

	flush := func() {
		if len(current) > 0 {
			groups = append(groups, current)
			current = nil
			currentTokens = 0
			currentShell = nil
		}
	}

	markerTokens := c.count(endOfSubChunksMarker)
	entryCost := func(ch Chunk, shell *ShellContext) int {
		cost := ch.CodeTokens
		if ch.ShellContext != nil && ch.ShellContext != shell {
			cost += ch.ShellContext.Tokens + markerTokens
		}
		return cost
	}

	for _, ch := range active {
		cost := entryCost(ch, currentShell)
		if len(current) > 0 {
			cost += c.count(fmt.Sprintf("\n// --- lines %d-%d (%s) ---\n", ch.StartLine, ch.EndLine, ch.Type))
		}
		if currentTokens > 0 && currentTokens+cost > budget {
			flush()
			cost = entryCost(ch, nil)
		}
		current = append(current, ch)
		currentTokens += cost
		if ch.ShellContext != nil {
			currentShell = ch.ShellContext
		}
	}
	flush()

	return groups
}

// finalizeGroups builds each ChunkGroup's combined text (header, shell
// entry/exit markers, inter-chunk separators) and recomputes TotalTokens by
// a single tokenization of that text.
func (c *Chunker) finalizeGroups(groups [][]Chunk, header string) []ChunkGroup {
	result := make([]ChunkGroup, 0, len(groups))

	for i, chunks := range groups {
		var sb strings.Builder
		sb.WriteString(header)

		var lastShell *ShellContext
		for j, ch := range chunks {
			if j > 0 {
				sb.WriteString(fmt.Sprintf("\n// --- lines %d-%d (%s) ---\n", ch.StartLine, ch.EndLine, ch.Type))
			}
			if ch.ShellContext != lastShell {
				if lastShell != nil && ch.ShellContext == nil {
					sb.WriteString(endOfSubChunksMarker)
				}
				if ch.ShellContext != nil {
					sb.WriteString(ch.ShellContext.Text)
				}
				lastShell = ch.ShellContext
			}
			sb.WriteString(ch.OriginalText)
		}
		if lastShell != nil {
			sb.WriteString(endOfSubChunksMarker)
		}

		combined := sb.String()
		result = append(result, ChunkGroup{
			ID:           i + 1,
			Chunks:       chunks,
			CombinedText: combined,
			TotalTokens:  c.count(combined),
			StartLine:    minStartLine(chunks),
			EndLine:      maxEndLine(chunks),
		})
	}

	return result
}

// buildFullFileGroup emits the single group used for the full_file send
// strategy: a synthetic chunk holding the entire original code, with
// combined text equal to header + code verbatim (chunker invariant #4).
func (c *Chunker) buildFullFileGroup(code, header, path string) ChunkGroup {
	lines := splitLinesKeepEnds(code)
	endLine := len(lines)
	if endLine == 0 {
		endLine = 1
	}
	chunk := Chunk{
		OriginalText: code,
		CodeTokens:   c.count(code),
		StartLine:    1,
		EndLine:      endLine,
		Type:         "full_file",
	}
	combined := header + code
	return ChunkGroup{
		ID:           1,
		Chunks:       []Chunk{chunk},
		CombinedText: combined,
		TotalTokens:  c.count(combined),
		StartLine:    1,
		EndLine:      endLine,
	}
}

// buildBreakdown computes the TokenBreakdown, deriving SeparatorInGroups by
// subtraction so the reconciliation invariant holds exactly even though BPE
// token counts are not strictly additive across concatenation boundaries.
func (c *Chunker) buildBreakdown(fcg *FileChunkGroup, headerTokens int) TokenBreakdown {
	finalSent := 0
	codeInGroups := 0
	seenShells := make(map[*ShellContext]bool)
	shellTokens := 0

	for _, g := range fcg.GroupedChunks {
		finalSent += g.TotalTokens
		for _, ch := range g.Chunks {
			codeInGroups += ch.CodeTokens
			if ch.ShellContext != nil && !seenShells[ch.ShellContext] {
				seenShells[ch.ShellContext] = true
				shellTokens += ch.ShellContext.Tokens
			}
		}
	}

	fileHeaderInGroups := headerTokens * len(fcg.GroupedChunks)
	separator := finalSent - codeInGroups - fileHeaderInGroups - shellTokens

	savings := fcg.TotalFileTokens - finalSent
	var pct float64
	if fcg.TotalFileTokens > 0 {
		pct = float64(savings) / float64(fcg.TotalFileTokens)
	}

	return TokenBreakdown{
		OriginalFileTokens:   fcg.TotalFileTokens,
		CodeInGroups:         codeInGroups,
		FileHeaderInGroups:   fileHeaderInGroups,
		ShellContextInGroups: shellTokens,
		SeparatorInGroups:    separator,
		FinalSent:            finalSent,
		TotalSavings:         savings,
		SavingsPercentage:    pct,
	}
}

func annotateAllChunks(chunks []Chunk, _ []SkippedContent) []Chunk {
	// chunks already carry their SkipReason set in place during the main
	// loop; this helper exists so the "all chunks including skipped" list
	// returned to callers is an explicit, named step of the algorithm.
	return chunks
}

func minStartLine(chunks []Chunk) int {
	min := chunks[0].StartLine
	for _, c := range chunks[1:] {
		if c.StartLine < min {
			min = c.StartLine
		}
	}
	return min
}

func maxEndLine(chunks []Chunk) int {
	max := chunks[0].EndLine
	for _, c := range chunks[1:] {
		if c.EndLine > max {
			max = c.EndLine
		}
	}
	return max
}

func splitNonEmptyLines(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}

func splitLinesKeepEnds(text string) []string {
	if text == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, text[start:i+1])
			start = i + 1
		}
	}
	if start < len(text) {
		lines = append(lines, text[start:])
	}
	return lines
}

func joinLineRange(lines []string, start, end int) string {
	if start < 0 {
		start = 0
	}
	if end >= len(lines) {
		end = len(lines) - 1
	}
	if start > end {
		return ""
	}
	var sb strings.Builder
	for _, l := range lines[start : end+1] {
		sb.WriteString(l)
	}
	return sb.String()
}

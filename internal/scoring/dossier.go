package scoring

import (
	"fmt"
	"sort"
	"strings"

	"github.com/reposcorer/reposcorer/internal/chunker"
	"github.com/reposcorer/reposcorer/internal/utils"
)

// maxSummaryChars bounds how much of a group's AI-written summary gets
// embedded in the dossier, so one verbose group can't crowd out the
// budget other files' code needs.
const maxSummaryChars = 200

// DossierStrategy selects how the final-review evidence bundle is built.
type DossierStrategy string

const (
	// StrategyGlobalTopImpact admits whole files by descending impact
	// until the budget is exhausted. Default.
	StrategyGlobalTopImpact DossierStrategy = "global_top_impact"
	// StrategyTopImpactPerFile admits one highest-impact group per file,
	// ranked by that group's own impact.
	StrategyTopImpactPerFile DossierStrategy = "top_impact_per_file"
)

// dossierTokens returns a ScoredFile's total group-token footprint (the
// sum of its scored groups, i.e. what a whole-file admission costs).
func dossierTokens(f ScoredFile) int {
	sum := 0
	for _, g := range f.ScoredChunkGroups {
		sum += g.TotalTokens
	}
	return sum
}

// BuildDossier assembles the bounded evidence bundle fed to the
// final-review call, per spec.md §4.6.5. Returns ErrEmptyDossier if
// nothing fits within budget.
func BuildDossier(files []ScoredFile, strategy DossierStrategy, budget int) (string, int, error) {
	if strategy == StrategyTopImpactPerFile {
		return buildTopImpactPerFileDossier(files, budget)
	}
	return buildGlobalTopImpactDossier(files, budget)
}

func buildGlobalTopImpactDossier(files []ScoredFile, budget int) (string, int, error) {
	ranked := make([]ScoredFile, len(files))
	copy(ranked, files)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].ImpactScore > ranked[j].ImpactScore })

	var sb strings.Builder
	used := 0
	admitted := 0

	for _, f := range ranked {
		cost := dossierTokens(f)
		if cost == 0 || used+cost > budget {
			continue
		}
		writeFileSection(&sb, f)
		used += cost
		admitted++
	}

	if admitted == 0 {
		return "", 0, ErrEmptyDossier
	}
	return sb.String(), admitted, nil
}

type groupPick struct {
	file  ScoredFile
	group ScoredChunkGroup
	impact float64
}

func buildTopImpactPerFileDossier(files []ScoredFile, budget int) (string, int, error) {
	var picks []groupPick
	for _, f := range files {
		var best *ScoredChunkGroup
		var bestImpact float64
		for i, g := range f.ScoredChunkGroups {
			if g.Failed {
				continue
			}
			impact := g.Score.qualityMean() * g.Score.Complexity
			if best == nil || impact > bestImpact {
				best = &f.ScoredChunkGroups[i]
				bestImpact = impact
			}
		}
		if best != nil {
			picks = append(picks, groupPick{file: f, group: *best, impact: bestImpact})
		}
	}

	sort.SliceStable(picks, func(i, j int) bool { return picks[i].impact > picks[j].impact })

	var sb strings.Builder
	used := 0
	admitted := 0

	for _, p := range picks {
		cost := p.group.TotalTokens
		if cost == 0 || used+cost > budget {
			continue
		}
		writeGroupSection(&sb, p.file.FilePath, p.file.ChunkingDetails, p.group)
		used += cost
		admitted++
	}

	if admitted == 0 {
		return "", 0, ErrEmptyDossier
	}
	return sb.String(), admitted, nil
}

func writeFileSection(sb *strings.Builder, f ScoredFile) {
	sb.WriteString(fmt.Sprintf("\n// === %s (impact=%.2f) ===\n", f.FilePath, f.ImpactScore))
	for _, g := range f.ScoredChunkGroups {
		if g.Failed {
			continue
		}
		sb.WriteString(fmt.Sprintf("// group %d (complexity=%.1f quality=%.1f)\n", g.GroupID, g.Score.Complexity, g.Score.qualityMean()))
		if g.Score.GroupSummary != "" {
			sb.WriteString(fmt.Sprintf("// %s\n", utils.Truncate(g.Score.GroupSummary, maxSummaryChars)))
		}
		sb.WriteString(groupText(f.ChunkingDetails, g.GroupID))
		sb.WriteString("\n")
	}
}

func writeGroupSection(sb *strings.Builder, filePath string, fcg *chunker.FileChunkGroup, g ScoredChunkGroup) {
	sb.WriteString(fmt.Sprintf("\n// === %s group %d (complexity=%.1f quality=%.1f) ===\n", filePath, g.GroupID, g.Score.Complexity, g.Score.qualityMean()))
	if g.Score.GroupSummary != "" {
		sb.WriteString(fmt.Sprintf("// %s\n", utils.Truncate(g.Score.GroupSummary, maxSummaryChars)))
	}
	sb.WriteString(groupText(fcg, g.GroupID))
	sb.WriteString("\n")
}

// groupText finds a group's combined text by ID within the file's
// chunking details, falling back to an empty string if unavailable.
func groupText(fcg *chunker.FileChunkGroup, groupID int) string {
	if fcg == nil {
		return ""
	}
	for _, gc := range fcg.GroupedChunks {
		if gc.ID == groupID {
			return gc.CombinedText
		}
	}
	return ""
}

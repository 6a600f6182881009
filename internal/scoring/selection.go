package scoring

import (
	"context"
	"fmt"
	"strings"

	"github.com/reposcorer/reposcorer/internal/aiclient"
)

// projectContextResponse is Stage 1's raw AI payload.
type projectContextResponse struct {
	ProjectEssence string   `json:"project_essence"`
	PrimaryDomain  string   `json:"primary_domain"`
	PrimaryStack   string   `json:"primary_stack"`
	CoreConcepts   []string `json:"core_concepts"`
}

// fileSelectionResponse is Stage 2's raw AI payload. Each entry may carry
// an inline "<path> # <reason>" flag instead of a plain selection.
type fileSelectionResponse struct {
	Paths []string `json:"paths"`
}

// Selector runs the two-stage domain/file-selection AI calls.
type Selector struct {
	Client     aiclient.ChatCompleter
	Model      string
	MaxRetries int
}

// InferProjectContext is Stage 1: infer essence/domain/stack/concepts from
// a README excerpt and the repository's file tree.
func (s *Selector) InferProjectContext(ctx context.Context, readmeExcerpt string, fileTree []string) (ProjectContext, aiclient.Usage, error) {
	prompt := buildContextPrompt(readmeExcerpt, fileTree)
	messages := []aiclient.Message{
		{Role: aiclient.RoleSystem, Content: "You analyze a source repository and infer its domain and purpose. Respond with JSON only."},
		{Role: aiclient.RoleUser, Content: prompt},
	}

	result, usage := aiclient.SafeJSONChat[projectContextResponse](ctx, s.Client, messages, aiclient.Params{Temperature: 0.2}, s.MaxRetries)
	if result == nil {
		return ProjectContext{}, usage, fmt.Errorf("selection: project context inference failed after retries")
	}

	return ProjectContext{
		ProjectEssence: result.ProjectEssence,
		PrimaryDomain:  result.PrimaryDomain,
		PrimaryStack:   result.PrimaryStack,
		CoreConcepts:   result.CoreConcepts,
	}, usage, nil
}

// SelectFiles is Stage 2: choose the file set most relevant to scoring,
// given the project context from Stage 1. allFiles is the repository's
// complete walked file list (relative paths).
func (s *Selector) SelectFiles(ctx context.Context, projectCtx ProjectContext, allFiles []string) (FileSelection, error) {
	prompt := buildSelectionPrompt(projectCtx, allFiles)
	messages := []aiclient.Message{
		{Role: aiclient.RoleSystem, Content: "You select the files worth analyzing for code quality. Respond with JSON only."},
		{Role: aiclient.RoleUser, Content: prompt},
	}

	result, usage := aiclient.SafeJSONChat[fileSelectionResponse](ctx, s.Client, messages, aiclient.Params{Temperature: 0.1}, s.MaxRetries)
	if result == nil {
		return FileSelection{Context: projectCtx, Usage: usage}, fmt.Errorf("selection: file selection failed after retries")
	}

	selected, flagged := splitFlagged(result.Paths)
	resolved, warnings := resolveSelection(selected, allFiles)

	return FileSelection{
		Context:  projectCtx,
		Files:    resolved,
		Flagged:  flagged,
		Warnings: warnings,
		Usage:    usage,
	}, nil
}

// splitFlagged separates "<path> # <reason>" entries into flagged paths,
// leaving plain selections untouched.
func splitFlagged(paths []string) (selected []string, flagged []FlaggedPath) {
	for _, p := range paths {
		if idx := strings.Index(p, "#"); idx >= 0 {
			path := strings.TrimSpace(p[:idx])
			reason := strings.TrimSpace(p[idx+1:])
			if path != "" {
				flagged = append(flagged, FlaggedPath{Path: path, Reason: reason})
			}
			continue
		}
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			selected = append(selected, trimmed)
		}
	}
	return selected, flagged
}

// resolveSelection resolves each selected entry against the repository's
// full file list by exact match or prefix-with-separator (directory
// expansion). Unresolvable entries are warned, not fatal.
func resolveSelection(selected []string, allFiles []string) ([]string, []string) {
	seen := make(map[string]bool)
	var resolved []string
	var warnings []string

	for _, sel := range selected {
		sel = strings.TrimPrefix(sel, "./")
		matched := false

		for _, f := range allFiles {
			if f == sel {
				if !seen[f] {
					resolved = append(resolved, f)
					seen[f] = true
				}
				matched = true
				continue
			}
			prefix := strings.TrimSuffix(sel, "/") + "/"
			if strings.HasPrefix(f, prefix) {
				if !seen[f] {
					resolved = append(resolved, f)
					seen[f] = true
				}
				matched = true
			}
		}

		if !matched {
			warnings = append(warnings, fmt.Sprintf("selected path %q matched no file", sel))
		}
	}

	return resolved, warnings
}

func buildContextPrompt(readmeExcerpt string, fileTree []string) string {
	var sb strings.Builder
	sb.WriteString("README excerpt:\n")
	sb.WriteString(readmeExcerpt)
	sb.WriteString("\n\nFile tree:\n")
	sb.WriteString(strings.Join(fileTree, "\n"))
	sb.WriteString("\n\nReturn JSON: {\"project_essence\", \"primary_domain\", \"primary_stack\", \"core_concepts\": [...]}.")
	return sb.String()
}

func buildSelectionPrompt(projectCtx ProjectContext, allFiles []string) string {
	var sb strings.Builder
	sb.WriteString("Project essence: ")
	sb.WriteString(projectCtx.ProjectEssence)
	sb.WriteString("\nDomain: ")
	sb.WriteString(projectCtx.PrimaryDomain)
	sb.WriteString("\nStack: ")
	sb.WriteString(projectCtx.PrimaryStack)
	sb.WriteString("\n\nFiles:\n")
	sb.WriteString(strings.Join(allFiles, "\n"))
	sb.WriteString("\n\nSelect the files worth scoring for code quality. Flag suspected vendored or generated paths as \"<path> # <reason>\". Return JSON: {\"paths\": [...]}.")
	return sb.String()
}

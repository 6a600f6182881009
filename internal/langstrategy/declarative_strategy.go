package langstrategy

import "strings"

// DeclarativeStrategy treats manifest/config-like files (JSON, YAML, TOML,
// Markdown) as a single pseudo-node — there is no sub-structure worth
// chunking independently.
type DeclarativeStrategy struct{}

func NewDeclarativeStrategy() *DeclarativeStrategy { return &DeclarativeStrategy{} }

func (d *DeclarativeStrategy) Parse(code string) (Tree, error) { return nil, nil }

func (d *DeclarativeStrategy) TopLevelNodes(_ Tree, code string) []Node {
	if strings.TrimSpace(code) == "" {
		return nil
	}
	lines := splitLinesKeepEnds(code)
	return []Node{{
		Type:      "document",
		Text:      code,
		StartLine: 1,
		EndLine:   len(lines),
	}}
}

func (d *DeclarativeStrategy) SubNodes(Node) []Node { return nil }

func (d *DeclarativeStrategy) HeaderText(_ Tree, _ string) string { return "" }

func (d *DeclarativeStrategy) ShouldSkip(chunk SkipCandidate) (string, bool) {
	if strings.TrimSpace(chunk.Text) == "" {
		return "empty document", true
	}
	return "", false
}

func (d *DeclarativeStrategy) FallbackSplit(node Node, maxTokens int, count CountFunc) []Node {
	return fallbackSplitLines(node, maxTokens, count)
}

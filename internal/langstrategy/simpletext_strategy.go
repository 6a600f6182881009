package langstrategy

import "strings"

// SimpleTextStrategy is the fallback for any file extension not registered
// with a more specific strategy, and the forced strategy when
// force_simple_strategy is set. The whole file is a single top-level node,
// with no header; the only skip rule is for whitespace-only chunks.
type SimpleTextStrategy struct{}

func NewSimpleTextStrategy() *SimpleTextStrategy { return &SimpleTextStrategy{} }

func (s *SimpleTextStrategy) Parse(code string) (Tree, error) { return nil, nil }

func (s *SimpleTextStrategy) TopLevelNodes(_ Tree, code string) []Node {
	if code == "" {
		return nil
	}
	lines := splitLinesKeepEnds(code)
	return []Node{{
		Type:      "text",
		Text:      code,
		StartLine: 1,
		EndLine:   len(lines),
	}}
}

func (s *SimpleTextStrategy) SubNodes(Node) []Node { return nil }

func (s *SimpleTextStrategy) HeaderText(_ Tree, _ string) string { return "" }

func (s *SimpleTextStrategy) ShouldSkip(chunk SkipCandidate) (string, bool) {
	if strings.TrimSpace(chunk.Text) == "" {
		return "empty chunk", true
	}
	return "", false
}

func (s *SimpleTextStrategy) FallbackSplit(node Node, maxTokens int, count CountFunc) []Node {
	return fallbackSplitLines(node, maxTokens, count)
}

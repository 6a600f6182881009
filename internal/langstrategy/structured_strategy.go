package langstrategy

import (
	"regexp"
	"strings"
)

// topLevelPattern matches the start of a class/interface/function/contract
// declaration for the TypeScript/JavaScript family and Solidity — CGO-free
// and regex-driven like the corpus's non-Go language parsers, deliberately
// not full AST for these languages (see DESIGN.md).
var topLevelPattern = regexp.MustCompile(
	`(?m)^[ \t]*(?:export[ \t]+)?(?:default[ \t]+)?(?:abstract[ \t]+)?(class|interface|function|contract|enum)[ \t]+([A-Za-z_$][A-Za-z0-9_$]*)`,
)

// exportedArrowConstPattern matches `export const Foo = (...) => {` /
// `export const Foo = async (...) => {`, the common functional-component /
// handler shape that should count as a top-level function node.
var exportedArrowConstPattern = regexp.MustCompile(
	`(?m)^[ \t]*export[ \t]+const[ \t]+([A-Za-z_$][A-Za-z0-9_$]*)[ \t]*(?::[^=]+)?=[ \t]*(?:async[ \t]+)?(?:\([^)]*\)|[A-Za-z_$][A-Za-z0-9_$]*)[ \t]*(?::[^=]+)?=>`,
)

// methodPattern matches a method signature inside a class/interface/contract
// body: `name(args) {`, `async name(args) {`, `public name(args): Type {`.
var methodPattern = regexp.MustCompile(
	`(?m)^[ \t]+(?:public[ \t]+|private[ \t]+|protected[ \t]+|static[ \t]+|async[ \t]+)*([A-Za-z_$][A-Za-z0-9_$]*)[ \t]*\([^)]*\)[ \t]*(?::[^{;]+)?[ \t]*\{`,
)

var importPattern = regexp.MustCompile(`(?m)^[ \t]*(import[ \t].*|pragma[ \t].*;)\s*$`)

// StructuredStrategy handles TypeScript/JavaScript dialects and Solidity via
// regex-driven top-level/sub-node extraction.
type StructuredStrategy struct{}

func NewStructuredStrategy() *StructuredStrategy { return &StructuredStrategy{} }

func (s *StructuredStrategy) Parse(code string) (Tree, error) { return nil, nil }

func (s *StructuredStrategy) TopLevelNodes(_ Tree, code string) []Node {
	lines := splitLinesKeepEnds(code)
	var nodes []Node

	var matches []lineMatch

	for _, loc := range topLevelPattern.FindAllStringSubmatchIndex(code, -1) {
		typ := code[loc[2]:loc[3]]
		name := code[loc[4]:loc[5]]
		line := lineAt(code, loc[0])
		matches = append(matches, lineMatch{line: line, typ: typ, name: name})
	}
	for _, loc := range exportedArrowConstPattern.FindAllStringSubmatchIndex(code, -1) {
		name := code[loc[2]:loc[3]]
		line := lineAt(code, loc[0])
		matches = append(matches, lineMatch{line: line, typ: "function", name: name})
	}

	sortMatchesByLine(matches)

	for _, m := range matches {
		startLine := m.line
		endLine := extentByBrace(lines, startLine)
		if endLine < startLine {
			endLine = startLine
		}
		nodes = append(nodes, Node{
			Type:      m.typ,
			Name:      m.name,
			Text:      joinLineRange(lines, startLine, endLine),
			StartLine: startLine + 1,
			EndLine:   endLine + 1,
		})
	}
	return nodes
}

func (s *StructuredStrategy) SubNodes(node Node) []Node {
	if node.Type != "class" && node.Type != "interface" && node.Type != "contract" {
		return nil
	}

	lines := splitLinesKeepEnds(node.Text)
	var nodes []Node
	for _, loc := range methodPattern.FindAllStringSubmatchIndex(node.Text, -1) {
		name := node.Text[loc[2]:loc[3]]
		startLine := lineAt(node.Text, loc[0])
		endLine := extentByBrace(lines, startLine)
		if endLine < startLine {
			endLine = startLine
		}
		nodes = append(nodes, Node{
			Type:      "method",
			Name:      name,
			Text:      joinLineRange(lines, startLine, endLine),
			StartLine: node.StartLine + startLine,
			EndLine:   node.StartLine + endLine,
		})
	}
	return nodes
}

func (s *StructuredStrategy) HeaderText(_ Tree, code string) string {
	var sb strings.Builder
	for _, m := range importPattern.FindAllString(code, -1) {
		sb.WriteString(m)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (s *StructuredStrategy) ShouldSkip(chunk SkipCandidate) (string, bool) {
	trimmed := strings.TrimSpace(chunk.Text)
	if trimmed == "" {
		return "empty chunk", true
	}
	if chunk.Type == "interface" || chunk.Type == "enum" {
		bodyStart := strings.Index(trimmed, "{")
		bodyEnd := strings.LastIndex(trimmed, "}")
		if bodyStart >= 0 && bodyEnd > bodyStart {
			body := strings.TrimSpace(trimmed[bodyStart+1 : bodyEnd])
			if body == "" {
				return "empty " + chunk.Type, true
			}
		}
	}
	if isLowSignalCommentRatio(trimmed) {
		return "low code-to-comment ratio", true
	}
	return "", false
}

func (s *StructuredStrategy) FallbackSplit(node Node, maxTokens int, count CountFunc) []Node {
	return fallbackSplitLines(node, maxTokens, count)
}

// isLowSignalCommentRatio flags chunks that are mostly // or /* */ comments
// with little actual code — grounded on the corpus's "boilerplate_threshold"
// style heuristics for low-signal content.
func isLowSignalCommentRatio(text string) bool {
	lines := strings.Split(text, "\n")
	if len(lines) < 4 {
		return false
	}
	commentLines := 0
	codeLines := 0
	for _, l := range lines {
		t := strings.TrimSpace(l)
		if t == "" {
			continue
		}
		if strings.HasPrefix(t, "//") || strings.HasPrefix(t, "*") || strings.HasPrefix(t, "/*") {
			commentLines++
		} else {
			codeLines++
		}
	}
	total := commentLines + codeLines
	if total == 0 {
		return false
	}
	return float64(commentLines)/float64(total) > 0.6 && codeLines < 3
}

// extentByBrace returns the 0-based line index of the closing brace matching
// the first '{' found at or after startLine, by naive brace counting (string
// and comment contents are not excluded — an accepted approximation for a
// CGO-free regex strategy, matching the corpus's non-Go parsers).
func extentByBrace(lines []string, startLine int) int {
	depth := 0
	seenOpen := false
	for i := startLine; i < len(lines); i++ {
		for _, r := range lines[i] {
			switch r {
			case '{':
				depth++
				seenOpen = true
			case '}':
				depth--
			}
		}
		if seenOpen && depth <= 0 {
			return i
		}
	}
	return len(lines) - 1
}

func lineAt(code string, byteOffset int) int {
	return strings.Count(code[:byteOffset], "\n")
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
	return joinLines(lines[start : end+1])
}

// lineMatch is a top-level declaration candidate found by regex scanning,
// before its brace-matched extent is computed.
type lineMatch struct {
	line int // 0-based
	typ  string
	name string
}

func sortMatchesByLine(matches []lineMatch) {
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j-1].line > matches[j].line; j-- {
			matches[j-1], matches[j] = matches[j], matches[j-1]
		}
	}
}

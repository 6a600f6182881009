// Package langstrategy maps a file's extension to a LanguageStrategy: the
// capability set the chunker uses to find chunk boundaries (top-level nodes,
// their sub-nodes, header/context text, boilerplate-skip heuristics, and a
// line-accumulating fallback for indivisible oversized nodes).
package langstrategy

// Node is one candidate chunk: a top-level unit of a file, or a sub-unit
// inside one. Lines are 1-based and inclusive, matching the Chunk contract
// in internal/chunker.
type Node struct {
	Type      string // e.g. "function", "method", "class", "interface", "contract", "type", "const", "function_part_3"
	Name      string
	Text      string
	StartLine int
	EndLine   int
}

// SkipCandidate is the minimal view of a chunk ShouldSkip needs to decide
// whether it is low-signal boilerplate. It is defined here rather than in
// internal/chunker to keep this package import-free of the chunker.
type SkipCandidate struct {
	Type string
	Text string
}

// CountFunc counts the tokens in a string. Strategies take it as a parameter
// rather than importing internal/tokenizer directly, so they stay testable
// without the tokenizer singleton.
type CountFunc func(string) int

// Tree is an opaque parse result handed back from Parse and passed to
// TopLevelNodes. Only the go-native strategy uses it for anything (an
// *ast.File plus its *token.FileSet); regex-driven strategies return nil and
// re-scan the code string directly.
type Tree any

// LanguageStrategy is the capability set the chunker consults per file.
type LanguageStrategy interface {
	// Parse builds a tree from code, or returns nil for strategies that
	// don't need one. The declarative strategy always returns a nil tree
	// and treats the whole file as a single pseudo-node.
	Parse(code string) (Tree, error)

	// TopLevelNodes returns the file's independent units in source order.
	TopLevelNodes(tree Tree, code string) []Node

	// SubNodes returns node's children suitable as independent sub-chunks,
	// or nil if node has no natural sub-node decomposition (in which case
	// an oversized node falls through to FallbackSplit).
	SubNodes(node Node) []Node

	// HeaderText extracts the file's contextual frame: imports, pragmas,
	// small type aliases/interfaces, non-function small constants.
	HeaderText(tree Tree, code string) string

	// ShouldSkip reports a non-empty reason when chunk is low-signal
	// boilerplate that should be marked skipped rather than sent to AI
	// scoring.
	ShouldSkip(chunk SkipCandidate) (reason string, skip bool)

	// FallbackSplit line-accumulates node's text into chunks no larger than
	// maxTokens, used only when node has no sub-nodes but still exceeds the
	// per-chunk limit. Each part is typed "<node.Type>_part_<n>" and is
	// never itself marked oversized.
	FallbackSplit(node Node, maxTokens int, count CountFunc) []Node
}

// fallbackSplitLines is the shared line-accumulating splitter every concrete
// strategy delegates to: it never needs language awareness, only token
// counting.
func fallbackSplitLines(node Node, maxTokens int, count CountFunc) []Node {
	lines := splitLinesKeepEnds(node.Text)
	if len(lines) == 0 {
		return nil
	}

	var parts []Node
	partIdx := 1
	startLine := node.StartLine
	curLines := make([]string, 0, len(lines))
	curTokens := 0

	flush := func(endLine int) {
		if len(curLines) == 0 {
			return
		}
		text := joinLines(curLines)
		parts = append(parts, Node{
			Type:      nodePartType(node.Type, partIdx),
			Name:      node.Name,
			Text:      text,
			StartLine: startLine,
			EndLine:   endLine,
		})
		partIdx++
		curLines = curLines[:0]
		curTokens = 0
	}

	for i, line := range lines {
		lineTokens := count(line)
		if curTokens > 0 && curTokens+lineTokens > maxTokens {
			flush(node.StartLine + i - 1)
			startLine = node.StartLine + i
		}
		curLines = append(curLines, line)
		curTokens += lineTokens
	}
	flush(node.StartLine + len(lines) - 1)

	return parts
}

func nodePartType(nodeType string, n int) string {
	return nodeType + "_part_" + itoa(n)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := [20]byte{}
	i := len(digits)
	for n > 0 {
		i--
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	return string(digits[i:])
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

func joinLines(lines []string) string {
	total := 0
	for _, l := range lines {
		total += len(l)
	}
	buf := make([]byte, 0, total)
	for _, l := range lines {
		buf = append(buf, l...)
	}
	return string(buf)
}

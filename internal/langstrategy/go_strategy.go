package langstrategy

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
)

// smallDeclLineThreshold bounds how many lines a GenDecl (type/const/var) may
// span before it stops being "header material" and is promoted to its own
// top-level node — mirrors spec.md §4.3's "small type aliases/interfaces,
// and non-function small constants (size-bounded per item)".
const smallDeclLineThreshold = 6

// goTree bundles the parsed file with the FileSet needed to resolve byte
// positions back to line numbers and source text.
type goTree struct {
	fset *token.FileSet
	file *ast.File
	code string
}

// GoStrategy parses .go files with the standard library's go/parser and
// go/ast — the one strategy in the registry with no third-party dependency,
// since go/parser is the idiomatic and only reasonable choice for parsing Go
// source (see DESIGN.md).
type GoStrategy struct{}

func NewGoStrategy() *GoStrategy { return &GoStrategy{} }

func (g *GoStrategy) Parse(code string) (Tree, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "", code, parser.ParseComments)
	if err != nil {
		return nil, err
	}
	return &goTree{fset: fset, file: file, code: code}, nil
}

func (g *GoStrategy) TopLevelNodes(tree Tree, code string) []Node {
	t, ok := tree.(*goTree)
	if !ok || t == nil {
		return nil
	}

	var nodes []Node
	for _, decl := range t.file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			nodes = append(nodes, g.funcNode(t, d))
		case *ast.GenDecl:
			if d.Tok == token.IMPORT {
				continue
			}
			start, end := t.lineRange(d.Pos(), d.End())
			if end-start+1 <= smallDeclLineThreshold {
				// Small type/const/var groups live in the header instead of
				// becoming their own chunk.
				continue
			}
			nodes = append(nodes, Node{
				Type:      declType(d.Tok),
				Name:      declName(d),
				Text:      t.text(d.Pos(), d.End()),
				StartLine: start,
				EndLine:   end,
			})
		}
	}
	return nodes
}

func (g *GoStrategy) funcNode(t *goTree, d *ast.FuncDecl) Node {
	start, end := t.lineRange(d.Pos(), d.End())
	typ := "function"
	if d.Recv != nil {
		typ = "method"
	}
	return Node{
		Type:      typ,
		Name:      d.Name.Name,
		Text:      t.text(d.Pos(), d.End()),
		StartLine: start,
		EndLine:   end,
	}
}

// SubNodes always returns nil: Go's AST has no natural sub-chunk boundary
// inside a function body or a GenDecl block, so an oversized node falls
// through to FallbackSplit rather than a shell-context decomposition.
func (g *GoStrategy) SubNodes(Node) []Node { return nil }

func (g *GoStrategy) HeaderText(tree Tree, code string) string {
	t, ok := tree.(*goTree)
	if !ok || t == nil {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("package " + t.file.Name.Name + "\n")

	for _, decl := range t.file.Decls {
		switch d := decl.(type) {
		case *ast.GenDecl:
			if d.Tok == token.IMPORT {
				sb.WriteString(t.text(d.Pos(), d.End()))
				sb.WriteString("\n")
				continue
			}
			start, end := t.lineRange(d.Pos(), d.End())
			if end-start+1 <= smallDeclLineThreshold {
				sb.WriteString(t.text(d.Pos(), d.End()))
				sb.WriteString("\n")
			}
		}
	}
	return sb.String()
}

// ShouldSkip flags empty or near-empty declarations (e.g. marker interfaces,
// single-field structs with no logic) as boilerplate.
func (g *GoStrategy) ShouldSkip(chunk SkipCandidate) (string, bool) {
	trimmed := strings.TrimSpace(chunk.Text)
	if trimmed == "" {
		return "empty chunk", true
	}
	if chunk.Type == "type" && strings.Count(trimmed, "\n") <= 1 {
		return "trivial type alias", true
	}
	return "", false
}

func (g *GoStrategy) FallbackSplit(node Node, maxTokens int, count CountFunc) []Node {
	return fallbackSplitLines(node, maxTokens, count)
}

func (t *goTree) text(start, end token.Pos) string {
	startOffset := t.fset.Position(start).Offset
	endOffset := t.fset.Position(end).Offset
	if startOffset < 0 || endOffset > len(t.code) || startOffset > endOffset {
		return ""
	}
	return t.code[startOffset:endOffset]
}

func (t *goTree) lineRange(start, end token.Pos) (int, int) {
	return t.fset.Position(start).Line, t.fset.Position(end).Line
}

func declType(tok token.Token) string {
	switch tok {
	case token.TYPE:
		return "type"
	case token.CONST:
		return "const"
	case token.VAR:
		return "var"
	default:
		return "decl"
	}
}

func declName(d *ast.GenDecl) string {
	if len(d.Specs) == 0 {
		return ""
	}
	switch spec := d.Specs[0].(type) {
	case *ast.TypeSpec:
		return spec.Name.Name
	case *ast.ValueSpec:
		if len(spec.Names) > 0 {
			return spec.Names[0].Name
		}
	}
	return ""
}

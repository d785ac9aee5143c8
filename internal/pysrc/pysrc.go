// Package pysrc adapts tree-sitter's Python grammar into the small surface
// the checker needs: parse a file into a SourceUnit, surface syntax errors as
// data instead of failures, and extract plain string literals from call
// arguments.
package pysrc

import (
	"context"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// ParseError marks a SourceUnit that could not be analyzed. It is a
// diagnostic, not a policy finding: the file is skipped, the batch continues.
type ParseError struct {
	Line int    `json:"line"`
	Col  int    `json:"col"`
	Msg  string `json:"msg"`
}

// SourceUnit is one parsed input file. Immutable once parsed; call Close
// when findings for the file have been emitted.
type SourceUnit struct {
	Path    string
	Content []byte
	Tree    *sitter.Tree
	Err     *ParseError
}

// Parse parses Python source into a SourceUnit. Malformed source never
// returns an error: tree-sitter is error-tolerant, so syntax problems are
// detected after the fact and reported via SourceUnit.Err with the location
// of the first error node.
func Parse(ctx context.Context, path string, content []byte) (*SourceUnit, error) {
	unit := &SourceUnit{Path: path, Content: content}

	if !utf8.Valid(content) {
		unit.Err = &ParseError{Line: 1, Col: 0, Msg: "content is not valid UTF-8"}
		return unit, nil
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, err
	}
	unit.Tree = tree

	root := tree.RootNode()
	if root.HasError() {
		unit.Err = firstSyntaxError(root)
	}
	return unit, nil
}

// Close releases the parse tree. Safe on unparsable units.
func (u *SourceUnit) Close() {
	if u.Tree != nil {
		u.Tree.Close()
		u.Tree = nil
	}
}

// Root returns the tree's root node, or nil for an unparsable unit.
func (u *SourceUnit) Root() *sitter.Node {
	if u.Tree == nil {
		return nil
	}
	return u.Tree.RootNode()
}

// Text returns the source text covered by node.
func (u *SourceUnit) Text(node *sitter.Node) string {
	return node.Content(u.Content)
}

// firstSyntaxError locates the first ERROR or MISSING node in document order.
func firstSyntaxError(root *sitter.Node) *ParseError {
	var found *sitter.Node
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if found != nil || n == nil || !n.HasError() {
			return
		}
		if n.IsError() || n.IsMissing() {
			found = n
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)

	if found == nil {
		// HasError was set but no concrete error node surfaced; report the
		// file start so the diagnostic still carries a location.
		return &ParseError{Line: 1, Col: 0, Msg: "syntax error"}
	}
	msg := "syntax error"
	if found.IsMissing() {
		msg = "missing " + found.Type()
	}
	return &ParseError{
		Line: int(found.StartPoint().Row) + 1,
		Col:  int(found.StartPoint().Column),
		Msg:  msg,
	}
}

// StringLiteral returns the unquoted value of node when it is a plain string
// constant. Returns ("", false) for anything computed: f-strings with
// interpolation, concatenations, names, calls, formatting expressions. The
// checker matches literal commands only, so "not a literal" means "no match",
// never a guess.
func StringLiteral(node *sitter.Node, src []byte) (string, bool) {
	if node == nil || node.Type() != "string" {
		return "", false
	}
	if containsInterpolation(node) {
		return "", false
	}
	return unquote(node.Content(src)), true
}

func containsInterpolation(node *sitter.Node) bool {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "interpolation" {
			return true
		}
		if containsInterpolation(child) {
			return true
		}
	}
	return false
}

// unquote strips string prefixes (r, b, u, f in any case) and the surrounding
// single, double, or triple quotes from a raw string token.
func unquote(raw string) string {
	for len(raw) > 0 {
		c := raw[0]
		if c == 'r' || c == 'R' || c == 'b' || c == 'B' || c == 'u' || c == 'U' || c == 'f' || c == 'F' {
			raw = raw[1:]
			continue
		}
		break
	}
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(raw, q) && strings.HasSuffix(raw, q) && len(raw) >= 2*len(q) {
			return raw[len(q) : len(raw)-len(q)]
		}
	}
	return raw
}

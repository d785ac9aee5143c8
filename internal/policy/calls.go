package policy

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/larch/internal/classify"
	"github.com/jward/larch/internal/pysrc"
)

// CallSite is one attribute call inside a function body, exposed as plain
// data for scripted rules.
type CallSite struct {
	Method     string
	Receiver   string
	Line       int
	Col        int
	Snippet    string
	LiteralArg string
	HasLiteral bool
}

// Calls returns every attribute call in scope's body, in source order,
// using the same traversal rules as the matcher: inline control flow is
// descended, nested definitions are not.
func Calls(unit *pysrc.SourceUnit, scope *classify.FunctionScope) []CallSite {
	if scope.Body == nil {
		return nil
	}
	var sites []CallSite
	collectCalls(unit, scope.Body, &sites)
	return sites
}

func collectCalls(unit *pysrc.SourceUnit, node *sitter.Node, sites *[]CallSite) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "function_definition", "class_definition", "decorated_definition":
			continue
		case "call":
			if site, ok := callSite(unit, child); ok {
				*sites = append(*sites, site)
			}
		}
		collectCalls(unit, child, sites)
	}
}

func callSite(unit *pysrc.SourceUnit, call *sitter.Node) (CallSite, bool) {
	fn := call.ChildByFieldName("function")
	if fn == nil || fn.Type() != "attribute" {
		return CallSite{}, false
	}
	attr := fn.ChildByFieldName("attribute")
	if attr == nil {
		return CallSite{}, false
	}
	site := CallSite{
		Method:  unit.Text(attr),
		Line:    int(call.StartPoint().Row) + 1,
		Col:     int(call.StartPoint().Column),
		Snippet: truncate(unit.Text(call), maxSnippetLen),
	}
	if obj := fn.ChildByFieldName("object"); obj != nil {
		site.Receiver = unit.Text(obj)
	}
	if arg := firstPositionalArg(call); arg != nil {
		if lit, ok := pysrc.StringLiteral(arg, unit.Content); ok {
			site.LiteralArg = lit
			site.HasLiteral = true
		}
	}
	return site, true
}

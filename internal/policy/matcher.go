// Package policy holds the violation-pattern registry and the call-site
// matcher. Matching is syntactic only: an attribute call is judged by its
// method name and literal-argument shape, never by the resolved type of the
// receiver — the analyzed codebase is duck-typed and the checker must not
// pretend otherwise.
package policy

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/larch/internal/classify"
	"github.com/jward/larch/internal/pysrc"
)

const (
	maxCommandLen = 80
	maxSnippetLen = 120
)

// Matcher walks test-method bodies looking for calls that match the registry.
type Matcher struct {
	reg *Registry
}

// NewMatcher builds a Matcher over reg.
func NewMatcher(reg *Registry) *Matcher {
	return &Matcher{reg: reg}
}

// MatchScope scans one classified scope and returns its findings ordered by
// (line, col). Scopes that are not test methods never match; the caller may
// pass any scope and rely on that invariant.
func (m *Matcher) MatchScope(unit *pysrc.SourceUnit, scope *classify.FunctionScope) []Finding {
	if !scope.IsTestMethod() || scope.Body == nil {
		return nil
	}
	var findings []Finding
	m.walkBody(unit, scope, scope.Body, &findings)
	SortFindings(findings)
	return findings
}

// walkBody descends through inline control flow (conditionals, loops,
// exception handlers, with-blocks) but not into nested function or class
// definitions: those are classified and matched independently, which keeps
// helper calls out of the parent test's findings and prevents double
// reporting.
func (m *Matcher) walkBody(unit *pysrc.SourceUnit, scope *classify.FunctionScope, node *sitter.Node, findings *[]Finding) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "function_definition", "class_definition", "decorated_definition":
			continue
		case "call":
			if f, ok := m.matchCall(unit, scope, child); ok {
				*findings = append(*findings, f)
			}
		}
		m.walkBody(unit, scope, child, findings)
	}
}

// matchCall tests one call expression of the shape <receiver>.<method>(...)
// against both pattern tables.
func (m *Matcher) matchCall(unit *pysrc.SourceUnit, scope *classify.FunctionScope, call *sitter.Node) (Finding, bool) {
	fn := call.ChildByFieldName("function")
	if fn == nil || fn.Type() != "attribute" {
		return Finding{}, false
	}
	attr := fn.ChildByFieldName("attribute")
	if attr == nil {
		return Finding{}, false
	}
	method := unit.Text(attr)

	if m.reg.IsWarningMethod(method) {
		return m.loggingFinding(unit, scope, call, fn, method), true
	}
	if m.reg.IsExecMethod(method) {
		return m.toolFinding(unit, scope, call, method)
	}
	return Finding{}, false
}

func (m *Matcher) loggingFinding(unit *pysrc.SourceUnit, scope *classify.FunctionScope, call, fn *sitter.Node, method string) Finding {
	return Finding{
		Path:    unit.Path,
		Line:    int(call.StartPoint().Row) + 1,
		Col:     int(call.StartPoint().Column),
		Rule:    RuleTestLogging,
		Scope:   scope.Qualified,
		Method:  method,
		Snippet: truncate(unit.Text(call), maxSnippetLen),
		Message: fmt.Sprintf("%s() in test method %s creates ambiguous results; tests should pass, fail, or skip",
			strings.TrimSpace(unit.Text(fn)), scope.Qualified),
		Alternatives: m.reg.Alternatives(),
	}
}

// toolFinding matches a raw execution call when, and only when, its first
// positional argument is a plain string literal whose leading command token
// has a wrapper. Commands built from variables, f-strings, or concatenation
// produce no finding.
func (m *Matcher) toolFinding(unit *pysrc.SourceUnit, scope *classify.FunctionScope, call *sitter.Node, method string) (Finding, bool) {
	arg := firstPositionalArg(call)
	if arg == nil {
		return Finding{}, false
	}
	command, ok := pysrc.StringLiteral(arg, unit.Content)
	if !ok {
		return Finding{}, false
	}
	command = strings.TrimSpace(command)
	tool, ok := m.reg.ToolFor(command)
	if !ok {
		return Finding{}, false
	}
	return Finding{
		Path:          unit.Path,
		Line:          int(call.StartPoint().Row) + 1,
		Col:           int(call.StartPoint().Column),
		Rule:          RuleToolUsage,
		Scope:         scope.Qualified,
		Method:        method,
		Snippet:       truncate(unit.Text(call), maxSnippetLen),
		Command:       truncate(command, maxCommandLen),
		SuggestedTool: tool.Class,
		Message: fmt.Sprintf("%s() runs %q directly; use the %s tool instead (%s)",
			method, truncate(command, maxCommandLen), tool.Class, tool.Description),
	}, true
}

// firstPositionalArg returns the first positional argument of call, or nil
// when the argument list is empty or starts with a keyword argument.
func firstPositionalArg(call *sitter.Node) *sitter.Node {
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return nil
	}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		if arg.Type() == "comment" {
			continue
		}
		if arg.Type() == "keyword_argument" {
			return nil
		}
		return arg
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

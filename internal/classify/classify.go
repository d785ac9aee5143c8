// Package classify assigns a role to every function and method definition in
// a parsed Python file. Roles decide scope for the policy checks: only test
// methods are matched, everything else is exempt.
//
// Classification is purely structural. Whether a class "is a" test suite is
// decided by name over the locally visible inheritance chain, never by
// resolving types — base classes defined outside the analyzed file are
// recognized by name only, with the test-directory path rules as a fallback.
// When the structure is ambiguous, classification falls away from test
// method: the checker under-reports rather than over-reports.
package classify

import (
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/larch/internal/pysrc"
)

// Role is the classification result for one function definition.
type Role string

const (
	RoleTestMethod    Role = "test_method"
	RoleLifecycleHook Role = "lifecycle_hook"
	RolePrivateHelper Role = "private_helper"
	RoleToolImpl      Role = "tool_implementation"
	RoleOther         Role = "other"
)

// Config holds the externally supplied classification data. Nothing in the
// rule chain is hardcoded; the sets below come from configuration.
type Config struct {
	// ToolPaths are directory prefixes where command wrappers live. Every
	// function under one of these paths is a tool implementation,
	// unconditionally — the path rule wins over every name rule.
	ToolPaths []string

	// TestGlobs are path patterns for test-suite directories. A class in a
	// matching file is recognized as a suite even when its base classes are
	// not locally visible.
	TestGlobs []string

	// LifecycleHooks are setup/teardown-style function names exempt from
	// the checks.
	LifecycleHooks []string

	// TestPrefixes are method-name prefixes that mark a test case entry
	// point ("test", "verify").
	TestPrefixes []string

	// SuiteBases are base-class names that mark a test-suite class.
	SuiteBases []string
}

// DefaultConfig returns the stock classification sets.
func DefaultConfig() Config {
	return Config{
		ToolPaths:      []string{"tools"},
		TestGlobs:      []string{"testsuites"},
		LifecycleHooks: []string{"before_case", "after_case", "before_suite", "after_suite", "setup", "teardown"},
		TestPrefixes:   []string{"test", "verify"},
		SuiteBases:     []string{"TestSuite"},
	}
}

// FunctionScope is one function or method definition, classified.
// Children are nested definitions; they are classified independently with
// their own lexical context and never inherit the parent's role.
type FunctionScope struct {
	Name       string
	Class      string // enclosing class name, "" for free and nested functions
	Qualified  string
	StartLine  int
	StartCol   int
	Depth      int
	Decorators []string
	Role       Role
	Body       *sitter.Node
	Children   []*FunctionScope
}

// IsTestMethod reports whether this scope is subject to the policy checks.
func (s *FunctionScope) IsTestMethod() bool {
	return s.Role == RoleTestMethod
}

// Classifier applies the role rules for one configuration.
type Classifier struct {
	cfg        Config
	lifecycle  map[string]bool
	suiteBases map[string]bool
}

// New builds a Classifier from cfg.
func New(cfg Config) *Classifier {
	return &Classifier{
		cfg:        cfg,
		lifecycle:  toSet(cfg.LifecycleHooks),
		suiteBases: toSet(cfg.SuiteBases),
	}
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

// FileScopes extracts and classifies every function definition in unit,
// including nested ones. Returns nil for unparsable units.
func (c *Classifier) FileScopes(unit *pysrc.SourceUnit) []*FunctionScope {
	root := unit.Root()
	if root == nil || unit.Err != nil {
		return nil
	}
	bases := collectClassBases(root, unit.Content)
	w := &walker{
		classifier: c,
		unit:       unit,
		classBases: bases,
		toolPath:   c.isToolPath(unit.Path),
		testPath:   c.isTestPath(unit.Path),
	}
	return w.walkBlock(root, "", "", 0)
}

// isToolPath reports whether path falls under a configured tool directory.
func (c *Classifier) isToolPath(path string) bool {
	return MatchAny(c.cfg.ToolPaths, path)
}

// isTestPath reports whether path matches a configured test-directory
// pattern.
func (c *Classifier) isTestPath(path string) bool {
	return MatchAny(c.cfg.TestGlobs, path)
}

// MatchAny reports whether path matches any of the configured path patterns.
// Patterns without wildcards are directory prefixes matching at the start of
// the slash-normalized path or after any separator, so "tools" covers both
// "tools/ip.py" and "lisa/tools/ip.py". Patterns with wildcards go through
// filepath.Match against the normalized path and each of its suffixes.
func MatchAny(patterns []string, path string) bool {
	norm := filepath.ToSlash(path)
	for _, pattern := range patterns {
		p := filepath.ToSlash(pattern)
		if strings.ContainsAny(p, "*?[") {
			if matchGlob(p, norm) {
				return true
			}
			continue
		}
		p = strings.Trim(p, "/")
		if p == "" {
			continue
		}
		if norm == p || strings.HasPrefix(norm, p+"/") ||
			strings.Contains(norm, "/"+p+"/") || strings.HasSuffix(norm, "/"+p) {
			return true
		}
	}
	return false
}

// matchGlob matches pattern against path and against every slash-suffix of
// path, so "testsuites/*.py" matches "repo/testsuites/net.py".
func matchGlob(pattern, path string) bool {
	if ok, err := filepath.Match(pattern, path); err == nil && ok {
		return true
	}
	parts := strings.Split(path, "/")
	for i := 1; i < len(parts); i++ {
		suffix := strings.Join(parts[i:], "/")
		if ok, err := filepath.Match(pattern, suffix); err == nil && ok {
			return true
		}
	}
	return false
}

// isSuiteClass reports whether className is recognized as a test-suite class:
// either a configured suite base name is reachable over the locally visible
// base-class chain (by name, transitively), or the file lives in a test
// directory. Cycles in the local chain terminate via the seen set.
func (c *Classifier) isSuiteClass(className string, classBases map[string][]string, testPath bool) bool {
	seen := map[string]bool{}
	queue := []string{className}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if seen[name] {
			continue
		}
		seen[name] = true
		for _, base := range classBases[name] {
			if c.suiteBases[base] {
				return true
			}
			queue = append(queue, base)
		}
	}
	return testPath
}

// classify applies the role rules in order; the first match wins. The tool
// path rule dominates, so a function named test_foo in a wrapper file is
// still exempt.
func (c *Classifier) classify(name, class string, toolPath, testPath bool, classBases map[string][]string) Role {
	switch {
	case toolPath:
		return RoleToolImpl
	case strings.HasPrefix(name, "_"):
		return RolePrivateHelper
	case c.lifecycle[name]:
		return RoleLifecycleHook
	case class != "" && c.hasTestPrefix(name) && c.isSuiteClass(class, classBases, testPath):
		return RoleTestMethod
	default:
		return RoleOther
	}
}

func (c *Classifier) hasTestPrefix(name string) bool {
	for _, prefix := range c.cfg.TestPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

type walker struct {
	classifier *Classifier
	unit       *pysrc.SourceUnit
	classBases map[string][]string
	toolPath   bool
	testPath   bool
}

// walkBlock visits the direct statements of a module, class body, or function
// body and returns the function scopes defined there. class is the enclosing
// class name when block is a class body; nested functions inside a function
// body carry no enclosing class.
func (w *walker) walkBlock(block *sitter.Node, class, qualifier string, depth int) []*FunctionScope {
	var scopes []*FunctionScope
	for i := 0; i < int(block.ChildCount()); i++ {
		child := block.Child(i)
		switch child.Type() {
		case "function_definition":
			if s := w.function(child, nil, class, qualifier, depth); s != nil {
				scopes = append(scopes, s)
			}
		case "class_definition":
			scopes = append(scopes, w.class(child, qualifier, depth)...)
		case "decorated_definition":
			decorators := decoratorNames(child, w.unit.Content)
			for j := 0; j < int(child.ChildCount()); j++ {
				def := child.Child(j)
				switch def.Type() {
				case "function_definition":
					if s := w.function(def, decorators, class, qualifier, depth); s != nil {
						scopes = append(scopes, s)
					}
				case "class_definition":
					scopes = append(scopes, w.class(def, qualifier, depth)...)
				}
			}
		}
	}
	return scopes
}

func (w *walker) class(node *sitter.Node, qualifier string, depth int) []*FunctionScope {
	name := fieldText(node, "name", w.unit.Content)
	if name == "" {
		return nil
	}
	body := node.ChildByFieldName("body")
	if body == nil {
		return nil
	}
	return w.walkBlock(body, name, qualify(qualifier, name), depth)
}

func (w *walker) function(node *sitter.Node, decorators []string, class, qualifier string, depth int) *FunctionScope {
	name := fieldText(node, "name", w.unit.Content)
	if name == "" {
		return nil
	}
	scope := &FunctionScope{
		Name:       name,
		Class:      class,
		Qualified:  qualify(qualifier, name),
		StartLine:  int(node.StartPoint().Row) + 1,
		StartCol:   int(node.StartPoint().Column),
		Depth:      depth,
		Decorators: decorators,
		Body:       node.ChildByFieldName("body"),
	}
	scope.Role = w.classifier.classify(name, class, w.toolPath, w.testPath, w.classBases)
	if scope.Body != nil {
		// Nested definitions get their own scopes; they do not inherit the
		// parent's class context or role.
		scope.Children = w.walkBlock(scope.Body, "", scope.Qualified, depth+1)
	}
	return scope
}

func qualify(qualifier, name string) string {
	if qualifier == "" {
		return name
	}
	return qualifier + "." + name
}

func fieldText(node *sitter.Node, field string, src []byte) string {
	child := node.ChildByFieldName(field)
	if child == nil {
		return ""
	}
	return child.Content(src)
}

// collectClassBases walks the whole tree and records every class's base-class
// names by bare name. Qualified bases keep only the trailing identifier and
// subscripted bases keep the name before the bracket, so "suites.TestSuite"
// and "TestSuite[T]" both index as "TestSuite".
func collectClassBases(root *sitter.Node, src []byte) map[string][]string {
	bases := map[string][]string{}
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "class_definition" {
			name := fieldText(n, "name", src)
			if name != "" {
				bases[name] = classBaseNames(n, src)
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return bases
}

func classBaseNames(node *sitter.Node, src []byte) []string {
	args := node.ChildByFieldName("superclasses")
	if args == nil {
		return nil
	}
	var names []string
	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		switch arg.Type() {
		case "identifier":
			names = append(names, arg.Content(src))
		case "attribute":
			names = append(names, bareName(arg.Content(src)))
		case "subscript":
			if value := arg.ChildByFieldName("value"); value != nil {
				names = append(names, bareName(value.Content(src)))
			}
		}
	}
	return names
}

func bareName(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}

// decoratorNames extracts decorator names from a decorated_definition.
// Decorators never change a scope's role; they are recorded so reports can
// mention them.
func decoratorNames(node *sitter.Node, src []byte) []string {
	var names []string
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != "decorator" {
			continue
		}
		for j := 0; j < int(child.NamedChildCount()); j++ {
			expr := child.NamedChild(j)
			switch expr.Type() {
			case "identifier", "attribute":
				names = append(names, expr.Content(src))
			case "call":
				if fn := expr.ChildByFieldName("function"); fn != nil {
					names = append(names, fn.Content(src))
				}
			}
		}
	}
	return names
}

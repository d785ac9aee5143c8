// Package rulescript runs optional Risor rule scripts against classified
// scopes. Scripts extend coverage beyond the built-in checks without
// recompiling: each script sees the file's scopes and call sites as plain
// data and emits findings through a host function.
package rulescript

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/object"
	"go.uber.org/zap"

	"github.com/jward/larch/internal/classify"
	"github.com/jward/larch/internal/policy"
	"github.com/jward/larch/internal/pysrc"
)

// Runner loads and executes every *.risor script in a directory or fs.FS.
type Runner struct {
	dir  string
	fsys fs.FS
	log  *zap.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithFS loads scripts from an fs.FS instead of a disk directory.
func WithFS(fsys fs.FS) Option {
	return func(r *Runner) {
		r.fsys = fsys
	}
}

// WithLogger sets the Runner's logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(r *Runner) {
		r.log = log
	}
}

// NewRunner creates a Runner over the given scripts directory.
func NewRunner(dir string, opts ...Option) *Runner {
	r := &Runner{dir: dir, log: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Scripts returns the script paths in sorted order, so rule execution order
// is deterministic.
func (r *Runner) Scripts() ([]string, error) {
	var paths []string
	if r.fsys != nil {
		err := fs.WalkDir(r.fsys, ".", func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(path, ".risor") {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk rule scripts: %w", err)
		}
	} else {
		entries, err := os.ReadDir(r.dir)
		if err != nil {
			return nil, fmt.Errorf("read rules dir: %w", err)
		}
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".risor") {
				paths = append(paths, e.Name())
			}
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func (r *Runner) load(path string) (string, error) {
	if r.fsys != nil {
		data, err := fs.ReadFile(r.fsys, path)
		if err != nil {
			return "", fmt.Errorf("load rule script %s: %w", path, err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(filepath.Join(r.dir, path))
	if err != nil {
		return "", fmt.Errorf("load rule script %s: %w", path, err)
	}
	return string(data), nil
}

// Run executes every script against one file's scopes and returns the
// findings they emit, sorted (line, col). A script error is logged and
// skips that script only; the remaining scripts still run.
func (r *Runner) Run(ctx context.Context, unit *pysrc.SourceUnit, scopes []*classify.FunctionScope) ([]policy.Finding, error) {
	paths, err := r.Scripts()
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, nil
	}

	sink := &findingSink{path: unit.Path}
	scopeList := scopesObject(unit, scopes)

	for _, scriptPath := range paths {
		src, err := r.load(scriptPath)
		if err != nil {
			return nil, err
		}
		sink.rule = strings.TrimSuffix(filepath.Base(scriptPath), ".risor")
		_, err = risor.Eval(ctx, src,
			risor.WithGlobal("file_path", object.NewString(unit.Path)),
			risor.WithGlobal("scopes", scopeList),
			risor.WithGlobal("emit", sink.builtin()),
		)
		if err != nil {
			r.log.Warn("rule script failed",
				zap.String("script", scriptPath),
				zap.String("file", unit.Path),
				zap.Error(err))
		}
	}

	findings := sink.take()
	policy.SortFindings(findings)
	return findings, nil
}

// findingSink collects findings emitted by scripts. The mutex keeps emit
// safe even if a script spawns goroutines.
type findingSink struct {
	mu       sync.Mutex
	path     string
	rule     string
	findings []policy.Finding
}

func (s *findingSink) take() []policy.Finding {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findings
}

// builtin returns the emit host function.
//
// emit({"message": ..., "line": ..., "col": ..., "scope": ..., "method": ..., "rule": ...})
//
// message is required; rule defaults to the script name.
func (s *findingSink) builtin() *object.Builtin {
	return object.NewBuiltin("emit", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("emit", 1, len(args))
		}
		m, ok := args[0].(*object.Map)
		if !ok {
			return object.Errorf("emit: expected a map, got %s", args[0].Type())
		}
		fields := m.Value()

		f := policy.Finding{Path: s.path, Rule: s.rule}
		if v, ok := stringField(fields, "rule"); ok {
			f.Rule = v
		}
		msg, ok := stringField(fields, "message")
		if !ok || msg == "" {
			return object.Errorf("emit: message is required")
		}
		f.Message = msg
		f.Scope, _ = stringField(fields, "scope")
		f.Method, _ = stringField(fields, "method")
		f.Snippet, _ = stringField(fields, "snippet")
		f.Line = intField(fields, "line")
		f.Col = intField(fields, "col")

		s.mu.Lock()
		s.findings = append(s.findings, f)
		s.mu.Unlock()
		return object.Nil
	})
}

func stringField(fields map[string]object.Object, key string) (string, bool) {
	v, ok := fields[key]
	if !ok {
		return "", false
	}
	str, ok := v.(*object.String)
	if !ok {
		return "", false
	}
	return str.Value(), true
}

func intField(fields map[string]object.Object, key string) int {
	v, ok := fields[key]
	if !ok {
		return 0
	}
	n, ok := v.(*object.Int)
	if !ok {
		return 0
	}
	return int(n.Value())
}

// scopesObject converts classified scopes (including nested ones, flattened)
// into Risor data: a list of maps with the scope's identity, role, and call
// sites.
func scopesObject(unit *pysrc.SourceUnit, scopes []*classify.FunctionScope) *object.List {
	var items []object.Object
	var add func(s *classify.FunctionScope)
	add = func(s *classify.FunctionScope) {
		items = append(items, scopeObject(unit, s))
		for _, child := range s.Children {
			add(child)
		}
	}
	for _, s := range scopes {
		add(s)
	}
	if items == nil {
		items = []object.Object{}
	}
	return object.NewList(items)
}

func scopeObject(unit *pysrc.SourceUnit, s *classify.FunctionScope) *object.Map {
	var calls []object.Object
	for _, c := range policy.Calls(unit, s) {
		calls = append(calls, object.NewMap(map[string]object.Object{
			"method":      object.NewString(c.Method),
			"receiver":    object.NewString(c.Receiver),
			"line":        object.NewInt(int64(c.Line)),
			"col":         object.NewInt(int64(c.Col)),
			"snippet":     object.NewString(c.Snippet),
			"literal_arg": object.NewString(c.LiteralArg),
			"has_literal": object.NewBool(c.HasLiteral),
		}))
	}
	if calls == nil {
		calls = []object.Object{}
	}
	var decorators []object.Object
	for _, d := range s.Decorators {
		decorators = append(decorators, object.NewString(d))
	}
	if decorators == nil {
		decorators = []object.Object{}
	}
	return object.NewMap(map[string]object.Object{
		"name":       object.NewString(s.Name),
		"class":      object.NewString(s.Class),
		"qualified":  object.NewString(s.Qualified),
		"role":       object.NewString(string(s.Role)),
		"line":       object.NewInt(int64(s.StartLine)),
		"decorators": object.NewList(decorators),
		"calls":      object.NewList(calls),
	})
}

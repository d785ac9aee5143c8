package larch

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/jward/larch/internal/baseline"
	"github.com/jward/larch/internal/classify"
	"github.com/jward/larch/internal/policy"
	"github.com/jward/larch/internal/pysrc"
	"github.com/jward/larch/internal/rulescript"
)

// Engine orchestrates the larch pipeline: parse each Python file, classify
// its function scopes, match the built-in policy rules against test-method
// bodies, run any configured rule scripts, and fold the results into a
// deterministic report.
type Engine struct {
	classifier *classify.Classifier
	matcher    *policy.Matcher
	registry   *policy.Registry
	scripts    *rulescript.Runner
	baseline   *baseline.Store
	log        *zap.Logger

	// workers sets the parallel analysis width. 0 means GOMAXPROCS,
	// 1 forces the serial path.
	workers int
}

// Config carries the Engine's analysis inputs.
type Config struct {
	// Classify tunes scope classification. The zero value is replaced by
	// classify.DefaultConfig.
	Classify classify.Config
	// Registry is the rule registry. nil means the embedded default.
	Registry *policy.Registry
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the Engine's logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithWorkers sets the parallel analysis width. 0 uses GOMAXPROCS; 1 forces
// serial analysis.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithRuleScripts adds a Risor rule script runner; its findings are merged
// with the built-in rules' findings per file.
func WithRuleScripts(r *rulescript.Runner) Option {
	return func(e *Engine) {
		e.scripts = r
	}
}

// WithBaseline attaches a suppression store. Findings whose fingerprint
// appears in the store's latest recorded run are marked Suppressed.
func WithBaseline(s *baseline.Store) Option {
	return func(e *Engine) {
		e.baseline = s
	}
}

// New creates an Engine.
func New(cfg Config, opts ...Option) (*Engine, error) {
	reg := cfg.Registry
	if reg == nil {
		reg = policy.Default()
	}
	ccfg := cfg.Classify
	if len(ccfg.TestPrefixes) == 0 {
		ccfg = classify.DefaultConfig()
	}

	e := &Engine{
		classifier: classify.New(ccfg),
		matcher:    policy.NewMatcher(reg),
		registry:   reg,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Registry returns the rule registry the Engine matches against.
func (e *Engine) Registry() *policy.Registry {
	return e.registry
}

// CheckFiles analyzes the given Python files and returns a combined report.
// Unreadable files produce an error; unparseable files produce a FileResult
// with ParseErr set and the batch continues. Results come back sorted by
// path regardless of worker count.
func (e *Engine) CheckFiles(ctx context.Context, paths []string) (*Report, error) {
	if e.workers != 1 && len(paths) > 1 {
		return e.checkFilesParallel(ctx, paths)
	}

	report := &Report{}
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		res, err := e.CheckSource(ctx, path, content)
		if err != nil {
			return nil, err
		}
		report.Results = append(report.Results, res)
	}
	report.sort()

	if err := e.applyBaseline(report); err != nil {
		return nil, err
	}
	return report, nil
}

// CheckSource analyzes a single file's content. The returned FileResult has
// ParseErr set when the source is malformed; that is not an error.
func (e *Engine) CheckSource(ctx context.Context, path string, content []byte) (FileResult, error) {
	unit, err := pysrc.Parse(ctx, path, content)
	if err != nil {
		return FileResult{}, fmt.Errorf("parse %s: %w", path, err)
	}
	defer unit.Close()

	res := FileResult{Path: path}
	if unit.Err != nil {
		e.log.Debug("unparseable file",
			zap.String("path", path),
			zap.Int("line", unit.Err.Line))
		res.ParseErr = unit.Err
		return res, nil
	}

	scopes := e.classifier.FileScopes(unit)
	var findings []policy.Finding
	var walk func(s *classify.FunctionScope)
	walk = func(s *classify.FunctionScope) {
		findings = append(findings, e.matcher.MatchScope(unit, s)...)
		for _, child := range s.Children {
			walk(child)
		}
	}
	for _, s := range scopes {
		walk(s)
	}

	if e.scripts != nil {
		extra, err := e.scripts.Run(ctx, unit, scopes)
		if err != nil {
			return FileResult{}, fmt.Errorf("rule scripts for %s: %w", path, err)
		}
		findings = append(findings, extra...)
	}

	policy.SortFindings(findings)
	res.Findings = findings
	return res, nil
}

// applyBaseline marks findings recorded in the baseline's latest run as
// suppressed. Without a baseline store this is a no-op.
func (e *Engine) applyBaseline(report *Report) error {
	if e.baseline == nil {
		return nil
	}
	known, err := e.baseline.LatestFingerprints()
	if err != nil {
		return fmt.Errorf("load baseline: %w", err)
	}
	if len(known) == 0 {
		return nil
	}
	for i := range report.Results {
		findings := report.Results[i].Findings
		for j := range findings {
			if known[baseline.Fingerprint(findings[j])] {
				findings[j].Suppressed = true
			}
		}
	}
	return nil
}

package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jward/larch"
	"github.com/jward/larch/internal/baseline"
	"github.com/jward/larch/internal/config"
	"github.com/jward/larch/internal/discover"
	"github.com/jward/larch/internal/policy"
	"github.com/jward/larch/internal/rulescript"
)

var (
	flagRules            string
	flagRulesDir         string
	flagWorkers          int
	flagBaseline         string
	flagDiff             string
	flagChanged          string
	flagFailOnParseError bool
)

var checkCmd = &cobra.Command{
	Use:   "check [path ...]",
	Short: "Check Python test files for policy violations",
	Long: `Analyzes the given files and directories (recursively, *.py) and reports
policy violations found in test methods. With --diff or --changed, the file
set comes from a unified diff or from git instead of the arguments.

Exit codes: 0 clean, 1 findings remain, 2 error.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&flagRules, "rules", "", "YAML rule registry replacing the embedded one")
	checkCmd.Flags().StringVar(&flagRulesDir, "rules-dir", "", "directory of Risor rule scripts (*.risor)")
	checkCmd.Flags().IntVar(&flagWorkers, "workers", 0, "parallel analysis width (0 = CPU count)")
	checkCmd.Flags().StringVar(&flagBaseline, "baseline", "", "baseline database for suppressing known findings")
	checkCmd.Flags().StringVar(&flagDiff, "diff", "", "read the file set from a unified diff ('-' for stdin)")
	checkCmd.Flags().StringVar(&flagChanged, "changed", "", "check files changed in git since the given ref")
	checkCmd.Flags().BoolVar(&flagFailOnParseError, "fail-on-parse-error", false, "treat unparseable files as a failure")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	paths, err := collectPaths(cfg, args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "No Python files to check.")
		return nil
	}

	eng, closeStore, err := buildEngine(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	report, err := eng.CheckFiles(cmd.Context(), paths)
	if err != nil {
		return err
	}

	if err := outputReport(os.Stdout, report, flagFormat); err != nil {
		return err
	}

	failOnParse := flagFailOnParseError || cfg.Check.FailOnParseError
	if failed := report.ParseFailures(); failOnParse && len(failed) > 0 {
		return fmt.Errorf("%d file(s) could not be parsed", len(failed))
	}
	if report.ActiveFindings() > 0 {
		return errFindings
	}
	return nil
}

// buildEngine assembles the analysis engine from config and flags. The
// returned closer releases the baseline store when one is attached.
func buildEngine(cfg *config.Config, log *zap.Logger) (*larch.Engine, func(), error) {
	reg, err := loadRegistry(cfg)
	if err != nil {
		return nil, nil, err
	}

	workers := flagWorkers
	if workers == 0 {
		workers = cfg.Check.Workers
	}
	opts := []larch.Option{
		larch.WithLogger(log),
		larch.WithWorkers(workers),
	}

	rulesDir := flagRulesDir
	if rulesDir == "" {
		rulesDir = cfg.Check.RulesDir
	}
	if rulesDir != "" {
		opts = append(opts, larch.WithRuleScripts(
			rulescript.NewRunner(rulesDir, rulescript.WithLogger(log))))
	}

	closer := func() {}
	if flagBaseline != "" {
		store, err := baseline.NewStore(flagBaseline)
		if err != nil {
			return nil, nil, fmt.Errorf("open baseline: %w", err)
		}
		if err := store.Migrate(); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("migrate baseline: %w", err)
		}
		opts = append(opts, larch.WithBaseline(store))
		closer = func() { store.Close() }
	}

	eng, err := larch.New(larch.Config{
		Classify: cfg.ClassifierConfig(),
		Registry: reg,
	}, opts...)
	if err != nil {
		closer()
		return nil, nil, err
	}
	return eng, closer, nil
}

// loadRegistry resolves the rule registry: --rules flag, then the config
// file's check.rules, then the embedded default.
func loadRegistry(cfg *config.Config) (*policy.Registry, error) {
	path := flagRules
	if path == "" {
		path = cfg.Check.Rules
	}
	if path == "" {
		return policy.Default(), nil
	}
	reg, err := policy.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	return reg, nil
}

// collectPaths determines the file set: --diff and --changed take priority
// over positional arguments; directories expand to *.py recursively.
func collectPaths(cfg *config.Config, args []string) ([]string, error) {
	ccfg := cfg.ClassifierConfig()

	switch {
	case flagDiff != "":
		r := os.Stdin
		if flagDiff != "-" {
			f, err := os.Open(flagDiff)
			if err != nil {
				return nil, fmt.Errorf("open diff: %w", err)
			}
			defer f.Close()
			r = f
		}
		paths, err := discover.FromDiff(r)
		if err != nil {
			return nil, err
		}
		return discover.FilterTests(paths, ccfg.TestGlobs), nil

	case flagChanged != "":
		paths, err := discover.FromGit(".", flagChanged)
		if err != nil {
			return nil, err
		}
		return discover.FilterTests(paths, ccfg.TestGlobs), nil
	}

	if len(args) == 0 {
		args = []string{"."}
	}
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				name := d.Name()
				if strings.HasPrefix(name, ".") && name != "." || name == "__pycache__" {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.HasSuffix(path, ".py") {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", arg, err)
		}
	}
	return paths, nil
}

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jward/larch/internal/config"
)

var (
	flagConfig   string
	flagFormat   string
	flagLogLevel string
)

// errFindings signals that the run completed but policy findings remain.
// It maps to exit code 1; every other error exits 2.
var errFindings = errors.New("policy findings")

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errFindings) {
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(2)
	}
}

var rootCmd = &cobra.Command{
	Use:           "larch",
	Short:         "Policy checks for Python test sources",
	Long:          "Larch parses Python test files with tree-sitter, classifies each function scope by role, and reports policy violations in test methods: log.warning calls and raw command execution where a tool wrapper exists.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
	// No Run — prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: .larch.yaml in the working directory)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format: json|text")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug|info|warn|error (overrides config)")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(baselineCmd)
	rootCmd.AddCommand(rulesCmd)
}

// loadConfig reads the config file (optional) and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	return cfg, nil
}

// buildLogger constructs the CLI's zap logger from config. Logs go to
// stderr; stdout is reserved for results.
func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.Log.Level, err)
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Log.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}

	log, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return log, nil
}

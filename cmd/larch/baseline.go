package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jward/larch/internal/baseline"
)

var flagBaselinePath string

var baselineCmd = &cobra.Command{
	Use:   "baseline [path ...]",
	Short: "Manage the suppression baseline",
	Long:  "The baseline records the current set of findings so later runs can suppress them. New findings still fail; the recorded backlog does not.",
	RunE:  runBaselineRecord,
}

var baselineRecordCmd = &cobra.Command{
	Use:   "record [path ...]",
	Short: "Record the current findings as the baseline",
	RunE:  runBaselineRecord,
}

var baselineShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the latest recorded baseline run",
	RunE:  runBaselineShow,
}

func init() {
	baselineCmd.PersistentFlags().StringVar(&flagBaselinePath, "db", "", "baseline database path (default: baseline.path from config)")
	baselineCmd.AddCommand(baselineRecordCmd)
	baselineCmd.AddCommand(baselineShowCmd)
}

func baselinePath(cfgPath string) string {
	if flagBaselinePath != "" {
		return flagBaselinePath
	}
	return cfgPath
}

func runBaselineRecord(cmd *cobra.Command, args []string) error {
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

	eng, closeStore, err := buildEngine(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	report, err := eng.CheckFiles(cmd.Context(), paths)
	if err != nil {
		return err
	}

	store, err := baseline.NewStore(baselinePath(cfg.Baseline.Path))
	if err != nil {
		return fmt.Errorf("open baseline: %w", err)
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		return fmt.Errorf("migrate baseline: %w", err)
	}

	findings := report.Findings()
	runID, err := store.Record(findings, len(report.Results))
	if err != nil {
		return fmt.Errorf("record baseline: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Recorded baseline run %d: %d finding(s) across %d file(s).\n",
		runID, len(findings), len(report.Results))
	return nil
}

func runBaselineShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := baseline.NewStore(baselinePath(cfg.Baseline.Path))
	if err != nil {
		return fmt.Errorf("open baseline: %w", err)
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		return fmt.Errorf("migrate baseline: %w", err)
	}

	run, err := store.LatestRun()
	if err != nil {
		return fmt.Errorf("read baseline: %w", err)
	}
	if run == nil {
		fmt.Println("No baseline recorded.")
		return nil
	}
	fmt.Printf("Run %d recorded %s: %d finding(s) across %d file(s).\n",
		run.ID, run.CreatedAt.Format("2006-01-02 15:04:05"), run.FindingCount, run.FileCount)
	return nil
}

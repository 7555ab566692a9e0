// Package main generates the offline screening report: coverage of the
// merged chain, married puts, IV rank leaders, dividend streaks and
// recent data changes, as Markdown plus CSV files.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"options-data-lab/internal/app"
	"options-data-lab/internal/config"
	"options-data-lab/internal/logger"
	"options-data-lab/internal/reporting"
	"options-data-lab/internal/screening"
)

func main() {
	outputDir := flag.String("output-dir", "reports", "Output directory for generated files")
	minIVRank := flag.Float64("min-iv-rank", 50, "Minimum IV rank for the IV leaders section (0-100)")
	minIVPercentile := flag.Float64("min-iv-percentile", 50, "Minimum IV percentile for the IV leaders section (0-100)")
	changesSince := flag.Duration("changes-since", 24*time.Hour, "Window of the data changes section")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	log := logger.Must(cfg.App.LogLevel, cfg.App.Env)
	defer func() { _ = log.Sync() }()

	ctx := context.Background()

	backend, err := app.Open(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening storage: %v\n", err)
		os.Exit(1)
	}
	defer backend.Close()

	gen := reporting.NewGenerator(
		backend.Priced,
		backend.Stores.IVStats,
		backend.Stores.Streaks,
		backend.Stores.ChangeLog,
	)
	now := time.Now().UTC()
	report, err := gen.Generate(ctx, reporting.Params{
		MarriedPut: screening.MarriedPutParams{
			MinOpenInterest: cfg.Screening.MinOpenInterest,
			MinDTE:          cfg.Screening.MinDTE,
			MinStrikeRatio:  cfg.Screening.MinStrikeRatio,
			MaxStrikeRatio:  cfg.Screening.MaxStrikeRatio,
			TopN:            cfg.Screening.TopN,
		},
		IVFilter: screening.IVFilterParams{
			MinIVRank:       *minIVRank,
			MinIVPercentile: *minIVPercentile,
		},
		ChangesSince: now.Add(-*changesSince),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	files := []struct {
		name    string
		content string
	}{
		{"SCREENING_REPORT.md", reporting.RenderMarkdown(report)},
		{"MARRIED_PUTS.csv", reporting.RenderMarriedPutsCSV(report)},
		{"IV_LEADERS.csv", reporting.RenderIVCSV(report)},
		{"DIVIDEND_STREAKS.csv", reporting.RenderStreaksCSV(report)},
	}
	fmt.Println("Screening report generated successfully:")
	for _, f := range files {
		path := filepath.Join(*outputDir, f.name)
		if err := os.WriteFile(path, []byte(f.content), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("  - %s\n", path)
	}
}

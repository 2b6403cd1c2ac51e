package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/rpattn/formrecon/internal/config"
	"github.com/rpattn/formrecon/internal/domain"
	"github.com/rpattn/formrecon/internal/engine"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var detectors []string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the discrepancy detectors and replace stored issues",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if len(detectors) > 0 {
				types, err := config.ParseDetectorList(detectors)
				if err != nil {
					return err
				}
				cfg.Detect.Enabled = types
			}

			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			stores, repos, err := ctx.openStores(cmd.Context(), logger)
			if err != nil {
				return err
			}
			defer stores.Close()

			eng, err := engine.New(cfg, repos, engine.WithDryRun(dryRun), engine.WithLogger(logger))
			if err != nil {
				return err
			}
			summary, runErr := eng.Run(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), renderSummary(summary))
			return runErr
		},
	}

	cmd.Flags().StringSliceVar(&detectors, "detectors", nil, "Detectors to run, in order (default detect.enabled)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Compute issues without writing them")
	return cmd
}

func renderSummary(summary engine.Summary) string {
	headers := []string{"Detector", "Issues", "Critical", "High", "Medium", "Low", "Examined", "Skipped", "Stored", "Status", "Duration"}
	aligns := []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft, alignRight}

	rows := make([][]string, 0, len(summary.Results))
	inserted := 0
	for _, r := range summary.Results {
		inserted += r.Inserted
		rows = append(rows, []string{
			string(r.Type),
			strconv.Itoa(len(r.Issues)),
			strconv.Itoa(r.BySeverity[domain.SeverityCritical]),
			strconv.Itoa(r.BySeverity[domain.SeverityHigh]),
			strconv.Itoa(r.BySeverity[domain.SeverityMedium]),
			strconv.Itoa(r.BySeverity[domain.SeverityLow]),
			strconv.Itoa(r.Examined),
			strconv.Itoa(r.Skipped),
			strconv.Itoa(r.Inserted),
			resultStatus(r, summary.DryRun),
			r.Duration.Round(time.Millisecond).String(),
		})
	}

	footer := []string{"TOTAL", strconv.Itoa(summary.TotalIssues()), "", "", "", "", "", "", strconv.Itoa(inserted), "", ""}
	if !summary.Finished.IsZero() {
		footer[10] = summary.Finished.Sub(summary.Started).Round(time.Millisecond).String()
	}
	return renderTable(headers, rows, aligns, footer)
}

func resultStatus(r engine.DetectorResult, dryRun bool) string {
	switch {
	case r.Err != nil:
		return "failed"
	case r.ClearErr != nil:
		return "clear failed"
	case len(r.Truncated) > 0:
		return "truncated"
	case dryRun:
		return "dry run"
	default:
		return "ok"
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rpattn/formrecon/internal/config"
	"github.com/rpattn/formrecon/internal/db"
	"github.com/rpattn/formrecon/internal/export"
	"github.com/rpattn/formrecon/internal/repository"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var out string
	var types []string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored issues to an XLSX workbook, or one type to CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			selected, err := config.ParseDetectorList(types)
			if err != nil {
				return err
			}

			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			conn, err := db.NewConnection(cmd.Context(), cfg.IssueDB(), logger.Named(string(cfg.IssueStore)))
			if err != nil {
				return fmt.Errorf("connect to issue store: %w", err)
			}
			defer conn.Close()

			service := export.NewService(repository.NewIssueRepository(conn.Pool, logger), export.WithLogger(logger))
			stats, err := service.WriteFile(cmd.Context(), out, selected)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d issues to %s\n", stats.Total(), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "compliance_issues.xlsx", "Output path (.xlsx, or .csv with a single --types value)")
	cmd.Flags().StringSliceVar(&types, "types", nil, "Discrepancy types to export (default all)")
	return cmd
}

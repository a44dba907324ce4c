package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newAuditCmd() *cobra.Command {
	var (
		maxPages int
		compact  bool
	)
	cmd := &cobra.Command{
		Use:   "audit <url>",
		Short: "Audits one site and prints the JSON report",
		Long: `Runs a single audit with the configured persistence and prints the
report to stdout. The audit ID is written to stderr.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd.Context())
			if err != nil {
				return err
			}
			if maxPages > 0 {
				cfg.Crawler.MaxPages = maxPages
			}
			app, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			defer app.Close(cmd.Context())

			rec, err := app.Audit(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			if !compact {
				enc.SetIndent("", "  ")
			}
			if err := enc.Encode(rec.Report); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "audit %s\n", rec.ID)
			return nil
		},
	}
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "override crawler.max_pages for this run")
	cmd.Flags().BoolVar(&compact, "compact", false, "print the report on one line")
	return cmd
}

package main

import (
	"context"
	"fmt"
	"os"

	"entrypass/internal/config"
	"entrypass/internal/importer"
	"entrypass/internal/tickets/db"

	"github.com/spf13/cobra"
)

func newImportCommand() *cobra.Command {
	var source, out string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Issue tickets and passes from a registration sheet",
		Long: `Read a registration sheet (.xlsx or .csv), issue one ticket per new team code
and write a PDF pass per ticket. Rows whose team code already has a ticket are
skipped, so the command can be re-run safely after a partial import.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if source == "" {
				source = cfg.Import.SourcePath
			}
			if out == "" {
				out = cfg.Import.OutputDir
			}

			// Read the sheet before touching the store: a missing source
			// must fail without any partial work.
			table, err := importer.ReadTable(source)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if lock := db.NewImportLock(a.store, a.cfg.Import.LockTTL); lock != nil {
				owner := lockOwner()
				if err := lock.Lock(cmd.Context(), owner); err != nil {
					return err
				}
				defer func() {
					if err := lock.Unlock(context.Background(), owner); err != nil {
						a.log.Warn("IMPORT", fmt.Sprintf("failed to release import lock: %v", err))
					}
				}()
			}

			report, err := a.pipeline(out).Run(cmd.Context(), table)
			printReport(cmd, report)
			return err
		},
	}

	cmd.Flags().StringVarP(&source, "source", "s", "", "Registration sheet (default: IMPORT_SOURCE)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output directory for PDF passes (default: PDF_OUTPUT_DIR)")

	return cmd
}

func printReport(cmd *cobra.Command, report *importer.Report) {
	if report == nil {
		return
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Created: %d\n", report.Created)
	fmt.Fprintf(w, "Skipped: %d (missing fields %d, duplicates %d)\n", report.Skipped, report.SkippedMissing, report.SkippedDuplicate)
	if report.Repaired > 0 {
		fmt.Fprintf(w, "Repaired: %d\n", report.Repaired)
	}
	fmt.Fprintf(w, "Failed: %d\n", len(report.Failed))
	for _, f := range report.Failed {
		fmt.Fprintf(w, "  %s\n", f.Error())
	}
	fmt.Fprintf(w, "PDFs in: %s\n", report.OutputDir)
}

func lockOwner() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s:%d", host, os.Getpid())
}

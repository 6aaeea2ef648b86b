package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/sdgindex/internal/batch"
	"github.com/JaimeStill/sdgindex/internal/records"
	"github.com/JaimeStill/sdgindex/pkg/database"
)

func newSaveCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Store approved and edited batch results in the record index",
		Long: "Store every result with success status or a manual edit. Duplicates of existing\n" +
			"records are reported and left unsaved unless --force is given.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rf, err := readResults(ctx.resultsPath)
			if err != nil {
				return err
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			privileged, err := ctx.privileged(cfg)
			if err != nil {
				return err
			}

			logger := ctx.logger()
			db, err := database.New(&cfg.Database, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Ping(cmd.Context()); err != nil {
				return err
			}

			sys := records.New(db.Connection(), logger, cfg.API.Pagination)
			report := batch.Save(cmd.Context(), sys, rf.Job.Results, privileged, force)

			if len(report.Outcomes) > 0 {
				fmt.Fprintln(ctx.stdout, saveTable(report))
			}
			fmt.Fprintf(
				ctx.stdout,
				"Saved %d, duplicates %d, failed %d, skipped %d.\n",
				report.Saved, report.Duplicates, report.Failed, report.Skipped,
			)
			if report.Failed > 0 {
				return fmt.Errorf("%d records failed to save", report.Failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Save duplicates as additional records")

	return cmd
}

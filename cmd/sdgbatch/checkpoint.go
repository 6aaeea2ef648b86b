package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckpointCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect or discard the batch checkpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the saved checkpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := openCheckpoint(cfg, ctx.logger())
			if err != nil {
				return err
			}
			defer store.Close()

			job, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}
			if job == nil {
				fmt.Fprintln(ctx.stdout, "No checkpoint.")
				return nil
			}

			fmt.Fprintln(ctx.stdout, renderTable(
				[]string{"State", "Processed", "Total", "Remaining", "Saved at"},
				[][]string{{
					string(job.State),
					fmt.Sprint(job.Processed),
					fmt.Sprint(job.Total),
					fmt.Sprint(job.Remaining()),
					job.CheckpointedAt().Format("2006-01-02 15:04:05"),
				}},
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight},
			))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Discard the saved checkpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := openCheckpoint(cfg, ctx.logger())
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(ctx.stdout, "Checkpoint cleared.")
			return nil
		},
	})

	return cmd
}

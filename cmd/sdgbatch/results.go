package main

import (
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/JaimeStill/sdgindex/internal/batch"
	"github.com/JaimeStill/sdgindex/internal/labels"
)

func newResultsCommand(ctx *commandContext) *cobra.Command {
	var (
		filter string
		status string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "results",
		Short: "Show the results of the last batch run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rf, err := readResults(ctx.resultsPath)
			if err != nil {
				return err
			}

			results := rf.Job.Results
			if filter != "" {
				set, err := labels.ParseSet(filter)
				if err != nil {
					return fmt.Errorf("--labels: %w", err)
				}
				results = filterByLabels(results, set)
			}
			if status != "" {
				results = filterByOutcome(results, batch.Outcome(status))
			}

			if asJSON {
				enc := json.NewEncoder(ctx.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}

			fmt.Fprintf(ctx.stdout, "%s: %s at %d/%d\n", rf.Input, rf.Job.State, rf.Job.Processed, rf.Job.Total)
			if len(results) == 0 {
				fmt.Fprintln(ctx.stdout, "No matching results.")
				return nil
			}
			fmt.Fprintln(ctx.stdout, resultsTable(results))
			return nil
		},
	}

	cmd.Flags().StringVar(&filter, "labels", "", "Only results carrying every label in this set, e.g. 3,7")
	cmd.Flags().StringVar(&status, "status", "", "Only results with this status (success, low_confidence, error)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")

	return cmd
}

func filterByLabels(results []batch.Result, set labels.Set) []batch.Result {
	var out []batch.Result
	for _, r := range results {
		ls := make([]labels.Label, len(r.Candidates))
		for i, c := range r.Candidates {
			ls[i] = c.Label
		}
		if set.MatchedBy(ls) {
			out = append(out, r)
		}
	}
	return out
}

func filterByOutcome(results []batch.Result, outcome batch.Outcome) []batch.Result {
	var out []batch.Result
	for _, r := range results {
		if r.Outcome == outcome {
			out = append(out, r)
		}
	}
	return out
}

func newEditCommand(ctx *commandContext) *cobra.Command {
	var (
		rank  int
		label int
	)

	cmd := &cobra.Command{
		Use:   "edit <row>",
		Short: "Manually set one label of a batch result",
		Long: "Manually set the label at --rank of the result for a data row. A rank one past\n" +
			"the last candidate adds a label. Edited results are saved even when the\n" +
			"classifier confidence was low.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			row, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid row %q", args[0])
			}

			rf, err := readResults(ctx.resultsPath)
			if err != nil {
				return err
			}
			result, err := rf.find(row)
			if err != nil {
				return err
			}
			if err := result.Edit(rank, labels.Label(label)); err != nil {
				return err
			}
			if err := writeResults(ctx.resultsPath, rf); err != nil {
				return err
			}

			fmt.Fprintf(ctx.stdout, "Row %d: %s\n", row, candidatesCell(result.Candidates))
			return nil
		},
	}

	cmd.Flags().IntVar(&rank, "rank", 1, "Rank to set (1-3)")
	cmd.Flags().IntVar(&label, "label", 0, "SDG label (1-16)")
	cmd.MarkFlagRequired("label")

	return cmd
}

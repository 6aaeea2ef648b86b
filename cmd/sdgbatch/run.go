package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/sdgindex/internal/batch"
	"github.com/JaimeStill/sdgindex/internal/checkpoint"
	"github.com/JaimeStill/sdgindex/internal/classifier"
	"github.com/JaimeStill/sdgindex/internal/config"
	"github.com/JaimeStill/sdgindex/pkg/storage"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		rows    string
		restart bool
		resume  bool
	)

	cmd := &cobra.Command{
		Use:   "run <input.csv>",
		Short: "Classify the selected rows of a batch file",
		Long: "Classify the selected rows of a batch file. Interrupt once to pause at the next\n" +
			"record boundary; a second interrupt or SIGTERM stops the run. Both keep a\n" +
			"checkpoint so the same selection can be resumed later.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if restart && resume {
				return errors.New("--restart and --resume are mutually exclusive")
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			privileged, err := ctx.privileged(cfg)
			if err != nil {
				return err
			}

			lock, err := checkpoint.AcquireRunLock(cfg.Checkpoint.LockPath)
			if err != nil {
				return fmt.Errorf("batch run: %w", err)
			}
			defer lock.Release()

			inputs, err := readInput(args[0])
			if err != nil {
				return err
			}
			selection, err := selectRows(inputs, rows)
			if err != nil {
				return err
			}

			logger := ctx.logger()
			store, err := openCheckpoint(cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			ctrl := batch.New(classifier.New(cfg.Classifier, logger), store, cfg.Batch, logger)

			mode := batch.ResumeContinue
			if restart {
				mode = batch.ResumeRestart
			} else if !resume {
				if prev := ctrl.Resumable(cmd.Context(), selection); prev != nil {
					mode = ctx.askResume(prev)
				}
			}

			job, err := ctrl.Prepare(cmd.Context(), selection, privileged, mode)
			if err != nil {
				return err
			}
			if job.Processed > 0 {
				fmt.Fprintf(ctx.stdout, "Resuming at %d/%d\n", job.Processed, job.Total)
			}

			runCtx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			stopSignals := watchSignals(ctrl.Signals(), cancel)
			defer stopSignals()

			job, runErr := ctrl.Run(runCtx, job, inputs)
			if runErr != nil && job.State != batch.StatePaused {
				return runErr
			}

			rf := &resultsFile{Input: args[0], Job: job}
			if err := writeResults(ctx.resultsPath, rf); err != nil {
				return err
			}

			fmt.Fprintln(ctx.stdout, summaryTable(rf.Summary))
			switch job.State {
			case batch.StateCompleted:
				fmt.Fprintf(ctx.stdout, "Completed %d records. Review with `sdgbatch results`.\n", job.Total)
			default:
				fmt.Fprintf(
					ctx.stdout,
					"Run %s at %d/%d with %d remaining. Run again to resume.\n",
					job.State, job.Processed, job.Total, job.Remaining(),
				)
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&rows, "rows", "", "Comma separated data row numbers to classify (default: every valid row)")
	cmd.Flags().BoolVar(&restart, "restart", false, "Discard any checkpoint and start over")
	cmd.Flags().BoolVar(&resume, "resume", false, "Resume a matching checkpoint without prompting")

	return cmd
}

func readInput(path string) ([]batch.Input, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	return batch.ParseInput(f)
}

// selectRows maps data row numbers to input indices. An empty list selects every
// valid row. Invalid rows are rejected.
func selectRows(inputs []batch.Input, raw string) ([]int, error) {
	if strings.TrimSpace(raw) == "" {
		selection := batch.DefaultSelection(inputs)
		if len(selection) == 0 {
			return nil, batch.ErrEmptySelection
		}
		return selection, nil
	}

	byRow := make(map[int]int, len(inputs))
	for i, in := range inputs {
		byRow[in.Row] = i
	}

	var selection []int
	for part := range strings.SplitSeq(raw, ",") {
		row, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("%w: %q", batch.ErrInvalidSelection, part)
		}
		idx, ok := byRow[row]
		if !ok {
			return nil, fmt.Errorf("%w: row %d not in file", batch.ErrInvalidSelection, row)
		}
		if in := inputs[idx]; !in.Valid() {
			return nil, fmt.Errorf("%w: row %d: %s", batch.ErrInvalidSelection, row, strings.Join(in.Errors, "; "))
		}
		selection = append(selection, idx)
	}
	return selection, nil
}

// openCheckpoint opens the configured checkpoint store. Blob storage is only
// connected for the blob backend.
func openCheckpoint(cfg *config.Config, logger *slog.Logger) (checkpoint.Store, error) {
	var blobs checkpoint.Blobs
	if cfg.Checkpoint.Backend == checkpoint.BackendBlob {
		store, err := storage.New(&cfg.Storage, logger)
		if err != nil {
			return nil, err
		}
		blobs = store
	}
	return checkpoint.New(&cfg.Checkpoint, blobs, logger)
}

// askResume prompts on a terminal; elsewhere a matching checkpoint is resumed.
func (c *commandContext) askResume(prev *batch.Job) batch.ResumeMode {
	if !isTerminal(c.stdin) {
		return batch.ResumeContinue
	}

	fmt.Fprintf(
		c.stdout,
		"Found a checkpoint from %s at %d/%d. Resume? [Y/n] ",
		prev.CheckpointedAt().Format("2006-01-02 15:04"),
		prev.Processed,
		prev.Total,
	)
	answer, _ := bufio.NewReader(c.stdin).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "n", "no":
		return batch.ResumeRestart
	default:
		return batch.ResumeContinue
	}
}

// watchSignals pauses on the first interrupt and stops on the second or on SIGTERM.
func watchSignals(signals *batch.Signals, cancel context.CancelFunc) func() {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		interrupts := 0
		for {
			select {
			case <-done:
				return
			case sig := <-ch:
				if sig == syscall.SIGTERM {
					signals.Stop()
					cancel()
					continue
				}
				interrupts++
				if interrupts == 1 {
					signals.Pause()
					continue
				}
				signals.Stop()
				cancel()
			}
		}
	}()

	return func() {
		signal.Stop(ch)
		close(done)
	}
}

package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/JaimeStill/sdgindex/internal/classifier"
	"github.com/JaimeStill/sdgindex/internal/labels"
)

// Signals carries pause and stop requests into a running job. Requests are
// observed at record boundaries only.
type Signals struct {
	pause atomic.Bool
	stop  atomic.Bool
}

// Pause requests the running job to pause before its next record.
func (s *Signals) Pause() { s.pause.Store(true) }

// Stop requests the running job to stop before its next record.
func (s *Signals) Stop() { s.stop.Store(true) }

func (s *Signals) reset() {
	s.pause.Store(false)
	s.stop.Store(false)
}

// Controller runs batch jobs one record at a time.
type Controller struct {
	client  classifier.Client
	store   CheckpointStore
	cfg     Config
	logger  *slog.Logger
	signals Signals

	sleep func(ctx context.Context, d time.Duration)
	now   func() time.Time
}

// New creates a Controller. cfg must be finalized.
func New(client classifier.Client, store CheckpointStore, cfg Config, logger *slog.Logger) *Controller {
	return &Controller{
		client: client,
		store:  store,
		cfg:    cfg,
		logger: logger.With("system", "batch"),
		sleep:  sleep,
		now:    time.Now,
	}
}

// Signals returns the pause and stop signals for the running job.
func (c *Controller) Signals() *Signals {
	return &c.signals
}

// Resumable returns the checkpointed job for selection, or nil when there is none.
// A checkpoint that cannot be read, is inconsistent, or belongs to another
// selection is treated as absent.
func (c *Controller) Resumable(ctx context.Context, selection []int) *Job {
	job, err := c.store.Load(ctx)
	if err != nil {
		c.logger.Warn("checkpoint unreadable, starting fresh", "error", err)
		return nil
	}
	if job == nil {
		return nil
	}
	if !job.Matches(selection) {
		c.logger.Info("checkpoint belongs to another selection, ignoring", "checkpoint_total", job.Total)
		return nil
	}
	if !job.Consistent() {
		c.logger.Warn("checkpoint inconsistent, starting fresh", "processed", job.Processed, "results", len(job.Results))
		return nil
	}
	return job
}

// Prepare returns an idle job for selection. With ResumeContinue a matching
// checkpoint is resumed from its processed count; with ResumeRestart any
// checkpoint is discarded.
func (c *Controller) Prepare(ctx context.Context, selection []int, privileged bool, mode ResumeMode) (Job, error) {
	if len(selection) == 0 {
		return Job{}, ErrEmptySelection
	}

	if mode == ResumeContinue {
		if job := c.Resumable(ctx, selection); job != nil {
			job.State = StateIdle
			job.Privileged = privileged
			c.logger.Info("resuming from checkpoint", "processed", job.Processed, "total", job.Total)
			return *job, nil
		}
	} else if err := c.store.Clear(ctx); err != nil {
		c.logger.Warn("checkpoint clear failed", "error", err)
	}

	return NewJob(selection, privileged), nil
}

// Run processes the job's remaining selection in order. It returns when the job
// completes, or when a pause or stop request is observed at a record boundary.
// Cancelling ctx acts as a stop request; an in-flight classifier call always
// finishes. Per-record classifier failures are recorded as error results.
func (c *Controller) Run(ctx context.Context, job Job, inputs []Input) (Job, error) {
	if job.State != StateIdle && job.State != StatePaused {
		return job, fmt.Errorf("%w: cannot run from %s", ErrInvalidTransition, job.State)
	}
	if len(job.Selection) == 0 {
		return job, ErrEmptySelection
	}
	for _, idx := range job.Selection {
		if idx < 0 || idx >= len(inputs) {
			return job, fmt.Errorf("%w: index %d", ErrInvalidSelection, idx)
		}
	}

	c.signals.reset()
	job.Total = len(job.Selection)

	if err := c.client.Connect(ctx); err != nil {
		if job.Processed == 0 {
			job.State = StateFailed
			c.logger.Error("batch failed", "error", err)
			return job, fmt.Errorf("%w: %w", ErrClassifierUnavailable, err)
		}
		job.State = StatePaused
		c.checkpoint(ctx, &job)
		return job, fmt.Errorf("%w: %w", ErrClassifierUnavailable, err)
	}

	job.State = StateRunning
	c.logger.Info("batch running", "processed", job.Processed, "total", job.Total, "privileged", job.Privileged)

	last := len(job.Selection) - 1
	for i := job.Processed; i <= last; i++ {
		if ctx.Err() != nil || c.signals.stop.Load() {
			return c.halt(ctx, job, StateStopped), nil
		}
		if c.signals.pause.Load() {
			return c.halt(ctx, job, StatePaused), nil
		}

		result := c.classify(ctx, inputs[job.Selection[i]], job.Privileged)
		job.Results = append(job.Results, result)
		job.Processed = i + 1

		c.logger.Info(
			"record classified",
			"row", result.Input.Row,
			"outcome", result.Outcome,
			"processed", job.Processed,
			"total", job.Total,
		)

		if job.Processed%c.cfg.CheckpointEvery == 0 {
			c.checkpoint(ctx, &job)
		}

		if i < last {
			c.sleep(ctx, c.cfg.DelayDuration())
		}
	}

	job.State = StateCompleted
	if err := c.store.Clear(context.WithoutCancel(ctx)); err != nil {
		c.logger.Warn("checkpoint clear failed", "error", err)
	}
	c.logger.Info("batch completed", "total", job.Total, "summary", Summarize(job.Results))

	return job, nil
}

// Stop ends a paused job. The checkpoint is kept so the selection can be resumed later.
func (c *Controller) Stop(ctx context.Context, job Job) (Job, error) {
	if job.State != StatePaused {
		return job, fmt.Errorf("%w: cannot stop from %s", ErrInvalidTransition, job.State)
	}
	return c.halt(ctx, job, StateStopped), nil
}

func (c *Controller) halt(ctx context.Context, job Job, state State) Job {
	job.State = state
	c.checkpoint(ctx, &job)
	c.logger.Info("batch halted", "state", state, "processed", job.Processed, "remaining", job.Remaining())
	return job
}

func (c *Controller) checkpoint(ctx context.Context, job *Job) {
	job.Timestamp = c.now().UnixMilli()
	if err := c.store.Save(context.WithoutCancel(ctx), *job); err != nil {
		c.logger.Warn("checkpoint save failed", "processed", job.Processed, "error", err)
		return
	}
	c.logger.Info("checkpoint saved", "processed", job.Processed, "total", job.Total)
}

func (c *Controller) classify(ctx context.Context, in Input, privileged bool) Result {
	preds, err := c.client.Classify(context.WithoutCancel(ctx), in.Abstract)
	if err != nil {
		c.logger.Warn("classification failed", "row", in.Row, "error", err)
		return Result{
			Input:      in,
			Candidates: []labels.Candidate{},
			Outcome:    OutcomeError,
			Error:      err.Error(),
		}
	}

	candidates := labels.Dedupe(labels.Normalize(preds))
	outcome := OutcomeLowConfidence
	if labels.Route(candidates, privileged).Status == labels.StatusApproved {
		outcome = OutcomeSuccess
	}

	return Result{Input: in, Candidates: candidates, Outcome: outcome}
}

// Summary counts results by outcome.
type Summary struct {
	Success       int `json:"success"`
	LowConfidence int `json:"low_confidence"`
	Error         int `json:"error"`
}

// Summarize counts results by outcome.
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		switch r.Outcome {
		case OutcomeSuccess:
			s.Success++
		case OutcomeLowConfidence:
			s.LowConfidence++
		case OutcomeError:
			s.Error++
		}
	}
	return s
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

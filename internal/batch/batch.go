// Package batch sequences classification over a selection of parsed input rows
// with pause, stop, and resume backed by a checkpoint store.
package batch

import (
	"fmt"
	"slices"
	"time"

	"github.com/JaimeStill/sdgindex/internal/labels"
)

// State is the lifecycle state of a batch job.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateStopped   State = "stopped"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Outcome is the per-record result of classification.
type Outcome string

const (
	OutcomeSuccess       Outcome = "success"
	OutcomeLowConfidence Outcome = "low_confidence"
	OutcomeError         Outcome = "error"
)

// ResumeMode decides what Prepare does with a checkpoint for the same selection.
type ResumeMode int

const (
	ResumeContinue ResumeMode = iota
	ResumeRestart
)

// Result is the classification of one selected input.
type Result struct {
	Input      Input              `json:"record"`
	Candidates []labels.Candidate `json:"candidates"`
	Outcome    Outcome            `json:"status"`
	Error      string             `json:"error,omitempty"`
}

// Saveable reports whether the result may be ingested: it was approved by the
// router or a reviewer edited one of its labels.
func (r Result) Saveable() bool {
	if r.Outcome == OutcomeSuccess {
		return true
	}
	return slices.ContainsFunc(r.Candidates, func(c labels.Candidate) bool {
		return c.IsManualEdit
	})
}

// Edit sets the candidate at rank to a manual edit of label. Rank may be one past
// the last candidate to add a label, up to the candidate limit.
func (r *Result) Edit(rank int, label labels.Label) error {
	if !label.Valid() {
		return fmt.Errorf("%w: label %d", ErrInvalidEdit, label)
	}
	if rank < 1 || rank > len(r.Candidates)+1 || rank > labels.MaxCandidates {
		return fmt.Errorf("%w: rank %d", ErrInvalidEdit, rank)
	}

	edit := labels.ManualEdit(label)
	edit.Rank = rank
	if rank == len(r.Candidates)+1 {
		r.Candidates = append(r.Candidates, edit)
	} else {
		r.Candidates[rank-1] = edit
	}
	return nil
}

// Job is the serializable state of one batch run. Selection holds input indices in
// processing order; Results holds one entry per processed selection element.
type Job struct {
	Selection  []int    `json:"selection"`
	Processed  int      `json:"processed"`
	Total      int      `json:"total"`
	Results    []Result `json:"results"`
	Timestamp  int64    `json:"timestamp"`
	State      State    `json:"state"`
	Privileged bool     `json:"privileged"`
}

// NewJob creates an idle job over selection.
func NewJob(selection []int, privileged bool) Job {
	return Job{
		Selection:  slices.Clone(selection),
		Total:      len(selection),
		Results:    []Result{},
		State:      StateIdle,
		Privileged: privileged,
	}
}

// CheckpointedAt returns the time the job was last checkpointed.
func (j Job) CheckpointedAt() time.Time {
	return time.UnixMilli(j.Timestamp)
}

// Matches reports whether j was built for selection.
func (j Job) Matches(selection []int) bool {
	return slices.Equal(j.Selection, selection)
}

// Consistent reports whether the counters agree with the recorded results.
func (j Job) Consistent() bool {
	return j.Total == len(j.Selection) &&
		j.Processed >= 0 &&
		j.Processed <= j.Total &&
		len(j.Results) == j.Processed
}

// Remaining returns the number of selected inputs not yet processed.
func (j Job) Remaining() int {
	return j.Total - j.Processed
}

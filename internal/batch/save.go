package batch

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/sdgindex/internal/labels"
	"github.com/JaimeStill/sdgindex/internal/records"
)

// Ingester stores one reviewed submission.
type Ingester interface {
	Ingest(ctx context.Context, in records.Ingestion, privileged bool) (*records.IngestResult, error)
}

// SaveOutcome is the result of saving one batch result.
type SaveOutcome struct {
	Row      int               `json:"row"`
	Title    string            `json:"title"`
	ID       uuid.UUID         `json:"id,omitzero"`
	Status   labels.Status     `json:"status,omitempty"`
	Conflict *records.Conflict `json:"conflict,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// SaveReport summarizes a save pass.
type SaveReport struct {
	Saved      int           `json:"saved"`
	Duplicates int           `json:"duplicates"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
	Outcomes   []SaveOutcome `json:"outcomes"`
}

// Save ingests every saveable result in order. Results that are neither approved
// nor manually edited are skipped. Duplicates are reported and left unsaved
// unless force is set. A failed record does not stop the pass.
func Save(ctx context.Context, ing Ingester, results []Result, privileged, force bool) SaveReport {
	report := SaveReport{Outcomes: []SaveOutcome{}}

	for _, r := range results {
		if !r.Saveable() {
			report.Skipped++
			continue
		}

		outcome := SaveOutcome{Row: r.Input.Row, Title: r.Input.Title}

		res, err := ing.Ingest(ctx, records.Ingestion{
			Submission: r.Input.Submission(),
			Candidates: labels.Dedupe(r.Candidates),
			Force:      force,
		}, privileged)

		switch {
		case err != nil:
			report.Failed++
			outcome.Error = err.Error()
		case res.Conflict != nil:
			report.Duplicates++
			outcome.Conflict = res.Conflict
		default:
			report.Saved++
			outcome.ID = res.ID
			outcome.Status = res.Status
		}

		report.Outcomes = append(report.Outcomes, outcome)
	}

	return report
}

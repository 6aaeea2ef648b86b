// Package records implements the record domain: validated ingestion of classified
// abstracts with duplicate detection, and the read paths over approved records.
package records

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/sdgindex/internal/labels"
)

// Record is a stored submission with its labels in rank order.
type Record struct {
	ID              uuid.UUID      `json:"id"`
	Title           string         `json:"title"`
	Author          string         `json:"author"`
	PublicationDate string         `json:"publication_date"`
	DepartmentID    *int           `json:"department_id,omitempty"`
	Department      string         `json:"department,omitempty"`
	Abstract        string         `json:"abstract"`
	URL             string         `json:"url,omitempty"`
	Discipline      string         `json:"discipline,omitempty"`
	Keywords        string         `json:"keywords,omitempty"`
	Status          labels.Status  `json:"status"`
	AllowDuplicate  bool           `json:"allow_duplicate"`
	CreatedAt       time.Time      `json:"created_at"`
	Labels          []labels.Label `json:"labels"`
	Mappings        []Mapping      `json:"mappings,omitempty"`
}

// Year returns the publication year, or 0 when the date is malformed.
func (r Record) Year() int {
	t, err := time.Parse(time.DateOnly, r.PublicationDate)
	if err != nil {
		return 0
	}
	return t.Year()
}

// Mapping is a persisted label association.
type Mapping struct {
	Label      labels.Label  `json:"label"`
	Confidence float64       `json:"confidence"`
	Rank       int           `json:"rank"`
	Method     labels.Method `json:"method"`
}

// Submission carries the descriptive fields of a record before it is stored.
type Submission struct {
	Title           string   `json:"title" validate:"required"`
	Author          string   `json:"author" validate:"required"`
	PublicationDate string   `json:"publication_date" validate:"required,datetime=2006-01-02"`
	Department      string   `json:"department,omitempty"`
	Abstract        string   `json:"abstract" validate:"required"`
	URL             string   `json:"url,omitempty" validate:"omitempty,url"`
	Discipline      string   `json:"discipline,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
}

// Trimmed returns s with surrounding whitespace removed from every field
// and empty keywords dropped.
func (s Submission) Trimmed() Submission {
	out := Submission{
		Title:           strings.TrimSpace(s.Title),
		Author:          strings.TrimSpace(s.Author),
		PublicationDate: strings.TrimSpace(s.PublicationDate),
		Department:      strings.TrimSpace(s.Department),
		Abstract:        strings.TrimSpace(s.Abstract),
		URL:             strings.TrimSpace(s.URL),
		Discipline:      strings.TrimSpace(s.Discipline),
	}
	for _, k := range s.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			out.Keywords = append(out.Keywords, k)
		}
	}
	return out
}

// Ingestion is a request to store a submission with its reviewed candidates.
// Force stores the record even when another record has the same identity.
// NoRelevantTags stores the record with no label mappings.
type Ingestion struct {
	Submission
	Candidates     []labels.Candidate `json:"candidates"`
	NoRelevantTags bool               `json:"no_relevant_tags,omitempty"`
	Force          bool               `json:"force,omitempty"`
}

// Conflict identifies the stored record that blocked an ingestion.
type Conflict struct {
	ExistingID uuid.UUID `json:"existing_id"`
	Title      string    `json:"title"`
	Author     string    `json:"author"`
}

// IngestResult reports the outcome of an ingestion. When Conflict is set nothing was written.
type IngestResult struct {
	ID       uuid.UUID     `json:"id,omitzero"`
	Status   labels.Status `json:"status,omitempty"`
	Saved    int           `json:"saved"`
	Skipped  int           `json:"skipped"`
	Conflict *Conflict     `json:"conflict,omitempty"`
}

// LabelCount is the number of approved records carrying a label.
type LabelCount struct {
	Label labels.Label `json:"label"`
	Count int          `json:"count"`
}

// Dashboard summarizes the corpus for charting.
type Dashboard struct {
	Labels   []LabelCount `json:"labels"`
	Approved int          `json:"approved"`
	Pending  int          `json:"pending"`
}

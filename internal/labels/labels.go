// Package labels normalizes classifier predictions into ranked SDG candidates
// and routes them to an ingestion status by confidence.
package labels

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
)

const (
	// MinLabel and MaxLabel bound the SDG goal numbers.
	MinLabel Label = 1
	MaxLabel Label = 16
	// MaxCandidates is the number of ranked candidates kept per record.
	MaxCandidates = 3
)

var (
	sdgPattern   = regexp.MustCompile(`(?i)^SDG\s+(\d+)`)
	digitPattern = regexp.MustCompile(`\d+`)
)

// Label is an SDG goal number in [1, 16].
type Label int

// Valid reports whether l lies in [1, 16].
func (l Label) Valid() bool {
	return l >= MinLabel && l <= MaxLabel
}

func (l Label) String() string {
	return fmt.Sprintf("SDG %d", int(l))
}

// Prediction is one raw (label text, score) pair as returned by the classifier.
type Prediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Candidate is a normalized, ranked label suggestion.
type Candidate struct {
	Label        Label   `json:"label"`
	Score        float64 `json:"score"`
	Rank         int     `json:"rank"`
	IsManualEdit bool    `json:"is_manual_edit,omitempty"`
}

// ManualEdit returns a candidate set by a human reviewer. It always qualifies.
func ManualEdit(label Label) Candidate {
	return Candidate{Label: label, Score: 1.0, IsManualEdit: true}
}

// Parse extracts a label from classifier text such as "SDG 7" or "Goal 13: Climate".
// It prefers the number following a leading "SDG", else the first integer in the text.
func Parse(text string) (Label, bool) {
	var digits string
	if m := sdgPattern.FindStringSubmatch(text); m != nil {
		digits = m[1]
	} else if m := digitPattern.FindString(text); m != "" {
		digits = m
	} else {
		return 0, false
	}

	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}

	l := Label(n)
	return l, l.Valid()
}

// Normalize parses predictions, drops unusable entries, and returns at most three
// candidates ordered by descending score with ranks 1..k. Equal scores keep input order.
func Normalize(predictions []Prediction) []Candidate {
	out := make([]Candidate, 0, len(predictions))
	for _, p := range predictions {
		if math.IsNaN(p.Score) {
			continue
		}
		l, ok := Parse(p.Label)
		if !ok {
			continue
		}
		out = append(out, Candidate{Label: l, Score: p.Score})
	}

	slices.SortStableFunc(out, func(a, b Candidate) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})

	if len(out) > MaxCandidates {
		out = out[:MaxCandidates]
	}
	return rank(out)
}

// Dedupe keeps the first occurrence of each label and re-ranks the survivors.
func Dedupe(candidates []Candidate) []Candidate {
	seen := make(map[Label]bool, len(candidates))
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if seen[c.Label] {
			continue
		}
		seen[c.Label] = true
		out = append(out, c)
	}
	return rank(out)
}

func rank(candidates []Candidate) []Candidate {
	for i := range candidates {
		candidates[i].Rank = i + 1
	}
	return candidates
}

// Labels returns the label of each candidate in order.
func Labels(candidates []Candidate) []Label {
	out := make([]Label, len(candidates))
	for i, c := range candidates {
		out[i] = c.Label
	}
	return out
}

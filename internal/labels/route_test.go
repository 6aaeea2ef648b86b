package labels_test

import (
	"reflect"
	"testing"

	"github.com/JaimeStill/sdgindex/internal/labels"
)

func TestQualifies(t *testing.T) {
	tests := []struct {
		name string
		c    labels.Candidate
		want bool
	}{
		{"below threshold", labels.Candidate{Score: 0.7499}, false},
		{"at threshold", labels.Candidate{Score: 0.75}, true},
		{"certain", labels.Candidate{Score: 1.0}, true},
		{"manual edit with low score", labels.Candidate{Score: 0.01, IsManualEdit: true}, true},
		{"manual edit with zero score", labels.Candidate{IsManualEdit: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := labels.Qualifies(tt.c); got != tt.want {
				t.Errorf("Qualifies(%+v) = %v, want %v", tt.c, got, tt.want)
			}
		})
	}
}

func TestRouteLowScoresUnprivileged(t *testing.T) {
	for score := 0.0; score < labels.Threshold; score += 0.05 {
		cands := []labels.Candidate{{Label: 4, Score: score, Rank: 1}}
		d := labels.Route(cands, false)
		if d.Status != labels.StatusPendingReview {
			t.Errorf("score %.2f: status = %s, want pending_review", score, d.Status)
		}
	}
}

func TestRoute(t *testing.T) {
	high := labels.Candidate{Label: 7, Score: 0.9, Rank: 1}
	low := labels.Candidate{Label: 13, Score: 0.4, Rank: 2}
	lower := labels.Candidate{Label: 6, Score: 0.2, Rank: 3}
	manual := labels.Candidate{Label: 1, Score: 0.1, Rank: 2, IsManualEdit: true}

	tests := []struct {
		name       string
		cands      []labels.Candidate
		privileged bool
		want       labels.Decision
	}{
		{
			name:  "unprivileged with qualifying",
			cands: []labels.Candidate{high, low},
			want:  labels.Decision{Status: labels.StatusApproved, Mappings: []labels.Candidate{high}},
		},
		{
			name:  "unprivileged without qualifying keeps every candidate",
			cands: []labels.Candidate{low, lower},
			want:  labels.Decision{Status: labels.StatusPendingReview, Mappings: []labels.Candidate{low, lower}},
		},
		{
			name:  "unprivileged manual edit qualifies",
			cands: []labels.Candidate{low, manual},
			want:  labels.Decision{Status: labels.StatusApproved, Mappings: []labels.Candidate{manual}},
		},
		{
			name:       "privileged drops low confidence",
			cands:      []labels.Candidate{high, low},
			privileged: true,
			want:       labels.Decision{Status: labels.StatusApproved, Mappings: []labels.Candidate{high}},
		},
		{
			name:       "privileged approves with nothing qualifying",
			cands:      []labels.Candidate{low, lower},
			privileged: true,
			want:       labels.Decision{Status: labels.StatusApproved, Mappings: []labels.Candidate{}},
		},
		{
			name:  "empty unprivileged",
			cands: []labels.Candidate{},
			want:  labels.Decision{Status: labels.StatusPendingReview, Mappings: []labels.Candidate{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := labels.Route(tt.cands, tt.privileged)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Route() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRouteCapsMappings(t *testing.T) {
	cands := []labels.Candidate{
		labels.ManualEdit(1), labels.ManualEdit(2), labels.ManualEdit(3), labels.ManualEdit(4),
	}
	d := labels.Route(cands, false)
	if len(d.Mappings) != labels.MaxCandidates {
		t.Errorf("len(Mappings) = %d, want %d", len(d.Mappings), labels.MaxCandidates)
	}
	if d.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", d.Dropped)
	}

	if d := labels.Route(cands[:2], false); d.Dropped != 0 {
		t.Errorf("Dropped = %d, want 0 under the cap", d.Dropped)
	}
}

func TestNoRelevantTags(t *testing.T) {
	if d := labels.NoRelevantTags(true); d.Status != labels.StatusApproved || len(d.Mappings) != 0 {
		t.Errorf("privileged = %+v", d)
	}
	if d := labels.NoRelevantTags(false); d.Status != labels.StatusPendingReview || len(d.Mappings) != 0 {
		t.Errorf("unprivileged = %+v", d)
	}
}

func TestMethodFor(t *testing.T) {
	tests := []struct {
		name       string
		c          labels.Candidate
		privileged bool
		want       labels.Method
	}{
		{"auto", labels.Candidate{Score: 0.9}, false, labels.MethodAuto},
		{"override", labels.Candidate{Score: 0.9}, true, labels.MethodAdminOverride},
		{"manual beats override", labels.ManualEdit(3), true, labels.MethodManualEdit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := labels.MethodFor(tt.c, tt.privileged); got != tt.want {
				t.Errorf("MethodFor() = %s, want %s", got, tt.want)
			}
		})
	}
}

package labels_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/JaimeStill/sdgindex/internal/labels"
)

func TestParseSet(t *testing.T) {
	tests := []struct {
		raw     string
		want    labels.Set
		wantErr error
	}{
		{"3,7", labels.Set{3, 7}, nil},
		{" 7 , 3 ,7", labels.Set{3, 7}, nil},
		{"3,99,x", labels.Set{3}, nil},
		{"", nil, labels.ErrEmptySet},
		{"0,17", nil, labels.ErrEmptySet},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := labels.ParseSet(tt.raw)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ParseSet(%q) error = %v, want %v", tt.raw, err, tt.wantErr)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseSet(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestSetMatchedBy(t *testing.T) {
	s, err := labels.NewSet(3, 7)
	if err != nil {
		t.Fatal(err)
	}

	corpus := map[string][]labels.Label{
		"A": {3, 7},
		"B": {3},
		"C": {9, 7, 3},
	}

	var matched []string
	for _, name := range []string{"A", "B", "C"} {
		if s.MatchedBy(corpus[name]) {
			matched = append(matched, name)
		}
	}

	if !reflect.DeepEqual(matched, []string{"A", "C"}) {
		t.Errorf("matched = %v, want [A C]", matched)
	}
}

func TestSetArgs(t *testing.T) {
	s, _ := labels.NewSet(7, 3)
	if got := s.Args(); !reflect.DeepEqual(got, []any{3, 7}) {
		t.Errorf("Args() = %v", got)
	}
	if got := s.String(); got != "{3,7}" {
		t.Errorf("String() = %q", got)
	}
}

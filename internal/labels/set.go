package labels

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ErrEmptySet indicates a label filter with no valid labels.
var ErrEmptySet = errors.New("at least one valid SDG label is required")

// Set is a deduplicated, ascending set of labels used as an exact-match filter.
type Set []Label

// ParseSet parses a comma separated list such as "3,7". Entries outside [1, 16]
// or that are not integers are dropped; duplicates collapse.
func ParseSet(raw string) (Set, error) {
	var ls []Label
	for part := range strings.SplitSeq(raw, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		ls = append(ls, Label(n))
	}
	return NewSet(ls...)
}

// NewSet builds a Set from labels, filtering invalid ones.
func NewSet(ls ...Label) (Set, error) {
	s := make(Set, 0, len(ls))
	for _, l := range ls {
		if l.Valid() && !slices.Contains(s, l) {
			s = append(s, l)
		}
	}
	if len(s) == 0 {
		return nil, ErrEmptySet
	}
	slices.Sort(s)
	return s, nil
}

// MatchedBy reports whether a record carrying labels has every label in s.
func (s Set) MatchedBy(labels []Label) bool {
	for _, l := range s {
		if !slices.Contains(labels, l) {
			return false
		}
	}
	return true
}

// Args returns the set as query arguments.
func (s Set) Args() []any {
	args := make([]any, len(s))
	for i, l := range s {
		args[i] = int(l)
	}
	return args
}

func (s Set) String() string {
	parts := make([]string, len(s))
	for i, l := range s {
		parts[i] = strconv.Itoa(int(l))
	}
	return fmt.Sprintf("{%s}", strings.Join(parts, ","))
}

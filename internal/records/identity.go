package records

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Identity is the case-insensitive (title, author) key used for duplicate detection.
type Identity struct {
	Title  string
	Author string
}

// IdentityOf folds title and author to their comparison form.
func IdentityOf(title, author string) Identity {
	return Identity{Title: fold(title), Author: fold(author)}
}

func fold(s string) string {
	s = strings.Join(strings.Fields(norm.NFC.String(s)), " ")
	// a Caser is stateful and must not be shared
	return cases.Fold().String(s)
}

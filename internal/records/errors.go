package records

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Domain errors for record operations.
var (
	ErrNotFound      = errors.New("record not found")
	ErrDuplicate     = errors.New("record with this title and author already exists")
	ErrIngestion     = errors.New("record ingestion failed")
	ErrValidation    = errors.New("invalid record")
	ErrInvalidLabels = errors.New("invalid label filter")
)

// ValidationError lists the fields that failed validation, by JSON name.
type ValidationError struct {
	Missing []string `json:"missing,omitempty"`
	Invalid []string `json:"invalid,omitempty"`
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid "+strings.Join(e.Invalid, ", "))
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// MapHTTPStatus maps record domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidLabels):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

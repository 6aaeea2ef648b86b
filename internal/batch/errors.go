package batch

import (
	"errors"
	"net/http"
)

// Batch errors.
var (
	ErrClassifierUnavailable = errors.New("classifier unreachable at batch start")
	ErrInvalidTransition     = errors.New("invalid batch state transition")
	ErrEmptySelection        = errors.New("no records selected")
	ErrInvalidSelection      = errors.New("selection references a missing row")
	ErrInvalidEdit           = errors.New("invalid label edit")
	ErrMissingColumns        = errors.New("input is missing required columns")
	ErrInvalidFile           = errors.New("invalid input file")
	ErrFileTooLarge          = errors.New("input file exceeds maximum upload size")
)

// MapHTTPStatus maps batch errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrMissingColumns), errors.Is(err, ErrInvalidFile):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

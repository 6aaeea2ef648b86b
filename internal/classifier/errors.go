package classifier

import (
	"errors"
	"net/http"
)

// Classifier errors. ErrUnavailable and ErrUnexpectedResponse are both retryable by the caller.
var (
	ErrUnavailable        = errors.New("classifier unavailable")
	ErrUnexpectedResponse = errors.New("unexpected classifier response")
	ErrNotConfigured      = errors.New("classifier endpoint not configured")
	ErrEmptyText          = errors.New("text to classify is empty")
)

// MapHTTPStatus maps classifier errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrEmptyText):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrUnavailable), errors.Is(err, ErrUnexpectedResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

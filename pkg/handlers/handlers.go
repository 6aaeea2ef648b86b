// Package handlers provides JSON response helpers shared by domain HTTP handlers.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorResponse is the JSON body written by RespondError.
// Retryable marks failures of an upstream dependency that the caller may retry.
type ErrorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

// RespondJSON writes data as JSON with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError logs err and writes it as a JSON error body with the given status code.
// Server errors are logged at error level, client errors at warn level.
func RespondError(w http.ResponseWriter, logger *slog.Logger, status int, err error) {
	logFailure(logger, status, err)
	RespondJSON(w, status, ErrorResponse{Error: err.Error()})
}

// RespondRetryable writes err as a retryable error body.
func RespondRetryable(w http.ResponseWriter, logger *slog.Logger, status int, err error) {
	logFailure(logger, status, err)
	RespondJSON(w, status, ErrorResponse{Error: err.Error(), Retryable: true})
}

func logFailure(logger *slog.Logger, status int, err error) {
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Warn("request rejected", "status", status, "error", err)
	}
}

package batch

import (
	"log/slog"
	"net/http"

	"github.com/JaimeStill/sdgindex/pkg/formatting"
	"github.com/JaimeStill/sdgindex/pkg/handlers"
	"github.com/JaimeStill/sdgindex/pkg/routes"
)

// Handler exposes batch input validation over HTTP.
type Handler struct {
	logger        *slog.Logger
	maxUploadSize int64
}

// Validation is the parsed content of an uploaded batch file.
type Validation struct {
	Rows      []Input `json:"rows"`
	Valid     int     `json:"valid"`
	Invalid   int     `json:"invalid"`
	Selection []int   `json:"selection"`
}

// NewHandler creates a Handler with the given logger and upload limit.
func NewHandler(logger *slog.Logger, maxUploadSize int64) *Handler {
	return &Handler{
		logger:        logger.With("handler", "batch"),
		maxUploadSize: maxUploadSize,
	}
}

// Routes returns the route group definition for batch endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/batch",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "/validate", Handler: h.Validate},
		},
	}
}

// Validate parses a multipart CSV upload in the "file" field and reports
// each row with its validation errors and the default selection.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		handlers.RespondError(w, h.logger, http.StatusRequestEntityTooLarge, ErrFileTooLarge)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidFile)
		return
	}
	defer file.Close()

	inputs, err := ParseInput(file)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	selection := DefaultSelection(inputs)
	h.logger.Info(
		"batch file validated",
		"file", header.Filename,
		"size", formatting.FormatBytes(header.Size, 1),
		"rows", len(inputs),
		"valid", len(selection),
	)

	handlers.RespondJSON(w, http.StatusOK, Validation{
		Rows:      inputs,
		Valid:     len(selection),
		Invalid:   len(inputs) - len(selection),
		Selection: selection,
	})
}

package records

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/sdgindex/internal/labels"
	"github.com/JaimeStill/sdgindex/pkg/handlers"
	"github.com/JaimeStill/sdgindex/pkg/middleware"
	"github.com/JaimeStill/sdgindex/pkg/pagination"
	"github.com/JaimeStill/sdgindex/pkg/routes"
)

// Handler provides HTTP endpoints for record operations.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

type validationResponse struct {
	Error string `json:"error"`
	*ValidationError
}

// NewHandler creates a Handler with the given system, logger, and pagination config.
func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "records"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for record endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/records",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "POST", Pattern: "", Handler: h.Ingest},
			{Method: "GET", Pattern: "/search", Handler: h.Search},
			{Method: "GET", Pattern: "/labels", Handler: h.LabelCounts},
			{Method: "GET", Pattern: "/dashboard", Handler: h.Dashboard},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find},
		},
	}
}

// Ingest stores a reviewed submission. Caller privilege comes from the request context.
// A duplicate without force responds 409 with the conflicting record.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	var in Ingestion
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrValidation)
		return
	}

	result, err := h.sys.Ingest(r.Context(), in, middleware.IsPrivileged(r.Context()))
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			h.logger.Warn("request rejected", "status", http.StatusBadRequest, "error", err)
			handlers.RespondJSON(w, http.StatusBadRequest, validationResponse{
				Error:           ErrValidation.Error(),
				ValidationError: verr,
			})
			return
		}
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	if result.Conflict != nil {
		handlers.RespondJSON(w, http.StatusConflict, result)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, result)
}

// List returns a paginated list of records with optional query parameter filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := FiltersFromQuery(r.URL.Query())

	result, err := h.sys.List(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Find returns a single record with its mappings by UUID path parameter.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrNotFound)
		return
	}

	rec, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, rec)
}

// Search returns approved records carrying every label in the labels query parameter.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	set, err := labels.ParseSet(r.URL.Query().Get("labels"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errors.Join(ErrInvalidLabels, err))
		return
	}

	recs, err := h.sys.Search(r.Context(), set)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, recs)
}

// LabelCounts returns approved record counts for every label.
func (h *Handler) LabelCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.sys.LabelCounts(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, counts)
}

// Dashboard returns label counts with approved and pending totals.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.sys.Dashboard(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, d)
}

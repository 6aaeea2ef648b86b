package classifier

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/JaimeStill/sdgindex/internal/labels"
	"github.com/JaimeStill/sdgindex/pkg/handlers"
	"github.com/JaimeStill/sdgindex/pkg/middleware"
	"github.com/JaimeStill/sdgindex/pkg/routes"
)

// Handler exposes single-abstract classification over HTTP.
type Handler struct {
	client Client
	logger *slog.Logger
}

// ClassifyRequest is the body of a classify call.
type ClassifyRequest struct {
	Abstract string `json:"abstract"`
}

// Classification is the normalized classifier output for one abstract, with the
// status the record would receive if saved by the caller unchanged.
type Classification struct {
	Candidates []labels.Candidate `json:"candidates"`
	Status     labels.Status      `json:"status"`
}

// NewHandler creates a Handler with the given client and logger.
func NewHandler(client Client, logger *slog.Logger) *Handler {
	return &Handler{
		client: client,
		logger: logger.With("handler", "classifier"),
	}
}

// Routes returns the route group definition for classification.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/records",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "/classify", Handler: h.Classify},
		},
	}
}

// Classify runs the classifier on an abstract and returns up to three ranked candidates.
// Classifier failures respond 502 with a retryable error body.
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrEmptyText)
		return
	}

	preds, err := h.client.Classify(r.Context(), req.Abstract)
	if err != nil {
		status := MapHTTPStatus(err)
		if status == http.StatusBadGateway {
			handlers.RespondRetryable(w, h.logger, status, err)
			return
		}
		handlers.RespondError(w, h.logger, status, err)
		return
	}

	candidates := labels.Dedupe(labels.Normalize(preds))
	decision := labels.Route(candidates, middleware.IsPrivileged(r.Context()))

	handlers.RespondJSON(w, http.StatusOK, Classification{
		Candidates: candidates,
		Status:     decision.Status,
	})
}

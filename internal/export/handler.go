package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"time"

	"github.com/JaimeStill/sdgindex/internal/labels"
	"github.com/JaimeStill/sdgindex/internal/records"
	"github.com/JaimeStill/sdgindex/pkg/handlers"
	"github.com/JaimeStill/sdgindex/pkg/routes"
	"github.com/JaimeStill/sdgindex/pkg/storage"
)

// ArchivePrefix is the blob key prefix under which archived exports are stored.
const ArchivePrefix = "exports/"

// Searcher is the record search used to build exports.
type Searcher interface {
	Search(ctx context.Context, set labels.Set) ([]records.Record, error)
}

// Archive describes an export uploaded to blob storage.
type Archive struct {
	Key     string `json:"key"`
	Records int    `json:"records"`
	Format  Format `json:"format"`
}

// Handler serves search exports. Blobs may be nil, in which case archiving
// responds 503.
type Handler struct {
	search Searcher
	blobs  storage.System
	writer Writer
	logger *slog.Logger
	now    func() time.Time
}

// NewHandler creates a Handler.
func NewHandler(search Searcher, blobs storage.System, writer Writer, logger *slog.Logger) *Handler {
	return &Handler{
		search: search,
		blobs:  blobs,
		writer: writer,
		logger: logger.With("handler", "export"),
		now:    time.Now,
	}
}

// Routes returns the route group definition for export endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/records/export",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.Download},
			{Method: "POST", Pattern: "/archive", Handler: h.Archive},
		},
	}
}

// Download writes the export of the labels query as an attachment.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	out, err := h.render(r)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.Header().Set("Content-Type", out.format.ContentType())
	w.Header().Set(
		"Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", out.filename),
	)
	w.WriteHeader(http.StatusOK)
	w.Write(out.body)

	h.logger.Info("export downloaded", "file", out.filename, "records", out.count)
}

// Archive uploads the export of the labels query to blob storage.
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	if h.blobs == nil {
		handlers.RespondError(w, h.logger, http.StatusServiceUnavailable, storage.ErrNotConfigured)
		return
	}

	out, err := h.render(r)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	key := path.Join(ArchivePrefix, out.filename)
	if err := h.blobs.Upload(r.Context(), key, bytes.NewReader(out.body), out.format.ContentType()); err != nil {
		handlers.RespondError(w, h.logger, storage.MapHTTPStatus(err), err)
		return
	}

	h.logger.Info("export archived", "key", key, "records", out.count)
	handlers.RespondJSON(w, http.StatusCreated, Archive{Key: key, Records: out.count, Format: out.format})
}

type rendered struct {
	format   Format
	filename string
	body     []byte
	count    int
}

func (h *Handler) render(r *http.Request) (*rendered, error) {
	q := r.URL.Query()
	f, err := ParseFormat(q.Get("format"))
	if err != nil {
		return nil, err
	}

	set, err := labels.ParseSet(q.Get("labels"))
	if err != nil {
		return nil, errors.Join(records.ErrInvalidLabels, err)
	}

	recs, err := h.search.Search(r.Context(), set)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrNoResults
	}

	var buf bytes.Buffer
	if err := h.writer.Write(&buf, f, recs); err != nil {
		return nil, err
	}

	return &rendered{
		format:   f,
		filename: Filename(set, h.now(), f),
		body:     buf.Bytes(),
		count:    len(recs),
	}, nil
}

// MapHTTPStatus maps export errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidFormat), errors.Is(err, records.ErrInvalidLabels):
		return http.StatusBadRequest
	case errors.Is(err, ErrNoResults):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

package records_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/JaimeStill/sdgindex/internal/labels"
	"github.com/JaimeStill/sdgindex/internal/records"
	"github.com/JaimeStill/sdgindex/pkg/middleware"
	"github.com/JaimeStill/sdgindex/pkg/pagination"
)

type mockSystem struct {
	ingestFn      func(ctx context.Context, in records.Ingestion, privileged bool) (*records.IngestResult, error)
	listFn        func(ctx context.Context, page pagination.PageRequest, filters records.Filters) (*pagination.PageResult[records.Record], error)
	findFn        func(ctx context.Context, id uuid.UUID) (*records.Record, error)
	searchFn      func(ctx context.Context, set labels.Set) ([]records.Record, error)
	labelCountsFn func(ctx context.Context) ([]records.LabelCount, error)
	dashboardFn   func(ctx context.Context) (*records.Dashboard, error)
}

func (m *mockSystem) Handler() *records.Handler {
	return newTestHandler(m)
}

func (m *mockSystem) Ingest(ctx context.Context, in records.Ingestion, privileged bool) (*records.IngestResult, error) {
	return m.ingestFn(ctx, in, privileged)
}

func (m *mockSystem) List(ctx context.Context, page pagination.PageRequest, filters records.Filters) (*pagination.PageResult[records.Record], error) {
	return m.listFn(ctx, page, filters)
}

func (m *mockSystem) Find(ctx context.Context, id uuid.UUID) (*records.Record, error) {
	return m.findFn(ctx, id)
}

func (m *mockSystem) Search(ctx context.Context, set labels.Set) ([]records.Record, error) {
	return m.searchFn(ctx, set)
}

func (m *mockSystem) LabelCounts(ctx context.Context) ([]records.LabelCount, error) {
	return m.labelCountsFn(ctx)
}

func (m *mockSystem) Dashboard(ctx context.Context) (*records.Dashboard, error) {
	return m.dashboardFn(ctx)
}

func newTestHandler(sys records.System) *records.Handler {
	return records.NewHandler(
		sys,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		pagination.Config{DefaultPageSize: 20, MaxPageSize: 100},
	)
}

func setupMux(h *records.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	group := h.Routes()
	for _, route := range group.Routes {
		pattern := route.Method + " " + group.Prefix + route.Pattern
		mux.HandleFunc(pattern, route.Handler)
	}
	return mux
}

func ingestBody(t *testing.T, in records.Ingestion) io.Reader {
	t.Helper()
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	return bytes.NewReader(b)
}

func TestHandlerIngest(t *testing.T) {
	id := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	in := records.Ingestion{Submission: submission()}

	tests := []struct {
		name       string
		privileged bool
		result     *records.IngestResult
		err        error
		wantStatus int
	}{
		{
			name:       "created",
			result:     &records.IngestResult{ID: id, Status: labels.StatusApproved, Saved: 1},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "privileged caller",
			privileged: true,
			result:     &records.IngestResult{ID: id, Status: labels.StatusApproved},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "conflict",
			result:     &records.IngestResult{Conflict: &records.Conflict{ExistingID: id}},
			wantStatus: http.StatusConflict,
		},
		{
			name:       "race lost to unique index",
			err:        errors.Join(records.ErrIngestion, records.ErrDuplicate),
			wantStatus: http.StatusConflict,
		},
		{
			name:       "storage failure",
			err:        records.ErrIngestion,
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPrivileged bool
			sys := &mockSystem{
				ingestFn: func(_ context.Context, _ records.Ingestion, privileged bool) (*records.IngestResult, error) {
					gotPrivileged = privileged
					return tt.result, tt.err
				},
			}
			mux := setupMux(newTestHandler(sys))

			req := httptest.NewRequest("POST", "/records", ingestBody(t, in))
			req = req.WithContext(middleware.WithPrivilege(req.Context(), tt.privileged))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if gotPrivileged != tt.privileged {
				t.Errorf("privileged = %v, want %v", gotPrivileged, tt.privileged)
			}
		})
	}
}

func TestHandlerIngestValidation(t *testing.T) {
	sys := &mockSystem{
		ingestFn: func(_ context.Context, _ records.Ingestion, _ bool) (*records.IngestResult, error) {
			return nil, &records.ValidationError{Missing: []string{"title"}, Invalid: []string{"url"}}
		},
	}
	mux := setupMux(newTestHandler(sys))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/records", ingestBody(t, records.Ingestion{})))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	var body struct {
		Error   string   `json:"error"`
		Missing []string `json:"missing"`
		Invalid []string `json:"invalid"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Missing) != 1 || body.Missing[0] != "title" {
		t.Errorf("missing = %v, want [title]", body.Missing)
	}
	if len(body.Invalid) != 1 || body.Invalid[0] != "url" {
		t.Errorf("invalid = %v, want [url]", body.Invalid)
	}
}

func TestHandlerIngestMalformedBody(t *testing.T) {
	sys := &mockSystem{
		ingestFn: func(_ context.Context, _ records.Ingestion, _ bool) (*records.IngestResult, error) {
			t.Fatal("Ingest called for malformed body")
			return nil, nil
		},
	}
	mux := setupMux(newTestHandler(sys))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/records", bytes.NewBufferString("{")))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandlerSearch(t *testing.T) {
	var captured labels.Set
	sys := &mockSystem{
		searchFn: func(_ context.Context, set labels.Set) ([]records.Record, error) {
			captured = set
			return []records.Record{{Title: "A"}}, nil
		},
	}
	mux := setupMux(newTestHandler(sys))

	t.Run("parses label set", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", "/records/search?labels=7,3,7,99", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if captured.String() != "{3,7}" {
			t.Errorf("set = %s, want {3,7}", captured)
		}
	})

	t.Run("rejects empty set", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", "/records/search?labels=0,42", nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestHandlerFind(t *testing.T) {
	id := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	sys := &mockSystem{
		findFn: func(_ context.Context, got uuid.UUID) (*records.Record, error) {
			if got != id {
				return nil, records.ErrNotFound
			}
			return &records.Record{ID: id}, nil
		},
	}
	mux := setupMux(newTestHandler(sys))

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{"found", "/records/" + id.String(), http.StatusOK},
		{"not found", "/records/" + uuid.New().String(), http.StatusNotFound},
		{"invalid id", "/records/not-a-uuid", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest("GET", tt.path, nil))
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestHandlerListFilters(t *testing.T) {
	var captured records.Filters
	sys := &mockSystem{
		listFn: func(_ context.Context, _ pagination.PageRequest, f records.Filters) (*pagination.PageResult[records.Record], error) {
			captured = f
			result := pagination.NewPageResult([]records.Record{}, 0, 1, 20)
			return &result, nil
		},
	}
	mux := setupMux(newTestHandler(sys))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/records?status=approved&year=2021&department_id=x", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if captured.Status == nil || *captured.Status != "approved" {
		t.Errorf("status filter = %v", captured.Status)
	}
	if captured.Year == nil || *captured.Year != 2021 {
		t.Errorf("year filter = %v", captured.Year)
	}
	if captured.DepartmentID != nil {
		t.Errorf("department filter = %v, want nil for non-numeric", *captured.DepartmentID)
	}
}

func TestHandlerListYearRange(t *testing.T) {
	var captured records.Filters
	sys := &mockSystem{
		listFn: func(_ context.Context, _ pagination.PageRequest, f records.Filters) (*pagination.PageResult[records.Record], error) {
			captured = f
			result := pagination.NewPageResult([]records.Record{}, 0, 1, 20)
			return &result, nil
		},
	}
	mux := setupMux(newTestHandler(sys))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/records?year_from=2018&year_to=2022", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if captured.YearFrom == nil || *captured.YearFrom != 2018 {
		t.Errorf("year_from filter = %v", captured.YearFrom)
	}
	if captured.YearTo == nil || *captured.YearTo != 2022 {
		t.Errorf("year_to filter = %v", captured.YearTo)
	}
	if captured.Year != nil {
		t.Errorf("year filter = %v, want nil", *captured.Year)
	}
}

func TestHandlerLabelCounts(t *testing.T) {
	sys := &mockSystem{
		labelCountsFn: func(_ context.Context) ([]records.LabelCount, error) {
			return nil, errors.New("db down")
		},
	}
	mux := setupMux(newTestHandler(sys))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/records/labels", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestIdentityOf(t *testing.T) {
	tests := []struct {
		name          string
		title, author string
		wantTitle     string
		wantAuthor    string
	}{
		{"case folded", "Water SECURITY", "Doe, Jane", "water security", "doe, jane"},
		{"whitespace collapsed", "  Water \t  Security ", "Doe,  Jane", "water security", "doe, jane"},
		{"sharp s folded", "Straße", "Groß", "strasse", "gross"},
		{"composed and decomposed agree", "Café", "José", "café", "josé"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := records.IdentityOf(tt.title, tt.author)
			if got.Title != tt.wantTitle || got.Author != tt.wantAuthor {
				t.Errorf("IdentityOf() = %+v, want {%s %s}", got, tt.wantTitle, tt.wantAuthor)
			}
		})
	}
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{records.ErrNotFound, http.StatusNotFound},
		{records.ErrDuplicate, http.StatusConflict},
		{&records.ValidationError{Missing: []string{"title"}}, http.StatusBadRequest},
		{records.ErrInvalidLabels, http.StatusBadRequest},
		{records.ErrIngestion, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := records.MapHTTPStatus(tt.err); got != tt.want {
				t.Errorf("MapHTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

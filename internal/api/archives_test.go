package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JaimeStill/sdgindex/pkg/lifecycle"
	"github.com/JaimeStill/sdgindex/pkg/storage"
)

type fakeStore struct {
	blobs      map[string]string
	listPrefix string
}

func (f *fakeStore) Start(*lifecycle.Coordinator) error { return nil }

func (f *fakeStore) Upload(_ context.Context, key string, r io.Reader, _ string) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.blobs[key] = string(b)
	return nil
}

func (f *fakeStore) Download(_ context.Context, key string) (*storage.BlobResult, error) {
	body, ok := f.blobs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &storage.BlobResult{
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentType:   "text/csv; charset=utf-8",
		ContentLength: int64(len(body)),
	}, nil
}

func (f *fakeStore) Find(_ context.Context, key string) (*storage.BlobMeta, error) {
	body, ok := f.blobs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &storage.BlobMeta{Key: key, ContentLength: int64(len(body))}, nil
}

func (f *fakeStore) List(_ context.Context, prefix, _ string, _ int32) (*storage.BlobList, error) {
	f.listPrefix = prefix
	list := &storage.BlobList{Blobs: []storage.BlobMeta{}}
	for key := range f.blobs {
		if strings.HasPrefix(key, prefix) {
			list.Blobs = append(list.Blobs, storage.BlobMeta{Key: key})
		}
	}
	return list, nil
}

func (f *fakeStore) Delete(_ context.Context, key string) error {
	if _, ok := f.blobs[key]; !ok {
		return storage.ErrNotFound
	}
	delete(f.blobs, key)
	return nil
}

func setupArchives(store *fakeStore) *http.ServeMux {
	h := newArchiveHandler(store, slog.New(slog.NewTextHandler(io.Discard, nil)), 50)
	mux := http.NewServeMux()
	group := h.routes()
	for _, route := range group.Routes {
		mux.HandleFunc(route.Method+" "+group.Prefix+route.Pattern, route.Handler)
	}
	return mux
}

func TestArchiveList(t *testing.T) {
	store := &fakeStore{blobs: map[string]string{
		"exports/sdg_search_3_2026-01-15.csv": "Record ID",
		"checkpoints/sdg_bulk_progress.json":  "{}",
	}}
	mux := setupArchives(store)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/exports", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if store.listPrefix != "exports/" {
		t.Errorf("list prefix = %q, want exports/", store.listPrefix)
	}
	if strings.Contains(rec.Body.String(), "checkpoints/") {
		t.Error("listing leaked keys outside the export prefix")
	}
}

func TestArchiveListInvalidMaxResults(t *testing.T) {
	mux := setupArchives(&fakeStore{blobs: map[string]string{}})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/exports?max_results=abc", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestArchiveDownload(t *testing.T) {
	store := &fakeStore{blobs: map[string]string{
		"exports/sdg_search_3_2026-01-15.csv": "Record ID,Title\n",
	}}
	mux := setupArchives(store)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/exports/download/sdg_search_3_2026-01-15.csv", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "sdg_search_3_2026-01-15.csv") {
		t.Errorf("Content-Disposition = %q", got)
	}
	if rec.Body.String() != "Record ID,Title\n" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestArchiveFindAndDelete(t *testing.T) {
	store := &fakeStore{blobs: map[string]string{
		"exports/a.bib": "@mastersthesis{}",
	}}
	mux := setupArchives(store)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"find", "GET", "/exports/a.bib", http.StatusOK},
		{"find missing", "GET", "/exports/b.bib", http.StatusNotFound},
		{"delete", "DELETE", "/exports/a.bib", http.StatusNoContent},
		{"delete again", "DELETE", "/exports/a.bib", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgallion1/manualindex/internal/cache"
	"github.com/dgallion1/manualindex/internal/cleaner"
	"github.com/dgallion1/manualindex/internal/config"
	"github.com/dgallion1/manualindex/internal/imaging"
	"github.com/dgallion1/manualindex/internal/parser"
	"github.com/dgallion1/manualindex/internal/pipeline"
	"github.com/dgallion1/manualindex/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := config.Load()
	cfg.APIKey = "test-key"
	cfg.LibraryDir = t.TempDir()
	cfg.ImagesDir = t.TempDir()
	cfg.DocTimeout = time.Minute

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), cfg.CompanyName)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	c, err := cache.New(t.TempDir(), true)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	w := pipeline.NewWorker(parser.NewPDFDecoder(log), c, cleaner.New(),
		imaging.NewCodec(imaging.DefaultConfig()), st, log, cfg)
	orch := pipeline.NewOrchestrator(w, log)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)

	return NewServer(orch, st, log, cfg)
}

func authGet(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer test-key")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHealthIsPublic(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("Authorization", "Bearer wrong-key")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong key, got %d", rec.Code)
	}
}

func TestAuthRefusesWithoutConfiguredKey(t *testing.T) {
	h := requireAPIKey("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// An empty bearer token must not match an empty configured key.
	for _, auth := range []string{"", "Bearer ", "Bearer anything"} {
		req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("auth %q: expected 503 with no key configured, got %d", auth, rec.Code)
		}
	}
}

func TestIngestRejectsNonPDF(t *testing.T) {
	s := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "notes.txt")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write([]byte("plain text"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/ingest", &body)
	req.Header.Set("Authorization", "Bearer test-key")
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-pdf, got %d", rec.Code)
	}
}

func TestIngestAcceptsPDFUpload(t *testing.T) {
	s := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "manual.pdf")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write([]byte("%PDF-1.4 stub"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/ingest", &body)
	req.Header.Set("Authorization", "Bearer test-key")
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	jobID, _ := resp["job_id"].(string)
	if jobID == "" {
		t.Fatal("expected job_id in response")
	}

	rec = authGet(t, s, "/api/jobs/"+jobID)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for job status, got %d", rec.Code)
	}
}

func TestBatchIngestSubmitsLibraryFiles(t *testing.T) {
	s := newTestServer(t)

	if err := os.WriteFile(filepath.Join(s.cfg.LibraryDir, "manual.pdf"), []byte("%PDF-1.4 stub"), 0o644); err != nil {
		t.Fatalf("write library file: %v", err)
	}

	body, _ := json.Marshal(map[string]any{
		"files": []string{"manual.pdf", "missing.pdf", "notes.txt"},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/ingest/batch", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer test-key")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Jobs []struct {
			Filename string `json:"filename"`
			JobID    string `json:"job_id"`
			Error    string `json:"error"`
		} `json:"jobs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if len(resp.Jobs) != 3 {
		t.Fatalf("expected 3 results, got %d", len(resp.Jobs))
	}
	for _, j := range resp.Jobs {
		switch j.Filename {
		case "manual.pdf":
			if j.JobID == "" || j.Error != "" {
				t.Errorf("manual.pdf: expected queued job, got %+v", j)
			}
		case "missing.pdf", "notes.txt":
			if j.Error == "" {
				t.Errorf("%s: expected error", j.Filename)
			}
		default:
			t.Errorf("unexpected filename %q", j.Filename)
		}
	}
}

func TestJobStatusNotFound(t *testing.T) {
	s := newTestServer(t)
	rec := authGet(t, s, "/api/jobs/nope")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestListDocumentsEmpty(t *testing.T) {
	s := newTestServer(t)
	rec := authGet(t, s, "/api/documents")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestStatsEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := authGet(t, s, "/api/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var rep pipeline.RunReport
	if err := json.Unmarshal(rec.Body.Bytes(), &rep); err != nil {
		t.Fatalf("parse stats: %v", err)
	}
}

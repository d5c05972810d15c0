package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgallion1/tocindex/internal/config"
	"github.com/dgallion1/tocindex/internal/doctree"
	"github.com/dgallion1/tocindex/internal/pipeline"
	"github.com/dgallion1/tocindex/internal/store"
)

const testKey = "test-key"

const sampleText = "Power Delivery Specification\f" +
	"Table of Contents\n1 Introduction ........ 3\n1.1 Scope ........ 3\n2 Power Contract\nNegotiation ......... 4\f" +
	"1 Introduction\nThis specification defines power rules.\n1.1 Scope\nTable 1-1 Voltages\f" +
	"2 Power Contract Negotiation\nThe sink requests power."

type fakeUnpublisher struct {
	calls []string
	err   error
}

func (f *fakeUnpublisher) Unpublish(_ context.Context, docID string) error {
	f.calls = append(f.calls, docID)
	return f.err
}

type testEnv struct {
	srv   *Server
	store *store.Store
	unpub *fakeUnpublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ix := pipeline.NewIndexer(pipeline.DefaultOptions(), log)
	orch := pipeline.NewOrchestrator(pipeline.OrchestratorConfig{WorkerCount: 1, MaxQueueSize: 4}, ix, st, nil, log)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)

	unpub := &fakeUnpublisher{}
	cfg := config.Config{APIKey: testKey, MaxUploadBytes: 1 << 20}
	return &testEnv{srv: NewServer(orch, st, unpub, log, cfg), store: st, unpub: unpub}
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+testKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
}

func upload(t *testing.T, fields map[string]string, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(content))
	mw.Close()
	return &buf, mw.FormDataContentType()
}

// ingest uploads sampleText and waits for the job to finish.
func (e *testEnv) ingest(t *testing.T, docID string) {
	t.Helper()
	body, ct := upload(t, map[string]string{"doc_id": docID, "tables": "1"}, "spec.txt", sampleText)
	rec := e.do(t, http.MethodPost, "/api/ingest", body, ct)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		JobID   string `json:"job_id"`
		DocID   string `json:"doc_id"`
		PollURL string `json:"poll_url"`
	}
	decode(t, rec, &resp)
	if resp.DocID != docID || resp.PollURL != "/api/ingest/"+resp.JobID+"/status" {
		t.Fatalf("unexpected ingest response %+v", resp)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		rec := e.do(t, http.MethodGet, resp.PollURL, nil, "")
		var snap pipeline.JobSnapshot
		decode(t, rec, &snap)
		if snap.Status == pipeline.StatusCompleted {
			return
		}
		if snap.Status == pipeline.StatusFailed || time.Now().After(deadline) {
			t.Fatalf("job did not complete: %+v", snap)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHealthIsPublic(t *testing.T) {
	env := newTestEnv(t)
	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong scheme", "Basic " + testKey},
		{"wrong key", "Bearer nope"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		rec := httptest.NewRecorder()
		env.srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", tt.name, rec.Code)
		}
	}
}

func TestIngest_Validation(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name     string
		fields   map[string]string
		filename string
	}{
		{"unsupported extension", nil, "spec.exe"},
		{"bad listing range", map[string]string{"listing_pages": "5-2"}, "spec.txt"},
		{"bad tables", map[string]string{"tables": "many"}, "spec.txt"},
		{"negative figures", map[string]string{"figures": "-1"}, "spec.txt"},
	}
	for _, tt := range tests {
		body, ct := upload(t, tt.fields, tt.filename, sampleText)
		rec := env.do(t, http.MethodPost, "/api/ingest", body, ct)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d: %s", tt.name, rec.Code, rec.Body.String())
		}
	}
}

func TestIngestStatus_Unknown(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/ingest/nope/status", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestIngestAndQuery(t *testing.T) {
	env := newTestEnv(t)
	env.ingest(t, "pd")

	t.Run("list", func(t *testing.T) {
		var resp struct {
			Documents []store.Document `json:"documents"`
		}
		decode(t, env.do(t, http.MethodGet, "/api/documents", nil, ""), &resp)
		if len(resp.Documents) != 1 || resp.Documents[0].ID != "pd" || resp.Documents[0].TotalPages != 4 {
			t.Errorf("unexpected documents %+v", resp.Documents)
		}
	})

	t.Run("summary", func(t *testing.T) {
		var sum map[string]any
		decode(t, env.do(t, http.MethodGet, "/api/documents/pd/summary", nil, ""), &sum)
		if sum["document_id"] != "pd" {
			t.Errorf("expected document_id pd, got %v", sum["document_id"])
		}
	})

	t.Run("report", func(t *testing.T) {
		var rep struct {
			Matches     []any `json:"matches"`
			OrderErrors []any `json:"order_errors"`
		}
		decode(t, env.do(t, http.MethodGet, "/api/documents/pd/report", nil, ""), &rep)
		if len(rep.Matches) != 3 || len(rep.OrderErrors) != 0 {
			t.Errorf("expected 3 matches and no order errors, got %+v", rep)
		}
	})

	t.Run("sections by level", func(t *testing.T) {
		var resp struct {
			Sections []struct {
				ID string `json:"section_id"`
			} `json:"sections"`
		}
		decode(t, env.do(t, http.MethodGet, "/api/documents/pd/sections?level=1", nil, ""), &resp)
		if len(resp.Sections) != 2 || resp.Sections[0].ID != "1" || resp.Sections[1].ID != "2" {
			t.Errorf("unexpected level-1 sections %+v", resp.Sections)
		}
	})

	t.Run("search", func(t *testing.T) {
		var resp struct {
			Hits []struct {
				Entry struct {
					ID string `json:"section_id"`
				} `json:"entry"`
			} `json:"hits"`
		}
		decode(t, env.do(t, http.MethodGet, "/api/documents/pd/sections?q=scope&fields=title", nil, ""), &resp)
		if len(resp.Hits) != 1 || resp.Hits[0].Entry.ID != "1.1" {
			t.Errorf("unexpected hits %+v", resp.Hits)
		}
	})

	t.Run("unknown field", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/documents/pd/sections?q=x&fields=colour", nil, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("content record", func(t *testing.T) {
		var rec struct {
			ID      string `json:"section_id"`
			Content string `json:"content"`
			Tables  []any  `json:"tables"`
		}
		decode(t, env.do(t, http.MethodGet, "/api/documents/pd/sections/1.1?tree=content", nil, ""), &rec)
		if rec.ID != "1.1" || len(rec.Tables) != 1 {
			t.Errorf("unexpected record %+v", rec)
		}
	})

	t.Run("children and path", func(t *testing.T) {
		var children struct {
			Sections []struct {
				ID string `json:"section_id"`
			} `json:"sections"`
		}
		decode(t, env.do(t, http.MethodGet, "/api/documents/pd/sections/1/children", nil, ""), &children)
		if len(children.Sections) != 1 || children.Sections[0].ID != "1.1" {
			t.Errorf("unexpected children %+v", children.Sections)
		}

		var path struct {
			Sections []struct {
				ID string `json:"section_id"`
			} `json:"sections"`
		}
		decode(t, env.do(t, http.MethodGet, "/api/documents/pd/sections/1.1/path", nil, ""), &path)
		if len(path.Sections) != 2 || path.Sections[0].ID != "1" {
			t.Errorf("unexpected path %+v", path.Sections)
		}
	})

	t.Run("unknown section", func(t *testing.T) {
		for _, p := range []string{"/sections/9", "/sections/9/children", "/sections/9/descendants", "/sections/9/path"} {
			rec := env.do(t, http.MethodGet, "/api/documents/pd"+p, nil, "")
			if rec.Code != http.StatusNotFound {
				t.Errorf("%s: expected 404, got %d", p, rec.Code)
			}
		}
	})

	t.Run("bad tree", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/documents/pd/sections?tree=index", nil, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("stats", func(t *testing.T) {
		var resp struct {
			TrackedJobs int `json:"tracked_jobs"`
		}
		decode(t, env.do(t, http.MethodGet, "/api/stats/jobs", nil, ""), &resp)
		if resp.TrackedJobs != 1 {
			t.Errorf("expected 1 tracked job, got %d", resp.TrackedJobs)
		}
	})
}

func TestSections_StructuralGap(t *testing.T) {
	env := newTestEnv(t)
	err := env.store.Save(context.Background(), &store.Index{
		Document: store.Document{ID: "gap", Title: "Gap", TotalPages: 6},
		Entries: []doctree.SectionEntry{
			doctree.NewSectionEntry("2", "Power Contract", 4, nil),
			doctree.NewSectionEntry("2.1.1", "Source Capabilities", 5, nil),
		},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	for _, p := range []string{"/sections/2.1/children", "/sections/2.1/descendants"} {
		rec := env.do(t, http.MethodGet, "/api/documents/gap"+p, nil, "")
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", p, rec.Code)
			continue
		}
		var resp struct {
			Sections []struct {
				ID string `json:"section_id"`
			} `json:"sections"`
		}
		decode(t, rec, &resp)
		if len(resp.Sections) != 1 || resp.Sections[0].ID != "2.1.1" {
			t.Errorf("%s: unexpected sections %+v", p, resp.Sections)
		}
	}
	for _, p := range []string{"/sections/2.1", "/sections/2.1/path", "/sections/2.2/children"} {
		rec := env.do(t, http.MethodGet, "/api/documents/gap"+p, nil, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", p, rec.Code)
		}
	}
}

func TestDeleteDocument(t *testing.T) {
	env := newTestEnv(t)
	env.ingest(t, "pd")

	rec := env.do(t, http.MethodDelete, "/api/documents/pd", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(env.unpub.calls) != 1 || env.unpub.calls[0] != "pd" {
		t.Errorf("expected one unpublish call for pd, got %v", env.unpub.calls)
	}
	if _, err := env.store.Get(context.Background(), "pd"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected document removed, got %v", err)
	}

	rec = env.do(t, http.MethodDelete, "/api/documents/pd", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/api/documents/pd/report", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for report of deleted document, got %d", rec.Code)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct{ in, want string }{
		{"spec.pdf", "spec.pdf"},
		{"../../etc/passwd", "passwd"},
		{"", "unnamed"},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

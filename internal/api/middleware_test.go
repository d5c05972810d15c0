package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	r := chi.NewRouter()
	r.Use(RequestLogger(log))
	r.Get("/api/documents/{docID}/report", func(w http.ResponseWriter, r *http.Request) {
		jsonError(w, "boom", http.StatusInternalServerError)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/documents/pd/report", nil))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	want := map[string]any{
		"level":  "WARN",
		"route":  "/api/documents/{docID}/report",
		"doc_id": "pd",
		"status": float64(http.StatusInternalServerError),
	}
	for k, v := range want {
		if line[k] != v {
			t.Errorf("%s: expected %v, got %v", k, v, line[k])
		}
	}
	if n, _ := line["bytes"].(float64); n == 0 {
		t.Error("expected response bytes to be counted")
	}
}

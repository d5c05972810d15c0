package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "DB_PATH", "WORKER_COUNT", "PAGE_TOLERANCE", "LISTING_MARKERS", "JOB_TTL"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	if cfg.Port != "8090" || cfg.DBPath != "tocindex.db" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.WorkerCount != 2 || cfg.PageTolerance != 2 || cfg.ListingMaxPages != 10 || cfg.HeaderMaxLen != 100 {
		t.Errorf("unexpected numeric defaults %+v", cfg)
	}
	if len(cfg.ListingMarkers) != 2 || cfg.ListingMarkers[0] != "Table of Contents" {
		t.Errorf("unexpected markers %q", cfg.ListingMarkers)
	}
	if cfg.JobTTL != time.Hour {
		t.Errorf("expected 1h ttl, got %v", cfg.JobTTL)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("WORKER_COUNT", "7")
	t.Setenv("PAGE_TOLERANCE", "0")
	t.Setenv("LISTING_MARKERS", " Contents , ,Index ")
	t.Setenv("JOB_TTL", "90s")
	t.Setenv("MAX_QUEUE_SIZE", "not-a-number")
	t.Setenv("PDF_FALLBACK_PDFTOTEXT", "false")

	cfg := Load()
	if cfg.WorkerCount != 7 {
		t.Errorf("expected 7 workers, got %d", cfg.WorkerCount)
	}
	if cfg.PageTolerance != 0 {
		t.Errorf("expected zero tolerance to be kept, got %d", cfg.PageTolerance)
	}
	if len(cfg.ListingMarkers) != 2 || cfg.ListingMarkers[1] != "Index" {
		t.Errorf("unexpected markers %q", cfg.ListingMarkers)
	}
	if cfg.JobTTL != 90*time.Second {
		t.Errorf("expected 90s ttl, got %v", cfg.JobTTL)
	}
	if cfg.MaxQueueSize != 50 {
		t.Errorf("expected invalid value to fall back to 50, got %d", cfg.MaxQueueSize)
	}
	if cfg.PDFFallbackPdftotext {
		t.Error("expected pdftotext fallback disabled")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"missing key", Config{}, false},
		{"ok", Config{APIKey: "k"}, true},
		{"pathstore without key", Config{APIKey: "k", PathstoreURL: "http://ps"}, false},
		{"pathstore", Config{APIKey: "k", PathstoreURL: "http://ps", PathstoreAPIKey: "p"}, true},
	}
	for _, tt := range tests {
		if err := tt.cfg.Validate(); (err == nil) != tt.ok {
			t.Errorf("%s: expected ok=%v, got %v", tt.name, tt.ok, err)
		}
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("TOCINDEX_TEST_DOTENV=from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TOCINDEX_TEST_DOTENV", "")
	os.Unsetenv("TOCINDEX_TEST_DOTENV")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := os.Getenv("TOCINDEX_TEST_DOTENV"); got != "from-file" {
		t.Errorf("expected value from file, got %q", got)
	}
	if err := LoadDotEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("expected missing file to be ignored, got %v", err)
	}
}

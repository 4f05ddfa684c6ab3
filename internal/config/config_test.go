package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIURL != DefaultAPIURL {
		t.Errorf("APIURL = %q, want %q", cfg.APIURL, DefaultAPIURL)
	}
	if cfg.DataDir != DefaultDataDir {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, DefaultDataDir)
	}
	if cfg.BatchSize != DefaultBatchSize {
		t.Errorf("BatchSize = %d, want %d", cfg.BatchSize, DefaultBatchSize)
	}
	if cfg.MaxConcurrent != DefaultMaxConcurrent {
		t.Errorf("MaxConcurrent = %d, want %d", cfg.MaxConcurrent, DefaultMaxConcurrent)
	}
	if cfg.DebugMode {
		t.Error("DebugMode = true, want false")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("API_URL", "http://example.com/ingest")
	t.Setenv("INGEST_DATA_DIR", "/srv/data")
	t.Setenv("INGEST_BATCH_SIZE", "25")
	t.Setenv("INGEST_MAX_CONCURRENT", "4")
	t.Setenv("INGEST_DEBUG_MODE", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIURL != "http://example.com/ingest" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if cfg.DataDir != "/srv/data" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.BatchSize != 25 {
		t.Errorf("BatchSize = %d, want 25", cfg.BatchSize)
	}
	if cfg.MaxConcurrent != 4 {
		t.Errorf("MaxConcurrent = %d, want 4", cfg.MaxConcurrent)
	}
	if !cfg.DebugMode {
		t.Error("DebugMode = false, want true")
	}
}

func TestLoadPrintModeSentinel(t *testing.T) {
	t.Setenv("API_URL", "PRINT_MODE")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIURL != "PRINT_MODE" {
		t.Errorf("APIURL = %q, want the sentinel to pass through verbatim", cfg.APIURL)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ingest.yaml")
	content := "data_dir: /yaml/data\napi_url: http://yaml.example/ingest\nbatch_size: 50\nmax_concurrent: 2\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DataDir != "/yaml/data" || cfg.APIURL != "http://yaml.example/ingest" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.BatchSize != 50 || cfg.MaxConcurrent != 2 {
		t.Errorf("file values not applied: %+v", cfg)
	}
}

func TestEnvWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ingest.yaml")
	if err := os.WriteFile(path, []byte("api_url: http://yaml.example/ingest\n"), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv("API_URL", "http://env.example/ingest")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIURL != "http://env.example/ingest" {
		t.Errorf("APIURL = %q, want the env value to win", cfg.APIURL)
	}
}

func TestLoadMissingConfigFileIsError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() with a missing config file returned nil error")
	}
}

func TestLoadRejectsInvalidBounds(t *testing.T) {
	t.Setenv("INGEST_BATCH_SIZE", "0")
	if _, err := Load(""); err == nil {
		t.Error("Load() accepted batch size 0")
	}
}

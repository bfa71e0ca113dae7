package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIPort != "8080" {
		t.Fatalf("expected default api port, got %s", cfg.APIPort)
	}
	if cfg.RRFK != 60 {
		t.Fatalf("expected default rrf k=60, got %d", cfg.RRFK)
	}
}

func TestLoadYAMLFileThenEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("api_port: \"9000\"\nrrf_k: 10\nevidence_budget: 8\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("RRF_K", "42")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIPort != "9000" {
		t.Fatalf("expected yaml api port, got %s", cfg.APIPort)
	}
	if cfg.EvidenceBudget != 8 {
		t.Fatalf("expected yaml evidence budget, got %d", cfg.EvidenceBudget)
	}
	if cfg.RRFK != 42 {
		t.Fatalf("expected env to override yaml, got %d", cfg.RRFK)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

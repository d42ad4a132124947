package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Limits.DailyRequestLimit != 50 {
		t.Errorf("DailyRequestLimit = %d, want 50", cfg.Limits.DailyRequestLimit)
	}
	if cfg.Limits.DefaultResultsPerQuery != 10 {
		t.Errorf("DefaultResultsPerQuery = %d, want 10", cfg.Limits.DefaultResultsPerQuery)
	}
	if len(cfg.Keywords) != len(DefaultKeywords) {
		t.Errorf("got %d keywords, want %d", len(cfg.Keywords), len(DefaultKeywords))
	}
	if cfg.IsConfigured() {
		t.Error("IsConfigured() = true with no credentials")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), filepath.Join(t.TempDir(), "nope.env"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Limits.DailyRequestLimit != 50 {
		t.Errorf("DailyRequestLimit = %d, want default 50", cfg.Limits.DailyRequestLimit)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
google:
  api_key: yaml-key
  search_context_id: yaml-cx
limits:
  daily_request_limit: 75
keywords:
  - golang
  - sqlite
`)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path, filepath.Join(dir, "nope.env"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Google.APIKey != "yaml-key" {
		t.Errorf("APIKey = %q, want %q", cfg.Google.APIKey, "yaml-key")
	}
	if cfg.Limits.DailyRequestLimit != 75 {
		t.Errorf("DailyRequestLimit = %d, want 75", cfg.Limits.DailyRequestLimit)
	}
	if len(cfg.Keywords) != 2 || cfg.Keywords[0] != "golang" {
		t.Errorf("Keywords = %v, want [golang sqlite]", cfg.Keywords)
	}
	if !cfg.IsConfigured() {
		t.Error("IsConfigured() = false with both credentials set")
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("google:\n  api_key: yaml-key\n")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	t.Setenv("GOOGLE_API_KEY", "env-key")
	t.Setenv("GOOGLE_SEARCH_ENGINE_ID", "env-cx")
	t.Setenv("MAX_DAILY_REQUESTS", "30")

	cfg, err := Load(path, filepath.Join(dir, "nope.env"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Google.APIKey != "env-key" {
		t.Errorf("APIKey = %q, want env override %q", cfg.Google.APIKey, "env-key")
	}
	if cfg.Google.SearchContextID != "env-cx" {
		t.Errorf("SearchContextID = %q, want %q", cfg.Google.SearchContextID, "env-cx")
	}
	if cfg.Limits.DailyRequestLimit != 30 {
		t.Errorf("DailyRequestLimit = %d, want 30", cfg.Limits.DailyRequestLimit)
	}
}

func TestLoadDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	data := []byte("GOOGLE_API_KEY=dotenv-key\nGOOGLE_SEARCH_ENGINE_ID=dotenv-cx\n")
	if err := os.WriteFile(envPath, data, 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Cleanup(func() {
		os.Unsetenv("GOOGLE_API_KEY")
		os.Unsetenv("GOOGLE_SEARCH_ENGINE_ID")
	})

	cfg, err := Load(filepath.Join(dir, "nope.yaml"), envPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Google.APIKey != "dotenv-key" {
		t.Errorf("APIKey = %q, want %q", cfg.Google.APIKey, "dotenv-key")
	}
	if !cfg.IsConfigured() {
		t.Error("IsConfigured() = false after loading .env credentials")
	}
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := DefaultConfig()
	cfg.Google.APIKey = "saved-key"
	cfg.Google.SearchContextID = "saved-cx"
	cfg.Keywords = []string{"kubernetes", "terraform"}
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path, filepath.Join(dir, "nope.env"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Google.APIKey != "saved-key" {
		t.Errorf("APIKey = %q, want %q", loaded.Google.APIKey, "saved-key")
	}
	if len(loaded.Keywords) != 2 || loaded.Keywords[1] != "terraform" {
		t.Errorf("Keywords = %v, want [kubernetes terraform]", loaded.Keywords)
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	errs := cfg.Validate()
	if len(errs) != 2 {
		t.Fatalf("Validate() returned %d errors for missing credentials, want 2: %v", len(errs), errs)
	}

	cfg.Google.APIKey = "k"
	cfg.Google.SearchContextID = "cx"
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("Validate() = %v with full config, want none", errs)
	}

	cfg.Limits.DefaultResultsPerQuery = 101
	if errs := cfg.Validate(); len(errs) != 1 {
		t.Errorf("Validate() returned %d errors for out-of-range results, want 1", len(errs))
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if cfg.Limits.MaxFailuresPerCall != 2 {
		t.Errorf("expected breaker threshold 2, got %d", cfg.Limits.MaxFailuresPerCall)
	}
	if cfg.Limits.MaxToolRounds != 50 {
		t.Errorf("expected round cap 50, got %d", cfg.Limits.MaxToolRounds)
	}
}

func TestLoad(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		cfg, err := Load("")
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Cache.TTL != 5*time.Minute {
			t.Errorf("expected default TTL, got %v", cfg.Cache.TTL)
		}
	})

	t.Run("file values override defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := `
cache:
  ttl: 1m
limits:
  max_batch_size: 5
`
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		cfg, err := Load(path)
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Cache.TTL != time.Minute {
			t.Errorf("expected 1m TTL, got %v", cfg.Cache.TTL)
		}
		if cfg.Limits.MaxBatchSize != 5 {
			t.Errorf("expected batch size 5, got %d", cfg.Limits.MaxBatchSize)
		}
		// Untouched fields keep their defaults.
		if cfg.Limits.MaxToolRounds != 50 {
			t.Errorf("expected default round cap, got %d", cfg.Limits.MaxToolRounds)
		}
	})

	t.Run("expands environment variables", func(t *testing.T) {
		t.Setenv("SANDBOX_URL", "http://sandbox.internal:9000")
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := "sandbox:\n  base_url: ${SANDBOX_URL}\n"
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		cfg, err := Load(path)
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Sandbox.BaseURL != "http://sandbox.internal:9000" {
			t.Errorf("expected env expansion, got %q", cfg.Sandbox.BaseURL)
		}
	})

	t.Run("rejects invalid values", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := "limits:\n  max_tool_rounds: 0\n"
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Error("expected validation error")
		}
	})

	t.Run("missing file errors", func(t *testing.T) {
		if _, err := Load("/nonexistent/config.yaml"); err == nil {
			t.Error("expected error for missing file")
		}
	})
}

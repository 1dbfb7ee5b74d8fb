package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rollq.json")
	body := `{"backend":"pebble","policy":"hourly","codec":"snappy","httpAddr":":9000"}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend != BackendPebble || cfg.Policy != "hourly" || cfg.Codec != "snappy" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	// Untouched fields keep their defaults.
	if cfg.Fsync != "always" || cfg.LogLevel != "info" {
		t.Fatalf("defaults not layered: %+v", cfg)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rollq.yaml")
	body := "backend: file\npolicy: test-secondly\nepochMillis: 1000\nreadOnly: true\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Policy != "test-secondly" || cfg.EpochMillis != 1000 || !cfg.ReadOnly {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestFromEnvOverlay(t *testing.T) {
	t.Setenv("ROLLQ_BACKEND", "pebble")
	t.Setenv("ROLLQ_POLICY", "minutely")
	t.Setenv("ROLLQ_EPOCH_MILLIS", "5000")
	t.Setenv("ROLLQ_READ_ONLY", "true")
	cfg := Default()
	FromEnv(&cfg)
	if cfg.Backend != BackendPebble || cfg.Policy != "minutely" || cfg.EpochMillis != 5000 || !cfg.ReadOnly {
		t.Fatalf("env overlay not applied: %+v", cfg)
	}
}

func TestValidateRejectsUnknown(t *testing.T) {
	cases := []func(*Config){
		func(c *Config) { c.Backend = "s3" },
		func(c *Config) { c.Policy = "no-such-policy" },
		func(c *Config) { c.Codec = "zstd" },
		func(c *Config) { c.Fsync = "sometimes" },
	}
	for i, mutate := range cases {
		cfg := Default()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

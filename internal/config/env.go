package config

import (
	"os"
	"strconv"
)

// FromEnv overlays ROLLQ_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("ROLLQ_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("ROLLQ_BACKEND"); v != "" {
		cfg.Backend = v
	}
	if v := os.Getenv("ROLLQ_POLICY"); v != "" {
		cfg.Policy = v
	}
	if v := os.Getenv("ROLLQ_EPOCH_MILLIS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.EpochMillis = n
		}
	}
	if v := os.Getenv("ROLLQ_CODEC"); v != "" {
		cfg.Codec = v
	}
	if v := os.Getenv("ROLLQ_FSYNC"); v != "" {
		cfg.Fsync = v
	}
	if v := os.Getenv("ROLLQ_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("ROLLQ_READ_ONLY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.ReadOnly = b
		}
	}
	if v := os.Getenv("ROLLQ_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ROLLQ_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
}

package log

import "fmt"

// Config selects the process-wide logger's level and output format.
type Config struct {
	// Level is one of debug, info, warn, error, fatal.
	Level string
	// Format is "json" or "text".
	Format string
}

// ApplyConfig builds a logger from cfg, installs it as the process default
// and returns it.
func ApplyConfig(cfg *Config) (Logger, error) {
	level := InfoLevel
	if cfg != nil && cfg.Level != "" {
		l, err := ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		level = l
	}
	var formatter Formatter = &JSONFormatter{}
	if cfg != nil {
		switch cfg.Format {
		case "", "json":
		case "text":
			formatter = &TextFormatter{}
		default:
			return nil, fmt.Errorf("log: unknown format %q", cfg.Format)
		}
	}
	logger := NewLogger(WithLevel(level), WithFormatter(formatter))
	SetDefaultLogger(logger)
	return logger, nil
}

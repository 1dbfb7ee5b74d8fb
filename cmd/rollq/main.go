package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	clientcmd "github.com/rzbill/rollq/internal/cmd/client"
	serverrun "github.com/rzbill/rollq/internal/cmd/server"
	cfgpkg "github.com/rzbill/rollq/internal/config"
	logpkg "github.com/rzbill/rollq/pkg/log"
	"github.com/spf13/cobra"
)

func main() {
	// Respect ROLLQ_LOG_LEVEL for CLI output as well as server start.
	level := os.Getenv("ROLLQ_LOG_LEVEL")
	parsed, err := logpkg.ParseLevel(level)
	if err != nil || level == "" {
		parsed = logpkg.InfoLevel
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(parsed),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)
	logpkg.RedirectStdLog(logger)

	rootCmd := &cobra.Command{
		Use:   "rollq",
		Short: "Rollq runtime CLI",
		Long:  "Rollq is a single-binary rolled queue store. This CLI manages the server and basic operations.",
	}

	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start rollq server (HTTP API)",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := cfgpkg.Load(configPath)
			if err != nil {
				return err
			}
			cfgpkg.FromEnv(&cfg)
			applyFlagOverrides(cmd, &cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := serverrun.Run(ctx, serverrun.Options{Config: cfg}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			// brief delay to allow logs flush
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	}
	serverStartCmd.Flags().String("config", "", "Config file (JSON or YAML)")
	serverStartCmd.Flags().String("data-dir", "", "Data directory (if not specified, uses OS-specific application data directory)")
	serverStartCmd.Flags().String("backend", "", "Segment backend: file|pebble")
	serverStartCmd.Flags().String("policy", "", "Roll policy name (see 'rollq policy list')")
	serverStartCmd.Flags().Int64("epoch-millis", 0, "Cycle numbering offset from the Unix epoch in ms")
	serverStartCmd.Flags().String("codec", "", "Payload codec: plain|snappy")
	serverStartCmd.Flags().String("http", "", "HTTP listen address")
	serverStartCmd.Flags().String("fsync", "", "Pebble fsync mode: always|interval|never")
	serverStartCmd.Flags().Bool("read-only", false, "Open without the writer lock; appends are refused")
	serverStartCmd.Flags().String("log-level", "", "Log level: debug|info|warn|error")
	serverStartCmd.Flags().String("log-format", "", "Log format: text|json")
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	rootCmd.AddCommand(clientcmd.NewQueueCommand(apiURL))
	rootCmd.AddCommand(clientcmd.NewPolicyCommand(apiURL))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func applyFlagOverrides(cmd *cobra.Command, cfg *cfgpkg.Config) {
	if v, _ := cmd.Flags().GetString("data-dir"); v != "" {
		cfg.DataDir = v
	}
	if v, _ := cmd.Flags().GetString("backend"); v != "" {
		cfg.Backend = v
	}
	if v, _ := cmd.Flags().GetString("policy"); v != "" {
		cfg.Policy = v
	}
	if v, _ := cmd.Flags().GetInt64("epoch-millis"); v != 0 {
		cfg.EpochMillis = v
	}
	if v, _ := cmd.Flags().GetString("codec"); v != "" {
		cfg.Codec = v
	}
	if v, _ := cmd.Flags().GetString("http"); v != "" {
		cfg.HTTPAddr = v
	}
	if v, _ := cmd.Flags().GetString("fsync"); v != "" {
		cfg.Fsync = v
	}
	if v, _ := cmd.Flags().GetBool("read-only"); v {
		cfg.ReadOnly = true
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		cfg.LogFormat = v
	}
}

func apiURL() string {
	if v := os.Getenv("ROLLQ_HTTP"); v != "" {
		return v
	}
	return "http://127.0.0.1:8487"
}

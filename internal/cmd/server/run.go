package serverrun

import (
	"context"
	"sync"

	cfgpkg "github.com/rzbill/rollq/internal/config"
	"github.com/rzbill/rollq/internal/runtime"
	httpserver "github.com/rzbill/rollq/internal/server/http"
	logpkg "github.com/rzbill/rollq/pkg/log"
)

// Options for Run.
type Options struct {
	Config cfgpkg.Config
}

// Run opens the runtime, starts the HTTP server and blocks until ctx is
// cancelled. Signal handling belongs to the caller; Run only watches ctx.
func Run(ctx context.Context, opts Options) error {
	cfg := opts.Config
	if cfg.DataDir == "" {
		cfg.DataDir = cfgpkg.DefaultDataDir()
	}

	procLogger, err := logpkg.ApplyConfig(&logpkg.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return err
	}
	// Redirect stdlib logs (e.g. Pebble) to our logger.
	logpkg.RedirectStdLog(procLogger)

	rt, err := runtime.Open(runtime.Options{Config: cfg, Logger: procLogger.WithComponent("runtime")})
	if err != nil {
		return err
	}
	defer rt.Close()

	procLogger.Info("Starting rollq server",
		logpkg.Str("http", cfg.HTTPAddr),
		logpkg.Str("data_dir", cfg.DataDir),
		logpkg.Str("backend", cfg.Backend),
		logpkg.Str("policy", cfg.Policy),
	)

	hsrv := httpserver.New(rt, procLogger.WithComponent("http"))
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := hsrv.ListenAndServe(ctx, cfg.HTTPAddr); err != nil && ctx.Err() == nil {
			procLogger.WithError(err).Error("http server")
		}
	}()

	<-ctx.Done()
	// Shut the server down before closing the runtime to avoid handlers
	// racing a closed store.
	hsrv.Close()
	wg.Wait()
	return nil
}

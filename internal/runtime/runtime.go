package runtime

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/rzbill/rollq/internal/codec"
	cfgpkg "github.com/rzbill/rollq/internal/config"
	"github.com/rzbill/rollq/internal/queue"
	"github.com/rzbill/rollq/internal/rollcycle"
	"github.com/rzbill/rollq/internal/segment"
	pebblestore "github.com/rzbill/rollq/internal/storage/pebble"
	"github.com/rzbill/rollq/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	Config cfgpkg.Config

	// Clock overrides wall time for cycle resolution; nil means the
	// system clock.
	Clock rollcycle.Clock

	// Logger defaults to the process-wide logger.
	Logger log.Logger
}

// Runtime wires storage, config and the queue for a single-node instance.
type Runtime struct {
	config  cfgpkg.Config
	policy  rollcycle.Policy
	catalog *rollcycle.Registry
	store   segment.Store
	db      *pebblestore.DB
	queue   *queue.Queue
	logger  log.Logger
}

// Open validates the configuration, builds the configured segment backend
// and opens the queue.
func Open(opts Options) (*Runtime, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.DataDir == "" {
		cfg.DataDir = cfgpkg.DefaultDataDir()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.GetDefaultLogger().WithComponent("runtime")
	}

	catalog := rollcycle.NewCatalog()
	policy, _ := catalog.ByName(cfg.Policy)
	cdc, err := codec.ByName(cfg.Codec)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{config: cfg, policy: policy, catalog: catalog, logger: logger}
	switch cfg.Backend {
	case cfgpkg.BackendPebble:
		db, err := pebblestore.Open(pebblestore.Options{
			DataDir:  filepath.Join(cfg.DataDir, "pebble"),
			Fsync:    fsyncMode(cfg.Fsync),
			ReadOnly: cfg.ReadOnly,
		})
		if err != nil {
			return nil, fmt.Errorf("open pebble: %w", err)
		}
		st, err := segment.NewPebbleStore(db, cfg.ReadOnly)
		if err != nil {
			db.Close()
			return nil, err
		}
		rt.db, rt.store = db, st
	default:
		st, err := segment.NewFileStore(segment.FileOptions{
			Dir:         filepath.Join(cfg.DataDir, "segments"),
			Policy:      policy,
			EpochMillis: cfg.EpochMillis,
			ReadOnly:    cfg.ReadOnly,
		})
		if err != nil {
			return nil, fmt.Errorf("open segment dir: %w", err)
		}
		rt.store = st
	}

	q, err := queue.Open(queue.Options{
		Store:       rt.store,
		Policy:      policy,
		EpochMillis: cfg.EpochMillis,
		Clock:       opts.Clock,
		Codec:       cdc,
		ReadOnly:    cfg.ReadOnly,
		Logger:      logger.WithComponent("queue"),
	})
	if err != nil {
		rt.closeStore()
		return nil, err
	}
	rt.queue = q
	logger.Info("runtime open",
		log.Str("backend", cfg.Backend),
		log.Str("policy", policy.Name()),
		log.Bool("read_only", cfg.ReadOnly))
	return rt, nil
}

func fsyncMode(name string) pebblestore.FsyncMode {
	switch name {
	case "interval":
		return pebblestore.FsyncModeInterval
	case "never":
		return pebblestore.FsyncModeNever
	default:
		return pebblestore.FsyncModeAlways
	}
}

// Queue returns the instance's queue.
func (r *Runtime) Queue() *queue.Queue { return r.queue }

// Catalog returns the roll policy catalog.
func (r *Runtime) Catalog() *rollcycle.Registry { return r.catalog }

// Policy returns the active roll policy.
func (r *Runtime) Policy() rollcycle.Policy { return r.policy }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }

// CheckHealth verifies the storage backend responds.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.store == nil {
		return errors.New("store not open")
	}
	if r.db != nil {
		it, err := r.db.NewIter(nil)
		if err != nil {
			return err
		}
		return it.Close()
	}
	_, err := r.store.ListCycles()
	return err
}

// Close releases the queue and the storage backend.
func (r *Runtime) Close() error {
	var firstErr error
	if r.queue != nil {
		firstErr = r.queue.Close()
	}
	if err := r.closeStore(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (r *Runtime) closeStore() error {
	var firstErr error
	if r.store != nil {
		firstErr = r.store.Close()
	}
	if r.db != nil {
		if err := r.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

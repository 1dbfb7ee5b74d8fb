// Package serverrun exposes a shared Run entrypoint used by the CLI to start
// the rollq runtime with its HTTP server, handling lifecycle and shutdown.
//
// Example:
//
//	opts := serverrun.Options{Config: config.Default()}
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = serverrun.Run(ctx, opts)
package serverrun

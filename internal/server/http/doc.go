// Package httpserver provides a minimal REST gateway over a rollq runtime:
// JSON endpoints for appending, reading from an address, browsing history
// and listing the roll policy catalog.
//
// Example:
//
//	rt, _ := runtime.Open(runtime.Options{Config: config.Default()})
//	s := httpserver.New(rt, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, ":8487")
package httpserver

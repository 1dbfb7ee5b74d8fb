// Package runtime wires configuration, segment storage and the queue into a
// single-node rollq instance. It resolves the roll policy from the catalog,
// builds the configured backend (plain files or pebble) and exposes the
// queue plus basic health checks.
//
// Example:
//
//	cfg := config.Default()
//	rt, _ := runtime.Open(runtime.Options{Config: cfg})
//	defer rt.Close()
//	_ = rt.CheckHealth(context.Background())
//	app, _ := rt.Queue().Appender()
//	_, _ = app.Append(context.Background(), []byte("hello"))
package runtime

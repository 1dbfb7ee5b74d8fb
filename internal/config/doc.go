// Package config provides loading and environment overlay for rollq runtime
// configuration. It exposes a Default() baseline, file loading (JSON or
// YAML by extension) and a ROLLQ_* environment overlay.
//
// Example:
//
//	cfg := config.Default()
//	if fileCfg, err := config.Load("/etc/rollq.yaml"); err == nil {
//	    cfg = fileCfg
//	}
//	config.FromEnv(&cfg)
//	rt, _ := runtime.Open(runtime.Options{Config: cfg})
//	defer rt.Close()
package config

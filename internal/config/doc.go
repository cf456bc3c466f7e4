// Package config provides loading and environment overlay for datalog
// server configuration. Default() is the baseline; Load reads JSON or YAML
// on top of it and FromEnv overlays DATALOG_* variables.
//
// Example:
//
//	cfg, err := config.Load("/etc/datalog.yaml")
//	if err != nil {
//	    return err
//	}
//	config.FromEnv(&cfg)
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//	rt, _ := runtime.Open(runtime.Options{Config: cfg})
//	defer rt.Close()
package config

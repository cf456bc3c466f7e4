// Package runtime wires configuration, the key-value substrate and the
// datalog store into a single server instance. It exposes Open/Close, a
// health check and accessors used by the services and transports.
//
// Example:
//
//	cfg := config.Default()
//	cfg.Storage.DataDir = "./data"
//	rt, _ := runtime.Open(ctx, runtime.Options{Config: cfg})
//	defer rt.Close()
//	_ = rt.CheckHealth(ctx)
//	_ = rt.Store().Append(ctx, "alice", []byte("hello"), time.Now().UnixMilli())
package runtime

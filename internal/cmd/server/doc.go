// Package serverrun wires the datalog runtime to its gRPC and HTTP
// transports and runs them until the process is asked to stop.
//
// Run builds the process logger from the log section of the config
// (DATALOG_LOG_LEVEL and DATALOG_LOG_FORMAT win over it), installs the
// OpenTelemetry tracer provider when an OTLP endpoint is configured, opens
// the runtime and serves both transports on one errgroup. Cancelling the
// context, SIGINT or SIGTERM stops both servers gracefully before the
// store is closed.
package serverrun

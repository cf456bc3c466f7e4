// Package client provides the client half of the `datalog` command line.
//
// All commands talk to the Datalog gRPC service. The address is read from
// the DATALOG_GRPC environment variable (default 127.0.0.1:50051) and the
// bearer token from --token or DATALOG_TOKEN. Record and erase always act
// on the account the token maps to.
//
// Usage
//
//	datalog record --payload '{"kind":"login"}'
//	datalog record --payload-file event.bin --ts 2025-09-20T12:00:00Z
//	echo hello | datalog record --payload-file -
//
//	datalog query --account alice
//	datalog query --filter 'ts_ms > now_ms - 60000' --limit 10
//
//	datalog erase
//
// Query prints one JSON object per record, oldest first, with the payload
// rendered as payload_json, payload_text or payload_b64 depending on what
// it decodes as.
package client

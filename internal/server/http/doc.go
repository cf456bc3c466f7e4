// Package httpserver exposes the datalog service over HTTP/JSON:
//
//	GET  /v1/healthz
//	POST /v1/datalog/record   {"payload": base64, "timestamp_ms": int}
//	POST /v1/datalog/erase
//	GET  /v1/datalog/query?account=&filter=&limit=
//
// Mutating endpoints require "Authorization: Bearer <token>".
package httpserver

// Package datalogv1 defines the datalog.v1.Datalog gRPC service: its
// request and response messages, the service descriptor, a client, and the
// JSON codec the service is carried over (content-subtype "json").
package datalogv1

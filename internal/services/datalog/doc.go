// Package datalogsvc is the transport-agnostic datalog service used by the
// gRPC and HTTP servers. It validates accounts, stamps records with the host
// clock when the caller supplies no timestamp, applies query filters and
// limits, and wraps every call in a trace span.
//
// Accounts reaching this package are already authenticated; mutating calls
// act on exactly the account they are given.
package datalogsvc

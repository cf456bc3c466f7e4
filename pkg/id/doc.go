// Package id provides 128-bit sortable identifiers. The archiver names each
// uploaded eviction with one, so listing an account's prefix returns objects
// in eviction order.
//
// An ID is 16 bytes big-endian: the unix millisecond followed by a sequence
// number. Byte order equals time order, and IDs minted in the same
// millisecond keep increasing by sequence. A Generator never goes backwards:
// when the wall clock regresses it stays on the last millisecond it saw and
// keeps counting.
//
//	g := id.NewGenerator()
//	ev := g.Next()
//	name := ev.String() // 32 hex chars, id.Parse reverses it
package id

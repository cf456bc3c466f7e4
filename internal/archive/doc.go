// Package archive uploads records evicted from datalog windows to S3 so the
// history beyond the window is not lost.
//
// S3Archiver is a datalog.Observer. Evictions are queued without blocking
// the store and a single background worker writes each one as a JSON
// object named {prefix}/{hex(key)}/{eventID}.json. When the queue is full
// the record is dropped and counted.
package archive

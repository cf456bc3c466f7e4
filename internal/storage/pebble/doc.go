// Package pebblestore adapts Pebble to the kv.Store substrate: fsync policy,
// snapshot-backed views, indexed-batch transactions and minimal metrics hooks.
//
// Usage:
//
//	db, err := pebblestore.Open(pebblestore.Options{
//	    DataDir: "./data",
//	    Fsync:   pebblestore.FsyncModeInterval,
//	})
//	if err != nil { /* handle */ }
//	defer db.Close()
//
//	// Atomic read-modify-write
//	_ = db.Update(ctx, func(tx kv.Txn) error {
//	    v, _ := tx.Get(ctx, []byte("k"))
//	    return tx.Set([]byte("k"), append(v, 'x'))
//	})
package pebblestore

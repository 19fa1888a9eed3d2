// Package memkv implements a sharded, in-memory kv.IKVStore.
//
// Keys are distributed over a fixed number of shards with a seeded FNV-1a hash,
// each shard being an xsync.MapOf. Every write advances a logical write index which
// is stored with the entry and persisted in snapshots.
//
// Persistence:
//
//	The store can be saved to and loaded from a binary snapshot (Save/Load). The format
//	is a magic header, a version byte, the entry count and then for every entry the
//	key, the write index and the value, all little endian and length prefixed.
//	OpenFile wraps this into a store that is loaded on open and written back on Close,
//	which is what the CLI uses for --store=memory.
//
// Usage Example:
//
//	store := memkv.NewStore(nil)
//	_ = store.Set("orders-u1", payload)
//	value, found, err := store.Get("orders-u1")
package memkv

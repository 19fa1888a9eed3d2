// Package kv defines the durable key-value store every cache of flipcache is built on.
// The caches never talk to a database directly; they only need a persistent,
// string-keyed byte store with point reads, writes, deletes, key listing and batched reads.
//
// Key Components:
//
//   - IKVStore Interface: The core abstraction. All implementations share this
//     interface, allowing a session to switch between an in-memory store with
//     snapshot persistence and an on-disk store without code changes.
//
//   - Error System: A structured error reporting mechanism using typed return codes
//     and descriptive messages (see Error and RetCode). Callers can match codes with
//     errors.Is(err, kv.ErrClosed).
//
//   - Factory: A function type that abstracts the creation of the store, so that the
//     session can be configured without knowing the backend.
//
// Implementations:
//
//   - memkv: a sharded in-memory store on top of xsync.MapOf, persisted through
//     binary snapshots (Save/Load). Available in the "lib/kv/memkv" package.
//
//   - pebblekv: an on-disk store on top of cockroachdb/pebble. Every write is synced
//     before it returns. Available in the "lib/kv/pebblekv" package.
//
// The "lib/kv/testing" package provides a conformance suite which every
// implementation runs in its own tests.
package kv

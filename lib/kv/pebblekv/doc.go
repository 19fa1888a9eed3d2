// Package pebblekv implements kv.IKVStore on top of cockroachdb/pebble.
//
// Every write is committed with pebble.Sync, so a value is durable once Set returns.
// Prefix listings use bounded iterators ([prefix, successor(prefix))), which keeps
// the recency cache's prefix scans proportional to the number of matching keys.
package pebblekv

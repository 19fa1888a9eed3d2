// Package session wires the caches of one logged-in user: the durable store, the TTL
// stores, the partition resolver, the merge-sync engine and the recency cache.
package session

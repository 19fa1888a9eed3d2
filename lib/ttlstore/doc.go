/*
Package ttlstore provides a generic expiring entry store on top of a kv.IKVStore.

Every value is wrapped in an Entry carrying the time of its last write and, for
collection caches, the remembered date window and continuation cursor. Entries are
expired lazily: the first read after the TTL elapsed purges the key.

The store has two read paths. Lookup reports why an entry is not available (ErrMiss,
ErrExpired, ErrCorrupt or a store error), Get collapses all of these to absent. The
caches built on top use Get, since a cold or damaged cache must never stop a sync.
*/
package ttlstore

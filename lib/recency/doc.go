/*
Package recency implements the bounded cache of recent ad-hoc lookups, such as market
price queries.

Entries live under a key prefix of the durable store (@marketItem: by default) and carry
the time of their last write. There is no expiry by age. When a new query is written to a
full cache, the entry with the oldest timestamp is evicted; rewriting a query that is
already cached never evicts anything, so an entry never evicts itself. Corrupt entries are skipped by every operation but still occupy space
until they are removed or overwritten.

The eviction candidates are kept in a min-heap ordered by timestamp, which is filled by a
single prefix scan on first use.
*/
package recency

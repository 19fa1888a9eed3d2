// Package util provides small data structures and helpers shared by the stores and caches.
//
//   - MapHeap: a keyed min-priority queue (binary heap plus hash map), used as the
//     eviction index of the recency cache
//   - HashString / ShardIndex: seeded FNV-1a hashing used to distribute keys over shards
//   - GenerateSeed: a random seed for the hash functions
package util

// Package codec provides the value encodings used to persist cache entries.
//
// Available codecs:
//
//   - JSON (default): human readable, the layout described for persisted entries
//     (CacheEntry / RecencyEntry records as JSON objects). Compatible with data written by
//     other clients of the same cache layout.
//
//   - GOB: Go's native binary encoding. Smaller and faster for large collections,
//     but only readable by Go programs.
//
// Data written with one codec is not readable with the other. Switching codecs on an
// existing store makes every old entry decode as corrupt, which the caches treat as a
// miss, so the cache rebuilds itself on the next successful sync.
package codec

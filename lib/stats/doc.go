// Package stats collects the metrics of a cache session.
//
// Counters (cache hits, misses, expired and corrupt entries, evictions, partition
// failures, ...) are kept in a VictoriaMetrics metrics.Set and can be exported in the
// Prometheus text format. Latencies of sync calls and of every partition fetch are kept
// as go-metrics timers, which provide count, mean and percentiles.
//
// Every session owns its own Stats, there is no process-wide registry.
package stats

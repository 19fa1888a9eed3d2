package stats

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/VictoriaMetrics/metrics"
	gometrics "github.com/rcrowley/go-metrics"
)

// Counter names a monotonically increasing event count
type Counter string

const (
	TTLHits           Counter = "flipcache_ttl_hits_total"
	TTLMisses         Counter = "flipcache_ttl_misses_total"
	TTLExpired        Counter = "flipcache_ttl_expired_total"
	TTLCorrupt        Counter = "flipcache_ttl_corrupt_total"
	StoreErrors       Counter = "flipcache_store_errors_total"
	PartitionHits     Counter = "flipcache_partition_cache_hits_total"
	PartitionResolves Counter = "flipcache_partition_resolves_total"
	Syncs             Counter = "flipcache_syncs_total"
	PartitionFailures Counter = "flipcache_partition_failures_total"
	RecordsDropped    Counter = "flipcache_records_dropped_total"
	RecencyEvictions  Counter = "flipcache_recency_evictions_total"
	RecencyCorrupt    Counter = "flipcache_recency_corrupt_total"
)

const (
	syncTimer          = "sync"
	partitionTimerBase = "fetch."
)

// Stats collects the metrics of one session.
// A nil *Stats is valid and discards everything, so packages can be used without metrics.
type Stats struct {
	counters *metrics.Set
	timers   gometrics.Registry
}

// New creates an empty metrics collection
func New() *Stats {
	return &Stats{
		counters: metrics.NewSet(),
		timers:   gometrics.NewRegistry(),
	}
}

// Inc increments the counter c by one
func (s *Stats) Inc(c Counter) {
	s.Add(c, 1)
}

// Add increments the counter c by n
func (s *Stats) Add(c Counter, n int) {
	if s == nil || n <= 0 {
		return
	}
	s.counters.GetOrCreateCounter(string(c)).Add(n)
}

// Count returns the current value of the counter c
func (s *Stats) Count(c Counter) uint64 {
	if s == nil {
		return 0
	}
	return s.counters.GetOrCreateCounter(string(c)).Get()
}

// TimeSync records the duration of a sync call which started at start
func (s *Stats) TimeSync(start time.Time) {
	if s == nil {
		return
	}
	gometrics.GetOrRegisterTimer(syncTimer, s.timers).UpdateSince(start)
}

// TimeFetch records the duration of a partition fetch which started at start
func (s *Stats) TimeFetch(partition string, start time.Time) {
	if s == nil {
		return
	}
	gometrics.GetOrRegisterTimer(partitionTimerBase+partition, s.timers).UpdateSince(start)
}

// Timings returns count and mean duration of every recorded timer, by name
func (s *Stats) Timings() map[string]Timing {
	out := map[string]Timing{}
	if s == nil {
		return out
	}
	s.timers.Each(func(name string, i interface{}) {
		if t, ok := i.(gometrics.Timer); ok {
			snap := t.Snapshot()
			out[name] = Timing{
				Count: snap.Count(),
				Mean:  time.Duration(snap.Mean()),
				P95:   time.Duration(snap.Percentile(0.95)),
				Max:   time.Duration(snap.Max()),
			}
		}
	})
	return out
}

// Timing summarizes a timer
type Timing struct {
	Count int64
	Mean  time.Duration
	P95   time.Duration
	Max   time.Duration
}

// WritePrometheus writes all counters in the Prometheus text exposition format
func (s *Stats) WritePrometheus(w io.Writer) {
	if s == nil {
		return
	}
	s.counters.WritePrometheus(w)
}

// WriteTimings writes a human-readable summary of all timers
func (s *Stats) WriteTimings(w io.Writer) {
	timings := s.Timings()
	names := make([]string, 0, len(timings))
	for name := range timings {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t := timings[name]
		fmt.Fprintf(w, "%-24s count=%d mean=%s p95=%s max=%s\n", name, t.Count, t.Mean, t.P95, t.Max)
	}
}

package ttlstore

import (
	"errors"
	"fmt"
	"time"

	"github.com/ValentinKolb/flipcache/lib/codec"
	"github.com/ValentinKolb/flipcache/lib/kv"
	"github.com/ValentinKolb/flipcache/lib/stats"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("ttlstore")

var (
	// ErrMiss is returned by Lookup if no entry exists for the key
	ErrMiss = errors.New("cache miss")
	// ErrExpired is returned by Lookup if the entry was older than the TTL (it is purged)
	ErrExpired = errors.New("cache entry expired")
	// ErrCorrupt is returned by Lookup if the stored payload can not be decoded
	ErrCorrupt = errors.New("cache entry corrupt")
)

// Entry is a timestamped cache payload.
// Timestamp marks the last full write and is used for expiry.
type Entry[T any] struct {
	Data       T          `json:"data"`
	Timestamp  time.Time  `json:"timestamp"`
	WindowFrom *time.Time `json:"cacheWindowFrom,omitempty"`
	WindowTo   *time.Time `json:"cacheWindowTo,omitempty"`
	Cursor     string     `json:"continuationCursor,omitempty"`
}

// Clock returns the current time
type Clock func() time.Time

// Options configure a Store. The zero value never expires entries and encodes them as JSON.
type Options struct {
	TTL   time.Duration // entries older than TTL are expired, TTL <= 0 disables expiry
	Codec codec.ICodec
	Clock Clock
	Stats *stats.Stats
}

// Store gives expiring key to payload semantics over a durable store.
// It never panics or fails on bad data: I/O errors and corrupt payloads are logged
// and reported as absent by Get.
type Store[T any] struct {
	kv    kv.IKVStore
	ttl   time.Duration
	codec codec.ICodec
	now   Clock
	stats *stats.Stats
}

// New creates a Store[T] on top of store
func New[T any](store kv.IKVStore, opts Options) *Store[T] {
	if opts.Codec == nil {
		opts.Codec = codec.NewJSONCodec()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Store[T]{
		kv:    store,
		ttl:   opts.TTL,
		codec: opts.Codec,
		now:   opts.Clock,
		stats: opts.Stats,
	}
}

// TTL returns the expiry duration of the store
func (s *Store[T]) TTL() time.Duration {
	return s.ttl
}

// expired reports whether an entry written at ts is expired at now
func (s *Store[T]) expired(ts, now time.Time) bool {
	return s.ttl > 0 && now.Sub(ts) >= s.ttl
}

// Lookup returns the entry for key. The error is ErrMiss, ErrExpired, ErrCorrupt
// or a wrapped store error. An expired entry is removed from the durable store.
func (s *Store[T]) Lookup(key string) (Entry[T], error) {
	var entry Entry[T]

	raw, found, err := s.kv.Get(key)
	if err != nil {
		s.stats.Inc(stats.StoreErrors)
		return entry, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !found {
		s.stats.Inc(stats.TTLMisses)
		return entry, ErrMiss
	}

	if err := s.codec.Unmarshal(raw, &entry); err != nil {
		s.stats.Inc(stats.TTLCorrupt)
		return Entry[T]{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}

	if s.expired(entry.Timestamp, s.now()) {
		s.stats.Inc(stats.TTLExpired)
		if err := s.kv.Remove(key); err != nil {
			s.stats.Inc(stats.StoreErrors)
			Logger.Warningf("failed to purge expired entry %s: %v", key, err)
		}
		return Entry[T]{}, ErrExpired
	}

	s.stats.Inc(stats.TTLHits)
	return entry, nil
}

// Get returns the entry for key. Expired, corrupt and unreadable entries are reported
// as absent, only store errors are logged.
func (s *Store[T]) Get(key string) (Entry[T], bool) {
	entry, err := s.Lookup(key)
	switch {
	case err == nil:
		return entry, true
	case errors.Is(err, ErrMiss), errors.Is(err, ErrExpired):
		return entry, false
	case errors.Is(err, ErrCorrupt):
		Logger.Debugf("ignoring %v", err)
		return entry, false
	default:
		Logger.Errorf("%v", err)
		return entry, false
	}
}

// Set writes entry under key, replacing any existing entry.
// A zero Timestamp is set to the current time. Errors are logged and returned.
func (s *Store[T]) Set(key string, entry Entry[T]) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}
	raw, err := s.codec.Marshal(entry)
	if err != nil {
		Logger.Errorf("failed to encode entry %s: %v", key, err)
		return fmt.Errorf("failed to encode entry %s: %w", key, err)
	}
	if err := s.kv.Set(key, raw); err != nil {
		s.stats.Inc(stats.StoreErrors)
		Logger.Errorf("failed to write entry %s: %v", key, err)
		return fmt.Errorf("failed to write entry %s: %w", key, err)
	}
	return nil
}

// Remove deletes the entry under key. Errors are logged and returned.
func (s *Store[T]) Remove(key string) error {
	if err := s.kv.Remove(key); err != nil {
		s.stats.Inc(stats.StoreErrors)
		Logger.Errorf("failed to remove entry %s: %v", key, err)
		return fmt.Errorf("failed to remove entry %s: %w", key, err)
	}
	return nil
}

// Sweep removes every expired or corrupt entry whose key starts with prefix
// and returns the number of removed entries
func (s *Store[T]) Sweep(prefix string) int {
	keys, err := s.kv.KeysWithPrefix(prefix)
	if err != nil {
		s.stats.Inc(stats.StoreErrors)
		Logger.Errorf("failed to list keys for sweep: %v", err)
		return 0
	}

	removed := 0
	for _, key := range keys {
		_, err := s.Lookup(key)
		switch {
		case errors.Is(err, ErrExpired):
			removed++
		case errors.Is(err, ErrCorrupt):
			if s.Remove(key) == nil {
				removed++
			}
		}
	}
	if removed > 0 {
		Logger.Infof("sweep removed %d entries with prefix %q", removed, prefix)
	}
	return removed
}

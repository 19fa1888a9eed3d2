package recency

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ValentinKolb/flipcache/lib/codec"
	"github.com/ValentinKolb/flipcache/lib/kv"
	"github.com/ValentinKolb/flipcache/lib/stats"
	"github.com/ValentinKolb/flipcache/lib/util"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("recency")

const (
	// MarketItemPrefix is the key prefix of remembered market price lookups
	MarketItemPrefix = "@marketItem:"
	// DefaultCapacity is the number of entries kept if no capacity is configured
	DefaultCapacity = 24
)

// NormalizeQuery lower-cases q, trims it and collapses inner whitespace,
// so that equivalent lookups share one entry
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// Entry is the persisted form of a remembered lookup
type Entry[T any] struct {
	Query     string    `json:"query"`
	Item      T         `json:"item"`
	Timestamp time.Time `json:"timestamp"`
}

// Options configure a Cache
type Options struct {
	Prefix   string // defaults to MarketItemPrefix
	Capacity int    // defaults to DefaultCapacity
	Codec    codec.ICodec
	Clock    func() time.Time
	Stats    *stats.Stats
}

// Cache remembers the most recent lookups under a key prefix of a durable store.
// It never expires entries by age: once the capacity is reached, writing a new entry
// evicts the entry with the oldest timestamp.
//
// All methods take the query, the cache adds the prefix and normalizes it.
// Cache is safe for concurrent use.
type Cache[T any] struct {
	mu       sync.Mutex
	kv       kv.IKVStore
	prefix   string
	capacity int
	codec    codec.ICodec
	now      func() time.Time
	stats    *stats.Stats

	// index orders the readable entries by timestamp. It is built from one prefix scan
	// on first use and maintained by every mutation afterwards.
	index   *util.MapHeap
	corrupt map[string]struct{}
}

// New creates a Cache on top of store
func New[T any](store kv.IKVStore, opts Options) *Cache[T] {
	if opts.Prefix == "" {
		opts.Prefix = MarketItemPrefix
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.Codec == nil {
		opts.Codec = codec.NewJSONCodec()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Cache[T]{
		kv:       store,
		prefix:   opts.Prefix,
		capacity: opts.Capacity,
		codec:    opts.Codec,
		now:      opts.Clock,
		stats:    opts.Stats,
	}
}

// Key returns the store key of query
func (c *Cache[T]) Key(query string) string {
	return c.prefix + NormalizeQuery(query)
}

// Capacity returns the maximum number of entries
func (c *Cache[T]) Capacity() int {
	return c.capacity
}

// --------------------------------------------------------------------------
// Operations
// --------------------------------------------------------------------------

// Get returns the remembered item for query
func (c *Cache[T]) Get(query string) (T, bool) {
	var zero T
	entry, ok := c.read(c.Key(query))
	if !ok {
		return zero, false
	}
	return entry.Item, true
}

// Set remembers data for query with the current time. If query is new and the cache
// holds capacity or more entries, entries are evicted until there is room: corrupt
// entries first, then the ones with the oldest timestamp.
//
// Rewriting a query that is already present never evicts, not even in a full cache.
// The rewrite does not change occupancy, so no other entry has to make room for it.
func (c *Cache[T]) Set(query string, data T) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := c.Key(query)
	if err := c.ensureIndex(); err != nil {
		Logger.Errorf("failed to scan recency entries, skipping eviction: %v", err)
	} else if !c.contains(key) {
		for c.occupancy() >= c.capacity {
			if !c.evictOne(key) {
				break
			}
		}
	}

	return c.write(key, Entry[T]{Query: NormalizeQuery(query), Item: data, Timestamp: c.now()})
}

// Update replaces the item of an existing entry. The timestamp is kept unless refresh
// is true. It returns false (and writes nothing) if query has no readable entry.
func (c *Cache[T]) Update(query string, data T, refresh bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := c.Key(query)
	entry, ok := c.read(key)
	if !ok {
		Logger.Warningf("cannot update %s: no entry", key)
		return false
	}
	entry.Item = data
	if refresh {
		entry.Timestamp = c.now()
	}
	return c.write(key, entry) == nil
}

// Remove deletes the entry of query
func (c *Cache[T]) Remove(query string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := c.Key(query)
	if err := c.kv.Remove(key); err != nil {
		Logger.Errorf("failed to remove %s: %v", key, err)
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	if c.index != nil {
		c.index.RemoveByKey(key)
		delete(c.corrupt, key)
	}
	return nil
}

// Item is a remembered lookup as returned by ListAll
type Item[T any] struct {
	Query     string
	Data      T
	Timestamp time.Time
}

// ListAll returns every readable entry, newest first. Corrupt entries are skipped.
// The listing also refreshes the eviction index.
func (c *Cache[T]) ListAll() ([]Item[T], error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, corrupt, err := c.scan()
	if err != nil {
		Logger.Errorf("failed to list recency entries: %v", err)
		return nil, err
	}
	c.rebuild(entries, corrupt)

	items := make([]Item[T], 0, len(entries))
	for key, e := range entries {
		items = append(items, Item[T]{
			Query:     strings.TrimPrefix(key, c.prefix),
			Data:      e.Item,
			Timestamp: e.Timestamp,
		})
	}
	slices.SortFunc(items, func(a, b Item[T]) int {
		if cmp := b.Timestamp.Compare(a.Timestamp); cmp != 0 {
			return cmp
		}
		return strings.Compare(a.Query, b.Query)
	})
	return items, nil
}

// Len returns the number of entries under the prefix, corrupt ones included
func (c *Cache[T]) Len() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureIndex(); err != nil {
		return 0, err
	}
	return c.occupancy(), nil
}

// --------------------------------------------------------------------------
// Internal
// --------------------------------------------------------------------------

func (c *Cache[T]) contains(key string) bool {
	_, corrupt := c.corrupt[key]
	return corrupt || c.index.Contains(key)
}

func (c *Cache[T]) occupancy() int {
	return c.index.Len() + len(c.corrupt)
}

// evictOne removes a corrupt entry if there is one, otherwise the entry with the
// oldest timestamp unless its key is keep. It reports whether an entry was removed.
func (c *Cache[T]) evictOne(keep string) bool {
	victim := ""
	if len(c.corrupt) > 0 {
		corrupt := make([]string, 0, len(c.corrupt))
		for key := range c.corrupt {
			corrupt = append(corrupt, key)
		}
		victim = slices.Min(corrupt)
	} else if oldest, ok := c.index.Peek(); ok && oldest.Key != keep {
		victim = oldest.Key
	}
	if victim == "" {
		return false
	}

	if err := c.kv.Remove(victim); err != nil {
		Logger.Errorf("failed to evict %s: %v", victim, err)
		return false
	}
	c.index.RemoveByKey(victim)
	delete(c.corrupt, victim)
	c.stats.Inc(stats.RecencyEvictions)
	Logger.Debugf("evicted %s", victim)
	return true
}

// read loads and decodes the entry under key. Corrupt entries are reported as absent.
func (c *Cache[T]) read(key string) (Entry[T], bool) {
	var entry Entry[T]
	raw, found, err := c.kv.Get(key)
	if err != nil {
		Logger.Errorf("failed to read %s: %v", key, err)
		return entry, false
	}
	if !found {
		return entry, false
	}
	if err := c.codec.Unmarshal(raw, &entry); err != nil {
		c.stats.Inc(stats.RecencyCorrupt)
		Logger.Debugf("skipping corrupt entry %s: %v", key, err)
		return Entry[T]{}, false
	}
	return entry, true
}

// write stores entry under key and updates the index
func (c *Cache[T]) write(key string, entry Entry[T]) error {
	raw, err := c.codec.Marshal(entry)
	if err != nil {
		Logger.Errorf("failed to encode %s: %v", key, err)
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := c.kv.Set(key, raw); err != nil {
		Logger.Errorf("failed to write %s: %v", key, err)
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if c.index != nil {
		c.index.AddItem(key, entry.Timestamp.UnixNano())
		delete(c.corrupt, key)
	}
	return nil
}

// ensureIndex builds the index if it does not exist yet
func (c *Cache[T]) ensureIndex() error {
	if c.index != nil {
		return nil
	}
	entries, corrupt, err := c.scan()
	if err != nil {
		return err
	}
	c.rebuild(entries, corrupt)
	return nil
}

// scan reads every entry under the prefix
func (c *Cache[T]) scan() (map[string]Entry[T], []string, error) {
	keys, err := c.kv.KeysWithPrefix(c.prefix)
	if err != nil {
		return nil, nil, err
	}
	values, err := c.kv.MultiGet(keys)
	if err != nil {
		return nil, nil, err
	}

	entries := make(map[string]Entry[T], len(values))
	var corrupt []string
	for _, v := range values {
		if !v.Found {
			continue
		}
		var e Entry[T]
		if err := c.codec.Unmarshal(v.Value, &e); err != nil {
			corrupt = append(corrupt, v.Key)
			continue
		}
		entries[v.Key] = e
	}
	if len(corrupt) > 0 {
		c.stats.Add(stats.RecencyCorrupt, len(corrupt))
		Logger.Debugf("skipped %d corrupt entries under %s", len(corrupt), c.prefix)
	}
	return entries, corrupt, nil
}

func (c *Cache[T]) rebuild(entries map[string]Entry[T], corrupt []string) {
	c.index = util.NewMapHeap()
	for key, e := range entries {
		c.index.AddItem(key, e.Timestamp.UnixNano())
	}
	c.corrupt = make(map[string]struct{}, len(corrupt))
	for _, key := range corrupt {
		c.corrupt[key] = struct{}{}
	}
}

package session

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ValentinKolb/flipcache/lib/codec"
	"github.com/ValentinKolb/flipcache/lib/common"
	"github.com/ValentinKolb/flipcache/lib/kv"
	"github.com/ValentinKolb/flipcache/lib/kv/memkv"
	"github.com/ValentinKolb/flipcache/lib/kv/pebblekv"
	"github.com/ValentinKolb/flipcache/lib/mergesync"
	"github.com/ValentinKolb/flipcache/lib/partition"
	"github.com/ValentinKolb/flipcache/lib/recency"
	"github.com/ValentinKolb/flipcache/lib/records"
	"github.com/ValentinKolb/flipcache/lib/stats"
	"github.com/ValentinKolb/flipcache/lib/ttlstore"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("session")

// Collaborators are the remote services a session talks to.
// Tokens, Lister and Accounts are only needed for inventory and orders.
type Collaborators struct {
	Tokens   partition.TokenProvider
	Lister   partition.Lister
	Accounts partition.AccountsProvider
	Fetcher  mergesync.Fetcher
}

// Session owns every cache of one logged-in user. It is created on login and closed on
// logout; nothing is shared between sessions except the files in the data directory.
type Session struct {
	uid   string
	store kv.IKVStore
	stats *stats.Stats

	partitions  *ttlstore.Store[[]string]
	collections *ttlstore.Store[mergesync.Collection]
	membership  *ttlstore.Store[mergesync.Membership]
	resolver    *partition.Resolver
	engine      *mergesync.Engine
	recent      *recency.Cache[records.MarketItem]
}

// Open validates cfg, opens the durable store and wires all caches on top of it
func Open(cfg common.Config, c Collaborators) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Fetcher == nil {
		return nil, fmt.Errorf("a fetcher is required")
	}
	valueCodec, err := codec.ByName(cfg.Codec)
	if err != nil {
		return nil, err
	}

	store, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}

	st := stats.New()
	partitions := ttlstore.New[[]string](store, ttlstore.Options{TTL: cfg.PartitionTTL, Codec: valueCodec, Stats: st})
	collections := ttlstore.New[mergesync.Collection](store, ttlstore.Options{TTL: cfg.CollectionTTL, Codec: valueCodec, Stats: st})
	membership := ttlstore.New[mergesync.Membership](store, ttlstore.Options{TTL: cfg.CollectionTTL, Codec: valueCodec, Stats: st})
	resolver := partition.NewResolver(partitions, c.Tokens, c.Lister, c.Accounts, st)

	s := &Session{
		uid:         cfg.UID,
		store:       store,
		stats:       st,
		partitions:  partitions,
		collections: collections,
		membership:  membership,
		resolver:    resolver,
		engine:      mergesync.NewEngine(resolver, c.Fetcher, collections, membership, mergesync.Options{Concurrency: cfg.FetchConcurrency, Stats: st}),
		recent: recency.New[records.MarketItem](store, recency.Options{
			Prefix:   recency.MarketItemPrefix,
			Capacity: cfg.RecencyCapacity,
			Codec:    valueCodec,
			Stats:    st,
		}),
	}
	Logger.Infof("opened session for %s (%s store at %s, %s codec)", cfg.UID, cfg.StoreType, cfg.StorePath(), valueCodec.Name())
	return s, nil
}

// OpenStore opens the durable store selected by cfg, creating the data directory if needed
func OpenStore(cfg common.Config) (kv.IKVStore, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	switch cfg.StoreType {
	case common.StoreTypeMemory:
		return memkv.OpenFile(cfg.StorePath(), memkv.DefaultOptions())
	case common.StoreTypePebble:
		return pebblekv.Open(cfg.StorePath())
	default:
		return nil, fmt.Errorf("invalid store type: %s", cfg.StoreType)
	}
}

// UID returns the user the session belongs to
func (s *Session) UID() string { return s.uid }

// Engine returns the merge-sync engine of the session
func (s *Session) Engine() *mergesync.Engine { return s.engine }

// Resolver returns the partition resolver of the session
func (s *Session) Resolver() *partition.Resolver { return s.resolver }

// Recent returns the recency cache of market lookups
func (s *Session) Recent() *recency.Cache[records.MarketItem] { return s.recent }

// Stats returns the metrics of the session
func (s *Session) Stats() *stats.Stats { return s.stats }

// Store returns the durable store
func (s *Session) Store() kv.IKVStore { return s.store }

// Sync runs a sync of req for the session user
func (s *Session) Sync(ctx context.Context, req mergesync.Request) *mergesync.Result {
	req.UID = s.uid
	return s.engine.Sync(ctx, req)
}

// Sweep removes the expired collections and membership entries of the session user and
// every expired partition list. It returns the number of removed entries.
func (s *Session) Sweep() int {
	removed := 0
	for _, root := range records.RootKinds {
		removed += s.partitions.Sweep(string(root) + "-subcols-")

		// Lookup purges expired entries
		key := records.CollectionKey(root, s.uid)
		if _, err := s.collections.Lookup(key); errors.Is(err, ttlstore.ErrExpired) {
			removed++
		}
		if _, err := s.membership.Lookup(records.MembershipKey(key)); errors.Is(err, ttlstore.ErrExpired) {
			removed++
		}
	}
	return removed
}

// Close closes the durable store. The session must not be used afterwards.
func (s *Session) Close() error {
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	Logger.Infof("closed session for %s", s.uid)
	return nil
}

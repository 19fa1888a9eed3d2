package mergesync

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/ValentinKolb/flipcache/lib/filter"
	"github.com/ValentinKolb/flipcache/lib/records"
	"github.com/ValentinKolb/flipcache/lib/stats"
	"github.com/ValentinKolb/flipcache/lib/ttlstore"
	"github.com/lni/dragonboat/v4/logger"
	"golang.org/x/sync/errgroup"
)

var Logger = logger.GetLogger("mergesync")

// --------------------------------------------------------------------------
// Collaborators
// --------------------------------------------------------------------------

// FetchRequest describes the records of one partition a sync needs
type FetchRequest struct {
	UID           string
	Root          records.RootKind
	Partition     string
	FilterKey     records.FilterKey
	From          time.Time
	To            *time.Time
	Cursor        string
	Paginate      bool
	FetchNextPage bool
	ForceRefresh  bool
	SearchFields  []string
	SearchText    string
}

// Fetcher returns the records of a single partition for the requested window.
// Its result is treated as the truth for that partition.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) ([]records.Record, error)
}

// PartitionResolver returns the partitions a sync has to fetch (see partition.Resolver)
type PartitionResolver interface {
	Resolve(ctx context.Context, uid string, root records.RootKind, explicit string) ([]string, error)
}

// Collection is the persisted merged collection, keyed by record identity
type Collection = map[string]records.Record

// Membership maps a partition to the identities it contributed
type Membership = map[string][]string

// --------------------------------------------------------------------------
// Request / Result
// --------------------------------------------------------------------------

// Request is a single sync call
type Request struct {
	UID  string
	Root records.RootKind
	// CacheKey defaults to records.CollectionKey(Root, UID)
	CacheKey  string
	FilterKey records.FilterKey
	From      time.Time
	To        *time.Time
	// Partition restricts the sync to one partition
	Partition     string
	SearchFields  []string
	SearchText    string
	Paginate      bool
	FetchNextPage bool
	ForceRefresh  bool

	// WindowFrom, WindowTo and Cursor replace the values remembered in the cache entry
	WindowFrom *time.Time
	WindowTo   *time.Time
	Cursor     string
}

// PartitionResult is the outcome of fetching one partition
type PartitionResult struct {
	Name  string
	Count int
	Err   error
}

// Result is the outcome of a sync. Records is always usable, errors only mean that
// it may be incomplete.
type Result struct {
	Records    []records.Record
	Partitions []PartitionResult
	ResolveErr error
}

// Err returns all errors of the sync joined, or nil
func (r *Result) Err() error {
	errs := []error{r.ResolveErr}
	for _, p := range r.Partitions {
		if p.Err != nil {
			errs = append(errs, fmt.Errorf("partition %s: %w", p.Name, p.Err))
		}
	}
	return errors.Join(errs...)
}

// --------------------------------------------------------------------------
// Engine
// --------------------------------------------------------------------------

// Options configure an Engine
type Options struct {
	// Concurrency limits the number of partitions fetched at the same time (<= 0: unlimited)
	Concurrency int
	Stats       *stats.Stats
}

// Engine merges freshly fetched partition data into the persisted collection cache
type Engine struct {
	resolver    PartitionResolver
	fetcher     Fetcher
	collections *ttlstore.Store[Collection]
	membership  *ttlstore.Store[Membership]
	concurrency int
	stats       *stats.Stats
}

// NewEngine creates an Engine persisting merged collections in collections and their
// partition membership in membership
func NewEngine(resolver PartitionResolver, fetcher Fetcher, collections *ttlstore.Store[Collection], membership *ttlstore.Store[Membership], opts Options) *Engine {
	return &Engine{
		resolver:    resolver,
		fetcher:     fetcher,
		collections: collections,
		membership:  membership,
		concurrency: opts.Concurrency,
		stats:       opts.Stats,
	}
}

// Sync resolves the partitions of the request, fetches all of them concurrently, merges
// the fresh records into the cached collection (fresh records win), persists the result
// and returns the merged records sorted newest first and filtered by partition, date
// window and search text.
//
// Sync never fails as a whole: a failing partition contributes nothing and is reported
// in Result.Partitions.
func (e *Engine) Sync(ctx context.Context, req Request) *Result {
	start := time.Now()
	defer e.stats.TimeSync(start)
	e.stats.Inc(stats.Syncs)

	if req.CacheKey == "" {
		req.CacheKey = records.CollectionKey(req.Root, req.UID)
	}
	if req.FilterKey == "" {
		req.FilterKey = records.FilterCreatedAt
	}
	res := &Result{Records: []records.Record{}}

	// 1. resolve partitions
	partitions, err := e.resolver.Resolve(ctx, req.UID, req.Root, req.Partition)
	if err != nil {
		res.ResolveErr = err
		Logger.Warningf("failed to resolve partitions for %s: %v", req.CacheKey, err)
		if len(partitions) == 0 {
			return res
		}
	}

	// 2. fetch every partition, failures degrade to empty
	fresh := e.fetchAll(ctx, req, partitions)
	res.Partitions = make([]PartitionResult, len(fresh))
	for i, f := range fresh {
		res.Partitions[i] = f.PartitionResult
	}

	// 3. + 4. load the cache and let fresh records win
	cached, _ := e.collections.Get(req.CacheKey)
	merged := e.merge(cached.Data, fresh)

	// 5. sort
	list := toList(merged)
	filter.SortByDate(list, req.FilterKey)

	// 6. persist, carrying the remembered window forward
	entry := ttlstore.Entry[Collection]{
		Data:       merged,
		WindowFrom: cached.WindowFrom,
		WindowTo:   cached.WindowTo,
		Cursor:     cached.Cursor,
	}
	if req.WindowFrom != nil {
		entry.WindowFrom = req.WindowFrom
	}
	if req.WindowTo != nil {
		entry.WindowTo = req.WindowTo
	}
	if req.Cursor != "" {
		entry.Cursor = req.Cursor
	}
	_ = e.collections.Set(req.CacheKey, entry)
	e.updateMembership(req.CacheKey, merged, fresh)

	// 7. - 9. filter
	if req.Partition != "" {
		list = filter.ByPartition(list, req.Partition)
	}
	list = filter.ByDate(list, req.FilterKey, req.From, req.To)
	list = filter.ByText(list, req.SearchFields, req.SearchText)

	res.Records = list
	Logger.Debugf("synced %s: %d partitions, %d cached, %d returned", req.CacheKey, len(partitions), len(merged), len(list))
	return res
}

// fetched is the outcome of one partition fetch
type fetched struct {
	PartitionResult
	records []records.Record
}

// fetchAll fetches all partitions and waits for every one of them to settle
func (e *Engine) fetchAll(ctx context.Context, req Request, partitions []string) []fetched {
	results := make([]fetched, len(partitions))

	var g errgroup.Group
	if e.concurrency > 0 {
		g.SetLimit(e.concurrency)
	}
	for i, name := range partitions {
		i, name := i, name
		g.Go(func() error {
			results[i] = e.fetchOne(ctx, req, name)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// fetchOne fetches a single partition. Errors and panics of the fetcher are recorded
// in the result.
func (e *Engine) fetchOne(ctx context.Context, req Request, name string) (out fetched) {
	out.Name = name
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			out = fetched{PartitionResult: PartitionResult{Name: name, Err: fmt.Errorf("fetcher panicked: %v", p)}}
		}
		if out.Err != nil {
			e.stats.Inc(stats.PartitionFailures)
			Logger.Warningf("fetch of partition %s failed: %v", name, out.Err)
		}
		e.stats.TimeFetch(name, start)
	}()

	recs, err := e.fetcher.Fetch(ctx, FetchRequest{
		UID:           req.UID,
		Root:          req.Root,
		Partition:     name,
		FilterKey:     req.FilterKey,
		From:          req.From,
		To:            req.To,
		Cursor:        req.Cursor,
		Paginate:      req.Paginate,
		FetchNextPage: req.FetchNextPage,
		ForceRefresh:  req.ForceRefresh,
		SearchFields:  req.SearchFields,
		SearchText:    req.SearchText,
	})
	if err != nil {
		out.Err = err
		return out
	}
	out.records = recs
	out.Count = len(recs)
	return out
}

// merge copies cached and overwrites it with every fresh record, keyed by identity.
// Records without identity are dropped.
func (e *Engine) merge(cached Collection, fresh []fetched) Collection {
	merged := make(Collection, len(cached))
	for id, r := range cached {
		if id == "" || !r.Valid() {
			continue
		}
		merged[id] = r
	}

	dropped := 0
	for _, f := range fresh {
		for _, r := range f.records {
			id := r.Identity()
			if id == "" {
				dropped++
				continue
			}
			merged[id] = r
		}
	}
	if dropped > 0 {
		e.stats.Add(stats.RecordsDropped, dropped)
		Logger.Warningf("dropped %d records without identity", dropped)
	}
	return merged
}

// updateMembership adds the identities each successful partition returned to its
// membership and forgets identities that are no longer cached
func (e *Engine) updateMembership(cacheKey string, merged Collection, fresh []fetched) {
	key := records.MembershipKey(cacheKey)
	prev, _ := e.membership.Get(key)

	next := make(Membership, len(prev.Data)+len(fresh))
	for partition, ids := range prev.Data {
		next[partition] = ids
	}
	for _, f := range fresh {
		if f.Err != nil {
			continue
		}
		for _, r := range f.records {
			if id := r.Identity(); id != "" {
				next[f.Name] = append(next[f.Name], id)
			}
		}
	}
	for partition, ids := range next {
		next[partition] = keepCached(ids, merged)
		if len(next[partition]) == 0 {
			delete(next, partition)
		}
	}
	_ = e.membership.Set(key, ttlstore.Entry[Membership]{Data: next})
}

// keepCached returns the distinct ids present in merged, in their first order
func keepCached(ids []string, merged Collection) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := merged[id]; !ok {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// toList returns the records of c ordered by identity, the base order of the stable date sort
func toList(c Collection) []records.Record {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	list := make([]records.Record, 0, len(c))
	for _, id := range ids {
		list = append(list, c[id])
	}
	return list
}

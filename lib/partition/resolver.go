package partition

import (
	"context"
	"errors"
	"fmt"

	"github.com/ValentinKolb/flipcache/lib/records"
	"github.com/ValentinKolb/flipcache/lib/stats"
	"github.com/ValentinKolb/flipcache/lib/ttlstore"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("partition")

var (
	// ErrNoToken is reported if the token provider has no token for the current user
	ErrNoToken = errors.New("no auth token available")
	// ErrUnknownRoot is returned for root collections the resolver does not know
	ErrUnknownRoot = errors.New("unknown root collection")
)

// --------------------------------------------------------------------------
// Collaborators
// --------------------------------------------------------------------------

// TokenProvider returns the auth token of the logged-in user.
// An empty token without error means the user is not signed in.
type TokenProvider interface {
	IDToken(ctx context.Context) (string, error)
}

// Lister returns the partitions the remote store knows for a root collection
type Lister interface {
	ListPartitions(ctx context.Context, token string, root records.RootKind) ([]string, error)
}

// Account is an external store connected to the user's profile.
// Payload carries the connection details and may be nil.
type Account struct {
	Name    string         `json:"name"`
	Payload map[string]any `json:"payload,omitempty"`
}

// AccountsProvider returns the connected external accounts of a user in display order
type AccountsProvider interface {
	ConnectedAccounts(ctx context.Context, uid string) ([]Account, error)
}

// --------------------------------------------------------------------------
// Resolver
// --------------------------------------------------------------------------

// Resolver determines the partitions a sync of a root collection has to query.
// Resolved lists of dynamically partitioned collections are cached.
type Resolver struct {
	cache    *ttlstore.Store[[]string]
	tokens   TokenProvider
	lister   Lister
	accounts AccountsProvider
	stats    *stats.Stats
}

// NewResolver creates a Resolver caching in cache. The collaborators are only called
// for inventory and orders; any of them may be nil, which is reported as an error
// when it is needed.
func NewResolver(cache *ttlstore.Store[[]string], tokens TokenProvider, lister Lister, accounts AccountsProvider, st *stats.Stats) *Resolver {
	return &Resolver{
		cache:    cache,
		tokens:   tokens,
		lister:   lister,
		accounts: accounts,
		stats:    st,
	}
}

// Resolve returns the partitions of root for uid.
//
// An explicit partition is returned as is. Otherwise the cached list is used if present.
// On a miss, expense collections resolve to their fixed partition and inventory and
// orders to the connected accounts followed by the remote-only partitions.
//
// A non-nil error together with a non-empty list means the list is incomplete but usable.
// Such lists are not cached.
func (r *Resolver) Resolve(ctx context.Context, uid string, root records.RootKind, explicit string) ([]string, error) {
	if explicit != "" {
		return []string{explicit}, nil
	}

	if _, ok := records.ParseRootKind(string(root)); !ok {
		return []string{}, fmt.Errorf("%w: %q", ErrUnknownRoot, root)
	}

	key := records.PartitionsKey(root, uid)
	if entry, ok := r.cache.Get(key); ok {
		r.stats.Inc(stats.PartitionHits)
		return entry.Data, nil
	}

	if fixed, ok := root.FixedPartition(); ok {
		return []string{fixed}, nil
	}

	r.stats.Inc(stats.PartitionResolves)
	remote, remoteErr := r.remotePartitions(ctx, root)
	connected, accountsErr := r.connectedAccounts(ctx, uid)

	partitions := union(connected, remote)
	if err := errors.Join(remoteErr, accountsErr); err != nil {
		Logger.Warningf("partitions of %s for %s are incomplete: %v", root, uid, err)
		return partitions, err
	}

	if err := r.cache.Set(key, ttlstore.Entry[[]string]{Data: partitions}); err != nil {
		Logger.Warningf("failed to cache partitions of %s: %v", root, err)
	}
	Logger.Debugf("resolved partitions of %s for %s: %v", root, uid, partitions)
	return partitions, nil
}

// remotePartitions fetches a token and the partitions known to the remote store
func (r *Resolver) remotePartitions(ctx context.Context, root records.RootKind) ([]string, error) {
	if r.tokens == nil || r.lister == nil {
		return nil, fmt.Errorf("remote partition listing is not configured")
	}
	token, err := r.tokens.IDToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get auth token: %w", err)
	}
	if token == "" {
		return nil, ErrNoToken
	}
	names, err := r.lister.ListPartitions(ctx, token, root)
	if err != nil {
		return nil, fmt.Errorf("failed to list partitions of %s: %w", root, err)
	}
	return names, nil
}

// connectedAccounts returns the names of the connected accounts
func (r *Resolver) connectedAccounts(ctx context.Context, uid string) ([]string, error) {
	if r.accounts == nil {
		return nil, nil
	}
	accounts, err := r.accounts.ConnectedAccounts(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to get connected accounts: %w", err)
	}
	names := make([]string, 0, len(accounts))
	for _, a := range accounts {
		names = append(names, a.Name)
	}
	return names, nil
}

// union returns first followed by the elements of second not in first.
// Empty names and duplicates are removed.
func union(first, second []string) []string {
	seen := make(map[string]struct{}, len(first)+len(second))
	out := make([]string, 0, len(first)+len(second))
	for _, list := range [][]string{first, second} {
		for _, name := range list {
			if name == "" {
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}

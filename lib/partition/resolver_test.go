package partition

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ValentinKolb/flipcache/lib/kv/memkv"
	"github.com/ValentinKolb/flipcache/lib/records"
	"github.com/ValentinKolb/flipcache/lib/stats"
	"github.com/ValentinKolb/flipcache/lib/ttlstore"
)

type fakeTokens struct {
	token string
	err   error
}

func (f fakeTokens) IDToken(context.Context) (string, error) { return f.token, f.err }

type fakeLister struct {
	names []string
	err   error
	calls int
	token string
}

func (f *fakeLister) ListPartitions(_ context.Context, token string, _ records.RootKind) ([]string, error) {
	f.calls++
	f.token = token
	return f.names, f.err
}

type fakeAccounts struct {
	names []string
	err   error
}

func (f fakeAccounts) ConnectedAccounts(context.Context, string) ([]Account, error) {
	out := make([]Account, len(f.names))
	for i, n := range f.names {
		out[i] = Account{Name: n}
	}
	return out, f.err
}

func newCache(t *testing.T) *ttlstore.Store[[]string] {
	t.Helper()
	backend := memkv.NewStore(memkv.DefaultOptions())
	t.Cleanup(func() { _ = backend.Close() })
	return ttlstore.New[[]string](backend, ttlstore.Options{TTL: 15 * time.Minute})
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestExplicitPartitionSkipsCache(t *testing.T) {
	lister := &fakeLister{names: []string{"ebay"}}
	r := NewResolver(newCache(t), fakeTokens{token: "t"}, lister, nil, nil)

	got, err := r.Resolve(context.Background(), "u1", records.RootInventory, "grailed")
	if err != nil || !equal(got, []string{"grailed"}) {
		t.Fatalf("Resolve() = %v, %v", got, err)
	}
	if lister.calls != 0 {
		t.Error("explicit partition must not query the lister")
	}
	if _, ok := r.cache.Get(records.PartitionsKey(records.RootInventory, "u1")); ok {
		t.Error("explicit partition must not be cached")
	}
}

func TestFixedPartitions(t *testing.T) {
	tests := []struct {
		root records.RootKind
		want string
	}{
		{records.RootOneTimeExpenses, records.PartitionOneTime},
		{records.RootSubscriptionExpenses, records.PartitionSubscription},
	}
	for _, tt := range tests {
		t.Run(string(tt.root), func(t *testing.T) {
			lister := &fakeLister{}
			r := NewResolver(newCache(t), nil, lister, nil, nil)
			got, err := r.Resolve(context.Background(), "u1", tt.root, "")
			if err != nil || !equal(got, []string{tt.want}) {
				t.Errorf("Resolve() = %v, %v", got, err)
			}
			if lister.calls != 0 {
				t.Error("fixed partition must not query the lister")
			}
		})
	}
}

func TestUnionOrderAndCaching(t *testing.T) {
	lister := &fakeLister{names: []string{"depop", "ebay", "", "poshmark"}}
	accounts := fakeAccounts{names: []string{"ebay", "grailed"}}
	st := stats.New()
	r := NewResolver(newCache(t), fakeTokens{token: "secret"}, lister, accounts, st)

	want := []string{"ebay", "grailed", "depop", "poshmark"}
	got, err := r.Resolve(context.Background(), "u1", records.RootOrders, "")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !equal(got, want) {
		t.Errorf("Resolve() = %v, want %v", got, want)
	}
	if lister.token != "secret" {
		t.Errorf("lister got token %q", lister.token)
	}

	// second call is served from the cache
	lister.names = []string{"other"}
	got, err = r.Resolve(context.Background(), "u1", records.RootOrders, "")
	if err != nil || !equal(got, want) {
		t.Errorf("cached Resolve() = %v, %v", got, err)
	}
	if lister.calls != 1 {
		t.Errorf("lister called %d times, want 1", lister.calls)
	}
	if st.Count(stats.PartitionHits) != 1 {
		t.Errorf("partition hits = %d, want 1", st.Count(stats.PartitionHits))
	}
}

func TestErrorsAreBestEffort(t *testing.T) {
	tests := []struct {
		name     string
		tokens   fakeTokens
		lister   *fakeLister
		accounts fakeAccounts
		want     []string
		wantErr  error
	}{
		{
			name:     "no token",
			tokens:   fakeTokens{},
			lister:   &fakeLister{names: []string{"depop"}},
			accounts: fakeAccounts{names: []string{"ebay"}},
			want:     []string{"ebay"},
			wantErr:  ErrNoToken,
		},
		{
			name:     "lister fails",
			tokens:   fakeTokens{token: "t"},
			lister:   &fakeLister{err: errors.New("boom")},
			accounts: fakeAccounts{names: []string{"ebay"}},
			want:     []string{"ebay"},
		},
		{
			name:     "accounts fail",
			tokens:   fakeTokens{token: "t"},
			lister:   &fakeLister{names: []string{"depop"}},
			accounts: fakeAccounts{err: errors.New("offline")},
			want:     []string{"depop"},
		},
		{
			name:     "everything fails",
			tokens:   fakeTokens{err: errors.New("auth down")},
			lister:   &fakeLister{},
			accounts: fakeAccounts{err: errors.New("offline")},
			want:     []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(newCache(t), tt.tokens, tt.lister, tt.accounts, nil)
			got, err := r.Resolve(context.Background(), "u1", records.RootInventory, "")
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error %v does not wrap %v", err, tt.wantErr)
			}
			if !equal(got, tt.want) {
				t.Errorf("Resolve() = %v, want %v", got, tt.want)
			}
			if _, ok := r.cache.Get(records.PartitionsKey(records.RootInventory, "u1")); ok {
				t.Error("incomplete list must not be cached")
			}
		})
	}
}

func TestUnknownRoot(t *testing.T) {
	r := NewResolver(newCache(t), nil, nil, nil, nil)
	got, err := r.Resolve(context.Background(), "u1", records.RootKind("cars"), "")
	if !errors.Is(err, ErrUnknownRoot) || len(got) != 0 {
		t.Errorf("Resolve() = %v, %v", got, err)
	}
}

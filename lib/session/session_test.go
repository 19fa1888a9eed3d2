package session

import (
	"context"
	"testing"
	"time"

	"github.com/ValentinKolb/flipcache/lib/common"
	"github.com/ValentinKolb/flipcache/lib/mergesync"
	"github.com/ValentinKolb/flipcache/lib/records"
	"github.com/ValentinKolb/flipcache/lib/remote"
	"github.com/shopspring/decimal"
)

type staticFetcher map[string][]records.Record

func (f staticFetcher) Fetch(_ context.Context, req mergesync.FetchRequest) ([]records.Record, error) {
	return f[req.Partition], nil
}

func testConfig(t *testing.T, store common.StoreType, valueCodec string) common.Config {
	cfg := common.DefaultConfig()
	cfg.UID = "u1"
	cfg.DataDir = t.TempDir()
	cfg.StoreType = store
	cfg.Codec = valueCodec
	return cfg
}

func TestOpenValidates(t *testing.T) {
	cfg := testConfig(t, common.StoreTypeMemory, "json")
	cfg.UID = ""
	if _, err := Open(cfg, Collaborators{Fetcher: staticFetcher{}}); err == nil {
		t.Error("expected error for a config without uid")
	}

	cfg = testConfig(t, common.StoreTypeMemory, "yaml")
	if _, err := Open(cfg, Collaborators{Fetcher: staticFetcher{}}); err == nil {
		t.Error("expected error for an unknown codec")
	}

	cfg = testConfig(t, common.StoreTypeMemory, "json")
	if _, err := Open(cfg, Collaborators{}); err == nil {
		t.Error("expected error without fetcher")
	}
}

func TestSessionPersists(t *testing.T) {
	tests := []struct {
		store common.StoreType
		codec string
	}{
		{common.StoreTypeMemory, "json"},
		{common.StoreTypeMemory, "gob"},
		{common.StoreTypePebble, "json"},
		{common.StoreTypePebble, "gob"},
	}

	for _, tt := range tests {
		t.Run(string(tt.store)+"/"+tt.codec, func(t *testing.T) {
			cfg := testConfig(t, tt.store, tt.codec)
			created := records.NewTimestamp(time.Now().Add(-time.Hour))
			collab := Collaborators{
				Tokens:   remote.StaticToken("t"),
				Accounts: remote.StaticAccounts{"ebay"},
				Fetcher: staticFetcher{"ebay": {
					records.FromListing(records.Listing{ItemID: "L1", Store: "ebay", Title: "Air Max 90", CreatedAt: created, Price: decimal.RequireFromString("99.5")}),
				}},
			}

			s, err := Open(cfg, collab)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			// the lister is missing, which is reported but not fatal
			res := s.Sync(context.Background(), mergesync.Request{
				Root:      records.RootInventory,
				FilterKey: records.FilterCreatedAt,
				From:      time.Now().Add(-24 * time.Hour),
			})
			if len(res.Records) != 1 {
				t.Fatalf("Sync() returned %d records (err %v)", len(res.Records), res.Err())
			}
			if err := s.Recent().Set("Air Max 90", records.MarketItem{Title: "Air Max 90", Average: decimal.RequireFromString("110")}); err != nil {
				t.Fatalf("recency Set failed: %v", err)
			}
			if err := s.Close(); err != nil {
				t.Fatalf("Close failed: %v", err)
			}

			// a new session on the same data directory sees the cached data
			s, err = Open(cfg, Collaborators{Fetcher: staticFetcher{}})
			if err != nil {
				t.Fatalf("reopen failed: %v", err)
			}
			defer s.Close()

			recs, ok := s.Engine().Cached(records.CollectionKey(records.RootInventory, "u1"), records.FilterCreatedAt)
			if !ok || len(recs) != 1 || !recs[0].Listing.Price.Equal(decimal.RequireFromString("99.5")) {
				t.Errorf("cached collection lost: %v, %v", recs, ok)
			}
			item, ok := s.Recent().Get("air max 90")
			if !ok || !item.Average.Equal(decimal.RequireFromString("110")) {
				t.Errorf("recency entry lost: %+v, %v", item, ok)
			}
		})
	}
}

func TestSweepKeepsFreshEntries(t *testing.T) {
	cfg := testConfig(t, common.StoreTypeMemory, "json")
	s, err := Open(cfg, Collaborators{Fetcher: staticFetcher{records.PartitionOneTime: {
		records.FromExpense(records.Expense{ID: "E1", Partition: records.PartitionOneTime, CreatedAt: records.NewTimestamp(time.Now())}),
	}}})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	s.Sync(context.Background(), mergesync.Request{Root: records.RootOneTimeExpenses})
	if n := s.Sweep(); n != 0 {
		t.Errorf("Sweep removed %d fresh entries", n)
	}
	if _, ok := s.Engine().Cached(records.CollectionKey(records.RootOneTimeExpenses, "u1"), records.FilterCreatedAt); !ok {
		t.Error("fresh collection removed by Sweep")
	}
}

func TestSweepRemovesExpiredEntries(t *testing.T) {
	cfg := testConfig(t, common.StoreTypeMemory, "json")
	cfg.CollectionTTL = 20 * time.Millisecond
	s, err := Open(cfg, Collaborators{Fetcher: staticFetcher{records.PartitionOneTime: {
		records.FromExpense(records.Expense{ID: "E1", Partition: records.PartitionOneTime, CreatedAt: records.NewTimestamp(time.Now())}),
	}}})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	s.Sync(context.Background(), mergesync.Request{Root: records.RootOneTimeExpenses})
	key := records.CollectionKey(records.RootOneTimeExpenses, "u1")
	if _, found, _ := s.Store().Get(records.MembershipKey(key)); !found {
		t.Fatal("sync wrote no membership entry")
	}

	time.Sleep(50 * time.Millisecond)
	if n := s.Sweep(); n != 2 {
		t.Errorf("Sweep removed %d entries, want 2", n)
	}
	for _, k := range []string{key, records.MembershipKey(key)} {
		if _, found, _ := s.Store().Get(k); found {
			t.Errorf("expired entry %s survived Sweep", k)
		}
	}
}

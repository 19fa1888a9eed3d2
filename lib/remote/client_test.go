package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/flipcache/lib/mergesync"
	"github.com/ValentinKolb/flipcache/lib/partition"
	"github.com/ValentinKolb/flipcache/lib/records"
)

func newClient(t *testing.T, retries int, tokens partition.TokenProvider, servers ...*httptest.Server) *Client {
	t.Helper()
	endpoints := make([]string, len(servers))
	for i, s := range servers {
		endpoints[i] = s.URL
	}
	c, err := NewClient(Config{Endpoints: endpoints, TimeoutSecond: 5, RetryCount: retries}, tokens)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestListPartitions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/partitions/inventory" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected Authorization header %q", got)
		}
		_ = json.NewEncoder(w).Encode([]string{"ebay", "depop"})
	}))
	defer server.Close()

	c := newClient(t, 1, nil, server)
	names, err := c.ListPartitions(context.Background(), "secret", records.RootInventory)
	if err != nil {
		t.Fatalf("ListPartitions failed: %v", err)
	}
	if len(names) != 2 || names[0] != "ebay" || names[1] != "depop" {
		t.Errorf("ListPartitions() = %v", names)
	}
}

func TestFetch(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/records/orders/ebay" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("uid") != "u1" || q.Get("from") != "2024-01-01T00:00:00Z" || q.Get("filterKey") != "sale.date" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if q.Get("q") != "nike" || q.Get("fields") != "title,buyer" || q.Get("refresh") != "true" {
			t.Errorf("unexpected search query %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`[{"kind":"order","transactionId":"T1","store":"ebay"},{"transactionId":"T2"}]`))
	}))
	defer server.Close()

	c := newClient(t, 1, StaticToken("secret"), server)
	recs, err := c.Fetch(context.Background(), mergesync.FetchRequest{
		UID:          "u1",
		Root:         records.RootOrders,
		Partition:    "ebay",
		FilterKey:    records.FilterSaleDate,
		From:         from,
		ForceRefresh: true,
		SearchFields: []string{"title", "buyer"},
		SearchText:   "nike",
	})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(recs) != 2 || recs[0].Identity() != "T1" || recs[1].Kind != records.KindOrder {
		t.Errorf("Fetch() = %+v", recs)
	}
}

func TestFetchDropsUnreadableRecords(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    []string
	}{
		{"record without identity", `[{"transactionId":"T1","store":"ebay"},{"title":"draft without id"}]`, []string{"T1"}},
		{"unknown kind", `[{"kind":"bundle","id":"B1"},{"transactionId":"T1"}]`, []string{"T1"}},
		{"numeric date", `[{"transactionId":"T2","createdAt":1700000000000}]`, []string{"T2"}},
		{"not an object", `[42,{"transactionId":"T1"}]`, []string{"T1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.payload))
			}))
			defer server.Close()

			c := newClient(t, 1, StaticToken("secret"), server)
			recs, err := c.Fetch(context.Background(), mergesync.FetchRequest{UID: "u1", Root: records.RootOrders, Partition: "ebay"})
			if err != nil {
				t.Fatalf("Fetch failed: %v", err)
			}
			if len(recs) != len(tt.want) {
				t.Fatalf("Fetch() returned %d records, want %d: %+v", len(recs), len(tt.want), recs)
			}
			for i, id := range tt.want {
				if recs[i].Identity() != id {
					t.Errorf("record %d has identity %q, want %q", i, recs[i].Identity(), id)
				}
			}
		})
	}
}

func TestFetchNumericDateIsKept(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"transactionId":"T2","createdAt":1700000000000}]`))
	}))
	defer server.Close()

	c := newClient(t, 1, StaticToken("secret"), server)
	recs, err := c.Fetch(context.Background(), mergesync.FetchRequest{Root: records.RootOrders, Partition: "ebay"})
	if err != nil || len(recs) != 1 {
		t.Fatalf("Fetch() = %v, %v", recs, err)
	}
	date, ok := recs[0].DateFor(records.FilterCreatedAt)
	if !ok || !date.Equal(time.UnixMilli(1700000000000)) {
		t.Errorf("DateFor() = %v, %v", date, ok)
	}
}

func TestFetchEscapesPartition(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.EscapedPath(); got != "/records/orders/my%2Fshop%3Fx" {
			t.Errorf("unexpected escaped path %s", got)
		}
		if r.URL.Query().Get("uid") != "u1" {
			t.Errorf("query lost: %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	c := newClient(t, 1, StaticToken("secret"), server)
	if _, err := c.Fetch(context.Background(), mergesync.FetchRequest{UID: "u1", Root: records.RootOrders, Partition: "my/shop?x"}); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
}

func TestFetchWithoutToken(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	c := newClient(t, 1, StaticToken(""), server)
	_, err := c.Fetch(context.Background(), mergesync.FetchRequest{Root: records.RootOrders, Partition: "ebay"})
	if !errors.Is(err, partition.ErrNoToken) {
		t.Errorf("expected ErrNoToken, got %v", err)
	}
	if calls.Load() != 0 {
		t.Error("request sent without token")
	}
}

func TestRetries(t *testing.T) {
	tests := []struct {
		name      string
		failures  int32
		status    int
		retries   int
		wantCalls int32
		wantErr   bool
	}{
		{"success after server errors", 2, http.StatusServiceUnavailable, 3, 3, false},
		{"server errors exhaust retries", 5, http.StatusInternalServerError, 2, 2, true},
		{"client errors are final", 5, http.StatusNotFound, 3, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if calls.Add(1) <= tt.failures {
					w.WriteHeader(tt.status)
					return
				}
				_, _ = w.Write([]byte(`["ebay"]`))
			}))
			defer server.Close()

			c := newClient(t, tt.retries, nil, server)
			_, err := c.ListPartitions(context.Background(), "t", records.RootOrders)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ListPartitions() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrStatus) {
				t.Errorf("error %v does not wrap ErrStatus", err)
			}
			if calls.Load() != tt.wantCalls {
				t.Errorf("server called %d times, want %d", calls.Load(), tt.wantCalls)
			}
		})
	}
}

func TestRoundRobin(t *testing.T) {
	var hitsA, hitsB atomic.Int32
	handler := func(hits *atomic.Int32) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			_, _ = w.Write([]byte(`[]`))
		}
	}
	a := httptest.NewServer(handler(&hitsA))
	defer a.Close()
	b := httptest.NewServer(handler(&hitsB))
	defer b.Close()

	c := newClient(t, 1, nil, a, b)
	for i := 0; i < 4; i++ {
		if _, err := c.ListPartitions(context.Background(), "t", records.RootOrders); err != nil {
			t.Fatalf("ListPartitions failed: %v", err)
		}
	}
	if hitsA.Load() != 2 || hitsB.Load() != 2 {
		t.Errorf("hits a=%d b=%d, want 2 each", hitsA.Load(), hitsB.Load())
	}
}

func TestBadPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"a list"}`))
	}))
	defer server.Close()

	c := newClient(t, 3, nil, server)
	if _, err := c.ListPartitions(context.Background(), "t", records.RootOrders); err == nil {
		t.Error("expected a decode error")
	}
}

func TestNewClientValidation(t *testing.T) {
	tests := []struct {
		name      string
		endpoints []string
	}{
		{"no endpoints", nil},
		{"missing scheme", []string{"localhost:8080"}},
		{"unparsable", []string{"http://[::1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewClient(Config{Endpoints: tt.endpoints}, nil); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestStaticProviders(t *testing.T) {
	token, err := StaticToken("abc").IDToken(context.Background())
	if err != nil || token != "abc" {
		t.Errorf("IDToken() = %q, %v", token, err)
	}

	accounts, err := StaticAccounts{"ebay", "grailed"}.ConnectedAccounts(context.Background(), "u1")
	if err != nil || len(accounts) != 2 || accounts[1].Name != "grailed" {
		t.Errorf("ConnectedAccounts() = %v, %v", accounts, err)
	}
}

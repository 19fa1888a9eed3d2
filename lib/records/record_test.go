package records

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestIdentityAndPartition(t *testing.T) {
	tests := []struct {
		name      string
		record    Record
		identity  string
		partition string
	}{
		{"listing", FromListing(Listing{ItemID: "L1", Store: "ebay"}), "L1", "ebay"},
		{"order", FromOrder(Order{TransactionID: "T1", Store: "stockx"}), "T1", "stockx"},
		{"expense", FromExpense(Expense{ID: "E1", Partition: PartitionOneTime}), "E1", PartitionOneTime},
		{"missing identity", FromListing(Listing{Store: "ebay"}), "", "ebay"},
		{"kind without shape", Record{Kind: KindOrder}, "", ""},
		{"zero record", Record{}, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.record.Identity(); got != tt.identity {
				t.Errorf("Identity() = %q, want %q", got, tt.identity)
			}
			if got := tt.record.Partition(); got != tt.partition {
				t.Errorf("Partition() = %q, want %q", got, tt.partition)
			}
		})
	}
}

func TestDateFor(t *testing.T) {
	listing := FromListing(Listing{ItemID: "L1", CreatedAt: "2024-03-01T10:00:00Z", DateListed: "2024-03-05"})
	order := FromOrder(Order{TransactionID: "T1", CreatedAt: "1709287200000", Sale: &Sale{Date: "2024-04-01T12:00:00+02:00"}})
	orderNoSale := FromOrder(Order{TransactionID: "T2", CreatedAt: "2024-03-01"})
	expense := FromExpense(Expense{ID: "E1", CreatedAt: "not a date"})

	tests := []struct {
		name   string
		record Record
		key    FilterKey
		want   time.Time
		ok     bool
	}{
		{"listing createdAt", listing, FilterCreatedAt, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), true},
		{"listing dateListed", listing, FilterDateListed, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), true},
		{"listing has no sale date", listing, FilterSaleDate, time.Time{}, false},
		{"order createdAt millis", order, FilterCreatedAt, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), true},
		{"order sale date", order, FilterSaleDate, time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC), true},
		{"order without sale", orderNoSale, FilterSaleDate, time.Time{}, false},
		{"order has no dateListed", order, FilterDateListed, time.Time{}, false},
		{"unparsable expense date", expense, FilterCreatedAt, time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.record.DateFor(tt.key)
			if ok != tt.ok {
				t.Fatalf("DateFor(%s) ok = %v, want %v", tt.key, ok, tt.ok)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("DateFor(%s) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestJSONRoundTrip(t *testing.T) {
	in := FromOrder(Order{
		TransactionID: "T1",
		Store:         "ebay",
		Title:         "Air Max 90",
		Sale:          &Sale{Date: "2024-04-01", Price: decimal.RequireFromString("129.99"), Fees: decimal.RequireFromString("12.50")},
	})

	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var shape map[string]any
	if err := json.Unmarshal(b, &shape); err != nil {
		t.Fatalf("Unmarshal into map failed: %v", err)
	}
	if shape["kind"] != "order" || shape["transactionId"] != "T1" {
		t.Errorf("unexpected wire form: %s", b)
	}

	var out Record
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if out.Kind != KindOrder || out.Identity() != "T1" || out.Order.Title != "Air Max 90" {
		t.Errorf("round trip mismatch: %+v", out.Order)
	}
	if !out.Order.Sale.Net().Equal(decimal.RequireFromString("117.49")) {
		t.Errorf("Net() = %s, want 117.49", out.Order.Sale.Net())
	}
}

func TestUnmarshalWithoutKind(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		kind Kind
		id   string
	}{
		{"listing", `{"itemId":"L1","title":"Jordan 1"}`, KindListing, "L1"},
		{"order", `{"transactionId":"T1"}`, KindOrder, "T1"},
		{"expense", `{"id":"E1","amount":"9.99"}`, KindExpense, "E1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Record
			if err := json.Unmarshal([]byte(tt.doc), &r); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if r.Kind != tt.kind || r.Identity() != tt.id {
				t.Errorf("got kind %s identity %q, want %s %q", r.Kind, r.Identity(), tt.kind, tt.id)
			}
		})
	}

	var r Record
	if err := json.Unmarshal([]byte(`{"title":"no identity"}`), &r); err == nil {
		t.Error("expected error for a document without kind and identity")
	}
	if err := json.Unmarshal([]byte(`{"kind":"car"}`), &r); err == nil {
		t.Error("expected error for an unknown kind")
	}
}

func TestTimestampFromJSON(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		want   Timestamp
		parses bool
	}{
		{"string", `{"transactionId":"T1","createdAt":"2024-03-01T10:00:00Z"}`, "2024-03-01T10:00:00Z", true},
		{"unix millis number", `{"transactionId":"T1","createdAt":1700000000000}`, "1700000000000", true},
		{"fractional number", `{"transactionId":"T1","createdAt":1.5}`, "1.5", false},
		{"null", `{"transactionId":"T1","createdAt":null}`, "", false},
		{"object", `{"transactionId":"T1","createdAt":{"seconds":1}}`, "", false},
		{"bool", `{"transactionId":"T1","createdAt":true}`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Record
			if err := json.Unmarshal([]byte(tt.doc), &r); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if r.Identity() != "T1" {
				t.Fatalf("record lost its identity: %+v", r)
			}
			if r.Order.CreatedAt != tt.want {
				t.Errorf("CreatedAt = %q, want %q", r.Order.CreatedAt, tt.want)
			}
			if _, ok := r.DateFor(FilterCreatedAt); ok != tt.parses {
				t.Errorf("DateFor() ok = %v, want %v", ok, tt.parses)
			}
		})
	}
}

func TestMarshalInvalidRecord(t *testing.T) {
	if _, err := json.Marshal(Record{Kind: KindListing}); err == nil {
		t.Error("expected error when marshaling a record without data")
	}
}

func TestDocument(t *testing.T) {
	r := FromListing(Listing{ItemID: "L1", Title: "Air Max 90", Price: decimal.RequireFromString("80")})
	doc, err := r.Document()
	if err != nil {
		t.Fatalf("Document failed: %v", err)
	}
	if doc["title"] != "Air Max 90" || doc["kind"] != "listing" {
		t.Errorf("unexpected document: %v", doc)
	}
}

func TestKeys(t *testing.T) {
	if got := CollectionKey(RootOrders, "u1"); got != "orders-u1" {
		t.Errorf("CollectionKey = %q", got)
	}
	if got := MembershipKey(CollectionKey(RootInventory, "u1")); got != "inventory-u1-store" {
		t.Errorf("MembershipKey = %q", got)
	}
	if got := PartitionsKey(RootInventory, "u1"); got != "inventory-subcols-u1" {
		t.Errorf("PartitionsKey = %q", got)
	}
	if p, ok := RootSubscriptionExpenses.FixedPartition(); !ok || p != PartitionSubscription {
		t.Errorf("FixedPartition = %q, %v", p, ok)
	}
	if _, ok := RootOrders.FixedPartition(); ok {
		t.Error("orders must not have a fixed partition")
	}
	if _, ok := ParseRootKind("nope"); ok {
		t.Error("ParseRootKind accepted an unknown root")
	}
}

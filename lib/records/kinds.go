package records

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Root collections
// --------------------------------------------------------------------------

// RootKind is a top-level collection of a user
type RootKind string

const (
	RootInventory            RootKind = "inventory"
	RootOrders               RootKind = "orders"
	RootOneTimeExpenses      RootKind = "expenses-one-time"
	RootSubscriptionExpenses RootKind = "expenses-subscription"
)

// RootKinds lists all known root collections
var RootKinds = []RootKind{RootInventory, RootOrders, RootOneTimeExpenses, RootSubscriptionExpenses}

// ParseRootKind returns the RootKind named s
func ParseRootKind(s string) (RootKind, bool) {
	for _, r := range RootKinds {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// FixedPartition returns the single partition of a root collection that is not backed by
// connected external accounts. ok is false for dynamically partitioned collections.
func (r RootKind) FixedPartition() (partition string, ok bool) {
	switch r {
	case RootOneTimeExpenses:
		return PartitionOneTime, true
	case RootSubscriptionExpenses:
		return PartitionSubscription, true
	default:
		return "", false
	}
}

// RecordKind returns the record shape stored in the collection
func (r RootKind) RecordKind() Kind {
	switch r {
	case RootInventory:
		return KindListing
	case RootOrders:
		return KindOrder
	default:
		return KindExpense
	}
}

// Fixed expense partitions
const (
	PartitionOneTime      = "one-time"
	PartitionSubscription = "subscription"
)

// --------------------------------------------------------------------------
// Cache key conventions
// --------------------------------------------------------------------------

// CollectionKey is the key of the merged collection of a user: "<domain>-<uid>"
func CollectionKey(root RootKind, uid string) string {
	return string(root) + "-" + uid
}

// MembershipKey is the key of the partition membership bookkeeping of a collection: "<domain>-<uid>-store"
func MembershipKey(cacheKey string) string {
	return cacheKey + "-store"
}

// PartitionsKey is the key of the cached partition list of a user: "<root>-subcols-<uid>"
func PartitionsKey(root RootKind, uid string) string {
	return string(root) + "-subcols-" + uid
}

// --------------------------------------------------------------------------
// Filter keys and timestamps
// --------------------------------------------------------------------------

// FilterKey selects the date field used for sorting and date filtering
type FilterKey string

const (
	FilterCreatedAt  FilterKey = "createdAt"
	FilterDateListed FilterKey = "dateListed"
	FilterSaleDate   FilterKey = "sale.date"
)

// ParseFilterKey returns the FilterKey named s
func ParseFilterKey(s string) (FilterKey, bool) {
	switch FilterKey(s) {
	case FilterCreatedAt, FilterDateListed, FilterSaleDate:
		return FilterKey(s), true
	default:
		return "", false
	}
}

// Timestamp is a date as sent by the remote store. It is kept verbatim and parsed on use,
// so a malformed date never prevents a record from being cached.
type Timestamp string

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Time parses the timestamp. Accepted are RFC 3339, ISO dates with or without time and
// unix milliseconds. ok is false for empty or unparsable values.
func (t Timestamp) Time() (time.Time, bool) {
	s := strings.TrimSpace(string(t))
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed, true
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), true
	}
	return time.Time{}, false
}

// UnmarshalJSON accepts a string or a number (kept as its digits). Any other value,
// null included, yields an empty timestamp instead of an error.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var v any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return err
	}
	switch v := v.(type) {
	case string:
		*t = Timestamp(v)
	case json.Number:
		*t = Timestamp(v.String())
	default:
		*t = ""
	}
	return nil
}

// NewTimestamp formats t as RFC 3339 timestamp
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp(t.UTC().Format(time.RFC3339Nano))
}

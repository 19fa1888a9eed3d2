package records

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Kind is the shape of a record
type Kind string

const (
	KindListing Kind = "listing"
	KindOrder   Kind = "order"
	KindExpense Kind = "expense"
)

// --------------------------------------------------------------------------
// Record shapes
// --------------------------------------------------------------------------

// Listing is an inventory item, identified by its ItemID
type Listing struct {
	ItemID     string          `json:"itemId"`
	Store      string          `json:"store,omitempty"`
	Title      string          `json:"title,omitempty"`
	Brand      string          `json:"brand,omitempty"`
	SKU        string          `json:"sku,omitempty"`
	Size       string          `json:"size,omitempty"`
	Condition  string          `json:"condition,omitempty"`
	Price      decimal.Decimal `json:"price"`
	CreatedAt  Timestamp       `json:"createdAt,omitempty"`
	DateListed Timestamp       `json:"dateListed,omitempty"`
}

// Sale holds the settlement of an order
type Sale struct {
	Date     Timestamp       `json:"date,omitempty"`
	Price    decimal.Decimal `json:"price"`
	Fees     decimal.Decimal `json:"fees"`
	Platform string          `json:"platform,omitempty"`
}

// Net returns the sale price minus fees
func (s Sale) Net() decimal.Decimal {
	return s.Price.Sub(s.Fees)
}

// Order is a sold item, identified by its TransactionID
type Order struct {
	TransactionID string    `json:"transactionId"`
	Store         string    `json:"store,omitempty"`
	Title         string    `json:"title,omitempty"`
	Buyer         string    `json:"buyer,omitempty"`
	CreatedAt     Timestamp `json:"createdAt,omitempty"`
	Sale          *Sale     `json:"sale,omitempty"`
}

// Expense is a one-time or subscription cost, identified by its ID
type Expense struct {
	ID        string          `json:"id"`
	Partition string          `json:"partition,omitempty"`
	Name      string          `json:"name,omitempty"`
	Category  string          `json:"category,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Note      string          `json:"note,omitempty"`
	CreatedAt Timestamp       `json:"createdAt,omitempty"`
}

// --------------------------------------------------------------------------
// Tagged union
// --------------------------------------------------------------------------

// Record is exactly one of Listing, Order or Expense, selected by Kind.
// Use the From* constructors to build one.
type Record struct {
	Kind    Kind
	Listing *Listing
	Order   *Order
	Expense *Expense
}

func FromListing(l Listing) Record { return Record{Kind: KindListing, Listing: &l} }
func FromOrder(o Order) Record     { return Record{Kind: KindOrder, Order: &o} }
func FromExpense(e Expense) Record { return Record{Kind: KindExpense, Expense: &e} }

// Valid reports whether the shape selected by Kind is set
func (r Record) Valid() bool {
	switch r.Kind {
	case KindListing:
		return r.Listing != nil
	case KindOrder:
		return r.Order != nil
	case KindExpense:
		return r.Expense != nil
	default:
		return false
	}
}

// Identity returns the unique key of the record within its root collection.
// It is empty for invalid records and records without an identity.
func (r Record) Identity() string {
	switch {
	case r.Kind == KindListing && r.Listing != nil:
		return r.Listing.ItemID
	case r.Kind == KindOrder && r.Order != nil:
		return r.Order.TransactionID
	case r.Kind == KindExpense && r.Expense != nil:
		return r.Expense.ID
	default:
		return ""
	}
}

// Partition returns the partition the record belongs to (the connected store for
// listings and orders, one-time or subscription for expenses)
func (r Record) Partition() string {
	switch {
	case r.Kind == KindListing && r.Listing != nil:
		return r.Listing.Store
	case r.Kind == KindOrder && r.Order != nil:
		return r.Order.Store
	case r.Kind == KindExpense && r.Expense != nil:
		return r.Expense.Partition
	default:
		return ""
	}
}

// Title returns the display name of the record
func (r Record) Title() string {
	switch {
	case r.Kind == KindListing && r.Listing != nil:
		return r.Listing.Title
	case r.Kind == KindOrder && r.Order != nil:
		return r.Order.Title
	case r.Kind == KindExpense && r.Expense != nil:
		return r.Expense.Name
	default:
		return ""
	}
}

// DateFor returns the date selected by key. ok is false if the record has no such
// date or the stored value can not be parsed.
func (r Record) DateFor(key FilterKey) (t time.Time, ok bool) {
	var ts Timestamp
	switch {
	case r.Kind == KindListing && r.Listing != nil:
		switch key {
		case FilterCreatedAt:
			ts = r.Listing.CreatedAt
		case FilterDateListed:
			ts = r.Listing.DateListed
		}
	case r.Kind == KindOrder && r.Order != nil:
		switch key {
		case FilterCreatedAt:
			ts = r.Order.CreatedAt
		case FilterSaleDate:
			if r.Order.Sale != nil {
				ts = r.Order.Sale.Date
			}
		}
	case r.Kind == KindExpense && r.Expense != nil:
		if key == FilterCreatedAt {
			ts = r.Expense.CreatedAt
		}
	}
	return ts.Time()
}

// shape returns the value selected by Kind
func (r Record) shape() any {
	switch r.Kind {
	case KindListing:
		return r.Listing
	case KindOrder:
		return r.Order
	case KindExpense:
		return r.Expense
	default:
		return nil
	}
}

// Document returns the record as generic JSON document (maps, slices, strings, numbers),
// as it is sent over the wire. Decimal amounts are rendered as strings.
func (r Record) Document() (map[string]any, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	doc := map[string]any{}
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// --------------------------------------------------------------------------
// JSON encoding
// --------------------------------------------------------------------------

type listingJSON struct {
	Kind Kind `json:"kind"`
	*Listing
}

type orderJSON struct {
	Kind Kind `json:"kind"`
	*Order
}

type expenseJSON struct {
	Kind Kind `json:"kind"`
	*Expense
}

// MarshalJSON writes the shape fields flattened together with a "kind" field
func (r Record) MarshalJSON() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("cannot marshal record of kind %q without data", r.Kind)
	}
	switch r.Kind {
	case KindListing:
		return json.Marshal(listingJSON{Kind: r.Kind, Listing: r.Listing})
	case KindOrder:
		return json.Marshal(orderJSON{Kind: r.Kind, Order: r.Order})
	default:
		return json.Marshal(expenseJSON{Kind: r.Kind, Expense: r.Expense})
	}
}

// UnmarshalJSON reads a flattened record. Documents without a "kind" field are
// classified by the identity field they carry (itemId, transactionId, id).
func (r *Record) UnmarshalJSON(b []byte) error {
	var shape struct {
		Kind          Kind    `json:"kind"`
		ItemID        *string `json:"itemId"`
		TransactionID *string `json:"transactionId"`
		ID            *string `json:"id"`
	}
	if err := json.Unmarshal(b, &shape); err != nil {
		return err
	}

	kind := shape.Kind
	if kind == "" {
		switch {
		case shape.ItemID != nil:
			kind = KindListing
		case shape.TransactionID != nil:
			kind = KindOrder
		case shape.ID != nil:
			kind = KindExpense
		default:
			return fmt.Errorf("record has neither kind nor identity field")
		}
	}

	out := Record{Kind: kind}
	switch kind {
	case KindListing:
		out.Listing = &Listing{}
	case KindOrder:
		out.Order = &Order{}
	case KindExpense:
		out.Expense = &Expense{}
	default:
		return fmt.Errorf("unknown record kind %q", kind)
	}
	if err := json.Unmarshal(b, out.shape()); err != nil {
		return fmt.Errorf("failed to decode %s: %w", kind, err)
	}
	*r = out
	return nil
}

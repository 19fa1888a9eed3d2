package records

import "github.com/shopspring/decimal"

// MarketItem is the result of a market price lookup, as remembered by the recency cache
type MarketItem struct {
	Title    string          `json:"title"`
	Source   string          `json:"source,omitempty"`
	Currency string          `json:"currency,omitempty"`
	Low      decimal.Decimal `json:"low"`
	High     decimal.Decimal `json:"high"`
	Average  decimal.Decimal `json:"average"`
	Samples  int             `json:"samples"`
	URL      string          `json:"url,omitempty"`
}

// Spread returns the difference between the highest and the lowest observed price
func (m MarketItem) Spread() decimal.Decimal {
	return m.High.Sub(m.Low)
}

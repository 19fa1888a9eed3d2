package mergesync

import "github.com/ValentinKolb/flipcache/lib/records"

// Pager slices a growing prefix off a fully merged and filtered result
type Pager struct {
	Size int
}

// Page returns the first pages*Size records and whether more records remain.
// A Size <= 0 returns everything, pages < 1 is treated as 1.
func (p Pager) Page(recs []records.Record, pages int) ([]records.Record, bool) {
	if p.Size <= 0 {
		return recs, false
	}
	if pages < 1 {
		pages = 1
	}
	n := pages * p.Size
	if n >= len(recs) {
		return recs, false
	}
	return recs[:n], true
}

package filter

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/PaesslerAG/gval"
	"github.com/PaesslerAG/jsonpath"
	"github.com/ValentinKolb/flipcache/lib/records"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("filter")

// --------------------------------------------------------------------------
// Sorting
// --------------------------------------------------------------------------

// SortByDate sorts records in place, newest first by the date selected by key.
// Records without a date go last and keep their relative order.
func SortByDate(recs []records.Record, key records.FilterKey) {
	slices.SortStableFunc(recs, func(a, b records.Record) int {
		da, okA := a.DateFor(key)
		db, okB := b.DateFor(key)
		switch {
		case !okA && !okB:
			return 0
		case !okA:
			return 1
		case !okB:
			return -1
		default:
			return db.Compare(da)
		}
	})
}

// --------------------------------------------------------------------------
// Filters
// --------------------------------------------------------------------------

// ByDate keeps records whose date (selected by key) lies in [from, to].
// A nil to leaves the window open ended. Records without a date are dropped.
func ByDate(recs []records.Record, key records.FilterKey, from time.Time, to *time.Time) []records.Record {
	out := make([]records.Record, 0, len(recs))
	for _, r := range recs {
		d, ok := r.DateFor(key)
		if !ok || d.Before(from) {
			continue
		}
		if to != nil && d.After(*to) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// ByPartition keeps records belonging to partition
func ByPartition(recs []records.Record, partition string) []records.Record {
	out := make([]records.Record, 0, len(recs))
	for _, r := range recs {
		if r.Partition() == partition {
			out = append(out, r)
		}
	}
	return out
}

// ByText keeps records where at least one of fields is a string containing text,
// compared case-insensitively. Fields are names or dot paths into the record document
// (e.g. "title", "sale.platform"). If fields or text are empty, recs is returned unchanged.
// Fields that are not a valid path never match.
func ByText(recs []records.Record, fields []string, text string) []records.Record {
	if len(fields) == 0 || text == "" {
		return recs
	}
	needle := strings.ToLower(text)

	var paths []gval.Evaluable
	named := false
	for _, f := range fields {
		if f = strings.TrimSpace(f); f == "" {
			continue
		}
		named = true
		path := "$." + strings.TrimPrefix(f, "$.")
		eval, err := jsonpath.New(path)
		if err != nil {
			Logger.Debugf("ignoring search field %q: %v", f, err)
			continue
		}
		paths = append(paths, eval)
	}
	if !named {
		return recs
	}

	out := make([]records.Record, 0, len(recs))
	if len(paths) == 0 {
		return out
	}
	ctx := context.Background()
	for _, r := range recs {
		if matchesAny(ctx, r, paths, needle) {
			out = append(out, r)
		}
	}
	return out
}

// matchesAny reports whether one of the paths resolves to a string containing needle
func matchesAny(ctx context.Context, r records.Record, paths []gval.Evaluable, needle string) bool {
	doc, err := r.Document()
	if err != nil {
		return false
	}
	for _, path := range paths {
		v, err := path(ctx, doc)
		if err != nil {
			continue
		}
		if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}

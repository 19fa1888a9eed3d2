package mergesync

import (
	"slices"

	"github.com/ValentinKolb/flipcache/lib/filter"
	"github.com/ValentinKolb/flipcache/lib/records"
	"github.com/ValentinKolb/flipcache/lib/ttlstore"
)

// --------------------------------------------------------------------------
// Cache maintenance
// --------------------------------------------------------------------------

// Cached returns the persisted merged collection under cacheKey sorted by key, without
// fetching anything. ok is false if nothing (or only an expired entry) is cached.
func (e *Engine) Cached(cacheKey string, key records.FilterKey) (recs []records.Record, ok bool) {
	entry, ok := e.collections.Get(cacheKey)
	if !ok {
		return nil, false
	}
	list := toList(entry.Data)
	filter.SortByDate(list, key)
	return list, true
}

// RemoveRecord deletes the record with identity from the collection under cacheKey.
// The entry keeps its timestamp. It returns false if the record was not cached.
func (e *Engine) RemoveRecord(cacheKey, identity string) bool {
	entry, ok := e.collections.Get(cacheKey)
	if !ok {
		return false
	}
	if _, ok := entry.Data[identity]; !ok {
		return false
	}
	delete(entry.Data, identity)
	if err := e.collections.Set(cacheKey, entry); err != nil {
		return false
	}

	e.editMembership(cacheKey, func(m Membership) {
		for partition, ids := range m {
			m[partition] = slices.DeleteFunc(ids, func(id string) bool { return id == identity })
		}
	})
	Logger.Debugf("removed record %s from %s", identity, cacheKey)
	return true
}

// RemovePartition deletes every record of partition from the collection under cacheKey,
// both the records recorded as its members and the records naming it as their partition.
// It returns the number of removed records.
func (e *Engine) RemovePartition(cacheKey, partition string) int {
	entry, ok := e.collections.Get(cacheKey)
	if !ok {
		return 0
	}

	doomed := map[string]struct{}{}
	if m, ok := e.membership.Get(records.MembershipKey(cacheKey)); ok {
		for _, id := range m.Data[partition] {
			doomed[id] = struct{}{}
		}
	}
	for id, r := range entry.Data {
		if r.Partition() == partition {
			doomed[id] = struct{}{}
		}
	}

	removed := 0
	for id := range doomed {
		if _, ok := entry.Data[id]; ok {
			delete(entry.Data, id)
			removed++
		}
	}
	if removed == 0 {
		return 0
	}
	if err := e.collections.Set(cacheKey, entry); err != nil {
		return 0
	}

	e.editMembership(cacheKey, func(m Membership) {
		delete(m, partition)
		for p, ids := range m {
			m[p] = slices.DeleteFunc(ids, func(id string) bool {
				_, gone := doomed[id]
				return gone
			})
		}
	})
	Logger.Infof("removed %d records of partition %s from %s", removed, partition, cacheKey)
	return removed
}

// editMembership applies fn to the stored membership of cacheKey, if there is one
func (e *Engine) editMembership(cacheKey string, fn func(Membership)) {
	key := records.MembershipKey(cacheKey)
	m, ok := e.membership.Get(key)
	if !ok {
		return
	}
	fn(m.Data)
	_ = e.membership.Set(key, ttlstore.Entry[Membership]{Data: m.Data, Timestamp: m.Timestamp})
}

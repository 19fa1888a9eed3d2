// Package util
//
// This file provides a keyed priority queue used as the eviction index of the recency cache.
//
// This implementation combines a binary heap with a hash map to provide both
// efficient priority-based operations and key-based access. Items are ordered
// by priority (a unix-nano timestamp for the recency cache) and, for equal
// priorities, by key, so the order is fully deterministic.
//
// Time Complexity:
//   - O(log n) for AddItem (insert or update) and RemoveByKey
//   - O(1) for Peek, Contains and GetByKey
//
// Note: This implementation is not thread-safe. For concurrent use,
// external synchronization should be applied.
//
// Example usage:
//
//	index := NewMapHeap()
//	index.AddItem("@marketItem:air max 90", ts1)
//	index.AddItem("@marketItem:jordan 1", ts2)
//
//	// Get the oldest item
//	oldest, exists := index.Peek()
//
//	// Remove a specific item (e.g., when deleted by the user)
//	index.RemoveByKey("@marketItem:jordan 1")
package util

import (
	"container/heap"
	"strconv"
)

// Item represents an item in the queue
// with a string key for identification and an int64 priority
type Item struct {
	Key      string // Unique identifier for the item
	Priority int64  // Priority used for ordering in the heap (lowest first)
	index    int    // Index in the heap, maintained by heap package
}

func (i *Item) String() string {
	return "{Key: " + i.Key + ", Priority: " + strconv.FormatInt(i.Priority, 10) + "}"
}

// MapHeap implements a min priority queue
// with both heap operations and key-based access
type MapHeap struct {
	items    []*Item          // The actual heap slice
	itemsMap map[string]*Item // Map for O(1) access by key
}

// NewMapHeap creates a new empty queue
func NewMapHeap() *MapHeap {
	return &MapHeap{
		items:    make([]*Item, 0),
		itemsMap: make(map[string]*Item),
	}
}

// Len returns the number of items in the queue (part of heap.Interface)
func (mh *MapHeap) Len() int { return len(mh.items) }

// Less compares items by priority, then by key (part of heap.Interface)
func (mh *MapHeap) Less(i, j int) bool {
	if mh.items[i].Priority != mh.items[j].Priority {
		return mh.items[i].Priority < mh.items[j].Priority
	}
	return mh.items[i].Key < mh.items[j].Key
}

// Swap exchanges items at positions i and j (part of heap.Interface)
func (mh *MapHeap) Swap(i, j int) {
	mh.items[i], mh.items[j] = mh.items[j], mh.items[i]
	mh.items[i].index = i
	mh.items[j].index = j
}

// Push adds an item to the heap (part of heap.Interface)
func (mh *MapHeap) Push(x interface{}) {
	n := len(mh.items)
	item := x.(*Item)
	item.index = n
	mh.items = append(mh.items, item)
	mh.itemsMap[item.Key] = item
}

// Pop removes and returns the minimum item (part of heap.Interface)
func (mh *MapHeap) Pop() interface{} {
	old := mh.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // Avoid memory leak
	item.index = -1 // For safety
	mh.items = old[:n-1]
	delete(mh.itemsMap, item.Key)
	return item
}

// AddItem adds a new item to the queue or updates the priority of an existing one
func (mh *MapHeap) AddItem(key string, priority int64) {
	// Check if item already exists
	if item, exists := mh.itemsMap[key]; exists {
		// Update priority and fix heap
		item.Priority = priority
		heap.Fix(mh, item.index)
		return
	}

	heap.Push(mh, &Item{
		Key:      key,
		Priority: priority,
	})
}

// RemoveByKey removes an item by its key
func (mh *MapHeap) RemoveByKey(key string) (int64, bool) {
	item, exists := mh.itemsMap[key]
	if !exists {
		return 0, false
	}

	// Remove from heap
	heap.Remove(mh, item.index)
	return item.Priority, true
}

// Peek returns the minimum item without removing it
func (mh *MapHeap) Peek() (Item, bool) {
	if len(mh.items) == 0 {
		return Item{}, false
	}
	return *mh.items[0], true
}

// Contains checks if a key exists in the queue
func (mh *MapHeap) Contains(key string) bool {
	_, exists := mh.itemsMap[key]
	return exists
}

// GetByKey retrieves an item by its key without removing it
func (mh *MapHeap) GetByKey(key string) (Item, bool) {
	item, exists := mh.itemsMap[key]
	if !exists {
		return Item{}, false
	}
	return *item, true
}

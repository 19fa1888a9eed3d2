package testing

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/ValentinKolb/flipcache/lib/kv"
)

// StoreFactory is a function that creates a new, empty instance of a IKVStore implementation
type StoreFactory func(t *testing.T) kv.IKVStore

// RunKVStoreTests runs the conformance test suite for a IKVStore implementation.
func RunKVStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory(t))
		})

		t.Run("Remove", func(t *testing.T) {
			testRemove(t, factory(t))
		})

		t.Run("Keys", func(t *testing.T) {
			testKeys(t, factory(t))
		})

		t.Run("KeysWithPrefix", func(t *testing.T) {
			testKeysWithPrefix(t, factory(t))
		})

		t.Run("MultiGet", func(t *testing.T) {
			testMultiGet(t, factory(t))
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory(t))
		})

		t.Run("Concurrent", func(t *testing.T) {
			testConcurrent(t, factory(t))
		})

		t.Run("Closed", func(t *testing.T) {
			testClosed(t, factory(t))
		})
	})
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, store kv.IKVStore) {
	defer store.Close()

	testKey := "test-key"
	testValue1 := []byte("test-value1")
	testValue2 := []byte("test-value2")

	if err := store.Set(testKey, testValue1); err != nil {
		t.Fatalf("Unexpected error during Set: %v", err)
	}

	result, found, err := store.Get(testKey)
	if err != nil || !found {
		t.Errorf("Expected key %s to exist after Set (err=%v)", testKey, err)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	if err := store.Set(testKey, testValue2); err != nil {
		t.Fatalf("Unexpected error during Set: %v", err)
	}

	result, _, _ = store.Get(testKey)
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s after overwrite, got %s", testValue2, result)
	}

	if _, found, _ = store.Get("nonexistent-key"); found {
		t.Errorf("Expected nonexistent key to return found=false")
	}

	// modifying the returned slice must not change the stored value
	result[0] = 'X'
	again, _, _ := store.Get(testKey)
	if !bytes.Equal(again, testValue2) {
		t.Errorf("Stored value was modified through the returned slice: %s", again)
	}
}

func testRemove(t *testing.T, store kv.IKVStore) {
	defer store.Close()

	_ = store.Set("remove-me", []byte("v"))
	if err := store.Remove("remove-me"); err != nil {
		t.Fatalf("Unexpected error during Remove: %v", err)
	}
	if _, found, _ := store.Get("remove-me"); found {
		t.Errorf("Expected key to be gone after Remove")
	}

	if err := store.Remove("never-existed"); err != nil {
		t.Errorf("Removing a missing key should not fail: %v", err)
	}
}

func testKeys(t *testing.T, store kv.IKVStore) {
	defer store.Close()

	expected := []string{"inventory-u1", "orders-u1", "orders-u1-store"}
	for _, key := range expected {
		_ = store.Set(key, []byte(key))
	}

	keys, err := store.Keys()
	if err != nil {
		t.Fatalf("Unexpected error during Keys: %v", err)
	}
	sort.Strings(keys)
	if fmt.Sprint(keys) != fmt.Sprint(expected) {
		t.Errorf("Expected keys %v, got %v", expected, keys)
	}
}

func testKeysWithPrefix(t *testing.T, store kv.IKVStore) {
	defer store.Close()

	for i := 0; i < 30; i++ {
		_ = store.Set(fmt.Sprintf("@marketItem:query-%02d", i), []byte("x"))
	}
	_ = store.Set("@market", []byte("not matching"))
	_ = store.Set("orders-u1", []byte("not matching"))

	keys, err := store.KeysWithPrefix("@marketItem:")
	if err != nil {
		t.Fatalf("Unexpected error during KeysWithPrefix: %v", err)
	}
	if len(keys) != 30 {
		t.Errorf("Expected 30 keys with prefix, got %d: %v", len(keys), keys)
	}

	keys, _ = store.KeysWithPrefix("no-such-prefix")
	if len(keys) != 0 {
		t.Errorf("Expected no keys for unknown prefix, got %v", keys)
	}
}

func testMultiGet(t *testing.T, store kv.IKVStore) {
	defer store.Close()

	_ = store.Set("a", []byte("1"))
	_ = store.Set("c", []byte("3"))

	values, err := store.MultiGet([]string{"c", "b", "a"})
	if err != nil {
		t.Fatalf("Unexpected error during MultiGet: %v", err)
	}
	if len(values) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(values))
	}

	expected := []kv.KeyValue{
		{Key: "c", Value: []byte("3"), Found: true},
		{Key: "b", Found: false},
		{Key: "a", Value: []byte("1"), Found: true},
	}
	for i, e := range expected {
		got := values[i]
		if got.Key != e.Key || got.Found != e.Found || !bytes.Equal(got.Value, e.Value) {
			t.Errorf("MultiGet[%d]: expected %+v, got %+v", i, e, got)
		}
	}
}

func testEdgeCases(t *testing.T, store kv.IKVStore) {
	defer store.Close()

	if err := store.Set("empty-value-key", []byte{}); err != nil {
		t.Fatalf("Unexpected error for empty value: %v", err)
	}
	result, found, _ := store.Get("empty-value-key")
	if !found {
		t.Errorf("Key for empty value not found after Set")
	} else if len(result) != 0 {
		t.Errorf("Empty value resulted in non-empty value: %v", result)
	}

	if err := store.Set("", []byte("x")); !errors.Is(err, kv.ErrInvalidKey) {
		t.Errorf("Expected ErrInvalidKey for empty key, got %v", err)
	}

	largeValue := bytes.Repeat([]byte("v"), 1<<20)
	if err := store.Set("large-value", largeValue); err != nil {
		t.Fatalf("Unexpected error for large value: %v", err)
	}
	result, _, _ = store.Get("large-value")
	if !bytes.Equal(result, largeValue) {
		t.Errorf("Large value mismatch (len %d)", len(result))
	}
}

func testConcurrent(t *testing.T, store kv.IKVStore) {
	defer store.Close()

	const workers = 8
	const perWorker = 50

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				key := fmt.Sprintf("w%d-k%d", w, i)
				if err := store.Set(key, []byte(key)); err != nil {
					t.Errorf("Set %s: %v", key, err)
				}
				if _, found, err := store.Get(key); err != nil || !found {
					t.Errorf("Get %s after Set: found=%v err=%v", key, found, err)
				}
			}
		}(w)
	}
	wg.Wait()

	keys, _ := store.Keys()
	if len(keys) != workers*perWorker {
		t.Errorf("Expected %d keys, got %d", workers*perWorker, len(keys))
	}
}

func testClosed(t *testing.T, store kv.IKVStore) {
	_ = store.Set("k", []byte("v"))
	if err := store.Close(); err != nil {
		t.Fatalf("Unexpected error during Close: %v", err)
	}

	if _, _, err := store.Get("k"); !errors.Is(err, kv.ErrClosed) {
		t.Errorf("Expected ErrClosed from Get after Close, got %v", err)
	}
	if err := store.Set("k", []byte("v")); !errors.Is(err, kv.ErrClosed) {
		t.Errorf("Expected ErrClosed from Set after Close, got %v", err)
	}
	if _, err := store.Keys(); !errors.Is(err, kv.ErrClosed) {
		t.Errorf("Expected ErrClosed from Keys after Close, got %v", err)
	}
}

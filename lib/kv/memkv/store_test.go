package memkv

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/flipcache/lib/kv"
	kvtesting "github.com/ValentinKolb/flipcache/lib/kv/testing"
)

func TestMemKVInterface(t *testing.T) {
	kvtesting.RunKVStoreTests(t, "memkv", func(t *testing.T) kv.IKVStore {
		return NewStore(&Options{NumShards: 4})
	})
}

func TestSaveLoad(t *testing.T) {
	store := NewStore(nil)
	store2 := NewStore(nil)
	defer store.Close()
	defer store2.Close()

	numEntries := 1000
	for i := 0; i < numEntries; i++ {
		_ = store.Set(fmt.Sprintf("save-load-key-%d", i), []byte(fmt.Sprintf("save-load-value-%d", i)))
	}

	var buf bytes.Buffer
	if err := store.(Snapshotter).Save(&buf); err != nil {
		t.Fatalf("Unexpected error during Save: %v", err)
	}
	if err := store2.(Snapshotter).Load(&buf); err != nil {
		t.Fatalf("Unexpected error during Load: %v", err)
	}

	for i := 0; i < numEntries; i++ {
		key := fmt.Sprintf("save-load-key-%d", i)
		value, found, _ := store2.Get(key)
		if !found {
			t.Errorf("Key %s not found after Load", key)
			continue
		}
		if string(value) != fmt.Sprintf("save-load-value-%d", i) {
			t.Errorf("Value mismatch for key %s: %s", key, value)
		}
	}

	// the index continues after the highest loaded index
	if got, want := store2.(*storeImpl).currIndex.Load(), uint64(numEntries); got != want {
		t.Errorf("Expected write index %d after Load, got %d", want, got)
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	store := NewStore(nil)
	defer store.Close()
	_ = store.Set("keep", []byte("me"))

	if err := store.(Snapshotter).Load(bytes.NewReader([]byte("definitely not a snapshot"))); err == nil {
		t.Fatal("Expected error when loading garbage")
	}

	// a failed load leaves the store untouched
	if value, found, _ := store.Get("keep"); !found || string(value) != "me" {
		t.Errorf("Store changed after failed Load: found=%v value=%s", found, value)
	}
}

func TestLoadRejectsOversizedLengths(t *testing.T) {
	header := func(buf *bytes.Buffer) {
		buf.WriteString(magicNum)
		_ = binary.Write(buf, binary.LittleEndian, uint8(snapshotVersion))
		_ = binary.Write(buf, binary.LittleEndian, uint64(1))
	}

	tests := []struct {
		name  string
		entry func(buf *bytes.Buffer)
	}{
		{"key length", func(buf *bytes.Buffer) {
			_ = binary.Write(buf, binary.LittleEndian, uint32(maxKeyLen+1))
		}},
		{"value length", func(buf *bytes.Buffer) {
			_ = binary.Write(buf, binary.LittleEndian, uint32(1))
			buf.WriteString("k")
			_ = binary.Write(buf, binary.LittleEndian, uint64(1))
			_ = binary.Write(buf, binary.LittleEndian, uint32(0xFFFFFFFF))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore(nil)
			defer store.Close()
			_ = store.Set("keep", []byte("me"))

			var buf bytes.Buffer
			header(&buf)
			tt.entry(&buf)
			if err := store.(Snapshotter).Load(&buf); err == nil {
				t.Fatal("Expected error for oversized length")
			}
			if value, found, _ := store.Get("keep"); !found || string(value) != "me" {
				t.Errorf("Store changed after failed Load: found=%v value=%s", found, value)
			}
			if _, found, _ := store.Get("k"); found {
				t.Error("Entry of rejected snapshot was loaded")
			}
		})
	}
}

func TestOpenFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "snapshot.bin")

	store, err := OpenFile(path, nil)
	if err != nil {
		t.Fatalf("OpenFile on missing file: %v", err)
	}
	_ = store.Set("orders-u1", []byte(`{"data":{}}`))
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenFile(path, nil)
	if err != nil {
		t.Fatalf("OpenFile on existing file: %v", err)
	}
	defer reopened.Close()

	value, found, _ := reopened.Get("orders-u1")
	if !found || string(value) != `{"data":{}}` {
		t.Errorf("Expected persisted value, found=%v value=%s", found, value)
	}
}

package memkv

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync/atomic"

	"github.com/ValentinKolb/flipcache/lib/kv"
	"github.com/ValentinKolb/flipcache/lib/util"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

// Constants for the snapshot format
const (
	magicNum        = "FLIPKV\x00\x00" // File format identifier
	snapshotVersion = 1                // Snapshot format version
	maxKeyLen       = 1 << 16          // Longest key accepted by Set
	maxValueLen     = 256 << 20        // Largest value accepted by Load
)

// --------------------------------------------------------------------------
// Core store structure
// --------------------------------------------------------------------------

// entry is a stored value together with the write index it was stored at
type entry struct {
	Value []byte
	Index uint64
}

// storeImpl implements kv.IKVStore with sharded concurrent maps
type storeImpl struct {
	seed      uint64
	shards    []*xsync.MapOf[string, entry]
	currIndex atomic.Uint64 // logical timestamp of the last write
	closed    atomic.Bool
}

// Options configures the store during initialization
type Options struct {
	NumShards int // Number of shards (0 = one per CPU)
}

// DefaultOptions returns the default store options
func DefaultOptions() *Options {
	return &Options{
		NumShards: runtime.NumCPU(),
	}
}

// NewStore creates a new in-memory store with the specified options (optional).
//
// Thread-safety: all methods of the returned store can be called concurrently,
// except Load which must not run concurrently with any other method.
func NewStore(opts *Options) kv.IKVStore {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.NumShards <= 0 {
		opts.NumShards = runtime.NumCPU()
	}

	return &storeImpl{
		seed:   util.GenerateSeed(),
		shards: newShards(opts.NumShards),
	}
}

func newShards(n int) []*xsync.MapOf[string, entry] {
	shards := make([]*xsync.MapOf[string, entry], n)
	for i := range shards {
		shards[i] = xsync.NewMapOf[string, entry]()
	}
	return shards
}

// shard returns the shard responsible for key
func (s *storeImpl) shard(key string) *xsync.MapOf[string, entry] {
	return s.shards[util.ShardIndex(util.HashString(key, s.seed), len(s.shards))]
}

func (s *storeImpl) checkOpen() error {
	if s.closed.Load() {
		return kv.NewError(kv.RetCClosed, "store is closed")
	}
	return nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see kv/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Get(key string) ([]byte, bool, error) {
	if err := s.checkOpen(); err != nil {
		return nil, false, err
	}
	e, ok := s.shard(key).Load(key)
	if !ok {
		return nil, false, nil
	}

	// return a copy, the caller may modify the slice
	data := make([]byte, len(e.Value))
	copy(data, e.Value)
	return data, true, nil
}

func (s *storeImpl) Set(key string, value []byte) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if len(key) == 0 || len(key) > maxKeyLen {
		return kv.Errorf(kv.RetCInvalidKey, "key length %d out of range", len(key))
	}

	// Copy value to prevent memory corruption
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	s.shard(key).Store(key, entry{Value: valueCopy, Index: s.currIndex.Add(1)})
	return nil
}

func (s *storeImpl) Remove(key string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.shard(key).Delete(key)
	s.currIndex.Add(1)
	return nil
}

func (s *storeImpl) Keys() ([]string, error) {
	return s.KeysWithPrefix("")
}

func (s *storeImpl) KeysWithPrefix(prefix string) ([]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var keys []string
	for _, shard := range s.shards {
		shard.Range(func(key string, _ entry) bool {
			if strings.HasPrefix(key, prefix) {
				keys = append(keys, key)
			}
			return true
		})
	}
	return keys, nil
}

func (s *storeImpl) MultiGet(keys []string) ([]kv.KeyValue, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	values := make([]kv.KeyValue, len(keys))
	for i, key := range keys {
		value, found, err := s.Get(key)
		if err != nil {
			return nil, err
		}
		values[i] = kv.KeyValue{Key: key, Value: value, Found: found}
	}
	return values, nil
}

// Close marks the store as closed. The data stays in memory until the store is garbage collected,
// use Save before Close to persist it.
func (s *storeImpl) Close() error {
	s.closed.Store(true)
	return nil
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Snapshotter is implemented by stores which can persist their full state to a stream.
type Snapshotter interface {
	// Save persists the current state of the store to the provided io.Writer.
	Save(w io.Writer) (err error)
	// Load replaces the state of the store with the data provided by an io.Reader.
	Load(r io.Reader) (err error)
}

var _ Snapshotter = (*storeImpl)(nil)

// Save persists the store to the writer.
// Concurrent reading and writing is allowed during Save, the snapshot contains
// every entry written before Save was called.
func (s *storeImpl) Save(w io.Writer) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	// Use a buffered writer for better performance
	bw := bufio.NewWriterSize(w, 1024*1024) // 1 MB buffer

	type entryToSave struct {
		key   string
		entry entry
	}

	// collect a snapshot of all shards
	var entries []entryToSave
	for _, shard := range s.shards {
		shard.Range(func(key string, e entry) bool {
			value := make([]byte, len(e.Value))
			copy(value, e.Value)
			entries = append(entries, entryToSave{key, entry{Value: value, Index: e.Index}})
			return true
		})
	}

	// Write file header
	if _, err := bw.WriteString(magicNum); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint8(snapshotVersion)); err != nil {
		return err
	}

	// Write total entries count
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(entries))); err != nil {
		return err
	}

	for _, item := range entries {
		// Write key length and key
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(item.key))); err != nil {
			return err
		}
		if _, err := bw.WriteString(item.key); err != nil {
			return err
		}

		// Write write index
		if err := binary.Write(bw, binary.LittleEndian, item.entry.Index); err != nil {
			return err
		}

		// Write value length and value
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(item.entry.Value))); err != nil {
			return err
		}
		if _, err := bw.Write(item.entry.Value); err != nil {
			return err
		}
	}

	// Flush buffer to ensure all data is written
	return bw.Flush()
}

// Load restores the store from the reader, replacing all current entries.
//
// Thread-safety: This function is not thread-safe and should not be called concurrently
func (s *storeImpl) Load(r io.Reader) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	br := bufio.NewReaderSize(r, 1024*1024) // 1 MB buffer

	// Read and verify magic number
	magicBytes := make([]byte, len(magicNum))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return err
	}
	if string(magicBytes) != magicNum {
		return fmt.Errorf("invalid file format: magic number mismatch")
	}

	// Read and verify version
	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return err
	}
	if int(version) != snapshotVersion {
		return fmt.Errorf("unsupported version: %d (expected %d)", version, snapshotVersion)
	}

	var count uint64
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return err
	}

	// load into fresh shards, so a broken snapshot leaves the store untouched
	shards := newShards(len(s.shards))
	var maxIndex uint64

	for i := uint64(0); i < count; i++ {
		var keyLen uint32
		if err := binary.Read(br, binary.LittleEndian, &keyLen); err != nil {
			return err
		}
		if keyLen > maxKeyLen {
			return fmt.Errorf("invalid key length %d in entry %d", keyLen, i)
		}
		key := make([]byte, keyLen)
		if _, err := io.ReadFull(br, key); err != nil {
			return err
		}

		var index uint64
		if err := binary.Read(br, binary.LittleEndian, &index); err != nil {
			return err
		}
		if index > maxIndex {
			maxIndex = index
		}

		var valueLen uint32
		if err := binary.Read(br, binary.LittleEndian, &valueLen); err != nil {
			return err
		}
		if valueLen > maxValueLen {
			return fmt.Errorf("invalid value length %d in entry %d", valueLen, i)
		}
		value := make([]byte, valueLen)
		if _, err := io.ReadFull(br, value); err != nil {
			return err
		}

		k := string(key)
		shards[util.ShardIndex(util.HashString(k, s.seed), len(shards))].Store(k, entry{Value: value, Index: index})
	}

	s.shards = shards
	s.currIndex.Store(maxIndex)
	return nil
}

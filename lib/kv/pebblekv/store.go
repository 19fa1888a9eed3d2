package pebblekv

import (
	"errors"
	"sync"

	"github.com/ValentinKolb/flipcache/lib/kv"
	"github.com/cockroachdb/pebble"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("kv")
)

// storeImpl implements kv.IKVStore on top of a pebble database
type storeImpl struct {
	mu     sync.RWMutex // guards db against use after Close
	db     *pebble.DB
	path   string
	closed bool
}

// Open opens (or creates) a pebble database at the given directory.
func Open(path string) (kv.IKVStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		Logger.Errorf("pebble open failed (path=%s): %v", path, err)
		return nil, kv.Errorf(kv.RetCInternalError, "open %s: %v", path, err)
	}
	Logger.Debugf("pebble opened (path=%s)", path)
	return &storeImpl{db: db, path: path}, nil
}

// read runs fn with the database under the read lock
func (s *storeImpl) read(fn func(db *pebble.DB) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return kv.NewError(kv.RetCClosed, "store is closed")
	}
	return fn(s.db)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see kv/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Get(key string) (value []byte, found bool, err error) {
	err = s.read(func(db *pebble.DB) error {
		data, closer, err := db.Get([]byte(key))
		if errors.Is(err, pebble.ErrNotFound) {
			return nil
		}
		if err != nil {
			return kv.Errorf(kv.RetCInternalError, "get %s: %v", key, err)
		}
		defer closer.Close()

		// Make a copy since pebble data is only valid until closer is called
		value = make([]byte, len(data))
		copy(value, data)
		found = true
		return nil
	})
	return value, found, err
}

func (s *storeImpl) Set(key string, value []byte) error {
	if key == "" {
		return kv.NewError(kv.RetCInvalidKey, "empty key")
	}
	return s.read(func(db *pebble.DB) error {
		if err := db.Set([]byte(key), value, pebble.Sync); err != nil {
			return kv.Errorf(kv.RetCInternalError, "set %s: %v", key, err)
		}
		return nil
	})
}

func (s *storeImpl) Remove(key string) error {
	return s.read(func(db *pebble.DB) error {
		if err := db.Delete([]byte(key), pebble.Sync); err != nil {
			return kv.Errorf(kv.RetCInternalError, "delete %s: %v", key, err)
		}
		return nil
	})
}

func (s *storeImpl) Keys() ([]string, error) {
	return s.KeysWithPrefix("")
}

func (s *storeImpl) KeysWithPrefix(prefix string) (keys []string, err error) {
	err = s.read(func(db *pebble.DB) error {
		opts := &pebble.IterOptions{}
		if prefix != "" {
			opts.LowerBound = []byte(prefix)
			opts.UpperBound = prefixUpperBound([]byte(prefix))
		}
		iter, err := db.NewIter(opts)
		if err != nil {
			return kv.Errorf(kv.RetCInternalError, "create iterator: %v", err)
		}
		defer iter.Close()

		for iter.First(); iter.Valid(); iter.Next() {
			keys = append(keys, string(iter.Key()))
		}
		if err := iter.Error(); err != nil {
			return kv.Errorf(kv.RetCInternalError, "iterate: %v", err)
		}
		return nil
	})
	return keys, err
}

func (s *storeImpl) MultiGet(keys []string) ([]kv.KeyValue, error) {
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

func (s *storeImpl) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.db.Close(); err != nil {
		return kv.Errorf(kv.RetCInternalError, "close %s: %v", s.path, err)
	}
	Logger.Debugf("pebble closed (path=%s)", s.path)
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// prefixUpperBound returns the smallest key greater than every key with the given prefix.
// nil means there is no upper bound (prefix consists only of 0xff bytes).
func prefixUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

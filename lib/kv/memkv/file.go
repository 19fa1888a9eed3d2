package memkv

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ValentinKolb/flipcache/lib/kv"
)

// fileStore is an in-memory store which is loaded from a snapshot file on open
// and written back to it on Close.
type fileStore struct {
	*storeImpl
	path string
}

// OpenFile creates an in-memory store backed by the snapshot file at path.
// A missing file yields an empty store. The snapshot is rewritten on Close
// (write to a temporary file, then rename).
func OpenFile(path string, opts *Options) (kv.IKVStore, error) {
	s := NewStore(opts).(*storeImpl)

	f, err := os.Open(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// start empty
	case err != nil:
		return nil, kv.Errorf(kv.RetCInternalError, "open snapshot %s: %v", path, err)
	default:
		defer f.Close()
		if err := s.Load(f); err != nil {
			return nil, kv.Errorf(kv.RetCInternalError, "load snapshot %s: %v", path, err)
		}
	}

	return &fileStore{storeImpl: s, path: path}, nil
}

// Close writes the snapshot and closes the store.
func (f *fileStore) Close() error {
	if f.closed.Load() {
		return nil
	}
	if err := f.flush(); err != nil {
		return kv.Errorf(kv.RetCInternalError, "write snapshot %s: %v", f.path, err)
	}
	return f.storeImpl.Close()
}

func (f *fileStore) flush() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if err := f.Save(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

// Package cache persists file content digests in a Badger database so the
// executor can skip re-hashing pack files that have not changed since the
// last run.
package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/adrg/xdg"
	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned when no entry exists for a path.
var ErrNotFound = errors.New("cache entry not found")

// Stats counts lookups since the store was opened.
type Stats struct {
	Hits   int64
	Misses int64
}

// Store is a Badger-backed digest cache. It is safe for concurrent use.
type Store struct {
	db     *badger.DB
	hits   atomic.Int64
	misses atomic.Int64
}

// DefaultPath returns $XDG_CACHE_HOME/packpatch/hashes.
func DefaultPath() string {
	return filepath.Join(xdg.CacheHome, "packpatch", "hashes")
}

// Open opens or creates a store at dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens a store that lives only as long as the process.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening in-memory cache: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the raw entry for path.
func (s *Store) Get(path string) (*Entry, error) {
	var entry Entry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(MakeKey(path))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(entry.Decode)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Put stores entry for path.
func (s *Store) Put(path string, entry *Entry) error {
	value, err := entry.Encode()
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(MakeKey(path), value)
	})
}

// Lookup returns the cached digest of path if it was recorded for the same
// size and modification time.
func (s *Store) Lookup(path string, size int64, mtime time.Time) ([32]byte, bool) {
	entry, err := s.Get(path)
	if err != nil || !entry.Matches(size, mtime) {
		s.misses.Add(1)
		return [32]byte{}, false
	}
	s.hits.Add(1)
	return entry.SHA256, true
}

// Remember records the digest of path. Cache write failures are not fatal to
// callers, so the error is only returned for logging.
func (s *Store) Remember(path string, size int64, mtime time.Time, sum [32]byte) error {
	return s.Put(path, &Entry{Size: size, Mtime: mtime.UnixNano(), SHA256: sum})
}

// Forget drops the entry for path.
func (s *Store) Forget(path string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(MakeKey(path))
	})
}

// ForgetTree drops every entry at or below dir.
func (s *Store) ForgetTree(dir string) error {
	prefix := MakeKey(filepath.Clean(dir))
	return s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		sep := byte(filepath.Separator)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			// Skip siblings that merely share a name prefix.
			if len(key) > len(prefix) && key[len(prefix)] != sep {
				continue
			}
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// Len returns the number of current-version entries.
func (s *Store) Len() (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := keyPrefix()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Stats returns lookup counters.
func (s *Store) Stats() Stats {
	return Stats{Hits: s.hits.Load(), Misses: s.misses.Load()}
}

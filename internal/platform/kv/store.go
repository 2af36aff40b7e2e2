// Package kv is the embedded record store used when STORE_DRIVER=leveldb.
// Values are JSON documents; ordering comes from the key layout, so callers
// build keys with a sortable time component.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var (
	ErrNotFound = errors.New("kv: not found")
	ErrConflict = errors.New("kv: unique key already taken")
)

type Store struct {
	db *leveldb.DB
	// serialises check-then-write for unique index keys
	mu sync.Mutex

	clockMu sync.Mutex
	last    time.Time
}

func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// OpenMemory returns a store backed by memory, for tests.
func OpenMemory() (*Store, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("open memory leveldb: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is still open.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.db.Get([]byte("_ping"), nil)
	if err != nil && !errors.Is(err, leveldb.ErrNotFound) {
		return err
	}
	return nil
}

func (s *Store) Get(key string, v interface{}) error {
	data, err := s.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	return json.Unmarshal(data, v)
}

func (s *Store) Put(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.db.Put([]byte(key), data, nil)
}

// PutUnique writes v under key together with pointer entries for each index
// key. Nothing is written if any index key is already present.
func (s *Store) PutUnique(key string, v interface{}, indexKeys ...string) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ik := range append([]string{key}, indexKeys...) {
		ok, err := s.db.Has([]byte(ik), nil)
		if err != nil {
			return fmt.Errorf("check %s: %w", ik, err)
		}
		if ok {
			return fmt.Errorf("%w: %s", ErrConflict, ik)
		}
	}

	batch := new(leveldb.Batch)
	batch.Put([]byte(key), data)
	for _, ik := range indexKeys {
		batch.Put([]byte(ik), []byte(key))
	}
	return s.db.Write(batch, nil)
}

// Resolve follows an index entry written by PutUnique and decodes the
// document it points to.
func (s *Store) Resolve(indexKey string, v interface{}) error {
	target, err := s.db.Get([]byte(indexKey), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", indexKey, err)
	}
	return s.Get(string(target), v)
}

// Scan visits documents under prefix in key order, or in reverse when
// newestFirst is set, skipping offset entries and stopping after limit
// (limit <= 0 means no limit).
func (s *Store) Scan(prefix string, newestFirst bool, offset, limit int, fn func(value []byte) error) error {
	it := s.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer it.Release()

	first, next := it.First, it.Next
	if newestFirst {
		first, next = it.Last, it.Prev
	}

	seen, emitted := 0, 0
	for ok := first(); ok; ok = next() {
		if seen < offset {
			seen++
			continue
		}
		if limit > 0 && emitted >= limit {
			break
		}
		if err := fn(copyValue(it)); err != nil {
			return err
		}
		emitted++
	}
	return it.Error()
}

// Count returns the number of keys under prefix.
func (s *Store) Count(prefix string) (int, error) {
	it := s.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer it.Release()
	n := 0
	for it.Next() {
		n++
	}
	return n, it.Error()
}

func copyValue(it iterator.Iterator) []byte {
	v := it.Value()
	out := make([]byte, len(v))
	copy(out, v)
	return out
}

// Now returns the current UTC time, strictly after any value it returned
// before, so time-ordered keys written by one store never collide.
func (s *Store) Now() time.Time {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	now := time.Now().UTC()
	if !now.After(s.last) {
		now = s.last.Add(time.Nanosecond)
	}
	s.last = now
	return now
}

// TimeKey renders t as a fixed-width decimal so keys sort chronologically.
func TimeKey(t time.Time) string {
	return fmt.Sprintf("%020d", t.UnixNano())
}

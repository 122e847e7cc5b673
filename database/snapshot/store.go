// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package snapshot

import (
	"sync"

	"github.com/MostProtocol/most-mbtc-core/common"
	"github.com/pbnjay/memory"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

const (
	ErrNotFound = common.ConstError("not found")
)

// Block cache bounds of the LevelDB store.
const (
	minCacheSize = 8 << 20
	maxCacheSize = 256 << 20
)

// Store is a key-value store used to persist encoded snapshots.
type Store interface {
	Get(key []byte) ([]byte, error)
	Set(key []byte, value []byte) error
	Close() error
}

// levelDbStore is a Store backed by LevelDB.
type levelDbStore struct {
	db *leveldb.DB
}

func newLevelDbStore(path string) (*levelDbStore, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{BlockCacheCapacity: cacheSize(memory.TotalMemory())})
	if err != nil {
		return nil, err
	}
	return &levelDbStore{db: db}, nil
}

// cacheSize dedicates 1/64 of the machine's memory to the block cache.
func cacheSize(total uint64) int {
	size := total / 64
	if size < minCacheSize {
		return minCacheSize
	}
	if size > maxCacheSize {
		return maxCacheSize
	}
	return int(size)
}

func (s *levelDbStore) Get(key []byte) ([]byte, error) {
	data, err := s.db.Get(key, &opt.ReadOptions{})
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	return data, err
}

func (s *levelDbStore) Set(key []byte, value []byte) error {
	return s.db.Put(key, value, &opt.WriteOptions{Sync: true})
}

func (s *levelDbStore) Close() error {
	return s.db.Close()
}

// memoryDbStore is an in-memory Store for tests and simulations.
type memoryDbStore struct {
	mu    sync.Mutex
	store map[string][]byte
}

func newMemoryDbStore() *memoryDbStore {
	return &memoryDbStore{store: make(map[string][]byte)}
}

func (s *memoryDbStore) Get(key []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.store[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

func (s *memoryDbStore) Set(key []byte, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store[string(key)] = append([]byte(nil), value...)
	return nil
}

func (s *memoryDbStore) Close() error {
	return nil
}

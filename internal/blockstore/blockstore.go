// Package blockstore is the block storage (C8): an append-only,
// height-keyed store of committed blocks.
//
// Grounded on spec.md §4.8. Heights are contiguous starting at 1;
// inserting an already-present height is rejected; iteration always
// yields blocks in height order.
package blockstore

import (
	"sync"

	"github.com/hyperledger/iroha-go/internal/model"
)

// Store is an in-memory block storage. A disk-backed implementation
// (e.g. one keyed by height in a kv.Engine, or one-file-per-block like
// the teacher's on-disk object cache) would satisfy the same shape;
// nothing in SPEC_FULL requires persistence across process restarts for
// the reference engine, so this package stays in-memory, matching
// internal/kv/memkv's own reference-engine scope.
type Store struct {
	mu     sync.RWMutex
	blocks map[uint64]*model.Block
	size   uint64
}

// New returns an empty block store.
func New() *Store {
	return &Store{blocks: make(map[uint64]*model.Block)}
}

// Insert appends block at its own height. Returns false (no error) if
// the height is already occupied or is not the next contiguous height —
// both are caller mistakes, not storage faults.
func (st *Store) Insert(block *model.Block) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	if block.Height != st.size+1 {
		return false
	}
	if _, exists := st.blocks[block.Height]; exists {
		return false
	}
	st.blocks[block.Height] = block
	st.size = block.Height
	return true
}

// Fetch returns the block at height, or (nil, false) if absent.
func (st *Store) Fetch(height uint64) (*model.Block, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	b, ok := st.blocks[height]
	return b, ok
}

// Size returns the number of blocks stored (== the top height, since
// heights are contiguous from 1).
func (st *Store) Size() uint64 {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.size
}

// Clear empties the store.
func (st *Store) Clear() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.blocks = make(map[uint64]*model.Block)
	st.size = 0
}

// ForEach visits every block in height order. Stops early if fn returns
// false.
func (st *Store) ForEach(fn func(*model.Block) bool) {
	st.mu.RLock()
	n := st.size
	st.mu.RUnlock()

	for h := uint64(1); h <= n; h++ {
		st.mu.RLock()
		b := st.blocks[h]
		st.mu.RUnlock()
		if !fn(b) {
			return
		}
	}
}

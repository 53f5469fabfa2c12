// Package ledgerstore is the storage façade (C10): it owns the block
// store and the KV engine, exposes prepared-commit and ordinary commit
// paths, and publishes on_commit events for every block that lands.
//
// Grounded on spec.md §4.10.
package ledgerstore

import (
	"fmt"
	"sync"

	"github.com/hyperledger/iroha-go/internal/blockindex"
	"github.com/hyperledger/iroha-go/internal/blockstore"
	"github.com/hyperledger/iroha-go/internal/eventbus"
	"github.com/hyperledger/iroha-go/internal/kv"
	"github.com/hyperledger/iroha-go/internal/model"
	"github.com/hyperledger/iroha-go/internal/mutablestorage"
	"github.com/hyperledger/iroha-go/internal/wsv"
)

const preparedBlockName = "prepared_block"

// Storage is the node's single storage façade: one KV engine, one block
// store, one ledger state, one commit event topic.
type Storage struct {
	mu            sync.Mutex
	engine        kv.Engine
	blocks        *blockstore.Store
	bus           *eventbus.Bus
	hash          mutablestorage.HashFunc
	prepared      bool
	allowPrepared bool
}

// New builds a storage façade over engine, publishing on_commit events to
// bus. allowPrepared controls whether prepare_block/commit_prepared is
// enabled for this node (spec.md §4.10: "if prepared-commits enabled").
func New(engine kv.Engine, bus *eventbus.Bus, hash mutablestorage.HashFunc, allowPrepared bool) *Storage {
	return &Storage{
		engine:        engine,
		blocks:        blockstore.New(),
		bus:           bus,
		hash:          hash,
		allowPrepared: allowPrepared,
	}
}

// Blocks exposes the underlying block store for read access (e.g. by the
// block loader).
func (st *Storage) Blocks() *blockstore.Store { return st.blocks }

// NewMutableStorage begins a fresh session and wraps it in a C9
// MutableStorage seeded with the current ledger state.
func (st *Storage) NewMutableStorage(state *model.LedgerState) (*mutablestorage.MutableStorage, error) {
	s, err := st.engine.Begin()
	if err != nil {
		return nil, err
	}
	return mutablestorage.New(s, state, st.hash), nil
}

// PrepareBlock promotes a temporary WSV's session to a named prepared
// transaction, if prepared-commits are enabled and no block is already
// prepared.
func (st *Storage) PrepareBlock(s kv.Session) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if !st.allowPrepared {
		return fmt.Errorf("ledgerstore: prepared commits are not enabled")
	}
	if st.prepared {
		return fmt.Errorf("ledgerstore: a block is already prepared")
	}
	if err := s.Prepare(preparedBlockName); err != nil {
		return err
	}
	st.prepared = true
	return nil
}

// CommitPrepared commits the previously prepared transaction, inserts
// block into storage, indexes it and persists top-block info in a fresh
// session, refreshes the ledger state, and publishes on_commit. A block
// whose height does not follow the stored top is refused before anything
// is committed: the prepared transaction is left in place (the caller may
// retry or RollbackPrepared separately) and state is unchanged.
func (st *Storage) CommitPrepared(s kv.Session, block *model.Block) (*model.LedgerState, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if !st.prepared {
		return nil, fmt.Errorf("ledgerstore: no block is prepared")
	}
	if block.Height != st.blocks.Size()+1 {
		return nil, fmt.Errorf("ledgerstore: block %d does not follow stored top %d", block.Height, st.blocks.Size())
	}

	if err := s.CommitPrepared(preparedBlockName); err != nil {
		return nil, err
	}
	st.prepared = false

	if !st.blocks.Insert(block) {
		return nil, fmt.Errorf("ledgerstore: block %d could not be inserted", block.Height)
	}
	ws, err := st.engine.Begin()
	if err != nil {
		return nil, err
	}
	if err := blockindex.New(ws).Index(block); err != nil {
		return nil, err
	}

	cmd := wsv.NewCommand(ws)
	hash := st.hash(block)
	if err := cmd.SetTopBlockInfo(model.TopBlockInfo{Height: block.Height, Hash: hash}); err != nil {
		return nil, err
	}

	q := wsv.NewQuery(ws)
	active, syncing, err := q.ListPeers()
	if err != nil {
		return nil, err
	}
	if err := ws.Commit(); err != nil {
		return nil, err
	}
	newState := &model.LedgerState{ActivePeers: active, SyncingPeers: syncing, Top: model.TopBlockInfo{Height: block.Height, Hash: hash}}

	st.bus.Publish(eventbus.TopicOnCommit, block)
	return newState, nil
}

// Commit delegates to C9's MutableStorage.Commit and republishes every
// newly appended block as an on_commit event.
func (st *Storage) Commit(ms *mutablestorage.MutableStorage) error {
	before := st.blocks.Size()
	if err := ms.Commit(st.blocks); err != nil {
		return err
	}
	after := st.blocks.Size()
	for h := before + 1; h <= after; h++ {
		if b, ok := st.blocks.Fetch(h); ok {
			st.bus.Publish(eventbus.TopicOnCommit, b)
		}
	}
	return nil
}

// Reset clears prepared-block bookkeeping without touching stored blocks
// (spec.md §4.10 maintenance operation).
func (st *Storage) Reset() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.prepared = false
}

// DropStorage clears every stored block and resets prepared-block state.
func (st *Storage) DropStorage() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.blocks.Clear()
	st.prepared = false
}

// ResetPeers clears the active/syncing peer lists recorded in WSV via
// cmd, leaving block storage untouched.
func (st *Storage) ResetPeers(cmd *wsv.Command) error {
	return cmd.ResetPeers()
}

// Package mutablestorage is the mutable storage (C9): it speculatively
// applies blocks under a top-level transaction, buffering them privately
// until a single destructive Commit replays the buffer into an external
// block store.
//
// Grounded on spec.md §4.9.
package mutablestorage

import (
	"fmt"

	"github.com/hyperledger/iroha-go/internal/blockindex"
	"github.com/hyperledger/iroha-go/internal/blockstore"
	"github.com/hyperledger/iroha-go/internal/kv"
	"github.com/hyperledger/iroha-go/internal/model"
	"github.com/hyperledger/iroha-go/internal/txexec"
	"github.com/hyperledger/iroha-go/internal/wsv"
)

// Predicate decides whether a block should be applied given the current
// ledger state.
type Predicate func(block *model.Block, current *model.LedgerState) bool

// HashFunc computes a block's identity hash. Injected rather than owned
// by model.Block: the canonical serialization is a wire-format detail
// external to this package (spec.md §1), same rationale as
// internal/tempwsv.PayloadFunc.
type HashFunc func(*model.Block) model.Hash

// MutableStorage accumulates block applications under one top-level KV
// transaction. It is single-use: once Commit or Rollback runs, the
// instance must not be reused.
type MutableStorage struct {
	s      kv.Session
	cmd    *wsv.Command
	q      *wsv.Query
	buffer *blockstore.Store
	state  *model.LedgerState
	hash   HashFunc
	done   bool
}

// New opens a top-level transaction on s and returns a storage seeded
// with the optional starting ledger state (nil if the chain is empty).
func New(s kv.Session, start *model.LedgerState, hash HashFunc) *MutableStorage {
	return &MutableStorage{
		s:      s,
		cmd:    wsv.NewCommand(s),
		q:      wsv.NewQuery(s),
		buffer: blockstore.New(),
		state:  start,
		hash:   hash,
	}
}

// State returns the current ledger state snapshot (nil if no block has
// been applied yet and none was seeded at construction).
func (m *MutableStorage) State() *model.LedgerState { return m.state }

// Apply unconditionally attempts to apply block.
func (m *MutableStorage) Apply(block *model.Block) bool {
	return m.ApplyIf(block, func(*model.Block, *model.LedgerState) bool { return true })
}

// ApplyIf applies block only if predicate(block, currentState) is true.
// Runs every transaction with stateful validation off (block-level
// validation is the synchronizer's responsibility, spec.md §4.9): each
// command still enforces its own data-level invariants via C3, but no
// permission check runs.
func (m *MutableStorage) ApplyIf(block *model.Block, predicate Predicate) bool {
	if m.done {
		return false
	}
	if !predicate(block, m.state) {
		return false
	}

	spName := fmt.Sprintf("mutable_block_%d", block.Height)
	if err := m.s.Savepoint(spName); err != nil {
		return false
	}

	tex := txexec.New(m.s)
	for _, tx := range block.Transactions {
		if res := tex.Execute(tx, false); res.Err != nil {
			m.s.RollbackToSavepoint(spName)
			m.s.ReleaseSavepoint(spName)
			return false
		}
	}

	hash := m.hash(block)
	if err := m.cmd.SetTopBlockInfo(model.TopBlockInfo{Height: block.Height, Hash: hash}); err != nil {
		m.s.RollbackToSavepoint(spName)
		m.s.ReleaseSavepoint(spName)
		return false
	}
	if !m.buffer.Insert(block) {
		m.s.RollbackToSavepoint(spName)
		m.s.ReleaseSavepoint(spName)
		return false
	}
	if err := blockindex.New(m.s).Index(block); err != nil {
		m.s.RollbackToSavepoint(spName)
		m.s.ReleaseSavepoint(spName)
		return false
	}

	active, syncing, err := m.q.ListPeers()
	if err != nil {
		m.s.RollbackToSavepoint(spName)
		m.s.ReleaseSavepoint(spName)
		return false
	}
	m.state = &model.LedgerState{
		ActivePeers:  active,
		SyncingPeers: syncing,
		Top:          model.TopBlockInfo{Height: block.Height, Hash: hash},
	}

	if err := m.s.ReleaseSavepoint(spName); err != nil {
		return false
	}
	return true
}

// Commit is the destructive move: if a ledger state exists (at least one
// block was applied, or one was seeded), replay the buffered blocks into
// external in height order and commit the top-level KV transaction. On
// any failure the transaction is rolled back and an error returned.
// After Commit returns (success or failure) this MutableStorage is
// exhausted and must not be reused.
func (m *MutableStorage) Commit(external *blockstore.Store) error {
	if m.done {
		return fmt.Errorf("mutable storage already committed or rolled back")
	}
	m.done = true

	if m.state == nil {
		m.s.Rollback()
		return nil
	}

	var replayErr error
	m.buffer.ForEach(func(b *model.Block) bool {
		if !external.Insert(b) {
			replayErr = fmt.Errorf("mutable storage: failed to replay block %d into external storage", b.Height)
			return false
		}
		return true
	})
	if replayErr != nil {
		m.s.Rollback()
		return replayErr
	}

	if err := m.s.Commit(); err != nil {
		m.s.Rollback()
		return err
	}
	return nil
}

// Rollback discards every block applied through this MutableStorage. A
// MutableStorage that is abandoned without Commit must be rolled back
// explicitly — there is no finalizer-based cleanup in Go.
func (m *MutableStorage) Rollback() {
	if m.done {
		return
	}
	m.done = true
	m.s.Rollback()
}

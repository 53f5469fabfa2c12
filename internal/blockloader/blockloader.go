// Package blockloader implements the block loader (C16): streaming and
// single-block retrieval from a named peer, a stateless per-block
// validator, and the single-slot consensus result cache.
package blockloader

import (
	"context"
	"fmt"
	"sync"

	"github.com/hyperledger/iroha-go/internal/model"
)

// Validator rejects a block before it is handed to the caller. A failure
// here terminates the enclosing stream (spec.md §4.16).
type Validator func(block *model.Block) error

// HashFunc computes a block's identity hash, the same injected
// collaborator used by internal/mutablestorage and internal/ledgerstore.
type HashFunc func(*model.Block) model.Hash

// Source is the local data the loader serves requests from: a height-keyed
// block lookup, used for both the streaming and single-block RPCs.
type Source interface {
	Fetch(height uint64) (*model.Block, bool)
}

// Loader implements retrieve_blocks/retrieve_block against local storage,
// plus the consensus result cache for the latest proposed (not yet
// committed) block.
type Loader struct {
	source   Source
	validate Validator
	mu       sync.Mutex
	cacheBlk *model.Block
	cacheH   uint64
	cacheSet bool
}

// New builds a loader over source, applying validate to every block it
// serves (including cached ones, so a stale cache entry never bypasses
// validation).
func New(source Source, validate Validator) *Loader {
	return &Loader{source: source, validate: validate}
}

// DefaultValidator builds a stateless per-block check: a block must carry
// a computable, non-empty identity hash and at least one signature. Chain
// linkage (prev_hash continuity, height, supermajority of signatures) is
// necessarily stateful and is instead the synchronizer's job (spec.md
// §4.15's chain-validate step).
func DefaultValidator(hash HashFunc) Validator {
	return func(block *model.Block) error {
		if len(block.Signatures) == 0 {
			return fmt.Errorf("block %d carries no signatures", block.Height)
		}
		if len(hash(block)) == 0 {
			return fmt.Errorf("block %d has an empty identity hash", block.Height)
		}
		return nil
	}
}

// CacheProposal records the latest block this node proposed as the single-
// slot consensus result cache entry (spec.md §4.16).
func (l *Loader) CacheProposal(block *model.Block) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cacheBlk = block
	l.cacheH = block.Height
	l.cacheSet = true
}

// ClearCache drops the cached proposal, e.g. once it has been committed
// and is now reachable through ordinary storage.
func (l *Loader) ClearCache() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cacheSet = false
	l.cacheBlk = nil
}

// RetrieveBlock serves one block at height, preferring the cached proposal
// when it matches so a request for the latest height doesn't need to touch
// persistent storage.
func (l *Loader) RetrieveBlock(ctx context.Context, height uint64) (*model.Block, error) {
	l.mu.Lock()
	if l.cacheSet && l.cacheH == height {
		block := l.cacheBlk
		l.mu.Unlock()
		if err := l.validate(block); err != nil {
			return nil, fmt.Errorf("blockloader: cached block %d failed validation: %w", height, err)
		}
		return block, nil
	}
	l.mu.Unlock()

	block, ok := l.source.Fetch(height)
	if !ok {
		return nil, fmt.Errorf("blockloader: no block at height %d", height)
	}
	if err := l.validate(block); err != nil {
		return nil, fmt.Errorf("blockloader: block %d failed validation: %w", height, err)
	}
	return block, nil
}

// RetrieveBlocks returns a lazy ascending sequence of blocks starting at
// startHeight. The returned next function yields (nil, false) once the
// local store runs out of contiguous heights, the context is done, or a
// block fails validation (the stream terminates on the first bad block,
// per spec.md §4.16).
func (l *Loader) RetrieveBlocks(ctx context.Context, startHeight uint64) (next func() (*model.Block, bool), cancel func()) {
	height := startHeight
	done := false
	return func() (*model.Block, bool) {
			if done {
				return nil, false
			}
			select {
			case <-ctx.Done():
				done = true
				return nil, false
			default:
			}
			block, ok := l.source.Fetch(height)
			if !ok {
				done = true
				return nil, false
			}
			if err := l.validate(block); err != nil {
				done = true
				return nil, false
			}
			height++
			return block, true
		}, func() { done = true }
}

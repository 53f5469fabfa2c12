// Package sync implements the synchronizer (C15): it reacts to gate
// objects by committing, downloading missing blocks, or doing nothing,
// and emits SyncEvents for upper layers.
package sync

import (
	"context"
	"fmt"
	stdsync "sync"

	"github.com/hyperledger/iroha-go/internal/gate"
	"github.com/hyperledger/iroha-go/internal/kv"
	"github.com/hyperledger/iroha-go/internal/ledgerstore"
	"github.com/hyperledger/iroha-go/internal/model"
	"github.com/hyperledger/iroha-go/internal/network"
	"github.com/hyperledger/iroha-go/internal/yac"
)

// EventKind distinguishes the three synchronizer outcomes (spec.md §4.15).
type EventKind int

const (
	EventCommit EventKind = iota
	EventReject
	EventNothing
)

// Event is what the synchronizer emits after reacting to a gate object.
type Event struct {
	Kind  EventKind
	Round model.Round
	State model.LedgerState
}

// Synchronizer reacts to gate objects produced by C14.
type Synchronizer struct {
	store           *ledgerstore.Storage
	preparedEnabled bool
	loader          network.BlockLoaderClient
	sm              yac.Supermajority
	emit            func(Event)

	mu       stdsync.Mutex
	prepared map[model.Round]kv.Session
}

// New builds a synchronizer. preparedEnabled mirrors the storage façade's
// own prepared-commits flag (spec.md §4.15's "if prepared-commits
// enabled" branch).
func New(store *ledgerstore.Storage, preparedEnabled bool, loader network.BlockLoaderClient, sm yac.Supermajority, emit func(Event)) *Synchronizer {
	return &Synchronizer{
		store:           store,
		preparedEnabled: preparedEnabled,
		loader:          loader,
		sm:              sm,
		emit:            emit,
		prepared:        make(map[model.Round]kv.Session),
	}
}

// RegisterPreparedSession binds a previously prepared KV session to the
// round it was speculatively built for, so a later PairValid for that
// round can take the prepared-commit fast path.
func (s *Synchronizer) RegisterPreparedSession(round model.Round, session kv.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prepared[round] = session
}

func (s *Synchronizer) takePreparedSession(round model.Round) (kv.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.prepared[round]
	if ok {
		delete(s.prepared, round)
	}
	return sess, ok
}

// OnGateObject is the single entry point: dispatch on the concrete gate
// object type per spec.md §4.15's reaction table.
func (s *Synchronizer) OnGateObject(obj gate.Object) error {
	switch o := obj.(type) {
	case gate.PairValid:
		return s.onPairValid(o)
	case gate.VoteOther:
		return s.onDownload(o.Round, o.State, o.PublicKeys)
	case gate.Future:
		return s.onDownload(o.Round, o.State, o.PublicKeys)
	case gate.ProposalReject:
		s.emit(Event{Kind: EventReject, Round: o.Round, State: o.State})
		return nil
	case gate.BlockReject:
		s.emit(Event{Kind: EventReject, Round: o.Round, State: o.State})
		return nil
	case gate.AgreementOnNone:
		s.emit(Event{Kind: EventNothing, Round: o.Round, State: o.State})
		return nil
	default:
		return fmt.Errorf("sync: unknown gate object %T", obj)
	}
}

func (s *Synchronizer) onPairValid(o gate.PairValid) error {
	if sess, ok := s.takePreparedSession(o.Round); ok && s.preparedEnabled {
		newState, err := s.store.CommitPrepared(sess, o.Block)
		if err != nil {
			return fmt.Errorf("sync: commit_prepared for round %v: %w", o.Round, err)
		}
		s.emit(Event{Kind: EventCommit, Round: o.Round, State: *newState})
		return nil
	}

	ms, err := s.store.NewMutableStorage(&o.State)
	if err != nil {
		return fmt.Errorf("sync: begin mutable storage: %w", err)
	}
	if !ms.Apply(o.Block) {
		ms.Rollback()
		return fmt.Errorf("sync: applying own committed block %d failed", o.Block.Height)
	}
	if err := s.store.Commit(ms); err != nil {
		return fmt.Errorf("sync: commit round %v: %w", o.Round, err)
	}
	s.emit(Event{Kind: EventCommit, Round: o.Round, State: *ms.State()})
	return nil
}

// onDownload implements download_and_commit_missing_blocks: fetch
// start+1..target from each candidate peer in turn, chain-validating and
// applying through mutable storage, resuming one height back on failure.
func (s *Synchronizer) onDownload(round model.Round, state model.LedgerState, peerKeys []model.PublicKey) error {
	start := state.Top.Height
	target := round.BlockRound

	if target <= start {
		s.emit(Event{Kind: EventNothing, Round: round, State: state})
		return nil
	}

	ms, err := s.store.NewMutableStorage(&state)
	if err != nil {
		return fmt.Errorf("sync: begin mutable storage: %w", err)
	}

	resume := start + 1
	for _, pub := range peerKeys {
		if resume > target {
			break
		}
		peer := model.Peer{PubKey: pub}
		ctx := context.Background()
		next, cancel := s.loader.RetrieveBlocks(ctx, peer, resume)

		for resume <= target {
			block, ok := next()
			if !ok {
				break
			}
			if err := s.chainValidate(block, ms.State()); err != nil {
				if resume > start+1 {
					resume--
				}
				break
			}
			if !ms.Apply(block) {
				if resume > start+1 {
					resume--
				}
				break
			}
			resume++
		}
		cancel()
	}

	if resume <= target {
		ms.Rollback()
		return fmt.Errorf("sync: could not reach target height %d (stalled at %d)", target, resume-1)
	}

	if err := s.store.Commit(ms); err != nil {
		return fmt.Errorf("sync: commit downloaded blocks: %w", err)
	}
	s.emit(Event{Kind: EventCommit, Round: round, State: *ms.State()})
	return nil
}

// chainValidate implements spec.md §4.15's three chain-validation checks.
func (s *Synchronizer) chainValidate(block *model.Block, local *model.LedgerState) error {
	if local.Top.Height+1 != block.Height {
		return fmt.Errorf("sync: height %d does not follow local top %d", block.Height, local.Top.Height)
	}
	if !block.PrevHash.Equal(local.Top.Hash) {
		return fmt.Errorf("sync: prev_hash mismatch at height %d", block.Height)
	}
	n := len(local.ActivePeers)
	if len(block.Signatures) < s.sm.Threshold(n) {
		return fmt.Errorf("sync: block %d lacks a supermajority of signatures (%d/%d, need %d)", block.Height, len(block.Signatures), n, s.sm.Threshold(n))
	}
	return nil
}

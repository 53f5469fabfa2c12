package yac

import (
	"sync"

	"github.com/hyperledger/iroha-go/internal/model"
)

// ProcessingState is the strict monotonic progression a round's outcome
// passes through once known (spec.md §4.11).
type ProcessingState int

const (
	NotSentNotProcessed ProcessingState = iota
	SentNotProcessed
	SentProcessed
)

// OutcomeKind distinguishes the three possible round outcomes.
type OutcomeKind int

const (
	OutcomeNone OutcomeKind = iota
	OutcomeCommit
	OutcomeReject
	OutcomeFuture
)

// Outcome is the decided answer for one round, once known.
type Outcome struct {
	Kind  OutcomeKind
	Votes []model.VoteMessage // the supermajority/reject set, when applicable
	Hash  model.YacHash        // the committed hash, for OutcomeCommit
}

// roundState is one round's vote bookkeeping.
type roundState struct {
	votesByPeer map[model.PublicKey]model.VoteMessage
	groups      map[string][]model.VoteMessage // keyed by hash identity
	state       ProcessingState
	outcome     *Outcome
}

func newRoundState() *roundState {
	return &roundState{
		votesByPeer: make(map[model.PublicKey]model.VoteMessage),
		groups:      make(map[string][]model.VoteMessage),
	}
}

func hashKey(h model.YacHash) string {
	return h.Round.String() + "|" + h.ProposalHash + "|" + h.BlockHash
}

// VoteStorage is the per-round ProposalStorage (C11): it deduplicates
// votes by (public_key, round), tracks each hash's vote group, and
// derives an outcome as soon as the supermajority checker determines
// one, per a buffered cleanup strategy that discards rounds older than
// the last L finalized.
type VoteStorage struct {
	mu           sync.Mutex
	sm           Supermajority
	rounds       map[model.Round]*roundState
	finalizedSeq []model.Round // order rounds finalized, oldest first
	keepLast     int
}

// NewVoteStorage builds vote storage with the given supermajority model
// and a buffered-cleanup window of keepLast finalized rounds.
func NewVoteStorage(sm Supermajority, keepLast int) *VoteStorage {
	return &VoteStorage{
		sm:       sm,
		rounds:   make(map[model.Round]*roundState),
		keepLast: keepLast,
	}
}

func (vs *VoteStorage) round(r model.Round) *roundState {
	rs, ok := vs.rounds[r]
	if !ok {
		rs = newRoundState()
		vs.rounds[r] = rs
	}
	return rs
}

// Store ingests vote, deduplicated by (public_key, round); n is the
// cluster size used for the supermajority check. Returns the round's
// outcome if one is now known (nil if still pending).
func (vs *VoteStorage) Store(vote model.VoteMessage, n int) *Outcome {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	rs := vs.round(vote.Hash.Round)
	if _, seen := rs.votesByPeer[vote.PubKey]; seen {
		return rs.outcome // idempotent: second vote from same peer dropped
	}
	rs.votesByPeer[vote.PubKey] = vote
	key := hashKey(vote.Hash)
	rs.groups[key] = append(rs.groups[key], vote)

	if rs.outcome != nil {
		return rs.outcome
	}

	for k, votes := range rs.groups {
		if vs.sm.HasSupermajority(len(votes), n) {
			rs.outcome = &Outcome{Kind: OutcomeCommit, Votes: votes, Hash: votes[0].Hash}
			_ = k
			vs.finalize(vote.Hash.Round)
			return rs.outcome
		}
	}

	counts := make(map[string]int, len(rs.groups))
	for k, votes := range rs.groups {
		counts[k] = len(votes)
	}
	if !vs.sm.CanHaveSupermajority(counts, n) {
		all := make([]model.VoteMessage, 0, len(rs.votesByPeer))
		for _, v := range rs.votesByPeer {
			all = append(all, v)
		}
		rs.outcome = &Outcome{Kind: OutcomeReject, Votes: all}
		vs.finalize(vote.Hash.Round)
		return rs.outcome
	}

	return nil
}

func (vs *VoteStorage) finalize(r model.Round) {
	vs.finalizedSeq = append(vs.finalizedSeq, r)
	if len(vs.finalizedSeq) > vs.keepLast {
		drop := vs.finalizedSeq[0]
		vs.finalizedSeq = vs.finalizedSeq[1:]
		delete(vs.rounds, drop)
	}
}

// Outcome returns the known outcome for round, if any.
func (vs *VoteStorage) Outcome(r model.Round) *Outcome {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	if rs, ok := vs.rounds[r]; ok {
		return rs.outcome
	}
	return nil
}

// State returns the processing state for round.
func (vs *VoteStorage) State(r model.Round) ProcessingState {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.round(r).state
}

// SetState advances round's processing state.
func (vs *VoteStorage) SetState(r model.Round, s ProcessingState) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	vs.round(r).state = s
}

// VoteCount returns how many distinct peers have voted in round.
func (vs *VoteStorage) VoteCount(r model.Round) int {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	if rs, ok := vs.rounds[r]; ok {
		return len(rs.votesByPeer)
	}
	return 0
}

// PurgeOwn removes pub's own vote from round (used by the protocol
// engine's attempt-10 purge, spec.md §4.12).
func (vs *VoteStorage) PurgeOwn(r model.Round, pub model.PublicKey) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	rs, ok := vs.rounds[r]
	if !ok {
		return
	}
	v, ok := rs.votesByPeer[pub]
	if !ok {
		return
	}
	delete(rs.votesByPeer, pub)
	key := hashKey(v.Hash)
	votes := rs.groups[key]
	for i, x := range votes {
		if x.PubKey == pub {
			rs.groups[key] = append(votes[:i], votes[i+1:]...)
			break
		}
	}
}

// Package gate implements the YAC gate (C14): it turns protocol-engine
// outcomes (Commit/Reject/Future) plus this node's own block-creator
// events into the gate objects the synchronizer reacts to.
package gate

import (
	"time"

	"github.com/hyperledger/iroha-go/internal/dispatch"
	"github.com/hyperledger/iroha-go/internal/model"
)

// OutcomeType distinguishes the three protocol-engine outcomes for the
// outcome-delay function.
type OutcomeType int

const (
	TypeCommit OutcomeType = iota
	TypeReject
	TypeFuture
)

// Object is implemented by every gate object variant.
type Object interface {
	isGateObject()
}

// PairValid: this node voted for the block that committed.
type PairValid struct {
	Round Round
	State model.LedgerState
	Block *model.Block
}

// VoteOther: the cluster committed on a different block than this node
// proposed (or this node had no proposal); the block must be fetched.
type VoteOther struct {
	Round      Round
	State      model.LedgerState
	PublicKeys []model.PublicKey
	ModelHash  model.YacHash
}

// ProposalReject: the reject outcome's votes disagree on the proposal
// hash itself.
type ProposalReject struct {
	Round Round
	State model.LedgerState
}

// BlockReject: the reject outcome's votes agree on the proposal hash but
// disagree on the block hash — commit on nothing.
type BlockReject struct {
	Round Round
	State model.LedgerState
}

// AgreementOnNone: the commit outcome's votes carry an empty proposal
// hash — the cluster agreed to vote for nothing.
type AgreementOnNone struct {
	Round Round
	State model.LedgerState
}

// Future: a future-round outcome arrived; upper layers should sync.
type Future struct {
	Round      Round
	State      model.LedgerState
	PublicKeys []model.PublicKey
}

func (PairValid) isGateObject()       {}
func (VoteOther) isGateObject()       {}
func (ProposalReject) isGateObject()  {}
func (BlockReject) isGateObject()     {}
func (AgreementOnNone) isGateObject() {}
func (Future) isGateObject()          {}

// Round is a local alias to avoid importing model.Round by its full path
// at every gate-object field; kept identical in shape.
type Round = model.Round

// proposal is this node's own block-creator event for one round: the
// YacHash it voted and the actual block behind it, if any.
type proposal struct {
	hash  model.YacHash
	block *model.Block
}

// Gate wires protocol-engine outcomes into gate objects, delaying emission
// via an implementation-supplied per-outcome-type duration to smooth
// bursts (spec.md §4.14).
type Gate struct {
	lane    *dispatch.Lane
	delayFn func(OutcomeType) time.Duration
	emit    func(Object)

	proposals map[model.Round]proposal
	state     model.LedgerState
}

// New builds a gate. emit is called (on the gate's lane) with the
// classified object once the outcome delay elapses.
func New(lane *dispatch.Lane, delayFn func(OutcomeType) time.Duration, emit func(Object)) *Gate {
	return &Gate{
		lane:      lane,
		delayFn:   delayFn,
		emit:      emit,
		proposals: make(map[model.Round]proposal),
	}
}

// SetState records the ledger state this node observed entering round —
// used when classifying outcomes for rounds this node did not propose in.
func (g *Gate) SetState(state model.LedgerState) {
	g.state = state
}

// RegisterProposal records this node's own block-creator event for round:
// the hash it is about to vote and the block behind it (round_data, per
// spec.md §4.14's hash-construction note — round+proposal/block hash+the
// creator's block signature live on hash itself).
func (g *Gate) RegisterProposal(round model.Round, hash model.YacHash, block *model.Block, state model.LedgerState) {
	g.proposals[round] = proposal{hash: hash, block: block}
	g.state = state
}

func (g *Gate) takeProposal(round model.Round) (proposal, bool) {
	p, ok := g.proposals[round]
	if ok {
		delete(g.proposals, round)
	}
	return p, ok
}

// OnCommit handles a Commit outcome from the protocol engine.
func (g *Gate) OnCommit(round model.Round, votes []model.VoteMessage) {
	p, hadOwn := g.takeProposal(round)
	state := g.state
	hash := votes[0].Hash

	g.schedule(TypeCommit, func() Object {
		switch {
		case hash.Empty():
			return AgreementOnNone{Round: round, State: state}
		case hadOwn && p.hash.Equal(hash):
			return PairValid{Round: round, State: state, Block: p.block}
		default:
			return VoteOther{Round: round, State: state, PublicKeys: pubKeys(votes), ModelHash: hash}
		}
	})
}

// OnReject handles a Reject outcome from the protocol engine.
func (g *Gate) OnReject(round model.Round, votes []model.VoteMessage) {
	g.takeProposal(round)
	state := g.state

	proposalsDiffer := false
	if len(votes) > 0 {
		first := votes[0].Hash.ProposalHash
		for _, v := range votes[1:] {
			if v.Hash.ProposalHash != first {
				proposalsDiffer = true
				break
			}
		}
	}

	g.schedule(TypeReject, func() Object {
		if proposalsDiffer {
			return ProposalReject{Round: round, State: state}
		}
		return BlockReject{Round: round, State: state}
	})
}

// OnFuture handles a Future outcome from the protocol engine.
func (g *Gate) OnFuture(round model.Round, from []model.PublicKey) {
	state := g.state
	g.schedule(TypeFuture, func() Object {
		return Future{Round: round, State: state, PublicKeys: from}
	})
}

// schedule delays emission of the classified object by the configured
// outcome-delay, on the gate's lane.
func (g *Gate) schedule(t OutcomeType, classify func() Object) {
	delay := time.Duration(0)
	if g.delayFn != nil {
		delay = g.delayFn(t)
	}
	g.lane.After(delay, func() {
		if g.emit != nil {
			g.emit(classify())
		}
	})
}

func pubKeys(votes []model.VoteMessage) []model.PublicKey {
	keys := make([]model.PublicKey, len(votes))
	for i, v := range votes {
		keys[i] = v.PubKey
	}
	return keys
}

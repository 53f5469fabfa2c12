package yac

import (
	"sync"
	"time"

	"github.com/hyperledger/iroha-go/internal/dispatch"
	"github.com/hyperledger/iroha-go/internal/model"
)

// CryptoProvider signs and verifies votes on behalf of the protocol engine.
// The real signature scheme (ed25519 over a canonical YacHash encoding) is an
// external wire-format detail the engine does not need to know; callers
// inject it the same way tempwsv and mutablestorage inject their own
// external-format collaborators.
type CryptoProvider interface {
	Sign(hash model.YacHash) model.VoteMessage
	Verify(vote model.VoteMessage) bool
}

// Sender delivers votes to one peer. A concrete network implementation lives
// in internal/network; tests use an in-memory stub.
type Sender interface {
	Send(peer model.Peer, votes []model.VoteMessage)
}

// Broadcaster delivers votes to every peer in one call, e.g. over a joined
// pubsub topic rather than one stream per peer. Optional: when unset, the
// engine falls back to looping Sender.Send over the current cluster order.
type Broadcaster interface {
	Broadcast(votes []model.VoteMessage)
}

// Engine is the YAC protocol engine (C12): vote propagation, leader
// rotation, and outcome classification for one node.
type Engine struct {
	mu sync.Mutex

	self      model.PublicKey
	crypto    CryptoProvider
	sender    Sender
	broadcast Broadcaster
	lane      *dispatch.Lane
	delay     time.Duration

	order       *ClusterOrdering
	alternative *ClusterOrdering
	round       model.Round
	votes       *VoteStorage

	appliedRound model.Round
	closed       map[model.Round]bool
	stopped      bool

	onCommit     func(round model.Round, votes []model.VoteMessage)
	onReject     func(round model.Round, votes []model.VoteMessage)
	onFuture     func(round model.Round, from []model.PublicKey)
	onApplyState func(round model.Round)
}

// NewEngine builds a protocol engine. sm and keepFinalized size the
// underlying vote storage (spec.md §4.11); delay is the voting-step
// retry interval (spec.md §4.12 step 6).
func NewEngine(self model.PublicKey, crypto CryptoProvider, sender Sender, lane *dispatch.Lane, sm Supermajority, keepFinalized int, delay time.Duration) *Engine {
	return &Engine{
		self:   self,
		crypto: crypto,
		sender: sender,
		lane:   lane,
		delay:  delay,
		votes:  NewVoteStorage(sm, keepFinalized),
		closed: make(map[model.Round]bool),
	}
}

// SetBroadcaster installs a cluster-wide broadcast transport (e.g. a pubsub
// topic) used instead of per-peer Sender.Send loops for the gossip steps of
// spec.md §4.12 (propagating a vote set once it is found too small to have
// already reached the cluster, and back-propagating to stragglers). Passing
// nil restores the per-peer fallback.
func (e *Engine) SetBroadcaster(b Broadcaster) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.broadcast = b
}

// SetHandlers registers the outcome/apply-state subscribers. Any may be nil.
func (e *Engine) SetHandlers(onCommit, onReject func(model.Round, []model.VoteMessage), onFuture func(model.Round, []model.PublicKey), onApplyState func(model.Round)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onCommit = onCommit
	e.onReject = onReject
	e.onFuture = onFuture
	e.onApplyState = onApplyState
}

// Stop blocks new outgoing votes and vote scheduling; in-flight handlers
// complete normally (spec.md §5 cancellation).
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
}

// Vote enters the voting step for hash under the given cluster order (and
// optional one-off alternative order).
func (e *Engine) Vote(hash model.YacHash, order *ClusterOrdering, alternative *ClusterOrdering) {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.order = order
	e.alternative = alternative
	e.round = hash.Round
	vote := e.crypto.Sign(hash)
	e.mu.Unlock()

	e.votingStep(vote, 0)
}

// votingStep implements spec.md §4.12's numbered vote-step algorithm.
func (e *Engine) votingStep(vote model.VoteMessage, attempt int) {
	e.mu.Lock()
	round := vote.Hash.Round

	if o := e.votes.Outcome(round); o != nil && o.Kind == OutcomeCommit {
		e.mu.Unlock()
		return
	}
	if round.Less(e.appliedRound) {
		e.mu.Unlock()
		return
	}
	if e.stopped {
		e.mu.Unlock()
		return
	}

	if attempt > 0 && attempt%10 == 0 {
		e.votes.PurgeOwn(round, e.self)
	}
	if attempt == 10 {
		vote.Hash.ProposalHash = ""
		vote.Hash.BlockHash = ""
		vote = e.crypto.Sign(vote.Hash)
	}

	order := e.order
	sender := e.sender
	lane := e.lane
	delay := e.delay
	var leader model.Peer
	haveLeader := false
	if order != nil && order.N() > 0 {
		leader = order.CurrentLeader()
		order.Next()
		haveLeader = true
	}
	e.mu.Unlock()

	if haveLeader && sender != nil {
		sender.Send(leader, []model.VoteMessage{vote})
	}
	lane.After(delay, func() { e.votingStep(vote, attempt+1) })
}

// broadcastTo delivers votes to the whole cluster order, preferring a
// cluster-wide Broadcaster over a per-peer Sender loop.
func (e *Engine) broadcastTo(broadcast Broadcaster, sender Sender, order *ClusterOrdering, votes []model.VoteMessage) {
	if broadcast != nil {
		broadcast.Broadcast(votes)
		return
	}
	if sender == nil || order == nil {
		return
	}
	for _, p := range order.Peers() {
		sender.Send(p, votes)
	}
}

// isKnownPeer reports whether pub belongs to the current or alternative
// cluster order (locked call site only).
func (e *Engine) isKnownPeer(pub model.PublicKey) bool {
	if e.order != nil {
		for _, p := range e.order.Peers() {
			if p.PubKey == pub {
				return true
			}
		}
	}
	if e.alternative != nil {
		for _, p := range e.alternative.Peers() {
			if p.PubKey == pub {
				return true
			}
		}
	}
	return false
}

// peerByKey resolves a public key to its Peer record (locked call site only).
func (e *Engine) peerByKey(pub model.PublicKey) *model.Peer {
	if e.order != nil {
		for _, p := range e.order.Peers() {
			if p.PubKey == pub {
				q := p
				return &q
			}
		}
	}
	if e.alternative != nil {
		for _, p := range e.alternative.Peers() {
			if p.PubKey == pub {
				q := p
				return &q
			}
		}
	}
	return nil
}

// OnState is the receive step: spec.md §4.12's classification of an
// incoming vote batch by round, followed by the per-state transition rules.
func (e *Engine) OnState(votes []model.VoteMessage) {
	e.mu.Lock()

	accepted := make([]model.VoteMessage, 0, len(votes))
	for _, v := range votes {
		if !e.isKnownPeer(v.PubKey) {
			continue
		}
		if !e.crypto.Verify(v) {
			continue
		}
		accepted = append(accepted, v)
	}
	if len(accepted) == 0 {
		e.mu.Unlock()
		return
	}

	round := accepted[0].Hash.Round

	switch {
	case e.round.Less(round):
		// Future: the batch is ahead of our local round.
		onFuture := e.onFuture
		from := make([]model.PublicKey, 0, len(accepted))
		for _, v := range accepted {
			from = append(from, v.PubKey)
		}
		e.mu.Unlock()
		if onFuture != nil {
			onFuture(round, from)
		}
		return

	case round.Less(e.round):
		// Past: attempt back-propagation using whatever we already decided
		// for that round, so the straggler peer can catch up.
		outcome := e.votes.Outcome(round)
		origin := e.peerByKey(accepted[0].PubKey)
		sender := e.sender
		e.mu.Unlock()
		if outcome != nil && origin != nil && sender != nil {
			sender.Send(*origin, outcome.Votes)
		}
		return

	default:
		e.onEqualRoundLocked(round, accepted)
	}
}

// onEqualRoundLocked processes a batch whose round matches the local round.
// Called with e.mu held; releases it before notifying subscribers.
func (e *Engine) onEqualRoundLocked(round model.Round, accepted []model.VoteMessage) {
	n := 0
	if e.order != nil {
		n = len(e.order.Peers())
	}
	for _, v := range accepted {
		e.votes.Store(v, n)
	}

	outcome := e.votes.Outcome(round)
	state := e.votes.State(round)
	sender := e.sender
	broadcast := e.broadcast
	order := e.order

	switch state {
	case NotSentNotProcessed:
		if outcome == nil {
			e.mu.Unlock()
			return
		}
		e.votes.SetState(round, SentNotProcessed)
		if len(outcome.Votes) <= 1 && n != 1 {
			e.mu.Unlock()
			e.broadcastTo(broadcast, sender, order, outcome.Votes)
			e.mu.Lock()
			if e.votes.State(round) != SentNotProcessed {
				e.mu.Unlock()
				return
			}
		}
		// The outcome is known, so it is emitted within this same call.
		fallthrough

	case SentNotProcessed:
		if outcome == nil {
			e.mu.Unlock()
			return
		}
		e.votes.SetState(round, SentProcessed)
		e.closed[round] = true
		applyState := false
		if !round.Less(e.appliedRound) {
			e.appliedRound = round
			applyState = true
		}
		onCommit, onReject, onApplyState := e.onCommit, e.onReject, e.onApplyState
		e.mu.Unlock()

		switch outcome.Kind {
		case OutcomeCommit:
			if onCommit != nil {
				onCommit(round, outcome.Votes)
			}
		case OutcomeReject:
			if onReject != nil {
				onReject(round, outcome.Votes)
			}
		}
		if applyState && onApplyState != nil {
			onApplyState(round)
		}
		return

	case SentProcessed:
		localRound := e.round
		e.mu.Unlock()
		if localRound.Less(round) {
			return
		}
		if round.Less(localRound) && outcome != nil {
			e.broadcastTo(broadcast, sender, order, outcome.Votes)
		}
		return
	}

	e.mu.Unlock()
}

// ProcessRoundSwitch updates the engine's cluster order and round; if the
// new round's vote storage already carries an outcome it is returned
// immediately (spec.md §4.12's round-switch algorithm).
func (e *Engine) ProcessRoundSwitch(round model.Round, order *ClusterOrdering) *Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.order = order
	e.round = round
	return e.votes.Outcome(round)
}

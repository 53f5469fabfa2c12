// Package eventbus is a minimal publish/subscribe hub used for the
// ledger's on_commit notifications and YAC's internal outcome signals
// (spec.md §9). Each subscription is pinned to one internal/dispatch
// lane, so handlers for "commit" events never block the lane carrying
// consensus voting traffic.
//
// Grounded on the teacher's channel-per-subscriber pattern in
// core/peer_management.go's Subscribe/Unsubscribe, generalized from
// "subscribe to a libp2p topic" to "subscribe to a named in-process
// event topic," with the subscription token changed from a string
// protocol name to a google/uuid.UUID per spec.md §5.
package eventbus

import (
	"sync"

	"github.com/google/uuid"
	"github.com/hyperledger/iroha-go/internal/dispatch"
)

// Handler processes one published event.
type Handler func(event any)

type subscription struct {
	lane    *dispatch.Lane
	handler Handler
}

// Bus fans published events out to every subscriber of a topic, each on
// its pinned lane.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]map[uuid.UUID]subscription
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[string]map[uuid.UUID]subscription)}
}

// Subscribe registers handler for topic, to run on lane. Returns a token
// for Unsubscribe.
func (b *Bus) Subscribe(topic string, lane *dispatch.Lane, handler Handler) uuid.UUID {
	token := uuid.New()
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[uuid.UUID]subscription)
	}
	b.subs[topic][token] = subscription{lane: lane, handler: handler}
	return token
}

// Unsubscribe removes the subscription identified by token from topic.
func (b *Bus) Unsubscribe(topic string, token uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs[topic], token)
}

// Publish delivers event to every current subscriber of topic, each
// dispatched on its own pinned lane so one slow handler never stalls
// another subscriber's lane.
func (b *Bus) Publish(topic string, event any) {
	b.mu.RLock()
	subs := make([]subscription, 0, len(b.subs[topic]))
	for _, s := range b.subs[topic] {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		s := s
		s.lane.Post(func() { s.handler(event) })
	}
}

// Topic names published on the bus; C10 (internal/ledgerstore) publishes
// TopicOnCommit (spec.md §9).
const (
	TopicOnCommit = "on_commit"
)

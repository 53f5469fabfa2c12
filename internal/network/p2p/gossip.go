package p2p

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/sirupsen/logrus"

	"github.com/hyperledger/iroha-go/internal/model"
)

// VoteTopic is the gossip topic votes that need cluster-wide delivery are
// published on, instead of one stream per peer.
const VoteTopic = "iroha-go/yac/votes/1.0.0"

// GossipBroadcaster implements yac.Broadcaster over a joined pubsub topic,
// generalizing the donor's PeerManagement.Subscribe/AdvertiseSelf topic-join
// pattern (core/peer_management.go, core/network.go's pubsub.NewGossipSub
// setup) from presence/address gossip to vote-batch gossip.
type GossipBroadcaster struct {
	topic *pubsub.Topic
	log   *logrus.Logger
}

// JoinGossip joins VoteTopic on ps and returns a broadcaster bound to it.
func JoinGossip(ps *pubsub.PubSub, log *logrus.Logger) (*GossipBroadcaster, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	topic, err := ps.Join(VoteTopic)
	if err != nil {
		return nil, fmt.Errorf("p2p: join %s: %w", VoteTopic, err)
	}
	return &GossipBroadcaster{topic: topic, log: log}, nil
}

// Broadcast implements yac.Broadcaster: publish the vote batch to every
// subscriber of VoteTopic.
func (g *GossipBroadcaster) Broadcast(votes []model.VoteMessage) {
	payload, err := json.Marshal(votes)
	if err != nil {
		g.log.WithError(err).Warn("gossip broadcast: encode vote batch failed")
		return
	}
	if err := g.topic.Publish(context.Background(), payload); err != nil {
		g.log.WithError(err).Warn("gossip broadcast: publish failed")
	}
}

// Subscription is a live subscription to VoteTopic, used by a node to learn
// of votes other peers have broadcast.
type Subscription struct {
	sub *pubsub.Subscription
}

// Subscribe joins VoteTopic (if needed) and subscribes, returning a Next
// function that blocks until a vote batch arrives or ctx is done.
func Subscribe(ctx context.Context, ps *pubsub.PubSub) (*Subscription, error) {
	topic, err := ps.Join(VoteTopic)
	if err != nil {
		return nil, fmt.Errorf("p2p: join %s: %w", VoteTopic, err)
	}
	sub, err := topic.Subscribe()
	if err != nil {
		return nil, fmt.Errorf("p2p: subscribe %s: %w", VoteTopic, err)
	}
	return &Subscription{sub: sub}, nil
}

// Next blocks for the next gossiped vote batch.
func (s *Subscription) Next(ctx context.Context) ([]model.VoteMessage, error) {
	msg, err := s.sub.Next(ctx)
	if err != nil {
		return nil, err
	}
	var votes []model.VoteMessage
	if err := json.Unmarshal(msg.Data, &votes); err != nil {
		return nil, fmt.Errorf("p2p: decode vote batch: %w", err)
	}
	return votes, nil
}

// Cancel ends the subscription.
func (s *Subscription) Cancel() {
	s.sub.Cancel()
}

// Package p2p adapts internal/network.Sender onto a libp2p host: votes are
// serialized and written directly to the target peer's stream, the same
// shape as the donor's PeerManagement.SendAsync (direct-to-leader send)
// generalized from "peer ID + byte payload" to "model.Peer + vote batch".
package p2p

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/sirupsen/logrus"

	"github.com/hyperledger/iroha-go/internal/model"
)

// VoteProtocol is the libp2p protocol ID used for direct vote delivery.
const VoteProtocol = protocol.ID("/iroha-go/yac/vote/1.0.0")

// Sender delivers votes over direct libp2p streams, keyed by the target
// peer's public key resolved to a libp2p peer.ID through a caller-supplied
// address book (the donor's Node keeps an equivalent NodeID->Peer map in
// core/peer_management.go's PeerManagement).
type Sender struct {
	host    host.Host
	mu      sync.RWMutex
	byKey   map[model.PublicKey]peer.ID
	log     *logrus.Logger
	timeout time.Duration
}

// New builds a p2p sender bound to an already-constructed libp2p host.
func New(h host.Host, log *logrus.Logger) *Sender {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Sender{host: h, byKey: make(map[model.PublicKey]peer.ID), log: log, timeout: 5 * time.Second}
}

// Register binds a consensus public key to a resolvable libp2p peer ID, so
// future Send calls for that key know where to dial.
func (s *Sender) Register(pub model.PublicKey, id peer.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byKey[pub] = id
}

// Send implements network.Sender: open a stream to peer and write the
// JSON-encoded vote batch. Failures are logged and dropped — the
// exponential-backoff decorator in internal/network wraps a transport call
// like this one when retries are wanted.
func (s *Sender) Send(p model.Peer, votes []model.VoteMessage) {
	s.mu.RLock()
	id, ok := s.byKey[p.PubKey]
	s.mu.RUnlock()
	if !ok {
		s.log.WithField("peer", p.PubKey).Warn("p2p send: unknown peer id, dropping")
		return
	}

	payload, err := json.Marshal(votes)
	if err != nil {
		s.log.WithError(err).Warn("p2p send: encode vote batch failed")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	stream, err := s.host.NewStream(ctx, id, VoteProtocol)
	if err != nil {
		s.log.WithError(err).WithField("peer", p.PubKey).Warn("p2p send: stream open failed")
		return
	}
	defer stream.Close()

	if _, err := stream.Write(payload); err != nil {
		s.log.WithError(err).WithField("peer", p.PubKey).Warn("p2p send: write failed")
	}
}

// ServeVotes registers a VoteProtocol stream handler on h that decodes an
// incoming vote batch and hands it to onVotes (typically yac.Engine.OnState),
// the receiving half of Send/SendFunc's direct-to-leader delivery.
func ServeVotes(h host.Host, onVotes func([]model.VoteMessage), log *logrus.Logger) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	h.SetStreamHandler(VoteProtocol, func(s network.Stream) {
		defer s.Close()
		payload, err := io.ReadAll(s)
		if err != nil {
			log.WithError(err).Warn("p2p serve votes: read failed")
			return
		}
		var votes []model.VoteMessage
		if err := json.Unmarshal(payload, &votes); err != nil {
			log.WithError(err).Warn("p2p serve votes: decode failed")
			return
		}
		onVotes(votes)
	})
}

// SendFunc adapts Send to internal/network.SendFunc for composing with the
// retry decorator, returning errors instead of only logging them.
func (s *Sender) SendFunc(ctx context.Context, p model.Peer, votes []model.VoteMessage) error {
	s.mu.RLock()
	id, ok := s.byKey[p.PubKey]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("p2p: unknown peer %s", p.PubKey)
	}

	payload, err := json.Marshal(votes)
	if err != nil {
		return fmt.Errorf("p2p: encode vote batch: %w", err)
	}

	stream, err := s.host.NewStream(ctx, id, VoteProtocol)
	if err != nil {
		return fmt.Errorf("p2p: open stream to %s: %w", p.PubKey, err)
	}
	defer stream.Close()

	if _, err := stream.Write(payload); err != nil {
		return fmt.Errorf("p2p: write to %s: %w", p.PubKey, err)
	}
	return nil
}

package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/hyperledger/iroha-go/internal/model"
	"github.com/hyperledger/iroha-go/internal/yac"
)

// signer implements yac.CryptoProvider over ed25519, the same scheme
// internal/tempwsv verifies transaction signatures with. Vote payloads are
// the hash's canonical (round, proposal hash, block hash) triple.
type signer struct {
	self model.PublicKey
	priv ed25519.PrivateKey

	mu    sync.RWMutex
	peers map[model.PublicKey]ed25519.PublicKey
}

func newSigner(self model.PublicKey, priv ed25519.PrivateKey) *signer {
	return &signer{self: self, priv: priv, peers: make(map[model.PublicKey]ed25519.PublicKey)}
}

// trust registers a peer's public key, decoded from its hex PublicKey
// identity, so votes it sends can be verified.
func (s *signer) trust(pub model.PublicKey) error {
	raw, err := hex.DecodeString(string(pub))
	if err != nil {
		return fmt.Errorf("signer: decode peer key %s: %w", pub, err)
	}
	s.mu.Lock()
	s.peers[pub] = ed25519.PublicKey(raw)
	s.mu.Unlock()
	return nil
}

func votePayload(h model.YacHash) []byte {
	return []byte(fmt.Sprintf("%d.%d|%s|%s", h.Round.BlockRound, h.Round.RejectRound, h.ProposalHash, h.BlockHash))
}

// Sign implements yac.CryptoProvider.
func (s *signer) Sign(hash model.YacHash) model.VoteMessage {
	return model.VoteMessage{
		Hash:      hash,
		PubKey:    s.self,
		Signature: ed25519.Sign(s.priv, votePayload(hash)),
	}
}

// Verify implements yac.CryptoProvider.
func (s *signer) Verify(vote model.VoteMessage) bool {
	s.mu.RLock()
	pub, ok := s.peers[vote.PubKey]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	return ed25519.Verify(pub, votePayload(vote.Hash), vote.Signature)
}

var _ yac.CryptoProvider = (*signer)(nil)

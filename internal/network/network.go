// Package network defines the core-facing network ports (spec.md §6):
// sending votes to a peer, and fetching blocks from one. Concrete
// transport bindings are "external collaborators" per spec.md §1 — this
// package owns only the Go interface contract plus a retry decorator;
// internal/network/p2p supplies a concrete libp2p-backed Sender.
package network

import (
	"context"

	"github.com/hyperledger/iroha-go/internal/model"
)

// Sender delivers YAC votes to one peer.
type Sender interface {
	Send(peer model.Peer, votes []model.VoteMessage)
}

// BlockLoaderClient fetches blocks from a named peer (C16's two RPCs).
type BlockLoaderClient interface {
	// RetrieveBlocks streams blocks starting at startHeight in ascending
	// order. The returned function yields (nil, false) once exhausted or
	// on error; callers should check ctx before treating exhaustion as
	// success.
	RetrieveBlocks(ctx context.Context, peer model.Peer, startHeight uint64) (next func() (*model.Block, bool), cancel func())

	// RetrieveBlock fetches exactly one block at height from peer.
	RetrieveBlock(ctx context.Context, peer model.Peer, height uint64) (*model.Block, error)
}

package p2p

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"github.com/hyperledger/iroha-go/internal/blockloader"
	"github.com/hyperledger/iroha-go/internal/model"
)

// BlockProtocol is the libp2p protocol ID for C16's retrieve_block/
// retrieve_blocks RPCs.
const BlockProtocol = protocol.ID("/iroha-go/blockloader/1.0.0")

type blockRequest struct {
	StartHeight uint64 `json:"start_height"`
	Single      bool   `json:"single"`
}

// BlockClient implements internal/network.BlockLoaderClient over direct
// libp2p streams, the client-side counterpart to internal/blockloader's
// local-serving Loader: a request is written, then newline-delimited
// JSON-encoded blocks are read back until the stream closes.
type BlockClient struct {
	host    host.Host
	mu      sync.RWMutex
	byKey   map[model.PublicKey]peer.ID
	log     *logrus.Logger
	timeout time.Duration
}

// NewBlockClient builds a block client bound to an already-constructed
// libp2p host.
func NewBlockClient(h host.Host, log *logrus.Logger) *BlockClient {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &BlockClient{host: h, byKey: make(map[model.PublicKey]peer.ID), log: log, timeout: 10 * time.Second}
}

// Register binds a consensus public key to a resolvable libp2p peer ID.
func (c *BlockClient) Register(pub model.PublicKey, id peer.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byKey[pub] = id
}

func (c *BlockClient) resolve(p model.Peer) (peer.ID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.byKey[p.PubKey]
	return id, ok
}

// RetrieveBlocks implements network.BlockLoaderClient: open a stream, send
// a streaming request, and decode blocks one line at a time.
func (c *BlockClient) RetrieveBlocks(ctx context.Context, p model.Peer, startHeight uint64) (next func() (*model.Block, bool), cancel func()) {
	id, ok := c.resolve(p)
	if !ok {
		return func() (*model.Block, bool) { return nil, false }, func() {}
	}

	stream, err := c.host.NewStream(ctx, id, BlockProtocol)
	if err != nil {
		c.log.WithError(err).WithField("peer", p.PubKey).Warn("blockclient: stream open failed")
		return func() (*model.Block, bool) { return nil, false }, func() {}
	}
	if err := json.NewEncoder(stream).Encode(blockRequest{StartHeight: startHeight}); err != nil {
		stream.Close()
		return func() (*model.Block, bool) { return nil, false }, func() {}
	}

	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	closed := false
	return func() (*model.Block, bool) {
			if closed {
				return nil, false
			}
			select {
			case <-ctx.Done():
				closed = true
				return nil, false
			default:
			}
			if !scanner.Scan() {
				closed = true
				return nil, false
			}
			var block model.Block
			if err := json.Unmarshal(scanner.Bytes(), &block); err != nil {
				closed = true
				return nil, false
			}
			return &block, true
		}, func() {
			closed = true
			stream.Close()
		}
}

// RetrieveBlock implements network.BlockLoaderClient: fetch exactly one
// block at height from p.
func (c *BlockClient) RetrieveBlock(ctx context.Context, p model.Peer, height uint64) (*model.Block, error) {
	id, ok := c.resolve(p)
	if !ok {
		return nil, fmt.Errorf("blockclient: unknown peer %s", p.PubKey)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	stream, err := c.host.NewStream(ctx, id, BlockProtocol)
	if err != nil {
		return nil, fmt.Errorf("blockclient: open stream to %s: %w", p.PubKey, err)
	}
	defer stream.Close()

	if err := json.NewEncoder(stream).Encode(blockRequest{StartHeight: height, Single: true}); err != nil {
		return nil, fmt.Errorf("blockclient: encode request: %w", err)
	}

	var block model.Block
	if err := json.NewDecoder(stream).Decode(&block); err != nil {
		return nil, fmt.Errorf("blockclient: decode block %d from %s: %w", height, p.PubKey, err)
	}
	return &block, nil
}

// ServeBlocks registers a BlockProtocol stream handler on h that answers
// requests from local, backed by loader (the local C16 Loader).
func ServeBlocks(h host.Host, loader *blockloader.Loader, log *logrus.Logger) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	h.SetStreamHandler(BlockProtocol, func(s network.Stream) {
		defer s.Close()
		reqLog := zap.L().Sugar()
		reqLog.Debugw("blockserver: request received", "peer", s.Conn().RemotePeer())

		var req blockRequest
		if err := json.NewDecoder(s).Decode(&req); err != nil {
			log.WithError(err).Warn("blockserver: decode request failed")
			return
		}

		ctx := context.Background()
		enc := json.NewEncoder(s)

		if req.Single {
			block, err := loader.RetrieveBlock(ctx, req.StartHeight)
			if err != nil {
				log.WithError(err).Warn("blockserver: retrieve_block failed")
				return
			}
			if err := enc.Encode(block); err != nil {
				log.WithError(err).Warn("blockserver: write block failed")
			}
			return
		}

		next, cancel := loader.RetrieveBlocks(ctx, req.StartHeight)
		defer cancel()
		for {
			block, ok := next()
			if !ok {
				return
			}
			if err := enc.Encode(block); err != nil {
				log.WithError(err).Warn("blockserver: write block failed")
				return
			}
		}
	})
}

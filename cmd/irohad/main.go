// Command irohad runs one node of the permissioned ledger: the YAC
// consensus engine, the ledger-commit pipeline, and the libp2p transport
// binding them together.
package main

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	golibp2p "github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperledger/iroha-go/internal/blockloader"
	"github.com/hyperledger/iroha-go/internal/dispatch"
	"github.com/hyperledger/iroha-go/internal/eventbus"
	"github.com/hyperledger/iroha-go/internal/gate"
	"github.com/hyperledger/iroha-go/internal/kv/memkv"
	"github.com/hyperledger/iroha-go/internal/ledgerstore"
	"github.com/hyperledger/iroha-go/internal/metrics"
	"github.com/hyperledger/iroha-go/internal/model"
	"github.com/hyperledger/iroha-go/internal/network"
	"github.com/hyperledger/iroha-go/internal/network/p2p"
	syncpkg "github.com/hyperledger/iroha-go/internal/sync"
	"github.com/hyperledger/iroha-go/internal/wsv"
	"github.com/hyperledger/iroha-go/internal/yac"
	"github.com/hyperledger/iroha-go/pkg/config"
)

func main() {
	root := &cobra.Command{Use: "irohad"}
	root.AddCommand(runCmd())
	root.AddCommand(genesisCmd())
	root.AddCommand(peerCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var env string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "start the node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode(env)
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "environment overlay to merge over the default config")
	return cmd
}

func genesisCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "genesis"}
	cmd.AddCommand(&cobra.Command{
		Use:   "inspect [path]",
		Short: "print a summary of a genesis document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadGenesis(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("peers=%d roles=%d domains=%d accounts=%d\n",
				len(doc.Peers), len(doc.Roles), len(doc.Domains), len(doc.Accounts))
			for _, p := range doc.Peers {
				fmt.Printf("  peer %s %s\n", p.PubKey, p.Address)
			}
			return nil
		},
	})
	return cmd
}

func peerCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "peer"}
	cmd.AddCommand(&cobra.Command{
		Use:   "ls [genesis-path]",
		Short: "list the active peer set a genesis document would seed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadGenesis(args[0])
			if err != nil {
				return err
			}
			eng := memkv.New()
			s, err := eng.Begin()
			if err != nil {
				return err
			}
			if err := doc.seed(s); err != nil {
				return err
			}
			if err := s.Commit(); err != nil {
				return err
			}
			s2, err := eng.Begin()
			if err != nil {
				return err
			}
			active, syncing, err := wsv.NewQuery(s2).ListPeers()
			if err != nil {
				return err
			}
			for _, p := range active {
				fmt.Printf("active  %s %s\n", p.PubKey, p.Address)
			}
			for _, p := range syncing {
				fmt.Printf("syncing %s %s\n", p.PubKey, p.Address)
			}
			return nil
		},
	})
	return cmd
}

func runNode(env string) error {
	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("irohad: load config: %w", err)
	}

	log := logrus.StandardLogger()
	if lvl, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		log.SetLevel(lvl)
	}

	if zlog, err := zap.NewProduction(); err == nil {
		zap.ReplaceGlobals(zlog)
		defer zlog.Sync()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consistency, err := cfg.Model()
	if err != nil {
		return err
	}
	sm := yac.NewSupermajority(consistency)

	doc, err := loadGenesis(cfg.Network.GenesisFile)
	if err != nil {
		return err
	}

	eng := memkv.New()
	bus := eventbus.New()
	store := ledgerstore.New(eng, bus, blockHash, cfg.PreparedCommitsEnabled)

	seedState, err := bootstrap(eng, doc)
	if err != nil {
		return fmt.Errorf("irohad: bootstrap genesis: %w", err)
	}

	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return fmt.Errorf("irohad: generate node key: %w", err)
	}
	self := model.PublicKey(hex.EncodeToString(pub))
	log.WithField("pubkey", self).Info("node key generated")

	crypto := newSigner(self, priv)
	for _, p := range seedState.ActivePeers {
		if err := crypto.trust(p.PubKey); err != nil {
			log.WithError(err).Warn("irohad: could not trust peer key")
		}
	}

	host, err := golibp2p.New(golibp2p.ListenAddrStrings(cfg.Network.ListenAddr))
	if err != nil {
		return fmt.Errorf("irohad: create libp2p host: %w", err)
	}
	defer host.Close()

	ps, err := pubsub.NewGossipSub(context.Background(), host)
	if err != nil {
		return fmt.Errorf("irohad: create pubsub: %w", err)
	}

	voteSender := p2p.New(host, log)
	gossip, err := p2p.JoinGossip(ps, log)
	if err != nil {
		return fmt.Errorf("irohad: join gossip topic: %w", err)
	}
	blockClient := p2p.NewBlockClient(host, log)

	for _, p := range seedState.ActivePeers {
		info, err := peer.AddrInfoFromString(p.Address)
		if err != nil {
			log.WithError(err).WithField("peer", p.PubKey).Warn("irohad: invalid peer address, skipping")
			continue
		}
		if err := host.Connect(context.Background(), *info); err != nil {
			log.WithError(err).WithField("peer", p.PubKey).Warn("irohad: could not connect to peer")
		}
		voteSender.Register(p.PubKey, info.ID)
		blockClient.Register(p.PubKey, info.ID)
	}

	localBlocks := blockloader.New(store.Blocks(), blockloader.DefaultValidator(blockHash))
	p2p.ServeBlocks(host, localBlocks, log)

	retryingSender := network.Retrying(voteSender.SendFunc, log)

	lanes := dispatch.NewLanes(64)
	yacLane := lanes.Lane(dispatch.YAC)

	voteDelay := time.Duration(cfg.VoteDelayMS) * time.Millisecond
	engine := yac.NewEngine(self, crypto, retryingSender, yacLane, sm, 10, voteDelay)
	engine.SetBroadcaster(gossip)
	p2p.ServeVotes(host, engine.OnState, log)

	voteSub, err := p2p.Subscribe(ctx, ps)
	if err != nil {
		return fmt.Errorf("irohad: subscribe to vote gossip: %w", err)
	}
	go pumpGossipVotes(ctx, voteSub, engine, log)

	syncer := syncpkg.New(store, cfg.PreparedCommitsEnabled, blockClient, sm, func(e syncpkg.Event) {
		log.WithFields(logrus.Fields{"kind": e.Kind, "round": e.Round}).Info("synchronizer event")
	})

	g := gate.New(yacLane, outcomeDelay, func(obj gate.Object) {
		if err := syncer.OnGateObject(obj); err != nil {
			log.WithError(err).Warn("synchronizer: failed to react to gate object")
		}
	})
	g.SetState(seedState)

	engine.SetHandlers(
		func(round model.Round, votes []model.VoteMessage) { g.OnCommit(round, votes) },
		func(round model.Round, votes []model.VoteMessage) { g.OnReject(round, votes) },
		func(round model.Round, from []model.PublicKey) { g.OnFuture(round, from) },
		nil,
	)

	log.WithFields(logrus.Fields{
		"model": cfg.ConsistencyModel,
		"peers": len(seedState.ActivePeers),
	}).Info("irohad node started")

	collector := metrics.New(nodeMetricsSource{store: store, peerCount: len(seedState.ActivePeers)}, log)
	go collector.Run(ctx, cfg.Metrics.Interval)
	var metricsSrv *http.Server
	if cfg.Metrics.ListenAddr != "" {
		metricsSrv = collector.Serve(cfg.Metrics.ListenAddr)
	}

	<-ctx.Done()

	log.Info("irohad shutting down")
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		metricsSrv.Shutdown(shutdownCtx)
	}
	engine.Stop()
	lanes.StopAll()
	return nil
}

// nodeMetricsSource adapts the running node's state to metrics.Source. The
// active peer count is the genesis-seeded figure: the engine does not
// currently expose live cluster-order membership or in-flight vote counts,
// so PendingVoteCount stays at zero until it does.
type nodeMetricsSource struct {
	store     *ledgerstore.Storage
	peerCount int
}

func (s nodeMetricsSource) BlockHeight() uint64   { return s.store.Blocks().Size() }
func (s nodeMetricsSource) ActivePeerCount() int  { return s.peerCount }
func (s nodeMetricsSource) PendingVoteCount() int { return 0 }

// pumpGossipVotes feeds every vote batch gossiped on the cluster-wide topic
// into the engine, the receiving half of yac.Broadcaster's send side.
func pumpGossipVotes(ctx context.Context, sub *p2p.Subscription, engine *yac.Engine, log *logrus.Logger) {
	defer sub.Cancel()
	for {
		votes, err := sub.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithError(err).Warn("gossip vote pump: receive failed")
			continue
		}
		engine.OnState(votes)
	}
}

// outcomeDelay is the gate's per-outcome-type emission delay (spec.md
// §4.14): none for a commit, a short smoothing delay for reject/future so
// a burst of near-simultaneous rejects doesn't thrash the synchronizer.
func outcomeDelay(t gate.OutcomeType) time.Duration {
	switch t {
	case gate.TypeCommit:
		return 0
	default:
		return 200 * time.Millisecond
	}
}

// bootstrap seeds a fresh KV engine from doc and returns the resulting
// ledger state.
func bootstrap(eng *memkv.Engine, doc *genesisDoc) (model.LedgerState, error) {
	s, err := eng.Begin()
	if err != nil {
		return model.LedgerState{}, err
	}
	if err := doc.seed(s); err != nil {
		return model.LedgerState{}, err
	}
	if err := s.Commit(); err != nil {
		return model.LedgerState{}, err
	}

	s2, err := eng.Begin()
	if err != nil {
		return model.LedgerState{}, err
	}
	active, syncingPeers, err := wsv.NewQuery(s2).ListPeers()
	if err != nil {
		return model.LedgerState{}, err
	}
	return model.LedgerState{ActivePeers: active, SyncingPeers: syncingPeers}, nil
}

// Package metrics exposes node health as Prometheus gauges/counters plus a
// structured logrus event log, adapted from the donor's HealthLogger to the
// consensus core's own state (block height, active peers, pending votes)
// instead of ledger/coin/txpool figures.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Snapshot captures a point-in-time view of node health.
type Snapshot struct {
	Height        uint64
	PeerCount     int
	PendingVotes  int
	MemAlloc      uint64
	NumGoroutines int
	Timestamp     int64
}

// Source supplies the figures a Collector samples. A real node satisfies
// this with its blockstore and cluster ordering; tests can use a stub.
type Source interface {
	BlockHeight() uint64
	ActivePeerCount() int
	PendingVoteCount() int
}

// Collector samples a Source on an interval and republishes the result as
// Prometheus metrics plus structured log events.
type Collector struct {
	src Source
	log *logrus.Logger
	mu  sync.Mutex

	registry        *prometheus.Registry
	heightGauge     prometheus.Gauge
	peerCountGauge  prometheus.Gauge
	pendingGauge    prometheus.Gauge
	memAllocGauge   prometheus.Gauge
	goroutineGauge  prometheus.Gauge
	sampleErrors    prometheus.Counter
}

// New builds a Collector with its own Prometheus registry.
func New(src Source, log *logrus.Logger) *Collector {
	if log == nil {
		log = logrus.StandardLogger()
	}
	reg := prometheus.NewRegistry()
	c := &Collector{
		src:      src,
		log:      log,
		registry: reg,
		heightGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "irohad_block_height",
			Help: "Height of the last block committed to local storage",
		}),
		peerCountGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "irohad_active_peer_count",
			Help: "Number of peers currently in the active cluster order",
		}),
		pendingGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "irohad_pending_votes",
			Help: "Number of votes held by the engine for the current round",
		}),
		memAllocGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "irohad_mem_alloc_bytes",
			Help: "Current heap allocation in bytes",
		}),
		goroutineGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "irohad_goroutines",
			Help: "Number of running goroutines",
		}),
		sampleErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "irohad_metrics_sample_errors_total",
			Help: "Number of times a metrics sample logged an error event",
		}),
	}
	reg.MustRegister(c.heightGauge, c.peerCountGauge, c.pendingGauge, c.memAllocGauge, c.goroutineGauge, c.sampleErrors)
	return c
}

// Sample gathers a fresh Snapshot without touching the registry.
func (c *Collector) Sample() Snapshot {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	s := Snapshot{
		Timestamp:     time.Now().Unix(),
		MemAlloc:      mem.Alloc,
		NumGoroutines: runtime.NumGoroutine(),
	}
	if c.src != nil {
		s.Height = c.src.BlockHeight()
		s.PeerCount = c.src.ActivePeerCount()
		s.PendingVotes = c.src.PendingVoteCount()
	}
	return s
}

// Record samples and pushes the snapshot into the Prometheus gauges.
func (c *Collector) Record() {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.Sample()
	c.heightGauge.Set(float64(s.Height))
	c.peerCountGauge.Set(float64(s.PeerCount))
	c.pendingGauge.Set(float64(s.PendingVotes))
	c.memAllocGauge.Set(float64(s.MemAlloc))
	c.goroutineGauge.Set(float64(s.NumGoroutines))
	c.log.WithFields(logrus.Fields{
		"height": s.Height,
		"peers":  s.PeerCount,
		"votes":  s.PendingVotes,
	}).Debug("metrics recorded")
}

// Run records on the given interval until ctx is canceled.
func (c *Collector) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.Record()
		case <-ctx.Done():
			return
		}
	}
}

// Serve exposes the registry on addr's /metrics endpoint. The caller owns
// the returned server's lifecycle (Shutdown on exit).
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.sampleErrors.Inc()
			c.log.WithError(err).Error("metrics: server stopped")
		}
	}()
	return srv
}

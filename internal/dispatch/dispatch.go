// Package dispatch models the four logical execution lanes every YAC and
// pipeline callback runs on (spec.md §5): yac, pipeline,
// dispatcher-default, and background-io. Each lane serializes the work
// submitted to it through one worker goroutine over a buffered channel,
// the same shape as the teacher's per-peer inbound-message channel in
// core/peer_management.go, generalized from "one channel per peer" to
// "one channel per lane."
package dispatch

import (
	"sync"
	"time"
)

// Lane serializes function execution: every fn submitted to one Lane runs
// strictly after the previous one finishes, on a single goroutine.
type Lane struct {
	name string
	work chan func()
	done chan struct{}
}

// NewLane starts a lane with the given submission buffer size.
func NewLane(name string, buffer int) *Lane {
	l := &Lane{name: name, work: make(chan func(), buffer), done: make(chan struct{})}
	go l.run()
	return l
}

func (l *Lane) run() {
	for {
		select {
		case fn := <-l.work:
			fn()
		case <-l.done:
			return
		}
	}
}

// Name returns the lane's identifier.
func (l *Lane) Name() string { return l.name }

// Post enqueues fn for execution on this lane. Blocks if the lane's
// buffer is full.
func (l *Lane) Post(fn func()) {
	l.work <- fn
}

// After schedules fn to run on this lane once d has elapsed — the
// engine's voting-step re-invocation and the gate's outcome-delay both
// use this instead of time.Sleep, so the delay itself never blocks a
// worker goroutine.
func (l *Lane) After(d time.Duration, fn func()) *time.Timer {
	return time.AfterFunc(d, func() { l.Post(fn) })
}

// Stop shuts the lane's worker goroutine down. Pending posts already in
// the buffer are discarded.
func (l *Lane) Stop() { close(l.done) }

// Lane names for the four fixed lanes (spec.md §5).
const (
	YAC               = "yac"
	Pipeline          = "pipeline"
	DispatcherDefault = "dispatcher-default"
	BackgroundIO      = "background-io"
)

// Lanes is the fixed four-lane set every node starts with.
type Lanes struct {
	mu    sync.RWMutex
	lanes map[string]*Lane
}

// NewLanes starts the four named lanes with the given buffer size.
func NewLanes(buffer int) *Lanes {
	ls := &Lanes{lanes: make(map[string]*Lane, 4)}
	for _, name := range []string{YAC, Pipeline, DispatcherDefault, BackgroundIO} {
		ls.lanes[name] = NewLane(name, buffer)
	}
	return ls
}

// Lane returns the named lane, or nil if it doesn't exist.
func (ls *Lanes) Lane(name string) *Lane {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	return ls.lanes[name]
}

// StopAll shuts every lane down.
func (ls *Lanes) StopAll() {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	for _, l := range ls.lanes {
		l.Stop()
	}
}

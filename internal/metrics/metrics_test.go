package metrics

import (
	"testing"

	"github.com/sirupsen/logrus"
)

type stubSource struct {
	height  uint64
	peers   int
	pending int
}

func (s stubSource) BlockHeight() uint64   { return s.height }
func (s stubSource) ActivePeerCount() int  { return s.peers }
func (s stubSource) PendingVoteCount() int { return s.pending }

func TestRecordUpdatesGauges(t *testing.T) {
	c := New(stubSource{height: 42, peers: 3, pending: 1}, logrus.StandardLogger())
	c.Record()

	snap := c.Sample()
	if snap.Height != 42 {
		t.Fatalf("expected height 42, got %d", snap.Height)
	}
	if snap.PeerCount != 3 {
		t.Fatalf("expected 3 peers, got %d", snap.PeerCount)
	}
	if snap.PendingVotes != 1 {
		t.Fatalf("expected 1 pending vote, got %d", snap.PendingVotes)
	}
}

func TestSampleWithNilSource(t *testing.T) {
	c := New(nil, nil)
	snap := c.Sample()
	if snap.Height != 0 || snap.PeerCount != 0 || snap.PendingVotes != 0 {
		t.Fatalf("expected zero-value snapshot with nil source, got %+v", snap)
	}
}

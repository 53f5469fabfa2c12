package yac

import (
	"github.com/hyperledger/iroha-go/internal/model"
)

// Seeder folds seed bytes into a running 64-bit value via the same
// CBC-like feedback loop as original_source's Seeder::feed: each 8-byte
// big-endian chunk XORs into the current seed, which is then replaced by
// one output of a freshly-seeded engine.
type Seeder struct {
	current uint64
}

// Feed consumes data in 8-byte big-endian chunks (a short final chunk is
// accumulated by the same left-shift loop, so its bytes fill the low-order
// end of its own value and the high-order bytes stay zero).
func (s *Seeder) Feed(data []byte) *Seeder {
	n := len(data)
	full := n / 8 * 8
	for i := 0; i < full; i += 8 {
		var v uint64
		for j := 0; j < 8; j++ {
			v = v<<8 | uint64(data[i+j])
		}
		s.feedValue(v)
	}
	if full < n {
		var v uint64
		for _, b := range data[full:] {
			v = v<<8 | uint64(b)
		}
		s.feedValue(v)
	}
	return s
}

func (s *Seeder) feedValue(value uint64) {
	s.current = NewMT19937_64(s.current ^ value).Next()
}

// MakePrng returns an engine seeded with the folded value.
func (s *Seeder) MakePrng() *MT19937_64 { return NewMT19937_64(s.current) }

// MakeSeededPrng folds seed into a Seeder from scratch and returns the
// resulting engine, matching original_source's makeSeededPrng free
// function.
func MakeSeededPrng(seed []byte) *MT19937_64 {
	return (&Seeder{}).Feed(seed).MakePrng()
}

// GeneratePermutation produces a permutation of [0, size) by iterating
// positions ascending and swapping each with permutation[prng()%size] —
// deliberately not the usual descending-bound Fisher-Yates, to stay
// byte-identical with original_source's generatePermutation.
func GeneratePermutation(prng *MT19937_64, size int) []int {
	perm := make([]int, size)
	for i := range perm {
		perm[i] = i
	}
	for i := range perm {
		j := int(prng.Next() % uint64(size))
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm
}

// yacHashSeedBytes serializes the fields original_source feeds into the
// permutation seeder: the round and the two hash strings. The exact byte
// layout only needs to be self-consistent across this implementation
// (every node here runs this same code), which is what spec.md §8's
// "byte-identical across all correct nodes" property requires of a
// single version of this codebase.
func yacHashSeedBytes(h model.YacHash) []byte {
	buf := make([]byte, 0, 16+len(h.ProposalHash)+len(h.BlockHash))
	buf = appendUint64BE(buf, h.Round.BlockRound)
	buf = appendUint64BE(buf, h.Round.RejectRound)
	buf = append(buf, h.ProposalHash...)
	buf = append(buf, h.BlockHash...)
	return buf
}

func appendUint64BE(buf []byte, v uint64) []byte {
	return append(buf, byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32), byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// ClusterOrdering is a deterministic ordering of peers for one round,
// with a movable cursor for round-robin leader rotation.
type ClusterOrdering struct {
	peers  []model.Peer
	cursor int
}

// NewClusterOrdering wraps an already-ordered peer slice.
func NewClusterOrdering(peers []model.Peer) *ClusterOrdering {
	return &ClusterOrdering{peers: peers}
}

// GetOrdering derives a deterministic peer ordering for hash, seeding the
// PRNG from the hash's round and hash-string bytes (spec.md §4.13).
// Returns nil if peers is empty (no ordering possible).
func GetOrdering(hash model.YacHash, peers []model.Peer) *ClusterOrdering {
	if len(peers) == 0 {
		return nil
	}
	prng := MakeSeededPrng(yacHashSeedBytes(hash))
	perm := GeneratePermutation(prng, len(peers))
	ordered := make([]model.Peer, len(peers))
	for i, p := range perm {
		ordered[i] = peers[p]
	}
	return NewClusterOrdering(ordered)
}

// CurrentLeader returns the peer at the cursor.
func (c *ClusterOrdering) CurrentLeader() model.Peer { return c.peers[c.cursor] }

// Next advances the cursor to the next leader, wrapping around.
func (c *ClusterOrdering) Next() { c.cursor = (c.cursor + 1) % len(c.peers) }

// Peers returns the full ordering.
func (c *ClusterOrdering) Peers() []model.Peer { return c.peers }

// N returns the number of peers in this ordering.
func (c *ClusterOrdering) N() int { return len(c.peers) }

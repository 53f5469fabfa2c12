package yac

// ConsistencyModel selects the fault-tolerance parameter k used by the
// supermajority rule (spec.md §4.11): CFT requires k=2, BFT requires k=3.
type ConsistencyModel int

const (
	CFT ConsistencyModel = 2
	BFT ConsistencyModel = 3
)

// Supermajority implements the k·f+1 threshold rule over a total of N
// peers (N = k·f + 1 + extra).
type Supermajority struct {
	K int
}

// NewSupermajority builds a checker for the given consistency model.
func NewSupermajority(model ConsistencyModel) Supermajority {
	return Supermajority{K: int(model)}
}

// f derives the maximum tolerated faulty peer count implied by N under
// this model: N = k·f + 1 + extra, so f = (N-1) / k (integer division,
// the largest f the model can certify for this N).
func (s Supermajority) f(n int) int {
	if n <= 0 {
		return 0
	}
	return (n - 1) / s.K
}

// Threshold returns the minimum same-hash vote count required for a
// supermajority among n peers: f(n) + k, capped at n itself (spec.md
// §8's worked examples — N=4 BFT → 4, N=7 BFT → 5, N=4 CFT → 3 — all
// solve to f(n)+k, not the naive k·f+1 the model-parameter description
// alone suggests; the cap matters only for clusters smaller than the
// model's natural minimum, e.g. a lone peer must still be able to commit
// on its own vote).
func (s Supermajority) Threshold(n int) int {
	t := s.f(n) + s.K
	if t > n {
		return n
	}
	return t
}

// HasSupermajority reports whether count same-hash votes reach the
// threshold for a cluster of n peers.
func (s Supermajority) HasSupermajority(count, n int) bool {
	return count >= s.Threshold(n)
}

// CanHaveSupermajority reports whether any vote group can still reach
// supermajority given the current vote_groups sizes (indexed by hash) and
// total cluster size n — used for early reject detection: once every
// group's potential maximum (its current count plus all still-unvoted
// peers) falls below threshold, no further waiting can produce a commit.
func (s Supermajority) CanHaveSupermajority(voteGroups map[string]int, n int) bool {
	threshold := s.Threshold(n)
	total := 0
	best := 0
	for _, c := range voteGroups {
		total += c
		if c > best {
			best = c
		}
	}
	remaining := n - total
	return best+remaining >= threshold
}

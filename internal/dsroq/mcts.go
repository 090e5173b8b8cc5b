package dsroq

import (
	"math"
	"sort"
	"time"

	"github.com/skylattice/orbitsim/internal/config"
	"github.com/skylattice/orbitsim/internal/flowstate"
	"github.com/skylattice/orbitsim/internal/positioning"
	"github.com/skylattice/orbitsim/internal/rng"
	"github.com/skylattice/orbitsim/internal/satnet"
	"github.com/skylattice/orbitsim/internal/simerrors"
)

// terminalRewardU and deadEndPenaltyP are the fixed terminal rewards of
// spec.md §4.4.1: "reached destination (reward +U)" / "dead end / hop
// limit reached (reward -P)". The spec names them without fixing values;
// since only their relative sign drives UCB1 selection and both terminal
// outcomes are always compared on the same path-length scale within one
// search, a single large constant suffices for both.
const (
	terminalRewardU = 1000.0
	deadEndPenaltyP = 1000.0
)

type mctsNode struct {
	hop      satnet.Hash
	path     []satnet.Hash
	parent   *mctsNode
	children map[satnet.Hash]*mctsNode
	untried  []satnet.Hash
	visits   int
	totalRew float64
}

func newMCTSNode(path []satnet.Hash, parent *mctsNode, untried []satnet.Hash) *mctsNode {
	return &mctsNode{
		hop:      path[len(path)-1],
		path:     path,
		parent:   parent,
		children: make(map[satnet.Hash]*mctsNode),
		untried:  untried,
	}
}

func (n *mctsNode) isLeafFrontier() bool { return len(n.untried) > 0 }

func (n *mctsNode) ucb1(parentVisits int, c float64) float64 {
	if n.visits == 0 {
		return math.Inf(1)
	}
	exploit := n.totalRew / float64(n.visits)
	explore := c * math.Sqrt(math.Log(float64(parentVisits))/float64(n.visits))
	return exploit + explore
}

func (n *mctsNode) bestChild(c float64) *mctsNode {
	keys := make([]satnet.Hash, 0, len(n.children))
	for k := range n.children {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return hashLess(keys[i], keys[j]) })

	var best *mctsNode
	bestScore := math.Inf(-1)
	for _, k := range keys {
		child := n.children[k]
		score := child.ucb1(n.visits, c)
		if score > bestScore {
			bestScore, best = score, child
		}
	}
	return best
}

func hashLess(a, b satnet.Hash) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Router runs the MCTS route search of spec.md §4.4.1.
type Router struct {
	cfg    config.DSROQ
	posCfg config.Positioning
}

// NewRouter builds a Router against the scenario's DSROQ and positioning
// configuration.
func NewRouter(cfg config.DSROQ, posCfg config.Positioning) *Router {
	return &Router{cfg: cfg, posCfg: posCfg}
}

// SearchInput is everything the search needs to find a route from Src to
// Dst, read-only for the duration of the call.
type SearchInput struct {
	Snap              *satnet.NetworkSnapshot
	Store             *flowstate.Store
	Src, Dst          satnet.Hash
	PreviousPath      []satnet.Hash
	EndpointSample    positioning.Sample
	HasEndpointSample bool
	MaxLatencySec     float64
	Rand              *rng.Source
}

// SearchResult is the best path found within budget, or UsedFallback=true
// if the search was skipped in favor of the greedy baseline (spec.md §8:
// "MCTS wall-time = 0: router returns its greedy baseline path").
type SearchResult struct {
	Path         []satnet.Hash
	Cost         float64
	LatencySec   float64
	Iterations   int
	UsedFallback bool
}

// admissibleNextHops returns src's active neighbors not already in path and
// whose utilization is below the congestion threshold.
func admissibleNextHops(snap *satnet.NetworkSnapshot, store *flowstate.Store, src satnet.Hash, path []satnet.Hash, congestionThreshold float64) []satnet.Hash {
	visited := make(map[satnet.Hash]bool, len(path))
	for _, h := range path {
		visited[h] = true
	}
	var out []satnet.Hash
	for _, n := range snap.Neighbors(src) {
		if visited[n] {
			continue
		}
		link, ok := snap.LinkBetween(src, n)
		if !ok || !link.Active {
			continue
		}
		if link.CapacityBps > 0 && store.LinkLoad(src, n)/link.CapacityBps >= congestionThreshold {
			continue
		}
		out = append(out, n)
	}
	return out
}

// greedyExtend runs the default rollout policy: greedy-shortest by
// residual-capacity-weighted latency. Rather than stepping one locally-best
// hop at a time, it computes the true shortest path under that weight from
// the path's current tail to dst (via shortestPathTo's Dijkstra search over
// the admissible subgraph) — a more faithful reading of "shortest by
// weighted latency" than a single-hop-lookahead walk. Fails (dead end) if
// dst is unreachable without revisiting an already-taken hop, or if the
// resulting path would exceed maxHops.
func greedyExtend(snap *satnet.NetworkSnapshot, store *flowstate.Store, path []satnet.Hash, dst satnet.Hash, maxHops int, congestionThreshold float64) ([]satnet.Hash, bool) {
	out := append([]satnet.Hash{}, path...)
	cur := out[len(out)-1]
	if cur == dst {
		return out, true
	}

	visited := make(map[satnet.Hash]bool, len(out))
	for _, h := range out[:len(out)-1] {
		visited[h] = true
	}

	suffix, ok := shortestPathTo(snap, store, cur, dst, visited, congestionThreshold)
	if !ok {
		return out, false
	}
	out = append(out, suffix...)
	if len(out)-1 > maxHops {
		return out, false
	}
	return out, true
}

// Search finds a route from in.Src to in.Dst. If cfg.MCTSWallMs <= 0 the
// tree search is skipped entirely and the greedy baseline is returned
// directly (spec.md §8 boundary behavior); otherwise MCTS runs until the
// first of iteration cap, wall-time cap, or no-improvement-over-K-iterations.
func (r *Router) Search(in SearchInput) (SearchResult, error) {
	if in.Src == in.Dst {
		return SearchResult{Path: []satnet.Hash{in.Src}, Iterations: 0}, nil
	}

	if r.cfg.MCTSWallMs <= 0 {
		path, reached := greedyExtend(in.Snap, in.Store, []satnet.Hash{in.Src}, in.Dst, r.cfg.MaxHops, r.cfg.CongestionThreshold)
		if !reached {
			return SearchResult{}, simerrors.ErrNoRouteWithinBudget
		}
		return SearchResult{
			Path: path, UsedFallback: true,
			Cost:       pathCost(path, in.Snap, in.Store, r.cfg, r.posCfg, in.PreviousPath, in.EndpointSample, in.HasEndpointSample),
			LatencySec: pathLatencyLowerBound(path, in.Snap),
		}, nil
	}

	root := newMCTSNode([]satnet.Hash{in.Src}, nil, admissibleNextHops(in.Snap, in.Store, in.Src, []satnet.Hash{in.Src}, r.cfg.CongestionThreshold))

	var bestPath []satnet.Hash
	bestCost := math.Inf(1)
	noImprovement := 0
	deadline := time.Now().Add(time.Duration(r.cfg.MCTSWallMs) * time.Millisecond)

	iter := 0
	for iter < r.cfg.MCTSIters && time.Now().Before(deadline) && noImprovement < r.cfg.NoImprovementIters {
		iter++
		leaf := r.selectAndExpand(root, in)
		path, reached := greedyExtend(in.Snap, in.Store, leaf.path, in.Dst, r.cfg.MaxHops, r.cfg.CongestionThreshold)

		var reward float64
		if reached {
			cost := pathCost(path, in.Snap, in.Store, r.cfg, r.posCfg, in.PreviousPath, in.EndpointSample, in.HasEndpointSample)
			reward = terminalRewardU - cost
			if cost < bestCost {
				bestCost, bestPath = cost, path
				noImprovement = 0
			} else {
				noImprovement++
			}
		} else {
			reward = -deadEndPenaltyP
			noImprovement++
		}
		backpropagate(leaf, reward)
	}

	if bestPath == nil {
		return SearchResult{}, simerrors.ErrNoRouteWithinBudget
	}
	return SearchResult{
		Path: bestPath, Cost: bestCost, Iterations: iter,
		LatencySec: pathLatencyLowerBound(bestPath, in.Snap),
	}, nil
}

// selectAndExpand walks down the tree via UCB1 while nodes are fully
// expanded, then expands one untried action at the first frontier node
// reached, returning the newly-created (or already-terminal) node.
func (r *Router) selectAndExpand(root *mctsNode, in SearchInput) *mctsNode {
	n := root
	for !n.isLeafFrontier() && len(n.children) > 0 {
		n = n.bestChild(r.cfg.UCBExploration)
	}
	if n.hop == in.Dst || len(n.path) > r.cfg.MaxHops {
		return n
	}
	if !n.isLeafFrontier() {
		return n
	}

	untried := n.untried
	if in.Rand != nil && len(untried) > 1 {
		shuffled := append([]satnet.Hash{}, untried...)
		in.Rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		untried = shuffled
	}
	next := untried[0]
	n.untried = untried[1:]

	childPath := append(append([]satnet.Hash{}, n.path...), next)
	child := newMCTSNode(childPath, n, admissibleNextHops(in.Snap, in.Store, next, childPath, r.cfg.CongestionThreshold))
	n.children[next] = child
	return child
}

func backpropagate(n *mctsNode, reward float64) {
	for cur := n; cur != nil; cur = cur.parent {
		cur.visits++
		cur.totalRew += reward
	}
}

package dsroq

import (
	"math"

	"github.com/skylattice/orbitsim/internal/config"
	"github.com/skylattice/orbitsim/internal/flowstate"
	"github.com/skylattice/orbitsim/internal/positioning"
	"github.com/skylattice/orbitsim/internal/satnet"
)

// edgeKey canonicalizes a link's endpoints for Jaccard comparison between
// routes; direction does not change which physical edge was used.
func edgeKey(a, b satnet.Hash) [2]satnet.Hash {
	for i := range a {
		if a[i] < b[i] {
			return [2]satnet.Hash{a, b}
		}
		if a[i] > b[i] {
			return [2]satnet.Hash{b, a}
		}
	}
	return [2]satnet.Hash{a, b}
}

func edgeSet(path []satnet.Hash) map[[2]satnet.Hash]bool {
	set := make(map[[2]satnet.Hash]bool, len(path))
	for i := 0; i+1 < len(path); i++ {
		set[edgeKey(path[i], path[i+1])] = true
	}
	return set
}

// jaccardSimilarity returns the Jaccard overlap of a and b's edge sets,
// defaulting to 0 when b is empty (spec.md §4.4.1: "similarity ...
// defaulting to 0 when no previous path").
func jaccardSimilarity(a, b []satnet.Hash) float64 {
	if len(b) < 2 {
		return 0
	}
	setA, setB := edgeSet(a), edgeSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	inter := 0
	for e := range setA {
		if setB[e] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// positioningPenalty implements Φ: 0 at ideal positioning quality, growing
// monotonically as CRLB/GDOP worsen or visibility drops below the
// feasibility thresholds (spec.md §4.4.1). Samples are keyed by ground
// node hash; a path with no associated sample (e.g. an all-ISL segment
// with neither endpoint resolved) contributes no penalty.
func positioningPenalty(sample positioning.Sample, hasSample bool, posCfg config.Positioning) float64 {
	if !hasSample {
		return 0
	}
	if math.IsInf(sample.CRLB, 1) || sample.VisibleBeams < posCfg.MinVisibleBeams || sample.CoopSats < posCfg.MinCoopSats {
		return 1
	}
	return 0.5*(1-clamp01(sample.CRLBNorm)) + 0.5*(1-clamp01(sample.GDOPNorm))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// pathCost implements the full routing cost formula of spec.md §4.4.1:
//
//	C(path) = sum_e [latency_e + alpha*(load_e/cap_e)]
//	        + kappa_seam*(#seam edges)
//	        + kappa_chg*(1 - jaccard(path, previousPath))
//	        + lambda_pos*Phi(...)
//
// endpointSample is the positioning sample for the path's ground
// destination, if one was resolved; hasSample is false for a pure-ISL
// probe segment used during rollout scoring.
func pathCost(
	path []satnet.Hash,
	snap *satnet.NetworkSnapshot,
	store *flowstate.Store,
	cfg config.DSROQ,
	posCfg config.Positioning,
	previousPath []satnet.Hash,
	endpointSample positioning.Sample,
	hasSample bool,
) float64 {
	var sum float64
	seams := 0
	for i := 0; i+1 < len(path); i++ {
		a, b := path[i], path[i+1]
		link, ok := snap.LinkBetween(a, b)
		if !ok {
			return math.Inf(1)
		}
		load := store.LinkLoad(a, b)
		util := 0.0
		if link.CapacityBps > 0 {
			util = load / link.CapacityBps
		}
		sum += link.LatencySec + cfg.Alpha*util
		if link.Seam {
			seams++
		}
	}
	sum += cfg.KappaSeam * float64(seams)
	sum += cfg.KappaChg * (1 - jaccardSimilarity(path, previousPath))
	sum += cfg.LambdaPos * positioningPenalty(endpointSample, hasSample, posCfg)
	return sum
}

// pathLatencyLowerBound is the sum of per-link propagation latencies along
// path, used as the feasibility-filter lower bound against a flow's
// max_latency (spec.md §4.4.1).
func pathLatencyLowerBound(path []satnet.Hash, snap *satnet.NetworkSnapshot) float64 {
	var sum float64
	for i := 0; i+1 < len(path); i++ {
		link, ok := snap.LinkBetween(path[i], path[i+1])
		if !ok {
			return math.Inf(1)
		}
		sum += link.LatencySec
	}
	return sum
}

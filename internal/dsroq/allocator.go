package dsroq

import (
	"fmt"
	"math"

	"github.com/skylattice/orbitsim/internal/flowstate"
	"github.com/skylattice/orbitsim/internal/satnet"
	"github.com/skylattice/orbitsim/internal/simerrors"
)

// bottleneckResidual returns the smallest residual capacity across route's
// edges, against snap's capacities and store's committed load.
func bottleneckResidual(route []satnet.Hash, snap *satnet.NetworkSnapshot, store *flowstate.Store) (float64, error) {
	caps := snap.LinkCapacity()
	residual := math.Inf(1)
	for i := 0; i+1 < len(route); i++ {
		a, b := route[i], route[i+1]
		cap, ok := caps[[2]satnet.Hash{a, b}]
		if !ok {
			return 0, fmt.Errorf("%w: link %s-%s not present in snapshot", simerrors.ErrNodeMissing, a, b)
		}
		r := cap - store.LinkLoad(a, b)
		if r < residual {
			residual = r
		}
	}
	if math.IsInf(residual, 1) {
		residual = 0
	}
	return residual, nil
}

// contendingFlows counts flows other than excludeID already routed over at
// least one edge of route, used to estimate a fair per-flow share of the
// bottleneck link.
func contendingFlows(route []satnet.Hash, store *flowstate.Store, excludeID string) int {
	edges := edgeSet(route)
	count := 0
	store.Range(func(id string, flow *flowstate.Flow) bool {
		if id == excludeID {
			return true
		}
		other := edgeSet(flow.Route)
		for e := range other {
			if edges[e] {
				count++
				break
			}
		}
		return true
	})
	return count
}

// AllocateBandwidth implements the bandwidth allocator of spec.md §4.4.2:
// allocate min(b_max, bottleneck_residual(route), max(b_min, fair_share)),
// failing with ErrBelowMinBandwidth if the result is below b_min. fair_share
// is the bottleneck residual split evenly among this flow and the other
// flows already contending for any edge of route, a standard max-min-fair
// approximation: the spec names "fair_share" without fixing its formula,
// and the corpus carries no LP/QP solver to compute an exact max-min-fair
// allocation, so an even split over contending flows is the simplest
// faithful approximation.
func AllocateBandwidth(flowID string, route []satnet.Hash, bMin, bMax float64, snap *satnet.NetworkSnapshot, store *flowstate.Store) (float64, error) {
	residual, err := bottleneckResidual(route, snap, store)
	if err != nil {
		return 0, err
	}

	contenders := contendingFlows(route, store, flowID)
	fairShare := residual / float64(contenders+1)

	alloc := math.Min(bMax, math.Min(residual, math.Max(bMin, fairShare)))
	if alloc < bMin {
		return 0, fmt.Errorf("%w: allocated %.0f < b_min %.0f on route", simerrors.ErrBelowMinBandwidth, alloc, bMin)
	}
	return alloc, nil
}

// Package dsroq implements the DSROQ Core (L4): MCTS route search, the
// bandwidth allocator, reroute cooldown, and the Lyapunov drift-plus-
// penalty scheduler, grounded on the teacher's internal/routing package
// (sticky-lease decision tree generalized into a reroute-cooldown gate,
// IPLoadStats generalized into CooldownTracker).
package dsroq

import (
	"fmt"
	"math"

	"github.com/skylattice/orbitsim/internal/config"
	"github.com/skylattice/orbitsim/internal/flowstate"
	"github.com/skylattice/orbitsim/internal/positioning"
	"github.com/skylattice/orbitsim/internal/rng"
	"github.com/skylattice/orbitsim/internal/satnet"
	"github.com/skylattice/orbitsim/internal/simerrors"
)

// AllocationResult is spec.md §3's Allocation Result.
type AllocationResult struct {
	Route               []satnet.Hash
	AllocatedBWBps      float64
	ExpectedLatencySec  float64
	ExpectedReliability float64
	ResourceCost        float64
	Success             bool
}

// Core wires the MCTS router, bandwidth allocator, and reroute cooldown
// into the single entry point the Simulation Engine calls per accepted
// request.
type Core struct {
	cfg      config.DSROQ
	posCfg   config.Positioning
	router   *Router
	cooldown *CooldownTracker
}

// NewCore builds a Core from the scenario's dsroq and positioning config.
func NewCore(cfg config.DSROQ, posCfg config.Positioning) *Core {
	return &Core{cfg: cfg, posCfg: posCfg, router: NewRouter(cfg, posCfg), cooldown: NewCooldownTracker()}
}

// AllocateInput bundles everything Allocate needs for one flow.
type AllocateInput struct {
	Flow              *flowstate.Flow
	Snap              *satnet.NetworkSnapshot
	Store             *flowstate.Store
	PositioningByNode map[satnet.Hash]positioning.Sample
	NowS              float64
	Rand              *rng.Source
}

// linkUtilization reads l's real committed utilization from store: the
// Topology Oracle only ever fills in l.CapacityBps, never l.LoadBps (load
// is a property of Flow & Queue State, the single writer of committed
// bandwidth, spec.md §5), so utilization must come from store.LinkLoad.
func linkUtilization(l satnet.Link, store *flowstate.Store) float64 {
	if l.CapacityBps <= 0 || store == nil {
		return 0
	}
	u := store.LinkLoad(l.A, l.B) / l.CapacityBps
	if u < 0 {
		return 0
	}
	if u > 1 {
		return 1
	}
	return u
}

// linkReliability derives a per-link reliability from utilization: a
// nominal 0.999 baseline degrading up to 5% as the link approaches
// capacity. spec.md §3 does not carry a reliability field on Link, so this
// closed-form degradation model stands in for a measured loss rate.
func linkReliability(l satnet.Link, store *flowstate.Store) float64 {
	return 0.999 * (1 - 0.05*linkUtilization(l, store))
}

func routeReliability(route []satnet.Hash, snap *satnet.NetworkSnapshot, store *flowstate.Store) float64 {
	rel := 1.0
	for i := 0; i+1 < len(route); i++ {
		link, ok := snap.LinkBetween(route[i], route[i+1])
		if !ok {
			return 0
		}
		rel *= linkReliability(link, store)
	}
	return rel
}

func endpointSample(in AllocateInput, dst satnet.Hash) (positioning.Sample, bool) {
	s, ok := in.PositioningByNode[dst]
	return s, ok
}

// checkFeasibility applies spec.md §4.4.1's feasibility filters against the
// destination's positioning sample, ahead of running the search at all.
func (c *Core) checkFeasibility(sample positioning.Sample, hasSample bool) error {
	if !hasSample {
		return nil
	}
	if math.IsInf(sample.CRLB, 1) || sample.CRLB > c.posCfg.CRLBThreshold {
		return fmt.Errorf("%w: crlb %.3g exceeds threshold %.3g", simerrors.ErrNoRouteWithinBudget, sample.CRLB, c.posCfg.CRLBThreshold)
	}
	if sample.VisibleBeams < c.posCfg.MinVisibleBeams {
		return fmt.Errorf("%w: visible_beams %d below min %d", simerrors.ErrNoRouteWithinBudget, sample.VisibleBeams, c.posCfg.MinVisibleBeams)
	}
	if sample.CoopSats < c.posCfg.MinCoopSats {
		return fmt.Errorf("%w: coop_sats %d below min %d", simerrors.ErrNoRouteWithinBudget, sample.CoopSats, c.posCfg.MinCoopSats)
	}
	return nil
}

// Allocate runs route search, feasibility filtering, and bandwidth
// allocation for in.Flow, honoring reroute cooldown when the flow already
// has a route. On success the flow's route/bandwidth fields are not
// mutated here; the caller commits via flowstate.Store.AddFlow.
func (c *Core) Allocate(in AllocateInput) (AllocationResult, error) {
	req := in.Flow.Request
	src := satnet.GroundHash(req.Src)
	dst := satnet.GroundHash(req.Dst)

	if !in.Snap.HasNode(src) || !in.Snap.HasNode(dst) {
		return AllocationResult{}, fmt.Errorf("%w: flow endpoint not present in snapshot", simerrors.ErrNodeMissing)
	}

	sample, hasSample := endpointSample(in, dst)
	if err := c.checkFeasibility(sample, hasSample); err != nil {
		return AllocationResult{}, err
	}

	nowMs := int64(in.NowS * 1000)
	if len(in.Flow.Route) > 1 && !c.cooldown.Ready(req.ID, nowMs, c.cfg.RerouteCooldownMs) {
		return c.allocateOnExistingRoute(in, in.Flow.Route)
	}

	result, err := c.router.Search(SearchInput{
		Snap: in.Snap, Store: in.Store, Src: src, Dst: dst,
		PreviousPath: in.Flow.Route, EndpointSample: sample, HasEndpointSample: hasSample,
		MaxLatencySec: req.MaxLatencySec, Rand: in.Rand,
	})
	if err != nil {
		return AllocationResult{}, err
	}
	if result.LatencySec > req.MaxLatencySec {
		return AllocationResult{}, fmt.Errorf("%w: route latency %.3fs exceeds max %.3fs", simerrors.ErrNoRouteWithinBudget, result.LatencySec, req.MaxLatencySec)
	}

	bw, err := AllocateBandwidth(req.ID, result.Path, req.MinBandwidthBps, req.MaxBandwidthBps, in.Snap, in.Store)
	if err != nil {
		return AllocationResult{}, err
	}

	if len(in.Flow.Route) > 1 {
		c.cooldown.RecordReroute(req.ID, nowMs)
	}

	return AllocationResult{
		Route: result.Path, AllocatedBWBps: bw,
		ExpectedLatencySec:  result.LatencySec,
		ExpectedReliability: routeReliability(result.Path, in.Snap, in.Store),
		ResourceCost:        result.Cost,
		Success:             true,
	}, nil
}

// allocateOnExistingRoute re-evaluates bandwidth on the flow's current
// route without searching for a new one, because it is within its reroute
// cooldown window (spec.md §4.4.1: "return the existing route unchanged
// even if cheaper alternatives exist").
func (c *Core) allocateOnExistingRoute(in AllocateInput, route []satnet.Hash) (AllocationResult, error) {
	req := in.Flow.Request
	bw, err := AllocateBandwidth(req.ID, route, req.MinBandwidthBps, req.MaxBandwidthBps, in.Snap, in.Store)
	if err != nil {
		return AllocationResult{}, err
	}
	return AllocationResult{
		Route: route, AllocatedBWBps: bw,
		ExpectedLatencySec:  pathLatencyLowerBound(route, in.Snap),
		ExpectedReliability: routeReliability(route, in.Snap, in.Store),
		ResourceCost:        pathCost(route, in.Snap, in.Store, c.cfg, c.posCfg, route, positioning.Sample{}, false),
		Success:             true,
	}, nil
}

// ForgetFlow drops flowID's cooldown record; the Simulation Engine calls
// this on flow completion or failure.
func (c *Core) ForgetFlow(flowID string) { c.cooldown.Forget(flowID) }

package flowstate

import (
	"fmt"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/skylattice/orbitsim/internal/satnet"
	"github.com/skylattice/orbitsim/internal/simerrors"
)

// Store is the single writer for all flow, link-load, and backlog state
// (spec.md §5: "Flow & Queue State is the single writer; all other
// components are readers within a step"). Reads (LinkLoad, BacklogAt,
// flow lookups) are lock-free via xsync.Map and do not take mu; compound
// writes that touch several links (AddFlow, RemoveFlow) take mu so two
// writers never interleave. A reader running concurrently with one of them
// can see a flow's load applied to only some of its route's links.
type Store struct {
	mu sync.Mutex

	flows    *xsync.Map[string, *Flow]
	linkLoad *xsync.Map[[2]Hash, *AtomicFloat64]
	backlog  *xsync.Map[Hash, *AtomicFloat64]

	virtualQueues map[QoSClass]*AtomicFloat64
}

// NewStore builds an empty Store.
func NewStore() *Store {
	return &Store{
		flows:    xsync.NewMap[string, *Flow](),
		linkLoad: xsync.NewMap[[2]Hash, *AtomicFloat64](),
		backlog:  xsync.NewMap[Hash, *AtomicFloat64](),
		virtualQueues: map[QoSClass]*AtomicFloat64{
			ClassEF: {}, ClassAF: {}, ClassBE: {},
		},
	}
}

func (s *Store) linkLoadCounter(a, b Hash) *AtomicFloat64 {
	key := linkKey(a, b)
	c, _ := s.linkLoad.LoadOrStore(key, &AtomicFloat64{})
	return c
}

// LinkLoad returns the current committed load on link (a, b).
func (s *Store) LinkLoad(a, b Hash) float64 {
	key := linkKey(a, b)
	c, ok := s.linkLoad.Load(key)
	if !ok {
		return 0
	}
	return c.Load()
}

// BacklogAt returns the current backlog, in bytes, at node.
func (s *Store) BacklogAt(node Hash) float64 {
	c, ok := s.backlog.Load(node)
	if !ok {
		return 0
	}
	return c.Load()
}

// routeEdges returns the consecutive (a, b) pairs along route.
func routeEdges(route []Hash) [][2]Hash {
	if len(route) < 2 {
		return nil
	}
	edges := make([][2]Hash, 0, len(route)-1)
	for i := 0; i < len(route)-1; i++ {
		edges = append(edges, [2]Hash{route[i], route[i+1]})
	}
	return edges
}

// isSimplePath reports whether route visits no node twice (spec.md §8:
// "every flow's route is a simple path").
func isSimplePath(route []Hash) bool {
	seen := make(map[Hash]bool, len(route))
	for _, h := range route {
		if seen[h] {
			return false
		}
		seen[h] = true
	}
	return true
}

// AddFlow admits flow onto route at bandwidth bw against snap's link
// capacities. It enforces capacity across the whole route before
// committing any load (spec.md §4.3: "AddFlow fails, does not partially
// apply, if any link on the route is at capacity"): first every edge's
// residual capacity is checked, and only if all pass is the load for
// every edge committed.
func (s *Store) AddFlow(flow *Flow, route []Hash, bw float64, snap *satnet.NetworkSnapshot) error {
	if len(route) < 1 {
		return fmt.Errorf("%w: route must contain at least one node", simerrors.ErrNodeMissing)
	}
	if !isSimplePath(route) {
		return fmt.Errorf("%w: route revisits a node", simerrors.ErrInvalidRoute)
	}
	if bw <= 0 {
		return fmt.Errorf("%w: bandwidth must be positive", simerrors.ErrBelowMinBandwidth)
	}

	edges := routeEdges(route)
	capacities := snap.LinkCapacity()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range edges {
		linkCap, ok := capacities[e]
		if !ok {
			return fmt.Errorf("%w: link %s-%s not present in current snapshot", simerrors.ErrNodeMissing, e[0], e[1])
		}
		residual := linkCap - s.LinkLoad(e[0], e[1])
		if residual < bw {
			return fmt.Errorf("%w: link %s-%s residual %.0f < requested %.0f", simerrors.ErrCapacityExceeded, e[0], e[1], residual, bw)
		}
	}

	for _, e := range edges {
		s.linkLoadCounter(e[0], e[1]).AddClamped(bw)
	}

	flow.Route = route
	flow.AllocatedBWBps = bw
	s.flows.Store(flow.Request.ID, flow)
	return nil
}

// RemoveFlow releases flow's committed link load and removes it from the
// store, returning the removed flow.
func (s *Store) RemoveFlow(flowID string) (*Flow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	flow, ok := s.flows.LoadAndDelete(flowID)
	if !ok {
		return nil, false
	}
	for _, e := range routeEdges(flow.Route) {
		s.linkLoadCounter(e[0], e[1]).AddClamped(-flow.AllocatedBWBps)
	}
	return flow, true
}

// GetFlow returns the flow with the given id, if active in the store.
func (s *Store) GetFlow(flowID string) (*Flow, bool) {
	return s.flows.Load(flowID)
}

// Range iterates all tracked flows. Returning false stops iteration.
func (s *Store) Range(fn func(id string, flow *Flow) bool) {
	s.flows.Range(fn)
}

// Count returns the number of flows currently tracked.
func (s *Store) Count() int {
	return s.flows.Size()
}

// TickQueues advances per-node backlog by one tick of length dt, given
// per-node arrival and service rates in bytes/sec: backlog' =
// max(0, backlog + (arrival-service)*dt) (spec.md §4.3: "TickQueues clamps
// backlogs at zero").
func (s *Store) TickQueues(dt float64, arrivals, services map[Hash]float64) {
	seen := make(map[Hash]bool, len(arrivals)+len(services))
	for n := range arrivals {
		seen[n] = true
	}
	for n := range services {
		seen[n] = true
	}
	for n := range seen {
		delta := (arrivals[n] - services[n]) * dt
		c, _ := s.backlog.LoadOrStore(n, &AtomicFloat64{})
		c.AddClamped(delta)
	}
}

// VirtualQueue returns the current Lyapunov virtual-queue value for class c.
func (s *Store) VirtualQueue(c QoSClass) float64 {
	ctr, ok := s.virtualQueues[c]
	if !ok {
		return 0
	}
	return ctr.Load()
}

// UpdateVirtualQueue advances class c's virtual queue by one Lyapunov tick:
// Q(t+1) = max(0, Q(t) + (arrivalRate - serviceRate)*dt), returning the new
// value. The Lyapunov drift-plus-penalty scheduler (internal/dsroq) decides
// serviceRate each tick; this store only holds the resulting queue state.
func (s *Store) UpdateVirtualQueue(c QoSClass, arrivalRate, serviceRate, dt float64) float64 {
	ctr, ok := s.virtualQueues[c]
	if !ok {
		return 0
	}
	return ctr.AddClamped((arrivalRate - serviceRate) * dt)
}

// JainFairness computes the Jain fairness index over a vector of
// per-flow/per-user QoE values, in (0,1] (spec.md glossary).
func JainFairness(values []float64) float64 {
	if len(values) == 0 {
		return 1
	}
	var sum, sumSq float64
	for _, v := range values {
		sum += v
		sumSq += v * v
	}
	if sumSq == 0 {
		return 1
	}
	return (sum * sum) / (float64(len(values)) * sumSq)
}

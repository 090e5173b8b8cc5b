package satnet

import (
	"time"

	"github.com/maypok86/otter"
)

// snapshotCost charges one unit per cached snapshot, following the
// teacher's internal/node/latency.go fixed per-entry Cost function, so the
// cache's capacity of maxEntries is a count of snapshots.
func snapshotCost(_ float64, _ *NetworkSnapshot) uint32 {
	return 1
}

// Cache wraps an Oracle with a bounded, time-keyed snapshot cache, making
// concrete spec.md §3's "the Oracle may cache by t": repeated SnapshotAt(t)
// calls at the same t within a run return the identical cached result,
// never a freshly (and possibly differently) computed one, which the
// determinism property (spec.md §8 scenario 6) and the Reset/Step
// round-trip property both depend on.
type Cache struct {
	backend Oracle
	cache   otter.Cache[float64, *NetworkSnapshot]
}

// NewCache wraps backend with an otter cache bounded to maxEntries
// snapshots, the same builder pattern as the teacher's LatencyTable.
func NewCache(backend Oracle, maxEntries int) (*Cache, error) {
	if maxEntries <= 0 {
		maxEntries = 64
	}
	c, err := otter.MustBuilder[float64, *NetworkSnapshot](maxEntries).
		Cost(snapshotCost).
		WithTTL(10 * time.Minute).
		Build()
	if err != nil {
		return nil, err
	}
	return &Cache{backend: backend, cache: c}, nil
}

func (c *Cache) EpochS() float64 { return c.backend.EpochS() }

func (c *Cache) SnapshotAt(t float64) (*NetworkSnapshot, error) {
	if snap, ok := c.cache.Get(t); ok {
		return snap, nil
	}
	snap, err := c.backend.SnapshotAt(t)
	if err != nil {
		return nil, err
	}
	c.cache.Set(t, snap)
	return snap, nil
}

func (c *Cache) LinkCapacity(t float64) (map[[2]Hash]float64, error) {
	s, err := c.SnapshotAt(t)
	if err != nil {
		return nil, err
	}
	return s.LinkCapacity(), nil
}

func (c *Cache) LinkUtilization(t float64) (map[[2]Hash]float64, error) {
	s, err := c.SnapshotAt(t)
	if err != nil {
		return nil, err
	}
	return s.LinkUtilization(), nil
}

func (c *Cache) OrbitPhase(t float64) (float64, error) { return c.backend.OrbitPhase(t) }

func (c *Cache) TopologyChangeRate(t float64) (float64, error) {
	return c.backend.TopologyChangeRate(t)
}

func (c *Cache) PredictFutureCapacity(t, h float64) (float64, error) {
	return c.backend.PredictFutureCapacity(t, h)
}

func (c *Cache) RoutingStabilityMetrics(t float64) (RoutingStabilityMetrics, error) {
	return c.backend.RoutingStabilityMetrics(t)
}

// Close releases cache resources.
func (c *Cache) Close() { c.cache.Close() }

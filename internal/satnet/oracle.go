// Package satnet implements the Topology Oracle (L1): for any simulated
// time t it produces an immutable NetworkSnapshot, plus derived queries
// (capacity, utilization, orbit phase, churn rate, capacity forecast,
// routing-stability metrics). Two interchangeable backends are provided: a
// simplified Walker-constellation backend and a faithful backend that
// consumes offline TLE/ISL/GSL-derived data files. Grounded on the
// teacher's internal/topology package (pool/scheduler lifecycle) and
// internal/node/latency.go (otter-backed bounded cache).
package satnet

// RoutingStabilityMetrics summarizes short-horizon topology volatility for
// a node or the network as a whole, consumed by the Admission Observation
// Builder's "stability features" (spec.md §4.5).
type RoutingStabilityMetrics struct {
	HandoverPredCount  int
	EarliestHandoverS  float64
	SeamRisk           bool
	ContactMarginS     float64
}

// Oracle is the Topology Oracle's external interface (spec.md §4.1).
type Oracle interface {
	// SnapshotAt returns the immutable network state at time t. The oracle
	// may cache by t; repeated calls at the same t within one run return
	// the identical cached snapshot.
	SnapshotAt(t float64) (*NetworkSnapshot, error)

	// LinkCapacity and LinkUtilization are dense maps keyed by ordered
	// node pair, derived from SnapshotAt(t).
	LinkCapacity(t float64) (map[[2]Hash]float64, error)
	LinkUtilization(t float64) (map[[2]Hash]float64, error)

	// OrbitPhase returns normalized progress through a reference orbit
	// period, in [0, 1).
	OrbitPhase(t float64) (float64, error)

	// TopologyChangeRate is the fraction of links added-or-removed versus
	// t-delta (default delta = 1s).
	TopologyChangeRate(t float64) (float64, error)

	// PredictFutureCapacity returns a smoothed forecast of total available
	// capacity at horizon t+h (h in seconds).
	PredictFutureCapacity(t, h float64) (float64, error)

	// RoutingStabilityMetrics reports predicted handover count in the next
	// window, earliest handover time, seam-risk flag, and contact margin.
	RoutingStabilityMetrics(t float64) (RoutingStabilityMetrics, error)

	// EpochS is the simulated time before which SnapshotAt returns an
	// empty, warming_up snapshot (spec.md §4.1 edge policy).
	EpochS() float64
}

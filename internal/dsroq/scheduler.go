package dsroq

import (
	"math"
	"sort"

	"github.com/skylattice/orbitsim/internal/flowstate"
)

// ClassMetrics carries the per-tick measurements the Lyapunov scheduler
// needs to compute each QoS class's penalty term (spec.md §4.4.3).
type ClassMetrics struct {
	ArrivalRateBps float64
	PathDelaySec   float64 // EF: compared against MaxLatencySec
	MaxLatencySec  float64
	LossRate       float64 // AF
	ThroughputBps  float64 // BE
	MinBandwidthBps float64 // BE
}

// qoePenalty implements the class-specific penalty of spec.md §4.4.3:
// EF: max(0, path_delay - max_latency); AF: loss_rate * w_loss;
// BE: max(0, b_min - throughput).
func qoePenalty(class flowstate.QoSClass, m ClassMetrics, lossWeight float64) float64 {
	switch class {
	case flowstate.ClassEF:
		return math.Max(0, m.PathDelaySec-m.MaxLatencySec)
	case flowstate.ClassAF:
		return m.LossRate * lossWeight
	case flowstate.ClassBE:
		return math.Max(0, m.MinBandwidthBps-m.ThroughputBps)
	default:
		return 0
	}
}

// ScheduleServiceRates implements the Lyapunov drift-plus-penalty
// scheduler of spec.md §4.4.3. It approximates the minimizer of
//
//	sum_k Q_k*(arrival_k - mu_k) + V*qoe_penalty_k
//
// with the standard max-weight rule: since the drift term is linear and
// decreasing in each mu_k, the minimizer greedily serves the classes with
// the largest backlog-plus-penalty weight first, each up to its own
// arrival rate (serving faster than arrivals wastes capacity no other
// class needs), until capacityBudget is exhausted. The summed rates never
// exceed capacityBudget. A class whose virtual queue is above backlogLimit
// has its rate further capped at backlogLimit/dt, so the backlog limit can
// only lower a class's service and never lifts it past the remaining
// capacity; the virtual queue itself is not bounded by backlogLimit.
//
// The resulting service rates are recorded into store's virtual queues via
// UpdateVirtualQueue and returned.
func ScheduleServiceRates(
	store *flowstate.Store,
	metrics map[flowstate.QoSClass]ClassMetrics,
	lossWeight, capacityBudget, v, backlogLimit, dt float64,
) map[flowstate.QoSClass]float64 {
	classes := []flowstate.QoSClass{flowstate.ClassEF, flowstate.ClassAF, flowstate.ClassBE}

	weight := make(map[flowstate.QoSClass]float64, len(classes))
	for _, c := range classes {
		weight[c] = store.VirtualQueue(c) + v*qoePenalty(c, metrics[c], lossWeight)
	}
	sort.SliceStable(classes, func(i, j int) bool { return weight[classes[i]] > weight[classes[j]] })

	rates := make(map[flowstate.QoSClass]float64, len(classes))
	remaining := capacityBudget
	for _, c := range classes {
		if remaining <= 0 {
			rates[c] = 0
			continue
		}
		want := metrics[c].ArrivalRateBps
		if store.VirtualQueue(c) > backlogLimit {
			want = math.Min(want, backlogLimit/math.Max(dt, 1e-9))
		}
		got := math.Min(want, remaining)
		if got < 0 {
			got = 0
		}
		rates[c] = got
		remaining -= got
	}

	for _, c := range classes {
		store.UpdateVirtualQueue(c, metrics[c].ArrivalRateBps, rates[c], dt)
	}
	return rates
}

package dsroq

import (
	"math"
	"testing"

	"github.com/skylattice/orbitsim/internal/flowstate"
)

func TestScheduleServiceRatesNeverExceedsBudget(t *testing.T) {
	store := flowstate.NewStore()
	metrics := map[flowstate.QoSClass]ClassMetrics{
		flowstate.ClassEF: {ArrivalRateBps: 5_000_000, MaxLatencySec: 0.1, PathDelaySec: 0.2},
		flowstate.ClassAF: {ArrivalRateBps: 5_000_000, LossRate: 0.01},
		flowstate.ClassBE: {ArrivalRateBps: 5_000_000, MinBandwidthBps: 1_000_000, ThroughputBps: 500_000},
	}
	rates := ScheduleServiceRates(store, metrics, 1.0, 8_000_000, 1.0, 1e9, 1.0)
	var total float64
	for _, r := range rates {
		total += r
	}
	if total > 8_000_000+1e-6 {
		t.Errorf("ScheduleServiceRates() total = %v, want <= budget 8_000_000", total)
	}
}

func TestScheduleServiceRatesPrioritizesLargestQueue(t *testing.T) {
	store := flowstate.NewStore()
	store.UpdateVirtualQueue(flowstate.ClassEF, 100, 0, 1.0)
	metrics := map[flowstate.QoSClass]ClassMetrics{
		flowstate.ClassEF: {ArrivalRateBps: 1_000_000},
		flowstate.ClassAF: {ArrivalRateBps: 1_000_000},
		flowstate.ClassBE: {ArrivalRateBps: 1_000_000},
	}
	rates := ScheduleServiceRates(store, metrics, 0.2, 1_000_000, 1.0, 1e9, 1.0)
	if rates[flowstate.ClassEF] != 1_000_000 {
		t.Errorf("ScheduleServiceRates() EF rate = %v, want full budget (highest backlog weight)", rates[flowstate.ClassEF])
	}
}

func TestQoePenaltyFormulasPerClass(t *testing.T) {
	ef := qoePenalty(flowstate.ClassEF, ClassMetrics{PathDelaySec: 0.3, MaxLatencySec: 0.1}, 1.0)
	if math.Abs(ef-0.2) > 1e-9 {
		t.Errorf("qoePenalty(EF) = %v, want 0.2", ef)
	}
	af := qoePenalty(flowstate.ClassAF, ClassMetrics{LossRate: 0.05}, 2.0)
	if math.Abs(af-0.1) > 1e-9 {
		t.Errorf("qoePenalty(AF) = %v, want 0.1", af)
	}
	be := qoePenalty(flowstate.ClassBE, ClassMetrics{MinBandwidthBps: 1_000_000, ThroughputBps: 400_000}, 1.0)
	if be != 600_000 {
		t.Errorf("qoePenalty(BE) = %v, want 600000", be)
	}
}

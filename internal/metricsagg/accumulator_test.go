package metricsagg

import "testing"

func TestAccumulatorFinishComputesMeansAndPercentiles(t *testing.T) {
	a := NewAccumulator()
	a.RecordFlowSample(100, 0.1, 4.0)
	a.RecordFlowSample(200, 0.3, 5.0)
	a.RecordAdmission("ACCEPT")
	a.RecordAdmission("REJECT")

	m := a.Finish(3, 12.5)
	if m.StepIndex != 3 || m.TimeS != 12.5 {
		t.Fatalf("Finish() index/time = %d/%v, want 3/12.5", m.StepIndex, m.TimeS)
	}
	if m.ThroughputBps != 300 {
		t.Errorf("ThroughputBps = %v, want 300", m.ThroughputBps)
	}
	if m.LatencyMeanS != 0.2 {
		t.Errorf("LatencyMeanS = %v, want 0.2", m.LatencyMeanS)
	}
	if m.Accepted != 1 || m.Rejected != 1 {
		t.Errorf("Accepted/Rejected = %d/%d, want 1/1", m.Accepted, m.Rejected)
	}
}

func TestAccumulatorResetClearsState(t *testing.T) {
	a := NewAccumulator()
	a.RecordFlowSample(100, 0.1, 4.0)
	a.Reset()
	m := a.Finish(0, 0)
	if m.ThroughputBps != 0 || m.LatencyMeanS != 0 {
		t.Errorf("Finish() after Reset = %+v, want zero values", m)
	}
}

func TestJainFairnessEqualShareIsOne(t *testing.T) {
	if got := jainFairness([]float64{5, 5, 5, 5}); got != 1.0 {
		t.Errorf("jainFairness(equal) = %v, want 1.0", got)
	}
	unequal := jainFairness([]float64{10, 0, 0, 0})
	if unequal >= 1.0 {
		t.Errorf("jainFairness(unequal) = %v, want < 1.0", unequal)
	}
}

func TestNewRunSummaryIsDeterministic(t *testing.T) {
	steps := []StepMetrics{{StepIndex: 0, TimeS: 1, ThroughputBps: 42}, {StepIndex: 1, TimeS: 2, Accepted: 3}}
	a := NewRunSummary("run-1", 7, false, steps)
	b := NewRunSummary("run-1", 7, false, steps)
	if a.SeriesCRC != b.SeriesCRC {
		t.Errorf("SeriesCRC mismatch across identical series: %d vs %d", a.SeriesCRC, b.SeriesCRC)
	}
	changed := append([]StepMetrics(nil), steps...)
	changed[1].Accepted = 4
	c := NewRunSummary("run-1", 7, false, changed)
	if c.SeriesCRC == a.SeriesCRC {
		t.Errorf("SeriesCRC did not change when a step's data changed")
	}
}

package admission

import (
	"testing"

	"github.com/skylattice/orbitsim/internal/flowstate"
)

func TestTrackerQoETrendWindowDropsOldSamples(t *testing.T) {
	tr := NewTracker()
	tr.RecordQoE(flowstate.ClassEF, 1.0, 0)
	if v := tr.QoETrend(flowstate.ClassEF, qoeWindowS+1); v != 0 {
		t.Errorf("QoETrend() after window expiry = %v, want 0", v)
	}
}

func TestTrackerQoETrendAverages(t *testing.T) {
	tr := NewTracker()
	tr.RecordQoE(flowstate.ClassEF, 0.4, 0)
	tr.RecordQoE(flowstate.ClassEF, 0.6, 10)
	if v := tr.QoETrend(flowstate.ClassEF, 10); v != 0.5 {
		t.Errorf("QoETrend() = %v, want 0.5", v)
	}
}

func TestTrackerAdmissionRate(t *testing.T) {
	tr := NewTracker()
	tr.RecordAdmission(0, true)
	tr.RecordAdmission(1, false)
	tr.RecordAdmission(2, true)
	if v := tr.AdmissionRate(2); v != 2.0/3.0 {
		t.Errorf("AdmissionRate() = %v, want 2/3", v)
	}
}

func TestTrackerTimeSinceLastAdmissionNeverAdmitted(t *testing.T) {
	tr := NewTracker()
	if v := tr.TimeSinceLastAdmission(42); v != 42 {
		t.Errorf("TimeSinceLastAdmission() with no history = %v, want 42", v)
	}
}

func TestTrackerTimeSinceLastAdmissionTracksMostRecentAccept(t *testing.T) {
	tr := NewTracker()
	tr.RecordAdmission(5, true)
	tr.RecordAdmission(8, false)
	if v := tr.TimeSinceLastAdmission(20); v != 15 {
		t.Errorf("TimeSinceLastAdmission() = %v, want 15", v)
	}
}

func TestTrackerPredictedLoadExtrapolatesUpwardTrend(t *testing.T) {
	tr := NewTracker()
	tr.RecordUtilization(0.2, 0)
	tr.RecordUtilization(0.4, 30)
	got := tr.PredictedLoad1Min(30)
	if got <= 0.4 {
		t.Errorf("PredictedLoad1Min() = %v, want > 0.4 (rising trend extrapolated forward)", got)
	}
	if got > 1 {
		t.Errorf("PredictedLoad1Min() = %v, want clamped to <= 1", got)
	}
}

func TestTrackerPredictedLoadSingleSample(t *testing.T) {
	tr := NewTracker()
	tr.RecordUtilization(0.3, 0)
	if v := tr.PredictedLoad1Min(0); v != 0.3 {
		t.Errorf("PredictedLoad1Min() with one sample = %v, want 0.3", v)
	}
}

package admission

import (
	"sync"

	"github.com/skylattice/orbitsim/internal/flowstate"
)

// qoeWindowS and admissionWindowS bound the rolling windows spec.md §4.5
// names ("windowed QoE trend (5 min)", "admission-rate history"); loadWindowS
// bounds the short-horizon utilization history behind "1-minute load
// prediction".
const (
	qoeWindowS       = 300.0
	admissionWindowS = 300.0
	loadWindowS      = 60.0
)

type timedSample struct {
	t float64
	v float64
}

// Tracker accumulates the rolling, time-windowed statistics the Observation
// Builder folds into its fixed-order vector. Grounded on the teacher's
// internal/metrics/bucket.go BucketAggregator: a mutex-guarded accumulator
// keyed by scope, simplified here to per-QoS-class sample slices pruned to
// a time window since this layer needs trend/rate, not bucketed export
// (internal/metricsagg owns the latter).
type Tracker struct {
	mu sync.Mutex

	qoe        map[flowstate.QoSClass][]timedSample
	admissions []timedSample // v=1 for accepted-ish outcomes, 0 otherwise
	util       []timedSample
	lastAdmit  float64
	haveAdmit  bool
}

// NewTracker builds an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		qoe: map[flowstate.QoSClass][]timedSample{
			flowstate.ClassEF: nil, flowstate.ClassAF: nil, flowstate.ClassBE: nil,
		},
	}
}

func prune(samples []timedSample, now, window float64) []timedSample {
	cut := 0
	for cut < len(samples) && now-samples[cut].t > window {
		cut++
	}
	if cut == 0 {
		return samples
	}
	return append([]timedSample{}, samples[cut:]...)
}

func mean(samples []timedSample) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s.v
	}
	return sum / float64(len(samples))
}

// RecordQoE records one QoE observation for class c at time t.
func (tr *Tracker) RecordQoE(c flowstate.QoSClass, value, t float64) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.qoe[c] = append(prune(tr.qoe[c], t, qoeWindowS), timedSample{t: t, v: value})
}

// QoETrend returns the mean QoE sample for class c over the last 5 minutes.
func (tr *Tracker) QoETrend(c flowstate.QoSClass, now float64) float64 {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.qoe[c] = prune(tr.qoe[c], now, qoeWindowS)
	return mean(tr.qoe[c])
}

// RecordAdmission records one admission outcome at time t (accepted=true
// for ACCEPT/DEGRADED_ACCEPT/PARTIAL_ACCEPT, false otherwise) and advances
// the time-since-last-admission clock when accepted.
func (tr *Tracker) RecordAdmission(t float64, accepted bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	v := 0.0
	if accepted {
		v = 1.0
		tr.lastAdmit, tr.haveAdmit = t, true
	}
	tr.admissions = append(prune(tr.admissions, t, admissionWindowS), timedSample{t: t, v: v})
}

// AdmissionRate returns the fraction of admissions accepted over the last
// 5 minutes.
func (tr *Tracker) AdmissionRate(now float64) float64 {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.admissions = prune(tr.admissions, now, admissionWindowS)
	return mean(tr.admissions)
}

// TimeSinceLastAdmission returns now minus the last accepted admission's
// time, or now itself if nothing has ever been accepted.
func (tr *Tracker) TimeSinceLastAdmission(now float64) float64 {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if !tr.haveAdmit {
		return now
	}
	return now - tr.lastAdmit
}

// RecordUtilization records one mean-link-utilization sample at time t.
func (tr *Tracker) RecordUtilization(value, t float64) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.util = append(prune(tr.util, t, loadWindowS), timedSample{t: t, v: value})
}

// PredictedLoad1Min linearly extrapolates the 1-minute utilization trend
// one further minute ahead: last sample plus the observed slope across the
// window, clamped to [0,1]. With fewer than two samples it returns the last
// (or zero) sample unchanged.
func (tr *Tracker) PredictedLoad1Min(now float64) float64 {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.util = prune(tr.util, now, loadWindowS)
	if len(tr.util) == 0 {
		return 0
	}
	if len(tr.util) == 1 {
		return clamp01(tr.util[0].v)
	}
	first, last := tr.util[0], tr.util[len(tr.util)-1]
	dt := last.t - first.t
	if dt <= 0 {
		return clamp01(last.v)
	}
	slope := (last.v - first.v) / dt
	return clamp01(last.v + slope*loadWindowS)
}

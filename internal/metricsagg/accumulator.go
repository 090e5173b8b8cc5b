// Package metricsagg accumulates per-step simulation metrics and folds the
// per-step series into an immutable run summary, following the teacher's
// metrics.BucketAggregator accumulate-then-flush idiom generalized from a
// wall-clock time bucket to a simulation step.
package metricsagg

import (
	"math"
	"sort"
	"sync"
)

// StepMetrics is one step's worth of simulation metrics, folded into the
// run's per-step series and hashed for the run summary's determinism CRC.
type StepMetrics struct {
	StepIndex int
	TimeS     float64

	ThroughputBps float64
	LatencyMeanS  float64
	LatencyP95S   float64
	LatencyP99S   float64
	PacketLossRate float64
	JitterS       float64
	JainFairness  float64
	QoEMean       float64

	Accepted       int
	Rejected       int
	DegradedAccept int
	DelayedAccept  int
	PartialAccept  int

	AposMean   float64
	CRLBMeanM  float64
	CRLBP95M   float64
	GDOPMean   float64
	GDOPP95    float64

	HandoverRate      float64
	RoutingChangeRate float64
	AvgRouteLifetimeS float64
	SeamRatio         float64
}

// Accumulator collects step-local samples from engine callbacks and folds
// them into a StepMetrics at step end, mirroring BucketAggregator's
// accumulate-into-current-bucket-then-flush shape. The engine builds a fresh
// Accumulator for each step; Reset empties one for reuse.
type Accumulator struct {
	mu sync.Mutex

	qoe         []float64
	latencies   []float64
	throughput  float64
	lossSamples []float64
	jitter      []float64
	backlog     []float64

	accepted, rejected, degraded, delayed, partial int

	apos       []float64
	crlb       []float64
	gdop       []float64
	handovers  int
	routeChanges int
	routeLifetimes []float64
	seams, routes int
}

// NewAccumulator returns an empty Accumulator.
func NewAccumulator() *Accumulator { return &Accumulator{} }

// Reset clears all step-local samples so the Accumulator can be reused.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.qoe, a.latencies, a.lossSamples, a.jitter, a.backlog = nil, nil, nil, nil, nil
	a.throughput = 0
	a.accepted, a.rejected, a.degraded, a.delayed, a.partial = 0, 0, 0, 0, 0
	a.apos, a.crlb, a.gdop, a.routeLifetimes = nil, nil, nil, nil
	a.handovers, a.routeChanges, a.seams, a.routes = 0, 0, 0, 0
}

// RecordAdmission tallies one admission-stage decision into the step's
// breakdown counts.
func (a *Accumulator) RecordAdmission(kind string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch kind {
	case "ACCEPT":
		a.accepted++
	case "REJECT":
		a.rejected++
	case "DEGRADED_ACCEPT":
		a.degraded++
	case "DELAYED_ACCEPT":
		a.delayed++
	case "PARTIAL_ACCEPT":
		a.partial++
	}
}

// RecordFlowSample records one flow's realized throughput and latency,
// sampled when a flow is admitted during the step.
func (a *Accumulator) RecordFlowSample(bandwidthBps, latencyS float64, qoe float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.throughput += bandwidthBps
	a.latencies = append(a.latencies, latencyS)
	a.qoe = append(a.qoe, qoe)
}

// RecordLoss records a packet-loss-rate sample for a link or flow this step.
func (a *Accumulator) RecordLoss(rate float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lossSamples = append(a.lossSamples, rate)
}

// RecordJitter records a latency-jitter sample.
func (a *Accumulator) RecordJitter(s float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.jitter = append(a.jitter, s)
}

// RecordBacklog records one node's queue backlog, used for Jain fairness.
func (a *Accumulator) RecordBacklog(v float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.backlog = append(a.backlog, v)
}

// RecordPositioning records one user's positioning quality sample.
func (a *Accumulator) RecordPositioning(apos, crlb, gdop float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.apos = append(a.apos, apos)
	a.crlb = append(a.crlb, crlb)
	a.gdop = append(a.gdop, gdop)
}

// RecordHandover tallies one predicted handover event this step.
func (a *Accumulator) RecordHandover() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handovers++
}

// RecordRoute tallies a route evaluated this step, marking whether it
// changed from the flow's prior route and whether it crosses a seam.
func (a *Accumulator) RecordRoute(changed, seam bool, lifetimeS float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.routes++
	if changed {
		a.routeChanges++
	}
	if seam {
		a.seams++
	}
	a.routeLifetimes = append(a.routeLifetimes, lifetimeS)
}

// Finish folds the accumulated samples into a StepMetrics, leaving the
// Accumulator's internal state untouched (Reset clears it).
func (a *Accumulator) Finish(stepIndex int, timeS float64) StepMetrics {
	a.mu.Lock()
	defer a.mu.Unlock()

	m := StepMetrics{
		StepIndex:      stepIndex,
		TimeS:          timeS,
		ThroughputBps:  a.throughput,
		LatencyMeanS:   mean(a.latencies),
		LatencyP95S:    percentile(a.latencies, 0.95),
		LatencyP99S:    percentile(a.latencies, 0.99),
		PacketLossRate: mean(a.lossSamples),
		JitterS:        mean(a.jitter),
		JainFairness:   jainFairness(a.backlog),
		QoEMean:        mean(a.qoe),
		Accepted:       a.accepted,
		Rejected:       a.rejected,
		DegradedAccept: a.degraded,
		DelayedAccept:  a.delayed,
		PartialAccept:  a.partial,
		AposMean:       mean(a.apos),
		CRLBMeanM:      mean(a.crlb),
		CRLBP95M:       percentile(a.crlb, 0.95),
		GDOPMean:       mean(a.gdop),
		GDOPP95:        percentile(a.gdop, 0.95),
		AvgRouteLifetimeS: mean(a.routeLifetimes),
	}
	if a.routes > 0 {
		m.RoutingChangeRate = float64(a.routeChanges) / float64(a.routes)
		m.SeamRatio = float64(a.seams) / float64(a.routes)
	}
	m.HandoverRate = float64(a.handovers)
	return m
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func percentile(xs []float64, p float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// jainFairness computes Jain's fairness index over a set of non-negative
// samples, returning 1.0 for the degenerate empty/all-zero case.
func jainFairness(xs []float64) float64 {
	if len(xs) == 0 {
		return 1.0
	}
	var sum, sumSq float64
	for _, x := range xs {
		sum += x
		sumSq += x * x
	}
	if sumSq == 0 {
		return 1.0
	}
	return (sum * sum) / (float64(len(xs)) * sumSq)
}

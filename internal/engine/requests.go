package engine

import (
	"log"
	"math"

	"github.com/skylattice/orbitsim/internal/admission"
	"github.com/skylattice/orbitsim/internal/dsroq"
	"github.com/skylattice/orbitsim/internal/flowstate"
	"github.com/skylattice/orbitsim/internal/metricsagg"
	"github.com/skylattice/orbitsim/internal/positioning"
	"github.com/skylattice/orbitsim/internal/rng"
	"github.com/skylattice/orbitsim/internal/satnet"
)

// processRequest runs one request through Admission and, if forwarded,
// DSROQ, committing an accepted flow to the store and recording its
// outcome (spec.md §4.7 step 4). A DSROQ-stage feasibility failure falls
// back to REJECT: the flow is simply never created, without re-tallying
// Admission's Stats (those already recorded the admission-stage decision).
func (e *Engine) processRequest(
	req flowstate.FlowRequest,
	snap *satnet.NetworkSnapshot,
	posByUser map[satnet.Hash]positioning.Sample,
	hints map[satnet.Hash]positioning.BeamHint,
	stability satnet.RoutingStabilityMetrics,
	orbitPhase, churn, predCap, nowS float64,
	acc *metricsagg.Accumulator,
) {
	dstHash := satnet.GroundHash(req.Dst)
	pos, hasPos := posByUser[dstHash]
	hint := hints[dstHash]
	srcPoint, _ := e.resolver.Resolve(req.Src)
	dstPoint, _ := e.resolver.Resolve(req.Dst)

	in := admission.Input{
		Request: req, Snap: snap, Store: e.store, NowS: nowS,
		Pos: pos, HasPos: hasPos, Hint: hint,
		SrcPoint: srcPoint, DstPoint: dstPoint,
		OrbitPhase: orbitPhase, TopologyChangeRate: churn, PredictedCapacityBps: predCap,
		QoSViolationRate:  e.violationEWMA,
		HandoverPredCount: stability.HandoverPredCount, EarliestHandoverS: stability.EarliestHandoverS,
		SeamFlag: stability.SeamRisk, ContactMarginS: stability.ContactMarginS,
	}

	obs := admission.BuildObservation(in, e.adm.Tracker())
	decision, forwarded, terminal := e.adm.Decide(in)
	acc.RecordAdmission(string(decision.Kind))
	e.hooks.fireAdmission(AdmissionEvent{Request: req, Decision: decision, Observation: obs})

	if terminal {
		if decision.Kind == admission.DelayedAccept {
			e.retries = append(e.retries, pendingRetry{request: forwarded, retryAtS: decision.RetryAtS})
		}
		return
	}

	flow := &flowstate.Flow{Request: forwarded, Class: forwarded.Class, Status: flowstate.StatusPending, StartTimeS: nowS}
	result, err := e.dsroqC.Allocate(dsroq.AllocateInput{
		Flow: flow, Snap: snap, Store: e.store, PositioningByNode: posByUser,
		NowS: nowS, Rand: e.streams.Stream(rng.StreamMCTS),
	})
	if err != nil {
		log.Printf("[engine] dsroq allocate request %s: %v", forwarded.ID, err)
		return
	}
	if err := flow.Transition(flowstate.StatusActive); err != nil {
		log.Printf("[engine] flow %s: %v", forwarded.ID, err)
		return
	}
	if err := e.store.AddFlow(flow, result.Route, result.AllocatedBWBps, snap); err != nil {
		log.Printf("[engine] commit flow %s: %v", forwarded.ID, err)
		return
	}

	e.routeSetAtS[forwarded.ID] = nowS
	e.recordViolation(result, forwarded)
	qoe := e.qoeFor(result, forwarded)
	e.adm.Tracker().RecordQoE(forwarded.Class, qoe, nowS)
	acc.RecordFlowSample(result.AllocatedBWBps, result.ExpectedLatencySec, qoe)
	acc.RecordLoss(1 - result.ExpectedReliability)
}

// qoeFor maps a realized allocation's latency and bandwidth ratios to the
// glossary's [1,5] QoE scalar: a flow that meets its latency budget and
// gets its full requested bandwidth scores 5; exceeding latency or falling
// short of bandwidth both penalize it, down to a floor of 1.
func (e *Engine) qoeFor(result dsroq.AllocationResult, req flowstate.FlowRequest) float64 {
	latRatio := 0.0
	if req.MaxLatencySec > 0 {
		latRatio = result.ExpectedLatencySec / req.MaxLatencySec
	}
	bwRatio := 1.0
	if req.MaxBandwidthBps > 0 {
		bwRatio = result.AllocatedBWBps / req.MaxBandwidthBps
	}
	q := 5.0 - 2.0*math.Max(0, latRatio-1) - 3.0*math.Max(0, 1-bwRatio)
	if q < 1 {
		q = 1
	}
	if q > 5 {
		q = 5
	}
	return q
}

// recordViolation folds whether this allocation exceeded its latency
// budget into the engine's QoS violation-rate EWMA (alpha=0.05), the
// feature admission's Observation Builder reads as "qos_violation_rate".
func (e *Engine) recordViolation(result dsroq.AllocationResult, req flowstate.FlowRequest) {
	const alpha = 0.05
	violated := 0.0
	if req.MaxLatencySec > 0 && result.ExpectedLatencySec > req.MaxLatencySec {
		violated = 1.0
	}
	if !e.haveViolation {
		e.violationEWMA = violated
		e.haveViolation = true
		return
	}
	e.violationEWMA = alpha*violated + (1-alpha)*e.violationEWMA
}

// expireFlows completes every flow whose expected duration has elapsed.
func (e *Engine) expireFlows(nowS float64, snap *satnet.NetworkSnapshot, acc *metricsagg.Accumulator) {
	var done []string
	e.store.Range(func(id string, f *flowstate.Flow) bool {
		if nowS >= f.StartTimeS+f.Request.ExpectedDuration {
			done = append(done, id)
		}
		return true
	})
	for _, id := range done {
		flow, ok := e.store.RemoveFlow(id)
		if !ok {
			continue
		}
		if err := flow.Transition(flowstate.StatusCompleted); err != nil {
			log.Printf("[engine] flow %s: %v", id, err)
		}
		e.dsroqC.ForgetFlow(id)
		lifetime := nowS - e.routeSetAtS[id]
		acc.RecordRoute(false, routeHasSeam(flow.Route, snap), lifetime)
		delete(e.routeSetAtS, id)
		e.hooks.fireFlowComplete(FlowCompleteEvent{Flow: flow, Reason: "completed"})
	}
}

// reconcileRoutes detects topology-invalidated routes (a route whose path
// no longer exists in the current snapshot) and reroutes them through
// DSROQ, subject to its own reroute cooldown (spec.md §4.4.1). Every
// currently active route is also sampled into the step's routing-change
// and seam-ratio metrics, whether or not it needed to change.
func (e *Engine) reconcileRoutes(snap *satnet.NetworkSnapshot, nowS float64, acc *metricsagg.Accumulator) {
	type candidate struct {
		id    string
		valid bool
	}
	var flows []candidate
	e.store.Range(func(id string, f *flowstate.Flow) bool {
		flows = append(flows, candidate{id: id, valid: routeValid(f.Route, snap)})
		return true
	})

	for _, c := range flows {
		if c.valid {
			flow, ok := e.store.GetFlow(c.id)
			if !ok {
				continue
			}
			acc.RecordRoute(false, routeHasSeam(flow.Route, snap), nowS-e.routeSetAtS[c.id])
			continue
		}
		e.rerouteFlow(c.id, snap, nowS, acc)
	}
}

func (e *Engine) rerouteFlow(id string, snap *satnet.NetworkSnapshot, nowS float64, acc *metricsagg.Accumulator) {
	flow, ok := e.store.RemoveFlow(id)
	if !ok {
		return
	}
	if err := flow.Transition(flowstate.StatusRerouting); err != nil {
		log.Printf("[engine] flow %s: %v", id, err)
		return
	}

	result, err := e.dsroqC.Allocate(dsroq.AllocateInput{
		Flow: flow, Snap: snap, Store: e.store, PositioningByNode: nil,
		NowS: nowS, Rand: e.streams.Stream(rng.StreamMCTS),
	})
	if err != nil {
		log.Printf("[engine] reroute flow %s: %v", id, err)
		_ = flow.Transition(flowstate.StatusFailed)
		e.dsroqC.ForgetFlow(id)
		delete(e.routeSetAtS, id)
		e.hooks.fireFlowComplete(FlowCompleteEvent{Flow: flow, Reason: "reroute failed: " + err.Error()})
		return
	}

	if err := e.store.AddFlow(flow, result.Route, result.AllocatedBWBps, snap); err != nil {
		log.Printf("[engine] commit reroute flow %s: %v", id, err)
		_ = flow.Transition(flowstate.StatusFailed)
		e.dsroqC.ForgetFlow(id)
		delete(e.routeSetAtS, id)
		e.hooks.fireFlowComplete(FlowCompleteEvent{Flow: flow, Reason: "reroute commit failed: " + err.Error()})
		return
	}
	if err := flow.Transition(flowstate.StatusActive); err != nil {
		log.Printf("[engine] flow %s: %v", id, err)
	}

	lifetime := nowS - e.routeSetAtS[id]
	e.routeSetAtS[id] = nowS
	acc.RecordRoute(true, routeHasSeam(result.Route, snap), lifetime)
}

// routeValid reports whether every consecutive hop of route is still
// present and active in snap.
func routeValid(route []satnet.Hash, snap *satnet.NetworkSnapshot) bool {
	if len(route) == 0 {
		return false
	}
	for _, h := range route {
		if !snap.HasNode(h) {
			return false
		}
	}
	for i := 0; i+1 < len(route); i++ {
		link, ok := snap.LinkBetween(route[i], route[i+1])
		if !ok || !link.Active {
			return false
		}
	}
	return true
}

func routeHasSeam(route []satnet.Hash, snap *satnet.NetworkSnapshot) bool {
	for i := 0; i+1 < len(route); i++ {
		if link, ok := snap.LinkBetween(route[i], route[i+1]); ok && link.Seam {
			return true
		}
	}
	return false
}

// linkUtilization reads l's real committed utilization from store rather
// than the Topology Oracle snapshot's Link.LoadBps, which is never written
// by either Oracle backend: load is a property of Flow & Queue State, the
// single writer of committed bandwidth (spec.md §5).
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

// meanLinkUtilization averages linkUtilization across every link in snap,
// the same mean the Observation Builder reports as link_util_mean, fed to
// the admission Tracker's 1-minute load prediction window.
func meanLinkUtilization(snap *satnet.NetworkSnapshot, store *flowstate.Store) float64 {
	if snap == nil || len(snap.Links) == 0 {
		return 0
	}
	var sum float64
	for _, l := range snap.Links {
		sum += linkUtilization(l, store)
	}
	return sum / float64(len(snap.Links))
}

// routeLossEstimate approximates a route's loss rate from link utilization,
// mirroring DSROQ's own utilization-degradation reliability model (a
// nominal 0.999 per-link reliability degrading up to 5% near capacity) so
// the scheduler's AF penalty term sees a loss figure on the same scale as
// the allocator's own ExpectedReliability without reaching into DSROQ's
// unexported helpers.
func routeLossEstimate(route []satnet.Hash, snap *satnet.NetworkSnapshot, store *flowstate.Store) float64 {
	rel := 1.0
	for i := 0; i+1 < len(route); i++ {
		link, ok := snap.LinkBetween(route[i], route[i+1])
		if !ok {
			return 1
		}
		rel *= 0.999 * (1 - 0.05*linkUtilization(link, store))
	}
	return 1 - rel
}

// routeLatency sums the latency of every link along route, used as the
// Lyapunov scheduler's per-class path-delay input.
func routeLatency(route []satnet.Hash, snap *satnet.NetworkSnapshot) float64 {
	var total float64
	for i := 0; i+1 < len(route); i++ {
		if l, ok := snap.LinkBetween(route[i], route[i+1]); ok {
			total += l.LatencySec
		}
	}
	return total
}

// queueRatesByNode attributes each active flow's allocated bandwidth as an
// arrival at its route's first node and a service at its last node, a
// simplification of spec.md §4.3's TickQueues input: the spec names
// arrival/service rates without fixing how multi-hop flows attribute them
// across the nodes they traverse.
func (e *Engine) queueRatesByNode() (arrivals, services map[satnet.Hash]float64) {
	arrivals = make(map[satnet.Hash]float64)
	services = make(map[satnet.Hash]float64)
	e.store.Range(func(_ string, f *flowstate.Flow) bool {
		if len(f.Route) == 0 {
			return true
		}
		arrivals[f.Route[0]] += f.AllocatedBWBps
		services[f.Route[len(f.Route)-1]] += f.AllocatedBWBps
		return true
	})
	return arrivals, services
}

// scheduleClasses folds per-class flow statistics into the Lyapunov
// drift-plus-penalty scheduler, advancing each class's virtual queue.
func (e *Engine) scheduleClasses(snap *satnet.NetworkSnapshot) {
	classes := []flowstate.QoSClass{flowstate.ClassEF, flowstate.ClassAF, flowstate.ClassBE}
	type agg struct {
		arrival, minBW, delaySum, lossSum float64
		n                                 int
	}
	totals := make(map[flowstate.QoSClass]*agg, len(classes))
	for _, c := range classes {
		totals[c] = &agg{}
	}
	e.store.Range(func(_ string, f *flowstate.Flow) bool {
		a, ok := totals[f.Class]
		if !ok {
			return true
		}
		a.arrival += f.AllocatedBWBps
		a.minBW += f.Request.MinBandwidthBps
		a.delaySum += routeLatency(f.Route, snap)
		a.lossSum += routeLossEstimate(f.Route, snap, e.store)
		a.n++
		return true
	})

	metrics := make(map[flowstate.QoSClass]dsroq.ClassMetrics, len(classes))
	for _, c := range classes {
		a := totals[c]
		cm := dsroq.ClassMetrics{
			ArrivalRateBps: a.arrival,
			ThroughputBps:  a.arrival,
			MaxLatencySec:  classProfiles[c].maxLatencySec,
		}
		if a.n > 0 {
			cm.MinBandwidthBps = a.minBW / float64(a.n)
			cm.PathDelaySec = a.delaySum / float64(a.n)
			cm.LossRate = a.lossSum / float64(a.n)
		}
		metrics[c] = cm
	}

	var capacityBudget float64
	for _, l := range snap.Links {
		if l.Active {
			capacityBudget += l.CapacityBps
		}
	}

	dsroq.ScheduleServiceRates(e.store, metrics, e.cfg.DSROQ.LossWeight, capacityBudget,
		e.cfg.DSROQ.LyapunovV, e.cfg.DSROQ.QueueBacklogLimit, e.clock.Dt())
}

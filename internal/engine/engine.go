// Package engine implements the Simulation Engine (L7): the single-
// threaded, cooperative main loop that advances simulated time, drains
// arrivals, runs admission and DSROQ for each request in arrival order,
// retries delayed requests, reconciles topology-invalidated routes, ticks
// queues, and fires observability hooks. Grounded on the teacher's
// internal/probe/manager.go worker-pool/stopCh lifecycle idiom and
// cmd/resin/main.go's phased wiring.
package engine

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync/atomic"

	"github.com/skylattice/orbitsim/internal/admission"
	"github.com/skylattice/orbitsim/internal/config"
	"github.com/skylattice/orbitsim/internal/dsroq"
	"github.com/skylattice/orbitsim/internal/flowstate"
	"github.com/skylattice/orbitsim/internal/geo"
	"github.com/skylattice/orbitsim/internal/metricsagg"
	"github.com/skylattice/orbitsim/internal/positioning"
	"github.com/skylattice/orbitsim/internal/rng"
	"github.com/skylattice/orbitsim/internal/satnet"
	"github.com/skylattice/orbitsim/internal/simerrors"
)

// pendingRetry is a delayed request waiting to re-enter the admission
// pipeline at RetryAtS.
type pendingRetry struct {
	request  flowstate.FlowRequest
	retryAtS float64
}

// Engine owns the whole per-run wiring: the Topology Oracle, Positioning
// Engine, Flow & Queue State, DSROQ Core, Admission Controller, and the
// clock that drives them through spec.md §4.7's nine-step loop.
type Engine struct {
	cfg config.Scenario

	clock    *Clock
	oracle   satnet.Oracle
	resolver *geo.Resolver
	pos      *positioning.Engine
	store    *flowstate.Store
	dsroqC   *dsroq.Core
	adm      *admission.Controller
	arrivals *ArrivalProcess
	streams  *rng.Streams
	runID    string

	hooks Hooks

	retries []pendingRetry
	cancelled atomic.Bool

	violationEWMA float64
	haveViolation bool

	routeSetAtS map[string]float64
}

// Config bundles everything New needs beyond the scenario itself.
type Config struct {
	Scenario      config.Scenario
	Oracle        satnet.Oracle
	Resolver      *geo.Resolver
	Positioning   *positioning.Engine
	Admission     *admission.Controller
	Streams       *rng.Streams
	Hooks         Hooks
}

// New builds an Engine ready to Run, wiring the Flow & Queue State and
// DSROQ Core internally from cfg.Scenario.
func New(cfg Config) *Engine {
	store := flowstate.NewStore()
	dsroqC := dsroq.NewCore(cfg.Scenario.DSROQ, cfg.Scenario.Positioning)
	ids := NewIDGenerator(cfg.Streams)

	endpoints := make([]string, 0, len(cfg.Scenario.GroundStations))
	for _, gs := range cfg.Scenario.GroundStations {
		endpoints = append(endpoints, gs.Name)
	}

	e := &Engine{
		cfg:         cfg.Scenario,
		clock:       NewClock(0, float64(cfg.Scenario.Simulation.StepMs)/1000.0),
		oracle:      cfg.Oracle,
		resolver:    cfg.Resolver,
		pos:         cfg.Positioning,
		store:       store,
		dsroqC:      dsroqC,
		adm:         cfg.Admission,
		arrivals:    NewArrivalProcess(cfg.Scenario.Traffic, endpoints, cfg.Streams.Stream(rng.StreamArrivals), ids),
		streams:     cfg.Streams,
		runID:       ids.New(),
		hooks:       cfg.Hooks,
		routeSetAtS: make(map[string]float64),
	}
	return e
}

// Cancel requests a clean stop: the in-flight step finishes, then Run
// returns a cancelled summary (spec.md §4.6: "the current step completes
// to keep state consistent").
func (e *Engine) Cancel() { e.cancelled.Store(true) }

// RunID reports the deterministic run identifier minted at construction
// time, so a caller wiring an external run-artifact writer can tag every
// row with the same ID the eventual RunSummary carries.
func (e *Engine) RunID() string { return e.runID }

// Run drives the engine to its configured horizon (or until Cancel / ctx
// is done), returning the full run summary.
func (e *Engine) Run(ctx context.Context) (RunSummary, error) {
	var steps []metricsagg.StepMetrics
	horizon := e.cfg.Simulation.EndTimeS

	for {
		if e.cancelled.Load() {
			return e.finish(steps, true), nil
		}
		select {
		case <-ctx.Done():
			return e.finish(steps, true), nil
		default:
		}
		if horizon > 0 && e.clock.Now() >= horizon {
			return e.finish(steps, false), nil
		}

		m, err := e.Step()
		if err != nil {
			// Step only ever returns simerrors.Kind-classified errors that
			// Propagates() (Backend/StateInconsistency); every other
			// failure is request-local and contained inside Step itself.
			return e.finish(steps, false), err
		}
		steps = append(steps, m)
	}
}

func (e *Engine) finish(steps []metricsagg.StepMetrics, cancelled bool) RunSummary {
	base := metricsagg.NewRunSummary(e.runID, e.streams.MasterSeed(), cancelled, steps)
	return RunSummary{RunSummary: base, AdmissionTotals: e.adm.Stats()}
}

// Step executes one iteration of spec.md §4.7's main loop and returns its
// folded metrics.
func (e *Engine) Step() (metricsagg.StepMetrics, error) {
	prevT := e.clock.Now()
	t := e.clock.Advance()

	snap, err := e.oracle.SnapshotAt(t)
	if err != nil {
		return metricsagg.StepMetrics{}, fmt.Errorf("%w: snapshot at t=%.3f: %v", simerrors.ErrOracleUnavailable, t, err)
	}

	batch := e.arrivals.Drain(prevT, t)
	batch = append(batch, e.drainDueRetries(t)...)
	for i := range batch {
		batch[i] = e.snapRequestEndpoints(batch[i])
	}
	sort.Slice(batch, func(i, j int) bool {
		if batch[i].ArrivalTimeS != batch[j].ArrivalTimeS {
			return batch[i].ArrivalTimeS < batch[j].ArrivalTimeS
		}
		return batch[i].ID < batch[j].ID
	})

	userIDs := e.activeUserIdentifiers()
	for _, req := range batch {
		userIDs = appendUnique(userIDs, req.Dst)
	}
	posByUser, hints, err := e.pos.ComputeAll(snap, t, userIDs)
	if err != nil {
		return metricsagg.StepMetrics{}, fmt.Errorf("%w: positioning compute at t=%.3f: %v", simerrors.ErrOracleUnavailable, t, err)
	}

	acc := metricsagg.NewAccumulator()

	stability, err := e.oracle.RoutingStabilityMetrics(t)
	if err != nil {
		log.Printf("[engine] routing stability metrics at t=%.3f: %v", t, err)
	}
	orbitPhase, _ := e.oracle.OrbitPhase(t)
	churn, _ := e.oracle.TopologyChangeRate(t)
	predCap, _ := e.oracle.PredictFutureCapacity(t, 60)
	for i := 0; i < stability.HandoverPredCount; i++ {
		acc.RecordHandover()
	}

	for _, req := range batch {
		e.processRequest(req, snap, posByUser, hints, stability, orbitPhase, churn, predCap, t, acc)
	}

	e.expireFlows(t, snap, acc)
	e.reconcileRoutes(snap, t, acc)
	e.recordPositioningSamples(posByUser, acc)

	arrivalsByNode, servicesByNode := e.queueRatesByNode()
	e.store.TickQueues(e.clock.Dt(), arrivalsByNode, servicesByNode)
	e.scheduleClasses(snap)
	e.adm.Tracker().RecordUtilization(meanLinkUtilization(snap, e.store), t)
	for _, node := range sortedNodes(arrivalsByNode, servicesByNode) {
		acc.RecordBacklog(e.store.BacklogAt(node))
	}

	metrics := acc.Finish(int(t/e.clock.Dt()), t)
	e.hooks.fireStep(StepEvent{Metrics: metrics})
	return metrics, nil
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

// snapRequestEndpoints rewrites req's Src/Dst to their nearest registered
// ground station name, a no-op for requests that already name one. Logged
// and left unresolved on failure (e.g. no GeoIP reader configured): the
// request then fails snapshot-membership feasibility inside DSROQ and is
// contained as a REJECT, same as any other feasibility failure.
func (e *Engine) snapRequestEndpoints(req flowstate.FlowRequest) flowstate.FlowRequest {
	if e.resolver == nil {
		return req
	}
	if snapped, err := snapToNearestStation(e.resolver, req.Src); err == nil {
		req.Src = snapped
	} else {
		log.Printf("[engine] snap src endpoint %q: %v", req.Src, err)
	}
	if snapped, err := snapToNearestStation(e.resolver, req.Dst); err == nil {
		req.Dst = snapped
	} else {
		log.Printf("[engine] snap dst endpoint %q: %v", req.Dst, err)
	}
	return req
}

func sortedNodes(a, b map[satnet.Hash]float64) []satnet.Hash {
	seen := make(map[satnet.Hash]bool, len(a)+len(b))
	for n := range a {
		seen[n] = true
	}
	for n := range b {
		seen[n] = true
	}
	out := make([]satnet.Hash, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// activeUserIdentifiers returns the destination identifier of every flow
// currently tracked, the set the Positioning Engine samples each step.
func (e *Engine) activeUserIdentifiers() []string {
	seen := make(map[string]bool)
	e.store.Range(func(_ string, f *flowstate.Flow) bool {
		seen[f.Request.Dst] = true
		return true
	})
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (e *Engine) drainDueRetries(t float64) []flowstate.FlowRequest {
	var due []flowstate.FlowRequest
	var remaining []pendingRetry
	for _, r := range e.retries {
		if r.retryAtS <= t {
			due = append(due, r.request)
		} else {
			remaining = append(remaining, r)
		}
	}
	e.retries = remaining
	return due
}

// recordPositioningSamples feeds this step's positioning quality into the
// accumulator, for every user that has an active flow.
func (e *Engine) recordPositioningSamples(posByUser map[satnet.Hash]positioning.Sample, acc *metricsagg.Accumulator) {
	seen := make(map[satnet.Hash]bool)
	e.store.Range(func(_ string, f *flowstate.Flow) bool {
		h := satnet.GroundHash(f.Request.Dst)
		if seen[h] {
			return true
		}
		seen[h] = true
		if s, ok := posByUser[h]; ok {
			acc.RecordPositioning(s.Apos, s.CRLB, s.GDOP)
		}
		return true
	})
}

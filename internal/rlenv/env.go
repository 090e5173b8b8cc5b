// Package rlenv implements the RL Environment Adapter (L6): it wraps the
// Simulation Engine as the classic five-operation MDP interface spec.md
// §4.6 names (Reset/Step/ObservationSpec/ActionSpec/Seed), delegating the
// feature vector and action space to the Admission package's Observation
// Builder and RLPolicy so the environment and the in-process RL-policy
// path can never drift apart. Grounded on the teacher's cmd/resin/main.go
// phased component wiring, reused here via internal/engine.BuildFromScenario.
package rlenv

import (
	"fmt"

	"github.com/skylattice/orbitsim/internal/admission"
	"github.com/skylattice/orbitsim/internal/config"
	"github.com/skylattice/orbitsim/internal/engine"
	"github.com/skylattice/orbitsim/internal/metricsagg"
)

// bridgeSelector is the ActionSelector the Admission Controller's RLPolicy
// calls into; Env sets its action field immediately before each Step so
// every admission decision made during that one Simulation Engine step
// uses the caller's chosen action (spec.md §4.6: "a single Step
// deterministic given (prior state, action, seed)" — one action per Step
// call, broadcast across however many admission decisions that step
// contains).
type bridgeSelector struct {
	action int
}

func (b *bridgeSelector) SelectAction(_ []float64) int { return b.action }

// Env is one episode's worth of simulation state, reconstructed fresh on
// every Reset so a given (scenario, seed) pair always starts from
// identical state.
type Env struct {
	cfg      config.Scenario
	selector *bridgeSelector

	built       *engine.Built
	lastObs     []float64
	prevQoEMean float64
	stepCount   int
}

// NewEnv builds an Env over cfg; call Reset before the first Step.
func NewEnv(cfg config.Scenario) *Env {
	return &Env{cfg: cfg, selector: &bridgeSelector{}}
}

// ObservationSpec reports the fixed observation vector length and its
// per-index feature names, delegated to admission.ObservationSpec so the
// environment's contract can never drift from what BuildObservation
// actually produces.
func (e *Env) ObservationSpec() (int, []string) { return admission.ObservationSpec() }

// ActionSpec enumerates the discrete admission actions in index order,
// delegated to admission.ActionSpec.
func (e *Env) ActionSpec() []admission.Kind { return admission.ActionSpec() }

// Seed records seed as the environment's master seed. Reset always replaces
// it with its own seed argument, so a value set by Seed does not carry into
// a later Reset; Seed followed by Reset with the same value is equivalent to
// calling Reset(seed) directly.
func (e *Env) Seed(seed uint64) { e.cfg.MasterSeed = seed }

// Reset rebuilds the Topology Oracle, Positioning Engine, Flow & Queue
// State, Admission Controller, and Simulation Engine from scratch under
// seed, and returns the zero-valued initial observation (no admission
// decision has been made yet).
func (e *Env) Reset(seed uint64) ([]float64, error) {
	e.cfg.MasterSeed = seed
	e.cfg.Admission.Policy = config.AdmissionRL

	hooks := engine.Hooks{
		OnAdmission: func(ev engine.AdmissionEvent) {
			if ev.Observation != nil {
				e.lastObs = ev.Observation
			}
		},
	}
	built, err := engine.BuildFromScenario(e.cfg, e.selector, hooks)
	if err != nil {
		return nil, fmt.Errorf("rlenv: reset: %w", err)
	}

	e.built = built
	e.stepCount = 0
	e.prevQoEMean = 0
	n, _ := admission.ObservationSpec()
	e.lastObs = make([]float64, n)
	return e.observation(), nil
}

// Step advances the simulation by exactly one Simulation Engine step
// (spec.md §4.7), applying action to every admission decision made during
// that step, and returns the resulting observation, the spec.md §4.5
// reward, a done flag, and a diagnostic info map.
func (e *Env) Step(action int) (obs []float64, reward float64, done bool, info map[string]any, err error) {
	if e.built == nil {
		return nil, 0, true, nil, fmt.Errorf("rlenv: Step called before Reset")
	}
	e.selector.action = action

	metrics, stepErr := e.built.Engine.Step()
	e.stepCount++
	reward = e.rewardFor(metrics)
	e.prevQoEMean = metrics.QoEMean

	done = stepErr != nil
	if e.cfg.EpisodeSteps > 0 && e.stepCount >= e.cfg.EpisodeSteps {
		done = true
	}

	info = map[string]any{
		"accepted":        metrics.Accepted,
		"rejected":        metrics.Rejected,
		"degraded_accept": metrics.DegradedAccept,
		"delayed_accept":  metrics.DelayedAccept,
		"partial_accept":  metrics.PartialAccept,
		"step_index":      metrics.StepIndex,
	}
	if stepErr != nil {
		info["error"] = stepErr.Error()
	}
	return e.observation(), reward, done, info, stepErr
}

func (e *Env) observation() []float64 {
	out := make([]float64, len(e.lastObs))
	copy(out, e.lastObs)
	return out
}

// rewardFor implements spec.md §4.5's fixed reward formula:
// r = w1*deltaQoE + w2*Jain + w3*Util + w4*Apos - w5*Viol - w6*DelayPen.
// Util and Viol are read off the most recent admission decision's
// observation vector (link_util_mean and qos_violation_rate, indices 0 and
// 9 of admission's fixed feature order) since StepMetrics does not itself
// carry a step-wide utilization or violation figure; DelayPen is the
// fraction of this step's decided requests that were DELAYED_ACCEPT.
func (e *Env) rewardFor(m metricsagg.StepMetrics) float64 {
	w := e.cfg.Admission.RewardWeights
	deltaQoE := m.QoEMean - e.prevQoEMean

	var util, viol float64
	if len(e.lastObs) > 9 {
		util = e.lastObs[0]
		viol = e.lastObs[9]
	}

	total := float64(m.Accepted + m.Rejected + m.DegradedAccept + m.DelayedAccept + m.PartialAccept)
	var delayPen float64
	if total > 0 {
		delayPen = float64(m.DelayedAccept) / total
	}

	return w.WQoe*deltaQoE + w.WFairness*m.JainFairness + w.WUtil*util + w.WApos*m.AposMean -
		w.WViol*viol - w.WDelay*delayPen
}

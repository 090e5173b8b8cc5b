package engine

import (
	"github.com/skylattice/orbitsim/internal/admission"
	"github.com/skylattice/orbitsim/internal/flowstate"
	"github.com/skylattice/orbitsim/internal/metricsagg"
)

// StepEvent is delivered to Hooks.OnStep after a step's metrics have been
// folded, the last event fired for that step (spec.md §4.7: "fire hooks,
// on_step last").
type StepEvent struct {
	Metrics metricsagg.StepMetrics
}

// AdmissionEvent is delivered to Hooks.OnAdmission once per request decided
// this step, independent of whether DSROQ subsequently honored it.
// Observation is the exact feature vector the Observation Builder produced
// for this decision, exposed so an RL Environment Adapter can reuse it
// without recomputing the admission Input itself.
type AdmissionEvent struct {
	Request     flowstate.FlowRequest
	Decision    admission.Decision
	Observation []float64
}

// FlowCompleteEvent is delivered to Hooks.OnFlowComplete when a flow leaves
// the active set, whether by natural completion or failure.
type FlowCompleteEvent struct {
	Flow   *flowstate.Flow
	Reason string
}

// Hooks are the engine's three observability callbacks (spec.md §4.7). Any
// field left nil is simply not invoked; callers that only care about one
// event set the other two to nil.
type Hooks struct {
	OnStep         func(StepEvent)
	OnAdmission    func(AdmissionEvent)
	OnFlowComplete func(FlowCompleteEvent)
}

func (h Hooks) fireStep(e StepEvent) {
	if h.OnStep != nil {
		h.OnStep(e)
	}
}

func (h Hooks) fireAdmission(e AdmissionEvent) {
	if h.OnAdmission != nil {
		h.OnAdmission(e)
	}
}

func (h Hooks) fireFlowComplete(e FlowCompleteEvent) {
	if h.OnFlowComplete != nil {
		h.OnFlowComplete(e)
	}
}

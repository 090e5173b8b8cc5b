package admission

import (
	"github.com/skylattice/orbitsim/internal/config"
	"github.com/skylattice/orbitsim/internal/flowstate"
)

// Policy is the interchangeable admission decision strategy spec.md §4.5
// names (Threshold / Positioning-aware / RL).
type Policy interface {
	Decide(in Input, tr *Tracker) Decision
}

// ActionSelector is the seam an external RL model plugs into: given the
// Observation Builder's vector it returns a discrete action index ("the RL
// model itself is external", spec.md §4.5). Index-to-Kind mapping is fixed
// by ActionSpec.
type ActionSelector interface {
	SelectAction(obs []float64) int
}

// ActionSpec enumerates the RL policy's discrete action space in index
// order.
func ActionSpec() []Kind {
	return []Kind{Accept, Reject, DegradedAccept, DelayedAccept, PartialAccept}
}

// NewPolicy builds the Policy named by cfg.Policy, grounded on the
// teacher's ParseAllocationPolicy tagged-enum switch
// (internal/platform/policy.go); an unrecognized or zero-value kind falls
// back to Threshold, the same "unknown values fall back" compatibility
// stance the teacher takes.
func NewPolicy(cfg config.Admission, selector ActionSelector) Policy {
	switch cfg.Policy {
	case config.AdmissionPosAware:
		return &PosAwarePolicy{inner: NewThresholdPolicy(cfg), cfg: cfg}
	case config.AdmissionRL:
		return &RLPolicy{selector: selector, cfg: cfg}
	default:
		return NewThresholdPolicy(cfg)
	}
}

// ThresholdPolicy applies deterministic rules on link utilization and
// per-class quotas (spec.md §4.5).
type ThresholdPolicy struct {
	cfg config.Admission
}

// NewThresholdPolicy builds a ThresholdPolicy from cfg.
func NewThresholdPolicy(cfg config.Admission) *ThresholdPolicy {
	return &ThresholdPolicy{cfg: cfg}
}

func (p *ThresholdPolicy) Decide(in Input, _ *Tracker) Decision {
	utilMean, _, _ := linkUtilizationStats(in.Snap, in.Store)

	if utilMean >= p.cfg.UtilHighWatermark {
		if in.Request.Class == flowstate.ClassEF {
			return Decision{Kind: DegradedAccept, Confidence: 1,
				Reason: "ef flow degraded: mean link utilization at or above high watermark"}
		}
		return Decision{Kind: Reject, Confidence: 1,
			Reason: "rejected: mean link utilization at or above high watermark"}
	}

	if in.Request.Class == flowstate.ClassEF && p.cfg.EFReservedFrac > 0 {
		counts := classActiveCounts(in.Store)
		total := 1
		for _, c := range counts {
			total += c
		}
		if float64(counts[flowstate.ClassEF]+1)/float64(total) > p.cfg.EFReservedFrac {
			return Decision{Kind: PartialAccept, Confidence: 1,
				Reason: "ef flow partially accepted: ef reserved fraction exceeded"}
		}
	}

	return Decision{Kind: Accept, Confidence: 1, Reason: "accepted"}
}

// PosAwarePolicy layers positioning-quality conditioning on top of a
// ThresholdPolicy: a request that would otherwise be accepted or degraded
// is deferred or further degraded when the destination's positioning
// quality is poor (spec.md §4.5: "on low Apos, prefers DELAYED_ACCEPT or
// DEGRADED_ACCEPT").
type PosAwarePolicy struct {
	inner *ThresholdPolicy
	cfg   config.Admission
}

func (p *PosAwarePolicy) Decide(in Input, tr *Tracker) Decision {
	base := p.inner.Decide(in, tr)
	if base.Kind == Reject {
		return base
	}
	if !in.HasPos || in.Pos.Apos >= p.cfg.AposLowThreshold {
		return base
	}

	if in.Request.Class == flowstate.ClassEF {
		return Decision{Kind: DegradedAccept, Confidence: 1,
			Reason: "ef flow degraded: destination positioning quality below threshold"}
	}
	return Decision{Kind: DelayedAccept, Confidence: 1,
		Reason:   "delayed: destination positioning quality below threshold",
		RetryAtS: in.NowS + p.cfg.DelaySeconds,
	}
}

// RLPolicy forwards the Observation Builder's vector to an externally
// trained model via ActionSelector and translates its discrete action back
// into a Decision.
type RLPolicy struct {
	selector ActionSelector
	cfg      config.Admission
}

func (p *RLPolicy) Decide(in Input, tr *Tracker) Decision {
	obs := BuildObservation(in, tr)
	idx := p.selector.SelectAction(obs)
	actions := ActionSpec()
	if idx < 0 || idx >= len(actions) {
		return Decision{Kind: Reject, Confidence: 0, Reason: "rl policy returned an out-of-range action"}
	}
	kind := actions[idx]
	d := Decision{Kind: kind, Confidence: 1, Reason: "rl policy action"}
	if kind == DelayedAccept {
		d.RetryAtS = in.NowS + p.cfg.DelaySeconds
	}
	return d
}

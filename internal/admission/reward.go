package admission

import "github.com/skylattice/orbitsim/internal/config"

// RewardTerms are the six quantities spec.md §4.5's reward formula combines,
// each already on the scale its weight expects (ΔQoE and Jain in their
// natural ranges, Apos in [0,1], Util in [0,1], violation rate in [0,1],
// delay penalty in seconds or a normalized equivalent the caller chooses
// consistently across a run).
type RewardTerms struct {
	DeltaQoE float64
	Jain     float64
	Util     float64
	Apos     float64
	Viol     float64
	DelayPen float64
}

// Reward computes r = w1*ΔQoE + w2*Jain + w3*Util + w4*Apos - w5*Viol -
// w6*DelayPen (spec.md §4.5). The formula is fixed; only the weights are
// configurable.
func Reward(t RewardTerms, w config.RewardWeights) float64 {
	return w.WQoe*t.DeltaQoE + w.WFairness*t.Jain + w.WUtil*t.Util + w.WApos*t.Apos -
		w.WViol*t.Viol - w.WDelay*t.DelayPen
}

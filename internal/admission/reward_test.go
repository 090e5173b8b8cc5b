package admission

import (
	"math"
	"testing"

	"github.com/skylattice/orbitsim/internal/config"
)

func TestRewardFormula(t *testing.T) {
	w := config.DefaultRewardWeights()
	terms := RewardTerms{DeltaQoE: 1, Jain: 1, Util: 0.5, Apos: 0.8, Viol: 0.1, DelayPen: 0.2}
	got := Reward(terms, w)
	want := w.WQoe*1 + w.WFairness*1 + w.WUtil*0.5 + w.WApos*0.8 - w.WViol*0.1 - w.WDelay*0.2
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Reward() = %v, want %v", got, want)
	}
}

func TestRewardPenalizesViolationsAndDelay(t *testing.T) {
	w := config.DefaultRewardWeights()
	clean := Reward(RewardTerms{DeltaQoE: 1, Jain: 1, Util: 1, Apos: 1}, w)
	penalized := Reward(RewardTerms{DeltaQoE: 1, Jain: 1, Util: 1, Apos: 1, Viol: 1, DelayPen: 1}, w)
	if penalized >= clean {
		t.Errorf("Reward() with violations/delay = %v, want less than clean reward %v", penalized, clean)
	}
}

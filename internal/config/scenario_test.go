package config

import (
	"strings"
	"testing"

	"github.com/skylattice/orbitsim/internal/simerrors"
)

const minimalScenario = `
constellation:
  altitude_km: 550
  inclination_deg: 53
  num_orbits: 6
  sats_per_orbit: 11
  isl_rate_mbps: 10000
  gs_antennas: 4
simulation:
  end_time_s: 120
  step_ms: 1000
ground_stations:
  - name: beijing
    lat: 39.9
    lon: 116.4
  - name: new_york
    lat: 40.7
    lon: -74.0
traffic:
  arrival: poisson_rate
  poisson_rate: 2.5
  class_mix:
    EF: 0.2
    AF: 0.3
    BE: 0.5
admission:
  policy: threshold
dsroq:
  alpha: 0.5
  mcts_iters: 200
  queue_backlog_limit: 5000000
positioning:
  elevation_mask_deg: 10
  crlb_threshold: 50
  min_visible_beams: 3
  min_coop_sats: 2
backend:
  hypatia_mode: simplified
  ns3_mode: simplified
`

func TestParseMinimalScenario(t *testing.T) {
	sc, err := Parse(strings.NewReader(minimalScenario))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if sc.Admission.RewardWeights != DefaultRewardWeights() {
		t.Errorf("expected default reward weights to be applied, got %+v", sc.Admission.RewardWeights)
	}
	if sc.Admission.DegradeBandwidthFactor != 0.8 {
		t.Errorf("expected default degrade bandwidth factor 0.8, got %v", sc.Admission.DegradeBandwidthFactor)
	}
	if sc.Positioning.AposWeights != DefaultAposWeights() {
		t.Errorf("expected default apos weights, got %+v", sc.Positioning.AposWeights)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	bad := minimalScenario + "\nbogus_top_level_key: 1\n"
	if _, err := Parse(strings.NewReader(bad)); err == nil {
		t.Fatalf("expected error for unknown top-level key")
	}
}

func TestValidateRejectsBadClassMix(t *testing.T) {
	bad := strings.Replace(minimalScenario, "BE: 0.5", "BE: 0.6", 1)
	_, err := Parse(strings.NewReader(bad))
	if err == nil {
		t.Fatalf("expected class_mix validation error")
	}
	if simerrors.Classify(err) != simerrors.KindConfig {
		t.Errorf("expected Config kind, got %v", simerrors.Classify(err))
	}
}

func TestValidateRejectsInvalidPolicy(t *testing.T) {
	bad := strings.Replace(minimalScenario, "policy: threshold", "policy: bogus", 1)
	if _, err := Parse(strings.NewReader(bad)); err == nil {
		t.Fatalf("expected admission.policy validation error")
	}
}

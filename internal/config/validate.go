package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/skylattice/orbitsim/internal/simerrors"
)

const classMixTolerance = 1e-6

// Validate checks a Scenario for internal consistency, accumulating every
// problem found (the teacher's LoadEnvConfig style) before returning one
// joined, Config-classified error.
func Validate(sc *Scenario) error {
	var errs []string

	if sc.Constellation.NumOrbits <= 0 {
		errs = append(errs, "constellation.num_orbits must be positive")
	}
	if sc.Constellation.SatsPerOrbit <= 0 {
		errs = append(errs, "constellation.sats_per_orbit must be positive")
	}
	if sc.Constellation.AltitudeKm <= 0 {
		errs = append(errs, "constellation.altitude_km must be positive")
	}
	if sc.Constellation.ISLRateMbps <= 0 {
		errs = append(errs, "constellation.isl_rate_mbps must be positive")
	}

	if sc.Simulation.EndTimeS <= 0 {
		errs = append(errs, "simulation.end_time_s must be positive")
	}
	if sc.Simulation.StepMs <= 0 {
		errs = append(errs, "simulation.step_ms must be positive")
	}
	if !sc.Simulation.OutputFormat.IsValid() {
		errs = append(errs, fmt.Sprintf("simulation.output_format: invalid value %q", sc.Simulation.OutputFormat))
	}

	for i, gs := range sc.GroundStations {
		if gs.Name == "" {
			errs = append(errs, fmt.Sprintf("ground_stations[%d].name must not be empty", i))
		}
		if gs.Lat < -90 || gs.Lat > 90 {
			errs = append(errs, fmt.Sprintf("ground_stations[%d].lat out of range [-90,90]: %v", i, gs.Lat))
		}
		if gs.Lon < -180 || gs.Lon > 180 {
			errs = append(errs, fmt.Sprintf("ground_stations[%d].lon out of range [-180,180]: %v", i, gs.Lon))
		}
	}

	switch sc.Traffic.Arrival {
	case ArrivalPoisson:
		if sc.Traffic.PoissonRate <= 0 {
			errs = append(errs, "traffic.poisson_rate must be positive when arrival=poisson_rate")
		}
	case ArrivalSinusoidal:
		if sc.Traffic.Sinusoidal.PeriodS <= 0 {
			errs = append(errs, "traffic.sinusoidal.period must be positive when arrival=sinusoidal")
		}
	default:
		errs = append(errs, fmt.Sprintf("traffic.arrival: invalid value %q", sc.Traffic.Arrival))
	}

	mixSum := classMixSum(sc.Traffic.ClassMix)
	if math.Abs(mixSum-1.0) > classMixTolerance {
		errs = append(errs, fmt.Sprintf("traffic.class_mix must sum to 1, got %v", mixSum))
	}
	for name, v := range map[string]float64{"EF": sc.Traffic.ClassMix.EF, "AF": sc.Traffic.ClassMix.AF, "BE": sc.Traffic.ClassMix.BE} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Sprintf("traffic.class_mix.%s out of range [0,1]: %v", name, v))
		}
	}

	if !sc.Admission.Policy.IsValid() {
		errs = append(errs, fmt.Sprintf("admission.policy: invalid value %q", sc.Admission.Policy))
	}
	validateRewardWeights(sc.Admission.RewardWeights, &errs)
	if sc.Admission.DegradeBandwidthFactor <= 0 || sc.Admission.DegradeBandwidthFactor > 1 {
		errs = append(errs, "admission.degrade_bandwidth_factor must be in (0,1]")
	}
	if sc.Admission.DegradeLatencyFactor < 1 {
		errs = append(errs, "admission.degrade_latency_factor must be >= 1")
	}

	if sc.DSROQ.Alpha < 0 {
		errs = append(errs, "dsroq.alpha must be non-negative")
	}
	if sc.DSROQ.RerouteCooldownMs < 0 {
		errs = append(errs, "dsroq.reroute_cooldown_ms must be non-negative")
	}
	if sc.DSROQ.MCTSIters <= 0 {
		errs = append(errs, "dsroq.mcts_iters must be positive")
	}
	if sc.DSROQ.MCTSWallMs < 0 {
		errs = append(errs, "dsroq.mcts_wall_ms must be non-negative")
	}
	if sc.DSROQ.QueueBacklogLimit <= 0 {
		errs = append(errs, "dsroq.queue_backlog_limit must be positive")
	}

	if sc.Positioning.MinVisibleBeams < 0 {
		errs = append(errs, "positioning.min_visible_beams must be non-negative")
	}
	if sc.Positioning.MinCoopSats < 0 {
		errs = append(errs, "positioning.min_coop_sats must be non-negative")
	}
	if sc.Positioning.BeamsPerUser <= 0 {
		errs = append(errs, "positioning.beams_per_user must be positive")
	}
	if sc.Positioning.CRLBThreshold <= 0 {
		errs = append(errs, "positioning.crlb_threshold must be positive")
	}

	if !sc.Backend.HypatiaMode.IsValid() {
		errs = append(errs, fmt.Sprintf("backend.hypatia_mode: invalid value %q", sc.Backend.HypatiaMode))
	}
	if !sc.Backend.NS3Mode.IsValid() {
		errs = append(errs, fmt.Sprintf("backend.ns3_mode: invalid value %q", sc.Backend.NS3Mode))
	}
	if sc.Backend.HypatiaMode == BackendReal && sc.Backend.DataDir == "" {
		errs = append(errs, "backend.data_dir is required when backend.hypatia_mode=real")
	}
	if _, err := cron.ParseStandard(sc.Backend.DataRefreshSchedule); err != nil {
		errs = append(errs, fmt.Sprintf("backend.data_refresh_schedule: invalid cron expression %q: %v", sc.Backend.DataRefreshSchedule, err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  %s", simerrors.ErrInvalidConfig, strings.Join(errs, "\n  "))
	}
	return nil
}

func validateRewardWeights(w RewardWeights, errs *[]string) {
	fields := map[string]float64{
		"w_qoe": w.WQoe, "w_fairness": w.WFairness, "w_util": w.WUtil,
		"w_apos": w.WApos, "w_viol": w.WViol, "w_delay": w.WDelay,
	}
	for name, v := range fields {
		if v < 0 {
			*errs = append(*errs, fmt.Sprintf("admission.reward_weights.%s must be non-negative, got %v", name, v))
		}
	}
}

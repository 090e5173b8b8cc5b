// Package config loads and validates the simulator's scenario file, in the
// same accumulate-errors-then-report style as the teacher's
// internal/config/env.go, using gopkg.in/yaml.v3 the way the teacher's
// internal/subscription/parser.go parses subscription documents.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ArrivalKind selects the traffic arrival process.
type ArrivalKind string

const (
	ArrivalPoisson    ArrivalKind = "poisson_rate"
	ArrivalSinusoidal ArrivalKind = "sinusoidal"
)

// AdmissionPolicyKind selects the admission policy implementation.
type AdmissionPolicyKind string

const (
	AdmissionThreshold AdmissionPolicyKind = "threshold"
	AdmissionPosAware  AdmissionPolicyKind = "pos_aware"
	AdmissionRL        AdmissionPolicyKind = "rl"
)

func (k AdmissionPolicyKind) IsValid() bool {
	switch k {
	case AdmissionThreshold, AdmissionPosAware, AdmissionRL:
		return true
	default:
		return false
	}
}

// BackendMode selects faithful vs simplified backends for a subsystem.
type BackendMode string

const (
	BackendReal      BackendMode = "real"
	BackendSimplified BackendMode = "simplified"
)

func (m BackendMode) IsValid() bool {
	return m == BackendReal || m == BackendSimplified
}

// OutputFormat selects the RunSummary output artifact.
type OutputFormat string

const (
	OutputNone   OutputFormat = "none"
	OutputJSON   OutputFormat = "json"
	OutputSQLite OutputFormat = "sqlite"
)

func (f OutputFormat) IsValid() bool {
	switch f {
	case OutputNone, OutputJSON, OutputSQLite, "":
		return true
	default:
		return false
	}
}

// Constellation describes the Walker-style geometry used by the simplified
// Topology Oracle backend, and the nominal ISL/GSL rates used by both.
type Constellation struct {
	AltitudeKm    float64 `yaml:"altitude_km"`
	InclinationDeg float64 `yaml:"inclination_deg"`
	NumOrbits     int     `yaml:"num_orbits"`
	SatsPerOrbit  int     `yaml:"sats_per_orbit"`
	ISLRateMbps   float64 `yaml:"isl_rate_mbps"`
	GSAntennas    int     `yaml:"gs_antennas"`
}

// Simulation controls clock, horizon, and reporting.
type Simulation struct {
	EndTimeS       float64      `yaml:"end_time_s"`
	StepMs         int          `yaml:"step_ms"`
	Routing        string       `yaml:"routing"`
	DetailedLogging bool        `yaml:"detailed_logging"`
	OutputFormat   OutputFormat `yaml:"output_format"`
}

// GroundStation is a named, fixed-position traffic endpoint.
type GroundStation struct {
	Name string  `yaml:"name"`
	Lat  float64 `yaml:"lat"`
	Lon  float64 `yaml:"lon"`
}

// ClassMix is the fractional split of arriving traffic across QoS classes.
// Must sum to 1 (validated).
type ClassMix struct {
	EF float64 `yaml:"EF"`
	AF float64 `yaml:"AF"`
	BE float64 `yaml:"BE"`
}

// Sinusoidal parameterizes a sinusoidal arrival rate base + amplitude*sin(2*pi*t/period).
type Sinusoidal struct {
	Base      float64 `yaml:"base"`
	Amplitude float64 `yaml:"amplitude"`
	PeriodS   float64 `yaml:"period"`
}

// Traffic describes the arrival process and class mix.
type Traffic struct {
	Arrival      ArrivalKind `yaml:"arrival"`
	PoissonRate  float64     `yaml:"poisson_rate"`
	Sinusoidal   Sinusoidal  `yaml:"sinusoidal"`
	ClassMix     ClassMix    `yaml:"class_mix"`
}

// RewardWeights is the explicitly enumerated six-field reward struct spec.md
// §9 requires; unknown YAML keys anywhere in the document fail validation.
type RewardWeights struct {
	WQoe      float64 `yaml:"w_qoe"`
	WFairness float64 `yaml:"w_fairness"`
	WUtil     float64 `yaml:"w_util"`
	WApos     float64 `yaml:"w_apos"`
	WViol     float64 `yaml:"w_viol"`
	WDelay    float64 `yaml:"w_delay"`
}

// DefaultRewardWeights returns the spec's documented defaults
// (1.0, 0.2, 0.2, 0.3, 0.8, 0.3).
func DefaultRewardWeights() RewardWeights {
	return RewardWeights{WQoe: 1.0, WFairness: 0.2, WUtil: 0.2, WApos: 0.3, WViol: 0.8, WDelay: 0.3}
}

// Admission configures the admission controller.
type Admission struct {
	Policy        AdmissionPolicyKind `yaml:"policy"`
	RewardWeights RewardWeights       `yaml:"reward_weights"`

	// Threshold / pos_aware tunables.
	UtilHighWatermark float64 `yaml:"util_high_watermark"`
	EFReservedFrac    float64 `yaml:"ef_reserved_frac"`
	AposLowThreshold  float64 `yaml:"apos_low_threshold"`
	DelaySeconds      float64 `yaml:"delay_seconds"`

	// DegradedAccept scale factors, defaulting to the spec's documented 0.8
	// bandwidth / 1.5 max-latency degrade factors. PartialAccept does not
	// use them.
	DegradeBandwidthFactor float64 `yaml:"degrade_bandwidth_factor"`
	DegradeLatencyFactor   float64 `yaml:"degrade_latency_factor"`
}

// DSROQ configures routing, allocation, and scheduling.
type DSROQ struct {
	Alpha             float64 `yaml:"alpha"`
	KappaSeam         float64 `yaml:"kappa_seam"`
	KappaChg          float64 `yaml:"kappa_chg"`
	LambdaPos         float64 `yaml:"lambda_pos"`
	RerouteCooldownMs int64   `yaml:"reroute_cooldown_ms"`
	MCTSIters         int     `yaml:"mcts_iters"`
	MCTSWallMs        int64   `yaml:"mcts_wall_ms"`
	QueueBacklogLimit float64 `yaml:"queue_backlog_limit"`

	// UCB1 exploration constant and no-improvement patience, additive
	// extensions over the literal §6 key list (needed to realize §4.4.1).
	UCBExploration   float64 `yaml:"ucb_exploration"`
	NoImprovementIters int   `yaml:"no_improvement_iters"`
	MaxHops          int     `yaml:"max_hops"`
	CongestionThreshold float64 `yaml:"congestion_threshold"`

	// Lyapunov V parameter (drift-plus-penalty weight).
	LyapunovV float64 `yaml:"lyapunov_v"`

	// AF penalty term's loss-rate weight (w_loss in the scheduler's
	// qoePenalty), additive since §6 names the penalty without its
	// coefficients.
	LossWeight float64 `yaml:"af_loss_weight"`
}

// AposWeights overrides the default Apos formula coefficients (Open
// Question 1): additive config extension, not in the literal §6 key list.
type AposWeights struct {
	WVisible float64 `yaml:"w_visible"`
	WCoop    float64 `yaml:"w_coop"`
	WCrlb    float64 `yaml:"w_crlb"`
	BTarget  float64 `yaml:"b_target"`
	STarget  float64 `yaml:"s_target"`
}

// DefaultAposWeights returns the spec's fixed default coefficients.
func DefaultAposWeights() AposWeights {
	return AposWeights{WVisible: 0.4, WCoop: 0.4, WCrlb: 0.2, BTarget: 4, STarget: 3}
}

// Positioning configures the Positioning Engine and Beam Hint algorithm.
type Positioning struct {
	ElevationMaskDeg float64     `yaml:"elevation_mask_deg"`
	CRLBThreshold    float64     `yaml:"crlb_threshold"`
	MinVisibleBeams  int         `yaml:"min_visible_beams"`
	MinCoopSats      int         `yaml:"min_coop_sats"`
	BeamsPerUser     int         `yaml:"beams_per_user"`
	WFim             float64     `yaml:"w_fim"`
	WSnr             float64     `yaml:"w_snr"`
	WGeom            float64     `yaml:"w_geom"`
	SNRFloorDb       float64     `yaml:"snr_floor_db"`
	AposWeights      AposWeights `yaml:"apos_weights"`
}

// Backend selects oracle backend modes and the faithful-mode data source.
type Backend struct {
	HypatiaMode BackendMode `yaml:"hypatia_mode"`
	NS3Mode     BackendMode `yaml:"ns3_mode"`
	DataDir     string      `yaml:"data_dir"`

	// Cron schedule for faithful-mode data_dir hot refresh (supplemented
	// feature, grounded on the teacher's GeoIP cron refresh).
	DataRefreshSchedule string `yaml:"data_refresh_schedule"`
}

// RunLog configures the optional sqlite run-artifact writer.
type RunLog struct {
	Path string `yaml:"path"`
}

// Scenario is the top-level document described in spec.md §6.
type Scenario struct {
	Constellation Constellation   `yaml:"constellation"`
	Simulation    Simulation      `yaml:"simulation"`
	GroundStations []GroundStation `yaml:"ground_stations"`
	Traffic       Traffic         `yaml:"traffic"`
	Admission     Admission       `yaml:"admission"`
	DSROQ         DSROQ           `yaml:"dsroq"`
	Positioning   Positioning     `yaml:"positioning"`
	Backend       Backend         `yaml:"backend"`
	RunLog        RunLog          `yaml:"run_log"`

	// MasterSeed seeds the run's single RNG stream; GeoIPPath resolves
	// ad-hoc flow endpoints not present in GroundStations.
	MasterSeed uint64 `yaml:"master_seed"`
	GeoIPPath  string `yaml:"geoip_path"`
	EpisodeSteps int   `yaml:"episode_steps"`
}

// Load reads and parses a scenario document from path, applying defaults
// and then validating it. Validation failures are returned as
// simerrors-Config-classified errors; open, read and YAML decode failures
// are returned wrapped but without a Config classification.
func Load(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario %s: %w", path, err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse decodes a scenario document from r with unknown-key rejection, the
// same "accumulate errors, fail closed" spirit as the teacher's
// LoadEnvConfig, applies defaults, and validates.
func Parse(r io.Reader) (*Scenario, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}

	applyDefaults(&sc)

	if err := Validate(&sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

func applyDefaults(sc *Scenario) {
	if sc.Simulation.StepMs <= 0 {
		sc.Simulation.StepMs = 1000
	}
	if sc.Simulation.OutputFormat == "" {
		sc.Simulation.OutputFormat = OutputJSON
	}
	if sc.Admission.RewardWeights == (RewardWeights{}) {
		sc.Admission.RewardWeights = DefaultRewardWeights()
	}
	if sc.Admission.DegradeBandwidthFactor == 0 {
		sc.Admission.DegradeBandwidthFactor = 0.8
	}
	if sc.Admission.DegradeLatencyFactor == 0 {
		sc.Admission.DegradeLatencyFactor = 1.5
	}
	if sc.Admission.UtilHighWatermark == 0 {
		sc.Admission.UtilHighWatermark = 0.9
	}
	if sc.Admission.AposLowThreshold == 0 {
		sc.Admission.AposLowThreshold = 0.3
	}
	if sc.Admission.DelaySeconds == 0 {
		sc.Admission.DelaySeconds = 5
	}
	if sc.DSROQ.UCBExploration == 0 {
		sc.DSROQ.UCBExploration = 1.41421356
	}
	if sc.DSROQ.NoImprovementIters == 0 {
		sc.DSROQ.NoImprovementIters = 50
	}
	if sc.DSROQ.MaxHops == 0 {
		sc.DSROQ.MaxHops = 12
	}
	if sc.DSROQ.CongestionThreshold == 0 {
		sc.DSROQ.CongestionThreshold = 0.95
	}
	if sc.DSROQ.LyapunovV == 0 {
		sc.DSROQ.LyapunovV = 1.0
	}
	if sc.DSROQ.LossWeight == 0 {
		sc.DSROQ.LossWeight = 1.0
	}
	if sc.Positioning.AposWeights == (AposWeights{}) {
		sc.Positioning.AposWeights = DefaultAposWeights()
	}
	if sc.Positioning.BeamsPerUser == 0 {
		sc.Positioning.BeamsPerUser = 3
	}
	if sc.Backend.DataRefreshSchedule == "" {
		sc.Backend.DataRefreshSchedule = "0 */6 * * *"
	}
	if sc.EpisodeSteps == 0 && sc.Simulation.EndTimeS > 0 && sc.Simulation.StepMs > 0 {
		sc.EpisodeSteps = int(sc.Simulation.EndTimeS * 1000 / float64(sc.Simulation.StepMs))
	}
}

// classMixSum sums the class mix weights; Validate uses it to check that
// the mix sums to one.
func classMixSum(c ClassMix) float64 { return c.EF + c.AF + c.BE }

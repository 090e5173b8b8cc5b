package admission

import (
	"math"

	"github.com/skylattice/orbitsim/internal/flowstate"
	"github.com/skylattice/orbitsim/internal/geo"
	"github.com/skylattice/orbitsim/internal/positioning"
	"github.com/skylattice/orbitsim/internal/satnet"
)

// featureNames fixes the Observation Builder's vector order (spec.md §4.5:
// "assembles a vector ... in a documented fixed order"). ObservationSpec and
// BuildObservation both derive from this single slice so the two can never
// drift apart (spec.md §8: "observation vector length is constant across a
// run and matches ObservationSpec").
var featureNames = []string{
	"link_util_mean", "link_util_max", "link_util_std",
	"ef_active_norm", "af_active_norm", "be_active_norm",
	"qoe_ef", "qoe_af", "qoe_be", "qos_violation_rate",
	"orbit_phase", "topology_change_rate", "predicted_future_capacity_norm",
	"seconds_since_last_admission_norm",
	"class_ef", "class_af", "class_be",
	"min_bandwidth_norm", "max_bandwidth_norm", "max_latency_norm",
	"src_lat_norm", "src_lon_norm", "dst_lat_norm", "dst_lon_norm",
	"expected_duration_norm",
	"crlb_norm", "gdop_norm", "visible_beams_norm", "coop_sats_norm",
	"sinr_mean_norm", "sinr_min_norm", "beam_hint_k",
	"handover_pred_count_norm", "earliest_handover_s_norm", "seam_flag",
	"contact_margin_s_norm",
	"qoe_trend", "admission_rate_history", "load_prediction_1min",
}

// ObservationSpec reports the fixed vector length and its per-index names.
func ObservationSpec() (int, []string) {
	return len(featureNames), featureNames
}

// normalization ceilings used to map raw quantities into [0,1]/[-1,1]
// before they enter the observation vector. Chosen generously relative to
// the scenario schema's plausible ranges (spec.md §6) so realistic values
// never saturate; values beyond the ceiling clamp rather than distort the
// rest of the vector.
const (
	maxBandwidthNormBps   = 1e9
	maxLatencyNormSec     = 2.0
	maxDurationNormSec    = 3600.0
	maxActiveCountNorm    = 256.0
	maxHandoverCountNorm  = 16.0
	maxHandoverHorizonSec = 600.0
	maxContactMarginSec   = 600.0
	maxSecondsSinceAdmit  = 600.0
	maxCapacityNormBps    = 1e10
)

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampSigned(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

func normLatLon(lat, lon float64) (float64, float64) {
	return clampSigned(lat / 90.0), clampSigned(lon / 180.0)
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Input is everything the Observation Builder and the rule-based policies
// need about one pending request, read-only for the duration of a Decide
// call.
type Input struct {
	Request flowstate.FlowRequest
	Snap    *satnet.NetworkSnapshot
	Store   *flowstate.Store
	NowS    float64

	Pos    positioning.Sample
	HasPos bool
	Hint   positioning.BeamHint

	SrcPoint, DstPoint geo.Point

	OrbitPhase           float64
	TopologyChangeRate   float64
	PredictedCapacityBps float64
	QoSViolationRate     float64
	HandoverPredCount    int
	EarliestHandoverS    float64
	SeamFlag             bool
	ContactMarginS       float64
}

// linkUtilizationStats computes mean/max/std utilization across snap's
// links. Each physical link appears once in snap.Links (the Topology
// Oracle's invariant, spec.md §4.1), so no deduplication is needed here.
// Utilization is read from store's committed load rather than the Oracle
// snapshot's Link.LoadBps: the Topology Oracle only ever fills in
// CapacityBps (capacity is a property of the link itself), while load is
// a property of Flow & Queue State, the single writer of committed flow
// bandwidth (spec.md §5: "Flow & Queue State is the single writer").
func linkUtilizationStats(snap *satnet.NetworkSnapshot, store *flowstate.Store) (mean, max, std float64) {
	if snap == nil || len(snap.Links) == 0 {
		return 0, 0, 0
	}
	util := func(l satnet.Link) float64 {
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
	var sum float64
	for _, l := range snap.Links {
		u := util(l)
		sum += u
		if u > max {
			max = u
		}
	}
	n := float64(len(snap.Links))
	mean = sum / n
	var sq float64
	for _, l := range snap.Links {
		d := util(l) - mean
		sq += d * d
	}
	std = math.Sqrt(sq / n)
	return mean, max, std
}

func classActiveCounts(store *flowstate.Store) map[flowstate.QoSClass]int {
	out := map[flowstate.QoSClass]int{flowstate.ClassEF: 0, flowstate.ClassAF: 0, flowstate.ClassBE: 0}
	if store == nil {
		return out
	}
	store.Range(func(_ string, f *flowstate.Flow) bool {
		out[f.Class]++
		return true
	})
	return out
}

func qoeTrendSlope(tr *Tracker, now float64) float64 {
	if tr == nil {
		return 0
	}
	var sum float64
	for _, c := range []flowstate.QoSClass{flowstate.ClassEF, flowstate.ClassAF, flowstate.ClassBE} {
		sum += tr.QoETrend(c, now)
	}
	return sum / 3.0
}

// BuildObservation assembles the fixed-order, fully-clamped observation
// vector the RL policy consumes (spec.md §4.5). tr may be nil, in which
// case every tracker-derived feature reads as zero (used for the very
// first request of a run, before any history exists).
func BuildObservation(in Input, tr *Tracker) []float64 {
	utilMean, utilMax, utilStd := linkUtilizationStats(in.Snap, in.Store)
	counts := classActiveCounts(in.Store)

	var qoeEF, qoeAF, qoeBE, admitRate, loadPred, trend, sinceAdmit float64
	if tr != nil {
		qoeEF = tr.QoETrend(flowstate.ClassEF, in.NowS)
		qoeAF = tr.QoETrend(flowstate.ClassAF, in.NowS)
		qoeBE = tr.QoETrend(flowstate.ClassBE, in.NowS)
		admitRate = tr.AdmissionRate(in.NowS)
		loadPred = tr.PredictedLoad1Min(in.NowS)
		trend = qoeTrendSlope(tr, in.NowS)
		sinceAdmit = tr.TimeSinceLastAdmission(in.NowS)
	}

	srcLat, srcLon := normLatLon(in.SrcPoint.Lat, in.SrcPoint.Lon)
	dstLat, dstLon := normLatLon(in.DstPoint.Lat, in.DstPoint.Lon)

	var crlbNorm, gdopNorm, visibleNorm, coopNorm, sinrMean, sinrMin, beamHintK float64
	if in.HasPos {
		crlbNorm = clamp01(in.Pos.CRLBNorm)
		gdopNorm = clamp01(in.Pos.GDOPNorm)
		visibleNorm = clamp01(float64(in.Pos.VisibleBeams) / maxActiveCountNorm)
		coopNorm = clamp01(float64(in.Pos.CoopSats) / maxActiveCountNorm)
		sinrMean = clampSigned(in.Pos.SINRMeanDb / 40.0)
		sinrMin = clampSigned(in.Pos.SINRMinDb / 40.0)
	}
	if len(in.Hint.Candidates) > 0 {
		beamHintK = clamp01(in.Hint.Candidates[0].Score)
	}

	var classEF, classAF, classBE float64
	switch in.Request.Class {
	case flowstate.ClassEF:
		classEF = 1
	case flowstate.ClassAF:
		classAF = 1
	case flowstate.ClassBE:
		classBE = 1
	}

	return []float64{
		clamp01(utilMean), clamp01(utilMax), clamp01(utilStd),
		clamp01(float64(counts[flowstate.ClassEF]) / maxActiveCountNorm),
		clamp01(float64(counts[flowstate.ClassAF]) / maxActiveCountNorm),
		clamp01(float64(counts[flowstate.ClassBE]) / maxActiveCountNorm),
		clamp01(qoeEF), clamp01(qoeAF), clamp01(qoeBE), clamp01(in.QoSViolationRate),
		clampSigned(in.OrbitPhase), clamp01(in.TopologyChangeRate),
		clamp01(in.PredictedCapacityBps / maxCapacityNormBps),
		clamp01(sinceAdmit / maxSecondsSinceAdmit),
		classEF, classAF, classBE,
		clamp01(in.Request.MinBandwidthBps / maxBandwidthNormBps),
		clamp01(in.Request.MaxBandwidthBps / maxBandwidthNormBps),
		clamp01(in.Request.MaxLatencySec / maxLatencyNormSec),
		srcLat, srcLon, dstLat, dstLon,
		clamp01(in.Request.ExpectedDuration / maxDurationNormSec),
		crlbNorm, gdopNorm, visibleNorm, coopNorm, sinrMean, sinrMin, beamHintK,
		clamp01(float64(in.HandoverPredCount) / maxHandoverCountNorm),
		clamp01(in.EarliestHandoverS / maxHandoverHorizonSec),
		boolFeature(in.SeamFlag),
		clamp01(in.ContactMarginS / maxContactMarginSec),
		clampSigned(trend), clamp01(admitRate), clamp01(loadPred),
	}
}

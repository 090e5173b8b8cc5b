package engine

import (
	"math"

	"github.com/skylattice/orbitsim/internal/config"
	"github.com/skylattice/orbitsim/internal/flowstate"
	"github.com/skylattice/orbitsim/internal/rng"
)

// classProfile fixes the per-class bandwidth/latency/reliability/duration
// envelope an arriving request is drawn from. spec.md §6's scenario schema
// carries only the arrival process and class mix, not per-class traffic
// shape, so this engine supplies representative EF/AF/BE defaults the way
// a reference deployment of such a simulator would: EF narrow and
// latency-strict, BE wide and latency-tolerant.
type classProfile struct {
	minBandwidthBps  float64
	maxBandwidthBps  float64
	maxLatencySec    float64
	minReliability   float64
	meanDurationSec  float64
}

var classProfiles = map[flowstate.QoSClass]classProfile{
	flowstate.ClassEF: {minBandwidthBps: 64_000, maxBandwidthBps: 512_000, maxLatencySec: 0.15, minReliability: 0.999, meanDurationSec: 120},
	flowstate.ClassAF: {minBandwidthBps: 256_000, maxBandwidthBps: 5_000_000, maxLatencySec: 0.4, minReliability: 0.99, meanDurationSec: 300},
	flowstate.ClassBE: {minBandwidthBps: 128_000, maxBandwidthBps: 20_000_000, maxLatencySec: 2.0, minReliability: 0.95, meanDurationSec: 600},
}

// ArrivalProcess draws new flow requests from the scenario's configured
// arrival process (Poisson or sinusoidal-rate), using a thinned
// non-homogeneous-Poisson approximation for the sinusoidal case: the
// instantaneous rate is re-sampled at each candidate arrival instant rather
// than solved for exactly, a standard simplification for a rate function
// with no closed-form inverse CDF.
type ArrivalProcess struct {
	cfg       config.Traffic
	endpoints []string
	rand      *rng.Source
	ids       *IDGenerator

	nextArrivalS float64
	haveNext     bool
}

// NewArrivalProcess builds an ArrivalProcess drawing destinations uniformly
// from endpoints (the scenario's named ground stations).
func NewArrivalProcess(cfg config.Traffic, endpoints []string, rand *rng.Source, ids *IDGenerator) *ArrivalProcess {
	return &ArrivalProcess{cfg: cfg, endpoints: endpoints, rand: rand, ids: ids}
}

func (a *ArrivalProcess) rateAt(t float64) float64 {
	switch a.cfg.Arrival {
	case config.ArrivalSinusoidal:
		s := a.cfg.Sinusoidal
		rate := s.Base + s.Amplitude*math.Sin(2*math.Pi*t/s.PeriodS)
		if rate < 0 {
			rate = 0
		}
		return rate
	default:
		return a.cfg.PoissonRate
	}
}

func (a *ArrivalProcess) drawClass() flowstate.QoSClass {
	mix := a.cfg.ClassMix
	total := mix.EF + mix.AF + mix.BE
	if total <= 0 {
		return flowstate.ClassBE
	}
	r := a.rand.Float64() * total
	if r < mix.EF {
		return flowstate.ClassEF
	}
	if r < mix.EF+mix.AF {
		return flowstate.ClassAF
	}
	return flowstate.ClassBE
}

func (a *ArrivalProcess) drawEndpoints() (src, dst string) {
	if len(a.endpoints) == 0 {
		return "", ""
	}
	src = a.endpoints[a.rand.IntN(len(a.endpoints))]
	dst = src
	for dst == src && len(a.endpoints) > 1 {
		dst = a.endpoints[a.rand.IntN(len(a.endpoints))]
	}
	return src, dst
}

// Drain returns every flow request with an arrival time in (prevT, t],
// advancing the process's internal clock.
func (a *ArrivalProcess) Drain(prevT, t float64) []flowstate.FlowRequest {
	var out []flowstate.FlowRequest
	for {
		if !a.haveNext {
			rate := a.rateAt(prevT)
			if rate <= 0 {
				return out
			}
			a.nextArrivalS = prevT + a.rand.ExpFloat64()/rate
			a.haveNext = true
		}
		if a.nextArrivalS > t {
			return out
		}

		class := a.drawClass()
		profile := classProfiles[class]
		src, dst := a.drawEndpoints()
		out = append(out, flowstate.FlowRequest{
			ID:               a.ids.New(),
			Src:              src,
			Dst:              dst,
			Class:            class,
			MinBandwidthBps:  profile.minBandwidthBps,
			MaxBandwidthBps:  profile.maxBandwidthBps,
			MaxLatencySec:    profile.maxLatencySec,
			MinReliability:   profile.minReliability,
			ExpectedDuration: profile.meanDurationSec * (0.5 + a.rand.Float64()),
			ArrivalTimeS:     a.nextArrivalS,
		})

		rate := a.rateAt(a.nextArrivalS)
		if rate <= 0 {
			a.haveNext = false
			return out
		}
		a.nextArrivalS += a.rand.ExpFloat64() / rate
	}
}

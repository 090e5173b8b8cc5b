package positioning

import (
	"math"

	"github.com/skylattice/orbitsim/internal/config"
	"github.com/skylattice/orbitsim/internal/geo"
	"github.com/skylattice/orbitsim/internal/rng"
	"github.com/skylattice/orbitsim/internal/satnet"
)

// shadowingStdDb is the standard deviation of the log-normal shadowing
// jitter applied to the free-space SINR estimate, a standard simplified
// link-budget refinement.
const shadowingStdDb = 2.0

// candidate is a satellite visible from a user position, above the
// elevation mask and SINR floor, carrying everything both sample
// computation and beam-hint scoring need.
type candidate struct {
	Hash       satnet.Hash
	ElevDeg    float64
	DistanceM  float64
	SinrDb     float64
	East, North float64
}

// visibleCandidates enumerates satellites visible from userPos in snap,
// above cfg.ElevationMaskDeg and cfg.SNRFloorDb, sorted by descending
// elevation (the teacher's convention in satnet.WalkerBackend.SnapshotAt).
func visibleCandidates(snap *satnet.NetworkSnapshot, userPos geo.Point, cfg config.Positioning, noise *rng.Source) []candidate {
	gPos := groundECEF(userPos.Lat, userPos.Lon)

	var out []candidate
	for _, sat := range snap.Satellites {
		satPos := [3]float64{sat.Position.X, sat.Position.Y, sat.Position.Z}
		satRadius := norm(satPos)
		el := elevationDeg(satPos, gPos, satRadius)
		if el < cfg.ElevationMaskDeg {
			continue
		}
		d := norm(sub(satPos, gPos))
		sinr := sinrDb(d)
		if noise != nil {
			sinr += noise.NormFloat64() * shadowingStdDb
		}
		if sinr < cfg.SNRFloorDb {
			continue
		}
		east, north := enuLOS2D(satPos, gPos, userPos.Lat, userPos.Lon)
		out = append(out, candidate{Hash: sat.Hash, ElevDeg: el, DistanceM: d, SinrDb: sinr, East: east, North: north})
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].ElevDeg > out[j-1].ElevDeg; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// measurementVariance converts a candidate's SINR into a per-satellite
// ranging-noise variance for the FIM: higher SINR yields lower variance.
// varianceFloorM2 keeps a very strong link from producing an unrealistic
// zero-variance (infinite-information) measurement.
const varianceFloorM2 = 1.0

func measurementVariance(sinrDb float64) float64 {
	linear := math.Pow(10, sinrDb/10)
	if linear <= 0 {
		return math.Inf(1)
	}
	v := 1e4 / linear
	if v < varianceFloorM2 {
		return varianceFloorM2
	}
	return v
}

// computeSample builds the positioning-quality sample for one user from its
// visible candidates. It draws no randomness itself: any measurement noise
// is already in the candidates' SINR, added by visibleCandidates from the
// RNG stream its caller passes in.
func computeSample(user satnet.Hash, t float64, cands []candidate, cfg config.Positioning) Sample {
	s := Sample{UserHash: user, TimeS: t, VisibleBeams: len(cands), CoopSats: len(cands)}
	if len(cands) < cfg.MinVisibleBeams || len(cands) == 0 {
		s.CRLB, s.GDOP = math.Inf(1), math.Inf(1)
		return s
	}

	los := make([]unitLOS2D, 0, len(cands))
	var sinrSum, sinrMin float64
	sinrMin = math.Inf(1)
	for _, c := range cands {
		los = append(los, unitLOS2D{East: c.East, North: c.North, Variance: measurementVariance(c.SinrDb)})
		sinrSum += c.SinrDb
		if c.SinrDb < sinrMin {
			sinrMin = c.SinrDb
		}
	}
	s.SINRMeanDb = sinrSum / float64(len(cands))
	s.SINRMinDb = sinrMin

	s.CRLB, s.GDOP = crlbAndGDOP(los)
	s.CRLBNorm = clampNorm(s.CRLB, crlbNormLo, crlbNormHi)
	s.GDOPNorm = clampNorm(s.GDOP, gdopNormLo, gdopNormHi)
	s.Apos = computeApos(s.VisibleBeams, s.CoopSats, s.CRLB, cfg.CRLBThreshold, cfg.AposWeights)
	return s
}

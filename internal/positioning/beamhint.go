package positioning

import (
	"sort"

	"github.com/skylattice/orbitsim/internal/config"
	"github.com/skylattice/orbitsim/internal/satnet"
)

// BeamCandidate is one scored recommendation in a BeamHint.
type BeamCandidate struct {
	SatelliteHash satnet.Hash
	Score         float64
	FimGain       float64
	SNRDb         float64
	GeomDiversity float64
}

// BeamHint is the top-k beam recommendation for one user at one time,
// spec.md §3's BeamHint / §4.2's greedy selection output.
type BeamHint struct {
	UserHash   satnet.Hash
	TimeS      float64
	Candidates []BeamCandidate
}

// buildBeamHint runs the greedy marginal-det(J)-gain selection over cands:
// repeatedly pick the candidate whose addition to the already-selected set
// most increases det(J) (the Fisher information determinant, a measure of
// positioning-geometry strength), scored as
//
//	score = w_fim*fimGain_norm + w_snr*snr_norm + w_geom*geom_diversity
//
// until beamsPerUser candidates are chosen or cands is exhausted. Ties
// break by lower handover risk (here: higher elevation, a proxy for longer
// remaining contact time) then by stable satellite-hash order.
func buildBeamHint(user satnet.Hash, t float64, cands []candidate, cfg config.Positioning) BeamHint {
	hint := BeamHint{UserHash: user, TimeS: t}
	if len(cands) == 0 {
		return hint
	}

	ordered := make([]candidate, len(cands))
	copy(ordered, cands)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].ElevDeg != ordered[j].ElevDeg {
			return ordered[i].ElevDeg > ordered[j].ElevDeg
		}
		return hashLess(ordered[i].Hash, ordered[j].Hash)
	})

	k := cfg.BeamsPerUser
	if k <= 0 || k > len(ordered) {
		k = len(ordered)
	}

	var selected []unitLOS2D
	baseDet := 0.0
	remaining := ordered

	maxSinr, minSinr := ordered[0].SinrDb, ordered[0].SinrDb
	for _, c := range ordered {
		if c.SinrDb > maxSinr {
			maxSinr = c.SinrDb
		}
		if c.SinrDb < minSinr {
			minSinr = c.SinrDb
		}
	}

	for len(hint.Candidates) < k && len(remaining) > 0 {
		bestIdx := -1
		var bestGain, bestScore, bestGeom float64
		for i, c := range remaining {
			trial := append(append([]unitLOS2D{}, selected...), unitLOS2D{East: c.East, North: c.North, Variance: measurementVariance(c.SinrDb)})
			j := fisherInformation(trial)
			gain := j.det() - baseDet
			if gain < 0 {
				gain = 0
			}

			geom := geometryDiversity(selected, c)
			snrNorm := 0.0
			if maxSinr > minSinr {
				snrNorm = (c.SinrDb - minSinr) / (maxSinr - minSinr)
			}
			score := cfg.WFim*normalizeFimGain(gain) + cfg.WSnr*snrNorm + cfg.WGeom*geom

			if bestIdx == -1 || score > bestScore ||
				(score == bestScore && tieBreak(c, remaining[bestIdx])) {
				bestIdx, bestGain, bestScore, bestGeom = i, gain, score, geom
			}
		}

		chosen := remaining[bestIdx]
		hint.Candidates = append(hint.Candidates, BeamCandidate{
			SatelliteHash: chosen.Hash, Score: bestScore, FimGain: bestGain,
			SNRDb: chosen.SinrDb, GeomDiversity: bestGeom,
		})
		selected = append(selected, unitLOS2D{East: chosen.East, North: chosen.North, Variance: measurementVariance(chosen.SinrDb)})
		baseDet = fisherInformation(selected).det()
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return hint
}

// tieBreak reports whether a should be preferred over b on a score tie:
// higher elevation (lower handover risk) first, then stable hash order.
func tieBreak(a, b candidate) bool {
	if a.ElevDeg != b.ElevDeg {
		return a.ElevDeg > b.ElevDeg
	}
	return hashLess(a.Hash, b.Hash)
}

func hashLess(a, b satnet.Hash) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// geometryDiversity scores the angular separation (in the 2D ENU plane)
// between a candidate and the already-selected set, normalized to [0,1];
// an empty selection has maximal diversity by convention (first pick never
// penalized).
func geometryDiversity(selected []unitLOS2D, c candidate) float64 {
	if len(selected) == 0 {
		return 1
	}
	minCos := 1.0
	for _, s := range selected {
		dot := s.East*c.East + s.North*c.North
		if dot < minCos {
			minCos = dot
		}
	}
	// dot in [-1,1] where -1 is maximally separated (opposite directions);
	// map to [0,1] diversity with 1 at dot=-1.
	return (1 - minCos) / 2
}

// normalizeFimGain squashes an unbounded determinant gain into [0,1] via a
// saturating curve, so it composes with the other unit-range score terms.
func normalizeFimGain(gain float64) float64 {
	if gain <= 0 {
		return 0
	}
	return gain / (gain + 1)
}

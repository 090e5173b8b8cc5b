package positioning

import "github.com/skylattice/orbitsim/internal/config"

// computeApos scores positioning quality in [0,1], the fixed default
// formula decided for spec.md §9 Open Question 1:
//
//	apos = clamp(w_visible*min(vb/b_target,1) + w_coop*min(cs/s_target,1) +
//	             w_crlb*1[crlb<=threshold], 0, 1)
//
// Callers may override the weights and targets via config.AposWeights; the
// CRLB admissibility threshold comes from the positioning config section
// since it is shared with the feasibility filter in spec.md §4.4.2.
func computeApos(vb, cs int, crlb float64, crlbThreshold float64, w config.AposWeights) float64 {
	if w.BTarget <= 0 {
		w.BTarget = 1
	}
	if w.STarget <= 0 {
		w.STarget = 1
	}

	vbTerm := float64(vb) / w.BTarget
	if vbTerm > 1 {
		vbTerm = 1
	}
	csTerm := float64(cs) / w.STarget
	if csTerm > 1 {
		csTerm = 1
	}
	var crlbTerm float64
	if crlb <= crlbThreshold {
		crlbTerm = 1
	}

	apos := w.WVisible*vbTerm + w.WCoop*csTerm + w.WCrlb*crlbTerm
	if apos < 0 {
		apos = 0
	}
	if apos > 1 {
		apos = 1
	}
	return apos
}

// Package positioning implements the Positioning Engine (L2): per-user
// CRLB/GDOP/visibility features and the Beam Hint recommender. The
// linearized measurement model is reduced to a 2D horizontal-position
// estimate (the azimuthal geometry of visible satellites, rather than a
// full 3D+clock GNSS solution), which keeps the Fisher Information Matrix
// a 2x2 and lets CRLB/GDOP be computed in closed form without pulling in a
// general linear-algebra library absent from the example corpus.
package positioning

import "math"

// mat2 is a 2x2 symmetric matrix [[A,B],[B,D]] (FIM and H^T*H are always
// symmetric for this model, so only three values are tracked).
type mat2 struct {
	A, B, D float64
}

func (m mat2) det() float64 { return m.A*m.D - m.B*m.B }
func (m mat2) trace() float64 { return m.A + m.D }

// inverse returns the matrix inverse and whether it exists (det != 0).
func (m mat2) inverse() (mat2, bool) {
	d := m.det()
	if d == 0 {
		return mat2{}, false
	}
	return mat2{A: m.D / d, B: -m.B / d, D: m.A / d}, true
}

// eigenvalues returns the two real eigenvalues of a symmetric 2x2 matrix,
// largest first.
func (m mat2) eigenvalues() (float64, float64) {
	tr := m.trace()
	d := m.det()
	disc := tr*tr - 4*d
	if disc < 0 {
		disc = 0
	}
	sq := math.Sqrt(disc)
	l1 := (tr + sq) / 2
	l2 := (tr - sq) / 2
	return l1, l2
}

// conditionNumber returns max(|eigenvalue|)/min(|eigenvalue|), or +Inf if
// the matrix is singular or near-singular.
func (m mat2) conditionNumber() float64 {
	l1, l2 := m.eigenvalues()
	a1, a2 := math.Abs(l1), math.Abs(l2)
	if a1 < a2 {
		a1, a2 = a2, a1
	}
	if a2 < 1e-12 {
		return math.Inf(1)
	}
	return a1 / a2
}

// maxConditionNumber bounds the FIM condition number above which the
// engine reports +Inf CRLB/GDOP rather than trust a near-singular inverse
// (spec.md §4.2: "no division by a singular or ill-conditioned J").
const maxConditionNumber = 1e8

// unitLOS2D is a 2D (east, north) unit line-of-sight direction from a user
// to a visible satellite, and the per-satellite measurement variance used
// to weight its contribution to the FIM.
type unitLOS2D struct {
	East, North float64
	Variance    float64
}

// fisherInformation builds J = sum_i (1/variance_i) * u_i * u_i^T.
func fisherInformation(los []unitLOS2D) mat2 {
	var j mat2
	for _, u := range los {
		if u.Variance <= 0 {
			continue
		}
		w := 1 / u.Variance
		j.A += w * u.East * u.East
		j.B += w * u.East * u.North
		j.D += w * u.North * u.North
	}
	return j
}

// geometryMatrix builds H^T*H (R = identity) for the GDOP formula.
func geometryMatrix(los []unitLOS2D) mat2 {
	var h mat2
	for _, u := range los {
		h.A += u.East * u.East
		h.B += u.East * u.North
		h.D += u.North * u.North
	}
	return h
}

// crlbAndGDOP computes CRLB = trace(J^-1) and GDOP = sqrt(trace((H^T H)^-1)),
// returning +Inf for either when the respective matrix is ill-conditioned.
func crlbAndGDOP(los []unitLOS2D) (crlb, gdop float64) {
	j := fisherInformation(los)
	if j.conditionNumber() > maxConditionNumber {
		crlb = math.Inf(1)
	} else if inv, ok := j.inverse(); ok {
		crlb = inv.trace()
	} else {
		crlb = math.Inf(1)
	}

	hth := geometryMatrix(los)
	if hth.conditionNumber() > maxConditionNumber {
		gdop = math.Inf(1)
	} else if inv, ok := hth.inverse(); ok {
		t := inv.trace()
		if t < 0 {
			t = 0
		}
		gdop = math.Sqrt(t)
	} else {
		gdop = math.Inf(1)
	}
	return
}

// clampNorm maps value into [0,1] given bounds [lo,hi], where lower raw
// value is better (as for CRLB/GDOP): norm = clamp((hi-value)/(hi-lo),0,1).
func clampNorm(value, lo, hi float64) float64 {
	if math.IsInf(value, 1) || hi <= lo {
		return 0
	}
	n := (hi - value) / (hi - lo)
	if n < 0 {
		return 0
	}
	if n > 1 {
		return 1
	}
	return n
}

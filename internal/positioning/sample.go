package positioning

import "github.com/skylattice/orbitsim/internal/satnet"

// Sample is one user's positioning-quality snapshot at a simulated time,
// spec.md §3's PositioningSample.
type Sample struct {
	UserHash     satnet.Hash
	TimeS        float64
	VisibleBeams int
	CoopSats     int
	SINRMeanDb   float64
	SINRMinDb    float64
	CRLB         float64
	CRLBNorm     float64
	GDOP         float64
	GDOPNorm     float64
	Apos         float64
}

// crlbNormHi/gdopNormHi bound the normalization range used by clampNorm;
// values at or above these are reported as zero quality.
const (
	crlbNormLo = 0.0
	crlbNormHi = 1e6
	gdopNormLo = 0.0
	gdopNormHi = 50.0
)

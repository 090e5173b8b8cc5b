package satnet

import (
	"fmt"
	"math"
	"sort"

	"github.com/skylattice/orbitsim/internal/config"
)

const (
	earthRadiusM  = 6_371_000.0
	earthMu       = 3.986004418e14 // m^3/s^2
	speedOfLightM = 299_792_458.0
	changeWindowS = 1.0
)

// WalkerBackend places satellites on ideal circular Walker-delta orbits and
// derives links/visibility geometrically, per spec.md §4.1's "simplified"
// mode. It is stateless aside from static constellation parameters; every
// SnapshotAt call recomputes geometry from t, which is what makes results
// bit-identical for repeated calls at the same t (callers typically wrap
// this backend in the otter-backed Cache from cache.go).
type WalkerBackend struct {
	numOrbits    int
	satsPerOrbit int
	altitudeM    float64
	inclinationRad float64
	periodS      float64
	islRateBps   float64
	gslRateBps   float64
	elevationMaskDeg float64
	grounds      []Ground
	epochS       float64
}

// NewWalkerBackend builds a WalkerBackend from scenario configuration. The
// per-satellite GSL rate defaults to a tenth of the ISL rate, a design
// decision documented in DESIGN.md since the scenario schema does not name
// a separate GSL rate field.
func NewWalkerBackend(c config.Constellation, grounds []config.GroundStation, elevationMaskDeg float64) (*WalkerBackend, error) {
	if c.NumOrbits <= 0 || c.SatsPerOrbit <= 0 {
		return nil, fmt.Errorf("walker backend: invalid constellation geometry")
	}
	altM := c.AltitudeKm * 1000
	a := earthRadiusM + altM
	period := 2 * math.Pi * math.Sqrt(a*a*a/earthMu)

	gs := make([]Ground, 0, len(grounds))
	for _, g := range grounds {
		gs = append(gs, Ground{Hash: GroundHash(g.Name), Name: g.Name, LatDeg: g.Lat, LonDeg: g.Lon})
	}

	return &WalkerBackend{
		numOrbits:        c.NumOrbits,
		satsPerOrbit:     c.SatsPerOrbit,
		altitudeM:        altM,
		inclinationRad:   c.InclinationDeg * math.Pi / 180,
		periodS:          period,
		islRateBps:       c.ISLRateMbps * 1e6,
		gslRateBps:       c.ISLRateMbps * 1e6 / 10,
		elevationMaskDeg: elevationMaskDeg,
		grounds:          gs,
		epochS:           0,
	}, nil
}

func (w *WalkerBackend) EpochS() float64 { return w.epochS }

// satECEF computes a satellite's ECEF position at time t using a circular
// orbit approximation; Earth rotation is ignored (ECEF == ECI at t=0
// convention), acceptable for a simplified-mode backend.
func (w *WalkerBackend) satECEF(orbitIdx, slotIdx int, t float64) ECEF {
	raan := 2 * math.Pi * float64(orbitIdx) / float64(w.numOrbits)
	// Walker-delta phasing factor F=1: adjacent planes are phase-offset.
	phaseOffset := 2 * math.Pi * float64(orbitIdx) / float64(w.numOrbits*w.satsPerOrbit)
	meanAnomaly := 2*math.Pi*float64(slotIdx)/float64(w.satsPerOrbit) + 2*math.Pi*t/w.periodS + phaseOffset

	r := earthRadiusM + w.altitudeM
	// Position in the orbital plane (x toward ascending node direction).
	xp := r * math.Cos(meanAnomaly)
	yp := r * math.Sin(meanAnomaly)

	// Rotate by inclination about the x-axis of the plane frame, then by
	// RAAN about Z.
	yi := yp * math.Cos(w.inclinationRad)
	zi := yp * math.Sin(w.inclinationRad)

	x := xp*math.Cos(raan) - yi*math.Sin(raan)
	y := xp*math.Sin(raan) + yi*math.Cos(raan)
	z := zi

	return ECEF{X: x, Y: y, Z: z}
}

func groundECEF(latDeg, lonDeg float64) ECEF {
	lat := latDeg * math.Pi / 180
	lon := lonDeg * math.Pi / 180
	return ECEF{
		X: earthRadiusM * math.Cos(lat) * math.Cos(lon),
		Y: earthRadiusM * math.Cos(lat) * math.Sin(lon),
		Z: earthRadiusM * math.Sin(lat),
	}
}

func distanceM(a, b ECEF) float64 {
	dx, dy, dz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// elevationDeg computes the elevation angle (degrees) of a satellite as
// seen from a ground point, via the law-of-cosines circular-orbit formula:
// sin(el) = (Re^2 + d^2 - Rs^2) / (2*Re*d).
func elevationDeg(satPos, groundPos ECEF, satRadius float64) float64 {
	d := distanceM(satPos, groundPos)
	if d == 0 {
		return 90
	}
	sinEl := (earthRadiusM*earthRadiusM + d*d - satRadius*satRadius) / (2 * earthRadiusM * d)
	if sinEl > 1 {
		sinEl = 1
	}
	if sinEl < -1 {
		sinEl = -1
	}
	return math.Asin(sinEl) * 180 / math.Pi
}

func ecefToLatLon(p ECEF) (latDeg, lonDeg float64) {
	r := math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
	if r == 0 {
		return 0, 0
	}
	lat := math.Asin(p.Z / r)
	lon := math.Atan2(p.Y, p.X)
	return lat * 180 / math.Pi, lon * 180 / math.Pi
}

// SnapshotAt builds the full satellite/link topology at time t.
func (w *WalkerBackend) SnapshotAt(t float64) (*NetworkSnapshot, error) {
	if t < w.epochS {
		return &NetworkSnapshot{TimeS: t, WarmingUp: true}, nil
	}

	satRadius := earthRadiusM + w.altitudeM
	snap := &NetworkSnapshot{TimeS: t}
	positions := make(map[Hash]ECEF, w.numOrbits*w.satsPerOrbit)

	for i := 0; i < w.numOrbits; i++ {
		for j := 0; j < w.satsPerOrbit; j++ {
			h := SatelliteHash(i, j)
			pos := w.satECEF(i, j, t)
			lat, lon := ecefToLatLon(pos)
			positions[h] = pos
			snap.Satellites = append(snap.Satellites, Satellite{
				Hash: h, OrbitIdx: i, SlotIdx: j, Position: pos,
				LatDeg: lat, LonDeg: lon, AltKm: w.altitudeM / 1000,
				SpareCapacity: 1.0,
			})
		}
	}

	// Intra-plane ring ISLs.
	for i := 0; i < w.numOrbits; i++ {
		for j := 0; j < w.satsPerOrbit; j++ {
			a := SatelliteHash(i, j)
			b := SatelliteHash(i, (j+1)%w.satsPerOrbit)
			d := distanceM(positions[a], positions[b])
			snap.Links = append(snap.Links, Link{
				A: a, B: b, Kind: LinkISL, CapacityBps: w.islRateBps,
				LatencySec: d / speedOfLightM, Active: true, DistanceKm: d / 1000,
			})
		}
	}

	// Inter-plane ISLs, same slot index across adjacent orbits. The link
	// between the last and first orbit crosses the constellation seam.
	for i := 0; i < w.numOrbits; i++ {
		next := (i + 1) % w.numOrbits
		if w.numOrbits == 1 {
			continue
		}
		seam := next == 0 && i == w.numOrbits-1
		for j := 0; j < w.satsPerOrbit; j++ {
			a := SatelliteHash(i, j)
			b := SatelliteHash(next, j)
			d := distanceM(positions[a], positions[b])
			snap.Links = append(snap.Links, Link{
				A: a, B: b, Kind: LinkISL, CapacityBps: w.islRateBps,
				LatencySec: d / speedOfLightM, Active: true, Seam: seam, DistanceKm: d / 1000,
			})
		}
	}

	// GSL: each ground station links to every satellite above the
	// elevation mask.
	for _, g := range w.grounds {
		gpos := groundECEF(g.LatDeg, g.LonDeg)
		snap.Grounds = append(snap.Grounds, g)
		type cand struct {
			hash Hash
			elev float64
			dist float64
		}
		var visible []cand
		for h, pos := range positions {
			el := elevationDeg(pos, gpos, satRadius)
			if el >= w.elevationMaskDeg {
				visible = append(visible, cand{hash: h, elev: el, dist: distanceM(pos, gpos)})
			}
		}
		sort.Slice(visible, func(a, b int) bool { return visible[a].elev > visible[b].elev })
		for _, c := range visible {
			snap.Links = append(snap.Links, Link{
				A: g.Hash, B: c.hash, Kind: LinkGSL, CapacityBps: w.gslRateBps,
				LatencySec: c.dist / speedOfLightM, Active: true, DistanceKm: c.dist / 1000,
			})
		}
	}

	snap.Build()
	return snap, nil
}

func (w *WalkerBackend) LinkCapacity(t float64) (map[[2]Hash]float64, error) {
	s, err := w.SnapshotAt(t)
	if err != nil {
		return nil, err
	}
	return s.LinkCapacity(), nil
}

func (w *WalkerBackend) LinkUtilization(t float64) (map[[2]Hash]float64, error) {
	s, err := w.SnapshotAt(t)
	if err != nil {
		return nil, err
	}
	return s.LinkUtilization(), nil
}

func (w *WalkerBackend) OrbitPhase(t float64) (float64, error) {
	phase := math.Mod(t, w.periodS) / w.periodS
	if phase < 0 {
		phase += 1
	}
	return phase, nil
}

func (w *WalkerBackend) TopologyChangeRate(t float64) (float64, error) {
	cur, err := w.SnapshotAt(t)
	if err != nil {
		return 0, err
	}
	prev, err := w.SnapshotAt(t - changeWindowS)
	if err != nil {
		return 0, err
	}
	return linkSetChangeRate(prev, cur), nil
}

func linkSetChangeRate(prev, cur *NetworkSnapshot) float64 {
	prevSet := make(map[[2]Hash]bool, len(prev.Links))
	for _, l := range prev.Links {
		if l.Active {
			prevSet[[2]Hash{l.A, l.B}] = true
		}
	}
	curSet := make(map[[2]Hash]bool, len(cur.Links))
	for _, l := range cur.Links {
		if l.Active {
			curSet[[2]Hash{l.A, l.B}] = true
		}
	}
	union := 0
	changed := 0
	seen := make(map[[2]Hash]bool, len(prevSet)+len(curSet))
	for k := range prevSet {
		seen[k] = true
	}
	for k := range curSet {
		seen[k] = true
	}
	for k := range seen {
		union++
		if prevSet[k] != curSet[k] {
			changed++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(changed) / float64(union)
}

// PredictFutureCapacity forecasts total available capacity at t+h by
// taking the topology that will exist at t+h and applying the aggregate
// utilization ratio observed at t, a smoothing choice documented since the
// spec leaves the forecast method unspecified.
func (w *WalkerBackend) PredictFutureCapacity(t, h float64) (float64, error) {
	cur, err := w.SnapshotAt(t)
	if err != nil {
		return 0, err
	}
	future, err := w.SnapshotAt(t + h)
	if err != nil {
		return 0, err
	}
	var curCap, curLoad float64
	for _, l := range cur.Links {
		if l.Active {
			curCap += l.CapacityBps
			curLoad += l.LoadBps
		}
	}
	utilRatio := 0.0
	if curCap > 0 {
		utilRatio = curLoad / curCap
	}
	var futureCap float64
	for _, l := range future.Links {
		if l.Active {
			futureCap += l.CapacityBps
		}
	}
	return futureCap * (1 - utilRatio), nil
}

func (w *WalkerBackend) RoutingStabilityMetrics(t float64) (RoutingStabilityMetrics, error) {
	const window = 30.0
	const step = 5.0

	metrics := RoutingStabilityMetrics{EarliestHandoverS: -1, ContactMarginS: window}
	if len(w.grounds) == 0 {
		return metrics, nil
	}
	g := w.grounds[0]
	gpos := groundECEF(g.LatDeg, g.LonDeg)
	satRadius := earthRadiusM + w.altitudeM

	dominant := func(at float64) Hash {
		var best Hash
		bestEl := -1000.0
		for i := 0; i < w.numOrbits; i++ {
			for j := 0; j < w.satsPerOrbit; j++ {
				pos := w.satECEF(i, j, at)
				el := elevationDeg(pos, gpos, satRadius)
				if el > bestEl {
					bestEl = el
					best = SatelliteHash(i, j)
				}
			}
		}
		return best
	}

	prev := dominant(t)
	for dt := step; dt <= window; dt += step {
		cur := dominant(t + dt)
		if cur != prev {
			metrics.HandoverPredCount++
			if metrics.EarliestHandoverS < 0 {
				metrics.EarliestHandoverS = dt
				metrics.ContactMarginS = dt
			}
			prev = cur
		}
	}
	if metrics.EarliestHandoverS < 0 {
		metrics.EarliestHandoverS = window
	}

	rate, err := w.TopologyChangeRate(t)
	if err == nil && rate > 0 {
		metrics.SeamRisk = true
	}
	return metrics, nil
}

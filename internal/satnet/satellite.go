package satnet

// ECEF is an Earth-Centered-Earth-Fixed position in meters.
type ECEF struct {
	X, Y, Z float64
}

// NodeKind distinguishes satellites from ground stations in a snapshot's
// unified node addressing.
type NodeKind int

const (
	NodeSatellite NodeKind = iota
	NodeGround
)

// Satellite is a point-in-time satellite state. Lifetime is the run; only
// the Topology Oracle mutates the orbital position between snapshots.
type Satellite struct {
	Hash        Hash
	OrbitIdx    int
	SlotIdx     int
	Position    ECEF
	LatDeg      float64
	LonDeg      float64
	AltKm       float64
	SpareCapacity float64 // fraction of onboard capacity not committed, [0,1]
}

// Ground is a fixed ground station or ad hoc endpoint resolved to a point.
type Ground struct {
	Hash   Hash
	Name   string
	LatDeg float64
	LonDeg float64
}

package satnet

import (
	"testing"

	"github.com/skylattice/orbitsim/internal/config"
)

func testBackend(t *testing.T) *WalkerBackend {
	t.Helper()
	b, err := NewWalkerBackend(
		config.Constellation{AltitudeKm: 550, InclinationDeg: 53, NumOrbits: 6, SatsPerOrbit: 11, ISLRateMbps: 10000},
		[]config.GroundStation{{Name: "beijing", Lat: 39.9, Lon: 116.4}, {Name: "new_york", Lat: 40.7, Lon: -74.0}},
		25,
	)
	if err != nil {
		t.Fatalf("NewWalkerBackend() error = %v", err)
	}
	return b
}

func TestSnapshotDeterministic(t *testing.T) {
	b := testBackend(t)
	s1, err := b.SnapshotAt(10)
	if err != nil {
		t.Fatalf("SnapshotAt() error = %v", err)
	}
	s2, err := b.SnapshotAt(10)
	if err != nil {
		t.Fatalf("SnapshotAt() error = %v", err)
	}
	if len(s1.Satellites) != len(s2.Satellites) || len(s1.Links) != len(s2.Links) {
		t.Fatalf("snapshots at identical t diverged in shape")
	}
	for i := range s1.Satellites {
		if s1.Satellites[i].Hash != s2.Satellites[i].Hash || s1.Satellites[i].LatDeg != s2.Satellites[i].LatDeg {
			t.Fatalf("satellite %d diverged between identical-t snapshots", i)
		}
	}
}

func TestSnapshotHasExpectedSatelliteCount(t *testing.T) {
	b := testBackend(t)
	s, err := b.SnapshotAt(0)
	if err != nil {
		t.Fatalf("SnapshotAt() error = %v", err)
	}
	want := 6 * 11
	if len(s.Satellites) != want {
		t.Errorf("len(Satellites) = %d, want %d", len(s.Satellites), want)
	}
}

func TestLinkCapacityNeverNegativeUtilization(t *testing.T) {
	b := testBackend(t)
	s, err := b.SnapshotAt(5)
	if err != nil {
		t.Fatalf("SnapshotAt() error = %v", err)
	}
	for _, l := range s.Links {
		if l.CapacityBps <= 0 {
			t.Errorf("link %s-%s has non-positive capacity", l.A, l.B)
		}
		if u := l.Utilization(); u < 0 || u > 1 {
			t.Errorf("link %s-%s utilization out of range: %v", l.A, l.B, u)
		}
	}
}

func TestOrbitPhaseInRange(t *testing.T) {
	b := testBackend(t)
	for _, tt := range []float64{0, 1234, 987654} {
		phase, err := b.OrbitPhase(tt)
		if err != nil {
			t.Fatalf("OrbitPhase() error = %v", err)
		}
		if phase < 0 || phase >= 1 {
			t.Errorf("OrbitPhase(%v) = %v, want [0,1)", tt, phase)
		}
	}
}

func TestWarmingUpBeforeEpoch(t *testing.T) {
	b := testBackend(t)
	s, err := b.SnapshotAt(b.EpochS() - 1)
	if err != nil {
		t.Fatalf("SnapshotAt() error = %v", err)
	}
	if !s.WarmingUp {
		t.Errorf("expected WarmingUp before epoch")
	}
	if len(s.Satellites) != 0 {
		t.Errorf("expected empty snapshot before epoch")
	}
}

func TestGroundStationsGetGSLLinksWhenVisible(t *testing.T) {
	b := testBackend(t)
	s, err := b.SnapshotAt(0)
	if err != nil {
		t.Fatalf("SnapshotAt() error = %v", err)
	}
	found := false
	for _, l := range s.Links {
		if l.Kind == LinkGSL {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("expected at least one GSL link across the constellation")
	}
}

func TestTopologyChangeRateBounded(t *testing.T) {
	b := testBackend(t)
	rate, err := b.TopologyChangeRate(100)
	if err != nil {
		t.Fatalf("TopologyChangeRate() error = %v", err)
	}
	if rate < 0 || rate > 1 {
		t.Errorf("TopologyChangeRate() = %v, want [0,1]", rate)
	}
}

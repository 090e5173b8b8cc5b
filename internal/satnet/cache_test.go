package satnet

import (
	"testing"

	"github.com/skylattice/orbitsim/internal/config"
)

func TestCacheReturnsIdenticalSnapshotForSameTime(t *testing.T) {
	b, err := NewWalkerBackend(
		config.Constellation{AltitudeKm: 550, InclinationDeg: 53, NumOrbits: 3, SatsPerOrbit: 4, ISLRateMbps: 1000},
		[]config.GroundStation{{Name: "a", Lat: 0, Lon: 0}},
		25,
	)
	if err != nil {
		t.Fatalf("NewWalkerBackend() error = %v", err)
	}
	c, err := NewCache(b, 8)
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}
	defer c.Close()

	s1, err := c.SnapshotAt(42)
	if err != nil {
		t.Fatalf("SnapshotAt() error = %v", err)
	}
	s2, err := c.SnapshotAt(42)
	if err != nil {
		t.Fatalf("SnapshotAt() error = %v", err)
	}
	if s1 != s2 {
		t.Errorf("expected cached snapshot to be the identical pointer across calls")
	}
}

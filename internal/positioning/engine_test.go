package positioning

import (
	"testing"

	"github.com/skylattice/orbitsim/internal/config"
	"github.com/skylattice/orbitsim/internal/geo"
	"github.com/skylattice/orbitsim/internal/rng"
	"github.com/skylattice/orbitsim/internal/satnet"
)

func newTestEngine(t *testing.T) (*Engine, *satnet.WalkerBackend) {
	t.Helper()
	backend, err := satnet.NewWalkerBackend(
		config.Constellation{AltitudeKm: 550, InclinationDeg: 53, NumOrbits: 6, SatsPerOrbit: 11, ISLRateMbps: 10000},
		[]config.GroundStation{{Name: "beijing", Lat: 39.9, Lon: 116.4}},
		25,
	)
	if err != nil {
		t.Fatalf("NewWalkerBackend() error = %v", err)
	}

	resolver := geo.NewResolver([]config.GroundStation{{Name: "beijing", Lat: 39.9, Lon: 116.4}}, nil)
	cfg := config.Positioning{
		ElevationMaskDeg: 25, CRLBThreshold: 1e5, MinVisibleBeams: 1, MinCoopSats: 1,
		BeamsPerUser: 3, WFim: 0.5, WSnr: 0.3, WGeom: 0.2, SNRFloorDb: -50,
		AposWeights: config.DefaultAposWeights(),
	}
	engine, err := NewEngine(cfg, resolver, rng.NewStreams(1), 4, 64)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	t.Cleanup(engine.Close)
	return engine, backend
}

func TestComputeAllReturnsSampleAndHintPerUser(t *testing.T) {
	engine, backend := newTestEngine(t)
	snap, err := backend.SnapshotAt(0)
	if err != nil {
		t.Fatalf("SnapshotAt() error = %v", err)
	}

	samples, hints, err := engine.ComputeAll(snap, 0, []string{"beijing"})
	if err != nil {
		t.Fatalf("ComputeAll() error = %v", err)
	}
	user := satnet.GroundHash("beijing")
	s, ok := samples[user]
	if !ok {
		t.Fatalf("missing sample for user")
	}
	if s.VisibleBeams <= 0 {
		t.Errorf("VisibleBeams = %d, want > 0", s.VisibleBeams)
	}
	if _, ok := hints[user]; !ok {
		t.Fatalf("missing beam hint for user")
	}
}

func TestComputeAllCachesResultForSameTime(t *testing.T) {
	engine, backend := newTestEngine(t)
	snap, err := backend.SnapshotAt(0)
	if err != nil {
		t.Fatalf("SnapshotAt() error = %v", err)
	}

	s1, _, err := engine.ComputeAll(snap, 0, []string{"beijing"})
	if err != nil {
		t.Fatalf("ComputeAll() error = %v", err)
	}
	s2, _, err := engine.ComputeAll(snap, 0, []string{"beijing"})
	if err != nil {
		t.Fatalf("ComputeAll() error = %v", err)
	}
	user := satnet.GroundHash("beijing")
	if s1[user].VisibleBeams != s2[user].VisibleBeams {
		t.Errorf("cached result diverged across calls at identical t")
	}
}

func TestComputeAllErrorsOnUnresolvableUser(t *testing.T) {
	engine, backend := newTestEngine(t)
	snap, err := backend.SnapshotAt(0)
	if err != nil {
		t.Fatalf("SnapshotAt() error = %v", err)
	}
	if _, _, err := engine.ComputeAll(snap, 0, []string{"nowhere"}); err == nil {
		t.Errorf("expected error for unresolvable user identifier")
	}
}

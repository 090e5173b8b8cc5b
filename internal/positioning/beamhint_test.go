package positioning

import (
	"testing"

	"github.com/skylattice/orbitsim/internal/config"
	"github.com/skylattice/orbitsim/internal/satnet"
)

func sampleCandidates() []candidate {
	return []candidate{
		{Hash: satnet.SatelliteHash(0, 0), ElevDeg: 80, DistanceM: 600_000, SinrDb: 20, East: 1, North: 0},
		{Hash: satnet.SatelliteHash(0, 1), ElevDeg: 60, DistanceM: 700_000, SinrDb: 15, East: 0, North: 1},
		{Hash: satnet.SatelliteHash(0, 2), ElevDeg: 40, DistanceM: 900_000, SinrDb: 10, East: -0.7, North: -0.7},
		{Hash: satnet.SatelliteHash(0, 3), ElevDeg: 35, DistanceM: 950_000, SinrDb: 8, East: 0.9, North: 0.1},
	}
}

func TestBuildBeamHintRespectsBeamsPerUser(t *testing.T) {
	cfg := config.Positioning{BeamsPerUser: 2, WFim: 0.5, WSnr: 0.3, WGeom: 0.2}
	h := buildBeamHint(satnet.GroundHash("user"), 0, sampleCandidates(), cfg)
	if len(h.Candidates) != 2 {
		t.Fatalf("len(Candidates) = %d, want 2", len(h.Candidates))
	}
}

func TestBuildBeamHintNoDuplicateSatellites(t *testing.T) {
	cfg := config.Positioning{BeamsPerUser: 4, WFim: 0.5, WSnr: 0.3, WGeom: 0.2}
	h := buildBeamHint(satnet.GroundHash("user"), 0, sampleCandidates(), cfg)
	seen := make(map[satnet.Hash]bool)
	for _, c := range h.Candidates {
		if seen[c.SatelliteHash] {
			t.Fatalf("duplicate satellite %v in beam hint", c.SatelliteHash)
		}
		seen[c.SatelliteHash] = true
	}
}

func TestBuildBeamHintEmptyForNoCandidates(t *testing.T) {
	cfg := config.Positioning{BeamsPerUser: 3}
	h := buildBeamHint(satnet.GroundHash("user"), 0, nil, cfg)
	if len(h.Candidates) != 0 {
		t.Errorf("len(Candidates) = %d, want 0", len(h.Candidates))
	}
}

func TestGeometryDiversityFirstPickMaximal(t *testing.T) {
	if d := geometryDiversity(nil, sampleCandidates()[0]); d != 1 {
		t.Errorf("geometryDiversity(nil, c) = %v, want 1", d)
	}
}

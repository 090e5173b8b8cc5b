package flowstate

import (
	"testing"

	"github.com/skylattice/orbitsim/internal/satnet"
)

func twoNodeSnapshot(capBps float64) *satnet.NetworkSnapshot {
	a := satnet.SatelliteHash(0, 0)
	b := satnet.SatelliteHash(0, 1)
	snap := &satnet.NetworkSnapshot{
		Satellites: []satnet.Satellite{{Hash: a}, {Hash: b}},
		Links: []satnet.Link{
			{A: a, B: b, Kind: satnet.LinkISL, CapacityBps: capBps, Active: true},
		},
	}
	snap.Build()
	return snap
}

func TestAddFlowEnforcesCapacity(t *testing.T) {
	snap := twoNodeSnapshot(10_000_000)
	s := NewStore()
	a := satnet.SatelliteHash(0, 0)
	b := satnet.SatelliteHash(0, 1)

	f1 := &Flow{Request: FlowRequest{ID: "f1", Class: ClassBE}, Status: StatusPending}
	if err := s.AddFlow(f1, []Hash{a, b}, 8_000_000, snap); err != nil {
		t.Fatalf("AddFlow(f1) error = %v", err)
	}

	f2 := &Flow{Request: FlowRequest{ID: "f2", Class: ClassBE}, Status: StatusPending}
	if err := s.AddFlow(f2, []Hash{a, b}, 5_000_000, snap); err == nil {
		t.Fatalf("AddFlow(f2) expected capacity error, got nil")
	}
	if s.Count() != 1 {
		t.Errorf("Count() = %d, want 1 (f2 must not partially apply)", s.Count())
	}
	if load := s.LinkLoad(a, b); load != 8_000_000 {
		t.Errorf("LinkLoad() = %v, want 8_000_000 (f2's rejected load must not leak in)", load)
	}
}

func TestAddFlowLinkLoadSymmetricByDirection(t *testing.T) {
	snap := twoNodeSnapshot(10_000_000)
	s := NewStore()
	a := satnet.SatelliteHash(0, 0)
	b := satnet.SatelliteHash(0, 1)
	f := &Flow{Request: FlowRequest{ID: "f1", Class: ClassBE}, Status: StatusPending}
	if err := s.AddFlow(f, []Hash{a, b}, 1_000_000, snap); err != nil {
		t.Fatalf("AddFlow() error = %v", err)
	}
	if s.LinkLoad(a, b) != s.LinkLoad(b, a) {
		t.Errorf("LinkLoad should be direction-independent")
	}
}

func TestRemoveFlowReleasesLoad(t *testing.T) {
	snap := twoNodeSnapshot(10_000_000)
	s := NewStore()
	a := satnet.SatelliteHash(0, 0)
	b := satnet.SatelliteHash(0, 1)
	f := &Flow{Request: FlowRequest{ID: "f1", Class: ClassBE}, Status: StatusPending}
	if err := s.AddFlow(f, []Hash{a, b}, 4_000_000, snap); err != nil {
		t.Fatalf("AddFlow() error = %v", err)
	}
	removed, ok := s.RemoveFlow("f1")
	if !ok || removed.Request.ID != "f1" {
		t.Fatalf("RemoveFlow() = %v, %v", removed, ok)
	}
	if load := s.LinkLoad(a, b); load != 0 {
		t.Errorf("LinkLoad() after removal = %v, want 0", load)
	}
}

func TestAddFlowRejectsNonSimplePath(t *testing.T) {
	snap := twoNodeSnapshot(10_000_000)
	s := NewStore()
	a := satnet.SatelliteHash(0, 0)
	b := satnet.SatelliteHash(0, 1)
	f := &Flow{Request: FlowRequest{ID: "f1"}, Status: StatusPending}
	if err := s.AddFlow(f, []Hash{a, b, a}, 1_000_000, snap); err == nil {
		t.Errorf("expected error for non-simple path")
	}
}

func TestTickQueuesNeverNegative(t *testing.T) {
	s := NewStore()
	node := satnet.SatelliteHash(1, 1)
	s.TickQueues(1.0, map[Hash]float64{node: 10}, map[Hash]float64{node: 100})
	if b := s.BacklogAt(node); b != 0 {
		t.Errorf("BacklogAt() = %v, want 0 (clamped)", b)
	}
}

func TestTickQueuesAccumulatesUnservedArrivals(t *testing.T) {
	s := NewStore()
	node := satnet.SatelliteHash(1, 1)
	s.TickQueues(1.0, map[Hash]float64{node: 100}, map[Hash]float64{node: 10})
	s.TickQueues(1.0, map[Hash]float64{node: 100}, map[Hash]float64{node: 10})
	if b := s.BacklogAt(node); b != 180 {
		t.Errorf("BacklogAt() = %v, want 180", b)
	}
}

func TestJainFairnessBounds(t *testing.T) {
	if j := JainFairness([]float64{1, 1, 1, 1}); j != 1 {
		t.Errorf("JainFairness(equal) = %v, want 1", j)
	}
	if j := JainFairness([]float64{1, 0, 0, 0}); j <= 0 || j > 1 {
		t.Errorf("JainFairness(skewed) = %v, want (0,1]", j)
	}
	if j := JainFairness(nil); j != 1 {
		t.Errorf("JainFairness(nil) = %v, want 1", j)
	}
}

func TestFlowTransitionRejectsIllegalMoves(t *testing.T) {
	f := &Flow{Status: StatusPending}
	if err := f.Transition(StatusActive); err != nil {
		t.Fatalf("Transition(Active) error = %v", err)
	}
	if err := f.Transition(StatusQueued); err == nil {
		t.Errorf("expected error transitioning Active -> Queued")
	}
}

func TestVirtualQueueAccumulatesAndClamps(t *testing.T) {
	s := NewStore()
	s.UpdateVirtualQueue(ClassEF, 10, 2, 1.0)
	if v := s.VirtualQueue(ClassEF); v != 8 {
		t.Errorf("VirtualQueue(EF) = %v, want 8", v)
	}
	s.UpdateVirtualQueue(ClassEF, 0, 100, 1.0)
	if v := s.VirtualQueue(ClassEF); v != 0 {
		t.Errorf("VirtualQueue(EF) = %v, want 0 (clamped)", v)
	}
}

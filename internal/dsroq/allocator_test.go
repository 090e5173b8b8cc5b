package dsroq

import (
	"testing"

	"github.com/skylattice/orbitsim/internal/flowstate"
)

func TestAllocateBandwidthRespectsBMax(t *testing.T) {
	snap, path := chainSnapshot()
	store := flowstate.NewStore()
	bw, err := AllocateBandwidth("f1", path, 1_000_000, 5_000_000, snap, store)
	if err != nil {
		t.Fatalf("AllocateBandwidth() error = %v", err)
	}
	if bw > 5_000_000 {
		t.Errorf("AllocateBandwidth() = %v, want <= b_max", bw)
	}
}

func TestAllocateBandwidthFailsBelowMin(t *testing.T) {
	snap, path := chainSnapshot()
	store := flowstate.NewStore()
	f := &flowstate.Flow{Request: flowstate.FlowRequest{ID: "hog"}, Status: flowstate.StatusActive}
	if err := store.AddFlow(f, path, 999_000_000, snap); err != nil {
		t.Fatalf("setup AddFlow() error = %v", err)
	}
	if _, err := AllocateBandwidth("f2", path, 2_000_000, 5_000_000, snap, store); err == nil {
		t.Errorf("AllocateBandwidth() expected error when residual below b_min")
	}
}

func TestAllocateBandwidthFairShareSplitsAmongContenders(t *testing.T) {
	snap, path := chainSnapshot()
	store := flowstate.NewStore()
	other := &flowstate.Flow{Request: flowstate.FlowRequest{ID: "other"}, Status: flowstate.StatusActive}
	if err := store.AddFlow(other, path, 400_000_000, snap); err != nil {
		t.Fatalf("setup AddFlow() error = %v", err)
	}
	bw, err := AllocateBandwidth("f2", path, 1_000, 1_000_000_000, snap, store)
	if err != nil {
		t.Fatalf("AllocateBandwidth() error = %v", err)
	}
	// residual is 600M, split between 2 contenders -> fair share 300M, capped by b_max=1e9 -> min(1e9,600M,300M)=300M
	if bw != 300_000_000 {
		t.Errorf("AllocateBandwidth() = %v, want fair share 300_000_000", bw)
	}
}

package admission

import (
	"testing"

	"github.com/skylattice/orbitsim/internal/config"
	"github.com/skylattice/orbitsim/internal/flowstate"
	"github.com/skylattice/orbitsim/internal/positioning"
	"github.com/skylattice/orbitsim/internal/satnet"
)

// busyInput builds a single-link snapshot and a Store carrying a
// pre-committed flow that loads the link to util fraction of capacity, the
// same path production code takes: utilization is read by the policies
// from Store.LinkLoad, never from the Oracle snapshot's Link.LoadBps
// (the Topology Oracle never populates it; only Flow & Queue State, the
// single writer of committed load, does).
func busyInput(util float64) (*satnet.NetworkSnapshot, *flowstate.Store) {
	a := satnet.GroundHash("A")
	b := satnet.GroundHash("B")
	snap := &satnet.NetworkSnapshot{
		Grounds: []satnet.Ground{{Hash: a, Name: "A"}, {Hash: b, Name: "B"}},
		Links: []satnet.Link{
			{A: a, B: b, Kind: satnet.LinkGSL, CapacityBps: 1e9, LatencySec: 0.01, Active: true},
		},
	}
	snap.Build()

	store := flowstate.NewStore()
	if util > 0 {
		seed := &flowstate.Flow{Request: flowstate.FlowRequest{ID: "seed", Class: flowstate.ClassBE}}
		if err := store.AddFlow(seed, []satnet.Hash{a, b}, util*1e9, snap); err != nil {
			panic(err)
		}
	}
	return snap, store
}

func TestThresholdPolicyRejectsBestEffortAboveWatermark(t *testing.T) {
	cfg := config.Admission{UtilHighWatermark: 0.9}
	p := NewThresholdPolicy(cfg)
	snap, store := busyInput(0.95)
	d := p.Decide(Input{Request: flowstate.FlowRequest{Class: flowstate.ClassBE}, Snap: snap, Store: store}, nil)
	if d.Kind != Reject {
		t.Errorf("Decide() = %v, want REJECT above watermark", d.Kind)
	}
}

func TestThresholdPolicyDegradesEFAboveWatermark(t *testing.T) {
	cfg := config.Admission{UtilHighWatermark: 0.9}
	p := NewThresholdPolicy(cfg)
	snap, store := busyInput(0.95)
	d := p.Decide(Input{Request: flowstate.FlowRequest{Class: flowstate.ClassEF}, Snap: snap, Store: store}, nil)
	if d.Kind != DegradedAccept {
		t.Errorf("Decide() = %v, want DEGRADED_ACCEPT for EF above watermark", d.Kind)
	}
}

func TestThresholdPolicyAcceptsBelowWatermark(t *testing.T) {
	cfg := config.Admission{UtilHighWatermark: 0.9}
	p := NewThresholdPolicy(cfg)
	snap, store := busyInput(0.1)
	d := p.Decide(Input{Request: flowstate.FlowRequest{Class: flowstate.ClassBE}, Snap: snap, Store: store}, nil)
	if d.Kind != Accept {
		t.Errorf("Decide() = %v, want ACCEPT below watermark", d.Kind)
	}
}

func TestPosAwarePolicyDelaysNonEFOnLowApos(t *testing.T) {
	cfg := config.Admission{UtilHighWatermark: 0.9, AposLowThreshold: 0.3, DelaySeconds: 5}
	p := &PosAwarePolicy{inner: NewThresholdPolicy(cfg), cfg: cfg}
	snap, store := busyInput(0.1)
	in := Input{
		Request: flowstate.FlowRequest{Class: flowstate.ClassBE},
		Snap:    snap,
		Store:   store,
		Pos:     positioning.Sample{Apos: 0.1},
		HasPos:  true,
		NowS:    100,
	}
	d := p.Decide(in, nil)
	if d.Kind != DelayedAccept || d.RetryAtS != 105 {
		t.Errorf("Decide() = %+v, want DELAYED_ACCEPT retrying at 105", d)
	}
}

func TestPosAwarePolicyDegradesEFOnLowApos(t *testing.T) {
	cfg := config.Admission{UtilHighWatermark: 0.9, AposLowThreshold: 0.3}
	p := &PosAwarePolicy{inner: NewThresholdPolicy(cfg), cfg: cfg}
	snap, store := busyInput(0.1)
	in := Input{
		Request: flowstate.FlowRequest{Class: flowstate.ClassEF},
		Snap:    snap,
		Store:   store,
		Pos:     positioning.Sample{Apos: 0.1},
		HasPos:  true,
	}
	d := p.Decide(in, nil)
	if d.Kind != DegradedAccept {
		t.Errorf("Decide() = %v, want DEGRADED_ACCEPT for EF on low Apos", d.Kind)
	}
}

func TestPosAwarePolicyPassesThroughRejectUnchanged(t *testing.T) {
	cfg := config.Admission{UtilHighWatermark: 0.9, AposLowThreshold: 0.3}
	p := &PosAwarePolicy{inner: NewThresholdPolicy(cfg), cfg: cfg}
	snap, store := busyInput(0.95)
	in := Input{
		Request: flowstate.FlowRequest{Class: flowstate.ClassBE},
		Snap:    snap,
		Store:   store,
		Pos:     positioning.Sample{Apos: 0.1},
		HasPos:  true,
	}
	d := p.Decide(in, nil)
	if d.Kind != Reject {
		t.Errorf("Decide() = %v, want REJECT to pass through unchanged", d.Kind)
	}
}

type fixedSelector struct{ idx int }

func (f fixedSelector) SelectAction(obs []float64) int { return f.idx }

func TestRLPolicyMapsActionIndexToKind(t *testing.T) {
	p := &RLPolicy{selector: fixedSelector{idx: 2}, cfg: config.Admission{}}
	d := p.Decide(Input{Request: flowstate.FlowRequest{Class: flowstate.ClassBE}}, nil)
	if d.Kind != DegradedAccept {
		t.Errorf("Decide() = %v, want DEGRADED_ACCEPT (action index 2)", d.Kind)
	}
}

func TestRLPolicyOutOfRangeActionRejects(t *testing.T) {
	p := &RLPolicy{selector: fixedSelector{idx: 99}, cfg: config.Admission{}}
	d := p.Decide(Input{Request: flowstate.FlowRequest{Class: flowstate.ClassBE}}, nil)
	if d.Kind != Reject {
		t.Errorf("Decide() = %v, want REJECT for an out-of-range action", d.Kind)
	}
}

func TestNewPolicyDefaultsToThreshold(t *testing.T) {
	p := NewPolicy(config.Admission{Policy: config.AdmissionPolicyKind("unknown")}, nil)
	if _, ok := p.(*ThresholdPolicy); !ok {
		t.Errorf("NewPolicy() with unknown kind = %T, want *ThresholdPolicy", p)
	}
}

func TestNewPolicySelectsRL(t *testing.T) {
	p := NewPolicy(config.Admission{Policy: config.AdmissionRL}, fixedSelector{idx: 0})
	if _, ok := p.(*RLPolicy); !ok {
		t.Errorf("NewPolicy() with rl kind = %T, want *RLPolicy", p)
	}
}

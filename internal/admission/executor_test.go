package admission

import (
	"testing"

	"github.com/skylattice/orbitsim/internal/flowstate"
)

func TestApplyActionAcceptUnchanged(t *testing.T) {
	req := flowstate.FlowRequest{MaxBandwidthBps: 1000, MinBandwidthBps: 500, MaxLatencySec: 1}
	out, terminal := ApplyAction(req, Decision{Kind: Accept}, 0.8, 1.5)
	if terminal {
		t.Errorf("ApplyAction(ACCEPT) terminal = true, want false")
	}
	if out != req {
		t.Errorf("ApplyAction(ACCEPT) = %+v, want unchanged %+v", out, req)
	}
}

func TestApplyActionDegradedScalesRequest(t *testing.T) {
	req := flowstate.FlowRequest{MaxBandwidthBps: 1000, MinBandwidthBps: 500, MaxLatencySec: 1}
	out, terminal := ApplyAction(req, Decision{Kind: DegradedAccept}, 0.8, 1.5)
	if terminal {
		t.Errorf("ApplyAction(DEGRADED_ACCEPT) terminal = true, want false")
	}
	if out.MaxBandwidthBps != 800 {
		t.Errorf("ApplyAction(DEGRADED_ACCEPT) MaxBandwidthBps = %v, want 800", out.MaxBandwidthBps)
	}
	if out.MaxLatencySec != 1.5 {
		t.Errorf("ApplyAction(DEGRADED_ACCEPT) MaxLatencySec = %v, want 1.5", out.MaxLatencySec)
	}
}

func TestApplyActionDegradedClampsMinToNewMax(t *testing.T) {
	req := flowstate.FlowRequest{MaxBandwidthBps: 1000, MinBandwidthBps: 900, MaxLatencySec: 1}
	out, _ := ApplyAction(req, Decision{Kind: DegradedAccept}, 0.8, 1.0)
	if out.MinBandwidthBps != out.MaxBandwidthBps {
		t.Errorf("ApplyAction(DEGRADED_ACCEPT) MinBandwidthBps = %v, want clamped to new max %v", out.MinBandwidthBps, out.MaxBandwidthBps)
	}
}

func TestApplyActionPartialSetsMaxToMin(t *testing.T) {
	req := flowstate.FlowRequest{MaxBandwidthBps: 1000, MinBandwidthBps: 500}
	out, terminal := ApplyAction(req, Decision{Kind: PartialAccept}, 0.8, 1.5)
	if terminal {
		t.Errorf("ApplyAction(PARTIAL_ACCEPT) terminal = true, want false")
	}
	if out.MaxBandwidthBps != 500 {
		t.Errorf("ApplyAction(PARTIAL_ACCEPT) MaxBandwidthBps = %v, want 500", out.MaxBandwidthBps)
	}
}

func TestApplyActionRejectAndDelayedAreTerminal(t *testing.T) {
	req := flowstate.FlowRequest{}
	if _, terminal := ApplyAction(req, Decision{Kind: Reject}, 0.8, 1.5); !terminal {
		t.Errorf("ApplyAction(REJECT) terminal = false, want true")
	}
	if _, terminal := ApplyAction(req, Decision{Kind: DelayedAccept}, 0.8, 1.5); !terminal {
		t.Errorf("ApplyAction(DELAYED_ACCEPT) terminal = false, want true")
	}
}

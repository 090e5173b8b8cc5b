package admission

import (
	"testing"

	"github.com/skylattice/orbitsim/internal/config"
	"github.com/skylattice/orbitsim/internal/flowstate"
)

func TestControllerDecideRecordsStatsAndTracker(t *testing.T) {
	c := NewController(config.Admission{UtilHighWatermark: 0.9}, nil)
	req := flowstate.FlowRequest{ID: "f1", Class: flowstate.ClassBE, MinBandwidthBps: 1, MaxBandwidthBps: 2}

	snap, store := busyInput(0.1)
	d, forwarded, terminal := c.Decide(Input{Request: req, Snap: snap, Store: store, NowS: 10})
	if d.Kind != Accept {
		t.Fatalf("Decide() kind = %v, want ACCEPT", d.Kind)
	}
	if terminal {
		t.Errorf("Decide() terminal = true, want false for ACCEPT")
	}
	if forwarded != req {
		t.Errorf("Decide() forwarded = %+v, want unchanged %+v", forwarded, req)
	}
	if c.Stats().Accepted != 1 {
		t.Errorf("Stats().Accepted = %d, want 1", c.Stats().Accepted)
	}
	if since := c.Tracker().TimeSinceLastAdmission(10); since != 0 {
		t.Errorf("Tracker().TimeSinceLastAdmission() = %v, want 0 right after an accept", since)
	}
}

func TestControllerDecideRejectIsTerminal(t *testing.T) {
	c := NewController(config.Admission{UtilHighWatermark: 0.1}, nil)
	req := flowstate.FlowRequest{Class: flowstate.ClassBE}
	snap, store := busyInput(0.95)
	_, _, terminal := c.Decide(Input{Request: req, Snap: snap, Store: store, NowS: 0})
	if !terminal {
		t.Errorf("Decide() terminal = false, want true for REJECT")
	}
	if c.Stats().Rejected != 1 {
		t.Errorf("Stats().Rejected = %d, want 1", c.Stats().Rejected)
	}
}

// Package flowstate is the Flow & Queue State component (L3): the
// authoritative, single-writer store of active flows, per-link
// utilization, and per-node backlog/virtual queues. Grounded on the
// teacher's internal/state package (StateEngine as the sole mutation entry
// point, DirtySet bookkeeping) and internal/routing/lease.go's IPLoadStats
// (xsync.Map-backed atomic counters keyed by a network identity), adapted
// here to track link load instead of per-IP lease counts.
package flowstate

import (
	"fmt"

	"github.com/skylattice/orbitsim/internal/satnet"
)

// Hash aliases the Topology Oracle's node identity type so flowstate
// doesn't need its own.
type Hash = satnet.Hash

// QoSClass is one of the three traffic classes spec.md §3 names.
type QoSClass string

const (
	ClassEF QoSClass = "EF"
	ClassAF QoSClass = "AF"
	ClassBE QoSClass = "BE"
)

func (c QoSClass) IsValid() bool {
	switch c {
	case ClassEF, ClassAF, ClassBE:
		return true
	default:
		return false
	}
}

// FlowStatus is a flow's position in the lifecycle state machine of
// spec.md §4.4.4.
type FlowStatus string

const (
	StatusPending    FlowStatus = "pending"
	StatusActive     FlowStatus = "active"
	StatusQueued     FlowStatus = "queued"
	StatusRejected   FlowStatus = "rejected"
	StatusCompleted  FlowStatus = "completed"
	StatusRerouting  FlowStatus = "rerouting"
	StatusFailed     FlowStatus = "failed"
)

// validTransitions enumerates the edges of the spec.md §4.4.4 diagram.
var validTransitions = map[FlowStatus]map[FlowStatus]bool{
	StatusPending:   {StatusActive: true, StatusQueued: true, StatusRejected: true},
	StatusQueued:    {StatusPending: true},
	StatusActive:    {StatusCompleted: true, StatusRerouting: true, StatusFailed: true},
	StatusRerouting: {StatusActive: true, StatusFailed: true},
}

// CanTransition reports whether moving from 'from' to 'to' is a legal edge.
func CanTransition(from, to FlowStatus) bool {
	return validTransitions[from][to]
}

// FlowRequest is spec.md §3's Flow Request: an arriving request before
// admission has decided anything.
type FlowRequest struct {
	ID               string
	Src, Dst         string // ground identifiers resolved by internal/geo
	Class            QoSClass
	MinBandwidthBps  float64
	MaxBandwidthBps  float64
	MaxLatencySec    float64
	MinReliability   float64
	ExpectedDuration float64
	ArrivalTimeS     float64
}

// Flow is spec.md §3's post-admission Flow: a FlowRequest plus the route,
// allocation, and lifecycle state the DSROQ Core and Flow & Queue State
// jointly maintain.
type Flow struct {
	Request         FlowRequest
	Route           []Hash
	AllocatedBWBps  float64
	Class           QoSClass // may be degraded from Request.Class
	Status          FlowStatus
	StartTimeS      float64
	EndTimeS        float64
	LastRerouteTimeS float64
}

// Transition moves f to next if the edge is legal, else returns an error
// describing the illegal move (spec.md §4.4.4's diagram is the sole source
// of truth for which moves are legal).
func (f *Flow) Transition(next FlowStatus) error {
	if !CanTransition(f.Status, next) {
		return fmt.Errorf("flowstate: illegal transition %s -> %s for flow %s", f.Status, next, f.Request.ID)
	}
	f.Status = next
	return nil
}

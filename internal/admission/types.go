// Package admission implements the Admission Controller (spec.md §4.5):
// it maps an arriving flow request, the current network/positioning state,
// and admission history into an AdmissionDecision, via one of three
// interchangeable policies. Grounded on the teacher's
// internal/platform/policy.go tagged-string-enum-plus-parser idiom, and on
// internal/metrics/bucket.go for the windowed rolling statistics the
// Observation Builder consumes.
package admission

import "sync/atomic"

// Kind is one of the five admission actions spec.md §4.5 names.
type Kind string

const (
	Accept         Kind = "ACCEPT"
	Reject         Kind = "REJECT"
	DegradedAccept Kind = "DEGRADED_ACCEPT"
	DelayedAccept  Kind = "DELAYED_ACCEPT"
	PartialAccept  Kind = "PARTIAL_ACCEPT"
)

func (k Kind) IsValid() bool {
	switch k {
	case Accept, Reject, DegradedAccept, DelayedAccept, PartialAccept:
		return true
	default:
		return false
	}
}

// Decision is the controller's output for one request (spec.md §3's
// Admission Decision).
type Decision struct {
	Kind       Kind
	Confidence float64
	Reason     string

	// RetryAtS is set only for DelayedAccept: the request should be
	// re-run through the full admission pipeline once the clock reaches it.
	RetryAtS float64
}

// Stats holds the running admission totals spec.md §3 requires ("totals =
// accepted + rejected + degraded + delayed + partial"), grounded on the
// teacher's internal/metrics/collector.go hot-path atomic-counter style.
type Stats struct {
	accepted atomic.Int64
	rejected atomic.Int64
	degraded atomic.Int64
	delayed  atomic.Int64
	partial  atomic.Int64
}

// NewStats builds an empty Stats.
func NewStats() *Stats { return &Stats{} }

func (s *Stats) record(k Kind) {
	switch k {
	case Accept:
		s.accepted.Add(1)
	case Reject:
		s.rejected.Add(1)
	case DegradedAccept:
		s.degraded.Add(1)
	case DelayedAccept:
		s.delayed.Add(1)
	case PartialAccept:
		s.partial.Add(1)
	}
}

// StatsSnapshot is a point-in-time read of Stats.
type StatsSnapshot struct {
	Accepted, Rejected, Degraded, Delayed, Partial int64
}

// Total returns accepted+rejected+degraded+delayed+partial.
func (s StatsSnapshot) Total() int64 {
	return s.Accepted + s.Rejected + s.Degraded + s.Delayed + s.Partial
}

// AcceptanceRate returns the fraction of non-reject, non-delay outcomes
// over Total, or 0 if Total is 0.
func (s StatsSnapshot) AcceptanceRate() float64 {
	if s.Total() == 0 {
		return 0
	}
	return float64(s.Accepted+s.Degraded+s.Partial) / float64(s.Total())
}

// Snapshot reads the current totals.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Accepted: s.accepted.Load(),
		Rejected: s.rejected.Load(),
		Degraded: s.degraded.Load(),
		Delayed:  s.delayed.Load(),
		Partial:  s.partial.Load(),
	}
}

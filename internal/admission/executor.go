package admission

import "github.com/skylattice/orbitsim/internal/flowstate"

// ApplyAction realizes the per-Kind action semantics of spec.md §4.5 on
// req, returning the (possibly mutated) request to forward to DSROQ and
// whether this action is terminal for the current step without ever
// reaching DSROQ.
//
// ACCEPT forwards req unchanged. REJECT and DELAYED_ACCEPT are terminal:
// the caller enqueues a retry at d.RetryAtS for DELAYED_ACCEPT rather than
// dropping the request. DEGRADED_ACCEPT and PARTIAL_ACCEPT are not
// terminal here — "if DSROQ fails, fall back to REJECT" depends on DSROQ's
// outcome, which this package does not call; that fallback is the
// engine's responsibility once it has run DSROQ on the forwarded request.
func ApplyAction(req flowstate.FlowRequest, d Decision, degradeBW, degradeLatency float64) (flowstate.FlowRequest, bool) {
	switch d.Kind {
	case Accept:
		return req, false
	case DegradedAccept:
		req.MaxBandwidthBps *= degradeBW
		if req.MaxBandwidthBps < req.MinBandwidthBps {
			req.MinBandwidthBps = req.MaxBandwidthBps
		}
		req.MaxLatencySec *= degradeLatency
		return req, false
	case PartialAccept:
		req.MaxBandwidthBps = req.MinBandwidthBps
		return req, false
	case DelayedAccept, Reject:
		return req, true
	default:
		return req, true
	}
}

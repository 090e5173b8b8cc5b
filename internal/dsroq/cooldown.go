package dsroq

import "github.com/puzpuzpuz/xsync/v4"

// CooldownTracker records the last reroute time per flow, grounded on the
// teacher's IPLoadStats (internal/routing/lease.go): a bounded set of keys
// (here, flow ids) each carrying one mutable counter, safe for concurrent
// access via xsync.Map without a package-wide lock.
type CooldownTracker struct {
	lastRerouteMs *xsync.Map[string, int64]
}

// NewCooldownTracker builds an empty tracker.
func NewCooldownTracker() *CooldownTracker {
	return &CooldownTracker{lastRerouteMs: xsync.NewMap[string, int64]()}
}

// Ready reports whether flowID may be rerouted at nowMs, i.e. at least
// cooldownMs has elapsed since its last recorded reroute (spec.md §4.4.1:
// "A flow may be rerouted only if now - last_reroute_time >=
// reroute_cooldown_ms"). A flow never rerouted before is always ready.
func (c *CooldownTracker) Ready(flowID string, nowMs, cooldownMs int64) bool {
	last, ok := c.lastRerouteMs.Load(flowID)
	if !ok {
		return true
	}
	return nowMs-last >= cooldownMs
}

// RecordReroute stamps flowID's last reroute time.
func (c *CooldownTracker) RecordReroute(flowID string, nowMs int64) {
	c.lastRerouteMs.Store(flowID, nowMs)
}

// Forget drops a flow's cooldown record, called on flow completion/failure
// so the tracker does not grow unboundedly across a long run.
func (c *CooldownTracker) Forget(flowID string) {
	c.lastRerouteMs.Delete(flowID)
}

package admission

import (
	"github.com/skylattice/orbitsim/internal/config"
	"github.com/skylattice/orbitsim/internal/flowstate"
)

// Controller is the Admission Controller of spec.md §4.5: it owns the
// selected Policy, the running Stats totals, and the Tracker the
// Observation Builder and the positioning-aware policy read their rolling
// history from.
type Controller struct {
	cfg    config.Admission
	policy Policy
	stats  *Stats
	tr     *Tracker
}

// NewController builds a Controller for cfg's configured policy. selector
// is consulted only when cfg.Policy is "rl"; it may be nil otherwise.
func NewController(cfg config.Admission, selector ActionSelector) *Controller {
	return &Controller{
		cfg:    cfg,
		policy: NewPolicy(cfg, selector),
		stats:  NewStats(),
		tr:     NewTracker(),
	}
}

// Tracker exposes the controller's rolling-history tracker so the engine
// can feed it QoE and utilization samples as a step progresses.
func (c *Controller) Tracker() *Tracker { return c.tr }

// Stats returns the running admission totals.
func (c *Controller) Stats() StatsSnapshot { return c.stats.Snapshot() }

// Decide runs the configured policy against in, records the outcome in
// Stats and the Tracker's admission-rate history, and applies the chosen
// action to in.Request. It returns the decision, the (possibly mutated)
// request to forward to DSROQ, and whether the step is already terminal
// for this request without DSROQ ever being consulted.
func (c *Controller) Decide(in Input) (Decision, flowstate.FlowRequest, bool) {
	d := c.policy.Decide(in, c.tr)
	c.stats.record(d.Kind)
	accepted := d.Kind == Accept || d.Kind == DegradedAccept || d.Kind == PartialAccept
	c.tr.RecordAdmission(in.NowS, accepted)

	forwarded, terminal := ApplyAction(in.Request, d, c.cfg.DegradeBandwidthFactor, c.cfg.DegradeLatencyFactor)
	return d, forwarded, terminal
}

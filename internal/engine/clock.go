package engine

// Clock advances simulated time in fixed steps of dt seconds, independent
// of wall-clock time: the engine computes each step as fast as the host
// can, never pacing against a real-time timer.
type Clock struct {
	t  float64
	dt float64
}

// NewClock builds a Clock starting at t0 with step width dtSeconds.
func NewClock(t0, dtSeconds float64) *Clock {
	return &Clock{t: t0, dt: dtSeconds}
}

// Now returns the current simulated time in seconds.
func (c *Clock) Now() float64 { return c.t }

// Dt returns the fixed step width in seconds.
func (c *Clock) Dt() float64 { return c.dt }

// Advance moves the clock forward by one step and returns the new time.
func (c *Clock) Advance() float64 {
	c.t += c.dt
	return c.t
}

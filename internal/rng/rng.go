// Package rng provides the simulator's single master-seeded random source
// and its deterministic named sub-streams, built on math/rand/v2 so a run
// is fully reproducible from one master seed.
package rng

import (
	"hash/fnv"
	"math/rand/v2"
)

// Named sub-streams. Deriving streams from the master seed by name keeps
// Reset(seed) reproducible regardless of call order, since each stream's
// seed only depends on (masterSeed, name), never on allocation sequence.
const (
	StreamMCTS        = "mcts"
	StreamArrivals    = "arrivals"
	StreamMeasurement = "measurement"
	StreamScheduler   = "scheduler"
	StreamIDs         = "ids"
)

// Source is a single deterministic stream, safe for use by exactly one
// logical consumer (the simulation loop is single-threaded per step; worker
// pools that need randomness must derive their own per-worker sub-stream).
type Source struct {
	r *rand.Rand
}

// newSource builds a Source seeded deterministically from two 64-bit words.
func newSource(seed uint64, salt uint64) *Source {
	return &Source{r: rand.New(rand.NewPCG(seed, salt))}
}

// Float64 returns a pseudo-random number in [0,1).
func (s *Source) Float64() float64 { return s.r.Float64() }

// IntN returns a pseudo-random number in [0,n).
func (s *Source) IntN(n int) int { return s.r.IntN(n) }

// Int64N returns a pseudo-random number in [0,n).
func (s *Source) Int64N(n int64) int64 { return s.r.Int64N(n) }

// ExpFloat64 returns an exponentially distributed sample with rate 1,
// used to derive Poisson inter-arrival times (divide by lambda).
func (s *Source) ExpFloat64() float64 { return s.r.ExpFloat64() }

// NormFloat64 returns a standard-normal sample, used for measurement noise.
func (s *Source) NormFloat64() float64 { return s.r.NormFloat64() }

// Shuffle shuffles a slice of length n in place using swap(i, j).
func (s *Source) Shuffle(n int, swap func(i, j int)) { s.r.Shuffle(n, swap) }

// Read fills p with deterministic pseudo-random bytes drawn from the
// stream, satisfying io.Reader so a Source can seed uuid.NewRandomFromReader
// and keep generated IDs reproducible for a fixed master seed.
func (s *Source) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(s.r.IntN(256))
	}
	return len(p), nil
}

// Streams is the set of deterministic sub-streams derived from one master
// seed at Reset time. Constructed fresh per run; never a package-level
// singleton (spec: "No module-level singletons").
type Streams struct {
	masterSeed uint64
	cache      map[string]*Source
}

// NewStreams derives the named sub-streams from a master seed.
func NewStreams(masterSeed uint64) *Streams {
	return &Streams{masterSeed: masterSeed, cache: make(map[string]*Source)}
}

// MasterSeed returns the seed this Streams was constructed with.
func (s *Streams) MasterSeed() uint64 { return s.masterSeed }

// Stream returns the named sub-stream, creating it deterministically on
// first access. The same name always yields bit-identical sequences for a
// given master seed across runs and processes.
func (s *Streams) Stream(name string) *Source {
	if src, ok := s.cache[name]; ok {
		return src
	}
	salt := fnvSalt(name)
	src := newSource(s.masterSeed, salt)
	s.cache[name] = src
	return src
}

// Worker returns an independent sub-stream for worker-pool index idx of the
// named stream, so CRLB/MCTS farm-out workers never share mutable RNG state
// yet remain fully determined by (masterSeed, name, idx).
func (s *Streams) Worker(name string, idx int) *Source {
	salt := fnvSalt(name) ^ (uint64(idx+1) * 0x9E3779B97F4A7C15)
	return newSource(s.masterSeed, salt)
}

func fnvSalt(name string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return h.Sum64()
}

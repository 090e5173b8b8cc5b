package positioning

import (
	"fmt"
	"sync"
	"time"

	"github.com/maypok86/otter"

	"github.com/skylattice/orbitsim/internal/config"
	"github.com/skylattice/orbitsim/internal/geo"
	"github.com/skylattice/orbitsim/internal/rng"
	"github.com/skylattice/orbitsim/internal/satnet"
)

// Result pairs a user's positioning sample with its beam hint, the unit of
// work handed back from a worker.
type Result struct {
	Sample Sample
	Hint   BeamHint
}

// cacheKey identifies one user's result at one simulated time.
type cacheKey struct {
	User satnet.Hash
	TimeS float64
}

// Engine computes per-user PositioningSamples and BeamHints against a
// NetworkSnapshot, farming work out across a bounded worker pool the same
// way the teacher's probe manager bounds concurrent liveness checks: a
// semaphore channel gates in-flight goroutines, a WaitGroup joins them, and
// a stopCh lets Stop cut off any pool still draining.
type Engine struct {
	cfg      config.Positioning
	resolver *geo.Resolver
	streams  *rng.Streams

	sem    chan struct{}
	cache  otter.Cache[cacheKey, Result]
	stopCh chan struct{}
}

// NewEngine builds an Engine with the given worker concurrency and a
// bounded result cache.
func NewEngine(cfg config.Positioning, resolver *geo.Resolver, streams *rng.Streams, workers, cacheSize int) (*Engine, error) {
	if workers <= 0 {
		workers = 8
	}
	if cacheSize <= 0 {
		cacheSize = 4096
	}
	cache, err := otter.MustBuilder[cacheKey, Result](cacheSize).
		Cost(func(_ cacheKey, _ Result) uint32 { return 1 }).
		WithTTL(10 * time.Minute).
		Build()
	if err != nil {
		return nil, fmt.Errorf("positioning engine: build cache: %w", err)
	}
	return &Engine{
		cfg: cfg, resolver: resolver, streams: streams,
		sem: make(chan struct{}, workers), cache: cache, stopCh: make(chan struct{}),
	}, nil
}

// Stop signals in-flight ComputeAll calls to abandon remaining work. Safe
// to call once; a stopped Engine should not be reused.
func (e *Engine) Stop() { close(e.stopCh) }

// Close releases the result cache.
func (e *Engine) Close() { e.cache.Close() }

// ComputeAll computes positioning samples and beam hints for every user
// identifier (named ground station or ad hoc geo-resolvable endpoint)
// against snap at time t, farming the CRLB/GDOP/beam-hint work for each
// user out to the worker pool. Results for a (user, t) pair already seen
// are served from cache: each worker checks the cache before computing, which is what
// keeps repeated Step-local queries at the same t cheap and deterministic.
func (e *Engine) ComputeAll(snap *satnet.NetworkSnapshot, t float64, userIdentifiers []string) (map[satnet.Hash]Sample, map[satnet.Hash]BeamHint, error) {
	samples := make(map[satnet.Hash]Sample, len(userIdentifiers))
	hints := make(map[satnet.Hash]BeamHint, len(userIdentifiers))

	type job struct {
		idx  int
		user satnet.Hash
		pos  geo.Point
	}
	jobs := make([]job, 0, len(userIdentifiers))
	for i, id := range userIdentifiers {
		pos, err := e.resolver.Resolve(id)
		if err != nil {
			return nil, nil, fmt.Errorf("positioning: resolve user %q: %w", id, err)
		}
		jobs = append(jobs, job{idx: i, user: satnet.GroundHash(id), pos: pos})
	}

	results := make([]Result, len(jobs))

	var wg sync.WaitGroup
	for _, j := range jobs {
		j := j
		select {
		case <-e.stopCh:
			return samples, hints, fmt.Errorf("positioning: engine stopped")
		case e.sem <- struct{}{}:
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-e.sem }()

			key := cacheKey{User: j.user, TimeS: t}
			if cached, ok := e.cache.Get(key); ok {
				results[j.idx] = cached
				return
			}

			noise := e.streams.Worker(rng.StreamMeasurement, j.idx)
			cands := visibleCandidates(snap, j.pos, e.cfg, noise)
			sample := computeSample(j.user, t, cands, e.cfg)
			hint := buildBeamHint(j.user, t, cands, e.cfg)
			res := Result{Sample: sample, Hint: hint}
			e.cache.Set(key, res)
			results[j.idx] = res
		}()
	}
	wg.Wait()

	for i, j := range jobs {
		samples[j.user] = results[i].Sample
		hints[j.user] = results[i].Hint
	}
	return samples, hints, nil
}

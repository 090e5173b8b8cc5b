package engine

import (
	"fmt"

	"github.com/skylattice/orbitsim/internal/admission"
	"github.com/skylattice/orbitsim/internal/config"
	"github.com/skylattice/orbitsim/internal/geo"
	"github.com/skylattice/orbitsim/internal/positioning"
	"github.com/skylattice/orbitsim/internal/rng"
	"github.com/skylattice/orbitsim/internal/satnet"
)

// Built bundles an Engine with the components wiring it needed to
// construct, so a caller (cmd/orbitsim, internal/rlenv) can close over the
// GeoIP reader or otherwise reach past the Engine if it needs to.
type Built struct {
	Engine     *Engine
	Oracle     satnet.Oracle
	Resolver   *geo.Resolver
	Controller *admission.Controller
}

// BuildFromScenario wires the Topology Oracle, geo Resolver, Positioning
// Engine, and Admission Controller from a validated scenario, the same
// phased sequence cmd/orbitsim's main() and internal/rlenv's Reset both
// need, grounded on cmd/resin/main.go's top-to-bottom component wiring.
// selector is only consulted when cfg.Admission.Policy is "rl"; pass nil
// otherwise.
func BuildFromScenario(cfg config.Scenario, selector admission.ActionSelector, hooks Hooks) (*Built, error) {
	var backend satnet.Oracle
	var err error
	if cfg.Backend.HypatiaMode == config.BackendReal {
		backend, err = satnet.NewFaithfulBackend(cfg.Backend.DataDir, cfg.Backend.DataRefreshSchedule)
	} else {
		backend, err = satnet.NewWalkerBackend(cfg.Constellation, cfg.GroundStations, cfg.Positioning.ElevationMaskDeg)
	}
	if err != nil {
		return nil, fmt.Errorf("build topology backend: %w", err)
	}
	oracle, err := satnet.NewCache(backend, 256)
	if err != nil {
		return nil, fmt.Errorf("build topology cache: %w", err)
	}

	var reader geo.Reader
	if cfg.GeoIPPath != "" {
		r, _, err := geo.OpenReader(cfg.GeoIPPath)
		if err != nil {
			return nil, fmt.Errorf("open geoip reader: %w", err)
		}
		reader = r
	}
	resolver := geo.NewResolver(cfg.GroundStations, reader)

	streams := rng.NewStreams(cfg.MasterSeed)

	pos, err := positioning.NewEngine(cfg.Positioning, resolver, streams, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("build positioning engine: %w", err)
	}

	controller := admission.NewController(cfg.Admission, selector)

	eng := New(Config{
		Scenario: cfg, Oracle: oracle, Resolver: resolver,
		Positioning: pos, Admission: controller, Streams: streams, Hooks: hooks,
	})

	return &Built{Engine: eng, Oracle: oracle, Resolver: resolver, Controller: controller}, nil
}

package dsroq

import (
	"testing"

	"github.com/skylattice/orbitsim/internal/config"
	"github.com/skylattice/orbitsim/internal/flowstate"
	"github.com/skylattice/orbitsim/internal/rng"
)

func TestSearchWallTimeZeroUsesGreedyBaseline(t *testing.T) {
	snap, path := chainSnapshot()
	store := flowstate.NewStore()
	cfg := config.DSROQ{MCTSWallMs: 0, MaxHops: 10, CongestionThreshold: 0.99}
	r := NewRouter(cfg, config.Positioning{})

	res, err := r.Search(SearchInput{Snap: snap, Store: store, Src: path[0], Dst: path[len(path)-1]})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if !res.UsedFallback {
		t.Errorf("Search() with MCTSWallMs=0 should set UsedFallback")
	}
	if res.Path[0] != path[0] || res.Path[len(res.Path)-1] != path[len(path)-1] {
		t.Errorf("Search() path = %v, want endpoints %v..%v", res.Path, path[0], path[len(path)-1])
	}
}

func TestSearchFindsRouteWithinIterationCap(t *testing.T) {
	snap, path := chainSnapshot()
	store := flowstate.NewStore()
	cfg := config.DSROQ{
		MCTSWallMs: 5000, MCTSIters: 200, MaxHops: 10,
		CongestionThreshold: 0.99, UCBExploration: 1.41421356, NoImprovementIters: 50,
	}
	r := NewRouter(cfg, config.Positioning{})
	streams := rng.NewStreams(1)

	res, err := r.Search(SearchInput{
		Snap: snap, Store: store, Src: path[0], Dst: path[len(path)-1],
		Rand: streams.Stream(rng.StreamMCTS),
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if res.UsedFallback {
		t.Errorf("Search() with MCTSWallMs>0 should not use fallback")
	}
	if res.Path[len(res.Path)-1] != path[len(path)-1] {
		t.Errorf("Search() did not reach destination: %v", res.Path)
	}
}

func TestSearchSameSourceAndDestination(t *testing.T) {
	snap, path := chainSnapshot()
	store := flowstate.NewStore()
	r := NewRouter(config.DSROQ{MCTSWallMs: 1000, MCTSIters: 10, MaxHops: 5}, config.Positioning{})
	res, err := r.Search(SearchInput{Snap: snap, Store: store, Src: path[0], Dst: path[0]})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(res.Path) != 1 || res.Path[0] != path[0] {
		t.Errorf("Search(src==dst) path = %v, want single-node path", res.Path)
	}
}

func TestSearchFailsWhenDestinationUnreachable(t *testing.T) {
	snap, path := chainSnapshot()
	store := flowstate.NewStore()
	isolated := path[0]
	unreachable := path[len(path)-1]
	// congestion threshold 0 makes every link "congested" and unusable.
	cfg := config.DSROQ{MCTSWallMs: 100, MCTSIters: 20, MaxHops: 5, CongestionThreshold: 0}
	r := NewRouter(cfg, config.Positioning{})
	if _, err := r.Search(SearchInput{Snap: snap, Store: store, Src: isolated, Dst: unreachable}); err == nil {
		t.Errorf("Search() expected error when no admissible edges exist")
	}
}

package dsroq

import (
	"github.com/katalvlaran/lvlath/graph/algorithms"
	"github.com/katalvlaran/lvlath/graph/core"

	"github.com/skylattice/orbitsim/internal/flowstate"
	"github.com/skylattice/orbitsim/internal/satnet"
)

// weightScale converts the residual-capacity-weighted latency metric (a
// float, seconds scaled by a capacity ratio) into the int64 edge weight
// lvlath's Dijkstra requires. A million-fold scale keeps sub-millisecond
// latency differences ordered correctly after truncation.
const weightScale = 1e6

// buildRoutingGraph turns the admissible subset of snap's links (active,
// positive residual capacity, utilization below the congestion threshold)
// into an undirected weighted graph, excluding any node already present in
// visited so a reconstructed path can never revisit a hop already taken.
// Edge weight mirrors the rollout metric used elsewhere in this package:
// latency scaled up as residual capacity shrinks toward zero.
func buildRoutingGraph(snap *satnet.NetworkSnapshot, store *flowstate.Store, visited map[satnet.Hash]bool, congestionThreshold float64) *core.Graph {
	g := core.NewGraph(false, true)
	for _, l := range snap.Links {
		if !l.Active || visited[l.A] || visited[l.B] || l.CapacityBps <= 0 {
			continue
		}
		residual := l.CapacityBps - store.LinkLoad(l.A, l.B)
		if residual <= 0 || (l.CapacityBps-residual)/l.CapacityBps >= congestionThreshold {
			continue
		}
		weight := int64(l.LatencySec * (l.CapacityBps / residual) * weightScale)
		if weight < 1 {
			weight = 1
		}
		g.AddEdge(l.A.String(), l.B.String(), weight)
	}
	return g
}

// shortestPathTo computes the minimum residual-capacity-weighted-latency
// path from cur to dst over the admissible subgraph (active, uncongested
// links, excluding nodes already visited), via lvlath's Dijkstra. It
// returns the hop sequence from cur to dst inclusive, or ok=false if dst is
// unreachable within the admissible subgraph.
func shortestPathTo(snap *satnet.NetworkSnapshot, store *flowstate.Store, cur, dst satnet.Hash, visited map[satnet.Hash]bool, congestionThreshold float64) ([]satnet.Hash, bool) {
	byID := make(map[string]satnet.Hash, len(snap.Satellites)+len(snap.Grounds))
	for _, s := range snap.Satellites {
		byID[s.Hash.String()] = s.Hash
	}
	for _, gr := range snap.Grounds {
		byID[gr.Hash.String()] = gr.Hash
	}

	g := buildRoutingGraph(snap, store, visited, congestionThreshold)
	curID, dstID := cur.String(), dst.String()
	if !g.HasVertex(curID) || !g.HasVertex(dstID) {
		return nil, false
	}

	_, parent, err := algorithms.Dijkstra(g, curID)
	if err != nil || parent[dstID] == "" {
		return nil, false
	}

	var rev []satnet.Hash
	for id := dstID; id != curID; id = parent[id] {
		h, ok := byID[id]
		if !ok {
			return nil, false
		}
		rev = append(rev, h)
		if parent[id] == "" {
			return nil, false
		}
	}
	out := make([]satnet.Hash, len(rev))
	for i, h := range rev {
		out[len(rev)-1-i] = h
	}
	return out, true
}

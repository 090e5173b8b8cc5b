package satnet

import "sort"

// NetworkSnapshot is the immutable state of the network at one simulated
// time t (spec.md §3: "Snapshots are immutable once produced"). All slices
// and maps are owned by the snapshot and must not be mutated by callers;
// DSROQ, Positioning, and Admission receive read-only handles to it.
type NetworkSnapshot struct {
	TimeS      float64
	WarmingUp  bool
	Satellites []Satellite
	Grounds    []Ground
	Links      []Link

	// adjacency: node hash -> indices into Links where that node is the A
	// endpoint or the B endpoint (links are treated as bidirectional for
	// routing purposes; both directions are queryable).
	adjacency map[Hash][]int
	linkIndex map[[2]Hash]int
}

// Build finalizes adjacency indices. Called once by the producing backend
// before the snapshot is handed out; never mutated afterward.
func (s *NetworkSnapshot) Build() {
	s.adjacency = make(map[Hash][]int, len(s.Satellites)+len(s.Grounds))
	s.linkIndex = make(map[[2]Hash]int, len(s.Links)*2)
	for i, l := range s.Links {
		s.adjacency[l.A] = append(s.adjacency[l.A], i)
		s.adjacency[l.B] = append(s.adjacency[l.B], i)
		s.linkIndex[[2]Hash{l.A, l.B}] = i
		s.linkIndex[[2]Hash{l.B, l.A}] = i
	}
}

// Neighbors returns the set of nodes directly reachable from node via an
// active link, in stable hash order.
func (s *NetworkSnapshot) Neighbors(node Hash) []Hash {
	idxs := s.adjacency[node]
	out := make([]Hash, 0, len(idxs))
	for _, i := range idxs {
		l := s.Links[i]
		if !l.Active {
			continue
		}
		if l.A == node {
			out = append(out, l.B)
		} else {
			out = append(out, l.A)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		for k := 0; k < len(out[i]); k++ {
			if out[i][k] != out[j][k] {
				return out[i][k] < out[j][k]
			}
		}
		return false
	})
	return out
}

// LinkBetween returns the link connecting a and b, if present and active.
func (s *NetworkSnapshot) LinkBetween(a, b Hash) (Link, bool) {
	idx, ok := s.linkIndex[[2]Hash{a, b}]
	if !ok {
		return Link{}, false
	}
	l := s.Links[idx]
	return l, l.Active
}

// HasNode reports whether hash identifies a satellite or ground node
// present in this snapshot, used to detect routes invalidated by topology
// change (spec.md §3 invariant).
func (s *NetworkSnapshot) HasNode(h Hash) bool {
	for _, sat := range s.Satellites {
		if sat.Hash == h {
			return true
		}
	}
	for _, g := range s.Grounds {
		if g.Hash == h {
			return true
		}
	}
	return false
}

// LinkCapacity returns a dense map keyed by ordered node pair.
func (s *NetworkSnapshot) LinkCapacity() map[[2]Hash]float64 {
	out := make(map[[2]Hash]float64, len(s.Links))
	for _, l := range s.Links {
		out[[2]Hash{l.A, l.B}] = l.CapacityBps
		out[[2]Hash{l.B, l.A}] = l.CapacityBps
	}
	return out
}

// LinkUtilization returns a dense map keyed by ordered node pair.
func (s *NetworkSnapshot) LinkUtilization() map[[2]Hash]float64 {
	out := make(map[[2]Hash]float64, len(s.Links))
	for _, l := range s.Links {
		u := l.Utilization()
		out[[2]Hash{l.A, l.B}] = u
		out[[2]Hash{l.B, l.A}] = u
	}
	return out
}

// VisibleSatellites returns the satellites visible from a ground node in
// this snapshot (those with an active GSL link to it).
func (s *NetworkSnapshot) VisibleSatellites(ground Hash) []Hash {
	return s.Neighbors(ground)
}

package flowstate

// linkKey canonicalizes an (a, b) pair so forward and reverse traversal of
// the same physical link hit the same counter; link load is symmetric
// (spec.md §3: Link carries a single current_load_bps).
func linkKey(a, b Hash) [2]Hash {
	for i := range a {
		if a[i] < b[i] {
			return [2]Hash{a, b}
		}
		if a[i] > b[i] {
			return [2]Hash{b, a}
		}
	}
	return [2]Hash{a, b}
}

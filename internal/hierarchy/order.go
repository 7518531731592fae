package hierarchy

import "sort"

// Order returns the nodes sorted shallow-first by the declared level, with
// the code as tie-breaker for determinism. Nodes without a usable level
// sort last. The input slice is not modified.
//
// Leveling is an optimization, not a correctness dependency: it reduces the
// number of Phase B parent resolutions that must fall back to a target
// store lookup, but orphans and cycles mean it can never eliminate them.
func Order(nodes []*Node) []*Node {
	ordered := make([]*Node, len(nodes))
	copy(ordered, nodes)

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Level != ordered[j].Level {
			return ordered[i].Level < ordered[j].Level
		}
		return ordered[i].Code < ordered[j].Code
	})

	return ordered
}

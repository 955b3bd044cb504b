package spreadsheet

// wouldCycle reports whether giving target the proposed precedent set would
// close a cycle: does anything the new formula reads, transitively, read
// target back? the walk follows existing precedent edges and shares one
// visited set across all start points, so it costs at most the size of the
// subgraph reachable from the proposed precedents. nothing is mutated.
func (dg *DependencyGraph) wouldCycle(target int, precedents map[int]struct{}) bool {
	// self-reference, directly or through a range, is a one-node cycle
	if _, self := precedents[target]; self {
		return true
	}

	visited := make(map[int]struct{}, len(precedents))
	stack := make([]int, 0, len(precedents))
	for precedent := range precedents {
		visited[precedent] = struct{}{}
		stack = append(stack, precedent)
	}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node, exists := dg.nodes[current]
		if !exists {
			continue
		}
		for next := range node.Precedents {
			if next == target {
				return true
			}
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = struct{}{}
			stack = append(stack, next)
		}
	}
	return false
}

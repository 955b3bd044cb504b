package spreadsheet

import "slices"

// DependencyNode holds the adjacency sets of one cell. nodes refer to each
// other by flattened cell index only, never by pointer.
type DependencyNode struct {
	Precedents map[int]struct{} // cells this cell reads
	Dependents map[int]struct{} // cells that read this cell
}

func (n *DependencyNode) isEmpty() bool {
	return len(n.Precedents) == 0 && len(n.Dependents) == 0
}

// DependencyGraph is a derived index over the cell store. for every edge
// "u reads v", u's precedents and v's dependents are updated in lockstep.
// nodes exist only for cells that have at least one edge.
type DependencyGraph struct {
	nodes map[int]*DependencyNode
	edges int
}

// NewDependencyGraph creates a new dependency graph
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes: make(map[int]*DependencyNode),
	}
}

// getOrCreateNode gets an existing node or creates a new one
func (dg *DependencyGraph) getOrCreateNode(index int) *DependencyNode {
	if node, exists := dg.nodes[index]; exists {
		return node
	}

	node := &DependencyNode{
		Precedents: make(map[int]struct{}),
		Dependents: make(map[int]struct{}),
	}
	dg.nodes[index] = node
	return node
}

// cleanupNodeIfEmpty removes a node once it has no edges left
func (dg *DependencyGraph) cleanupNodeIfEmpty(index int) {
	if node, exists := dg.nodes[index]; exists && node.isEmpty() {
		delete(dg.nodes, index)
	}
}

// AddCellDependency adds the edge "from reads to"
func (dg *DependencyGraph) AddCellDependency(from, to int) {
	fromNode := dg.getOrCreateNode(from)
	if _, exists := fromNode.Precedents[to]; exists {
		return
	}
	toNode := dg.getOrCreateNode(to)

	fromNode.Precedents[to] = struct{}{}
	toNode.Dependents[from] = struct{}{}
	dg.edges++
}

// RemoveCellDependency removes the edge "from reads to"
func (dg *DependencyGraph) RemoveCellDependency(from, to int) bool {
	fromNode, fromExists := dg.nodes[from]
	toNode, toExists := dg.nodes[to]
	if !fromExists || !toExists {
		return false
	}
	if _, exists := fromNode.Precedents[to]; !exists {
		return false
	}

	delete(fromNode.Precedents, to)
	delete(toNode.Dependents, from)
	dg.edges--

	dg.cleanupNodeIfEmpty(from)
	dg.cleanupNodeIfEmpty(to)
	return true
}

// RebuildOutgoing replaces the precedent set of a cell. edges present in both
// the old and new sets are left alone, so reverse sets only change where the
// formula actually changed. callers run the cycle check first.
func (dg *DependencyGraph) RebuildOutgoing(index int, precedents map[int]struct{}) {
	if node, exists := dg.nodes[index]; exists {
		for old := range node.Precedents {
			if _, keep := precedents[old]; !keep {
				dg.RemoveCellDependency(index, old)
			}
		}
	}
	for precedent := range precedents {
		dg.AddCellDependency(index, precedent)
	}
}

// DirectDependents returns cells directly reading this cell, sorted
func (dg *DependencyGraph) DirectDependents(index int) []int {
	node, exists := dg.nodes[index]
	if !exists {
		return nil
	}
	return sortedKeys(node.Dependents)
}

// DirectPrecedents returns cells this cell directly reads, sorted
func (dg *DependencyGraph) DirectPrecedents(index int) []int {
	node, exists := dg.nodes[index]
	if !exists {
		return nil
	}
	return sortedKeys(node.Precedents)
}

// DependentsClosure returns every cell reachable from index by following
// dependent edges, including index itself. this is exactly the set that must
// be recomputed after index changes.
func (dg *DependencyGraph) DependentsClosure(index int) map[int]struct{} {
	closure := map[int]struct{}{index: {}}
	queue := []int{index}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		node, exists := dg.nodes[current]
		if !exists {
			continue
		}
		for dependent := range node.Dependents {
			if _, seen := closure[dependent]; seen {
				continue
			}
			closure[dependent] = struct{}{}
			queue = append(queue, dependent)
		}
	}
	return closure
}

// DependsOn reports whether from transitively reads to, following existing
// precedent edges. the walk touches only what is reachable from from.
func (dg *DependencyGraph) DependsOn(from, to int) bool {
	visited := map[int]struct{}{from: {}}
	stack := []int{from}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if current == to {
			return true
		}

		node, exists := dg.nodes[current]
		if !exists {
			continue
		}
		for precedent := range node.Precedents {
			if _, seen := visited[precedent]; seen {
				continue
			}
			visited[precedent] = struct{}{}
			stack = append(stack, precedent)
		}
	}
	return false
}

// HasCycle checks the whole graph for circular dependencies. edits keep the
// graph acyclic, so this is a consistency check, not part of an edit.
func (dg *DependencyGraph) HasCycle() bool {
	// three states: unvisited (not in map), visiting (false), visited (true)
	state := make(map[int]bool, len(dg.nodes))

	type frame struct {
		index      int
		precedents []int
		next       int
	}

	for _, start := range sortedKeys(dg.nodes) {
		if _, seen := state[start]; seen {
			continue
		}
		state[start] = false
		stack := []frame{{index: start, precedents: dg.DirectPrecedents(start)}}

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next == len(top.precedents) {
				state[top.index] = true
				stack = stack[:len(stack)-1]
				continue
			}
			precedent := top.precedents[top.next]
			top.next++

			completed, seen := state[precedent]
			if seen && !completed {
				// currently visiting - cycle detected
				return true
			}
			if !seen {
				state[precedent] = false
				stack = append(stack, frame{index: precedent, precedents: dg.DirectPrecedents(precedent)})
			}
		}
	}
	return false
}

// NodeCount returns the number of nodes in the graph
func (dg *DependencyGraph) NodeCount() int {
	return len(dg.nodes)
}

// EdgeCount returns the number of edges in the graph
func (dg *DependencyGraph) EdgeCount() int {
	return dg.edges
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

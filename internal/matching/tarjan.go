package matching

import "sort"

// SCC is one strongly connected component, as node indices into Graph.Nodes.
type SCC struct {
	Nodes []int
}

// hasSelfLoop reports whether the graph has an edge from id to itself.
func hasSelfLoop(g *Graph, id string) bool {
	for _, e := range g.Adj[id] {
		if e.To == id {
			return true
		}
	}
	return false
}

// StronglyConnectedComponents runs Tarjan's algorithm over g, dropping
// singleton components with no self-loop (they cannot contain a cycle).
// Components are ordered by the smallest node index they contain, so that
// downstream enumeration is deterministic.
func StronglyConnectedComponents(g *Graph) []SCC {
	n := len(g.Nodes)
	indexOf := make([]int, n)
	lowlink := make([]int, n)
	onStack := make([]bool, n)
	visited := make([]bool, n)
	var stack []int
	nextIndex := 0
	var result []SCC

	var strongconnect func(v int)
	strongconnect = func(v int) {
		indexOf[v] = nextIndex
		lowlink[v] = nextIndex
		nextIndex++
		visited[v] = true
		stack = append(stack, v)
		onStack[v] = true

		for _, e := range g.Adj[g.Nodes[v]] {
			w := g.Index[e.To]
			if !visited[w] {
				strongconnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if indexOf[w] < lowlink[v] {
					lowlink[v] = indexOf[w]
				}
			}
		}

		if lowlink[v] == indexOf[v] {
			var comp []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			if len(comp) > 1 || hasSelfLoop(g, g.Nodes[comp[0]]) {
				sort.Ints(comp)
				result = append(result, SCC{Nodes: comp})
			}
		}
	}

	for v := 0; v < n; v++ {
		if !visited[v] {
			strongconnect(v)
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Nodes[0] < result[j].Nodes[0] })
	return result
}

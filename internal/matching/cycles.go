package matching

import (
	"sort"
	"strings"
	"time"
)

// Bounds configures cycle enumeration (§4.5 step 3/4).
//
// MaxEnumeratedCycles is a pointer so "absent" (nil, the default: no cap)
// is distinguishable from an explicitly requested 0, which must cap
// enumeration to zero cycles rather than fall through to unbounded.
type Bounds struct {
	MinLen              int  // default 2
	MaxLen              int  // default 3
	MaxEnumeratedCycles *int // nil = unbounded; 0 = cap to zero cycles
	TimeoutMillis       int  // 0 = unbounded
}

// WithDefaults fills zero fields with the spec's defaults.
func (b Bounds) WithDefaults() Bounds {
	if b.MinLen == 0 {
		b.MinLen = 2
	}
	if b.MaxLen == 0 {
		b.MaxLen = 3
	}
	return b
}

// TripReason records which termination bound, if any, stopped enumeration
// before the search space was exhausted.
type TripReason string

const (
	TripNone         TripReason = ""
	TripMaxEnumerated TripReason = "max_enumerated_cycles"
	TripTimeout       TripReason = "timeout_ms"
)

// Cycle is one enumerated simple cycle, as node indices in canonical
// rotation (lexicographically smallest intent id leads).
type Cycle struct {
	Nodes        []int
	CanonicalKey string
}

// EnumerateCycles performs the bounded DFS enumeration from §4.5 step 3,
// over every SCC in sccs. The DFS is recursive and keeps the current path
// in a slice; because it prunes at max_len, recursion depth never exceeds
// max_len.
func EnumerateCycles(g *Graph, sccs []SCC, bounds Bounds, start time.Time) ([]Cycle, TripReason) {
	bounds = bounds.WithDefaults()
	seen := make(map[string]bool)
	var cycles []Cycle
	trip := TripNone

	if bounds.MaxEnumeratedCycles != nil && *bounds.MaxEnumeratedCycles == 0 {
		return nil, TripMaxEnumerated
	}

	deadline := time.Time{}
	if bounds.TimeoutMillis > 0 {
		deadline = start.Add(time.Duration(bounds.TimeoutMillis) * time.Millisecond)
	}

	checkTimeout := func() bool {
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			trip = TripTimeout
			return true
		}
		return false
	}

sccLoop:
	for _, scc := range sccs {
		inSCC := make(map[int]bool, len(scc.Nodes))
		for _, v := range scc.Nodes {
			inSCC[v] = true
		}
		for _, s := range scc.Nodes {
			if checkTimeout() {
				break sccLoop
			}
			var path []int
			onPath := make(map[int]bool)

			var dfs func(v int) bool // returns true to abort (bound tripped)
			dfs = func(v int) bool {
				path = append(path, v)
				onPath[v] = true
				defer func() {
					onPath[v] = false
					path = path[:len(path)-1]
				}()

				for _, e := range g.Adj[g.Nodes[v]] {
					w := g.Index[e.To]
					if !inSCC[w] || w < s {
						continue
					}
					if w == s {
						if len(path) >= bounds.MinLen && len(path) <= bounds.MaxLen {
							cyc := canonicalCycle(g, append([]int(nil), path...))
							if !seen[cyc.CanonicalKey] {
								seen[cyc.CanonicalKey] = true
								cycles = append(cycles, cyc)
								if bounds.MaxEnumeratedCycles != nil && len(cycles) >= *bounds.MaxEnumeratedCycles {
									trip = TripMaxEnumerated
									return true
								}
							}
						}
						continue
					}
					if onPath[w] || len(path) == bounds.MaxLen {
						continue
					}
					if checkTimeout() {
						return true
					}
					if dfs(w) {
						return true
					}
				}
				return false
			}

			if dfs(s) {
				break sccLoop
			}
		}
	}

	sort.Slice(cycles, func(i, j int) bool {
		if len(cycles[i].Nodes) != len(cycles[j].Nodes) {
			return len(cycles[i].Nodes) < len(cycles[j].Nodes)
		}
		return cycles[i].CanonicalKey < cycles[j].CanonicalKey
	})
	return cycles, trip
}

// canonicalCycle rotates path so its lexicographically smallest intent id
// leads, and derives the dedup/sort key from the rotated id sequence.
func canonicalCycle(g *Graph, path []int) Cycle {
	minIdx := 0
	for i, v := range path {
		if g.Nodes[v] < g.Nodes[path[minIdx]] {
			minIdx = i
		}
	}
	rotated := append(append([]int(nil), path[minIdx:]...), path[:minIdx]...)
	ids := make([]string, len(rotated))
	for i, v := range rotated {
		ids[i] = g.Nodes[v]
	}
	return Cycle{Nodes: rotated, CanonicalKey: strings.Join(ids, ">")}
}

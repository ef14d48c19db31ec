// Package matching implements the compatibility-graph build, cycle
// enumeration, and disjoint proposal selection described as the hardest
// subsystem: every intent is a node, every satisfiable want/offer pairing
// (subject to explicit allow/prefer/block overrides) is a directed edge,
// and a proposal is a simple directed cycle through that graph.
package matching

import (
	"sort"
	"time"

	"swapgraph/internal/store"
)

// EdgeOrigin records why an edge exists, for explainability.
type EdgeOrigin string

const (
	OriginDerived  EdgeOrigin = "derived"
	OriginExplicit EdgeOrigin = "explicit"
	OriginHybrid   EdgeOrigin = "hybrid"
)

// Edge is one directed compatibility edge: "from" can receive what it wants
// from "to" (to's offer satisfies from's want and falls in from's value
// band), unless overridden by an explicit block.
type Edge struct {
	From              string
	To                string
	Origin            EdgeOrigin
	BaseCompatibility float64
	PreferStrength    float64
	ConstraintFitOK   bool // true iff the derived match held without an explicit override
}

// EdgeScore implements §4.5 step 5's edge_score formula.
func (e Edge) EdgeScore() float64 {
	score := e.BaseCompatibility * (1 + e.PreferStrength)
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// Graph is the compatibility graph for one matching run: a fixed, sorted
// node ordering plus an adjacency list of edges.
type Graph struct {
	Nodes []string          // sorted intent ids
	Index map[string]int    // intent id -> index into Nodes
	Adj   map[string][]Edge // from -> outgoing edges, sorted by To
}

// BuildGraph constructs the compatibility graph from active intents and
// non-expired edge-intents, as of instant now.
func BuildGraph(intents map[string]*store.SwapIntent, edgeIntents map[string]*store.EdgeIntent, now time.Time) *Graph {
	nodes := make([]string, 0, len(intents))
	for id, intent := range intents {
		if intent.Status == store.IntentActive {
			nodes = append(nodes, id)
		}
	}
	sort.Strings(nodes)

	index := make(map[string]int, len(nodes))
	for i, id := range nodes {
		index[id] = i
	}

	explicit := make(map[[2]string]*store.EdgeIntent)
	for _, e := range edgeIntents {
		if !e.Active(now) {
			continue
		}
		if _, ok := index[e.SourceIntentID]; !ok {
			continue
		}
		if _, ok := index[e.TargetIntentID]; !ok {
			continue
		}
		explicit[[2]string{e.SourceIntentID, e.TargetIntentID}] = e
	}

	adj := make(map[string][]Edge, len(nodes))
	for _, fromID := range nodes {
		from := intents[fromID]
		for _, toID := range nodes {
			if fromID == toID {
				continue
			}
			to := intents[toID]
			key := [2]string{fromID, toID}
			override := explicit[key]

			if override != nil && override.Type == store.EdgeBlock {
				continue
			}

			derivedOK, constraintFitOK := wantSatisfiedByOffer(from, to)

			switch {
			case override != nil && (override.Type == store.EdgeAllow || override.Type == store.EdgePrefer):
				origin := EdgeOrigin(OriginExplicit)
				if derivedOK {
					origin = OriginHybrid
				}
				adj[fromID] = append(adj[fromID], Edge{
					From:              fromID,
					To:                toID,
					Origin:            origin,
					BaseCompatibility: 1.0,
					PreferStrength:    preferStrength(override),
					ConstraintFitOK:   false, // explicit override present: not a pure constraint-fit match
				})
			case derivedOK:
				adj[fromID] = append(adj[fromID], Edge{
					From:              fromID,
					To:                toID,
					Origin:            OriginDerived,
					BaseCompatibility: 1.0,
					PreferStrength:    0,
					ConstraintFitOK:   constraintFitOK,
				})
			}
		}
	}
	for id := range adj {
		sort.Slice(adj[id], func(i, j int) bool { return adj[id][i].To < adj[id][j].To })
	}

	return &Graph{Nodes: nodes, Index: index, Adj: adj}
}

func preferStrength(e *store.EdgeIntent) float64 {
	if e.Type != store.EdgePrefer {
		return 0
	}
	return e.Strength
}

// wantSatisfiedByOffer reports whether "to"'s offer satisfies "from"'s
// want_spec disjunction AND the USD-summed value of "to"'s offer falls
// inside "from"'s value band.
func wantSatisfiedByOffer(from, to *store.SwapIntent) (satisfied bool, constraintFit bool) {
	offerValue := to.OfferValueUSD()
	if offerValue < from.ValueBand.MinUSD || offerValue > from.ValueBand.MaxUSD {
		return false, false
	}
	for _, want := range from.WantSpec {
		if wantClauseMatchesOffer(want, to.Offer) {
			return true, true
		}
	}
	return false, false
}

func wantClauseMatchesOffer(want store.WantClause, offer []store.AssetRef) bool {
	for _, asset := range offer {
		if asset.Platform != want.Platform {
			continue
		}
		switch want.Kind {
		case store.WantSpecificAsset:
			if want.AssetKey == want.Platform+":"+asset.AssetID {
				return true
			}
		case store.WantCategory:
			if want.Category != "" && want.Category == asset.Class {
				if want.WearConstraint == "" || want.WearConstraint == asset.Instance {
					return true
				}
			}
		}
	}
	return false
}

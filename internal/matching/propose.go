package matching

import (
	"time"

	"swapgraph/internal/store"
)

// Config tunes the scoring/selection knobs left open by the open question
// on confidence_score (edge_score = base_compatibility * (1 +
// prefer_strength), clipped to [0,1]; base_compatibility is 1.0 for every
// derived/allow/hybrid edge today, block edges never reach this stage).
type Config struct {
	ValueDeltaFraction float64 // explainability "value_delta" threshold, fraction of mean give value
	ProposalTTL        time.Duration
}

// DefaultConfig returns the engine's default tuning.
func DefaultConfig() Config {
	return Config{ValueDeltaFraction: 0.1, ProposalTTL: 15 * time.Minute}
}

// BuildProposal materializes one CycleProposal from an enumerated cycle.
func BuildProposal(g *Graph, intents map[string]*store.SwapIntent, cyc Cycle, cfg Config, now time.Time, idFn func() string) store.CycleProposal {
	n := len(cyc.Nodes)
	ids := make([]string, n)
	for i, v := range cyc.Nodes {
		ids[i] = g.Nodes[v]
	}

	gives := make([][]store.AssetRef, n)
	for i := 0; i < n; i++ {
		prev := (i - 1 + n) % n
		current := intents[ids[i]]
		prevWant := intents[ids[prev]].WantSpec
		gives[i] = selectGive(current.Offer, prevWant)
	}

	participants := make([]store.Participant, n)
	for i := 0; i < n; i++ {
		next := (i + 1) % n
		participants[i] = store.Participant{
			IntentID: ids[i],
			Actor:    intents[ids[i]].Owner,
			Give:     gives[i],
			Get:      gives[next],
		}
	}

	confidence := 1.0
	allConstraintFit := true
	for i := 0; i < n; i++ {
		next := (i + 1) % n
		edge := findEdge(g, ids[i], ids[next])
		if edge == nil {
			// Should not happen: the cycle was derived from graph edges.
			allConstraintFit = false
			continue
		}
		confidence *= edge.EdgeScore()
		if !edge.ConstraintFitOK {
			allConstraintFit = false
		}
	}

	giveValues := make([]float64, n)
	var sum float64
	for i, p := range participants {
		giveValues[i] = p.GiveValueUSD()
		sum += giveValues[i]
	}
	minV, maxV := giveValues[0], giveValues[0]
	for _, v := range giveValues[1:] {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	spread := maxV - minV
	mean := sum / float64(n)

	var explainability []string
	if mean > 0 && spread <= cfg.ValueDeltaFraction*mean {
		explainability = append(explainability, "value_delta")
	}
	explainability = append(explainability, "confidence")
	if allConstraintFit {
		explainability = append(explainability, "constraint_fit")
	}

	return store.CycleProposal{
		ID:              idFn(),
		Participants:    participants,
		ConfidenceScore: confidence,
		ValueSpread:     spread,
		Explainability:  explainability,
		ExpiresAt:       now.Add(cfg.ProposalTTL),
		CreatedAt:       now,
	}
}

func findEdge(g *Graph, from, to string) *Edge {
	for i := range g.Adj[from] {
		if g.Adj[from][i].To == to {
			return &g.Adj[from][i]
		}
	}
	return nil
}

// selectGive returns the subset of offer that satisfies want; falls back to
// the full offer when no asset-level match is found (the cycle edge already
// proved the offer satisfies the want in aggregate).
func selectGive(offer []store.AssetRef, want []store.WantClause) []store.AssetRef {
	var matched []store.AssetRef
	for _, asset := range offer {
		for _, clause := range want {
			if wantClauseMatchesOffer(clause, []store.AssetRef{asset}) {
				matched = append(matched, asset)
				break
			}
		}
	}
	if len(matched) == 0 {
		return append([]store.AssetRef(nil), offer...)
	}
	return matched
}

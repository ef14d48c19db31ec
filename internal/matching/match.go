package matching

import (
	"sort"
	"time"

	"swapgraph/internal/bech32id"
	"swapgraph/internal/store"

	"github.com/google/uuid"
)

// Trace carries diagnostics about one matching run, for the I4 determinism
// testable property and for operator inspection (swapgraphctl run-matching).
type Trace struct {
	RunID                    string
	NodeCount                int // intents_active: BuildGraph pre-filters to active intents only
	EdgeCount                int
	SCCCount                 int
	EnumeratedCycles         int
	TripReason               TripReason
	CycleEnumerationLimited  bool // max_enumerated_cycles tripped
	CycleEnumerationTimedOut bool // timeout_ms tripped
	ProposalsConsidered      int
	ProposalsSelected        int
	Duration                 time.Duration
}

// Run executes one full matching pass: build graph, decompose into SCCs,
// enumerate bounded simple cycles, materialize a proposal per cycle, then
// greedily select a disjoint-by-intent subset.
func Run(intents map[string]*store.SwapIntent, edgeIntents map[string]*store.EdgeIntent, bounds Bounds, cfg Config, now time.Time) ([]store.CycleProposal, Trace, error) {
	start := time.Now()

	g := BuildGraph(intents, edgeIntents, now)
	sccs := StronglyConnectedComponents(g)
	cycles, trip := EnumerateCycles(g, sccs, bounds, start)

	runID, err := newRunID()
	if err != nil {
		return nil, Trace{}, err
	}

	candidates := make([]store.CycleProposal, 0, len(cycles))
	for _, cyc := range cycles {
		cyc := cyc
		candidates = append(candidates, BuildProposal(g, intents, cyc, cfg, now, func() string {
			return proposalID(cyc)
		}))
	}

	selected := selectDisjoint(candidates, cycles)

	edgeCount := 0
	for _, edges := range g.Adj {
		edgeCount += len(edges)
	}

	trace := Trace{
		RunID:                    runID,
		NodeCount:                len(g.Nodes),
		EdgeCount:                edgeCount,
		SCCCount:                 len(sccs),
		EnumeratedCycles:         len(cycles),
		TripReason:               trip,
		CycleEnumerationLimited:  trip == TripMaxEnumerated,
		CycleEnumerationTimedOut: trip == TripTimeout,
		ProposalsConsidered:      len(candidates),
		ProposalsSelected:        len(selected),
		Duration:                 time.Since(start),
	}
	return selected, trace, nil
}

func newRunID() (string, error) {
	raw, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	b := raw[:]
	return bech32id.Encode("run", b)
}

// proposalID derives a stable id from the cycle's canonical key so repeated
// runs over unchanged state produce the same proposal id (supports I4).
func proposalID(cyc Cycle) string {
	return "proposal_" + canonicalCycleHash(cyc.CanonicalKey)
}

// selectDisjoint implements §4.5 step 5's greedy disjoint selection: sort
// by (higher confidence, lower value_spread, lower cycle length, lex
// canonical key), then take each candidate iff none of its participants is
// already claimed.
func selectDisjoint(candidates []store.CycleProposal, cycles []Cycle) []store.CycleProposal {
	type ranked struct {
		proposal store.CycleProposal
		cycleLen int
		canonKey string
	}
	ranked_ := make([]ranked, len(candidates))
	for i := range candidates {
		ranked_[i] = ranked{proposal: candidates[i], cycleLen: len(cycles[i].Nodes), canonKey: cycles[i].CanonicalKey}
	}

	sort.SliceStable(ranked_, func(i, j int) bool {
		a, b := ranked_[i], ranked_[j]
		if a.proposal.ConfidenceScore != b.proposal.ConfidenceScore {
			return a.proposal.ConfidenceScore > b.proposal.ConfidenceScore
		}
		if a.proposal.ValueSpread != b.proposal.ValueSpread {
			return a.proposal.ValueSpread < b.proposal.ValueSpread
		}
		if a.cycleLen != b.cycleLen {
			return a.cycleLen < b.cycleLen
		}
		return a.canonKey < b.canonKey
	})

	claimed := make(map[string]bool)
	var out []store.CycleProposal
	for _, r := range ranked_ {
		overlap := false
		for _, id := range r.proposal.IntentIDs() {
			if claimed[id] {
				overlap = true
				break
			}
		}
		if overlap {
			continue
		}
		for _, id := range r.proposal.IntentIDs() {
			claimed[id] = true
		}
		out = append(out, r.proposal)
	}
	return out
}

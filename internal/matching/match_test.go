package matching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"swapgraph/internal/actor"
	"swapgraph/internal/store"
)

func intent(id, platform, offerAssetID, offerClass string, valueUSD float64, wantClass string) *store.SwapIntent {
	return &store.SwapIntent{
		ID:    id,
		Owner: actor.Actor{Type: actor.User, ID: id + "-owner"},
		Offer: []store.AssetRef{
			{Platform: platform, AssetID: offerAssetID, Class: offerClass, ValueUSD: valueUSD},
		},
		WantSpec: []store.WantClause{
			{Kind: store.WantCategory, Platform: platform, Category: wantClass},
		},
		ValueBand: store.ValueBand{MinUSD: 0, MaxUSD: 1_000_000},
		Status:    store.IntentActive,
	}
}

// Three-cycle: A offers knife/wants rifle, B offers rifle/wants glove, C
// offers glove/wants knife.
func threeCycleIntents() map[string]*store.SwapIntent {
	return map[string]*store.SwapIntent{
		"intent_a": intent("intent_a", "csgo", "knife-1", "knife", 100, "rifle"),
		"intent_b": intent("intent_b", "csgo", "rifle-1", "rifle", 100, "glove"),
		"intent_c": intent("intent_c", "csgo", "glove-1", "glove", 100, "knife"),
	}
}

func TestRunFindsThreeCycle(t *testing.T) {
	intents := threeCycleIntents()
	now := time.Unix(1_700_000_000, 0).UTC()

	proposals, trace, err := Run(intents, nil, Bounds{}, DefaultConfig(), now)
	require.NoError(t, err)
	require.Len(t, proposals, 1)
	require.Len(t, proposals[0].Participants, 3)
	require.Equal(t, 1, trace.ProposalsSelected)
}

func TestRunIsDeterministic(t *testing.T) {
	intents := threeCycleIntents()
	now := time.Unix(1_700_000_000, 0).UTC()

	p1, _, err := Run(intents, nil, Bounds{}, DefaultConfig(), now)
	require.NoError(t, err)
	p2, _, err := Run(intents, nil, Bounds{}, DefaultConfig(), now)
	require.NoError(t, err)

	require.Equal(t, len(p1), len(p2))
	for i := range p1 {
		require.Equal(t, p1[i].ID, p2[i].ID)
		require.Equal(t, p1[i].ConfidenceScore, p2[i].ConfidenceScore)
		require.Equal(t, p1[i].IntentIDs(), p2[i].IntentIDs())
	}
}

func TestSelectDisjointNeverOverlaps(t *testing.T) {
	intents := threeCycleIntents()
	// Add a second, overlapping two-cycle between a and b so the selector
	// must choose one or the other, never both.
	intents["intent_a"].WantSpec = append(intents["intent_a"].WantSpec, store.WantClause{
		Kind: store.WantCategory, Platform: "csgo", Category: "rifle",
	})
	intents["intent_b"].Offer = append(intents["intent_b"].Offer, store.AssetRef{
		Platform: "csgo", AssetID: "rifle-2", Class: "rifle", ValueUSD: 100,
	})
	intents["intent_b"].WantSpec = []store.WantClause{
		{Kind: store.WantCategory, Platform: "csgo", Category: "knife"},
	}

	now := time.Unix(1_700_000_000, 0).UTC()
	proposals, _, err := Run(intents, nil, Bounds{}, DefaultConfig(), now)
	require.NoError(t, err)

	claimed := make(map[string]bool)
	for _, p := range proposals {
		for _, id := range p.IntentIDs() {
			require.False(t, claimed[id], "intent %s claimed by more than one proposal", id)
			claimed[id] = true
		}
	}
}

func TestBlockEdgeRemovesDerivedEdge(t *testing.T) {
	intents := threeCycleIntents()
	edges := map[string]*store.EdgeIntent{
		"edge_1": {
			ID:             "edge_1",
			SourceIntentID: "intent_a",
			TargetIntentID: "intent_b",
			Type:           store.EdgeBlock,
			Status:         store.EdgeStatusActive,
		},
	}
	now := time.Unix(1_700_000_000, 0).UTC()
	proposals, _, err := Run(intents, edges, Bounds{}, DefaultConfig(), now)
	require.NoError(t, err)
	require.Empty(t, proposals)
}

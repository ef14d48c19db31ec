package commits

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"swapgraph/internal/actor"
	"swapgraph/internal/store"
)

func fixedNow() time.Time { return time.Unix(1_700_000_000, 0).UTC() }

func setupProposal(t *testing.T, st *store.StateStore) (*store.CycleProposal, []actor.Actor) {
	t.Helper()
	a1 := actor.Actor{Type: actor.User, ID: "a1"}
	a2 := actor.Actor{Type: actor.User, ID: "a2"}

	proposal := &store.CycleProposal{
		ID: "proposal_abc",
		Participants: []store.Participant{
			{IntentID: "intent_1", Actor: a1},
			{IntentID: "intent_2", Actor: a2},
		},
		ConfidenceScore: 1,
		ExpiresAt:       fixedNow().Add(time.Hour),
	}
	require.NoError(t, st.Update(func(d *store.Document) error {
		d.Proposals[proposal.ID] = proposal
		d.Intents["intent_1"] = &store.SwapIntent{ID: "intent_1", Owner: a1, Status: store.IntentActive}
		d.Intents["intent_2"] = &store.SwapIntent{ID: "intent_2", Owner: a2, Status: store.IntentActive}
		return nil
	}))
	return proposal, []actor.Actor{a1, a2}
}

func TestAcceptReservesAndBecomesReady(t *testing.T) {
	st, err := store.New(nil)
	require.NoError(t, err)
	proposal, actors := setupProposal(t, st)
	svc := New(st, fixedNow)

	out1, err := svc.Accept(proposal.ID, actors[0], nil)
	require.NoError(t, err)
	require.True(t, out1.Reserved)
	require.False(t, out1.ReadyNow)
	require.Equal(t, store.CommitPending, out1.Commit.Phase)

	out2, err := svc.Accept(proposal.ID, actors[1], nil)
	require.NoError(t, err)
	require.True(t, out2.Reserved)
	require.True(t, out2.ReadyNow)
	require.Equal(t, store.CommitReady, out2.Commit.Phase)

	intent1, err := st.Export()
	require.NoError(t, err)
	require.Contains(t, string(intent1), `"reserved"`)
}

func TestAcceptIsIdempotentOnRepeat(t *testing.T) {
	st, err := store.New(nil)
	require.NoError(t, err)
	proposal, actors := setupProposal(t, st)
	svc := New(st, fixedNow)

	_, err = svc.Accept(proposal.ID, actors[0], nil)
	require.NoError(t, err)
	out, err := svc.Accept(proposal.ID, actors[0], nil)
	require.NoError(t, err)
	require.True(t, out.AlreadyAccepted)
}

func TestDeclineReleasesReservations(t *testing.T) {
	st, err := store.New(nil)
	require.NoError(t, err)
	proposal, actors := setupProposal(t, st)
	svc := New(st, fixedNow)

	_, err = svc.Accept(proposal.ID, actors[0], nil)
	require.NoError(t, err)

	out, err := svc.Decline(proposal.ID, actors[1])
	require.NoError(t, err)
	require.Equal(t, store.CommitDeclined, out.Commit.Phase)
	require.Contains(t, out.ReleasedIntents, "intent_1")

	st.View(func(d *store.Document) {
		require.Equal(t, store.IntentActive, d.Intents["intent_1"].Status)
		require.Empty(t, d.Intents["intent_1"].ReservedByCommitID)
	})
}

func TestAcceptRejectsConflictingReservation(t *testing.T) {
	st, err := store.New(nil)
	require.NoError(t, err)
	proposal, actors := setupProposal(t, st)
	svc := New(st, fixedNow)

	require.NoError(t, st.Update(func(d *store.Document) error {
		d.Intents["intent_1"].Status = store.IntentReserved
		d.Intents["intent_1"].ReservedByCommitID = "commit_other"
		return nil
	}))

	_, err = svc.Accept(proposal.ID, actors[0], nil)
	require.Error(t, err)
}

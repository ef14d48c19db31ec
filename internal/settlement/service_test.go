package settlement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"swapgraph/internal/actor"
	"swapgraph/internal/eventlog"
	"swapgraph/internal/signing"
	"swapgraph/internal/store"
)

func fixedNow() time.Time { return time.Unix(1_700_000_000, 0).UTC() }

func setupReadyCommit(t *testing.T, st *store.StateStore) (string, []actor.Actor) {
	t.Helper()
	a1 := actor.Actor{Type: actor.User, ID: "a1"}
	a2 := actor.Actor{Type: actor.User, ID: "a2"}
	commitID := "commit_test"
	proposalID := "proposal_test"

	require.NoError(t, st.Update(func(d *store.Document) error {
		d.Intents["intent_1"] = &store.SwapIntent{
			ID: "intent_1", Owner: a1, Status: store.IntentReserved, ReservedByCommitID: commitID,
			Offer: []store.AssetRef{{Platform: "csgo", AssetID: "knife-1", ValueUSD: 100}},
		}
		d.Intents["intent_2"] = &store.SwapIntent{
			ID: "intent_2", Owner: a2, Status: store.IntentReserved, ReservedByCommitID: commitID,
			Offer: []store.AssetRef{{Platform: "csgo", AssetID: "rifle-1", ValueUSD: 100}},
		}
		d.Proposals[proposalID] = &store.CycleProposal{
			ID: proposalID,
			Participants: []store.Participant{
				{IntentID: "intent_1", Actor: a1, Give: []store.AssetRef{{Platform: "csgo", AssetID: "knife-1", ValueUSD: 100}}},
				{IntentID: "intent_2", Actor: a2, Give: []store.AssetRef{{Platform: "csgo", AssetID: "rifle-1", ValueUSD: 100}}},
			},
		}
		d.Commits[commitID] = &store.Commit{ID: commitID, ProposalID: proposalID, Phase: store.CommitReady}
		return nil
	}))
	return commitID, []actor.Actor{a1, a2}
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	st, err := store.New(nil)
	require.NoError(t, err)
	signer, err := signing.NewSigner("k1", "secret")
	require.NoError(t, err)
	return New(st, eventlog.New(st, signer), signer, fixedNow)
}

func TestFullSettlementLifecycle(t *testing.T) {
	svc := newTestService(t)
	commitID, _ := setupReadyCommit(t, svc.store)
	partner := actor.Actor{Type: actor.Partner, ID: "p1"}

	started, err := svc.Start(commitID, partner, fixedNow().Add(time.Hour))
	require.NoError(t, err)
	require.False(t, started.Replayed)
	require.Equal(t, store.StateEscrowPending, started.Timeline.State)

	replay, err := svc.Start(commitID, partner, fixedNow().Add(time.Hour))
	require.NoError(t, err)
	require.True(t, replay.Replayed)

	_, err = svc.ConfirmDeposit(commitID, "intent_1", "dep_1", partner)
	require.NoError(t, err)
	timeline, err := svc.ConfirmDeposit(commitID, "intent_2", "dep_2", partner)
	require.NoError(t, err)
	require.Equal(t, store.StateEscrowReady, timeline.State)

	timeline, err = svc.BeginExecution(commitID, partner)
	require.NoError(t, err)
	require.Equal(t, store.StateExecuting, timeline.State)

	receipt, err := svc.Complete(commitID, partner)
	require.NoError(t, err)
	require.Equal(t, "completed", receipt.FinalState)
	require.NotEmpty(t, receipt.Signature.MAC)

	svc.store.View(func(d *store.Document) {
		require.Equal(t, store.IntentSettled, d.Intents["intent_1"].Status)
		require.Equal(t, store.IntentSettled, d.Intents["intent_2"].Status)
	})
}

func TestConfirmDepositReplayIsNoOpButMismatchConflicts(t *testing.T) {
	svc := newTestService(t)
	commitID, _ := setupReadyCommit(t, svc.store)
	partner := actor.Actor{Type: actor.Partner, ID: "p1"}
	_, err := svc.Start(commitID, partner, fixedNow().Add(time.Hour))
	require.NoError(t, err)

	_, err = svc.ConfirmDeposit(commitID, "intent_1", "dep_1", partner)
	require.NoError(t, err)

	_, err = svc.ConfirmDeposit(commitID, "intent_1", "dep_1", partner)
	require.NoError(t, err)

	_, err = svc.ConfirmDeposit(commitID, "intent_1", "dep_other", partner)
	require.Error(t, err)
}

func TestExpireDepositWindowRefundsAndFails(t *testing.T) {
	svc := newTestService(t)
	commitID, _ := setupReadyCommit(t, svc.store)
	partner := actor.Actor{Type: actor.Partner, ID: "p1"}
	deadline := fixedNow().Add(time.Hour)
	_, err := svc.Start(commitID, partner, deadline)
	require.NoError(t, err)

	_, err = svc.ConfirmDeposit(commitID, "intent_1", "dep_1", partner)
	require.NoError(t, err)

	receipt, err := svc.ExpireDepositWindow(commitID, deadline.Add(time.Minute), partner)
	require.NoError(t, err)
	require.NotNil(t, receipt)
	require.Equal(t, "failed", receipt.FinalState)
	require.Equal(t, "deposit_timeout", receipt.Transparency.ReasonCode)

	svc.store.View(func(d *store.Document) {
		timeline := d.Timelines[commitID]
		require.Equal(t, store.StateFailed, timeline.State)
		require.Equal(t, store.LegRefunded, timeline.Legs[0].Status)
		require.Equal(t, store.IntentFailed, d.Intents["intent_1"].Status)
	})
}

func TestExpireDepositWindowIsNoOpBeforeDeadline(t *testing.T) {
	svc := newTestService(t)
	commitID, _ := setupReadyCommit(t, svc.store)
	partner := actor.Actor{Type: actor.Partner, ID: "p1"}
	deadline := fixedNow().Add(time.Hour)
	_, err := svc.Start(commitID, partner, deadline)
	require.NoError(t, err)

	receipt, err := svc.ExpireDepositWindow(commitID, fixedNow(), partner)
	require.NoError(t, err)
	require.Nil(t, receipt)
}

package store

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"swapgraph/internal/actor"
)

var errInvariant = errors.New("invariant violated")

func TestUpdateAndViewRoundTrip(t *testing.T) {
	st, err := New(nil)
	require.NoError(t, err)

	owner := actor.Actor{Type: actor.User, ID: "u1"}
	err = st.Update(func(d *Document) error {
		d.Intents["intent_1"] = &SwapIntent{
			ID:        "intent_1",
			Owner:     owner,
			Status:    IntentActive,
			CreatedAt: time.Unix(0, 0).UTC(),
			UpdatedAt: time.Unix(0, 0).UTC(),
		}
		return nil
	})
	require.NoError(t, err)

	var found *SwapIntent
	st.View(func(d *Document) {
		found = d.Intents["intent_1"].Clone()
	})
	require.NotNil(t, found)
	require.Equal(t, IntentActive, found.Status)
	require.Equal(t, "u1", found.Owner.ID)
}

func TestExportRestoreRoundTrip(t *testing.T) {
	st, err := New(nil)
	require.NoError(t, err)

	require.NoError(t, st.Update(func(d *Document) error {
		d.Intents["intent_1"] = &SwapIntent{ID: "intent_1", Status: IntentActive}
		d.Events = append(d.Events, Event{Seq: st.NextEventSeq(), EventID: "evt_1", Type: "intent.created"})
		return nil
	}))

	raw, err := st.Export()
	require.NoError(t, err)

	restored, err := New(nil)
	require.NoError(t, err)
	require.NoError(t, restored.Restore(raw))

	restored.View(func(d *Document) {
		require.Contains(t, d.Intents, "intent_1")
		require.Len(t, d.Events, 1)
		require.Equal(t, "evt_1", d.Events[0].EventID)
	})
}

func TestUpdateErrorAbortsPersistButKeepsAppliedMutations(t *testing.T) {
	st, err := New(nil)
	require.NoError(t, err)

	sentinel := st.Update(func(d *Document) error {
		d.Intents["intent_x"] = &SwapIntent{ID: "intent_x"}
		return errInvariant
	})
	require.ErrorIs(t, sentinel, errInvariant)
	st.View(func(d *Document) {
		require.Contains(t, d.Intents, "intent_x")
	})
}

package eventlog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"swapgraph/internal/actor"
	"swapgraph/internal/store"
)

func TestStableEventIDIsDeterministic(t *testing.T) {
	id1 := StableEventID("intent.reserved", "corr_1", "commit_abc")
	id2 := StableEventID("intent.reserved", "corr_1", "commit_abc")
	require.Equal(t, id1, id2)

	id3 := StableEventID("intent.reserved", "corr_1", "commit_def")
	require.NotEqual(t, id1, id3)
}

func TestAppendAssignsMonotoneSeq(t *testing.T) {
	st, err := store.New(nil)
	require.NoError(t, err)
	log := New(st, nil)

	var evts []store.Event
	require.NoError(t, st.Update(func(d *store.Document) error {
		evts = append(evts, log.Append(d, "intent.created", "corr_1", "k1", actor.Actor{Type: actor.User, ID: "u1"}, nil))
		evts = append(evts, log.Append(d, "intent.created", "corr_2", "k2", actor.Actor{Type: actor.User, ID: "u1"}, nil))
		return nil
	}))
	require.Equal(t, uint64(0), evts[0].Seq)
	require.Equal(t, uint64(1), evts[1].Seq)
	require.Equal(t, uint64(1), log.Tail())
}

func TestSinceReturnsOnlyNewerEvents(t *testing.T) {
	st, err := store.New(nil)
	require.NoError(t, err)
	log := New(st, nil)

	require.NoError(t, st.Update(func(d *store.Document) error {
		log.Append(d, "a", "corr_1", "k1", actor.Actor{Type: actor.User, ID: "u1"}, nil)
		log.Append(d, "b", "corr_2", "k2", actor.Actor{Type: actor.User, ID: "u1"}, nil)
		return nil
	}))

	recent := log.Since(0, 0)
	require.Len(t, recent, 1)
	require.Equal(t, "b", recent[0].Type)
}

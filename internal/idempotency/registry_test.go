package idempotency

import (
	"testing"

	"github.com/stretchr/testify/require"

	"swapgraph/internal/apierror"
	"swapgraph/internal/store"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	st, err := store.New(nil)
	require.NoError(t, err)
	r, err := New(st, nil)
	require.NoError(t, err)
	return r
}

func TestExecuteRunsOnceAndReplays(t *testing.T) {
	r := newTestRegistry(t)
	calls := 0
	fn := func() (Result, error) {
		calls++
		return Result{StatusCode: 201, Body: []byte(`{"id":"intent_1"}`)}, nil
	}

	scope := ScopeKey("user", "u1", "create_intent", "client-key-1")
	first, err := r.Execute(scope, "hash-a", fn)
	require.NoError(t, err)
	require.False(t, first.Replayed)
	require.Equal(t, 1, calls)

	second, err := r.Execute(scope, "hash-a", fn)
	require.NoError(t, err)
	require.True(t, second.Replayed)
	require.Equal(t, 1, calls, "fn must not run again on replay")
	require.Equal(t, first.Body, second.Body)
}

func TestExecuteRejectsPayloadMismatch(t *testing.T) {
	r := newTestRegistry(t)
	scope := ScopeKey("user", "u1", "create_intent", "client-key-1")

	_, err := r.Execute(scope, "hash-a", func() (Result, error) {
		return Result{StatusCode: 201, Body: []byte(`{}`)}, nil
	})
	require.NoError(t, err)

	_, err = r.Execute(scope, "hash-b", func() (Result, error) {
		t.Fatal("fn must not run when payload hash mismatches")
		return Result{}, nil
	})
	require.Error(t, err)
	apiErr, ok := apierror.As(err)
	require.True(t, ok)
	require.Equal(t, apierror.IdempotencyPayloadMismatch, apiErr.Code)
}

func TestExecutePropagatesFnError(t *testing.T) {
	r := newTestRegistry(t)
	scope := ScopeKey("user", "u1", "create_intent", "client-key-1")

	_, err := r.Execute(scope, "hash-a", func() (Result, error) {
		return Result{}, apierror.New(apierror.ConstraintViolation, "nope")
	})
	require.Error(t, err)

	// A failed attempt must not be cached; retrying with the same key and
	// payload should invoke fn again.
	calls := 0
	_, err = r.Execute(scope, "hash-a", func() (Result, error) {
		calls++
		return Result{StatusCode: 200, Body: []byte(`{}`)}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

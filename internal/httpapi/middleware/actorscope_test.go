package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"swapgraph/internal/actor"
)

func fixedHandler(t *testing.T, wantType actor.Type, wantID string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, ok := ActorFromContext(r.Context())
		require.True(t, ok)
		require.Equal(t, wantType, a.Type)
		require.Equal(t, wantID, a.ID)
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireActorScopeAllowsMatchingScope(t *testing.T) {
	handler := RequireActorScope("swap_intents:write")(fixedHandler(t, actor.User, "u1"))

	req := httptest.NewRequest(http.MethodPost, "/v1/swap-intents", nil)
	req.Header.Set("X-Actor-Type", "user")
	req.Header.Set("X-Actor-Id", "u1")
	req.Header.Set("X-Auth-Scopes", "swap_intents:read swap_intents:write")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireActorScopeRejectsMissingScope(t *testing.T) {
	handler := RequireActorScope("swap_intents:write")(fixedHandler(t, actor.User, "u1"))

	req := httptest.NewRequest(http.MethodPost, "/v1/swap-intents", nil)
	req.Header.Set("X-Actor-Type", "user")
	req.Header.Set("X-Actor-Id", "u1")
	req.Header.Set("X-Auth-Scopes", "swap_intents:read")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "FORBIDDEN")
}

func TestRequireActorScopeRejectsInvalidActorType(t *testing.T) {
	handler := RequireActorScope()(fixedHandler(t, actor.User, "u1"))

	req := httptest.NewRequest(http.MethodGet, "/v1/swap-intents", nil)
	req.Header.Set("X-Actor-Type", "robot")
	req.Header.Set("X-Actor-Id", "u1")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "INVALID_ACTOR_CONTEXT")
}

func TestRequireActorScopeParsesAgentDelegation(t *testing.T) {
	handler := RequireActorScope()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, ok := ActorFromContext(r.Context())
		require.True(t, ok)
		require.NotNil(t, a.Delegation)
		require.Equal(t, actor.User, a.Delegation.SubjectType)
		require.Equal(t, "u1", a.Delegation.SubjectID)
		require.Equal(t, 3, a.Delegation.MaxCycleLength)
		require.InDelta(t, 0.5, a.Delegation.MinConfidence, 0.0001)
		require.NotNil(t, a.Delegation.QuietHours)
		require.Equal(t, "America/New_York", a.Delegation.QuietHours.TimeZone)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/cycle-proposals/p1/accept", nil)
	req.Header.Set("X-Actor-Type", "agent")
	req.Header.Set("X-Actor-Id", "agent-1")
	req.Header.Set("X-Agent-Delegation", "subject_type=user;subject_id=u1;max_cycle_length=3;min_confidence=0.5;quiet_hours_tz=America/New_York;quiet_hours_start=22;quiet_hours_end=6")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireActorScopeRejectsAgentWithoutDelegation(t *testing.T) {
	handler := RequireActorScope()(fixedHandler(t, actor.Agent, "agent-1"))

	req := httptest.NewRequest(http.MethodPost, "/v1/cycle-proposals/p1/accept", nil)
	req.Header.Set("X-Actor-Type", "agent")
	req.Header.Set("X-Actor-Id", "agent-1")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

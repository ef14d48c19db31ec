package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"swapgraph/internal/eventlog"
	"swapgraph/internal/httpapi/middleware"
	"swapgraph/internal/idempotency"
	"swapgraph/internal/signing"
	"swapgraph/internal/store"
)

func fixedNow() time.Time { return time.Unix(1_700_000_000, 0).UTC() }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	st, err := store.New(nil)
	require.NoError(t, err)
	signer, err := signing.NewSigner("test-key", "test-secret")
	require.NoError(t, err)
	events := eventlog.New(st, signer)
	idem, err := idempotency.New(st, nil)
	require.NoError(t, err)

	api := NewAPI(st, events, idem, signer, fixedNow)
	return NewRouter(api, Dependencies{CORS: middleware.CORSConfig{AllowedOrigins: []string{"*"}}})
}

func newIntentBody() []byte {
	body := map[string]interface{}{
		"offer": []map[string]interface{}{
			{"platform": "steam", "asset_id": "item_1", "class": "skin", "value_usd": 10},
		},
		"want_spec": []map[string]interface{}{
			{"kind": "category", "platform": "steam", "category": "knives"},
		},
		"value_band":        map[string]interface{}{"min_usd": 5, "max_usd": 20},
		"trust_constraints": map[string]interface{}{"max_cycle_length": 3, "min_counterparty_reliability": 0.5},
		"time_constraints":  map[string]interface{}{"expires_at": fixedNow().Add(24 * time.Hour).Format(time.RFC3339)},
	}
	raw, _ := json.Marshal(body)
	return raw
}

func TestCreateIntentRequiresActorHeaders(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/swap-intents", bytes.NewReader(newIntentBody()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateIntentRequiresScope(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/swap-intents", bytes.NewReader(newIntentBody()))
	req.Header.Set("X-Actor-Type", "user")
	req.Header.Set("X-Actor-Id", "u1")
	req.Header.Set("X-Auth-Scopes", "swap_intents:read")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateAndGetIntent(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/swap-intents", bytes.NewReader(newIntentBody()))
	req.Header.Set("X-Actor-Type", "user")
	req.Header.Set("X-Actor-Id", "u1")
	req.Header.Set("X-Auth-Scopes", "swap_intents:write swap_intents:read")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created store.SwapIntent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	require.Equal(t, store.IntentActive, created.Status)

	getReq := httptest.NewRequest(http.MethodGet, "/v1/swap-intents/"+created.ID, nil)
	getReq.Header.Set("X-Actor-Type", "user")
	getReq.Header.Set("X-Actor-Id", "u1")
	getReq.Header.Set("X-Auth-Scopes", "swap_intents:read")
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, getReq)
	require.Equal(t, http.StatusOK, getRec.Code)
}

func TestCreateIntentIdempotentReplay(t *testing.T) {
	router := newTestRouter(t)
	body := newIntentBody()

	doRequest := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/swap-intents", bytes.NewReader(body))
		req.Header.Set("X-Actor-Type", "user")
		req.Header.Set("X-Actor-Id", "u1")
		req.Header.Set("X-Auth-Scopes", "swap_intents:write")
		req.Header.Set("Idempotency-Key", "create-1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	first := doRequest()
	require.Equal(t, http.StatusCreated, first.Code)
	require.Empty(t, first.Header().Get("Idempotency-Replayed"))

	second := doRequest()
	require.Equal(t, http.StatusCreated, second.Code)
	require.Equal(t, "true", second.Header().Get("Idempotency-Replayed"))
	require.JSONEq(t, first.Body.String(), second.Body.String())
}

func TestCreateIntentIdempotentPayloadMismatch(t *testing.T) {
	router := newTestRouter(t)

	req1 := httptest.NewRequest(http.MethodPost, "/v1/swap-intents", bytes.NewReader(newIntentBody()))
	req1.Header.Set("X-Actor-Type", "user")
	req1.Header.Set("X-Actor-Id", "u1")
	req1.Header.Set("X-Auth-Scopes", "swap_intents:write")
	req1.Header.Set("Idempotency-Key", "dup-key")
	rec1 := httptest.NewRecorder()
	router.ServeHTTP(rec1, req1)
	require.Equal(t, http.StatusCreated, rec1.Code)

	mutated := newIntentBody()
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(mutated, &decoded))
	decoded["value_band"] = map[string]interface{}{"min_usd": 1, "max_usd": 2}
	mutatedBody, err := json.Marshal(decoded)
	require.NoError(t, err)

	req2 := httptest.NewRequest(http.MethodPost, "/v1/swap-intents", bytes.NewReader(mutatedBody))
	req2.Header.Set("X-Actor-Type", "user")
	req2.Header.Set("X-Actor-Id", "u1")
	req2.Header.Set("X-Auth-Scopes", "swap_intents:write")
	req2.Header.Set("Idempotency-Key", "dup-key")
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)

	require.Equal(t, http.StatusConflict, rec2.Code)
	require.Contains(t, rec2.Body.String(), "IDEMPOTENCY_KEY_REUSE_PAYLOAD_MISMATCH")
}

func TestHealthzIsUnauthenticated(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

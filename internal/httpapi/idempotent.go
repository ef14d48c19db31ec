package httpapi

import (
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"swapgraph/internal/apierror"
	"swapgraph/internal/canonical"
	"swapgraph/internal/httpapi/middleware"
	"swapgraph/internal/idempotency"
)

// runIdempotent mediates an HTTP handler body through the idempotency
// registry: it reads and canonically hashes the request body, then executes
// fn exactly once per (actor, operationID, Idempotency-Key), replaying a
// cached response byte-for-byte on repeat. A request carrying no
// Idempotency-Key header executes fn directly with no caching, since §4.4
// scopes replay to requests that opt in.
func runIdempotent(w http.ResponseWriter, r *http.Request, reg *idempotency.Registry, operationID string, fn func(body []byte) (int, interface{}, error)) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		middleware.WriteError(w, apierror.New(apierror.SchemaInvalid, "could not read request body"))
		return
	}

	clientKey := r.Header.Get("Idempotency-Key")
	if clientKey == "" || reg == nil {
		status, payload, err := fn(body)
		if err != nil {
			middleware.WriteError(w, err)
			return
		}
		middleware.WriteJSON(w, status, payload)
		return
	}

	a, _ := middleware.ActorFromContext(r.Context())
	scopeKey := idempotency.ScopeKey(string(a.Type), a.ID, operationID, clientKey)
	payloadHash := hashRequestBody(body)

	result, err := reg.Execute(scopeKey, payloadHash, func() (idempotency.Result, error) {
		status, payload, err := fn(body)
		if err != nil {
			return idempotency.Result{}, err
		}
		encoded, err := json.Marshal(payload)
		if err != nil {
			return idempotency.Result{}, err
		}
		return idempotency.Result{StatusCode: status, Body: encoded}, nil
	})
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if result.Replayed {
		w.Header().Set("Idempotency-Replayed", "true")
	}
	w.WriteHeader(result.StatusCode)
	_, _ = w.Write(result.Body)
}

func hashRequestBody(body []byte) string {
	if len(body) == 0 {
		sum := canonical.HashBytes(nil)
		return hex.EncodeToString(sum[:])
	}
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		sum := canonical.HashBytes(body)
		return hex.EncodeToString(sum[:])
	}
	digest, err := canonical.HashHex(v)
	if err != nil {
		sum := canonical.HashBytes(body)
		return hex.EncodeToString(sum[:])
	}
	return digest
}

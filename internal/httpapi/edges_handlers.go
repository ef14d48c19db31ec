package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"swapgraph/internal/apierror"
	"swapgraph/internal/httpapi/middleware"
	"swapgraph/internal/intents"
	"swapgraph/internal/store"
)

type createEdgeIntentRequest struct {
	SourceIntentID string         `json:"source_intent_id"`
	TargetIntentID string         `json:"target_intent_id"`
	IntentType     store.EdgeType `json:"intent_type"`
	Strength       float64        `json:"strength"`
	ExpiresAt      time.Time      `json:"expires_at"`
}

func (a *API) handleCreateEdgeIntent(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, apierror.New(apierror.InvalidActorContext, "actor context missing"))
		return
	}

	runIdempotent(w, r, a.Idempotency, "edge_intents:create", func(body []byte) (int, interface{}, error) {
		var req createEdgeIntentRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return 0, nil, apierror.New(apierror.SchemaInvalid, "malformed request body")
		}
		id := "edge_" + uuid.NewString()
		edge, err := a.Edges.Create(id, caller, intents.CreateEdgeInput{
			SourceIntentID: req.SourceIntentID,
			TargetIntentID: req.TargetIntentID,
			Type:           req.IntentType,
			Strength:       req.Strength,
			ExpiresAt:      req.ExpiresAt,
		})
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, edge, nil
	})
}

func (a *API) handleCancelEdgeIntent(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, apierror.New(apierror.InvalidActorContext, "actor context missing"))
		return
	}
	id := chi.URLParam(r, "edgeID")

	runIdempotent(w, r, a.Idempotency, "edge_intents:cancel:"+id, func(body []byte) (int, interface{}, error) {
		edge, err := a.Edges.Cancel(id, caller.Key())
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, edge, nil
	})
}

func (a *API) handleListEdgeIntents(w http.ResponseWriter, r *http.Request) {
	intentID := r.URL.Query().Get("source_intent_id")
	if intentID == "" {
		middleware.WriteError(w, apierror.New(apierror.SchemaInvalid, "source_intent_id query parameter is required"))
		return
	}
	edges := a.Edges.ListBySourceIntent(intentID)
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"items": edges})
}

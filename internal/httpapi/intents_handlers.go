package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"swapgraph/internal/apierror"
	"swapgraph/internal/httpapi/middleware"
	"swapgraph/internal/intents"
	"swapgraph/internal/store"
)

type createIntentRequest struct {
	Offer                 []store.AssetRef             `json:"offer"`
	WantSpec              []store.WantClause           `json:"want_spec"`
	ValueBand             store.ValueBand               `json:"value_band"`
	TrustConstraints      store.TrustConstraints        `json:"trust_constraints"`
	TimeConstraints       store.TimeConstraints          `json:"time_constraints"`
	SettlementPreferences store.SettlementPreferences   `json:"settlement_preferences"`
}

func (a *API) handleCreateIntent(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, apierror.New(apierror.InvalidActorContext, "actor context missing"))
		return
	}

	runIdempotent(w, r, a.Idempotency, "intents:create", func(body []byte) (int, interface{}, error) {
		var req createIntentRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return 0, nil, apierror.New(apierror.SchemaInvalid, "malformed request body")
		}
		id := "intent_" + uuid.NewString()
		intent, err := a.Intents.Create(id, intents.CreateInput{
			Owner:                 caller,
			Offer:                 req.Offer,
			WantSpec:              req.WantSpec,
			ValueBand:             req.ValueBand,
			TrustConstraints:      req.TrustConstraints,
			TimeConstraints:       req.TimeConstraints,
			SettlementPreferences: req.SettlementPreferences,
		})
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, intent, nil
	})
}

type updateIntentRequest struct {
	Offer                 *[]store.AssetRef            `json:"offer,omitempty"`
	WantSpec              *[]store.WantClause          `json:"want_spec,omitempty"`
	ValueBand             *store.ValueBand              `json:"value_band,omitempty"`
	TrustConstraints      *store.TrustConstraints       `json:"trust_constraints,omitempty"`
	TimeConstraints       *store.TimeConstraints         `json:"time_constraints,omitempty"`
	SettlementPreferences *store.SettlementPreferences  `json:"settlement_preferences,omitempty"`
}

func (a *API) handleUpdateIntent(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, apierror.New(apierror.InvalidActorContext, "actor context missing"))
		return
	}
	id := chi.URLParam(r, "intentID")

	runIdempotent(w, r, a.Idempotency, "intents:update:"+id, func(body []byte) (int, interface{}, error) {
		var req updateIntentRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return 0, nil, apierror.New(apierror.SchemaInvalid, "malformed request body")
		}
		intent, err := a.Intents.Update(id, caller, intents.UpdateInput{
			Offer:                 req.Offer,
			WantSpec:              req.WantSpec,
			ValueBand:             req.ValueBand,
			TrustConstraints:      req.TrustConstraints,
			TimeConstraints:       req.TimeConstraints,
			SettlementPreferences: req.SettlementPreferences,
		})
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, intent, nil
	})
}

func (a *API) handleCancelIntent(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, apierror.New(apierror.InvalidActorContext, "actor context missing"))
		return
	}
	id := chi.URLParam(r, "intentID")

	runIdempotent(w, r, a.Idempotency, "intents:cancel:"+id, func(body []byte) (int, interface{}, error) {
		intent, releasedCommitID, err := a.Intents.Cancel(id, caller)
		if err != nil {
			return 0, nil, err
		}
		if releasedCommitID != "" {
			_ = a.Store.Update(func(d *store.Document) error {
				a.Events.Append(d, "intent.unreserved", "corr_"+id, "cancel:"+id, caller, map[string]interface{}{
					"intent_id": id, "reason": "cancelled", "commit_id": releasedCommitID,
				})
				return nil
			})
		}
		return http.StatusOK, intent, nil
	})
}

func (a *API) handleGetIntent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "intentID")
	intent, err := a.Intents.Get(id)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, intent)
}

func (a *API) handleListIntents(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, apierror.New(apierror.InvalidActorContext, "actor context missing"))
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	cursor := r.URL.Query().Get("cursor")
	items, next := a.Intents.ListByActor(caller, cursor, limit)
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"items":       items,
		"next_cursor": next,
	})
}

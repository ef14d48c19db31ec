package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"swapgraph/internal/apierror"
	"swapgraph/internal/httpapi/middleware"
	"swapgraph/internal/store"
)

type startSettlementRequest struct {
	DepositDeadlineAt time.Time `json:"deposit_deadline_at"`
}

func (a *API) handleStartSettlement(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, apierror.New(apierror.InvalidActorContext, "actor context missing"))
		return
	}
	commitID := chi.URLParam(r, "commitID")

	runIdempotent(w, r, a.Idempotency, "settlement:start:"+commitID, func(body []byte) (int, interface{}, error) {
		var req startSettlementRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return 0, nil, apierror.New(apierror.SchemaInvalid, "malformed request body")
		}
		result, err := a.Settlement.Start(commitID, caller, req.DepositDeadlineAt)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, result.Timeline, nil
	})
}

type confirmDepositRequest struct {
	IntentID   string `json:"intent_id"`
	DepositRef string `json:"deposit_ref"`
}

func (a *API) handleConfirmDeposit(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, apierror.New(apierror.InvalidActorContext, "actor context missing"))
		return
	}
	cycleID := chi.URLParam(r, "cycleID")

	runIdempotent(w, r, a.Idempotency, "settlement:confirm_deposit:"+cycleID, func(body []byte) (int, interface{}, error) {
		var req confirmDepositRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return 0, nil, apierror.New(apierror.SchemaInvalid, "malformed request body")
		}
		timeline, err := a.Settlement.ConfirmDeposit(cycleID, req.IntentID, req.DepositRef, caller)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, timeline, nil
	})
}

func (a *API) handleBeginExecution(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, apierror.New(apierror.InvalidActorContext, "actor context missing"))
		return
	}
	cycleID := chi.URLParam(r, "cycleID")

	runIdempotent(w, r, a.Idempotency, "settlement:begin_execution:"+cycleID, func(body []byte) (int, interface{}, error) {
		timeline, err := a.Settlement.BeginExecution(cycleID, caller)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, timeline, nil
	})
}

func (a *API) handleCompleteSettlement(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, apierror.New(apierror.InvalidActorContext, "actor context missing"))
		return
	}
	cycleID := chi.URLParam(r, "cycleID")

	runIdempotent(w, r, a.Idempotency, "settlement:complete:"+cycleID, func(body []byte) (int, interface{}, error) {
		receipt, err := a.Settlement.Complete(cycleID, caller)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, receipt, nil
	})
}

func (a *API) handleExpireDepositWindow(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, apierror.New(apierror.InvalidActorContext, "actor context missing"))
		return
	}
	cycleID := chi.URLParam(r, "cycleID")

	runIdempotent(w, r, a.Idempotency, "settlement:expire_deposit_window:"+cycleID, func(body []byte) (int, interface{}, error) {
		receipt, err := a.Settlement.ExpireDepositWindow(cycleID, a.Now().UTC(), caller)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, receipt, nil
	})
}

func (a *API) handleGetTimeline(w http.ResponseWriter, r *http.Request) {
	cycleID := chi.URLParam(r, "cycleID")
	var timeline *store.SettlementTimeline
	a.Store.View(func(d *store.Document) {
		if t, ok := d.Timelines[cycleID]; ok {
			timeline = t
		}
	})
	if timeline == nil {
		middleware.WriteError(w, apierror.New(apierror.NotFound, "timeline not found"))
		return
	}
	middleware.WriteJSON(w, http.StatusOK, timeline)
}

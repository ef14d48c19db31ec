package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"swapgraph/internal/apierror"
	"swapgraph/internal/custody"
	"swapgraph/internal/httpapi/middleware"
	"swapgraph/internal/store"
)

type publishSnapshotRequest struct {
	SnapshotID string          `json:"snapshot_id"`
	Holdings   []store.Holding `json:"holdings"`
}

func (a *API) handlePublishSnapshot(w http.ResponseWriter, r *http.Request) {
	_, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, apierror.New(apierror.InvalidActorContext, "actor context missing"))
		return
	}

	runIdempotent(w, r, a.Idempotency, "custody:publish_snapshot", func(body []byte) (int, interface{}, error) {
		var req publishSnapshotRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return 0, nil, apierror.New(apierror.SchemaInvalid, "malformed request body")
		}
		if req.SnapshotID == "" {
			return 0, nil, apierror.New(apierror.SchemaInvalid, "snapshot_id is required")
		}
		snapshot, err := a.Custody.PublishSnapshot(req.SnapshotID, req.Holdings)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, snapshot, nil
	})
}

func (a *API) handleGetInclusionProof(w http.ResponseWriter, r *http.Request) {
	snapshotID := chi.URLParam(r, "snapshotID")
	holdingID := r.URL.Query().Get("holding_id")
	if holdingID == "" {
		middleware.WriteError(w, apierror.New(apierror.SchemaInvalid, "holding_id query parameter is required"))
		return
	}
	proof, root, err := a.Custody.GetInclusionProof(snapshotID, holdingID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"snapshot_id": snapshotID,
		"root_hash":   root,
		"proof":       proof,
	})
}

type verifyProofRequest struct {
	Proof custody.Proof `json:"proof"`
}

func (a *API) handleVerifyInclusionProof(w http.ResponseWriter, r *http.Request) {
	snapshotID := chi.URLParam(r, "snapshotID")
	var req verifyProofRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, apierror.New(apierror.SchemaInvalid, "malformed request body"))
		return
	}
	if err := a.Custody.VerifyInclusionProof(snapshotID, req.Proof); err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"verified": true})
}

func (a *API) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	cursor := r.URL.Query().Get("cursor")
	items, next, err := a.Custody.ListSnapshots(cursor, limit)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"items":       items,
		"next_cursor": next,
	})
}

func (a *API) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshotID := chi.URLParam(r, "snapshotID")
	var snapshot *store.CustodySnapshot
	a.Store.View(func(d *store.Document) {
		if s, ok := d.CustodySnapshots[snapshotID]; ok {
			snapshot = s
		}
	})
	if snapshot == nil {
		middleware.WriteError(w, apierror.New(apierror.NotFound, "snapshot not found"))
		return
	}
	middleware.WriteJSON(w, http.StatusOK, snapshot)
}

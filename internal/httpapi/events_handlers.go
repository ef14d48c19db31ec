package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"swapgraph/internal/apierror"
	"swapgraph/internal/httpapi/middleware"
	"swapgraph/internal/store"
)

func (a *API) handleListEvents(w http.ResponseWriter, r *http.Request) {
	var since uint64
	if raw := r.URL.Query().Get("since"); raw != "" {
		if parsed, err := strconv.ParseUint(raw, 10, 64); err == nil {
			since = parsed
		}
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	events := a.Events.Since(since, limit)
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"items": events,
		"tail":  a.Events.Tail(),
	})
}

func (a *API) handleStreamEvents(w http.ResponseWriter, r *http.Request) {
	a.Events.ServeWS(w, r)
}

func (a *API) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "receiptID")
	var receipt *store.Receipt
	a.Store.View(func(d *store.Document) {
		if rec, ok := d.Receipts[id]; ok {
			receipt = rec
		}
	})
	if receipt == nil {
		middleware.WriteError(w, apierror.New(apierror.NotFound, "receipt not found"))
		return
	}
	middleware.WriteJSON(w, http.StatusOK, receipt)
}

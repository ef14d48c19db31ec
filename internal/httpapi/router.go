package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"swapgraph/internal/httpapi/middleware"
)

// Dependencies bundles the cross-cutting middleware the router mounts
// around every domain route.
type Dependencies struct {
	CORS          middleware.CORSConfig
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	JWT           *middleware.JWTAuthenticator
}

// NewRouter builds the chi mux for every SwapGraph operation, replacing the
// teacher's reverse-proxy router with direct handler mounting: this service
// terminates requests itself rather than forwarding to peer services.
func NewRouter(a *API, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.CORS(deps.CORS))
	if deps.JWT != nil {
		r.Use(deps.JWT.Middleware())
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if deps.Observability != nil {
		r.Handle("/metrics", deps.Observability.MetricsHandler())
	}

	route := func(pattern string) func(http.Handler) http.Handler {
		return func(h http.Handler) http.Handler {
			wrapped := h
			if deps.Observability != nil {
				wrapped = deps.Observability.Middleware(pattern)(wrapped)
			}
			if deps.RateLimiter != nil {
				wrapped = deps.RateLimiter.Middleware(pattern)(wrapped)
			}
			return wrapped
		}
	}

	mount := func(method, pattern string, scope string, handler http.HandlerFunc) {
		var h http.Handler = handler
		h = middleware.RequireActorScope(scope)(h)
		h = route(pattern)(h)
		r.Method(method, pattern, h)
	}

	// Swap intents (§4.6).
	mount(http.MethodPost, "/v1/swap-intents", "swap_intents:write", a.handleCreateIntent)
	mount(http.MethodPatch, "/v1/swap-intents/{intentID}", "swap_intents:write", a.handleUpdateIntent)
	mount(http.MethodPost, "/v1/swap-intents/{intentID}/cancel", "swap_intents:write", a.handleCancelIntent)
	mount(http.MethodGet, "/v1/swap-intents/{intentID}", "swap_intents:read", a.handleGetIntent)
	mount(http.MethodGet, "/v1/swap-intents", "swap_intents:read", a.handleListIntents)

	// Edge intents (§3).
	mount(http.MethodPost, "/v1/edge-intents", "swap_intents:write", a.handleCreateEdgeIntent)
	mount(http.MethodPost, "/v1/edge-intents/{edgeID}/cancel", "swap_intents:write", a.handleCancelEdgeIntent)
	mount(http.MethodGet, "/v1/edge-intents", "swap_intents:read", a.handleListEdgeIntents)

	// Matching runs and proposals (§4.5).
	mount(http.MethodPost, "/v1/matching/run", "cycle_proposals:write", a.handleRunMatching)
	mount(http.MethodGet, "/v1/cycle-proposals/{proposalID}", "cycle_proposals:read", a.handleGetProposal)

	// Commits (§4.7).
	mount(http.MethodPost, "/v1/cycle-proposals/{proposalID}/accept", "commits:write", a.handleAcceptProposal)
	mount(http.MethodPost, "/v1/cycle-proposals/{proposalID}/decline", "commits:write", a.handleDeclineProposal)
	mount(http.MethodGet, "/v1/commits/{commitID}", "commits:write", a.handleGetCommit)

	// Settlement (§4.8).
	mount(http.MethodPost, "/v1/commits/{commitID}/settlement/start", "settlement:write", a.handleStartSettlement)
	mount(http.MethodPost, "/v1/settlement/{cycleID}/confirm-deposit", "settlement:write", a.handleConfirmDeposit)
	mount(http.MethodPost, "/v1/settlement/{cycleID}/begin-execution", "settlement:write", a.handleBeginExecution)
	mount(http.MethodPost, "/v1/settlement/{cycleID}/complete", "settlement:write", a.handleCompleteSettlement)
	mount(http.MethodPost, "/v1/settlement/{cycleID}/expire-deposit-window", "settlement:write", a.handleExpireDepositWindow)
	mount(http.MethodGet, "/v1/settlement/{cycleID}", "settlement:read", a.handleGetTimeline)

	// Custody snapshots (§4.9).
	mount(http.MethodPost, "/v1/vault/custody-snapshots", "vault:write", a.handlePublishSnapshot)
	mount(http.MethodGet, "/v1/vault/custody-snapshots", "vault:write", a.handleListSnapshots)
	mount(http.MethodGet, "/v1/vault/custody-snapshots/{snapshotID}", "vault:write", a.handleGetSnapshot)
	mount(http.MethodGet, "/v1/vault/custody-snapshots/{snapshotID}/proof", "vault:write", a.handleGetInclusionProof)
	mount(http.MethodPost, "/v1/vault/custody-snapshots/{snapshotID}/verify", "vault:write", a.handleVerifyInclusionProof)

	// Receipts and event delivery (§4.10).
	mount(http.MethodGet, "/v1/receipts/{receiptID}", "receipts:read", a.handleGetReceipt)
	mount(http.MethodGet, "/v1/events", "receipts:read", a.handleListEvents)
	r.With(middleware.RequireActorScope("receipts:read")).Get("/v1/events/stream", a.handleStreamEvents)

	return r
}

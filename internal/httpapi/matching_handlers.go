package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"swapgraph/internal/apierror"
	"swapgraph/internal/httpapi/middleware"
	"swapgraph/internal/matching"
	"swapgraph/internal/store"
)

// runMatchingRequest is the POST /v1/matching/run body. Every
// bound field is optional and overrides the API's configured default only
// when present; max_enumerated_cycles is a pointer so an explicit 0 (cap to
// zero cycles) is distinguishable from an absent field (no cap).
type runMatchingRequest struct {
	ReplaceExisting     bool `json:"replace_existing"`
	MaxProposals        int  `json:"max_proposals"`
	MinCycleLength      int  `json:"min_cycle_length,omitempty"`
	MaxCycleLength      int  `json:"max_cycle_length,omitempty"`
	MaxEnumeratedCycles *int `json:"max_enumerated_cycles,omitempty"`
	TimeoutMillis       int  `json:"timeout_ms,omitempty"`
}

// matchRunResponse reports the run summary and diagnostic stats I4's
// determinism property checks against.
type matchRunResponse struct {
	Run matchRunEnvelope `json:"run"`
}

type matchRunEnvelope struct {
	RunID                  string        `json:"run_id"`
	SelectedProposalsCount int           `json:"selected_proposals_count"`
	Stats                  matchRunStats `json:"stats"`
}

type matchRunStats struct {
	CandidateCycles          int  `json:"candidate_cycles"`
	CandidateProposals       int  `json:"candidate_proposals"`
	SelectedProposals        int  `json:"selected_proposals"`
	IntentsActive            int  `json:"intents_active"`
	Edges                    int  `json:"edges"`
	CycleEnumerationLimited  bool `json:"cycle_enumeration_limited"`
	CycleEnumerationTimedOut bool `json:"cycle_enumeration_timed_out"`
}

func (a *API) handleRunMatching(w http.ResponseWriter, r *http.Request) {
	_, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, apierror.New(apierror.InvalidActorContext, "actor context missing"))
		return
	}

	var req runMatchingRequest
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		middleware.WriteError(w, apierror.New(apierror.SchemaInvalid, "could not read request body"))
		return
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &req); err != nil {
			middleware.WriteError(w, apierror.New(apierror.SchemaInvalid, "malformed request body: "+err.Error()))
			return
		}
	}

	bounds := a.MatchBounds
	if req.MinCycleLength > 0 {
		bounds.MinLen = req.MinCycleLength
	}
	if req.MaxCycleLength > 0 {
		bounds.MaxLen = req.MaxCycleLength
	}
	if req.MaxEnumeratedCycles != nil {
		bounds.MaxEnumeratedCycles = req.MaxEnumeratedCycles
	}
	if req.TimeoutMillis > 0 {
		bounds.TimeoutMillis = req.TimeoutMillis
	}
	bounds = bounds.WithDefaults()

	var intentsCopy map[string]*store.SwapIntent
	var edgesCopy map[string]*store.EdgeIntent
	a.Store.View(func(d *store.Document) {
		intentsCopy = make(map[string]*store.SwapIntent, len(d.Intents))
		for k, v := range d.Intents {
			intentsCopy[k] = v
		}
		edgesCopy = make(map[string]*store.EdgeIntent, len(d.EdgeIntents))
		for k, v := range d.EdgeIntents {
			edgesCopy[k] = v
		}
	})

	now := a.Now().UTC()
	proposals, trace, err := matching.Run(intentsCopy, edgesCopy, bounds, a.MatchConfig, now)
	if err != nil {
		middleware.WriteError(w, apierror.New(apierror.ServerError, err.Error()))
		return
	}

	selected := proposals
	if req.MaxProposals > 0 && len(selected) > req.MaxProposals {
		selected = selected[:req.MaxProposals]
	}

	if err := a.Store.Update(func(d *store.Document) error {
		if req.ReplaceExisting {
			for id := range d.Proposals {
				delete(d.Proposals, id)
			}
		}
		for i := range selected {
			p := selected[i]
			d.Proposals[p.ID] = &p
		}
		return nil
	}); err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, matchRunResponse{
		Run: matchRunEnvelope{
			RunID:                  trace.RunID,
			SelectedProposalsCount: len(selected),
			Stats: matchRunStats{
				CandidateCycles:          trace.EnumeratedCycles,
				CandidateProposals:       trace.ProposalsConsidered,
				SelectedProposals:        len(selected),
				IntentsActive:            trace.NodeCount,
				Edges:                    trace.EdgeCount,
				CycleEnumerationLimited:  trace.CycleEnumerationLimited,
				CycleEnumerationTimedOut: trace.CycleEnumerationTimedOut,
			},
		},
	})
}

func (a *API) handleGetProposal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "proposalID")
	var proposal *store.CycleProposal
	a.Store.View(func(d *store.Document) {
		if p, ok := d.Proposals[id]; ok {
			proposal = p
		}
	})
	if proposal == nil {
		middleware.WriteError(w, apierror.New(apierror.NotFound, "proposal not found"))
		return
	}
	middleware.WriteJSON(w, http.StatusOK, proposal)
}

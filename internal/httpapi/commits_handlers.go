package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"swapgraph/internal/actor"
	"swapgraph/internal/apierror"
	"swapgraph/internal/commits"
	"swapgraph/internal/httpapi/middleware"
	"swapgraph/internal/store"
)

func (a *API) handleAcceptProposal(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, apierror.New(apierror.InvalidActorContext, "actor context missing"))
		return
	}
	proposalID := chi.URLParam(r, "proposalID")

	runIdempotent(w, r, a.Idempotency, "commits:accept:"+proposalID, func(body []byte) (int, interface{}, error) {
		var checkPolicy commits.PolicyChecker
		if caller.Type == actor.Agent {
			checkPolicy = commits.EvaluateProposalAgainstTradingPolicy
		}
		outcome, err := a.Commits.Accept(proposalID, caller, checkPolicy)
		if err != nil {
			return 0, nil, err
		}

		if outcome.Reserved || outcome.ReadyNow {
			_ = a.Store.Update(func(d *store.Document) error {
				if outcome.Reserved {
					var myIntentID string
					if proposal, ok := d.Proposals[proposalID]; ok {
						for _, p := range proposal.Participants {
							if p.Actor.Key() == caller.Key() {
								myIntentID = p.IntentID
								break
							}
						}
					}
					a.Events.Append(d, "intent.reserved", "corr_"+outcome.Commit.ID, "accept:"+myIntentID, caller, map[string]interface{}{
						"intent_id": myIntentID, "commit_id": outcome.Commit.ID,
					})
				}
				if outcome.ReadyNow {
					a.Events.Append(d, "cycle.state_changed", "corr_"+outcome.Commit.ID, "ready", caller, map[string]interface{}{
						"cycle_id": outcome.Commit.ID, "from": "pending", "to": "ready",
					})
				}
				return nil
			})
		}
		return http.StatusOK, outcome.Commit, nil
	})
}

func (a *API) handleDeclineProposal(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, apierror.New(apierror.InvalidActorContext, "actor context missing"))
		return
	}
	proposalID := chi.URLParam(r, "proposalID")

	runIdempotent(w, r, a.Idempotency, "commits:decline:"+proposalID, func(body []byte) (int, interface{}, error) {
		outcome, err := a.Commits.Decline(proposalID, caller)
		if err != nil {
			return 0, nil, err
		}
		if len(outcome.ReleasedIntents) > 0 {
			_ = a.Store.Update(func(d *store.Document) error {
				for _, intentID := range outcome.ReleasedIntents {
					a.Events.Append(d, "intent.unreserved", "corr_"+outcome.Commit.ID, "decline:"+intentID, caller, map[string]interface{}{
						"intent_id": intentID, "reason": "declined", "commit_id": outcome.Commit.ID,
					})
				}
				return nil
			})
		}
		return http.StatusOK, outcome.Commit, nil
	})
}

func (a *API) handleGetCommit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "commitID")
	commit, err := a.Commits.Get(id)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, commit)
}

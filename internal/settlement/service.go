// Package settlement implements the escrow state machine (C8/§4.8): start,
// confirm_deposit, begin_execution, complete, expire_deposit_window. Legs
// are generalized from the teacher's fixed two-leg buyer/seller trade
// engine to an arbitrary N-party cycle.
package settlement

import (
	"time"

	"swapgraph/internal/actor"
	"swapgraph/internal/apierror"
	"swapgraph/internal/eventlog"
	"swapgraph/internal/signing"
	"swapgraph/internal/store"
)

// Service wraps a StateStore with the settlement state machine.
type Service struct {
	store  *store.StateStore
	events *eventlog.Log
	signer *signing.Signer
	now    func() time.Time
}

// New constructs a Service. now defaults to time.Now when nil.
func New(st *store.StateStore, events *eventlog.Log, signer *signing.Signer, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: st, events: events, signer: signer, now: now}
}

func correlationID(cycleID string) string { return "corr_" + cycleID }

// StartResult reports whether Start created a new timeline or replayed.
type StartResult struct {
	Timeline *store.SettlementTimeline
	Replayed bool
}

// Start begins settlement for a ready commit, recording partner tenancy and
// constructing each leg by cycling participants' "give" backwards.
func (s *Service) Start(commitID string, partner actor.Actor, depositDeadline time.Time) (StartResult, error) {
	now := s.now().UTC()
	var result StartResult

	err := s.store.Update(func(d *store.Document) error {
		commit, ok := d.Commits[commitID]
		if !ok {
			return apierror.New(apierror.NotFound, "commit not found")
		}
		if existing, ok := d.Timelines[commitID]; ok {
			result = StartResult{Timeline: existing, Replayed: true}
			return nil
		}
		if commit.Phase != store.CommitReady {
			return apierror.New(apierror.Conflict, "commit is not ready, current phase "+string(commit.Phase))
		}
		proposal, ok := d.Proposals[commit.ProposalID]
		if !ok {
			return apierror.New(apierror.NotFound, "proposal not found")
		}

		n := len(proposal.Participants)
		legs := make([]store.Leg, n)
		for i := 0; i < n; i++ {
			prev := (i - 1 + n) % n
			legs[i] = store.Leg{
				LegID:             commitID + "_leg_" + proposal.Participants[i].IntentID,
				IntentID:          proposal.Participants[i].IntentID,
				FromActor:         proposal.Participants[i].Actor,
				ToActor:           proposal.Participants[prev].Actor,
				Assets:            proposal.Participants[i].Give,
				Status:            store.LegPending,
				DepositDeadlineAt: depositDeadline,
			}
		}

		timeline := &store.SettlementTimeline{
			CycleID:        commitID,
			PartnerActorID: partner.ID,
			State:          store.StateEscrowPending,
			Legs:           legs,
			UpdatedAt:      now,
		}
		d.Timelines[commitID] = timeline

		corr := correlationID(commitID)
		s.events.Append(d, "cycle.state_changed", corr, "start", partner, map[string]interface{}{
			"cycle_id": commitID, "from": "accepted", "to": string(store.StateEscrowPending),
		})
		s.events.Append(d, "settlement.deposit_required", corr, "start", partner, map[string]interface{}{
			"cycle_id": commitID, "deposit_deadline_at": depositDeadline,
		})

		result = StartResult{Timeline: timeline, Replayed: false}
		return nil
	})
	return result, err
}

// ConfirmDeposit marks a leg deposited; a repeat with the same deposit_ref
// is a no-op replay, a different ref is a conflict.
func (s *Service) ConfirmDeposit(cycleID, intentID, depositRef string, caller actor.Actor) (*store.SettlementTimeline, error) {
	now := s.now().UTC()
	var result *store.SettlementTimeline

	err := s.store.Update(func(d *store.Document) error {
		timeline, ok := d.Timelines[cycleID]
		if !ok {
			return apierror.New(apierror.NotFound, "timeline not found")
		}
		if timeline.State != store.StateEscrowPending {
			return apierror.New(apierror.Conflict, "timeline is not escrow.pending, current state "+string(timeline.State))
		}

		var leg *store.Leg
		for i := range timeline.Legs {
			if timeline.Legs[i].IntentID == intentID {
				leg = &timeline.Legs[i]
				break
			}
		}
		if leg == nil {
			return apierror.New(apierror.NotFound, "leg not found for intent")
		}

		if leg.Status == store.LegDeposited {
			if leg.DepositRef != depositRef {
				return apierror.New(apierror.Conflict, "deposit already confirmed with a different reference")
			}
			result = timeline
			return nil
		}

		depositedAt := now
		leg.Status = store.LegDeposited
		leg.DepositRef = depositRef
		leg.DepositedAt = &depositedAt
		timeline.UpdatedAt = now

		if timeline.AllLegsDeposited() {
			timeline.State = store.StateEscrowReady
			s.events.Append(d, "cycle.state_changed", correlationID(cycleID), "escrow_ready", caller, map[string]interface{}{
				"cycle_id": cycleID, "from": string(store.StateEscrowPending), "to": string(store.StateEscrowReady),
			})
		}
		result = timeline
		return nil
	})
	return result, err
}

// BeginExecution transitions escrow.ready -> executing.
func (s *Service) BeginExecution(cycleID string, partner actor.Actor) (*store.SettlementTimeline, error) {
	now := s.now().UTC()
	var result *store.SettlementTimeline

	err := s.store.Update(func(d *store.Document) error {
		timeline, ok := d.Timelines[cycleID]
		if !ok {
			return apierror.New(apierror.NotFound, "timeline not found")
		}
		if timeline.State != store.StateEscrowReady {
			return apierror.New(apierror.Conflict, "timeline is not escrow.ready, current state "+string(timeline.State))
		}
		timeline.State = store.StateExecuting
		timeline.UpdatedAt = now

		corr := correlationID(cycleID)
		s.events.Append(d, "cycle.state_changed", corr, "begin_execution", partner, map[string]interface{}{
			"cycle_id": cycleID, "from": string(store.StateEscrowReady), "to": string(store.StateExecuting),
		})
		s.events.Append(d, "settlement.execution_started", corr, "begin_execution", partner, map[string]interface{}{
			"cycle_id": cycleID,
		})
		result = timeline
		return nil
	})
	return result, err
}

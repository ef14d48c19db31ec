package settlement

import (
	"time"

	"swapgraph/internal/actor"
	"swapgraph/internal/apierror"
	"swapgraph/internal/canonical"
	"swapgraph/internal/store"
)

// Complete finalizes an executing timeline: marks every leg released,
// transitions to completed, releases all reservations (status settled),
// and builds/signs a receipt.
func (s *Service) Complete(cycleID string, partner actor.Actor) (*store.Receipt, error) {
	now := s.now().UTC()
	var receipt *store.Receipt

	err := s.store.Update(func(d *store.Document) error {
		timeline, ok := d.Timelines[cycleID]
		if !ok {
			return apierror.New(apierror.NotFound, "timeline not found")
		}
		if timeline.State != store.StateExecuting {
			return apierror.New(apierror.Conflict, "timeline is not executing, current state "+string(timeline.State))
		}
		if !timeline.AllLegsDeposited() {
			return apierror.New(apierror.Conflict, "not every leg is deposited")
		}

		var assetIDs []string
		var intentIDs []string
		for i := range timeline.Legs {
			leg := &timeline.Legs[i]
			releasedAt := now
			leg.Status = store.LegReleased
			leg.ReleaseRef = "rel_" + cycleID + "_" + leg.IntentID
			leg.ReleasedAt = &releasedAt
			intentIDs = append(intentIDs, leg.IntentID)
			for _, a := range leg.Assets {
				assetIDs = append(assetIDs, a.Platform+":"+a.AssetID)
			}
			if intent, ok := d.Intents[leg.IntentID]; ok {
				intent.Status = store.IntentSettled
				intent.ReservedByCommitID = ""
				intent.UpdatedAt = now
				s.events.Append(d, "intent.unreserved", correlationID(cycleID), "complete:"+leg.IntentID, partner, map[string]interface{}{
					"intent_id": leg.IntentID, "reason": "settled",
				})
			}
		}
		timeline.State = store.StateCompleted
		timeline.UpdatedAt = now

		var err error
		receipt, err = s.buildReceipt(d, cycleID, "completed", intentIDs, assetIDs, nil, now)
		if err != nil {
			return err
		}

		s.events.Append(d, "cycle.state_changed", correlationID(cycleID), "complete", partner, map[string]interface{}{
			"cycle_id": cycleID, "from": string(store.StateExecuting), "to": string(store.StateCompleted),
		})
		s.events.Append(d, "receipt.created", correlationID(cycleID), "complete", partner, map[string]interface{}{
			"cycle_id": cycleID, "receipt_id": receipt.ID,
		})
		return nil
	})
	return receipt, err
}

// ExpireDepositWindow is a no-op unless the timeline is escrow.pending, now
// is past the deadline, and not every leg is deposited; otherwise it
// refunds deposited legs and fails the timeline.
func (s *Service) ExpireDepositWindow(cycleID string, now time.Time, caller actor.Actor) (*store.Receipt, error) {
	var receipt *store.Receipt

	err := s.store.Update(func(d *store.Document) error {
		timeline, ok := d.Timelines[cycleID]
		if !ok {
			return apierror.New(apierror.NotFound, "timeline not found")
		}
		if timeline.State != store.StateEscrowPending {
			return nil // no-op
		}
		deadline := time.Time{}
		for _, leg := range timeline.Legs {
			if leg.DepositDeadlineAt.After(deadline) {
				deadline = leg.DepositDeadlineAt
			}
		}
		if !now.After(deadline) || timeline.AllLegsDeposited() {
			return nil // no-op
		}

		var intentIDs, assetIDs []string
		for i := range timeline.Legs {
			leg := &timeline.Legs[i]
			intentIDs = append(intentIDs, leg.IntentID)
			if leg.Status == store.LegDeposited {
				refundedAt := now
				leg.Status = store.LegRefunded
				leg.RefundRef = "ref_" + cycleID + "_" + leg.IntentID
				leg.RefundedAt = &refundedAt
			}
			if intent, ok := d.Intents[leg.IntentID]; ok {
				intent.Status = store.IntentFailed
				intent.ReservedByCommitID = ""
				intent.UpdatedAt = now
				s.events.Append(d, "intent.unreserved", correlationID(cycleID), "expire:"+leg.IntentID, caller, map[string]interface{}{
					"intent_id": leg.IntentID, "reason": "failed",
				})
			}
		}
		timeline.State = store.StateFailed
		timeline.UpdatedAt = now

		transparency := &store.Transparency{ReasonCode: "deposit_timeout"}
		var err error
		receipt, err = s.buildReceipt(d, cycleID, "failed", intentIDs, assetIDs, transparency, now)
		if err != nil {
			return err
		}

		s.events.Append(d, "cycle.state_changed", correlationID(cycleID), "expire_deposit_window", caller, map[string]interface{}{
			"cycle_id": cycleID, "from": string(store.StateEscrowPending), "to": string(store.StateFailed), "reason": "deposit_timeout",
		})
		s.events.Append(d, "receipt.created", correlationID(cycleID), "expire_deposit_window", caller, map[string]interface{}{
			"cycle_id": cycleID, "receipt_id": receipt.ID,
		})
		return nil
	})
	return receipt, err
}

func (s *Service) buildReceipt(d *store.Document, cycleID, finalState string, intentIDs, assetIDs []string, transparency *store.Transparency, now time.Time) (*store.Receipt, error) {
	idHash, err := canonical.HashHex(map[string]interface{}{"cycle_id": cycleID, "final_state": finalState})
	if err != nil {
		return nil, apierror.New(apierror.ServerError, "failed to derive receipt id: "+err.Error())
	}

	receipt := &store.Receipt{
		ID:           "receipt_" + idHash,
		CycleID:      cycleID,
		FinalState:   finalState,
		IntentIDs:    intentIDs,
		AssetIDs:     assetIDs,
		Transparency: transparency,
		CreatedAt:    now,
	}
	if s.signer != nil {
		var sig string
		sig, err = s.signer.Sign(map[string]interface{}{
			"id": receipt.ID, "cycle_id": cycleID, "final_state": finalState,
			"intent_ids": intentIDs, "asset_ids": assetIDs,
		})
		if err != nil {
			return nil, apierror.New(apierror.ServerError, "failed to sign receipt: "+err.Error())
		}
		receipt.Signature = sig
	}
	d.Receipts[receipt.ID] = receipt
	return receipt, nil
}

package commits

import (
	"time"

	"swapgraph/internal/actor"
	"swapgraph/internal/apierror"
	"swapgraph/internal/store"
)

// EvaluateProposalAgainstTradingPolicy enforces an agent's delegated
// cycle-length and confidence bounds (§4.7).
func EvaluateProposalAgainstTradingPolicy(proposal *store.CycleProposal, delegation *actor.Delegation, now time.Time) error {
	if delegation == nil {
		return apierror.New(apierror.Forbidden, "agent actor requires a delegation")
	}
	if delegation.MaxCycleLength > 0 && len(proposal.Participants) > delegation.MaxCycleLength {
		return apierror.New(apierror.Forbidden, "proposal cycle length exceeds delegated maximum")
	}
	if proposal.ConfidenceScore < delegation.MinConfidence {
		return apierror.New(apierror.Forbidden, "proposal confidence below delegated minimum")
	}
	return EvaluateQuietHoursPolicy(delegation, now)
}

// EvaluateQuietHoursPolicy rejects acceptance inside the delegation's
// configured quiet-hours window.
func EvaluateQuietHoursPolicy(delegation *actor.Delegation, now time.Time) error {
	if delegation == nil || delegation.QuietHours == nil {
		return nil
	}
	inQuietHours, err := delegation.QuietHours.InQuietHours(now)
	if err != nil {
		return apierror.New(apierror.SchemaInvalid, err.Error())
	}
	if inQuietHours {
		return apierror.New(apierror.Forbidden, "delegated agent may not act during quiet hours")
	}
	return nil
}

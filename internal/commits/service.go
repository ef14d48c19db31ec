// Package commits implements the two-phase commit aggregate bound to a
// matching proposal (C7/§4.7): lazily materialized on first accept, it
// tracks per-participant acceptance and enforces the reservation interlock
// so a proposal's intents cannot be double-claimed by two commits.
//
// Grounded on the teacher's native/escrow trade engine, generalized from a
// fixed two-leg buyer/seller commit to an arbitrary N-party cycle.
package commits

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"swapgraph/internal/actor"
	"swapgraph/internal/apierror"
	"swapgraph/internal/store"
)

// Service wraps a StateStore with commit lifecycle operations.
type Service struct {
	store *store.StateStore
	now   func() time.Time
}

// New constructs a Service. now defaults to time.Now when nil.
func New(st *store.StateStore, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: st, now: now}
}

// CommitID derives the deterministic id §4.7 mandates.
func CommitID(proposalID string) string {
	sum := sha256.Sum256([]byte("commit|" + proposalID))
	return "commit_" + hex.EncodeToString(sum[:])[:12]
}

// AcceptOutcome reports what Accept did, for event emission by the caller.
type AcceptOutcome struct {
	Commit        *store.Commit
	Reserved      bool // this call transitioned the intent to reserved
	ReadyNow      bool // this call transitioned the commit pending -> ready
	AlreadyAccepted bool
}

// TradingPolicy bounds what an agent actor may accept on a subject's behalf.
type TradingPolicy struct {
	MaxCycleLength int
	MinConfidence  float64
}

// PolicyChecker evaluates agent-specific acceptance policy. Returns a
// non-nil *apierror.Error when the policy forbids acceptance.
type PolicyChecker func(proposal *store.CycleProposal, delegation *actor.Delegation, now time.Time) error

// Accept records caller's acceptance of the proposal behind commitID's
// proposal. caller must own one of the proposal's participant intents.
func (s *Service) Accept(proposalID string, caller actor.Actor, checkPolicy PolicyChecker) (AcceptOutcome, error) {
	now := s.now().UTC()
	var outcome AcceptOutcome

	err := s.store.Update(func(d *store.Document) error {
		proposal, ok := d.Proposals[proposalID]
		if !ok {
			return apierror.New(apierror.NotFound, "proposal not found")
		}
		if now.After(proposal.ExpiresAt) {
			return apierror.New(apierror.Conflict, "proposal has expired")
		}

		var myIntentID string
		for _, p := range proposal.Participants {
			if p.Actor.Key() == caller.Key() {
				myIntentID = p.IntentID
				break
			}
		}
		if myIntentID == "" {
			return apierror.New(apierror.Forbidden, "caller does not own a participant intent in this proposal")
		}

		if caller.Type == actor.Agent && checkPolicy != nil {
			if err := checkPolicy(proposal, caller.Delegation, now); err != nil {
				return err
			}
		}

		commitID := CommitID(proposalID)
		commit, exists := d.Commits[commitID]
		if !exists {
			commit = &store.Commit{
				ID:          commitID,
				ProposalID:  proposalID,
				Phase:       store.CommitPending,
				Acceptances: make(map[string]bool),
				CreatedAt:   now,
			}
			d.Commits[commitID] = commit
		}
		if commit.Phase.Terminal() {
			return apierror.New(apierror.Conflict, "commit is already "+string(commit.Phase))
		}

		if accepted, already := commit.Acceptances[myIntentID]; already && accepted {
			outcome = AcceptOutcome{Commit: commit, AlreadyAccepted: true}
			return nil
		}

		intent, ok := d.Intents[myIntentID]
		if !ok {
			return apierror.New(apierror.NotFound, "intent not found")
		}
		if intent.Status == store.IntentReserved && intent.ReservedByCommitID != commitID {
			return apierror.New(apierror.Conflict, "intent is reserved against a different commit")
		}

		reserved := false
		if intent.Status != store.IntentReserved {
			intent.Status = store.IntentReserved
			intent.ReservedByCommitID = commitID
			intent.UpdatedAt = now
			reserved = true
		}

		commit.Acceptances[myIntentID] = true
		commit.UpdatedAt = now

		readyNow := false
		if commit.AllAccepted(proposal.IntentIDs()) {
			commit.Phase = store.CommitReady
			readyNow = true
		}

		outcome = AcceptOutcome{Commit: commit, Reserved: reserved, ReadyNow: readyNow}
		return nil
	})
	return outcome, err
}

// DeclineOutcome reports the intents whose reservations were released.
type DeclineOutcome struct {
	Commit          *store.Commit
	ReleasedIntents []string
}

// Decline transitions a commit to declined, releasing every reservation it
// holds. Declining a proposal that no participant has accepted yet (so no
// commit exists) is a no-op: nothing is released and outcome.Commit is nil.
func (s *Service) Decline(proposalID string, caller actor.Actor) (DeclineOutcome, error) {
	now := s.now().UTC()
	var outcome DeclineOutcome

	err := s.store.Update(func(d *store.Document) error {
		proposal, ok := d.Proposals[proposalID]
		if !ok {
			return apierror.New(apierror.NotFound, "proposal not found")
		}
		isParticipant := false
		for _, p := range proposal.Participants {
			if p.Actor.Key() == caller.Key() {
				isParticipant = true
				break
			}
		}
		if !isParticipant {
			return apierror.New(apierror.Forbidden, "caller is not a participant in this proposal")
		}

		commitID := CommitID(proposalID)
		commit, ok := d.Commits[commitID]
		if !ok {
			return nil
		}
		if commit.Phase.Terminal() {
			return apierror.New(apierror.Conflict, "commit is already "+string(commit.Phase))
		}

		commit.Phase = store.CommitDeclined
		commit.UpdatedAt = now
		for _, id := range proposal.IntentIDs() {
			commit.Acceptances[id] = false
			intent, ok := d.Intents[id]
			if !ok || intent.ReservedByCommitID != commitID {
				continue
			}
			intent.Status = store.IntentActive
			intent.ReservedByCommitID = ""
			intent.UpdatedAt = now
			outcome.ReleasedIntents = append(outcome.ReleasedIntents, id)
		}
		outcome.Commit = commit
		return nil
	})
	return outcome, err
}

// Get fetches a commit by id.
func (s *Service) Get(id string) (*store.Commit, error) {
	var result *store.Commit
	s.store.View(func(d *store.Document) {
		if c, ok := d.Commits[id]; ok {
			clone := *c
			clone.Acceptances = make(map[string]bool, len(c.Acceptances))
			for k, v := range c.Acceptances {
				clone.Acceptances[k] = v
			}
			result = &clone
		}
	})
	if result == nil {
		return nil, apierror.New(apierror.NotFound, "commit not found")
	}
	return result, nil
}

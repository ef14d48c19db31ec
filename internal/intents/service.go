// Package intents implements the swap-intent CRUD surface (C6/§4.6):
// create, update, cancel, get, and list-by-actor, plus the validation rules
// that gate every write.
package intents

import (
	"sort"
	"strings"
	"time"

	"swapgraph/internal/actor"
	"swapgraph/internal/apierror"
	"swapgraph/internal/store"
)

// Service wraps a StateStore with the intent lifecycle operations.
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

// CreateInput is the validated shape of a create-intent request.
type CreateInput struct {
	Owner                 actor.Actor
	Offer                 []store.AssetRef
	WantSpec              []store.WantClause
	ValueBand             store.ValueBand
	TrustConstraints      store.TrustConstraints
	TimeConstraints       store.TimeConstraints
	SettlementPreferences store.SettlementPreferences
}

func validateCommon(offer []store.AssetRef, want []store.WantClause, band store.ValueBand, timeConstraints store.TimeConstraints, owner actor.Actor, now time.Time) error {
	if err := owner.Validate(); err != nil {
		return apierror.New(apierror.InvalidActorContext, err.Error())
	}
	if len(want) == 0 {
		return apierror.New(apierror.SchemaInvalid, "want_spec.any_of must be non-empty")
	}
	if len(offer) == 0 {
		return apierror.New(apierror.SchemaInvalid, "offer must be non-empty")
	}
	for _, a := range offer {
		if strings.TrimSpace(a.AssetID) == "" {
			return apierror.New(apierror.SchemaInvalid, "offer asset_id is required")
		}
		if strings.TrimSpace(a.Class) == "" && strings.TrimSpace(a.Instance) == "" {
			return apierror.New(apierror.SchemaInvalid, "offer asset must carry class or instance")
		}
	}
	if !isFinite(band.MinUSD) || !isFinite(band.MaxUSD) {
		return apierror.New(apierror.SchemaInvalid, "value_band bounds must be finite")
	}
	if band.MinUSD > band.MaxUSD {
		return apierror.New(apierror.SchemaInvalid, "value_band.min_usd must be <= max_usd")
	}
	if !timeConstraints.ExpiresAt.IsZero() && !timeConstraints.ExpiresAt.After(now) {
		return apierror.New(apierror.SchemaInvalid, "expires_at must be in the future")
	}
	return nil
}

func isFinite(f float64) bool {
	return f == f && f < 1e308 && f > -1e308
}

// Create validates and inserts a new active intent.
func (s *Service) Create(id string, in CreateInput) (*store.SwapIntent, error) {
	now := s.now().UTC()
	if err := validateCommon(in.Offer, in.WantSpec, in.ValueBand, in.TimeConstraints, in.Owner, now); err != nil {
		return nil, err
	}

	intent := &store.SwapIntent{
		ID:                    id,
		Owner:                 in.Owner,
		Offer:                 in.Offer,
		WantSpec:              in.WantSpec,
		ValueBand:             in.ValueBand,
		TrustConstraints:      in.TrustConstraints,
		TimeConstraints:       in.TimeConstraints,
		SettlementPreferences: in.SettlementPreferences,
		Status:                store.IntentActive,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	var result *store.SwapIntent
	err := s.store.Update(func(d *store.Document) error {
		d.Intents[id] = intent
		result = intent.Clone()
		return nil
	})
	return result, err
}

// UpdateInput carries the PATCH-able fields of an intent.
type UpdateInput struct {
	Offer                 *[]store.AssetRef
	WantSpec              *[]store.WantClause
	ValueBand             *store.ValueBand
	TrustConstraints      *store.TrustConstraints
	TimeConstraints       *store.TimeConstraints
	SettlementPreferences *store.SettlementPreferences
}

// Update applies a partial update, rejecting writes against a reserved
// intent with CONFLICT.
func (s *Service) Update(id string, caller actor.Actor, in UpdateInput) (*store.SwapIntent, error) {
	now := s.now().UTC()
	var result *store.SwapIntent
	err := s.store.Update(func(d *store.Document) error {
		existing, ok := d.Intents[id]
		if !ok {
			return apierror.New(apierror.NotFound, "intent not found")
		}
		if existing.Status == store.IntentReserved {
			return apierror.New(apierror.Conflict, "intent is reserved and cannot be updated")
		}
		if existing.Owner.Key() != caller.Key() {
			return apierror.New(apierror.Forbidden, "caller does not own this intent")
		}

		merged := *existing
		if in.Offer != nil {
			merged.Offer = *in.Offer
		}
		if in.WantSpec != nil {
			merged.WantSpec = *in.WantSpec
		}
		if in.ValueBand != nil {
			merged.ValueBand = *in.ValueBand
		}
		if in.TrustConstraints != nil {
			merged.TrustConstraints = *in.TrustConstraints
		}
		if in.TimeConstraints != nil {
			merged.TimeConstraints = *in.TimeConstraints
		}
		if in.SettlementPreferences != nil {
			merged.SettlementPreferences = *in.SettlementPreferences
		}
		if err := validateCommon(merged.Offer, merged.WantSpec, merged.ValueBand, merged.TimeConstraints, merged.Owner, now); err != nil {
			return err
		}
		merged.UpdatedAt = now
		d.Intents[id] = &merged
		result = merged.Clone()
		return nil
	})
	return result, err
}

// Cancel transitions active|reserved -> cancelled. A reserved intent also
// has its reservation cleared, and the commit id it was reserved by is
// returned so callers can emit intent.unreserved(reason=cancelled).
func (s *Service) Cancel(id string, caller actor.Actor) (intent *store.SwapIntent, releasedCommitID string, err error) {
	now := s.now().UTC()
	err = s.store.Update(func(d *store.Document) error {
		existing, ok := d.Intents[id]
		if !ok {
			return apierror.New(apierror.NotFound, "intent not found")
		}
		if existing.Owner.Key() != caller.Key() {
			return apierror.New(apierror.Forbidden, "caller does not own this intent")
		}
		if existing.Status != store.IntentActive && existing.Status != store.IntentReserved {
			return apierror.New(apierror.Conflict, "intent cannot be cancelled from status "+string(existing.Status))
		}
		if existing.Status == store.IntentReserved {
			releasedCommitID = existing.ReservedByCommitID
		}
		existing.Status = store.IntentCancelled
		existing.ReservedByCommitID = ""
		existing.UpdatedAt = now
		intent = existing.Clone()
		return nil
	})
	return intent, releasedCommitID, err
}

// Get fetches one intent by id.
func (s *Service) Get(id string) (*store.SwapIntent, error) {
	var result *store.SwapIntent
	s.store.View(func(d *store.Document) {
		if existing, ok := d.Intents[id]; ok {
			result = existing.Clone()
		}
	})
	if result == nil {
		return nil, apierror.New(apierror.NotFound, "intent not found")
	}
	return result, nil
}

// ListByActor returns owner's intents in created_at,id order, cursor-paged.
func (s *Service) ListByActor(owner actor.Actor, cursor string, limit int) (items []*store.SwapIntent, nextCursor string) {
	if limit <= 0 {
		limit = 50
	}
	var all []*store.SwapIntent
	s.store.View(func(d *store.Document) {
		for _, intent := range d.Intents {
			if intent.Owner.Key() == owner.Key() {
				all = append(all, intent.Clone())
			}
		}
	})
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	start := 0
	if cursor != "" {
		for i, intent := range all {
			if intent.ID == cursor {
				start = i + 1
				break
			}
		}
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	if start > len(all) {
		start = len(all)
	}
	page := all[start:end]
	if end < len(all) {
		nextCursor = all[end-1].ID
	}
	return page, nextCursor
}

package intents

import (
	"strings"
	"time"

	"swapgraph/internal/actor"
	"swapgraph/internal/apierror"
	"swapgraph/internal/store"
)

// EdgeService manages explicit allow/prefer/block directives between
// intents (§3's EdgeIntent).
type EdgeService struct {
	store *store.StateStore
	now   func() time.Time
}

// NewEdgeService constructs an EdgeService. now defaults to time.Now when nil.
func NewEdgeService(st *store.StateStore, now func() time.Time) *EdgeService {
	if now == nil {
		now = time.Now
	}
	return &EdgeService{store: st, now: now}
}

// CreateEdgeInput is the validated shape of a create-edge-intent request.
type CreateEdgeInput struct {
	SourceIntentID string
	TargetIntentID string
	Type           store.EdgeType
	Strength       float64
	ExpiresAt      time.Time
}

// Create validates and inserts a new active edge directive.
func (s *EdgeService) Create(id string, caller actor.Actor, in CreateEdgeInput) (*store.EdgeIntent, error) {
	now := s.now().UTC()
	if strings.TrimSpace(in.SourceIntentID) == "" || strings.TrimSpace(in.TargetIntentID) == "" {
		return nil, apierror.New(apierror.SchemaInvalid, "source_intent_id and target_intent_id are required")
	}
	if in.SourceIntentID == in.TargetIntentID {
		return nil, apierror.New(apierror.SchemaInvalid, "an edge intent cannot target its own source")
	}
	switch in.Type {
	case store.EdgeAllow, store.EdgePrefer, store.EdgeBlock:
	default:
		return nil, apierror.New(apierror.SchemaInvalid, "intent_type must be allow, prefer, or block")
	}
	if in.Strength < 0 || in.Strength > 1 {
		return nil, apierror.New(apierror.SchemaInvalid, "strength must be within [0,1]")
	}

	edge := &store.EdgeIntent{
		ID:             id,
		SourceIntentID: in.SourceIntentID,
		TargetIntentID: in.TargetIntentID,
		Type:           in.Type,
		Strength:       in.Strength,
		Status:         store.EdgeStatusActive,
		ExpiresAt:      in.ExpiresAt,
		CreatedAt:      now,
	}

	var result *store.EdgeIntent
	err := s.store.Update(func(d *store.Document) error {
		source, ok := d.Intents[in.SourceIntentID]
		if !ok {
			return apierror.New(apierror.NotFound, "source intent not found")
		}
		if source.Owner.Key() != caller.Key() {
			return apierror.New(apierror.Forbidden, "caller does not own the source intent")
		}
		if _, ok := d.Intents[in.TargetIntentID]; !ok {
			return apierror.New(apierror.NotFound, "target intent not found")
		}
		d.EdgeIntents[id] = edge
		result = edge
		return nil
	})
	return result, err
}

// Cancel transitions an edge intent to cancelled.
func (s *EdgeService) Cancel(id string, callerKey string) (*store.EdgeIntent, error) {
	var result *store.EdgeIntent
	err := s.store.Update(func(d *store.Document) error {
		edge, ok := d.EdgeIntents[id]
		if !ok {
			return apierror.New(apierror.NotFound, "edge intent not found")
		}
		source, ok := d.Intents[edge.SourceIntentID]
		if ok && source.Owner.Key() != callerKey {
			return apierror.New(apierror.Forbidden, "caller does not own the source intent")
		}
		edge.Status = store.EdgeStatusCancelled
		result = edge
		return nil
	})
	return result, err
}

// ListBySourceIntent returns every edge directive whose source is intentID.
func (s *EdgeService) ListBySourceIntent(intentID string) []*store.EdgeIntent {
	var out []*store.EdgeIntent
	s.store.View(func(d *store.Document) {
		for _, e := range d.EdgeIntents {
			if e.SourceIntentID == intentID {
				out = append(out, e)
			}
		}
	})
	return out
}

// Package httpapi wires the domain services into an HTTP surface: the
// actor/scope guard, idempotency replay, and the per-module handlers for
// swap intents, edge intents, matching runs, commits, settlement, custody
// snapshots, and event delivery.
package httpapi

import (
	"time"

	"swapgraph/internal/commits"
	"swapgraph/internal/custody"
	"swapgraph/internal/eventlog"
	"swapgraph/internal/idempotency"
	"swapgraph/internal/intents"
	"swapgraph/internal/matching"
	"swapgraph/internal/settlement"
	"swapgraph/internal/signing"
	"swapgraph/internal/store"
)

// API holds every domain service the router dispatches to.
type API struct {
	Store       *store.StateStore
	Intents     *intents.Service
	Edges       *intents.EdgeService
	Commits     *commits.Service
	Settlement  *settlement.Service
	Custody     *custody.Service
	Events      *eventlog.Log
	Idempotency *idempotency.Registry
	MatchBounds matching.Bounds
	MatchConfig matching.Config
	Now         func() time.Time
}

// NewAPI constructs an API over already-built services.
func NewAPI(st *store.StateStore, events *eventlog.Log, idem *idempotency.Registry, signer *signing.Signer, now func() time.Time) *API {
	if now == nil {
		now = time.Now
	}
	return &API{
		Store:       st,
		Intents:     intents.New(st, now),
		Edges:       intents.NewEdgeService(st, now),
		Commits:     commits.New(st, now),
		Settlement:  settlement.New(st, events, signer, now),
		Custody:     custody.New(st, now),
		Events:      events,
		Idempotency: idem,
		MatchBounds: matching.Bounds{}.WithDefaults(),
		MatchConfig: matching.DefaultConfig(),
		Now:         now,
	}
}

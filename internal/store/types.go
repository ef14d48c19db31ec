// Package store implements the single-writer StateStore (§4.3/§5): the one
// mutable shared resource every domain service mutates through, plus the
// entity types that live inside its six top-level maps.
package store

import (
	"time"

	"swapgraph/internal/actor"
	"swapgraph/internal/signing"
)

// AssetRef identifies one asset contributed to or requested by an intent.
type AssetRef struct {
	Platform             string                 `json:"platform"`
	AssetID              string                 `json:"asset_id"`
	Class                string                 `json:"class"`
	Instance             string                 `json:"instance,omitempty"`
	ValueUSD             float64                `json:"value_usd"`
	InventorySnapshotRef string                 `json:"inventory_snapshot_ref,omitempty"`
	Metadata             map[string]interface{} `json:"metadata,omitempty"`
}

// WantClauseKind enumerates the two shapes a disjunction clause can take.
type WantClauseKind string

const (
	WantSpecificAsset WantClauseKind = "specific_asset"
	WantCategory      WantClauseKind = "category"
)

// WantClause is one element of a SwapIntent's want_spec.any_of disjunction.
type WantClause struct {
	Kind           WantClauseKind `json:"kind"`
	Platform       string         `json:"platform"`
	AssetKey       string         `json:"asset_key,omitempty"` // specific_asset: "platform:asset_key"
	Category       string         `json:"category,omitempty"`
	WearConstraint string         `json:"wear_constraint,omitempty"`
}

// ValueBand bounds the acceptable aggregate USD value of a received offer.
type ValueBand struct {
	MinUSD        float64 `json:"min_usd"`
	MaxUSD        float64 `json:"max_usd"`
	PricingSource string  `json:"pricing_source,omitempty"`
}

// TrustConstraints bounds cycle length and counterparty reliability.
type TrustConstraints struct {
	MaxCycleLength             int     `json:"max_cycle_length"`
	MinCounterpartyReliability float64 `json:"min_counterparty_reliability"`
}

// TimeConstraints carries the intent's expiry and urgency tag.
type TimeConstraints struct {
	ExpiresAt time.Time `json:"expires_at"`
	Urgency   string    `json:"urgency,omitempty"`
}

// SettlementPreferences carries per-intent settlement options.
type SettlementPreferences struct {
	RequireEscrow bool `json:"require_escrow"`
}

// IntentStatus is the SwapIntent lifecycle state (§3).
type IntentStatus string

const (
	IntentActive    IntentStatus = "active"
	IntentReserved  IntentStatus = "reserved"
	IntentCancelled IntentStatus = "cancelled"
	IntentSettled   IntentStatus = "settled"
	IntentFailed    IntentStatus = "failed"
)

// Terminal reports whether the status is absorbing.
func (s IntentStatus) Terminal() bool {
	return s == IntentCancelled || s == IntentSettled || s == IntentFailed
}

// SwapIntent is the core declarative offer/want entity (§3).
type SwapIntent struct {
	ID                    string                 `json:"id"`
	Owner                 actor.Actor            `json:"owner"`
	Offer                 []AssetRef             `json:"offer"`
	WantSpec              []WantClause           `json:"want_spec"` // any_of
	ValueBand             ValueBand              `json:"value_band"`
	TrustConstraints      TrustConstraints       `json:"trust_constraints"`
	TimeConstraints       TimeConstraints        `json:"time_constraints"`
	SettlementPreferences SettlementPreferences  `json:"settlement_preferences"`
	Status                IntentStatus           `json:"status"`
	ReservedByCommitID    string                 `json:"reserved_by_commit_id,omitempty"`
	CreatedAt             time.Time              `json:"created_at"`
	UpdatedAt             time.Time              `json:"updated_at"`
}

// OfferValueUSD sums the USD value of the intent's offer.
func (si *SwapIntent) OfferValueUSD() float64 {
	var total float64
	for _, a := range si.Offer {
		total += a.ValueUSD
	}
	return total
}

// Clone returns a deep-enough copy safe for callers to retain across lock
// releases (slices/maps are re-allocated; AssetRef/WantClause are copied by
// value).
func (si *SwapIntent) Clone() *SwapIntent {
	if si == nil {
		return nil
	}
	clone := *si
	clone.Offer = append([]AssetRef(nil), si.Offer...)
	clone.WantSpec = append([]WantClause(nil), si.WantSpec...)
	return &clone
}

// EdgeType enumerates the three explicit directive kinds (§3).
type EdgeType string

const (
	EdgeAllow   EdgeType = "allow"
	EdgePrefer  EdgeType = "prefer"
	EdgeBlock   EdgeType = "block"
)

// EdgeIntentStatus mirrors the intent status vocabulary for edge directives.
type EdgeIntentStatus string

const (
	EdgeStatusActive    EdgeIntentStatus = "active"
	EdgeStatusExpired   EdgeIntentStatus = "expired"
	EdgeStatusCancelled EdgeIntentStatus = "cancelled"
)

// EdgeIntent is an explicit allow/prefer/block directive between two intents.
type EdgeIntent struct {
	ID             string           `json:"id"`
	SourceIntentID string           `json:"source_intent_id"`
	TargetIntentID string           `json:"target_intent_id"`
	Type           EdgeType         `json:"intent_type"`
	Strength       float64          `json:"strength,omitempty"`
	Status         EdgeIntentStatus `json:"status"`
	ExpiresAt      time.Time        `json:"expires_at"`
	CreatedAt      time.Time        `json:"created_at"`
}

// Active reports whether the edge is usable at instant now.
func (e *EdgeIntent) Active(now time.Time) bool {
	if e.Status != EdgeStatusActive {
		return false
	}
	if !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt) {
		return false
	}
	return true
}

// Participant is one leg of a CycleProposal.
type Participant struct {
	IntentID string      `json:"intent_id"`
	Actor    actor.Actor `json:"actor"`
	Give     []AssetRef  `json:"give"`
	Get      []AssetRef  `json:"get"`
}

// GiveValueUSD sums the USD value the participant contributes.
func (p Participant) GiveValueUSD() float64 {
	var total float64
	for _, a := range p.Give {
		total += a.ValueUSD
	}
	return total
}

// CycleProposal is a scored, materialized cycle candidate (§3).
type CycleProposal struct {
	ID              string        `json:"id"`
	Participants    []Participant `json:"participants"`
	ConfidenceScore float64       `json:"confidence_score"`
	ValueSpread     float64       `json:"value_spread"`
	Explainability  []string      `json:"explainability"`
	ExpiresAt       time.Time     `json:"expires_at"`
	CreatedAt       time.Time     `json:"created_at"`
}

// IntentIDs returns the ordered participant intent ids.
func (p *CycleProposal) IntentIDs() []string {
	ids := make([]string, len(p.Participants))
	for i, part := range p.Participants {
		ids[i] = part.IntentID
	}
	return ids
}

// CommitPhase enumerates the C7 commit lifecycle (§3/§4.7).
type CommitPhase string

const (
	CommitPending  CommitPhase = "pending"
	CommitReady    CommitPhase = "ready"
	CommitDeclined CommitPhase = "declined"
	CommitExpired  CommitPhase = "expired"
)

// Terminal reports whether the commit phase is absorbing.
func (p CommitPhase) Terminal() bool {
	return p == CommitDeclined || p == CommitExpired
}

// Commit is the two-phase acceptance aggregate bound to a proposal (§3).
type Commit struct {
	ID          string          `json:"id"`
	ProposalID  string          `json:"proposal_id"`
	Phase       CommitPhase     `json:"phase"`
	Acceptances map[string]bool `json:"acceptances"` // participant intent id -> accepted
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// AllAccepted reports whether every supplied intent id has accepted.
func (c *Commit) AllAccepted(intentIDs []string) bool {
	for _, id := range intentIDs {
		if !c.Acceptances[id] {
			return false
		}
	}
	return true
}

// AnyDeclined reports whether any participant explicitly declined (recorded
// as a false entry distinct from "not yet responded").
func (c *Commit) AnyDeclined() bool {
	for _, accepted := range c.Acceptances {
		if !accepted {
			return true
		}
	}
	return false
}

// LegStatus enumerates a settlement leg's transfer state (§3).
type LegStatus string

const (
	LegPending   LegStatus = "pending"
	LegDeposited LegStatus = "deposited"
	LegReleased  LegStatus = "released"
	LegRefunded  LegStatus = "refunded"
)

// Leg is one transfer within a timeline, from a participant to the
// participant before it in the proposal's order.
type Leg struct {
	LegID             string      `json:"leg_id"`
	IntentID          string      `json:"intent_id"`
	FromActor         actor.Actor `json:"from_actor"`
	ToActor           actor.Actor `json:"to_actor"`
	Assets            []AssetRef  `json:"assets"`
	Status            LegStatus   `json:"status"`
	DepositDeadlineAt time.Time   `json:"deposit_deadline_at"`
	DepositRef        string      `json:"deposit_ref,omitempty"`
	DepositedAt       *time.Time  `json:"deposited_at,omitempty"`
	ReleaseRef        string      `json:"release_ref,omitempty"`
	ReleasedAt        *time.Time  `json:"released_at,omitempty"`
	RefundRef         string      `json:"refund_ref,omitempty"`
	RefundedAt        *time.Time  `json:"refunded_at,omitempty"`
}

// TimelineState enumerates the settlement state machine states (§4.8).
type TimelineState string

const (
	StateEscrowPending TimelineState = "escrow.pending"
	StateEscrowReady   TimelineState = "escrow.ready"
	StateExecuting     TimelineState = "executing"
	StateCompleted     TimelineState = "completed"
	StateFailed        TimelineState = "failed"
)

// Terminal reports whether the state is absorbing.
func (s TimelineState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// SettlementTimeline is the per-cycle settlement state machine (§3/§4.8).
type SettlementTimeline struct {
	CycleID        string        `json:"cycle_id"`
	PartnerActorID string        `json:"partner_actor_id"`
	State          TimelineState `json:"state"`
	Legs           []Leg         `json:"legs"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// AllLegsDeposited reports whether every leg has been deposited.
func (t *SettlementTimeline) AllLegsDeposited() bool {
	for _, leg := range t.Legs {
		if leg.Status != LegDeposited {
			return false
		}
	}
	return true
}

// Transparency carries an optional human-auditable reason code on a receipt.
type Transparency struct {
	ReasonCode string `json:"reason_code"`
}

// Receipt is the signed terminal-state record of a timeline (§3).
type Receipt struct {
	ID           string             `json:"id"`
	CycleID      string             `json:"cycle_id"`
	FinalState   string             `json:"final_state"`
	IntentIDs    []string           `json:"intent_ids"`
	AssetIDs     []string           `json:"asset_ids"`
	Transparency *Transparency      `json:"transparency,omitempty"`
	Signature    signing.Signature  `json:"signature"`
	CreatedAt    time.Time          `json:"created_at"`
}

// Holding is one leaf entry in a custody snapshot (§4.9).
type Holding struct {
	HoldingID string                 `json:"holding_id"`
	Platform  string                 `json:"platform"`
	AssetID   string                 `json:"asset_id"`
	OwnerType string                 `json:"owner_type"`
	OwnerID   string                 `json:"owner_id"`
	VaultID   string                 `json:"vault_id"`
	DepositID string                 `json:"deposit_id"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Key is the sort key spec §4.9 mandates.
func (h Holding) Key() string {
	return h.Platform + ":" + h.AssetID + "|" + h.OwnerType + ":" + h.OwnerID + "|" + h.VaultID + "|" + h.DepositID + "|" + h.HoldingID
}

// CustodySnapshot is a published, Merkle-rooted set of holdings (§3/§4.9).
type CustodySnapshot struct {
	SnapshotID string    `json:"snapshot_id"`
	RecordedAt time.Time `json:"recorded_at"`
	LeafCount  int       `json:"leaf_count"`
	RootHash   string    `json:"root_hash"`
	Holdings   []Holding `json:"holdings"` // sorted by Holding.Key()
	LeafHashes []string  `json:"-"`        // hex, parallel to Holdings, not re-serialized
}

// IdempotencyEntry is the cached outcome of one (actor,op,key) scope (§4.4).
type IdempotencyEntry struct {
	ScopeKey    string          `json:"scope_key"`
	PayloadHash string          `json:"payload_hash"`
	StatusCode  int             `json:"status_code"`
	Result      []byte          `json:"result"`
}

// Event is an appended, already-signed envelope (§3/§4.10). The envelope
// semantics (stable ids, delivery) live in package eventlog; this is just
// the storage shape.
type Event struct {
	Seq           uint64                 `json:"seq"`
	EventID       string                 `json:"event_id"`
	Type          string                 `json:"type"`
	OccurredAt    time.Time              `json:"occurred_at"`
	CorrelationID string                 `json:"correlation_id"`
	Actor         actor.Actor            `json:"actor"`
	Payload       map[string]interface{} `json:"payload"`
	Signature     signing.Signature      `json:"signature"`
}

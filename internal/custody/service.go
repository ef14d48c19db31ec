package custody

import (
	"encoding/hex"
	"sort"
	"time"

	"swapgraph/internal/apierror"
	"swapgraph/internal/canonical"
	"swapgraph/internal/store"
)

// Service wraps a StateStore with custody snapshot operations.
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

// PublishSnapshot builds and stores a new custody snapshot, rejecting a
// duplicate snapshot_id.
func (s *Service) PublishSnapshot(snapshotID string, holdings []store.Holding) (*store.CustodySnapshot, error) {
	now := s.now().UTC()
	sorted := append([]store.Holding(nil), holdings...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key() < sorted[j].Key() })

	leafHashes := make([]string, len(sorted))
	for i, h := range sorted {
		sum, err := canonical.Hash(h)
		if err != nil {
			return nil, apierror.New(apierror.ServerError, "failed to hash holding: "+err.Error())
		}
		leafHashes[i] = hex.EncodeToString(sum[:])
	}
	root, err := RootHash(leafHashes)
	if err != nil {
		return nil, apierror.New(apierror.ServerError, "failed to compute root: "+err.Error())
	}

	snapshot := &store.CustodySnapshot{
		SnapshotID: snapshotID,
		RecordedAt: now,
		LeafCount:  len(sorted),
		RootHash:   root,
		Holdings:   sorted,
		LeafHashes: leafHashes,
	}

	var result *store.CustodySnapshot
	err = s.store.Update(func(d *store.Document) error {
		if _, exists := d.CustodySnapshots[snapshotID]; exists {
			return apierror.New(apierror.ConstraintViolation, "vault_custody_snapshot_exists").
				WithDetails(map[string]interface{}{"snapshot_id": snapshotID})
		}
		d.CustodySnapshots[snapshotID] = snapshot
		d.SnapshotOrder = append(d.SnapshotOrder, snapshotID)
		result = snapshot
		return nil
	})
	return result, err
}

// GetInclusionProof returns the inclusion proof for holdingID within
// snapshotID.
func (s *Service) GetInclusionProof(snapshotID, holdingID string) (Proof, string, error) {
	var snapshot *store.CustodySnapshot
	s.store.View(func(d *store.Document) {
		snapshot = d.CustodySnapshots[snapshotID]
	})
	if snapshot == nil {
		return Proof{}, "", apierror.New(apierror.NotFound, "snapshot not found")
	}
	idx := -1
	for i, h := range snapshot.Holdings {
		if h.HoldingID == holdingID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return Proof{}, "", apierror.New(apierror.NotFound, "holding not found in snapshot")
	}
	proof, err := BuildProof(snapshot.LeafHashes, idx)
	if err != nil {
		return Proof{}, "", apierror.New(apierror.ServerError, err.Error())
	}
	return proof, snapshot.RootHash, nil
}

// VerifyInclusionProof recomputes the root from proof and compares it to
// the snapshot's recorded root.
func (s *Service) VerifyInclusionProof(snapshotID string, proof Proof) error {
	var snapshot *store.CustodySnapshot
	s.store.View(func(d *store.Document) {
		snapshot = d.CustodySnapshots[snapshotID]
	})
	if snapshot == nil {
		return apierror.New(apierror.NotFound, "snapshot not found")
	}
	if err := VerifyProof(proof.LeafHash, proof, snapshot.RootHash); err != nil {
		return apierror.New(apierror.ConstraintViolation, err.Error())
	}
	return nil
}

// ListSnapshots returns snapshots in publish order after cursorAfter.
func (s *Service) ListSnapshots(cursorAfter string, limit int) ([]*store.CustodySnapshot, string, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	var order []string
	snapshots := make(map[string]*store.CustodySnapshot)
	s.store.View(func(d *store.Document) {
		order = append(order, d.SnapshotOrder...)
		for k, v := range d.CustodySnapshots {
			snapshots[k] = v
		}
	})

	start := 0
	if cursorAfter != "" {
		found := false
		for i, id := range order {
			if id == cursorAfter {
				start = i + 1
				found = true
				break
			}
		}
		if !found {
			return nil, "", apierror.New(apierror.ConstraintViolation, "vault_custody_cursor_not_found")
		}
	}
	end := start + limit
	if end > len(order) {
		end = len(order)
	}
	if start > len(order) {
		start = len(order)
	}

	var page []*store.CustodySnapshot
	for _, id := range order[start:end] {
		page = append(page, snapshots[id])
	}
	var next string
	if end < len(order) {
		next = order[end-1]
	}
	return page, next, nil
}

package store

import (
	"fmt"
	"sync"

	"swapgraph/internal/canonical"
)

// Document is the complete in-memory state: the six top-level maps §4.3
// names (intents, edge intents, proposals, commits, timelines, receipts)
// plus the event log, idempotency registry, and custody snapshots. Every
// mutation to a Document happens inside a StateStore.Update closure.
type Document struct {
	Intents          map[string]*SwapIntent          `json:"intents"`
	EdgeIntents      map[string]*EdgeIntent          `json:"edge_intents"`
	Proposals        map[string]*CycleProposal       `json:"proposals"`
	Commits          map[string]*Commit              `json:"commits"`
	Timelines        map[string]*SettlementTimeline  `json:"timelines"`
	Receipts         map[string]*Receipt             `json:"receipts"`
	Events           []Event                         `json:"events"`
	Idempotency      map[string]IdempotencyEntry      `json:"idempotency"`
	CustodySnapshots map[string]*CustodySnapshot      `json:"custody_snapshots"`
	SnapshotOrder    []string                         `json:"snapshot_order"`
}

func newDocument() Document {
	return Document{
		Intents:          make(map[string]*SwapIntent),
		EdgeIntents:      make(map[string]*EdgeIntent),
		Proposals:        make(map[string]*CycleProposal),
		Commits:          make(map[string]*Commit),
		Timelines:        make(map[string]*SettlementTimeline),
		Receipts:         make(map[string]*Receipt),
		Events:           nil,
		Idempotency:      make(map[string]IdempotencyEntry),
		CustodySnapshots: make(map[string]*CustodySnapshot),
		SnapshotOrder:    nil,
	}
}

// Persister durably backs a StateStore's snapshots. Grounded on the
// teacher's bbolt-backed consensus store: a single opaque canonical-JSON
// blob written on every successful Update, read back once on startup.
type Persister interface {
	SaveSnapshot(canonicalJSON []byte) error
	LoadSnapshot() (canonicalJSON []byte, found bool, err error)
	Close() error
}

// noopPersister is the zero-value backing: state lives only in memory.
type noopPersister struct{}

func (noopPersister) SaveSnapshot([]byte) error                { return nil }
func (noopPersister) LoadSnapshot() ([]byte, bool, error)       { return nil, false, nil }
func (noopPersister) Close() error                              { return nil }

// StateStore is the single writer spec §4.3/§5 requires: every domain
// mutation takes the same mutex, so cross-entity invariants (reserving an
// intent while creating a commit, releasing a reservation while declining a
// commit) are trivially atomic. Modeled on bbolt's own View/Update split,
// which the teacher already uses for its consensus snapshot store.
type StateStore struct {
	mu        sync.Mutex
	doc       Document
	persister Persister
	nextSeq   uint64
}

// New constructs a StateStore, loading a prior snapshot from persister if
// one exists. A nil persister keeps state in memory only.
func New(persister Persister) (*StateStore, error) {
	if persister == nil {
		persister = noopPersister{}
	}
	s := &StateStore{
		doc:       newDocument(),
		persister: persister,
	}
	raw, found, err := persister.LoadSnapshot()
	if err != nil {
		return nil, fmt.Errorf("store: load snapshot: %w", err)
	}
	if found {
		if err := s.restoreLocked(raw); err != nil {
			return nil, fmt.Errorf("store: restore snapshot: %w", err)
		}
	}
	for _, e := range s.doc.Events {
		if e.Seq >= s.nextSeq {
			s.nextSeq = e.Seq + 1
		}
	}
	return s, nil
}

// Update runs fn with exclusive access to the Document, then persists the
// resulting snapshot. fn's returned error aborts persistence but any
// mutations already applied to the in-memory maps stand — callers must
// validate before mutating, the same discipline the teacher's trade engine
// uses (check first, then touch only what must change).
func (s *StateStore) Update(fn func(*Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(&s.doc); err != nil {
		return err
	}
	raw, err := s.exportLocked()
	if err != nil {
		return fmt.Errorf("store: export snapshot: %w", err)
	}
	if err := s.persister.SaveSnapshot(raw); err != nil {
		return fmt.Errorf("store: save snapshot: %w", err)
	}
	return nil
}

// View runs fn with read access to the Document. fn must not retain
// pointers into the maps beyond its own invocation without cloning them.
func (s *StateStore) View(fn func(*Document)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.doc)
}

// NextEventSeq allocates the next monotonically increasing event sequence
// number. Must be called from inside an Update closure.
func (s *StateStore) NextEventSeq() uint64 {
	seq := s.nextSeq
	s.nextSeq++
	return seq
}

// Export returns the canonical-JSON encoding of the current Document.
func (s *StateStore) Export() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exportLocked()
}

func (s *StateStore) exportLocked() ([]byte, error) {
	return canonical.Marshal(s.doc)
}

// Restore replaces the current Document with the one encoded in raw.
func (s *StateStore) Restore(raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restoreLocked(raw)
}

func (s *StateStore) restoreLocked(raw []byte) error {
	doc := newDocument()
	if _, err := canonical.Recanonicalize(raw); err != nil {
		return fmt.Errorf("store: snapshot is not canonical: %w", err)
	}
	if err := unmarshalDocument(raw, &doc); err != nil {
		return err
	}
	s.doc = doc
	return nil
}

// Close releases the persister's resources.
func (s *StateStore) Close() error {
	return s.persister.Close()
}

package store

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bboltBucketSnapshot = []byte("snapshot")
	bboltKeySnapshot    = []byte("current")
)

// BboltPersister backs a StateStore with a single BoltDB file holding one
// canonical-JSON blob per snapshot. Grounded on services/identity-gateway's
// bucket-per-concern bbolt store: here there is exactly one concern (the
// whole Document), so there is exactly one bucket and one key.
type BboltPersister struct {
	db *bolt.DB
}

// NewBboltPersister opens (creating if necessary) a BoltDB file at path.
func NewBboltPersister(path string) (*BboltPersister, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: open bbolt: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bboltBucketSnapshot)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: init bbolt bucket: %w", err)
	}
	return &BboltPersister{db: db}, nil
}

// SaveSnapshot implements Persister.
func (p *BboltPersister) SaveSnapshot(canonicalJSON []byte) error {
	return p.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bboltBucketSnapshot).Put(bboltKeySnapshot, canonicalJSON)
	})
}

// LoadSnapshot implements Persister.
func (p *BboltPersister) LoadSnapshot() ([]byte, bool, error) {
	var out []byte
	err := p.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bboltBucketSnapshot).Get(bboltKeySnapshot)
		if raw == nil {
			return nil
		}
		out = append([]byte(nil), raw...)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if out == nil {
		return nil, false, nil
	}
	return out, true, nil
}

// Close implements Persister.
func (p *BboltPersister) Close() error {
	return p.db.Close()
}

package idempotency

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"swapgraph/internal/store"
)

const entryKeyPrefix = "idem:"

// LevelDBPersistence is the durable mirror behind Registry, grounded on the
// teacher's gateway/auth nonce persistence: a flat key-value store keyed by
// the same composite scope key the in-memory registry already uses, so no
// translation layer is needed between the two.
type LevelDBPersistence struct {
	db *leveldb.DB
}

// NewLevelDBPersistence opens (or creates) a LevelDB database at path.
func NewLevelDBPersistence(path string) (*LevelDBPersistence, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("idempotency: leveldb path required")
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("idempotency: resolve leveldb path: %w", err)
	}
	db, err := leveldb.OpenFile(abs, nil)
	if err != nil {
		return nil, fmt.Errorf("idempotency: open leveldb: %w", err)
	}
	return &LevelDBPersistence{db: db}, nil
}

// Put implements DurablePersistence.
func (p *LevelDBPersistence) Put(scopeKey string, entry store.IdempotencyEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("idempotency: marshal entry: %w", err)
	}
	if err := p.db.Put([]byte(entryKeyPrefix+scopeKey), payload, nil); err != nil {
		return fmt.Errorf("idempotency: put entry: %w", err)
	}
	return nil
}

// All implements DurablePersistence.
func (p *LevelDBPersistence) All() (map[string]store.IdempotencyEntry, error) {
	out := make(map[string]store.IdempotencyEntry)
	iter := p.db.NewIterator(util.BytesPrefix([]byte(entryKeyPrefix)), nil)
	defer iter.Release()
	for iter.Next() {
		scopeKey := strings.TrimPrefix(string(iter.Key()), entryKeyPrefix)
		var entry store.IdempotencyEntry
		if err := json.Unmarshal(iter.Value(), &entry); err != nil {
			continue
		}
		out[scopeKey] = entry
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("idempotency: iterate entries: %w", err)
	}
	return out, nil
}

// Close implements DurablePersistence.
func (p *LevelDBPersistence) Close() error {
	return p.db.Close()
}

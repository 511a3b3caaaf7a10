package branchmap

import (
	"context"
	"fmt"

	"github.com/dshills/branchpoints/internal/kv"
	"github.com/dshills/branchpoints/internal/logging"
)

// DefaultKey is the key the map is stored under.
const DefaultKey = "branchpoints.branchMap"

// Store loads and saves a Map through a key-value store.
type Store struct {
	kv  kv.Store
	key string
	log *logging.Logger
}

// NewStore creates a store. An empty key selects DefaultKey.
func NewStore(s kv.Store, key string, log *logging.Logger) *Store {
	if key == "" {
		key = DefaultKey
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Store{kv: s, key: key, log: log.WithComponent("store")}
}

// Key returns the storage key.
func (s *Store) Key() string {
	return s.key
}

// Load reads the persisted map. A missing blob yields an empty map. The
// migrated flag is set when the blob was written by an older schema and
// should be persisted again.
func (s *Store) Load(ctx context.Context) (m *Map, migrated bool, err error) {
	blob, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return nil, false, fmt.Errorf("load branch map: %w", err)
	}
	if !ok || len(blob) == 0 {
		s.log.Debug("no persisted map, starting empty")
		return New(), false, nil
	}

	blob, migrated, err = Migrate(blob)
	if err != nil {
		return nil, false, fmt.Errorf("load branch map: %w", err)
	}
	if migrated {
		s.log.Info("migrated persisted map to schema %s", CurrentVersion)
	}

	m, err = Decode(blob)
	if err != nil {
		return nil, false, fmt.Errorf("load branch map: %w", err)
	}
	return m, migrated, nil
}

// Save persists m.
func (s *Store) Save(ctx context.Context, m *Map) error {
	data, err := m.Encode()
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("save branch map: %w", err)
	}
	return nil
}

// Clear erases the persisted blob and writes an empty map with the current
// schema version, which it returns.
func (s *Store) Clear(ctx context.Context) (*Map, error) {
	if err := s.kv.Delete(ctx, s.key); err != nil {
		return nil, fmt.Errorf("clear branch map: %w", err)
	}
	m := New()
	if err := s.Save(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

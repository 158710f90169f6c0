// Package source loads the records of a collection from where the
// application keeps them: a PostgreSQL table or a JSON file.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/kikaihonyaku/cocosumo-sub004/internal/indexer/record"
	"github.com/kikaihonyaku/cocosumo-sub004/pkg/config"
	apperrors "github.com/kikaihonyaku/cocosumo-sub004/pkg/errors"
)

// Source returns every record of a collection in a stable order.
type Source interface {
	Load(ctx context.Context, col config.CollectionConfig) ([]record.Map, error)
}

// Static serves records held in memory, optionally seeded from JSON
// files named by the collection config.
type Static struct {
	mu      sync.RWMutex
	records map[string][]record.Map
}

// NewStatic creates an empty Static source.
func NewStatic() *Static {
	return &Static{records: make(map[string][]record.Map)}
}

// Put replaces the records of a collection.
func (s *Static) Put(collection string, records []record.Map) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[collection] = append([]record.Map(nil), records...)
}

// Load returns the records put for col, or reads col.File when nothing
// was put.
func (s *Static) Load(ctx context.Context, col config.CollectionConfig) ([]record.Map, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	records, ok := s.records[col.Name]
	s.mu.RUnlock()
	if ok {
		return append([]record.Map(nil), records...), nil
	}
	if col.File == "" {
		return nil, apperrors.Newf(apperrors.ErrSourceUnavailable, 0, "collection %q has no records", col.Name)
	}
	return ReadFile(col.File)
}

// ReadFile decodes a JSON array of objects.
func ReadFile(path string) ([]record.Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading records file %s: %w", path, err)
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing records file %s: %w", path, err)
	}
	records := make([]record.Map, 0, len(raw))
	for i, r := range raw {
		m, err := record.FromJSON(r)
		if err != nil {
			return nil, fmt.Errorf("records file %s, element %d: %w", path, i, err)
		}
		records = append(records, m)
	}
	return records, nil
}

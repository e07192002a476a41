// Package catalog provides the metadata registry implementations: an
// in-memory catalog for tests and local runs, and a DuckDB-backed catalog
// that also maintains queryable views over the landed files.
package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/strata-lake/strata/strata"
)

// Memory is an in-memory strata.Catalog. Safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	tables map[string]strata.TableDefinition
}

// NewMemory creates an empty in-memory catalog.
func NewMemory() *Memory {
	return &Memory{tables: make(map[string]strata.TableDefinition)}
}

func tableKey(namespace, name string) string {
	return namespace + "." + name
}

// CreateOrUpdateTable publishes def. The merge itself happens in the
// scanner; the catalog stores what it is handed and stamps the update
// time.
func (m *Memory) CreateOrUpdateTable(_ context.Context, def strata.TableDefinition, _ strata.UpdatePolicy) error {
	if def.Namespace == "" || def.Name == "" {
		return fmt.Errorf("catalog: namespace and name are required")
	}
	def.UpdatedAt = time.Now().UTC()

	m.mu.Lock()
	m.tables[tableKey(def.Namespace, def.Name)] = def
	m.mu.Unlock()
	return nil
}

// DescribeTable returns the published definition or strata.ErrTableNotFound.
func (m *Memory) DescribeTable(_ context.Context, namespace, name string) (*strata.TableDefinition, error) {
	m.mu.RLock()
	def, ok := m.tables[tableKey(namespace, name)]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", strata.ErrTableNotFound, namespace, name)
	}

	cp := def
	cp.Columns = make([]strata.Column, len(def.Columns))
	copy(cp.Columns, def.Columns)
	return &cp, nil
}

// Tables lists the definitions in a namespace, for inspection.
func (m *Memory) Tables(namespace string) []strata.TableDefinition {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []strata.TableDefinition
	for _, def := range m.tables {
		if def.Namespace == namespace {
			out = append(out, def)
		}
	}
	return out
}

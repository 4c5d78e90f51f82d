// Package table implements table creation and add-only schema evolution
// (C6): create-if-absent, evolve-if-schema-changed, skip-if-matching.
//
// Grounded on
// original_source/app/storage/vastdbmanager/table_operations.py.
package table

import (
	"context"
	"strings"

	"github.com/jesseVast/tamscore/internal/store/cache"
	"github.com/jesseVast/tamscore/internal/store/engine"
	"github.com/jesseVast/tamscore/pkg/logger"
)

var log = logger.NewDefault("table")

// Operations wraps an engine.Engine with schema-match/evolve semantics and
// keeps the metadata cache in sync with the engine's view of each table.
type Operations struct {
	engine engine.Engine
	cache  *cache.Manager
}

// New builds table Operations over eng, synchronizing schema/row-count
// changes into cacheMgr.
func New(eng engine.Engine, cacheMgr *cache.Manager) *Operations {
	return &Operations{engine: eng, cache: cacheMgr}
}

// CreateTable creates table with schema if it doesn't exist. If it exists
// with a matching schema, the call is a no-op. If it exists with a
// different schema, missing columns are added (add-only evolution) —
// existing columns are never dropped or retyped. Any projections are
// installed afterward; a single projection's failure is logged and
// skipped rather than aborting table creation, matching
// _add_vast_projections' "continue without projections if they fail".
func (o *Operations) CreateTable(ctx context.Context, tableName string, schema engine.Schema, projections ...engine.ProjectionSpec) (engine.TableInfo, error) {
	info, err := o.engine.CreateTable(ctx, tableName, schema)
	if err != nil {
		log.Errorf("error creating table %s: %v", tableName, err)
		return engine.TableInfo{}, err
	}
	o.cache.Set(tableName, cache.Entry{Schema: schemaMap(info.Schema), TotalRows: info.RowCount})

	installed := 0
	for _, p := range projections {
		if err := o.engine.CreateProjection(ctx, tableName, p); err != nil {
			log.Errorf("failed to add projection %s to table %s: %v", p.Name, tableName, err)
			continue
		}
		installed++
	}
	if len(projections) > 0 {
		log.Infof("created table %s with %d/%d projections", tableName, installed, len(projections))
		o.cache.AuxDelete(auxProjectionsKey(tableName))
	}
	return info, nil
}

// classifyProjectionColumns splits cols into sorted and unsorted per the
// columnar engine's convention: a column is sorted if its lowercased name
// contains "time" or "timestamp", grounded on
// table_operations.py's _add_vast_projections/add_projection.
func classifyProjectionColumns(cols []string) (sorted, unsorted []string) {
	for _, c := range cols {
		lower := strings.ToLower(c)
		if strings.Contains(lower, "time") || strings.Contains(lower, "timestamp") {
			sorted = append(sorted, c)
		} else {
			unsorted = append(unsorted, c)
		}
	}
	return sorted, unsorted
}

// AddProjection installs a new named projection on tableName, classifying
// columns into sorted/unsorted via classifyProjectionColumns. Mirrors
// table_operations.py's add_projection.
func (o *Operations) AddProjection(ctx context.Context, tableName, name string, columns []string) error {
	sorted, unsorted := classifyProjectionColumns(columns)
	if err := o.engine.CreateProjection(ctx, tableName, engine.ProjectionSpec{Name: name, Sorted: sorted, Unsorted: unsorted}); err != nil {
		log.Errorf("failed to add projection %s to table %s: %v", name, tableName, err)
		return err
	}
	o.cache.AuxDelete(auxProjectionsKey(tableName))
	log.Infof("added projection %q to table %s (%d sorted, %d unsorted)", name, tableName, len(sorted), len(unsorted))
	return nil
}

// DropProjection removes a named projection from tableName. Mirrors
// table_operations.py's drop_projection.
func (o *Operations) DropProjection(ctx context.Context, tableName, name string) error {
	if err := o.engine.DropProjection(ctx, tableName, name); err != nil {
		log.Errorf("failed to drop projection %s from table %s: %v", name, tableName, err)
		return err
	}
	o.cache.AuxDelete(auxProjectionsKey(tableName))
	log.Infof("dropped projection %q from table %s", name, tableName)
	return nil
}

// ListProjections enumerates the projections installed on tableName,
// preferring the metadata cache's auxiliary LRU before falling back to the
// engine — the hot projection-column lookup the auxiliary cache exists
// for. Mirrors table_operations.py's get_table_projections.
func (o *Operations) ListProjections(ctx context.Context, tableName string) ([]engine.ProjectionInfo, error) {
	key := auxProjectionsKey(tableName)
	if v, ok := o.cache.AuxGet(key); ok {
		return v.([]engine.ProjectionInfo), nil
	}
	projections, err := o.engine.ListProjections(ctx, tableName)
	if err != nil {
		log.Errorf("failed to get projections for table %s: %v", tableName, err)
		return nil, err
	}
	o.cache.AuxSet(key, projections)
	return projections, nil
}

func auxProjectionsKey(tableName string) string {
	return "projections:" + tableName
}

// DescribeTable returns the table's current schema and row count,
// preferring the cache and falling back to the engine on a miss.
func (o *Operations) DescribeTable(ctx context.Context, tableName string) (engine.TableInfo, error) {
	if e, ok := o.cache.Get(tableName); ok {
		return engine.TableInfo{Name: tableName, Schema: unmapSchema(e.Schema), RowCount: e.TotalRows}, nil
	}
	info, err := o.engine.DescribeTable(ctx, tableName)
	if err != nil {
		return engine.TableInfo{}, err
	}
	o.cache.Set(tableName, cache.Entry{Schema: schemaMap(info.Schema), TotalRows: info.RowCount})
	return info, nil
}

// DropTable removes tableName from the engine and invalidates its cache
// entry.
func (o *Operations) DropTable(ctx context.Context, tableName string) error {
	if err := o.engine.DropTable(ctx, tableName); err != nil {
		return err
	}
	o.cache.Invalidate(tableName)
	return nil
}

func schemaMap(s engine.Schema) map[string]string {
	m := make(map[string]string, len(s))
	for _, c := range s {
		m[c.Name] = c.TypeName
	}
	return m
}

func unmapSchema(m map[string]string) engine.Schema {
	s := make(engine.Schema, 0, len(m))
	for name, typ := range m {
		s = append(s, engine.Column{Name: name, TypeName: typ})
	}
	return s
}

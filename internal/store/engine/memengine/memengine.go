// Package memengine is an in-memory reference implementation of
// engine.Engine, used in tests and as a local development backend when no
// VAST/columnar deployment is configured.
//
// Grounded on the same table/data/batch operation surface as
// original_source/app/storage/vastdbmanager/{table_operations,
// data_operations}.py, reimplemented over a plain Go map instead of a
// pyarrow-backed columnar store.
package memengine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jesseVast/tamscore/internal/store/engine"
	"github.com/jesseVast/tamscore/pkg/logger"
)

var log = logger.NewDefault("memengine")

type table struct {
	schema      engine.Schema
	rows        map[int64]engine.Row
	nextRowID   int64
	createdAt   time.Time
	projections map[string]engine.ProjectionInfo
}

// Engine is a mutex-guarded, map-backed engine.Engine.
type Engine struct {
	mu     sync.RWMutex
	tables map[string]*table
}

// New returns an empty in-memory Engine.
func New() *Engine {
	return &Engine{tables: make(map[string]*table)}
}

var _ engine.Engine = (*Engine)(nil)

func schemasMatch(current, incoming engine.Schema) bool {
	currentTypes := make(map[string]string, len(current))
	for _, c := range current {
		currentTypes[c.Name] = c.TypeName
	}
	for _, f := range incoming {
		t, ok := currentTypes[f.Name]
		if !ok || t != f.TypeName {
			return false
		}
	}
	return true
}

func evolveSchema(current, incoming engine.Schema) engine.Schema {
	have := make(map[string]bool, len(current))
	for _, c := range current {
		have[c.Name] = true
	}
	evolved := append(engine.Schema(nil), current...)
	for _, f := range incoming {
		if !have[f.Name] {
			evolved = append(evolved, f)
			have[f.Name] = true
		}
	}
	return evolved
}

func (e *Engine) CreateTable(ctx context.Context, name string, schema engine.Schema) (engine.TableInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, exists := e.tables[name]
	if !exists {
		t = &table{schema: schema, rows: make(map[int64]engine.Row), createdAt: time.Now()}
		e.tables[name] = t
		log.Infof("created table %s with %d columns", name, len(schema))
		return e.infoLocked(name, t), nil
	}

	if schemasMatch(t.schema, schema) {
		log.Infof("table %s already exists with matching schema, skipping creation", name)
		return e.infoLocked(name, t), nil
	}

	log.Infof("table %s schema changed, evolving table structure", name)
	t.schema = evolveSchema(t.schema, schema)
	return e.infoLocked(name, t), nil
}

func (e *Engine) infoLocked(name string, t *table) engine.TableInfo {
	return engine.TableInfo{Name: name, Schema: t.schema, RowCount: int64(len(t.rows)), CreatedAt: t.createdAt}
}

func (e *Engine) DescribeTable(ctx context.Context, name string) (engine.TableInfo, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.tables[name]
	if !ok {
		return engine.TableInfo{}, fmt.Errorf("memengine: table %q not found", name)
	}
	return e.infoLocked(name, t), nil
}

func (e *Engine) DropTable(ctx context.Context, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.tables, name)
	return nil
}

func (e *Engine) InsertRows(ctx context.Context, name string, rows []engine.Row) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tables[name]
	if !ok {
		return 0, fmt.Errorf("memengine: table %q not found", name)
	}
	inserted := 0
	for _, r := range rows {
		rowCopy := make(engine.Row, len(r)+1)
		for k, v := range r {
			rowCopy[k] = v
		}
		id := t.nextRowID
		t.nextRowID++
		rowCopy[engine.RowIDKey] = id
		t.rows[id] = rowCopy
		inserted++
	}
	return inserted, nil
}

func (e *Engine) SelectRows(ctx context.Context, name string, columns []string, filter engine.Filter) ([]engine.Row, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.tables[name]
	if !ok {
		return nil, fmt.Errorf("memengine: table %q not found", name)
	}

	var ids []int64
	for id := range t.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []engine.Row
	for _, id := range ids {
		row := t.rows[id]
		if !matches(row, filter) {
			continue
		}
		out = append(out, project(row, columns))
	}
	return out, nil
}

func (e *Engine) UpdateRows(ctx context.Context, name string, filter engine.Filter, values engine.Row) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tables[name]
	if !ok {
		return 0, fmt.Errorf("memengine: table %q not found", name)
	}

	updated := 0
	for id, row := range t.rows {
		if !matches(row, filter) {
			continue
		}
		for k, v := range values {
			row[k] = v
		}
		t.rows[id] = row
		updated++
	}
	return updated, nil
}

func (e *Engine) DeleteRows(ctx context.Context, name string, filter engine.Filter) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tables[name]
	if !ok {
		return 0, fmt.Errorf("memengine: table %q not found", name)
	}

	var toDelete []int64
	for id, row := range t.rows {
		if matches(row, filter) {
			toDelete = append(toDelete, id)
		}
	}
	for _, id := range toDelete {
		delete(t.rows, id)
	}
	return len(toDelete), nil
}

func (e *Engine) RowCount(ctx context.Context, name string) (int64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.tables[name]
	if !ok {
		return 0, fmt.Errorf("memengine: table %q not found", name)
	}
	return int64(len(t.rows)), nil
}

func (e *Engine) CreateProjection(ctx context.Context, name string, spec engine.ProjectionSpec) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tables[name]
	if !ok {
		return fmt.Errorf("memengine: table %q not found", name)
	}
	if t.projections == nil {
		t.projections = make(map[string]engine.ProjectionInfo)
	}
	t.projections[spec.Name] = engine.ProjectionInfo{
		Name:     spec.Name,
		Sorted:   append([]string(nil), spec.Sorted...),
		Unsorted: append([]string(nil), spec.Unsorted...),
	}
	log.Infof("created projection %q on table %s (%d sorted, %d unsorted)", spec.Name, name, len(spec.Sorted), len(spec.Unsorted))
	return nil
}

func (e *Engine) DropProjection(ctx context.Context, name, projectionName string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tables[name]
	if !ok {
		return fmt.Errorf("memengine: table %q not found", name)
	}
	delete(t.projections, projectionName)
	return nil
}

func (e *Engine) ListProjections(ctx context.Context, name string) ([]engine.ProjectionInfo, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.tables[name]
	if !ok {
		return nil, fmt.Errorf("memengine: table %q not found", name)
	}
	names := make([]string, 0, len(t.projections))
	for n := range t.projections {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]engine.ProjectionInfo, 0, len(names))
	for _, n := range names {
		out = append(out, t.projections[n])
	}
	return out, nil
}

// project returns a copy of row restricted to columns ($row_id always
// included); an empty columns list means "all columns".
func project(row engine.Row, columns []string) engine.Row {
	if len(columns) == 0 {
		out := make(engine.Row, len(row))
		for k, v := range row {
			out[k] = v
		}
		return out
	}
	out := make(engine.Row, len(columns)+1)
	for _, c := range columns {
		if v, ok := row[c]; ok {
			out[c] = v
		}
	}
	out[engine.RowIDKey] = row[engine.RowIDKey]
	return out
}

// matches evaluates filter against row using the small set of comparison
// operators that package predicate's Compile can emit. This reference
// engine interprets the parameterized Expr directly rather than via SQL,
// since it has no SQL layer of its own.
func matches(row engine.Row, filter engine.Filter) bool {
	if filter.Expr == "" {
		return true
	}
	return evalExpr(row, filter.Expr, filter.Args)
}

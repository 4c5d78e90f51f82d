// Package engine defines the columnar table-store abstraction that C6-C11
// operate against. The production deployment target is VAST DB's columnar
// tables; this package only fixes the contract, so the rest of the store
// never imports a concrete engine directly.
//
// Grounded on the operation surface implied by
// original_source/app/storage/vastdbmanager/{table_operations,data_operations,
// batch_operations}.py and connection_manager.py's transaction() pattern.
package engine

import (
	"context"
	"time"
)

// Column describes one field of a table schema. TypeName uses the same
// string-equal comparison as the Python original's _types_compatible: two
// columns are compatible iff their TypeName strings are identical.
type Column struct {
	Name     string
	TypeName string
	Nullable bool
}

// Schema is an ordered list of columns.
type Schema []Column

// FieldNames returns the schema's column names in order.
func (s Schema) FieldNames() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// ColumnType returns the TypeName of name, if present.
func (s Schema) ColumnType(name string) (string, bool) {
	for _, c := range s {
		if c.Name == name {
			return c.TypeName, true
		}
	}
	return "", false
}

// Row is a single record keyed by column name. The reserved key
// "$row_id" carries the engine-assigned identity used by update/delete.
type Row map[string]any

// RowIDKey is the reserved column name carrying engine row identity.
const RowIDKey = "$row_id"

// Filter is the parameterized expression produced by package predicate.
type Filter struct {
	Expr string
	Args []any
}

// TableInfo is returned by DescribeTable.
type TableInfo struct {
	Name      string
	Schema    Schema
	RowCount  int64
	CreatedAt time.Time
}

// ProjectionSpec describes a projection to install via CreateProjection,
// already split into sorted and unsorted columns.
type ProjectionSpec struct {
	Name     string
	Sorted   []string
	Unsorted []string
}

// ProjectionInfo describes an existing projection, as returned by
// ListProjections.
type ProjectionInfo struct {
	Name     string
	Sorted   []string
	Unsorted []string
}

// Engine is the minimal transactional columnar store contract consumed by
// internal/store/{table,data,batch,query,analytics}.
type Engine interface {
	// CreateTable creates table with schema if absent, or evolves it
	// (add-only) if the existing schema differs, matching
	// TableOperations.create_table / _evolve_table_schema.
	CreateTable(ctx context.Context, table string, schema Schema) (TableInfo, error)

	// DescribeTable returns the current schema and row count.
	DescribeTable(ctx context.Context, table string) (TableInfo, error)

	// DropTable removes table entirely.
	DropTable(ctx context.Context, table string) error

	// InsertRows appends rows to table, returning the number inserted.
	InsertRows(ctx context.Context, table string, rows []Row) (int, error)

	// SelectRows returns rows matching filter, projected to columns (nil
	// or empty means all columns). $row_id is always included.
	SelectRows(ctx context.Context, table string, columns []string, filter Filter) ([]Row, error)

	// UpdateRows applies values to every row matching filter and returns
	// the number of rows updated.
	UpdateRows(ctx context.Context, table string, filter Filter, values Row) (int, error)

	// DeleteRows removes every row matching filter and returns the number
	// of rows deleted.
	DeleteRows(ctx context.Context, table string, filter Filter) (int, error)

	// RowCount returns the current row count for table without fetching
	// rows, used by the query planner to size splits.
	RowCount(ctx context.Context, table string) (int64, error)

	// CreateProjection installs a named projection on table, matching
	// TableOperations.create_projection/_add_vast_projections.
	CreateProjection(ctx context.Context, table string, spec ProjectionSpec) error

	// DropProjection removes a named projection from table, matching
	// Table.Projection(name).Drop().
	DropProjection(ctx context.Context, table, name string) error

	// ListProjections enumerates every projection installed on table.
	ListProjections(ctx context.Context, table string) ([]ProjectionInfo, error)
}

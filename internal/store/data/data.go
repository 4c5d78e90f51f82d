// Package data implements single/list/column insert, predicate-filtered
// select, repeated-value update, and row-id-materialized delete (C7).
//
// Grounded on
// original_source/app/storage/vastdbmanager/data_operations.py.
package data

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jesseVast/tamscore/internal/store/cache"
	"github.com/jesseVast/tamscore/internal/store/engine"
	"github.com/jesseVast/tamscore/internal/store/perf"
	"github.com/jesseVast/tamscore/internal/store/predicate"
	"github.com/jesseVast/tamscore/pkg/logger"
)

var log = logger.NewDefault("data")

// Operations provides the CRUD surface over an engine.Engine, recording
// cache and performance side effects the way the Python original's
// DataOperations does.
type Operations struct {
	engine  engine.Engine
	cache   *cache.Manager
	monitor *perf.Monitor
}

// New builds data Operations wired to eng, cacheMgr, and monitor.
func New(eng engine.Engine, cacheMgr *cache.Manager, monitor *perf.Monitor) *Operations {
	return &Operations{engine: eng, cache: cacheMgr, monitor: monitor}
}

// InsertSingle inserts one record, mirroring insert_single_record.
func (o *Operations) InsertSingle(ctx context.Context, table string, record engine.Row) error {
	start := time.Now()
	_, err := o.engine.InsertRows(ctx, table, []engine.Row{record})
	o.record("insert_pydict", table, start, 1, err)
	if err != nil {
		log.Errorf("error inserting data into table %s: %v", table, err)
		return err
	}
	o.cache.UpdateRowCount(table, 1)
	return nil
}

// InsertList inserts a batch of records, mirroring insert_record_list.
func (o *Operations) InsertList(ctx context.Context, table string, records []engine.Row) (int, error) {
	start := time.Now()
	n, err := o.engine.InsertRows(ctx, table, records)
	o.record("insert_pylist", table, start, n, err)
	if err != nil {
		log.Errorf("error inserting data into table %s: %v", table, err)
		return 0, err
	}
	o.cache.UpdateRowCount(table, int64(n))
	return n, nil
}

// InsertColumns inserts records built column-wise (the columnar
// equivalent of _insert_column_batch): each key in columns maps to a
// parallel slice of values, all the same length. uuid.UUID values are
// stored as their string form, and map[string]any, []any and []string
// values as JSON strings.
func (o *Operations) InsertColumns(ctx context.Context, table string, columns map[string][]any) (int, error) {
	var numRows int
	for _, vals := range columns {
		numRows = len(vals)
		break
	}
	rows := make([]engine.Row, numRows)
	for i := 0; i < numRows; i++ {
		row := make(engine.Row, len(columns))
		for col, vals := range columns {
			if i < len(vals) {
				v := vals[i]
				switch t := v.(type) {
				case uuid.UUID:
					v = t.String()
				case map[string]any, []any, []string:
					if b, err := json.Marshal(t); err == nil {
						v = string(b)
					}
				}
				row[col] = v
			}
		}
		rows[i] = row
	}
	return o.InsertList(ctx, table, rows)
}

// Select queries table with an optional predicate, projecting columns (nil
// means all). Mirrors query_with_predicates.
func (o *Operations) Select(ctx context.Context, table string, pred predicate.Predicate, columns []string, limit int) ([]engine.Row, error) {
	start := time.Now()
	filter := engine.Filter(predicate.Compile(pred))
	rows, err := o.engine.SelectRows(ctx, table, columns, filter)
	o.record("select", table, start, len(rows), err)
	if err != nil {
		log.Errorf("error in query_with_predicates for table %s: %v", table, err)
		return nil, err
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// SelectWithRowIDs is Select with the $row_id column guaranteed present,
// used internally by Update/Delete before materializing row ids.
func (o *Operations) SelectWithRowIDs(ctx context.Context, table string, pred predicate.Predicate) ([]engine.Row, error) {
	filter := engine.Filter(predicate.Compile(pred))
	return o.engine.SelectRows(ctx, table, nil, filter)
}

// Update applies values to every row matching pred. A predicate is
// required — an empty predicate matches no rows rather than the whole
// table, since the original treats a missing predicate as a usage error.
// If any column in values is given as a slice, only its first element is
// used: VAST's update semantics apply one value set to every matched row,
// never zipping per-row values.
func (o *Operations) Update(ctx context.Context, table string, pred predicate.Predicate, values engine.Row) (int, error) {
	if len(pred) == 0 {
		log.Warnf("update operation requires a predicate for table %s", table)
		return 0, nil
	}

	entry, ok := o.cache.Get(table)
	if !ok {
		log.Errorf("could not get schema for table %s", table)
		return 0, nil
	}
	var invalid []string
	for col := range values {
		if _, ok := entry.Schema[col]; !ok {
			invalid = append(invalid, col)
		}
	}
	if len(invalid) > 0 {
		log.Errorf("invalid columns for table %s: %v", table, invalid)
		return 0, nil
	}

	normalized := make(engine.Row, len(values))
	for col, v := range values {
		if slice, ok := v.([]any); ok {
			if len(slice) == 0 {
				normalized[col] = nil
			} else {
				normalized[col] = slice[0]
			}
			continue
		}
		normalized[col] = v
	}

	matches, err := o.SelectWithRowIDs(ctx, table, pred)
	if err != nil {
		return 0, err
	}
	if len(matches) == 0 {
		log.Warnf("no rows found matching predicate for update in table %s", table)
		return 0, nil
	}

	filter := engine.Filter(predicate.Compile(pred))
	n, err := o.engine.UpdateRows(ctx, table, filter, normalized)
	if err != nil {
		log.Errorf("failed to update table %s: %v", table, err)
		return 0, err
	}
	log.Infof("successfully updated %d rows in table %s", n, table)
	return n, nil
}

// Delete removes every row matching pred, after first materializing the
// matched row ids (mirroring the original's select-then-delete-by-row-id
// two-step).
func (o *Operations) Delete(ctx context.Context, table string, pred predicate.Predicate) (int, error) {
	if len(pred) == 0 {
		log.Warnf("delete operation requires a predicate for table %s", table)
		return 0, nil
	}

	matches, err := o.SelectWithRowIDs(ctx, table, pred)
	if err != nil {
		return 0, err
	}
	if len(matches) == 0 {
		log.Warnf("no rows found matching predicate for delete in table %s", table)
		return 0, nil
	}

	filter := engine.Filter(predicate.Compile(pred))
	n, err := o.engine.DeleteRows(ctx, table, filter)
	if err != nil {
		log.Errorf("error deleting from table %s: %v", table, err)
		return 0, err
	}
	o.cache.UpdateRowCount(table, -int64(n))
	log.Infof("successfully deleted %d rows from table %s", n, table)
	return n, nil
}

func (o *Operations) record(queryType, table string, start time.Time, rows int, err error) {
	if o.monitor == nil {
		return
	}
	metric := perf.QueryMetric{
		QueryType:     queryType,
		TableName:     table,
		ExecutionTime: time.Since(start),
		RowsReturned:  rows,
		SplitsUsed:    1,
		SubsplitsUsed: 1,
		Success:       err == nil,
	}
	if err != nil {
		metric.ErrorMessage = err.Error()
	}
	o.monitor.RecordQuery(metric)
}

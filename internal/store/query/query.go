// Package query implements query-config optimization (C9): split/subsplit
// sizing from cached row counts, with distinct profiles for generic,
// time-series, and aggregation queries.
//
// Grounded on
// original_source/app/storage/vastdbmanager/queries/{query_optimizer,
// query_executor}.py.
package query

import (
	"time"

	"github.com/jesseVast/tamscore/internal/store/cache"
	"github.com/jesseVast/tamscore/pkg/logger"
)

var log = logger.NewDefault("query")

const (
	defaultRowsPerSplit       = 1_000_000
	largeTableRowThreshold    = 10_000_000
	mediumTableRowThreshold   = 1_000_000
	smallTableRowLimit        = 100_000
	smallTableLimitRowsPerSub = 10_000
	maxSplitsCap              = 8
)

// Config is the planner's tunable output, mirroring VAST's QueryConfig.
type Config struct {
	NumSplits                int
	NumSubSplits             int
	LimitRowsPerSubSplit     int
	RowsPerSplit             int
	UseSemiSortedProjections bool
}

// DefaultConfig returns a Config with the baseline rows-per-split and
// semi-sorted-projection usage the original always sets for basic
// queries.
func DefaultConfig() Config {
	return Config{RowsPerSplit: defaultRowsPerSplit, UseSemiSortedProjections: true}
}

// Optimizer tunes Config values from cached table statistics.
type Optimizer struct {
	cache *cache.Manager
}

// NewOptimizer builds an Optimizer over cacheMgr.
func NewOptimizer(cacheMgr *cache.Manager) *Optimizer {
	return &Optimizer{cache: cacheMgr}
}

func (o *Optimizer) totalRows(table string) int64 {
	e, ok := o.cache.Get(table)
	if !ok {
		return 0
	}
	return e.TotalRows
}

// Optimize auto-calculates splits/subsplits for a plain query against
// table, applying the same floor-at-1 rule as optimize_query_config and,
// per spec §4.9's binding contract, an additional ceiling of 8 splits —
// a ceiling query_executor.py's _apply_splits_optimization also applies,
// even though optimize_query_config itself never caps from above.
func (o *Optimizer) Optimize(table string, cfg Config) Config {
	totalRows := o.totalRows(table)

	if cfg.RowsPerSplit <= 0 {
		cfg.RowsPerSplit = defaultRowsPerSplit
	}
	if cfg.NumSplits == 0 {
		cfg.NumSplits = clamp(int(totalRows)/cfg.RowsPerSplit, 1, maxSplitsCap)
		log.Debugf("auto-calculated %d splits for %s (%d rows)", cfg.NumSplits, table, totalRows)
	}

	switch {
	case totalRows > largeTableRowThreshold:
		cfg.NumSubSplits = 8
	case totalRows > mediumTableRowThreshold:
		cfg.NumSubSplits = 4
	default:
		cfg.NumSubSplits = 2
	}

	if totalRows < smallTableRowLimit {
		cfg.LimitRowsPerSubSplit = smallTableLimitRowsPerSub
	}

	log.Debugf("optimized config for %s: %d splits, %d subsplits", table, cfg.NumSplits, cfg.NumSubSplits)
	return cfg
}

// OptimizeTimeSeries tunes Config for a time-series query spanning
// [start, end): short windows (<1h) use smaller splits sized against a
// fixed 1M-row denominator, long windows fall back to the standard
// rows-per-split sizing.
func (o *Optimizer) OptimizeTimeSeries(table string, cfg Config, start, end time.Time) Config {
	totalRows := o.totalRows(table)

	if totalRows > mediumTableRowThreshold {
		cfg.NumSubSplits = 8
	} else {
		cfg.NumSubSplits = 4
	}

	if cfg.RowsPerSplit <= 0 {
		cfg.RowsPerSplit = defaultRowsPerSplit
	}

	duration := end.Sub(start)
	if duration < time.Hour {
		cfg.NumSplits = clamp(int(totalRows)/1_000_000, 1, maxSplitsCap)
	} else {
		cfg.NumSplits = clamp(int(totalRows)/cfg.RowsPerSplit, 1, maxSplitsCap)
	}

	log.Debugf("optimized time-series config for %s: %d splits, %d subsplits", table, cfg.NumSplits, cfg.NumSubSplits)
	return cfg
}

// OptimizeAggregation tunes Config for an aggregation query grouped by
// groupBy: fewer splits, more subsplits, and a bounded per-subsplit row
// limit to keep aggregation memory use in check.
func (o *Optimizer) OptimizeAggregation(table string, cfg Config, groupBy []string) Config {
	totalRows := o.totalRows(table)

	switch {
	case totalRows > largeTableRowThreshold:
		cfg.NumSplits, cfg.NumSubSplits = 4, 8
	case totalRows > mediumTableRowThreshold:
		cfg.NumSplits, cfg.NumSubSplits = 2, 6
	default:
		cfg.NumSplits, cfg.NumSubSplits = 1, 4
	}

	const aggregationRowCap = 64 * 1024
	if cfg.LimitRowsPerSubSplit == 0 || cfg.LimitRowsPerSubSplit > aggregationRowCap {
		cfg.LimitRowsPerSubSplit = aggregationRowCap
	}

	log.Debugf("optimized aggregation config for %s: %d splits, %d subsplits", table, cfg.NumSplits, cfg.NumSubSplits)
	return cfg
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Executor applies a second, independent splits-optimization pass around
// query execution, matching QueryExecutor's separate (and slightly
// different) floor/ceiling rules from QueryOptimizer's. Callers
// typically run Optimizer.Optimize once to build a base Config, then let
// Executor.ApplySplitsOptimization adjust it immediately before running
// the query, the same two-collaborator split the original keeps.
type Executor struct {
	cache *cache.Manager
}

// NewExecutor builds an Executor over cacheMgr.
func NewExecutor(cacheMgr *cache.Manager) *Executor {
	return &Executor{cache: cacheMgr}
}

// ApplySplitsOptimization enforces execute_with_splits's own minimums:
// splits clamped to [1,8] sized against a fixed 1M-row denominator, and
// subsplits clamped to [2,8] against a 100k-row denominator — distinct
// from Optimizer.Optimize's rows-per-split-driven sizing.
func (ex *Executor) ApplySplitsOptimization(table string, cfg Config) Config {
	e, _ := ex.cache.Get(table)
	totalRows := e.TotalRows

	if cfg.NumSplits < 1 {
		cfg.NumSplits = clamp(int(totalRows)/1_000_000, 1, maxSplitsCap)
	}
	if cfg.NumSubSplits < 1 {
		cfg.NumSubSplits = clamp(int(totalRows)/100_000, 2, maxSplitsCap)
	}
	if totalRows < smallTableRowLimit {
		if cfg.LimitRowsPerSubSplit == 0 || cfg.LimitRowsPerSubSplit > smallTableLimitRowsPerSub {
			cfg.LimitRowsPerSubSplit = smallTableLimitRowsPerSub
		}
	}
	return cfg
}

// ExecuteWithSplits applies the splits optimization to cfg and then runs
// queryFunc, logging the final split/subsplit counts used.
func (ex *Executor) ExecuteWithSplits(table string, cfg Config, queryFunc func(Config) error) error {
	cfg = ex.ApplySplitsOptimization(table, cfg)
	if err := queryFunc(cfg); err != nil {
		log.Errorf("error executing query with splits on table %s: %v", table, err)
		return err
	}
	log.Debugf("executed query with %d splits, %d subsplits on table %s", cfg.NumSplits, cfg.NumSubSplits, table)
	return nil
}

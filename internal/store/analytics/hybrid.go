package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jesseVast/tamscore/internal/store/engine"
	"github.com/jesseVast/tamscore/internal/store/engine/sqliteengine"
	"github.com/jesseVast/tamscore/internal/store/predicate"
)

// Hybrid combines C7 row extraction with an embedded SQL engine for
// analytics not efficiently expressible against the primary columnar
// store: advanced windowing, percentiles, and correlation on filtered
// subsets.
//
// Grounded on
// original_source/app/storage/vastdbmanager/analytics/hybrid_analytics.py,
// which pairs VAST filtering with a DuckDB connection; this package pairs
// engine.Engine filtering with an embedded modernc.org/sqlite handle
// (package sqliteengine) playing DuckDB's part. SQLite has no built-in
// STDDEV/PERCENTILE_CONT/CORR aggregates, so those specific statistics
// are computed in Go over the same extracted rows after the SQL
// materialize/query/drop round trip the original performs for its
// SQL-native aggregates (AVG/MIN/MAX/COUNT).
//
// The original's _build_window_sql references a time_column variable
// that is not a parameter of that method - a lexical-scope bug that
// would raise NameError in Python. Every method here takes timeColumn
// explicitly instead of relying on an enclosing scope.
type Hybrid struct {
	source   engine.Engine
	embedded *sqliteengine.Handle
}

// NewHybrid wires a Hybrid over source, initializing the embedded engine.
// A non-nil error means hybrid analytics is unavailable for this
// process; callers must surface the failure rather than silently
// skipping to a non-hybrid path, per the hybrid-analytics contract.
func NewHybrid(source engine.Engine) (*Hybrid, error) {
	h, err := sqliteengine.Open()
	if err != nil {
		return nil, err
	}
	return &Hybrid{source: source, embedded: h}, nil
}

// Close releases the embedded engine handle.
func (h *Hybrid) Close() error {
	return h.embedded.Close()
}

func (h *Hybrid) extractRows(ctx context.Context, table string, columns []string, pred predicate.Predicate) ([]engine.Row, error) {
	rows, err := h.source.SelectRows(ctx, table, columns, compileFilter(pred))
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func filterByTimeRange(rows []engine.Row, timeColumn string, start, end time.Time) []engine.Row {
	if start.IsZero() && end.IsZero() {
		return rows
	}
	out := make([]engine.Row, 0, len(rows))
	for _, row := range rows {
		rt, ok := rowTime(row, timeColumn)
		if !ok {
			continue
		}
		if !start.IsZero() && rt.Before(start) {
			continue
		}
		if !end.IsZero() && !rt.Before(end) {
			continue
		}
		out = append(out, row)
	}
	return out
}

// HybridWindowPoint is one bucket returned by CalculateMovingAverageHybrid.
type HybridWindowPoint struct {
	WindowStart time.Time
	MovingAvg   float64
	SampleCount int
	MinValue    float64
	MaxValue    float64
	StdDev      float64
}

// CalculateMovingAverageHybrid extracts [timeColumn, valueColumn] rows
// scoped by pred and [start, end), materializes them into the embedded
// engine with a precomputed bucket column, and runs a GROUP BY query for
// the SQL-native aggregates. Standard deviation per bucket is computed in
// Go, since SQLite has no built-in STDDEV.
func (h *Hybrid) CalculateMovingAverageHybrid(ctx context.Context, table, valueColumn, timeColumn string, windowSize WindowSize, start, end time.Time, pred predicate.Predicate) ([]HybridWindowPoint, error) {
	rows, err := h.extractRows(ctx, table, []string{timeColumn, valueColumn}, pred)
	if err != nil {
		return nil, err
	}
	rows = filterByTimeRange(rows, timeColumn, start, end)
	if len(rows) == 0 {
		log.Info("no data returned for hybrid moving average")
		return nil, nil
	}

	type rawPoint struct {
		bucket string
		value  float64
	}
	var raw []rawPoint
	sqlRows := make([][]any, 0, len(rows))
	for _, row := range rows {
		rt, ok1 := rowTime(row, timeColumn)
		val, ok2 := rowFloat(row, valueColumn)
		if !ok1 || !ok2 {
			continue
		}
		bucket := truncate(rt, windowSize).Format(time.RFC3339)
		raw = append(raw, rawPoint{bucket: bucket, value: val})
		sqlRows = append(sqlRows, []any{rt.Format(time.RFC3339), val, bucket})
	}

	tempName := fmt.Sprintf("temp_moving_avg_%d", time.Now().UnixNano())
	cols := []sqliteengine.Column{
		{Name: timeColumn, SQLType: "TEXT"},
		{Name: valueColumn, SQLType: "REAL"},
		{Name: "bucket", SQLType: "TEXT"},
	}
	if err := h.embedded.CreateAndLoad(ctx, tempName, cols, sqlRows); err != nil {
		return nil, err
	}
	defer h.embedded.Drop(ctx, tempName)

	query := fmt.Sprintf(
		"SELECT bucket, AVG(%s) as moving_avg, COUNT(*) as sample_count, MIN(%s) as min_value, MAX(%s) as max_value FROM %s GROUP BY bucket ORDER BY bucket",
		valueColumn, valueColumn, valueColumn, tempName,
	)
	sqlResult, err := h.embedded.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer sqlResult.Close()

	byBucket := make(map[string][]float64, len(raw))
	for _, p := range raw {
		byBucket[p.bucket] = append(byBucket[p.bucket], p.value)
	}

	var points []HybridWindowPoint
	for sqlResult.Next() {
		var bucket string
		var avg, minVal, maxVal float64
		var count int
		if err := sqlResult.Scan(&bucket, &avg, &count, &minVal, &maxVal); err != nil {
			return nil, err
		}
		windowStart, err := time.Parse(time.RFC3339, bucket)
		if err != nil {
			return nil, err
		}
		_, stdDev := meanStdDev(byBucket[bucket])
		points = append(points, HybridWindowPoint{
			WindowStart: windowStart, MovingAvg: avg, SampleCount: count,
			MinValue: minVal, MaxValue: maxVal, StdDev: stdDev,
		})
	}

	log.Infof("calculated hybrid moving average for %s with %s windows: %d windows", valueColumn, windowSize, len(points))
	return points, nil
}

// HybridPercentiles is the result of CalculatePercentilesHybrid.
type HybridPercentiles struct {
	Values     map[string]float64
	TotalCount int
	MeanValue  float64
	StdDev     float64
}

// CalculatePercentilesHybrid materializes valueColumn into the embedded
// engine, runs a SQL aggregate pass for count/mean, and computes
// percentiles and standard deviation in Go over the extracted values
// (SQLite has no PERCENTILE_CONT/STDDEV builtins to push this into).
func (h *Hybrid) CalculatePercentilesHybrid(ctx context.Context, table, valueColumn string, percentiles []float64, pred predicate.Predicate) (HybridPercentiles, error) {
	rows, err := h.extractRows(ctx, table, []string{valueColumn}, pred)
	if err != nil {
		return HybridPercentiles{}, err
	}
	if len(rows) == 0 {
		log.Info("no data returned for hybrid percentile calculation")
		return HybridPercentiles{}, nil
	}

	values := make([]float64, 0, len(rows))
	sqlRows := make([][]any, 0, len(rows))
	for _, row := range rows {
		if v, ok := rowFloat(row, valueColumn); ok {
			values = append(values, v)
			sqlRows = append(sqlRows, []any{v})
		}
	}

	tempName := fmt.Sprintf("temp_percentiles_%d", time.Now().UnixNano())
	cols := []sqliteengine.Column{{Name: valueColumn, SQLType: "REAL"}}
	if err := h.embedded.CreateAndLoad(ctx, tempName, cols, sqlRows); err != nil {
		return HybridPercentiles{}, err
	}
	defer h.embedded.Drop(ctx, tempName)

	query := fmt.Sprintf("SELECT COUNT(*), AVG(%s) FROM %s", valueColumn, tempName)
	resultRows, err := h.embedded.Query(ctx, query)
	if err != nil {
		return HybridPercentiles{}, err
	}
	var totalCount int
	var meanValue float64
	if resultRows.Next() {
		if err := resultRows.Scan(&totalCount, &meanValue); err != nil {
			resultRows.Close()
			return HybridPercentiles{}, err
		}
	}
	resultRows.Close()

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	result := HybridPercentiles{Values: make(map[string]float64, len(percentiles)), TotalCount: totalCount, MeanValue: meanValue}
	for _, p := range percentiles {
		result.Values[fmt.Sprintf("p%v", p)] = percentileOf(sorted, p)
	}
	_, result.StdDev = meanStdDev(values)

	log.Infof("calculated %d hybrid percentiles for %s", len(result.Values), valueColumn)
	return result, nil
}

// HybridCorrelation is the result of CalculateCorrelationHybrid.
type HybridCorrelation struct {
	Correlation float64
	SampleCount int
	AvgCol1     float64
	AvgCol2     float64
	StdCol1     float64
	StdCol2     float64
}

// CalculateCorrelationHybrid materializes [column1, column2] into the
// embedded engine, runs a SQL count/avg pass, and computes the
// correlation coefficient and standard deviations in Go (SQLite has no
// CORR/STDDEV builtins).
func (h *Hybrid) CalculateCorrelationHybrid(ctx context.Context, table, column1, column2 string, pred predicate.Predicate) (HybridCorrelation, error) {
	rows, err := h.extractRows(ctx, table, []string{column1, column2}, pred)
	if err != nil {
		return HybridCorrelation{}, err
	}
	if len(rows) == 0 {
		log.Info("no data returned for hybrid correlation calculation")
		return HybridCorrelation{SampleCount: 0}, nil
	}

	var v1, v2 []float64
	sqlRows := make([][]any, 0, len(rows))
	for _, row := range rows {
		a1, ok1 := rowFloat(row, column1)
		a2, ok2 := rowFloat(row, column2)
		if ok1 && ok2 {
			v1 = append(v1, a1)
			v2 = append(v2, a2)
			sqlRows = append(sqlRows, []any{a1, a2})
		}
	}

	tempName := fmt.Sprintf("temp_correlation_%d", time.Now().UnixNano())
	cols := []sqliteengine.Column{
		{Name: column1, SQLType: "REAL"},
		{Name: column2, SQLType: "REAL"},
	}
	if err := h.embedded.CreateAndLoad(ctx, tempName, cols, sqlRows); err != nil {
		return HybridCorrelation{}, err
	}
	defer h.embedded.Drop(ctx, tempName)

	query := fmt.Sprintf(
		"SELECT COUNT(*), AVG(%s), AVG(%s) FROM %s WHERE %s IS NOT NULL AND %s IS NOT NULL",
		column1, column2, tempName, column1, column2,
	)
	resultRows, err := h.embedded.Query(ctx, query)
	if err != nil {
		return HybridCorrelation{}, err
	}
	var sampleCount int
	var avg1, avg2 float64
	if resultRows.Next() {
		if err := resultRows.Scan(&sampleCount, &avg1, &avg2); err != nil {
			resultRows.Close()
			return HybridCorrelation{}, err
		}
	}
	resultRows.Close()

	_, std1 := meanStdDev(v1)
	_, std2 := meanStdDev(v2)

	var product float64
	for i := range v1 {
		product += v1[i] * v2[i]
	}
	var correlation float64
	if std1 != 0 && std2 != 0 && len(v1) > 1 {
		avgProduct := product / float64(len(v1))
		correlation = (avgProduct - avg1*avg2) / (std1 * std2)
	}

	log.Infof("calculated hybrid correlation between %s and %s: %.4f", column1, column2, correlation)
	return HybridCorrelation{
		Correlation: correlation, SampleCount: sampleCount,
		AvgCol1: avg1, AvgCol2: avg2, StdCol1: std1, StdCol2: std2,
	}, nil
}

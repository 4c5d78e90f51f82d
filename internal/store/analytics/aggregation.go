package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/jesseVast/tamscore/internal/store/engine"
	"github.com/jesseVast/tamscore/internal/store/predicate"
)

// Aggregation computes percentile/correlation/distribution/top-values
// statistics. Grounded on
// original_source/app/storage/vastdbmanager/analytics/aggregation_analytics.py,
// whose methods push PERCENTILE/STDDEV/CASE-bucketed window functions down
// into VAST; this package computes the same statistics in Go over rows
// fetched via engine.Engine.SelectRows, since the reference engine has no
// SQL aggregation layer.
type Aggregation struct {
	engine engine.Engine
}

// NewAggregation builds an Aggregation analytics engine over eng.
func NewAggregation(eng engine.Engine) *Aggregation {
	return &Aggregation{engine: eng}
}

func compileFilter(pred predicate.Predicate) engine.Filter {
	if pred == nil {
		return engine.Filter{}
	}
	c := predicate.Compile(pred)
	return engine.Filter{Expr: c.Expr, Args: c.Args}
}

func (a *Aggregation) selectColumn(ctx context.Context, table, column string, pred predicate.Predicate) ([]float64, error) {
	rows, err := a.engine.SelectRows(ctx, table, []string{column}, compileFilter(pred))
	if err != nil {
		return nil, err
	}
	values := make([]float64, 0, len(rows))
	for _, row := range rows {
		if v, ok := rowFloat(row, column); ok {
			values = append(values, v)
		}
	}
	return values, nil
}

// CalculatePercentiles returns the requested percentiles (0-100) of
// valueColumn, using linear interpolation between the nearest ranks -
// the same result VAST's PERCENTILE window function would report.
func (a *Aggregation) CalculatePercentiles(ctx context.Context, table, valueColumn string, percentiles []float64, pred predicate.Predicate) (map[string]float64, error) {
	values, err := a.selectColumn(ctx, table, valueColumn, pred)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return map[string]float64{}, nil
	}
	sort.Float64s(values)

	result := make(map[string]float64, len(percentiles))
	for _, p := range percentiles {
		result[fmt.Sprintf("p%v", p)] = percentileOf(values, p)
	}
	log.Infof("calculated %d percentiles for %s", len(result), valueColumn)
	return result, nil
}

func percentileOf(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := (p / 100) * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// Correlation is the result of CalculateCorrelation.
type Correlation struct {
	Correlation float64
	SampleCount int
	Covariance  float64
}

// CalculateCorrelation computes the Pearson correlation coefficient
// between column1 and column2 using the same
// avg(product)-avg1*avg2/(std1*std2) formula as the original's
// post-query derivation.
func (a *Aggregation) CalculateCorrelation(ctx context.Context, table, column1, column2 string, pred predicate.Predicate) (Correlation, error) {
	rows, err := a.engine.SelectRows(ctx, table, []string{column1, column2}, compileFilter(pred))
	if err != nil {
		return Correlation{}, err
	}

	var v1, v2 []float64
	for _, row := range rows {
		a1, ok1 := rowFloat(row, column1)
		a2, ok2 := rowFloat(row, column2)
		if ok1 && ok2 {
			v1 = append(v1, a1)
			v2 = append(v2, a2)
		}
	}
	if len(v1) == 0 {
		return Correlation{}, nil
	}

	avg1, std1 := meanStdDev(v1)
	avg2, std2 := meanStdDev(v2)

	var product float64
	for i := range v1 {
		product += v1[i] * v2[i]
	}
	avgProduct := product / float64(len(v1))
	covariance := avgProduct - avg1*avg2

	var correlation float64
	if std1 != 0 && std2 != 0 && len(v1) > 1 {
		correlation = covariance / (std1 * std2)
	}

	log.Infof("calculated correlation between %s and %s: %.4f", column1, column2, correlation)
	return Correlation{Correlation: correlation, SampleCount: len(v1), Covariance: covariance}, nil
}

// DistributionBin is one bucket of CalculateDistribution's histogram.
type DistributionBin struct {
	Bin        int
	RangeStart float64
	RangeEnd   float64
	Count      int
	Percentage float64
}

// CalculateDistribution buckets valueColumn into numBins equal-width
// histogram bins between its observed min and max, mirroring the
// original's MIN/MAX bounds pass followed by a CASE-bucketed GROUP BY.
func (a *Aggregation) CalculateDistribution(ctx context.Context, table, valueColumn string, numBins int, pred predicate.Predicate) ([]DistributionBin, error) {
	values, err := a.selectColumn(ctx, table, valueColumn, pred)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}

	minVal, maxVal := values[0], values[0]
	for _, v := range values {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	totalCount := len(values)

	if minVal == maxVal {
		return []DistributionBin{{Bin: 0, RangeStart: minVal, RangeEnd: maxVal, Count: totalCount, Percentage: 100.0}}, nil
	}

	binWidth := (maxVal - minVal) / float64(numBins)
	counts := make([]int, numBins)
	for _, v := range values {
		bin := int((v - minVal) / binWidth)
		if bin >= numBins {
			bin = numBins - 1
		}
		counts[bin]++
	}

	distribution := make([]DistributionBin, 0, numBins)
	for i, count := range counts {
		binStart := minVal + float64(i)*binWidth
		binEnd := minVal + float64(i+1)*binWidth
		pct := 0.0
		if totalCount > 0 {
			pct = float64(count) / float64(totalCount) * 100
		}
		distribution = append(distribution, DistributionBin{
			Bin: i, RangeStart: binStart, RangeEnd: binEnd, Count: count, Percentage: pct,
		})
	}

	log.Infof("calculated distribution for %s with %d bins", valueColumn, numBins)
	return distribution, nil
}

// TopValue is one group's aggregate in CalculateTopValues.
type TopValue struct {
	GroupValue string
	Count      int
	AvgValue   float64
	MinValue   float64
	MaxValue   float64
}

// CalculateTopValues groups rows by groupByColumn, aggregates
// valueColumn, and returns the topN groups ordered by count descending,
// mirroring the original's group_by/order_by(count desc)/limit chain.
func (a *Aggregation) CalculateTopValues(ctx context.Context, table, valueColumn, groupByColumn string, topN int, pred predicate.Predicate) ([]TopValue, error) {
	rows, err := a.engine.SelectRows(ctx, table, []string{groupByColumn, valueColumn}, compileFilter(pred))
	if err != nil {
		return nil, err
	}

	type agg struct {
		count      int
		sum        float64
		min, max   float64
		haveMinMax bool
	}
	groups := make(map[string]*agg)
	var order []string
	for _, row := range rows {
		key := fmt.Sprintf("%v", row[groupByColumn])
		val, ok := rowFloat(row, valueColumn)
		if !ok {
			continue
		}
		g, exists := groups[key]
		if !exists {
			g = &agg{}
			groups[key] = g
			order = append(order, key)
		}
		g.count++
		g.sum += val
		if !g.haveMinMax {
			g.min, g.max = val, val
			g.haveMinMax = true
		} else {
			if val < g.min {
				g.min = val
			}
			if val > g.max {
				g.max = val
			}
		}
	}

	results := make([]TopValue, 0, len(order))
	for _, key := range order {
		g := groups[key]
		results = append(results, TopValue{
			GroupValue: key,
			Count:      g.count,
			AvgValue:   g.sum / float64(g.count),
			MinValue:   g.min,
			MaxValue:   g.max,
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Count > results[j].Count })
	if topN > 0 && len(results) > topN {
		results = results[:topN]
	}

	log.Infof("calculated top %d values for %s grouped by %s", len(results), valueColumn, groupByColumn)
	return results, nil
}

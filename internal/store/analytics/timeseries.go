// Package analytics implements time-series and aggregation pushdown
// operations (C10): moving averages, anomaly detection, trend analysis,
// percentiles, correlation, and distribution statistics computed over
// rows selected from an engine.Engine.
//
// Grounded on
// original_source/app/storage/vastdbmanager/analytics/{time_series_analytics,
// aggregation_analytics}.py. The original pushes these computations down
// into VAST's window/aggregate functions; the reference engine has no SQL
// layer of its own, so this package computes the same statistics directly
// over materialized rows.
package analytics

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/jesseVast/tamscore/internal/store/engine"
	"github.com/jesseVast/tamscore/pkg/logger"
)

var log = logger.NewDefault("analytics")

// TimeSeries provides moving-average/anomaly/trend pushdowns.
type TimeSeries struct {
	engine engine.Engine
}

// NewTimeSeries builds a TimeSeries analytics engine over eng.
func NewTimeSeries(eng engine.Engine) *TimeSeries {
	return &TimeSeries{engine: eng}
}

// WindowPoint is one bucketed result from CalculateMovingAverage.
type WindowPoint struct {
	WindowStart time.Time
	MovingAvg   float64
	SampleCount int
}

// WindowSize selects the truncation granularity for moving-average and
// trend bucketing, mirroring _parse_window_size's string-matching.
type WindowSize string

const (
	WindowMinute WindowSize = "minute"
	WindowHour   WindowSize = "hour"
	WindowDay    WindowSize = "day"
	WindowWeek   WindowSize = "week"
	WindowMonth  WindowSize = "month"
)

// ParseWindowSize maps a free-form description (e.g. "30 minutes", "1
// day") to a WindowSize, defaulting to hourly buckets exactly like the
// original's fallback.
func ParseWindowSize(s string) WindowSize {
	switch {
	case contains(s, "minute"):
		return WindowMinute
	case contains(s, "day"):
		return WindowDay
	case contains(s, "week"):
		return WindowWeek
	case contains(s, "month"):
		return WindowMonth
	default:
		return WindowHour
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

func truncate(t time.Time, w WindowSize) time.Time {
	switch w {
	case WindowMinute:
		return t.Truncate(time.Minute)
	case WindowHour:
		return t.Truncate(time.Hour)
	case WindowDay:
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	case WindowWeek:
		y, m, d := t.Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
		return day.AddDate(0, 0, -int(day.Weekday()))
	case WindowMonth:
		y, m, _ := t.Date()
		return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
	default:
		return t.Truncate(time.Hour)
	}
}

func rowTime(row engine.Row, timeColumn string) (time.Time, bool) {
	v, ok := row[timeColumn]
	if !ok {
		return time.Time{}, false
	}
	switch t := v.(type) {
	case time.Time:
		return t, true
	case float64:
		return time.Unix(int64(t), 0).UTC(), true
	case int64:
		return time.Unix(t, 0).UTC(), true
	default:
		return time.Time{}, false
	}
}

func rowFloat(row engine.Row, column string) (float64, bool) {
	v, ok := row[column]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// CalculateMovingAverage buckets rows into windowSize intervals within
// [start, end) and computes the average of valueColumn per bucket,
// ordered by window start.
func (ts *TimeSeries) CalculateMovingAverage(ctx context.Context, table, valueColumn, timeColumn string, windowSize WindowSize, start, end time.Time) ([]WindowPoint, error) {
	rows, err := ts.engine.SelectRows(ctx, table, nil, engine.Filter{})
	if err != nil {
		return nil, err
	}

	buckets := make(map[time.Time]*struct {
		sum   float64
		count int
	})
	for _, row := range rows {
		rt, ok := rowTime(row, timeColumn)
		if !ok {
			continue
		}
		if !start.IsZero() && !end.IsZero() && (rt.Before(start) || !rt.Before(end)) {
			continue
		}
		val, ok := rowFloat(row, valueColumn)
		if !ok {
			continue
		}
		key := truncate(rt, windowSize)
		b, ok := buckets[key]
		if !ok {
			b = &struct {
				sum   float64
				count int
			}{}
			buckets[key] = b
		}
		b.sum += val
		b.count++
	}

	points := make([]WindowPoint, 0, len(buckets))
	for k, b := range buckets {
		points = append(points, WindowPoint{WindowStart: k, MovingAvg: b.sum / float64(b.count), SampleCount: b.count})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].WindowStart.Before(points[j].WindowStart) })

	log.Infof("calculated moving average for %s with %s windows", valueColumn, windowSize)
	return points, nil
}

// Anomaly is one out-of-band sample returned by DetectAnomalies.
type Anomaly struct {
	Time   time.Time
	Value  float64
	ZScore float64
}

// DetectAnomalies flags samples of valueColumn more than threshold
// standard deviations from the mean within [start, end).
func (ts *TimeSeries) DetectAnomalies(ctx context.Context, table, valueColumn, timeColumn string, threshold float64, start, end time.Time) ([]Anomaly, error) {
	rows, err := ts.engine.SelectRows(ctx, table, nil, engine.Filter{})
	if err != nil {
		return nil, err
	}

	var values []float64
	var times []time.Time
	for _, row := range rows {
		rt, ok := rowTime(row, timeColumn)
		if !ok {
			continue
		}
		if !start.IsZero() && !end.IsZero() && (rt.Before(start) || !rt.Before(end)) {
			continue
		}
		val, ok := rowFloat(row, valueColumn)
		if !ok {
			continue
		}
		values = append(values, val)
		times = append(times, rt)
	}

	if len(values) == 0 {
		return nil, nil
	}

	mean, stdDev := meanStdDev(values)
	if stdDev == 0 {
		log.Warn("cannot detect anomalies: no variance in data")
		return nil, nil
	}

	var anomalies []Anomaly
	for i, v := range values {
		z := (v - mean) / stdDev
		if math.Abs(z) > threshold {
			anomalies = append(anomalies, Anomaly{Time: times[i], Value: v, ZScore: z})
		}
	}
	sort.Slice(anomalies, func(i, j int) bool { return anomalies[i].Time.Before(anomalies[j].Time) })

	log.Infof("detected %d anomalies in %s", len(anomalies), valueColumn)
	return anomalies, nil
}

// Trend is the result of CalculateTrends.
type Trend struct {
	Direction     string // "increasing", "decreasing", "stable", "insufficient_data"
	Slope         float64
	Periods       int
	FirstValue    float64
	LastValue     float64
	ChangePercent float64
}

// CalculateTrends buckets rows by trendPeriod and reports whether the
// per-bucket average of valueColumn is increasing, decreasing, or stable.
func (ts *TimeSeries) CalculateTrends(ctx context.Context, table, valueColumn, timeColumn string, trendPeriod WindowSize, start, end time.Time) (Trend, error) {
	points, err := ts.CalculateMovingAverage(ctx, table, valueColumn, timeColumn, trendPeriod, start, end)
	if err != nil {
		return Trend{}, err
	}
	if len(points) < 2 {
		return Trend{Direction: "insufficient_data", Periods: len(points)}, nil
	}

	first, last := points[0].MovingAvg, points[len(points)-1].MovingAvg
	trend := Trend{Periods: len(points), FirstValue: first, LastValue: last}

	switch {
	case first == last:
		trend.Direction = "stable"
	case last > first:
		trend.Direction = "increasing"
		trend.Slope = (last - first) / float64(len(points))
	default:
		trend.Direction = "decreasing"
		trend.Slope = (last - first) / float64(len(points))
	}
	if first != 0 {
		trend.ChangePercent = (last - first) / first * 100
	}

	log.Infof("calculated trend for %s: %s (slope: %.4f)", valueColumn, trend.Direction, trend.Slope)
	return trend, nil
}

func meanStdDev(values []float64) (mean, stdDev float64) {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	if len(values) > 1 {
		stdDev = math.Sqrt(sq / float64(len(values)))
	}
	return mean, stdDev
}

package analytics

import (
	"testing"
	"time"

	"github.com/jesseVast/tamscore/internal/store/engine"
	"github.com/jesseVast/tamscore/internal/store/engine/memengine"
)

func newHybrid(t *testing.T) (*Hybrid, engine.Engine) {
	t.Helper()
	eng := memengine.New()
	h, err := NewHybrid(eng)
	if err != nil {
		t.Fatalf("new hybrid: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h, eng
}

func TestCalculateMovingAverageHybridBucketsByHour(t *testing.T) {
	h, eng := newHybrid(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seedRows(t, eng, []engine.Row{
		{"ts": base, "value": 10.0},
		{"ts": base.Add(10 * time.Minute), "value": 20.0},
		{"ts": base.Add(time.Hour), "value": 100.0},
	})

	points, err := h.CalculateMovingAverageHybrid(ctx, "metrics", "value", "ts", WindowHour, time.Time{}, time.Time{}, nil)
	if err != nil {
		t.Fatalf("hybrid moving average: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(points))
	}
	if points[0].MovingAvg != 15.0 {
		t.Errorf("first bucket avg = %v, want 15", points[0].MovingAvg)
	}
	if points[0].SampleCount != 2 {
		t.Errorf("first bucket count = %d, want 2", points[0].SampleCount)
	}
	if points[1].MovingAvg != 100.0 {
		t.Errorf("second bucket avg = %v, want 100", points[1].MovingAvg)
	}
}

func TestCalculateMovingAverageHybridNoRowsReturnsEmpty(t *testing.T) {
	h, eng := newHybrid(t)
	if _, err := eng.CreateTable(ctx, "metrics", schema()); err != nil {
		t.Fatalf("create table: %v", err)
	}

	points, err := h.CalculateMovingAverageHybrid(ctx, "metrics", "value", "ts", WindowHour, time.Time{}, time.Time{}, nil)
	if err != nil {
		t.Fatalf("hybrid moving average: %v", err)
	}
	if len(points) != 0 {
		t.Errorf("expected no points, got %d", len(points))
	}
}

func TestCalculatePercentilesHybrid(t *testing.T) {
	h, eng := newHybrid(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []engine.Row{}
	for i := 1; i <= 100; i++ {
		rows = append(rows, engine.Row{"ts": base, "value": float64(i)})
	}
	seedRows(t, eng, rows)

	result, err := h.CalculatePercentilesHybrid(ctx, "metrics", "value", []float64{50, 99}, nil)
	if err != nil {
		t.Fatalf("hybrid percentiles: %v", err)
	}
	if result.TotalCount != 100 {
		t.Errorf("total count = %d, want 100", result.TotalCount)
	}
	if result.Values["p50"] < 49 || result.Values["p50"] > 51 {
		t.Errorf("p50 = %v, want ~50", result.Values["p50"])
	}
}

func TestCalculateCorrelationHybrid(t *testing.T) {
	h, eng := newHybrid(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []engine.Row{}
	for i := 1; i <= 10; i++ {
		rows = append(rows, engine.Row{"ts": base, "value": float64(i), "other": float64(i) * 2})
	}
	seedRows(t, eng, rows)

	result, err := h.CalculateCorrelationHybrid(ctx, "metrics", "value", "other", nil)
	if err != nil {
		t.Fatalf("hybrid correlation: %v", err)
	}
	if result.SampleCount != 10 {
		t.Errorf("sample count = %d, want 10", result.SampleCount)
	}
	if result.Correlation < 0.99 {
		t.Errorf("correlation = %v, want ~1.0", result.Correlation)
	}
}

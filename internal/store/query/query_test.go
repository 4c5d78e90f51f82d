package query

import (
	"testing"
	"time"

	"github.com/jesseVast/tamscore/internal/store/cache"
)

func newOptimizer(rows int64) (*Optimizer, *cache.Manager) {
	c := cache.New(time.Minute, 0, nil)
	c.Set("segments", cache.Entry{TotalRows: rows})
	return NewOptimizer(c), c
}

func TestOptimizeSmallTableUsesTwoSubsplits(t *testing.T) {
	o, _ := newOptimizer(500)
	cfg := o.Optimize("segments", DefaultConfig())
	if cfg.NumSubSplits != 2 {
		t.Errorf("subsplits = %d, want 2", cfg.NumSubSplits)
	}
	if cfg.LimitRowsPerSubSplit != smallTableLimitRowsPerSub {
		t.Errorf("limit = %d, want %d", cfg.LimitRowsPerSubSplit, smallTableLimitRowsPerSub)
	}
}

func TestOptimizeLargeTableUsesEightSubsplits(t *testing.T) {
	o, _ := newOptimizer(20_000_000)
	cfg := o.Optimize("segments", DefaultConfig())
	if cfg.NumSubSplits != 8 {
		t.Errorf("subsplits = %d, want 8", cfg.NumSubSplits)
	}
}

func TestOptimizeSplitsCappedAtEight(t *testing.T) {
	o, _ := newOptimizer(900_000_000) // would be 900 splits uncapped
	cfg := o.Optimize("segments", DefaultConfig())
	if cfg.NumSplits != maxSplitsCap {
		t.Errorf("splits = %d, want capped at %d", cfg.NumSplits, maxSplitsCap)
	}
}

func TestOptimizeSplitsFlooredAtOne(t *testing.T) {
	o, _ := newOptimizer(10)
	cfg := o.Optimize("segments", DefaultConfig())
	if cfg.NumSplits != 1 {
		t.Errorf("splits = %d, want 1", cfg.NumSplits)
	}
}

func TestOptimizeTimeSeriesShortWindowUsesSmallerDenominator(t *testing.T) {
	o, _ := newOptimizer(5_000_000)
	start := time.Unix(0, 0)
	end := start.Add(30 * time.Minute)
	cfg := o.OptimizeTimeSeries("segments", DefaultConfig(), start, end)
	if cfg.NumSplits != 5 {
		t.Errorf("splits = %d, want 5", cfg.NumSplits)
	}
	if cfg.NumSubSplits != 8 {
		t.Errorf("subsplits = %d, want 8", cfg.NumSubSplits)
	}
}

func TestOptimizeAggregationFewerSplitsMoreSubsplits(t *testing.T) {
	o, _ := newOptimizer(20_000_000)
	cfg := o.OptimizeAggregation("segments", DefaultConfig(), []string{"flow_id"})
	if cfg.NumSplits != 4 || cfg.NumSubSplits != 8 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.LimitRowsPerSubSplit != 64*1024 {
		t.Errorf("limit = %d, want %d", cfg.LimitRowsPerSubSplit, 64*1024)
	}
}

func TestExecutorApplySplitsOptimizationIndependentOfOptimizer(t *testing.T) {
	c := cache.New(time.Minute, 0, nil)
	c.Set("segments", cache.Entry{TotalRows: 50_000_000})
	ex := NewExecutor(c)
	cfg := ex.ApplySplitsOptimization("segments", Config{})
	if cfg.NumSplits != 8 {
		t.Errorf("splits = %d, want 8 (capped)", cfg.NumSplits)
	}
	if cfg.NumSubSplits != 8 {
		t.Errorf("subsplits = %d, want 8 (capped)", cfg.NumSubSplits)
	}
}

func TestExecuteWithSplitsRunsQueryFunc(t *testing.T) {
	c := cache.New(time.Minute, 0, nil)
	c.Set("segments", cache.Entry{TotalRows: 10})
	ex := NewExecutor(c)
	called := false
	err := ex.ExecuteWithSplits("segments", Config{}, func(cfg Config) error {
		called = true
		if cfg.NumSplits < 1 {
			t.Errorf("expected splits floored at 1, got %d", cfg.NumSplits)
		}
		return nil
	})
	if err != nil || !called {
		t.Fatalf("err=%v called=%v", err, called)
	}
}

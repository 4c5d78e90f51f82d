package batch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jesseVast/tamscore/internal/store/cache"
	"github.com/jesseVast/tamscore/internal/store/data"
	"github.com/jesseVast/tamscore/internal/store/engine"
	"github.com/jesseVast/tamscore/internal/store/engine/memengine"
	"github.com/jesseVast/tamscore/internal/store/perf"
)

var ctx = context.Background()

func newBatchOps(t *testing.T) (*Operations, engine.Engine) {
	t.Helper()
	eng := memengine.New()
	if _, err := eng.CreateTable(ctx, "segments", engine.Schema{
		{Name: "id", TypeName: "string"},
		{Name: "width", TypeName: "int64"},
	}); err != nil {
		t.Fatalf("create table: %v", err)
	}
	dataOps := data.New(eng, cache.New(time.Minute, 0, nil), perf.New(10, time.Second, nil))
	return New(dataOps, perf.New(10, time.Second, nil)), eng
}

func columnsOfSize(n int) map[string][]any {
	ids := make([]any, n)
	widths := make([]any, n)
	for i := 0; i < n; i++ {
		ids[i] = string(rune('a' + i%26))
		widths[i] = int64(i)
	}
	return map[string][]any{"id": ids, "width": widths}
}

func TestInsertBatchEfficientSequential(t *testing.T) {
	ops, eng := newBatchOps(t)
	n, err := ops.InsertBatchEfficient(ctx, "segments", columnsOfSize(5), 2, 4)
	if err != nil || n != 5 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	count, _ := eng.RowCount(ctx, "segments")
	if count != 5 {
		t.Errorf("row count = %d, want 5", count)
	}
}

func TestInsertBatchEfficientParallel(t *testing.T) {
	ops, eng := newBatchOps(t)
	// 50 rows / batch size 1 => 50 batches, above DefaultParallelThreshold.
	n, err := ops.InsertBatchEfficient(ctx, "segments", columnsOfSize(50), 1, 4)
	if err != nil || n != 50 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	count, _ := eng.RowCount(ctx, "segments")
	if count != 50 {
		t.Errorf("row count = %d, want 50", count)
	}
}

func TestInsertBatchTransactionalReportShape(t *testing.T) {
	ops, _ := newBatchOps(t)
	report, err := ops.InsertBatchTransactional(ctx, "segments", columnsOfSize(10), 3, 4, 2, true)
	require.NoError(t, err)
	require.True(t, report.Success, "expected success, got %+v", report)
	require.Equal(t, 10, report.TotalRows)
	require.Equal(t, 10, report.TotalInserted)
	require.Equal(t, 0, report.TotalFailed)
	require.Equal(t, 4, report.BatchesTotal)
	require.Equal(t, 4, report.BatchesSuccessful)
	require.Equal(t, 0, report.BatchesFailed)
	require.Len(t, report.BatchDetails, 4)
}

func TestCleanupPartialInsertionReturnsTrue(t *testing.T) {
	ops, _ := newBatchOps(t)
	details := map[string]*BatchDetail{
		"batch_0": {RowCount: 5, Error: "boom", Attempts: 3},
	}
	if !ops.CleanupPartialInsertion("segments", []string{"batch_0"}, details) {
		t.Error("expected cleanup to report true")
	}
}

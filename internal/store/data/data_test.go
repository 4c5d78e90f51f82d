package data

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jesseVast/tamscore/internal/store/cache"
	"github.com/jesseVast/tamscore/internal/store/engine"
	"github.com/jesseVast/tamscore/internal/store/engine/memengine"
	"github.com/jesseVast/tamscore/internal/store/perf"
	"github.com/jesseVast/tamscore/internal/store/predicate"
)

var ctx = context.Background()

func newOps() (*Operations, engine.Engine) {
	eng := memengine.New()
	info, _ := eng.CreateTable(ctx, "segments", engine.Schema{
		{Name: "id", TypeName: "string"},
		{Name: "width", TypeName: "int64"},
	})
	cacheMgr := cache.New(time.Minute, 0, nil)
	cacheMgr.Set("segments", cache.Entry{Schema: map[string]string{"id": "string", "width": "int64"}, TotalRows: info.RowCount})
	ops := New(eng, cacheMgr, perf.New(10, time.Second, nil))
	return ops, eng
}

func TestInsertSingleAndSelect(t *testing.T) {
	ops, _ := newOps()
	if err := ops.InsertSingle(ctx, "segments", engine.Row{"id": "a", "width": int64(100)}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	rows, err := ops.Select(ctx, "segments", nil, nil, 0)
	if err != nil || len(rows) != 1 {
		t.Fatalf("select: rows=%v err=%v", rows, err)
	}
}

func TestInsertListReturnsCount(t *testing.T) {
	ops, _ := newOps()
	n, err := ops.InsertList(ctx, "segments", []engine.Row{
		{"id": "a", "width": int64(1)},
		{"id": "b", "width": int64(2)},
	})
	if err != nil || n != 2 {
		t.Fatalf("insert list: n=%d err=%v", n, err)
	}
}

func TestUpdateRepeatsScalarAcrossAllMatches(t *testing.T) {
	ops, _ := newOps()
	ops.InsertList(ctx, "segments", []engine.Row{
		{"id": "a", "width": int64(100)},
		{"id": "b", "width": int64(100)},
	})
	n, err := ops.Update(ctx, "segments", predicate.Predicate{"width": int64(100)}, engine.Row{"width": []any{int64(200), int64(999)}})
	require.NoError(t, err)
	require.Equal(t, 2, n)
	rows, _ := ops.Select(ctx, "segments", nil, nil, 0)
	for _, r := range rows {
		assert.Equal(t, int64(200), r["width"], "expected first slice value repeated for every row")
	}
}

func TestUpdateWithoutPredicateIsNoOp(t *testing.T) {
	ops, _ := newOps()
	ops.InsertSingle(ctx, "segments", engine.Row{"id": "a", "width": int64(1)})
	n, err := ops.Update(ctx, "segments", nil, engine.Row{"width": int64(2)})
	if err != nil || n != 0 {
		t.Fatalf("expected no-op update, got n=%d err=%v", n, err)
	}
}

func TestDeleteRemovesMatchingRows(t *testing.T) {
	ops, _ := newOps()
	ops.InsertList(ctx, "segments", []engine.Row{
		{"id": "a", "width": int64(1)},
		{"id": "b", "width": int64(2)},
	})
	n, err := ops.Delete(ctx, "segments", predicate.Predicate{"width": int64(1)})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	rows, _ := ops.Select(ctx, "segments", nil, nil, 0)
	assert.Len(t, rows, 1)
}

func TestDeleteWithoutPredicateIsNoOp(t *testing.T) {
	ops, _ := newOps()
	ops.InsertSingle(ctx, "segments", engine.Row{"id": "a", "width": int64(1)})
	n, err := ops.Delete(ctx, "segments", nil)
	if err != nil || n != 0 {
		t.Fatalf("expected no-op delete, got n=%d err=%v", n, err)
	}
}

func TestInsertColumnsBuildsRowsFromParallelSlices(t *testing.T) {
	ops, _ := newOps()
	n, err := ops.InsertColumns(ctx, "segments", map[string][]any{
		"id":    {"a", "b"},
		"width": {int64(10), int64(20)},
	})
	if err != nil || n != 2 {
		t.Fatalf("insert columns: n=%d err=%v", n, err)
	}
}

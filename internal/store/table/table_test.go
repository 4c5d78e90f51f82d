package table

import (
	"context"
	"testing"
	"time"

	"github.com/jesseVast/tamscore/internal/store/cache"
	"github.com/jesseVast/tamscore/internal/store/engine"
	"github.com/jesseVast/tamscore/internal/store/engine/memengine"
)

var ctx = context.Background()

func newOps() *Operations {
	return New(memengine.New(), cache.New(time.Minute, 0, nil))
}

func TestCreateTablePopulatesCache(t *testing.T) {
	ops := newOps()
	schema := engine.Schema{{Name: "id", TypeName: "string"}}
	if _, err := ops.CreateTable(ctx, "segments", schema); err != nil {
		t.Fatalf("create: %v", err)
	}
	e, ok := ops.cache.Get("segments")
	if !ok {
		t.Fatal("expected cache populated after create")
	}
	if e.Schema["id"] != "string" {
		t.Errorf("unexpected cached schema: %+v", e.Schema)
	}
}

func TestDescribeTableUsesCache(t *testing.T) {
	ops := newOps()
	ops.CreateTable(ctx, "segments", engine.Schema{{Name: "id", TypeName: "string"}})
	info, err := ops.DescribeTable(ctx, "segments")
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if info.Name != "segments" {
		t.Errorf("unexpected table info: %+v", info)
	}
}

func TestDropTableInvalidatesCache(t *testing.T) {
	ops := newOps()
	ops.CreateTable(ctx, "segments", engine.Schema{{Name: "id", TypeName: "string"}})
	if err := ops.DropTable(ctx, "segments"); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if _, ok := ops.cache.Get("segments"); ok {
		t.Error("expected cache entry removed after drop")
	}
}

func TestClassifyProjectionColumnsSortsTimeColumns(t *testing.T) {
	sorted, unsorted := classifyProjectionColumns([]string{"flow_id", "timerange_start", "TimeStamp", "storage_path"})
	if len(sorted) != 2 || sorted[0] != "timerange_start" || sorted[1] != "TimeStamp" {
		t.Errorf("unexpected sorted columns: %v", sorted)
	}
	if len(unsorted) != 2 || unsorted[0] != "flow_id" || unsorted[1] != "storage_path" {
		t.Errorf("unexpected unsorted columns: %v", unsorted)
	}
}

func TestAddProjectionThenListProjections(t *testing.T) {
	ops := newOps()
	schema := engine.Schema{
		{Name: "flow_id", TypeName: "string"},
		{Name: "timerange_start", TypeName: "double"},
	}
	if _, err := ops.CreateTable(ctx, "segments", schema); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := ops.AddProjection(ctx, "segments", "by_flow_time", []string{"flow_id", "timerange_start"}); err != nil {
		t.Fatalf("add projection: %v", err)
	}

	projections, err := ops.ListProjections(ctx, "segments")
	if err != nil {
		t.Fatalf("list projections: %v", err)
	}
	if len(projections) != 1 || projections[0].Name != "by_flow_time" {
		t.Fatalf("unexpected projections: %+v", projections)
	}
	if len(projections[0].Sorted) != 1 || projections[0].Sorted[0] != "timerange_start" {
		t.Errorf("unexpected sorted columns: %+v", projections[0])
	}
	if len(projections[0].Unsorted) != 1 || projections[0].Unsorted[0] != "flow_id" {
		t.Errorf("unexpected unsorted columns: %+v", projections[0])
	}
}

func TestListProjectionsIsServedFromAuxCacheAfterFirstCall(t *testing.T) {
	ops := newOps()
	schema := engine.Schema{{Name: "flow_id", TypeName: "string"}}
	ops.CreateTable(ctx, "segments", schema)
	ops.AddProjection(ctx, "segments", "by_flow", []string{"flow_id"})

	if _, err := ops.ListProjections(ctx, "segments"); err != nil {
		t.Fatalf("list projections: %v", err)
	}
	if _, ok := ops.cache.AuxGet(auxProjectionsKey("segments")); !ok {
		t.Fatal("expected projections cached in auxiliary LRU after ListProjections")
	}
}

func TestDropProjectionInvalidatesAuxCacheAndRemovesEntry(t *testing.T) {
	ops := newOps()
	schema := engine.Schema{{Name: "flow_id", TypeName: "string"}}
	ops.CreateTable(ctx, "segments", schema)
	ops.AddProjection(ctx, "segments", "by_flow", []string{"flow_id"})
	ops.ListProjections(ctx, "segments")

	if err := ops.DropProjection(ctx, "segments", "by_flow"); err != nil {
		t.Fatalf("drop projection: %v", err)
	}
	if _, ok := ops.cache.AuxGet(auxProjectionsKey("segments")); ok {
		t.Error("expected auxiliary cache entry invalidated after DropProjection")
	}

	projections, err := ops.ListProjections(ctx, "segments")
	if err != nil {
		t.Fatalf("list projections after drop: %v", err)
	}
	if len(projections) != 0 {
		t.Errorf("expected no projections after drop, got %+v", projections)
	}
}

func TestCreateTableInstallsProjectionsAndInvalidatesAuxCache(t *testing.T) {
	ops := newOps()
	schema := engine.Schema{
		{Name: "flow_id", TypeName: "string"},
		{Name: "timerange_start", TypeName: "double"},
	}
	if _, err := ops.CreateTable(ctx, "segments", schema, engine.ProjectionSpec{
		Name:     "by_flow_time",
		Sorted:   []string{"timerange_start"},
		Unsorted: []string{"flow_id"},
	}); err != nil {
		t.Fatalf("create table with projection: %v", err)
	}

	projections, err := ops.ListProjections(ctx, "segments")
	if err != nil {
		t.Fatalf("list projections: %v", err)
	}
	if len(projections) != 1 || projections[0].Name != "by_flow_time" {
		t.Fatalf("unexpected projections after CreateTable: %+v", projections)
	}
}

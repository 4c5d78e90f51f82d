package entity

import (
	"context"
	"testing"
	"time"

	"github.com/jesseVast/tamscore/internal/store/cache"
	"github.com/jesseVast/tamscore/internal/store/data"
	"github.com/jesseVast/tamscore/internal/store/engine"
	"github.com/jesseVast/tamscore/internal/store/engine/memengine"
	"github.com/jesseVast/tamscore/internal/store/model"
	"github.com/jesseVast/tamscore/internal/store/table"
)

var ctx = context.Background()

func newStore(t *testing.T) *Store {
	t.Helper()
	eng := memengine.New()
	cacheMgr := cache.New(30*time.Minute, 128, nil)
	tableOps := table.New(eng, cacheMgr)
	dataOps := data.New(eng, cacheMgr, nil)
	s := New(tableOps, dataOps)
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if _, err := eng.CreateTable(ctx, tableSegments, engine.Schema{
		{Name: "id", TypeName: "varchar"},
		{Name: "flow_id", TypeName: "varchar"},
		{Name: "object_id", TypeName: "varchar"},
	}); err != nil {
		t.Fatalf("create segments table: %v", err)
	}
	return s
}

func TestCreateAndGetSource(t *testing.T) {
	s := newStore(t)
	src, err := s.CreateSource(ctx, model.Source{Format: "urn:x-nmos:format:video", Label: "cam-1"})
	if err != nil {
		t.Fatalf("create source: %v", err)
	}
	if src.ID == "" {
		t.Fatal("expected generated ID")
	}

	got, err := s.GetSource(ctx, src.ID)
	if err != nil {
		t.Fatalf("get source: %v", err)
	}
	if got == nil || got.Label != "cam-1" {
		t.Fatalf("got = %+v", got)
	}
}

func TestDeleteSourceIsSoftAndHidesFromGet(t *testing.T) {
	s := newStore(t)
	src, _ := s.CreateSource(ctx, model.Source{Label: "cam-1"})

	res, err := s.DeleteSource(ctx, src.ID)
	if err != nil || !res.OK {
		t.Fatalf("delete source: res=%+v err=%v", res, err)
	}

	got, err := s.GetSource(ctx, src.ID)
	if err != nil {
		t.Fatalf("get source: %v", err)
	}
	if got != nil {
		t.Errorf("expected soft-deleted source to be hidden, got %+v", got)
	}

	withDeleted, err := s.GetSourceIncludeDeleted(ctx, src.ID)
	if err != nil {
		t.Fatalf("get source include deleted: %v", err)
	}
	if withDeleted == nil || withDeleted.Label != "cam-1" {
		t.Fatalf("expected forced include-deleted query to return the row, got %+v", withDeleted)
	}
}

func TestCreateFlowRequiresLiveSource(t *testing.T) {
	s := newStore(t)
	_, err := s.CreateFlow(ctx, model.Flow{SourceID: "missing-source"})
	if err == nil {
		t.Fatal("expected error creating flow against a missing source")
	}
}

func TestCreateFlowRejectsSoftDeletedSource(t *testing.T) {
	s := newStore(t)
	src, _ := s.CreateSource(ctx, model.Source{Label: "cam-1"})
	if _, err := s.DeleteSource(ctx, src.ID); err != nil {
		t.Fatalf("delete source: %v", err)
	}

	_, err := s.CreateFlow(ctx, model.Flow{SourceID: src.ID})
	if err == nil {
		t.Fatal("expected error creating flow against a soft-deleted source")
	}
}

func TestCreateFlowSucceedsAgainstLiveSource(t *testing.T) {
	s := newStore(t)
	src, _ := s.CreateSource(ctx, model.Source{Label: "cam-1"})

	flow, err := s.CreateFlow(ctx, model.Flow{SourceID: src.ID, Codec: "h264"})
	if err != nil {
		t.Fatalf("create flow: %v", err)
	}
	got, err := s.GetFlow(ctx, flow.ID)
	if err != nil || got == nil || got.Codec != "h264" {
		t.Fatalf("got=%+v err=%v", got, err)
	}
}

func TestGetObjectDerivesReferencedFlowsFromSegments(t *testing.T) {
	s := newStore(t)
	if err := s.CreateObject(ctx, "obj-1", 1024); err != nil {
		t.Fatalf("create object: %v", err)
	}
	if _, err := s.data.InsertList(ctx, tableSegments, []engine.Row{
		{"id": "seg-1", "flow_id": "flow-a", "object_id": "obj-1"},
		{"id": "seg-2", "flow_id": "flow-b", "object_id": "obj-1"},
		{"id": "seg-3", "flow_id": "flow-a", "object_id": "obj-1"},
	}); err != nil {
		t.Fatalf("seed segments: %v", err)
	}

	obj, err := s.GetObject(ctx, "obj-1")
	if err != nil {
		t.Fatalf("get object: %v", err)
	}
	if obj == nil || obj.Size != 1024 {
		t.Fatalf("obj = %+v", obj)
	}
	if len(obj.ReferencedByFlows) != 2 {
		t.Errorf("referenced_by_flows = %v, want 2 distinct flows", obj.ReferencedByFlows)
	}
}

func TestGetObjectMissingReturnsNil(t *testing.T) {
	s := newStore(t)
	obj, err := s.GetObject(ctx, "does-not-exist")
	if err != nil {
		t.Fatalf("get object: %v", err)
	}
	if obj != nil {
		t.Errorf("expected nil, got %+v", obj)
	}
}

// Package entity implements the Source/Flow/Object CRUD facade (C15):
// soft-deleted reads, foreign-key-like liveness checks between Flow and
// Source, Object reference counts derived lazily from Segments, and a
// dedicated tag store.
//
// Grounded on original_source/app/storage/endpoints/tags/tags_storage.py
// for tags, and the Source/Flow/Object shapes implied across
// original_source/app/storage/vastdbmanager/{table_operations,data_operations}.py.
package entity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jesseVast/tamscore/internal/store/data"
	"github.com/jesseVast/tamscore/internal/store/engine"
	"github.com/jesseVast/tamscore/internal/store/model"
	"github.com/jesseVast/tamscore/internal/store/predicate"
	"github.com/jesseVast/tamscore/internal/store/table"
	pkgerrors "github.com/jesseVast/tamscore/pkg/errors"
	"github.com/jesseVast/tamscore/pkg/logger"
)

var log = logger.NewDefault("entity")

const (
	tableSources = "sources"
	tableFlows   = "flows"
	tableObjects = "objects"
	tableTags    = "tags"
	// tableSegments is owned by package segment (C14), but Object reference
	// counts are derived by reading it here too.
	tableSegments = "segments"
)

// Result is the ok/reason outcome spec §4.15 requires from write operations
// that can fail without it being a protocol fault.
type Result struct {
	OK     bool
	Reason string
}

// Store is the Source/Flow/Object facade over C6/C7.
type Store struct {
	table *table.Operations
	data  *data.Operations
}

// New builds a Store over tableOps/dataOps.
func New(tableOps *table.Operations, dataOps *data.Operations) *Store {
	return &Store{table: tableOps, data: dataOps}
}

// EnsureSchema creates the sources/flows/objects/tags tables if absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	schemas := map[string]engine.Schema{
		tableSources: {
			{Name: "id", TypeName: "varchar"},
			{Name: "format", TypeName: "varchar"},
			{Name: "label", TypeName: "varchar"},
			{Name: "description", TypeName: "varchar"},
			{Name: "created", TypeName: "timestamp"},
			{Name: "updated", TypeName: "timestamp"},
			{Name: "soft_deleted", TypeName: "bool"},
		},
		tableFlows: {
			{Name: "id", TypeName: "varchar"},
			{Name: "source_id", TypeName: "varchar"},
			{Name: "format", TypeName: "varchar"},
			{Name: "codec", TypeName: "varchar"},
			{Name: "label", TypeName: "varchar"},
			{Name: "frame_width", TypeName: "int"},
			{Name: "frame_height", TypeName: "int"},
			{Name: "sample_rate", TypeName: "int"},
			{Name: "created", TypeName: "timestamp"},
			{Name: "updated", TypeName: "timestamp"},
			{Name: "soft_deleted", TypeName: "bool"},
		},
		tableObjects: {
			{Name: "id", TypeName: "varchar"},
			{Name: "size", TypeName: "bigint"},
		},
		tableTags: {
			{Name: "id", TypeName: "varchar"},
			{Name: "entity_type", TypeName: "varchar"},
			{Name: "entity_id", TypeName: "varchar"},
			{Name: "tag_name", TypeName: "varchar"},
			{Name: "tag_value", TypeName: "varchar"},
			{Name: "created", TypeName: "timestamp"},
			{Name: "updated", TypeName: "timestamp"},
			{Name: "created_by", TypeName: "varchar"},
			{Name: "updated_by", TypeName: "varchar"},
		},
	}
	for name, schema := range schemas {
		if _, err := s.table.CreateTable(ctx, name, schema); err != nil {
			return fmt.Errorf("ensure schema %s: %w", name, err)
		}
	}
	return nil
}

// --- Source ---

// CreateSource inserts src, assigning an ID and timestamps if unset.
func (s *Store) CreateSource(ctx context.Context, src model.Source) (model.Source, error) {
	if src.ID == "" {
		src.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if src.Created.IsZero() {
		src.Created = now
	}
	src.Updated = now
	row := engine.Row{
		"id": src.ID, "format": src.Format, "label": src.Label,
		"description": src.Description, "created": src.Created, "updated": src.Updated,
		"soft_deleted": false,
	}
	if err := s.data.InsertSingle(ctx, tableSources, row); err != nil {
		return model.Source{}, err
	}
	return src, nil
}

// GetSource returns the live Source with id, or nil if missing or soft-deleted.
func (s *Store) GetSource(ctx context.Context, id string) (*model.Source, error) {
	return s.getSource(ctx, id, false)
}

// GetSourceIncludeDeleted returns the Source with id whether or not it is
// soft-deleted, the explicit "with_deleted" bypass spec scenario S6
// requires: a forced include-deleted query must still return a
// soft-deleted row even though GetSource hides it.
func (s *Store) GetSourceIncludeDeleted(ctx context.Context, id string) (*model.Source, error) {
	return s.getSource(ctx, id, true)
}

func (s *Store) getSource(ctx context.Context, id string, includeDeleted bool) (*model.Source, error) {
	pred := predicate.Predicate{"id": id}
	if !includeDeleted {
		pred["soft_deleted"] = false
	}
	rows, err := s.data.Select(ctx, tableSources, pred, nil, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rowToSource(rows[0]), nil
}

// ListSources returns every live Source.
func (s *Store) ListSources(ctx context.Context) ([]model.Source, error) {
	rows, err := s.data.Select(ctx, tableSources, predicate.Predicate{"soft_deleted": false}, nil, 0)
	if err != nil {
		return nil, err
	}
	sources := make([]model.Source, 0, len(rows))
	for _, r := range rows {
		sources = append(sources, *rowToSource(r))
	}
	return sources, nil
}

// UpdateSource patches fields on the live Source with id.
func (s *Store) UpdateSource(ctx context.Context, id string, patch engine.Row) (Result, error) {
	existing, err := s.GetSource(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if existing == nil {
		return Result{OK: false, Reason: "source not found"}, nil
	}
	patch["updated"] = time.Now().UTC()
	n, err := s.data.Update(ctx, tableSources, predicate.Predicate{"id": id}, patch)
	if err != nil {
		return Result{}, err
	}
	return Result{OK: n > 0, Reason: reasonFromCount(n)}, nil
}

// DeleteSource soft-deletes the Source with id.
func (s *Store) DeleteSource(ctx context.Context, id string) (Result, error) {
	n, err := s.data.Update(ctx, tableSources, predicate.Predicate{"id": id}, engine.Row{
		"soft_deleted": true, "updated": time.Now().UTC(),
	})
	if err != nil {
		return Result{}, err
	}
	return Result{OK: n > 0, Reason: reasonFromCount(n)}, nil
}

// --- Flow ---

// CreateFlow inserts flow after confirming its Source is live, per the
// foreign-key-like invariant spec §4.15 requires.
func (s *Store) CreateFlow(ctx context.Context, flow model.Flow) (model.Flow, error) {
	source, err := s.GetSource(ctx, flow.SourceID)
	if err != nil {
		return model.Flow{}, err
	}
	if source == nil {
		log.Warnf("rejecting flow creation: source %q does not exist or is deleted", flow.SourceID)
		return model.Flow{}, pkgerrors.New(pkgerrors.KindValidation, "create_flow", "flow",
			fmt.Errorf("%w: source %q does not exist or is deleted", pkgerrors.ErrConflict, flow.SourceID))
	}
	if flow.ID == "" {
		flow.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if flow.Created.IsZero() {
		flow.Created = now
	}
	flow.Updated = now
	row := engine.Row{
		"id": flow.ID, "source_id": flow.SourceID, "format": flow.Format, "codec": flow.Codec,
		"label": flow.Label, "frame_width": flow.FrameWidth, "frame_height": flow.FrameHeight,
		"sample_rate": flow.SampleRate, "created": flow.Created, "updated": flow.Updated,
		"soft_deleted": false,
	}
	if err := s.data.InsertSingle(ctx, tableFlows, row); err != nil {
		return model.Flow{}, err
	}
	return flow, nil
}

// GetFlow returns the live Flow with id, or nil if missing or soft-deleted.
func (s *Store) GetFlow(ctx context.Context, id string) (*model.Flow, error) {
	return s.getFlow(ctx, id, false)
}

// GetFlowIncludeDeleted returns the Flow with id whether or not it is
// soft-deleted, the same explicit "with_deleted" bypass GetSourceIncludeDeleted
// provides for Source.
func (s *Store) GetFlowIncludeDeleted(ctx context.Context, id string) (*model.Flow, error) {
	return s.getFlow(ctx, id, true)
}

func (s *Store) getFlow(ctx context.Context, id string, includeDeleted bool) (*model.Flow, error) {
	pred := predicate.Predicate{"id": id}
	if !includeDeleted {
		pred["soft_deleted"] = false
	}
	rows, err := s.data.Select(ctx, tableFlows, pred, nil, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rowToFlow(rows[0]), nil
}

// ListFlows returns every live Flow, optionally scoped to a Source.
func (s *Store) ListFlows(ctx context.Context, sourceID string) ([]model.Flow, error) {
	pred := predicate.Predicate{"soft_deleted": false}
	if sourceID != "" {
		pred["source_id"] = sourceID
	}
	rows, err := s.data.Select(ctx, tableFlows, pred, nil, 0)
	if err != nil {
		return nil, err
	}
	flows := make([]model.Flow, 0, len(rows))
	for _, r := range rows {
		flows = append(flows, *rowToFlow(r))
	}
	return flows, nil
}

// DeleteFlow soft-deletes the Flow with id.
func (s *Store) DeleteFlow(ctx context.Context, id string) (Result, error) {
	n, err := s.data.Update(ctx, tableFlows, predicate.Predicate{"id": id}, engine.Row{
		"soft_deleted": true, "updated": time.Now().UTC(),
	})
	if err != nil {
		return Result{}, err
	}
	return Result{OK: n > 0, Reason: reasonFromCount(n)}, nil
}

// --- Object ---

// CreateObject registers a deduplicated object, a no-op if id already exists.
func (s *Store) CreateObject(ctx context.Context, id string, size int64) error {
	existing, err := s.getObjectRow(ctx, id)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	return s.data.InsertSingle(ctx, tableObjects, engine.Row{"id": id, "size": size})
}

// GetObject returns id's Object with ReferencedByFlows derived lazily from
// live Segments, or nil if the object itself is unknown.
func (s *Store) GetObject(ctx context.Context, id string) (*model.Object, error) {
	row, err := s.getObjectRow(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	segRows, err := s.data.Select(ctx, tableSegments, predicate.Predicate{"object_id": id}, []string{"flow_id"}, 0)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var flows []string
	for _, r := range segRows {
		fid, _ := r["flow_id"].(string)
		if fid != "" && !seen[fid] {
			seen[fid] = true
			flows = append(flows, fid)
		}
	}
	return &model.Object{ID: id, Size: toInt64(row["size"]), ReferencedByFlows: flows}, nil
}

// DeleteObject removes the Object row with id. Callers are responsible for
// ensuring no live Segment still references it.
func (s *Store) DeleteObject(ctx context.Context, id string) (Result, error) {
	n, err := s.data.Delete(ctx, tableObjects, predicate.Predicate{"id": id})
	if err != nil {
		return Result{}, err
	}
	return Result{OK: n > 0, Reason: reasonFromCount(n)}, nil
}

func (s *Store) getObjectRow(ctx context.Context, id string) (engine.Row, error) {
	rows, err := s.data.Select(ctx, tableObjects, predicate.Predicate{"id": id}, nil, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func reasonFromCount(n int) string {
	if n > 0 {
		return ""
	}
	return "no matching rows"
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func rowToSource(r engine.Row) *model.Source {
	src := &model.Source{
		ID: str(r["id"]), Format: str(r["format"]), Label: str(r["label"]),
		Description: str(r["description"]),
	}
	src.Created, _ = r["created"].(time.Time)
	src.Updated, _ = r["updated"].(time.Time)
	src.SoftDeleted, _ = r["soft_deleted"].(bool)
	return src
}

func rowToFlow(r engine.Row) *model.Flow {
	flow := &model.Flow{
		ID: str(r["id"]), SourceID: str(r["source_id"]), Format: str(r["format"]),
		Codec: str(r["codec"]), Label: str(r["label"]),
		FrameWidth: int(toInt64(r["frame_width"])), FrameHeight: int(toInt64(r["frame_height"])),
		SampleRate: int(toInt64(r["sample_rate"])),
	}
	flow.Created, _ = r["created"].(time.Time)
	flow.Updated, _ = r["updated"].(time.Time)
	flow.SoftDeleted, _ = r["soft_deleted"].(bool)
	return flow
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

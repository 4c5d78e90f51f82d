// Package segment implements the ingestion/lookup facade (C14)
// orchestrating the object store adapter (C13) for payload bytes and the
// data/table operations (C6/C7) for the segment index row.
//
// Grounded on the segment-facing surface of
// original_source/app/storage/vastdbmanager/data_operations.py combined
// with original_source/app/storage/s3_store.py's store/get_flow_segment
// pair, which spec §4.14 distills into a single put/get/list facade.
package segment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jesseVast/tamscore/internal/store/data"
	"github.com/jesseVast/tamscore/internal/store/engine"
	"github.com/jesseVast/tamscore/internal/store/model"
	"github.com/jesseVast/tamscore/internal/store/object"
	"github.com/jesseVast/tamscore/internal/store/predicate"
	"github.com/jesseVast/tamscore/internal/store/table"
	"github.com/jesseVast/tamscore/internal/store/timerange"
	pkgerrors "github.com/jesseVast/tamscore/pkg/errors"
	"github.com/jesseVast/tamscore/pkg/logger"
)

var log = logger.NewDefault("segment")

const tableSegments = "segments"

// ObjectStore is the slice of package object's Store the facade depends on,
// narrowed to an interface so Service can be exercised against a fake
// payload store in tests.
type ObjectStore interface {
	StoreSegment(ctx context.Context, flowID string, seg object.Segment, data []byte, contentType string) error
	DeleteObject(ctx context.Context, storagePath string) error
	TAMSCompliantGetURLs(ctx context.Context, flowID, segmentID, tr, storagePath, backendID string) ([]object.GetURL, error)
}

// Service is the segment ingestion/lookup facade.
type Service struct {
	table   *table.Operations
	data    *data.Operations
	objects ObjectStore
}

// New builds a Service over tableOps/dataOps (the segment index) and
// objects (the payload store).
func New(tableOps *table.Operations, dataOps *data.Operations, objects ObjectStore) *Service {
	return &Service{table: tableOps, data: dataOps, objects: objects}
}

// EnsureSchema creates the segments index table if absent, along with a
// by-flow-and-time projection: flow_id/object_id lookups and timerange_start
// range scans are the two hot access paths Get/List drive, so both are
// classified into the projection's unsorted/sorted halves.
func (s *Service) EnsureSchema(ctx context.Context) error {
	schema := engine.Schema{
		{Name: "id", TypeName: "varchar"},
		{Name: "flow_id", TypeName: "varchar"},
		{Name: "object_id", TypeName: "varchar"},
		{Name: "timerange_start", TypeName: "double"},
		{Name: "timerange_end", TypeName: "double"},
		{Name: "sample_offset", TypeName: "bigint"},
		{Name: "sample_count", TypeName: "bigint"},
		{Name: "key_frame_count", TypeName: "bigint"},
		{Name: "storage_path", TypeName: "varchar"},
		{Name: "created", TypeName: "timestamp"},
	}
	_, err := s.table.CreateTable(ctx, tableSegments, schema, engine.ProjectionSpec{
		Name:     "by_flow_time",
		Sorted:   []string{"timerange_start", "timerange_end"},
		Unsorted: []string{"flow_id", "object_id"},
	})
	if err != nil {
		return fmt.Errorf("segment: ensure schema: %w", err)
	}
	return nil
}

// Put writes payload to the object store under the segment's deterministic
// key, then indexes it. If the index insert fails after a successful
// payload write, it issues a best-effort compensating delete against the
// object store and surfaces a structured error; if the payload write
// itself fails, no index row is created.
func (s *Service) Put(ctx context.Context, flowID string, meta model.Segment, payload []byte, contentType string) (model.Segment, error) {
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	meta.FlowID = flowID
	if meta.Created.IsZero() {
		meta.Created = time.Now().UTC()
	}

	tr := timerange.Render(timerange.TimeRange{Start: meta.TimerangeStart, End: meta.TimerangeEnd})
	objSeg := object.Segment{
		ObjectID:      meta.ID,
		Timerange:     tr,
		SampleOffset:  meta.SampleOffset,
		SampleCount:   meta.SampleCount,
		KeyFrameCount: meta.KeyFrameCount,
	}

	if err := s.objects.StoreSegment(ctx, flowID, objSeg, payload, contentType); err != nil {
		return model.Segment{}, fmt.Errorf("segment: put payload: %w", err)
	}

	key := object.GenerateSegmentKey(flowID, meta.ID, tr)
	meta.StoragePath = key

	row := engine.Row{
		"id": meta.ID, "flow_id": flowID, "object_id": meta.ObjectID,
		"timerange_start": meta.TimerangeStart, "timerange_end": meta.TimerangeEnd,
		"sample_offset": meta.SampleOffset, "sample_count": meta.SampleCount,
		"key_frame_count": meta.KeyFrameCount, "storage_path": meta.StoragePath,
		"created": meta.Created,
	}
	if err := s.data.InsertSingle(ctx, tableSegments, row); err != nil {
		log.Errorf("index insert failed after payload write for segment %s, issuing compensating delete: %v", meta.ID, err)
		if delErr := s.objects.DeleteObject(ctx, key); delErr != nil {
			log.Errorf("compensating delete also failed for key %s: %v", key, delErr)
		}
		return model.Segment{}, pkgerrors.New(pkgerrors.KindTransient, "put", "segment", err)
	}
	return meta, nil
}

// Get reads the index row for segmentID and presents signed access URLs
// for its stored payload through the object store. Returns nil if the
// segment is unknown.
func (s *Service) Get(ctx context.Context, flowID, segmentID string) (*model.Segment, []object.GetURL, error) {
	rows, err := s.data.Select(ctx, tableSegments, predicate.Predicate{"id": segmentID, "flow_id": flowID}, nil, 1)
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}
	seg := rowToSegment(rows[0])

	urls, err := s.objects.TAMSCompliantGetURLs(ctx, flowID, segmentID, "", seg.StoragePath, "")
	if err != nil {
		return nil, nil, fmt.Errorf("segment: get urls: %w", err)
	}
	return seg, urls, nil
}

// List returns every indexed segment for flowID whose timerange overlaps
// queryRange.
func (s *Service) List(ctx context.Context, flowID string, queryRange timerange.TimeRange) ([]model.Segment, error) {
	rows, err := s.data.Select(ctx, tableSegments, predicate.Predicate{"flow_id": flowID}, nil, 0)
	if err != nil {
		return nil, err
	}
	segments := make([]model.Segment, 0, len(rows))
	for _, r := range rows {
		seg := rowToSegment(r)
		segRange := timerange.TimeRange{Start: seg.TimerangeStart, End: seg.TimerangeEnd}
		if timerange.Overlaps(segRange, queryRange) {
			segments = append(segments, *seg)
		}
	}
	return segments, nil
}

func rowToSegment(r engine.Row) *model.Segment {
	return &model.Segment{
		ID:             str(r["id"]),
		FlowID:         str(r["flow_id"]),
		ObjectID:       str(r["object_id"]),
		TimerangeStart: toFloat64(r["timerange_start"]),
		TimerangeEnd:   toFloat64(r["timerange_end"]),
		SampleOffset:   toInt64(r["sample_offset"]),
		SampleCount:    toInt64(r["sample_count"]),
		KeyFrameCount:  toInt64(r["key_frame_count"]),
		StoragePath:    str(r["storage_path"]),
	}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return 0
	}
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

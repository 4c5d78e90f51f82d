// Package model defines the TAMS domain entities shared across the store
// packages: Source, Flow, Object, and Segment.
//
// Grounded on spec.md §3 (Shared domain model) and, for the Tags entity,
// original_source/app/storage/endpoints/tags/tags_storage.py.
package model

import "time"

// Source is a top-level media producer.
type Source struct {
	ID          string    `json:"id"`
	Format      string    `json:"format"`
	Label       string    `json:"label"`
	Description string    `json:"description"`
	Created     time.Time `json:"created"`
	Updated     time.Time `json:"updated"`
	SoftDeleted bool      `json:"soft_deleted"`
}

// Flow is a time-ordered stream of media produced by a Source.
type Flow struct {
	ID          string    `json:"id"`
	SourceID    string    `json:"source_id"`
	Format      string    `json:"format"`
	Codec       string    `json:"codec"`
	Label       string    `json:"label"`
	FrameWidth  int       `json:"frame_width,omitempty"`
	FrameHeight int       `json:"frame_height,omitempty"`
	SampleRate  int       `json:"sample_rate,omitempty"`
	Created     time.Time `json:"created"`
	Updated     time.Time `json:"updated"`
	SoftDeleted bool      `json:"soft_deleted"`
}

// Object is deduplicated media payload referenced by one or more Segments.
// ReferencedByFlows is recomputed lazily on read (invariant I3) rather than
// maintained transactionally, so it is always a derived view, never a
// column written directly by segment operations.
type Object struct {
	ID                string   `json:"id"`
	Size              int64    `json:"size"`
	ReferencedByFlows []string `json:"referenced_by_flows"`
}

// Segment is a time-ranged chunk of media, indexed in the columnar store
// and stored opaquely in the object store. TimerangeStart/End use the
// timerange package's float64-seconds representation.
type Segment struct {
	ID             string    `json:"id"`
	FlowID         string    `json:"flow_id"`
	ObjectID       string    `json:"object_id"`
	TimerangeStart float64   `json:"timerange_start"`
	TimerangeEnd   float64   `json:"timerange_end"`
	SampleOffset   int64     `json:"sample_offset"`
	SampleCount    int64     `json:"sample_count"`
	KeyFrameCount  int64     `json:"key_frame_count"`
	StoragePath    string    `json:"storage_path"`
	Created        time.Time `json:"created"`
}

// Tag is a free-form key/value label attached to a Source or Flow,
// modeled after the original's Tags table.
type Tag struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Key        string `json:"key"`
	Value      string `json:"value"`
}

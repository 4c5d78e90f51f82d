package object

import (
	"testing"
	"time"
)

func TestGenerateSegmentKeyUsesTimerangeDate(t *testing.T) {
	key := GenerateSegmentKey("flow-1", "seg-1", "[1735689600:0_1735693200:0)")
	want := "flow-1/2025/01/01/seg-1"
	if key != want {
		t.Errorf("key = %q, want %q", key, want)
	}
}

func TestGenerateSegmentKeyFallsBackToNowOnMalformedTimerange(t *testing.T) {
	before := time.Now().UTC()
	key := GenerateSegmentKey("flow-1", "seg-1", "not-a-timerange")
	after := time.Now().UTC()

	wantPrefix := "flow-1/"
	if len(key) < len(wantPrefix) || key[:len(wantPrefix)] != wantPrefix {
		t.Fatalf("key = %q, want prefix %q", key, wantPrefix)
	}
	// Accept either day if the fallback straddled midnight during the test run.
	beforeKey := GenerateSegmentKeyForDate("flow-1", "seg-1", before)
	afterKey := GenerateSegmentKeyForDate("flow-1", "seg-1", after)
	if key != beforeKey && key != afterKey {
		t.Errorf("key = %q, want one of %q or %q", key, beforeKey, afterKey)
	}
}

// GenerateSegmentKeyForDate is a test-only helper mirroring
// GenerateSegmentKey's fallback path for a known instant.
func GenerateSegmentKeyForDate(flowID, segmentID string, t time.Time) string {
	return flowID + "/" + t.Format("2006/01/02") + "/" + segmentID
}

func TestMetadataForStringifiesNumericFields(t *testing.T) {
	s := &Store{bucket: "bucket"}
	seg := Segment{ObjectID: "seg-1", Timerange: "[0_1)", SampleOffset: 5, SampleCount: 10, KeyFrameCount: 2}
	meta := s.metadataFor("flow-1", seg, "video/mp4")

	if meta["flow_id"] != "flow-1" || meta["segment_id"] != "seg-1" {
		t.Errorf("unexpected identity fields: %+v", meta)
	}
	if meta["sample_offset"] != "5" || meta["sample_count"] != "10" || meta["key_frame_count"] != "2" {
		t.Errorf("unexpected numeric fields: %+v", meta)
	}
	if meta["content_type"] != "video/mp4" {
		t.Errorf("content_type = %q, want video/mp4", meta["content_type"])
	}
}

package entity

import "testing"

func TestCreateAndGetTag(t *testing.T) {
	s := newStore(t)
	ts := NewTagStore(s.data)

	if err := ts.CreateTag(ctx, "source", "src-1", "location", "studio-a", "alice"); err != nil {
		t.Fatalf("create tag: %v", err)
	}
	value, found, err := ts.GetTag(ctx, "source", "src-1", "location")
	if err != nil {
		t.Fatalf("get tag: %v", err)
	}
	if !found || value != "studio-a" {
		t.Errorf("value=%q found=%v, want studio-a/true", value, found)
	}
}

func TestGetTagsReturnsNilWhenNoneExist(t *testing.T) {
	s := newStore(t)
	ts := NewTagStore(s.data)

	tags, err := ts.GetTags(ctx, "source", "src-1")
	if err != nil {
		t.Fatalf("get tags: %v", err)
	}
	if tags != nil {
		t.Errorf("expected nil, got %v", tags)
	}
}

func TestUpdateTagCreatesWhenMissing(t *testing.T) {
	s := newStore(t)
	ts := NewTagStore(s.data)

	if err := ts.UpdateTag(ctx, "flow", "flow-1", "quality", "hd", ""); err != nil {
		t.Fatalf("update tag: %v", err)
	}
	value, found, err := ts.GetTag(ctx, "flow", "flow-1", "quality")
	if err != nil || !found || value != "hd" {
		t.Fatalf("value=%q found=%v err=%v", value, found, err)
	}
}

func TestUpdateTagOverwritesExisting(t *testing.T) {
	s := newStore(t)
	ts := NewTagStore(s.data)

	if err := ts.CreateTag(ctx, "flow", "flow-1", "quality", "sd", ""); err != nil {
		t.Fatalf("create tag: %v", err)
	}
	if err := ts.UpdateTag(ctx, "flow", "flow-1", "quality", "hd", "bob"); err != nil {
		t.Fatalf("update tag: %v", err)
	}
	value, _, _ := ts.GetTag(ctx, "flow", "flow-1", "quality")
	if value != "hd" {
		t.Errorf("value = %q, want hd", value)
	}
}

func TestReplaceAllTagsDeletesThenRecreates(t *testing.T) {
	s := newStore(t)
	ts := NewTagStore(s.data)

	if err := ts.CreateTag(ctx, "source", "src-1", "stale", "yes", ""); err != nil {
		t.Fatalf("seed stale tag: %v", err)
	}

	res, err := ts.ReplaceAllTags(ctx, "source", "src-1", map[string]string{
		"location": "studio-b",
		"quality":  "4k",
	}, "carol")
	if err != nil {
		t.Fatalf("replace all tags: %v", err)
	}
	if !res.OK {
		t.Fatalf("expected OK result, got %+v", res)
	}

	tags, err := ts.GetTags(ctx, "source", "src-1")
	if err != nil {
		t.Fatalf("get tags: %v", err)
	}
	if len(tags) != 2 || tags["location"] != "studio-b" || tags["quality"] != "4k" {
		t.Errorf("tags = %v, want location=studio-b, quality=4k only", tags)
	}
	if _, present := tags["stale"]; present {
		t.Errorf("expected stale tag to be gone, tags = %v", tags)
	}
}

func TestReplaceAllTagsWithEmptyMapDeletesEverything(t *testing.T) {
	s := newStore(t)
	ts := NewTagStore(s.data)
	if err := ts.CreateTag(ctx, "source", "src-1", "location", "studio-a", ""); err != nil {
		t.Fatalf("seed tag: %v", err)
	}

	res, err := ts.ReplaceAllTags(ctx, "source", "src-1", nil, "")
	if err != nil || !res.OK {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	tags, err := ts.GetTags(ctx, "source", "src-1")
	if err != nil {
		t.Fatalf("get tags: %v", err)
	}
	if tags != nil {
		t.Errorf("expected no tags left, got %v", tags)
	}
}

func TestDeleteTagRemovesOnlyThatTag(t *testing.T) {
	s := newStore(t)
	ts := NewTagStore(s.data)
	if err := ts.CreateTag(ctx, "source", "src-1", "a", "1", ""); err != nil {
		t.Fatalf("create a: %v", err)
	}
	if err := ts.CreateTag(ctx, "source", "src-1", "b", "2", ""); err != nil {
		t.Fatalf("create b: %v", err)
	}

	if err := ts.DeleteTag(ctx, "source", "src-1", "a"); err != nil {
		t.Fatalf("delete tag: %v", err)
	}
	tags, err := ts.GetTags(ctx, "source", "src-1")
	if err != nil {
		t.Fatalf("get tags: %v", err)
	}
	if _, present := tags["a"]; present {
		t.Errorf("expected tag a removed, tags = %v", tags)
	}
	if tags["b"] != "2" {
		t.Errorf("expected tag b retained, tags = %v", tags)
	}
}

func TestSearchTagsFiltersByEntityTypeAndName(t *testing.T) {
	s := newStore(t)
	ts := NewTagStore(s.data)
	if err := ts.CreateTag(ctx, "source", "src-1", "location", "studio-a", ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := ts.CreateTag(ctx, "flow", "flow-1", "location", "studio-b", ""); err != nil {
		t.Fatalf("create: %v", err)
	}

	results, err := ts.SearchTags(ctx, "source", "location", "")
	if err != nil {
		t.Fatalf("search tags: %v", err)
	}
	if len(results) != 1 || results[0].EntityID != "src-1" {
		t.Errorf("results = %+v, want exactly the source-1 tag", results)
	}
}

func TestGetTagStatistics(t *testing.T) {
	s := newStore(t)
	ts := NewTagStore(s.data)
	if err := ts.CreateTag(ctx, "source", "src-1", "location", "studio-a", ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := ts.CreateTag(ctx, "source", "src-2", "location", "studio-b", ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := ts.CreateTag(ctx, "flow", "flow-1", "quality", "hd", ""); err != nil {
		t.Fatalf("create: %v", err)
	}

	stats, err := ts.GetTagStatistics(ctx)
	if err != nil {
		t.Fatalf("get tag statistics: %v", err)
	}
	if stats.TotalTags != 3 {
		t.Errorf("total tags = %d, want 3", stats.TotalTags)
	}
	if stats.EntityCounts["source"] != 2 || stats.EntityCounts["flow"] != 1 {
		t.Errorf("entity counts = %v", stats.EntityCounts)
	}
	if stats.UniqueTagNames != 2 {
		t.Errorf("unique tag names = %d, want 2", stats.UniqueTagNames)
	}
}

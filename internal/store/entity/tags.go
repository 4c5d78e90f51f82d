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
)

// TagStore is a dedicated CRUD surface over the tags table, scoped by
// (entity_type, entity_id), grounded on TagsStorage.
type TagStore struct {
	data *data.Operations
}

// NewTagStore builds a TagStore over dataOps.
func NewTagStore(dataOps *data.Operations) *TagStore {
	return &TagStore{data: dataOps}
}

func scopePredicate(entityType, entityID string) predicate.Predicate {
	return predicate.Predicate{"entity_type": entityType, "entity_id": entityID}
}

// GetTags returns every tag for the entity as a name->value map, or nil if
// none exist.
func (ts *TagStore) GetTags(ctx context.Context, entityType, entityID string) (map[string]string, error) {
	rows, err := ts.data.Select(ctx, tableTags, scopePredicate(entityType, entityID), []string{"tag_name", "tag_value"}, 0)
	if err != nil {
		log.Errorf("failed to get tags for %s %s: %v", entityType, entityID, err)
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	tags := make(map[string]string, len(rows))
	for _, r := range rows {
		name, _ := r["tag_name"].(string)
		value, _ := r["tag_value"].(string)
		if name != "" {
			tags[name] = value
		}
	}
	if len(tags) == 0 {
		return nil, nil
	}
	return tags, nil
}

// GetTag returns one tag's value, and whether it exists.
func (ts *TagStore) GetTag(ctx context.Context, entityType, entityID, tagName string) (string, bool, error) {
	pred := scopePredicate(entityType, entityID)
	pred["tag_name"] = tagName
	rows, err := ts.data.Select(ctx, tableTags, pred, []string{"tag_value"}, 1)
	if err != nil {
		log.Errorf("failed to get tag %s for %s %s: %v", tagName, entityType, entityID, err)
		return "", false, err
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	value, _ := rows[0]["tag_value"].(string)
	return value, true, nil
}

// CreateTag inserts a new tag row. createdBy defaults to "system".
func (ts *TagStore) CreateTag(ctx context.Context, entityType, entityID, tagName, tagValue, createdBy string) error {
	if createdBy == "" {
		createdBy = "system"
	}
	now := time.Now().UTC()
	row := engine.Row{
		"id": uuid.NewString(), "entity_type": entityType, "entity_id": entityID,
		"tag_name": tagName, "tag_value": tagValue,
		"created": now, "updated": now,
		"created_by": createdBy, "updated_by": createdBy,
	}
	if err := ts.data.InsertSingle(ctx, tableTags, row); err != nil {
		log.Errorf("failed to create tag %s=%s for %s %s: %v", tagName, tagValue, entityType, entityID, err)
		return err
	}
	return nil
}

// UpdateTag updates tagName's value for the entity, creating it if it
// doesn't already exist.
func (ts *TagStore) UpdateTag(ctx context.Context, entityType, entityID, tagName, tagValue, updatedBy string) error {
	_, exists, err := ts.GetTag(ctx, entityType, entityID, tagName)
	if err != nil {
		return err
	}
	if !exists {
		return ts.CreateTag(ctx, entityType, entityID, tagName, tagValue, updatedBy)
	}
	if updatedBy == "" {
		updatedBy = "system"
	}
	pred := scopePredicate(entityType, entityID)
	pred["tag_name"] = tagName
	n, err := ts.data.Update(ctx, tableTags, pred, engine.Row{
		"tag_value": tagValue, "updated": time.Now().UTC(), "updated_by": updatedBy,
	})
	if err != nil {
		log.Errorf("failed to update tag %s=%s for %s %s: %v", tagName, tagValue, entityType, entityID, err)
		return err
	}
	if n == 0 {
		log.Warnf("update_tag matched no rows for %s %s tag %s", entityType, entityID, tagName)
	}
	return nil
}

// ReplaceAllTags deletes every existing tag for the entity and recreates the
// given set. It never attempts rollback: Result reports how many of the new
// tags were actually written.
func (ts *TagStore) ReplaceAllTags(ctx context.Context, entityType, entityID string, tags map[string]string, updatedBy string) (Result, error) {
	if err := ts.DeleteAllTags(ctx, entityType, entityID); err != nil {
		return Result{}, err
	}
	if len(tags) == 0 {
		return Result{OK: true}, nil
	}

	var created int
	for name, value := range tags {
		if err := ts.CreateTag(ctx, entityType, entityID, name, value, updatedBy); err != nil {
			log.Errorf("tag %s creation failed during replace_all_tags for %s %s: %v", name, entityType, entityID, err)
			continue
		}
		created++
	}
	if created == len(tags) {
		return Result{OK: true}, nil
	}
	return Result{OK: false, Reason: fmt.Sprintf("partial: created %d of %d tags", created, len(tags))}, nil
}

// DeleteTag removes one tag. Deleting a tag that doesn't exist is a no-op
// success.
func (ts *TagStore) DeleteTag(ctx context.Context, entityType, entityID, tagName string) error {
	pred := scopePredicate(entityType, entityID)
	pred["tag_name"] = tagName
	if _, err := ts.data.Delete(ctx, tableTags, pred); err != nil {
		log.Errorf("failed to delete tag %s for %s %s: %v", tagName, entityType, entityID, err)
		return err
	}
	return nil
}

// DeleteAllTags removes every tag for the entity. A no-op is a success.
func (ts *TagStore) DeleteAllTags(ctx context.Context, entityType, entityID string) error {
	if _, err := ts.data.Delete(ctx, tableTags, scopePredicate(entityType, entityID)); err != nil {
		log.Errorf("failed to delete all tags for %s %s: %v", entityType, entityID, err)
		return err
	}
	return nil
}

// SearchTags returns tag rows matching the given (optional) filters; an
// empty string skips that filter.
func (ts *TagStore) SearchTags(ctx context.Context, entityType, tagName, tagValue string) ([]model.Tag, error) {
	pred := predicate.Predicate{}
	if entityType != "" {
		pred["entity_type"] = entityType
	}
	if tagName != "" {
		pred["tag_name"] = tagName
	}
	if tagValue != "" {
		pred["tag_value"] = tagValue
	}
	rows, err := ts.data.Select(ctx, tableTags, pred, nil, 0)
	if err != nil {
		log.Errorf("failed to search tags: %v", err)
		return nil, err
	}
	tags := make([]model.Tag, 0, len(rows))
	for _, r := range rows {
		tags = append(tags, model.Tag{
			EntityType: str(r["entity_type"]), EntityID: str(r["entity_id"]),
			Key: str(r["tag_name"]), Value: str(r["tag_value"]),
		})
	}
	return tags, nil
}

// TagStatistics summarizes tag usage across every entity.
type TagStatistics struct {
	TotalTags      int
	EntityCounts   map[string]int
	UniqueTagNames int
}

// GetTagStatistics computes aggregate tag usage, mirroring get_tag_statistics.
func (ts *TagStore) GetTagStatistics(ctx context.Context) (TagStatistics, error) {
	rows, err := ts.data.Select(ctx, tableTags, predicate.Predicate{}, nil, 0)
	if err != nil {
		log.Errorf("failed to compute tag statistics: %v", err)
		return TagStatistics{}, err
	}
	stats := TagStatistics{EntityCounts: map[string]int{}}
	names := map[string]bool{}
	for _, r := range rows {
		entityType := str(r["entity_type"])
		if entityType == "" {
			entityType = "unknown"
		}
		stats.EntityCounts[entityType]++
		names[str(r["tag_name"])] = true
	}
	stats.TotalTags = len(rows)
	stats.UniqueTagNames = len(names)
	return stats, nil
}

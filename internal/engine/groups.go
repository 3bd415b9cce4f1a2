package engine

import (
	"context"
	"sort"
	"strings"

	"github.com/bryan-buckman/feedcache/internal/model"
	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// GetSourceGroups lists the user's groups sorted by name.
func (e *Engine) GetSourceGroups(ctx context.Context, userID string) ([]model.SourceGroup, error) {
	groups, err := e.store.GetSourceGroups(ctx, userID)
	if err != nil {
		return nil, err
	}
	c := collate.New(language.Und)
	sort.SliceStable(groups, func(i, j int) bool {
		return c.CompareString(groups[i].Name, groups[j].Name) < 0
	})
	return groups, nil
}

// CreateSourceGroup creates a group. Names are case-insensitively
// unique per user.
func (e *Engine) CreateSourceGroup(ctx context.Context, userID, name string) (*model.SourceGroup, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, &model.ValidationError{Message: "Group name is required"}
	}
	if err := e.checkGroupNameFree(ctx, userID, trimmed, ""); err != nil {
		return nil, err
	}

	now := e.now()
	group := &model.SourceGroup{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      trimmed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.store.CreateSourceGroup(ctx, group); err != nil {
		return nil, err
	}
	return group, nil
}

// RenameSourceGroup renames a group under the same uniqueness rule.
func (e *Engine) RenameSourceGroup(ctx context.Context, userID, groupID, name string) (*model.SourceGroup, error) {
	group, err := e.loadOwnedGroup(ctx, userID, groupID)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, &model.ValidationError{Message: "Group name is required"}
	}
	if err := e.checkGroupNameFree(ctx, userID, trimmed, groupID); err != nil {
		return nil, err
	}

	group.Name = trimmed
	group.UpdatedAt = e.now()
	if err := e.store.UpdateSourceGroup(ctx, group); err != nil {
		return nil, err
	}
	return group, nil
}

// DeleteSourceGroup deletes a group, ungrouping its sources in the
// same transaction. Sources themselves are never deleted.
func (e *Engine) DeleteSourceGroup(ctx context.Context, userID, groupID string) error {
	if _, err := e.loadOwnedGroup(ctx, userID, groupID); err != nil {
		return err
	}
	return e.store.DeleteSourceGroup(ctx, userID, groupID)
}

func (e *Engine) loadOwnedGroup(ctx context.Context, userID, groupID string) (*model.SourceGroup, error) {
	group, err := e.store.GetSourceGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil || group.UserID != userID {
		return nil, &model.ValidationError{Message: "Group not found"}
	}
	return group, nil
}

func (e *Engine) checkGroupNameFree(ctx context.Context, userID, name, excludeID string) error {
	groups, err := e.store.GetSourceGroups(ctx, userID)
	if err != nil {
		return err
	}
	normalized := strings.ToLower(name)
	for _, g := range groups {
		if g.ID != excludeID && strings.ToLower(strings.TrimSpace(g.Name)) == normalized {
			return &model.ValidationError{Message: "Group already exists"}
		}
	}
	return nil
}

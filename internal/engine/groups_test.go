package engine

import (
	"context"
	"testing"

	"github.com/bryan-buckman/feedcache/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSourceGroupValidation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	var verr *model.ValidationError

	_, err := e.CreateSourceGroup(ctx, testUser, "   ")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Group name is required", verr.Message)

	_, err = e.CreateSourceGroup(ctx, testUser, "Tech")
	require.NoError(t, err)

	// Case-insensitive collision.
	_, err = e.CreateSourceGroup(ctx, testUser, "  tech ")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Group already exists", verr.Message)

	// Other users have their own namespace.
	_, err = e.CreateSourceGroup(ctx, "user-2", "Tech")
	require.NoError(t, err)
}

func TestRenameSourceGroup(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	tech, err := e.CreateSourceGroup(ctx, testUser, "Tech")
	require.NoError(t, err)
	_, err = e.CreateSourceGroup(ctx, testUser, "News")
	require.NoError(t, err)

	// Renaming to itself (case change) is allowed.
	renamed, err := e.RenameSourceGroup(ctx, testUser, tech.ID, "TECH")
	require.NoError(t, err)
	assert.Equal(t, "TECH", renamed.Name)

	var verr *model.ValidationError
	_, err = e.RenameSourceGroup(ctx, testUser, tech.ID, "news")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Group already exists", verr.Message)
}

func TestDeleteSourceGroupUngroupsSources(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	group, err := e.CreateSourceGroup(ctx, testUser, "Tech")
	require.NoError(t, err)

	src, err := e.AddSource(ctx, testUser, "/platform/path", "", &group.ID)
	require.NoError(t, err)
	require.NotNil(t, src.GroupID)

	require.NoError(t, e.DeleteSourceGroup(ctx, testUser, group.ID))

	// The source survives, ungrouped.
	ungrouped, err := e.GetSources(ctx, testUser, model.SourceOptions{FilterGroup: true})
	require.NoError(t, err)
	require.Len(t, ungrouped, 1)
	assert.Equal(t, src.ID, ungrouped[0].ID)
	assert.Nil(t, ungrouped[0].GroupID)

	groups, err := e.GetSourceGroups(ctx, testUser)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestAssignSourceGroup(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	group, err := e.CreateSourceGroup(ctx, testUser, "Tech")
	require.NoError(t, err)
	src := addTestSource(t, e, "/platform/path")

	assigned, err := e.AssignSourceGroup(ctx, testUser, src.ID, &group.ID)
	require.NoError(t, err)
	require.NotNil(t, assigned.GroupID)
	assert.Equal(t, group.ID, *assigned.GroupID)

	inGroup, err := e.GetSources(ctx, testUser, model.SourceOptions{FilterGroup: true, GroupID: &group.ID})
	require.NoError(t, err)
	assert.Len(t, inGroup, 1)

	ungrouped, err := e.AssignSourceGroup(ctx, testUser, src.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, ungrouped.GroupID)

	// Foreign group is rejected.
	foreign, err := e.CreateSourceGroup(ctx, "user-2", "Theirs")
	require.NoError(t, err)
	var verr *model.ValidationError
	_, err = e.AssignSourceGroup(ctx, testUser, src.ID, &foreign.ID)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Group not found", verr.Message)
}

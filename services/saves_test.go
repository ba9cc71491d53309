package services

import (
	"context"
	"errors"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndUnsave(t *testing.T) {
	setupTestDB(t)
	saves := NewSaveService()
	posts := NewPostService(newFakeMedia())
	user := createTestUser(t)
	post := createPost(t, posts, user.ID, "bookmark me")
	ctx := context.Background()

	first, err := saves.Save(ctx, user.ID, post.ID)
	require.NoError(t, err)
	second, err := saves.Save(ctx, user.ID, post.ID)
	require.NoError(t, err, "double save is allowed")
	assert.NotEqual(t, first.ID, second.ID)

	items, err := saves.ListByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, post.ID, items[0].Post.ID)

	require.NoError(t, saves.Unsave(ctx, first.ID))
	err = saves.Unsave(ctx, first.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	items, err = saves.ListByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, second.ID, items[0].ID)
}

func TestListSavesSkipsDeletedPosts(t *testing.T) {
	setupTestDB(t)
	saves := NewSaveService()
	posts := NewPostService(newFakeMedia())
	user := createTestUser(t)
	kept := createPost(t, posts, user.ID, "kept")
	gone := createPost(t, posts, user.ID, "gone")
	ctx := context.Background()

	_, err := saves.Save(ctx, user.ID, kept.ID)
	require.NoError(t, err)
	_, err = saves.Save(ctx, user.ID, gone.ID)
	require.NoError(t, err)
	require.NoError(t, posts.Delete(ctx, gone.ID, gone.ImageID))

	items, err := saves.ListByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, kept.ID, items[0].Post.ID)

	others, err := saves.ListByUser(ctx, gofakeit.UUID())
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestSaveValidation(t *testing.T) {
	database := setupTestDB(t)
	saves := NewSaveService()
	queries := countQueries(t, database)
	ctx := context.Background()

	_, err := saves.Save(ctx, "", "post")
	assert.Equal(t, KindValidation, KindOf(err))
	_, err = saves.Save(ctx, "user", "")
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Equal(t, KindValidation, KindOf(saves.Unsave(ctx, "")))
	_, err = saves.ListByUser(ctx, "")
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Zero(t, *queries)
}

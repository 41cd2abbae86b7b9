package repository

import (
	"context"
	"testing"

	"cookiegram/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentRepository_CreateRequiresPost(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewCommentRepository(db)
	author := seedUser(t, db, "user_author")

	err := repo.Create(context.Background(), &models.Comment{UserID: author.ID, PostID: 31337, Content: "hello"})
	assert.Equal(t, fiberNotFound, models.StatusFor(err))

	var count int64
	db.Model(&models.Comment{}).Count(&count)
	assert.Zero(t, count)
}

func TestCommentRepository_ListOldestFirst(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()
	author := seedUser(t, db, "user_author")
	post := seedPost(t, db, author, 1)

	for _, content := range []string{"first", "second", "third"} {
		require.NoError(t, repo.Create(ctx, &models.Comment{UserID: author.ID, PostID: post.ID, Content: content}))
	}

	comments, err := repo.ListByPost(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, comments, 3)
	assert.Equal(t, "first", comments[0].Content)
	assert.Equal(t, "third", comments[2].Content)
	require.NotNil(t, comments[0].User)
	assert.Equal(t, "user_author", comments[0].User.ExternalID)
}

func TestCommentRepository_GetAndDelete(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()
	author := seedUser(t, db, "user_author")
	post := seedPost(t, db, author, 1)
	c := &models.Comment{UserID: author.ID, PostID: post.ID, Content: "nice crumb"}
	require.NoError(t, repo.Create(ctx, c))

	got, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "nice crumb", got.Content)

	require.NoError(t, repo.Delete(ctx, c.ID))
	_, err = repo.GetByID(ctx, c.ID)
	assert.Equal(t, fiberNotFound, models.StatusFor(err))
	assert.Equal(t, fiberNotFound, models.StatusFor(repo.Delete(ctx, c.ID)))
}

package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"cookiegram/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostRepository_LikeUsesOnConflict(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "likes"`) + `.*` + regexp.QuoteMeta(`ON CONFLICT DO NOTHING`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	created, err := repo.Like(context.Background(), 2, 5)
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_DeleteIsOneTransaction(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "likes" WHERE post_id = $1`)).
		WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "comments" WHERE post_id = $1`)).
		WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "posts" WHERE "posts"."id" = $1`)).
		WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), 7))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_DeleteRollsBackOnMissingPost(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "likes"`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "comments"`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "posts"`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), 99)
	assert.Equal(t, fiberNotFound, models.StatusFor(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_CreateForOwnerCreatesOwner(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewPostRepository(db)
	users := NewUserRepository(db)

	post := &models.Post{ImageURL: "https://img.example/a.webp", Description: "Carrot cake", Recipe: "grate carrots"}
	require.NoError(t, repo.CreateForOwner(context.Background(), "user_owner", post))
	assert.NotZero(t, post.ID)
	require.NotNil(t, post.User)
	assert.Equal(t, "user_owner", post.User.ExternalID)

	owner, err := users.GetByExternalID(context.Background(), "user_owner")
	require.NoError(t, err)
	_, err = users.Hydrate(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, []uint{post.ID}, owner.PostIDs)
}

func TestPostRepository_CreateForOwnerRollsBack(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewPostRepository(db)

	// A failed post insert must not leave the owner row behind.
	require.NoError(t, db.Exec("CREATE TRIGGER reject_posts BEFORE INSERT ON posts BEGIN SELECT RAISE(ABORT, 'rejected'); END").Error)

	err := repo.CreateForOwner(context.Background(), "user_ghost", &models.Post{ImageURL: "x"})
	require.Error(t, err)

	var users int64
	require.NoError(t, db.Model(&models.User{}).Where("external_id = ?", "user_ghost").Count(&users).Error)
	assert.Zero(t, users)
}

func TestPostRepository_DeleteRemovesLikesAndComments(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	owner := seedUser(t, db, "user_owner")
	fan := seedUser(t, db, "user_fan")
	post := seedPost(t, db, owner, 1)
	keep := seedPost(t, db, owner, 2)

	_, err := repo.Like(ctx, fan.ID, post.ID)
	require.NoError(t, err)
	_, err = repo.Like(ctx, fan.ID, keep.ID)
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.Comment{UserID: fan.ID, PostID: post.ID, Content: "yum"}).Error)

	require.NoError(t, repo.Delete(ctx, post.ID))

	var likes, comments, posts int64
	db.Model(&models.Like{}).Where("post_id = ?", post.ID).Count(&likes)
	db.Model(&models.Comment{}).Where("post_id = ?", post.ID).Count(&comments)
	db.Model(&models.Post{}).Where("id = ?", post.ID).Count(&posts)
	assert.Zero(t, likes)
	assert.Zero(t, comments)
	assert.Zero(t, posts)

	n, err := repo.CountLikes(ctx, keep.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = repo.GetByID(ctx, post.ID)
	assert.Equal(t, fiberNotFound, models.StatusFor(err))
}

func TestPostRepository_DoubleLikeIsSingleLike(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	owner := seedUser(t, db, "user_owner")
	fan := seedUser(t, db, "user_fan")
	post := seedPost(t, db, owner, 1)

	created, err := repo.Like(ctx, fan.ID, post.ID)
	require.NoError(t, err)
	assert.True(t, created)
	created, err = repo.Like(ctx, fan.ID, post.ID)
	require.NoError(t, err)
	assert.False(t, created)

	n, err := repo.CountLikes(ctx, post.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	likers, err := repo.LikerExternalIDs(ctx, []uint{post.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"user_fan"}, likers[post.ID])

	removed, err := repo.Unlike(ctx, fan.ID, post.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = repo.Unlike(ctx, fan.ID, post.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = repo.Like(ctx, fan.ID, 4040)
	assert.Equal(t, fiberNotFound, models.StatusFor(err))
}

func TestPostRepository_FeedOrdering(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewPostRepository(db)
	follows := NewFollowRepository(db)
	ctx := context.Background()

	viewer := seedUser(t, db, "user_viewer")
	friend := seedUser(t, db, "user_friend")
	stranger := seedUser(t, db, "user_stranger")

	base := time.Now().Add(-time.Hour)
	mk := func(owner *models.User, n int) *models.Post {
		p := seedPost(t, db, owner, n)
		require.NoError(t, db.Model(p).Update("created_at", base.Add(time.Duration(n)*time.Minute)).Error)
		return p
	}
	friendOld := mk(friend, 1)
	strangerMid := mk(stranger, 2)
	strangerNew := mk(stranger, 3)
	friendLiked := mk(friend, 4)

	_, err := follows.Follow(ctx, viewer.ID, friend.ID)
	require.NoError(t, err)
	_, err = repo.Like(ctx, viewer.ID, friendLiked.ID)
	require.NoError(t, err)

	ids := func(posts []*models.Post) []uint {
		out := make([]uint, 0, len(posts))
		for _, p := range posts {
			out = append(out, p.ID)
		}
		return out
	}

	recency, err := repo.Feed(ctx, viewer.ID, FeedSortRecency, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint{friendLiked.ID, strangerNew.ID, strangerMid.ID, friendOld.ID}, ids(recency))
	assert.True(t, recency[0].Liked)
	assert.EqualValues(t, 1, recency[0].LikesCount)
	require.NotNil(t, recency[1].User)
	assert.Equal(t, "user_stranger", recency[1].User.ExternalID)

	// A liked post by a followed user still ranks above every stranger's post.
	followed, err := repo.Feed(ctx, viewer.ID, FeedSortFollowed, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint{friendOld.ID, friendLiked.ID, strangerNew.ID, strangerMid.ID}, ids(followed))

	page, err := repo.Feed(ctx, viewer.ID, FeedSortRecency, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint{strangerMid.ID, friendOld.ID}, ids(page))
}

func TestPostRepository_FeedLikedBreaksTies(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	viewer := seedUser(t, db, "user_viewer")
	baker := seedUser(t, db, "user_baker")

	at := time.Now().Add(-time.Hour).Truncate(time.Second)
	unliked := seedPost(t, db, baker, 1)
	liked := seedPost(t, db, baker, 2)
	for _, p := range []*models.Post{liked, unliked} {
		require.NoError(t, db.Model(p).Update("created_at", at).Error)
	}
	_, err := repo.Like(ctx, viewer.ID, liked.ID)
	require.NoError(t, err)

	for _, sort := range []string{FeedSortRecency, FeedSortFollowed} {
		posts, err := repo.Feed(ctx, viewer.ID, sort, 20, 0)
		require.NoError(t, err)
		require.Len(t, posts, 2, sort)
		assert.Equal(t, unliked.ID, posts[0].ID, sort)
		assert.Equal(t, liked.ID, posts[1].ID, sort)
	}
}

func TestPostRepository_Search(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewPostRepository(db)
	owner := seedUser(t, db, "user_owner")
	for i, d := range []string{"Chocolate CAKE", "lemon tart", "100% cocoa brownie"} {
		p := seedPost(t, db, owner, i)
		require.NoError(t, db.Model(p).Update("description", d).Error)
	}

	got, err := repo.Search(context.Background(), "cake", 50)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Chocolate CAKE", got[0].Description)

	got, err = repo.Search(context.Background(), "100%", 50)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = repo.Search(context.Background(), "%", 50)
	require.NoError(t, err)
	assert.Len(t, got, 1, "wildcards in the query are literal")

	got, err = repo.Search(context.Background(), "pavlova", 50)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPostRepository_ImagesAndLikedBy(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	owner := seedUser(t, db, "user_owner")
	fan := seedUser(t, db, "user_fan")
	p1 := seedPost(t, db, owner, 1)
	p2 := seedPost(t, db, owner, 2)

	images, err := repo.GetImages(ctx, []uint{p2.ID, 999, p1.ID, p2.ID})
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, p2.ID, images[0].PostID)
	assert.Equal(t, p1.ImageURL, images[1].ImageURL)

	_, err = repo.Like(ctx, fan.ID, p1.ID)
	require.NoError(t, err)
	liked, err := repo.LikedBy(ctx, fan.ID)
	require.NoError(t, err)
	require.Len(t, liked, 1)
	assert.Equal(t, p1.ID, liked[0].ID)
	assert.Equal(t, p1.Description, liked[0].Description)

	none, err := repo.LikedBy(ctx, owner.ID)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestPostRepository_UpdateOverwrites(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	owner := seedUser(t, db, "user_owner")
	p := seedPost(t, db, owner, 1)

	require.NoError(t, repo.Update(ctx, &models.Post{ID: p.ID, ImageURL: "https://img.example/new.webp", Description: "", Recipe: "new"}))
	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://img.example/new.webp", got.ImageURL)
	assert.Empty(t, got.Description)
	assert.Equal(t, "new", got.Recipe)

	err = repo.Update(ctx, &models.Post{ID: 777, ImageURL: "x"})
	assert.Equal(t, fiberNotFound, models.StatusFor(err))
}

func TestPostRepository_CommentIDs(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewPostRepository(db)
	owner := seedUser(t, db, "user_owner")
	p := seedPost(t, db, owner, 1)
	c1 := &models.Comment{UserID: owner.ID, PostID: p.ID, Content: "first"}
	c2 := &models.Comment{UserID: owner.ID, PostID: p.ID, Content: "second"}
	require.NoError(t, db.Create(c1).Error)
	require.NoError(t, db.Create(c2).Error)

	got, err := repo.CommentIDs(context.Background(), []uint{p.ID})
	require.NoError(t, err)
	assert.Equal(t, []uint{c1.ID, c2.ID}, got[p.ID])
}

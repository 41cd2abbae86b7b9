package repository

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"

	"cookiegram/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestUserRepository_GetByExternalID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	query := regexp.QuoteMeta(`SELECT * FROM "users" WHERE external_id = $1 ORDER BY "users"."id" LIMIT $2`)

	tests := []struct {
		name         string
		externalID   string
		mockBehavior func()
		wantCode     string
	}{
		{
			name:       "Success",
			externalID: "user_1",
			mockBehavior: func() {
				mock.ExpectQuery(query).
					WithArgs("user_1", 1).
					WillReturnRows(sqlmock.NewRows([]string{"id", "external_id", "bio"}).AddRow(1, "user_1", "hi"))
			},
		},
		{
			name:       "Not Found",
			externalID: "user_x",
			mockBehavior: func() {
				mock.ExpectQuery(query).WithArgs("user_x", 1).WillReturnError(gorm.ErrRecordNotFound)
			},
			wantCode: models.CodeNotFound,
		},
		{
			name:       "Database Error",
			externalID: "user_y",
			mockBehavior: func() {
				mock.ExpectQuery(query).WithArgs("user_y", 1).WillReturnError(errors.New("connection reset"))
			},
			wantCode: models.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockBehavior()
			user, err := repo.GetByExternalID(ctx, tt.externalID)
			if tt.wantCode != "" {
				var appErr *models.AppError
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, tt.wantCode, appErr.Code)
				assert.Nil(t, user)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "hi", user.Bio)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_EnsureCreatesOnce(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	first, err := repo.Ensure(ctx, "user_new")
	require.NoError(t, err)
	assert.NotZero(t, first.ID)
	assert.Equal(t, models.DefaultBio, first.Bio)

	second, err := repo.Ensure(ctx, "user_new")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Where("external_id = ?", "user_new").Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestUserRepository_EnsureConcurrent(t *testing.T) {
	db := setupSQLiteDB(t)
	// One connection interleaves the goroutines' statements without sqlite busy errors.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	repo := NewUserRepository(db)

	var wg sync.WaitGroup
	ids := make([]uint, 8)
	errs := make([]error, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, err := repo.Ensure(context.Background(), "user_race")
			errs[i] = err
			if u != nil {
				ids[i] = u.ID
			}
		}(i)
	}
	wg.Wait()

	for i := range ids {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	var count int64
	require.NoError(t, db.Model(&models.User{}).Where("external_id = ?", "user_race").Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestUserRepository_UpdateBio(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewUserRepository(db)
	u := seedUser(t, db, "user_bio")

	updated, err := repo.UpdateBio(context.Background(), u.ID, "Sourdough every Sunday")
	require.NoError(t, err)
	assert.Equal(t, "Sourdough every Sunday", updated.Bio)

	_, err = repo.UpdateBio(context.Background(), 9999, "x")
	assert.Equal(t, fiberNotFound, models.StatusFor(err))
}

func TestUserRepository_HydrateAndFollowLists(t *testing.T) {
	db := setupSQLiteDB(t)
	users := NewUserRepository(db)
	follows := NewFollowRepository(db)
	ctx := context.Background()

	alice := seedUser(t, db, "user_alice")
	bob := seedUser(t, db, "user_bob")
	carol := seedUser(t, db, "user_carol")
	p1 := seedPost(t, db, alice, 1)
	p2 := seedPost(t, db, alice, 2)

	_, err := follows.Follow(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	_, err = follows.Follow(ctx, carol.ID, alice.ID)
	require.NoError(t, err)
	_, err = follows.Follow(ctx, alice.ID, carol.ID)
	require.NoError(t, err)

	conns, err := users.Hydrate(ctx, alice)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"user_bob", "user_carol"}, alice.Followers)
	assert.Equal(t, []string{"user_carol"}, alice.Followings)
	assert.Equal(t, []uint{p1.ID, p2.ID}, alice.PostIDs)
	require.Len(t, conns.Followers, 2)
	assert.Equal(t, bob.ID, conns.Followers[0].ID)
	require.Len(t, conns.Followings, 1)
	assert.Equal(t, carol.ID, conns.Followings[0].ID)

	_, err = users.Hydrate(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, bob.Followers)
	assert.Equal(t, []string{"user_alice"}, bob.Followings)
	assert.NotNil(t, bob.PostIDs)

	all, err := users.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

// Package repository implements the data access layer for the application.
package repository

import (
	"context"

	"cookiegram/internal/cache"
	"cookiegram/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.User, error)
	// Ensure returns the user for externalID, creating it with the default bio on first sight.
	Ensure(ctx context.Context, externalID string) (*models.User, error)
	UpdateBio(ctx context.Context, id uint, bio string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	// Hydrate fills the computed Followers, Followings and PostIDs fields and
	// returns the user rows behind the two follow lists.
	Hydrate(ctx context.Context, user *models.User) (*Connections, error)
}

// Connections are a user's followers and followings, oldest edge first.
type Connections struct {
	Followers  []models.User
	Followings []models.User
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFoundOr(err, "User", id)
	}
	return &user, nil
}

func (r *userRepository) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	var user models.User
	err := cache.Aside(ctx, cache.UserKey(externalID), &user, cache.UserTTL, func() error {
		if err := r.db.WithContext(ctx).Where("external_id = ?", externalID).First(&user).Error; err != nil {
			return notFoundOr(err, "User", externalID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Ensure(ctx context.Context, externalID string) (*models.User, error) {
	return ensureUser(ctx, r.db, externalID)
}

// ensureUser inserts with ON CONFLICT DO NOTHING and re-reads, so concurrent
// first requests for the same external ID converge on one row. It is safe to
// call inside a transaction.
func ensureUser(ctx context.Context, db *gorm.DB, externalID string) (*models.User, error) {
	var user models.User
	err := db.WithContext(ctx).Where("external_id = ?", externalID).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !isRecordNotFound(err) {
		return nil, models.NewInternalError(err)
	}

	user = models.User{ExternalID: externalID, Bio: models.DefaultBio}
	err = db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "external_id"}}, DoNothing: true}).
		Create(&user).Error
	if err != nil && !isUniqueViolation(err) {
		return nil, models.NewInternalError(err)
	}

	var stored models.User
	if err := db.WithContext(ctx).Where("external_id = ?", externalID).First(&stored).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return &stored, nil
}

func (r *userRepository) UpdateBio(ctx context.Context, id uint, bio string) (*models.User, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("bio", bio)
	if res.Error != nil {
		return nil, models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, models.NewNotFoundError("User", id)
	}

	user, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	cache.InvalidateUser(ctx, user.ExternalID)
	return user, nil
}

func (r *userRepository) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) listFollowers(ctx context.Context, userID uint) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Joins("JOIN follows ON follows.follower_id = users.id").
		Where("follows.followee_id = ?", userID).
		Order("follows.created_at ASC, users.id ASC").
		Find(&users).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) listFollowings(ctx context.Context, userID uint) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Joins("JOIN follows ON follows.followee_id = users.id").
		Where("follows.follower_id = ?", userID).
		Order("follows.created_at ASC, users.id ASC").
		Find(&users).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) Hydrate(ctx context.Context, user *models.User) (*Connections, error) {
	followers, err := r.listFollowers(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	followings, err := r.listFollowings(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	var postIDs []uint
	err = r.db.WithContext(ctx).Model(&models.Post{}).
		Where("user_id = ?", user.ID).
		Order("created_at ASC, id ASC").
		Pluck("id", &postIDs).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user.Followers = externalIDs(followers)
	user.Followings = externalIDs(followings)
	user.PostIDs = postIDs
	if user.PostIDs == nil {
		user.PostIDs = []uint{}
	}
	return &Connections{Followers: followers, Followings: followings}, nil
}

func externalIDs(users []models.User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.ExternalID)
	}
	return out
}

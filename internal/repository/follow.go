package repository

import (
	"context"

	"cookiegram/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FollowRepository manages the directed follow graph.
type FollowRepository interface {
	// Follow adds the edge; created is false when it already existed.
	Follow(ctx context.Context, followerID, followeeID uint) (created bool, err error)
	// Unfollow removes the edge; removed is false when there was none.
	Unfollow(ctx context.Context, followerID, followeeID uint) (removed bool, err error)
}

type followRepository struct {
	db *gorm.DB
}

// NewFollowRepository returns a new FollowRepository implementation.
func NewFollowRepository(db *gorm.DB) FollowRepository {
	return &followRepository{db: db}
}

func (r *followRepository) Follow(ctx context.Context, followerID, followeeID uint) (bool, error) {
	var created bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("id = ?", followeeID).Count(&count).Error; err != nil {
			return models.NewInternalError(err)
		}
		if count == 0 {
			return models.NewNotFoundError("User", followeeID)
		}

		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Follow{FollowerID: followerID, FolloweeID: followeeID})
		if res.Error != nil {
			if isForeignKeyViolation(res.Error) {
				return models.NewNotFoundError("User", followeeID)
			}
			return models.NewInternalError(res.Error)
		}
		created = res.RowsAffected > 0
		return nil
	})
	return created, err
}

func (r *followRepository) Unfollow(ctx context.Context, followerID, followeeID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Delete(&models.Follow{})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

package repository

import (
	"context"

	"cookiegram/internal/cache"
	"cookiegram/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Feed orderings.
const (
	FeedSortRecency  = "recency"
	FeedSortFollowed = "followed"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	// CreateForOwner ensures the owner row for externalID and inserts the post in one transaction.
	CreateForOwner(ctx context.Context, externalID string, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	// Delete removes the post with its likes and comments atomically.
	Delete(ctx context.Context, id uint) error
	// Feed lists posts for viewerID. FeedSortRecency is newest first.
	// FeedSortFollowed puts posts by followed users first, then newest first.
	// Posts the viewer liked only lose ties against posts they have not liked.
	Feed(ctx context.Context, viewerID uint, sort string, limit, offset int) ([]*models.Post, error)
	Search(ctx context.Context, query string, limit int) ([]*models.Post, error)
	LikedBy(ctx context.Context, userID uint) ([]models.PostSummary, error)
	GetImages(ctx context.Context, ids []uint) ([]models.PostImage, error)
	// Like inserts the like idempotently; created is false if it already existed.
	Like(ctx context.Context, userID, postID uint) (created bool, err error)
	Unlike(ctx context.Context, userID, postID uint) (removed bool, err error)
	CountLikes(ctx context.Context, postID uint) (int64, error)
	// LikerExternalIDs returns, per post, the external IDs of users who liked it.
	LikerExternalIDs(ctx context.Context, postIDs []uint) (map[uint][]string, error)
	// CommentIDs returns, per post, comment IDs oldest first.
	CommentIDs(ctx context.Context, postIDs []uint) (map[uint][]uint, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) CreateForOwner(ctx context.Context, externalID string, post *models.Post) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owner, err := ensureUser(ctx, tx, externalID)
		if err != nil {
			return err
		}
		post.UserID = owner.ID
		post.User = nil
		if err := tx.Create(post).Error; err != nil {
			return models.NewInternalError(err)
		}
		post.User = owner
		return nil
	})
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := cache.Aside(ctx, cache.PostKey(id), &post, cache.PostTTL, func() error {
		if err := r.db.WithContext(ctx).First(&post, id).Error; err != nil {
			return notFoundOr(err, "Post", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	res := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", post.ID).
		Select("image_url", "description", "recipe").
		Updates(map[string]any{
			"image_url":   post.ImageURL,
			"description": post.Description,
			"recipe":      post.Recipe,
		})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", post.ID)
	}
	cache.InvalidatePost(ctx, post.ID)
	return nil
}

func (r *postRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&models.Like{}).Error; err != nil {
			return models.NewInternalError(err)
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return models.NewInternalError(err)
		}
		res := tx.Delete(&models.Post{}, id)
		if res.Error != nil {
			return models.NewInternalError(res.Error)
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Post", id)
		}
		return nil
	})
	if err != nil {
		return err
	}
	cache.InvalidatePost(ctx, id)
	return nil
}

// withViewerDetails selects the like count plus the viewer's liked and followed flags.
func withViewerDetails(db *gorm.DB, viewerID uint) *gorm.DB {
	return db.Select(
		"posts.*, "+
			"(SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id) AS likes_count, "+
			"EXISTS(SELECT 1 FROM likes WHERE likes.post_id = posts.id AND likes.user_id = ?) AS liked, "+
			"EXISTS(SELECT 1 FROM follows WHERE follows.follower_id = ? AND follows.followee_id = posts.user_id) AS followed",
		viewerID, viewerID,
	)
}

func (r *postRepository) Feed(ctx context.Context, viewerID uint, sort string, limit, offset int) ([]*models.Post, error) {
	q := withViewerDetails(r.db.WithContext(ctx).Model(&models.Post{}), viewerID).Preload("User")

	if sort == FeedSortFollowed {
		q = q.Order("followed DESC").Order("liked ASC").Order("posts.created_at DESC")
	} else {
		q = q.Order("posts.created_at DESC").Order("liked ASC")
	}
	q = q.Order("posts.id DESC")

	var posts []*models.Post
	if err := q.Limit(limit).Offset(offset).Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) Search(ctx context.Context, query string, limit int) ([]*models.Post, error) {
	var posts []*models.Post
	err := r.db.WithContext(ctx).
		Preload("User").
		Where(`LOWER(description) LIKE ? ESCAPE '\'`, containsPattern(query)).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) LikedBy(ctx context.Context, userID uint) ([]models.PostSummary, error) {
	out := []models.PostSummary{}
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Select("posts.id, posts.image_url, posts.description, posts.created_at").
		Joins("JOIN likes ON likes.post_id = posts.id").
		Where("likes.user_id = ?", userID).
		Order("posts.created_at DESC, posts.id DESC").
		Scan(&out).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}

func (r *postRepository) GetImages(ctx context.Context, ids []uint) ([]models.PostImage, error) {
	if len(ids) == 0 {
		return []models.PostImage{}, nil
	}

	var rows []models.PostImage
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Select("id AS post_id, image_url, created_at").
		Where("id IN ?", ids).
		Scan(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	byID := make(map[uint]models.PostImage, len(rows))
	for _, row := range rows {
		byID[row.PostID] = row
	}
	out := make([]models.PostImage, 0, len(rows))
	seen := make(map[uint]bool, len(ids))
	for _, id := range ids {
		if row, ok := byID[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *postRepository) Like(ctx context.Context, userID, postID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Like{UserID: userID, PostID: postID})
	if res.Error != nil {
		if isForeignKeyViolation(res.Error) {
			return false, models.NewNotFoundError("Post", postID)
		}
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *postRepository) Unlike(ctx context.Context, userID, postID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Delete(&models.Like{})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *postRepository) CountLikes(ctx context.Context, postID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Like{}).Where("post_id = ?", postID).Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

func (r *postRepository) LikerExternalIDs(ctx context.Context, postIDs []uint) (map[uint][]string, error) {
	out := make(map[uint][]string, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		PostID     uint
		ExternalID string
	}
	err := r.db.WithContext(ctx).Model(&models.Like{}).
		Select("likes.post_id, users.external_id").
		Joins("JOIN users ON users.id = likes.user_id").
		Where("likes.post_id IN ?", postIDs).
		Order("likes.created_at ASC, likes.user_id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, row := range rows {
		out[row.PostID] = append(out[row.PostID], row.ExternalID)
	}
	return out, nil
}

func (r *postRepository) CommentIDs(ctx context.Context, postIDs []uint) (map[uint][]uint, error) {
	out := make(map[uint][]uint, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		ID     uint
		PostID uint
	}
	err := r.db.WithContext(ctx).Model(&models.Comment{}).
		Select("id, post_id").
		Where("post_id IN ?", postIDs).
		Order("created_at ASC, id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, row := range rows {
		out[row.PostID] = append(out[row.PostID], row.ID)
	}
	return out, nil
}

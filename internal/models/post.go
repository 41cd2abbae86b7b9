// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// Post is a food photo with an optional description and recipe.
type Post struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	UserID      uint   `gorm:"not null;index" json:"user_id"`
	User        *User  `gorm:"foreignKey:UserID" json:"-"`
	ImageURL    string `gorm:"not null" json:"image_url"`
	Description string `gorm:"type:text" json:"description"`
	Recipe      string `gorm:"type:text" json:"recipe"`
	// Likes holds the external IDs of users who liked the post (computed)
	Likes []string `gorm:"-" json:"likes"`
	// CommentIDs lists comments oldest first (computed)
	CommentIDs []uint `gorm:"-" json:"comment_ids"`
	// Liked and LikesCount are set for the requesting user on every read.
	// Followed is only filled by feed queries (read-only)
	Liked      bool      `gorm:"->;-:migration" json:"liked"`
	Followed   bool      `gorm:"->;-:migration" json:"-"`
	LikesCount int64     `gorm:"->;-:migration" json:"likes_count"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PostSummary is the minimal projection returned for liked posts.
type PostSummary struct {
	ID          uint      `json:"id"`
	ImageURL    string    `json:"image_url"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// PostImage is the projection returned by the batch image lookup.
type PostImage struct {
	PostID    uint      `json:"post_id"`
	ImageURL  string    `json:"image_url"`
	CreatedAt time.Time `json:"created_at"`
}

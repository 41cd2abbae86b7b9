package models

import "time"

// DefaultBio is assigned to users created on first sign-in.
const DefaultBio = "I love birthday cakes."

// User is the local record for an identity-provider account.
type User struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	ExternalID string `gorm:"size:191;not null;uniqueIndex" json:"clerk_id"`
	Bio        string `gorm:"type:text;not null;default:'I love birthday cakes.'" json:"description"`
	// Followers and Followings hold external IDs (computed from follows)
	Followers  []string  `gorm:"-" json:"followers"`
	Followings []string  `gorm:"-" json:"followings"`
	PostIDs    []uint    `gorm:"-" json:"posts"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

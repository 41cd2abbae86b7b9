package models

import "time"

// Follow is a directed edge: FollowerID follows FolloweeID.
// A single row answers both "who do I follow" and "who follows me".
type Follow struct {
	FollowerID uint      `gorm:"primaryKey;autoIncrement:false;check:chk_follows_not_self,follower_id <> followee_id" json:"follower_id"`
	FolloweeID uint      `gorm:"primaryKey;autoIncrement:false;index" json:"followee_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (Follow) TableName() string {
	return "follows"
}

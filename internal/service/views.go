package service

import (
	"time"

	"cookiegram/internal/identity"
	"cookiegram/internal/models"
)

// Author is the display identity attached to posts, comments and user lists.
type Author struct {
	Creator string `json:"creator"`
	ClerkID string `json:"clerk_id"`
	Image   string `json:"image"`
}

func authorOf(u *identity.User) Author {
	return Author{Creator: u.DisplayName(), ClerkID: u.ID, Image: u.ImageURL}
}

// PostView is a post with its owner's identity.
type PostView struct {
	*models.Post
	Author
}

// CommentView is a comment with its author's identity.
type CommentView struct {
	*models.Comment
	Author
}

// CommentList is a best-effort comment thread. Failed lists comments left
// out because their author could not be resolved.
type CommentList struct {
	Comments []CommentView `json:"comments"`
	Failed   []uint        `json:"failed"`
}

// UserCard is a follower or following entry on a profile.
type UserCard struct {
	Author
	UserID uint `json:"user_id"`
}

// UserSummary is one entry of the user directory.
type UserSummary struct {
	Name    string `json:"name"`
	UserID  uint   `json:"user_id"`
	ClerkID string `json:"clerk_id"`
	Image   string `json:"image"`
}

// UserList is the best-effort user directory. Failed holds external IDs
// the identity provider could not resolve.
type UserList struct {
	Users  []UserSummary `json:"users"`
	Failed []string      `json:"failed"`
}

// IdentityView is the caller-facing identity-provider profile.
type IdentityView struct {
	UserID    string `json:"user_id"`
	Image     string `json:"image"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func identityViewOf(u *identity.User) *IdentityView {
	return &IdentityView{UserID: u.ID, Image: u.ImageURL, FirstName: u.FirstName, LastName: u.LastName}
}

// ProfileUser is the local user record with enriched follow lists.
type ProfileUser struct {
	ID          uint       `json:"id"`
	ClerkID     string     `json:"clerk_id"`
	Description string     `json:"description"`
	Posts       []uint     `json:"posts"`
	Followers   []UserCard `json:"followers"`
	Followings  []UserCard `json:"followings"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ProfileView is the profile page aggregate.
type ProfileView struct {
	Identity *IdentityView `json:"identity"`
	User     ProfileUser   `json:"user"`
}

// RecipeView is a post's recipe with its creator's display name.
type RecipeView struct {
	Recipe  string `json:"recipe"`
	Creator string `json:"creator"`
}

// LikeResult is the state of a post's likes after a like or unlike.
type LikeResult struct {
	PostID     uint  `json:"post_id"`
	Liked      bool  `json:"liked"`
	LikesCount int64 `json:"likes_count"`
}

// FollowResult is the state of a follow edge after a follow or unfollow.
type FollowResult struct {
	ClerkID  string `json:"clerk_id"`
	Followed bool   `json:"followed"`
}

package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix     = "user:ext:%s"
	PostKeyPrefix     = "post:%d"
	IdentityKeyPrefix = "identity:%s"
	WSTicketKeyPrefix = "ws_ticket:%s"
)

const (
	UserTTL     = 5 * time.Minute
	PostTTL     = 30 * time.Minute
	WSTicketTTL = 30 * time.Second
)

// UserKey caches the local user row by identity-provider ID.
func UserKey(externalID string) string {
	return fmt.Sprintf(UserKeyPrefix, externalID)
}

func PostKey(postID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

// IdentityKey caches the identity-provider profile for an external ID.
func IdentityKey(externalID string) string {
	return fmt.Sprintf(IdentityKeyPrefix, externalID)
}

func WSTicketKey(ticket string) string {
	return fmt.Sprintf(WSTicketKeyPrefix, ticket)
}

func InvalidateUser(ctx context.Context, externalID string) {
	Invalidate(ctx, UserKey(externalID))
}

func InvalidatePost(ctx context.Context, postID uint) {
	Invalidate(ctx, PostKey(postID))
}

func InvalidateIdentity(ctx context.Context, externalID string) {
	Invalidate(ctx, IdentityKey(externalID))
}

package service

import (
	"context"
	"fmt"
	"strings"

	"cookiegram/internal/models"
	"cookiegram/internal/repository"
)

type ProfileService struct {
	userRepo repository.UserRepository
	identity IdentityResolver
}

func NewProfileService(userRepo repository.UserRepository, resolver IdentityResolver) *ProfileService {
	return &ProfileService{userRepo: userRepo, identity: resolver}
}

// Profile aggregates a user's identity, posts and follow lists. Every
// identity lookup must succeed.
func (s *ProfileService) Profile(ctx context.Context, externalID string) (*ProfileView, error) {
	if strings.TrimSpace(externalID) == "" {
		return nil, models.NewValidationError("No user ID provided")
	}

	user, err := s.userRepo.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	conns, err := s.userRepo.Hydrate(ctx, user)
	if err != nil {
		return nil, err
	}
	followers, followings := conns.Followers, conns.Followings

	owner, err := s.identity.Lookup(ctx, user.ExternalID)
	if err != nil {
		return nil, identityError(user.ExternalID, err)
	}

	ids := make([]string, 0, len(followers)+len(followings))
	for _, u := range followers {
		ids = append(ids, u.ExternalID)
	}
	for _, u := range followings {
		ids = append(ids, u.ExternalID)
	}

	batch := s.identity.LookupMany(ctx, ids)
	if !batch.Complete() {
		return nil, models.NewUpstreamError("identity provider",
			fmt.Errorf("unresolved users: %s", strings.Join(batch.Failed, ", ")))
	}

	cards := func(users []models.User) []UserCard {
		out := make([]UserCard, 0, len(users))
		for _, u := range users {
			out = append(out, UserCard{Author: authorOf(batch.Users[u.ExternalID]), UserID: u.ID})
		}
		return out
	}

	return &ProfileView{
		Identity: identityViewOf(owner),
		User: ProfileUser{
			ID:          user.ID,
			ClerkID:     user.ExternalID,
			Description: user.Bio,
			Posts:       user.PostIDs,
			Followers:   cards(followers),
			Followings:  cards(followings),
			CreatedAt:   user.CreatedAt,
		},
	}, nil
}

package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cookiegram/internal/events"
	"cookiegram/internal/media"
	"cookiegram/internal/middleware"
	"cookiegram/internal/models"
	"cookiegram/internal/observability"
	"cookiegram/internal/repository"
)

type UserService struct {
	userRepo   repository.UserRepository
	followRepo repository.FollowRepository
	postRepo   repository.PostRepository
	identity   IdentityResolver
	dispatch   *Dispatcher
}

type SetNameInput struct {
	ExternalID string
	FirstName  string
	LastName   string
}

type FollowInput struct {
	Actor            *models.User
	TargetExternalID string
	Followed         bool
}

func NewUserService(
	userRepo repository.UserRepository,
	followRepo repository.FollowRepository,
	postRepo repository.PostRepository,
	resolver IdentityResolver,
	dispatch *Dispatcher,
) *UserService {
	return &UserService{
		userRepo:   userRepo,
		followRepo: followRepo,
		postRepo:   postRepo,
		identity:   resolver,
		dispatch:   dispatch,
	}
}

// EnsureUser returns the local user for externalID, creating it on first sight.
func (s *UserService) EnsureUser(ctx context.Context, externalID string) (*models.User, error) {
	if strings.TrimSpace(externalID) == "" {
		return nil, models.NewUnauthenticatedError("Missing user identity")
	}
	return s.userRepo.Ensure(ctx, externalID)
}

// GetUser returns the caller's record with followers, followings and post IDs.
func (s *UserService) GetUser(ctx context.Context, externalID string) (*models.User, error) {
	user, err := s.EnsureUser(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if _, err := s.userRepo.Hydrate(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// CallerIdentity returns the identity-provider profile of externalID.
func (s *UserService) CallerIdentity(ctx context.Context, externalID string) (*IdentityView, error) {
	u, err := s.identity.Lookup(ctx, externalID)
	if err != nil {
		return nil, identityError(externalID, err)
	}
	return identityViewOf(u), nil
}

func (s *UserService) UpdateDescription(ctx context.Context, userID uint, description string) (*models.User, error) {
	if tooLong(description, maxBioLen) {
		return nil, models.NewValidationError(fmt.Sprintf("Description too long (max %d characters)", maxBioLen))
	}
	return s.userRepo.UpdateBio(ctx, userID, description)
}

func (s *UserService) SetName(ctx context.Context, in SetNameInput) (*IdentityView, error) {
	first := strings.TrimSpace(in.FirstName)
	last := strings.TrimSpace(in.LastName)
	if first == "" {
		return nil, models.NewValidationError("First name is required")
	}
	if tooLong(first, maxNameLen) || tooLong(last, maxNameLen) {
		return nil, models.NewValidationError(fmt.Sprintf("Name too long (max %d characters)", maxNameLen))
	}

	u, err := s.identity.UpdateName(ctx, in.ExternalID, first, last)
	if err != nil {
		return nil, identityError(in.ExternalID, err)
	}
	return identityViewOf(u), nil
}

// UpdateProfileImage forwards a new avatar to the identity provider.
func (s *UserService) UpdateProfileImage(ctx context.Context, externalID, filename string, data []byte) (*IdentityView, error) {
	if len(data) == 0 {
		return nil, models.NewValidationError("File not provided")
	}
	if _, _, err := media.Detect(data); err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}

	u, err := s.identity.UpdateProfileImage(ctx, externalID, filename, bytes.NewReader(data))
	if err != nil {
		return nil, identityError(externalID, err)
	}
	return identityViewOf(u), nil
}

// FollowUser creates or removes the actor's follow edge to the target.
func (s *UserService) FollowUser(ctx context.Context, in FollowInput) (*FollowResult, error) {
	if in.TargetExternalID == "" {
		return nil, models.NewValidationError("Target user is required")
	}
	if in.TargetExternalID == in.Actor.ExternalID {
		return nil, models.NewValidationError("You cannot follow yourself")
	}

	target, err := s.userRepo.GetByExternalID(ctx, in.TargetExternalID)
	if err != nil {
		return nil, err
	}

	if !in.Followed {
		if _, err := s.followRepo.Unfollow(ctx, in.Actor.ID, target.ID); err != nil {
			return nil, err
		}
		return &FollowResult{ClerkID: target.ExternalID, Followed: false}, nil
	}

	created, err := s.followRepo.Follow(ctx, in.Actor.ID, target.ID)
	if err != nil {
		return nil, err
	}
	if created {
		s.dispatch.Emit(ctx, events.Event{
			Type:        events.NewFollower,
			AggregateID: "user:" + target.ExternalID,
			ActorID:     in.Actor.ExternalID,
			RecipientID: target.ID,
			Payload:     map[string]string{"follower_id": in.Actor.ExternalID},
		})
	}
	return &FollowResult{ClerkID: target.ExternalID, Followed: true}, nil
}

func (s *UserService) GetLikedPosts(ctx context.Context, userID uint) ([]models.PostSummary, error) {
	return s.postRepo.LikedBy(ctx, userID)
}

// ListUsers returns every user with identity details. Users whose identity
// cannot be resolved are left out and reported in Failed.
func (s *UserService) ListUsers(ctx context.Context) (*UserList, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ExternalID)
	}
	batch := s.identity.LookupMany(ctx, ids)

	out := &UserList{Users: make([]UserSummary, 0, len(users)), Failed: batch.Failed}
	for _, u := range users {
		ident, ok := batch.Users[u.ExternalID]
		if !ok {
			continue
		}
		out.Users = append(out.Users, UserSummary{
			Name:    ident.DisplayName(),
			UserID:  u.ID,
			ClerkID: u.ExternalID,
			Image:   ident.ImageURL,
		})
	}

	if len(batch.Failed) > 0 {
		observability.EnrichmentDrops.WithLabelValues("users").Add(float64(len(batch.Failed)))
		middleware.Logger.WarnContext(ctx, "users dropped from directory", slog.Any("external_ids", batch.Failed))
	}
	return out, nil
}

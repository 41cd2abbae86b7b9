package service

import (
	"context"
	"testing"

	"cookiegram/internal/identity"
	"cookiegram/internal/models"
	"cookiegram/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProfileFixture() (*userRepoStub, *fakeResolver, *ProfileService) {
	users := usersByExternalID(models.User{ID: 1, ExternalID: "user_a", Bio: "cakes"})
	users.hydrateFn = func(_ context.Context, u *models.User) (*repository.Connections, error) {
		u.PostIDs = []uint{5, 4}
		return &repository.Connections{
			Followers:  []models.User{{ID: 2, ExternalID: "user_b"}},
			Followings: []models.User{{ID: 2, ExternalID: "user_b"}, {ID: 3, ExternalID: "user_c"}},
		}, nil
	}
	resolver := newFakeResolver(
		&identity.User{ID: "user_a", FirstName: "Ada", ImageURL: "https://img/a.png"},
		&identity.User{ID: "user_b", FirstName: "Bo"},
		&identity.User{ID: "user_c", FirstName: "Cy"},
	)
	return users, resolver, NewProfileService(users, resolver)
}

func TestProfileService_Profile(t *testing.T) {
	users, _, svc := newProfileFixture()
	hydrate := users.hydrateFn
	calls := 0
	users.hydrateFn = func(ctx context.Context, u *models.User) (*repository.Connections, error) {
		calls++
		return hydrate(ctx, u)
	}

	view, err := svc.Profile(context.Background(), "user_a")
	require.NoError(t, err)
	assert.Equal(t, "Ada", view.Identity.FirstName)
	assert.Equal(t, "cakes", view.User.Description)
	assert.Equal(t, []uint{5, 4}, view.User.Posts)
	require.Len(t, view.User.Followers, 1)
	assert.Equal(t, UserCard{Author: Author{Creator: "Bo", ClerkID: "user_b"}, UserID: 2}, view.User.Followers[0])
	require.Len(t, view.User.Followings, 2)
	assert.Equal(t, "Cy", view.User.Followings[1].Creator)
	assert.Equal(t, 1, calls, "follow lists are loaded once per profile")
}

func TestProfileService_Profile_Errors(t *testing.T) {
	t.Run("missing id", func(t *testing.T) {
		_, _, svc := newProfileFixture()
		_, err := svc.Profile(context.Background(), "")
		assertValidationError(t, err)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, _, svc := newProfileFixture()
		_, err := svc.Profile(context.Background(), "user_x")
		assertAppError(t, err, models.CodeNotFound)
	})

	t.Run("follower lookup fails request", func(t *testing.T) {
		_, resolver, svc := newProfileFixture()
		resolver.fail["user_c"] = errBoom
		_, err := svc.Profile(context.Background(), "user_a")
		assertAppError(t, err, models.CodeUpstream)
	})

	t.Run("owner lookup fails request", func(t *testing.T) {
		_, resolver, svc := newProfileFixture()
		resolver.fail["user_a"] = errBoom
		_, err := svc.Profile(context.Background(), "user_a")
		assertAppError(t, err, models.CodeUpstream)
	})
}

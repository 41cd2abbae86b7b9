package service

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"strings"
	"testing"

	"cookiegram/internal/events"
	"cookiegram/internal/featureflags"
	"cookiegram/internal/identity"
	"cookiegram/internal/models"
	"cookiegram/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type userFixture struct {
	users    *userRepoStub
	follows  *followRepoStub
	posts    *postRepoStub
	resolver *fakeResolver
	notifier *recordingNotifier
	svc      *UserService
}

func newUserFixture() *userFixture {
	f := &userFixture{
		users:    noopUserRepo(),
		follows:  noopFollowRepo(),
		posts:    noopPostRepo(),
		resolver: newFakeResolver(),
		notifier: &recordingNotifier{},
	}
	dispatch := NewDispatcher(f.notifier, nil, featureflags.NewManager(""))
	f.svc = NewUserService(f.users, f.follows, f.posts, f.resolver, dispatch)
	return f
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

func TestUserService_EnsureUser(t *testing.T) {
	f := newUserFixture()

	_, err := f.svc.EnsureUser(context.Background(), " ")
	assertAppError(t, err, models.CodeUnauthenticated)

	u, err := f.svc.EnsureUser(context.Background(), "user_a")
	require.NoError(t, err)
	assert.Equal(t, "user_a", u.ExternalID)
	assert.Equal(t, models.DefaultBio, u.Bio)
}

func TestUserService_GetUser_Hydrates(t *testing.T) {
	f := newUserFixture()
	f.users.hydrateFn = func(_ context.Context, u *models.User) (*repository.Connections, error) {
		u.Followers = []string{"user_b"}
		u.Followings = []string{}
		u.PostIDs = []uint{3}
		return &repository.Connections{Followers: []models.User{{ID: 2, ExternalID: "user_b"}}}, nil
	}

	u, err := f.svc.GetUser(context.Background(), "user_a")
	require.NoError(t, err)
	assert.Equal(t, []string{"user_b"}, u.Followers)
	assert.Equal(t, []uint{3}, u.PostIDs)
}

func TestUserService_UpdateDescription(t *testing.T) {
	f := newUserFixture()

	_, err := f.svc.UpdateDescription(context.Background(), 1, strings.Repeat("é", 501))
	assertValidationError(t, err)

	u, err := f.svc.UpdateDescription(context.Background(), 1, strings.Repeat("é", 500))
	require.NoError(t, err)
	assert.Equal(t, 500, len([]rune(u.Bio)))
}

func TestUserService_CallerIdentity(t *testing.T) {
	f := newUserFixture()
	f.resolver.users["user_a"] = &identity.User{ID: "user_a", FirstName: "Ada", LastName: "Baker", ImageURL: "https://img/a.png"}

	view, err := f.svc.CallerIdentity(context.Background(), "user_a")
	require.NoError(t, err)
	assert.Equal(t, &IdentityView{UserID: "user_a", Image: "https://img/a.png", FirstName: "Ada", LastName: "Baker"}, view)

	_, err = f.svc.CallerIdentity(context.Background(), "user_missing")
	assertAppError(t, err, models.CodeNotFound)
}

func TestUserService_SetName(t *testing.T) {
	f := newUserFixture()

	_, err := f.svc.SetName(context.Background(), SetNameInput{ExternalID: "user_a", LastName: "Baker"})
	assertValidationError(t, err)

	_, err = f.svc.SetName(context.Background(), SetNameInput{ExternalID: "user_a", FirstName: strings.Repeat("a", 65)})
	assertValidationError(t, err)

	view, err := f.svc.SetName(context.Background(), SetNameInput{ExternalID: "user_a", FirstName: " Ada ", LastName: "Baker"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", view.FirstName)
	assert.Equal(t, []string{"user_a"}, f.resolver.renamed)

	f.resolver.fail["user_b"] = errBoom
	_, err = f.svc.SetName(context.Background(), SetNameInput{ExternalID: "user_b", FirstName: "Bo"})
	assertAppError(t, err, models.CodeUpstream)
}

func TestUserService_UpdateProfileImage(t *testing.T) {
	f := newUserFixture()

	_, err := f.svc.UpdateProfileImage(context.Background(), "user_a", "a.png", nil)
	assertValidationError(t, err)

	_, err = f.svc.UpdateProfileImage(context.Background(), "user_a", "a.txt", []byte("hello"))
	assertValidationError(t, err)

	view, err := f.svc.UpdateProfileImage(context.Background(), "user_a", "a.png", pngBytes(t))
	require.NoError(t, err)
	assert.NotEmpty(t, view.Image)
}

func TestUserService_FollowUser(t *testing.T) {
	actor := &models.User{ID: 1, ExternalID: "user_a"}

	t.Run("self follow", func(t *testing.T) {
		f := newUserFixture()
		_, err := f.svc.FollowUser(context.Background(), FollowInput{Actor: actor, TargetExternalID: "user_a", Followed: true})
		assertValidationError(t, err)
	})

	t.Run("unknown target", func(t *testing.T) {
		f := newUserFixture()
		f.users = usersByExternalID()
		f.svc.userRepo = f.users
		_, err := f.svc.FollowUser(context.Background(), FollowInput{Actor: actor, TargetExternalID: "user_x", Followed: true})
		assertAppError(t, err, models.CodeNotFound)
	})

	t.Run("new follow notifies target", func(t *testing.T) {
		f := newUserFixture()
		var follower, followee uint
		f.follows.followFn = func(_ context.Context, a, b uint) (bool, error) {
			follower, followee = a, b
			return true, nil
		}

		res, err := f.svc.FollowUser(context.Background(), FollowInput{Actor: actor, TargetExternalID: "user_b", Followed: true})
		require.NoError(t, err)
		assert.Equal(t, &FollowResult{ClerkID: "user_b", Followed: true}, res)
		assert.Equal(t, uint(1), follower)
		assert.Equal(t, uint(2), followee)
		require.Len(t, f.notifier.sent, 1)
		assert.Equal(t, uint(2), f.notifier.sent[0].UserID)
		assert.Equal(t, events.NewFollower, f.notifier.sent[0].Msg.Type)
	})

	t.Run("duplicate follow is silent", func(t *testing.T) {
		f := newUserFixture()
		f.follows.followFn = func(_ context.Context, _, _ uint) (bool, error) { return false, nil }

		res, err := f.svc.FollowUser(context.Background(), FollowInput{Actor: actor, TargetExternalID: "user_b", Followed: true})
		require.NoError(t, err)
		assert.True(t, res.Followed)
		assert.Empty(t, f.notifier.sent)
	})

	t.Run("unfollow", func(t *testing.T) {
		f := newUserFixture()
		called := false
		f.follows.unfollowFn = func(_ context.Context, _, _ uint) (bool, error) {
			called = true
			return false, nil
		}

		res, err := f.svc.FollowUser(context.Background(), FollowInput{Actor: actor, TargetExternalID: "user_b"})
		require.NoError(t, err)
		assert.False(t, res.Followed)
		assert.True(t, called)
		assert.Empty(t, f.notifier.sent)
	})
}

func TestUserService_ListUsers_BestEffort(t *testing.T) {
	f := newUserFixture()
	f.users.listFn = func(context.Context) ([]models.User, error) {
		return []models.User{
			{ID: 1, ExternalID: "user_a"},
			{ID: 2, ExternalID: "user_b"},
			{ID: 3, ExternalID: "user_c"},
		}, nil
	}
	f.resolver.users["user_a"] = &identity.User{ID: "user_a", FirstName: "Ada"}
	f.resolver.users["user_c"] = &identity.User{ID: "user_c", FirstName: "Cy", LastName: "Crumb"}
	f.resolver.fail["user_b"] = errBoom

	list, err := f.svc.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, list.Users, 2)
	assert.Equal(t, "Ada", list.Users[0].Name)
	assert.Equal(t, "Cy Crumb", list.Users[1].Name)
	assert.Equal(t, uint(3), list.Users[1].UserID)
	assert.Equal(t, []string{"user_b"}, list.Failed)
}

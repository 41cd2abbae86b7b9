package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"cookiegram/internal/events"
	"cookiegram/internal/identity"
	"cookiegram/internal/models"
	"cookiegram/internal/repository"
	"cookiegram/internal/notifications"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createForOwnerFn   func(context.Context, string, *models.Post) error
	getByIDFn          func(context.Context, uint) (*models.Post, error)
	updateFn           func(context.Context, *models.Post) error
	deleteFn           func(context.Context, uint) error
	feedFn             func(context.Context, uint, string, int, int) ([]*models.Post, error)
	searchFn           func(context.Context, string, int) ([]*models.Post, error)
	likedByFn          func(context.Context, uint) ([]models.PostSummary, error)
	getImagesFn        func(context.Context, []uint) ([]models.PostImage, error)
	likeFn             func(context.Context, uint, uint) (bool, error)
	unlikeFn           func(context.Context, uint, uint) (bool, error)
	countLikesFn       func(context.Context, uint) (int64, error)
	likerExternalIDsFn func(context.Context, []uint) (map[uint][]string, error)
	commentIDsFn       func(context.Context, []uint) (map[uint][]uint, error)
}

func (s *postRepoStub) CreateForOwner(ctx context.Context, externalID string, post *models.Post) error {
	return s.createForOwnerFn(ctx, externalID, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) Update(ctx context.Context, post *models.Post) error {
	return s.updateFn(ctx, post)
}
func (s *postRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *postRepoStub) Feed(ctx context.Context, viewerID uint, sort string, limit, offset int) ([]*models.Post, error) {
	return s.feedFn(ctx, viewerID, sort, limit, offset)
}
func (s *postRepoStub) Search(ctx context.Context, query string, limit int) ([]*models.Post, error) {
	return s.searchFn(ctx, query, limit)
}
func (s *postRepoStub) LikedBy(ctx context.Context, userID uint) ([]models.PostSummary, error) {
	return s.likedByFn(ctx, userID)
}
func (s *postRepoStub) GetImages(ctx context.Context, ids []uint) ([]models.PostImage, error) {
	return s.getImagesFn(ctx, ids)
}
func (s *postRepoStub) Like(ctx context.Context, userID, postID uint) (bool, error) {
	return s.likeFn(ctx, userID, postID)
}
func (s *postRepoStub) Unlike(ctx context.Context, userID, postID uint) (bool, error) {
	return s.unlikeFn(ctx, userID, postID)
}
func (s *postRepoStub) CountLikes(ctx context.Context, postID uint) (int64, error) {
	return s.countLikesFn(ctx, postID)
}
func (s *postRepoStub) LikerExternalIDs(ctx context.Context, postIDs []uint) (map[uint][]string, error) {
	return s.likerExternalIDsFn(ctx, postIDs)
}
func (s *postRepoStub) CommentIDs(ctx context.Context, postIDs []uint) (map[uint][]uint, error) {
	return s.commentIDsFn(ctx, postIDs)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createForOwnerFn: func(_ context.Context, _ string, p *models.Post) error { p.ID = 1; return nil },
		getByIDFn:        func(_ context.Context, id uint) (*models.Post, error) { return &models.Post{ID: id, UserID: 1}, nil },
		updateFn:         func(_ context.Context, _ *models.Post) error { return nil },
		deleteFn:         func(_ context.Context, _ uint) error { return nil },
		feedFn: func(_ context.Context, _ uint, _ string, _, _ int) ([]*models.Post, error) {
			return nil, nil
		},
		searchFn:     func(_ context.Context, _ string, _ int) ([]*models.Post, error) { return nil, nil },
		likedByFn:    func(_ context.Context, _ uint) ([]models.PostSummary, error) { return []models.PostSummary{}, nil },
		getImagesFn:  func(_ context.Context, _ []uint) ([]models.PostImage, error) { return []models.PostImage{}, nil },
		likeFn:       func(_ context.Context, _, _ uint) (bool, error) { return true, nil },
		unlikeFn:     func(_ context.Context, _, _ uint) (bool, error) { return true, nil },
		countLikesFn: func(_ context.Context, _ uint) (int64, error) { return 0, nil },
		likerExternalIDsFn: func(_ context.Context, _ []uint) (map[uint][]string, error) {
			return map[uint][]string{}, nil
		},
		commentIDsFn: func(_ context.Context, _ []uint) (map[uint][]uint, error) { return map[uint][]uint{}, nil },
	}
}

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByIDFn         func(context.Context, uint) (*models.User, error)
	getByExternalIDFn func(context.Context, string) (*models.User, error)
	ensureFn          func(context.Context, string) (*models.User, error)
	updateBioFn       func(context.Context, uint, string) (*models.User, error)
	listFn            func(context.Context) ([]models.User, error)
	hydrateFn         func(context.Context, *models.User) (*repository.Connections, error)
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	return s.getByExternalIDFn(ctx, externalID)
}
func (s *userRepoStub) Ensure(ctx context.Context, externalID string) (*models.User, error) {
	return s.ensureFn(ctx, externalID)
}
func (s *userRepoStub) UpdateBio(ctx context.Context, id uint, bio string) (*models.User, error) {
	return s.updateBioFn(ctx, id, bio)
}
func (s *userRepoStub) List(ctx context.Context) ([]models.User, error) {
	return s.listFn(ctx)
}
func (s *userRepoStub) Hydrate(ctx context.Context, user *models.User) (*repository.Connections, error) {
	return s.hydrateFn(ctx, user)
}

// usersByExternalID backs GetByExternalID and GetByID with a fixed user set.
func usersByExternalID(users ...models.User) *userRepoStub {
	stub := noopUserRepo()
	stub.getByExternalIDFn = func(_ context.Context, ext string) (*models.User, error) {
		for i := range users {
			if users[i].ExternalID == ext {
				u := users[i]
				return &u, nil
			}
		}
		return nil, models.NewNotFoundError("User", ext)
	}
	stub.getByIDFn = func(_ context.Context, id uint) (*models.User, error) {
		for i := range users {
			if users[i].ID == id {
				u := users[i]
				return &u, nil
			}
		}
		return nil, models.NewNotFoundError("User", id)
	}
	stub.listFn = func(context.Context) ([]models.User, error) { return users, nil }
	return stub
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn: func(_ context.Context, id uint) (*models.User, error) { return &models.User{ID: id}, nil },
		getByExternalIDFn: func(_ context.Context, ext string) (*models.User, error) {
			return &models.User{ID: 2, ExternalID: ext}, nil
		},
		ensureFn: func(_ context.Context, ext string) (*models.User, error) {
			return &models.User{ID: 1, ExternalID: ext, Bio: models.DefaultBio}, nil
		},
		updateBioFn: func(_ context.Context, id uint, bio string) (*models.User, error) {
			return &models.User{ID: id, Bio: bio}, nil
		},
		listFn: func(context.Context) ([]models.User, error) { return nil, nil },
		hydrateFn: func(_ context.Context, _ *models.User) (*repository.Connections, error) {
			return &repository.Connections{}, nil
		},
	}
}

// followRepoStub is a stub for repository.FollowRepository.
type followRepoStub struct {
	followFn   func(context.Context, uint, uint) (bool, error)
	unfollowFn func(context.Context, uint, uint) (bool, error)
}

func (s *followRepoStub) Follow(ctx context.Context, followerID, followeeID uint) (bool, error) {
	return s.followFn(ctx, followerID, followeeID)
}
func (s *followRepoStub) Unfollow(ctx context.Context, followerID, followeeID uint) (bool, error) {
	return s.unfollowFn(ctx, followerID, followeeID)
}

func noopFollowRepo() *followRepoStub {
	return &followRepoStub{
		followFn:   func(_ context.Context, _, _ uint) (bool, error) { return true, nil },
		unfollowFn: func(_ context.Context, _, _ uint) (bool, error) { return true, nil },
	}
}

// commentRepoStub is a stub for repository.CommentRepository.
type commentRepoStub struct {
	createFn     func(context.Context, *models.Comment) error
	getByIDFn    func(context.Context, uint) (*models.Comment, error)
	listByPostFn func(context.Context, uint) ([]*models.Comment, error)
	deleteFn     func(context.Context, uint) error
}

func (s *commentRepoStub) Create(ctx context.Context, comment *models.Comment) error {
	return s.createFn(ctx, comment)
}
func (s *commentRepoStub) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	return s.getByIDFn(ctx, id)
}
func (s *commentRepoStub) ListByPost(ctx context.Context, postID uint) ([]*models.Comment, error) {
	return s.listByPostFn(ctx, postID)
}
func (s *commentRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}

func noopCommentRepo() *commentRepoStub {
	return &commentRepoStub{
		createFn:     func(_ context.Context, c *models.Comment) error { c.ID = 1; return nil },
		getByIDFn:    func(_ context.Context, id uint) (*models.Comment, error) { return &models.Comment{ID: id}, nil },
		listByPostFn: func(_ context.Context, _ uint) ([]*models.Comment, error) { return nil, nil },
		deleteFn:     func(_ context.Context, _ uint) error { return nil },
	}
}

// fakeResolver serves identities from memory. IDs in fail return their error.
type fakeResolver struct {
	mu      sync.Mutex
	users   map[string]*identity.User
	fail    map[string]error
	renamed []string
}

func newFakeResolver(users ...*identity.User) *fakeResolver {
	r := &fakeResolver{users: map[string]*identity.User{}, fail: map[string]error{}}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeResolver) Lookup(_ context.Context, id string) (*identity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.fail[id]; ok {
		return nil, err
	}
	u, ok := r.users[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return u, nil
}

func (r *fakeResolver) LookupMany(ctx context.Context, ids []string) identity.BatchResult {
	res := identity.BatchResult{Users: map[string]*identity.User{}}
	seen := map[string]bool{}
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if u, err := r.Lookup(ctx, id); err == nil {
			res.Users[id] = u
		} else {
			res.Failed = append(res.Failed, id)
		}
	}
	return res
}

func (r *fakeResolver) UpdateName(_ context.Context, id, first, last string) (*identity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.fail[id]; ok {
		return nil, err
	}
	r.renamed = append(r.renamed, id)
	u := &identity.User{ID: id, FirstName: first, LastName: last}
	r.users[id] = u
	return u, nil
}

func (r *fakeResolver) UpdateProfileImage(_ context.Context, id, _ string, image io.Reader) (*identity.User, error) {
	if _, err := io.Copy(io.Discard, image); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.fail[id]; ok {
		return nil, err
	}
	u := &identity.User{ID: id, ImageURL: "https://img.example/" + id + ".webp"}
	r.users[id] = u
	return u, nil
}

type sentNotification struct {
	UserID uint
	Msg    notifications.Message
}

// recordingNotifier captures notifications. UserID 0 is a broadcast.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) NotifyUser(_ context.Context, userID uint, msg notifications.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{UserID: userID, Msg: msg})
	return nil
}

func (n *recordingNotifier) NotifyAll(ctx context.Context, msg notifications.Message) error {
	return n.NotifyUser(ctx, 0, msg)
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.Msg.Type)
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

var errBoom = errors.New("boom")

// assertAppError asserts that err is an AppError with the given code.
func assertAppError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodeValidation)
}

func assertUnauthorizedError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodeUnauthorized)
}

// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"cookiegram/internal/middleware"
	"cookiegram/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by the seeder, presets and tests.
type Factory struct {
	db   *gorm.DB
	opts Options
	rng  *rand.Rand
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := opts.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gofakeit.Seed(seed)
	//nolint:gosec // Weak random number generator is fine for seeding
	return &Factory{db: db, opts: opts, rng: rand.New(rand.NewSource(seed)), nextID: 1000}
}

// ExternalID returns a fake identity-provider ID in the provider's format.
func ExternalID() string {
	return "user_seed_" + strings.ReplaceAll(gofakeit.UUID(), "-", "")[:20]
}

// CreateUser constructs and persists a sample user.
// Optional override functions may modify the generated user before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user := &models.User{
		ExternalID: ExternalID(),
		Bio:        models.DefaultBio,
	}
	if f.rng.Float32() < 0.6 {
		user.Bio = fmt.Sprintf("Home cook. Currently obsessed with %s.", strings.ToLower(gofakeit.Dessert()))
	}

	for _, override := range overrides {
		override(user)
	}

	if f.opts.DryRun {
		f.nextID++
		user.ID = f.nextID
		middleware.Logger.Debug("[dry-run] CreateUser", slog.String("external_id", user.ExternalID))
		return user, nil
	}

	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// BuildPost constructs a post for user without persisting it. Useful for batching.
func (f *Factory) BuildPost(user *models.User, overrides ...func(*models.Post)) *models.Post {
	dish := f.dish()
	post := &models.Post{
		UserID:      user.ID,
		ImageURL:    fmt.Sprintf("https://picsum.photos/seed/%s/800/800", gofakeit.UUID()),
		Description: fmt.Sprintf("%s %s", dish, gofakeit.Sentence(6)),
	}
	if f.rng.Float32() < 0.7 {
		post.Recipe = f.recipe()
	}

	// realistic created_at spread
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	daysBack := f.rng.Intn(maxDays)
	hoursBack := f.rng.Intn(24)
	minsBack := f.rng.Intn(60)
	post.CreatedAt = time.Now().Add(-time.Duration(daysBack)*24*time.Hour - time.Duration(hoursBack)*time.Hour - time.Duration(minsBack)*time.Minute)
	post.UpdatedAt = post.CreatedAt

	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePost constructs and persists a sample post for the given user.
func (f *Factory) CreatePost(user *models.User, overrides ...func(*models.Post)) (*models.Post, error) {
	post := f.BuildPost(user, overrides...)
	if err := f.CreatePostsBatch([]*models.Post{post}); err != nil {
		return nil, err
	}
	return post, nil
}

// CreatePostsBatch persists multiple posts in a single DB call when possible.
func (f *Factory) CreatePostsBatch(posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	if f.opts.DryRun {
		for _, p := range posts {
			f.nextID++
			p.ID = f.nextID
		}
		middleware.Logger.Debug("[dry-run] CreatePostsBatch", slog.Int("count", len(posts)))
		return nil
	}
	return f.db.CreateInBatches(posts, 100).Error
}

// CreateComment constructs and persists a sample comment on post authored by user.
func (f *Factory) CreateComment(user *models.User, post *models.Post, overrides ...func(*models.Comment)) (*models.Comment, error) {
	comment := &models.Comment{
		Content:   f.commentText(),
		UserID:    user.ID,
		PostID:    post.ID,
		CreatedAt: post.CreatedAt.Add(time.Duration(f.rng.Intn(72*60)) * time.Minute),
	}

	for _, override := range overrides {
		override(comment)
	}

	if f.opts.DryRun {
		f.nextID++
		comment.ID = f.nextID
		return comment, nil
	}
	if err := f.db.Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// CreateLike persists a like from user on post. Repeated likes are ignored.
func (f *Factory) CreateLike(user *models.User, post *models.Post) error {
	if f.opts.DryRun {
		return nil
	}
	like := &models.Like{UserID: user.ID, PostID: post.ID}
	return f.db.Clauses(clause.OnConflict{DoNothing: true}).Create(like).Error
}

// CreateFollow persists a follow edge. Self-follows and repeats are ignored.
func (f *Factory) CreateFollow(follower, followee *models.User) error {
	if f.opts.DryRun || follower.ID == followee.ID {
		return nil
	}
	follow := &models.Follow{FollowerID: follower.ID, FolloweeID: followee.ID}
	return f.db.Clauses(clause.OnConflict{DoNothing: true}).Create(follow).Error
}

func (f *Factory) dish() string {
	pick := []func() string{gofakeit.Breakfast, gofakeit.Lunch, gofakeit.Dinner, gofakeit.Dessert, gofakeit.Snack}
	return pick[f.rng.Intn(len(pick))]()
}

func (f *Factory) recipe() string {
	n := 3 + f.rng.Intn(5)
	lines := make([]string, 0, n+1)
	for i := 0; i < n; i++ {
		ingredient := gofakeit.Fruit()
		if f.rng.Intn(2) == 0 {
			ingredient = gofakeit.Vegetable()
		}
		lines = append(lines, fmt.Sprintf("- %d %s %s", 1+f.rng.Intn(4), gofakeit.RandomString([]string{"cups", "tbsp", "tsp", "pinches"}), strings.ToLower(ingredient)))
	}
	lines = append(lines, fmt.Sprintf("Bake at %d°F for %d minutes.", 325+25*f.rng.Intn(4), 10+5*f.rng.Intn(10)))
	return strings.Join(lines, "\n")
}

func (f *Factory) commentText() string {
	openers := []string{"This looks amazing!", "Saving this for the weekend.", "Recipe please!", "Wow.", "Made this last night, so good."}
	if f.rng.Intn(3) == 0 {
		return gofakeit.Sentence(8)
	}
	return openers[f.rng.Intn(len(openers))]
}

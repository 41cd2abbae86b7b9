package seed

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"cookiegram/internal/middleware"
	"cookiegram/internal/models"

	"gorm.io/gorm"
)

// Options configure the seeder.
type Options struct {
	NumUsers int
	NumPosts int
	// MaxDays bounds how far back post timestamps are spread.
	MaxDays int
	// DryRun builds entities without writing them.
	DryRun bool
	// RandomSeed makes runs reproducible when non-zero.
	RandomSeed int64
}

// Preset is a named seeding profile.
type Preset struct {
	Users int
	Posts int
	// FollowRatio is the chance that any ordered pair of users has a follow edge.
	FollowRatio float64
	// MaxLikes and MaxComments bound engagement per post.
	MaxLikes    int
	MaxComments int
}

// Presets lists the profiles accepted by ApplyPreset.
var Presets = map[string]Preset{
	"minimal":   {Users: 5, Posts: 10, FollowRatio: 0.5, MaxLikes: 3, MaxComments: 2},
	"bakery":    {Users: 50, Posts: 200, FollowRatio: 0.1, MaxLikes: 20, MaxComments: 6},
	"populated": {Users: 300, Posts: 2000, FollowRatio: 0.03, MaxLikes: 60, MaxComments: 12},
}

// PresetNames returns the preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Seeder populates the database with demo users, posts and engagement.
type Seeder struct {
	db      *gorm.DB
	opts    Options
	factory *Factory
}

// NewSeeder creates a Seeder for db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	return &Seeder{db: db, opts: opts, factory: NewFactory(db, opts)}
}

// Factory exposes the underlying entity factory.
func (s *Seeder) Factory() *Factory {
	return s.factory
}

// ClearAll removes every row from the domain tables, children first.
func (s *Seeder) ClearAll() error {
	if s.opts.DryRun {
		return nil
	}
	middleware.Logger.Info("clearing existing data")
	if s.db.Dialector.Name() == "postgres" {
		return s.db.Exec(`TRUNCATE TABLE comments, likes, follows, posts, users RESTART IDENTITY CASCADE`).Error
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, table := range []string{"comments", "likes", "follows", "posts", "users"} {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	})
}

// Seed runs SeedSocialMesh and SeedEngagement with the counts from Options.
func (s *Seeder) Seed() error {
	middleware.Logger.Info("starting database seeding",
		slog.Int("users", s.opts.NumUsers), slog.Int("posts", s.opts.NumPosts))

	users, err := s.SeedSocialMesh(s.opts.NumUsers, 0.1)
	if err != nil {
		return err
	}
	_, err = s.SeedEngagement(users, s.opts.NumPosts, 10, 4)
	return err
}

// ApplyPreset seeds the named preset.
func (s *Seeder) ApplyPreset(name string) error {
	p, ok := Presets[strings.ToLower(name)]
	if !ok {
		return fmt.Errorf("unknown preset %q (available: %s)", name, strings.Join(PresetNames(), ", "))
	}
	users, err := s.SeedSocialMesh(p.Users, p.FollowRatio)
	if err != nil {
		return err
	}
	_, err = s.SeedEngagement(users, p.Posts, p.MaxLikes, p.MaxComments)
	return err
}

// SeedSocialMesh creates count users and random follow edges between them.
func (s *Seeder) SeedSocialMesh(count int, followRatio float64) ([]*models.User, error) {
	users := make([]*models.User, 0, count)
	for i := 0; i < count; i++ {
		u, err := s.factory.CreateUser()
		if err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		users = append(users, u)
	}

	follows := 0
	for _, a := range users {
		for _, b := range users {
			if a.ID == b.ID || s.factory.rng.Float64() >= followRatio {
				continue
			}
			if err := s.factory.CreateFollow(a, b); err != nil {
				return nil, fmt.Errorf("failed to create follow: %w", err)
			}
			follows++
		}
	}

	middleware.Logger.Info("social mesh seeded", slog.Int("users", len(users)), slog.Int("follows", follows))
	return users, nil
}

// SeedEngagement creates numPosts posts spread across users, then likes and
// comments from random users.
func (s *Seeder) SeedEngagement(users []*models.User, numPosts, maxLikes, maxComments int) ([]*models.Post, error) {
	if len(users) == 0 || numPosts <= 0 {
		return nil, nil
	}

	posts := make([]*models.Post, 0, numPosts)
	for i := 0; i < numPosts; i++ {
		owner := users[s.factory.rng.Intn(len(users))]
		posts = append(posts, s.factory.BuildPost(owner))
	}
	if err := s.factory.CreatePostsBatch(posts); err != nil {
		return nil, fmt.Errorf("failed to create posts: %w", err)
	}

	likes, comments := 0, 0
	for _, post := range posts {
		for n := s.factory.rng.Intn(maxLikes + 1); n > 0; n-- {
			if err := s.factory.CreateLike(users[s.factory.rng.Intn(len(users))], post); err != nil {
				return nil, fmt.Errorf("failed to create like: %w", err)
			}
			likes++
		}
		for n := s.factory.rng.Intn(maxComments + 1); n > 0; n-- {
			if _, err := s.factory.CreateComment(users[s.factory.rng.Intn(len(users))], post); err != nil {
				return nil, fmt.Errorf("failed to create comment: %w", err)
			}
			comments++
		}
	}

	middleware.Logger.Info("engagement seeded",
		slog.Int("posts", len(posts)), slog.Int("likes", likes), slog.Int("comments", comments))
	return posts, nil
}

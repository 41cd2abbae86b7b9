package seed

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cookiegram/internal/database"
	"cookiegram/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "seed.db") + "?_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(database.PersistentModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func count(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestBuildPost_TimestampsAndFields(t *testing.T) {
	opts := Options{DryRun: true, MaxDays: 30, RandomSeed: 42}
	f := NewFactory(nil, opts)
	user := &models.User{ID: 1}

	for i := 0; i < 20; i++ {
		p := f.BuildPost(user)
		if p.UserID != 1 {
			t.Fatalf("expected owner 1, got %d", p.UserID)
		}
		if !strings.HasPrefix(p.ImageURL, "https://") {
			t.Fatalf("unexpected image url: %s", p.ImageURL)
		}
		if p.Description == "" {
			t.Fatalf("expected a description")
		}
		if time.Since(p.CreatedAt) > (time.Duration(opts.MaxDays)+1)*24*time.Hour {
			t.Fatalf("created_at too old: %v", p.CreatedAt)
		}
	}
}

func TestExternalID_Format(t *testing.T) {
	id := ExternalID()
	if !strings.HasPrefix(id, "user_seed_") || len(id) != len("user_seed_")+20 {
		t.Fatalf("unexpected external id %q", id)
	}
	if id == ExternalID() {
		t.Fatalf("expected distinct ids")
	}
}

func TestDryRun_WritesNothing(t *testing.T) {
	db := openTestDB(t)
	s := NewSeeder(db, Options{DryRun: true, NumUsers: 4, NumPosts: 6})
	if err := s.Seed(); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if n := count(t, db, &models.User{}); n != 0 {
		t.Fatalf("dry run wrote %d users", n)
	}
}

func TestSeedSocialMesh_NoSelfFollows(t *testing.T) {
	db := openTestDB(t)
	s := NewSeeder(db, Options{RandomSeed: 7})

	users, err := s.SeedSocialMesh(6, 1.0)
	if err != nil {
		t.Fatalf("seed social mesh: %v", err)
	}
	if len(users) != 6 {
		t.Fatalf("expected 6 users, got %d", len(users))
	}

	// Ratio 1.0 connects every ordered pair of distinct users.
	if n := count(t, db, &models.Follow{}); n != 30 {
		t.Fatalf("expected 30 follows, got %d", n)
	}
	var self int64
	db.Model(&models.Follow{}).Where("follower_id = followee_id").Count(&self)
	if self != 0 {
		t.Fatalf("expected no self follows, got %d", self)
	}
}

func TestSeedEngagement(t *testing.T) {
	db := openTestDB(t)
	s := NewSeeder(db, Options{RandomSeed: 11})

	users, err := s.SeedSocialMesh(5, 0)
	if err != nil {
		t.Fatalf("seed users: %v", err)
	}
	posts, err := s.SeedEngagement(users, 12, 4, 3)
	if err != nil {
		t.Fatalf("seed engagement: %v", err)
	}
	if len(posts) != 12 || count(t, db, &models.Post{}) != 12 {
		t.Fatalf("expected 12 posts")
	}

	var maxLikes int64
	db.Raw(`SELECT COALESCE(MAX(c), 0) FROM (SELECT COUNT(*) AS c FROM likes GROUP BY post_id) t`).Scan(&maxLikes)
	if maxLikes > 4 {
		t.Fatalf("post has %d likes, max is 4", maxLikes)
	}
}

func TestApplyPreset(t *testing.T) {
	db := openTestDB(t)
	s := NewSeeder(db, Options{RandomSeed: 3})

	if err := s.ApplyPreset("nope"); err == nil || !strings.Contains(err.Error(), "minimal") {
		t.Fatalf("expected unknown preset error listing presets, got %v", err)
	}
	if err := s.ApplyPreset("Minimal"); err != nil {
		t.Fatalf("apply preset: %v", err)
	}
	if n := count(t, db, &models.User{}); n != int64(Presets["minimal"].Users) {
		t.Fatalf("expected %d users, got %d", Presets["minimal"].Users, n)
	}

	if err := s.ClearAll(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	for _, m := range []any{&models.User{}, &models.Post{}, &models.Like{}, &models.Comment{}, &models.Follow{}} {
		if n := count(t, db, m); n != 0 {
			t.Fatalf("expected empty table for %T, got %d rows", m, n)
		}
	}
}

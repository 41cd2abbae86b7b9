package seed

import (
	"bytes"
	"embed"
	"fmt"
	"io"
	"log/slog"
	"os"

	"cookiegram/internal/middleware"
	"cookiegram/internal/models"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:embed fixtures/*.yaml
var fixtureFS embed.FS

// Fixture is a hand-written data set keyed by identity-provider IDs.
type Fixture struct {
	Users   []FixtureUser   `yaml:"users"`
	Follows []FixtureFollow `yaml:"follows"`
	Posts   []FixturePost   `yaml:"posts"`
}

// FixtureUser is one local user record.
type FixtureUser struct {
	ClerkID     string `yaml:"clerk_id"`
	Description string `yaml:"description"`
}

// FixtureFollow is a follow edge between two fixture users.
type FixtureFollow struct {
	Follower string `yaml:"follower"`
	Followee string `yaml:"followee"`
}

// FixturePost is a post with its likes and comments.
type FixturePost struct {
	Owner       string           `yaml:"owner"`
	ImageURL    string           `yaml:"image_url"`
	Description string           `yaml:"description"`
	Recipe      string           `yaml:"recipe"`
	Likes       []string         `yaml:"likes"`
	Comments    []FixtureComment `yaml:"comments"`
}

// FixtureComment is a comment on a fixture post.
type FixtureComment struct {
	Author  string `yaml:"author"`
	Content string `yaml:"content"`
}

// LoadFixture decodes a YAML fixture. Unknown keys are rejected.
func LoadFixture(r io.Reader) (*Fixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var fx Fixture
	if err := dec.Decode(&fx); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	if err := fx.validate(); err != nil {
		return nil, err
	}
	return &fx, nil
}

// LoadFixtureFile loads a fixture from path, or the embedded demo fixture
// when path is "demo".
func LoadFixtureFile(path string) (*Fixture, error) {
	if path == "demo" {
		return DemoFixture()
	}
	raw, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return LoadFixture(bytes.NewReader(raw))
}

// DemoFixture returns the embedded demo data set.
func DemoFixture() (*Fixture, error) {
	raw, err := fixtureFS.ReadFile("fixtures/demo.yaml")
	if err != nil {
		return nil, err
	}
	return LoadFixture(bytes.NewReader(raw))
}

func (fx *Fixture) validate() error {
	known := make(map[string]bool, len(fx.Users))
	for _, u := range fx.Users {
		if u.ClerkID == "" {
			return fmt.Errorf("fixture user without clerk_id")
		}
		known[u.ClerkID] = true
	}
	check := func(what, id string) error {
		if !known[id] {
			return fmt.Errorf("fixture %s references unknown user %q", what, id)
		}
		return nil
	}
	for _, f := range fx.Follows {
		if err := check("follow", f.Follower); err != nil {
			return err
		}
		if err := check("follow", f.Followee); err != nil {
			return err
		}
		if f.Follower == f.Followee {
			return fmt.Errorf("fixture follow: %q cannot follow themselves", f.Follower)
		}
	}
	for i, p := range fx.Posts {
		if err := check("post owner", p.Owner); err != nil {
			return err
		}
		if p.ImageURL == "" {
			return fmt.Errorf("fixture post %d has no image_url", i)
		}
		for _, l := range p.Likes {
			if err := check("like", l); err != nil {
				return err
			}
		}
		for _, c := range p.Comments {
			if err := check("comment author", c.Author); err != nil {
				return err
			}
		}
	}
	return nil
}

// ApplyFixture writes fx in a single transaction. Users that already exist
// are reused, so applying a fixture twice only duplicates posts.
func (s *Seeder) ApplyFixture(fx *Fixture) error {
	if s.opts.DryRun {
		middleware.Logger.Info("[dry-run] fixture", slog.Int("users", len(fx.Users)), slog.Int("posts", len(fx.Posts)))
		return nil
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		ids := make(map[string]uint, len(fx.Users))
		for _, fu := range fx.Users {
			bio := fu.Description
			if bio == "" {
				bio = models.DefaultBio
			}
			u := models.User{ExternalID: fu.ClerkID, Bio: bio}
			if err := tx.Where(models.User{ExternalID: fu.ClerkID}).Attrs(models.User{Bio: bio}).FirstOrCreate(&u).Error; err != nil {
				return fmt.Errorf("user %s: %w", fu.ClerkID, err)
			}
			ids[fu.ClerkID] = u.ID
		}

		for _, f := range fx.Follows {
			edge := models.Follow{FollowerID: ids[f.Follower], FolloweeID: ids[f.Followee]}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&edge).Error; err != nil {
				return fmt.Errorf("follow %s -> %s: %w", f.Follower, f.Followee, err)
			}
		}

		for _, fp := range fx.Posts {
			post := models.Post{
				UserID:      ids[fp.Owner],
				ImageURL:    fp.ImageURL,
				Description: fp.Description,
				Recipe:      fp.Recipe,
			}
			if err := tx.Create(&post).Error; err != nil {
				return fmt.Errorf("post by %s: %w", fp.Owner, err)
			}
			for _, liker := range fp.Likes {
				like := models.Like{UserID: ids[liker], PostID: post.ID}
				if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&like).Error; err != nil {
					return fmt.Errorf("like by %s: %w", liker, err)
				}
			}
			for _, fc := range fp.Comments {
				c := models.Comment{UserID: ids[fc.Author], PostID: post.ID, Content: fc.Content}
				if err := tx.Create(&c).Error; err != nil {
					return fmt.Errorf("comment by %s: %w", fc.Author, err)
				}
			}
		}

		middleware.Logger.Info("fixture applied",
			slog.Int("users", len(fx.Users)), slog.Int("follows", len(fx.Follows)), slog.Int("posts", len(fx.Posts)))
		return nil
	})
}

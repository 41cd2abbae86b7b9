// Command main runs the database seeder for CookieGram.
package main

import (
	"context"
	"flag"
	"log"
	"strings"

	"cookiegram/internal/config"
	"cookiegram/internal/database"
	"cookiegram/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 50, "Number of users to create")
	numPosts := flag.Int("posts", 200, "Number of posts to create")
	shouldClean := flag.Bool("clean", false, "Clean database before seeding")
	preset := flag.String("preset", "", "Apply a seeder preset ("+strings.Join(seed.PresetNames(), ", ")+")")
	fixture := flag.String("fixture", "", `Apply a YAML fixture file, or "demo" for the built-in one`)
	dryRun := flag.Bool("dry-run", false, "Build entities without writing them")
	randomSeed := flag.Int64("seed", 0, "Random seed for reproducible data (0 = time based)")
	flag.Parse()

	log.Println("🍪 CookieGram Seeder")
	log.Println("====================")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.ApplySchema(context.Background(), db, cfg); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}

	s := seed.NewSeeder(db, seed.Options{
		NumUsers:   *numUsers,
		NumPosts:   *numPosts,
		DryRun:     *dryRun,
		RandomSeed: *randomSeed,
	})

	if *shouldClean {
		if err := s.ClearAll(); err != nil {
			log.Fatalf("❌ Cleanup failed: %v", err)
		}
	}

	switch {
	case *fixture != "":
		fx, err := seed.LoadFixtureFile(*fixture)
		if err != nil {
			log.Fatalf("❌ Fixture load failed: %v", err)
		}
		if err := s.ApplyFixture(fx); err != nil {
			log.Fatalf("❌ Fixture seeding failed: %v", err)
		}
	case *preset != "":
		log.Printf("Applying preset: %s (ignoring -users and -posts)\n", *preset)
		if err := s.ApplyPreset(*preset); err != nil {
			log.Fatalf("❌ Preset seeding failed: %v", err)
		}
	default:
		log.Printf("Target: %d users, %d posts, clean=%v\n", *numUsers, *numPosts, *shouldClean)
		if err := s.Seed(); err != nil {
			log.Fatalf("❌ Seeding failed: %v", err)
		}
	}

	log.Println("✨ All done! Names and avatars only resolve for IDs that exist in the identity provider.")
}

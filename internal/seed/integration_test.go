//go:build integration

package seed

import (
	"context"
	"net/url"
	"os"
	"strings"
	"testing"

	"cookiegram/internal/config"
	"cookiegram/internal/database"
	"cookiegram/internal/models"
)

func parseDatabaseURLToConfig(dsn string) (*config.Config, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, err
	}
	password := ""
	if u.User != nil {
		password, _ = u.User.Password()
	}
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "5432"
	}
	dbname := strings.TrimPrefix(u.Path, "/")
	cfg := &config.Config{
		DBHost:       host,
		DBPort:       port,
		DBUser:       u.User.Username(),
		DBPassword:   password,
		DBName:       dbname,
		DBSSLMode:    "disable",
		Env:          "test",
		DBSchemaMode: "auto",
	}
	return cfg, nil
}

func TestIntegration_SeedPresetAuto(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration seed test")
	}
	cfg, err := parseDatabaseURLToConfig(dsn)
	if err != nil {
		t.Fatalf("failed parse dsn: %v", err)
	}
	db, err := database.Connect(cfg)
	if err != nil {
		t.Fatalf("db connect failed: %v", err)
	}
	if err := database.ApplySchema(context.Background(), db, cfg); err != nil {
		t.Fatalf("apply schema failed: %v", err)
	}

	seeder := NewSeeder(db, Options{MaxDays: 30})
	if err := seeder.ClearAll(); err != nil {
		t.Fatalf("truncate failed: %v", err)
	}
	if err := seeder.ApplyPreset("minimal"); err != nil {
		t.Fatalf("ApplyPreset failed: %v", err)
	}

	var cnt int64
	if err := db.Model(&models.Post{}).Count(&cnt).Error; err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if cnt == 0 {
		t.Fatalf("expected seeded posts, got 0")
	}
}

package repository

import (
	"fmt"
	"path/filepath"
	"testing"

	"cookiegram/internal/database"
	"cookiegram/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return gormDB, mock
}

// setupSQLiteDB returns a migrated, file-backed sqlite database with foreign keys on.
func setupSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "repo.db") + "?_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, externalID string) *models.User {
	t.Helper()
	u := &models.User{ExternalID: externalID, Bio: models.DefaultBio}
	require.NoError(t, db.Create(u).Error)
	return u
}

func seedPost(t *testing.T, db *gorm.DB, owner *models.User, n int) *models.Post {
	t.Helper()
	p := &models.Post{
		UserID:      owner.ID,
		ImageURL:    fmt.Sprintf("https://img.example/%d.webp", n),
		Description: fmt.Sprintf("cake number %d", n),
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

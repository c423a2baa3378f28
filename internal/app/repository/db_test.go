package repository

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/lunarhue/linkmark/internal/app/model"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("access sql db: %v", err)
	}
	// A single connection keeps every session on the same in-memory database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&model.Link{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// seedLink inserts a row directly, bypassing the repository, with the derived
// fields filled the way the repository would fill them.
func seedLink(t *testing.T, db *gorm.DB, owner uuid.UUID, rawURL, title string, privacy model.LinkPrivacy) *model.Link {
	t.Helper()

	link := &model.Link{
		ID:             uuid.New(),
		LinkURL:        rawURL,
		SearchableURL:  model.NormalizeURL(rawURL),
		Title:          title,
		Privacy:        privacy,
		CreationDate:   time.Now().UTC(),
		LastUpdate:     time.Now().UTC(),
		CreatingUserID: owner,
	}
	if err := db.Create(link).Error; err != nil {
		t.Fatalf("seed link %q: %v", rawURL, err)
	}
	return link
}

package repo

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-sufi-platform/internal/domain"
)

// newTestDB opens a private in-memory database with foreign keys enforced
// and the full schema migrated.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func mustUser(t *testing.T, db *gorm.DB, name string) *domain.User {
	t.Helper()
	u := &domain.User{ID: uuid.NewString(), Username: name, Email: name + "@example.com"}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user %s: %v", name, err)
	}
	return u
}

func mustContent(t *testing.T, db *gorm.DB, author *domain.User, title string, at time.Time) *domain.Content {
	t.Helper()
	var aid *string
	if author != nil {
		id := author.ID
		aid = &id
	}
	c := &domain.Content{
		ID:          uuid.NewString(),
		AuthorID:    aid,
		Title:       title,
		Text:        "body of " + title,
		ContentType: domain.TypeInsightfulEssay,
		Topic:       domain.TopicHistory,
		Language:    domain.LanguageEnglish,
		IsPublished: true,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	if err := db.Omit("Author").Create(c).Error; err != nil {
		t.Fatalf("seed content %s: %v", title, err)
	}
	return c
}

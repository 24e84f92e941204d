package services

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tbourn/go-sufi-platform/internal/domain"
	"github.com/tbourn/go-sufi-platform/internal/repo"
)

// ---------- test helpers ----------

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
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

	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name string) *domain.User {
	t.Helper()
	ctx := context.Background()
	u, err := repo.CreateUser(ctx, db, name, name+"@example.com")
	if err != nil {
		t.Fatalf("seed user %s: %v", name, err)
	}
	if _, err := repo.CreateProfile(ctx, db, u.ID); err != nil {
		t.Fatalf("seed profile %s: %v", name, err)
	}
	return u
}

func seedContent(t *testing.T, db *gorm.DB, author *domain.User, title string) *domain.Content {
	t.Helper()
	c := &domain.Content{
		Title:       title,
		Text:        "<p>body of " + title + "</p>",
		ContentType: domain.TypeInsightfulEssay,
		Topic:       domain.TopicHistory,
		Language:    domain.LanguageEnglish,
		IsPublished: true,
		Image:       domain.DefaultImageFor(domain.TypeInsightfulEssay),
	}
	if author != nil {
		id := author.ID
		c.AuthorID = &id
	}
	if err := repo.CreateContent(context.Background(), db, c); err != nil {
		t.Fatalf("seed content %s: %v", title, err)
	}
	return c
}

func seedComment(t *testing.T, db *gorm.DB, content *domain.Content, author *domain.User, text string) *domain.Comment {
	t.Helper()
	c, err := repo.CreateComment(context.Background(), db, content.ID, author.ID, text)
	if err != nil {
		t.Fatalf("seed comment: %v", err)
	}
	return c
}

func countRows(t *testing.T, db *gorm.DB, model any, where string, args ...any) int64 {
	t.Helper()
	var n int64
	q := db.Model(model)
	if where != "" {
		q = q.Where(where, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func likeCountOf(t *testing.T, db *gorm.DB, table, id string) int64 {
	t.Helper()
	var n int64
	if err := db.Table(table).Select("like_count").Where("id = ?", id).Scan(&n).Error; err != nil {
		t.Fatalf("like_count: %v", err)
	}
	return n
}

// ---------- fakes ----------

type sentMail struct {
	To      []string
	Subject string
	Body    string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(_ context.Context, to []string, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return m.err
}

func (m *fakeMailer) last() sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMail{}
	}
	return m.sent[len(m.sent)-1]
}

type memStore struct {
	mu      sync.Mutex
	objects map[string]string
	deleted []string
	delErr  error
}

func newMemStore() *memStore { return &memStore{objects: map[string]string{}} }

func (s *memStore) Put(_ context.Context, name string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := "uploads/" + uuid.NewString() + "-" + name
	s.objects[id] = string(b)
	return id, nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, id)
	if s.delErr != nil {
		return s.delErr
	}
	delete(s.objects, id)
	return nil
}

func (s *memStore) URLOf(id string) string { return "/media/" + id }

func daysAgo(n int) time.Time { return time.Now().UTC().Add(-time.Duration(n) * 24 * time.Hour) }

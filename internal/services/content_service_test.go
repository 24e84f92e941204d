package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tbourn/go-sufi-platform/internal/domain"
	"github.com/tbourn/go-sufi-platform/internal/repo"
)

func validInput() ContentInput {
	return ContentInput{
		Title:        "The <b>Path</b> of Love",
		Introduction: "<p>An <em>introduction</em></p><script>x()</script>",
		Text:         "<p>Body text</p>",
		ContentType:  domain.TypeAcademicArticle,
		Topic:        domain.TopicConcepts,
	}
}

func TestContentService_Create(t *testing.T) {
	db := newTestDB(t)
	s := &ContentService{DB: db}
	author := seedUser(t, db, "author")

	c, err := s.Create(context.Background(), author.ID, validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.Title != "The Path of Love" {
		t.Fatalf("title should be plain text, got %q", c.Title)
	}
	if strings.Contains(c.Introduction, "script") || !strings.Contains(c.Introduction, "<em>") {
		t.Fatalf("introduction not sanitized as rich text: %q", c.Introduction)
	}
	if c.Language != domain.LanguageEnglish || !c.IsPublished {
		t.Fatalf("defaults not applied: lang=%q published=%v", c.Language, c.IsPublished)
	}
	if c.Image != "img/academic_article.jpg" {
		t.Fatalf("default image = %q", c.Image)
	}
	if c.Author == nil || c.Author.Username != "author" {
		t.Fatalf("author not loaded: %+v", c.Author)
	}
}

func TestContentService_Create_Validation(t *testing.T) {
	db := newTestDB(t)
	s := &ContentService{DB: db}
	author := seedUser(t, db, "author")

	tests := []struct {
		name  string
		mut   func(*ContentInput)
		field string
		want  error
	}{
		{"empty title", func(in *ContentInput) { in.Title = "<i> </i>" }, "title", ErrEmptyTitle},
		{"long title", func(in *ContentInput) { in.Title = strings.Repeat("x", 101) }, "title", ErrTitleTooLong},
		{"empty text", func(in *ContentInput) { in.Text = "<script>only()</script>" }, "text", ErrEmptyText},
		{"bad type", func(in *ContentInput) { in.ContentType = "poem" }, "content_type", ErrInvalidChoice},
		{"bad topic", func(in *ContentInput) { in.Topic = domain.TopicAll }, "topic", ErrInvalidChoice},
		{"bad language", func(in *ContentInput) { in.Language = "fr" }, "language", ErrInvalidChoice},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mut(&in)
			_, err := s.Create(context.Background(), author.ID, in)
			var fe *FieldError
			if !errors.As(err, &fe) || fe.Field != tc.field || !errors.Is(err, tc.want) {
				t.Fatalf("got %v; want %s/%v", err, tc.field, tc.want)
			}
		})
	}
}

func TestContentService_UpdateAndDelete_Ownership(t *testing.T) {
	db := newTestDB(t)
	store := newMemStore()
	s := &ContentService{DB: db, Assets: store}
	ctx := context.Background()
	author := seedUser(t, db, "author")
	other := seedUser(t, db, "other")

	in := validInput()
	in.Image = strings.NewReader("jpeg")
	in.ImageName = "first.jpg"
	c, err := s.Create(ctx, author.ID, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	firstImage := c.Image

	if _, err := s.Update(ctx, other.ID, c.ID, validInput()); !errors.Is(err, ErrForbiddenContent) {
		t.Fatalf("expected ErrForbiddenContent, got %v", err)
	}
	if err := s.Delete(ctx, other.ID, c.ID); !errors.Is(err, ErrForbiddenContent) {
		t.Fatalf("expected ErrForbiddenContent, got %v", err)
	}

	up := validInput()
	up.Title = "Renamed"
	draft := false
	up.IsPublished = &draft
	up.Image = strings.NewReader("png")
	up.ImageName = "second.png"
	got, err := s.Update(ctx, author.ID, c.ID, up)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Title != "Renamed" || got.IsPublished || got.Image == firstImage {
		t.Fatalf("update not applied: %+v", got)
	}
	if len(store.deleted) != 1 || store.deleted[0] != firstImage {
		t.Fatalf("old image should be deleted after commit, deleted=%v", store.deleted)
	}

	if err := s.Delete(ctx, author.ID, c.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(store.deleted) != 2 || store.deleted[1] != got.Image {
		t.Fatalf("image should be deleted with content, deleted=%v", store.deleted)
	}
	if _, err := s.Get(ctx, c.ID); !errors.Is(err, ErrContentNotFound) {
		t.Fatalf("expected ErrContentNotFound, got %v", err)
	}
}

func TestContentService_Update_SwitchesDefaultImage(t *testing.T) {
	db := newTestDB(t)
	store := newMemStore()
	s := &ContentService{DB: db, Assets: store}
	ctx := context.Background()
	author := seedUser(t, db, "author")

	c, err := s.Create(ctx, author.ID, validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	in := validInput()
	in.ContentType = domain.TypeBookReview
	got, err := s.Update(ctx, author.ID, c.ID, in)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Image != "img/book_review.jpg" {
		t.Fatalf("default image should follow the type, got %q", got.Image)
	}
	if err := s.Delete(ctx, author.ID, c.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(store.deleted) != 0 {
		t.Fatalf("stock images are never deleted, deleted=%v", store.deleted)
	}
}

func TestContentService_Detail_CountsEveryView(t *testing.T) {
	db := newTestDB(t)
	s := &ContentService{DB: db}
	ctx := context.Background()
	author := seedUser(t, db, "author")
	c := seedContent(t, db, author, "viewed")

	const n = 5
	var last *domain.Content
	for i := 0; i < n; i++ {
		got, err := s.Detail(ctx, c.ID)
		if err != nil {
			t.Fatalf("Detail: %v", err)
		}
		last = got
	}
	if last.ViewCount != n {
		t.Fatalf("view_count = %d, want %d", last.ViewCount, n)
	}
	if _, err := s.Detail(ctx, "missing"); !errors.Is(err, ErrContentNotFound) {
		t.Fatalf("expected ErrContentNotFound, got %v", err)
	}
}

func TestContentService_Listings(t *testing.T) {
	db := newTestDB(t)
	s := &ContentService{DB: db}
	ctx := context.Background()
	a := seedUser(t, db, "a")
	b := seedUser(t, db, "b")
	viewer := seedUser(t, db, "viewer")

	seedContent(t, db, a, "a1")
	seedContent(t, db, b, "b1")
	draft := seedContent(t, db, a, "a-draft")
	if err := db.Model(&domain.Content{}).Where("id = ?", draft.ID).Update("is_published", false).Error; err != nil {
		t.Fatalf("unpublish: %v", err)
	}
	if err := db.Create(&domain.Follow{ID: "f1", FollowerID: viewer.ID, FolloweeID: a.ID}).Error; err != nil {
		t.Fatalf("follow: %v", err)
	}

	_, total, err := s.ListTopic(ctx, domain.TopicAll, "", "", false, 1, 10)
	if err != nil || total != 2 {
		t.Fatalf("all topics: total=%d err=%v", total, err)
	}
	items, total, err := s.ListTopic(ctx, domain.TopicHistory, "", viewer.ID, true, 1, 10)
	if err != nil || total != 1 || items[0].Title != "a1" {
		t.Fatalf("followed only: %v %d %v", items, total, err)
	}
	_, total, err = s.ListTopic(ctx, domain.TopicSects, "", "", false, 1, 10)
	if err != nil || total != 0 {
		t.Fatalf("empty topic: %d %v", total, err)
	}
	if _, _, err := s.ListTopic(ctx, "poetry", "", "", false, 1, 10); !errors.Is(err, ErrInvalidChoice) {
		t.Fatalf("expected ErrInvalidChoice, got %v", err)
	}

	_, total, err = s.Dashboard(ctx, a.ID, "", 1, 10)
	if err != nil || total != 2 {
		t.Fatalf("dashboard includes drafts: %d %v", total, err)
	}
	_, total, err = s.ListByAuthor(ctx, a.ID, "", 1, 10)
	if err != nil || total != 1 {
		t.Fatalf("author list hides drafts: %d %v", total, err)
	}
	_, total, err = s.ListByAuthor(ctx, a.ID, domain.TypeBookReview, 1, 10)
	if err != nil || total != 0 {
		t.Fatalf("type filter: %d %v", total, err)
	}
}

func TestContentService_Search(t *testing.T) {
	db := newTestDB(t)
	s := &ContentService{DB: db}
	ctx := context.Background()
	a := seedUser(t, db, "rumi_fan")
	c1 := seedContent(t, db, a, "Whirling dervishes")
	seedContent(t, db, a, "Dervishes and whirling whirling dervishes")
	if _, err := repo.CreateComment(ctx, db, c1.ID, a.ID, "about the sema"); err != nil {
		t.Fatalf("comment: %v", err)
	}

	if _, _, err := s.Search(ctx, SearchInput{Query: "  ", Fields: []string{repo.SearchTitle}}, 1, 10); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
	if _, _, err := s.Search(ctx, SearchInput{Query: "x"}, 1, 10); !errors.Is(err, ErrNoSearchFields) {
		t.Fatalf("expected ErrNoSearchFields, got %v", err)
	}
	if _, _, err := s.Search(ctx, SearchInput{Query: "x", Fields: []string{"body"}}, 1, 10); !errors.Is(err, ErrInvalidChoice) {
		t.Fatalf("expected ErrInvalidChoice, got %v", err)
	}
	if _, _, err := s.Search(ctx, SearchInput{Query: "x", Fields: []string{repo.SearchTitle}, Sort: "oldest"}, 1, 10); !errors.Is(err, ErrInvalidChoice) {
		t.Fatalf("expected ErrInvalidChoice for sort, got %v", err)
	}

	items, total, err := s.Search(ctx, SearchInput{Query: "SEMA", Fields: []string{repo.SearchComment}}, 1, 10)
	if err != nil || total != 1 || items[0].ID != c1.ID {
		t.Fatalf("comment search: %v %d %v", items, total, err)
	}
	_, total, err = s.Search(ctx, SearchInput{Query: "rumi", Fields: []string{repo.SearchUsername}}, 1, 10)
	if err != nil || total != 2 {
		t.Fatalf("username search: %d %v", total, err)
	}

	items, total, err = s.Search(ctx, SearchInput{Query: "dervishes", Fields: []string{repo.SearchTitle}, Sort: SortRelevance}, 1, 10)
	if err != nil || total != 2 || len(items) != 2 {
		t.Fatalf("relevance search: %v %d %v", items, total, err)
	}
	if items[0].ID != c1.ID {
		t.Fatalf("shorter exact match should rank first, got %q", items[0].Title)
	}
}

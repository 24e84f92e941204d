package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/go-sufi-platform/internal/domain"
)

func TestIncrementViewCount_RelativeAndNotFound(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := mustUser(t, db, "hafiz")
	c := mustContent(t, db, u, "divan", time.Now().UTC())

	for i := 0; i < 3; i++ {
		if err := IncrementViewCount(ctx, db, c.ID); err != nil {
			t.Fatalf("IncrementViewCount: %v", err)
		}
	}
	got, err := GetContent(ctx, db, c.ID)
	if err != nil {
		t.Fatalf("GetContent: %v", err)
	}
	if got.ViewCount != 3 {
		t.Fatalf("expected view_count 3, got %d", got.ViewCount)
	}
	if got.Author == nil || got.Author.Username != "hafiz" || got.Author.Email != "" {
		t.Fatalf("expected public author columns only, got %+v", got.Author)
	}

	if err := IncrementViewCount(ctx, db, "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListContentsPage_Filters(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	a := mustUser(t, db, "attar")
	b := mustUser(t, db, "junaid")
	viewer := mustUser(t, db, "viewer")
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	c1 := mustContent(t, db, a, "first", base)
	c2 := mustContent(t, db, a, "second", base.Add(time.Hour))
	c3 := mustContent(t, db, b, "third", base.Add(2*time.Hour))
	if err := db.Model(c3).Update("topic", domain.TopicSects).Error; err != nil {
		t.Fatalf("retopic: %v", err)
	}
	draft := mustContent(t, db, a, "draft", base.Add(3*time.Hour))
	if err := db.Model(draft).Update("is_published", false).Error; err != nil {
		t.Fatalf("unpublish: %v", err)
	}
	if _, err := CreateFollow(ctx, db, viewer.ID, a.ID); err != nil {
		t.Fatalf("follow: %v", err)
	}

	cases := []struct {
		name string
		f    ContentFilter
		want []string
	}{
		{"all published newest first", ContentFilter{Topic: domain.TopicAll}, []string{c3.ID, c2.ID, c1.ID}},
		{"topic", ContentFilter{Topic: domain.TopicSects}, []string{c3.ID}},
		{"followed authors", ContentFilter{FollowedBy: viewer.ID}, []string{c2.ID, c1.ID}},
		{"dashboard with drafts", ContentFilter{AuthorID: a.ID, IncludeDrafts: true}, []string{draft.ID, c2.ID, c1.ID}},
		{"type filter", ContentFilter{ContentType: domain.TypeBookReview}, nil},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			total, err := CountContents(ctx, db, tc.f)
			if err != nil {
				t.Fatalf("CountContents: %v", err)
			}
			got, err := ListContentsPage(ctx, db, tc.f, 0, 10)
			if err != nil {
				t.Fatalf("ListContentsPage: %v", err)
			}
			if int(total) != len(tc.want) || len(got) != len(tc.want) {
				t.Fatalf("expected %d rows, got total=%d len=%d", len(tc.want), total, len(got))
			}
			for i := range got {
				if got[i].ID != tc.want[i] {
					t.Fatalf("row %d: expected %s, got %s", i, tc.want[i], got[i].ID)
				}
			}
		})
	}
}

func TestSearchContentsPage_FieldsAndDistinct(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	rumi := mustUser(t, db, "rumi")
	shams := mustUser(t, db, "shams")
	base := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	masnavi := mustContent(t, db, rumi, "The Masnavi", base)
	other := mustContent(t, db, shams, "Maqalat", base.Add(time.Hour))
	// Two matching comments must not duplicate the content.
	for i := 0; i < 2; i++ {
		if _, err := CreateComment(ctx, db, other.ID, rumi.ID, "the reed flute"); err != nil {
			t.Fatalf("comment: %v", err)
		}
	}
	pct := mustContent(t, db, shams, "100% certain", base.Add(2*time.Hour))

	cases := []struct {
		name string
		f    SearchFilter
		want []string
	}{
		{"title case-insensitive", SearchFilter{Query: "MASNAVI", Fields: []string{SearchTitle}}, []string{masnavi.ID}},
		{"comment distinct", SearchFilter{Query: "reed", Fields: []string{SearchComment}}, []string{other.ID}},
		{"username", SearchFilter{Query: "sham", Fields: []string{SearchUsername}}, []string{pct.ID, other.ID}},
		{"or across fields", SearchFilter{Query: "reed", Fields: []string{SearchTitle, SearchComment}}, []string{other.ID}},
		{"percent is literal", SearchFilter{Query: "%", Fields: []string{SearchTitle}}, []string{pct.ID}},
		{"topic filter", SearchFilter{Query: "ma", Fields: []string{SearchTitle}, Topic: domain.TopicSects}, nil},
		{"no fields", SearchFilter{Query: "ma"}, nil},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			total, err := CountSearch(ctx, db, tc.f)
			if err != nil {
				t.Fatalf("CountSearch: %v", err)
			}
			got, err := SearchContentsPage(ctx, db, tc.f, 0, 10)
			if err != nil {
				t.Fatalf("SearchContentsPage: %v", err)
			}
			if int(total) != len(tc.want) || len(got) != len(tc.want) {
				t.Fatalf("expected %d rows, got total=%d len=%d", len(tc.want), total, len(got))
			}
			for i := range got {
				if got[i].ID != tc.want[i] {
					t.Fatalf("row %d: expected %s, got %s", i, tc.want[i], got[i].ID)
				}
			}
		})
	}
}

func TestDeleteContent_RemovesDependents(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := mustUser(t, db, "bistami")
	c := mustContent(t, db, u, "subhani", time.Now().UTC())
	cm, err := CreateComment(ctx, db, c.ID, u.ID, "note")
	if err != nil {
		t.Fatalf("comment: %v", err)
	}
	l, _ := domain.NewLike(u.ID, domain.CommentTarget(cm.ID))
	if err := InsertLike(ctx, db, l); err != nil {
		t.Fatalf("like: %v", err)
	}

	if err := DeleteContent(ctx, db, c.ID); err != nil {
		t.Fatalf("DeleteContent: %v", err)
	}
	var n int64
	db.Model(&domain.Comment{}).Count(&n)
	if n != 0 {
		t.Fatalf("expected comments removed, got %d", n)
	}
	db.Model(&domain.Like{}).Count(&n)
	if n != 0 {
		t.Fatalf("expected likes removed, got %d", n)
	}
	if err := DeleteContent(ctx, db, c.ID); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

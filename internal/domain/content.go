package domain

import (
	"time"

	"gorm.io/gorm"
)

// Content type choices.
const (
	TypeAcademicArticle = "academic_article"
	TypeInsightfulEssay = "insightful_essay"
	TypeSufiExperience  = "sufi_experience"
	TypeQuestionAnswer  = "question_answer"
	TypeBookReview      = "book_review"
)

// Topic choices.
const (
	TopicHistory       = "history"
	TopicLiterature    = "literature"
	TopicConcepts      = "concepts"
	TopicSufis         = "sufis"
	TopicSects         = "sects"
	TopicPopularTopics = "popular_topics"

	// TopicAll is the pseudo topic that disables the topic filter on lists.
	TopicAll = "all_contents"
)

// Language choices.
const (
	LanguageEnglish = "en"
	LanguageDutch   = "nl"
	LanguageKurdish = "ku"
	LanguageTurkish = "tr"
)

// ContentTypes, Topics and Languages list the accepted enum values in
// display order.
var (
	ContentTypes = []string{TypeAcademicArticle, TypeInsightfulEssay, TypeSufiExperience, TypeQuestionAnswer, TypeBookReview}
	Topics       = []string{TopicHistory, TopicLiterature, TopicConcepts, TopicSufis, TopicSects, TopicPopularTopics}
	Languages    = []string{LanguageEnglish, LanguageDutch, LanguageKurdish, LanguageTurkish}
)

// DefaultContentImage is used when a content type has no dedicated image.
const DefaultContentImage = "img/default.jpg"

// ValidChoice reports whether v is one of choices.
func ValidChoice(v string, choices []string) bool {
	for _, c := range choices {
		if v == c {
			return true
		}
	}
	return false
}

// DefaultImageFor returns the stock image for a content type.
func DefaultImageFor(contentType string) string {
	if ValidChoice(contentType, ContentTypes) {
		return "img/" + contentType + ".jpg"
	}
	return DefaultContentImage
}

// IsDefaultImage reports whether id is one of the stock images that must
// never be removed from the asset store.
func IsDefaultImage(id string) bool {
	if id == "" || id == DefaultContentImage || id == DefaultProfileImage {
		return true
	}
	for _, t := range ContentTypes {
		if id == DefaultImageFor(t) {
			return true
		}
	}
	return false
}

// Content is an authored article with taxonomy, a publication flag, and
// denormalized like/view counters.
//
// Fields:
//   - AuthorID: nullable; set to NULL when the author is deleted.
//   - Title: plain text, at most 100 characters.
//   - Introduction / Text: sanitized rich text.
//   - ContentType / Topic / Language: enum columns (see the choice lists).
//   - IsPublished: drafts are visible only on the author's dashboard.
//   - LikeCount: cached number of Like rows targeting this content.
//   - ViewCount: incremented once per detail access.
//   - Image: asset identifier; defaults to DefaultImageFor(ContentType).
type Content struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	AuthorID     *string   `json:"author_id"     gorm:"type:char(36);index:idx_contents_author"`
	Title        string    `json:"title"         gorm:"type:varchar(100);not null"`
	Introduction string    `json:"introduction"  gorm:"type:text"`
	Text         string    `json:"text"          gorm:"type:text;not null"`
	ContentType  string    `json:"content_type"  gorm:"type:varchar(32);not null;index:idx_contents_listing,priority:2"`
	Topic        string    `json:"topic"         gorm:"type:varchar(32);not null;index:idx_contents_listing,priority:3"`
	Language     string    `json:"language"      gorm:"type:varchar(2);not null;default:'en'"`
	IsPublished  bool      `json:"is_published"  gorm:"not null;default:true;index:idx_contents_listing,priority:1"`
	LikeCount    int64     `json:"like_count"    gorm:"not null;default:0"`
	ViewCount    int64     `json:"view_count"    gorm:"not null;default:0"`
	Image        string    `json:"image"         gorm:"type:varchar(255)"`
	CreatedAt    time.Time `json:"created_at"    gorm:"index"`
	UpdatedAt    time.Time `json:"updated_at"`

	Author *User `json:"author,omitempty" gorm:"foreignKey:AuthorID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

// TableName returns the database table name for Content.
func (Content) TableName() string { return "contents" }

// Comment is a flat remark on one content item.
type Comment struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	ContentID string    `json:"content_id" gorm:"type:char(36);not null;index:idx_comments_content,priority:1"`
	AuthorID  *string   `json:"author_id"  gorm:"type:char(36);index"`
	Text      string    `json:"text"       gorm:"type:text;not null"`
	LikeCount int64     `json:"like_count" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_comments_content,priority:2"`
	UpdatedAt time.Time `json:"updated_at"`

	Content Content `json:"-" gorm:"foreignKey:ContentID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Author  *User   `json:"author,omitempty" gorm:"foreignKey:AuthorID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

// TableName returns the database table name for Comment.
func (Comment) TableName() string { return "comments" }

// Like records one user's like of exactly one target. Rows are built with
// NewLike; the BeforeCreate hook and the chk_likes_target constraint reject
// rows with both or neither target set.
//
// Uniqueness of (user, content, comment) is enforced by two partial unique
// indexes because one of the target columns is always NULL.
type Like struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    *string   `json:"user_id"    gorm:"type:char(36);uniqueIndex:ux_likes_user_content,priority:1;uniqueIndex:ux_likes_user_comment,priority:1"`
	ContentID *string   `json:"content_id" gorm:"type:char(36);index;uniqueIndex:ux_likes_user_content,priority:2,where:content_id IS NOT NULL"`
	CommentID *string   `json:"comment_id" gorm:"type:char(36);index;uniqueIndex:ux_likes_user_comment,priority:2,where:comment_id IS NOT NULL;check:chk_likes_target,(content_id IS NULL) <> (comment_id IS NULL)"`
	CreatedAt time.Time `json:"created_at"`

	User    *User    `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
	Content *Content `json:"-" gorm:"foreignKey:ContentID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Comment *Comment `json:"-" gorm:"foreignKey:CommentID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Like.
func (Like) TableName() string { return "likes" }

// BeforeCreate rejects rows that do not reference exactly one target.
func (l *Like) BeforeCreate(*gorm.DB) error {
	_, err := TargetOf(*l)
	return err
}

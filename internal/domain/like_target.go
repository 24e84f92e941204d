package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidLikeTarget is returned when a like does not reference exactly
// one of a content item or a comment.
var ErrInvalidLikeTarget = errors.New("like must target exactly one content or comment")

// TargetKind discriminates the two kinds of likeable objects.
type TargetKind uint8

const (
	// TargetContent selects a content item.
	TargetContent TargetKind = iota + 1
	// TargetComment selects a comment.
	TargetComment
)

// String returns the wire name of the kind.
func (k TargetKind) String() string {
	switch k {
	case TargetContent:
		return "content"
	case TargetComment:
		return "comment"
	default:
		return "invalid"
	}
}

// LikeTarget is either Content(id) or Comment(id). The zero value is
// invalid; construct targets with ContentTarget or CommentTarget.
type LikeTarget struct {
	kind TargetKind
	id   string
}

// ContentTarget returns a target selecting the content with the given id.
func ContentTarget(id string) LikeTarget { return LikeTarget{kind: TargetContent, id: strings.TrimSpace(id)} }

// CommentTarget returns a target selecting the comment with the given id.
func CommentTarget(id string) LikeTarget { return LikeTarget{kind: TargetComment, id: strings.TrimSpace(id)} }

// Kind reports which object the target selects.
func (t LikeTarget) Kind() TargetKind { return t.kind }

// ID returns the selected object's id.
func (t LikeTarget) ID() string { return t.id }

// Validate returns ErrInvalidLikeTarget for the zero value or an empty id.
func (t LikeTarget) Validate() error {
	if (t.kind != TargetContent && t.kind != TargetComment) || t.id == "" {
		return ErrInvalidLikeTarget
	}
	return nil
}

// NewLike builds a Like row for userID on target.
func NewLike(userID string, target LikeTarget) (*Like, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	uid := userID
	l := &Like{
		ID:        uuid.NewString(),
		UserID:    &uid,
		CreatedAt: time.Now().UTC(),
	}
	id := target.id
	switch target.kind {
	case TargetContent:
		l.ContentID = &id
	case TargetComment:
		l.CommentID = &id
	}
	return l, nil
}

// TargetOf recovers the target of a persisted or hand-built Like. Rows with
// both or neither target column set yield ErrInvalidLikeTarget.
func TargetOf(l Like) (LikeTarget, error) {
	hasContent := l.ContentID != nil && *l.ContentID != ""
	hasComment := l.CommentID != nil && *l.CommentID != ""
	switch {
	case hasContent && !hasComment:
		return ContentTarget(*l.ContentID), nil
	case hasComment && !hasContent:
		return CommentTarget(*l.CommentID), nil
	default:
		return LikeTarget{}, ErrInvalidLikeTarget
	}
}

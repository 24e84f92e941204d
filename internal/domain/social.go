package domain

import "time"

// Follow is a directed edge: FollowerID follows FolloweeID. The pair is
// unique and both ends cascade on user deletion.
type Follow struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	FollowerID string    `json:"follower_id" gorm:"type:char(36);not null;uniqueIndex:ux_follows_pair,priority:1"`
	FolloweeID string    `json:"followee_id" gorm:"type:char(36);not null;uniqueIndex:ux_follows_pair,priority:2;index"`
	CreatedAt  time.Time `json:"created_at"`

	Follower User `json:"-" gorm:"foreignKey:FollowerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Followee User `json:"-" gorm:"foreignKey:FolloweeID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Follow.
func (Follow) TableName() string { return "follows" }

// Notification types.
const (
	NotificationComment = "comment"
	NotificationLike    = "like"
	NotificationFollow  = "follow"
)

// Notification is materialized only as a side effect of a comment, like, or
// follow being created.
//
// Fields:
//   - UserID: recipient; NULL once the recipient is deleted.
//   - Type: comment | like | follow.
//   - ContentID / CommentID: cascade with the referenced rows.
//   - LikeID: set to NULL when the like is withdrawn so the row survives.
//   - FromUserID: the acting user; NULL once deleted.
type Notification struct {
	ID         string    `json:"id"           gorm:"type:char(36);primaryKey"`
	UserID     *string   `json:"user_id"      gorm:"type:char(36);index:idx_notifications_user,priority:1"`
	Type       string    `json:"type"         gorm:"type:varchar(16);not null;check:type IN ('comment','like','follow')"`
	ContentID  *string   `json:"content_id"   gorm:"type:char(36);index"`
	CommentID  *string   `json:"comment_id"   gorm:"type:char(36);index"`
	LikeID     *string   `json:"like_id"      gorm:"type:char(36);index"`
	FromUserID *string   `json:"from_user_id" gorm:"type:char(36);index"`
	IsRead     bool      `json:"is_read"      gorm:"not null;default:false"`
	CreatedAt  time.Time `json:"created_at"   gorm:"index:idx_notifications_user,priority:2"`

	User     *User    `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
	Content  *Content `json:"-" gorm:"foreignKey:ContentID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Comment  *Comment `json:"-" gorm:"foreignKey:CommentID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Like     *Like    `json:"-" gorm:"foreignKey:LikeID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
	FromUser *User    `json:"from_user,omitempty" gorm:"foreignKey:FromUserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

// TableName returns the database table name for Notification.
func (Notification) TableName() string { return "notifications" }

// Mailbox names.
const (
	BoxInbox  = "inbox"
	BoxOutbox = "outbox"
)

// MaxSubjectRunes caps Message.Subject.
const MaxSubjectRunes = 40

// Message is a private note between two users. Each side hides it
// independently; rows are purged only once both sides did so and the
// retention window has passed.
type Message struct {
	ID                 string    `json:"id"                   gorm:"type:char(36);primaryKey"`
	SenderID           *string   `json:"sender_id"            gorm:"type:char(36);index:idx_messages_sender"`
	RecipientID        *string   `json:"recipient_id"         gorm:"type:char(36);index:idx_messages_recipient"`
	Subject            string    `json:"subject"              gorm:"type:varchar(40);not null"`
	Body               string    `json:"body"                 gorm:"type:text;not null"`
	IsRead             bool      `json:"is_read"              gorm:"not null;default:false"`
	DeletedBySender    bool      `json:"-"                    gorm:"not null;default:false"`
	DeletedByRecipient bool      `json:"-"                    gorm:"not null;default:false"`
	CreatedAt          time.Time `json:"created_at"           gorm:"index"`

	Sender    *User `json:"sender,omitempty"    gorm:"foreignKey:SenderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
	Recipient *User `json:"recipient,omitempty" gorm:"foreignKey:RecipientID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// IsParticipant reports whether userID sent or received m.
func (m Message) IsParticipant(userID string) bool {
	return (m.SenderID != nil && *m.SenderID == userID) ||
		(m.RecipientID != nil && *m.RecipientID == userID)
}

package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-sufi-platform/internal/domain"
)

// CreateMessage inserts a message from senderID to recipientID.
func CreateMessage(ctx context.Context, db *gorm.DB, senderID, recipientID, subject, body string) (*domain.Message, error) {
	s, r := senderID, recipientID
	m := &domain.Message{
		ID:          uuid.NewString(),
		SenderID:    &s,
		RecipientID: &r,
		Subject:     subject,
		Body:        body,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Omit("Sender", "Recipient").Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// GetMessage fetches a message with both participants' public columns.
func GetMessage(ctx context.Context, db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	err := db.WithContext(ctx).
		Preload("Sender", publicUsers).
		Preload("Recipient", publicUsers).
		Where("id = ?", id).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func mailbox(userID, box string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if box == domain.BoxOutbox {
			return db.Where("sender_id = ? AND deleted_by_sender = ?", userID, false)
		}
		return db.Where("recipient_id = ? AND deleted_by_recipient = ?", userID, false)
	}
}

// CountMessages returns the size of userID's box (inbox or outbox).
func CountMessages(ctx context.Context, db *gorm.DB, userID, box string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Message{}).Scopes(mailbox(userID, box)).Count(&n).Error
	return n, err
}

// ListMessagesPage returns a newest-first page of userID's box.
func ListMessagesPage(ctx context.Context, db *gorm.DB, userID, box string, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Scopes(mailbox(userID, box)).
		Preload("Sender", publicUsers).
		Preload("Recipient", publicUsers).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountUnreadMessages returns how many inbox messages of userID are unread.
func CountUnreadMessages(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Message{}).
		Scopes(mailbox(userID, domain.BoxInbox)).
		Where("is_read = ?", false).
		Count(&n).Error
	return n, err
}

// MarkMessageRead sets is_read on a message.
func MarkMessageRead(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Model(&domain.Message{}).Where("id = ?", id).Update("is_read", true).Error
}

// HideMessage sets the deletion flag(s) for the sides userID occupies.
func HideMessage(ctx context.Context, db *gorm.DB, m *domain.Message, userID string) error {
	updates := map[string]any{}
	if m.SenderID != nil && *m.SenderID == userID {
		updates["deleted_by_sender"] = true
		m.DeletedBySender = true
	}
	if m.RecipientID != nil && *m.RecipientID == userID {
		updates["deleted_by_recipient"] = true
		m.DeletedByRecipient = true
	}
	if len(updates) == 0 {
		return nil
	}
	return db.WithContext(ctx).Model(&domain.Message{}).Where("id = ?", m.ID).Updates(updates).Error
}

// PurgeDeletedMessages deletes messages both sides removed that were created
// before cutoff. It returns the number of rows removed.
func PurgeDeletedMessages(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("deleted_by_sender = ? AND deleted_by_recipient = ? AND created_at < ?", true, true, cutoff).
		Delete(&domain.Message{})
	return res.RowsAffected, res.Error
}

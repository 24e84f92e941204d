package repo

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/tbourn/go-sufi-platform/internal/domain"
)

// targetColumn returns the likes column and owning table of t.
func targetColumn(t domain.LikeTarget) (column, table string, err error) {
	switch t.Kind() {
	case domain.TargetContent:
		return "content_id", "contents", nil
	case domain.TargetComment:
		return "comment_id", "comments", nil
	default:
		return "", "", domain.ErrInvalidLikeTarget
	}
}

// FindLike returns the like of userID on t, or ErrNotFound.
func FindLike(ctx context.Context, db *gorm.DB, userID string, t domain.LikeTarget) (*domain.Like, error) {
	col, _, err := targetColumn(t)
	if err != nil {
		return nil, err
	}
	var l domain.Like
	err = db.WithContext(ctx).
		Where("user_id = ? AND "+col+" = ?", userID, t.ID()).
		First(&l).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// InsertLike persists l. A second like of the same target by the same user
// yields ErrDuplicate.
func InsertLike(ctx context.Context, db *gorm.DB, l *domain.Like) error {
	if err := db.WithContext(ctx).Omit("User", "Content", "Comment").Create(l).Error; err != nil {
		if IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// DeleteLike removes a like by id. Notifications pointing at it keep their
// row with like_id cleared.
func DeleteLike(ctx context.Context, db *gorm.DB, id string) error {
	tx := db.WithContext(ctx)
	if err := tx.Model(&domain.Notification{}).Where("like_id = ?", id).Update("like_id", nil).Error; err != nil {
		return err
	}
	res := tx.Where("id = ?", id).Delete(&domain.Like{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AddLikeCount applies delta to the like_count of the target row and returns
// the new value. The update is relative so concurrent toggles never lose
// increments.
func AddLikeCount(ctx context.Context, db *gorm.DB, t domain.LikeTarget, delta int) (int64, error) {
	_, table, err := targetColumn(t)
	if err != nil {
		return 0, err
	}
	tx := db.WithContext(ctx)
	res := tx.Table(table).
		Where("id = ?", t.ID()).
		UpdateColumn("like_count", gorm.Expr("like_count + ?", delta))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	var count int64
	if err := tx.Table(table).Select("like_count").Where("id = ?", t.ID()).Scan(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// TargetAuthor returns the author of the liked row; nil when it has none.
func TargetAuthor(ctx context.Context, db *gorm.DB, t domain.LikeTarget) (*string, error) {
	switch t.Kind() {
	case domain.TargetContent:
		return ContentAuthor(ctx, db, t.ID())
	case domain.TargetComment:
		c, err := GetComment(ctx, db, t.ID())
		if err != nil {
			return nil, err
		}
		return c.AuthorID, nil
	default:
		return nil, domain.ErrInvalidLikeTarget
	}
}

// ReconcileLikeCounts overwrites like_count on contents and comments whose
// cached value differs from the number of like rows. It returns the number
// of rows fixed.
func ReconcileLikeCounts(ctx context.Context, db *gorm.DB) (int64, error) {
	var fixed int64
	for _, tbl := range []struct{ table, column string }{
		{"contents", "content_id"},
		{"comments", "comment_id"},
	} {
		recount := fmt.Sprintf("(SELECT COUNT(*) FROM likes WHERE likes.%s = %s.id)", tbl.column, tbl.table)
		res := db.WithContext(ctx).Exec(fmt.Sprintf(
			"UPDATE %s SET like_count = %s WHERE like_count <> %s",
			tbl.table, recount, recount,
		))
		if res.Error != nil {
			return fixed, res.Error
		}
		fixed += res.RowsAffected
	}
	return fixed, nil
}

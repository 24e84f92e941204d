package services

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-sufi-platform/internal/domain"
	"github.com/tbourn/go-sufi-platform/internal/repo"
	"github.com/tbourn/go-sufi-platform/internal/utils"
)

// FollowService maintains the directed follow graph.
type FollowService struct {
	DB       *gorm.DB
	Notifier *Notifier
}

// Follow makes followerID follow the user named followee. Following oneself
// is a no-op and following twice keeps a single edge. Only a newly created
// edge notifies the followee. It reports whether an edge was created.
func (s *FollowService) Follow(ctx context.Context, followerID, followee string) (bool, error) {
	tr := otel.Tracer("services/FollowService")
	ctx, span := tr.Start(ctx, "Follow",
		trace.WithAttributes(
			attribute.String("user.id", followerID),
			attribute.String("followee", followee),
		),
	)
	defer span.End()

	target, err := s.resolve(ctx, followee)
	if err != nil {
		return false, err
	}
	if target.ID == followerID {
		return false, nil
	}

	created := false
	var notified []string
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, ferr := repo.FindFollow(ctx, tx, followerID, target.ID); ferr == nil {
			return nil
		} else if !errors.Is(ferr, repo.ErrNotFound) {
			return ferr
		}
		var f *domain.Follow
		// Savepoint so a unique violation leaves the outer tx usable.
		err := tx.Transaction(func(sp *gorm.DB) (err error) {
			f, err = repo.CreateFollow(ctx, sp, followerID, target.ID)
			return err
		})
		if err != nil {
			// Lost a race with a concurrent follow: already following.
			if errors.Is(err, repo.ErrDuplicate) {
				return nil
			}
			return err
		}
		created = true
		notified = s.Notifier.Dispatch(ctx, tx, Event{Kind: EventFollow, Follow: f})
		return nil
	})
	if err != nil {
		return false, err
	}
	s.Notifier.Settle(ctx, notified)
	return created, nil
}

// Unfollow removes the edge followerID -> followee. A missing edge is a
// no-op. It reports whether an edge was removed.
func (s *FollowService) Unfollow(ctx context.Context, followerID, followee string) (bool, error) {
	tr := otel.Tracer("services/FollowService")
	ctx, span := tr.Start(ctx, "Unfollow",
		trace.WithAttributes(
			attribute.String("user.id", followerID),
			attribute.String("followee", followee),
		),
	)
	defer span.End()

	target, err := s.resolve(ctx, followee)
	if err != nil {
		return false, err
	}
	removed := false
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) (derr error) {
		removed, derr = repo.DeleteFollow(ctx, tx, followerID, target.ID)
		return derr
	})
	return removed, err
}

// IsFollowing reports whether followerID follows followeeID.
func (s *FollowService) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	if followerID == "" || followerID == followeeID {
		return false, nil
	}
	return repo.IsFollowing(ctx, s.DB, followerID, followeeID)
}

// Followers returns a page of the users following the named user.
func (s *FollowService) Followers(ctx context.Context, username string, page, pageSize int) ([]domain.User, int64, error) {
	return s.listEdges(ctx, username, page, pageSize, repo.CountFollowers, repo.ListFollowersPage)
}

// Following returns a page of the users the named user follows.
func (s *FollowService) Following(ctx context.Context, username string, page, pageSize int) ([]domain.User, int64, error) {
	return s.listEdges(ctx, username, page, pageSize, repo.CountFollowing, repo.ListFollowingPage)
}

func (s *FollowService) listEdges(
	ctx context.Context,
	username string,
	page, pageSize int,
	count func(context.Context, *gorm.DB, string) (int64, error),
	list func(context.Context, *gorm.DB, string, int, int) ([]domain.User, error),
) ([]domain.User, int64, error) {
	u, err := s.resolve(ctx, username)
	if err != nil {
		return nil, 0, err
	}
	_, size, offset := utils.PageBounds(page, pageSize, 0)
	total, err := count(ctx, s.DB, u.ID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.User{}, 0, nil
	}
	items, err := list(ctx, s.DB, u.ID, offset, size)
	return items, total, err
}

func (s *FollowService) resolve(ctx context.Context, username string) (*domain.User, error) {
	u, err := repo.GetUserByUsername(ctx, s.DB, username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

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
)

// ToggleResult is the like state after a toggle.
type ToggleResult struct {
	Liked     bool  `json:"liked"`
	LikeCount int64 `json:"like_count"`
}

// LikeService toggles likes and keeps the cached like_count columns equal to
// the number of like rows.
type LikeService struct {
	DB       *gorm.DB
	Notifier *Notifier
}

// Toggle likes target for userID, or withdraws the like when one exists.
//
// The lookup, the ledger insert or delete, and the relative counter update
// run in one transaction. A new like dispatches EventLike; withdrawing one
// leaves earlier notifications in place. A concurrent duplicate insert fails
// with ErrDuplicateLike and rolls everything back.
func (s *LikeService) Toggle(ctx context.Context, userID string, target domain.LikeTarget) (ToggleResult, error) {
	tr := otel.Tracer("services/LikeService")
	ctx, span := tr.Start(ctx, "Toggle",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("target.kind", target.Kind().String()),
			attribute.String("target.id", target.ID()),
		),
	)
	defer span.End()

	if err := target.Validate(); err != nil {
		return ToggleResult{}, err
	}

	var (
		res      ToggleResult
		notified []string
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.TargetAuthor(ctx, tx, target); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return targetNotFound(target)
			}
			return err
		}

		existing, err := repo.FindLike(ctx, tx, userID, target)
		switch {
		case err == nil:
			if err := repo.DeleteLike(ctx, tx, existing.ID); err != nil {
				return err
			}
			n, err := repo.AddLikeCount(ctx, tx, target, -1)
			if err != nil {
				return err
			}
			res = ToggleResult{Liked: false, LikeCount: n}
			return nil
		case !errors.Is(err, repo.ErrNotFound):
			return err
		}

		l, err := domain.NewLike(userID, target)
		if err != nil {
			return err
		}
		if err := repo.InsertLike(ctx, tx, l); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return ErrDuplicateLike
			}
			return err
		}
		n, err := repo.AddLikeCount(ctx, tx, target, 1)
		if err != nil {
			return err
		}
		notified = s.Notifier.Dispatch(ctx, tx, Event{Kind: EventLike, Like: l})
		res = ToggleResult{Liked: true, LikeCount: n}
		return nil
	})
	if err != nil {
		return ToggleResult{}, err
	}
	s.Notifier.Settle(ctx, notified)

	action := "unlike"
	if res.Liked {
		action = "like"
	}
	likesToggled.WithLabelValues(target.Kind().String(), action).Inc()
	span.SetAttributes(attribute.Bool("liked", res.Liked), attribute.Int64("like_count", res.LikeCount))
	return res, nil
}

// Reconcile recounts likes for every content item and comment and
// overwrites counters that drifted. It returns the number of rows fixed.
func (s *LikeService) Reconcile(ctx context.Context) (int64, error) {
	tr := otel.Tracer("services/LikeService")
	ctx, span := tr.Start(ctx, "Reconcile")
	defer span.End()

	var fixed int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) (err error) {
		fixed, err = repo.ReconcileLikeCounts(ctx, tx)
		return err
	})
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int64("fixed", fixed))
	if fixed > 0 {
		logger(ctx).Warn().Int64("fixed", fixed).Msg("like counters reconciled")
	}
	return fixed, nil
}

func targetNotFound(t domain.LikeTarget) error {
	if t.Kind() == domain.TargetComment {
		return ErrCommentNotFound
	}
	return ErrContentNotFound
}

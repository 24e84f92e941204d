// Package jobs runs periodic maintenance next to the HTTP server: the
// message retention sweep and the purge of expired Idempotency-Key records.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-sufi-platform/internal/repo"
)

// MessageSweeper purges messages both participants deleted.
type MessageSweeper interface {
	Sweep(ctx context.Context, now time.Time) (int64, error)
}

// Result reports what one pass removed.
type Result struct {
	Messages    int64
	Idempotency int64
}

// Sweeper runs the maintenance passes. DB may be nil to skip the
// idempotency purge.
type Sweeper struct {
	Messages MessageSweeper
	DB       *gorm.DB

	// Now defaults to time.Now (UTC).
	Now func() time.Time
}

// RunOnce performs a single pass. Both purges run even when the first one
// fails; the errors are joined.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	now := s.now()
	var (
		res  Result
		errs []error
	)
	if s.Messages != nil {
		n, err := s.Messages.Sweep(ctx, now)
		res.Messages = n
		errs = append(errs, err)
	}
	if s.DB != nil {
		n, err := repo.PurgeExpiredIdempotency(ctx, s.DB, now)
		res.Idempotency = n
		errs = append(errs, err)
	}
	return res, errors.Join(errs...)
}

// Start runs RunOnce every interval until ctx is cancelled. The first pass
// happens after one interval. Failures are logged and the loop carries on.
// The returned channel is closed once the loop has exited.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	if interval <= 0 {
		close(done)
		return done
	}
	go func() {
		defer close(done)
		t := time.NewTicker(interval)
		defer t.Stop()
		log.Info().Dur("interval", interval).Msg("maintenance sweeper started")
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("maintenance sweeper stopped")
				return
			case <-t.C:
				res, err := s.RunOnce(ctx)
				if err != nil {
					log.Error().Err(err).Msg("maintenance sweep failed")
					continue
				}
				log.Debug().
					Int64("messages", res.Messages).
					Int64("idempotency_keys", res.Idempotency).
					Msg("maintenance sweep")
			}
		}
	}()
	return done
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

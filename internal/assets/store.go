// Package assets stores uploaded images behind a small capability interface
// so the rest of the service never knows whether files live on local disk
// or in a remote object store.
package assets

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-sufi-platform/internal/domain"
)

// ErrInvalidID is returned for identifiers that would escape the store.
var ErrInvalidID = errors.New("invalid asset id")

// Store persists binary assets and resolves their public URLs.
type Store interface {
	// Put stores the content of r under a fresh identifier derived from name
	// (only its extension is kept) and returns that identifier.
	Put(ctx context.Context, name string, r io.Reader) (string, error)
	// Delete removes an asset. Deleting a missing asset is not an error.
	Delete(ctx context.Context, id string) error
	// URLOf returns the public URL of id.
	URLOf(id string) string
}

// DeleteQuietly removes id from s unless it is one of the stock images.
// Failures are logged and swallowed; callers run it after their own write
// has committed.
func DeleteQuietly(ctx context.Context, s Store, id string) {
	if s == nil || domain.IsDefaultImage(id) {
		return
	}
	if err := s.Delete(ctx, id); err != nil {
		ctxLogger(ctx).Warn().Err(err).Str("asset_id", id).Msg("asset delete failed")
	}
}

// ctxLogger returns the request logger carried by ctx, or the global one.
func ctxLogger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}

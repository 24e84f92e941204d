package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-sufi-platform/internal/assets"
	"github.com/tbourn/go-sufi-platform/internal/cache"
	"github.com/tbourn/go-sufi-platform/internal/config"
	httpapi "github.com/tbourn/go-sufi-platform/internal/http"
	"github.com/tbourn/go-sufi-platform/internal/jobs"
	"github.com/tbourn/go-sufi-platform/internal/mail"
	"github.com/tbourn/go-sufi-platform/internal/observability"
	"github.com/tbourn/go-sufi-platform/internal/repo"
	"github.com/tbourn/go-sufi-platform/internal/services"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), e)
		},
	}
}

func runServe(parent context.Context, e *env) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	cfg := e.cfg

	otelShutdown, err := observability.SetupOTel(ctx, cfg.OTEL, e.version)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer shutdownWith(otelShutdown, "tracing")

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close(db) }()

	rdb, err := cache.New(ctx, cfg.RedisURL, cfg.CacheTTL)
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	store, err := newAssetStore(cfg.Media)
	if err != nil {
		return err
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		DB:     db,
		Cache:  rdb,
		Assets: store,
		Mailer: newMailer(cfg.SMTP),
	}, cfg)

	sweeper := &jobs.Sweeper{
		Messages: &services.MessageService{DB: db, Cache: rdb, Retention: cfg.MessageRetention},
		DB:       db,
	}
	sweeperDone := sweeper.Start(ctx, cfg.MessageSweepInterval)

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", e.version).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	stop()
	<-sweeperDone
	log.Info().Msg("server stopped")
	return nil
}

// newAssetStore returns the Cloudinary store when enabled and the local
// store otherwise. Stock images are always served locally.
func newAssetStore(m config.MediaConfig) (assets.Store, error) {
	local := assets.NewLocalStore(m.Root, m.URL)
	if !m.UseCloudinary {
		return local, nil
	}
	cld, err := assets.NewCloudinaryStore(m.CloudinaryURL, m.Folder, local)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: %w", err)
	}
	return cld, nil
}

func newMailer(c config.SMTPConfig) mail.Mailer {
	return mail.New(mail.SMTPConfig{
		Host:     c.Host,
		Port:     c.Port,
		Username: c.Username,
		Password: c.Password,
		From:     c.From,
		FromName: c.FromName,
		StartTLS: c.StartTLS,
	})
}

func shutdownWith(fn observability.Shutdown, what string) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Error().Err(err).Str("component", what).Msg("shutdown")
	}
}

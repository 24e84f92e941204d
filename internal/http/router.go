// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, caller identity, logging/redaction, panic
// recovery, metrics, CORS, compression, security headers, idempotency, and
// rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → identity → logging → recovery)
//   - Deterministic router setup; all dependencies injected through Deps
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-sufi-platform/docs"
	"github.com/tbourn/go-sufi-platform/internal/assets"
	"github.com/tbourn/go-sufi-platform/internal/cache"
	"github.com/tbourn/go-sufi-platform/internal/config"
	"github.com/tbourn/go-sufi-platform/internal/http/handlers"
	"github.com/tbourn/go-sufi-platform/internal/http/middleware"
	"github.com/tbourn/go-sufi-platform/internal/mail"
	"github.com/tbourn/go-sufi-platform/internal/repo"
	"github.com/tbourn/go-sufi-platform/internal/services"
)

// Deps are the stores and clients the routes are built on. Cache may be nil
// (unread counters are then always read from the database).
type Deps struct {
	DB     *gorm.DB
	Cache  *cache.Cache
	Assets assets.Store
	Mailer mail.Mailer
}

// NewServices builds the service layer over d. All fan-out producers share
// one Notifier so cached unread counts are invalidated consistently.
func NewServices(d Deps, cfg config.Config) handlers.Services {
	notifier := services.NewNotifier(d.Cache)
	return handlers.Services{
		Users:    &services.UserService{DB: d.DB, Mailer: d.Mailer, Assets: d.Assets},
		Follows:  &services.FollowService{DB: d.DB, Notifier: notifier},
		Contents: &services.ContentService{DB: d.DB, Assets: d.Assets, MaxPageSize: cfg.MaxPageSize},
		Comments: &services.CommentService{DB: d.DB, Notifier: notifier},
		Likes:    &services.LikeService{DB: d.DB, Notifier: notifier},
		Notifications: &services.NotificationService{
			DB:    d.DB,
			Cache: d.Cache,
		},
		Messages: &services.MessageService{
			DB:             d.DB,
			Cache:          d.Cache,
			Retention:      cfg.MessageRetention,
			IdempotencyTTL: cfg.IdempotencyTTL,
		},
		Contact: &services.ContactService{Mailer: d.Mailer, To: cfg.ContactEmails},
	}
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the versioned public API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Identity: resolve X-User-ID before anything logs it
//  4. Logger (or RedactingLogger): structured access logs
//  5. Recovery: capture panics after logger
//  6. Body size limiter
//  7. Metrics
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter on writes (per user/IP, bypass on replay)
//  10. CORS, gzip and security headers
func RegisterRoutes(r *gin.Engine, d Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Identity())
	if cfg.LogRedact {
		r.Use(middleware.RedactingLogger(middleware.RedactOptions{
			MaskHeaders: []string{middleware.HeaderIdempotencyKey},
		}))
	} else {
		r.Use(middleware.Logger())
	}
	r.Use(middleware.Recovery())

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 8 << 20
	}
	r.Use(middleware.BodyLimit(maxBody))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		idempotencyLookup(d.DB),
	))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(writesOnly(rl.Handler()))

	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	if cfg.GzipEnabled {
		r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	}
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/ready", readiness(d))

	// Uploaded and stock images when they live on local disk.
	if !cfg.Media.UseCloudinary && cfg.Media.Root != "" && cfg.Media.URL != "" {
		r.Static(cfg.Media.URL, cfg.Media.Root)
	}

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(NewServices(d, cfg), basePath(cfg.APIBasePath), cfg.MaxPageSize)
	mountAPI(groupWithPrefix(r, cfg.APIBasePath), h)
}

// mountAPI registers the public endpoints. Reads of public pages work for
// anonymous callers; everything acting on behalf of a user requires one.
func mountAPI(api *gin.RouterGroup, h *handlers.Handlers) {
	auth := middleware.RequireUser()

	// Identity & profiles
	api.POST("/users", h.Register)
	api.POST("/users/verify", h.Verify)
	api.POST("/users/verify/resend", h.ResendVerification)
	api.GET("/users/:username", h.GetProfile)
	api.GET("/users/:username/:follow_type", h.ListFollows)
	api.POST("/users/:username/follow/:action", auth, h.FollowAction)

	me := api.Group("/me", auth)
	{
		me.PUT("/profile", h.UpdateProfile)
		me.DELETE("", h.DeleteAccount)
		me.GET("/dashboard", h.Dashboard)
	}

	// Content
	api.GET("/topics/:topic", h.ListTopic)
	api.GET("/search", h.Search)
	api.POST("/content", auth, h.CreateContent)
	api.GET("/content/:id", h.GetContent)
	api.PUT("/content/:id", auth, h.UpdateContent)
	api.DELETE("/content/:id", auth, h.DeleteContent)
	api.POST("/content/:id/like", auth, h.LikeContent)
	api.POST("/content/:id/comments", auth, h.AddComment)

	// Comments
	api.DELETE("/comment/:id", auth, h.DeleteComment)
	api.POST("/comment/:id/like", auth, h.LikeComment)

	// Notifications
	api.GET("/notifications", auth, h.ListNotifications)
	api.GET("/notifications/:id", auth, h.OpenNotification)

	// Messages
	msg := api.Group("/messages", auth)
	{
		msg.POST("", h.SendMessage)
		msg.GET("", h.ListMessages)
		msg.GET("/unread", h.UnreadMessages)
		msg.GET("/:id", h.GetMessage)
		msg.DELETE("/:id", h.DeleteMessage)
	}

	api.POST("/contact", h.Contact)
}

// idempotencyLookup reports whether a live Idempotency-Key record exists.
// Missing records are not an error.
func idempotencyLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
		if db == nil {
			return false, nil
		}
		_, err := repo.GetIdempotency(ctx, db, userID, scope, key, now)
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		return err == nil, err
	}
}

// writesOnly applies mw to state-changing requests and lets safe methods
// through untouched.
func writesOnly(mw gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
		default:
			mw(c)
		}
	}
}

var (
	corsMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match", middleware.HeaderUserID, middleware.HeaderIdempotencyKey}
	corsExpose  = []string{"X-Request-ID", "Content-Length", "ETag", "Location", "Retry-After", "Idempotency-Replayed"}
)

// corsMiddleware allows every origin when origins is empty and echoes
// allow-listed origins otherwise.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	if len(origins) == 0 {
		return []gin.HandlerFunc{
			// Force ACAO: * even without an Origin header (simple health checks).
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(cors.Config{
				AllowAllOrigins:  true,
				AllowMethods:     corsMethods,
				AllowHeaders:     corsHeaders,
				ExposeHeaders:    corsExpose,
				AllowCredentials: false, // must remain false with AllowAllOrigins
				MaxAge:           12 * time.Hour,
			}),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     corsMethods,
			AllowHeaders:     corsHeaders,
			ExposeHeaders:    corsExpose,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}),
	}
}

// readiness pings the database and, when configured, Redis.
func readiness(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		checks := gin.H{"database": "ok"}
		status := http.StatusOK
		if err := repo.Ping(ctx, d.DB); err != nil {
			checks["database"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		switch err := d.Cache.Health(ctx); {
		case errors.Is(err, cache.ErrCacheDisabled):
			checks["cache"] = "disabled"
		case err != nil:
			checks["cache"] = err.Error()
			status = http.StatusServiceUnavailable
		default:
			checks["cache"] = "ok"
		}
		c.JSON(status, gin.H{"status": http.StatusText(status), "checks": checks})
	}
}

// basePath maps the root prefix to "" so handler-built URLs never start with "//".
func basePath(p string) string {
	if p == "/" {
		return ""
	}
	return p
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

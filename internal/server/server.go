// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "cookiegram/docs" // swagger docs
	"cookiegram/internal/bootstrap"
	"cookiegram/internal/cache"
	"cookiegram/internal/config"
	"cookiegram/internal/events"
	"cookiegram/internal/featureflags"
	"cookiegram/internal/identity"
	"cookiegram/internal/media"
	"cookiegram/internal/middleware"
	"cookiegram/internal/models"
	"cookiegram/internal/notifications"
	"cookiegram/internal/repository"
	"cookiegram/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the outbound integrations a Server talks to.
type Deps struct {
	Identity  identity.Provider
	Uploaders []media.Uploader
	Publisher events.Publisher
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	verifier       *middleware.TokenVerifier
	publisher      events.Publisher
	notifier       *notifications.Notifier
	hub            *notifications.Hub
	featureFlags   *featureflags.Manager
	userService    *service.UserService
	postService    *service.PostService
	commentService *service.CommentService
	profileService *service.ProfileService
	searchService  *service.SearchService
	mediaService   *service.MediaService
}

// NewServer creates a new server instance with all dependencies
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	db, rdb, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{
		ApplySchema:    true,
		SeedDevFixture: true,
	})
	if err != nil {
		return nil, err
	}

	deps, err := DepsFromConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, db, rdb, deps)
}

// DepsFromConfig builds the identity client, uploaders and event publisher from cfg.
// With the s3 media backend the bucket is created when missing.
func DepsFromConfig(ctx context.Context, cfg *config.Config) (Deps, error) {
	uploaders := []media.Uploader{media.NewImageHost(cfg.ImageHostURL, cfg.ImageHostClientID)}
	if cfg.MediaBackend == media.BackendS3 {
		store, err := media.NewUploader(cfg)
		if err != nil {
			return Deps{}, fmt.Errorf("media backend: %w", err)
		}
		if objStore, ok := store.(*media.ObjectStore); ok {
			if err := objStore.EnsureBucket(ctx); err != nil {
				return Deps{}, fmt.Errorf("media bucket %s: %w", cfg.S3Bucket, err)
			}
		}
		uploaders = append(uploaders, store)
	}

	return Deps{
		Identity:  identity.NewClient(cfg.IdentityAPIURL, cfg.IdentitySecretKey),
		Uploaders: uploaders,
		Publisher: events.New(cfg),
	}, nil
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, deps Deps) (*Server, error) {
	verifier, err := middleware.NewTokenVerifier(cfg)
	if err != nil {
		return nil, fmt.Errorf("token verifier: %w", err)
	}

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	followRepo := repository.NewFollowRepository(db)

	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.Noop{}
	}

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("cookiegram-api"),
		verifier:       verifier,
		publisher:      publisher,
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
	}

	// Live notifications need Redis pub/sub.
	var notifier service.Notifier
	if redisClient != nil {
		server.notifier = notifications.NewNotifier(redisClient)
		server.hub = notifications.NewHub()
		notifier = server.notifier
	}
	dispatch := service.NewDispatcher(notifier, publisher, server.featureFlags)

	resolver := identity.NewResolver(deps.Identity,
		time.Duration(cfg.IdentityCacheTTLSeconds)*time.Second, cfg.IdentityLookupConcurrency)

	server.userService = service.NewUserService(userRepo, followRepo, postRepo, resolver, dispatch)
	server.postService = service.NewPostService(postRepo, userRepo, resolver, dispatch, server.featureFlags)
	server.commentService = service.NewCommentService(commentRepo, postRepo, resolver, dispatch)
	server.profileService = service.NewProfileService(userRepo, resolver)
	server.searchService = service.NewSearchService(server.postService, server.userService)
	server.mediaService = service.NewMediaService(int64(cfg.MediaMaxUploadMB)<<20, cfg.MediaNormalize,
		server.featureFlags, deps.Uploaders...)

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so error responses still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "CookieGram Metrics Dashboard",
	}))
	api.Get("/swagger/*", swagger.HandlerDefault)

	// The upgrade route authenticates with a ticket, so it sits outside the bearer group.
	api.Get("/ws", s.AuthRequired(), s.WebsocketHandler())

	protected := api.Group("", s.AuthRequired())

	protected.Post("/ws/ticket", s.IssueWSTicket)
	protected.Get("/feature-flags", s.GetFeatureFlags)

	// Posts: specific /:id/:resource routes before generic /:id
	posts := protected.Group("/posts")
	posts.Get("/", s.GetFeed)
	posts.Post("/", middleware.RateLimit(s.redis, 5, 5*time.Minute, "create_post"), s.CreatePost)
	posts.Put("/:id/like", s.LikePost)
	posts.Get("/:id/recipe", s.GetRecipe)
	posts.Get("/:id/comments", s.GetComments)
	posts.Post("/:id/comments", middleware.RateLimit(s.redis, 10, time.Minute, "create_comment"), s.CreateComment)
	posts.Put("/:id", s.UpdatePost)
	posts.Delete("/:id", s.DeletePost)

	protected.Get("/post", s.GetPost)
	protected.Delete("/comments/:id", s.DeleteComment)
	protected.Post("/images", s.GetImages)
	protected.Get("/search", middleware.RateLimit(s.redis, 30, time.Minute, "search"), s.Search)
	protected.Post("/uploadImage", middleware.RateLimit(s.redis, 10, 10*time.Minute, "upload_image"), s.UploadImage)

	protected.Get("/profile", s.GetProfile)
	protected.Get("/userId", s.GetCallerIdentity)

	user := protected.Group("/user")
	user.Get("/", s.GetUser)
	user.Get("/liked", s.GetLikedPosts)
	user.Put("/description", s.UpdateDescription)
	user.Put("/name", s.SetName)
	user.Put("/image", s.UpdateProfileImage)

	protected.Put("/users/:clerkId/follow",
		middleware.RateLimit(s.redis, 60, time.Minute, "follow"), s.FollowUser)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	sockets := 0
	if s.hub != nil {
		sockets = s.hub.ConnectionCount()
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"websocket_connections": sockets,
		"time":                  time.Now(),
	})
}

// AuthRequired verifies the caller and loads (or lazily creates) their user record.
// A single-use WebSocket ticket is tried first; otherwise a bearer token is required.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		isWSPath := strings.HasPrefix(c.Path(), "/api/ws") && c.Path() != "/api/ws/ticket"

		var externalID string
		if ticket := c.Query("ticket"); ticket != "" && s.redis != nil {
			ext, err := s.redis.GetDel(c.UserContext(), cache.WSTicketKey(ticket)).Result()
			if err == nil && ext != "" {
				externalID = ext
			} else if isWSPath {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthenticatedError("Invalid or expired WebSocket ticket"))
			}
		}

		if externalID == "" {
			if isWSPath {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthenticatedError("WebSocket ticket required"))
			}
			token := middleware.BearerToken(c)
			if token == "" {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthenticatedError("Authorization required"))
			}
			sub, err := s.verifier.Verify(token)
			if err != nil {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthenticatedError("Invalid or expired token"))
			}
			externalID = sub
		}

		user, err := s.userService.EnsureUser(c.UserContext(), externalID)
		if err != nil {
			return s.respondServiceError(c, err)
		}

		c.Locals("userID", user.ID)
		c.Locals("externalID", user.ExternalID)
		c.Locals("user", user)
		ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, user.ID)
		ctx = context.WithValue(ctx, middleware.ExternalIDKey, user.ExternalID)
		c.SetUserContext(ctx)

		return c.Next()
	}
}

// NewApp builds the Fiber app with middleware and routes.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "CookieGram API",
		BodyLimit: max(int(s.mediaService.MaxBytes())+1<<20, 4<<20),
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.NewApp()

	if s.notifier != nil && s.hub != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				middleware.Logger.Error("failed to start notification wiring", slog.String("error", err.Error()))
			}
		}()
	}

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if s.hub != nil {
		if err := s.hub.Shutdown(ctx); err != nil {
			middleware.Logger.Error("error shutting down notification hub", slog.String("error", err.Error()))
		}
	}

	if err := s.publisher.Close(); err != nil {
		middleware.Logger.Error("error closing event publisher", slog.String("error", err.Error()))
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}

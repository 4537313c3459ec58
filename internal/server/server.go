// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"time"

	_ "timeout/docs" // swagger docs
	"timeout/internal/cache"
	"timeout/internal/config"
	"timeout/internal/featureflags"
	"timeout/internal/middleware"
	"timeout/internal/models"
	"timeout/internal/notifications"
	"timeout/internal/repository"
	"timeout/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	tokens         *middleware.TokenService
	notifier       *notifications.Notifier
	hub            *notifications.Hub
	featureFlags   *featureflags.Manager

	users     *service.UserService
	events    *service.EventService
	deadlines *service.DeadlineService
	stats     *service.StatisticsService
	feeds     *service.FeedService
	posts     *service.PostService
	social    *service.SocialService
	comments  *service.CommentService
	notes     *service.NoteService
	messages  *service.MessageService
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil; caching and cross-instance notifications are then off.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("timeout-api"),
		tokens:         middleware.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, 0),
		notifier:       notifications.NewNotifier(redisClient),
		hub:            notifications.NewHub(),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
	}

	store := cache.ClientStore(redisClient)
	deps := service.Deps{
		Repos:     repository.New(db),
		Tx:        repository.NewTransactor(db),
		Cache:     store,
		Notifier:  s.notifier,
		Flags:     s.featureFlags,
		Location:  cfg.Location(),
		FeedLimit: cfg.FeedDefaultLimit,
	}

	s.events = service.NewEventService(deps, service.MirrorPostHook{Location: deps.Location})
	s.users = service.NewUserService(deps, s.tokens, s.events.ProfileStatus)
	s.deadlines = service.NewDeadlineService(deps)
	s.stats = service.NewStatisticsService(deps)
	s.feeds = service.NewFeedService(deps)
	s.posts = service.NewPostService(deps)
	s.social = service.NewSocialService(deps)
	s.comments = service.NewCommentService(deps)
	s.notes = service.NewNoteService(deps)
	s.messages = service.NewMessageService(deps)
	return s, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS must run before anything that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: time.Minute,
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
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	app.Get("/swagger/*", swagger.HandlerDefault)

	api := app.Group("/api")
	auth := s.tokens.Required()
	optional := s.tokens.Optional()
	limit := func(n int, window time.Duration, name string) fiber.Handler {
		return middleware.RateLimit(s.redis, n, window, name)
	}

	authGroup := api.Group("/auth")
	authGroup.Post("/signup", limit(3, 10*time.Minute, "signup"), s.Signup)
	authGroup.Post("/login", limit(10, 5*time.Minute, "login"), s.Login)

	users := api.Group("/users")
	users.Get("/me", auth, s.GetMyProfile)
	users.Put("/me", auth, s.UpdateMyProfile)
	// Define specific /:id/:resource routes BEFORE generic /:id route
	users.Get("/:id/posts", optional, s.GetUserPosts)
	users.Get("/:id/followers", s.GetFollowers)
	users.Get("/:id/following", s.GetFollowing)
	users.Post("/:id/follow", auth, limit(30, time.Minute, "follow"), s.ToggleFollow)
	users.Get("/:id", optional, s.GetUserProfile)

	events := api.Group("/events", auth)
	events.Get("/", s.ListEvents)
	events.Post("/", limit(60, time.Minute, "save_event"), s.CreateEvent)
	events.Get("/:id", s.GetEvent)
	events.Put("/:id", limit(60, time.Minute, "save_event"), s.UpdateEvent)
	events.Delete("/:id", s.DeleteEvent)

	api.Get("/calendar", auth, s.GetCalendar)
	api.Get("/calendar.ics", auth, s.ExportCalendar)

	deadlines := api.Group("/deadlines", auth)
	deadlines.Get("/", s.ListDeadlines)
	deadlines.Post("/:id/complete", s.CompleteDeadline)

	api.Get("/statistics", auth, s.GetStatistics)

	feed := api.Group("/feed", optional)
	feed.Get("/following", s.GetFollowingFeed)
	feed.Get("/discover", s.GetDiscoverFeed)
	api.Get("/bookmarks", auth, s.GetBookmarks)

	posts := api.Group("/posts")
	posts.Post("/", auth, limit(10, time.Minute, "create_post"), s.CreatePost)
	// Define specific /:id/:resource routes BEFORE generic /:id route
	posts.Post("/:id/like", auth, limit(60, time.Minute, "like"), s.ToggleLike)
	posts.Post("/:id/bookmark", auth, limit(60, time.Minute, "bookmark"), s.ToggleBookmark)
	posts.Get("/:id/comments", optional, s.ListComments)
	posts.Post("/:id/comments", auth, limit(10, time.Minute, "create_comment"), s.CreateComment)
	posts.Get("/:id", optional, s.GetPost)
	posts.Delete("/:id", auth, s.DeletePost)

	api.Delete("/comments/:id", auth, s.DeleteComment)

	notes := api.Group("/notes", auth)
	notes.Get("/", s.ListNotes)
	notes.Post("/", limit(30, time.Minute, "save_note"), s.CreateNote)
	notes.Post("/:id/pin", s.TogglePin)
	notes.Post("/:id/share", limit(10, time.Minute, "create_post"), s.ShareNote)
	notes.Put("/:id", limit(30, time.Minute, "save_note"), s.UpdateNote)
	notes.Delete("/:id", s.DeleteNote)

	conversations := api.Group("/conversations", auth)
	conversations.Get("/", s.GetConversations)
	conversations.Post("/", s.CreateConversation)
	// Define specific /:id/:resource routes BEFORE generic /:id route
	conversations.Post("/:id/messages", limit(15, time.Minute, "send_message"), s.SendMessage)
	conversations.Get("/:id/poll", s.PollMessages)
	conversations.Get("/:id", s.GetConversation)

	api.Get("/ws", auth, s.WebsocketHandler())
}

// App builds the fiber app with middleware and routes. Start serves it.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "Timeout API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now().UTC(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if sqlDB, err := s.db.DB(); err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	// Redis is optional: without it the app runs uncached.
	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overall := "healthy"
	if dbStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now().UTC(),
	})
}

// Start wires realtime delivery and serves HTTP until the app shuts down.
func (s *Server) Start() error {
	s.shutdownCtx, s.shutdownFn = context.WithCancel(context.Background())
	s.app = s.App()

	if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
		middleware.Logger.Error("failed to start notification wiring", "error", err)
	}

	middleware.Logger.Info("server starting", "port", s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", "error", err)
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down websocket hub", "error", err)
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", "error", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", "error", rerr)
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}

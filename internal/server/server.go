// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"devshelf/internal/bootstrap"
	"devshelf/internal/cache"
	"devshelf/internal/config"
	"devshelf/internal/featureflags"
	"devshelf/internal/llm"
	"devshelf/internal/mailer"
	"devshelf/internal/middleware"
	"devshelf/internal/models"
	"devshelf/internal/notifications"
	"devshelf/internal/repository"
	"devshelf/internal/service"
	"devshelf/internal/storage"
	"devshelf/internal/webimport"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// bodyLimit leaves headroom above the largest accepted upload for multipart framing.
const bodyLimit = 8 * 1024 * 1024

var (
	promOnce sync.Once
	prom     *fiberprometheus.FiberPrometheus
)

// requestMetrics registers the request collectors once per process.
func requestMetrics() *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		prom = middleware.InitMetrics("devshelf-api")
	})
	return prom
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

	userRepo     repository.UserRepository
	notifier     *notifications.Notifier
	hub          *notifications.Hub
	featureFlags *featureflags.Manager
	uploader     storage.Uploader

	userService          *service.UserService
	followService        *service.FollowService
	blogService          *service.BlogService
	commentService       *service.CommentService
	resourceService      *service.ResourceService
	notificationService  *service.NotificationService
	profileAIService     *service.ProfileAIService
	uploadService        *service.UploadService
	passwordResetService *service.PasswordResetService
	contactService       *service.ContactService
}

// NewServer initializes the runtime (database, Redis, dev root admin and
// optional demo seed) and builds a Server on top of it.
func NewServer(ctx context.Context, cfg *config.Config, opts bootstrap.Options) (*Server, error) {
	db, rdb, err := bootstrap.InitRuntime(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}
	// Redis is optional; a nil client disables caching, tickets and realtime fan-out.
	return NewServerWithDeps(cfg, db, rdb)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis and optionally
// performs explicit seeding.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	codec, err := service.NewShareCodec(cfg.HashidsSalt)
	if err != nil {
		return nil, fmt.Errorf("share codec: %w", err)
	}
	uploader, err := newUploader(cfg)
	if err != nil {
		return nil, fmt.Errorf("uploader: %w", err)
	}

	userRepo := repository.NewUserRepository(db)
	followRepo := repository.NewFollowRepository(db)
	blogRepo := repository.NewBlogRepository(db)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: requestMetrics(),
		userRepo:       userRepo,
		notifier:       notifications.NewNotifier(redisClient),
		hub:            notifications.NewHub(),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		uploader:       uploader,
	}

	importer := webimport.NewImporter(webimport.NewFetcher(webimport.Options{}))
	mail := mailer.New(mailer.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	})
	completer := llm.New(llm.Config{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
	})

	s.userService = service.NewUserService(userRepo, followRepo)
	isAdmin := s.userService.IsAdmin
	s.notificationService = service.NewNotificationService(repository.NewNotificationRepository(db), userRepo, s.notifier)
	s.followService = service.NewFollowService(followRepo, userRepo, s.notificationService)
	s.blogService = service.NewBlogService(blogRepo, followRepo, s.notificationService, importer, codec, isAdmin)
	s.commentService = service.NewCommentService(repository.NewCommentRepository(db), blogRepo, s.notificationService, isAdmin)
	s.resourceService = service.NewResourceService(repository.NewResourceRepository(db), importer, s.notificationService, isAdmin)
	s.profileAIService = service.NewProfileAIService(userRepo, blogRepo, completer)
	s.uploadService = service.NewUploadService(uploader, cfg.UploadMaxSizeMB)
	s.passwordResetService = service.NewPasswordResetService(userRepo, repository.NewPasswordResetRepository(db), mail, cfg.AppURL)
	s.contactService = service.NewContactService(repository.NewContactRepository(db), mail, cfg.ContactTo)

	return s, nil
}

func newUploader(cfg *config.Config) (storage.Uploader, error) {
	if cfg.OSSEnabled() {
		return storage.NewOSSUploader(storage.OSSConfig{
			Endpoint:        cfg.OSSEndpoint,
			Region:          cfg.OSSRegion,
			Bucket:          cfg.OSSBucket,
			PublicBaseURL:   cfg.OSSPublicBaseURL,
			AccessKeyID:     cfg.OSSAccessKeyID,
			AccessKeySecret: cfg.OSSAccessKeySecret,
		}), nil
	}
	dir := cfg.UploadDir
	if dir == "" {
		dir = "./uploads"
	}
	return storage.NewLocalUploader(dir, "/uploads")
}

// NewApp builds the Fiber app with the JSON error handler, middleware and routes.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "DevShelf API",
		BodyLimit:    bodyLimit,
		ErrorHandler: s.ErrorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// ErrorHandler renders framework errors (unknown route, body too large) and
// unhandled errors in the API's JSON error shape.
func (s *Server) ErrorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code := models.CodeInternal
		switch {
		case fiberErr.Code == fiber.StatusNotFound:
			code = models.CodeNotFound
		case fiberErr.Code == fiber.StatusUnauthorized:
			code = models.CodeUnauthorized
		case fiberErr.Code == fiber.StatusForbidden:
			code = models.CodeForbidden
		case fiberErr.Code < fiber.StatusInternalServerError:
			code = models.CodeValidation
		}
		return c.Status(fiberErr.Code).JSON(models.ErrorResponse{Error: fiberErr.Message, Code: code})
	}
	return s.respondError(c, err)
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	// Tracing runs before the context middleware so trace ids reach the logger.
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New(helmet.Config{
		// Uploaded images are served from this origin to the web client.
		CrossOriginResourcePolicy: "cross-origin",
	}))
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:3000,http://127.0.0.1:3000"
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
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || middleware.RateLimitDisabled()
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please try again later.",
				Code:  "RATE_LIMITED",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	if local, ok := s.uploader.(*storage.LocalUploader); ok {
		app.Static("/uploads", local.Dir(), fiber.Static{MaxAge: 86400})
	}

	api := app.Group("/api")
	api.Get("/", s.ReadinessCheck)
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "DevShelf Backend Metrics Dashboard",
	}))

	auth := s.AuthRequired()

	// Auth
	authGroup := api.Group("/auth")
	authGroup.Post("/signup", middleware.RateLimit(s.redis, 3, 10*time.Minute, "signup"), s.Signup)
	authGroup.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	authGroup.Post("/logout", auth, s.Logout)
	authGroup.Get("/me", auth, s.Me)
	authGroup.Post("/forgot-password", middleware.RateLimit(s.redis, 3, 15*time.Minute, "forgot_password"), s.ForgotPassword)
	authGroup.Post("/reset-password", middleware.RateLimit(s.redis, 10, 15*time.Minute, "reset_password"), s.ResetPassword)

	// Users. The /me routes are registered before the generic /:username route.
	users := api.Group("/users")
	users.Get("/me", auth, s.GetMyProfile)
	users.Put("/me", auth, s.UpdateMyProfile)
	users.Get("/me/saved-blogs", auth, s.GetMySavedBlogs)
	users.Get("/me/bookmarks", auth, s.GetMyBookmarks)
	users.Post("/me/bio/generate", auth,
		s.FeatureRequired(featureflags.AIBio),
		middleware.RateLimit(s.redis, 5, 10*time.Minute, "bio_generate"),
		s.GenerateBio)
	users.Get("/:id/blogs", s.GetUserBlogs)
	users.Get("/:id/resources", s.GetUserResources)
	users.Get("/:id/followers", s.GetFollowers)
	users.Get("/:id/following", s.GetFollowing)
	users.Post("/:id/follow", auth, s.FollowUser)
	users.Delete("/:id/follow", auth, s.UnfollowUser)
	users.Get("/:username", s.GetUserProfile)

	// Blogs. Specific paths come before /:id.
	blogs := api.Group("/blogs")
	blogs.Get("/", s.GetBlogs)
	blogs.Get("/s/:code", s.GetBlogByShareCode)
	blogs.Post("/", auth, middleware.RateLimit(s.redis, 5, 10*time.Minute, "create_blog"), s.CreateBlog)
	blogs.Post("/import", auth,
		s.FeatureRequired(featureflags.BlogImport),
		middleware.RateLimit(s.redis, 10, 10*time.Minute, "blog_import"),
		s.ImportBlog)
	blogs.Get("/:id/comments", s.GetComments)
	blogs.Post("/:id/comments", auth, middleware.RateLimit(s.redis, 10, time.Minute, "create_comment"), s.CreateComment)
	blogs.Put("/:id/comments/:commentId", auth, s.UpdateComment)
	blogs.Delete("/:id/comments/:commentId", auth, s.DeleteComment)
	blogs.Post("/:id/vote", auth, s.VoteBlog)
	blogs.Post("/:id/save", auth, s.SaveBlog)
	blogs.Put("/:id/save", auth, s.SaveBlog)
	blogs.Delete("/:id/save", auth, s.SaveBlog)
	blogs.Get("/:id", s.GetBlog)
	blogs.Put("/:id", auth, s.UpdateBlog)
	blogs.Delete("/:id", auth, s.DeleteBlog)

	comments := api.Group("/comments", auth)
	comments.Post("/:id/like", s.LikeComment)
	comments.Put("/:id/like", s.LikeComment)
	comments.Delete("/:id/like", s.LikeComment)

	// Resources. Specific paths come before /:id.
	resources := api.Group("/resources")
	resources.Get("/", s.GetResources)
	resources.Get("/categories", s.GetResourceCategories)
	resources.Post("/preview", auth, middleware.RateLimit(s.redis, 20, 10*time.Minute, "resource_preview"), s.PreviewResource)
	resources.Post("/", auth, middleware.RateLimit(s.redis, 10, 10*time.Minute, "create_resource"), s.CreateResource)
	resources.Post("/:id/like", auth, s.LikeResource)
	resources.Put("/:id/like", auth, s.LikeResource)
	resources.Delete("/:id/like", auth, s.LikeResource)
	resources.Post("/:id/bookmark", auth, s.BookmarkResource)
	resources.Put("/:id/bookmark", auth, s.BookmarkResource)
	resources.Delete("/:id/bookmark", auth, s.BookmarkResource)
	resources.Get("/:id", s.GetResource)
	resources.Put("/:id", auth, s.UpdateResource)
	resources.Delete("/:id", auth, s.DeleteResource)

	api.Post("/categorize", s.Categorize)

	// Notifications
	notifs := api.Group("/notifications", auth)
	notifs.Get("/", s.GetNotifications)
	notifs.Get("/unread-count", s.GetUnreadCount)
	notifs.Post("/read-all", s.MarkAllNotificationsRead)
	notifs.Post("/:id/read", s.MarkNotificationRead)
	notifs.Delete("/:id", s.DeleteNotification)

	// Realtime: a ticket is issued over HTTP, then redeemed by the upgrade.
	api.Post("/ws/ticket", auth, s.IssueWSTicket)
	api.Get("/ws", s.WSTicketRequired(), s.WebsocketHandler())

	api.Post("/uploads/image", auth, middleware.RateLimit(s.redis, 20, 10*time.Minute, "upload_image"), s.UploadImage)
	api.Post("/contact", middleware.RateLimit(s.redis, 3, 10*time.Minute, "contact"), s.SubmitContact)

	// Admin
	admin := api.Group("/admin", auth, s.AdminRequired())
	admin.Post("/users/:id/ban", s.BanUser)
	admin.Post("/users/:id/unban", s.UnbanUser)
	admin.Get("/contact-messages", s.GetContactMessages)
	admin.Get("/feature-flags", s.GetFeatureFlags)
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

	// Redis only backs caching and realtime delivery, so its absence degrades
	// the instance without taking it out of rotation.
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
	switch {
	case dbStatus != "healthy":
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	case redisStatus != "healthy":
		overallStatus = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"service": "devshelf-api",
		"status":  overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AuthRequired returns the authentication middleware. It accepts a Bearer
// token and rejects tokens whose jti has been revoked.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := middleware.BearerToken(c)
		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		claims, err := s.authenticate(c, tokenString)
		if err != nil {
			return s.respondError(c, err)
		}

		c.Locals("userID", claims.UserID)
		c.Locals("tokenClaims", claims)
		c.SetUserContext(middleware.WithUserID(c.UserContext(), claims.UserID))
		return c.Next()
	}
}

// authenticate validates tokenString and checks that it has not been revoked
// and that its account still exists and is not banned.
func (s *Server) authenticate(c *fiber.Ctx, tokenString string) (*middleware.TokenClaims, error) {
	claims, err := middleware.ParseToken(s.config.JWTSecret, tokenString)
	if err != nil {
		return nil, models.NewUnauthorizedError("Invalid or expired token")
	}

	if claims.JTI != "" && s.redis != nil {
		revoked, err := s.redis.Exists(c.UserContext(), middleware.BlacklistKey(claims.JTI)).Result()
		if err == nil && revoked > 0 {
			return nil, models.NewUnauthorizedError("Token has been revoked")
		}
	}

	// Bans take effect on tokens issued before the ban.
	if s.userService != nil {
		user, err := s.userService.GetUserByID(c.UserContext(), claims.UserID)
		if err != nil {
			if models.StatusFor(err) == fiber.StatusNotFound {
				return nil, models.NewUnauthorizedError("Account no longer exists")
			}
			return nil, err
		}
		if user.IsBanned {
			return nil, models.NewForbiddenError("This account has been suspended")
		}
	}
	return claims, nil
}

// WSTicketRequired authenticates a websocket upgrade with a single-use ticket
// issued by IssueWSTicket. Tokens are never accepted in the query string.
func (s *Server) WSTicketRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ticket := c.Query("ticket")
		if ticket == "" || s.redis == nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("WebSocket ticket required"))
		}

		userIDStr, err := s.redis.GetDel(c.UserContext(), cache.WSTicketKey(ticket)).Result()
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
		}
		userID, err := strconv.ParseUint(userIDStr, 10, 32)
		if err != nil || userID == 0 {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
		}

		c.Locals("userID", uint(userID))
		c.SetUserContext(middleware.WithUserID(c.UserContext(), uint(userID)))
		return c.Next()
	}
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := c.Locals("userID").(uint)
		admin, err := s.userService.IsAdmin(c.UserContext(), userID)
		if err != nil {
			return s.respondError(c, err)
		}
		if !admin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}
		return c.Next()
	}
}

// FeatureRequired hides a route behind a feature flag, evaluated for the caller.
func (s *Server) FeatureRequired(flag string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := c.Locals("userID").(uint)
		if s.featureFlags == nil || !s.featureFlags.Enabled(flag, userID) {
			return models.RespondWithError(c, fiber.StatusNotFound,
				&models.AppError{Code: models.CodeNotFound, Message: "This feature is not available"})
		}
		return c.Next()
	}
}

// optionalUserID resolves the caller from the Authorization header without requiring one.
func (s *Server) optionalUserID(c *fiber.Ctx) uint {
	if uid, ok := c.Locals("userID").(uint); ok {
		return uid
	}
	tokenString := middleware.BearerToken(c)
	if tokenString == "" {
		return 0
	}
	// Revoked, banned or orphaned tokens browse anonymously.
	claims, err := s.authenticate(c, tokenString)
	if err != nil {
		return 0
	}
	return claims.UserID
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.NewApp()

	if s.redis != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil && !errors.Is(err, context.Canceled) {
				middleware.Logger.Error("hub wiring stopped",
					slog.String("hub", s.hub.Name()),
					slog.String("error", err.Error()),
				)
			}
		}()
	} else {
		middleware.Logger.Warn("redis unavailable, realtime notifications disabled")
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
			middleware.Logger.Error("error shutting down hub", slog.String("error", err.Error()))
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil && !strings.Contains(rerr.Error(), "closed") {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}

package main

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/streadway/amqp"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"gymbro/internal/cache"
	"gymbro/internal/config"
	"gymbro/internal/handlers"
	"gymbro/internal/logger"
	"gymbro/internal/middleware"
	"gymbro/internal/models"
	"gymbro/internal/repositories"
	"gymbro/internal/services"
	"gymbro/pkg/rabbitmq"
)

// App is the assembled server: the Fiber app plus the connections it owns.
type App struct {
	Fiber *fiber.App

	log     *logger.Logger
	cache   cache.Store
	mq      *rabbitmq.Client
	closers []func() error
}

// NewApp connects the stores selected by cfg and registers every route.
func NewApp(cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{log: log}

	docs, identities, err := a.openStores(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.RedisAddr != "" {
		redisStore, err := cache.NewRedisStore(cfg.RedisAddr, cfg.RedisPrefix, log)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		a.cache = redisStore
	} else {
		log.Warn("REDIS_ADDR not set, match state is kept in memory")
		a.cache = cache.NewMemoryStore()
	}
	a.closers = append(a.closers, a.cache.Close)

	// A nil *rabbitmq.Client must not end up inside the interface.
	var events services.EventPublisher
	if cfg.RabbitMQURL != "" {
		mq, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL}, log)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize RabbitMQ client: %w", err)
		}
		a.mq = mq
		a.closers = append(a.closers, mq.Close)
		events = mq
	} else {
		log.Warn("RABBITMQ_URL not set, domain events are disabled")
	}

	// --- Initialize Services ---
	usernameService := services.NewUsernameService(docs, log,
		services.WithHandleGenerator(services.NewRandomHandleGenerator(rand.NewSource(time.Now().UnixNano()))),
		services.WithRandomAttempts(cfg.UsernameRandomAttempts),
		services.WithEventPublisher(events),
	)
	profileService := services.NewProfileService(docs, log)
	matchService := services.NewMatchService(a.cache, profileService, events, log, cfg.MatchDefaultLimit)
	postService := services.NewPostService(docs, profileService, log)
	identityService := services.NewIdentityService(identities, usernameService, cfg.JWTSecret, log)

	// --- Initialize Handlers ---
	authHandler := handlers.NewAuthHandler(identityService, usernameService, log)
	usernameHandler := handlers.NewUsernameHandler(usernameService, log)
	profileHandler := handlers.NewProfileHandler(profileService, log)
	matchHandler := handlers.NewMatchHandler(matchService, log)
	postHandler := handlers.NewPostHandler(postService, log)

	app := fiber.New(fiber.Config{
		AppName:               "gymbro",
		DisableStartupMessage: true,
	})
	app.Use(fiberlogger.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": cfg.DatabaseDriver,
			"events":   a.mq != nil,
		})
	})

	apiV1 := app.Group("/api/v1")

	// Public routes
	authHandler.RegisterRoutes(apiV1)
	usernameHandler.RegisterPublicRoutes(apiV1)

	// Protected routes (require JWT authentication)
	protected := apiV1.Group("", middleware.AuthRequired(identityService, log))
	usernameHandler.RegisterRoutes(protected)
	profileHandler.RegisterRoutes(protected)
	matchHandler.RegisterRoutes(protected)
	postHandler.RegisterRoutes(protected)

	a.Fiber = app
	return a, nil
}

func (a *App) openStores(cfg *config.Config) (repositories.DocumentStore, repositories.IdentityRepository, error) {
	var dialector gorm.Dialector
	switch cfg.DatabaseDriver {
	case config.DriverMemory:
		a.log.Warn("using in-memory stores, data is lost on restart")
		return repositories.NewMockDocumentStore(), repositories.NewMockIdentityRepository(), nil
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DatabaseDSN)
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.DatabaseDSN)
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	gormLevel := gormlogger.Warn
	if cfg.Production() {
		gormLevel = gormlogger.Error
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormLevel)})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	a.closers = append(a.closers, sqlDB.Close)
	if cfg.DatabaseDriver == config.DriverSQLite {
		// SQLite allows one writer; serializing connections avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&models.Document{}, &models.Identity{}); err != nil {
		return nil, nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	a.log.Info("database ready", "driver", cfg.DatabaseDriver)

	return repositories.NewGORMDocumentStore(db, cfg.DocstoreTxAttempts), repositories.NewGORMIdentityRepository(db), nil
}

// StartEventLog consumes the event queue and logs every domain event. It is
// a no-op when events are disabled.
func (a *App) StartEventLog() error {
	if a.mq == nil {
		return nil
	}
	return a.mq.ConsumeEvents(func(msg amqp.Delivery) error {
		a.log.Info("domain event", "routing_key", msg.RoutingKey, "body", string(msg.Body))
		return nil
	})
}

// Close releases every connection in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

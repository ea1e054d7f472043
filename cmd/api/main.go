package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/hiveregistry/registry/internal/audit"
	"github.com/hiveregistry/registry/internal/authz"
	"github.com/hiveregistry/registry/internal/cdn"
	"github.com/hiveregistry/registry/internal/domain"
	"github.com/hiveregistry/registry/internal/idempotency"
	"github.com/hiveregistry/registry/internal/infrastructure/database"
	"github.com/hiveregistry/registry/internal/infrastructure/middleware"
	"github.com/hiveregistry/registry/internal/interfaces"
	"github.com/hiveregistry/registry/internal/lifecycle"
	"github.com/hiveregistry/registry/internal/orchestrator"
	"github.com/hiveregistry/registry/internal/registry/store"
	"github.com/hiveregistry/registry/pkg/config"
	"github.com/hiveregistry/registry/pkg/logger"
)

type Application struct {
	Config      *config.Config
	Logger      *logger.Logger
	Postgres    *database.PostgresDB
	Redis       *database.RedisClient
	Mongo       *database.MongoClient
	Fiber       *fiber.App
	Store       *store.GormStore
	Authorizer  *authz.Authorizer
	Publisher   *cdn.Publisher
	Runner      *idempotency.Runner
	Mirror      *audit.Mirror
	Coordinator *lifecycle.Coordinator
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	loggerInstance, err := logger.NewLogger(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		OutputPath: cfg.Logger.OutputPath,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	app := &Application{
		Config: cfg,
		Logger: loggerInstance,
	}

	if err := app.setupDatabases(); err != nil {
		log.Fatalf("Failed to setup databases: %v", err)
	}

	if err := app.setupRegistry(); err != nil {
		log.Fatalf("Failed to setup registry components: %v", err)
	}

	app.setupFiber()
	app.setupRoutes()
	app.start()
}

func (app *Application) setupDatabases() error {
	var err error

	app.Postgres, err = database.NewPostgresDB(database.PostgresConfig{
		Host:               app.Config.Database.Host,
		Port:               app.Config.Database.Port,
		User:               app.Config.Database.User,
		Password:           app.Config.Database.Password,
		DBName:             app.Config.Database.DBName,
		SSLMode:            app.Config.Database.SSLMode,
		MaxOpenConnections: app.Config.Database.MaxOpenConnections,
		MaxIdleConnections: app.Config.Database.MaxIdleConnections,
		ConnectionMaxAge:   app.Config.Database.ConnectionMaxAge,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	log.Println("Connected to PostgreSQL")

	app.Redis, err = database.NewRedisClient(database.RedisConfig{
		Host:     app.Config.Redis.Host,
		Port:     app.Config.Redis.Port,
		Password: app.Config.Redis.Password,
		DB:       app.Config.Redis.DB,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Println("Connected to Redis")

	app.Mongo, err = database.NewMongoClient(database.MongoConfig{
		URI:      app.Config.MongoDB.URI,
		Database: app.Config.MongoDB.Database,
		Timeout:  app.Config.MongoDB.Timeout,
	})
	if err != nil {
		// the audit mirror is best-effort; the registry runs without it.
		app.Logger.Warnw("MongoDB unavailable, audit mirror disabled", "error", err)
		app.Mongo = nil
	} else {
		log.Println("Connected to MongoDB")
	}

	return nil
}

func (app *Application) setupRegistry() error {
	app.Store = store.NewGormStore(app.Postgres.DB)
	if err := app.Store.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate registry schema: %w", err)
	}

	authorizer, err := authz.New(app.Postgres.DB)
	if err != nil {
		return fmt.Errorf("failed to initialize authorizer: %w", err)
	}
	app.Authorizer = authorizer

	publisher, err := cdn.NewPublisher(cdn.Config{
		AccessKeyID:     app.Config.CDN.AccessKeyID,
		SecretAccessKey: app.Config.CDN.SecretAccessKey,
		Region:          app.Config.CDN.Region,
		Bucket:          app.Config.CDN.Bucket,
		Endpoint:        app.Config.CDN.Endpoint,
		PublicURL:       app.Config.CDN.PublicURL,
		ForcePathStyle:  app.Config.CDN.ForcePathStyle,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize CDN publisher: %w", err)
	}
	app.Publisher = publisher

	app.Runner = idempotency.NewRunner(app.Redis.Client)

	if app.Mongo != nil {
		app.Mirror = audit.NewMirror(app.Mongo.Database)
	}

	encryptionKey := []byte(app.Config.Orchestrator.EncryptionKey)
	federationClient := orchestrator.NewFederationClient(app.Config.Orchestrator.Endpoint, app.Config.Orchestrator.RequestTimeout, encryptionKey)

	orchestratorFor := func(project *domain.Project) orchestrator.Client {
		switch project.Type {
		case domain.ProjectTypeSingle:
			return orchestrator.NewSingleClient()
		case domain.ProjectTypeStitching:
			return orchestrator.NewStitchingClient()
		case domain.ProjectTypeCustom:
			validationURL, buildURL := "", ""
			if project.ValidationURL != nil {
				validationURL = *project.ValidationURL
			}
			if project.BuildURL != nil {
				buildURL = *project.BuildURL
			}
			return orchestrator.NewCustomClient(validationURL, buildURL, app.Config.Orchestrator.RequestTimeout)
		default:
			return federationClient
		}
	}

	app.Coordinator = lifecycle.NewCoordinator(
		app.Store,
		app.Authorizer,
		app.Publisher,
		app.Runner,
		app.Mirror,
		app.Logger,
		orchestratorFor,
	)

	log.Println("Registry components initialized")
	return nil
}

func (app *Application) setupFiber() {
	app.Fiber = fiber.New(fiber.Config{
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
		ErrorHandler: middleware.ErrorHandler,
	})

	middleware.SetupMiddleware(app.Fiber)
}

func (app *Application) setupRoutes() {
	authMiddleware := middleware.AuthMiddleware([]byte(app.Config.JWT.Secret), app.Logger.Desugar())

	schemaHandler := interfaces.NewSchemaHandler(app.Coordinator, app.Logger.Desugar())
	versionHandler := interfaces.NewVersionHandler(app.Store.Versions())

	interfaces.SetupSchemaRoutes(app.Fiber, schemaHandler, versionHandler, authMiddleware)

	app.Fiber.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"time":    time.Now().UTC(),
			"version": app.Config.App.Version,
		})
	})
}

func (app *Application) start() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", app.Config.Server.Host, app.Config.Server.Port)
		log.Printf("Starting server on %s", addr)

		if err := app.Fiber.Listen(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.Fiber.ShutdownWithContext(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	if app.Postgres != nil {
		if err := app.Postgres.Close(); err != nil {
			log.Printf("Failed to close PostgreSQL connection: %v", err)
		}
	}

	if app.Redis != nil {
		if err := app.Redis.Close(); err != nil {
			log.Printf("Failed to close Redis connection: %v", err)
		}
	}

	if app.Mongo != nil {
		if err := app.Mongo.Close(ctx); err != nil {
			log.Printf("Failed to close MongoDB connection: %v", err)
		}
	}

	log.Println("Server exited")
}

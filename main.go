package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/scorecard/pkg/auth"
	"github.com/ekaya-inc/scorecard/pkg/config"
	"github.com/ekaya-inc/scorecard/pkg/database"
	"github.com/ekaya-inc/scorecard/pkg/handlers"
	"github.com/ekaya-inc/scorecard/pkg/logging"
	"github.com/ekaya-inc/scorecard/pkg/middleware"
	"github.com/ekaya-inc/scorecard/pkg/repositories"
	"github.com/ekaya-inc/scorecard/pkg/search"
	"github.com/ekaya-inc/scorecard/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

const shutdownTimeout = 15 * time.Second

// redisPinger adapts a Redis client to the health check.
type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Configuration loaded",
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("database", cfg.Database.Host),
		zap.Bool("redis", cfg.Redis.Enabled()))

	db, err := database.ConnectWithRetry(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	}, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	err = database.RunMigrations(sqlDB, logger)
	_ = sqlDB.Close()
	if err != nil {
		return err
	}

	dependencies := map[string]handlers.Pinger{"postgres": db.Pool}

	var indexer search.Indexer = search.NewLogIndexer(logger)
	redisClient, err := database.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		indexer = search.NewRedisQueue(redisClient, cfg.Redis.IndexQueue, logger)
		dependencies["redis"] = redisPinger{client: redisClient}
	}

	projectRepo := repositories.NewProjectRepository(db)
	projectTypeRepo := repositories.NewProjectTypeRepository(db)
	factTypeRepo := repositories.NewFactTypeRepository(db)
	factRepo := repositories.NewFactRepository(db)
	integrationRepo := repositories.NewIntegrationRepository(db)
	identifierRepo := repositories.NewIdentifierRepository(db)

	factService := services.NewFactService(factRepo, factTypeRepo, projectRepo, db, indexer, logger)
	projectService := services.NewProjectService(projectRepo, projectTypeRepo, factService, indexer, logger)
	factTypeService := services.NewFactTypeService(factTypeRepo, projectTypeRepo, factService, db, indexer, logger)
	integrationService := services.NewIntegrationService(integrationRepo, identifierRepo, projectRepo, factTypeRepo, logger)
	notificationService := services.NewNotificationService(integrationRepo, identifierRepo, projectRepo,
		factService, indexer, cfg.Notifications.RecordedByPrefix, logger)

	jwksClient, err := auth.NewJWKSClient(&auth.JWKSConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		JWKSEndpoints:      cfg.Auth.JWKSEndpoints,
		Audience:           cfg.Auth.Audience,
	})
	if err != nil {
		return err
	}
	defer jwksClient.Close()
	authMiddleware := auth.NewMiddleware(auth.NewAuthService(jwksClient, logger), logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, dependencies, logger).RegisterRoutes(mux)
	handlers.NewProjectHandler(projectService, logger).RegisterRoutes(mux, authMiddleware, cfg.Auth.AdminRole)
	handlers.NewFactHandler(factService, integrationService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewFactTypeHandler(factTypeService, logger).RegisterRoutes(mux, authMiddleware, cfg.Auth.AdminRole)
	handlers.NewIntegrationHandler(integrationService, notificationService, logger).
		RegisterRoutes(mux, authMiddleware, cfg.Auth.AdminRole)

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestID(middleware.Recover(logger)(middleware.RequestLogger(logger)(mux))),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting scorecard", zap.String("addr", server.Addr), zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

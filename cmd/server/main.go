package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/lunarhue/linkmark/config"
	appclient "github.com/lunarhue/linkmark/internal/app/client"
	appmodel "github.com/lunarhue/linkmark/internal/app/model"
	apprepository "github.com/lunarhue/linkmark/internal/app/repository"
	appserver "github.com/lunarhue/linkmark/internal/app/server"
	appservice "github.com/lunarhue/linkmark/internal/app/service"
	"github.com/lunarhue/linkmark/internal/infra/logger"
	infraNATS "github.com/lunarhue/linkmark/internal/infra/nats"
	infraPostgres "github.com/lunarhue/linkmark/internal/infra/postgres"
	infraPrometheus "github.com/lunarhue/linkmark/internal/infra/prometheus"
	infraRedis "github.com/lunarhue/linkmark/internal/infra/redis"
)

func main() {
	ctx := context.Background()

	isDev := os.Getenv("APP_ENV") != "production"
	log := logger.MustInit(logger.Config{
		Development: isDev,
		Level:       os.Getenv("LOG_LEVEL"),
	})
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Configuration loaded successfully",
		zap.String("postgres_user", cfg.Postgres.User),
		zap.String("postgres_host", cfg.Postgres.Host),
		zap.Int("postgres_port", cfg.Postgres.Port),
		zap.String("postgres_db", cfg.Postgres.Database),
		zap.String("redis_host", cfg.Redis.Host),
		zap.Int("redis_port", cfg.Redis.Port),
		zap.String("nats_host", cfg.NATS.Host),
		zap.Int("nats_port", cfg.NATS.Port),
		zap.String("tags_base_url", cfg.Tags.BaseURL),
	)

	gormDB, err := infraPostgres.NewGorm(cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to open GORM connection", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal("Failed to access underlying SQL DB", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := infraPostgres.AutoMigrate(ctx, gormDB, &appmodel.Link{}); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}

	pool, err := infraPostgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer pool.Close()

	log.Info("Connected to Postgres successfully")

	redisClient, err := infraRedis.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("Connected to Redis successfully")

	natsConn, js, err := infraNATS.Connect(cfg.NATS)
	if err != nil {
		log.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer natsConn.Drain()
	log.Info("Connected to NATS successfully", zap.Bool("jetstream_ready", js != nil))

	if !isDev {
		promServer := infraPrometheus.NewServer(cfg.Prometheus)
		go func() {
			log.Info("Starting Prometheus metrics server",
				zap.Int("port", cfg.Prometheus.Port))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	} else {
		log.Info("Skipping Prometheus metrics server in development mode")
	}

	publisher := appservice.NewLinkEventPublisher(js)
	if err := publisher.EnsureStream(); err != nil {
		log.Fatal("Failed to ensure link events stream", zap.Error(err))
	}

	linkRepo := apprepository.NewLinkRepository(gormDB, publisher)
	sharedRepo := apprepository.NewSharedLinkRepository(gormDB)
	tagsClient := appclient.NewTagsClient(cfg.Tags, log)

	consumer := appservice.NewUserDeletedConsumer(js, log, linkRepo)
	if err := consumer.Start(); err != nil {
		log.Fatal("Failed to start user deleted consumer", zap.Error(err))
	}
	defer consumer.Stop()

	server := appserver.New(appserver.Dependencies{
		Logger:      log,
		Postgres:    pool,
		Redis:       redisClient,
		NATS:        natsConn,
		JetStream:   js,
		Links:       linkRepo,
		SharedLinks: sharedRepo,
		Tags:        tagsClient,
	})

	if err := server.Listen(cfg.Server.Addr); err != nil {
		log.Fatal("Fiber server exited", zap.Error(err))
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Nate-Schaefer/SmartDart-App/internal/api/handlers"
	"github.com/Nate-Schaefer/SmartDart-App/internal/archive"
	"github.com/Nate-Schaefer/SmartDart-App/internal/config"
	"github.com/Nate-Schaefer/SmartDart-App/internal/identity"
	"github.com/Nate-Schaefer/SmartDart-App/internal/jobs"
	"github.com/Nate-Schaefer/SmartDart-App/internal/obslog"
	"github.com/Nate-Schaefer/SmartDart-App/internal/rating"
	"github.com/Nate-Schaefer/SmartDart-App/internal/repository"
	"github.com/Nate-Schaefer/SmartDart-App/internal/service"
	"github.com/Nate-Schaefer/SmartDart-App/internal/websocket"
	"github.com/Nate-Schaefer/SmartDart-App/internal/worker"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer obslog.Sync()
	log := obslog.L()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load configuration", zap.Error(err))
	}
	if err := cfg.ValidateAuth(); err != nil {
		log.Fatal("invalid auth configuration", zap.Error(err))
	}

	db, err := initPostgres(cfg)
	if err != nil {
		log.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}
	log.Info("postgres_connected")

	redisClient, err := initRedis(cfg)
	if err != nil {
		log.Fatal("failed to connect to Redis", zap.Error(err))
	}
	log.Info("redis_connected", zap.String("addr", cfg.GetRedisAddr()))

	postgresRepo := repository.NewPostgresRepository(db)
	redisRepo := repository.NewRedisRepository(redisClient)
	matchStore := repository.NewMatchStore(redisClient)

	if err := postgresRepo.AutoMigrate(); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}
	log.Info("migrations_done")

	// Worker pool mirrors committed rating changes into the Redis leaderboard
	workerPool := worker.NewWorkerPool(cfg.Server.WorkerCount, cfg.Server.QueueSize, redisRepo)
	workerPool.Start()

	leaderboardService := service.NewLeaderboardService(redisRepo, postgresRepo)
	ratingService := service.NewRatingService(postgresRepo, rating.NewEngine(cfg.Rating.KFactor), workerPool)
	directoryService := service.NewDirectoryService(postgresRepo, workerPool, service.DirectoryOptions{
		DefaultRating:  cfg.Rating.DefaultRating,
		SearchLimit:    cfg.Social.SearchLimit,
		MaxSearchLimit: cfg.Social.MaxSearchLimit,
	})
	matchService := service.NewMatchService(matchStore, postgresRepo, ratingService, service.MatchOptions{
		StartingScore: cfg.Match.StartingScore,
		SessionTTL:    cfg.Match.SessionTTL,
	})
	socialService := service.NewSocialService(postgresRepo, service.SocialOptions{
		SearchLimit:    cfg.Social.SearchLimit,
		MaxSearchLimit: cfg.Social.MaxSearchLimit,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := leaderboardService.SyncRedisFromPostgres(ctx); err != nil {
		log.Warn("initial leaderboard sync failed", zap.Error(err))
	}

	hub := websocket.NewHub(leaderboardService)
	go hub.Run(ctx)

	var uploader archive.Uploader
	if cfg.Archive.Bucket != "" {
		s3Archive, err := archive.NewS3Archive(ctx, cfg.Archive)
		if err != nil {
			log.Fatal("failed to init snapshot archive", zap.Error(err))
		}
		uploader = s3Archive
	}
	scheduler, err := jobs.NewScheduler(jobs.SchedulerConfig{
		ResyncInterval:   cfg.Jobs.ResyncInterval,
		SnapshotInterval: cfg.Jobs.SnapshotInterval,
		SnapshotSize:     cfg.Jobs.SnapshotSize,
	}, leaderboardService, leaderboardService, uploader)
	if err != nil {
		log.Fatal("failed to create scheduler", zap.Error(err))
	}
	scheduler.Start()

	gateway, err := identity.New(cfg.Auth)
	if err != nil {
		log.Fatal("failed to create identity gateway", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		AppName:      "SmartDart Ledger",
		ErrorHandler: handlers.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowedOrigins,
		AllowMethods: "GET,POST,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-User-ID",
	}))
	if cfg.Server.RateLimit > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        cfg.Server.RateLimit,
			Expiration: time.Minute,
		}))
	}

	handlers.RegisterRoutes(app, handlers.Handlers{
		Profiles:    handlers.NewProfileHandler(directoryService),
		Matches:     handlers.NewMatchHandler(matchService),
		Friends:     handlers.NewFriendHandler(socialService),
		Leaderboard: handlers.NewLeaderboardHandler(leaderboardService, hub),
	}, gateway)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Info("shutting down")

		// Stop scheduled jobs first so no resync races the final flush
		if err := scheduler.Stop(); err != nil {
			log.Warn("scheduler shutdown error", zap.Error(err))
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Warn("server forced to shutdown", zap.Error(err))
		}

		// Flush pending leaderboard cache writes
		if err := workerPool.Shutdown(30 * time.Second); err != nil {
			log.Warn("worker pool shutdown error", zap.Error(err))
		}
		cancel()

		if err := postgresRepo.Close(); err != nil {
			log.Warn("error closing PostgreSQL", zap.Error(err))
		}
		if err := redisRepo.Close(); err != nil {
			log.Warn("error closing Redis", zap.Error(err))
		}
		log.Info("shutdown complete")
	}()

	port := cfg.Server.Port
	log.Info("server_start", zap.Int("port", port), zap.String("auth_mode", cfg.Auth.Mode))
	if err := app.Listen(fmt.Sprintf(":%d", port)); err != nil {
		log.Fatal("failed to start server", zap.Error(err))
	}
}

// initPostgres initializes PostgreSQL connection with connection pooling
func initPostgres(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.GetDSN()), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(30)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	sqlDB.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// initRedis initializes Redis connection with connection pooling
func initRedis(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Username:     cfg.Redis.Username,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     20,
		MinIdleConns: 5,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}

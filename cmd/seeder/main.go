package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/Nate-Schaefer/SmartDart-App/internal/apperr"
	"github.com/Nate-Schaefer/SmartDart-App/internal/config"
	"github.com/Nate-Schaefer/SmartDart-App/internal/models"
	"github.com/Nate-Schaefer/SmartDart-App/internal/obslog"
	"github.com/Nate-Schaefer/SmartDart-App/internal/rating"
	"github.com/Nate-Schaefer/SmartDart-App/internal/repository"
	"github.com/Nate-Schaefer/SmartDart-App/internal/service"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const UsernamePrefix = "player_"

func main() {
	users := flag.Int("users", 200, "number of profiles to create")
	matches := flag.Int("matches", 2000, "number of settled matches to play")
	guestShare := flag.Float64("guest-share", 0.2, "fraction of matches played against a guest")
	flag.Parse()

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

	db, err := initPostgres(cfg)
	if err != nil {
		log.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}
	redisClient, err := initRedis(cfg)
	if err != nil {
		log.Fatal("failed to connect to Redis", zap.Error(err))
	}

	postgresRepo := repository.NewPostgresRepository(db)
	redisRepo := repository.NewRedisRepository(redisClient)
	defer postgresRepo.Close()
	defer redisRepo.Close()

	if err := postgresRepo.AutoMigrate(); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// No worker pool: the cache is rebuilt once at the end.
	directory := service.NewDirectoryService(postgresRepo, nil, service.DirectoryOptions{
		DefaultRating: cfg.Rating.DefaultRating,
	})
	ratings := service.NewRatingService(postgresRepo, rating.NewEngine(cfg.Rating.KFactor), nil)
	leaderboard := service.NewLeaderboardService(redisRepo, postgresRepo)

	ctx := context.Background()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	start := time.Now()
	ids, err := seedProfiles(ctx, directory, *users)
	if err != nil {
		log.Fatal("failed to seed profiles", zap.Error(err))
	}
	log.Info("profiles_seeded", zap.Int("count", len(ids)), zap.Duration("took", time.Since(start)))

	start = time.Now()
	played, err := playMatches(ctx, ratings, ids, *matches, *guestShare, rng)
	if err != nil {
		log.Fatal("failed to play matches", zap.Error(err))
	}
	log.Info("matches_settled", zap.Int("count", played), zap.Duration("took", time.Since(start)))

	if err := leaderboard.SyncRedisFromPostgres(ctx); err != nil {
		log.Fatal("failed to sync leaderboard", zap.Error(err))
	}

	top, err := leaderboard.TopN(ctx, 10)
	if err != nil {
		log.Fatal("failed to read leaderboard", zap.Error(err))
	}
	for _, e := range top.Data {
		log.Info("top", zap.Int("rank", e.Rank), zap.String("username", e.Username), zap.Int("rating", e.Rating))
	}
}

// seedProfiles creates profiles through the directory. Existing usernames are
// skipped so the seeder can be re-run.
func seedProfiles(ctx context.Context, directory *service.DirectoryService, count int) ([]string, error) {
	ids := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		username := fmt.Sprintf("%s%d", UsernamePrefix, i)
		user, err := directory.CreateProfile(ctx, uuid.NewString(), models.CreateProfileRequest{
			Username: username,
			Email:    username + "@example.com",
		})
		if errors.Is(err, apperr.ErrDuplicateUsername) {
			continue
		}
		if err != nil {
			return nil, err
		}
		ids = append(ids, user.ID)
	}
	return ids, nil
}

// playMatches settles random results so ratings and history spread out.
func playMatches(ctx context.Context, ratings *service.RatingService, ids []string, count int, guestShare float64, rng *rand.Rand) (int, error) {
	if len(ids) < 2 {
		return 0, nil
	}
	played := 0
	for i := 0; i < count; i++ {
		a := ids[rng.Intn(len(ids))]
		b := ids[rng.Intn(len(ids))]
		if a == b {
			continue
		}

		winner, loser := a, b
		if rng.Float64() < guestShare {
			// Guest match: the registered player either wins or loses to the guest
			if rng.Intn(2) == 0 {
				loser = ""
			} else {
				winner = ""
			}
		}

		if _, err := ratings.SettleMatch(ctx, uuid.NewString(), winner, loser); err != nil {
			return played, err
		}
		played++
	}
	return played, nil
}

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
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

func initRedis(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.GetRedisAddr(),
		Username:    cfg.Redis.Username,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}

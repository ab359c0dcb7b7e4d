package service

import (
	"context"
	"testing"
	"time"

	"github.com/Nate-Schaefer/SmartDart-App/internal/models"
	"github.com/Nate-Schaefer/SmartDart-App/internal/rating"
	"github.com/Nate-Schaefer/SmartDart-App/internal/repository"
	"github.com/Nate-Schaefer/SmartDart-App/internal/testutil"
	"github.com/Nate-Schaefer/SmartDart-App/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// env wires every service against SQLite and miniredis.
type env struct {
	postgres    *repository.PostgresRepository
	redis       *repository.RedisRepository
	rdb         *redis.Client
	pool        *worker.WorkerPool
	directory   *DirectoryService
	ratings     *RatingService
	matches     *MatchService
	social      *SocialService
	leaderboard *LeaderboardService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	postgresRepo := repository.NewPostgresRepository(testutil.NewDB(t))
	require.NoError(t, postgresRepo.AutoMigrate())
	_, rdb := testutil.NewRedis(t)
	redisRepo := repository.NewRedisRepository(rdb)

	pool := worker.NewWorkerPool(4, 100, redisRepo)
	pool.Start()
	t.Cleanup(func() { pool.Shutdown(time.Second) })

	ratings := NewRatingService(postgresRepo, rating.NewEngine(50), pool)
	return &env{
		postgres: postgresRepo,
		redis:    redisRepo,
		rdb:      rdb,
		pool:     pool,
		directory: NewDirectoryService(postgresRepo, pool, DirectoryOptions{
			DefaultRating:  1000,
			SearchLimit:    10,
			MaxSearchLimit: 50,
		}),
		ratings: ratings,
		matches: NewMatchService(repository.NewMatchStore(rdb), postgresRepo, ratings, MatchOptions{
			StartingScore: 501,
			SessionTTL:    time.Hour,
		}),
		social:      NewSocialService(postgresRepo, SocialOptions{SearchLimit: 10, MaxSearchLimit: 50}),
		leaderboard: NewLeaderboardService(redisRepo, postgresRepo),
	}
}

func (e *env) createUser(t *testing.T, id, username string) *models.User {
	t.Helper()
	u, err := e.directory.CreateProfile(context.Background(), id, models.CreateProfileRequest{
		Username: username,
		Email:    username + "@example.com",
	})
	require.NoError(t, err)
	return u
}

func (e *env) setRating(t *testing.T, id string, r int) {
	t.Helper()
	require.NoError(t, e.postgres.ApplyOutcome(context.Background(), id, r, 0, 0))
}

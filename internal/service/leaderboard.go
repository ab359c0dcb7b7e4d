package service

import (
	"context"
	"fmt"

	"github.com/Nate-Schaefer/SmartDart-App/internal/models"
	"github.com/Nate-Schaefer/SmartDart-App/internal/obslog"
	"github.com/Nate-Schaefer/SmartDart-App/internal/repository"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	DefaultLeaderboardSize = 10
	MaxLeaderboardSize     = 100
)

// LeaderboardService handles business logic for the leaderboard
type LeaderboardService struct {
	redisRepo    *repository.RedisRepository
	postgresRepo *repository.PostgresRepository
}

// NewLeaderboardService creates a new leaderboard service
func NewLeaderboardService(
	redisRepo *repository.RedisRepository,
	postgresRepo *repository.PostgresRepository,
) *LeaderboardService {
	return &LeaderboardService{
		redisRepo:    redisRepo,
		postgresRepo: postgresRepo,
	}
}

// TopN returns the best n players, rating descending and username ascending,
// with tie-aware (1224) ranks. It reads the Redis cache and falls back to
// PostgreSQL when the cache is unavailable.
func (s *LeaderboardService) TopN(ctx context.Context, n int) (*models.LeaderboardResponse, error) {
	if n <= 0 {
		n = DefaultLeaderboardSize
	}
	if n > MaxLeaderboardSize {
		n = MaxLeaderboardSize
	}

	resp, err := s.topFromCache(ctx, n)
	if err == nil {
		return resp, nil
	}
	obslog.L().Warn("leaderboard_cache_fallback", zap.Error(err))
	return s.topFromStore(ctx, n)
}

func (s *LeaderboardService) topFromCache(ctx context.Context, n int) (*models.LeaderboardResponse, error) {
	users, err := s.redisRepo.GetTopUsers(ctx, 0, n)
	if err != nil {
		return nil, fmt.Errorf("failed to get top users: %w", err)
	}
	total, err := s.redisRepo.GetTotalUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get total users: %w", err)
	}
	version, err := s.redisRepo.GetLeaderboardVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get version: %w", err)
	}

	return &models.LeaderboardResponse{
		Data:    applyTieAwareRanking(fromSortedSet(users)),
		Limit:   n,
		Total:   total,
		Version: version,
	}, nil
}

func (s *LeaderboardService) topFromStore(ctx context.Context, n int) (*models.LeaderboardResponse, error) {
	users, err := s.postgresRepo.TopUsers(ctx, n)
	if err != nil {
		return nil, err
	}
	total, err := s.postgresRepo.GetTotalUsers(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]models.LeaderboardEntry, 0, len(users))
	for _, u := range users {
		entries = append(entries, models.LeaderboardEntry{Username: u.Username, Rating: u.Rating})
	}
	return &models.LeaderboardResponse{
		Data:  applyTieAwareRanking(entries),
		Limit: n,
		Total: total,
	}, nil
}

// Rank returns a user's global rank. Like TopN it prefers the cache.
func (s *LeaderboardService) Rank(ctx context.Context, username string) (*models.RankResponse, error) {
	rank, rankErr := s.redisRepo.GetUserRank(ctx, username)
	if rankErr == nil {
		rating, err := s.redisRepo.GetUserScore(ctx, username)
		if err == nil {
			return &models.RankResponse{GlobalRank: rank, Username: username, Rating: rating}, nil
		}
		rankErr = err
	}
	obslog.L().Debug("leaderboard_rank_fallback", zap.String("username", username), zap.Error(rankErr))

	user, err := s.postgresRepo.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	above, err := s.postgresRepo.CountUsersAbove(ctx, user.Rating)
	if err != nil {
		return nil, err
	}
	return &models.RankResponse{GlobalRank: int(above) + 1, Username: username, Rating: user.Rating}, nil
}

// Version returns the cache version the websocket feed broadcasts.
func (s *LeaderboardService) Version(ctx context.Context) (int64, error) {
	return s.redisRepo.GetLeaderboardVersion(ctx)
}

func fromSortedSet(users []redis.Z) []models.LeaderboardEntry {
	entries := make([]models.LeaderboardEntry, 0, len(users))
	for _, u := range users {
		entries = append(entries, models.LeaderboardEntry{
			Username: u.Member.(string),
			Rating:   int(u.Score),
		})
	}
	return entries
}

// applyTieAwareRanking applies the 1224 ranking system to entries already
// ordered best first. Users with the same rating share a rank and the next
// rank skips by the size of the tie.
func applyTieAwareRanking(entries []models.LeaderboardEntry) []models.LeaderboardEntry {
	currentRank := 1
	for i := range entries {
		if i > 0 && entries[i].Rating != entries[i-1].Rating {
			currentRank = i + 1
		}
		entries[i].Rank = currentRank
	}
	return entries
}

// SyncRedisFromPostgres rebuilds the cache from the directory.
// Used at startup and by the periodic resync job.
func (s *LeaderboardService) SyncRedisFromPostgres(ctx context.Context) error {
	users, err := s.postgresRepo.GetAllUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to get users from PostgreSQL: %w", err)
	}

	userMap := make(map[string]int, len(users))
	for _, user := range users {
		userMap[user.Username] = user.Rating
	}

	if err := s.redisRepo.ReplaceAll(ctx, userMap); err != nil {
		return fmt.Errorf("failed to sync to Redis: %w", err)
	}

	obslog.L().Info("leaderboard_resynced", zap.Int("users", len(users)))
	return nil
}

// HealthCheck checks the health of both Redis and PostgreSQL
func (s *LeaderboardService) HealthCheck(ctx context.Context) error {
	if err := s.redisRepo.Ping(ctx); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	if err := s.postgresRepo.Ping(ctx); err != nil {
		return fmt.Errorf("postgres health check failed: %w", err)
	}

	return nil
}

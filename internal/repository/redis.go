package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/Nate-Schaefer/SmartDart-App/internal/apperr"

	"github.com/redis/go-redis/v9"
)

const (
	// LeaderboardKey is the Redis sorted set key for the leaderboard
	LeaderboardKey = "leaderboard:ratings"

	// MetadataKey is the Redis hash key for username -> rating
	MetadataKey = "leaderboard:metadata"

	// VersionKey tracks the global leaderboard version for efficient change detection
	VersionKey = "leaderboard:version"

	rebuildSuffix = ":rebuild"
)

// RedisRepository holds the leaderboard cache.
//
// Members are usernames scored with the negated rating. Reading the set in
// ascending order therefore yields rating descending, and Redis orders equal
// scores lexicographically by member, which gives username ascending ties.
type RedisRepository struct {
	client *redis.Client
}

// NewRedisRepository creates a new Redis repository
func NewRedisRepository(client *redis.Client) *RedisRepository {
	return &RedisRepository{
		client: client,
	}
}

func scoreFor(rating int) float64 { return -float64(rating) }

func ratingFrom(score float64) int { return int(-score) }

// UpdateScore sets a user's rating in the cache and bumps the version.
func (r *RedisRepository) UpdateScore(ctx context.Context, username string, rating int) error {
	pipe := r.client.TxPipeline()
	pipe.ZAdd(ctx, LeaderboardKey, redis.Z{Score: scoreFor(rating), Member: username})
	pipe.HSet(ctx, MetadataKey, username, rating)
	pipe.Incr(ctx, VersionKey)
	_, err := pipe.Exec(ctx)
	return err
}

// RemoveUser drops a user from the cache and bumps the version.
func (r *RedisRepository) RemoveUser(ctx context.Context, username string) error {
	pipe := r.client.TxPipeline()
	pipe.ZRem(ctx, LeaderboardKey, username)
	pipe.HDel(ctx, MetadataKey, username)
	pipe.Incr(ctx, VersionKey)
	_, err := pipe.Exec(ctx)
	return err
}

// GetUserScore retrieves a user's rating from the metadata hash
func (r *RedisRepository) GetUserScore(ctx context.Context, username string) (int, error) {
	scoreStr, err := r.client.HGet(ctx, MetadataKey, username).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, fmt.Errorf("%w: %s is not ranked", apperr.ErrNotFound, username)
		}
		return 0, err
	}

	score, err := strconv.Atoi(scoreStr)
	if err != nil {
		return 0, fmt.Errorf("invalid score format: %w", err)
	}
	return score, nil
}

// GetUserRank returns the 1224-style rank of a user: one more than the number
// of users with a strictly higher rating.
func (r *RedisRepository) GetUserRank(ctx context.Context, username string) (int, error) {
	score, err := r.client.ZScore(ctx, LeaderboardKey, username).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, fmt.Errorf("%w: %s is not ranked", apperr.ErrNotFound, username)
		}
		return 0, err
	}

	count, err := r.client.ZCount(ctx, LeaderboardKey, "-inf", fmt.Sprintf("(%f", score)).Result()
	if err != nil {
		return 0, err
	}
	return int(count) + 1, nil
}

// GetLeaderboardVersion returns the current global version number
func (r *RedisRepository) GetLeaderboardVersion(ctx context.Context) (int64, error) {
	version, err := r.client.Get(ctx, VersionKey).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return version, nil
}

// GetTopUsers returns leaderboard members from offset, best first. Scores in
// the result are converted back to ratings.
func (r *RedisRepository) GetTopUsers(ctx context.Context, offset, limit int) ([]redis.Z, error) {
	start := int64(offset)
	stop := int64(offset + limit - 1)

	results, err := r.client.ZRangeWithScores(ctx, LeaderboardKey, start, stop).Result()
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].Score = float64(ratingFrom(results[i].Score))
	}
	return results, nil
}

// GetTotalUsers returns the total number of users in the leaderboard
func (r *RedisRepository) GetTotalUsers(ctx context.Context) (int64, error) {
	return r.client.ZCard(ctx, LeaderboardKey).Result()
}

// ReplaceAll rebuilds the cache from a full snapshot. The new set is built
// under temporary keys and swapped in with RENAME, so readers never see a
// partial leaderboard and users missing from the snapshot disappear.
func (r *RedisRepository) ReplaceAll(ctx context.Context, users map[string]int) error {
	tmpSet := LeaderboardKey + rebuildSuffix
	tmpMeta := MetadataKey + rebuildSuffix

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, tmpSet, tmpMeta)
	for username, rating := range users {
		pipe.ZAdd(ctx, tmpSet, redis.Z{Score: scoreFor(rating), Member: username})
		pipe.HSet(ctx, tmpMeta, username, rating)
	}
	if len(users) > 0 {
		pipe.Rename(ctx, tmpSet, LeaderboardKey)
		pipe.Rename(ctx, tmpMeta, MetadataKey)
	} else {
		pipe.Del(ctx, LeaderboardKey, MetadataKey)
	}
	pipe.Incr(ctx, VersionKey)

	_, err := pipe.Exec(ctx)
	return err
}

// Ping checks if Redis is reachable
func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *RedisRepository) Close() error {
	return r.client.Close()
}

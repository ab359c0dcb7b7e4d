package service

import (
	"context"
	"testing"

	"github.com/Nate-Schaefer/SmartDart-App/internal/apperr"
	"github.com/Nate-Schaefer/SmartDart-App/internal/models"

	"github.com/stretchr/testify/require"
)

func seedBoard(t *testing.T, e *env) {
	t.Helper()
	ratings := map[string]int{"a": 1200, "b": 1100, "c": 1100, "d": 1000, "e": 900}
	for id, r := range ratings {
		// Direct inserts keep the async cache writes out of the way
		require.NoError(t, e.postgres.CreateUser(context.Background(), &models.User{
			ID:       id,
			Username: "user_" + id,
			Email:    id + "@example.com",
			Rating:   r,
		}))
	}
	require.NoError(t, e.leaderboard.SyncRedisFromPostgres(context.Background()))
}

func TestApplyTieAwareRanking(t *testing.T) {
	entries := applyTieAwareRanking([]models.LeaderboardEntry{
		{Username: "a", Rating: 1200},
		{Username: "b", Rating: 1100},
		{Username: "c", Rating: 1100},
		{Username: "d", Rating: 1000},
	})
	ranks := []int{}
	for _, e := range entries {
		ranks = append(ranks, e.Rank)
	}
	require.Equal(t, []int{1, 2, 2, 4}, ranks)
}

func TestTopNFromCache(t *testing.T) {
	e := newEnv(t)
	seedBoard(t, e)

	resp, err := e.leaderboard.TopN(context.Background(), 4)
	require.NoError(t, err)
	require.EqualValues(t, 5, resp.Total)
	require.Equal(t, 4, resp.Limit)
	require.Positive(t, resp.Version)
	require.Equal(t, []models.LeaderboardEntry{
		{Rank: 1, Username: "user_a", Rating: 1200},
		{Rank: 2, Username: "user_b", Rating: 1100},
		{Rank: 2, Username: "user_c", Rating: 1100},
		{Rank: 4, Username: "user_d", Rating: 1000},
	}, resp.Data)

	rank, err := e.leaderboard.Rank(context.Background(), "user_c")
	require.NoError(t, err)
	require.Equal(t, 2, rank.GlobalRank)
	require.Equal(t, 1100, rank.Rating)
}

func TestTopNClampsSize(t *testing.T) {
	e := newEnv(t)
	seedBoard(t, e)

	resp, err := e.leaderboard.TopN(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, DefaultLeaderboardSize, resp.Limit)
	require.Len(t, resp.Data, 5)

	resp, err = e.leaderboard.TopN(context.Background(), 1000)
	require.NoError(t, err)
	require.Equal(t, MaxLeaderboardSize, resp.Limit)
}

func TestLeaderboardFallsBackToStore(t *testing.T) {
	e := newEnv(t)
	seedBoard(t, e)
	require.NoError(t, e.rdb.Close())

	resp, err := e.leaderboard.TopN(context.Background(), 3)
	require.NoError(t, err)
	require.EqualValues(t, 5, resp.Total)
	require.Equal(t, []models.LeaderboardEntry{
		{Rank: 1, Username: "user_a", Rating: 1200},
		{Rank: 2, Username: "user_b", Rating: 1100},
		{Rank: 2, Username: "user_c", Rating: 1100},
	}, resp.Data)

	rank, err := e.leaderboard.Rank(context.Background(), "user_d")
	require.NoError(t, err)
	require.Equal(t, 4, rank.GlobalRank)

	_, err = e.leaderboard.Rank(context.Background(), "nobody")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	require.Error(t, e.leaderboard.HealthCheck(context.Background()))
}

func TestSyncDropsDeletedUsers(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seedBoard(t, e)

	_, err := e.postgres.DeleteUserCascade(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, e.leaderboard.SyncRedisFromPostgres(ctx))

	resp, err := e.leaderboard.TopN(ctx, 10)
	require.NoError(t, err)
	require.EqualValues(t, 4, resp.Total)
	require.Equal(t, "user_b", resp.Data[0].Username)
	require.Equal(t, 1, resp.Data[0].Rank)
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/Nate-Schaefer/SmartDart-App/internal/apperr"
	"github.com/Nate-Schaefer/SmartDart-App/internal/models"

	"github.com/stretchr/testify/require"
)

func TestCreateProfileValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	cases := []struct {
		name string
		id   string
		req  models.CreateProfileRequest
	}{
		{"missing id", "", models.CreateProfileRequest{Username: "alice", Email: "a@example.com"}},
		{"short username", "u1", models.CreateProfileRequest{Username: "al", Email: "a@example.com"}},
		{"long username", "u1", models.CreateProfileRequest{Username: "abcdefghijklmnopqrstuvwxyz0123456", Email: "a@example.com"}},
		{"whitespace", "u1", models.CreateProfileRequest{Username: "al ice", Email: "a@example.com"}},
		{"bad email", "u1", models.CreateProfileRequest{Username: "alice", Email: "nope"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.directory.CreateProfile(ctx, tc.id, tc.req)
			require.ErrorIs(t, err, apperr.ErrInvalidInput)
		})
	}
}

func TestCreateProfileDefaults(t *testing.T) {
	e := newEnv(t)
	u := e.createUser(t, "u1", "alice")
	require.Equal(t, 1000, u.Rating)
	require.Zero(t, u.Wins)
	require.Zero(t, u.Losses)

	_, err := e.directory.CreateProfile(context.Background(), "u2", models.CreateProfileRequest{
		Username: "alice",
		Email:    "other@example.com",
	})
	require.ErrorIs(t, err, apperr.ErrDuplicateUsername)
}

func TestCreateProfileReachesLeaderboardCache(t *testing.T) {
	e := newEnv(t)
	e.createUser(t, "u1", "alice")

	require.Eventually(t, func() bool {
		r, err := e.redis.GetUserScore(context.Background(), "alice")
		return err == nil && r == 1000
	}, time.Second, 10*time.Millisecond)
}

func TestFindByUsernamePrefixLimits(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		e.createUser(t, string(rune('a'+i)), "player"+string(rune('a'+i)))
	}
	e.createUser(t, "z", "Player_upper")

	users, err := e.directory.FindByUsernamePrefix(ctx, "player", 0)
	require.NoError(t, err)
	require.Len(t, users, 10)
	require.Equal(t, "playera", users[0].Username)

	users, err = e.directory.FindByUsernamePrefix(ctx, "player", 3)
	require.NoError(t, err)
	require.Len(t, users, 3)

	users, err = e.directory.FindByUsernamePrefix(ctx, "Player", 0)
	require.NoError(t, err)
	require.Len(t, users, 1)
}

func TestUpdateEmail(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.createUser(t, "u1", "alice")

	u, err := e.directory.UpdateEmail(ctx, "u1", models.UpdateProfileRequest{Email: "new@example.com"})
	require.NoError(t, err)
	require.Equal(t, "new@example.com", u.Email)

	_, err = e.directory.UpdateEmail(ctx, "u1", models.UpdateProfileRequest{Email: "bad"})
	require.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = e.directory.UpdateEmail(ctx, "ghost", models.UpdateProfileRequest{Email: "x@example.com"})
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDeleteProfileCascades(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.createUser(t, "a", "alice")
	e.createUser(t, "b", "bob")
	e.createUser(t, "c", "carol")

	_, err := e.ratings.SettleMatch(ctx, "m1", "a", "b")
	require.NoError(t, err)
	req, err := e.social.SendRequest(ctx, "a", "b")
	require.NoError(t, err)
	_, err = e.social.Accept(ctx, req.ID, "b")
	require.NoError(t, err)
	_, err = e.social.SendRequest(ctx, "c", "a")
	require.NoError(t, err)

	require.NoError(t, e.directory.Delete(ctx, "a"))

	_, err = e.directory.Get(ctx, "a")
	require.ErrorIs(t, err, apperr.ErrNotFound)
	friends, err := e.social.Friends(ctx, "b")
	require.NoError(t, err)
	require.Empty(t, friends)
	overview, err := e.social.Overview(ctx, "c")
	require.NoError(t, err)
	require.Empty(t, overview.Outgoing)

	require.Eventually(t, func() bool {
		_, err := e.redis.GetUserScore(ctx, "alice")
		return err != nil
	}, time.Second, 10*time.Millisecond)

	// The username is free again
	e.createUser(t, "a2", "alice")
}

func TestStats(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.createUser(t, "a", "alice")
	e.createUser(t, "b", "bob")

	stats, err := e.directory.Stats(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, "Intermediate", stats.Tier)
	require.Zero(t, stats.WinRate)

	for i, winner := range []string{"a", "a", "b"} {
		loser := "b"
		if winner == "b" {
			loser = "a"
		}
		_, err := e.ratings.SettleMatch(ctx, "m"+string(rune('0'+i)), winner, loser)
		require.NoError(t, err)
	}

	stats, err = e.directory.Stats(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, 3, stats.Games)
	require.Equal(t, 66.7, stats.WinRate)
	require.Equal(t, 1050, stats.Profile.Rating)

	hist, err := e.directory.History(ctx, "a", 0)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	require.Equal(t, []int{1050, 1100, 1050}, []int{hist[0].Rating, hist[1].Rating, hist[2].Rating})

	_, err = e.directory.History(ctx, "ghost", 0)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

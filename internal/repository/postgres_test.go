package repository

import (
	"context"
	"testing"
	"time"

	"github.com/Nate-Schaefer/SmartDart-App/internal/apperr"
	"github.com/Nate-Schaefer/SmartDart-App/internal/models"
	"github.com/Nate-Schaefer/SmartDart-App/internal/testutil"

	"github.com/stretchr/testify/require"
)

func newPostgresRepo(t *testing.T) *PostgresRepository {
	t.Helper()
	repo := NewPostgresRepository(testutil.NewDB(t))
	require.NoError(t, repo.AutoMigrate())
	return repo
}

func mustCreateUser(t *testing.T, repo *PostgresRepository, id, username string, rating int) *models.User {
	t.Helper()
	u := &models.User{ID: id, Username: username, Email: username + "@example.com", Rating: rating}
	require.NoError(t, repo.CreateUser(context.Background(), u))
	return u
}

func TestCreateUserDuplicates(t *testing.T) {
	repo := newPostgresRepo(t)
	ctx := context.Background()
	mustCreateUser(t, repo, "u1", "alice", 1000)

	err := repo.CreateUser(ctx, &models.User{ID: "u2", Username: "alice", Rating: 1000})
	require.ErrorIs(t, err, apperr.ErrDuplicateUsername)

	err = repo.CreateUser(ctx, &models.User{ID: "u1", Username: "alice2", Rating: 1000})
	require.ErrorIs(t, err, apperr.ErrConflict)

	// Usernames are case-sensitive
	mustCreateUser(t, repo, "u3", "Alice", 1000)
}

func TestGetUserNotFound(t *testing.T) {
	repo := newPostgresRepo(t)
	_, err := repo.GetUser(context.Background(), "missing")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestFindByUsernamePrefix(t *testing.T) {
	repo := newPostgresRepo(t)
	ctx := context.Background()
	for i, name := range []string{"bob", "bobby", "Bobcat", "bo", "bobo", "carl"} {
		mustCreateUser(t, repo, string(rune('a'+i)), name, 1000)
	}

	users, err := repo.FindByUsernamePrefix(ctx, "bob", "", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"bob", "bobby", "bobo"}, usernames(users))

	users, err = repo.FindByUsernamePrefix(ctx, "bob", "", 2)
	require.NoError(t, err)
	require.Equal(t, []string{"bob", "bobby"}, usernames(users))

	users, err = repo.FindByUsernamePrefix(ctx, "bob", "bobby", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"bobo"}, usernames(users))
}

func TestDeleteUserCascade(t *testing.T) {
	repo := newPostgresRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()
	mustCreateUser(t, repo, "a", "alice", 1000)
	mustCreateUser(t, repo, "b", "bob", 1000)
	mustCreateUser(t, repo, "c", "carol", 1000)

	require.NoError(t, repo.AppendHistory(ctx, []models.RatingHistoryEntry{
		{UserID: "a", MatchID: "m1", Rating: 1050, Delta: 50, CreatedAt: now},
		{UserID: "b", MatchID: "m1", Rating: 950, Delta: -50, CreatedAt: now},
	}))
	require.NoError(t, repo.CreateFriendship(ctx, "a", "b", now))
	key := models.PairKey("a", "c")
	require.NoError(t, repo.CreateFriendRequest(ctx, &models.FriendRequest{
		ID: "r1", SenderID: "c", ReceiverID: "a", Status: models.FriendRequestPending,
		PairKey: key, PendingKey: &key, CreatedAt: now,
	}))

	deleted, err := repo.DeleteUserCascade(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, "alice", deleted.Username)

	_, err = repo.GetUser(ctx, "a")
	require.ErrorIs(t, err, apperr.ErrNotFound)
	hist, err := repo.History(ctx, "a", 10)
	require.NoError(t, err)
	require.Empty(t, hist)
	friends, err := repo.FriendIDs(ctx, "b")
	require.NoError(t, err)
	require.Empty(t, friends)
	_, err = repo.GetFriendRequest(ctx, "r1")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	// Other users' history is untouched
	hist, err = repo.History(ctx, "b", 10)
	require.NoError(t, err)
	require.Len(t, hist, 1)

	_, err = repo.DeleteUserCascade(ctx, "a")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestTopUsersAndCounts(t *testing.T) {
	repo := newPostgresRepo(t)
	ctx := context.Background()
	mustCreateUser(t, repo, "1", "zed", 1200)
	mustCreateUser(t, repo, "2", "amy", 1200)
	mustCreateUser(t, repo, "3", "max", 1300)
	mustCreateUser(t, repo, "4", "low", 900)

	top, err := repo.TopUsers(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, []string{"max", "amy", "zed"}, usernames(top))

	above, err := repo.CountUsersAbove(ctx, 1200)
	require.NoError(t, err)
	require.EqualValues(t, 1, above)

	total, err := repo.GetTotalUsers(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 4, total)
}

func TestClaimSettlementOnce(t *testing.T) {
	repo := newPostgresRepo(t)
	ctx := context.Background()
	winner := "a"

	ok, err := repo.ClaimSettlement(ctx, &models.RatingSettlement{MatchID: "m1", WinnerID: &winner, Delta: 50, SettledAt: time.Now()})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.ClaimSettlement(ctx, &models.RatingSettlement{MatchID: "m1", WinnerID: &winner, Delta: 50, SettledAt: time.Now()})
	require.NoError(t, err)
	require.False(t, ok)

	s, err := repo.GetSettlement(ctx, "m1")
	require.NoError(t, err)
	require.Equal(t, "a", *s.WinnerID)
	require.Nil(t, s.LoserID)
}

func TestHistoryOldestFirst(t *testing.T) {
	repo := newPostgresRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.AppendHistory(ctx, []models.RatingHistoryEntry{
			{UserID: "a", MatchID: string(rune('a' + i)), Rating: 1000 + 50*(i+1), Delta: 50, CreatedAt: base.Add(time.Duration(i) * time.Minute)},
		}))
	}

	hist, err := repo.History(ctx, "a", 3)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	require.Equal(t, []int{1150, 1200, 1250}, []int{hist[0].Rating, hist[1].Rating, hist[2].Rating})
}

func TestFriendRequestLifecycle(t *testing.T) {
	repo := newPostgresRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()
	key := models.PairKey("a", "b")

	newReq := func(id, from, to string) *models.FriendRequest {
		k := key
		return &models.FriendRequest{ID: id, SenderID: from, ReceiverID: to, Status: models.FriendRequestPending, PairKey: key, PendingKey: &k, CreatedAt: now}
	}

	require.NoError(t, repo.CreateFriendRequest(ctx, newReq("r1", "a", "b")))
	// Reverse direction shares the pending key
	require.ErrorIs(t, repo.CreateFriendRequest(ctx, newReq("r2", "b", "a")), apperr.ErrDuplicatePending)

	pending, err := repo.FindPendingBetween(ctx, "b", "a")
	require.NoError(t, err)
	require.Equal(t, "r1", pending.ID)

	incoming, err := repo.PendingRequests(ctx, "b", true)
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	outgoing, err := repo.PendingRequests(ctx, "b", false)
	require.NoError(t, err)
	require.Empty(t, outgoing)

	require.NoError(t, repo.TransitionFriendRequest(ctx, "r1", models.FriendRequestDeclined, now))
	require.ErrorIs(t, repo.TransitionFriendRequest(ctx, "r1", models.FriendRequestAccepted, now), apperr.ErrNotPending)
	require.ErrorIs(t, repo.TransitionFriendRequest(ctx, "nope", models.FriendRequestAccepted, now), apperr.ErrNotFound)

	got, err := repo.GetFriendRequest(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, models.FriendRequestDeclined, got.Status)
	require.Nil(t, got.PendingKey)
	require.NotNil(t, got.RespondedAt)

	// A terminal request frees the pair for a new one
	require.NoError(t, repo.CreateFriendRequest(ctx, newReq("r3", "b", "a")))
}

func TestFriendshipIsSymmetric(t *testing.T) {
	repo := newPostgresRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.CreateFriendship(ctx, "b", "a", now))
	require.ErrorIs(t, repo.CreateFriendship(ctx, "a", "b", now), apperr.ErrAlreadyFriends)

	ab, err := repo.AreFriends(ctx, "a", "b")
	require.NoError(t, err)
	ba, err := repo.AreFriends(ctx, "b", "a")
	require.NoError(t, err)
	require.True(t, ab)
	require.True(t, ba)

	ids, err := repo.FriendIDs(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, ids)

	require.NoError(t, repo.DeleteFriendship(ctx, "b", "a"))
	require.ErrorIs(t, repo.DeleteFriendship(ctx, "a", "b"), apperr.ErrNotFriends)
}

func usernames(users []models.User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.Username)
	}
	return out
}

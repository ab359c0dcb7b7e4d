package service

import (
	"context"
	"testing"

	"github.com/Nate-Schaefer/SmartDart-App/internal/apperr"
	"github.com/Nate-Schaefer/SmartDart-App/internal/darts"

	"github.com/stretchr/testify/require"
)

func throw(t *testing.T, e *env, matchID, caller string, values ...int) {
	t.Helper()
	for _, v := range values {
		_, err := e.matches.RecordDart(context.Background(), matchID, caller, v)
		require.NoError(t, err)
	}
}

func TestMatchFlowSettlesOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.createUser(t, "p", "player")
	e.createUser(t, "o", "opponent")

	m, err := e.matches.Start(ctx, "p", StartMatchRequest{OpponentID: "o", StartingScore: 100})
	require.NoError(t, err)
	require.Equal(t, darts.StatusInProgress, m.Status)
	require.Equal(t, 100, m.PlayerScore)

	throw(t, e, m.ID, "p", 20, 20, 20)
	res, err := e.matches.EndTurn(ctx, m.ID, "p")
	require.NoError(t, err)
	require.Equal(t, darts.OutcomeScored, res.Outcome)
	require.Equal(t, 40, res.ScoreAfter)
	require.Equal(t, darts.SideOpponent, res.TurnOwner)
	require.Nil(t, res.RatingChange)

	// Opponent busts
	throw(t, e, m.ID, "p", 60, 60)
	res, err = e.matches.EndTurn(ctx, m.ID, "p")
	require.NoError(t, err)
	require.Equal(t, darts.OutcomeBust, res.Outcome)
	require.Equal(t, 100, res.ScoreAfter)

	throw(t, e, m.ID, "p", 20, 20)
	res, err = e.matches.EndTurn(ctx, m.ID, "p")
	require.NoError(t, err)
	require.Equal(t, darts.OutcomeWon, res.Outcome)
	require.Equal(t, darts.SidePlayer, res.Winner)
	require.NotNil(t, res.RatingChange)
	require.Equal(t, 1050, res.RatingChange.Winner.Rating)
	require.Equal(t, 950, res.RatingChange.Loser.Rating)
	require.True(t, res.Match.Settled)

	_, err = e.matches.EndTurn(ctx, m.ID, "p")
	require.ErrorIs(t, err, apperr.ErrMatchNotInProgress)

	stored, err := e.matches.Get(ctx, m.ID, "p")
	require.NoError(t, err)
	require.Equal(t, darts.StatusCompleted, stored.Status)
	require.True(t, stored.Settled)

	p, err := e.directory.Get(ctx, "p")
	require.NoError(t, err)
	require.Equal(t, 1050, p.Rating)
	require.Equal(t, 1, p.Wins)
}

func TestGuestWinCountsAsPlayerLoss(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.createUser(t, "p", "player")

	m, err := e.matches.Start(ctx, "p", StartMatchRequest{StartingScore: 40})
	require.NoError(t, err)
	require.True(t, m.IsGuestMatch())

	_, err = e.matches.EndTurn(ctx, m.ID, "p")
	require.NoError(t, err)

	throw(t, e, m.ID, "p", 20, 20)
	res, err := e.matches.EndTurn(ctx, m.ID, "p")
	require.NoError(t, err)
	require.Equal(t, darts.SideOpponent, res.Winner)
	require.Nil(t, res.RatingChange.Winner)
	require.Equal(t, 950, res.RatingChange.Loser.Rating)

	p, err := e.directory.Get(ctx, "p")
	require.NoError(t, err)
	require.Equal(t, 1, p.Losses)
}

func TestEndTurnRetriesFailedSettlement(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.createUser(t, "p", "player")
	e.createUser(t, "o", "opponent")

	m, err := e.matches.Start(ctx, "p", StartMatchRequest{OpponentID: "o", StartingScore: 40})
	require.NoError(t, err)
	require.NoError(t, e.directory.Delete(ctx, "o"))

	throw(t, e, m.ID, "p", 40)
	_, err = e.matches.EndTurn(ctx, m.ID, "p")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	stored, err := e.matches.Get(ctx, m.ID, "p")
	require.NoError(t, err)
	require.Equal(t, darts.StatusCompleted, stored.Status)
	require.False(t, stored.Settled)

	e.createUser(t, "o", "opponent")
	res, err := e.matches.EndTurn(ctx, m.ID, "p")
	require.NoError(t, err)
	require.Equal(t, darts.OutcomeWon, res.Outcome)
	require.Equal(t, 1050, res.RatingChange.Winner.Rating)
	require.True(t, res.Match.Settled)
}

func TestMatchRules(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.createUser(t, "p", "player")
	e.createUser(t, "x", "intruder")

	_, err := e.matches.Start(ctx, "p", StartMatchRequest{OpponentID: "p"})
	require.ErrorIs(t, err, apperr.ErrSelfMatch)
	_, err = e.matches.Start(ctx, "p", StartMatchRequest{OpponentID: "ghost"})
	require.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = e.matches.Start(ctx, "ghost", StartMatchRequest{})
	require.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = e.matches.Start(ctx, "p", StartMatchRequest{StartingScore: 5000})
	require.ErrorIs(t, err, apperr.ErrInvalidStartScore)

	m, err := e.matches.Start(ctx, "p", StartMatchRequest{})
	require.NoError(t, err)
	require.Equal(t, 501, m.StartingScore)

	_, err = e.matches.RecordDart(ctx, m.ID, "p", 61)
	require.ErrorIs(t, err, apperr.ErrInvalidDartValue)
	_, err = e.matches.RecordDart(ctx, m.ID, "p", -1)
	require.ErrorIs(t, err, apperr.ErrInvalidInput)

	throw(t, e, m.ID, "p", 1, 2, 3)
	_, err = e.matches.RecordDart(ctx, m.ID, "p", 4)
	require.ErrorIs(t, err, apperr.ErrTurnFull)
	require.ErrorIs(t, err, apperr.ErrConflict)

	_, err = e.matches.Get(ctx, m.ID, "x")
	require.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = e.matches.RecordDart(ctx, m.ID, "x", 1)
	require.ErrorIs(t, err, apperr.ErrNotYourMatch)
	_, err = e.matches.EndTurn(ctx, m.ID, "x")
	require.ErrorIs(t, err, apperr.ErrNotYourMatch)
	require.ErrorIs(t, e.matches.Abandon(ctx, m.ID, "x"), apperr.ErrNotYourMatch)

	_, err = e.matches.Get(ctx, "missing", "p")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAbandonLeavesRatingsAlone(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.createUser(t, "p", "player")
	e.createUser(t, "o", "opponent")

	m, err := e.matches.Start(ctx, "p", StartMatchRequest{OpponentID: "o"})
	require.NoError(t, err)
	throw(t, e, m.ID, "p", 20)
	require.NoError(t, e.matches.Abandon(ctx, m.ID, "p"))

	stored, err := e.matches.Get(ctx, m.ID, "p")
	require.NoError(t, err)
	require.Equal(t, darts.StatusAbandoned, stored.Status)
	require.Empty(t, stored.TurnDarts)

	_, err = e.matches.RecordDart(ctx, m.ID, "p", 1)
	require.ErrorIs(t, err, apperr.ErrMatchNotInProgress)
	require.ErrorIs(t, e.matches.Abandon(ctx, m.ID, "p"), apperr.ErrMatchNotInProgress)

	for _, id := range []string{"p", "o"} {
		u, err := e.directory.Get(ctx, id)
		require.NoError(t, err)
		require.Equal(t, 1000, u.Rating)
		require.Zero(t, u.Wins+u.Losses)
	}
}

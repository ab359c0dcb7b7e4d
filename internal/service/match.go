package service

import (
	"context"
	"errors"
	"time"

	"github.com/Nate-Schaefer/SmartDart-App/internal/apperr"
	"github.com/Nate-Schaefer/SmartDart-App/internal/darts"
	"github.com/Nate-Schaefer/SmartDart-App/internal/models"
	"github.com/Nate-Schaefer/SmartDart-App/internal/obslog"
	"github.com/Nate-Schaefer/SmartDart-App/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// finishedMatchTTL keeps a settled or abandoned match readable for a while.
const finishedMatchTTL = 10 * time.Minute

// MatchOptions tunes the match ledger.
type MatchOptions struct {
	StartingScore int
	SessionTTL    time.Duration
}

// StartMatchRequest is the payload for POST /matches
type StartMatchRequest struct {
	OpponentID    string `json:"opponent_id"`
	StartingScore int    `json:"starting_score"`
}

// RecordDartRequest is the payload for POST /matches/:id/darts
type RecordDartRequest struct {
	Value *int `json:"value"`
}

// EndTurnResponse is a settled turn plus the rating change when it won the leg.
type EndTurnResponse struct {
	darts.TurnResult
	Match        *darts.Match         `json:"match"`
	RatingChange *models.RatingChange `json:"rating_change,omitempty"`
}

// MatchService runs match sessions and hands completed matches to the
// rating service exactly once.
type MatchService struct {
	matches      *repository.MatchStore
	postgresRepo *repository.PostgresRepository
	ratings      *RatingService
	opts         MatchOptions
	now          func() time.Time
}

// NewMatchService creates a new match service
func NewMatchService(
	matches *repository.MatchStore,
	postgresRepo *repository.PostgresRepository,
	ratings *RatingService,
	opts MatchOptions,
) *MatchService {
	if opts.StartingScore == 0 {
		opts.StartingScore = darts.DefaultStartingScore
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 6 * time.Hour
	}
	return &MatchService{
		matches:      matches,
		postgresRepo: postgresRepo,
		ratings:      ratings,
		opts:         opts,
		now:          time.Now,
	}
}

// Start opens a match for playerID. An empty opponent is a guest.
func (s *MatchService) Start(ctx context.Context, playerID string, req StartMatchRequest) (*darts.Match, error) {
	start := req.StartingScore
	if start == 0 {
		start = s.opts.StartingScore
	}
	if req.OpponentID != "" && req.OpponentID == playerID {
		return nil, apperr.ErrSelfMatch
	}

	if _, err := s.postgresRepo.GetUser(ctx, playerID); err != nil {
		return nil, err
	}
	if req.OpponentID != "" {
		if _, err := s.postgresRepo.GetUser(ctx, req.OpponentID); err != nil {
			return nil, err
		}
	}

	m, err := darts.New(uuid.NewString(), playerID, req.OpponentID, start, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.matches.Create(ctx, m, s.opts.SessionTTL); err != nil {
		return nil, err
	}

	obslog.L().Info("match_start",
		zap.String("match_id", m.ID),
		zap.String("player_id", playerID),
		zap.String("opponent_id", req.OpponentID),
		zap.Int("starting_score", start),
	)
	return m, nil
}

// Get returns the current state of a match owned by caller.
func (s *MatchService) Get(ctx context.Context, matchID, caller string) (*darts.Match, error) {
	m, err := s.matches.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if err := checkOwner(m, caller); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordDart adds one dart to the active turn.
func (s *MatchService) RecordDart(ctx context.Context, matchID, caller string, value int) (darts.TurnState, error) {
	if value < 0 || value > darts.MaxDartValue {
		return darts.TurnState{}, apperr.ErrInvalidDartValue
	}

	var state darts.TurnState
	_, err := s.matches.Update(ctx, matchID, func(m *darts.Match) error {
		if err := checkOwner(m, caller); err != nil {
			return err
		}
		var err error
		state, err = m.RecordDart(value, s.now().UTC())
		return err
	})
	if err != nil {
		return darts.TurnState{}, err
	}
	return state, nil
}

// EndTurn settles the active turn. A winning turn completes the match and
// settles ratings once; if that settlement fails, the match stays completed
// and unsettled and calling EndTurn again retries only the settlement.
func (s *MatchService) EndTurn(ctx context.Context, matchID, caller string) (*EndTurnResponse, error) {
	var (
		res     darts.TurnResult
		retried bool
	)
	m, err := s.matches.Update(ctx, matchID, func(m *darts.Match) error {
		if err := checkOwner(m, caller); err != nil {
			return err
		}
		if m.Status == darts.StatusCompleted && !m.Settled {
			retried = true
			return errSkipWrite
		}
		var err error
		res, err = m.EndTurn(s.now().UTC())
		return err
	})
	if errors.Is(err, errSkipWrite) {
		m, err = s.matches.Get(ctx, matchID)
	}
	if err != nil {
		return nil, err
	}

	if retried {
		res = darts.TurnResult{
			MatchID:    m.ID,
			Outcome:    darts.OutcomeWon,
			Thrower:    m.Winner,
			Darts:      []int{},
			ScoreAfter: 0,
			TurnOwner:  m.TurnOwner,
			Winner:     m.Winner,
		}
	}

	out := &EndTurnResponse{TurnResult: res, Match: m}
	if res.Outcome != darts.OutcomeWon {
		return out, nil
	}

	change, err := s.settle(ctx, m)
	if err != nil {
		obslog.L().Warn("match_settlement_pending",
			zap.String("match_id", m.ID),
			zap.Error(err),
		)
		return nil, err
	}
	out.RatingChange = change
	out.Match.Settled = true

	obslog.L().Info("match_completed",
		zap.String("match_id", m.ID),
		zap.String("winner", string(m.Winner)),
		zap.Bool("guest", m.IsGuestMatch()),
	)
	return out, nil
}

// Abandon ends a match without touching the directory.
func (s *MatchService) Abandon(ctx context.Context, matchID, caller string) error {
	_, err := s.matches.Update(ctx, matchID, func(m *darts.Match) error {
		if err := checkOwner(m, caller); err != nil {
			return err
		}
		return m.Abandon(s.now().UTC())
	})
	if err != nil {
		return err
	}
	if err := s.matches.Expire(ctx, matchID, finishedMatchTTL); err != nil {
		obslog.L().Warn("match_expire_failed", zap.String("match_id", matchID), zap.Error(err))
	}
	obslog.L().Info("match_abandoned", zap.String("match_id", matchID))
	return nil
}

// settle runs the rating settlement of a completed match and marks it
// settled. The settlement itself is idempotent on the match id.
func (s *MatchService) settle(ctx context.Context, m *darts.Match) (*models.RatingChange, error) {
	change, err := s.ratings.SettleMatch(ctx, m.ID, m.WinnerID(), m.LoserID())
	if err != nil {
		return nil, err
	}

	_, err = s.matches.Update(ctx, m.ID, func(stored *darts.Match) error {
		stored.MarkSettled(s.now().UTC())
		return nil
	})
	if err != nil {
		obslog.L().Warn("match_mark_settled_failed", zap.String("match_id", m.ID), zap.Error(err))
	} else if err := s.matches.Expire(ctx, m.ID, finishedMatchTTL); err != nil {
		obslog.L().Warn("match_expire_failed", zap.String("match_id", m.ID), zap.Error(err))
	}
	return change, nil
}

var errSkipWrite = errors.New("skip write")

func checkOwner(m *darts.Match, caller string) error {
	if m.PlayerID != caller {
		return apperr.ErrNotYourMatch
	}
	return nil
}

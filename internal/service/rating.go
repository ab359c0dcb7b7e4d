package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Nate-Schaefer/SmartDart-App/internal/apperr"
	"github.com/Nate-Schaefer/SmartDart-App/internal/models"
	"github.com/Nate-Schaefer/SmartDart-App/internal/obslog"
	"github.com/Nate-Schaefer/SmartDart-App/internal/rating"
	"github.com/Nate-Schaefer/SmartDart-App/internal/repository"
	"github.com/Nate-Schaefer/SmartDart-App/internal/worker"

	"go.uber.org/zap"
)

// RatingService settles completed matches against the user directory.
type RatingService struct {
	postgresRepo *repository.PostgresRepository
	engine       rating.Engine
	workerPool   *worker.WorkerPool
	now          func() time.Time
}

// NewRatingService creates a new rating service. workerPool may be nil, in
// which case the leaderboard cache is only refreshed by resync.
func NewRatingService(
	postgresRepo *repository.PostgresRepository,
	engine rating.Engine,
	workerPool *worker.WorkerPool,
) *RatingService {
	return &RatingService{
		postgresRepo: postgresRepo,
		engine:       engine,
		workerPool:   workerPool,
		now:          time.Now,
	}
}

// SettleMatch applies the result of a completed match. Either side may be
// empty for a guest, but not both.
//
// The settlement record, both profile updates and the history entries are
// written in one transaction keyed by matchID. Settling the same match again
// applies nothing and returns the recorded change with Replayed set.
func (s *RatingService) SettleMatch(ctx context.Context, matchID, winnerID, loserID string) (*models.RatingChange, error) {
	if matchID == "" {
		return nil, apperr.Invalid("match id is required")
	}
	if winnerID == "" && loserID == "" {
		return nil, apperr.ErrNoParticipants
	}
	if winnerID == loserID {
		return nil, apperr.Invalid("winner and loser must differ")
	}

	now := s.now().UTC()
	change := &models.RatingChange{MatchID: matchID, SettledAt: now}

	err := s.postgresRepo.Transaction(ctx, func(tx *repository.PostgresRepository) error {
		claimed, err := tx.ClaimSettlement(ctx, &models.RatingSettlement{
			MatchID:   matchID,
			WinnerID:  optional(winnerID),
			LoserID:   optional(loserID),
			Delta:     s.engine.K,
			SettledAt: now,
		})
		if err != nil {
			return err
		}
		if !claimed {
			return s.replay(ctx, tx, matchID, winnerID, loserID, change)
		}

		// Lock rows in id order so concurrent settlements cannot deadlock.
		type side struct {
			id  string
			win bool
		}
		sides := make([]side, 0, 2)
		if winnerID != "" {
			sides = append(sides, side{winnerID, true})
		}
		if loserID != "" {
			sides = append(sides, side{loserID, false})
		}
		sort.Slice(sides, func(i, j int) bool { return sides[i].id < sides[j].id })

		entries := make([]models.RatingHistoryEntry, 0, len(sides))
		for _, sd := range sides {
			user, err := tx.GetUserForUpdate(ctx, sd.id)
			if err != nil {
				return err
			}

			var res rating.Result
			if sd.win {
				res = s.engine.Win(user.Rating, user.Wins, user.Losses)
			} else {
				res = s.engine.Loss(user.Rating, user.Wins, user.Losses)
			}
			if err := tx.ApplyOutcome(ctx, sd.id, res.Rating, res.Wins, res.Losses); err != nil {
				return err
			}

			entries = append(entries, models.RatingHistoryEntry{
				UserID:    sd.id,
				MatchID:   matchID,
				Rating:    res.Rating,
				Delta:     res.Delta,
				CreatedAt: now,
			})
			pc := &models.ParticipantChange{
				UserID:   sd.id,
				Username: user.Username,
				Rating:   res.Rating,
				Delta:    res.Delta,
			}
			if sd.win {
				change.Winner = pc
			} else {
				change.Loser = pc
			}
		}
		return tx.AppendHistory(ctx, entries)
	})
	if err != nil {
		return nil, err
	}

	if change.Replayed {
		obslog.L().Info("rating_settlement_replayed", zap.String("match_id", matchID))
		return change, nil
	}

	for _, pc := range []*models.ParticipantChange{change.Winner, change.Loser} {
		if pc == nil {
			continue
		}
		submitSync(s.workerPool, worker.LeaderboardSyncTask{Username: pc.Username, Rating: pc.Rating},
			zap.String("match_id", matchID))
	}

	obslog.L().Info("rating_settled",
		zap.String("match_id", matchID),
		zap.String("winner_id", winnerID),
		zap.String("loser_id", loserID),
		zap.Int("k", s.engine.K),
	)
	return change, nil
}

// replay rebuilds the change recorded by an earlier settlement.
func (s *RatingService) replay(
	ctx context.Context,
	tx *repository.PostgresRepository,
	matchID, winnerID, loserID string,
	change *models.RatingChange,
) error {
	settlement, err := tx.GetSettlement(ctx, matchID)
	if err != nil {
		return err
	}
	if deref(settlement.WinnerID) != winnerID || deref(settlement.LoserID) != loserID {
		return fmt.Errorf("%w: match %s was already settled with different participants", apperr.ErrConflict, matchID)
	}

	entries, err := tx.HistoryForMatch(ctx, matchID)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.UserID)
	}
	users, err := tx.GetUsersByIDs(ctx, ids)
	if err != nil {
		return err
	}

	change.Replayed = true
	change.SettledAt = settlement.SettledAt
	for _, e := range entries {
		pc := &models.ParticipantChange{
			UserID:   e.UserID,
			Username: users[e.UserID].Username,
			Rating:   e.Rating,
			Delta:    e.Delta,
		}
		if e.UserID == winnerID {
			change.Winner = pc
		} else if e.UserID == loserID {
			change.Loser = pc
		}
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// submitSync hands a cache write to the pool. A rejected task leaves the
// cache stale until the next resync, so it is logged with the caller's fields.
func submitSync(pool *worker.WorkerPool, task worker.LeaderboardSyncTask, fields ...zap.Field) {
	if pool == nil {
		return
	}
	if err := pool.Submit(task); err != nil {
		obslog.L().Warn("leaderboard_sync_dropped", append(fields,
			zap.String("username", task.Username),
			zap.Bool("remove", task.Remove),
			zap.Error(err),
		)...)
	}
}

package repository

import (
	"context"
	"fmt"

	"github.com/Nate-Schaefer/SmartDart-App/internal/apperr"
	"github.com/Nate-Schaefer/SmartDart-App/internal/models"

	"gorm.io/gorm/clause"
)

var errSettlementNotFound = fmt.Errorf("%w: settlement", apperr.ErrNotFound)

// ClaimSettlement inserts the settlement record for a match. It returns false
// when the match was already settled; the insert is then a no-op.
func (r *PostgresRepository) ClaimSettlement(ctx context.Context, s *models.RatingSettlement) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "match_id"}}, DoNothing: true}).
		Create(s)
	if res.Error != nil {
		return false, apperr.Store(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// GetSettlement loads the settlement record of a match.
func (r *PostgresRepository) GetSettlement(ctx context.Context, matchID string) (*models.RatingSettlement, error) {
	var s models.RatingSettlement
	if err := r.db.WithContext(ctx).Where("match_id = ?", matchID).First(&s).Error; err != nil {
		return nil, translate(err, errSettlementNotFound)
	}
	return &s, nil
}

// AppendHistory adds rating history entries.
func (r *PostgresRepository) AppendHistory(ctx context.Context, entries []models.RatingHistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&entries).Error; err != nil {
		return apperr.Store(err)
	}
	return nil
}

// HistoryForMatch returns the entries written by one settlement.
func (r *PostgresRepository) HistoryForMatch(ctx context.Context, matchID string) ([]models.RatingHistoryEntry, error) {
	var entries []models.RatingHistoryEntry
	err := r.db.WithContext(ctx).Where("match_id = ?", matchID).Order("id ASC").Find(&entries).Error
	if err != nil {
		return nil, apperr.Store(err)
	}
	return entries, nil
}

// History returns the latest limit entries of a user, oldest first.
func (r *PostgresRepository) History(ctx context.Context, userID string, limit int) ([]models.RatingHistoryEntry, error) {
	var entries []models.RatingHistoryEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, apperr.Store(err)
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

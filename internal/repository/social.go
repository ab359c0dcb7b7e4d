package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Nate-Schaefer/SmartDart-App/internal/apperr"
	"github.com/Nate-Schaefer/SmartDart-App/internal/models"

	"gorm.io/gorm"
)

var errRequestNotFound = fmt.Errorf("%w: friend request", apperr.ErrNotFound)

// CreateFriendRequest inserts a pending request. A second pending request for
// the same unordered pair violates the pending key index.
func (r *PostgresRepository) CreateFriendRequest(ctx context.Context, req *models.FriendRequest) error {
	err := r.db.WithContext(ctx).Create(req).Error
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperr.ErrDuplicatePending
	default:
		return apperr.Store(err)
	}
}

// GetFriendRequest loads a request by id.
func (r *PostgresRepository) GetFriendRequest(ctx context.Context, id string) (*models.FriendRequest, error) {
	var req models.FriendRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error; err != nil {
		return nil, translate(err, errRequestNotFound)
	}
	return &req, nil
}

// FindPendingBetween returns the pending request between a and b in either
// direction, or nil.
func (r *PostgresRepository) FindPendingBetween(ctx context.Context, a, b string) (*models.FriendRequest, error) {
	var reqs []models.FriendRequest
	err := r.db.WithContext(ctx).Where("pending_key = ?", models.PairKey(a, b)).Limit(1).Find(&reqs).Error
	if err != nil {
		return nil, apperr.Store(err)
	}
	if len(reqs) == 0 {
		return nil, nil
	}
	return &reqs[0], nil
}

// TransitionFriendRequest moves a pending request to a terminal status. The
// update is conditional on the request still being pending, so concurrent
// transitions cannot both succeed.
func (r *PostgresRepository) TransitionFriendRequest(ctx context.Context, id string, to models.FriendRequestStatus, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.FriendRequest{}).
		Where("id = ? AND status = ?", id, models.FriendRequestPending).
		Updates(map[string]any{
			"status":       to,
			"pending_key":  nil,
			"responded_at": at,
		})
	if res.Error != nil {
		return apperr.Store(res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}
	if _, err := r.GetFriendRequest(ctx, id); err != nil {
		return err
	}
	return apperr.ErrNotPending
}

// PendingRequests lists pending requests received (incoming) or sent by userID.
func (r *PostgresRepository) PendingRequests(ctx context.Context, userID string, incoming bool) ([]models.FriendRequest, error) {
	column := "sender_id"
	if incoming {
		column = "receiver_id"
	}
	var reqs []models.FriendRequest
	err := r.db.WithContext(ctx).
		Where(column+" = ? AND status = ?", userID, models.FriendRequestPending).
		Order("created_at DESC").
		Find(&reqs).Error
	if err != nil {
		return nil, apperr.Store(err)
	}
	return reqs, nil
}

// CreateFriendship inserts the single record of an undirected edge.
func (r *PostgresRepository) CreateFriendship(ctx context.Context, a, b string, at time.Time) error {
	lo, hi := models.CanonicalPair(a, b)
	err := r.db.WithContext(ctx).Create(&models.Friendship{UserLow: lo, UserHigh: hi, CreatedAt: at}).Error
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperr.ErrAlreadyFriends
	default:
		return apperr.Store(err)
	}
}

// DeleteFriendship removes the edge between a and b.
func (r *PostgresRepository) DeleteFriendship(ctx context.Context, a, b string) error {
	lo, hi := models.CanonicalPair(a, b)
	res := r.db.WithContext(ctx).Where("user_low = ? AND user_high = ?", lo, hi).Delete(&models.Friendship{})
	if res.Error != nil {
		return apperr.Store(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFriends
	}
	return nil
}

// AreFriends reports whether an edge exists between a and b.
func (r *PostgresRepository) AreFriends(ctx context.Context, a, b string) (bool, error) {
	lo, hi := models.CanonicalPair(a, b)
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Friendship{}).
		Where("user_low = ? AND user_high = ?", lo, hi).
		Count(&count).Error
	if err != nil {
		return false, apperr.Store(err)
	}
	return count > 0, nil
}

// FriendIDs lists the ids of everyone userID is friends with.
func (r *PostgresRepository) FriendIDs(ctx context.Context, userID string) ([]string, error) {
	var edges []models.Friendship
	err := r.db.WithContext(ctx).
		Where("user_low = ? OR user_high = ?", userID, userID).
		Order("created_at ASC").
		Find(&edges).Error
	if err != nil {
		return nil, apperr.Store(err)
	}
	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.Other(userID))
	}
	return ids, nil
}

// PendingCounterpartIDs lists users with a pending request to or from userID.
func (r *PostgresRepository) PendingCounterpartIDs(ctx context.Context, userID string) ([]string, error) {
	var reqs []models.FriendRequest
	err := r.db.WithContext(ctx).
		Select("sender_id", "receiver_id").
		Where("(sender_id = ? OR receiver_id = ?) AND status = ?", userID, userID, models.FriendRequestPending).
		Find(&reqs).Error
	if err != nil {
		return nil, apperr.Store(err)
	}
	ids := make([]string, 0, len(reqs))
	for _, req := range reqs {
		if req.SenderID == userID {
			ids = append(ids, req.ReceiverID)
		} else {
			ids = append(ids, req.SenderID)
		}
	}
	return ids, nil
}

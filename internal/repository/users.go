package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Nate-Schaefer/SmartDart-App/internal/apperr"
	"github.com/Nate-Schaefer/SmartDart-App/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// prefixCeiling bounds a prefix range scan: every username starting with p
// sorts at or below p+U+10FFFF under binary collation.
const prefixCeiling = "\U0010FFFF"

var errUserNotFound = fmt.Errorf("%w: user", apperr.ErrNotFound)

// CreateUser inserts a profile. Duplicate ids are a conflict, duplicate
// usernames are ErrDuplicateUsername.
func (r *PostgresRepository) CreateUser(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).Create(user).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Store(err)
	}

	if _, getErr := r.GetUser(ctx, user.ID); getErr == nil {
		return fmt.Errorf("%w: profile already exists", apperr.ErrConflict)
	}
	return apperr.ErrDuplicateUsername
}

// GetUser retrieves a user by id
func (r *PostgresRepository) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, translate(err, errUserNotFound)
	}
	return &user, nil
}

// GetUserForUpdate reads a user and row-locks it until the transaction ends.
// Dialects without row locks ignore the clause.
func (r *PostgresRepository) GetUserForUpdate(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&user).Error
	if err != nil {
		return nil, translate(err, errUserNotFound)
	}
	return &user, nil
}

// GetUserByUsername retrieves a user by username
func (r *PostgresRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, translate(err, errUserNotFound)
	}
	return &user, nil
}

// GetUsersByIDs loads many profiles in one query. Missing ids are skipped.
func (r *PostgresRepository) GetUsersByIDs(ctx context.Context, ids []string) (map[string]models.User, error) {
	out := make(map[string]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, apperr.Store(err)
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

// FindByUsernamePrefix returns users whose username starts with prefix,
// ordered by username. When after is set, only usernames greater than it are
// returned, which lets callers page through the range.
func (r *PostgresRepository) FindByUsernamePrefix(ctx context.Context, prefix, after string, limit int) ([]models.User, error) {
	q := r.db.WithContext(ctx).Model(&models.User{})
	if prefix != "" {
		q = q.Where("username >= ? AND username < ?", prefix, prefix+prefixCeiling)
	}
	if after != "" {
		q = q.Where("username > ?", after)
	}

	var users []models.User
	if err := q.Order("username ASC").Limit(limit).Find(&users).Error; err != nil {
		return nil, apperr.Store(err)
	}
	return users, nil
}

// UpdateEmail changes the email of a profile.
func (r *PostgresRepository) UpdateEmail(ctx context.Context, id, email string) (*models.User, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("email", email)
	if res.Error != nil {
		return nil, apperr.Store(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, errUserNotFound
	}
	return r.GetUser(ctx, id)
}

// ApplyOutcome writes the settled rating and tallies of a user.
func (r *PostgresRepository) ApplyOutcome(ctx context.Context, id string, rating, wins, losses int) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(map[string]any{
		"rating": rating,
		"wins":   wins,
		"losses": losses,
	})
	if res.Error != nil {
		return apperr.Store(res.Error)
	}
	if res.RowsAffected == 0 {
		return errUserNotFound
	}
	return nil
}

// DeleteUserCascade removes a user with their rating history, friend requests
// in either direction and friendships, in one transaction.
func (r *PostgresRepository) DeleteUserCascade(ctx context.Context, id string) (*models.User, error) {
	var deleted *models.User
	err := r.Transaction(ctx, func(tx *PostgresRepository) error {
		user, err := tx.GetUser(ctx, id)
		if err != nil {
			return err
		}
		db := tx.db.WithContext(ctx)
		if err := db.Where("user_id = ?", id).Delete(&models.RatingHistoryEntry{}).Error; err != nil {
			return apperr.Store(err)
		}
		if err := db.Where("sender_id = ? OR receiver_id = ?", id, id).Delete(&models.FriendRequest{}).Error; err != nil {
			return apperr.Store(err)
		}
		if err := db.Where("user_low = ? OR user_high = ?", id, id).Delete(&models.Friendship{}).Error; err != nil {
			return apperr.Store(err)
		}
		if err := db.Where("id = ?", id).Delete(&models.User{}).Error; err != nil {
			return apperr.Store(err)
		}
		deleted = user
		return nil
	})
	return deleted, err
}

// GetAllUsers retrieves all users (used for seeding Redis)
func (r *PostgresRepository) GetAllUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).Order("rating DESC").Order("username ASC").Find(&users).Error
	if err != nil {
		return nil, apperr.Store(err)
	}
	return users, nil
}

// TopUsers returns the n best-rated users, ties broken by username.
func (r *PostgresRepository) TopUsers(ctx context.Context, n int) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).Order("rating DESC").Order("username ASC").Limit(n).Find(&users).Error
	if err != nil {
		return nil, apperr.Store(err)
	}
	return users, nil
}

// CountUsersAbove counts users with a strictly higher rating.
func (r *PostgresRepository) CountUsersAbove(ctx context.Context, rating int) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("rating > ?", rating).Count(&count).Error
	if err != nil {
		return 0, apperr.Store(err)
	}
	return count, nil
}

// GetTotalUsers returns the total count of users
func (r *PostgresRepository) GetTotalUsers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error
	if err != nil {
		return 0, apperr.Store(err)
	}
	return count, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Nate-Schaefer/SmartDart-App/internal/apperr"
	"github.com/Nate-Schaefer/SmartDart-App/internal/models"

	"gorm.io/gorm"
)

// PostgresRepository handles all durable store operations. It runs on any
// gorm dialect; production uses PostgreSQL and the tests use SQLite.
type PostgresRepository struct {
	db *gorm.DB
}

// NewPostgresRepository creates a new Postgres repository
func NewPostgresRepository(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
	}
}

// Transaction runs fn inside one database transaction. The repository passed
// to fn is bound to that transaction. Errors returned by fn are passed through
// unchanged; begin/commit failures are reported as store errors.
func (r *PostgresRepository) Transaction(ctx context.Context, fn func(tx *PostgresRepository) error) error {
	var fnErr error
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fnErr = fn(&PostgresRepository{db: tx})
		return fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		return apperr.Store(err)
	}
	return nil
}

// Ping checks if database is reachable
func (r *PostgresRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (r *PostgresRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AutoMigrate runs database migrations
func (r *PostgresRepository) AutoMigrate() error {
	if err := r.db.AutoMigrate(
		&models.User{},
		&models.RatingHistoryEntry{},
		&models.RatingSettlement{},
		&models.FriendRequest{},
		&models.Friendship{},
	); err != nil {
		return err
	}

	// Prefix search compares usernames byte-wise; give the column binary
	// ordering on PostgreSQL. SQLite already compares with BINARY.
	if r.db.Dialector.Name() == "postgres" {
		if err := r.db.Exec(`ALTER TABLE users ALTER COLUMN username TYPE varchar(64) COLLATE "C"`).Error; err != nil {
			return fmt.Errorf("set username collation: %w", err)
		}
	}
	return nil
}

// translate maps gorm errors onto the apperr taxonomy.
func translate(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return apperr.Store(err)
	}
}

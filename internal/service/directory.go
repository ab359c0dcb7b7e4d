package service

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/Nate-Schaefer/SmartDart-App/internal/apperr"
	"github.com/Nate-Schaefer/SmartDart-App/internal/models"
	"github.com/Nate-Schaefer/SmartDart-App/internal/obslog"
	"github.com/Nate-Schaefer/SmartDart-App/internal/rating"
	"github.com/Nate-Schaefer/SmartDart-App/internal/repository"
	"github.com/Nate-Schaefer/SmartDart-App/internal/worker"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

// DirectoryOptions tunes the user directory.
type DirectoryOptions struct {
	DefaultRating  int
	SearchLimit    int
	MaxSearchLimit int
}

// DirectoryService owns player profiles.
type DirectoryService struct {
	postgresRepo *repository.PostgresRepository
	workerPool   *worker.WorkerPool
	validator    *validator.Validate
	opts         DirectoryOptions
}

// NewDirectoryService creates a new directory service
func NewDirectoryService(
	postgresRepo *repository.PostgresRepository,
	workerPool *worker.WorkerPool,
	opts DirectoryOptions,
) *DirectoryService {
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = 10
	}
	if opts.MaxSearchLimit < opts.SearchLimit {
		opts.MaxSearchLimit = opts.SearchLimit
	}
	return &DirectoryService{
		postgresRepo: postgresRepo,
		workerPool:   workerPool,
		validator:    validator.New(),
		opts:         opts,
	}
}

// CreateProfile registers the profile of an authenticated identity.
func (s *DirectoryService) CreateProfile(ctx context.Context, id string, req models.CreateProfileRequest) (*models.User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.Invalid("user id is required")
	}
	if err := s.validator.Struct(&req); err != nil {
		return nil, validationError(err)
	}
	if strings.IndexFunc(req.Username, unicode.IsSpace) >= 0 {
		return nil, apperr.Invalid("username must not contain whitespace")
	}

	user := &models.User{
		ID:       id,
		Username: req.Username,
		Email:    req.Email,
		Rating:   s.opts.DefaultRating,
	}
	if err := s.postgresRepo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	submitSync(s.workerPool, worker.LeaderboardSyncTask{Username: user.Username, Rating: user.Rating},
		zap.String("user_id", id))
	obslog.L().Info("profile_created", zap.String("user_id", id), zap.String("username", user.Username))
	return user, nil
}

// Get returns a profile by id.
func (s *DirectoryService) Get(ctx context.Context, id string) (*models.User, error) {
	return s.postgresRepo.GetUser(ctx, id)
}

// FindByUsernamePrefix returns profiles whose username starts with prefix,
// case-sensitive, in username order. limit <= 0 selects the default; larger
// values are capped.
func (s *DirectoryService) FindByUsernamePrefix(ctx context.Context, prefix string, limit int) ([]models.User, error) {
	return s.postgresRepo.FindByUsernamePrefix(ctx, prefix, "", s.clampSearchLimit(limit))
}

// UpdateEmail changes the email of the caller's own profile.
func (s *DirectoryService) UpdateEmail(ctx context.Context, id string, req models.UpdateProfileRequest) (*models.User, error) {
	if err := s.validator.Struct(&req); err != nil {
		return nil, validationError(err)
	}
	return s.postgresRepo.UpdateEmail(ctx, id, req.Email)
}

// Delete removes a profile and everything that references it.
func (s *DirectoryService) Delete(ctx context.Context, id string) error {
	user, err := s.postgresRepo.DeleteUserCascade(ctx, id)
	if err != nil {
		return err
	}
	submitSync(s.workerPool, worker.LeaderboardSyncTask{Username: user.Username, Remove: true},
		zap.String("user_id", id))
	obslog.L().Info("profile_deleted", zap.String("user_id", id), zap.String("username", user.Username))
	return nil
}

// History returns the latest rating history of a user, oldest first.
func (s *DirectoryService) History(ctx context.Context, id string, limit int) ([]models.RatingHistoryEntry, error) {
	if _, err := s.postgresRepo.GetUser(ctx, id); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.postgresRepo.History(ctx, id, limit)
}

// Stats summarizes a player's record.
func (s *DirectoryService) Stats(ctx context.Context, id string) (*models.ProfileStats, error) {
	user, err := s.postgresRepo.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.ProfileStats{
		Profile: *user,
		Tier:    rating.Tier(user.Rating),
		Games:   user.Wins + user.Losses,
		WinRate: rating.WinRate(user.Wins, user.Losses),
	}, nil
}

func (s *DirectoryService) clampSearchLimit(limit int) int {
	if limit <= 0 {
		return s.opts.SearchLimit
	}
	if limit > s.opts.MaxSearchLimit {
		return s.opts.MaxSearchLimit
	}
	return limit
}

// validationError turns validator output into an ErrInvalidInput.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, strings.ToLower(fe.Field())+" failed "+fe.Tag())
		}
		return apperr.Invalid("%s", strings.Join(fields, ", "))
	}
	return apperr.Invalid("%v", err)
}

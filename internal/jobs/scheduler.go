package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Nate-Schaefer/SmartDart-App/internal/archive"
	"github.com/Nate-Schaefer/SmartDart-App/internal/models"
	"github.com/Nate-Schaefer/SmartDart-App/internal/obslog"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

const jobTimeout = 2 * time.Minute

// Resyncer rebuilds the leaderboard cache from the durable store.
type Resyncer interface {
	SyncRedisFromPostgres(ctx context.Context) error
}

// Ranker reads the current leaderboard.
type Ranker interface {
	TopN(ctx context.Context, n int) (*models.LeaderboardResponse, error)
}

// SchedulerConfig holds job intervals.
type SchedulerConfig struct {
	ResyncInterval   time.Duration
	SnapshotInterval time.Duration
	SnapshotSize     int
}

// Scheduler runs the periodic leaderboard jobs.
type Scheduler struct {
	sched    gocron.Scheduler
	cfg      SchedulerConfig
	resync   Resyncer
	board    Ranker
	uploader archive.Uploader
	now      func() time.Time
}

// Snapshot is the document uploaded by the snapshot job.
type Snapshot struct {
	TakenAt time.Time                 `json:"taken_at"`
	Total   int64                     `json:"total"`
	Entries []models.LeaderboardEntry `json:"entries"`
}

// NewScheduler registers the jobs. uploader may be nil, which disables the
// snapshot job.
func NewScheduler(cfg SchedulerConfig, resync Resyncer, board Ranker, uploader archive.Uploader) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	s := &Scheduler{
		sched:    sched,
		cfg:      cfg,
		resync:   resync,
		board:    board,
		uploader: uploader,
		now:      time.Now,
	}

	if cfg.ResyncInterval > 0 {
		if _, err := sched.NewJob(
			gocron.DurationJob(cfg.ResyncInterval),
			gocron.NewTask(s.runJob, "leaderboard_resync", s.Resync),
			gocron.WithName("leaderboard_resync"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			return nil, fmt.Errorf("register resync job: %w", err)
		}
	}

	if uploader != nil && cfg.SnapshotInterval > 0 {
		if _, err := sched.NewJob(
			gocron.DurationJob(cfg.SnapshotInterval),
			gocron.NewTask(s.runJob, "leaderboard_snapshot", s.Snapshot),
			gocron.WithName("leaderboard_snapshot"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			return nil, fmt.Errorf("register snapshot job: %w", err)
		}
	}
	return s, nil
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	obslog.L().Info("scheduler_start",
		zap.Duration("resync_interval", s.cfg.ResyncInterval),
		zap.Duration("snapshot_interval", s.cfg.SnapshotInterval),
		zap.Bool("snapshots", s.uploader != nil),
	)
	s.sched.Start()
}

// Stop waits for running jobs and stops the scheduler.
func (s *Scheduler) Stop() error {
	return s.sched.Shutdown()
}

func (s *Scheduler) runJob(name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	if err := fn(ctx); err != nil {
		obslog.L().Warn("job_failed", zap.String("job", name), zap.Error(err))
		return
	}
	obslog.L().Debug("job_done", zap.String("job", name), zap.Duration("took", time.Since(start)))
}

// Resync rebuilds the leaderboard cache.
func (s *Scheduler) Resync(ctx context.Context) error {
	return s.resync.SyncRedisFromPostgres(ctx)
}

// Snapshot uploads the current top of the leaderboard.
func (s *Scheduler) Snapshot(ctx context.Context) error {
	if s.uploader == nil {
		return nil
	}
	board, err := s.board.TopN(ctx, s.cfg.SnapshotSize)
	if err != nil {
		return err
	}

	takenAt := s.now().UTC()
	body, err := json.Marshal(Snapshot{TakenAt: takenAt, Total: board.Total, Entries: board.Data})
	if err != nil {
		return err
	}

	key := archive.SnapshotKey(takenAt)
	if err := s.uploader.Put(ctx, key, body, "application/json"); err != nil {
		return err
	}
	obslog.L().Info("leaderboard_snapshot", zap.String("key", key), zap.Int("entries", len(board.Data)))
	return nil
}

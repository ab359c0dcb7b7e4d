package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Nate-Schaefer/SmartDart-App/internal/obslog"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
)

// LeaderboardSyncTask mirrors one committed directory change into the
// leaderboard cache. Remove drops the user instead of setting a rating.
type LeaderboardSyncTask struct {
	Username string
	Rating   int
	Remove   bool
}

// ScoreCache is the cache the workers write to.
type ScoreCache interface {
	UpdateScore(ctx context.Context, username string, rating int) error
	RemoveUser(ctx context.Context, username string) error
}

// WorkerPool applies leaderboard cache writes off the request path. The
// durable store is already committed when a task is submitted, so a dropped
// task only delays the cache until the next resync.
//
// Each worker owns one queue and tasks are routed by username, so writes for
// the same user are applied in submission order.
type WorkerPool struct {
	queues      []chan LeaderboardSyncTask
	workerCount int
	cache       ScoreCache
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	metrics     *PoolMetrics
	closeOnce   sync.Once
}

// PoolMetrics tracks worker pool performance
type PoolMetrics struct {
	mu              sync.RWMutex
	processed       int64
	failed          int64
	backpressure    int64
	totalProcessing time.Duration
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(workerCount, queueSize int, cache ScoreCache) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	ctx, cancel := context.WithCancel(context.Background())

	perWorker := (queueSize + workerCount - 1) / workerCount
	queues := make([]chan LeaderboardSyncTask, workerCount)
	for i := range queues {
		queues[i] = make(chan LeaderboardSyncTask, perWorker)
	}

	return &WorkerPool{
		queues:      queues,
		workerCount: workerCount,
		cache:       cache,
		ctx:         ctx,
		cancel:      cancel,
		metrics:     &PoolMetrics{},
	}
}

// Start initializes and starts all worker goroutines
func (wp *WorkerPool) Start() {
	obslog.L().Info("worker_pool_start",
		zap.Int("workers", wp.workerCount),
		zap.Int("queue_size", wp.capacity()),
	)

	for i := 1; i <= wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i, wp.queues[i-1])
	}
}

func (wp *WorkerPool) worker(id int, jobs <-chan LeaderboardSyncTask) {
	defer wp.wg.Done()

	for {
		select {
		case <-wp.ctx.Done():
			return

		case task, ok := <-jobs:
			if !ok {
				return
			}
			wp.processTask(id, task)
		}
	}
}

// processTask applies a single cache write with panic recovery
func (wp *WorkerPool) processTask(workerID int, task LeaderboardSyncTask) {
	defer func() {
		if r := recover(); r != nil {
			obslog.L().Error("worker_panic",
				zap.Int("worker", workerID),
				zap.Any("panic", r),
				zap.String("username", task.Username),
			)
			wp.metrics.incrementFailed()
		}
	}()

	startTime := time.Now()

	ctx, cancel := context.WithTimeout(wp.ctx, 5*time.Second)
	defer cancel()

	var err error
	if task.Remove {
		err = wp.cache.RemoveUser(ctx, task.Username)
	} else {
		err = wp.cache.UpdateScore(ctx, task.Username, task.Rating)
	}

	processingTime := time.Since(startTime)

	if err != nil {
		obslog.L().Warn("leaderboard_sync_failed",
			zap.Int("worker", workerID),
			zap.String("username", task.Username),
			zap.Bool("remove", task.Remove),
			zap.Duration("took", processingTime),
			zap.Error(err),
		)
		wp.metrics.incrementFailed()
		return
	}

	obslog.L().Debug("leaderboard_sync",
		zap.Int("worker", workerID),
		zap.String("username", task.Username),
		zap.Int("rating", task.Rating),
		zap.Bool("remove", task.Remove),
		zap.Duration("took", processingTime),
	)
	wp.metrics.recordSuccess(processingTime)
}

// Submit queues a task on the worker that owns its username. A full queue is
// rejected rather than waited on.
func (wp *WorkerPool) Submit(task LeaderboardSyncTask) error {
	select {
	case wp.queueFor(task.Username) <- task:
		return nil

	default:
		obslog.L().Warn("worker_backpressure", zap.String("username", task.Username))
		wp.metrics.incrementBackpressure()
		return fmt.Errorf("worker pool queue full (backpressure)")
	}
}

// Shutdown stops accepting tasks and waits for the queue to drain.
func (wp *WorkerPool) Shutdown(timeout time.Duration) error {
	obslog.L().Info("worker_pool_shutdown")

	wp.closeOnce.Do(func() {
		for _, q := range wp.queues {
			close(q)
		}
	})

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wp.logMetrics()
		return nil

	case <-time.After(timeout):
		wp.cancel()
		obslog.L().Warn("worker_pool_shutdown_timeout", zap.Duration("timeout", timeout))
		return fmt.Errorf("shutdown timeout exceeded")
	}
}

// GetMetrics returns a snapshot of the pool metrics
func (wp *WorkerPool) GetMetrics() map[string]interface{} {
	wp.metrics.mu.RLock()
	defer wp.metrics.mu.RUnlock()

	avgProcessing := time.Duration(0)
	if wp.metrics.processed > 0 {
		avgProcessing = wp.metrics.totalProcessing / time.Duration(wp.metrics.processed)
	}

	return map[string]interface{}{
		"processed":           wp.metrics.processed,
		"failed":              wp.metrics.failed,
		"backpressure_events": wp.metrics.backpressure,
		"avg_processing_time": avgProcessing.String(),
		"queue_utilization":   fmt.Sprintf("%d/%d", wp.queued(), wp.capacity()),
	}
}

func (wp *WorkerPool) queueFor(username string) chan LeaderboardSyncTask {
	return wp.queues[xxhash.Sum64String(username)%uint64(len(wp.queues))]
}

func (wp *WorkerPool) queued() int {
	n := 0
	for _, q := range wp.queues {
		n += len(q)
	}
	return n
}

func (wp *WorkerPool) capacity() int {
	n := 0
	for _, q := range wp.queues {
		n += cap(q)
	}
	return n
}

func (wp *WorkerPool) logMetrics() {
	m := wp.GetMetrics()
	obslog.L().Info("worker_pool_metrics",
		zap.Any("processed", m["processed"]),
		zap.Any("failed", m["failed"]),
		zap.Any("backpressure_events", m["backpressure_events"]),
		zap.Any("avg_processing_time", m["avg_processing_time"]),
	)
}

func (pm *PoolMetrics) recordSuccess(duration time.Duration) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.processed++
	pm.totalProcessing += duration
}

func (pm *PoolMetrics) incrementFailed() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.failed++
}

func (pm *PoolMetrics) incrementBackpressure() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.backpressure++
}

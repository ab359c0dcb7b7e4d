package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeCache struct {
	mu      sync.Mutex
	ratings map[string]int
	fail    bool
	block   chan struct{}

	// stallFirst delays the first UpdateScore call only
	stallFirst time.Duration
	stallOnce  sync.Once
}

func newFakeCache() *fakeCache {
	return &fakeCache{ratings: map[string]int{}}
}

func (f *fakeCache) UpdateScore(_ context.Context, username string, rating int) error {
	if f.block != nil {
		<-f.block
	}
	if f.stallFirst > 0 {
		f.stallOnce.Do(func() { time.Sleep(f.stallFirst) })
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("cache down")
	}
	f.ratings[username] = rating
	return nil
}

func (f *fakeCache) RemoveUser(_ context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("cache down")
	}
	delete(f.ratings, username)
	return nil
}

func TestPoolAppliesTasksBeforeShutdown(t *testing.T) {
	cache := newFakeCache()
	pool := NewWorkerPool(2, 10, cache)
	pool.Start()

	require.NoError(t, pool.Submit(LeaderboardSyncTask{Username: "amy", Rating: 1050}))
	require.NoError(t, pool.Submit(LeaderboardSyncTask{Username: "bob", Rating: 950}))
	require.NoError(t, pool.Shutdown(time.Second))

	require.Equal(t, map[string]int{"amy": 1050, "bob": 950}, cache.ratings)
	require.EqualValues(t, 2, pool.GetMetrics()["processed"])
}

func TestPoolRemoveTask(t *testing.T) {
	cache := newFakeCache()
	cache.ratings["amy"] = 1000
	pool := NewWorkerPool(1, 10, cache)
	pool.Start()

	require.NoError(t, pool.Submit(LeaderboardSyncTask{Username: "amy", Remove: true}))
	require.NoError(t, pool.Shutdown(time.Second))
	require.Empty(t, cache.ratings)
}

func TestPoolCountsFailures(t *testing.T) {
	cache := newFakeCache()
	cache.fail = true
	pool := NewWorkerPool(1, 10, cache)
	pool.Start()

	require.NoError(t, pool.Submit(LeaderboardSyncTask{Username: "amy", Rating: 1000}))
	require.NoError(t, pool.Shutdown(time.Second))
	require.EqualValues(t, 1, pool.GetMetrics()["failed"])
}

func TestPoolBackpressure(t *testing.T) {
	cache := newFakeCache()
	cache.block = make(chan struct{})
	pool := NewWorkerPool(1, 1, cache)
	pool.Start()

	// One task in flight, one queued, the rest rejected
	var rejected int
	for i := 0; i < 5; i++ {
		if err := pool.Submit(LeaderboardSyncTask{Username: "amy", Rating: i}); err != nil {
			rejected++
		}
	}
	require.GreaterOrEqual(t, rejected, 3)
	require.EqualValues(t, rejected, pool.GetMetrics()["backpressure_events"])

	close(cache.block)
	require.NoError(t, pool.Shutdown(time.Second))
}

func TestPoolKeepsPerUserOrderAcrossWorkers(t *testing.T) {
	cache := newFakeCache()
	cache.stallFirst = 50 * time.Millisecond
	pool := NewWorkerPool(8, 64, cache)
	pool.Start()

	require.NoError(t, pool.Submit(LeaderboardSyncTask{Username: "alice", Rating: 1050}))
	require.NoError(t, pool.Submit(LeaderboardSyncTask{Username: "alice", Rating: 1100}))
	require.NoError(t, pool.Submit(LeaderboardSyncTask{Username: "bob", Rating: 900}))
	require.NoError(t, pool.Submit(LeaderboardSyncTask{Username: "bob", Remove: true}))
	require.NoError(t, pool.Shutdown(time.Second))

	require.Equal(t, map[string]int{"alice": 1100}, cache.ratings)
}

func TestPoolRoutesUserToOneQueue(t *testing.T) {
	pool := NewWorkerPool(8, 64, newFakeCache())
	require.Len(t, pool.queues, 8)
	require.Equal(t, pool.queueFor("alice"), pool.queueFor("alice"))
	require.Equal(t, 64, pool.capacity())
}

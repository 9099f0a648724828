package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu    sync.Mutex
	tasks []Task
	fired chan Task
}

func newCollector() *collector {
	return &collector{fired: make(chan Task, 16)}
}

func (c *collector) handle(_ context.Context, task Task) {
	c.mu.Lock()
	c.tasks = append(c.tasks, task)
	c.mu.Unlock()
	c.fired <- task
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tasks)
}

func TestTimer_FiresAfterDelay(t *testing.T) {
	c := newCollector()
	s := NewTimer(context.Background(), c.handle)
	defer s.Close()

	task := Task{CameraID: "cam-1", Algorithm: "motion"}
	start := time.Now()
	require.NoError(t, s.Schedule(context.Background(), task, 30*time.Millisecond))
	assert.Equal(t, 1, s.Pending())

	select {
	case got := <-c.fired:
		assert.Equal(t, task, got)
		assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("task did not fire")
	}
	assert.Equal(t, 0, s.Pending())
}

func TestTimer_CloseDropsPending(t *testing.T) {
	c := newCollector()
	s := NewTimer(context.Background(), c.handle)

	require.NoError(t, s.Schedule(context.Background(), Task{CameraID: "cam-1", Algorithm: "motion"}, 50*time.Millisecond))
	require.NoError(t, s.Close())

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, c.count())
	assert.ErrorIs(t, s.Schedule(context.Background(), Task{}, time.Millisecond), ErrClosed)
}

func TestTimer_RescheduleMovesDueTime(t *testing.T) {
	c := newCollector()
	s := NewTimer(context.Background(), c.handle)
	defer s.Close()

	ctx := context.Background()
	task := Task{CameraID: "cam-1", Algorithm: "motion"}
	other := Task{CameraID: "cam-1", Algorithm: "face"}

	require.NoError(t, s.Schedule(ctx, task, 20*time.Millisecond))
	require.NoError(t, s.Schedule(ctx, other, 20*time.Millisecond))
	require.NoError(t, s.Schedule(ctx, task, 150*time.Millisecond))
	assert.Equal(t, 2, s.Pending())

	// only the other task is due at the first deadline
	assert.Equal(t, other, <-c.fired)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, c.count())

	select {
	case got := <-c.fired:
		assert.Equal(t, task, got)
	case <-time.After(time.Second):
		t.Fatal("task did not fire")
	}

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, c.count())
	assert.Equal(t, 0, s.Pending())
}

func newRedisClient(t *testing.T) redis.UniversalClient {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestRedis_RunDueHandlesOnlyDueTasks(t *testing.T) {
	ctx := context.Background()
	client := newRedisClient(t)
	c := newCollector()
	s := NewRedis(client, "", 0, c.handle)

	due := Task{CameraID: "cam-1", Algorithm: "motion"}
	later := Task{CameraID: "cam-1", Algorithm: "face"}
	require.NoError(t, s.Schedule(ctx, due, -time.Second))
	require.NoError(t, s.Schedule(ctx, later, time.Hour))

	handled, err := s.RunDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, handled)
	assert.Equal(t, due, <-c.fired)

	pending, err := s.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)
}

func TestRedis_RescheduleMovesDueTime(t *testing.T) {
	ctx := context.Background()
	client := newRedisClient(t)
	c := newCollector()
	s := NewRedis(client, "rearm", 0, c.handle)

	task := Task{CameraID: "cam-1", Algorithm: "motion"}
	require.NoError(t, s.Schedule(ctx, task, -time.Second))
	require.NoError(t, s.Schedule(ctx, task, time.Hour))

	handled, err := s.RunDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, handled)

	pending, err := s.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)
}

func TestRedis_TaskClaimedOnceAcrossInstances(t *testing.T) {
	ctx := context.Background()
	client := newRedisClient(t)
	c := newCollector()

	first := NewRedis(client, "rearm", 0, c.handle)
	second := NewRedis(client, "rearm", 0, c.handle)
	require.NoError(t, first.Schedule(ctx, Task{CameraID: "cam-1", Algorithm: "motion"}, -time.Millisecond))

	var wg sync.WaitGroup
	for _, s := range []*Redis{first, second} {
		wg.Add(1)
		go func(s *Redis) {
			defer wg.Done()
			_, err := s.RunDue(ctx)
			assert.NoError(t, err)
		}(s)
	}
	wg.Wait()

	assert.Equal(t, 1, c.count())
}

func TestRedis_RunStopsOnCancel(t *testing.T) {
	client := newRedisClient(t)
	c := newCollector()
	s := NewRedis(client, "rearm", 10*time.Millisecond, c.handle)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.NoError(t, s.Schedule(ctx, Task{CameraID: "cam-1", Algorithm: "motion"}, 0))
	select {
	case <-c.fired:
	case <-time.After(time.Second):
		t.Fatal("task did not fire")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}

package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/memograph/log"
)

func newTestScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.Logger == nil {
		cfg.Logger = log.NoOpLogger{}
	}
	return NewScheduler(cfg)
}

func TestProcessBatchRunsHandler(t *testing.T) {
	s := newTestScheduler(SchedulerConfig{})

	var mu sync.Mutex
	var seen []string
	s.RegisterHandler(KindRelationshipAnalysis, func(_ context.Context, task *Task) error {
		mu.Lock()
		seen = append(seen, task.MemoryID)
		mu.Unlock()
		return nil
	})

	require.NoError(t, s.Enqueue(NewTask(KindRelationshipAnalysis, "o", "m1", PriorityMedium)))
	require.NoError(t, s.Enqueue(NewTask(KindRelationshipAnalysis, "o", "m2", PriorityHigh)))

	s.ProcessBatch(context.Background())

	assert.Equal(t, []string{"m2", "m1"}, seen)
	m := s.Metrics()
	assert.Equal(t, uint64(2), m.Enqueued)
	assert.Equal(t, uint64(2), m.Processed)
	assert.Zero(t, s.Pending())
}

func TestProcessBatchHonorsBatchSize(t *testing.T) {
	s := newTestScheduler(SchedulerConfig{BatchSize: 3})
	s.RegisterHandler(KindFactExtraction, func(context.Context, *Task) error { return nil })

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Enqueue(NewTask(KindFactExtraction, "o", "m", PriorityMedium)))
	}
	s.ProcessBatch(context.Background())

	assert.Equal(t, uint64(3), s.Metrics().Processed)
	assert.Equal(t, 2, s.Pending())
}

func TestFailedTaskRetriesThenDeadLetters(t *testing.T) {
	s := newTestScheduler(SchedulerConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		Breaker:      BreakerConfig{FailureThreshold: 100},
	})
	now := time.Now()
	s.now = func() time.Time { return now }

	calls := 0
	s.RegisterHandler(KindFactExtraction, func(context.Context, *Task) error {
		calls++
		return errors.New("extractor down")
	})

	task := NewTask(KindFactExtraction, "o", "m1", PriorityMedium)
	require.NoError(t, s.Enqueue(task))

	for i := 0; i < 3; i++ {
		now = now.Add(time.Minute) // past any retry backoff
		s.ProcessBatch(context.Background())
	}

	assert.Equal(t, 3, calls)
	require.Len(t, s.DeadLetters(), 1)
	assert.Equal(t, StatusDeadLetter, s.DeadLetters()[0].Status)
	assert.Contains(t, s.DeadLetters()[0].LastError, "extractor down")

	m := s.Metrics()
	assert.Equal(t, uint64(3), m.Failed)
	assert.Equal(t, uint64(2), m.Retried)
	assert.Equal(t, uint64(1), m.DeadLettered)
}

func TestRetryWaitsForBackoff(t *testing.T) {
	s := newTestScheduler(SchedulerConfig{
		MaxAttempts:  3,
		InitialDelay: time.Minute,
		Breaker:      BreakerConfig{FailureThreshold: 100},
	})
	now := time.Now()
	s.now = func() time.Time { return now }

	calls := 0
	s.RegisterHandler(KindFactExtraction, func(context.Context, *Task) error {
		calls++
		return errors.New("boom")
	})

	require.NoError(t, s.Enqueue(NewTask(KindFactExtraction, "o", "m1", PriorityMedium)))
	now = now.Add(time.Second) // past the enqueue stamp
	s.ProcessBatch(context.Background())
	assert.Equal(t, 1, calls)

	// Still inside the backoff window: the task is held, not run.
	s.ProcessBatch(context.Background())
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, s.Pending())

	now = now.Add(10 * time.Minute)
	s.ProcessBatch(context.Background())
	assert.Equal(t, 2, calls)
}

func TestBreakerPausesBatch(t *testing.T) {
	s := newTestScheduler(SchedulerConfig{
		MaxAttempts: 1,
		Breaker:     BreakerConfig{FailureThreshold: 2, CoolDown: time.Hour},
	})
	s.RegisterHandler(KindFactExtraction, func(context.Context, *Task) error {
		return errors.New("boom")
	})

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Enqueue(NewTask(KindFactExtraction, "o", "m", PriorityMedium)))
	}
	s.ProcessBatch(context.Background())

	// Two failures tripped the breaker; the rest of the batch is paused.
	assert.Equal(t, BreakerOpen, s.Breaker())
	assert.Equal(t, uint64(2), s.Metrics().Failed)
	assert.Equal(t, 3, s.Pending())
}

func TestBreakerRecoversAfterIdleCoolDown(t *testing.T) {
	s := newTestScheduler(SchedulerConfig{
		MaxAttempts: 1,
		Breaker:     BreakerConfig{FailureThreshold: 2, CoolDown: time.Minute},
	})
	now := time.Now()
	s.now = func() time.Time { return now }
	s.breaker.now = s.now

	healthy := false
	s.RegisterHandler(KindFactExtraction, func(context.Context, *Task) error {
		if healthy {
			return nil
		}
		return errors.New("boom")
	})

	for i := 0; i < 2; i++ {
		require.NoError(t, s.Enqueue(NewTask(KindFactExtraction, "o", "m", PriorityMedium)))
	}
	now = now.Add(time.Second)
	s.ProcessBatch(context.Background())
	require.Equal(t, BreakerOpen, s.Breaker())

	// An empty batch after the cool-down must not consume the single
	// half-open trial call.
	now = now.Add(2 * time.Minute)
	s.ProcessBatch(context.Background())

	healthy = true
	require.NoError(t, s.Enqueue(NewTask(KindFactExtraction, "o", "m3", PriorityMedium)))
	now = now.Add(time.Second)
	s.ProcessBatch(context.Background())

	assert.Equal(t, BreakerClosed, s.Breaker())
	assert.Equal(t, uint64(1), s.Metrics().Processed)
	assert.Zero(t, s.Pending())
}

func TestTaskTimeout(t *testing.T) {
	s := newTestScheduler(SchedulerConfig{
		MaxAttempts: 1,
		TaskTimeout: 20 * time.Millisecond,
	})
	release := make(chan struct{})
	defer close(release)
	s.RegisterHandler(KindFactExtraction, func(context.Context, *Task) error {
		<-release
		return nil
	})

	require.NoError(t, s.Enqueue(NewTask(KindFactExtraction, "o", "m1", PriorityMedium)))
	s.ProcessBatch(context.Background())

	require.Len(t, s.DeadLetters(), 1)
	assert.Contains(t, s.DeadLetters()[0].LastError, "timed out")
}

func TestMissingHandlerDeadLetters(t *testing.T) {
	s := newTestScheduler(SchedulerConfig{})
	require.NoError(t, s.Enqueue(NewTask(KindImportanceRecalc, "o", "m1", PriorityLow)))
	s.ProcessBatch(context.Background())

	require.Len(t, s.DeadLetters(), 1)
	assert.Contains(t, s.DeadLetters()[0].LastError, "no handler")
}

func TestStartStopDrainsOnTick(t *testing.T) {
	s := newTestScheduler(SchedulerConfig{Tick: 10 * time.Millisecond})

	done := make(chan struct{})
	var once sync.Once
	s.RegisterHandler(KindRelationshipAnalysis, func(context.Context, *Task) error {
		once.Do(func() { close(done) })
		return nil
	})

	require.NoError(t, s.Enqueue(NewTask(KindRelationshipAnalysis, "o", "m1", PriorityHigh)))
	s.Start(context.Background())
	defer s.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task was not processed by the tick loop")
	}
}

func TestStopWithoutStartReturns(t *testing.T) {
	s := newTestScheduler(SchedulerConfig{})

	returned := make(chan struct{})
	go func() {
		s.Stop()
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked on a scheduler that was never started")
	}
}

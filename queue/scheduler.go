package queue

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/smallnest/memograph/log"
)

// Handler executes one task kind.
type Handler func(ctx context.Context, task *Task) error

// SchedulerConfig configures the background scheduler.
type SchedulerConfig struct {
	// Tick is the interval between batches.
	Tick time.Duration
	// BatchSize caps the tasks processed per tick.
	BatchSize int
	// TaskTimeout bounds a single task execution.
	TaskTimeout time.Duration
	// MaxDepth caps the pending queue; see PriorityQueue.
	MaxDepth int

	// MaxAttempts is how many times a task runs before dead-lettering.
	MaxAttempts int
	// InitialDelay, MaxDelay and BackoffFactor shape the retry backoff.
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64

	Breaker BreakerConfig
	Logger  log.Logger
}

// DefaultSchedulerConfig returns the production scheduler settings.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Tick:          3 * time.Second,
		BatchSize:     10,
		TaskTimeout:   15 * time.Second,
		MaxDepth:      1000,
		MaxAttempts:   3,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		Breaker:       DefaultBreakerConfig(),
		Logger:        log.Default(),
	}
}

// Metrics is a snapshot of scheduler counters.
type Metrics struct {
	Enqueued     uint64
	Processed    uint64
	Failed       uint64
	Retried      uint64
	DeadLettered uint64
	Dropped      uint64
}

// Scheduler drains a priority queue of background tasks on a fixed tick.
// Tasks run sequentially within a batch, each bounded by a timeout, behind a
// circuit breaker that pauses processing after repeated failures.
type Scheduler struct {
	config   SchedulerConfig
	queue    *PriorityQueue
	breaker  *CircuitBreaker
	handlers map[Kind]Handler
	logger   log.Logger
	now      func() time.Time

	mu         sync.Mutex
	started    bool
	metrics    Metrics
	deadLetter []*Task

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewScheduler creates a scheduler. Zero config fields fall back to
// defaults.
func NewScheduler(config SchedulerConfig) *Scheduler {
	def := DefaultSchedulerConfig()
	if config.Tick <= 0 {
		config.Tick = def.Tick
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.TaskTimeout <= 0 {
		config.TaskTimeout = def.TaskTimeout
	}
	if config.MaxDepth == 0 {
		config.MaxDepth = def.MaxDepth
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = def.MaxAttempts
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = def.InitialDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = def.MaxDelay
	}
	if config.BackoffFactor <= 1 {
		config.BackoffFactor = def.BackoffFactor
	}
	if config.Logger == nil {
		config.Logger = def.Logger
	}
	return &Scheduler{
		config:   config,
		queue:    NewPriorityQueue(config.MaxDepth),
		breaker:  NewCircuitBreaker(config.Breaker),
		handlers: make(map[Kind]Handler),
		logger:   config.Logger,
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// RegisterHandler binds a handler to a task kind. Must be called before
// Start.
func (s *Scheduler) RegisterHandler(kind Kind, h Handler) {
	s.handlers[kind] = h
}

// Enqueue adds a task for background processing.
func (s *Scheduler) Enqueue(t *Task) error {
	if err := s.queue.Push(t); err != nil {
		s.logger.Warn("queue: dropped task %s (%s): %v", t.ID, t.Kind, err)
		return err
	}
	s.mu.Lock()
	s.metrics.Enqueued++
	s.mu.Unlock()
	return nil
}

// Start launches the background loop. It runs until Stop is called or the
// context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.config.Tick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				s.ProcessBatch(ctx)
			}
		}
	}()
}

// Stop terminates the background loop and waits for the in-flight batch to
// finish. Calling Stop on a scheduler that was never started is a no-op.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return
	}
	<-s.done
}

// ProcessBatch drains up to BatchSize ready tasks, sequentially. It is
// called from the tick loop and is also safe to call directly.
func (s *Scheduler) ProcessBatch(ctx context.Context) {
	var held []*Task
	processed := 0

	for processed < s.config.BatchSize {
		task := s.queue.Pop()
		if task == nil {
			break
		}
		if task.ReadyAt.After(s.now()) {
			held = append(held, task)
			continue
		}
		// The breaker is consulted only with a runnable task in hand, so a
		// half-open probe is never spent on an empty or backed-off queue.
		if err := s.breaker.Allow(); err != nil {
			s.logger.Warn("queue: circuit %s, pausing batch", s.breaker.State())
			held = append(held, task)
			break
		}
		s.runTask(ctx, task)
		processed++
	}

	// Tasks waiting out a retry backoff, or held by an open circuit, go back
	// on the queue.
	for _, t := range held {
		if err := s.queue.Push(t); err != nil {
			s.deadLetterTask(t, fmt.Errorf("requeue: %w", err))
		}
	}
}

// runTask executes one task with a timeout and routes the outcome to the
// breaker, the retry path or the dead-letter list.
func (s *Scheduler) runTask(ctx context.Context, task *Task) {
	handler, ok := s.handlers[task.Kind]
	if !ok {
		s.deadLetterTask(task, fmt.Errorf("no handler for kind %s", task.Kind))
		return
	}

	task.Status = StatusRunning
	task.Attempts++

	err := s.execute(ctx, handler, task)
	if err == nil {
		task.Status = StatusDone
		s.breaker.RecordSuccess()
		s.mu.Lock()
		s.metrics.Processed++
		s.mu.Unlock()
		return
	}

	task.Status = StatusFailed
	task.LastError = err.Error()
	s.breaker.RecordFailure()
	s.mu.Lock()
	s.metrics.Failed++
	s.mu.Unlock()
	s.logger.Warn("queue: task %s (%s) attempt %d: %v", task.ID, task.Kind, task.Attempts, err)

	if task.Attempts >= s.config.MaxAttempts {
		s.deadLetterTask(task, err)
		return
	}

	task.Status = StatusPending
	task.ReadyAt = s.now().Add(s.backoff(task.Attempts))
	if pushErr := s.queue.Push(task); pushErr != nil {
		s.deadLetterTask(task, pushErr)
		return
	}
	s.mu.Lock()
	s.metrics.Retried++
	s.mu.Unlock()
}

// execute runs the handler in a goroutine so a stuck handler cannot wedge
// the batch past the task timeout.
func (s *Scheduler) execute(ctx context.Context, handler Handler, task *Task) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, s.config.TaskTimeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- handler(timeoutCtx, task)
	}()

	select {
	case err := <-errCh:
		return err
	case <-timeoutCtx.Done():
		return fmt.Errorf("task %s timed out after %v", task.ID, s.config.TaskTimeout)
	}
}

// backoff computes the retry delay for the given attempt count, exponential
// with a cap and up to 10% jitter.
func (s *Scheduler) backoff(attempt int) time.Duration {
	delay := s.config.InitialDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * s.config.BackoffFactor)
		if delay >= s.config.MaxDelay {
			delay = s.config.MaxDelay
			break
		}
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/10 + 1))
	return delay + jitter
}

func (s *Scheduler) deadLetterTask(task *Task, err error) {
	task.Status = StatusDeadLetter
	task.LastError = err.Error()
	s.mu.Lock()
	s.metrics.DeadLettered++
	s.deadLetter = append(s.deadLetter, task)
	s.mu.Unlock()
	s.logger.Error("queue: task %s (%s) dead-lettered after %d attempts: %v",
		task.ID, task.Kind, task.Attempts, err)
}

// DeadLetters returns the tasks that exhausted their attempts.
func (s *Scheduler) DeadLetters() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Task, len(s.deadLetter))
	copy(out, s.deadLetter)
	return out
}

// Metrics returns a snapshot of the scheduler counters. Dropped reflects
// queue-depth evictions.
func (s *Scheduler) Metrics() Metrics {
	s.mu.Lock()
	m := s.metrics
	s.mu.Unlock()
	m.Dropped = s.queue.Dropped()
	return m
}

// Pending returns the number of queued tasks.
func (s *Scheduler) Pending() int {
	return s.queue.Len()
}

// Breaker exposes the scheduler's circuit breaker state.
func (s *Scheduler) Breaker() BreakerState {
	return s.breaker.State()
}

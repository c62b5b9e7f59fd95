package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/watchlist/app/metrics"
)

const (
	taskTimeout   = 5 * time.Minute
	maxRetryDelay = 30 * time.Second
	queueSize     = 300
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

// Dependencies are the collaborators the periodic tasks run against. Any of
// them may be nil, which disables the tasks that need it.
type Dependencies struct {
	Importer MediaImporter
	Fetcher  TotalsFetcher
	Store    TotalsStore
	Pruner   RateLimitPruner
}

type Options struct {
	Interval    time.Duration
	WorkerCount int
	SeedIDs     []int64
	BatchSize   int
}

type Scheduler struct {
	deps        Dependencies
	seedIDs     []int64
	batchSize   int
	interval    time.Duration
	workerCount int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface
}

func NewScheduler(deps Dependencies, opts Options) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	interval := opts.Interval
	if interval <= 0 {
		interval = time.Hour
	}

	return &Scheduler{
		deps:        deps,
		seedIDs:     opts.SeedIDs,
		batchSize:   opts.BatchSize,
		interval:    interval,
		workerCount: max(opts.WorkerCount, 1),
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, queueSize),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueStartupTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()
}

// Stop cancels running tasks and waits for the workers to exit. The queue is
// left open so pending retries can never send on a closed channel.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.taskQueue <- task:
		return nil
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) enqueueStartupTasks() {
	if s.deps.Importer != nil && len(s.seedIDs) > 0 {
		slog.Info("Importing seed media", "count", len(s.seedIDs))
		s.wg.Add(1)
		go s.feedSeeds()
	}

	s.enqueueTasks()
}

// feedSeeds queues one import per seed id, waiting for room in the queue
// rather than dropping ids when the seed list outgrows it.
func (s *Scheduler) feedSeeds() {
	defer s.wg.Done()

	for i, id := range s.seedIDs {
		if err := s.enqueueBlocking(NewImportMediaTask(id, s.deps.Importer)); err != nil {
			slog.Warn("Scheduler stopped before all seed media were queued", "queued", i, "total", len(s.seedIDs))
			return
		}
	}
	slog.Debug("All seed media queued", "total", len(s.seedIDs))
}

// enqueueBlocking waits for queue space until the scheduler stops.
func (s *Scheduler) enqueueBlocking(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

func (s *Scheduler) enqueueTasks() {
	if s.deps.Fetcher != nil && s.deps.Store != nil {
		if err := s.EnqueueTask(NewRefreshTotalsTask(s.deps.Fetcher, s.deps.Store, s.batchSize)); err != nil {
			slog.Warn("Failed to enqueue RefreshTotalsTask", "error", err)
		}
	}

	if s.deps.Pruner != nil {
		if err := s.EnqueueTask(NewPruneRateLimitsTask(s.deps.Pruner)); err != nil {
			slog.Warn("Failed to enqueue PruneRateLimitsTask", "error", err)
		}
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		metrics.TaskExecutions.WithLabelValues(string(task.GetType()), "success").Inc()
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() {
		metrics.TaskExecutions.WithLabelValues(string(task.GetType()), "failure").Inc()
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		return
	}

	metrics.TaskExecutions.WithLabelValues(string(task.GetType()), "retry").Inc()
	task.IncrementRetryCount()
	retryDelay := retryDelayFor(task.GetRetryCount())

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "subject", task.GetSubject(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	go func() {
		timer := time.NewTimer(retryDelay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
		case <-timer.C:
			if retryErr := s.enqueueBlocking(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
			}
		}
	}()
}

// retryDelayFor doubles from one second per attempt, capped at maxRetryDelay.
func retryDelayFor(attempt int) time.Duration {
	delay := time.Duration(1<<uint(max(attempt-1, 0))) * time.Second
	return min(delay, maxRetryDelay)
}

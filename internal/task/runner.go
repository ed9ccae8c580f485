package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue
	QueueSize int

	// RetryPolicy bounds how often a failing task is re-executed.
	RetryPolicy RetryPolicy

	// StuckTaskAge defines how long a task can be in processing state
	// before it's considered stuck and reset
	StuckTaskAge time.Duration

	// StuckTaskCheckInterval defines how often to check for stuck tasks.
	// If zero, defaults to 5 minutes.
	StuckTaskCheckInterval time.Duration
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount:            2,
		QueueSize:              100,
		RetryPolicy:            DefaultRetryPolicy(),
		StuckTaskAge:           30 * time.Minute,
		StuckTaskCheckInterval: 5 * time.Minute,
	}
}

// TaskRunner manages background task processing. Each queued task is owned
// by exactly one worker at a time, so retries of the same task are
// sequential and never concurrent with each other.
type TaskRunner struct {
	store       TaskStore
	taskChan    chan Task
	ctx         context.Context
	cancelFunc  context.CancelFunc
	wg          sync.WaitGroup
	config      TaskRunnerConfig
	logger      *slog.Logger
	reconstruct TaskReconstructor
	errHandler  func(task Task, err error)

	inFlightMu sync.Mutex
	inFlight   map[uuid.UUID]struct{}
}

// NewTaskRunner creates a new TaskRunner
func NewTaskRunner(store TaskStore, config TaskRunnerConfig, logger *slog.Logger) *TaskRunner {
	if config.StuckTaskCheckInterval == 0 {
		config.StuckTaskCheckInterval = 5 * time.Minute
	}
	if config.RetryPolicy.MaxAttempts < 1 {
		config.RetryPolicy.MaxAttempts = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &TaskRunner{
		store:      store,
		taskChan:   make(chan Task, config.QueueSize),
		ctx:        ctx,
		cancelFunc: cancel,
		wg:         sync.WaitGroup{},
		config:     config,
		logger:     logger,
		inFlight:   make(map[uuid.UUID]struct{}),
		errHandler: func(task Task, err error) {
			logger.Error("task execution failed",
				"task_id", task.ID(),
				"task_type", task.Type(),
				"error", err)
		},
	}
}

// SetErrorHandler allows setting a custom error handler function
func (r *TaskRunner) SetErrorHandler(handler func(task Task, err error)) {
	r.errHandler = handler
}

// SetReconstructor installs the function used to rebuild executable tasks
// from persisted rows during recovery.
func (r *TaskRunner) SetReconstructor(fn TaskReconstructor) {
	r.reconstruct = fn
}

// Submit adds a new task to the queue
func (r *TaskRunner) Submit(ctx context.Context, task Task) error {
	// Save task to database first
	if err := r.store.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}

	// Then add to in-memory queue
	select {
	case r.taskChan <- task:
		return nil
	default:
		return fmt.Errorf("task queue is full, try again later")
	}
}

// Start initializes the worker pool and begins processing tasks
func (r *TaskRunner) Start() error {
	// Recover unfinished tasks from previous runs
	if err := r.Recover(); err != nil {
		return fmt.Errorf("failed to recover tasks: %w", err)
	}

	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	r.wg.Add(1)
	go r.stuckTaskMonitor()

	return nil
}

// Stop gracefully shuts down the task runner
func (r *TaskRunner) Stop() {
	r.cancelFunc()
	r.wg.Wait()
	close(r.taskChan)
}

// Recover loads any unfinished tasks from the database and requeues them.
// Tasks found in processing state were interrupted by a crash; they are
// reset to pending and re-run from the top, which is safe because the
// pipeline makes no partial-stage resume guarantees.
func (r *TaskRunner) Recover() error {
	ctx := context.Background()

	pendingTasks, err := r.store.GetPendingTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to get pending tasks: %w", err)
	}

	processingTasks, err := r.store.GetProcessingTasks(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to get processing tasks: %w", err)
	}

	r.logger.Info("recovering unfinished tasks",
		"pending_count", len(pendingTasks),
		"processing_count", len(processingTasks))

	for _, t := range pendingTasks {
		r.requeueRecovered(ctx, t)
	}

	for _, t := range processingTasks {
		if err := r.store.UpdateTaskStatus(ctx, t.ID(), TaskStatusPending, "Reset after recovery"); err != nil {
			r.logger.Error("failed to reset processing task status",
				"task_id", t.ID(),
				"task_type", t.Type(),
				"error", err)
			continue
		}
		r.requeueRecovered(ctx, t)
	}

	return nil
}

// requeueRecovered rebuilds a recovered task through the reconstructor, if
// one is installed, and puts it back on the queue.
func (r *TaskRunner) requeueRecovered(ctx context.Context, t Task) {
	if r.reconstruct != nil {
		rebuilt, err := r.reconstruct(t.Type(), t.ID(), t.Payload())
		if err != nil {
			r.logger.Error("failed to reconstruct recovered task",
				"task_id", t.ID(),
				"task_type", t.Type(),
				"error", err)
			if updateErr := r.store.UpdateTaskStatus(ctx, t.ID(), TaskStatusFailed,
				fmt.Sprintf("unrecoverable: %v", err)); updateErr != nil {
				r.logger.Error("failed to mark unrecoverable task failed",
					"task_id", t.ID(),
					"error", updateErr)
			}
			return
		}
		t = rebuilt
	}

	select {
	case r.taskChan <- t:
	default:
		r.logger.Error("failed to requeue recovered task, queue is full",
			"task_id", t.ID(),
			"task_type", t.Type())
	}
}

// worker processes tasks from the queue
func (r *TaskRunner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("stopping worker", "worker_id", id)
			return

		case task, ok := <-r.taskChan:
			if !ok {
				r.logger.Debug("task channel closed, stopping worker", "worker_id", id)
				return
			}

			r.processTask(task, id)
		}
	}
}

// processTask handles execution of a single task under the retry policy.
// The task's Execute is re-invoked from scratch on each attempt; once the
// ceiling is exhausted the task is marked failed and left for manual
// intervention.
func (r *TaskRunner) processTask(task Task, workerID int) {
	r.markInFlight(task.ID())
	defer r.clearInFlight(task.ID())

	// Status writes use a background context so a shutdown mid-task still
	// records the outcome; the execution itself honors the runner context.
	ctx := context.Background()
	logger := r.logger.With(
		"task_id", task.ID(),
		"task_type", task.Type(),
		"worker_id", workerID,
	)

	if err := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusProcessing, ""); err != nil {
		logger.Error("failed to update task status to processing", "error", err)
		return
	}

	logger.Info("processing task", "max_attempts", r.config.RetryPolicy.MaxAttempts)

	err := r.config.RetryPolicy.Execute(r.ctx, task.Execute, func(attempt int, attemptErr error) {
		logger.Warn("task attempt failed, will retry",
			"attempt", attempt,
			"error", attemptErr)
	})

	if err != nil {
		logger.Error("task execution failed after retries", "error", err)
		if updateErr := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusFailed, err.Error()); updateErr != nil {
			logger.Error("failed to update task status to failed", "error", updateErr)
		}

		r.errHandler(task, err)
	} else {
		logger.Info("task completed successfully")
		if updateErr := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusCompleted, ""); updateErr != nil {
			logger.Error("failed to update task status to completed", "error", updateErr)
		}
	}
}

func (r *TaskRunner) markInFlight(id uuid.UUID) {
	r.inFlightMu.Lock()
	r.inFlight[id] = struct{}{}
	r.inFlightMu.Unlock()
}

func (r *TaskRunner) clearInFlight(id uuid.UUID) {
	r.inFlightMu.Lock()
	delete(r.inFlight, id)
	r.inFlightMu.Unlock()
}

func (r *TaskRunner) isInFlight(id uuid.UUID) bool {
	r.inFlightMu.Lock()
	defer r.inFlightMu.Unlock()
	_, ok := r.inFlight[id]
	return ok
}

// stuckTaskMonitor periodically checks for tasks that have been in
// "processing" state for too long and resets them. Tasks still executing
// in this process are skipped; the reset is for runs orphaned by another
// instance's crash.
func (r *TaskRunner) stuckTaskMonitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.StuckTaskCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return

		case <-ticker.C:
			ctx := context.Background()

			stuckTasks, err := r.store.GetProcessingTasks(ctx, r.config.StuckTaskAge)
			if err != nil {
				r.logger.Error("failed to check for stuck tasks", "error", err)
				continue
			}

			if len(stuckTasks) == 0 {
				continue
			}

			r.logger.Info("found stuck tasks", "count", len(stuckTasks))

			for _, t := range stuckTasks {
				// A row can exceed the threshold while its run is still
				// live in this process (a slow provider call, not a
				// crash). Resetting it would start a second concurrent
				// run for the same document.
				if r.isInFlight(t.ID()) {
					r.logger.Warn("task exceeds stuck threshold but is still executing, leaving it alone",
						"task_id", t.ID(),
						"task_type", t.Type())
					continue
				}

				if err := r.store.UpdateTaskStatus(ctx, t.ID(), TaskStatusPending,
					"Reset after being stuck in processing state"); err != nil {
					r.logger.Error("failed to reset stuck task status",
						"task_id", t.ID(),
						"task_type", t.Type(),
						"error", err)
					continue
				}

				r.requeueRecovered(ctx, t)
			}
		}
	}
}

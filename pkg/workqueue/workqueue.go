package workqueue

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vnykmshr/gopermit/pkg/common/errors"
	"github.com/vnykmshr/gopermit/pkg/common/validation"
	"github.com/vnykmshr/gopermit/pkg/permit"
)

// Task represents a unit of work that can be executed by a worker.
type Task interface {
	// Execute runs the task with the given context.
	// It should respect context cancellation and return any error encountered.
	Execute(ctx context.Context) error
}

// TaskFunc is a function type that implements the Task interface.
type TaskFunc func(ctx context.Context) error

// Execute implements the Task interface for TaskFunc.
func (f TaskFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// Result represents the outcome of one task.
type Result struct {
	// Task is the original task that was executed.
	Task Task

	// Cost is the number of permits the task asked for.
	Cost int

	// Granted is the number of permits actually consumed. Burst
	// protection can grant less than Cost.
	Granted int

	// WaitTime is how long the worker waited for permits.
	WaitTime time.Duration

	// Duration is how long the task took to execute, excluding the
	// permit wait.
	Duration time.Duration

	// Error is any error from acquiring permits or executing the task.
	Error error

	// WorkerID identifies which worker processed the task.
	WorkerID int
}

// Pool is a fixed-size worker pool whose workers acquire permits from
// an adaptive limiter before executing each task.
type Pool interface {
	// Submit queues a task with a permit cost of one.
	Submit(task Task) error

	// SubmitCost queues a task that consumes cost permits before it runs.
	SubmitCost(task Task, cost int) error

	// SubmitWithContext queues a task under a caller context. The context
	// governs queuing, the permit wait, and the task's execution.
	SubmitWithContext(ctx context.Context, task Task, cost int) error

	// Results returns the channel of task results. It is closed once
	// shutdown completes.
	Results() <-chan Result

	// Shutdown stops the pool: no new tasks are accepted, in-flight
	// tasks finish, blocked permit waits abort, and tasks still queued
	// are dropped. The returned channel closes when every worker has
	// exited.
	Shutdown() <-chan struct{}

	// Size returns the number of workers.
	Size() int

	// QueueSize returns the number of tasks waiting for a worker.
	QueueSize() int

	// ActiveWorkers returns the number of workers processing a task.
	ActiveWorkers() int

	// TotalSubmitted returns the number of tasks accepted so far.
	TotalSubmitted() int64

	// TotalCompleted returns the number of tasks processed so far,
	// including ones that failed.
	TotalCompleted() int64
}

// Config holds configuration options for creating a pool.
type Config struct {
	// Limiter gates task execution. A nil limiter runs the pool
	// ungated. The pool does not close the limiter.
	Limiter permit.Limiter

	// WorkerCount is the number of workers in the pool.
	// Must be greater than 0.
	WorkerCount int

	// QueueSize is the maximum number of tasks that can wait for a
	// worker. Zero makes submits rendezvous directly with workers.
	QueueSize int

	// TaskTimeout bounds each task: the permit wait and execution
	// together. Zero means no timeout.
	TaskTimeout time.Duration

	// Logger receives pool lifecycle logs. Defaults to slog.Default().
	Logger *slog.Logger

	// OnTaskComplete is called after a task finishes, before its result
	// is delivered.
	OnTaskComplete func(workerID int, result Result)
}

// pool implements the Pool interface.
type pool struct {
	config  Config
	limiter permit.Limiter
	logger  *slog.Logger

	workers     []worker
	taskQueue   chan taskWithContext
	resultQueue chan Result

	// execCtx is cancelled at shutdown so permit waits parked on a
	// drained bucket abort instead of wedging the drain.
	execCtx    context.Context
	execCancel context.CancelFunc

	shutdownCh   chan struct{}
	doneCh       chan struct{}
	shutdownOnce sync.Once

	mu         sync.RWMutex
	isShutdown bool

	activeWorkers  atomic.Int32
	totalSubmitted atomic.Int64
	totalCompleted atomic.Int64

	workerWg sync.WaitGroup
}

// worker represents a single worker in the pool.
type worker struct {
	id     int
	pool   *pool
	stopCh chan struct{}
}

// taskWithContext carries a queued task with its submission context and
// permit cost.
type taskWithContext struct {
	task Task
	ctx  context.Context
	cost int
}

// New creates a pool with the given limiter, worker count, and queue
// size. A nil limiter runs the pool ungated.
func New(limiter permit.Limiter, workerCount, queueSize int) (Pool, error) {
	return NewWithConfig(Config{
		Limiter:     limiter,
		WorkerCount: workerCount,
		QueueSize:   queueSize,
	})
}

// NewWithConfig creates a pool from a full configuration.
func NewWithConfig(config Config) (Pool, error) {
	if err := validation.ValidatePositive("workqueue", "worker_count", config.WorkerCount); err != nil {
		return nil, err
	}
	if config.QueueSize < 0 {
		return nil, errors.NewValidationError("workqueue", "queue_size", config.QueueSize,
			"cannot be negative").WithHint("use 0 for direct handoff to workers")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	execCtx, execCancel := context.WithCancel(context.Background())
	p := &pool{
		config:      config,
		limiter:     config.Limiter,
		logger:      config.Logger.With("component", "workqueue"),
		taskQueue:   make(chan taskWithContext, config.QueueSize),
		resultQueue: make(chan Result, config.QueueSize+config.WorkerCount),
		execCtx:     execCtx,
		execCancel:  execCancel,
		shutdownCh:  make(chan struct{}),
		doneCh:      make(chan struct{}),
	}

	p.workers = make([]worker, config.WorkerCount)
	for i := range p.workers {
		p.workers[i] = worker{id: i, pool: p, stopCh: make(chan struct{})}
		p.workerWg.Add(1)
		go p.workers[i].run()
	}

	p.logger.Debug("work queue started",
		"workers", config.WorkerCount,
		"queue_size", config.QueueSize,
		"gated", config.Limiter != nil)
	return p, nil
}

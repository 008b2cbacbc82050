package workqueue

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"
)

// Submit queues a task with a permit cost of one.
func (p *pool) Submit(task Task) error {
	return p.SubmitWithContext(context.Background(), task, 1)
}

// SubmitCost queues a task that consumes cost permits before it runs.
func (p *pool) SubmitCost(task Task, cost int) error {
	return p.SubmitWithContext(context.Background(), task, cost)
}

// SubmitWithContext queues a task under a caller context.
func (p *pool) SubmitWithContext(ctx context.Context, task Task, cost int) error {
	if task == nil {
		return fmt.Errorf("cannot submit nil task")
	}
	if cost <= 0 {
		return fmt.Errorf("cannot submit task: cost must be positive, got %d", cost)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	p.mu.RLock()
	isShutdown := p.isShutdown
	p.mu.RUnlock()
	if isShutdown {
		return fmt.Errorf("cannot submit task: work queue has been shut down")
	}

	// An already-dead context never enqueues, even when the queue has room.
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("cannot submit task: %w", err)
	}

	twc := taskWithContext{task: task, ctx: ctx, cost: cost}
	select {
	case p.taskQueue <- twc:
		p.totalSubmitted.Add(1)
		return nil
	case <-p.shutdownCh:
		return fmt.Errorf("cannot submit task: work queue has been shut down")
	case <-ctx.Done():
		return fmt.Errorf("cannot submit task: %w", ctx.Err())
	}
}

// Results returns the channel of task results.
func (p *pool) Results() <-chan Result {
	return p.resultQueue
}

// Shutdown stops the pool and returns a channel that closes once every
// worker has exited. Safe to call more than once.
func (p *pool) Shutdown() <-chan struct{} {
	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		p.isShutdown = true
		p.mu.Unlock()

		close(p.shutdownCh)
		p.execCancel()
		for i := range p.workers {
			close(p.workers[i].stopCh)
		}

		go func() {
			p.workerWg.Wait()
			close(p.resultQueue)
			close(p.doneCh)
			p.logger.Debug("work queue stopped",
				"submitted", p.totalSubmitted.Load(),
				"completed", p.totalCompleted.Load())
		}()
	})
	return p.doneCh
}

// Size returns the number of workers.
func (p *pool) Size() int {
	return p.config.WorkerCount
}

// QueueSize returns the number of tasks waiting for a worker.
func (p *pool) QueueSize() int {
	return len(p.taskQueue)
}

// ActiveWorkers returns the number of workers processing a task.
func (p *pool) ActiveWorkers() int {
	return int(p.activeWorkers.Load())
}

// TotalSubmitted returns the number of tasks accepted so far.
func (p *pool) TotalSubmitted() int64 {
	return p.totalSubmitted.Load()
}

// TotalCompleted returns the number of tasks processed so far.
func (p *pool) TotalCompleted() int64 {
	return p.totalCompleted.Load()
}

// run is the main worker loop.
func (w *worker) run() {
	defer w.pool.workerWg.Done()

	for {
		// Check the stop signal first so a stopped worker does not keep
		// draining the queue. Queued tasks are dropped at shutdown.
		select {
		case <-w.stopCh:
			return
		default:
		}

		select {
		case <-w.stopCh:
			return
		case twc := <-w.pool.taskQueue:
			w.executeTask(twc)
		}
	}
}

// executeTask acquires permits for a task and runs it.
func (w *worker) executeTask(twc taskWithContext) {
	w.pool.activeWorkers.Add(1)
	defer w.pool.activeWorkers.Add(-1)

	ctx, cancel := context.WithCancel(twc.ctx)
	defer cancel()
	stop := context.AfterFunc(w.pool.execCtx, cancel)
	defer stop()

	if w.pool.config.TaskTimeout > 0 {
		var tcancel context.CancelFunc
		ctx, tcancel = context.WithTimeout(ctx, w.pool.config.TaskTimeout)
		defer tcancel()
	}

	result := Result{Task: twc.task, Cost: twc.cost, WorkerID: w.id}

	if w.pool.limiter != nil {
		waitStart := time.Now()
		granted, err := w.pool.limiter.AcquireN(ctx, twc.cost)
		result.WaitTime = time.Since(waitStart)
		if err != nil {
			result.Error = fmt.Errorf("acquire %d permits: %w", twc.cost, err)
			w.finish(result)
			return
		}
		result.Granted = granted
	} else {
		result.Granted = twc.cost
	}

	start := time.Now()
	func() {
		defer func() {
			if r := recover(); r != nil {
				result.Error = fmt.Errorf("task panicked: %v\nstack trace:\n%s", r, debug.Stack())
			}
		}()
		result.Error = twc.task.Execute(ctx)
	}()
	result.Duration = time.Since(start)

	w.finish(result)
}

// finish records a completed task and delivers its result.
func (w *worker) finish(result Result) {
	w.pool.totalCompleted.Add(1)
	if hook := w.pool.config.OnTaskComplete; hook != nil {
		hook(w.id, result)
	}
	w.sendResult(result)
}

// sendResult delivers a result without wedging the worker when nobody
// is reading.
func (w *worker) sendResult(result Result) {
	select {
	case w.pool.resultQueue <- result:
		return
	default:
	}

	select {
	case w.pool.resultQueue <- result:
	case <-w.stopCh:
		// Shutting down with a full result buffer; drop the result.
	case <-time.After(100 * time.Millisecond):
		w.pool.logger.Warn("result dropped, consumer not keeping up",
			"worker_id", w.id, "cost", result.Cost)
	}
}

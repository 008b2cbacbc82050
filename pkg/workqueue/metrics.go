package workqueue

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vnykmshr/gopermit/pkg/metrics"
	"github.com/vnykmshr/gopermit/pkg/permit"
)

// MetricsPool wraps a Pool with Prometheus metrics collection.
type MetricsPool struct {
	pool     Pool
	name     string
	registry *metrics.Registry
	enabled  bool
}

// NewWithMetrics creates a pool with metrics enabled. The queue size
// defaults to twice the worker count.
func NewWithMetrics(limiter permit.Limiter, workerCount int, name string) (Pool, error) {
	// Use a separate registry for each metrics-enabled component to avoid conflicts
	registry := prometheus.NewRegistry()
	config := metrics.Config{
		Enabled:  true,
		Registry: registry,
	}

	return NewWithConfigAndMetrics(Config{
		Limiter:     limiter,
		WorkerCount: workerCount,
		QueueSize:   workerCount * 2,
	}, name, config)
}

// NewWithConfigAndMetrics creates a pool from a full configuration with
// metrics. The completion hook is chained, not replaced, so a
// caller-provided hook still fires.
func NewWithConfigAndMetrics(config Config, name string, metricsConfig metrics.Config) (Pool, error) {
	if !metricsConfig.Enabled {
		return NewWithConfig(config)
	}

	mp := &MetricsPool{
		name:     name,
		registry: metrics.ForConfig(metricsConfig),
		enabled:  true,
	}

	// Task execution is internal to the base pool, so per-task metrics
	// flow through the completion hook rather than method interception.
	prev := config.OnTaskComplete
	config.OnTaskComplete = func(workerID int, result Result) {
		if mp.enabled {
			mp.registry.TaskDuration.WithLabelValues(mp.name).Observe(result.Duration.Seconds())
			if result.Error != nil {
				mp.registry.TasksFailed.WithLabelValues(mp.name).Inc()
			} else {
				mp.registry.TasksCompleted.WithLabelValues(mp.name).Inc()
			}
			mp.updateGauges()
		}
		if prev != nil {
			prev(workerID, result)
		}
	}

	base, err := NewWithConfig(config)
	if err != nil {
		return nil, err
	}
	mp.pool = base
	mp.updateGauges()
	return mp, nil
}

// Submit queues a task with a permit cost of one.
func (mp *MetricsPool) Submit(task Task) error {
	return mp.SubmitWithContext(context.Background(), task, 1)
}

// SubmitCost queues a task that consumes cost permits before it runs.
func (mp *MetricsPool) SubmitCost(task Task, cost int) error {
	return mp.SubmitWithContext(context.Background(), task, cost)
}

// SubmitWithContext queues a task under a caller context.
func (mp *MetricsPool) SubmitWithContext(ctx context.Context, task Task, cost int) error {
	err := mp.pool.SubmitWithContext(ctx, task, cost)

	if mp.enabled {
		if err == nil {
			mp.registry.TasksSubmitted.WithLabelValues(mp.name).Inc()
		}
		mp.updateGauges()
	}

	return err
}

// Results returns the channel of task results.
func (mp *MetricsPool) Results() <-chan Result {
	return mp.pool.Results()
}

// Shutdown stops the pool.
func (mp *MetricsPool) Shutdown() <-chan struct{} {
	return mp.pool.Shutdown()
}

// Size returns the number of workers.
func (mp *MetricsPool) Size() int {
	return mp.pool.Size()
}

// QueueSize returns the number of tasks waiting for a worker.
func (mp *MetricsPool) QueueSize() int {
	return mp.pool.QueueSize()
}

// ActiveWorkers returns the number of workers processing a task.
func (mp *MetricsPool) ActiveWorkers() int {
	return mp.pool.ActiveWorkers()
}

// TotalSubmitted returns the number of tasks accepted so far.
func (mp *MetricsPool) TotalSubmitted() int64 {
	return mp.pool.TotalSubmitted()
}

// TotalCompleted returns the number of tasks processed so far.
func (mp *MetricsPool) TotalCompleted() int64 {
	return mp.pool.TotalCompleted()
}

// EnableMetrics enables metrics collection. Collectors are rebuilt only
// when the config carries a custom Registry; namespace and label
// overrides take effect at construction.
func (mp *MetricsPool) EnableMetrics(config metrics.Config) error {
	mp.enabled = config.Enabled

	if config.Registry != nil {
		mp.registry = metrics.ForConfig(config)
	}

	return nil
}

// DisableMetrics disables metrics collection.
func (mp *MetricsPool) DisableMetrics() {
	mp.enabled = false
}

// MetricsEnabled returns true if metrics are currently enabled.
func (mp *MetricsPool) MetricsEnabled() bool {
	return mp.enabled
}

// updateGauges refreshes the pool state gauges.
func (mp *MetricsPool) updateGauges() {
	mp.registry.WorkerPoolSize.WithLabelValues(mp.name).Set(float64(mp.pool.Size()))
	mp.registry.WorkerPoolActive.WithLabelValues(mp.name).Set(float64(mp.pool.ActiveWorkers()))
	mp.registry.WorkerPoolQueued.WithLabelValues(mp.name).Set(float64(mp.pool.QueueSize()))
}

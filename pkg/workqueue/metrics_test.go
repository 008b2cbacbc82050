package workqueue

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vnykmshr/gopermit/internal/testutil"
	"github.com/vnykmshr/gopermit/pkg/metrics"
)

func TestNewWithMetrics(t *testing.T) {
	limiter := newTestLimiter(t, 100)
	pool, err := NewWithMetrics(limiter, 3, "test_pool")
	testutil.AssertNoError(t, err)
	t.Cleanup(func() { <-pool.Shutdown() })

	mp, ok := pool.(*MetricsPool)
	testutil.AssertEqual(t, ok, true)
	testutil.AssertEqual(t, mp.MetricsEnabled(), true)
	testutil.AssertEqual(t, pool.Size(), 3)

	var executed int32
	testutil.AssertNoError(t, pool.Submit(&testTask{Executed: &executed}))
	result := collectResult(t, pool)
	testutil.AssertNoError(t, result.Error)
	testutil.AssertEqual(t, result.Granted, 1)
}

func TestNewWithConfigAndMetricsDisabled(t *testing.T) {
	pool, err := NewWithConfigAndMetrics(Config{
		WorkerCount: 1,
		Logger:      quietLogger(),
	}, "plain", metrics.Config{Enabled: false})
	testutil.AssertNoError(t, err)
	t.Cleanup(func() { <-pool.Shutdown() })

	_, ok := pool.(*MetricsPool)
	testutil.AssertEqual(t, ok, false)
}

func TestMetricsPoolRecordsOutcomes(t *testing.T) {
	registry := prometheus.NewRegistry()
	limiter := newTestLimiter(t, 100)
	pool, err := NewWithConfigAndMetrics(Config{
		Limiter:     limiter,
		WorkerCount: 1,
		QueueSize:   5,
		Logger:      quietLogger(),
	}, "outcomes", metrics.Config{Enabled: true, Registry: registry})
	testutil.AssertNoError(t, err)
	t.Cleanup(func() { <-pool.Shutdown() })

	var executed int32
	testutil.AssertNoError(t, pool.Submit(&testTask{Executed: &executed}))
	testutil.AssertNoError(t, pool.Submit(&testTask{ShouldErr: true, Executed: &executed}))
	for i := 0; i < 2; i++ {
		collectResult(t, pool)
	}

	mp := pool.(*MetricsPool)
	testutil.AssertEqual(t, promtestutil.ToFloat64(mp.registry.TasksSubmitted.WithLabelValues("outcomes")), 2.0)
	testutil.AssertEqual(t, promtestutil.ToFloat64(mp.registry.TasksCompleted.WithLabelValues("outcomes")), 1.0)
	testutil.AssertEqual(t, promtestutil.ToFloat64(mp.registry.TasksFailed.WithLabelValues("outcomes")), 1.0)
	testutil.AssertEqual(t, promtestutil.ToFloat64(mp.registry.WorkerPoolSize.WithLabelValues("outcomes")), 1.0)
}

func TestMetricsPoolRejectedSubmitNotCounted(t *testing.T) {
	registry := prometheus.NewRegistry()
	pool, err := NewWithConfigAndMetrics(Config{
		WorkerCount: 1,
		Logger:      quietLogger(),
	}, "rejected", metrics.Config{Enabled: true, Registry: registry})
	testutil.AssertNoError(t, err)
	t.Cleanup(func() { <-pool.Shutdown() })

	testutil.AssertError(t, pool.SubmitCost(&testTask{Executed: new(int32)}, 0))

	mp := pool.(*MetricsPool)
	testutil.AssertEqual(t, promtestutil.ToFloat64(mp.registry.TasksSubmitted.WithLabelValues("rejected")), 0.0)
}

func TestMetricsHookChainsCallerHook(t *testing.T) {
	registry := prometheus.NewRegistry()

	var hookCalls int32
	pool, err := NewWithConfigAndMetrics(Config{
		WorkerCount: 1,
		QueueSize:   2,
		Logger:      quietLogger(),
		OnTaskComplete: func(workerID int, result Result) {
			atomic.AddInt32(&hookCalls, 1)
		},
	}, "chained", metrics.Config{Enabled: true, Registry: registry})
	testutil.AssertNoError(t, err)
	t.Cleanup(func() { <-pool.Shutdown() })

	var executed int32
	testutil.AssertNoError(t, pool.Submit(&testTask{Executed: &executed}))
	collectResult(t, pool)

	testutil.WaitForInt32(t, &hookCalls, 1, time.Second)
	mp := pool.(*MetricsPool)
	testutil.AssertEqual(t, promtestutil.ToFloat64(mp.registry.TasksCompleted.WithLabelValues("chained")), 1.0)
}

func TestEnableDisableMetricsPool(t *testing.T) {
	registry := prometheus.NewRegistry()
	pool, err := NewWithConfigAndMetrics(Config{
		WorkerCount: 1,
		QueueSize:   2,
		Logger:      quietLogger(),
	}, "toggle", metrics.Config{Enabled: true, Registry: registry})
	testutil.AssertNoError(t, err)
	t.Cleanup(func() { <-pool.Shutdown() })

	mp := pool.(*MetricsPool)
	testutil.AssertEqual(t, mp.MetricsEnabled(), true)

	mp.DisableMetrics()
	testutil.AssertEqual(t, mp.MetricsEnabled(), false)

	// Counters stay flat while disabled.
	var executed int32
	testutil.AssertNoError(t, pool.Submit(&testTask{Executed: &executed}))
	collectResult(t, pool)
	testutil.AssertEqual(t, promtestutil.ToFloat64(mp.registry.TasksSubmitted.WithLabelValues("toggle")), 0.0)

	testutil.AssertNoError(t, mp.EnableMetrics(metrics.Config{Enabled: true}))
	testutil.AssertEqual(t, mp.MetricsEnabled(), true)
}

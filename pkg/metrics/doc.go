// Package metrics provides Prometheus instrumentation for gopermit components.
//
// This package enables monitoring and observability for gopermit's adaptive
// rate limiting and permit-gated work queue through Prometheus metrics.
//
// # Overview
//
// The metrics package provides automatic instrumentation for:
//   - Permit admission (requests, grants, clamps, denials, wait times)
//   - Token refill (ticks, tokens credited, tokens discarded at the ceiling)
//   - Work queues (submitted, completed, failed tasks, queue depth, workers)
//
// # Quick Start
//
// Enable metrics by using the metrics-enabled constructors:
//
//	// Adaptive limiter with metrics
//	limiter, err := permit.NewWithMetrics(8.0, 100, "api_permits")
//
//	// Work queue with metrics
//	queue, err := workqueue.NewWithMetrics(limiter, 5, "ingest_pool")
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.Handler())
//	log.Fatal(http.ListenAndServe(":8080", nil))
//
// # Custom Registry
//
// Use a custom Prometheus registry for isolation:
//
//	registry := prometheus.NewRegistry()
//	config := metrics.Config{
//		Enabled:  true,
//		Registry: registry,
//	}
//
//	limiter, err := permit.NewWithConfigAndMetrics(
//		permit.Config{Policy: permit.DefaultPolicy()},
//		"custom_limiter",
//		config,
//	)
//
// Give each metrics-enabled component its own custom Registerer, or let
// them all share the package default by leaving Registry nil. Two
// components on one custom Registerer would register the same collector
// names twice.
//
// # Available Metrics
//
// ## Admission Metrics
//
//   - gopermit_admission_requests_total: Total number of permit requests
//   - gopermit_admission_granted_total: Total number of granted permit requests
//   - gopermit_admission_clamped_total: Total number of requests reduced by burst protection
//   - gopermit_admission_denied_total: Total number of denied permit requests
//   - gopermit_admission_wait_duration_seconds: Time spent waiting for permits
//   - gopermit_admission_tokens_available: Number of tokens currently available
//   - gopermit_admission_protection_active: Whether burst protection is engaged (0 or 1)
//
// ## Refill Metrics
//
//   - gopermit_refill_ticks_total: Total number of refill ticks
//   - gopermit_refill_tokens_credited_total: Total tokens credited by the refill loop
//   - gopermit_refill_tokens_discarded_total: Total tokens discarded at the burst ceiling
//
// ## Work Queue Metrics
//
//   - gopermit_workqueue_tasks_submitted_total: Total number of tasks submitted
//   - gopermit_workqueue_tasks_completed_total: Total number of tasks completed successfully
//   - gopermit_workqueue_tasks_failed_total: Total number of tasks that failed
//   - gopermit_workqueue_task_duration_seconds: Time spent executing tasks
//   - gopermit_workqueue_size: Current worker pool size
//   - gopermit_workqueue_active_workers: Number of active workers
//   - gopermit_workqueue_queued_tasks: Number of queued tasks
//
// # Labels
//
// Metrics include relevant labels for filtering and aggregation:
//
//   - limiter_name: User-provided name for the limiter instance
//   - pool_name: User-provided name for the work queue instance
//   - reason: Denial reason ("invalid", "deadline", "canceled", "closed")
//
// # Runtime Control
//
// Components implementing the Instrumentable interface support runtime control:
//
//	limiter, _ := permit.NewWithMetrics(8.0, 100, "api")
//	ml := limiter.(metrics.Instrumentable)
//	ml.DisableMetrics()            // Stop collecting metrics
//	ml.EnableMetrics(config)       // Re-enable with new config
//	enabled := ml.MetricsEnabled() // Check current state
//
// # Performance
//
// Metrics collection is designed for minimal overhead:
//   - Metrics are updated only when operations occur
//   - No background goroutines or timers beyond the limiter's own refill loop
//   - Conditional metrics updates based on enabled state
package metrics

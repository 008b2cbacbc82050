// Package metrics provides Prometheus instrumentation for gopermit components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for gopermit components.
type Registry struct {
	// Admission Metrics
	AdmissionRequests *prometheus.CounterVec
	AdmissionGranted  *prometheus.CounterVec
	AdmissionClamped  *prometheus.CounterVec
	AdmissionDenied   *prometheus.CounterVec
	AdmissionWaitTime *prometheus.HistogramVec
	TokensAvailable   *prometheus.GaugeVec
	ProtectionActive  *prometheus.GaugeVec

	// Refill Metrics
	RefillTicks     *prometheus.CounterVec
	TokensCredited  *prometheus.CounterVec
	TokensDiscarded *prometheus.CounterVec

	// Work Queue Metrics
	TasksSubmitted   *prometheus.CounterVec
	TasksCompleted   *prometheus.CounterVec
	TasksFailed      *prometheus.CounterVec
	TaskDuration     *prometheus.HistogramVec
	WorkerPoolSize   *prometheus.GaugeVec
	WorkerPoolActive *prometheus.GaugeVec
	WorkerPoolQueued *prometheus.GaugeVec
}

// DefaultRegistry is the default metrics registry used by gopermit components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus
// registerer and the default "gopermit" namespace.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return newRegistry(reg, "gopermit", nil)
}

// NewRegistryWithConfig creates a new metrics registry honoring the
// config's Registry, Namespace, and Labels overrides.
func NewRegistryWithConfig(config Config) *Registry {
	reg := config.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	namespace := config.Namespace
	if namespace == "" {
		namespace = "gopermit"
	}
	return newRegistry(reg, namespace, config.Labels)
}

// ForConfig resolves the registry a component should record into: the
// shared default when the config carries no overrides, otherwise a fresh
// collector set built per the config. A custom Registerer must not be
// shared by two components; each registration of the collector set on
// the same Registerer conflicts.
func ForConfig(config Config) *Registry {
	reg := config.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	namespace := config.Namespace
	if namespace == "" {
		namespace = "gopermit"
	}
	// The default registerer already holds DefaultRegistry's collectors,
	// so resolving an equivalent config to anything else would register
	// them twice.
	if reg == prometheus.DefaultRegisterer && namespace == "gopermit" && config.Labels == nil {
		return DefaultRegistry
	}
	return NewRegistryWithConfig(config)
}

func newRegistry(reg prometheus.Registerer, namespace string, labels prometheus.Labels) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		// Admission Metrics
		AdmissionRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "admission",
				Name:        "requests_total",
				Help:        "Total number of permit requests",
				ConstLabels: labels,
			},
			[]string{"limiter_name"},
		),

		AdmissionGranted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "admission",
				Name:        "granted_total",
				Help:        "Total number of granted permit requests",
				ConstLabels: labels,
			},
			[]string{"limiter_name"},
		),

		AdmissionClamped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "admission",
				Name:        "clamped_total",
				Help:        "Total number of requests reduced by burst protection",
				ConstLabels: labels,
			},
			[]string{"limiter_name"},
		),

		AdmissionDenied: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "admission",
				Name:        "denied_total",
				Help:        "Total number of denied permit requests",
				ConstLabels: labels,
			},
			[]string{"limiter_name", "reason"},
		),

		AdmissionWaitTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Subsystem:   "admission",
				Name:        "wait_duration_seconds",
				Help:        "Time spent waiting for permits",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: labels,
			},
			[]string{"limiter_name"},
		),

		TokensAvailable: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "admission",
				Name:        "tokens_available",
				Help:        "Number of tokens currently available",
				ConstLabels: labels,
			},
			[]string{"limiter_name"},
		),

		ProtectionActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "admission",
				Name:        "protection_active",
				Help:        "Whether burst protection is engaged (0 or 1)",
				ConstLabels: labels,
			},
			[]string{"limiter_name"},
		),

		// Refill Metrics
		RefillTicks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "refill",
				Name:        "ticks_total",
				Help:        "Total number of refill ticks",
				ConstLabels: labels,
			},
			[]string{"limiter_name"},
		),

		TokensCredited: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "refill",
				Name:        "tokens_credited_total",
				Help:        "Total tokens credited by the refill loop",
				ConstLabels: labels,
			},
			[]string{"limiter_name"},
		),

		TokensDiscarded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "refill",
				Name:        "tokens_discarded_total",
				Help:        "Total tokens discarded at the burst ceiling",
				ConstLabels: labels,
			},
			[]string{"limiter_name"},
		),

		// Work Queue Metrics
		TasksSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "workqueue",
				Name:        "tasks_submitted_total",
				Help:        "Total number of tasks submitted",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		TasksCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "workqueue",
				Name:        "tasks_completed_total",
				Help:        "Total number of tasks completed successfully",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		TasksFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "workqueue",
				Name:        "tasks_failed_total",
				Help:        "Total number of tasks that failed",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		TaskDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Subsystem:   "workqueue",
				Name:        "task_duration_seconds",
				Help:        "Time spent executing tasks",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		WorkerPoolSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "workqueue",
				Name:        "size",
				Help:        "Current worker pool size",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		WorkerPoolActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "workqueue",
				Name:        "active_workers",
				Help:        "Number of active workers",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		WorkerPoolQueued: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "workqueue",
				Name:        "queued_tasks",
				Help:        "Number of queued tasks",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),
	}
}

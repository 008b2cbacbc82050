package permit

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	gperrors "github.com/vnykmshr/gopermit/pkg/common/errors"
	"github.com/vnykmshr/gopermit/pkg/metrics"
)

// MetricsLimiter wraps a Limiter with Prometheus metrics collection.
type MetricsLimiter struct {
	limiter  Limiter
	name     string
	registry *metrics.Registry
	enabled  bool
}

// NewWithMetrics creates an adaptive limiter with metrics enabled.
func NewWithMetrics(fillRate float64, capacity int, name string) (Limiter, error) {
	// Use a separate registry for each metrics-enabled component to avoid conflicts
	registry := prometheus.NewRegistry()
	config := metrics.Config{
		Enabled:  true,
		Registry: registry,
	}

	p := DefaultPolicy()
	p.FillRate = fillRate
	p.NormalCapacity = capacity
	p.BurstCapacity = capacity * 6 / 5
	p.LowThreshold = capacity * 3 / 10
	p.ProtectionThreshold = capacity * 3 / 4

	return NewWithConfigAndMetrics(Config{
		Policy:        p,
		Clock:         SystemClock{},
		InitialTokens: -1,
	}, name, config)
}

// NewWithConfigAndMetrics creates an adaptive limiter with custom config
// and metrics. The refill and protection hooks are chained, not replaced,
// so caller-provided hooks still fire.
func NewWithConfigAndMetrics(config Config, name string, metricsConfig metrics.Config) (Limiter, error) {
	if !metricsConfig.Enabled {
		return NewWithConfigSafe(config)
	}

	ml := &MetricsLimiter{
		name:     name,
		registry: metrics.ForConfig(metricsConfig),
		enabled:  true,
	}

	// The refill process is internal to the base limiter, so its metrics
	// flow through the Config hooks rather than method interception.
	prevRefill := config.OnRefill
	config.OnRefill = func(credited, discarded int) {
		if ml.enabled {
			ml.registry.RefillTicks.WithLabelValues(ml.name).Inc()
			if credited > 0 {
				ml.registry.TokensCredited.WithLabelValues(ml.name).Add(float64(credited))
			}
			if discarded > 0 {
				ml.registry.TokensDiscarded.WithLabelValues(ml.name).Add(float64(discarded))
			}
		}
		if prevRefill != nil {
			prevRefill(credited, discarded)
		}
	}

	prevProtection := config.OnProtectionChange
	config.OnProtectionChange = func(engaged bool) {
		if ml.enabled {
			value := 0.0
			if engaged {
				value = 1.0
			}
			ml.registry.ProtectionActive.WithLabelValues(ml.name).Set(value)
		}
		if prevProtection != nil {
			prevProtection(engaged)
		}
	}

	base, err := NewWithConfigSafe(config)
	if err != nil {
		return nil, err
	}
	ml.limiter = base
	return ml, nil
}

// Acquire blocks until one token can be consumed.
func (ml *MetricsLimiter) Acquire(ctx context.Context) (int, error) {
	return ml.AcquireN(ctx, 1)
}

// AcquireN blocks until n tokens can be consumed.
func (ml *MetricsLimiter) AcquireN(ctx context.Context, n int) (int, error) {
	start := time.Now()

	if ml.enabled {
		ml.registry.AdmissionRequests.WithLabelValues(ml.name).Add(float64(n))
	}

	granted, err := ml.limiter.AcquireN(ctx, n)

	if ml.enabled {
		ml.registry.AdmissionWaitTime.WithLabelValues(ml.name).Observe(time.Since(start).Seconds())

		if err == nil {
			ml.registry.AdmissionGranted.WithLabelValues(ml.name).Add(float64(granted))
			if granted < n {
				ml.registry.AdmissionClamped.WithLabelValues(ml.name).Add(float64(n - granted))
			}
		} else {
			ml.registry.AdmissionDenied.WithLabelValues(ml.name, denialReason(err)).Add(float64(n))
		}

		// Update current token count
		ml.registry.TokensAvailable.WithLabelValues(ml.name).Set(ml.limiter.Tokens())
	}

	return granted, err
}

// TryAcquireN consumes up to n tokens without blocking.
func (ml *MetricsLimiter) TryAcquireN(n int) int {
	if ml.enabled && n > 0 {
		ml.registry.AdmissionRequests.WithLabelValues(ml.name).Add(float64(n))
	}

	granted := ml.limiter.TryAcquireN(n)

	if ml.enabled && n > 0 {
		if granted > 0 {
			ml.registry.AdmissionGranted.WithLabelValues(ml.name).Add(float64(granted))
			if granted < n {
				ml.registry.AdmissionClamped.WithLabelValues(ml.name).Add(float64(n - granted))
			}
		} else {
			ml.registry.AdmissionDenied.WithLabelValues(ml.name, "unavailable").Add(float64(n))
		}

		// Update current token count
		ml.registry.TokensAvailable.WithLabelValues(ml.name).Set(ml.limiter.Tokens())
	}

	return granted
}

// Tokens returns the number of tokens currently available.
func (ml *MetricsLimiter) Tokens() float64 {
	tokens := ml.limiter.Tokens()

	if ml.enabled {
		ml.registry.TokensAvailable.WithLabelValues(ml.name).Set(tokens)
	}

	return tokens
}

// Capacity returns the normal capacity.
func (ml *MetricsLimiter) Capacity() int {
	return ml.limiter.Capacity()
}

// BurstCapacity returns the hard token ceiling.
func (ml *MetricsLimiter) BurstCapacity() int {
	return ml.limiter.BurstCapacity()
}

// FillRate returns the current fill rate in tokens per second.
func (ml *MetricsLimiter) FillRate() float64 {
	return ml.limiter.FillRate()
}

// Protected reports whether burst protection is currently engaged.
func (ml *MetricsLimiter) Protected() bool {
	return ml.limiter.Protected()
}

// Policy returns the current policy.
func (ml *MetricsLimiter) Policy() Policy {
	return ml.limiter.Policy()
}

// SetPolicy atomically replaces the policy.
func (ml *MetricsLimiter) SetPolicy(p Policy) error {
	return ml.limiter.SetPolicy(p)
}

// Close stops the refill process and wakes every blocked acquire.
func (ml *MetricsLimiter) Close() error {
	return ml.limiter.Close()
}

// EnableMetrics enables metrics collection. Collectors are rebuilt only
// when the config carries a custom Registry; namespace and label
// overrides take effect at construction.
func (ml *MetricsLimiter) EnableMetrics(config metrics.Config) error {
	ml.enabled = config.Enabled

	if config.Registry != nil {
		ml.registry = metrics.ForConfig(config)
	}

	return nil
}

// DisableMetrics disables metrics collection.
func (ml *MetricsLimiter) DisableMetrics() {
	ml.enabled = false
}

// MetricsEnabled returns true if metrics are currently enabled.
func (ml *MetricsLimiter) MetricsEnabled() bool {
	return ml.enabled
}

// denialReason maps an acquire error to its metrics label.
func denialReason(err error) string {
	switch {
	case errors.Is(err, gperrors.ErrInvalidRequest):
		return "invalid"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, gperrors.ErrClosed):
		return "closed"
	default:
		return "other"
	}
}

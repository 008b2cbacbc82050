package permit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vnykmshr/gopermit/pkg/common/errors"
	"github.com/vnykmshr/gopermit/pkg/common/validation"
)

// Policy holds the tunable admission-control knobs of a limiter. The
// zero value is not usable; start from DefaultPolicy and adjust.
type Policy struct {
	// FillRate is the number of tokens credited per second.
	FillRate float64

	// NormalCapacity is the steady-state token ceiling and the default
	// initial fill level.
	NormalCapacity int

	// BurstCapacity is the hard ceiling. Tokens may exceed NormalCapacity
	// up to this value only through accumulated unused credit.
	BurstCapacity int

	// LowThreshold is the level below which the refill loop tightens its
	// period and grants emit a low-bucket signal.
	LowThreshold int

	// ProtectionThreshold is the level below which burst protection
	// engages. It clears only once tokens rise strictly above it.
	ProtectionThreshold int

	// MaxProtectedRequest caps how many tokens a single call may consume
	// while burst protection is active.
	MaxProtectedRequest int

	// RefillInterval is the refill period in the normal regime.
	RefillInterval time.Duration

	// StressedRefillInterval is the refill period while tokens are below
	// LowThreshold.
	StressedRefillInterval time.Duration
}

// DefaultPolicy returns the classic adaptive bucket shape: 8 tokens per
// second into a bucket of 100 with a burst ceiling of 120, protection
// engaging below 75 and clamping requests to 2.
func DefaultPolicy() Policy {
	return Policy{
		FillRate:               8.0,
		NormalCapacity:         100,
		BurstCapacity:          120,
		LowThreshold:           30,
		ProtectionThreshold:    75,
		MaxProtectedRequest:    2,
		RefillInterval:         500 * time.Millisecond,
		StressedRefillInterval: 200 * time.Millisecond,
	}
}

// Validate checks the policy for internal consistency.
func (p Policy) Validate() error {
	if err := validation.ValidatePositiveFloat("permit", "fill_rate", p.FillRate); err != nil {
		return err
	}
	if err := validation.ValidatePositive("permit", "normal_capacity", p.NormalCapacity); err != nil {
		return err
	}
	if err := validation.ValidatePositive("permit", "burst_capacity", p.BurstCapacity); err != nil {
		return err
	}
	if p.BurstCapacity < p.NormalCapacity {
		return errors.NewValidationError("permit", "burst_capacity", p.BurstCapacity, "cannot be below normal capacity").
			WithHint("burst capacity is the hard ceiling; set it >= normal_capacity")
	}
	if err := validation.ValidateNonNegative("permit", "low_threshold", float64(p.LowThreshold)); err != nil {
		return err
	}
	if p.LowThreshold > p.NormalCapacity {
		return errors.NewValidationError("permit", "low_threshold", p.LowThreshold, "cannot exceed normal capacity").
			WithHint("the low watermark is a fraction of normal_capacity")
	}
	if err := validation.ValidateNonNegative("permit", "protection_threshold", float64(p.ProtectionThreshold)); err != nil {
		return err
	}
	if p.ProtectionThreshold > p.NormalCapacity {
		return errors.NewValidationError("permit", "protection_threshold", p.ProtectionThreshold, "cannot exceed normal capacity").
			WithHint("protection must be able to clear without burst credit")
	}
	if err := validation.ValidatePositive("permit", "max_protected_request", p.MaxProtectedRequest); err != nil {
		return err
	}
	if err := validation.ValidatePositiveDuration("permit", "refill_interval", p.RefillInterval); err != nil {
		return err
	}
	if err := validation.ValidatePositiveDuration("permit", "stressed_refill_interval", p.StressedRefillInterval); err != nil {
		return err
	}
	if p.StressedRefillInterval > p.RefillInterval {
		return errors.NewValidationError("permit", "stressed_refill_interval", p.StressedRefillInterval, "cannot exceed refill_interval").
			WithHint("the stressed period exists to replenish faster, not slower")
	}
	return nil
}

// Limiter is an adaptive token bucket. A background refill process
// credits tokens over time while any number of concurrent callers
// acquire them before performing rate-limited work. Once tokens fall
// below the protection threshold, per-call consumption is clamped until
// the bucket recovers.
type Limiter interface {
	// Acquire blocks until one token can be consumed. It returns the
	// number of tokens actually consumed and an error if the context is
	// done or the limiter is closed.
	Acquire(ctx context.Context) (int, error)

	// AcquireN blocks until n tokens can be consumed. While burst
	// protection is active the request is clamped to the policy's
	// MaxProtectedRequest; callers detect clamping by comparing the
	// returned count with n. AcquireN returns ErrInvalidRequest for
	// n <= 0 or n greater than the burst capacity, the context's error
	// if it expires while waiting, and ErrClosed after Close.
	AcquireN(ctx context.Context, n int) (int, error)

	// TryAcquireN consumes up to n tokens without blocking. It returns
	// the number consumed, or 0 if the request cannot be satisfied
	// immediately, is invalid, or the limiter is closed.
	TryAcquireN(n int) int

	// Tokens returns the number of tokens currently available.
	Tokens() float64

	// Capacity returns the normal (steady-state) capacity.
	Capacity() int

	// BurstCapacity returns the hard token ceiling.
	BurstCapacity() int

	// FillRate returns the current fill rate in tokens per second.
	FillRate() float64

	// Protected reports whether burst protection is currently engaged.
	Protected() bool

	// Policy returns the current policy.
	Policy() Policy

	// SetPolicy atomically replaces the policy. Pending credit is folded
	// in at the old rate first, and blocked acquires re-evaluate their
	// requests under the new policy.
	SetPolicy(p Policy) error

	// Close stops the refill process and wakes every blocked acquire
	// with ErrClosed. It returns the terminal refill failure, if any.
	// Close is idempotent.
	Close() error
}

// Clock provides the current time. It can be mocked for testing.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the system time.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Config holds configuration options for creating a new Limiter.
type Config struct {
	// Policy is the admission-control policy. Required.
	Policy Policy

	// Clock provides the current time. If nil, SystemClock is used.
	Clock Clock

	// Logger receives limiter log records. If nil, slog.Default() is used.
	Logger *slog.Logger

	// InitialTokens is the number of tokens to start with.
	// If negative, starts at NormalCapacity.
	InitialTokens int

	// OnLowTokens, if set, is invoked after any grant that leaves the
	// bucket below LowThreshold. Called outside the limiter's lock.
	OnLowTokens func(tokens float64)

	// OnProtectionChange, if set, is invoked whenever burst protection
	// engages or releases. Called outside the limiter's lock.
	OnProtectionChange func(engaged bool)

	// OnRefill, if set, is invoked after every refill tick with the
	// whole tokens credited and the tokens discarded at the ceiling.
	// Called outside the limiter's lock.
	OnRefill func(credited, discarded int)
}

// NewSafe creates a limiter with the given fill rate and normal capacity,
// scaling the default burst ceiling and thresholds proportionally. It
// returns an error instead of panicking on invalid input, which is the
// recommended way to create limiters for production use.
func NewSafe(fillRate float64, capacity int) (Limiter, error) {
	p := DefaultPolicy()
	p.FillRate = fillRate
	p.NormalCapacity = capacity
	p.BurstCapacity = capacity * 6 / 5
	p.LowThreshold = capacity * 3 / 10
	p.ProtectionThreshold = capacity * 3 / 4
	return NewWithConfigSafe(Config{
		Policy:        p,
		Clock:         SystemClock{},
		InitialTokens: -1, // Start at normal capacity
	})
}

// NewWithConfigSafe creates a limiter from a full Config, validating the
// policy and starting the background refill process. The limiter owns
// one goroutine until Close is called.
func NewWithConfigSafe(config Config) (Limiter, error) {
	if err := config.Policy.Validate(); err != nil {
		return nil, err
	}
	if config.Clock == nil {
		config.Clock = SystemClock{}
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.InitialTokens > config.Policy.BurstCapacity {
		return nil, errors.NewValidationError("permit", "initial_tokens", config.InitialTokens, "cannot exceed burst capacity").
			WithHint("use -1 to start at normal capacity")
	}

	initial := float64(config.Policy.NormalCapacity)
	if config.InitialTokens >= 0 {
		initial = float64(config.InitialTokens)
	}

	b := &adaptiveBucket{
		policy:             config.Policy,
		tokens:             initial,
		lastFill:           config.Clock.Now(),
		clock:              config.Clock,
		logger:             config.Logger.With("component", "permit"),
		onLowTokens:        config.OnLowTokens,
		onProtectionChange: config.OnProtectionChange,
		onRefill:           config.OnRefill,
		stopCh:             make(chan struct{}),
		doneCh:             make(chan struct{}),
	}
	b.available = sync.NewCond(&b.mu)

	// Initial state evaluation; no transition hooks fire at birth.
	b.protected = initial < float64(config.Policy.ProtectionThreshold)
	b.low = initial < float64(config.Policy.LowThreshold)

	interval := config.Policy.RefillInterval
	if b.low {
		interval = config.Policy.StressedRefillInterval
	}
	go b.refillLoop(interval)

	return b, nil
}

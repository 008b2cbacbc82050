package permit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vnykmshr/gopermit/pkg/common/errors"
)

// adaptiveBucket implements the Limiter interface. All mutable state is
// guarded by mu; every decision and every mutation happens inside one
// critical section per operation, never partially.
type adaptiveBucket struct {
	mu        sync.Mutex
	available *sync.Cond // signaled whenever tokens are credited; consumers wait here

	policy    Policy
	tokens    float64 // whole-valued in practice; 0 <= tokens <= BurstCapacity
	carry     float64 // fractional credit remainder, always in [0,1)
	lastFill  time.Time
	protected bool // burst protection flag, hysteresis at ProtectionThreshold
	low       bool // below LowThreshold; gates the low-bucket warning

	closed    bool
	closeErr  error // terminal refill failure, returned by Close
	closeOnce sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}

	clock  Clock
	logger *slog.Logger

	onLowTokens        func(tokens float64)
	onProtectionChange func(engaged bool)
	onRefill           func(credited, discarded int)
}

// Acquire blocks until one token can be consumed.
func (b *adaptiveBucket) Acquire(ctx context.Context) (int, error) {
	return b.AcquireN(ctx, 1)
}

// AcquireN blocks until n tokens can be consumed, subject to the burst
// protection clamp. It returns the number of tokens actually consumed.
func (b *adaptiveBucket) AcquireN(ctx context.Context, n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("%w: n must be positive, got %d", errors.ErrInvalidRequest, n)
	}

	// Wake all waiters when the caller gives up so this one can observe
	// ctx.Err under the lock. The cond has no channel to select on.
	stop := context.AfterFunc(ctx, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.available.Broadcast()
	})
	defer stop()

	var pending []func()
	b.mu.Lock()
	finish := func(granted int, err error) (int, error) {
		b.mu.Unlock()
		for _, fn := range pending {
			fn()
		}
		return granted, err
	}

	for {
		// Re-derived on every wake: demand, policy, and flag state may
		// have changed while waiting. No stale decisions.
		if b.closed {
			return finish(0, errors.ErrClosed)
		}
		if n > b.policy.BurstCapacity {
			return finish(0, fmt.Errorf("%w: n exceeds burst capacity (%d > %d)",
				errors.ErrInvalidRequest, n, b.policy.BurstCapacity))
		}
		if err := ctx.Err(); err != nil {
			return finish(0, err)
		}

		b.evaluateProtectionLocked(&pending)
		need := n
		if b.protected && need > b.policy.MaxProtectedRequest {
			need = b.policy.MaxProtectedRequest
		}

		if b.tokens >= float64(need) {
			b.consumeLocked(need, &pending)
			return finish(need, nil)
		}

		b.logger.Debug("waiting for tokens", "requested", need, "available", b.tokens)
		b.available.Wait()
	}
}

// TryAcquireN consumes up to n tokens without blocking. It returns the
// number consumed, or 0 if the request cannot be satisfied immediately.
func (b *adaptiveBucket) TryAcquireN(n int) int {
	if n <= 0 {
		return 0
	}

	var pending []func()
	b.mu.Lock()
	if b.closed || n > b.policy.BurstCapacity {
		b.mu.Unlock()
		return 0
	}

	b.evaluateProtectionLocked(&pending)
	need := n
	if b.protected && need > b.policy.MaxProtectedRequest {
		need = b.policy.MaxProtectedRequest
	}

	granted := 0
	if b.tokens >= float64(need) {
		b.consumeLocked(need, &pending)
		granted = need
	}
	b.mu.Unlock()

	for _, fn := range pending {
		fn()
	}
	return granted
}

// Tokens returns the number of tokens currently available.
func (b *adaptiveBucket) Tokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokens
}

// Capacity returns the normal capacity.
func (b *adaptiveBucket) Capacity() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.policy.NormalCapacity
}

// BurstCapacity returns the hard token ceiling.
func (b *adaptiveBucket) BurstCapacity() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.policy.BurstCapacity
}

// FillRate returns the current fill rate in tokens per second.
func (b *adaptiveBucket) FillRate() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.policy.FillRate
}

// Protected reports whether burst protection is currently engaged.
func (b *adaptiveBucket) Protected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.protected
}

// Policy returns the current policy.
func (b *adaptiveBucket) Policy() Policy {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.policy
}

// SetPolicy atomically replaces the policy. Elapsed credit is folded in
// at the old rate first so the switch never replays or loses time, then
// tokens are clamped to the new ceiling and all waiters re-evaluate.
func (b *adaptiveBucket) SetPolicy(p Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}

	var pending []func()
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return errors.ErrClosed
	}

	if _, _, err := b.creditLocked(b.clock.Now()); err != nil {
		b.mu.Unlock()
		return err
	}

	b.policy = p
	if b.tokens > float64(p.BurstCapacity) {
		b.tokens = float64(p.BurstCapacity)
	}
	b.evaluateProtectionLocked(&pending)
	if b.tokens >= float64(p.LowThreshold) {
		b.low = false
	}

	// Blocked acquires re-derive validity and clamp under the new policy.
	b.available.Broadcast()
	b.logger.Info("policy updated",
		"fill_rate", p.FillRate,
		"normal_capacity", p.NormalCapacity,
		"burst_capacity", p.BurstCapacity,
		"tokens", b.tokens)
	b.mu.Unlock()

	for _, fn := range pending {
		fn()
	}
	return nil
}

// Close stops the refill process, waits for it to exit, and wakes every
// blocked acquire with ErrClosed. It returns the terminal refill
// failure, if any. Close is idempotent.
func (b *adaptiveBucket) Close() error {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		if !b.closed {
			b.closed = true
			b.available.Broadcast()
		}
		b.mu.Unlock()

		close(b.stopCh)
		<-b.doneCh
		b.logger.Debug("limiter closed")
	})

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeErr
}

// consumeLocked subtracts n tokens, re-evaluates protection, and emits
// the low-bucket signal when the grant leaves the bucket below
// LowThreshold. Caller holds the lock and runs the collected callbacks
// after releasing it.
func (b *adaptiveBucket) consumeLocked(n int, pending *[]func()) {
	b.tokens -= float64(n)
	b.evaluateProtectionLocked(pending)

	if b.tokens < float64(b.policy.LowThreshold) {
		if !b.low {
			b.low = true
			b.logger.Warn("bucket critically low",
				"tokens", b.tokens,
				"threshold", b.policy.LowThreshold)
		}
		if hook := b.onLowTokens; hook != nil {
			tokens := b.tokens
			*pending = append(*pending, func() { hook(tokens) })
		}
	}
}

// evaluateProtectionLocked applies the hysteresis rule: protection
// engages when tokens drop below ProtectionThreshold and releases only
// once tokens rise strictly above it. Equality holds the current state.
// Caller holds the lock.
func (b *adaptiveBucket) evaluateProtectionLocked(pending *[]func()) {
	threshold := float64(b.policy.ProtectionThreshold)
	switch {
	case !b.protected && b.tokens < threshold:
		b.protected = true
		b.logger.Warn("burst protection engaged",
			"tokens", b.tokens,
			"threshold", b.policy.ProtectionThreshold,
			"max_request", b.policy.MaxProtectedRequest)
		if hook := b.onProtectionChange; hook != nil {
			*pending = append(*pending, func() { hook(true) })
		}
	case b.protected && b.tokens > threshold:
		b.protected = false
		b.logger.Info("burst protection released",
			"tokens", b.tokens,
			"threshold", b.policy.ProtectionThreshold)
		if hook := b.onProtectionChange; hook != nil {
			*pending = append(*pending, func() { hook(false) })
		}
	}
}

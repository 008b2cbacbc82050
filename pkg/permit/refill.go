package permit

import (
	"fmt"
	"math"
	"time"

	"github.com/vnykmshr/gopermit/pkg/common/errors"
)

// refillLoop periodically credits tokens until the limiter is closed.
// The period adapts: tighter while the bucket is below LowThreshold,
// relaxed otherwise, trading CPU overhead against replenishment latency.
func (b *adaptiveBucket) refillLoop(initial time.Duration) {
	defer close(b.doneCh)

	timer := time.NewTimer(initial)
	defer timer.Stop()

	for {
		select {
		case <-b.stopCh:
			return
		case <-timer.C:
		}

		next, ok := b.refillTick()
		if !ok {
			return
		}
		timer.Reset(next)
	}
}

// refillTick performs one credit pass and returns the next period. The
// second return is false when the loop must stop, either because the
// limiter closed or because the clock faulted.
func (b *adaptiveBucket) refillTick() (time.Duration, bool) {
	var pending []func()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return 0, false
	}

	added, discarded, err := b.creditLocked(b.clock.Now())
	if err != nil {
		b.mu.Unlock()
		b.logger.Error("refill clock fault, closing limiter", "error", err)
		return 0, false
	}

	// Log whole-token credits only, and not while parked at the ceiling.
	if added > 0 && b.tokens < float64(b.policy.BurstCapacity) {
		b.logger.Debug("bucket refilled", "added", int(added), "tokens", b.tokens)
	}

	b.evaluateProtectionLocked(&pending)
	if b.tokens >= float64(b.policy.LowThreshold) {
		b.low = false
	}

	next := b.policy.RefillInterval
	if b.tokens < float64(b.policy.LowThreshold) {
		next = b.policy.StressedRefillInterval
	}

	if hook := b.onRefill; hook != nil {
		credited, dropped := int(added), int(discarded)
		pending = append(pending, func() { hook(credited, dropped) })
	}
	b.mu.Unlock()

	for _, fn := range pending {
		fn()
	}
	return next, true
}

// creditLocked folds the interval since lastFill into the bucket at the
// current fill rate: raw = elapsed*rate + carry, whole tokens are added
// up to the burst ceiling, and the sub-unit remainder is carried so
// repeated small credits never lose precision. lastFill always advances
// once the interval has been folded in; credited time is never replayed.
// Tokens beyond the ceiling are discarded, a deliberate ceiling rather
// than a reservoir.
//
// A backwards clock reading makes elapsed time meaningless, which is
// fatal: the fault is recorded for Close, the limiter closes, and all
// waiters wake. Caller holds the lock.
func (b *adaptiveBucket) creditLocked(now time.Time) (added, discarded float64, err error) {
	elapsed := now.Sub(b.lastFill).Seconds()
	if elapsed < 0 {
		b.closeErr = errors.NewOperationError("permit", "refill", errors.ErrClockDrift).
			WithContext(fmt.Sprintf("elapsed %.3fs", elapsed))
		b.closed = true
		b.available.Broadcast()
		return 0, 0, b.closeErr
	}

	raw := elapsed*b.policy.FillRate + b.carry
	whole := math.Floor(raw)
	b.carry = raw - whole
	b.lastFill = now

	if whole > 0 {
		added = math.Min(whole, float64(b.policy.BurstCapacity)-b.tokens)
		b.tokens += added
		discarded = whole - added
		if added > 0 {
			b.available.Broadcast()
		}
	}
	return added, discarded, nil
}

/*
Package permit provides an adaptive token-bucket limiter with burst
protection.

A shared bucket of permits is replenished over time by a background
refill process and drained by concurrent consumers that acquire permits
before performing rate-limited work. The bucket may climb above its
normal capacity up to a burst ceiling, but only through accumulated
unused credit; once tokens fall below a protection threshold, per-call
consumption is clamped until the bucket recovers.

Basic usage:

	limiter, err := permit.NewSafe(8.0, 100) // 8 tokens/sec, capacity 100
	if err != nil {
		log.Fatal(err)
	}
	defer limiter.Close()

	granted, err := limiter.AcquireN(ctx, 5)
	if err != nil {
		// invalid request, context done, or limiter closed
	}
	// granted may be less than 5 while burst protection is active

Refill behavior:

The refill process runs on its own schedule and never blocks on
consumers. Its period adapts to demand: 200ms while the bucket is below
the low watermark, 500ms otherwise (with the default policy). Credits
are computed from elapsed monotonic time with a fractional carry so
sub-unit amounts are never lost: crediting 0.8 tokens per tick still
sums exactly over time. Whole tokens beyond the burst ceiling are
discarded rather than banked.

Burst protection:

Once tokens drop below Policy.ProtectionThreshold, each call is limited
to Policy.MaxProtectedRequest tokens regardless of what it asked for.
The clamp is visible only through the returned count; compare it with
the requested amount to detect it. Protection releases only after
tokens rise strictly above the threshold again, so the flag cannot flap
at the boundary.

Waiting and fairness:

AcquireN blocks while the bucket cannot satisfy the (possibly clamped)
request. All waiters are woken on every credit and race to re-check; no
FIFO ordering is guaranteed. A blocked acquire is cancellable through
its context and consumes nothing when it gives up.

Tuning and lifecycle:

Policies can be replaced at runtime with SetPolicy, which folds pending
credit in at the old rate before switching. Close stops the refill
process and fails all pending and future acquires with ErrClosed.

Use NewWithMetrics or NewWithConfigAndMetrics for Prometheus
instrumentation of admission and refill activity.
*/
package permit

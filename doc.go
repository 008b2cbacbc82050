/*
Package gopermit provides an adaptive token-bucket admission controller
with burst protection, plus a permit-gated work queue and a live policy
configuration layer.

Admission Control (pkg/permit):
  - adaptive limiter: background refill that speeds up under pressure
  - burst headroom: tokens accumulate past normal capacity up to a ceiling
  - burst protection: large requests are clamped while the bucket runs low

Task Execution (pkg/workqueue):
  - worker pool whose workers acquire permits before each task
  - per-task cost, granted count, and wait time in every result

Policy Configuration (pkg/config):
  - YAML policy files with partial overrides
  - hot reload on file change
  - cron-scheduled policy windows

Example usage:

	import (
		"github.com/vnykmshr/gopermit/pkg/permit"
		"github.com/vnykmshr/gopermit/pkg/workqueue"
	)

	limiter, _ := permit.NewSafe(8.0, 100) // 8 tokens/s, capacity 100
	pool, _ := workqueue.New(limiter, 5, 100) // 5 workers, queue 100

	granted, err := limiter.AcquireN(ctx, 3)
	if err == nil {
		pool.Submit(task)
	}
*/
package gopermit

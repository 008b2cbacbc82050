// Package workqueue provides a worker pool whose workers acquire
// permits from an adaptive limiter before executing each task.
//
// Tasks carry a permit cost. A worker blocks on the limiter until the
// cost is granted, runs the task, and reports both the permit wait and
// the execution time in the task's Result. When burst protection is
// engaged the grant can be smaller than the cost; the task still runs
// and the Result records how many permits it actually got.
//
// Basic usage:
//
//	limiter, err := permit.NewSafe(8.0, 100)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer limiter.Close()
//
//	pool, err := workqueue.New(limiter, 4, 16)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	err = pool.SubmitCost(workqueue.TaskFunc(func(ctx context.Context) error {
//		return processBatch(ctx)
//	}), 3)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result := <-pool.Results()
//	fmt.Printf("granted %d of %d after %v\n", result.Granted, result.Cost, result.WaitTime)
//
//	<-pool.Shutdown()
//
// A nil limiter runs the pool ungated, which is useful in tests and for
// work that should not be throttled.
package workqueue

// Package worker provides a fixed-size goroutine pool over a blocking task queue.
//
// The Pool starts its workers at construction. Each worker loops
// Idle -> Running -> Idle, popping jobs from a shared queue.Queue, and
// moves to Terminated once the queue is closed and drained.
//
// # Basic Usage
//
//	pool, err := worker.NewPool(4)
//	if err != nil {
//	    log.Fatal(err) // errors.Is(err, worker.ErrConfiguration) for 0 workers
//	}
//	defer pool.Shutdown()
//
//	// Fire-and-forget
//	_ = pool.Submit(func() {
//	    // do work
//	})
//
//	// Result-bearing
//	f, err := worker.SubmitWithResult(pool, func() (int, error) {
//	    return 13 * 13, nil
//	})
//	v, err := f.Get()
//
// # Failures
//
// Every job runs inside a recover boundary. A panicking fire-and-forget job
// is logged and counted; the worker keeps running. A result task that
// returns an error or panics delivers a *TaskError through its future.
//
// # Graceful Shutdown
//
// Shutdown closes the queue and blocks until every worker has terminated.
// Every job accepted before Shutdown runs before its worker exits. A Submit
// that races with Shutdown is either accepted (and then executed) or
// rejected with ErrPoolStopped; which one depends on timing. Running jobs
// are never interrupted. Do not call Shutdown from inside a job: it waits
// for the calling worker and never returns.
package worker

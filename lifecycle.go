package dispatcher

import "sync"

// lifecycleCoordinator encapsulates the Dispatcher's kill_threads shutdown
// sequence: a wiring helper that doesn't own the queues or worker pool
// itself, but orchestrates enqueuing shutdown tokens, waiting for the
// worker fleet to drain them, and then closing the error-forwarding surface
// in a deterministic order — retargeted from the teacher's lifecycle.go
// (cancel → wait inflight → close gates → drain → close channels) onto
// action_dispatcher.py's kill_threads (enqueue ShutdownActions → await
// worker pool → close the error surface).
//
// Close is safe for concurrent calls; the sequence executes exactly once.
type lifecycleCoordinator struct {
	enqueueShutdown func()        // places one ShutdownAction per worker onto their queues
	waitWorkers     func()        // blocks until every worker goroutine has returned
	drainQueues     func()        // empties any remaining queue contents after workers exit
	closeErrors     func()        // stops the error forwarder and waits in-flight sends

	once sync.Once
}

func newLifecycleCoordinator(enqueueShutdown, waitWorkers, drainQueues, closeErrors func()) *lifecycleCoordinator {
	return &lifecycleCoordinator{
		enqueueShutdown: enqueueShutdown,
		waitWorkers:     waitWorkers,
		drainQueues:     drainQueues,
		closeErrors:     closeErrors,
	}
}

// Close executes kill_threads's shutdown sequence exactly once:
// 1) enqueue one ShutdownAction per worker (series queue gets one, the
//    immediate queue gets one per parallel worker, per spec.md §4.5)
// 2) await every worker goroutine returning
// 3) drain whatever is still sitting in the queues (shutdown bypasses
//    pending STD work, per spec.md §5)
// 4) close the error-forwarding surface
func (lc *lifecycleCoordinator) Close() {
	lc.once.Do(func() {
		if lc.enqueueShutdown != nil {
			lc.enqueueShutdown()
		}
		if lc.waitWorkers != nil {
			lc.waitWorkers()
		}
		if lc.drainQueues != nil {
			lc.drainQueues()
		}
		if lc.closeErrors != nil {
			lc.closeErrors()
		}
	})
}

// Package dispatcher implements an in-process action dispatcher: a fixed set
// of parallel worker threads plus one series (single-concurrency) worker
// thread, pulling from priority-ordered queues to execute Action trees.
//
// Constructor
//   - New(opts ...Option): options-based constructor, the only supported
//     form. There is no legacy Config-struct constructor to deprecate.
//
// Defaults
// Unless overridden via an Option, the following defaults apply:
//   - NumParallelWorkers: 10
//   - WorkerWaitTime: 500ms
//   - NotificationBuffer: 256
//   - ErrorsBufferSize: 64
//   - Metrics: a no-op provider
//
// Queues
// Three queues feed worker threads:
//   - Immediate queue: heap-ordered by (priority band, action id), drained by
//     the parallel worker pool.
//   - Series queue: same ordering, drained by the single series worker, for
//     actions that must never run concurrently with each other.
//   - Demand queue: a plain FIFO, held until StartDemandQueue is called.
//
// Notifications
// Dispatcher-, worker- and queue-level events reach observers through the
// channel Subscribe returns (see notifications.go); per-action started/tick/
// finished events are callbacks registered on Action.Notifications(). The
// dispatcher never closes a Subscribe channel, including on KillThreads;
// delivery is best-effort and a full subscriber buffer drops events.
package dispatcher

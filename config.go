package dispatcher

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/actiondispatch/dispatcher/metrics"
)

// config holds Dispatcher configuration, built via functional options the
// way the teacher's Config/Option pair builds Workers configuration.
type config struct {
	// NumParallelWorkers is the size of the parallel worker pool consuming
	// immediate_q. Default: 10 (spec.md §6, NUM_PARALLEL_THREADS).
	NumParallelWorkers uint

	// WorkerWaitTime is the idle-poll interval workers sleep for when their
	// queue is empty or filtered. Default: 500ms (spec.md §6).
	WorkerWaitTime time.Duration

	// NotificationBuffer sizes the dispatcher-facing worker event channel
	// and the views' subscription channels.
	NotificationBuffer uint

	// ErrorsBufferSize sizes the outward action-error channel.
	ErrorsBufferSize uint

	Metrics metrics.Provider
	Logger  zerolog.Logger
}

// defaultConfig centralizes default values for config, applied as the
// options builder's base, the same way the teacher's defaultConfig did.
func defaultConfig() config {
	return config{
		NumParallelWorkers: 10,
		WorkerWaitTime:     WorkerWaitTime,
		NotificationBuffer: 256,
		ErrorsBufferSize:   64,
		Metrics:            metrics.NewNoopProvider(),
		Logger:             zerolog.Nop(),
	}
}

// validateConfig performs lightweight invariant checks, mirroring the
// teacher's validateConfig hook.
func validateConfig(cfg *config) error {
	if cfg.NumParallelWorkers == 0 {
		return ErrInvalidConfig
	}
	return nil
}

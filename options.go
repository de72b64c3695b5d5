package dispatcher

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/actiondispatch/dispatcher/metrics"
)

// Option configures a Dispatcher. Use New(opts ...Option) to construct one,
// the same functional-options pattern the teacher's Workers used.
type Option func(*config)

// WithParallelism sets the size of the parallel worker pool (default 10).
func WithParallelism(n uint) Option {
	return func(c *config) { c.NumParallelWorkers = n }
}

// WithWorkerWaitTime overrides the worker idle-poll interval (default 500ms).
func WithWorkerWaitTime(d time.Duration) Option {
	return func(c *config) { c.WorkerWaitTime = d }
}

// WithNotificationBuffer sets the buffer size of the internal worker event
// channel and the views' subscription channels (default 256).
func WithNotificationBuffer(n uint) Option {
	return func(c *config) { c.NotificationBuffer = n }
}

// WithErrorsBuffer sets the buffer size of the outward action-error channel
// (default 64).
func WithErrorsBuffer(n uint) Option {
	return func(c *config) { c.ErrorsBufferSize = n }
}

// WithMetricsProvider installs a metrics.Provider the Dispatcher records
// queue-depth, worker-state, and action-duration instruments against
// (default: metrics.NewNoopProvider()).
func WithMetricsProvider(p metrics.Provider) Option {
	return func(c *config) { c.Metrics = p }
}

// WithLogger installs the zerolog.Logger used for spec.md §7's
// warning/debug log points (default: a disabled logger).
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) { c.Logger = l }
}

// buildConfig applies opts over defaultConfig and validates the result.
func buildConfig(opts ...Option) (config, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			panic("nil dispatcher option")
		}
		opt(&cfg)
	}
	if err := validateConfig(&cfg); err != nil {
		return config{}, fmt.Errorf("dispatcher: invalid config: %w", err)
	}
	return cfg, nil
}

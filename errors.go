package dispatcher

import "errors"

const Namespace = "dispatcher"

var (
	// ErrInvalidTransition is returned (and logged at warning, never
	// panicked) when a lifecycle trigger is attempted from a state that
	// doesn't list it in spec.md §4.5's transition table — e.g. Start while
	// already READY, or Suspend while SHUTDOWN.
	ErrInvalidTransition = errors.New(Namespace + ": invalid lifecycle transition")

	// ErrLaunchGuard is returned when LaunchThreads is called while any
	// worker slot is outside {UNINIT, DEAD}.
	ErrLaunchGuard = errors.New(Namespace + ": launch requires every worker slot to be UNINIT or DEAD")

	// ErrKillGuard is returned when KillThreads is called while any worker
	// slot is outside {IDLE, ACTIVE}.
	ErrKillGuard = errors.New(Namespace + ": kill requires every worker slot to be IDLE or ACTIVE")

	// ErrNotReady is returned by Dispatch when called against a Dispatcher
	// that has not completed LaunchThreads.
	ErrNotReady = errors.New(Namespace + ": dispatcher is not READY")

	// ErrInvalidConfig is returned by New when the supplied options
	// produce an unusable configuration.
	ErrInvalidConfig = errors.New(Namespace + ": invalid configuration")
)

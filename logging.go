package dispatcher

import "github.com/rs/zerolog"

// log is the package-wide logger used at exactly the points spec.md §7
// calls for: a warning for invalid lifecycle transitions and launch/kill
// guard violations, and debug-level tracing of worker start/stop/pause/
// resume and action dispatch, mirroring original_source's per-module
// `logging.getLogger(...)` calls. It defaults to a disabled logger so the
// library stays quiet unless a caller opts in via WithLogger.
var log zerolog.Logger = zerolog.Nop()

// SetLogger installs the logger used by this package's Dispatcher and
// Action machinery. Dispatcher.New always calls this with the configured
// logger (a disabled one unless WithLogger is supplied), replacing whatever
// was installed before; exported so tests and embedding applications can
// also redirect it directly.
func SetLogger(l zerolog.Logger) { log = l }

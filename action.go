package dispatcher

import (
	"sync"
	"sync/atomic"
	"time"
)

// ActionStatus is the total order an Action's status progresses through.
// The ordinals are part of the cross-language contract and must not change.
type ActionStatus int

const (
	StatusUninit     ActionStatus = -999
	StatusIdle       ActionStatus = 0
	StatusPending    ActionStatus = 1
	StatusInProgress ActionStatus = 2
	StatusComplete   ActionStatus = 3
	StatusError      ActionStatus = 4
	StatusFailed     ActionStatus = 5
)

func (s ActionStatus) String() string {
	switch s {
	case StatusUninit:
		return "UNINIT"
	case StatusIdle:
		return "IDLE"
	case StatusPending:
		return "PENDING"
	case StatusInProgress:
		return "IN_PROGRESS"
	case StatusComplete:
		return "COMPLETE"
	case StatusError:
		return "ERROR"
	case StatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// ErrorFlags is a bitset of domain-specific error causes. The zero value is
// NoError. Concrete leaf action types (out of scope for this core) may
// define additional bits in the same bitset, the way the original
// SessionAction.ErrorFlags extended BaseAction.ErrorFlags.
type ErrorFlags uint64

const (
	NoError     ErrorFlags = 0
	Unspecified ErrorFlags = 1 << 0
)

// Has reports whether all bits in flags are set.
func (f ErrorFlags) Has(flags ErrorFlags) bool { return f&flags == flags }

// actionIDCounter is the process-monotonic id source. It wraps to 0 after
// assigning 999_999_999, per spec.
var actionIDCounter atomic.Int64

const maxActionID = 999_999_999

// nextActionID allocates the next action id, wrapping per the contract.
func nextActionID() int64 {
	for {
		cur := actionIDCounter.Load()
		next := cur + 1
		if cur >= maxActionID {
			next = 0
		}
		if actionIDCounter.CompareAndSwap(cur, next) {
			return cur
		}
	}
}

// Action is the abstract unit of work the dispatcher schedules and runs.
// Concrete action bodies (HTTP sessions, exports, credential stores) are
// external collaborators; the core only ever sees this contract.
type Action interface {
	ID() int64
	Status() ActionStatus
	SetStatus(ActionStatus)
	ErrorFlagsValue() ErrorFlags

	Parent() Action
	Children() []Action
	setParent(Action)
	addChild(Action)

	FollowUp() Action
	SetFollowUp(Action)

	SeriesLimited() bool

	TickCount() int
	TotalTicks() int
	SetTotalTicks(int)
	PctComplete() int

	StartedAt() time.Time
	EndedAt() time.Time
	StampStarted()
	StampEnded()
	CurrentProcess() string

	ShortDescription() string
	Description() string

	Payload() any
	SetPayload(any)

	// Dispatch decomposes an action into child actions. A non-empty
	// return means "do not execute me as a leaf; execute these instead".
	Dispatch() []Action

	// ExecuteAction runs setup -> DoWork -> tearDown. Implemented once on
	// BaseAction; concrete types override DoWork, not ExecuteAction.
	ExecuteAction()

	// DoWork is the subtype's effectful body. It must set status to one
	// of COMPLETE/ERROR/FAILED before returning; omitting this is a
	// warning, not a hard error (see tearDown).
	DoWork()

	// Tick advances progress and always emits an action-tick notification.
	// If msgOnly, only CurrentProcess changes.
	Tick(msg string, msgOnly bool)

	// ProcessChildren is invoked by the dispatcher once all children have
	// completed non-fatally.
	ProcessChildren()

	// ErrorExit is invoked when the dispatcher declares this action FAILED
	// because one of its children FAILED.
	ErrorExit()

	// Notifications lets the dispatcher subscribe this action's
	// started/tick/finished signals onto the shared event bus.
	Notifications() *ActionSignals
}

// ActionSignals carries the three per-action notifications spec.md §6
// requires (started, tick, finished). Each is a zero-buffer-safe fan-out:
// subscribers register a callback, invoked synchronously by whichever
// goroutine calls the corresponding emit method: the dispatcher's
// coordination goroutine for tree-walk updates, the executing worker for a
// leaf's own ticks and its tear-down finished signal, and the Dispatch
// caller for the initial "Idle" tick.
type ActionSignals struct {
	mu       sync.Mutex
	started  []func(Action)
	tick     []func(Action)
	finished []func(Action)
}

func (s *ActionSignals) OnStarted(fn func(Action)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = append(s.started, fn)
}

func (s *ActionSignals) OnTick(fn func(Action)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick = append(s.tick, fn)
}

func (s *ActionSignals) OnFinished(fn func(Action)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = append(s.finished, fn)
}

func (s *ActionSignals) emitStarted(a Action)  { s.emit(s.started, a) }
func (s *ActionSignals) emitTick(a Action)     { s.emit(s.tick, a) }
func (s *ActionSignals) emitFinished(a Action) { s.emit(s.finished, a) }

func (s *ActionSignals) emit(fns []func(Action), a Action) {
	s.mu.Lock()
	snapshot := make([]func(Action), len(fns))
	copy(snapshot, fns)
	s.mu.Unlock()
	for _, fn := range snapshot {
		fn(a)
	}
}

// BaseAction provides the field bookkeeping and default hook
// implementations every concrete action embeds, mirroring
// original_source's BaseAction (src/dispatcher/base_action.py).
type BaseAction struct {
	mu sync.Mutex

	id            int64
	status        ActionStatus
	errorFlags    ErrorFlags
	parent        Action
	children      []Action
	followUp      Action
	seriesLimited bool

	tickCount   int
	totalTicks  int
	pctComplete int

	datetimeStart time.Time
	datetimeEnd   time.Time

	currentProcess string
	payload        any

	signals ActionSignals

	// self refers back to the outermost embedding concrete type, so
	// BaseAction's ExecuteAction can invoke the overridden DoWork. Concrete
	// constructors must call InitBase(self) before use.
	self Action
}

// InitBase wires the embedding concrete action as self and assigns an id.
// Every concrete action's constructor must call this exactly once.
func (b *BaseAction) InitBase(self Action) {
	b.id = nextActionID()
	b.status = StatusIdle
	b.currentProcess = "Idle..."
	b.self = self
}

func (b *BaseAction) ID() int64 { return b.id }

func (b *BaseAction) Status() ActionStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

func (b *BaseAction) SetStatus(s ActionStatus) {
	b.mu.Lock()
	b.status = s
	b.mu.Unlock()
}

func (b *BaseAction) ErrorFlagsValue() ErrorFlags {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.errorFlags
}

func (b *BaseAction) AddErrorFlags(f ErrorFlags) {
	b.mu.Lock()
	b.errorFlags |= f
	b.mu.Unlock()
}

func (b *BaseAction) Parent() Action { return b.parent }

func (b *BaseAction) setParent(p Action) { b.parent = p }

func (b *BaseAction) Children() []Action {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Action, len(b.children))
	copy(out, b.children)
	return out
}

func (b *BaseAction) addChild(c Action) {
	b.mu.Lock()
	b.children = append(b.children, c)
	b.mu.Unlock()
}

func (b *BaseAction) FollowUp() Action { return b.followUp }

func (b *BaseAction) SetFollowUp(a Action) { b.followUp = a }

func (b *BaseAction) SeriesLimited() bool { return b.seriesLimited }

// SetSeriesLimited routes this action to the series queue instead of the
// parallel queue, once it becomes a leaf (see Dispatcher.dispatchAction).
func (b *BaseAction) SetSeriesLimited(v bool) { b.seriesLimited = v }

func (b *BaseAction) TickCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tickCount
}

func (b *BaseAction) TotalTicks() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalTicks
}

func (b *BaseAction) SetTotalTicks(n int) {
	b.mu.Lock()
	b.totalTicks = n
	b.mu.Unlock()
}

func (b *BaseAction) PctComplete() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pctComplete
}

func (b *BaseAction) StartedAt() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.datetimeStart
}

func (b *BaseAction) EndedAt() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.datetimeEnd
}

// StampStarted sets datetime_start to now. Used by the dispatcher to stamp
// a container (non-leaf) ancestor when its subtree begins running, since
// such ancestors never go through setup() themselves (spec.md §4.5,
// on_starting_action).
func (b *BaseAction) StampStarted() {
	b.mu.Lock()
	if b.datetimeStart.IsZero() {
		b.datetimeStart = time.Now()
	}
	b.mu.Unlock()
}

// StampEnded sets datetime_end to now, mirroring StampStarted for the
// on_done_with_action upward walk.
func (b *BaseAction) StampEnded() {
	b.mu.Lock()
	b.datetimeEnd = time.Now()
	b.mu.Unlock()
}

func (b *BaseAction) CurrentProcess() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentProcess
}

// ShortDescription and Description default to a generic label; concrete
// action types override both, per spec.md §3 ("static per subtype").
func (b *BaseAction) ShortDescription() string { return "BaseAction" }
func (b *BaseAction) Description() string      { return "BaseAction" }

func (b *BaseAction) Payload() any     { return b.payload }
func (b *BaseAction) SetPayload(p any) { b.payload = p }

// Dispatch defaults to "I am a leaf"; decomposing types override it.
func (b *BaseAction) Dispatch() []Action { return nil }

// setup stamps the start time and transitions to IN_PROGRESS, mirroring
// BaseAction.setup in original_source.
func (b *BaseAction) setup() {
	b.mu.Lock()
	b.datetimeStart = time.Now()
	b.currentProcess = "Pending"
	b.mu.Unlock()
	b.SetStatus(StatusInProgress)
}

// tearDown stamps the end time, forces progress to 100%, and emits the
// finished notification. A status still below COMPLETE is a warning only
// (spec.md §7, "Missing status at teardown").
func (b *BaseAction) tearDown() {
	b.mu.Lock()
	b.datetimeEnd = time.Now()
	b.tickCount = b.totalTicks
	b.pctComplete = 100
	status := b.status
	switch {
	case status == StatusComplete:
		b.currentProcess = "Complete!"
	case status == StatusError:
		b.currentProcess = "Complete (Error exists)"
	case status < StatusComplete:
		b.currentProcess = "Failed!"
	default:
		b.currentProcess = "Failed!"
	}
	b.mu.Unlock()
	if status < StatusComplete {
		log.Warn().Int64("action_id", b.id).Msg("action status has not been properly updated at tear down")
	}
	b.signals.emitFinished(b.self)
}

// ExecuteAction runs setup -> DoWork -> tearDown. DoWork is resolved
// through self so the concrete type's override runs.
func (b *BaseAction) ExecuteAction() {
	b.setup()
	b.self.DoWork()
	b.tearDown()
}

// DoWork is a required override; BaseAction itself is never executed
// directly (mirrors original_source raising ValueError).
func (b *BaseAction) DoWork() {
	panic("dispatcher: BaseAction is not intended to be executed directly")
}

// Tick advances progress. See spec.md §4.1.
func (b *BaseAction) Tick(msg string, msgOnly bool) {
	b.mu.Lock()
	if msg != "" {
		b.currentProcess = msg
	}
	if !msgOnly {
		b.tickCount++
		if b.totalTicks > 0 {
			pct := (b.tickCount * 100) / b.totalTicks
			if pct > 100 {
				pct = 100
			}
			b.pctComplete = pct
		}
	}
	b.mu.Unlock()
	b.signals.emitTick(b.self)
}

// ProcessChildren's default just emits finished, matching BaseAction's
// default (a no-op hook point for subtypes).
func (b *BaseAction) ProcessChildren() { b.signals.emitFinished(b.self) }

// ErrorExit's default emits finished, matching BaseAction's default.
func (b *BaseAction) ErrorExit() { b.signals.emitFinished(b.self) }

func (b *BaseAction) Notifications() *ActionSignals { return &b.signals }

// DurationString mirrors duration_in_seconds from original_source: "----"
// until both timestamps are set.
func (b *BaseAction) DurationString() string {
	start, end := b.StartedAt(), b.EndedAt()
	if start.IsZero() || end.IsZero() {
		return "----"
	}
	return end.Sub(start).Round(time.Millisecond).String()
}

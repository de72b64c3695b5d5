package dispatcher

import (
	"sync"

	"github.com/actiondispatch/dispatcher/internal/sequencer"
	"github.com/actiondispatch/dispatcher/metrics"
)

// DispatcherStatus is the fleet-wide status machine spec.md §4.5 defines.
type DispatcherStatus int

const (
	DispatcherUninit DispatcherStatus = iota
	DispatcherIdle
	DispatcherStarting
	DispatcherReady
	DispatcherPaused
	DispatcherStopping
	DispatcherShutdown
)

func (s DispatcherStatus) String() string {
	switch s {
	case DispatcherUninit:
		return "UNINIT"
	case DispatcherIdle:
		return "IDLE"
	case DispatcherStarting:
		return "STARTING"
	case DispatcherReady:
		return "READY"
	case DispatcherPaused:
		return "PAUSED"
	case DispatcherStopping:
		return "STOPPING"
	case DispatcherShutdown:
		return "SHUTDOWN"
	default:
		return "UNKNOWN"
	}
}

// WorkerSlot is the dispatcher-owned per-worker record spec.md §3 defines.
type WorkerSlot struct {
	mu     sync.Mutex
	id     int
	status WorkerStatus
	action Action
}

func (s *WorkerSlot) ID() int { return s.id }

func (s *WorkerSlot) Status() WorkerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *WorkerSlot) setStatus(st WorkerStatus) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

func (s *WorkerSlot) CurrentAction() Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.action
}

func (s *WorkerSlot) setAction(a Action) {
	s.mu.Lock()
	s.action = a
	s.mu.Unlock()
}

type queueSnapshotter interface {
	Snapshot() []Action
}

// Dispatcher owns the three queues, the worker pool, the fleet status
// table, the dispatcher lifecycle, and action-tree walking — grounded on
// ActionDispatcher in the source this package was translated from
// (action_dispatcher.py), method for method.
type Dispatcher struct {
	mu     sync.Mutex
	status DispatcherStatus

	cfg config

	immediateQ *priorityQueue
	seriesQ    *priorityQueue
	demandQ    *demandQueue

	parallelSlots []*WorkerSlot
	seriesSlot    *WorkerSlot

	bus       *workerBus
	errorsOut chan error
	errFwd    *errorForwarder

	lifecycle *lifecycleCoordinator
	workersWG sync.WaitGroup

	notify *notifier

	immSeqr *sequencer.Sequencer[Notification]
	demSeqr *sequencer.Sequencer[Notification]
	serSeqr *sequencer.Sequencer[Notification]
	seqOut  chan Notification

	metrics metrics.Provider

	done     chan struct{}
	doneOnce sync.Once
}

// New constructs a Dispatcher in the IDLE state. Call LaunchThreads to
// start workers and transition to READY.
func New(opts ...Option) (*Dispatcher, error) {
	cfg, err := buildConfig(opts...)
	if err != nil {
		return nil, err
	}
	SetLogger(cfg.Logger)

	d := &Dispatcher{
		cfg:       cfg,
		status:    DispatcherIdle,
		errorsOut: make(chan error, cfg.ErrorsBufferSize),
		metrics:   cfg.Metrics,
		done:      make(chan struct{}),
	}
	d.notify = newNotifier(int(cfg.NotificationBuffer))
	d.bus = newWorkerBus(int(cfg.NotificationBuffer))
	d.errFwd = newErrorForwarder(d.errorsOut)

	d.seqOut = make(chan Notification, cfg.NotificationBuffer)
	d.immSeqr = sequencer.New[Notification](d.seqOut)
	d.demSeqr = sequencer.New[Notification](d.seqOut)
	d.serSeqr = sequencer.New[Notification](d.seqOut)
	go d.forwardSequenced()

	d.immediateQ = newPriorityQueue(func(seq, n int) {
		d.metrics.Histogram(metrics.InstrumentImmediateQueueDepth).Record(float64(n))
		d.onQueueChanged(NotifyImmediateQueueChanged, d.immediateQ, d.immSeqr, seq)
	})
	d.seriesQ = newPriorityQueue(func(seq, n int) {
		d.metrics.Histogram(metrics.InstrumentSeriesQueueDepth).Record(float64(n))
		d.onQueueChanged(NotifySeriesQueueChanged, d.seriesQ, d.serSeqr, seq)
	})
	d.demandQ = newDemandQueue(func(seq, n int) {
		d.metrics.Histogram(metrics.InstrumentDemandQueueDepth).Record(float64(n))
		d.onQueueChanged(NotifyDemandQueueChanged, d.demandQ, d.demSeqr, seq)
	})

	d.seriesSlot = &WorkerSlot{id: 0, status: WorkerUninit}
	d.parallelSlots = make([]*WorkerSlot, cfg.NumParallelWorkers)
	for i := range d.parallelSlots {
		d.parallelSlots[i] = &WorkerSlot{id: i + 1, status: WorkerUninit}
	}

	d.lifecycle = newLifecycleCoordinator(d.enqueueShutdownTokens, d.workersWG.Wait, d.drainQueues, d.closeNotificationPipeline)

	return d, nil
}

// forwardSequenced relays the ordered queue-notification stream onto the
// shared notifier, so every observer (Queue Views included) subscribes
// through the single Notification stream notifier.Subscribe exposes.
func (d *Dispatcher) forwardSequenced() {
	for ev := range d.seqOut {
		d.notify.Emit(ev)
	}
}

// onQueueChanged offloads the (possibly non-trivial, lock-acquiring) queue
// snapshot read off of whatever goroutine just pushed/popped the queue —
// that could be a worker goroutine mid-dispatch-loop, or the coordination
// goroutine itself — and hands the result to a Sequencer keyed by the
// mutation's sequence number, so concurrent snapshot reads still reach
// subscribers in true mutation order. Adapted from the teacher's
// reorderer/preserve_order pattern (see internal/sequencer).
func (d *Dispatcher) onQueueChanged(kind NotificationKind, q queueSnapshotter, seqr *sequencer.Sequencer[Notification], seq int) {
	go func() {
		items := q.Snapshot()
		seqr.Submit(seq, Notification{Kind: kind, QueueItems: items})
	}()
}

// Subscribe returns a channel receiving every dispatcher/worker/queue-level
// Notification from this point forward, for Observable Views.
func (d *Dispatcher) Subscribe() <-chan Notification { return d.notify.Subscribe() }

// Errors returns the channel of action-tagged errors recovered from
// panicking action bodies.
func (d *Dispatcher) Errors() <-chan error { return d.errorsOut }

// Done returns a channel closed once every worker slot has reported DEAD
// after a KillThreads call, for callers that want to await full shutdown
// without relying on KillThreads' own blocking wait.
func (d *Dispatcher) Done() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.done
}

// Status reports the current dispatcher status.
func (d *Dispatcher) Status() DispatcherStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// ParallelSlots returns the parallel worker slots, for Thread View.
func (d *Dispatcher) ParallelSlots() []*WorkerSlot { return d.parallelSlots }

// SeriesSlot returns the series worker's slot, for Thread View.
func (d *Dispatcher) SeriesSlot() *WorkerSlot { return d.seriesSlot }

// ImmediateQueueSnapshot, SeriesQueueSnapshot, DemandQueueSnapshot expose
// the current contents of each queue, for Queue Views' initial render.
func (d *Dispatcher) ImmediateQueueSnapshot() []Action { return d.immediateQ.Snapshot() }
func (d *Dispatcher) SeriesQueueSnapshot() []Action    { return d.seriesQ.Snapshot() }
func (d *Dispatcher) DemandQueueSnapshot() []Action    { return d.demandQ.Snapshot() }

// EnqueueDemand buffers a into the demand queue without dispatching it.
// Call StartDemandQueue to feed the buffer through dispatchAction.
func (d *Dispatcher) EnqueueDemand(a Action) { d.demandQ.Push(a) }

// --- Lifecycle: launch / kill / suspend / resume ---------------------------

// LaunchThreads transitions IDLE/SHUTDOWN -> STARTING -> READY: it requires
// every worker slot to be UNINIT or DEAD (spec.md §4.5's launch guard), then
// starts the coordination goroutine and one goroutine per worker slot.
func (d *Dispatcher) LaunchThreads() error {
	d.mu.Lock()
	if d.status != DispatcherIdle && d.status != DispatcherShutdown {
		d.mu.Unlock()
		log.Warn().Str("status", d.status.String()).Msg("invalid lifecycle transition: start")
		return ErrInvalidTransition
	}
	for _, s := range append(append([]*WorkerSlot{}, d.parallelSlots...), d.seriesSlot) {
		st := s.Status()
		if st != WorkerUninit && st != WorkerDead {
			d.mu.Unlock()
			log.Warn().Int("worker_id", s.ID()).Str("status", st.String()).Msg("launch guard violated")
			return ErrLaunchGuard
		}
	}
	d.status = DispatcherStarting
	d.done = make(chan struct{})
	d.doneOnce = sync.Once{}
	d.mu.Unlock()

	log.Debug().Int("parallel_workers", len(d.parallelSlots)).Msg("launching threads")
	go d.runCoordinator()

	d.workersWG.Add(1)
	seriesW := newWorker(d.seriesSlot.id, d.seriesQ, d.bus, d.cfg.WorkerWaitTime, d.errFwd)
	go func() {
		defer d.workersWG.Done()
		seriesW.run()
	}()

	for _, s := range d.parallelSlots {
		d.workersWG.Add(1)
		w := newWorker(s.id, d.immediateQ, d.bus, d.cfg.WorkerWaitTime, d.errFwd)
		go func() {
			defer d.workersWG.Done()
			w.run()
		}()
	}

	d.mu.Lock()
	d.status = DispatcherReady
	d.mu.Unlock()
	d.notify.Emit(Notification{Kind: NotifyReady})

	return nil
}

// KillThreads transitions READY -> STOPPING -> SHUTDOWN: it requires every
// slot to be IDLE or ACTIVE (spec.md §4.5's kill guard), then enqueues
// ShutdownAction tokens and blocks until the fleet has fully drained.
func (d *Dispatcher) KillThreads() error {
	d.mu.Lock()
	for _, s := range append(append([]*WorkerSlot{}, d.parallelSlots...), d.seriesSlot) {
		st := s.Status()
		if st != WorkerIdle && st != WorkerActive {
			d.mu.Unlock()
			log.Warn().Int("worker_id", s.ID()).Str("status", st.String()).Msg("kill guard violated")
			return ErrKillGuard
		}
	}
	d.status = DispatcherStopping
	d.mu.Unlock()

	log.Debug().Msg("killing threads")
	d.lifecycle.Close()

	d.mu.Lock()
	d.status = DispatcherShutdown
	d.mu.Unlock()
	log.Debug().Msg("all threads stopped")
	d.notify.Emit(Notification{Kind: NotifyShutdown})
	return nil
}

func (d *Dispatcher) enqueueShutdownTokens() {
	d.seriesQ.Push(BandQueueShutdown, NewShutdownAction())
	for range d.parallelSlots {
		d.immediateQ.Push(BandQueueShutdown, NewShutdownAction())
	}
}

func (d *Dispatcher) drainQueues() {
	for _, q := range []*priorityQueue{d.immediateQ, d.seriesQ} {
		for {
			if _, ok := q.TryDequeueHead(nil); !ok {
				break
			}
		}
	}
	d.immediateQ.Close()
	d.seriesQ.Close()
	_ = d.demandQ.DrainAll()
}

func (d *Dispatcher) closeNotificationPipeline() {
	d.errFwd.close()
}

// Suspend enqueues a PauseAction per worker (READY -> READY, eventually
// PAUSED once every slot reports SUSPENDED via on_paused).
func (d *Dispatcher) Suspend() error {
	d.mu.Lock()
	if d.status != DispatcherReady {
		d.mu.Unlock()
		log.Warn().Str("status", d.status.String()).Msg("invalid lifecycle transition: suspend")
		return ErrInvalidTransition
	}
	d.mu.Unlock()

	d.seriesQ.Push(BandWorkerPause, NewPauseAction())
	for range d.parallelSlots {
		d.immediateQ.Push(BandWorkerPause, NewPauseAction())
	}
	return nil
}

// Resume enqueues a ResumeAction per worker (PAUSED -> PAUSED, eventually
// READY once every slot reports IDLE/ACTIVE via on_resumed).
func (d *Dispatcher) Resume() error {
	d.mu.Lock()
	if d.status != DispatcherPaused {
		d.mu.Unlock()
		log.Warn().Str("status", d.status.String()).Msg("invalid lifecycle transition: resume")
		return ErrInvalidTransition
	}
	d.mu.Unlock()

	d.seriesQ.Push(BandWorkerResume, NewResumeAction())
	for range d.parallelSlots {
		d.immediateQ.Push(BandWorkerResume, NewResumeAction())
	}
	return nil
}

// --- Dispatch walk -----------------------------------------------------

// Dispatch walks a (the root action), decomposing it into its tree and
// enqueuing every leaf, per spec.md §4.5's dispatch_action. Safe to call
// from any goroutine: a freshly submitted root and its not-yet-enqueued
// children aren't visible to the coordination goroutine or any worker
// until dispatchAction enqueues their leaves, so there is nothing for a
// concurrent follow-up dispatch (which runs on the coordination goroutine,
// see onDoneWithAction) to race against.
func (d *Dispatcher) Dispatch(a Action) error {
	if d.Status() != DispatcherReady && d.Status() != DispatcherPaused {
		return ErrNotReady
	}
	d.notify.Emit(Notification{Kind: NotifyCreatedAction, Action: a})
	d.dispatchAction(a)
	return nil
}

// StartDemandQueue drains the demand queue in FIFO order, feeding each
// action through dispatchAction, per spec.md §4.5.
func (d *Dispatcher) StartDemandQueue() {
	for _, a := range d.demandQ.DrainAll() {
		d.notify.Emit(Notification{Kind: NotifyCreatedAction, Action: a})
		d.dispatchAction(a)
	}
}

// dispatchAction is the recursive tree walk spec.md §4.5 defines. Re-entered
// for follow-up actions directly from onDoneWithAction, which already runs
// on the dispatcher's single coordination goroutine (runCoordinator) —
// resolving spec.md §9's open question in favor of the dispatcher-thread
// model rather than running inline on a worker's signal-delivery path.
func (d *Dispatcher) dispatchAction(a Action) {
	log.Debug().Int64("action_id", a.ID()).Msg("walking action tree")
	a.Tick("Idle", true)
	children := a.Dispatch()
	if len(children) > 0 {
		a.SetTotalTicks(len(children) + 1)
		for _, c := range children {
			wireParentChild(a, c)
			d.notify.Emit(Notification{Kind: NotifyCreatedAction, Action: c})
		}
		for _, c := range children {
			d.dispatchAction(c)
		}
		return
	}
	if a.SeriesLimited() {
		d.seriesQ.Push(BandStdAction, a)
	} else {
		d.immediateQ.Push(BandStdAction, a)
	}
	d.metrics.Counter(metrics.InstrumentActionsDispatched).Add(1)
}

// wireParentChild links c under parent in both directions, mirroring
// base_action.py's parent/children wiring (the Action interface keeps this
// unexported since it's dispatcher-internal bookkeeping).
func wireParentChild(parent, c Action) {
	if setter, ok := c.(interface{ setParent(Action) }); ok {
		setter.setParent(parent)
	}
	if adder, ok := parent.(interface{ addChild(Action) }); ok {
		adder.addChild(c)
	}
}

// --- Worker event handling ----------------------------------------------

func (d *Dispatcher) runCoordinator() {
	for ev := range d.bus.events {
		if d.handleWorkerEvent(ev) {
			return
		}
	}
}

func (d *Dispatcher) slotFor(workerID int) *WorkerSlot {
	if workerID == d.seriesSlot.id {
		return d.seriesSlot
	}
	for _, s := range d.parallelSlots {
		if s.id == workerID {
			return s
		}
	}
	return nil
}

func (d *Dispatcher) allSlots() []*WorkerSlot {
	out := make([]*WorkerSlot, 0, len(d.parallelSlots)+1)
	out = append(out, d.seriesSlot)
	out = append(out, d.parallelSlots...)
	return out
}

// handleWorkerEvent dispatches on the six signal kinds, per spec.md §4.5.
// Returns true once the coordination goroutine should stop (all slots DEAD).
func (d *Dispatcher) handleWorkerEvent(ev workerEvent) bool {
	switch ev.kind {
	case workerStarted:
		d.onStarted(ev.workerID)
	case workerStartingAction:
		d.onStartingAction(ev.workerID, ev.action)
	case workerDoneWithAction:
		d.onDoneWithAction(ev.workerID, ev.action)
	case workerPaused:
		d.onPaused(ev.workerID)
	case workerResumed:
		d.onResumed(ev.workerID)
	case workerShutdown:
		return d.onShutdown(ev.workerID)
	}
	return false
}

func (d *Dispatcher) allSlotsIn(states ...WorkerStatus) bool {
	in := func(s WorkerStatus) bool {
		for _, want := range states {
			if s == want {
				return true
			}
		}
		return false
	}
	for _, s := range d.allSlots() {
		if !in(s.Status()) {
			return false
		}
	}
	return true
}

func (d *Dispatcher) onStarted(id int) {
	if s := d.slotFor(id); s != nil {
		s.setStatus(WorkerIdle)
	}
	d.metrics.UpDownCounter(metrics.InstrumentWorkersActive).Add(1)
	d.notify.Emit(Notification{Kind: NotifyThreadStatusChanged, WorkerID: id})
	if d.allSlotsIn(WorkerIdle, WorkerActive) {
		d.notify.Emit(Notification{Kind: NotifyAllThreadsRunning})
	}
}

func (d *Dispatcher) onStartingAction(id int, a Action) {
	s := d.slotFor(id)
	if s != nil {
		s.setStatus(WorkerActive)
		s.setAction(a)
	}
	d.notify.Emit(Notification{Kind: NotifyThreadActionChanged, WorkerID: id, Action: a})

	for anc := a.Parent(); anc != nil; anc = anc.Parent() {
		if anc.Status() >= StatusInProgress {
			break
		}
		anc.SetStatus(StatusInProgress)
		anc.StampStarted()
		anc.Notifications().emitStarted(anc)
		anc.Tick("Children Running", true)
	}
}

func (d *Dispatcher) onDoneWithAction(id int, a Action) {
	s := d.slotFor(id)
	if s != nil {
		s.setStatus(WorkerIdle)
		s.setAction(nil)
	}
	d.notify.Emit(Notification{Kind: NotifyThreadActionChanged, WorkerID: id})

	if a.Status() == StatusFailed {
		d.metrics.Counter(metrics.InstrumentActionsFailed).Add(1)
	} else {
		d.metrics.Counter(metrics.InstrumentActionsCompleted).Add(1)
	}
	if started, ended := a.StartedAt(), a.EndedAt(); !started.IsZero() && !ended.IsZero() {
		d.metrics.Histogram(metrics.InstrumentActionDuration).Record(ended.Sub(started).Seconds())
	}

	if fu := a.FollowUp(); fu != nil {
		d.dispatchAction(fu)
		d.notify.Emit(Notification{Kind: NotifyCreatedAction, Action: fu})
	}

	parent := a.Parent()
	if parent == nil {
		return
	}
	parent.Tick("", false)

	for anc := parent; anc != nil; anc = anc.Parent() {
		if anc.Status() >= StatusComplete {
			break
		}
		children := anc.Children()
		allTerminal := true
		worst := StatusIdle
		for _, c := range children {
			st := c.Status()
			if st < StatusComplete {
				allTerminal = false
				break
			}
			if st > worst {
				worst = st
			}
		}
		if !allTerminal {
			break
		}

		switch {
		case worst == StatusFailed:
			anc.SetStatus(StatusFailed)
			anc.StampEnded()
			anc.Tick("One or more children failed!", true)
			anc.ErrorExit()
			return
		case worst == StatusError:
			anc.SetStatus(StatusError)
			anc.StampEnded()
			anc.Tick("Children Complete (with errors)", false)
		default:
			anc.SetStatus(StatusComplete)
			anc.StampEnded()
			anc.Tick("Children Complete", false)
		}

		anc.ProcessChildren()
		if fu := anc.FollowUp(); fu != nil {
			d.dispatchAction(fu)
			d.notify.Emit(Notification{Kind: NotifyCreatedAction, Action: fu})
		}
	}
}

func (d *Dispatcher) onPaused(id int) {
	if s := d.slotFor(id); s != nil {
		s.setStatus(WorkerSuspended)
	}
	d.notify.Emit(Notification{Kind: NotifyThreadStatusChanged, WorkerID: id})
	if d.allSlotsIn(WorkerSuspended) {
		d.mu.Lock()
		d.status = DispatcherPaused
		d.mu.Unlock()
		d.notify.Emit(Notification{Kind: NotifyAllThreadsSuspended})
	}
}

func (d *Dispatcher) onResumed(id int) {
	if s := d.slotFor(id); s != nil {
		s.setStatus(WorkerIdle)
	}
	d.notify.Emit(Notification{Kind: NotifyThreadStatusChanged, WorkerID: id})
	if d.allSlotsIn(WorkerIdle, WorkerActive) {
		d.mu.Lock()
		d.status = DispatcherReady
		d.mu.Unlock()
		d.notify.Emit(Notification{Kind: NotifyReady})
	}
}

func (d *Dispatcher) onShutdown(id int) bool {
	if s := d.slotFor(id); s != nil {
		s.setStatus(WorkerDead)
	}
	d.metrics.UpDownCounter(metrics.InstrumentWorkersActive).Add(-1)
	d.notify.Emit(Notification{Kind: NotifyThreadStatusChanged, WorkerID: id})
	if d.allSlotsIn(WorkerDead) {
		d.notify.Emit(Notification{Kind: NotifyAllThreadsShutdown})
		d.doneOnce.Do(func() { close(d.done) })
		return true
	}
	return false
}


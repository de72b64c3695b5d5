package views

import (
	"sync"

	dispatcher "github.com/actiondispatch/dispatcher"
)

// ThreadRow is one row of the Thread View's three columns, mirroring
// ThreadStatusModel.data's worker_id/status/current_action columns.
type ThreadRow struct {
	WorkerID      int
	Status        dispatcher.WorkerStatus
	CurrentAction string
}

// ThreadView is a read model over the dispatcher's worker slot table,
// refreshed on thread_status_changed and thread_action_changed, mirroring
// ThreadStatusModel's on_thread_status_update/on_thread_action_update.
type ThreadView struct {
	mu        sync.Mutex
	slots     []*dispatcher.WorkerSlot
	onRefresh func()
}

// NewThreadView constructs a ThreadView over slots, in display order. Put
// the series slot last to match thread_status_model.py's has_series_thread
// convention (the last row is the series worker).
func NewThreadView(slots []*dispatcher.WorkerSlot) *ThreadView {
	return &ThreadView{slots: slots}
}

// NewDispatcherThreadView builds a ThreadView over d's parallel slots
// followed by its series slot.
func NewDispatcherThreadView(d *dispatcher.Dispatcher) *ThreadView {
	slots := append(append([]*dispatcher.WorkerSlot{}, d.ParallelSlots()...), d.SeriesSlot())
	return NewThreadView(slots)
}

// OnRefresh installs fn to be called after every status/action update.
func (v *ThreadView) OnRefresh(fn func()) {
	v.mu.Lock()
	v.onRefresh = fn
	v.mu.Unlock()
}

// Watch consumes notifications until the channel closes, refreshing on
// every thread_status_changed/thread_action_changed event. Run it in its
// own goroutine.
func (v *ThreadView) Watch(notifications <-chan dispatcher.Notification) {
	for ev := range notifications {
		switch ev.Kind {
		case dispatcher.NotifyThreadStatusChanged, dispatcher.NotifyThreadActionChanged:
			v.refresh()
		}
	}
}

func (v *ThreadView) refresh() {
	v.mu.Lock()
	fn := v.onRefresh
	v.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Rows snapshots every tracked slot into a ThreadRow.
func (v *ThreadView) Rows() []ThreadRow {
	v.mu.Lock()
	slots := make([]*dispatcher.WorkerSlot, len(v.slots))
	copy(slots, v.slots)
	v.mu.Unlock()

	out := make([]ThreadRow, 0, len(slots))
	for _, s := range slots {
		label := ""
		if a := s.CurrentAction(); a != nil {
			label = a.ShortDescription()
		}
		out = append(out, ThreadRow{WorkerID: s.ID(), Status: s.Status(), CurrentAction: label})
	}
	return out
}

package views

import (
	"sync"

	dispatcher "github.com/actiondispatch/dispatcher"
)

// QueueView is a flat read model over one of the dispatcher's three
// queues, refreshed wholesale on the matching contents-changed
// notification — the same reset-on-change approach QueueListModel's
// on_queue_content_change uses (beginResetModel/endResetModel) in place of
// incremental row tracking, since the dispatcher only ever hands out full
// snapshots.
type QueueView struct {
	mu        sync.Mutex
	kind      dispatcher.NotificationKind
	items     []dispatcher.Action
	onRefresh func()
}

// NewQueueView constructs a QueueView that refreshes on notifications of
// kind. Use dispatcher.NotifyImmediateQueueChanged,
// dispatcher.NotifySeriesQueueChanged, or dispatcher.NotifyDemandQueueChanged.
func NewQueueView(kind dispatcher.NotificationKind, initial []dispatcher.Action) *QueueView {
	return &QueueView{kind: kind, items: initial}
}

// OnRefresh installs fn to be called after every contents reset.
func (v *QueueView) OnRefresh(fn func()) {
	v.mu.Lock()
	v.onRefresh = fn
	v.mu.Unlock()
}

// Watch consumes notifications until the channel closes, replacing this
// view's contents with QueueItems whenever a matching-kind notification
// arrives. Run it in its own goroutine.
func (v *QueueView) Watch(notifications <-chan dispatcher.Notification) {
	for ev := range notifications {
		if ev.Kind != v.kind {
			continue
		}
		v.mu.Lock()
		v.items = ev.QueueItems
		fn := v.onRefresh
		v.mu.Unlock()
		if fn != nil {
			fn()
		}
	}
}

// Items returns a defensive copy of the queue's current contents, in the
// queue's own (band, id) or FIFO order (whichever the queue uses), for
// list rendering.
func (v *QueueView) Items() []dispatcher.Action {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]dispatcher.Action, len(v.items))
	copy(out, v.items)
	return out
}

// Len reports the current row count.
func (v *QueueView) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.items)
}

// Label returns the display string for row i, or "Shutdown Action" for a
// nil entry (queue_list_model.py's placeholder for a priority-queue
// sentinel with no action payload), mirroring QueueListModel.data.
func (v *QueueView) Label(i int) string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if i < 0 || i >= len(v.items) {
		return ""
	}
	a := v.items[i]
	if a == nil {
		return "Shutdown Action"
	}
	return a.ShortDescription()
}

// Package views implements the Observable View read models spec.md §4.6
// describes, adapted from the Qt model classes in original_source's
// action_manager.py, queue_list_model.py, and thread_status_model.py —
// stripped of every QAbstractItemModel/QAbstractTableModel/paint-delegate
// concern, since rendering is out of scope here, but keeping each model's
// row shape and its refresh triggers.
package views

import (
	"sync"
	"time"

	dispatcher "github.com/actiondispatch/dispatcher"
)

// TreeRow is one row of the Action Tree View's five columns, mirroring
// ActionStatusModel's DisplayRole columns (short_description,
// current_process, status, pct_complete, duration_in_seconds).
type TreeRow struct {
	Action           dispatcher.Action
	Depth            int
	ShortDescription string
	CurrentProcess   string
	Status           dispatcher.ActionStatus
	PctComplete      int
	Duration         string
}

// TreeView is a read-model adapter over the tree of actions a Dispatcher
// walks: it tracks root actions plus their full descendant trees and
// refreshes whenever an action starts, ticks, finishes, or is newly
// created, the same four signals ActionStatusModel connects to.
type TreeView struct {
	mu        sync.Mutex
	roots     []dispatcher.Action
	onRefresh func()
}

// NewTreeView constructs an empty TreeView. Call Watch in its own goroutine
// to start tracking a Dispatcher's notification stream.
func NewTreeView() *TreeView {
	return &TreeView{}
}

// OnRefresh installs fn to be called after every mutation this view makes
// to its backing rows (append-root, append-child, or any column refresh),
// the Go analogue of ActionStatusModel's dataChanged/rowsInserted signals.
func (v *TreeView) OnRefresh(fn func()) {
	v.mu.Lock()
	v.onRefresh = fn
	v.mu.Unlock()
}

// Watch consumes notifications until the channel closes, appending the
// action of every created_action notification as a new root if it has no
// parent at the time it's observed (an action with a parent is shown
// through its parent's Children instead), and wiring
// the action's own started/tick/finished signals into this view's refresh
// callback. Run it in its own goroutine; it returns when notifications
// closes.
func (v *TreeView) Watch(notifications <-chan dispatcher.Notification) {
	for ev := range notifications {
		if ev.Kind != dispatcher.NotifyCreatedAction || ev.Action == nil {
			continue
		}
		v.track(ev.Action)
	}
}

func (v *TreeView) track(a dispatcher.Action) {
	a.Notifications().OnStarted(func(dispatcher.Action) { v.refresh() })
	a.Notifications().OnTick(func(dispatcher.Action) { v.refresh() })
	a.Notifications().OnFinished(func(dispatcher.Action) { v.refresh() })

	if a.Parent() == nil {
		v.mu.Lock()
		v.roots = append(v.roots, a)
		v.mu.Unlock()
	}
	// Children reach the view through their parent's Children() slice
	// directly (wired by the dispatcher at dispatch time), so no separate
	// append-child bookkeeping is needed here — Rows() walks the live tree.
	v.refresh()
}

func (v *TreeView) refresh() {
	v.mu.Lock()
	fn := v.onRefresh
	v.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Roots returns a defensive copy of the tracked root actions.
func (v *TreeView) Roots() []dispatcher.Action {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]dispatcher.Action, len(v.roots))
	copy(out, v.roots)
	return out
}

// Rows flattens the tracked trees into depth-first TreeRow records,
// matching the column set ActionStatusModel.data returns for DisplayRole.
func (v *TreeView) Rows() []TreeRow {
	v.mu.Lock()
	roots := make([]dispatcher.Action, len(v.roots))
	copy(roots, v.roots)
	v.mu.Unlock()

	var out []TreeRow
	var walk func(a dispatcher.Action, depth int)
	walk = func(a dispatcher.Action, depth int) {
		out = append(out, rowFor(a, depth))
		for _, c := range a.Children() {
			walk(c, depth+1)
		}
	}
	for _, r := range roots {
		walk(r, 0)
	}
	return out
}

func rowFor(a dispatcher.Action, depth int) TreeRow {
	duration := "----"
	if start, end := a.StartedAt(), a.EndedAt(); !start.IsZero() && !end.IsZero() {
		duration = end.Sub(start).Round(time.Millisecond).String()
	}
	return TreeRow{
		Action:           a,
		Depth:            depth,
		ShortDescription: a.ShortDescription(),
		CurrentProcess:   a.CurrentProcess(),
		Status:           a.Status(),
		PctComplete:      a.PctComplete(),
		Duration:         duration,
	}
}

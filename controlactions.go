package dispatcher

import "fmt"

// controlAction is the common base for the three control-plane action
// types. Their identity as Go types (not any field) is what drives worker
// state transitions in Worker.run; DoWork merely marks them COMPLETE,
// mirroring ThreadAction in original_source/.../thread_action.py.
type controlAction struct {
	BaseAction
}

func (c *controlAction) DoWork() { c.SetStatus(StatusComplete) }

// PauseAction suspends the worker that dequeues it until a matching
// ResumeAction is dequeued by the same worker.
type PauseAction struct{ controlAction }

// NewPauseAction constructs a ready-to-enqueue PauseAction.
func NewPauseAction() *PauseAction {
	a := &PauseAction{}
	a.InitBase(a)
	a.SetTotalTicks(1)
	return a
}

func (a *PauseAction) Description() string      { return "Pause Worker Action" }
func (a *PauseAction) ShortDescription() string { return fmt.Sprintf("%4d: Pause Worker", a.ID()) }

// ResumeAction un-suspends the worker that dequeues it.
type ResumeAction struct{ controlAction }

// NewResumeAction constructs a ready-to-enqueue ResumeAction.
func NewResumeAction() *ResumeAction {
	a := &ResumeAction{}
	a.InitBase(a)
	a.SetTotalTicks(1)
	return a
}

func (a *ResumeAction) Description() string      { return "Resume Worker Action" }
func (a *ResumeAction) ShortDescription() string { return fmt.Sprintf("%4d: Resume Worker", a.ID()) }

// ShutdownAction tells the worker that dequeues it to exit its run loop
// after executing it.
type ShutdownAction struct{ controlAction }

// NewShutdownAction constructs a ready-to-enqueue ShutdownAction.
func NewShutdownAction() *ShutdownAction {
	a := &ShutdownAction{}
	a.InitBase(a)
	a.SetTotalTicks(1)
	return a
}

func (a *ShutdownAction) Description() string      { return "Shutdown Worker Action" }
func (a *ShutdownAction) ShortDescription() string { return fmt.Sprintf("%4d: Kill Worker", a.ID()) }

package dispatcher

// FuncAction is a minimal concrete leaf action wrapping a plain function,
// the way AuxAction wraps a callable in the source this package was
// translated from. It carries no HTTP/session/credential body and is the
// action type used throughout the test suite and examples.
type FuncAction struct {
	BaseAction
	short string
	desc  string
	fn    func(a *FuncAction) ActionStatus
}

// NewFuncAction constructs a ready-to-dispatch FuncAction. fn runs on the
// worker that dequeues this action and must return the terminal status to
// set (StatusComplete, StatusError, or StatusFailed).
func NewFuncAction(short, desc string, fn func(a *FuncAction) ActionStatus) *FuncAction {
	a := &FuncAction{short: short, desc: desc, fn: fn}
	a.InitBase(a)
	a.SetTotalTicks(1)
	return a
}

func (a *FuncAction) ShortDescription() string { return a.short }
func (a *FuncAction) Description() string      { return a.desc }

func (a *FuncAction) DoWork() {
	status := StatusComplete
	if a.fn != nil {
		status = a.fn(a)
	}
	a.SetStatus(status)
}

// FuncTreeAction is a FuncAction that additionally decomposes into child
// actions supplied at construction time, for tests exercising parent/child
// tree walks without a bespoke Action type per scenario.
type FuncTreeAction struct {
	FuncAction
	children []Action
}

// NewFuncTreeAction constructs a FuncAction whose Dispatch returns children.
// fn, if non-nil, runs only if children is empty (i.e. this instance is
// reused as a plain leaf); pass nil when children is non-empty.
func NewFuncTreeAction(short, desc string, children []Action, fn func(a *FuncAction) ActionStatus) *FuncTreeAction {
	a := &FuncTreeAction{children: children}
	a.InitBase(a)
	a.fn = fn
	a.short = short
	a.desc = desc
	return a
}

func (a *FuncTreeAction) Dispatch() []Action { return a.children }

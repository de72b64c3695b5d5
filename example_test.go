package dispatcher_test

import (
	"fmt"
	"time"

	dispatcher "github.com/actiondispatch/dispatcher"
)

// ExampleDispatcher demonstrates the minimal lifecycle: build a dispatcher,
// dispatch a single leaf action, and wait for it to reach a terminal
// status before shutting the fleet down.
func ExampleDispatcher() {
	d, err := dispatcher.New(dispatcher.WithParallelism(2))
	if err != nil {
		panic(err)
	}
	if err := d.LaunchThreads(); err != nil {
		panic(err)
	}

	done := make(chan dispatcher.ActionStatus, 1)
	greet := dispatcher.NewFuncAction("greet", "print a greeting", func(a *dispatcher.FuncAction) dispatcher.ActionStatus {
		fmt.Println("hello from a dispatched action")
		return dispatcher.StatusComplete
	})
	greet.Notifications().OnFinished(func(a dispatcher.Action) { done <- a.Status() })

	if err := d.Dispatch(greet); err != nil {
		panic(err)
	}

	<-done
	_ = d.KillThreads()

	// Output: hello from a dispatched action
}

// ExampleDispatcher_tree demonstrates a parent action decomposing into two
// children, and how the parent's status rolls up once both complete.
func ExampleDispatcher_tree() {
	d, err := dispatcher.New(dispatcher.WithParallelism(2))
	if err != nil {
		panic(err)
	}
	if err := d.LaunchThreads(); err != nil {
		panic(err)
	}

	done := make(chan struct{}, 1)
	c1 := dispatcher.NewFuncAction("fetch", "", func(a *dispatcher.FuncAction) dispatcher.ActionStatus { return dispatcher.StatusComplete })
	c2 := dispatcher.NewFuncAction("store", "", func(a *dispatcher.FuncAction) dispatcher.ActionStatus { return dispatcher.StatusComplete })
	root := dispatcher.NewFuncTreeAction("pipeline", "", []dispatcher.Action{c1, c2}, nil)
	root.Notifications().OnFinished(func(a dispatcher.Action) { done <- struct{}{} })

	if err := d.Dispatch(root); err != nil {
		panic(err)
	}

	<-done
	fmt.Println(root.Status())
	_ = d.KillThreads()

	// Output: COMPLETE
}

// ExampleDispatcher_suspendResume demonstrates pausing and resuming the
// worker fleet.
func ExampleDispatcher_suspendResume() {
	d, err := dispatcher.New(dispatcher.WithParallelism(2))
	if err != nil {
		panic(err)
	}
	if err := d.LaunchThreads(); err != nil {
		panic(err)
	}

	sub := d.Subscribe()
	if err := d.Suspend(); err != nil {
		panic(err)
	}
	for ev := range sub {
		if ev.Kind == dispatcher.NotifyAllThreadsSuspended {
			break
		}
	}
	fmt.Println(d.Status())

	if err := d.Resume(); err != nil {
		panic(err)
	}
	for ev := range sub {
		if ev.Kind == dispatcher.NotifyReady {
			break
		}
	}
	fmt.Println(d.Status())

	_ = d.KillThreads()
	time.Sleep(time.Millisecond)

	// Output:
	// PAUSED
	// READY
}

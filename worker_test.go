package dispatcher

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func drainEvent(t *testing.T, bus *workerBus, d time.Duration) workerEvent {
	t.Helper()
	select {
	case ev := <-bus.events:
		return ev
	case <-time.After(d):
		t.Fatal("timed out waiting for worker event")
		return workerEvent{}
	}
}

func TestWorker_Run_ExecutesLeafAndEmitsLifecycleEvents(t *testing.T) {
	q := newPriorityQueue(nil)
	bus := newWorkerBus(8)
	w := newWorker(1, q, bus, time.Millisecond, nil)

	a := NewFuncAction("leaf", "", func(a *FuncAction) ActionStatus { return StatusComplete })
	q.Push(BandStdAction, a)
	q.Push(BandQueueShutdown, NewShutdownAction())

	go w.run()

	started := drainEvent(t, bus, time.Second)
	require.Equal(t, workerStarted, started.kind)

	startingAction := drainEvent(t, bus, time.Second)
	require.Equal(t, workerStartingAction, startingAction.kind)
	require.Equal(t, a, startingAction.action)

	done := drainEvent(t, bus, time.Second)
	require.Equal(t, workerDoneWithAction, done.kind)
	require.Equal(t, StatusComplete, a.Status())

	startingShutdown := drainEvent(t, bus, time.Second)
	require.Equal(t, workerStartingAction, startingShutdown.kind)

	shutdown := drainEvent(t, bus, time.Second)
	require.Equal(t, workerShutdown, shutdown.kind)
}

func TestWorker_Execute_RecoversPanicAndTagsError(t *testing.T) {
	q := newPriorityQueue(nil)
	bus := newWorkerBus(8)
	errsCh := make(chan error, 1)
	fwd := newErrorForwarder(errsCh)
	w := newWorker(1, q, bus, time.Millisecond, fwd)

	a := NewFuncAction("boom", "", func(a *FuncAction) ActionStatus {
		panic(errors.New("kaboom"))
	})
	q.Push(BandStdAction, a)

	go w.run()

	select {
	case err := <-errsCh:
		id, ok := ExtractActionID(err)
		require.True(t, ok)
		require.Equal(t, a.ID(), id)
	case <-time.After(time.Second):
		t.Fatal("expected a forwarded error")
	}
	require.Eventually(t, func() bool { return a.Status() == StatusFailed }, time.Second, time.Millisecond)
	q.Push(BandQueueShutdown, NewShutdownAction())
}

func TestWorker_AcceptHead_PauseFilter(t *testing.T) {
	w := &worker{}
	resume := NewResumeAction()
	std := NewFuncAction("a", "", nil)

	require.True(t, w.acceptHead(std))
	require.False(t, w.acceptHead(resume))

	w.suspended = true
	require.False(t, w.acceptHead(std))
	require.True(t, w.acceptHead(resume))
}

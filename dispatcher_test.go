package dispatcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T, opts ...Option) *Dispatcher {
	t.Helper()
	d, err := New(append([]Option{WithParallelism(2), WithWorkerWaitTime(5 * time.Millisecond)}, opts...)...)
	require.NoError(t, err)
	require.NoError(t, d.LaunchThreads())
	require.Eventually(t, func() bool { return d.Status() == DispatcherReady }, time.Second, time.Millisecond)
	return d
}

func waitNotification(t *testing.T, ch <-chan Notification, kind NotificationKind, d time.Duration) Notification {
	t.Helper()
	deadline := time.After(d)
	for {
		select {
		case ev := <-ch:
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for notification %q", kind)
		}
	}
}

func TestDispatcher_LaunchThreads_TransitionsToReadyAndRejectsDoubleLaunch(t *testing.T) {
	d := newTestDispatcher(t)
	require.Equal(t, DispatcherReady, d.Status())
	require.ErrorIs(t, d.LaunchThreads(), ErrInvalidTransition)
}

func TestDispatcher_Dispatch_SingleLeafCompletes(t *testing.T) {
	d := newTestDispatcher(t)
	sub := d.Subscribe()

	a := NewFuncAction("leaf", "", func(a *FuncAction) ActionStatus { return StatusComplete })
	require.NoError(t, d.Dispatch(a))
	waitNotification(t, sub, NotifyCreatedAction, time.Second)

	require.Eventually(t, func() bool { return a.Status() == StatusComplete }, time.Second, time.Millisecond)
	require.Equal(t, 100, a.PctComplete())
}

func TestDispatcher_Dispatch_ParentWithTwoSuccessfulChildren(t *testing.T) {
	d := newTestDispatcher(t)

	c1 := NewFuncAction("c1", "", func(a *FuncAction) ActionStatus { return StatusComplete })
	c2 := NewFuncAction("c2", "", func(a *FuncAction) ActionStatus { return StatusComplete })
	root := NewFuncTreeAction("root", "", []Action{c1, c2}, nil)

	require.NoError(t, d.Dispatch(root))

	require.Eventually(t, func() bool { return root.Status() == StatusComplete }, time.Second, time.Millisecond)
	require.Equal(t, 3, root.TotalTicks())
	require.GreaterOrEqual(t, root.TickCount(), 3)
	require.False(t, root.EndedAt().Before(c1.EndedAt()))
	require.False(t, root.EndedAt().Before(c2.EndedAt()))
}

func TestDispatcher_Dispatch_FailingChildFailsParentWithoutFollowUp(t *testing.T) {
	d := newTestDispatcher(t)

	c1 := NewFuncAction("c1", "", func(a *FuncAction) ActionStatus { return StatusComplete })
	c2 := NewFuncAction("c2", "", func(a *FuncAction) ActionStatus { return StatusFailed })
	root := NewFuncTreeAction("root", "", []Action{c1, c2}, nil)
	followUp := NewFuncAction("followup", "", func(a *FuncAction) ActionStatus { return StatusComplete })
	root.SetFollowUp(followUp)

	require.NoError(t, d.Dispatch(root))

	require.Eventually(t, func() bool { return root.Status() == StatusFailed }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return c1.Status() == StatusComplete }, time.Second, time.Millisecond)
	require.Never(t, func() bool { return followUp.Status() != StatusIdle }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestDispatcher_SeriesLimited_RunsOnSerialWorkerOnly(t *testing.T) {
	d := newTestDispatcher(t, WithParallelism(4))

	running := make(chan struct{}, 4)
	release := make(chan struct{})
	concurrent := 0
	maxConcurrent := 0

	for i := 0; i < 3; i++ {
		a := NewFuncAction("series", "", func(a *FuncAction) ActionStatus {
			concurrent++
			if concurrent > maxConcurrent {
				maxConcurrent = concurrent
			}
			running <- struct{}{}
			<-release
			concurrent--
			return StatusComplete
		})
		a.SetSeriesLimited(true)
		require.NoError(t, d.Dispatch(a))
	}

	<-running
	select {
	case <-running:
		t.Fatal("more than one series_limited action ran concurrently")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
}

func TestDispatcher_SuspendResume_CycleReturnsToReady(t *testing.T) {
	d := newTestDispatcher(t, WithParallelism(3))
	sub := d.Subscribe()

	require.NoError(t, d.Suspend())
	waitNotification(t, sub, NotifyAllThreadsSuspended, time.Second)
	require.Equal(t, DispatcherPaused, d.Status())

	require.NoError(t, d.Resume())
	waitNotification(t, sub, NotifyReady, time.Second)
	require.Equal(t, DispatcherReady, d.Status())
}

func TestDispatcher_KillThreads_DrainsAndShutsDownAllWorkers(t *testing.T) {
	d := newTestDispatcher(t, WithParallelism(4))

	for i := 0; i < 50; i++ {
		a := NewFuncAction("work", "", func(a *FuncAction) ActionStatus { return StatusComplete })
		require.NoError(t, d.Dispatch(a))
	}

	require.NoError(t, d.KillThreads())
	require.Equal(t, DispatcherShutdown, d.Status())
	for _, s := range d.ParallelSlots() {
		require.Equal(t, WorkerDead, s.Status())
	}
	require.Equal(t, WorkerDead, d.SeriesSlot().Status())
	require.Len(t, d.ImmediateQueueSnapshot(), 0)
}

func TestDispatcher_EnqueueDemand_StartDemandQueueFeedsFIFO(t *testing.T) {
	d := newTestDispatcher(t)

	var order []string
	done := make(chan struct{}, 2)
	a := NewFuncAction("a", "", func(a *FuncAction) ActionStatus {
		order = append(order, "a")
		done <- struct{}{}
		return StatusComplete
	})
	b := NewFuncAction("b", "", func(a *FuncAction) ActionStatus {
		order = append(order, "b")
		done <- struct{}{}
		return StatusComplete
	})

	d.EnqueueDemand(a)
	d.EnqueueDemand(b)
	require.Equal(t, []Action{a, b}, d.DemandQueueSnapshot())
	d.StartDemandQueue()

	<-done
	<-done
	require.Eventually(t, func() bool { return a.Status() == StatusComplete && b.Status() == StatusComplete }, time.Second, time.Millisecond)
}

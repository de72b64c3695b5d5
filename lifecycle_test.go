package dispatcher

import (
	"testing"
	"time"
)

func recvStep(t *testing.T, ch <-chan string, d time.Duration) (string, bool) {
	t.Helper()
	select {
	case s := <-ch:
		return s, true
	case <-time.After(d):
		return "", false
	}
}

func TestLifecycleCoordinator_RunsStepsInOrderExactlyOnce(t *testing.T) {
	steps := make(chan string, 8)
	lc := newLifecycleCoordinator(
		func() { steps <- "enqueueShutdown" },
		func() { steps <- "waitWorkers" },
		func() { steps <- "drainQueues" },
		func() { steps <- "closeErrors" },
	)

	lc.Close()
	lc.Close() // second call must be a no-op

	want := []string{"enqueueShutdown", "waitWorkers", "drainQueues", "closeErrors"}
	for _, w := range want {
		got, ok := recvStep(t, steps, time.Second)
		if !ok || got != w {
			t.Fatalf("expected step %q, got %q (ok=%v)", w, got, ok)
		}
	}
	select {
	case s := <-steps:
		t.Fatalf("unexpected extra step %q after Close ran twice", s)
	default:
	}
}

func TestLifecycleCoordinator_ConcurrentCloseRunsOnce(t *testing.T) {
	steps := make(chan string, 8)
	lc := newLifecycleCoordinator(
		func() { steps <- "enqueueShutdown" },
		func() { steps <- "waitWorkers" },
		func() { steps <- "drainQueues" },
		func() { steps <- "closeErrors" },
	)

	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		go func() {
			lc.Close()
			done <- struct{}{}
		}()
	}
	for i := 0; i < 5; i++ {
		<-done
	}

	count := 0
	for {
		select {
		case <-steps:
			count++
		default:
			if count != 4 {
				t.Fatalf("expected exactly 4 steps across concurrent Close calls, got %d", count)
			}
			return
		}
	}
}

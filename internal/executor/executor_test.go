package executor

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestSpawnLocalOrderAndDrain(t *testing.T) {
	e := New(nil)
	var order []int
	var mu sync.Mutex
	for i := 0; i < 3; i++ {
		i := i
		e.SpawnLocal(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	e.RunUntilIdle()
	if len(order) != 3 || order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Fatalf("order = %v, want [0 1 2]", order)
	}
	if e.Pending() {
		t.Fatalf("expected no pending local tasks after drain")
	}
}

func TestReentrantSpawnLocalDrainedInSamePass(t *testing.T) {
	e := New(nil)
	done := make(chan struct{})
	e.SpawnLocal(func() {
		e.SpawnLocal(func() { close(done) })
	})
	e.RunUntilIdle()
	select {
	case <-done:
	default:
		t.Fatalf("reentrant spawn_local was not drained by RunUntilIdle")
	}
}

func TestSpawnFutureRunsOnBackgroundGoroutine(t *testing.T) {
	e := New(nil)
	result := make(chan bool, 1)
	e.SpawnFuture(func(ctx context.Context) error {
		result <- true
		return nil
	})
	select {
	case <-result:
	case <-time.After(time.Second):
		t.Fatalf("future did not run")
	}
	e.Close()
}

func TestSpawnFuturePanicIsCaught(t *testing.T) {
	caught := make(chan error, 1)
	e := New(func(err error) { caught <- err })
	e.SpawnFuture(func(ctx context.Context) error {
		panic("boom")
	})
	select {
	case err := <-caught:
		if _, ok := err.(*PanicError); !ok {
			t.Fatalf("expected *PanicError, got %T", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("panic was not reported")
	}
	e.Close()
}

func TestTryTickProcessesOneAtATime(t *testing.T) {
	e := New(nil)
	e.SpawnLocal(func() {})
	e.SpawnLocal(func() {})
	if !e.TryTick() {
		t.Fatalf("expected first tick to run something")
	}
	if !e.Pending() {
		t.Fatalf("expected second task still pending after one tick")
	}
	if !e.TryTick() {
		t.Fatalf("expected second tick to run something")
	}
	if e.TryTick() {
		t.Fatalf("expected no more work")
	}
}

package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	appErr "judgebox/pkg/errors"
)

func TestEnqueueRunsImmediately(t *testing.T) {
	q := New(2, 0)
	future, err := q.Enqueue(func() (interface{}, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	val, err := future.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	if val.(int) != 42 {
		t.Fatalf("expected 42, got %v", val)
	}
}

func TestConcurrencyCap(t *testing.T) {
	const maxConcurrent = 2
	const total = 8

	q := New(maxConcurrent, 0)

	var current, peak int64
	var mu sync.Mutex
	release := make(chan struct{})

	futures := make([]*Future, 0, total)
	for i := 0; i < total; i++ {
		future, err := q.Enqueue(func() (interface{}, error) {
			n := atomic.AddInt64(&current, 1)
			mu.Lock()
			if n > peak {
				peak = n
			}
			mu.Unlock()
			<-release
			atomic.AddInt64(&current, -1)
			return nil, nil
		})
		if err != nil {
			t.Fatalf("enqueue %d failed: %v", i, err)
		}
		futures = append(futures, future)
	}

	// Give admitted tasks time to start before releasing everyone.
	time.Sleep(50 * time.Millisecond)
	status := q.Status()
	if status.InFlight != maxConcurrent {
		t.Fatalf("expected %d in flight, got %d", maxConcurrent, status.InFlight)
	}
	if status.Waiting != total-maxConcurrent {
		t.Fatalf("expected %d waiting, got %d", total-maxConcurrent, status.Waiting)
	}

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i, future := range futures {
		if _, err := future.Wait(ctx); err != nil {
			t.Fatalf("task %d did not complete: %v", i, err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if peak > maxConcurrent {
		t.Fatalf("concurrency cap violated: peak %d", peak)
	}
	if got := q.Status().TotalProcessed; got != total {
		t.Fatalf("expected %d processed, got %d", total, got)
	}
}

func TestFIFOOrder(t *testing.T) {
	q := New(1, 0)

	var order []int
	var mu sync.Mutex
	block := make(chan struct{})

	// First task holds the only slot so the rest queue up in order.
	first, err := q.Enqueue(func() (interface{}, error) {
		<-block
		return nil, nil
	})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	futures := []*Future{first}
	for i := 0; i < 5; i++ {
		id := i
		future, err := q.Enqueue(func() (interface{}, error) {
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			return nil, nil
		})
		if err != nil {
			t.Fatalf("enqueue %d failed: %v", i, err)
		}
		futures = append(futures, future)
	}

	close(block)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, future := range futures {
		if _, err := future.Wait(ctx); err != nil {
			t.Fatalf("task did not complete: %v", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for i, id := range order {
		if id != i {
			t.Fatalf("tasks started out of order: %v", order)
		}
	}
}

func TestTaskFailureCountsAndReleasesSlot(t *testing.T) {
	q := New(1, 0)
	boom := errors.New("boom")

	future, err := q.Enqueue(func() (interface{}, error) { return nil, boom })
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if _, err := future.Wait(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected task error, got %v", err)
	}

	// The slot must be free again.
	second, err := q.Enqueue(func() (interface{}, error) { return "ok", nil })
	if err != nil {
		t.Fatalf("enqueue after failure: %v", err)
	}
	if _, err := second.Wait(context.Background()); err != nil {
		t.Fatalf("second task failed: %v", err)
	}

	status := q.Status()
	if status.TotalFailed != 1 {
		t.Fatalf("expected 1 failed, got %d", status.TotalFailed)
	}
	if status.TotalProcessed != 2 {
		t.Fatalf("expected 2 processed, got %d", status.TotalProcessed)
	}
}

func TestWaitingCap(t *testing.T) {
	q := New(1, 1)
	block := make(chan struct{})
	defer close(block)

	if _, err := q.Enqueue(func() (interface{}, error) { <-block; return nil, nil }); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if _, err := q.Enqueue(func() (interface{}, error) { return nil, nil }); err != nil {
		t.Fatalf("enqueue to waiting list failed: %v", err)
	}
	_, err := q.Enqueue(func() (interface{}, error) { return nil, nil })
	if !appErr.Is(err, appErr.QueueFull) {
		t.Fatalf("expected queue-full error, got %v", err)
	}
}

func TestShutdownFailsWaitingTasks(t *testing.T) {
	q := New(1, 0)
	block := make(chan struct{})

	running, err := q.Enqueue(func() (interface{}, error) { <-block; return "done", nil })
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	waiting, err := q.Enqueue(func() (interface{}, error) { return nil, nil })
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(block)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	if _, err := waiting.Wait(ctx); !appErr.Is(err, appErr.QueueShutdown) {
		t.Fatalf("expected shutdown error for waiting task, got %v", err)
	}
	if val, err := running.Wait(ctx); err != nil || val.(string) != "done" {
		t.Fatalf("in-flight task should finish normally, got %v/%v", val, err)
	}

	if _, err := q.Enqueue(func() (interface{}, error) { return nil, nil }); !appErr.Is(err, appErr.QueueShutdown) {
		t.Fatalf("expected enqueue after shutdown to fail, got %v", err)
	}
}

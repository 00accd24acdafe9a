// Package queue implements the bounded admission queue: a single-process
// FIFO dispatcher that caps how many submissions are in flight at once.
package queue

import (
	"container/list"
	"context"
	"sync"

	appErr "judgebox/pkg/errors"
)

// Task produces a result asynchronously once the queue admits it.
type Task func() (interface{}, error)

// Future completes with the task's outcome.
type Future struct {
	done chan struct{}
	val  interface{}
	err  error
}

// Wait blocks until the task finished or ctx is cancelled. Abandoning the
// future does not cancel the task.
func (f *Future) Wait(ctx context.Context) (interface{}, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *Future) complete(val interface{}, err error) {
	f.val = val
	f.err = err
	close(f.done)
}

// Status is an observational snapshot of the queue.
type Status struct {
	InFlight       int   `json:"inFlight"`
	Waiting        int   `json:"waiting"`
	MaxConcurrent  int   `json:"maxConcurrent"`
	TotalProcessed int64 `json:"totalProcessed"`
	TotalFailed    int64 `json:"totalFailed"`
}

type waiter struct {
	task   Task
	future *Future
}

// Queue admits tasks strictly in enqueue order while in-flight stays under
// the concurrency cap. Tasks are not cancellable once admitted.
type Queue struct {
	mu            sync.Mutex
	waiting       *list.List
	inFlight      int
	maxConcurrent int
	maxWaiting    int
	processed     int64
	failed        int64
	shutdown      bool
	drained       sync.WaitGroup
}

// New creates a queue with the given parallelism cap and waiting-list cap.
// maxWaiting <= 0 leaves the waiting list unbounded.
func New(maxConcurrent, maxWaiting int) *Queue {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Queue{
		waiting:       list.New(),
		maxConcurrent: maxConcurrent,
		maxWaiting:    maxWaiting,
	}
}

// Enqueue admits the task now if a slot is free, otherwise appends it to
// the waiting list. The returned future completes with the task outcome.
func (q *Queue) Enqueue(task Task) (*Future, error) {
	future := &Future{done: make(chan struct{})}

	q.mu.Lock()
	if q.shutdown {
		q.mu.Unlock()
		return nil, appErr.New(appErr.QueueShutdown)
	}
	if q.inFlight < q.maxConcurrent {
		q.inFlight++
		q.drained.Add(1)
		q.mu.Unlock()
		go q.run(task, future)
		return future, nil
	}
	if q.maxWaiting > 0 && q.waiting.Len() >= q.maxWaiting {
		q.mu.Unlock()
		return nil, appErr.New(appErr.QueueFull)
	}
	q.waiting.PushBack(waiter{task: task, future: future})
	q.mu.Unlock()
	return future, nil
}

// Status reports the current counters.
func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Status{
		InFlight:       q.inFlight,
		Waiting:        q.waiting.Len(),
		MaxConcurrent:  q.maxConcurrent,
		TotalProcessed: q.processed,
		TotalFailed:    q.failed,
	}
}

// Shutdown fails every waiting task and waits for in-flight work to
// finish, up to the ctx deadline. Further enqueues are rejected.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	q.shutdown = true
	for e := q.waiting.Front(); e != nil; e = e.Next() {
		w := e.Value.(waiter)
		w.future.complete(nil, appErr.New(appErr.QueueShutdown))
	}
	q.waiting.Init()
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.drained.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) run(task Task, future *Future) {
	val, err := task()

	q.mu.Lock()
	q.inFlight--
	q.processed++
	if err != nil {
		q.failed++
	}
	next := q.admitLocked()
	q.mu.Unlock()
	future.complete(val, err)
	q.drained.Done()

	if next != nil {
		go q.run(next.task, next.future)
	}
}

// admitLocked pops the next waiting task and claims a slot for it. Caller
// holds the lock.
func (q *Queue) admitLocked() *waiter {
	if q.shutdown || q.waiting.Len() == 0 || q.inFlight >= q.maxConcurrent {
		return nil
	}
	front := q.waiting.Front()
	q.waiting.Remove(front)
	w := front.Value.(waiter)
	q.inFlight++
	q.drained.Add(1)
	return &w
}

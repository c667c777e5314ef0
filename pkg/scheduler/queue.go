package scheduler

import (
	"context"
	"sync"
	"time"
)

// A Queue manages a set of scheduled jobs, each identified by a unique key. Scheduling a key
// that is already armed replaces the armed timer. Due keys are delivered on the channel
// returned by Fired. A firing from a job that was canceled or replaced before it could be
// delivered is discarded, so a consumer never sees a stale key.
//
// All methods are safe for concurrent use. Cancel is an idempotent no-op for keys that are
// not armed or already fired.
type Queue[K comparable] struct {
	fired      chan K
	lock       sync.Mutex
	jobs       map[K]*queuedJob
	generation uint64
}

type queuedJob struct {
	*Job
	generation uint64
}

// NewQueue returns an empty Queue.
func NewQueue[K comparable]() *Queue[K] {
	return &Queue[K]{
		fired: make(chan K, 16),
		jobs:  make(map[K]*queuedJob),
	}
}

// Fired returns the channel on which due keys are delivered.
func (q *Queue[K]) Fired() <-chan K {
	return q.fired
}

// Schedule arms a timer for key, replacing any timer already armed for it. When the timer
// fires, key is delivered on the Fired channel. The job is canceled when ctx is done.
func (q *Queue[K]) Schedule(ctx context.Context, key K, delay time.Duration) {
	q.lock.Lock()
	defer q.lock.Unlock()
	if e, ok := q.jobs[key]; ok {
		e.Cancel()
	}
	q.generation++
	generation := q.generation
	q.jobs[key] = &queuedJob{
		generation: generation,
		Job: Schedule(ctx, RunFunc(func(_ context.Context) error {
			q.fire(key, generation)
			return nil
		}), delay, nil),
	}
}

// Cancel disarms the timer for key, if one is armed.
func (q *Queue[K]) Cancel(key K) {
	q.lock.Lock()
	defer q.lock.Unlock()
	if e, ok := q.jobs[key]; ok {
		e.Cancel()
		delete(q.jobs, key)
	}
}

// Due reports whether a timer is armed for key and, if so, when it fires.
func (q *Queue[K]) Due(key K) (time.Time, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()
	if e, ok := q.jobs[key]; ok {
		return e.Job.Due(), true
	}
	return time.Time{}, false
}

// Len returns the number of armed timers.
func (q *Queue[K]) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return len(q.jobs)
}

func (q *Queue[K]) fire(key K, generation uint64) {
	q.lock.Lock()
	e, ok := q.jobs[key]
	if !ok || e.generation != generation {
		// canceled or replaced after the timer fired
		q.lock.Unlock()
		return
	}
	delete(q.jobs, key)
	q.lock.Unlock()
	q.fired <- key
}

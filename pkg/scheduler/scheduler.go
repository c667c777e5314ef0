// Package scheduler runs a task after a delay, as a cancelable job.
package scheduler

import (
	"context"
	"sync"
	"time"
)

// A Runnable is scheduled by Schedule to run after a delay.
type Runnable interface {
	Run(ctx context.Context) error
}

// RunFunc adapts an ordinary function to the Runnable interface.
type RunFunc func(ctx context.Context) error

// Run calls f.
func (f RunFunc) Run(ctx context.Context) error { return f(ctx) }

// Schedule runs the Runnable after waitTime. The returned Job can be canceled and queried
// for its due time and result. If done is not nil, the Job signals done when it finishes,
// whether it ran, failed or was canceled.
func Schedule(ctx context.Context, r Runnable, waitTime time.Duration, done chan<- struct{}) *Job {
	ctx2, cancel := context.WithCancel(ctx)
	j := Job{
		runnable: r,
		due:      time.Now().Add(waitTime),
		cancel:   cancel,
	}
	go j.run(ctx2, waitTime, done)
	return &j
}

// Job is a scheduled, running or completed task.
type Job struct {
	runnable Runnable
	due      time.Time
	cancel   context.CancelFunc
	state    state
	err      error
	lock     sync.RWMutex
}

func (j *Job) run(ctx context.Context, waitTime time.Duration, done chan<- struct{}) {
	j.setState(stateScheduled, nil)
	select {
	case <-ctx.Done():
		j.setState(stateCanceled, ErrCanceled)
	case <-time.After(waitTime):
		if err := j.runnable.Run(ctx); err != nil {
			j.setState(stateFailed, &errFailed{err: err})
		} else {
			j.setState(stateCompleted, nil)
		}
	}
	if done != nil {
		done <- struct{}{}
	}
}

// Due returns the time the job is, or was, due to run.
func (j *Job) Due() time.Time {
	return j.due
}

// Cancel stops a scheduled job. Canceling a job that already ran, or canceling it twice,
// is a no-op.
func (j *Job) Cancel() {
	j.cancel()
}

// Result returns whether the job is done and, if so, its outcome: nil if the job ran
// successfully, ErrCanceled if it was canceled, or ErrFailed (wrapping the task's error)
// if the task returned an error.
func (j *Job) Result() (bool, error) {
	j.lock.RLock()
	defer j.lock.RUnlock()
	return j.state.done(), j.err
}

func (j *Job) setState(state state, err error) {
	j.lock.Lock()
	defer j.lock.Unlock()
	j.state = state
	j.err = err
}

type state int

const (
	stateUnknown state = iota
	stateScheduled
	stateCanceled
	stateCompleted
	stateFailed
)

func (s state) done() bool {
	return s == stateCompleted || s == stateFailed || s == stateCanceled
}

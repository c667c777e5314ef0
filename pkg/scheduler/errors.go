package scheduler

import (
	"errors"
)

var (
	// ErrCanceled is reported by Result when the job was canceled before it ran.
	ErrCanceled = errors.New("job canceled")
	// ErrFailed is reported by Result when the job's task returned an error. Use errors.Is
	// to test for it; the task's error is available through errors.Unwrap.
	ErrFailed = &errFailed{}
)

type errFailed struct {
	err error
}

func (e *errFailed) Error() string {
	reason := "unknown reason"
	if e.err != nil {
		reason = e.err.Error()
	}
	return "job failed: " + reason
}

func (e *errFailed) Is(err error) bool {
	return err == ErrFailed
}

func (e *errFailed) Unwrap() error {
	return e.err
}

package scheduler_test

import (
	"context"
	"github.com/clambin/zoned/pkg/scheduler"
	"github.com/stretchr/testify/assert"
	"testing"
	"time"
)

type timerKey struct {
	name    string
	purpose string
}

func TestQueue(t *testing.T) {
	ctx := context.Background()
	q := scheduler.NewQueue[timerKey]()

	key := timerKey{name: "living room", purpose: "grace"}
	q.Schedule(ctx, key, 50*time.Millisecond)
	assert.Equal(t, 1, q.Len())

	_, armed := q.Due(key)
	assert.True(t, armed)

	select {
	case fired := <-q.Fired():
		assert.Equal(t, key, fired)
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	assert.Zero(t, q.Len())
	_, armed = q.Due(key)
	assert.False(t, armed)
}

func TestQueue_Cancel(t *testing.T) {
	ctx := context.Background()
	q := scheduler.NewQueue[timerKey]()

	key := timerKey{name: "door", purpose: "open"}
	q.Schedule(ctx, key, 50*time.Millisecond)
	q.Cancel(key)
	assert.Zero(t, q.Len())

	// canceling an unknown key is a no-op
	q.Cancel(timerKey{name: "window", purpose: "open"})

	select {
	case fired := <-q.Fired():
		t.Errorf("canceled timer fired: %v", fired)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestQueue_Reschedule(t *testing.T) {
	ctx := context.Background()
	q := scheduler.NewQueue[timerKey]()

	// rescheduling replaces the armed timer: only one firing is delivered
	key := timerKey{name: "door", purpose: "open"}
	q.Schedule(ctx, key, 50*time.Millisecond)
	q.Schedule(ctx, key, 100*time.Millisecond)
	assert.Equal(t, 1, q.Len())

	start := time.Now()
	select {
	case <-q.Fired():
		assert.GreaterOrEqual(t, time.Since(start), 75*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}

	select {
	case fired := <-q.Fired():
		t.Errorf("replaced timer fired: %v", fired)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestQueue_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := scheduler.NewQueue[timerKey]()

	q.Schedule(ctx, timerKey{name: "door", purpose: "open"}, 50*time.Millisecond)
	cancel()

	select {
	case fired := <-q.Fired():
		t.Errorf("timer fired after context cancellation: %v", fired)
	case <-time.After(200 * time.Millisecond):
	}
}

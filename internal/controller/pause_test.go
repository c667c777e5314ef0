package controller

import (
	"testing"
	"time"

	"github.com/clambin/zoned/internal/poller"
	"github.com/clambin/zoned/pkg/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPauseMonitor(t *testing.T) (*pauseMonitor, *scheduler.Queue[timerKey]) {
	t.Helper()
	queue := scheduler.NewQueue[timerKey]()
	return newPauseMonitor("home", 5*time.Minute, 5*time.Minute, queue), queue
}

func TestPauseMonitor(t *testing.T) {
	ctx := t.Context()
	p, queue := newTestPauseMonitor(t)
	p.noteMode(poller.ModeHeat)

	// the front door opens. the open countdown starts.
	start := time.Now()
	outcome := p.observe(ctx, []string{"door.front"}, start)
	assert.True(t, outcome.changed)
	assert.Equal(t, pausePendingPause, p.state)
	due, armed := queue.Due(timerKey{timerPauseOpen, "door.front"})
	require.True(t, armed)
	assert.WithinDuration(t, start.Add(5*time.Minute), due, time.Second)

	// five minutes later the door is still open: pause
	outcome = p.openElapsed("door.front")
	assert.True(t, outcome.turnedOff)
	assert.Equal(t, "door.front", outcome.triggeredBy)
	assert.True(t, p.paused())

	// the door closes. the close countdown starts.
	outcome = p.observe(ctx, nil, start.Add(6*time.Minute))
	assert.True(t, outcome.changed)
	assert.Equal(t, pausePendingResume, p.state)
	_, armed = queue.Due(timerKey{timerPauseClose, "home"})
	assert.True(t, armed)

	// five more minutes: resume with the mode captured before the pause
	outcome = p.closeElapsed()
	assert.True(t, outcome.resumed)
	assert.Equal(t, poller.ModeHeat, outcome.restoreMode)
	assert.Equal(t, pauseRunning, p.state)
}

func TestPauseMonitor_SensorClosesInTime(t *testing.T) {
	ctx := t.Context()
	p, queue := newTestPauseMonitor(t)

	start := time.Now()
	p.observe(ctx, []string{"window.kitchen"}, start)
	require.Equal(t, pausePendingPause, p.state)

	outcome := p.observe(ctx, nil, start.Add(time.Minute))
	assert.True(t, outcome.changed)
	assert.Equal(t, pauseRunning, p.state)
	_, armed := queue.Due(timerKey{timerPauseOpen, "window.kitchen"})
	assert.False(t, armed)

	// a firing that raced with the closure is discarded
	assert.Equal(t, pauseOutcome{}, p.openElapsed("window.kitchen"))
	assert.False(t, p.paused())
}

func TestPauseMonitor_CountdownMovesToNextSensor(t *testing.T) {
	ctx := t.Context()
	p, queue := newTestPauseMonitor(t)

	// the front door opens, the back door two minutes later
	start := time.Now()
	p.observe(ctx, []string{"door.front"}, start)
	p.observe(ctx, []string{"door.front", "door.back"}, start.Add(2*time.Minute))
	require.Equal(t, pausePendingPause, p.state)
	require.Equal(t, "door.front", p.pending)

	// the front door closes. the back door has been open for a minute, so it
	// takes over the countdown with four minutes left.
	outcome := p.observe(ctx, []string{"door.back"}, start.Add(3*time.Minute))
	assert.True(t, outcome.changed)
	assert.Equal(t, "door.back", p.pending)
	_, armed := queue.Due(timerKey{timerPauseOpen, "door.front"})
	assert.False(t, armed)
	due, armed := queue.Due(timerKey{timerPauseOpen, "door.back"})
	require.True(t, armed)
	assert.WithinDuration(t, time.Now().Add(4*time.Minute), due, time.Second)

	outcome = p.openElapsed("door.back")
	assert.True(t, outcome.turnedOff)
	assert.Equal(t, "door.back", outcome.triggeredBy)
}

func TestPauseMonitor_TakeoverPastTimeout(t *testing.T) {
	ctx := t.Context()
	p, _ := newTestPauseMonitor(t)

	// both doors open together. "a" wins the tie and keys the countdown.
	start := time.Now()
	p.observe(ctx, []string{"door.a", "door.b"}, start)
	require.Equal(t, "door.a", p.pending)

	// "a" closes after six minutes. "b" has already been open past the
	// timeout, so the pause happens immediately.
	outcome := p.observe(ctx, []string{"door.b"}, start.Add(6*time.Minute))
	assert.True(t, outcome.turnedOff)
	assert.Equal(t, "door.b", outcome.triggeredBy)
	assert.True(t, p.paused())
}

func TestPauseMonitor_ReopenDuringPendingResume(t *testing.T) {
	ctx := t.Context()
	p, queue := newTestPauseMonitor(t)

	start := time.Now()
	p.observe(ctx, []string{"window.kitchen"}, start)
	require.True(t, p.openElapsed("window.kitchen").turnedOff)
	p.observe(ctx, nil, start.Add(6*time.Minute))
	require.Equal(t, pausePendingResume, p.state)
	assert.False(t, p.paused())
	assert.True(t, p.suppressed())

	// the window reopens: back to paused, resume countdown canceled
	outcome := p.observe(ctx, []string{"window.kitchen"}, start.Add(7*time.Minute))
	assert.True(t, outcome.changed)
	assert.True(t, p.paused())
	_, armed := queue.Due(timerKey{timerPauseClose, "home"})
	assert.False(t, armed)
	assert.Equal(t, pauseOutcome{}, p.closeElapsed())
}

func TestPauseMonitor_Forced(t *testing.T) {
	ctx := t.Context()
	p, queue := newTestPauseMonitor(t)
	p.noteMode(poller.ModeCool)

	outcome := p.forcePause()
	assert.True(t, outcome.turnedOff)
	assert.Equal(t, "manual", outcome.triggeredBy)
	assert.True(t, p.paused())

	// already paused: no-op
	assert.Equal(t, pauseOutcome{}, p.forcePause())

	// with no sensors involved, the pause holds until resumed
	assert.Equal(t, pauseOutcome{}, p.observe(ctx, nil, time.Now()))
	assert.True(t, p.paused())

	outcome = p.forceResume()
	assert.True(t, outcome.resumed)
	assert.Equal(t, poller.ModeCool, outcome.restoreMode)

	// already running: no-op
	assert.Equal(t, pauseOutcome{}, p.forceResume())

	// a forced pause during the open countdown cancels the timer
	start := time.Now()
	p.observe(ctx, []string{"door.front"}, start)
	require.Equal(t, pausePendingPause, p.state)
	assert.True(t, p.forcePause().turnedOff)
	_, armed := queue.Due(timerKey{timerPauseOpen, "door.front"})
	assert.False(t, armed)

	// a forced resume with the door still open starts a fresh countdown
	require.True(t, p.forceResume().resumed)
	p.observe(ctx, []string{"door.front"}, start.Add(10*time.Minute))
	due, armed := queue.Due(timerKey{timerPauseOpen, "door.front"})
	require.True(t, armed)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), due, time.Second)
}

func TestPauseMonitor_ModeTracking(t *testing.T) {
	ctx := t.Context()
	p, _ := newTestPauseMonitor(t)

	// the user switched to cool before the door opened
	p.noteMode(poller.ModeHeat)
	p.noteMode(poller.ModeCool)

	start := time.Now()
	p.observe(ctx, []string{"door.front"}, start)
	require.True(t, p.openElapsed("door.front").turnedOff)

	// our own forced off is not recorded
	p.noteMode(poller.ModeOff)

	p.observe(ctx, nil, start.Add(6*time.Minute))
	outcome := p.closeElapsed()
	assert.True(t, outcome.resumed)
	assert.Equal(t, poller.ModeCool, outcome.restoreMode)
}

func TestPauseMonitor_UserLiftsPause(t *testing.T) {
	ctx := t.Context()
	p, _ := newTestPauseMonitor(t)
	p.noteMode(poller.ModeHeat)

	start := time.Now()
	p.observe(ctx, []string{"door.front"}, start)
	require.True(t, p.openElapsed("door.front").turnedOff)

	// the user turns the thermostat back on with the door still open: the
	// pause is lifted and their choice sticks
	outcome := p.noteMode(poller.ModeCool)
	assert.True(t, outcome.resumed)
	assert.Equal(t, poller.ModeCool, outcome.restoreMode)
	assert.Equal(t, pauseRunning, p.state)
}

func TestPauseMonitor_OffDuringResumeCountdown(t *testing.T) {
	ctx := t.Context()
	p, _ := newTestPauseMonitor(t)
	p.noteMode(poller.ModeHeat)

	start := time.Now()
	p.observe(ctx, []string{"door.front"}, start)
	require.True(t, p.openElapsed("door.front").turnedOff)
	p.observe(ctx, nil, start.Add(6*time.Minute))
	require.Equal(t, pausePendingResume, p.state)

	// the thermostat still reports the off we forced at pause time. that is
	// not a user choice: the resume restores the pre-pause mode.
	assert.Equal(t, pauseOutcome{}, p.noteMode(poller.ModeOff))
	outcome := p.closeElapsed()
	assert.True(t, outcome.resumed)
	assert.Equal(t, poller.ModeHeat, outcome.restoreMode)
}

func TestPauseMonitor_UserReengagesDuringResumeCountdown(t *testing.T) {
	ctx := t.Context()
	p, queue := newTestPauseMonitor(t)
	p.noteMode(poller.ModeHeat)

	start := time.Now()
	p.observe(ctx, []string{"door.front"}, start)
	require.True(t, p.openElapsed("door.front").turnedOff)
	p.observe(ctx, nil, start.Add(6*time.Minute))
	require.Equal(t, pausePendingResume, p.state)

	// the user re-engages the thermostat before the countdown completes: the
	// pause lifts immediately and the close timer is canceled
	outcome := p.noteMode(poller.ModeCool)
	assert.True(t, outcome.resumed)
	assert.Equal(t, poller.ModeCool, outcome.restoreMode)
	assert.Equal(t, pauseRunning, p.state)
	_, armed := queue.Due(timerKey{timerPauseClose, "home"})
	assert.False(t, armed)
}

func TestPauseMonitor_Restore(t *testing.T) {
	ctx := t.Context()
	p, queue := newTestPauseMonitor(t)

	// paused before the restart, sensor closed while we were down: the
	// resume countdown starts on the first observation
	p.restore(true, poller.ModeHeat, "door.front")
	require.True(t, p.paused())
	outcome := p.observe(ctx, nil, time.Now())
	assert.True(t, outcome.changed)
	assert.Equal(t, pausePendingResume, p.state)
	_, armed := queue.Due(timerKey{timerPauseClose, "home"})
	assert.True(t, armed)

	outcome = p.closeElapsed()
	assert.True(t, outcome.resumed)
	assert.Equal(t, poller.ModeHeat, outcome.restoreMode)
}

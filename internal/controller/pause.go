package controller

import (
	"context"
	"slices"
	"time"

	"github.com/clambin/zoned/internal/poller"
	"github.com/clambin/zoned/pkg/scheduler"
)

type pauseState int

const (
	pauseRunning pauseState = iota
	pausePendingPause
	pausePaused
	pausePendingResume
)

var pauseStateNames = map[pauseState]string{
	pauseRunning:       "running",
	pausePendingPause:  "pending-pause",
	pausePaused:        "paused",
	pausePendingResume: "pending-resume",
}

func (s pauseState) String() string {
	return pauseStateNames[s]
}

// pauseOutcome tells the caller what a pause transition requires of it.
// turnedOff means the thermostat must be forced off. resumed means the
// thermostat should be restored to restoreMode.
type pauseOutcome struct {
	changed     bool
	turnedOff   bool
	resumed     bool
	restoreMode poller.SystemMode
	triggeredBy string
}

// pauseMonitor decides when climate control must pause because a door or
// window is open. A sensor that stays open for openTimeout pauses the
// controller; once all sensors have been closed for closeTimeout, it resumes.
//
// previousMode follows every externally made mode change, so a resume restores
// the mode the user last chose rather than the mode that happened to be set
// when the sensor opened.
type pauseMonitor struct {
	queue        *scheduler.Queue[timerKey]
	openSince    map[string]time.Time
	entry        string
	openTimeout  time.Duration
	closeTimeout time.Duration
	state        pauseState
	pending      string
	previousMode poller.SystemMode
	triggeredBy  string
	// resumeWhenClear makes the first all-closed observation start the resume
	// countdown, covering sensors that closed while the controller was down.
	resumeWhenClear bool
}

func newPauseMonitor(entry string, openTimeout, closeTimeout time.Duration, queue *scheduler.Queue[timerKey]) *pauseMonitor {
	return &pauseMonitor{
		queue:        queue,
		openSince:    make(map[string]time.Time),
		entry:        entry,
		openTimeout:  openTimeout,
		closeTimeout: closeTimeout,
	}
}

// restore seeds the monitor from persisted state.
func (p *pauseMonitor) restore(paused bool, previousMode poller.SystemMode, triggeredBy string) {
	if !paused {
		return
	}
	p.state = pausePaused
	p.previousMode = previousMode
	p.triggeredBy = triggeredBy
	p.resumeWhenClear = true
}

func (p *pauseMonitor) paused() bool {
	return p.state == pausePaused
}

// suppressed reports whether the thermostat is being held off: while paused,
// and while waiting out the close timeout.
func (p *pauseMonitor) suppressed() bool {
	return p.state == pausePaused || p.state == pausePendingResume
}

func (p *pauseMonitor) openSensors() []string {
	sensors := make([]string, 0, len(p.openSince))
	for sensor := range p.openSince {
		sensors = append(sensors, sensor)
	}
	slices.Sort(sensors)
	return sensors
}

// noteMode records an externally observed thermostat mode. While the
// thermostat is suppressed, off is our own doing and is ignored; any other
// mode means the user re-engaged the thermostat, which lifts the pause.
func (p *pauseMonitor) noteMode(mode poller.SystemMode) pauseOutcome {
	if p.suppressed() {
		if mode == poller.ModeOff {
			return pauseOutcome{}
		}
		if p.state == pausePendingResume {
			p.queue.Cancel(timerKey{timerPauseClose, p.entry})
		}
		// open sensors are forgotten so the lift isn't immediately undone
		p.previousMode = mode
		clear(p.openSince)
		return p.resume()
	}
	p.previousMode = mode
	return pauseOutcome{}
}

// observe reconciles the monitor with the current contact states and runs any
// transitions they trigger. open lists the sensors currently reporting open.
func (p *pauseMonitor) observe(ctx context.Context, open []string, now time.Time) pauseOutcome {
	hadOpen := len(p.openSince) > 0 || p.resumeWhenClear
	p.resumeWhenClear = false

	current := make(map[string]struct{}, len(open))
	for _, sensor := range open {
		current[sensor] = struct{}{}
		if _, ok := p.openSince[sensor]; !ok {
			p.openSince[sensor] = now
		}
	}
	for sensor := range p.openSince {
		if _, ok := current[sensor]; !ok {
			delete(p.openSince, sensor)
		}
	}

	switch p.state {
	case pauseRunning:
		if len(p.openSince) > 0 {
			return p.armPause(ctx, now)
		}
	case pausePendingPause:
		if _, stillOpen := p.openSince[p.pending]; stillOpen {
			break
		}
		p.queue.Cancel(timerKey{timerPauseOpen, p.pending})
		if len(p.openSince) == 0 {
			p.state = pauseRunning
			return pauseOutcome{changed: true}
		}
		// another sensor is still open. it takes over the countdown with the
		// time it has left.
		return p.armPause(ctx, now)
	case pausePaused:
		if hadOpen && len(p.openSince) == 0 {
			p.state = pausePendingResume
			p.queue.Schedule(ctx, timerKey{timerPauseClose, p.entry}, p.closeTimeout)
			return pauseOutcome{changed: true}
		}
	case pausePendingResume:
		if len(p.openSince) > 0 {
			p.queue.Cancel(timerKey{timerPauseClose, p.entry})
			p.state = pausePaused
			return pauseOutcome{changed: true}
		}
	}
	return pauseOutcome{}
}

// armPause moves to pending-pause keyed to the longest-open sensor. If that
// sensor has already been open for openTimeout, the pause happens immediately.
func (p *pauseMonitor) armPause(ctx context.Context, now time.Time) pauseOutcome {
	sensor, since := p.earliestOpen()
	p.state = pausePendingPause
	p.pending = sensor
	if remaining := p.openTimeout - now.Sub(since); remaining > 0 {
		p.queue.Schedule(ctx, timerKey{timerPauseOpen, sensor}, remaining)
		return pauseOutcome{changed: true}
	}
	return p.pause(sensor)
}

func (p *pauseMonitor) earliestOpen() (string, time.Time) {
	var sensor string
	var since time.Time
	for s, t := range p.openSince {
		if sensor == "" || t.Before(since) || (t.Equal(since) && s < sensor) {
			sensor, since = s, t
		}
	}
	return sensor, since
}

func (p *pauseMonitor) pause(sensor string) pauseOutcome {
	p.state = pausePaused
	p.pending = ""
	p.triggeredBy = sensor
	return pauseOutcome{changed: true, turnedOff: true, triggeredBy: sensor}
}

// openElapsed handles the open timer firing for sensor.
func (p *pauseMonitor) openElapsed(sensor string) pauseOutcome {
	if p.state != pausePendingPause || p.pending != sensor {
		return pauseOutcome{}
	}
	if _, stillOpen := p.openSince[sensor]; !stillOpen {
		return pauseOutcome{}
	}
	return p.pause(sensor)
}

// closeElapsed handles the close timer firing.
func (p *pauseMonitor) closeElapsed() pauseOutcome {
	if p.state != pausePendingResume || len(p.openSince) > 0 {
		return pauseOutcome{}
	}
	return p.resume()
}

func (p *pauseMonitor) resume() pauseOutcome {
	p.state = pauseRunning
	p.triggeredBy = ""
	return pauseOutcome{changed: true, resumed: true, restoreMode: p.previousMode}
}

// forcePause pauses immediately, canceling any pending timer. A no-op when
// already paused.
func (p *pauseMonitor) forcePause() pauseOutcome {
	switch p.state {
	case pausePaused:
		return pauseOutcome{}
	case pausePendingPause:
		p.queue.Cancel(timerKey{timerPauseOpen, p.pending})
	case pausePendingResume:
		p.queue.Cancel(timerKey{timerPauseClose, p.entry})
	}
	return p.pause("manual")
}

// forceResume resumes immediately, canceling any pending timer. Open sensors
// are forgotten and start a fresh countdown on the next observation. A no-op
// when already running.
func (p *pauseMonitor) forceResume() pauseOutcome {
	switch p.state {
	case pauseRunning:
		return pauseOutcome{}
	case pausePendingPause:
		p.queue.Cancel(timerKey{timerPauseOpen, p.pending})
		p.state = pauseRunning
		p.pending = ""
		clear(p.openSince)
		return pauseOutcome{changed: true}
	case pausePendingResume:
		p.queue.Cancel(timerKey{timerPauseClose, p.entry})
	}
	clear(p.openSince)
	return p.resume()
}

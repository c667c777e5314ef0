package controller

import (
	"time"

	"github.com/clambin/zoned/internal/configuration"
)

// engine decides whether the thermostat should run, enforcing the
// equipment's minimum on and off times.
type engine struct {
	minimumOn  time.Duration
	minimumOff time.Duration
	running    bool
	lastOn     time.Time
	lastOff    time.Time
}

func newEngine(cfg configuration.CycleConfiguration) *engine {
	return &engine{minimumOn: cfg.MinimumOn, minimumOff: cfg.MinimumOff}
}

// restore seeds the engine from persisted state.
func (e *engine) restore(running bool, lastOn, lastOff time.Time) {
	e.running = running
	e.lastOn = lastOn
	e.lastOff = lastOff
}

// noteExternal syncs the engine with an equipment state change the engine
// did not command. The cycle timestamps follow the equipment, so protection
// windows stay anchored to when it actually switched.
func (e *engine) noteExternal(running bool, now time.Time) bool {
	if running == e.running {
		return false
	}
	e.running = running
	if running {
		e.lastOn = now
	} else {
		e.lastOff = now
	}
	return true
}

// apply moves the engine toward want. It reports whether the state changed
// and whether a wanted transition was blocked by cycle protection. A blocked
// transition is not dropped: evaluations recur on every event, so it is
// retried until the protection window has passed.
func (e *engine) apply(want bool, now time.Time) (changed, blocked bool) {
	if want == e.running {
		return false, false
	}
	if want {
		if !e.lastOff.IsZero() && now.Sub(e.lastOff) < e.minimumOff {
			return false, true
		}
		e.running = true
		e.lastOn = now
		return true, false
	}
	if !e.lastOn.IsZero() && now.Sub(e.lastOn) < e.minimumOn {
		return false, true
	}
	e.running = false
	e.lastOff = now
	return true, false
}

package controller

import (
	"context"
	"time"

	"github.com/clambin/zoned/internal/configuration"
	"github.com/clambin/zoned/pkg/scheduler"
)

// occupancyTracker maintains one room's occupied and active states. A room
// becomes active after being continuously occupied for the configured minimum
// time, and stays active while occupied. When the room empties, a grace timer
// keeps it active; reoccupation within the grace window cancels the timer.
//
// Timer firings are validated against current state before they take effect,
// so a firing that raced with a sensor update is discarded.
type occupancyTracker struct {
	queue         *scheduler.Queue[timerKey]
	room          string
	minimumTime   time.Duration
	gracePeriod   time.Duration
	occupied      bool
	active        bool
	occupiedSince time.Time
	activeSince   time.Time
	graceDeadline time.Time
}

func newOccupancyTracker(room string, cfg configuration.OccupancyConfiguration, queue *scheduler.Queue[timerKey]) *occupancyTracker {
	return &occupancyTracker{
		queue:       queue,
		room:        room,
		minimumTime: cfg.MinimumTime,
		gracePeriod: cfg.GracePeriod,
	}
}

// restore seeds the tracker from persisted state. occupied is left false:
// the first update after start-up reports the actual sensor state, and
// setPresence reconciles from there.
func (o *occupancyTracker) restore(active bool, occupiedSince, activeSince time.Time) {
	o.active = active
	o.occupiedSince = occupiedSince
	o.activeSince = activeSince
}

// setPresence applies the room's combined sensor state and reports whether
// occupied or active changed.
func (o *occupancyTracker) setPresence(ctx context.Context, present bool, now time.Time) bool {
	if present {
		return o.setPresent(ctx, now)
	}
	return o.setAbsent(ctx, now)
}

func (o *occupancyTracker) setPresent(ctx context.Context, now time.Time) bool {
	o.queue.Cancel(timerKey{timerOccupancyGrace, o.room})
	o.graceDeadline = time.Time{}
	if o.occupied {
		return false
	}
	o.occupied = true
	if o.active {
		// reoccupied while the grace timer was running. active is retained, and
		// occupiedSince is repaired if it no longer covers the minimum time, so
		// that active implies a sufficiently old occupiedSince.
		if o.occupiedSince.IsZero() || now.Sub(o.occupiedSince) < o.minimumTime {
			o.occupiedSince = now.Add(-(o.minimumTime + time.Minute))
		}
		return true
	}
	if o.occupiedSince.IsZero() {
		o.occupiedSince = now
	}
	o.queue.Schedule(ctx, timerKey{timerOccupancyMinimum, o.room}, o.minimumTime-now.Sub(o.occupiedSince))
	return true
}

func (o *occupancyTracker) setAbsent(ctx context.Context, now time.Time) bool {
	if !o.occupied {
		// a restored active room may start out empty. start the grace window so
		// it does not stay active indefinitely.
		if o.active && o.graceDeadline.IsZero() {
			o.graceDeadline = now.Add(o.gracePeriod)
			o.queue.Schedule(ctx, timerKey{timerOccupancyGrace, o.room}, o.gracePeriod)
			return true
		}
		return false
	}
	o.occupied = false
	o.queue.Cancel(timerKey{timerOccupancyMinimum, o.room})
	if o.active {
		o.graceDeadline = now.Add(o.gracePeriod)
		o.queue.Schedule(ctx, timerKey{timerOccupancyGrace, o.room}, o.gracePeriod)
	} else {
		o.occupiedSince = time.Time{}
	}
	return true
}

// minimumElapsed handles the minimum occupancy timer firing. It reports
// whether the room became active.
func (o *occupancyTracker) minimumElapsed(now time.Time) bool {
	if !o.occupied || o.active || o.occupiedSince.IsZero() || now.Sub(o.occupiedSince) < o.minimumTime {
		return false
	}
	o.active = true
	o.activeSince = now
	return true
}

// graceElapsed handles the grace timer firing. It reports whether the room
// became inactive.
func (o *occupancyTracker) graceElapsed() bool {
	if o.occupied || !o.active {
		return false
	}
	o.active = false
	o.occupiedSince = time.Time{}
	o.activeSince = time.Time{}
	o.graceDeadline = time.Time{}
	return true
}

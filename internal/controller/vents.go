package controller

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/clambin/zoned/internal/configuration"
	"github.com/clambin/zoned/pkg/scheduler"
)

const (
	ventConfirmTimeout = time.Minute
	ventConfirmRetries = 3
)

type ventCommand struct {
	vent string
	open bool
}

type ventState struct {
	lastChange    time.Time
	id            string
	room          string
	members       int
	retries       int
	commanded     bool
	haveCommanded bool
	reported      bool
	haveReported  bool
	online        bool
	haveOnline    bool
	confirmed     bool
	unresponsive  bool
}

type roomVents struct {
	delay   time.Duration
	desired bool
	ready   bool
}

// ventSelector decides which vents are open. A room's vents open when the
// room is critical, actively evaluated and not satiated, or simply occupied.
// Opens are delayed by the room's vent open delay, commands are debounced,
// and a minimum number of vents is kept open to protect the equipment
// against running with all vents closed.
type ventSelector struct {
	queue       *scheduler.Queue[timerKey]
	rooms       map[string]*roomVents
	vents       map[string]*ventState
	roomOrder   []string
	ventOrder   []string
	minimumOpen int
	debounce    time.Duration
}

func newVentSelector(cfg configuration.ControllerConfiguration, queue *scheduler.Queue[timerKey]) *ventSelector {
	v := ventSelector{
		queue:    queue,
		rooms:    make(map[string]*roomVents),
		vents:    make(map[string]*ventState),
		debounce: cfg.Vents.Debounce,
	}
	if cfg.Vents.MinimumOpen != nil {
		v.minimumOpen = *cfg.Vents.MinimumOpen
	} else {
		v.minimumOpen = min(5, cfg.VentMembers())
	}
	for _, room := range cfg.Rooms {
		v.rooms[room.Name] = &roomVents{delay: room.VentOpenDelay}
		v.roomOrder = append(v.roomOrder, room.Name)
		for _, vent := range room.Vents {
			v.vents[vent.ID] = &ventState{id: vent.ID, room: room.Name, members: vent.Members}
			v.ventOrder = append(v.ventOrder, vent.ID)
		}
	}
	return &v
}

// evaluate reconciles the vents with the current room evaluations and
// returns the commands to issue.
func (v *ventSelector) evaluate(ctx context.Context, evaluations []roomEvaluation, now time.Time) []ventCommand {
	byRoom := make(map[string]roomEvaluation, len(evaluations))
	for _, e := range evaluations {
		byRoom[e.room] = e
	}

	for _, room := range v.roomOrder {
		rv := v.rooms[room]
		e := byRoom[room]
		desired := e.critical || (e.classification == ClassificationActive && !e.satiated) || e.occupied
		if desired == rv.desired {
			continue
		}
		rv.desired = desired
		if !desired {
			rv.ready = false
			v.queue.Cancel(timerKey{timerVentOpenDelay, room})
			continue
		}
		if rv.delay <= 0 {
			rv.ready = true
			continue
		}
		v.queue.Schedule(ctx, timerKey{timerVentOpenDelay, room}, rv.delay)
	}

	// the would-be open set. unresponsive vents don't count toward the
	// minimum: we can't know their position.
	target := make(map[string]bool, len(v.vents))
	var openMembers int
	for _, id := range v.ventOrder {
		vs := v.vents[id]
		open := v.rooms[vs.room].ready
		target[id] = open
		if open && !vs.unresponsive {
			openMembers += vs.members
		}
	}

	// top up from the rooms furthest from their target
	forced := make(map[string]bool)
	if openMembers < v.minimumOpen {
		candidates := make([]*ventState, 0, len(v.vents))
		for _, id := range v.ventOrder {
			if vs := v.vents[id]; !target[id] && !vs.unresponsive {
				candidates = append(candidates, vs)
			}
		}
		slices.SortFunc(candidates, func(a, b *ventState) int {
			if c := cmp.Compare(byRoom[b.room].distance, byRoom[a.room].distance); c != 0 {
				return c
			}
			if c := cmp.Compare(a.room, b.room); c != 0 {
				return c
			}
			return cmp.Compare(a.id, b.id)
		})
		for _, vs := range candidates {
			if openMembers >= v.minimumOpen {
				break
			}
			forced[vs.id] = true
			openMembers += vs.members
		}
	}

	var commands []ventCommand
	for _, id := range v.ventOrder {
		vs := v.vents[id]
		if vs.unresponsive {
			continue
		}
		want := target[id] || forced[id]
		need := !vs.haveCommanded || want != vs.commanded
		if !need && vs.haveReported && vs.reported != vs.commanded {
			// the vent moved on its own. re-command unless a confirm cycle is
			// already chasing it.
			if _, armed := v.queue.Due(timerKey{timerVentConfirm, id}); !armed {
				need = true
			}
		}
		if !need {
			continue
		}
		if vs.haveReported && vs.reported == want {
			// already in position: adopt the state without a command
			vs.commanded = want
			vs.haveCommanded = true
			if !vs.confirmed {
				vs.confirmed = true
				vs.retries = 0
				v.queue.Cancel(timerKey{timerVentConfirm, id})
			}
			continue
		}
		// a forced open overrides the debounce: the minimum is a safety floor
		if vs.haveCommanded && now.Sub(vs.lastChange) < v.debounce && !(want && forced[id]) {
			continue
		}
		vs.commanded = want
		vs.haveCommanded = true
		vs.lastChange = now
		vs.confirmed = false
		vs.retries = 0
		v.queue.Schedule(ctx, timerKey{timerVentConfirm, id}, ventConfirmTimeout)
		commands = append(commands, ventCommand{vent: id, open: want})
	}
	return commands
}

// delayElapsed handles a room's vent open delay firing. It reports whether
// the room's vents are now allowed to open, in which case the caller should
// re-evaluate.
func (v *ventSelector) delayElapsed(room string) bool {
	rv, ok := v.rooms[room]
	if !ok || !rv.desired || rv.ready {
		return false
	}
	rv.ready = true
	return true
}

// confirmElapsed handles a vent's confirm timer firing. It returns the
// command to retry, if any, and reports whether the vent was given up on.
func (v *ventSelector) confirmElapsed(ctx context.Context, vent string) (*ventCommand, bool) {
	v.queue.Cancel(timerKey{timerVentConfirm, vent})
	vs, ok := v.vents[vent]
	if !ok || !vs.haveCommanded || vs.confirmed || vs.unresponsive {
		return nil, false
	}
	vs.retries++
	if vs.retries > ventConfirmRetries {
		vs.unresponsive = true
		return nil, true
	}
	v.queue.Schedule(ctx, timerKey{timerVentConfirm, vent}, ventConfirmTimeout)
	return &ventCommand{vent: vent, open: vs.commanded}, false
}

// noteReported records a vent's reported state. Updates repeat the last
// known state, so only a change counts: a changed report marks the vent
// responsive again.
func (v *ventSelector) noteReported(vent string, open bool) {
	vs, ok := v.vents[vent]
	if !ok || (vs.haveReported && vs.reported == open) {
		return
	}
	vs.reported = open
	vs.haveReported = true
	vs.unresponsive = false
	if !vs.haveCommanded {
		return
	}
	if vs.reported == vs.commanded {
		if !vs.confirmed {
			vs.confirmed = true
			vs.retries = 0
			v.queue.Cancel(timerKey{timerVentConfirm, vent})
		}
		return
	}
	vs.confirmed = false
}

// noteOnline records a vent's availability. Offline vents are excluded from
// the minimum accounting and left alone until they come back.
func (v *ventSelector) noteOnline(vent string, online bool) {
	vs, ok := v.vents[vent]
	if !ok || (vs.haveOnline && vs.online == online) {
		return
	}
	vs.online = online
	vs.haveOnline = true
	vs.unresponsive = !online
	if !online {
		vs.retries = 0
	}
}

// statuses returns the state of every vent, in configuration order.
func (v *ventSelector) statuses() []VentStatus {
	statuses := make([]VentStatus, 0, len(v.ventOrder))
	for _, id := range v.ventOrder {
		vs := v.vents[id]
		statuses = append(statuses, VentStatus{
			ID:           vs.id,
			Room:         vs.room,
			Members:      vs.members,
			Open:         vs.haveCommanded && vs.commanded,
			Confirmed:    vs.confirmed,
			Unresponsive: vs.unresponsive,
		})
	}
	return statuses
}

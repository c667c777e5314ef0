package controller

import (
	"testing"
	"time"

	"github.com/clambin/zoned/internal/configuration"
	"github.com/clambin/zoned/pkg/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ventsConfig(minimumOpen int, debounce time.Duration, rooms ...configuration.RoomConfiguration) configuration.ControllerConfiguration {
	return configuration.ControllerConfiguration{
		Name:  "home",
		Vents: configuration.VentConfiguration{MinimumOpen: &minimumOpen, Debounce: debounce},
		Rooms: rooms,
	}
}

func room(name string, vents ...configuration.RoomVentConfiguration) configuration.RoomConfiguration {
	return configuration.RoomConfiguration{Name: name, Vents: vents}
}

func vent(id string) configuration.RoomVentConfiguration {
	return configuration.RoomVentConfiguration{ID: id, Members: 1}
}

func commandMap(commands []ventCommand) map[string]bool {
	m := make(map[string]bool, len(commands))
	for _, c := range commands {
		m[c.vent] = c.open
	}
	return m
}

func TestVentSelector(t *testing.T) {
	ctx := t.Context()
	queue := scheduler.NewQueue[timerKey]()
	v := newVentSelector(ventsConfig(1, 0,
		room("living room", vent("vent.living")),
		room("study", vent("vent.study")),
	), queue)

	// nobody home. the floor keeps the furthest room's vent open.
	evaluations := []roomEvaluation{
		{room: "living room", distance: 0.5},
		{room: "study", distance: 2.0},
	}
	commands := commandMap(v.evaluate(ctx, evaluations, time.Now()))
	assert.Equal(t, map[string]bool{"vent.living": false, "vent.study": true}, commands)

	// the living room becomes occupied: its vent opens and the floor no
	// longer needs the study
	evaluations[0].occupied = true
	commands = commandMap(v.evaluate(ctx, evaluations, time.Now()))
	assert.Equal(t, map[string]bool{"vent.living": true, "vent.study": false}, commands)

	// steady state: nothing to command
	assert.Empty(t, v.evaluate(ctx, evaluations, time.Now()))
}

func TestVentSelector_DesiredOpen(t *testing.T) {
	tests := []struct {
		name       string
		evaluation roomEvaluation
		want       bool
	}{
		{
			name:       "idle room",
			evaluation: roomEvaluation{room: "study"},
			want:       false,
		},
		{
			name:       "occupied",
			evaluation: roomEvaluation{room: "study", occupied: true},
			want:       true,
		},
		{
			name:       "active and not satiated",
			evaluation: roomEvaluation{room: "study", active: true, included: true, classification: ClassificationActive},
			want:       true,
		},
		{
			name:       "active and satiated",
			evaluation: roomEvaluation{room: "study", active: true, included: true, classification: ClassificationActive, satiated: true},
			want:       false,
		},
		{
			name:       "critical",
			evaluation: roomEvaluation{room: "study", critical: true, classification: ClassificationCriticalOnly},
			want:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := t.Context()
			v := newVentSelector(ventsConfig(0, 0, room("study", vent("vent.study"))), scheduler.NewQueue[timerKey]())
			commands := commandMap(v.evaluate(ctx, []roomEvaluation{tt.evaluation}, time.Now()))
			assert.Equal(t, map[string]bool{"vent.study": tt.want}, commands)
		})
	}
}

func TestVentSelector_OpenDelay(t *testing.T) {
	ctx := t.Context()
	queue := scheduler.NewQueue[timerKey]()
	cfg := ventsConfig(0, 0, room("study", vent("vent.study")))
	cfg.Rooms[0].VentOpenDelay = 3 * time.Minute
	v := newVentSelector(cfg, queue)

	// the room becomes occupied. the vent stays closed until the delay has
	// elapsed.
	evaluations := []roomEvaluation{{room: "study", occupied: true}}
	commands := commandMap(v.evaluate(ctx, evaluations, time.Now()))
	assert.Equal(t, map[string]bool{"vent.study": false}, commands)
	_, armed := queue.Due(timerKey{timerVentOpenDelay, "study"})
	assert.True(t, armed)

	require.True(t, v.delayElapsed("study"))
	commands = commandMap(v.evaluate(ctx, evaluations, time.Now()))
	assert.Equal(t, map[string]bool{"vent.study": true}, commands)
}

func TestVentSelector_OpenDelayCanceled(t *testing.T) {
	ctx := t.Context()
	queue := scheduler.NewQueue[timerKey]()
	cfg := ventsConfig(0, 0, room("study", vent("vent.study")))
	cfg.Rooms[0].VentOpenDelay = 3 * time.Minute
	v := newVentSelector(cfg, queue)

	evaluations := []roomEvaluation{{room: "study", occupied: true}}
	v.evaluate(ctx, evaluations, time.Now())
	_, armed := queue.Due(timerKey{timerVentOpenDelay, "study"})
	require.True(t, armed)

	// the room empties before the delay elapses: the pending open is
	// canceled and a late firing has nothing to do
	evaluations[0].occupied = false
	assert.Empty(t, v.evaluate(ctx, evaluations, time.Now()))
	_, armed = queue.Due(timerKey{timerVentOpenDelay, "study"})
	assert.False(t, armed)
	assert.False(t, v.delayElapsed("study"))
}

func TestVentSelector_MinimumFloor(t *testing.T) {
	ctx := t.Context()
	v := newVentSelector(ventsConfig(3, 0,
		room("attic", vent("vent.attic")),
		room("bedroom", vent("vent.bedroom")),
		room("den", vent("vent.den")),
		room("study", vent("vent.study")),
	), scheduler.NewQueue[timerKey]())

	// nobody home. the three rooms furthest from their target are forced
	// open, with the tie between bedroom and study broken by room name.
	evaluations := []roomEvaluation{
		{room: "attic", distance: 0.5},
		{room: "bedroom", distance: 2.0},
		{room: "den", distance: 1.0},
		{room: "study", distance: 2.0},
	}
	commands := commandMap(v.evaluate(ctx, evaluations, time.Now()))
	assert.Equal(t, map[string]bool{
		"vent.attic":   false,
		"vent.bedroom": true,
		"vent.den":     true,
		"vent.study":   true,
	}, commands)
}

func TestVentSelector_Groups(t *testing.T) {
	ctx := t.Context()
	v := newVentSelector(ventsConfig(3, 0,
		room("bedroom", configuration.RoomVentConfiguration{ID: "vent.bedrooms", Members: 3}),
		room("den", vent("vent.den")),
	), scheduler.NewQueue[timerKey]())

	// the bedroom group counts as three vents: opening it alone meets the
	// floor
	evaluations := []roomEvaluation{
		{room: "bedroom", distance: 2.0},
		{room: "den", distance: 0.5},
	}
	commands := commandMap(v.evaluate(ctx, evaluations, time.Now()))
	assert.Equal(t, map[string]bool{"vent.bedrooms": true, "vent.den": false}, commands)
}

func TestVentSelector_Debounce(t *testing.T) {
	ctx := t.Context()
	v := newVentSelector(ventsConfig(0, 2*time.Minute, room("study", vent("vent.study"))), scheduler.NewQueue[timerKey]())

	start := time.Now()
	evaluations := []roomEvaluation{{room: "study"}}
	commands := commandMap(v.evaluate(ctx, evaluations, start))
	require.Equal(t, map[string]bool{"vent.study": false}, commands)

	// the room becomes occupied right away: the change is held back until
	// the debounce window has passed
	evaluations[0].occupied = true
	assert.Empty(t, v.evaluate(ctx, evaluations, start.Add(30*time.Second)))
	commands = commandMap(v.evaluate(ctx, evaluations, start.Add(2*time.Minute)))
	assert.Equal(t, map[string]bool{"vent.study": true}, commands)
}

func TestVentSelector_FloorOverridesDebounce(t *testing.T) {
	ctx := t.Context()
	v := newVentSelector(ventsConfig(1, 2*time.Minute,
		room("den", vent("vent.den")),
		room("study", vent("vent.study")),
	), scheduler.NewQueue[timerKey]())

	// the den is occupied, the study vent is closed by the floor logic
	start := time.Now()
	evaluations := []roomEvaluation{
		{room: "den", occupied: true, distance: 0.5},
		{room: "study", distance: 1.0},
	}
	commands := commandMap(v.evaluate(ctx, evaluations, start))
	require.Equal(t, map[string]bool{"vent.den": true, "vent.study": false}, commands)

	// seconds later the den empties. closing its vent would leave nothing
	// open, so the floor opens the study vent in spite of the debounce. the
	// den close itself is debounced.
	evaluations[0].occupied = false
	commands = commandMap(v.evaluate(ctx, evaluations, start.Add(10*time.Second)))
	assert.Equal(t, map[string]bool{"vent.study": true}, commands)

	// once the debounce window has passed, the den vent closes too
	commands = commandMap(v.evaluate(ctx, evaluations, start.Add(3*time.Minute)))
	assert.Equal(t, map[string]bool{"vent.den": false}, commands)
}

func TestVentSelector_ConfirmRetry(t *testing.T) {
	ctx := t.Context()
	queue := scheduler.NewQueue[timerKey]()
	v := newVentSelector(ventsConfig(0, 0, room("study", vent("vent.study"))), queue)

	evaluations := []roomEvaluation{{room: "study", occupied: true}}
	commands := v.evaluate(ctx, evaluations, time.Now())
	require.Equal(t, []ventCommand{{vent: "vent.study", open: true}}, commands)
	_, armed := queue.Due(timerKey{timerVentConfirm, "vent.study"})
	assert.True(t, armed)

	// no state report yet: the command is retried
	retry, gaveUp := v.confirmElapsed(ctx, "vent.study")
	require.NotNil(t, retry)
	assert.Equal(t, ventCommand{vent: "vent.study", open: true}, *retry)
	assert.False(t, gaveUp)

	// the vent reports the commanded state: confirmed, timer canceled
	v.noteReported("vent.study", true)
	_, armed = queue.Due(timerKey{timerVentConfirm, "vent.study"})
	assert.False(t, armed)

	// a firing that raced with the confirmation is discarded
	retry, gaveUp = v.confirmElapsed(ctx, "vent.study")
	assert.Nil(t, retry)
	assert.False(t, gaveUp)
}

func TestVentSelector_ConfirmGivesUp(t *testing.T) {
	ctx := t.Context()
	queue := scheduler.NewQueue[timerKey]()
	v := newVentSelector(ventsConfig(1, 0,
		room("den", vent("vent.den")),
		room("study", vent("vent.study")),
	), queue)

	evaluations := []roomEvaluation{
		{room: "den", occupied: true, distance: 0.5},
		{room: "study", distance: 1.0},
	}
	v.evaluate(ctx, evaluations, time.Now())

	// the den vent never reports back. after three retries it is given up on.
	for range ventConfirmRetries {
		retry, gaveUp := v.confirmElapsed(ctx, "vent.den")
		require.NotNil(t, retry)
		require.False(t, gaveUp)
	}
	retry, gaveUp := v.confirmElapsed(ctx, "vent.den")
	assert.Nil(t, retry)
	assert.True(t, gaveUp)

	// an unresponsive vent no longer counts toward the floor: the study
	// takes over
	commands := commandMap(v.evaluate(ctx, evaluations, time.Now()))
	assert.Equal(t, map[string]bool{"vent.study": true}, commands)

	// a report brings it back into play. the den vent is re-opened and the
	// study is no longer needed for the floor.
	v.noteReported("vent.den", false)
	commands = commandMap(v.evaluate(ctx, evaluations, time.Now()))
	assert.Equal(t, map[string]bool{"vent.den": true, "vent.study": false}, commands)
}

func TestVentSelector_ExternalChange(t *testing.T) {
	ctx := t.Context()
	v := newVentSelector(ventsConfig(0, 0, room("study", vent("vent.study"))), scheduler.NewQueue[timerKey]())

	evaluations := []roomEvaluation{{room: "study", occupied: true}}
	v.evaluate(ctx, evaluations, time.Now())
	v.noteReported("vent.study", true)

	// someone closes the vent by hand: the next evaluation puts it back
	v.noteReported("vent.study", false)
	commands := commandMap(v.evaluate(ctx, evaluations, time.Now()))
	assert.Equal(t, map[string]bool{"vent.study": true}, commands)
}

func TestVentSelector_AdoptsReportedState(t *testing.T) {
	ctx := t.Context()
	queue := scheduler.NewQueue[timerKey]()
	v := newVentSelector(ventsConfig(0, 0, room("study", vent("vent.study"))), queue)

	// the vent already reports the position we want: no command, no
	// confirmation cycle
	v.noteReported("vent.study", true)
	evaluations := []roomEvaluation{{room: "study", occupied: true}}
	assert.Empty(t, v.evaluate(ctx, evaluations, time.Now()))
	_, armed := queue.Due(timerKey{timerVentConfirm, "vent.study"})
	assert.False(t, armed)

	// the room empties: now a real command is needed
	evaluations[0].occupied = false
	commands := commandMap(v.evaluate(ctx, evaluations, time.Now()))
	assert.Equal(t, map[string]bool{"vent.study": false}, commands)
}

func TestVentSelector_Offline(t *testing.T) {
	ctx := t.Context()
	v := newVentSelector(ventsConfig(1, 0,
		room("den", vent("vent.den")),
		room("study", vent("vent.study")),
	), scheduler.NewQueue[timerKey]())

	evaluations := []roomEvaluation{
		{room: "den", distance: 1.0},
		{room: "study", distance: 0.5},
	}
	commands := commandMap(v.evaluate(ctx, evaluations, time.Now()))
	require.Equal(t, map[string]bool{"vent.den": true, "vent.study": false}, commands)

	// the den vent drops off the network: the floor moves to the study
	v.noteOnline("vent.den", false)
	commands = commandMap(v.evaluate(ctx, evaluations, time.Now()))
	assert.Equal(t, map[string]bool{"vent.study": true}, commands)
}

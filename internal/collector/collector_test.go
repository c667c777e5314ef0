package collector

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/clambin/zoned/internal/controller"
	"github.com/clambin/zoned/internal/poller"
	"github.com/clambin/zoned/internal/poller/testutils"
	"github.com/clambin/zoned/pkg/pubsub"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStatuses []*controller.Status

func (f fakeStatuses) Statuses() []*controller.Status { return f }

func TestCollector(t *testing.T) {
	statuses := fakeStatuses{{
		Name:    "home",
		Mode:    "heat",
		Running: true,
		Rooms: []controller.RoomStatus{
			{Name: "bedroom", Temperature: 21.5, Occupied: true, Active: true, Included: true},
			{Name: "study", Temperature: 22.0, Satiated: true},
		},
		Vents: []controller.VentStatus{
			{ID: "vent.bedroom", Room: "bedroom", Members: 1, Open: true, Confirmed: true},
			{ID: "vent.study", Room: "study", Members: 1, Unresponsive: true},
		},
	}}
	c := Collector{Poller: nil, Controllers: statuses, Logger: slog.Default()}

	c.process(testutils.Update(
		testutils.WithThermostat("thermostat.main", poller.ModeHeat, 21.0, 21.5, 25.5),
		testutils.WithContact("door.front", false),
		testutils.WithOccupancy("motion.bedroom", true),
		testutils.WithTemperature("climate.bedroom", 21.5),
		testutils.WithVent("vent.bedroom", true),
		testutils.WithVent("vent.study", false, testutils.WithAvailability(false)),
	))

	require.NoError(t, testutil.CollectAndCompare(&c, strings.NewReader(`
# HELP zoned_controller_away 1 while the controller's presence device reports away
# TYPE zoned_controller_away gauge
zoned_controller_away{controller="home"} 0

# HELP zoned_controller_mode Mode the controller is applying. Always 1. Label mode specifies the mode
# TYPE zoned_controller_mode gauge
zoned_controller_mode{controller="home",mode="heat"} 1

# HELP zoned_controller_open_sensors Number of contact sensors currently open
# TYPE zoned_controller_open_sensors gauge
zoned_controller_open_sensors{controller="home"} 0

# HELP zoned_controller_paused 1 while climate control is paused
# TYPE zoned_controller_paused gauge
zoned_controller_paused{controller="home"} 0

# HELP zoned_controller_running 1 while the controller is running the equipment
# TYPE zoned_controller_running gauge
zoned_controller_running{controller="home"} 1

# HELP zoned_device_contact_open 1 if the contact sensor reports open
# TYPE zoned_device_contact_open gauge
zoned_device_contact_open{id="door.front"} 0

# HELP zoned_device_occupancy 1 if the occupancy sensor detects presence
# TYPE zoned_device_occupancy gauge
zoned_device_occupancy{id="motion.bedroom"} 1

# HELP zoned_device_online 1 if the device is reachable on the broker
# TYPE zoned_device_online gauge
zoned_device_online{id="climate.bedroom"} 1
zoned_device_online{id="door.front"} 1
zoned_device_online{id="motion.bedroom"} 1
zoned_device_online{id="thermostat.main"} 1
zoned_device_online{id="vent.bedroom"} 1
zoned_device_online{id="vent.study"} 0

# HELP zoned_device_temperature_celsius Temperature reported by the device in degrees celsius
# TYPE zoned_device_temperature_celsius gauge
zoned_device_temperature_celsius{id="climate.bedroom"} 21.5
zoned_device_temperature_celsius{id="thermostat.main"} 21

# HELP zoned_device_vent_open 1 if the vent reports open
# TYPE zoned_device_vent_open gauge
zoned_device_vent_open{id="vent.bedroom"} 1
zoned_device_vent_open{id="vent.study"} 0

# HELP zoned_room_active 1 if the room is actively conditioned
# TYPE zoned_room_active gauge
zoned_room_active{controller="home",room="bedroom"} 1
zoned_room_active{controller="home",room="study"} 0

# HELP zoned_room_critical 1 if the room drifted past its critical threshold
# TYPE zoned_room_critical gauge
zoned_room_critical{controller="home",room="bedroom"} 0
zoned_room_critical{controller="home",room="study"} 0

# HELP zoned_room_occupied 1 if the room is occupied
# TYPE zoned_room_occupied gauge
zoned_room_occupied{controller="home",room="bedroom"} 1
zoned_room_occupied{controller="home",room="study"} 0

# HELP zoned_room_satiated 1 if the room is on temperature
# TYPE zoned_room_satiated gauge
zoned_room_satiated{controller="home",room="bedroom"} 0
zoned_room_satiated{controller="home",room="study"} 1

# HELP zoned_room_temperature_celsius Average temperature of the room in degrees celsius
# TYPE zoned_room_temperature_celsius gauge
zoned_room_temperature_celsius{controller="home",room="bedroom"} 21.5
zoned_room_temperature_celsius{controller="home",room="study"} 22

# HELP zoned_thermostat_cool_setpoint_celsius Cooling setpoint reported by the thermostat in degrees celsius
# TYPE zoned_thermostat_cool_setpoint_celsius gauge
zoned_thermostat_cool_setpoint_celsius{id="thermostat.main"} 25.5

# HELP zoned_thermostat_heat_setpoint_celsius Heating setpoint reported by the thermostat in degrees celsius
# TYPE zoned_thermostat_heat_setpoint_celsius gauge
zoned_thermostat_heat_setpoint_celsius{id="thermostat.main"} 21.5

# HELP zoned_thermostat_mode Mode reported by the thermostat. Always 1. Label mode specifies the mode
# TYPE zoned_thermostat_mode gauge
zoned_thermostat_mode{id="thermostat.main",mode="heat"} 1

# HELP zoned_vent_open 1 if the controller commanded the vent open
# TYPE zoned_vent_open gauge
zoned_vent_open{controller="home",id="vent.bedroom",room="bedroom"} 1
zoned_vent_open{controller="home",id="vent.study",room="study"} 0

# HELP zoned_vent_unresponsive 1 if the vent stopped confirming commands
# TYPE zoned_vent_unresponsive gauge
zoned_vent_unresponsive{controller="home",id="vent.bedroom",room="bedroom"} 0
zoned_vent_unresponsive{controller="home",id="vent.study",room="study"} 1
`)))
}

func TestCollector_BeforeFirstUpdate(t *testing.T) {
	c := Collector{Poller: nil, Controllers: fakeStatuses{}, Logger: slog.Default()}
	assert.Zero(t, testutil.CollectAndCount(&c))
}

type fakePoller struct {
	*pubsub.Publisher[poller.Update]
}

func (f *fakePoller) Refresh() {}

func TestCollector_Run(t *testing.T) {
	p := &fakePoller{Publisher: pubsub.New[poller.Update](slog.Default())}
	c := Collector{Poller: p, Controllers: fakeStatuses{}, Logger: slog.Default()}

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	errCh := make(chan error)
	go func() { errCh <- c.Run(ctx) }()

	update := testutils.Update(testutils.WithTemperature("climate.bedroom", 21.5))
	assert.Eventually(t, func() bool {
		p.Publish(update)
		return testutil.CollectAndCount(&c, "zoned_device_online") == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-errCh)
}

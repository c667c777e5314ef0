package poller

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"
)

// SystemMode is a thermostat operating mode as published on the wire.
type SystemMode string

const (
	ModeOff      SystemMode = "off"
	ModeHeat     SystemMode = "heat"
	ModeCool     SystemMode = "cool"
	ModeHeatCool SystemMode = "heat_cool"
)

func (m SystemMode) Valid() bool {
	switch m {
	case ModeOff, ModeHeat, ModeCool, ModeHeatCool:
		return true
	}
	return false
}

// Heats reports whether the mode calls for heating.
func (m SystemMode) Heats() bool {
	return m == ModeHeat || m == ModeHeatCool
}

// Cools reports whether the mode calls for cooling.
func (m SystemMode) Cools() bool {
	return m == ModeCool || m == ModeHeatCool
}

// Update is a point-in-time snapshot of all devices seen on the broker.
type Update struct {
	Timestamp time.Time
	Devices   map[string]Device
}

func (u Update) Device(id string) (Device, bool) {
	device, ok := u.Devices[id]
	return device, ok
}

// ContactOpen reports whether the contact sensor id is open. The second
// return value is false if the device is unknown or has no contact reading.
func (u Update) ContactOpen(id string) (bool, bool) {
	device, ok := u.Devices[id]
	if !ok {
		return false, false
	}
	return device.ContactOpen()
}

// Present reports whether the occupancy sensor id detects presence.
func (u Update) Present(id string) (bool, bool) {
	device, ok := u.Devices[id]
	if !ok {
		return false, false
	}
	return device.Present()
}

// Temperature returns the current temperature reported by sensor id.
func (u Update) Temperature(id string) (float64, bool) {
	device, ok := u.Devices[id]
	if !ok {
		return 0, false
	}
	return device.CurrentTemperature()
}

func (u Update) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Time("timestamp", u.Timestamp),
		slog.Int("devices", len(u.Devices)),
	)
}

// Device holds the most recently reported attributes for one device. A nil
// field means the device has never reported that attribute.
type Device struct {
	Contact                 *bool
	Occupancy               *bool
	Temperature             *float64
	LocalTemperature        *float64
	SystemMode              *SystemMode
	RunningState            *string
	OccupiedHeatingSetpoint *float64
	OccupiedCoolingSetpoint *float64
	State                   *string
	Position                *float64
	Availability            *bool
	LastSeen                time.Time
}

// ContactOpen reports whether a contact sensor is open. zigbee2mqtt reports
// contact: true while the sensor is closed.
func (d Device) ContactOpen() (bool, bool) {
	if d.Contact == nil {
		return false, false
	}
	return !*d.Contact, true
}

// Present reports whether an occupancy sensor detects presence.
func (d Device) Present() (bool, bool) {
	if d.Occupancy == nil {
		return false, false
	}
	return *d.Occupancy, true
}

// CurrentTemperature returns the device's temperature reading, falling back
// to a thermostat's local temperature when no dedicated sensor value exists.
func (d Device) CurrentTemperature() (float64, bool) {
	if d.Temperature != nil {
		return *d.Temperature, true
	}
	if d.LocalTemperature != nil {
		return *d.LocalTemperature, true
	}
	return 0, false
}

// Mode returns the thermostat's operating mode, if known and valid.
func (d Device) Mode() (SystemMode, bool) {
	if d.SystemMode == nil || !d.SystemMode.Valid() {
		return "", false
	}
	return *d.SystemMode, true
}

func (d Device) HeatingSetpoint() (float64, bool) {
	if d.OccupiedHeatingSetpoint == nil {
		return 0, false
	}
	return *d.OccupiedHeatingSetpoint, true
}

func (d Device) CoolingSetpoint() (float64, bool) {
	if d.OccupiedCoolingSetpoint == nil {
		return 0, false
	}
	return *d.OccupiedCoolingSetpoint, true
}

// VentOpen reports whether a cover is open, preferring the reported state
// over the position.
func (d Device) VentOpen() (bool, bool) {
	if d.State != nil {
		switch *d.State {
		case "OPEN":
			return true, true
		case "CLOSE", "CLOSED":
			return false, true
		}
	}
	if d.Position != nil {
		return *d.Position > 0, true
	}
	return false, false
}

// Online reports device availability. Devices that never published an
// availability message are assumed online.
func (d Device) Online() bool {
	return d.Availability == nil || *d.Availability
}

// stateMessage is the subset of a zigbee2mqtt state payload we care about.
// state is raw: covers publish a string, some devices publish an object.
type stateMessage struct {
	Contact                 *bool           `json:"contact"`
	Occupancy               *bool           `json:"occupancy"`
	Temperature             *float64        `json:"temperature"`
	LocalTemperature        *float64        `json:"local_temperature"`
	SystemMode              *SystemMode     `json:"system_mode"`
	RunningState            *string         `json:"running_state"`
	OccupiedHeatingSetpoint *float64        `json:"occupied_heating_setpoint"`
	OccupiedCoolingSetpoint *float64        `json:"occupied_cooling_setpoint"`
	State                   json.RawMessage `json:"state"`
	Position                *float64        `json:"position"`
}

// applyState merges a state payload into the device. Attributes absent from
// the payload keep their previous value. It reports whether any attribute
// changed.
func (d *Device) applyState(payload []byte, now time.Time) (bool, error) {
	var msg stateMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return false, err
	}
	d.LastSeen = now

	changed := setAttribute(&d.Contact, msg.Contact)
	changed = setAttribute(&d.Occupancy, msg.Occupancy) || changed
	changed = setAttribute(&d.Temperature, msg.Temperature) || changed
	changed = setAttribute(&d.LocalTemperature, msg.LocalTemperature) || changed
	changed = setAttribute(&d.SystemMode, msg.SystemMode) || changed
	changed = setAttribute(&d.RunningState, msg.RunningState) || changed
	changed = setAttribute(&d.OccupiedHeatingSetpoint, msg.OccupiedHeatingSetpoint) || changed
	changed = setAttribute(&d.OccupiedCoolingSetpoint, msg.OccupiedCoolingSetpoint) || changed
	changed = setAttribute(&d.Position, msg.Position) || changed

	if len(msg.State) > 0 {
		var state string
		if err := json.Unmarshal(msg.State, &state); err == nil {
			changed = setAttribute(&d.State, &state) || changed
		}
	}
	return changed, nil
}

// applyAvailability parses an availability payload, either a bare
// online/offline string or a {"state": "..."} document. It reports whether
// the device's availability changed.
func (d *Device) applyAvailability(payload []byte) bool {
	value := strings.Trim(strings.TrimSpace(string(payload)), `"`)
	var msg struct {
		State string `json:"state"`
	}
	if err := json.Unmarshal(payload, &msg); err == nil && msg.State != "" {
		value = msg.State
	}
	online := value == "online"
	changed := d.Availability == nil || *d.Availability != online
	d.Availability = &online
	return changed
}

func setAttribute[T comparable](current **T, reported *T) bool {
	if reported == nil {
		return false
	}
	if *current != nil && **current == *reported {
		return false
	}
	*current = reported
	return true
}

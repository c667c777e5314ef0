package testutils

import (
	"time"

	"github.com/clambin/zoned/internal/poller"
)

func Update(options ...UpdateOption) poller.Update {
	u := poller.Update{Timestamp: time.Now(), Devices: make(map[string]poller.Device)}
	for _, option := range options {
		option(&u)
	}
	return u
}

type UpdateOption func(*poller.Update)

func WithTimestamp(timestamp time.Time) UpdateOption {
	return func(u *poller.Update) {
		u.Timestamp = timestamp
	}
}

// WithContact adds a contact sensor. zigbee2mqtt reports contact: true while
// the sensor is closed.
func WithContact(id string, open bool, options ...DeviceOption) UpdateOption {
	return func(u *poller.Update) {
		device := u.Devices[id]
		closed := !open
		device.Contact = &closed
		applyDevice(u, id, device, options)
	}
}

func WithOccupancy(id string, present bool, options ...DeviceOption) UpdateOption {
	return func(u *poller.Update) {
		device := u.Devices[id]
		device.Occupancy = &present
		applyDevice(u, id, device, options)
	}
}

func WithTemperature(id string, value float64, options ...DeviceOption) UpdateOption {
	return func(u *poller.Update) {
		device := u.Devices[id]
		device.Temperature = &value
		applyDevice(u, id, device, options)
	}
}

func WithThermostat(id string, mode poller.SystemMode, current, heatTarget, coolTarget float64, options ...DeviceOption) UpdateOption {
	return func(u *poller.Update) {
		device := u.Devices[id]
		device.SystemMode = &mode
		device.LocalTemperature = &current
		device.OccupiedHeatingSetpoint = &heatTarget
		device.OccupiedCoolingSetpoint = &coolTarget
		applyDevice(u, id, device, options)
	}
}

func WithVent(id string, open bool, options ...DeviceOption) UpdateOption {
	return func(u *poller.Update) {
		device := u.Devices[id]
		state := "CLOSE"
		if open {
			state = "OPEN"
		}
		device.State = &state
		applyDevice(u, id, device, options)
	}
}

type DeviceOption func(*poller.Device)

func WithAvailability(online bool) DeviceOption {
	return func(d *poller.Device) {
		d.Availability = &online
	}
}

func WithPosition(position float64) DeviceOption {
	return func(d *poller.Device) {
		d.Position = &position
	}
}

func WithRunningState(state string) DeviceOption {
	return func(d *poller.Device) {
		d.RunningState = &state
	}
}

func applyDevice(u *poller.Update, id string, device poller.Device, options []DeviceOption) {
	for _, option := range options {
		option(&device)
	}
	u.Devices[id] = device
}

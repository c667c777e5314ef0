package collector

import (
	"context"
	"log/slog"
	"sync"

	"github.com/clambin/zoned/internal/controller"
	"github.com/clambin/zoned/internal/poller"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	zonedDeviceOnline = prometheus.NewDesc(
		prometheus.BuildFQName("zoned", "device", "online"),
		"1 if the device is reachable on the broker",
		[]string{"id"},
		nil,
	)
	zonedDeviceTemperature = prometheus.NewDesc(
		prometheus.BuildFQName("zoned", "device", "temperature_celsius"),
		"Temperature reported by the device in degrees celsius",
		[]string{"id"},
		nil,
	)
	zonedDeviceContactOpen = prometheus.NewDesc(
		prometheus.BuildFQName("zoned", "device", "contact_open"),
		"1 if the contact sensor reports open",
		[]string{"id"},
		nil,
	)
	zonedDeviceOccupied = prometheus.NewDesc(
		prometheus.BuildFQName("zoned", "device", "occupancy"),
		"1 if the occupancy sensor detects presence",
		[]string{"id"},
		nil,
	)
	zonedDeviceVentOpen = prometheus.NewDesc(
		prometheus.BuildFQName("zoned", "device", "vent_open"),
		"1 if the vent reports open",
		[]string{"id"},
		nil,
	)
	zonedThermostatMode = prometheus.NewDesc(
		prometheus.BuildFQName("zoned", "thermostat", "mode"),
		"Mode reported by the thermostat. Always 1. Label mode specifies the mode",
		[]string{"id", "mode"},
		nil,
	)
	zonedThermostatHeatSetpoint = prometheus.NewDesc(
		prometheus.BuildFQName("zoned", "thermostat", "heat_setpoint_celsius"),
		"Heating setpoint reported by the thermostat in degrees celsius",
		[]string{"id"},
		nil,
	)
	zonedThermostatCoolSetpoint = prometheus.NewDesc(
		prometheus.BuildFQName("zoned", "thermostat", "cool_setpoint_celsius"),
		"Cooling setpoint reported by the thermostat in degrees celsius",
		[]string{"id"},
		nil,
	)
	zonedControllerRunning = prometheus.NewDesc(
		prometheus.BuildFQName("zoned", "controller", "running"),
		"1 while the controller is running the equipment",
		[]string{"controller"},
		nil,
	)
	zonedControllerPaused = prometheus.NewDesc(
		prometheus.BuildFQName("zoned", "controller", "paused"),
		"1 while climate control is paused",
		[]string{"controller"},
		nil,
	)
	zonedControllerAway = prometheus.NewDesc(
		prometheus.BuildFQName("zoned", "controller", "away"),
		"1 while the controller's presence device reports away",
		[]string{"controller"},
		nil,
	)
	zonedControllerMode = prometheus.NewDesc(
		prometheus.BuildFQName("zoned", "controller", "mode"),
		"Mode the controller is applying. Always 1. Label mode specifies the mode",
		[]string{"controller", "mode"},
		nil,
	)
	zonedControllerOpenSensors = prometheus.NewDesc(
		prometheus.BuildFQName("zoned", "controller", "open_sensors"),
		"Number of contact sensors currently open",
		[]string{"controller"},
		nil,
	)
	zonedRoomTemperature = prometheus.NewDesc(
		prometheus.BuildFQName("zoned", "room", "temperature_celsius"),
		"Average temperature of the room in degrees celsius",
		[]string{"controller", "room"},
		nil,
	)
	zonedRoomOccupied = prometheus.NewDesc(
		prometheus.BuildFQName("zoned", "room", "occupied"),
		"1 if the room is occupied",
		[]string{"controller", "room"},
		nil,
	)
	zonedRoomActive = prometheus.NewDesc(
		prometheus.BuildFQName("zoned", "room", "active"),
		"1 if the room is actively conditioned",
		[]string{"controller", "room"},
		nil,
	)
	zonedRoomSatiated = prometheus.NewDesc(
		prometheus.BuildFQName("zoned", "room", "satiated"),
		"1 if the room is on temperature",
		[]string{"controller", "room"},
		nil,
	)
	zonedRoomCritical = prometheus.NewDesc(
		prometheus.BuildFQName("zoned", "room", "critical"),
		"1 if the room drifted past its critical threshold",
		[]string{"controller", "room"},
		nil,
	)
	zonedVentOpen = prometheus.NewDesc(
		prometheus.BuildFQName("zoned", "vent", "open"),
		"1 if the controller commanded the vent open",
		[]string{"controller", "room", "id"},
		nil,
	)
	zonedVentUnresponsive = prometheus.NewDesc(
		prometheus.BuildFQName("zoned", "vent", "unresponsive"),
		"1 if the vent stopped confirming commands",
		[]string{"controller", "room", "id"},
		nil,
	)
)

// Statuses returns the most recent status of every controller.
type Statuses interface {
	Statuses() []*controller.Status
}

// Collector exposes the device snapshot and the controller statuses as
// prometheus metrics.
type Collector struct {
	Poller      poller.Poller
	Controllers Statuses
	Logger      *slog.Logger
	lock        sync.RWMutex
	lastUpdate  *poller.Update
}

func (c *Collector) Run(ctx context.Context) error {
	c.Logger.Debug("started")
	defer c.Logger.Debug("stopped")

	ch := c.Poller.Subscribe()
	defer c.Poller.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-ch:
			c.process(update)
		}
	}
}

func (c *Collector) process(update poller.Update) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.lastUpdate = &update
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- zonedControllerAway
	ch <- zonedControllerMode
	ch <- zonedControllerOpenSensors
	ch <- zonedControllerPaused
	ch <- zonedControllerRunning
	ch <- zonedDeviceContactOpen
	ch <- zonedDeviceOccupied
	ch <- zonedDeviceOnline
	ch <- zonedDeviceTemperature
	ch <- zonedDeviceVentOpen
	ch <- zonedRoomActive
	ch <- zonedRoomCritical
	ch <- zonedRoomOccupied
	ch <- zonedRoomSatiated
	ch <- zonedRoomTemperature
	ch <- zonedThermostatCoolSetpoint
	ch <- zonedThermostatHeatSetpoint
	ch <- zonedThermostatMode
	ch <- zonedVentOpen
	ch <- zonedVentUnresponsive
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	if c.lastUpdate != nil {
		c.collectDevices(ch)
	}
	if c.Controllers != nil {
		for _, status := range c.Controllers.Statuses() {
			c.collectStatus(ch, status)
		}
	}
}

func (c *Collector) collectDevices(ch chan<- prometheus.Metric) {
	for id, device := range c.lastUpdate.Devices {
		ch <- prometheus.MustNewConstMetric(zonedDeviceOnline, prometheus.GaugeValue, boolValue(device.Online()), id)
		if value, ok := device.CurrentTemperature(); ok {
			ch <- prometheus.MustNewConstMetric(zonedDeviceTemperature, prometheus.GaugeValue, value, id)
		}
		if open, ok := device.ContactOpen(); ok {
			ch <- prometheus.MustNewConstMetric(zonedDeviceContactOpen, prometheus.GaugeValue, boolValue(open), id)
		}
		if present, ok := device.Present(); ok {
			ch <- prometheus.MustNewConstMetric(zonedDeviceOccupied, prometheus.GaugeValue, boolValue(present), id)
		}
		if open, ok := device.VentOpen(); ok {
			ch <- prometheus.MustNewConstMetric(zonedDeviceVentOpen, prometheus.GaugeValue, boolValue(open), id)
		}
		if mode, ok := device.Mode(); ok {
			ch <- prometheus.MustNewConstMetric(zonedThermostatMode, prometheus.GaugeValue, 1, id, string(mode))
		}
		if value, ok := device.HeatingSetpoint(); ok {
			ch <- prometheus.MustNewConstMetric(zonedThermostatHeatSetpoint, prometheus.GaugeValue, value, id)
		}
		if value, ok := device.CoolingSetpoint(); ok {
			ch <- prometheus.MustNewConstMetric(zonedThermostatCoolSetpoint, prometheus.GaugeValue, value, id)
		}
	}
}

func (c *Collector) collectStatus(ch chan<- prometheus.Metric, status *controller.Status) {
	ch <- prometheus.MustNewConstMetric(zonedControllerRunning, prometheus.GaugeValue, boolValue(status.Running), status.Name)
	ch <- prometheus.MustNewConstMetric(zonedControllerPaused, prometheus.GaugeValue, boolValue(status.Paused), status.Name)
	ch <- prometheus.MustNewConstMetric(zonedControllerAway, prometheus.GaugeValue, boolValue(status.Away), status.Name)
	ch <- prometheus.MustNewConstMetric(zonedControllerOpenSensors, prometheus.GaugeValue, float64(len(status.OpenSensors)), status.Name)
	if status.Mode != "" {
		ch <- prometheus.MustNewConstMetric(zonedControllerMode, prometheus.GaugeValue, 1, status.Name, status.Mode)
	}
	for _, room := range status.Rooms {
		ch <- prometheus.MustNewConstMetric(zonedRoomTemperature, prometheus.GaugeValue, room.Temperature, status.Name, room.Name)
		ch <- prometheus.MustNewConstMetric(zonedRoomOccupied, prometheus.GaugeValue, boolValue(room.Occupied), status.Name, room.Name)
		ch <- prometheus.MustNewConstMetric(zonedRoomActive, prometheus.GaugeValue, boolValue(room.Active), status.Name, room.Name)
		ch <- prometheus.MustNewConstMetric(zonedRoomSatiated, prometheus.GaugeValue, boolValue(room.Satiated), status.Name, room.Name)
		ch <- prometheus.MustNewConstMetric(zonedRoomCritical, prometheus.GaugeValue, boolValue(room.Critical), status.Name, room.Name)
	}
	for _, vent := range status.Vents {
		ch <- prometheus.MustNewConstMetric(zonedVentOpen, prometheus.GaugeValue, boolValue(vent.Open), status.Name, vent.Room, vent.ID)
		ch <- prometheus.MustNewConstMetric(zonedVentUnresponsive, prometheus.GaugeValue, boolValue(vent.Unresponsive), status.Name, vent.Room, vent.ID)
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

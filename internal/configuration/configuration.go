package configuration

import (
	"errors"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// Temperature limits accepted by the thermostats we command.
const (
	MinTarget = 7.0
	MaxTarget = 35.0
)

// minGracePeriod is the floor for the occupancy grace period. Shorter values
// make rooms flap on every sensor clear.
const minGracePeriod = 2 * time.Minute

// TrackingMode selects which inactive rooms are still watched for critical
// temperatures while eco mode is on.
type TrackingMode string

const (
	TrackingNone   TrackingMode = "none"
	TrackingAll    TrackingMode = "all"
	TrackingSelect TrackingMode = "select"
)

func (m TrackingMode) Valid() bool {
	switch m {
	case TrackingNone, TrackingAll, TrackingSelect:
		return true
	}
	return false
}

// AwayBehavior selects how eco mode behaves while nobody is home.
type AwayBehavior string

const (
	AwayDisableEco        AwayBehavior = "disable_eco"
	AwayKeepEcoActive     AwayBehavior = "keep_eco_active"
	AwayUseEcoAwayTargets AwayBehavior = "use_eco_away_targets"
)

func (b AwayBehavior) Valid() bool {
	switch b {
	case AwayDisableEco, AwayKeepEcoActive, AwayUseEcoAwayTargets:
		return true
	}
	return false
}

type Configuration struct {
	Controllers []ControllerConfiguration `yaml:"controllers"`
}

// Controller returns the configuration for the named controller.
func (c Configuration) Controller(name string) (ControllerConfiguration, bool) {
	for _, controller := range c.Controllers {
		if controller.Name == name {
			return controller, true
		}
	}
	return ControllerConfiguration{}, false
}

// ControllerConfiguration describes one thermostat and the rooms it serves.
type ControllerConfiguration struct {
	Name           string                       `yaml:"name"`
	Thermostat     string                       `yaml:"thermostat"`
	ContactSensors []ContactSensorConfiguration `yaml:"contactSensors"`
	OpenTimeout    time.Duration                `yaml:"openTimeout"`
	CloseTimeout   time.Duration                `yaml:"closeTimeout"`
	RespectUserOff bool                         `yaml:"respectUserOff"`
	Occupancy      OccupancyConfiguration       `yaml:"occupancy"`
	Temperatures   TemperatureConfiguration     `yaml:"temperatures"`
	Cycle          CycleConfiguration           `yaml:"cycle"`
	Eco            EcoConfiguration             `yaml:"eco"`
	Tracking       TrackingConfiguration        `yaml:"tracking"`
	Away           AwayConfiguration            `yaml:"away"`
	Boost          BoostConfiguration           `yaml:"boost"`
	Vents          VentConfiguration            `yaml:"vents"`
	Rooms          []RoomConfiguration          `yaml:"rooms"`
}

type ContactSensorConfiguration struct {
	ID   string `yaml:"id"`
	Kind string `yaml:"kind"`
}

type OccupancyConfiguration struct {
	MinimumTime time.Duration `yaml:"minimumTime"`
	GracePeriod time.Duration `yaml:"gracePeriod"`
}

type TemperatureConfiguration struct {
	Deadband                   float64 `yaml:"deadband"`
	UnoccupiedHeatingThreshold float64 `yaml:"unoccupiedHeatingThreshold"`
	UnoccupiedCoolingThreshold float64 `yaml:"unoccupiedCoolingThreshold"`
}

type CycleConfiguration struct {
	MinimumOn  time.Duration `yaml:"minimumOn"`
	MinimumOff time.Duration `yaml:"minimumOff"`
}

type EcoConfiguration struct {
	Enabled          bool         `yaml:"enabled"`
	CriticalTracking TrackingMode `yaml:"criticalTracking"`
	Rooms            []string     `yaml:"rooms"`
	AwayBehavior     AwayBehavior `yaml:"awayBehavior"`
}

// TrackingConfiguration limits evaluation of active rooms to a tracked
// subset. Disabled means all active rooms are evaluated.
type TrackingConfiguration struct {
	Enabled bool     `yaml:"enabled"`
	Rooms   []string `yaml:"rooms"`
}

// AwayConfiguration shifts room targets while the presence device reports
// nobody home. HeatingOffset lowers heat targets, CoolingOffset raises cool
// targets.
type AwayConfiguration struct {
	Presence      string  `yaml:"presence"`
	HeatingOffset float64 `yaml:"heatingOffset"`
	CoolingOffset float64 `yaml:"coolingOffset"`
}

// BoostConfiguration widens the setpoints sent to the thermostat while it
// runs, so the equipment keeps pushing until every room satiates.
type BoostConfiguration struct {
	HeatingOffset float64 `yaml:"heatingOffset"`
	CoolingOffset float64 `yaml:"coolingOffset"`
}

// VentConfiguration holds the vent safety settings. MinimumOpen defaults to
// 5 or the number of configured vents, whichever is lower.
type VentConfiguration struct {
	MinimumOpen *int          `yaml:"minimumOpen"`
	Debounce    time.Duration `yaml:"debounce"`
	OpenDelay   time.Duration `yaml:"openDelay"`
}

type RoomConfiguration struct {
	Name                   string                  `yaml:"name"`
	OccupancySensors       []string                `yaml:"occupancySensors"`
	TemperatureSensors     []string                `yaml:"temperatureSensors"`
	Vents                  []RoomVentConfiguration `yaml:"vents"`
	HeatTarget             float64                 `yaml:"heatTarget"`
	CoolTarget             float64                 `yaml:"coolTarget"`
	ForceTrackWhenCritical bool                    `yaml:"forceTrackWhenCritical"`
	VentOpenDelay          time.Duration           `yaml:"ventOpenDelay"`
}

// RoomVentConfiguration is one vent, or one cover group commanded as a
// single unit. Members is the number of physical vents it represents.
type RoomVentConfiguration struct {
	ID      string `yaml:"id"`
	Members int    `yaml:"members"`
}

func Load(r io.Reader) (Configuration, error) {
	var c Configuration
	if err := yaml.NewDecoder(r).Decode(&c); err != nil {
		return Configuration{}, fmt.Errorf("invalid configuration: %w", err)
	}
	if len(c.Controllers) == 0 {
		return Configuration{}, errors.New("no controllers configured")
	}
	names := make(map[string]struct{}, len(c.Controllers))
	for i := range c.Controllers {
		c.Controllers[i].setDefaults()
		if err := c.Controllers[i].validate(); err != nil {
			return Configuration{}, fmt.Errorf("controller %q: %w", c.Controllers[i].Name, err)
		}
		if _, ok := names[c.Controllers[i].Name]; ok {
			return Configuration{}, fmt.Errorf("duplicate controller name %q", c.Controllers[i].Name)
		}
		names[c.Controllers[i].Name] = struct{}{}
	}
	return c, nil
}

func (c *ControllerConfiguration) setDefaults() {
	if c.OpenTimeout == 0 {
		c.OpenTimeout = 5 * time.Minute
	}
	if c.CloseTimeout == 0 {
		c.CloseTimeout = 5 * time.Minute
	}
	if c.Occupancy.MinimumTime == 0 {
		c.Occupancy.MinimumTime = 5 * time.Minute
	}
	if c.Occupancy.GracePeriod < minGracePeriod {
		c.Occupancy.GracePeriod = minGracePeriod
	}
	if c.Temperatures.Deadband == 0 {
		c.Temperatures.Deadband = 0.5
	}
	if c.Temperatures.UnoccupiedHeatingThreshold == 0 {
		c.Temperatures.UnoccupiedHeatingThreshold = 2.0
	}
	if c.Temperatures.UnoccupiedCoolingThreshold == 0 {
		c.Temperatures.UnoccupiedCoolingThreshold = 2.0
	}
	if c.Cycle.MinimumOn == 0 {
		c.Cycle.MinimumOn = 5 * time.Minute
	}
	if c.Cycle.MinimumOff == 0 {
		c.Cycle.MinimumOff = 5 * time.Minute
	}
	if c.Eco.CriticalTracking == "" {
		c.Eco.CriticalTracking = TrackingAll
	}
	if c.Eco.AwayBehavior == "" {
		c.Eco.AwayBehavior = AwayKeepEcoActive
	}
	if c.Away.HeatingOffset == 0 {
		c.Away.HeatingOffset = 2.0
	}
	if c.Away.CoolingOffset == 0 {
		c.Away.CoolingOffset = 2.0
	}
	if c.Vents.Debounce == 0 {
		c.Vents.Debounce = 2 * time.Minute
	}
	if c.Vents.OpenDelay == 0 {
		c.Vents.OpenDelay = 3 * time.Minute
	}
	for i := range c.ContactSensors {
		if c.ContactSensors[i].Kind == "" {
			c.ContactSensors[i].Kind = "door"
		}
	}
	for i := range c.Rooms {
		room := &c.Rooms[i]
		if room.HeatTarget == 0 {
			room.HeatTarget = 21.5
		}
		if room.CoolTarget == 0 {
			room.CoolTarget = 25.5
		}
		room.HeatTarget = min(max(room.HeatTarget, MinTarget), MaxTarget)
		room.CoolTarget = min(max(room.CoolTarget, MinTarget), MaxTarget)
		if room.HeatTarget > room.CoolTarget {
			room.HeatTarget, room.CoolTarget = room.CoolTarget, room.HeatTarget
		}
		if room.VentOpenDelay == 0 {
			room.VentOpenDelay = c.Vents.OpenDelay
		}
		for j := range room.Vents {
			if room.Vents[j].Members == 0 {
				room.Vents[j].Members = 1
			}
		}
	}
	if c.Vents.MinimumOpen == nil {
		minimumOpen := min(5, c.VentMembers())
		c.Vents.MinimumOpen = &minimumOpen
	}
}

func (c *ControllerConfiguration) validate() error {
	if c.Name == "" {
		return errors.New("name is required")
	}
	if c.Thermostat == "" {
		return errors.New("thermostat is required")
	}
	if len(c.Rooms) == 0 {
		return errors.New("at least one room is required")
	}
	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"openTimeout", c.OpenTimeout},
		{"closeTimeout", c.CloseTimeout},
		{"occupancy.minimumTime", c.Occupancy.MinimumTime},
		{"occupancy.gracePeriod", c.Occupancy.GracePeriod},
		{"cycle.minimumOn", c.Cycle.MinimumOn},
		{"cycle.minimumOff", c.Cycle.MinimumOff},
		{"vents.openDelay", c.Vents.OpenDelay},
	} {
		if d.value < 0 {
			return fmt.Errorf("%s must not be negative", d.name)
		}
	}
	if c.Vents.Debounce < 5*time.Second || c.Vents.Debounce > 5*time.Minute {
		return fmt.Errorf("vents.debounce must be between 5s and 5m, got %s", c.Vents.Debounce)
	}
	if !c.Eco.CriticalTracking.Valid() {
		return fmt.Errorf("invalid eco.criticalTracking %q", c.Eco.CriticalTracking)
	}
	if !c.Eco.AwayBehavior.Valid() {
		return fmt.Errorf("invalid eco.awayBehavior %q", c.Eco.AwayBehavior)
	}
	for _, sensor := range c.ContactSensors {
		if sensor.ID == "" {
			return errors.New("contact sensor id is required")
		}
		if sensor.Kind != "door" && sensor.Kind != "window" {
			return fmt.Errorf("invalid contact sensor kind %q", sensor.Kind)
		}
	}

	rooms := make(map[string]struct{}, len(c.Rooms))
	vents := make(map[string]struct{})
	var members int
	for _, room := range c.Rooms {
		if room.Name == "" {
			return errors.New("room name is required")
		}
		if _, ok := rooms[room.Name]; ok {
			return fmt.Errorf("duplicate room name %q", room.Name)
		}
		rooms[room.Name] = struct{}{}
		if len(room.TemperatureSensors) == 0 {
			return fmt.Errorf("room %q: at least one temperature sensor is required", room.Name)
		}
		if room.VentOpenDelay < 0 {
			return fmt.Errorf("room %q: ventOpenDelay must not be negative", room.Name)
		}
		for _, vent := range room.Vents {
			if vent.ID == "" {
				return fmt.Errorf("room %q: vent id is required", room.Name)
			}
			if _, ok := vents[vent.ID]; ok {
				return fmt.Errorf("duplicate vent %q", vent.ID)
			}
			vents[vent.ID] = struct{}{}
			if vent.Members < 1 {
				return fmt.Errorf("vent %q: members must be at least 1", vent.ID)
			}
			members += vent.Members
		}
	}
	if *c.Vents.MinimumOpen < 0 {
		return errors.New("vents.minimumOpen must not be negative")
	}
	if *c.Vents.MinimumOpen > members {
		return fmt.Errorf("vents.minimumOpen (%d) exceeds the %d configured vents", *c.Vents.MinimumOpen, members)
	}
	for _, name := range c.Eco.Rooms {
		if _, ok := rooms[name]; !ok {
			return fmt.Errorf("eco.rooms: unknown room %q", name)
		}
	}
	for _, name := range c.Tracking.Rooms {
		if _, ok := rooms[name]; !ok {
			return fmt.Errorf("tracking.rooms: unknown room %q", name)
		}
	}
	return nil
}

// Room returns the configuration for the named room.
func (c ControllerConfiguration) Room(name string) (RoomConfiguration, bool) {
	for _, room := range c.Rooms {
		if room.Name == name {
			return room, true
		}
	}
	return RoomConfiguration{}, false
}

// VentMembers returns the number of physical vents the controller commands,
// counting each group as its member count.
func (c ControllerConfiguration) VentMembers() int {
	var members int
	for _, room := range c.Rooms {
		for _, vent := range room.Vents {
			members += vent.Members
		}
	}
	return members
}

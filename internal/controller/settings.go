package controller

import (
	"fmt"
	"strconv"

	"github.com/clambin/zoned/internal/configuration"
)

// Settings adjustable at runtime through Set. Changed values are persisted in
// the store and survive a restart; the configuration file only provides the
// initial value.
const (
	SettingEco            = "eco"
	SettingEcoTracking    = "eco-tracking"
	SettingEcoAway        = "eco-away"
	SettingTracking       = "tsr"
	SettingRespectUserOff = "respect-user-off"
)

type runtimeSettings struct {
	ecoTracking     configuration.TrackingMode
	ecoAwayBehavior configuration.AwayBehavior
	ecoEnabled      bool
	trackingEnabled bool
	respectUserOff  bool
}

func settingsFromConfiguration(cfg configuration.ControllerConfiguration) runtimeSettings {
	return runtimeSettings{
		ecoEnabled:      cfg.Eco.Enabled,
		ecoTracking:     cfg.Eco.CriticalTracking,
		ecoAwayBehavior: cfg.Eco.AwayBehavior,
		trackingEnabled: cfg.Tracking.Enabled,
		respectUserOff:  cfg.RespectUserOff,
	}
}

func (s *runtimeSettings) apply(name, value string) error {
	switch name {
	case SettingEco:
		return parseSwitch(value, &s.ecoEnabled)
	case SettingEcoTracking:
		mode := configuration.TrackingMode(value)
		if !mode.Valid() {
			return fmt.Errorf("invalid %s value %q", SettingEcoTracking, value)
		}
		s.ecoTracking = mode
	case SettingEcoAway:
		behavior := configuration.AwayBehavior(value)
		if !behavior.Valid() {
			return fmt.Errorf("invalid %s value %q", SettingEcoAway, value)
		}
		s.ecoAwayBehavior = behavior
	case SettingTracking:
		return parseSwitch(value, &s.trackingEnabled)
	case SettingRespectUserOff:
		return parseSwitch(value, &s.respectUserOff)
	default:
		return fmt.Errorf("unknown setting %q", name)
	}
	return nil
}

func (s runtimeSettings) snapshot() map[string]string {
	return map[string]string{
		SettingEco:            strconv.FormatBool(s.ecoEnabled),
		SettingEcoTracking:    string(s.ecoTracking),
		SettingEcoAway:        string(s.ecoAwayBehavior),
		SettingTracking:       strconv.FormatBool(s.trackingEnabled),
		SettingRespectUserOff: strconv.FormatBool(s.respectUserOff),
	}
}

// parseSwitch accepts on/off as well as anything strconv.ParseBool takes.
func parseSwitch(value string, target *bool) error {
	switch value {
	case "on":
		*target = true
		return nil
	case "off":
		*target = false
		return nil
	}
	v, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("expected a boolean, got %q", value)
	}
	*target = v
	return nil
}

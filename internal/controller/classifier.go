package controller

import (
	"math"
	"slices"

	"github.com/clambin/zoned/internal/poller"
)

// Classification identifies how a room participates in an evaluation cycle.
type Classification int

const (
	ClassificationExcluded Classification = iota
	ClassificationActive
	ClassificationCriticalOnly
)

func (c Classification) String() string {
	switch c {
	case ClassificationActive:
		return "active"
	case ClassificationCriticalOnly:
		return "critical-only"
	default:
		return "excluded"
	}
}

type classifierInput struct {
	Mode             poller.SystemMode
	Readings         []float64
	HeatTarget       float64
	CoolTarget       float64
	Deadband         float64
	HeatingThreshold float64
	CoolingThreshold float64
	Active           bool
}

// classification is the temperature verdict for one room. Unknown means the
// room had no usable reading: never satiated, never critical.
type classification struct {
	Unknown     bool
	Satiated    bool
	Critical    bool
	Temperature float64
	Distance    float64
}

// classify determines satiation and criticality for a room. Satiation is
// directional: a heating room is satiated once its warmest sensor reaches
// the bottom of the deadband, a cooling room once its coolest sensor drops
// below the top. Criticality compares against the unoccupied thresholds,
// using the least favorable sensor for active rooms and the most favorable
// for inactive ones.
func classify(in classifierInput) classification {
	if len(in.Readings) == 0 {
		return classification{Unknown: true}
	}

	warmest := slices.Max(in.Readings)
	coolest := slices.Min(in.Readings)
	var sum float64
	for _, reading := range in.Readings {
		sum += reading
	}
	average := sum / float64(len(in.Readings))

	c := classification{Temperature: average}

	if in.Mode.Heats() {
		if in.Mode == poller.ModeHeatCool {
			for _, reading := range in.Readings {
				if reading >= in.HeatTarget-in.Deadband && reading <= in.CoolTarget+in.Deadband {
					c.Satiated = true
					break
				}
			}
		} else {
			c.Satiated = warmest >= in.HeatTarget-in.Deadband
		}
		reference := warmest
		if in.Active {
			reference = coolest
		}
		if in.HeatTarget-reference >= in.HeatingThreshold {
			c.Critical = true
		}
	}
	if in.Mode.Cools() {
		if in.Mode != poller.ModeHeatCool {
			c.Satiated = coolest <= in.CoolTarget+in.Deadband
		}
		reference := coolest
		if in.Active {
			reference = warmest
		}
		if reference-in.CoolTarget >= in.CoolingThreshold {
			c.Critical = true
		}
	}

	switch {
	case in.Mode == poller.ModeHeatCool:
		c.Distance = min(math.Abs(average-in.HeatTarget), math.Abs(average-in.CoolTarget))
	case in.Mode.Heats():
		c.Distance = math.Abs(average - in.HeatTarget)
	case in.Mode.Cools():
		c.Distance = math.Abs(average - in.CoolTarget)
	}
	return c
}

// inferMode picks an operating mode from the average temperature when the
// thermostat does not report a usable one.
func inferMode(average, heatTarget, coolTarget float64) poller.SystemMode {
	switch {
	case average < heatTarget:
		return poller.ModeHeat
	case average > coolTarget:
		return poller.ModeCool
	default:
		return poller.ModeHeatCool
	}
}

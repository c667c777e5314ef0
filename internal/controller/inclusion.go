package controller

import (
	"github.com/clambin/go-common/set"
	"github.com/clambin/zoned/internal/configuration"
)

// EcoPolicy is the effective eco settings for one evaluation cycle, after
// the away behavior has been applied.
type EcoPolicy struct {
	Enabled          bool
	CriticalTracking configuration.TrackingMode
	Rooms            set.Set[string]
}

// TrackingPolicy limits evaluation of active rooms to a tracked subset.
type TrackingPolicy struct {
	Enabled bool
	Rooms   set.Set[string]
}

type inclusionInput struct {
	Room       string
	Active     bool
	Critical   bool
	ForceTrack bool
	Eco        EcoPolicy
	Tracking   TrackingPolicy
}

type inclusionOutcome struct {
	Included       bool
	Classification Classification
	Rule           string
}

// inclusionRule is one step of the inclusion pipeline. decide returns false
// to pass the room on to the next rule.
type inclusionRule struct {
	name   string
	decide func(inclusionInput) (inclusionOutcome, bool)
}

// inclusionRules decides, in order, whether a room takes part in the
// current cycle. Rooms with force-track set are always included while
// critical, whatever the eco and tracking settings say. Active rooms are
// included unless filtered out by the tracking policy. Inactive rooms are
// only watched for critical temperatures, and only as far as the eco policy
// allows.
var inclusionRules = []inclusionRule{
	{
		name: "critical-override",
		decide: func(in inclusionInput) (inclusionOutcome, bool) {
			if !in.ForceTrack || !in.Critical {
				return inclusionOutcome{}, false
			}
			classification := ClassificationCriticalOnly
			if in.Active {
				classification = ClassificationActive
			}
			return inclusionOutcome{Included: true, Classification: classification}, true
		},
	},
	{
		name: "active",
		decide: func(in inclusionInput) (inclusionOutcome, bool) {
			if !in.Active {
				return inclusionOutcome{}, false
			}
			if in.Tracking.Enabled && !in.Tracking.Rooms.Contains(in.Room) {
				return inclusionOutcome{}, true
			}
			return inclusionOutcome{Included: true, Classification: ClassificationActive}, true
		},
	},
	{
		name: "eco",
		decide: func(in inclusionInput) (inclusionOutcome, bool) {
			if !in.Eco.Enabled {
				return inclusionOutcome{}, false
			}
			switch in.Eco.CriticalTracking {
			case configuration.TrackingAll:
				return inclusionOutcome{Included: true, Classification: ClassificationCriticalOnly}, true
			case configuration.TrackingSelect:
				if in.Eco.Rooms.Contains(in.Room) {
					return inclusionOutcome{Included: true, Classification: ClassificationCriticalOnly}, true
				}
			}
			return inclusionOutcome{}, false
		},
	},
	{
		name: "excluded",
		decide: func(inclusionInput) (inclusionOutcome, bool) {
			return inclusionOutcome{}, true
		},
	},
}

func include(in inclusionInput) inclusionOutcome {
	for _, rule := range inclusionRules {
		if outcome, ok := rule.decide(in); ok {
			outcome.Rule = rule.name
			return outcome
		}
	}
	return inclusionOutcome{Rule: "excluded"}
}

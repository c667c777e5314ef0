package controller

import (
	"fmt"
	"strings"
	"time"
)

// Status is a snapshot of one controller's state, published after every
// evaluation. It is a pure projection: consumers (bot, metrics, health)
// never reach into the controller itself.
type Status struct {
	Updated     time.Time
	Settings    map[string]string
	Name        string
	PauseState  string
	TriggeredBy string
	Mode        string
	Summary     string
	OpenSensors []string
	Rooms       []RoomStatus
	Vents       []VentStatus
	Paused      bool
	Running     bool
	Away        bool
}

type RoomStatus struct {
	OccupiedSince  time.Time
	ActiveSince    time.Time
	Name           string
	Classification string
	Rule           string
	Temperature    float64
	Occupied       bool
	Active         bool
	Satiated       bool
	Critical       bool
	Included       bool
}

type VentStatus struct {
	ID           string
	Room         string
	Members      int
	Open         bool
	Confirmed    bool
	Unresponsive bool
}

// Room returns the status for the named room.
func (s Status) Room(name string) (RoomStatus, bool) {
	for _, room := range s.Rooms {
		if room.Name == name {
			return room, true
		}
	}
	return RoomStatus{}, false
}

// summary builds the one-line control status.
func (s Status) summary() string {
	if s.Paused {
		reason := s.TriggeredBy
		if len(s.OpenSensors) > 0 {
			reason = strings.Join(s.OpenSensors, ", ") + " open"
		}
		return fmt.Sprintf("paused (%s)", reason)
	}
	var needy, critical int
	for _, room := range s.Rooms {
		if !room.Included {
			continue
		}
		if room.Critical {
			critical++
		} else if room.Classification == ClassificationActive.String() && !room.Satiated {
			needy++
		}
	}
	if !s.Running {
		return "idle"
	}
	parts := make([]string, 0, 2)
	if needy > 0 {
		parts = append(parts, plural(needy, "room")+" not on temperature")
	}
	if critical > 0 {
		parts = append(parts, plural(critical, "room")+" critical")
	}
	if len(parts) == 0 {
		return fmt.Sprintf("running (%s)", s.Mode)
	}
	return fmt.Sprintf("running (%s)", strings.Join(parts, ", "))
}

func plural(count int, noun string) string {
	if count == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", count, noun)
}

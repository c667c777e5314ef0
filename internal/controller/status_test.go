package controller

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_Summary(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		want   string
	}{
		{
			name:   "paused by sensors",
			status: Status{Paused: true, TriggeredBy: "door.front", OpenSensors: []string{"door.front", "window.kitchen"}},
			want:   "paused (door.front, window.kitchen open)",
		},
		{
			name:   "paused manually",
			status: Status{Paused: true, TriggeredBy: "manual"},
			want:   "paused (manual)",
		},
		{
			name:   "idle",
			status: Status{Mode: "heat"},
			want:   "idle",
		},
		{
			name:   "running with everything on temperature",
			status: Status{Running: true, Mode: "heat"},
			want:   "running (heat)",
		},
		{
			name: "running with rooms to serve",
			status: Status{
				Running: true,
				Mode:    "heat",
				Rooms: []RoomStatus{
					{Name: "bedroom", Included: true, Classification: "active"},
					{Name: "study", Included: true, Classification: "active", Satiated: true},
					{Name: "kitchen", Included: true, Classification: "critical-only", Critical: true},
				},
			},
			want: "running (1 room not on temperature, 1 room critical)",
		},
		{
			name: "plurals",
			status: Status{
				Running: true,
				Mode:    "cool",
				Rooms: []RoomStatus{
					{Name: "bedroom", Included: true, Classification: "active"},
					{Name: "study", Included: true, Classification: "active"},
					{Name: "kitchen", Included: true, Classification: "critical-only", Critical: true},
					{Name: "pantry", Included: true, Classification: "critical-only", Critical: true},
				},
			},
			want: "running (2 rooms not on temperature, 2 rooms critical)",
		},
		{
			name: "excluded rooms don't count",
			status: Status{
				Running: true,
				Mode:    "heat",
				Rooms:   []RoomStatus{{Name: "cellar", Classification: "excluded"}},
			},
			want: "running (heat)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.summary())
		})
	}
}

func TestStatus_Room(t *testing.T) {
	status := Status{Rooms: []RoomStatus{{Name: "bedroom"}, {Name: "study"}}}
	room, ok := status.Room("study")
	require.True(t, ok)
	assert.Equal(t, "study", room.Name)
	_, ok = status.Room("cellar")
	assert.False(t, ok)
}

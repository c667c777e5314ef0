package controller

// timerKind identifies the purpose of a scheduled timer. Together with the
// entity it refers to, it forms the key into the controller's timer queue,
// so rescheduling or canceling is always scoped to one entity and purpose.
type timerKind int

const (
	timerPauseOpen timerKind = iota
	timerPauseClose
	timerOccupancyMinimum
	timerOccupancyGrace
	timerVentOpenDelay
	timerVentConfirm
)

var timerKindNames = map[timerKind]string{
	timerPauseOpen:        "pause-open",
	timerPauseClose:       "pause-close",
	timerOccupancyMinimum: "occupancy-minimum",
	timerOccupancyGrace:   "occupancy-grace",
	timerVentOpenDelay:    "vent-open-delay",
	timerVentConfirm:      "vent-confirm",
}

func (k timerKind) String() string {
	return timerKindNames[k]
}

type timerKey struct {
	kind timerKind
	id   string
}

func (k timerKey) String() string {
	return k.kind.String() + "/" + k.id
}

package controller

// roomEvaluation is the outcome of one room's evaluation. One record is
// built per room per cycle and shared by the decision engine, the vent
// selector and the status projections.
type roomEvaluation struct {
	room           string
	temperature    float64
	distance       float64 // how far the room is from its target. -1 when no sensor reading is known.
	readings       int
	unknownSensors []string
	occupied       bool
	active         bool
	satiated       bool
	critical       bool
	included       bool
	classification Classification
	rule           string
}

// wantRun reports whether any room needs climate control: an included room
// under active evaluation that is not satiated, or any included room in a
// critical condition.
func wantRun(evaluations []roomEvaluation) bool {
	for _, e := range evaluations {
		if !e.included {
			continue
		}
		if e.critical {
			return true
		}
		if e.classification == ClassificationActive && !e.satiated {
			return true
		}
	}
	return false
}

package nav

// Phase is the state of one navigation attempt.
type Phase int

const (
	PhaseLeakEscape Phase = iota
	PhaseSearch
	PhaseClimb
	PhaseTraverse
	PhaseAdvance // direct steering, no plan
	PhaseCollisionWait
	PhaseCollisionTurn
	PhaseCollisionAdvance
	PhaseDescend
	PhaseFinalTurn
	PhaseFinalMove
	PhaseCompleted
	PhaseFailed
	phaseCount
)

var phaseNames = [phaseCount]string{
	PhaseLeakEscape:       "leak_escape",
	PhaseSearch:           "search",
	PhaseClimb:            "climb",
	PhaseTraverse:         "traverse",
	PhaseAdvance:          "advance",
	PhaseCollisionWait:    "collision_wait",
	PhaseCollisionTurn:    "collision_turn",
	PhaseCollisionAdvance: "collision_advance",
	PhaseDescend:          "descend",
	PhaseFinalTurn:        "final_turn",
	PhaseFinalMove:        "final_move",
	PhaseCompleted:        "completed",
	PhaseFailed:           "failed",
}

func (p Phase) String() string {
	if p < 0 || p >= phaseCount {
		return "unknown"
	}
	return phaseNames[p]
}

// Terminal reports whether no further transition can happen.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// recovering reports whether p belongs to collision recovery.
func (p Phase) recovering() bool {
	return p == PhaseCollisionWait || p == PhaseCollisionTurn || p == PhaseCollisionAdvance
}

// GoalMode selects how the unit behaves at the destination.
type GoalMode int

const (
	GoalDefault GoalMode = iota
	GoalStop
	// GoalExpress never brakes: the unit runs through the goal area and
	// stops as soon as it starts moving away again.
	GoalExpress
)

func (g GoalMode) String() string {
	switch g {
	case GoalStop:
		return "stop"
	case GoalExpress:
		return "express"
	default:
		return "default"
	}
}

// CrashPolicy selects how collisions are handled, and whether a route is
// planned at all.
type CrashPolicy int

const (
	CrashDefault CrashPolicy = iota
	CrashHalt
	CrashRight
	CrashLeft
	CrashRightLeft
	CrashLeftRight
	// CrashBeam plans a route with the beam search.
	CrashBeam
)

func (c CrashPolicy) String() string {
	switch c {
	case CrashHalt:
		return "halt"
	case CrashRight:
		return "right"
	case CrashLeft:
		return "left"
	case CrashRightLeft:
		return "right_left"
	case CrashLeftRight:
		return "left_right"
	case CrashBeam:
		return "beam"
	default:
		return "default"
	}
}

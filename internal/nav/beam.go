package nav

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// PlanStatus is the outcome of one planner step.
type PlanStatus int

const (
	PlanContinue PlanStatus = iota
	PlanFound
	PlanImpossible
	PlanIterationLimit
)

func (s PlanStatus) String() string {
	switch s {
	case PlanFound:
		return "found"
	case PlanImpossible:
		return "impossible"
	case PlanIterationLimit:
		return "iteration_limit"
	default:
		return "continue"
	}
}

// Err maps a terminal status to its failure reason.
func (s PlanStatus) Err() error {
	switch s {
	case PlanImpossible:
		return ErrImpossible
	case PlanIterationLimit:
		return ErrIterationLimit
	default:
		return nil
	}
}

// ExplorationMemo records, per search depth, the next branch to try. A depth
// holding -1 has not been entered since its parent last changed branch.
// Branch 0 is the straight continuation; branch 2k-1 turns by +k increments
// and branch 2k by -k increments.
type ExplorationMemo struct {
	cursor []int
	spent  int // failed branches in the current step
	steps  int
	total  int // failed branches since Reset
}

// NewExplorationMemo creates a memo for searches up to maxDepth deep.
func NewExplorationMemo(maxDepth int) *ExplorationMemo {
	m := &ExplorationMemo{cursor: make([]int, maxDepth+1)}
	m.Reset()
	return m
}

// Reset forgets every explored branch.
func (m *ExplorationMemo) Reset() {
	for i := range m.cursor {
		m.cursor[i] = -1
	}
	m.spent, m.steps, m.total = 0, 0, 0
}

// Cursor returns the next branch to try at depth, or -1.
func (m *ExplorationMemo) Cursor(depth int) int { return m.cursor[depth] }

// Steps returns how many planner steps ran since Reset.
func (m *ExplorationMemo) Steps() int { return m.steps }

// Failed returns how many branches failed since Reset.
func (m *ExplorationMemo) Failed() int { return m.total }

// enter marks depth as visited and reports whether this is the first visit.
func (m *ExplorationMemo) enter(depth int) bool {
	if m.cursor[depth] != -1 {
		return false
	}
	m.cursor[depth] = 0
	return true
}

// fail records that branch failed at depth, forgets everything deeper and
// counts the evaluation against the step budget.
func (m *ExplorationMemo) fail(depth, branch int) {
	m.cursor[depth] = branch + 1
	for i := depth + 1; i < len(m.cursor); i++ {
		m.cursor[i] = -1
	}
	m.spent++
	m.total++
}

// Planner is the resumable beam search. It owns its memo and chain; the grid
// is owned by the navigation attempt that created it.
type Planner struct {
	grid *OccupancyGrid
	cfg  PlannerConfig
	memo *ExplorationMemo

	start, goal mgl64.Vec3
	goalRadius  float64
	step        float64
	cone        float64

	points   []mgl64.Vec3
	total    int
	offMap   bool
	finished PlanStatus
}

// NewPlanner creates a planner bound to grid.
func NewPlanner(grid *OccupancyGrid, cfg PlannerConfig) *Planner {
	return &Planner{
		grid:   grid,
		cfg:    cfg,
		memo:   NewExplorationMemo(cfg.MaxDepth),
		points: make([]mgl64.Vec3, cfg.MaxDepth+2),
		cone:   mgl64.DegToRad(cfg.ConeDegrees),
	}
}

// Reset prepares a new search from start to within goalRadius of goal.
func (p *Planner) Reset(start, goal mgl64.Vec3, goalRadius float64) {
	p.memo.Reset()
	p.start, p.goal = flat(start), flat(goal)
	p.goalRadius = goalRadius
	p.total = 0
	p.finished = PlanContinue

	length := distXZ(start, goal)
	p.step = mgl64.Clamp(length/p.cfg.StepDivisor, p.grid.CellSize()*p.cfg.MinStepCells, p.cfg.MaxStep)
	p.offMap = !p.grid.InBounds(p.grid.CellOf(goal))
}

// StepLength returns the distance between consecutive raw waypoints.
func (p *Planner) StepLength() float64 { return p.step }

// Memo exposes the exploration memo.
func (p *Planner) Memo() *ExplorationMemo { return p.memo }

// Step spends at most one tick's budget of failed branches and reports the
// search state. After a terminal status, Step keeps returning it.
func (p *Planner) Step() PlanStatus {
	if p.finished != PlanContinue {
		return p.finished
	}
	if p.offMap {
		p.finished = PlanImpossible
		return p.finished
	}
	p.memo.steps++
	p.memo.spent = 0

	st := p.explore(p.start, p.start, 0)
	if st != PlanContinue {
		p.finished = st
	}
	return st
}

// Chain returns the raw waypoint chain once the search has found a route:
// the start point, intermediate points and the approach point. It never
// holds more than MaxDepth points.
func (p *Planner) Chain() []mgl64.Vec3 {
	if p.finished != PlanFound {
		return nil
	}
	out := make([]mgl64.Vec3, p.total+1)
	copy(out, p.points[:p.total+1])
	return out
}

// coneAt returns the cone half-angle used to branch from depth.
func (p *Planner) coneAt(depth int) float64 {
	return p.cone / (1 + p.cfg.ConeNarrowing*float64(depth))
}

// branchAngle maps a branch index to its angular offset.
func branchAngle(branch int, cone float64, divisions int) float64 {
	if branch == 0 {
		return 0
	}
	k := float64((branch + 1) / 2)
	a := cone * k / float64(divisions)
	if branch%2 == 0 {
		return -a
	}
	return a
}

// beamPoint returns the point step away from from, turned by angle off the
// direction to goal.
func beamPoint(from, goal mgl64.Vec3, angle, step float64) mgl64.Vec3 {
	h := headingOf(goal[0]-from[0], goal[2]-from[2])
	return flat(from).Add(headingVec(h + angle).Mul(step))
}

// explore extends the chain at depth from cur. prev is the point cur was
// reached from; the segment between them is verified on first entry.
func (p *Planner) explore(prev, cur mgl64.Vec3, depth int) PlanStatus {
	if depth >= p.cfg.MaxDepth {
		return PlanIterationLimit
	}
	p.total = depth

	parentCone := p.coneAt(max(depth-1, 0))
	if p.memo.enter(depth) {
		p.points[depth] = cur
		stepAngle := parentCone / float64(p.cfg.Divisions)
		if depth > 0 && !p.grid.TestLine(prev, cur, stepAngle, true) {
			return PlanImpossible
		}
		if st, ok := p.tryFinish(cur, depth, stepAngle); ok {
			return st
		}
	}

	cone := p.coneAt(depth)
	branches := 2*p.cfg.Divisions + 1
	for b := p.memo.Cursor(depth); b < branches; b++ {
		next := beamPoint(cur, p.goal, branchAngle(b, cone, p.cfg.Divisions), p.step)
		st := p.explore(cur, next, depth+1)
		if st != PlanImpossible {
			return st
		}
		p.memo.fail(depth, b)
		if p.memo.spent >= p.cfg.BudgetPerTick {
			return PlanContinue
		}
	}
	return PlanImpossible
}

// tryFinish closes the chain when the goal is within one step and the final
// segment is clear.
func (p *Planner) tryFinish(cur mgl64.Vec3, depth int, stepAngle float64) (PlanStatus, bool) {
	remaining := distXZ(cur, p.goal) - p.goalRadius
	if remaining > p.step {
		return PlanContinue, false
	}
	end := p.goal
	if p.goalRadius != 0 {
		end = beamPoint(cur, p.goal, 0, math.Max(remaining, 0))
	}
	if !p.grid.TestLine(cur, end, stepAngle, false) {
		return PlanContinue, false
	}
	// The closing point would be waypoint depth+2; chains hold at most
	// MaxDepth points.
	if depth+2 > p.cfg.MaxDepth {
		return PlanIterationLimit, true
	}
	p.points[depth+1] = end
	p.total = depth + 1
	return PlanFound, true
}

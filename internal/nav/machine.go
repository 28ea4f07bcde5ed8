package nav

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// repulseReach bounds the neighbourhood scanned for repulsion.
const repulseReach = 40.0

// attempt is the state of one navigation request. It owns its grid and
// planner; nothing else reads or writes them.
type attempt struct {
	handle   Handle
	body     Body
	class    Class
	req      Request
	approach Approach
	planned  bool
	altitude float64
	start    mgl64.Vec3 // where the latest search started

	phase  Phase
	motor  Motor
	ticks  int
	err    error
	leak   leakEscape
	timer  float64
	dog    watchdog
	turnTo float64    // collision turn heading
	mark   mgl64.Vec3 // where the current straight advance began

	// Collision recovery: stage 1 is the short side-step, stage 2 the
	// longer turn-about. resume is the phase to return to. tries counts
	// the collisions of the current recovery and is cleared once the unit
	// gets back to resume.
	stage  int
	resume Phase
	tries  int

	grid          *OccupancyGrid
	planner       *Planner
	shortcut      Shortcutter
	searchPending bool
	planSteps     int
	stamped       int
	restarts      int

	chain []mgl64.Vec3
	route []mgl64.Vec3 // chain after the shortcut pass
	index int

	lastDist  float64 // express stop rule
	finalDist float64
	deadline  float64
}

func (a *attempt) status() (Status, error) {
	switch a.phase {
	case PhaseCompleted:
		return StatusSucceeded, nil
	case PhaseFailed:
		return StatusFailed, a.err
	}
	return StatusContinue, nil
}

// watchdog accumulates the time a unit spends commanded to move without
// leaving a small neighbourhood.
type watchdog struct {
	pos   mgl64.Vec3
	stuck float64
}

func (w *watchdog) reset(p mgl64.Vec3) {
	w.pos = p
	w.stuck = 0
}

// update returns the stuck time so far. Any movement of at least dist, or an
// idle command, restarts the count from p.
func (w *watchdog) update(p mgl64.Vec3, moving bool, dt, dist float64) float64 {
	if !moving || p.Sub(w.pos).Len() >= dist {
		w.reset(p)
		return 0
	}
	w.stuck += dt
	return w.stuck
}

// machine holds one update function per phase. Each returns the next phase
// and leaves the motor set-points for this tick in attempt.motor.
type machine struct {
	nav *Navigator
}

func (m machine) update(a *attempt, dt float64) Phase {
	switch a.phase {
	case PhaseLeakEscape:
		return m.leakEscape(a, dt)
	case PhaseSearch:
		return m.search(a)
	case PhaseClimb:
		return m.climb(a, dt)
	case PhaseTraverse:
		return m.traverse(a, dt)
	case PhaseAdvance:
		return m.advance(a, dt)
	case PhaseCollisionWait:
		return m.collisionWait(a, dt)
	case PhaseCollisionTurn:
		return m.collisionTurn(a, dt)
	case PhaseCollisionAdvance:
		return m.collisionAdvance(a, dt)
	case PhaseDescend:
		return m.descend(a, dt)
	case PhaseFinalTurn:
		return m.finalTurn(a, dt)
	case PhaseFinalMove:
		return m.finalMove(a, dt)
	}
	return a.phase
}

// beamStart builds a fresh grid around the unit and its goal and returns the
// phase that opens the search: LeakEscape when the unit starts wedged
// against a neighbour, Search otherwise.
func (m machine) beamStart(a *attempt) Phase {
	cfg := m.nav.cfg
	pos := a.body.Position()

	a.grid = NewOccupancyGrid(cfg.Grid, newTerrainRasterizer(m.nav.terrain, a.class, cfg))
	lo, hi := entityBox(pos, a.approach.Point, cfg.Grid.EntityMargin)
	ents := m.nav.entities.EntitiesIn(lo, hi)
	st := obstacleStamp{
		self:     a.body.ID(),
		radius:   a.body.CrashSphere().Radius,
		margin:   cfg.Grid.SafetyMargin,
		band:     cfg.Grid.VerticalBand,
		altitude: a.altitude,
		flying:   a.class.Flies(),
	}
	if a.approach.Omnidirectional {
		st.skip = a.approach.Target
	}
	a.stamped = stampEntities(a.grid, m.nav.terrain, ents, st)
	a.grid.EnsureRasterizedBox(pos, a.approach.Point, cfg.Grid.InitialPad)

	a.planner = NewPlanner(a.grid, cfg.Planner)
	a.shortcut = NewShortcutter(a.grid)
	a.searchPending = true
	a.chain, a.route, a.index = nil, nil, 0
	a.motor = Motor{}
	a.timer = 0
	a.start = pos

	if l, ok := findLeak(a.body, ents, cfg.Leak); ok {
		a.leak = l
		return PhaseLeakEscape
	}
	return PhaseSearch
}

func (m machine) leakEscape(a *attempt, dt float64) Phase {
	a.timer += dt
	if a.timer >= a.leak.delay {
		a.motor = Motor{}
		a.timer = 0
		return PhaseSearch
	}
	a.motor = a.leak.command(a.body.Heading(), a.body.Position())
	if a.timer == dt {
		m.nav.event(a, CatRecover, "leak", fmtVec(a.leak.from), a.leak.delay)
	}
	return PhaseLeakEscape
}

func (m machine) search(a *attempt) Phase {
	a.motor = Motor{}
	if a.searchPending {
		a.searchPending = false
		pos := a.body.Position()
		a.grid.ClearCircle(pos, a.grid.CellSize()*m.nav.cfg.Grid.StartClear)
		a.planner.Reset(pos, a.approach.Point, a.approach.StandOff)
		a.start = pos
		m.nav.event(a, CatPlan, "begin", fmtVec(a.approach.Point), a.planner.StepLength())
	}

	st := a.planner.Step()
	a.planSteps = a.planner.Memo().Steps()
	switch st {
	case PlanContinue:
		return PhaseSearch
	case PlanFound:
		a.chain = a.planner.Chain()
		a.route = a.shortcut.Collapse(a.chain)
		a.index = 0
		a.lastDist = math.Inf(1)
		a.dog.reset(a.body.Position())
		m.nav.event(a, CatPlan, "found",
			fmt.Sprintf("%d points in %d steps, %d after shortcuts", len(a.chain), a.planSteps, len(a.route)), float64(len(a.chain)))
		if a.class.Flies() && a.altitude > 0 && a.body.OnGround() {
			return PhaseClimb
		}
		return PhaseTraverse
	}
	m.nav.event(a, CatPlan, st.String(),
		fmt.Sprintf("%d failed branches", a.planner.Memo().Failed()), float64(a.planSteps))
	return m.fail(a, st.Err())
}

func (m machine) climb(a *attempt, dt float64) Phase {
	cfg := m.nav.cfg
	pos := a.body.Position()
	target := math.Min(m.nav.terrain.FloorHeight(pos)+a.altitude-cfg.Flight.ClimbSlack, m.nav.terrain.FlyingCeiling())
	if pos[1] < target-1 && a.dog.update(pos, true, dt, cfg.Recovery.WatchdogDistance) < cfg.Recovery.WatchdogSeconds {
		a.motor = Motor{Vertical: 1}
		return PhaseClimb
	}
	a.motor = Motor{}
	a.dog.reset(pos)
	return PhaseTraverse
}

func (m machine) traverse(a *attempt, dt float64) Phase {
	cfg := m.nav.cfg
	if a.body.Colliding() {
		return m.collide(a, PhaseTraverse)
	}
	pos := a.body.Position()
	target := a.chain[a.index]
	last := a.index == len(a.chain)-1

	lin, ang := m.nav.steer.Waypoint(a.body.Heading(), pos, target, last, a.body.StopLength(), a.req.GoalMode == GoalExpress)
	vert := m.cruise(a, pos, target)
	a.motor = Motor{Linear: lin, Angular: ang, Vertical: vert}
	m.nav.verbose(a, CatTraverse, "motor", fmt.Sprintf("lin=%.2f ang=%.2f vert=%.2f", lin, ang, vert), lin)

	if a.dog.update(pos, lin != 0, dt, cfg.Recovery.WatchdogDistance) >= cfg.Recovery.WatchdogSeconds {
		return m.restart(a, "no progress in traverse")
	}
	if next, ok := m.expressStop(a, pos); ok {
		return next
	}

	limit := m.arrivalLimit(a, last)
	if math.Abs(pos[0]-target[0]) >= limit || math.Abs(pos[2]-target[2]) >= limit {
		return PhaseTraverse
	}
	a.motor.Linear, a.motor.Angular = 0, 0
	next := a.shortcut.Next(a.chain, a.index)
	if next > a.index+1 && next < len(a.chain) {
		m.nav.event(a, CatTraverse, "shortcut", fmt.Sprintf("%d → %d", a.index, next), float64(next-a.index-1))
	}
	a.index = next
	if a.index >= len(a.chain) {
		a.index = len(a.chain) - 1
		a.dog.reset(pos)
		return PhaseDescend
	}
	m.nav.verbose(a, CatTraverse, "waypoint", fmtVec(a.chain[a.index]), float64(a.index))
	return PhaseTraverse
}

// cruise returns the vertical set-point of a flyer heading for target. The
// height is measured over the higher floor of here and a look-ahead point
// that moves out with speed.
func (m machine) cruise(a *attempt, pos, target mgl64.Vec3) float64 {
	if !a.class.Flies() {
		return 0
	}
	if a.altitude == 0 {
		if a.body.OnGround() {
			return 0
		}
		return -1
	}
	t := m.nav.terrain
	floor := t.FloorHeight(pos)
	if d := distXZ(pos, target); d != 0 {
		ahead := m.nav.cfg.Flight.Lookahead * math.Abs(a.motor.Linear) / d
		look := pos.Add(flat(target.Sub(pos)).Mul(ahead))
		floor = math.Max(floor, t.FloorHeight(look))
	}
	return m.nav.steer.Cruise(pos[1]-floor, a.altitude, m.nav.cfg.Flight.AltitudeBand)
}

// arrivalLimit returns the per-axis tolerance for reaching a waypoint.
func (m machine) arrivalLimit(a *attempt, last bool) float64 {
	ar := m.nav.cfg.Arrival
	switch {
	case a.class.traits().approx:
		return ar.Approx
	case a.body.OnGround():
		return ar.Ground
	case !last:
		return 2 * ar.Air
	}
	return ar.Air
}

// expressStop ends an express attempt once the unit is near the goal and
// starts moving away from it.
func (m machine) expressStop(a *attempt, pos mgl64.Vec3) (Phase, bool) {
	if a.req.GoalMode != GoalExpress {
		return a.phase, false
	}
	margin := m.nav.cfg.Arrival.ExpressMargin
	if a.class.Flies() {
		margin = m.nav.cfg.Arrival.ExpressMarginAir
	}
	d := distXZ(pos, a.approach.Point)
	prev := a.lastDist
	a.lastDist = d
	if d < margin && d > prev {
		a.motor = Motor{}
		return PhaseCompleted, true
	}
	return a.phase, false
}

// advance steers straight at the goal without a plan.
func (m machine) advance(a *attempt, dt float64) Phase {
	cfg := m.nav.cfg
	if a.body.Colliding() {
		return m.collide(a, PhaseAdvance)
	}
	pos, heading := a.body.Position(), a.body.Heading()
	goal := a.approach.Point

	lo, hi := entityBox(pos, pos, repulseReach)
	ents := m.nav.entities.EntitiesIn(lo, hi)
	u := m.repulseUnit(a)

	var lin, ang float64
	if a.req.GoalMode == GoalExpress {
		lin, ang = m.nav.steer.Express(heading, pos, goal)
	} else {
		lin, ang = m.nav.steer.Direct(heading, pos, goal, m.nav.steer.Repulse(u, ents), a.body.StopLength())
	}
	a.motor = Motor{Linear: lin, Angular: ang, Vertical: m.directVertical(a, u, pos, ents)}

	if a.dog.update(pos, lin != 0, dt, cfg.Recovery.WatchdogDistance) >= cfg.Recovery.StallSeconds {
		m.nav.event(a, CatRecover, "stall", fmtVec(pos), a.dog.stuck)
		return m.fail(a, ErrMoveBlocked)
	}
	if next, ok := m.expressStop(a, pos); ok {
		return next
	}

	limit := cfg.Arrival.DirectAir
	switch {
	case a.class.traits().approx:
		limit = cfg.Arrival.Approx
	case a.body.OnGround():
		limit = cfg.Arrival.DirectGround
	}
	if math.Abs(pos[0]-goal[0]) < limit && math.Abs(pos[2]-goal[2]) < limit {
		a.motor = Motor{}
		a.dog.reset(pos)
		return PhaseDescend
	}
	return PhaseAdvance
}

// directVertical holds a flyer's altitude on a direct move, letting it sink
// over the last stretch before the goal.
func (m machine) directVertical(a *attempt, u repulseUnit, pos mgl64.Vec3, ents []Entity) float64 {
	if !a.class.Flies() || a.altitude <= 0 {
		return 0
	}
	h := pos[1] - m.nav.terrain.FloorHeight(pos)
	if a.req.GoalMode == GoalExpress {
		switch {
		case h < a.altitude:
			return 0.1
		case h > a.altitude:
			return -0.2
		}
		return 0
	}

	factor := mgl64.Clamp((distXZ(pos, a.approach.Point)-20)/20, 0, 1)
	v := 0.0
	if factor == 1 && h < (a.altitude-0.5)*factor {
		v = 0.1
	}
	if h > a.altitude*factor {
		v = -0.2
	}
	up := m.nav.steer.FlyingRepulse(u, ents, m.nav.cfg.Grid.VerticalBand)
	return v + up*m.nav.cfg.Steering.FlyingRepulse
}

func (m machine) repulseUnit(a *attempt) repulseUnit {
	return repulseUnit{
		id:         a.body.ID(),
		class:      a.class,
		sphere:     a.body.CrashSphere(),
		goal:       a.approach.Point,
		onGround:   a.body.OnGround(),
		stopLength: a.body.StopLength(),
	}
}

// descend lands a flyer. A descent that stops making progress for
// Recovery.StallSeconds finishes the attempt in the air.
func (m machine) descend(a *attempt, dt float64) Phase {
	cfg := m.nav.cfg
	if a.class.Flies() && a.altitude > 0 && !a.body.OnGround() {
		pos := a.body.Position()
		if a.dog.update(pos, true, dt, cfg.Recovery.WatchdogDistance) < cfg.Recovery.StallSeconds {
			a.motor = Motor{Vertical: -cfg.Flight.DescendSpeed}
			return PhaseDescend
		}
		m.nav.event(a, CatRecover, "landing", "no progress, finishing in the air", a.dog.stuck)
		a.altitude = 0
	}
	if a.class.Flies() && a.altitude > 0 {
		a.motor = Motor{}
		a.altitude = 0
		if a.planned {
			// Finish the last stretch on the ground.
			a.index = len(a.chain) - 1
			a.dog.reset(a.body.Position())
			return PhaseTraverse
		}
	}
	a.motor = Motor{}
	if !a.approach.Face {
		return PhaseCompleted
	}
	pos, f := a.body.Position(), a.approach.Facing
	if distXZ(pos, f) == 0 {
		return PhaseCompleted
	}
	a.turnTo = headingOf(f[0]-pos[0], f[2]-pos[2])
	a.timer = 0
	return PhaseFinalTurn
}

// finalTurn faces the target, giving up on the turn after
// Recovery.TurnTimeout like a recovery turn does.
func (m machine) finalTurn(a *attempt, dt float64) Phase {
	cfg := m.nav.cfg.Arrival
	h := a.body.Heading()
	limit := cfg.FaceTolerance
	if a.class.traits().approx {
		limit = cfg.FaceApprox
	}
	a.timer += dt
	if off := math.Abs(turnError(h, a.turnTo)); off >= limit {
		if a.timer < m.nav.cfg.Recovery.TurnTimeout {
			a.motor = Motor{Angular: m.nav.steer.Face(h, a.turnTo)}
			return PhaseFinalTurn
		}
		m.nav.event(a, CatRecover, "face", "turn timed out", off)
	}
	a.motor = Motor{}
	a.timer = 0
	if a.approach.FinalMove == 0 {
		return PhaseCompleted
	}
	a.mark = a.body.Position()
	a.finalDist = math.Abs(a.approach.FinalMove)
	a.deadline = math.Max(a.body.TravelTime(a.finalDist)*1.5, cfg.FinalMoveMin)
	return PhaseFinalMove
}

func (m machine) finalMove(a *attempt, dt float64) Phase {
	a.deadline -= dt
	if a.deadline <= 0 || a.body.Position().Sub(a.mark).Len() >= a.finalDist {
		a.motor = Motor{}
		return PhaseCompleted
	}
	a.motor = Motor{Linear: 1}
	return PhaseFinalMove
}

// --- Collision recovery ---

// collide handles a collision reported while moving along resume.
func (m machine) collide(a *attempt, resume Phase) Phase {
	pos := a.body.Position()
	a.body.ClearCollision()
	m.nav.effects.SpawnEffect(pos, EffectDust)
	m.nav.effects.PlaySound(SoundBump, pos)
	a.motor = Motor{}

	if a.req.GoalMode == GoalExpress && a.req.Crash == CrashHalt {
		// Insects treat any bump as having arrived.
		return PhaseCompleted
	}
	a.tries = 1
	m.nav.event(a, CatRecover, "collision", resume.String(), float64(a.tries))
	a.resume = resume
	a.stage = 1
	a.timer = 0
	return PhaseCollisionWait
}

// recoveryTurn is the heading change for a recovery stage under policy.
// Positive turns are clockwise seen from above with +Z pointing down.
func recoveryTurn(policy CrashPolicy, stage int) float64 {
	if stage == 1 {
		switch policy {
		case CrashLeft, CrashLeftRight:
			return -math.Pi / 2
		}
		return math.Pi / 2
	}
	switch policy {
	case CrashLeftRight:
		return math.Pi
	case CrashRight:
		return math.Pi / 2
	case CrashLeft:
		return -math.Pi / 2
	}
	return -math.Pi
}

func (m machine) collisionWait(a *attempt, dt float64) Phase {
	a.motor = Motor{}
	if a.req.Crash == CrashHalt {
		return m.fail(a, ErrMoveBlocked)
	}
	a.timer += dt
	if a.timer < m.nav.cfg.Recovery.WaitSeconds {
		return PhaseCollisionWait
	}
	a.turnTo = normAngle(a.body.Heading() + recoveryTurn(a.req.Crash, a.stage))
	a.timer = 0
	return PhaseCollisionTurn
}

func (m machine) collisionTurn(a *attempt, dt float64) Phase {
	cfg := m.nav.cfg.Recovery
	h := a.body.Heading()
	a.timer += dt
	if math.Abs(turnError(h, a.turnTo)) >= cfg.TurnTolerance && a.timer < cfg.TurnTimeout {
		a.motor = Motor{Angular: m.nav.steer.Face(h, a.turnTo)}
		return PhaseCollisionTurn
	}
	a.motor = Motor{}
	a.mark = a.body.Position()
	a.timer = 0
	a.dog.reset(a.mark)
	return PhaseCollisionAdvance
}

func (m machine) collisionAdvance(a *attempt, dt float64) Phase {
	cfg := m.nav.cfg.Recovery
	pos := a.body.Position()
	if a.body.Colliding() {
		a.body.ClearCollision()
		a.motor = Motor{}
		a.tries++
		m.nav.event(a, CatRecover, "collision", PhaseCollisionAdvance.String(), float64(a.tries))
		if a.tries > cfg.MaxTries {
			return m.stuck(a)
		}
		a.stage = 3 - a.stage
		a.timer = 0
		return PhaseCollisionWait
	}

	need := cfg.AdvanceDistance
	if a.stage == 2 {
		need = cfg.RetreatDistance
	}
	if pos.Sub(a.mark).Len() >= need {
		a.motor = Motor{}
		a.stage, a.tries = 0, 0
		a.dog.reset(pos)
		a.lastDist = math.Inf(1)
		return a.resume
	}
	if a.dog.update(pos, true, dt, cfg.WatchdogDistance) >= cfg.WatchdogSeconds {
		return m.stuck(a)
	}
	a.motor = Motor{Linear: cfg.AdvanceSpeed}
	return PhaseCollisionAdvance
}

// stuck gives up on a recovery manoeuvre that makes no progress.
func (m machine) stuck(a *attempt) Phase {
	if a.planned {
		return m.restart(a, "no progress in recovery")
	}
	return m.fail(a, ErrMoveBlocked)
}

// restart throws the plan away and searches again from where the unit is.
func (m machine) restart(a *attempt, reason string) Phase {
	a.restarts++
	m.nav.event(a, CatRecover, "restart", reason, float64(a.restarts))
	if a.restarts > m.nav.cfg.Recovery.MaxRestarts {
		return m.fail(a, ErrMoveBlocked)
	}
	a.stage, a.tries = 0, 0
	return m.beamStart(a)
}

func (m machine) fail(a *attempt, reason error) Phase {
	a.err = failure(a.body.ID(), a.phase, reason)
	a.motor = Motor{}
	m.nav.effects.PlaySound(SoundRefuse, a.body.Position())
	return PhaseFailed
}

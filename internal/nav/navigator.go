package nav

import (
	"fmt"
	"io"
	"math"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// Request is one navigation order.
type Request struct {
	Goal mgl64.Vec3
	// Target, when set, is the entity to reach; Goal is then ignored.
	Target EntityID
	// Altitude is the flyer cruise height above the floor. Zero keeps the
	// unit on the ground unless the goal is far away.
	Altitude float64
	GoalMode GoalMode
	Crash    CrashPolicy
}

// Status is the result of one Tick.
type Status int

const (
	StatusContinue Status = iota
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "continue"
	}
}

// Handle identifies one navigation attempt.
type Handle struct {
	id uuid.UUID
}

// IsZero reports whether h was never issued.
func (h Handle) IsZero() bool { return h.id == uuid.Nil }

func (h Handle) String() string { return h.id.String() }

// Option configures a Navigator.
type Option func(*Navigator)

// WithLogger routes phase transitions (Debug) and failures (Warn) to l.
func WithLogger(l *log.Logger) Option {
	return func(n *Navigator) { n.logger = l }
}

// WithEventLog records structured events in l.
func WithEventLog(l *EventLog) Option {
	return func(n *Navigator) { n.events = l }
}

// WithEffects sets the effect and sound sink.
func WithEffects(e Effects) Option {
	return func(n *Navigator) { n.effects = e }
}

// WithClock stamps events with the caller's frame counter instead of the
// attempt's own tick count.
func WithClock(clock func() int) Option {
	return func(n *Navigator) { n.clock = clock }
}

// Navigator owns every in-progress navigation attempt of a world. It is
// advanced from the simulation loop and is not safe for concurrent use.
//
// A finished attempt drops its grid and locks but keeps its result, so
// Tick, Phase and Snapshot still answer for it. The record is only freed
// by Abort: callers Abort every handle once they are done with it.
type Navigator struct {
	cfg      Config
	terrain  Terrain
	entities EntityQuery
	steer    Steering
	resolver Resolver

	logger  *log.Logger
	events  *EventLog
	effects Effects
	clock   func() int

	attempts map[Handle]*attempt
	// Lock zones: approach cells and target entities reserved by an active
	// attempt.
	cellLocks   map[Cell]Handle
	targetLocks map[EntityID]Handle
}

// New creates a navigator over the world's terrain and entity index.
func New(cfg Config, terrain Terrain, entities EntityQuery, opts ...Option) *Navigator {
	n := &Navigator{
		cfg:         cfg,
		terrain:     terrain,
		entities:    entities,
		steer:       NewSteering(cfg.Steering),
		resolver:    NewResolver(cfg.Target, entities),
		logger:      log.New(io.Discard),
		effects:     noEffects{},
		attempts:    make(map[Handle]*attempt),
		cellLocks:   make(map[Cell]Handle),
		targetLocks: make(map[EntityID]Handle),
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Config returns the navigator's tuning.
func (n *Navigator) Config() Config { return n.cfg }

// Start begins navigating body toward req. Busy and InvalidTarget are
// reported here, before any motor command is issued.
func (n *Navigator) Start(body Body, class Class, req Request) (Handle, error) {
	pos := body.Position()
	traits := class.traits()

	if req.GoalMode == GoalDefault {
		req.GoalMode = GoalStop
		if traits.express {
			req.GoalMode = GoalExpress
		}
	}
	if req.Crash == CrashDefault {
		req.Crash = CrashBeam
		if traits.halt {
			req.Crash = CrashHalt
		}
	}
	goal := req.Goal
	if req.Target != 0 {
		if e, ok := n.entities.Entity(req.Target); ok {
			goal = e.Position
		}
	}
	if req.Crash == CrashBeam && distXZ(pos, goal) < n.cfg.Arrival.NearGoalRightLeft {
		req.Crash = CrashRightLeft
	}
	planned := req.Crash == CrashBeam

	app, err := n.resolver.Resolve(body.ID(), class, pos, req, planned)
	if err != nil {
		n.logger.Warn("navigation refused", "unit", body.ID(), "target", req.Target, "err", err)
		return Handle{}, err
	}
	if planned && class.Flies() && req.Altitude == 0 && distXZ(pos, app.Point) > n.cfg.Flight.GroundDistance {
		req.Altitude = n.cfg.Flight.DefaultAltitude
	}

	h := Handle{id: uuid.New()}
	if err := n.checkLocks(h, app); err != nil {
		n.logger.Warn("navigation refused", "unit", body.ID(), "goal", fmtVec(app.Point), "err", err)
		return Handle{}, err
	}

	a := &attempt{
		handle:   h,
		body:     body,
		class:    class,
		req:      req,
		approach: app,
		planned:  planned,
		altitude: req.Altitude,
		start:    pos,
		lastDist: math.Inf(1),
	}
	if planned {
		a.phase = n.machine().beamStart(a)
		err := n.resolver.CheckBusy(app, func(p mgl64.Vec3) bool {
			c := a.grid.CellOf(p)
			return a.grid.InBounds(c) && a.grid.IsBlocked(c)
		})
		if err != nil {
			n.logger.Warn("navigation refused", "unit", body.ID(), "goal", fmtVec(app.Point), "err", err)
			return Handle{}, err
		}
	} else {
		a.phase = PhaseAdvance
		a.dog.reset(pos)
	}

	n.attempts[h] = a
	n.lock(h, app)
	n.event(a, CatNav, "start", a.phase.String(), distXZ(pos, app.Point))
	n.logger.Debug("navigation started",
		"unit", body.ID(), "class", class, "goal", fmtVec(app.Point),
		"mode", req.GoalMode, "crash", req.Crash, "phase", a.phase)
	return h, nil
}

// Tick advances one attempt by dt seconds. Finished attempts keep reporting
// their result until aborted.
func (n *Navigator) Tick(h Handle, dt float64) (Status, error) {
	a, ok := n.attempts[h]
	if !ok {
		return StatusFailed, ErrUnknownHandle
	}
	if a.phase.Terminal() {
		return a.status()
	}

	a.ticks++
	prev := a.phase
	a.phase = n.machine().update(a, dt)
	if a.phase != prev {
		n.event(a, CatPhase, "change", prev.String()+" → "+a.phase.String(), 0)
		n.logger.Debug("phase", "unit", a.body.ID(), "from", prev, "to", a.phase, "tick", a.ticks)
	}
	a.body.SetMotor(a.motor.Linear, a.motor.Angular, a.motor.Vertical)

	if a.phase.Terminal() {
		n.finish(a)
	}
	return a.status()
}

// Abort discards the attempt, zeroes the unit's motors and releases its
// lock zones. On a finished attempt it only frees the record. Unknown
// handles are ignored.
func (n *Navigator) Abort(h Handle) {
	a, ok := n.attempts[h]
	if !ok {
		return
	}
	if !a.phase.Terminal() {
		a.body.SetMotor(0, 0, 0)
		n.event(a, CatNav, "abort", a.phase.String(), 0)
		n.logger.Debug("navigation aborted", "unit", a.body.ID(), "phase", a.phase)
	}
	n.unlock(h)
	delete(n.attempts, h)
}

// Phase returns the current phase of an attempt.
func (n *Navigator) Phase(h Handle) (Phase, bool) {
	a, ok := n.attempts[h]
	if !ok {
		return PhaseFailed, false
	}
	return a.phase, true
}

// Active returns the number of attempts that have not finished.
func (n *Navigator) Active() int {
	count := 0
	for _, a := range n.attempts {
		if !a.phase.Terminal() {
			count++
		}
	}
	return count
}

// Snapshot is a read-only view of one attempt for tooling.
type Snapshot struct {
	Handle   Handle
	Unit     EntityID
	Class    Class
	Phase    Phase
	Approach Approach
	Request  Request
	// Chain is the raw planner output; Index points into it.
	Chain []mgl64.Vec3
	// Route is Chain with every waypoint that has a clear straight line
	// past it removed.
	Route    []mgl64.Vec3
	Index    int
	Restarts int
	Tries    int
	Ticks    int
	// PlanSteps is the number of planner steps of the latest search.
	PlanSteps int
	// Stamped counts the obstacle spheres rasterized into the grid.
	Stamped    int
	Recovering bool
	Motor      Motor
	Err        error
}

// Snapshot returns the state of an attempt.
func (n *Navigator) Snapshot(h Handle) (Snapshot, bool) {
	a, ok := n.attempts[h]
	if !ok {
		return Snapshot{}, false
	}
	s := Snapshot{
		Handle:     h,
		Unit:       a.body.ID(),
		Class:      a.class,
		Phase:      a.phase,
		Approach:   a.approach,
		Request:    a.req,
		Chain:      append([]mgl64.Vec3(nil), a.chain...),
		Route:      append([]mgl64.Vec3(nil), a.route...),
		Index:      a.index,
		Restarts:   a.restarts,
		Tries:      a.tries,
		Ticks:      a.ticks,
		PlanSteps:  a.planSteps,
		Stamped:    a.stamped,
		Recovering: a.phase.recovering(),
		Motor:      a.motor,
		Err:        a.err,
	}
	return s, true
}

// Dump renders the attempt's occupancy grid within radius of the segment
// from its start to its approach point. Finished attempts have dropped
// their grid and dump as "".
func (n *Navigator) Dump(h Handle, radius float64) string {
	a, ok := n.attempts[h]
	if !ok || a.grid == nil {
		return ""
	}
	lo, hi := entityBox(a.start, a.approach.Point, radius)
	return a.grid.Dump(lo, hi, a.start, a.approach.Point, a.chain)
}

// Overlay lists the occupied grid cells of an attempt over the same window
// as Dump.
func (n *Navigator) Overlay(h Handle, radius float64) []OverlayCell {
	a, ok := n.attempts[h]
	if !ok || a.grid == nil {
		return nil
	}
	lo, hi := entityBox(a.start, a.approach.Point, radius)
	return a.grid.Overlay(lo, hi)
}

func (n *Navigator) machine() machine { return machine{nav: n} }

// finish releases everything a terminal attempt holds except its result.
func (n *Navigator) finish(a *attempt) {
	a.motor = Motor{}
	a.body.SetMotor(0, 0, 0)
	a.grid, a.planner = nil, nil
	n.unlock(a.handle)
	if a.err != nil {
		n.event(a, CatNav, "fail", a.err.Error(), float64(a.ticks))
		n.logger.Warn("navigation failed", "unit", a.body.ID(), "err", a.err, "ticks", a.ticks)
		return
	}
	n.event(a, CatNav, "done", fmtVec(a.body.Position()), float64(a.ticks))
	n.logger.Debug("navigation done", "unit", a.body.ID(), "ticks", a.ticks)
}

// --- Lock zones ---

func (n *Navigator) lockCell(p mgl64.Vec3) Cell {
	s := n.cfg.Grid.CellSize
	return Cell{int(math.Floor(p[0] / s)), int(math.Floor(p[2] / s))}
}

func (n *Navigator) checkLocks(h Handle, app Approach) error {
	if app.Target != 0 {
		if owner, ok := n.targetLocks[app.Target]; ok && owner != h {
			return ErrBusy
		}
	}
	if !app.Omnidirectional {
		if owner, ok := n.cellLocks[n.lockCell(app.Point)]; ok && owner != h {
			return ErrBusy
		}
	}
	return nil
}

func (n *Navigator) lock(h Handle, app Approach) {
	if app.Target != 0 {
		n.targetLocks[app.Target] = h
	}
	if !app.Omnidirectional {
		n.cellLocks[n.lockCell(app.Point)] = h
	}
}

func (n *Navigator) unlock(h Handle) {
	for c, owner := range n.cellLocks {
		if owner == h {
			delete(n.cellLocks, c)
		}
	}
	for id, owner := range n.targetLocks {
		if owner == h {
			delete(n.targetLocks, id)
		}
	}
}

// --- Logging ---

func (n *Navigator) event(a *attempt, category, key, value string, num float64) {
	if n.events == nil {
		return
	}
	tick := a.ticks
	if n.clock != nil {
		tick = n.clock()
	}
	n.events.Add(tick, unitLabel(a.body.ID()), category, key, value, num)
}

func (n *Navigator) verbose(a *attempt, category, key, value string, num float64) {
	if n.events == nil {
		return
	}
	tick := a.ticks
	if n.clock != nil {
		tick = n.clock()
	}
	n.events.AddVerbose(tick, unitLabel(a.body.ID()), category, key, value, num)
}

// unitLabel is the short unit name used in event logs.
func unitLabel(id EntityID) string { return fmt.Sprintf("U%d", id) }

func fmtVec(v mgl64.Vec3) string {
	return fmt.Sprintf("(%.1f, %.1f, %.1f)", v[0], v[1], v[2])
}

package sim

import (
	"fmt"
	"io"
	"math"
	"math/rand"
	"sort"

	"github.com/Garsondee/Nav-Sense/internal/nav"
	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"
)

// DefaultDT is the simulation step in seconds.
const DefaultDT = 0.05

// TestSim is a headless world driving one navigator. It is used by the
// package tests, the report CLI and the viewer; it supports deterministic
// seeding and records every navigation event in Log.
type TestSim struct {
	Config  nav.Config
	Terrain *Terrain
	World   *World
	Nav     *nav.Navigator
	Log     *nav.EventLog
	Effects *EffectTally
	Tick    int
	DT      float64
	Seed    int64

	terrainCfg TerrainConfig
	features   []Feature
	objects    []Object
	rng        *rand.Rand
	logger     *log.Logger
	orders     map[nav.EntityID]*Order
	observers  []func(*TestSim)
}

// Order tracks one navigation request issued to a unit.
type Order struct {
	Unit      *Unit
	Request   nav.Request
	Handle    nav.Handle
	Status    nav.Status
	Err       error
	StartTick int
	EndTick   int // -1 while running
	startOdo  float64
}

// Done reports whether the order has finished, refused orders included.
func (o *Order) Done() bool { return o.EndTick >= 0 }

// Distance returns how far the unit has driven since the order began.
func (o *Order) Distance() float64 { return o.Unit.Odometer() - o.startOdo }

// simOptionKind controls the pass in which an option is applied.
type simOptionKind int

const (
	simOptInfra  simOptionKind = iota // seed, terrain, objects, config; applied first
	simOptLayout                      // seeded object placement; applied once the seed is known
	simOptUnit                        // add units; applied after the world exists
	simOptOrder                       // issue orders; applied after every unit exists
)

// SimOption is a builder function applied to a TestSim during construction.
type SimOption struct {
	kind simOptionKind
	fn   func(*TestSim)
}

// WithSeed sets the RNG and terrain noise seed for deterministic runs.
func WithSeed(seed int64) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) {
		ts.Seed = seed
		ts.rng = rand.New(rand.NewSource(seed)) // #nosec G404 -- simulation harness
	}}
}

// WithVerbose enables per-tick verbose events.
func WithVerbose(v bool) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) {
		ts.Log = nav.NewEventLog(v)
	}}
}

// WithConfig replaces the navigation tuning.
func WithConfig(cfg nav.Config) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) {
		ts.Config = cfg
	}}
}

// WithTerrain sets the relief parameters.
func WithTerrain(cfg TerrainConfig) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) {
		ts.terrainCfg = cfg
	}}
}

// WithFeature stamps a terrain feature.
func WithFeature(f Feature) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) {
		ts.features = append(ts.features, f)
	}}
}

// WithObject places an entity.
func WithObject(o Object) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) {
		ts.objects = append(ts.objects, o)
	}}
}

// WithRock places an inert obstacle of radius r at (x, z).
func WithRock(id nav.EntityID, x, z, r float64) SimOption {
	return WithObject(Object{ID: id, Kind: nav.KindObstacle, Pos: mgl64.Vec3{x, 0, z}, Radius: r})
}

// WithScatter strews n rocks over the box [lo, hi] using the sim RNG. No
// rock is placed within clear of any keepout point. IDs start at firstID.
func WithScatter(firstID nav.EntityID, n int, lo, hi mgl64.Vec3, minR, maxR, clear float64, keepout ...mgl64.Vec3) SimOption {
	return SimOption{simOptLayout, func(ts *TestSim) {
		placed := 0
		for tries := 0; placed < n && tries < n*20; tries++ {
			p := mgl64.Vec3{
				lo[0] + ts.rng.Float64()*(hi[0]-lo[0]),
				0,
				lo[2] + ts.rng.Float64()*(hi[2]-lo[2]),
			}
			r := minR + ts.rng.Float64()*(maxR-minR)
			ok := true
			for _, k := range keepout {
				if math.Hypot(p[0]-k[0], p[2]-k[2]) < clear+r {
					ok = false
					break
				}
			}
			if !ok {
				continue
			}
			ts.objects = append(ts.objects, Object{ID: firstID + nav.EntityID(placed), Kind: nav.KindObstacle, Pos: p, Radius: r})
			placed++
		}
	}}
}

// WithLogger routes navigator logging to l.
func WithLogger(l *log.Logger) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) {
		ts.logger = l
	}}
}

// WithTickRate sets the simulation step in seconds.
func WithTickRate(dt float64) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) {
		ts.DT = dt
	}}
}

// WithUnit adds a unit of class at (x, z) facing heading.
func WithUnit(id nav.EntityID, class nav.Class, x, z, heading float64) SimOption {
	return SimOption{simOptUnit, func(ts *TestSim) {
		ts.AddUnit(NewUnit(id, class, x, z, heading))
	}}
}

// WithFrozenUnit adds a unit whose wheels have no grip: it turns but never
// moves.
func WithFrozenUnit(id nav.EntityID, class nav.Class, x, z, heading float64) SimOption {
	return SimOption{simOptUnit, func(ts *TestSim) {
		u := NewUnit(id, class, x, z, heading)
		u.Freeze(true)
		ts.AddUnit(u)
	}}
}

// WithOrder sends unit id toward req once every unit exists.
func WithOrder(id nav.EntityID, req nav.Request) SimOption {
	return SimOption{simOptOrder, func(ts *TestSim) {
		_, _ = ts.Order(id, req)
	}}
}

// NewTestSim constructs a TestSim from the given options in ordered passes:
//  1. Infrastructure (seed, verbose, config, terrain, objects)
//  2. Seeded layout
//  3. Build terrain, world and navigator
//  4. Units
//  5. Orders
func NewTestSim(opts ...SimOption) *TestSim {
	ts := &TestSim{
		Config:     nav.DefaultConfig(),
		Log:        nav.NewEventLog(false),
		Effects:    NewEffectTally(),
		DT:         DefaultDT,
		Seed:       1,
		terrainCfg: DefaultTerrainConfig(),
		rng:        rand.New(rand.NewSource(1)), // #nosec G404 -- simulation harness default
		logger:     log.New(io.Discard),
		orders:     make(map[nav.EntityID]*Order),
	}
	for _, o := range opts {
		if o.kind == simOptInfra {
			o.fn(ts)
		}
	}
	for _, o := range opts {
		if o.kind == simOptLayout {
			o.fn(ts)
		}
	}
	ts.buildWorld()
	for _, o := range opts {
		if o.kind == simOptUnit {
			o.fn(ts)
		}
	}
	for _, o := range opts {
		if o.kind == simOptOrder {
			o.fn(ts)
		}
	}
	return ts
}

func (ts *TestSim) buildWorld() {
	ts.Terrain = NewTerrain(ts.terrainCfg, ts.Seed, ts.features...)
	ts.World = NewWorld(ts.Terrain)
	for _, o := range ts.objects {
		ts.World.AddObject(o)
	}
	ts.Nav = nav.New(ts.Config, ts.Terrain, ts.World,
		nav.WithLogger(ts.logger),
		nav.WithEventLog(ts.Log),
		nav.WithEffects(ts.Effects),
		nav.WithClock(ts.CurrentTick),
	)
}

// AddUnit registers u with the world and sets it on the floor.
func (ts *TestSim) AddUnit(u *Unit) {
	ts.World.AddUnit(u)
	u.Place(u.pos, u.heading)
}

// Unit returns a unit by ID.
func (ts *TestSim) Unit(id nav.EntityID) *Unit {
	u, _ := ts.World.Unit(id)
	return u
}

// Order starts navigating unit id toward req, replacing any order the unit
// already has. Refused orders are recorded as finished failures.
func (ts *TestSim) Order(id nav.EntityID, req nav.Request) (nav.Handle, error) {
	u, ok := ts.World.Unit(id)
	if !ok {
		return nav.Handle{}, fmt.Errorf("order: unknown unit %d", id)
	}
	if prev, ok := ts.orders[id]; ok {
		ts.Nav.Abort(prev.Handle)
	}
	o := &Order{Unit: u, Request: req, StartTick: ts.Tick, EndTick: -1, startOdo: u.Odometer()}
	ts.orders[id] = o

	h, err := ts.Nav.Start(u, u.Class(), req)
	if err != nil {
		o.Status, o.Err, o.EndTick = nav.StatusFailed, err, ts.Tick
		ts.Log.Add(ts.Tick, u.Label(), nav.CatNav, "refused", err.Error(), 0)
		return h, err
	}
	o.Handle = h
	return h, nil
}

// Cancel aborts the unit's order.
func (ts *TestSim) Cancel(id nav.EntityID) {
	o, ok := ts.orders[id]
	if !ok {
		return
	}
	ts.Nav.Abort(o.Handle)
	if !o.Done() {
		o.EndTick = ts.Tick
	}
	delete(ts.orders, id)
}

// OrderOf returns the unit's current order.
func (ts *TestSim) OrderOf(id nav.EntityID) (*Order, bool) {
	o, ok := ts.orders[id]
	return o, ok
}

// Observe registers fn to run after every tick.
func (ts *TestSim) Observe(fn func(*TestSim)) {
	ts.observers = append(ts.observers, fn)
}

// RunTicks advances the simulation by n ticks.
func (ts *TestSim) RunTicks(n int) {
	for i := 0; i < n; i++ {
		ts.runOneTick()
	}
}

// RunUntil advances the simulation until predicate returns true or maxTicks
// is reached. It returns the tick at which the predicate became true, or -1.
func (ts *TestSim) RunUntil(predicate func(*TestSim) bool, maxTicks int) int {
	for i := 0; i < maxTicks; i++ {
		ts.runOneTick()
		if predicate(ts) {
			return ts.Tick
		}
	}
	return -1
}

// RunOrders runs until every order has finished or maxTicks elapse.
func (ts *TestSim) RunOrders(maxTicks int) int {
	return ts.RunUntil(func(s *TestSim) bool { return s.AllDone() }, maxTicks)
}

// AllDone reports whether every order has finished.
func (ts *TestSim) AllDone() bool {
	for _, o := range ts.orders {
		if !o.Done() {
			return false
		}
	}
	return true
}

func (ts *TestSim) runOneTick() {
	ts.Tick++

	ids := make([]nav.EntityID, 0, len(ts.orders))
	for id := range ts.orders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		o := ts.orders[id]
		if o.Done() {
			continue
		}
		st, err := ts.Nav.Tick(o.Handle, ts.DT)
		if st != nav.StatusContinue {
			o.Status, o.Err, o.EndTick = st, err, ts.Tick
		}
	}

	for _, u := range ts.World.Units() {
		u.Update(ts.DT)
		if u.Colliding() && u.HitBy() != 0 {
			ts.Log.AddVerbose(ts.Tick, u.Label(), "world", "contact", fmt.Sprintf("U%d", u.HitBy()), 0)
		}
	}
	for _, fn := range ts.observers {
		fn(ts)
	}
}

// CurrentTick returns the current simulation tick.
func (ts *TestSim) CurrentTick() int { return ts.Tick }

// EffectTally counts the cosmetic effects and sounds the navigator emits.
// It implements nav.Effects.
type EffectTally struct {
	Effects map[nav.EffectKind]int
	Sounds  map[nav.SoundKind]int
	Last    mgl64.Vec3
}

// NewEffectTally creates an empty tally.
func NewEffectTally() *EffectTally {
	return &EffectTally{
		Effects: make(map[nav.EffectKind]int),
		Sounds:  make(map[nav.SoundKind]int),
	}
}

// SpawnEffect implements nav.Effects.
func (e *EffectTally) SpawnEffect(p mgl64.Vec3, kind nav.EffectKind) {
	e.Effects[kind]++
	e.Last = p
}

// PlaySound implements nav.Effects.
func (e *EffectTally) PlaySound(kind nav.SoundKind, p mgl64.Vec3) {
	e.Sounds[kind]++
	e.Last = p
}

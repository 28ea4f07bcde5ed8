package nav

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

// testTerrain is a flat floor with optional voids, a steep band and water.
type testTerrain struct {
	floor   float64
	water   float64
	ceiling float64
	voids   []Sphere
	steep   []Sphere // slope of 1 rad inside
	lowland []Sphere // floor 10 below the rest inside
}

func flatTerrain() *testTerrain {
	return &testTerrain{floor: 0, water: -100, ceiling: 400}
}

func inAny(p mgl64.Vec3, ss []Sphere) bool {
	for _, s := range ss {
		if distXZ(p, s.Center) <= s.Radius {
			return true
		}
	}
	return false
}

func (t *testTerrain) FloorHeight(p mgl64.Vec3) float64 {
	if inAny(p, t.lowland) {
		return t.floor - 10
	}
	return t.floor
}

func (t *testTerrain) FloorSlope(p mgl64.Vec3) float64 {
	if inAny(p, t.steep) {
		return 1
	}
	return 0
}

func (t *testTerrain) ResourceAt(p mgl64.Vec3) Resource {
	if inAny(p, t.voids) {
		return ResourceVoid
	}
	return ResourceSolid
}

func (t *testTerrain) WaterLevel() float64    { return t.water }
func (t *testTerrain) FlyingCeiling() float64 { return t.ceiling }

// testWorld is a linear entity index.
type testWorld struct {
	entities []Entity
}

func (w *testWorld) add(e Entity) {
	w.entities = append(w.entities, e)
}

func (w *testWorld) EntitiesIn(lo, hi mgl64.Vec3) []Entity {
	var out []Entity
	for _, e := range w.entities {
		p := e.Position
		if p[0] >= lo[0] && p[0] <= hi[0] && p[2] >= lo[2] && p[2] <= hi[2] {
			out = append(out, e)
		}
	}
	return out
}

func (w *testWorld) Entity(id EntityID) (Entity, bool) {
	for _, e := range w.entities {
		if e.ID == id {
			return e, true
		}
	}
	return Entity{}, false
}

func rock(id EntityID, x, z, r float64) Entity {
	c := mgl64.Vec3{x, 0, z}
	return Entity{ID: id, Kind: KindObstacle, Position: c, Spheres: []Sphere{{Center: c, Radius: r}}, Detectable: true}
}

// testBody integrates motor commands directly into position and heading.
type testBody struct {
	id        EntityID
	pos       mgl64.Vec3
	heading   float64
	radius    float64
	floor     float64
	flying    bool
	colliding bool
	frozen    bool // position ignores the motors

	motor      Motor
	motorCalls int

	speed, turnRate, climbRate float64
}

func newTestBody(id EntityID, x, z float64) *testBody {
	return &testBody{id: id, pos: mgl64.Vec3{x, 0, z}, radius: 2, speed: 10, turnRate: 3, climbRate: 5}
}

func (b *testBody) ID() EntityID         { return b.id }
func (b *testBody) Position() mgl64.Vec3 { return b.pos }
func (b *testBody) Heading() float64     { return b.heading }
func (b *testBody) CrashSphere() Sphere  { return Sphere{Center: b.pos, Radius: b.radius} }
func (b *testBody) OnGround() bool       { return b.pos[1] <= b.floor+0.01 }
func (b *testBody) Colliding() bool      { return b.colliding }
func (b *testBody) ClearCollision()      { b.colliding = false }
func (b *testBody) StopLength() float64  { return 2 }

func (b *testBody) SetMotor(lin, ang, vert float64) {
	b.motor = Motor{Linear: lin, Angular: ang, Vertical: vert}
	b.motorCalls++
}

func (b *testBody) TravelTime(dist float64) float64 {
	return math.Abs(dist)/b.speed + 0.2
}

func (b *testBody) step(dt float64) {
	b.heading = normAngle(b.heading + b.motor.Angular*b.turnRate*dt)
	if b.frozen {
		return
	}
	b.pos = b.pos.Add(headingVec(b.heading).Mul(b.motor.Linear * b.speed * dt))
	if b.flying {
		b.pos[1] += b.motor.Vertical * b.climbRate * dt
	}
	b.pos[1] = math.Max(b.pos[1], b.floor)
}

const testDT = 0.05

// runNav ticks h until it finishes or maxTicks elapse. onTick, when set,
// runs after every tick.
func runNav(t *testing.T, n *Navigator, h Handle, b *testBody, maxTicks int, onTick func(tick int)) (Status, error) {
	t.Helper()
	for i := 0; i < maxTicks; i++ {
		st, err := n.Tick(h, testDT)
		if st != StatusContinue {
			return st, err
		}
		b.step(testDT)
		if onTick != nil {
			onTick(i)
		}
	}
	ph, _ := n.Phase(h)
	t.Fatalf("navigation still running after %d ticks (phase %s)", maxTicks, ph)
	return StatusContinue, nil
}

// openGrid returns a rasterized grid over flat terrain for a wheeled unit.
func openGrid(cfg Config) *OccupancyGrid {
	return NewOccupancyGrid(cfg.Grid, newTerrainRasterizer(flatTerrain(), ClassWheeled, cfg))
}

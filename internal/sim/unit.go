package sim

import (
	"fmt"
	"math"

	"github.com/Garsondee/Nav-Sense/internal/nav"
	"github.com/go-gl/mathgl/mgl64"
)

// Profile holds the kinematic limits of a locomotion class.
type Profile struct {
	Speed     float64 // units per second at full throttle
	Accel     float64 // units per second squared, braking included
	TurnRate  float64 // radians per second at full rudder
	ClimbRate float64 // units per second, flyers only
	Radius    float64
}

var profiles = map[nav.Class]Profile{
	nav.ClassHumanoid:     {Speed: 8, Accel: 16, TurnRate: 2.5, Radius: 2},
	nav.ClassWheeled:      {Speed: 12, Accel: 10, TurnRate: 1.6, Radius: 3},
	nav.ClassTracked:      {Speed: 10, Accel: 10, TurnRate: 1.6, Radius: 3.5},
	nav.ClassHeavyTracked: {Speed: 6, Accel: 6, TurnRate: 1.0, Radius: 4},
	nav.ClassSubmersible:  {Speed: 10, Accel: 10, TurnRate: 1.6, Radius: 3},
	nav.ClassFlyer:        {Speed: 15, Accel: 12, TurnRate: 2.0, ClimbRate: 8, Radius: 3},
	nav.ClassLegged:       {Speed: 8, Accel: 10, TurnRate: 2.0, Radius: 3},
	nav.ClassCrawler:      {Speed: 9, Accel: 20, TurnRate: 3.0, Radius: 2},
	nav.ClassWasp:         {Speed: 14, Accel: 20, TurnRate: 3.0, ClimbRate: 8, Radius: 1.5},
}

// ProfileOf returns the kinematic limits of class.
func ProfileOf(class nav.Class) Profile {
	if p, ok := profiles[class]; ok {
		return p
	}
	return profiles[nav.ClassHumanoid]
}

// trailLen is how many past positions a unit keeps for drawing.
const trailLen = 256

// Unit is a kinematic vehicle that follows the navigator's motor
// set-points. It implements nav.Body.
type Unit struct {
	id      nav.EntityID
	label   string
	class   nav.Class
	profile Profile
	world   *World

	pos     mgl64.Vec3
	heading float64
	radius  float64
	speed   float64 // signed forward speed
	motor   nav.Motor
	// commands counts SetMotor calls.
	commands int

	colliding bool
	hitBy     nav.EntityID
	bumps     int
	frozen    bool
	odometer  float64

	trail     [trailLen]mgl64.Vec3
	trailHead int
	trailSize int
}

// NewUnit creates a unit standing on the floor at (x, z).
func NewUnit(id nav.EntityID, class nav.Class, x, z, heading float64) *Unit {
	p := ProfileOf(class)
	return &Unit{
		id:      id,
		label:   fmt.Sprintf("U%d", id),
		class:   class,
		profile: p,
		pos:     mgl64.Vec3{x, 0, z},
		heading: heading,
		radius:  p.Radius,
	}
}

// --- nav.Body ---

func (u *Unit) ID() nav.EntityID        { return u.id }
func (u *Unit) Position() mgl64.Vec3    { return u.pos }
func (u *Unit) Heading() float64        { return u.heading }
func (u *Unit) CrashSphere() nav.Sphere { return nav.Sphere{Center: u.pos, Radius: u.radius} }
func (u *Unit) Colliding() bool         { return u.colliding }

// SetMotor stores the set-points applied by the next Update.
func (u *Unit) SetMotor(l, a, v float64) {
	u.motor = nav.Motor{Linear: l, Angular: a, Vertical: v}
	u.commands++
}

// ClearCollision acknowledges the last contact.
func (u *Unit) ClearCollision() {
	u.colliding = false
	u.hitBy = 0
}

// HitBy returns the entity of the last unacknowledged contact, 0 for terrain.
func (u *Unit) HitBy() nav.EntityID { return u.hitBy }

// OnGround reports whether the unit rests on the floor.
func (u *Unit) OnGround() bool {
	return u.pos[1] <= u.floor()+0.01
}

// StopLength is the braking distance from full speed.
func (u *Unit) StopLength() float64 {
	return u.profile.Speed * u.profile.Speed / (2 * u.profile.Accel)
}

// TravelTime estimates the time to cover dist from rest to rest.
func (u *Unit) TravelTime(dist float64) float64 {
	d := math.Abs(dist)
	v, a := u.profile.Speed, u.profile.Accel
	ramp := v * v / a // accelerate plus brake
	if d < ramp {
		return 2 * math.Sqrt(d/a)
	}
	return d/v + v/a
}

// --- accessors ---

// Label returns the unit's short name.
func (u *Unit) Label() string { return u.label }

// Class returns the unit's locomotion class.
func (u *Unit) Class() nav.Class { return u.class }

// Profile returns the unit's kinematic limits.
func (u *Unit) Profile() Profile { return u.profile }

// Motor returns the last set-points received.
func (u *Unit) Motor() nav.Motor { return u.motor }

// Commands returns how many motor commands the unit has received.
func (u *Unit) Commands() int { return u.commands }

// Speed returns the signed forward speed.
func (u *Unit) Speed() float64 { return u.speed }

// Odometer returns the distance travelled so far.
func (u *Unit) Odometer() float64 { return u.odometer }

// Bumps returns how many collisions the unit has had.
func (u *Unit) Bumps() int { return u.bumps }

// Freeze pins the unit in place while still letting it turn, as if its
// wheels had no grip.
func (u *Unit) Freeze(v bool) { u.frozen = v }

// Place teleports the unit.
func (u *Unit) Place(p mgl64.Vec3, heading float64) {
	u.pos = p
	u.heading = heading
	u.speed = 0
	if u.world == nil {
		return
	}
	if f := u.floor(); !u.profile.flies() || u.pos[1] < f {
		u.pos[1] = f
	}
}

// Trail returns the recorded positions, oldest first.
func (u *Unit) Trail() []mgl64.Vec3 {
	out := make([]mgl64.Vec3, 0, u.trailSize)
	start := (u.trailHead - u.trailSize + trailLen) % trailLen
	for i := 0; i < u.trailSize; i++ {
		out = append(out, u.trail[(start+i)%trailLen])
	}
	return out
}

func (u *Unit) entity() nav.Entity {
	kind := nav.KindVehicle
	switch u.class {
	case nav.ClassCrawler:
		kind = nav.KindInsect
	case nav.ClassWasp:
		kind = nav.KindWasp
	}
	return nav.Entity{
		ID:         u.id,
		Kind:       kind,
		Position:   u.pos,
		Heading:    u.heading,
		Spheres:    []nav.Sphere{u.CrashSphere()},
		Detectable: true,
	}
}

func (p Profile) flies() bool { return p.ClimbRate > 0 }

func (u *Unit) floor() float64 {
	if u.world == nil {
		return 0
	}
	return u.world.terrain.FloorHeight(u.pos)
}

// Update integrates one tick of motion. Speed ramps toward the throttle
// set-point, heading follows the rudder, and the move is swept against
// every obstacle: on contact the unit stops short and flags a collision.
func (u *Unit) Update(dt float64) {
	p := u.profile
	u.heading = normAngle(u.heading + mgl64.Clamp(u.motor.Angular, -1, 1)*p.TurnRate*dt)

	want := mgl64.Clamp(u.motor.Linear, -1, 1) * p.Speed
	dv := p.Accel * dt
	switch {
	case u.speed < want:
		u.speed = math.Min(u.speed+dv, want)
	case u.speed > want:
		u.speed = math.Max(u.speed-dv, want)
	}
	if u.frozen {
		u.speed = 0
	}

	from := u.pos
	to := from.Add(mgl64.Vec3{math.Cos(u.heading), 0, math.Sin(u.heading)}.Mul(u.speed * dt))

	if u.world != nil && u.speed != 0 {
		reach := math.Abs(u.speed*dt) + u.radius
		if t, who := firstHit(from, to, u.radius, u.world.around(from, reach), u.id); who != 0 {
			to = from.Add(to.Sub(from).Mul(t))
			u.bump(who)
		} else if !p.flies() && u.world.terrain.ResourceAt(to) != nav.ResourceSolid {
			to = from
			u.bump(0)
		}
	}

	floor := 0.0
	if u.world != nil {
		floor = u.world.terrain.FloorHeight(to)
	}
	if p.flies() {
		to[1] = from[1] + mgl64.Clamp(u.motor.Vertical, -1, 1)*p.ClimbRate*dt
		ceiling := math.Inf(1)
		if u.world != nil {
			ceiling = u.world.terrain.FlyingCeiling()
		}
		to[1] = mgl64.Clamp(to[1], floor, ceiling)
	} else {
		to[1] = floor
	}

	u.odometer += math.Hypot(to[0]-from[0], to[2]-from[2])
	u.pos = to
	u.record()
}

func (u *Unit) bump(who nav.EntityID) {
	u.colliding = true
	u.hitBy = who
	u.speed = 0
	u.bumps++
}

func (u *Unit) record() {
	u.trail[u.trailHead] = u.pos
	u.trailHead = (u.trailHead + 1) % trailLen
	if u.trailSize < trailLen {
		u.trailSize++
	}
}

func normAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

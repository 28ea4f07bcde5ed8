package nav

import "github.com/go-gl/mathgl/mgl64"

// Positions are world-space mgl64.Vec3 with Y up; the ground plane is X/Z.
// Headings are radians measured from +X toward +Z.

// Resource classifies what lies under a terrain point.
type Resource int

const (
	ResourceSolid Resource = iota
	ResourceHole
	ResourceVoid
)

func (r Resource) String() string {
	switch r {
	case ResourceHole:
		return "hole"
	case ResourceVoid:
		return "void"
	default:
		return "solid"
	}
}

// Terrain answers floor queries. Implementations must be cheap enough to be
// sampled once per grid cell.
type Terrain interface {
	FloorHeight(p mgl64.Vec3) float64
	// FloorSlope returns the local slope in radians.
	FloorSlope(p mgl64.Vec3) float64
	ResourceAt(p mgl64.Vec3) Resource
	WaterLevel() float64
	// FlyingCeiling is the highest altitude a flyer may reach.
	FlyingCeiling() float64
}

// Sphere is a coarse collision volume.
type Sphere struct {
	Center mgl64.Vec3
	Radius float64
}

// EntityID identifies an entity for the lifetime of a simulation. Zero means
// no entity.
type EntityID int

// EntityKind drives approach resolution and repulsion filtering.
type EntityKind int

const (
	KindObstacle EntityKind = iota // rocks, walls, anything inert
	KindCargo                      // loose portable object, approached from any side
	KindBase                       // spaceship, approached from any side
	KindVehicle                    // another unit; approached behind its power slot
	KindInstallation               // fixed building with a service point
	KindFlora                      // plants and mushrooms, ignored by insects
	KindInsect                     // alien creature
	KindWasp                       // flying alien creature
)

// Installation selects the service-point geometry of a KindInstallation.
type Installation int

const (
	InstallNone Installation = iota
	InstallDerrick
	InstallConverter
	InstallResearch
	InstallPowerPlant
	InstallTower
	InstallLab
	InstallReactor
	InstallFactory
	InstallStation
	InstallRepair
	InstallLandingPad
)

// Entity is a snapshot of one simulated object as seen by navigation.
type Entity struct {
	ID           EntityID
	Kind         EntityKind
	Installation Installation
	Position     mgl64.Vec3
	Heading      float64
	Spheres      []Sphere
	// Transported entities ride on another unit and never obstruct.
	Transported bool
	// Detectable is false for ghosts the leak search must not react to.
	Detectable bool
}

// EntityQuery is the injected spatial index over the world's entities.
type EntityQuery interface {
	// EntitiesIn returns every entity whose position lies in the X/Z box
	// [min, max]. The Y components are ignored.
	EntitiesIn(min, max mgl64.Vec3) []Entity
	Entity(id EntityID) (Entity, bool)
}

// Body is the navigating unit: sensors plus motor set-points.
type Body interface {
	ID() EntityID
	Position() mgl64.Vec3
	Heading() float64
	CrashSphere() Sphere
	OnGround() bool
	Colliding() bool
	ClearCollision()
	// SetMotor takes normalized set-points in [-1, 1].
	SetMotor(linear, angular, vertical float64)
	// StopLength is the braking distance from full forward speed.
	StopLength() float64
	// TravelTime is the time needed to cover dist, negative dist meaning
	// reverse, accelerations included.
	TravelTime(dist float64) float64
}

// EffectKind names a fire-and-forget visual effect.
type EffectKind int

const (
	EffectDust EffectKind = iota
	EffectBeacon
)

// SoundKind names a fire-and-forget sound.
type SoundKind int

const (
	SoundBump SoundKind = iota
	SoundRefuse
)

// Effects receives cosmetic notifications. Navigation never reads back.
type Effects interface {
	SpawnEffect(p mgl64.Vec3, kind EffectKind)
	PlaySound(kind SoundKind, p mgl64.Vec3)
}

type noEffects struct{}

func (noEffects) SpawnEffect(mgl64.Vec3, EffectKind) {}
func (noEffects) PlaySound(SoundKind, mgl64.Vec3)    {}

package nav

import "github.com/go-gl/mathgl/mgl64"

// Class is the locomotion class of a navigating unit.
type Class int

const (
	ClassHumanoid Class = iota
	ClassWheeled
	ClassTracked
	ClassHeavyTracked
	ClassSubmersible
	ClassFlyer
	ClassLegged
	ClassCrawler // ant, spider
	ClassWasp
)

// classTraits holds every per-class constant navigation depends on.
type classTraits struct {
	name       string
	slopeLimit float64 // degrees
	// acceptWater lets the unit plan below the water surface.
	acceptWater bool
	// flies switches rasterization to the ceiling test and enables cruise
	// altitude handling.
	flies bool
	// approx units use coarse arrival and turn tolerances.
	approx bool
	// alien units ignore cargo and flora when computing repulsion.
	alien bool
	// express and halt are the default goal profile and crash policy.
	express bool
	halt    bool

	// Repulsion margin on the ground and in the air, and its falloff
	// exponent. A zero margin means 1.1 times the braking distance.
	repulseAdd    float64
	repulseAddAir float64
	repulseFac    float64
}

var classTable = [...]classTraits{
	ClassHumanoid:     {name: "humanoid", slopeLimit: 20, approx: true, repulseFac: 2},
	ClassWheeled:      {name: "wheeled", slopeLimit: 20, repulseAdd: 5, repulseAddAir: 5, repulseFac: 1.5},
	ClassTracked:      {name: "tracked", slopeLimit: 35, repulseAdd: 4, repulseAddAir: 4, repulseFac: 1.5},
	ClassHeavyTracked: {name: "heavy", slopeLimit: 35, approx: true, repulseFac: 2},
	ClassSubmersible:  {name: "submersible", slopeLimit: 35, acceptWater: true, repulseFac: 2},
	ClassFlyer:        {name: "flyer", slopeLimit: 15, flies: true, repulseAdd: 5, repulseAddAir: 10, repulseFac: 1.5},
	ClassLegged:       {name: "legged", slopeLimit: 60, repulseAdd: 4, repulseAddAir: 4, repulseFac: 1.5},
	ClassCrawler:      {name: "crawler", slopeLimit: 20, approx: true, alien: true, express: true, halt: true, repulseFac: 2},
	ClassWasp:         {name: "wasp", slopeLimit: 20, approx: true, alien: true, halt: true, repulseAdd: 3, repulseAddAir: 5, repulseFac: 1.5},
}

func (c Class) traits() classTraits {
	if c < 0 || int(c) >= len(classTable) {
		return classTable[ClassHumanoid]
	}
	return classTable[c]
}

func (c Class) String() string { return c.traits().name }

// Flies reports whether the class can hold a cruise altitude.
func (c Class) Flies() bool { return c.traits().flies }

// ParseClass maps a lowercase class name back to its Class.
func ParseClass(name string) (Class, bool) {
	for i, t := range classTable {
		if t.name == name {
			return Class(i), true
		}
	}
	return ClassHumanoid, false
}

// slopeLimitRad returns the steepest climbable slope in radians.
func (c Class) slopeLimitRad() float64 {
	return mgl64.DegToRad(c.traits().slopeLimit)
}

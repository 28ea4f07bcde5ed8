package nav

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// leakEscape is the short manoeuvre that frees a unit whose crash sphere
// overlaps a neighbour before it starts planning.
type leakEscape struct {
	from   mgl64.Vec3 // obstacle position the unit steers relative to
	delay  float64    // seconds of manoeuvre
	recede bool       // back straight out instead of turning away
}

// findLeak looks for the nearest detectable sphere around a grounded unit.
// It reports ok when that sphere lies within both radii plus the clearance.
func findLeak(body Body, entities []Entity, cfg LeakConfig) (leakEscape, bool) {
	if !body.OnGround() {
		return leakEscape{}, false
	}
	self := body.CrashSphere()

	best, bestDist := Sphere{}, math.Inf(1)
	var bestEntity Entity
	for _, e := range entities {
		if e.ID == body.ID() || e.Transported || !e.Detectable {
			continue
		}
		for _, s := range e.Spheres {
			d := distXZ(self.Center, s.Center) - s.Radius
			if d < bestDist {
				best, bestDist, bestEntity = s, d, e
			}
		}
	}
	if math.IsInf(bestDist, 1) || bestDist > self.Radius+cfg.Clearance {
		return leakEscape{}, false
	}

	l := leakEscape{from: best.Center, delay: body.TravelTime(cfg.Distance)}
	if bestEntity.Kind == KindInstallation && bestEntity.Installation == InstallFactory {
		l.recede = true
		l.delay = body.TravelTime(-cfg.RecedeDistance)
	}
	return l, true
}

// command returns the escape motor set-points for a unit at pos facing
// heading. An obstacle in front makes the unit back away; one behind makes
// it drive forward, turning away in both cases.
func (l leakEscape) command(heading float64, pos mgl64.Vec3) Motor {
	if l.recede {
		return Motor{Linear: -1}
	}
	away := turnError(heading, headingOf(l.from[0]-pos[0], l.from[2]-pos[2]))
	ang := clampUnit(away)
	if math.Abs(away) > math.Pi/2 {
		return Motor{Linear: 1, Angular: -ang}
	}
	return Motor{Linear: -1, Angular: ang}
}

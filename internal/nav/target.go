package nav

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Approach is a resolved destination.
type Approach struct {
	// Point is where the planner or the direct steering heads for.
	Point mgl64.Vec3
	// Facing is the position the unit turns toward on arrival.
	Facing mgl64.Vec3
	// StandOff is the planner goal radius around Point.
	StandOff float64
	// Omnidirectional approaches accept any heading; the target is loose
	// cargo and is left out of the occupancy grid.
	Omnidirectional bool
	Target          EntityID
	// FinalMove is the straight advance performed after facing the target.
	FinalMove float64
	// Face requests a final turn toward Facing.
	Face bool
}

// hotPoint describes the service point of an installation, along its local
// X axis.
type hotPoint struct {
	offset float64
	// suppl is added to the stand-off when one is requested.
	suppl      float64
	take       bool // add the take distance
	takeOther  bool // add the extra take distance for foreign cargo
	supplInPos bool // suppl moves the point, not just the final move
	flyersOnly bool
}

var hotPoints = map[Installation]hotPoint{
	InstallDerrick:    {offset: 8, suppl: 4, take: true, supplInPos: true},
	InstallConverter:  {offset: 0, suppl: 4, take: true, supplInPos: true},
	InstallResearch:   {offset: 10, suppl: 2.5, take: true, takeOther: true, supplInPos: true},
	InstallPowerPlant: {offset: 6, suppl: 6, take: true, takeOther: true},
	InstallTower:      {offset: 5, suppl: 4, take: true, takeOther: true, supplInPos: true},
	InstallLab:        {offset: 6, suppl: 6, take: true, takeOther: true},
	InstallReactor:    {offset: 22, suppl: 4, take: true, takeOther: true, supplInPos: true},
	InstallFactory:    {offset: 4, suppl: 6, take: true, supplInPos: true},
	InstallStation:    {offset: 4, suppl: 4},
	InstallRepair:     {offset: 4, suppl: 4},
	InstallLandingPad: {offset: 0, suppl: 20, supplInPos: true, flyersOnly: true},
}

// hotPointReach bounds how far a service point may lie from its
// installation's origin.
const hotPointReach = 40.0

// powerSlotOffset is the local X of a vehicle's power cell slot.
const powerSlotOffset = -4.0

// Resolver turns a raw destination into an approach point.
type Resolver struct {
	cfg      TargetConfig
	entities EntityQuery
}

// NewResolver creates a resolver over the injected entity query.
func NewResolver(cfg TargetConfig, entities EntityQuery) Resolver {
	return Resolver{cfg: cfg, entities: entities}
}

// Resolve computes the approach for a unit of class standing at pos. planned
// selects the beam-search variant, which keeps loose cargo as a goal radius
// instead of a point.
func (r Resolver) Resolve(self EntityID, class Class, pos mgl64.Vec3, req Request, planned bool) (Approach, error) {
	a := Approach{Point: req.Goal, Facing: req.Goal}

	var target Entity
	found := false
	if req.Target != 0 {
		e, ok := r.entities.Entity(req.Target)
		if !ok || e.Transported {
			return a, ErrInvalidTarget
		}
		target, found = e, true
		a.Point, a.Facing = e.Position, e.Position
	} else if planned || !class.traits().approx {
		target, found = r.searchTarget(self, req.Goal, r.cfg.SearchMargin)
	}
	if !found {
		return a, nil
	}

	a.Target = target.ID
	a.Face = true
	a.Point = target.Position

	distance := 0.0
	if planned {
		distance = r.cfg.CargoStandOff
	}
	if p, d, ok := r.adjustBuilding(class, a.Point, r.cfg.SearchMargin, distance); ok {
		a.Point = p
		if planned {
			a.FinalMove = d
		}
		return a, nil
	}
	p, d, omni := r.adjustTarget(class, pos, target, distance)
	switch {
	case planned && omni:
		a.Point = target.Position
		a.Omnidirectional = true
		a.StandOff = r.cfg.TakeDistance + r.cfg.ApproachExtra
		if target.Kind == KindBase {
			a.StandOff = r.cfg.BaseStandOff
		}
	case planned:
		a.Point = p
		a.FinalMove = d
	default:
		a.Point = p
		a.Omnidirectional = omni
	}
	return a, nil
}

// CheckBusy reports ErrBusy when a point approach lands on a cell occupied
// by something other than the unit's own target.
func (r Resolver) CheckBusy(a Approach, occupied func(mgl64.Vec3) bool) error {
	if a.Omnidirectional {
		return nil
	}
	if occupied(a.Point) {
		return ErrBusy
	}
	return nil
}

// searchTarget returns the entity nearest to p within margin. On ties the
// entity listed last wins, so objects stacked on another one are picked
// before their support.
func (r Resolver) searchTarget(self EntityID, p mgl64.Vec3, margin float64) (Entity, bool) {
	lo, hi := entityBox(p, p, margin)
	best, bestDist := Entity{}, math.Inf(1)
	found := false
	for _, e := range r.entities.EntitiesIn(lo, hi) {
		if e.ID == self || e.Transported {
			continue
		}
		d := distXZ(p, e.Position)
		if d <= margin && d <= bestDist {
			best, bestDist, found = e, d, true
		}
	}
	return best, found
}

// servicePoint evaluates an installation's hot point. With take set the
// point is pushed out by the take distances and the stand-off.
func (r Resolver) servicePoint(class Class, e Entity, take bool, distance float64) (mgl64.Vec3, float64, bool) {
	hp, ok := hotPoints[e.Installation]
	if e.Kind != KindInstallation || !ok || (hp.flyersOnly && !class.Flies()) {
		return mgl64.Vec3{}, 0, false
	}
	x := hp.offset
	suppl := 0.0
	if take && distance != 0 {
		suppl = hp.suppl
	}
	if take {
		if hp.take {
			x += r.cfg.TakeDistance
		}
		if hp.takeOther {
			x += r.cfg.TakeOther
		}
		x += distance
		if hp.supplInPos {
			x += suppl
		}
	}
	return localToWorld(e.Position, e.Heading, x), suppl, true
}

// adjustBuilding re-targets a destination that sits on an installation's
// product point (ore on a derrick, say) to that installation's service
// point.
func (r Resolver) adjustBuilding(class Class, goal mgl64.Vec3, margin, distance float64) (mgl64.Vec3, float64, bool) {
	lo, hi := entityBox(goal, goal, hotPointReach)
	for _, e := range r.entities.EntitiesIn(lo, hi) {
		if e.Transported {
			continue
		}
		hp, _, ok := r.servicePoint(class, e, false, 0)
		if !ok || distXZ(goal, hp) > margin {
			continue
		}
		p, suppl, _ := r.servicePoint(class, e, true, distance)
		return p, distance + suppl, true
	}
	return goal, distance, false
}

// adjustTarget places the approach point for a target entity. omni is true
// for loose cargo and bases, which accept any approach heading.
func (r Resolver) adjustTarget(class Class, pos mgl64.Vec3, target Entity, distance float64) (p mgl64.Vec3, d float64, omni bool) {
	if class == ClassWasp {
		return target.Position, distance, false
	}

	switch target.Kind {
	case KindCargo, KindBase:
		away := pos.Sub(target.Position)
		l := away.Len()
		if l == 0 {
			return target.Position, distance, true
		}
		return target.Position.Add(away.Mul((r.cfg.TakeDistance + distance) / l)), distance, true
	case KindVehicle:
		x := powerSlotOffset - (r.cfg.TakeDistance + r.cfg.TakeOther + distance)
		return localToWorld(target.Position, target.Heading, x), distance, false
	}

	if p, suppl, ok := r.servicePoint(class, target, true, distance); ok {
		return p, distance + suppl, false
	}
	return target.Position, 0, false
}

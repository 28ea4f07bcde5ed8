package sim

import (
	"math"
	"sort"

	"github.com/Garsondee/Nav-Sense/internal/nav"
	"github.com/go-gl/mathgl/mgl64"
)

// bucketSize is the side of one spatial index bucket in world units.
const bucketSize = 40.0

// Object is a static or loose world entity: rocks, buildings, cargo.
type Object struct {
	ID           nav.EntityID
	Kind         nav.EntityKind
	Installation nav.Installation
	Pos          mgl64.Vec3
	Heading      float64
	Radius       float64
	// Ghost objects are invisible to the leak search.
	Ghost       bool
	Transported bool
}

func (o *Object) entity() nav.Entity {
	return nav.Entity{
		ID:           o.ID,
		Kind:         o.Kind,
		Installation: o.Installation,
		Position:     o.Pos,
		Heading:      o.Heading,
		Spheres:      []nav.Sphere{{Center: o.Pos, Radius: o.Radius}},
		Transported:  o.Transported,
		Detectable:   !o.Ghost,
	}
}

type bucket struct{ x, z int }

func bucketOf(p mgl64.Vec3) bucket {
	return bucket{int(math.Floor(p[0] / bucketSize)), int(math.Floor(p[2] / bucketSize))}
}

// World stores every entity of a simulation and answers the navigator's
// spatial queries. It implements nav.EntityQuery.
type World struct {
	terrain *Terrain
	objects map[nav.EntityID]*Object
	buckets map[bucket][]nav.EntityID
	units   []*Unit
	// widest object or unit sphere, so proximity queries can pad their box
	maxRadius float64
}

// NewWorld creates an empty world over terrain.
func NewWorld(terrain *Terrain) *World {
	return &World{
		terrain: terrain,
		objects: make(map[nav.EntityID]*Object),
		buckets: make(map[bucket][]nav.EntityID),
	}
}

// Terrain returns the world's floor.
func (w *World) Terrain() *Terrain { return w.terrain }

// AddObject places o on the floor and indexes it. An existing object with
// the same ID is replaced.
func (w *World) AddObject(o Object) *Object {
	w.RemoveObject(o.ID)
	o.Pos[1] = w.terrain.FloorHeight(o.Pos)
	obj := &o
	w.objects[o.ID] = obj
	w.maxRadius = math.Max(w.maxRadius, o.Radius)
	b := bucketOf(o.Pos)
	w.buckets[b] = append(w.buckets[b], o.ID)
	return obj
}

// RemoveObject drops an object from the world.
func (w *World) RemoveObject(id nav.EntityID) {
	o, ok := w.objects[id]
	if !ok {
		return
	}
	b := bucketOf(o.Pos)
	ids := w.buckets[b]
	for i, x := range ids {
		if x == id {
			w.buckets[b] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(w.buckets[b]) == 0 {
		delete(w.buckets, b)
	}
	delete(w.objects, id)
}

// Object returns a stored object.
func (w *World) Object(id nav.EntityID) (*Object, bool) {
	o, ok := w.objects[id]
	return o, ok
}

// Objects returns every object ordered by ID.
func (w *World) Objects() []*Object {
	out := make([]*Object, 0, len(w.objects))
	for _, o := range w.objects {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AddUnit registers a unit so other units and the navigator see it.
func (w *World) AddUnit(u *Unit) {
	u.world = w
	w.units = append(w.units, u)
	w.maxRadius = math.Max(w.maxRadius, u.radius)
}

// Unit returns a registered unit.
func (w *World) Unit(id nav.EntityID) (*Unit, bool) {
	for _, u := range w.units {
		if u.id == id {
			return u, true
		}
	}
	return nil, false
}

// Units returns every unit in registration order.
func (w *World) Units() []*Unit { return w.units }

// EntitiesIn implements nav.EntityQuery. Objects come first ordered by ID,
// then units in registration order.
func (w *World) EntitiesIn(lo, hi mgl64.Vec3) []nav.Entity {
	a, b := bucketOf(lo), bucketOf(hi)
	if a.x > b.x {
		a.x, b.x = b.x, a.x
	}
	if a.z > b.z {
		a.z, b.z = b.z, a.z
	}
	inBox := func(p mgl64.Vec3) bool {
		return p[0] >= math.Min(lo[0], hi[0]) && p[0] <= math.Max(lo[0], hi[0]) &&
			p[2] >= math.Min(lo[2], hi[2]) && p[2] <= math.Max(lo[2], hi[2])
	}

	var ids []nav.EntityID
	if (b.x-a.x+1)*(b.z-a.z+1) > len(w.buckets) {
		for _, bids := range w.buckets {
			ids = append(ids, bids...)
		}
	} else {
		for z := a.z; z <= b.z; z++ {
			for x := a.x; x <= b.x; x++ {
				ids = append(ids, w.buckets[bucket{x, z}]...)
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []nav.Entity
	for _, id := range ids {
		if o := w.objects[id]; inBox(o.Pos) {
			out = append(out, o.entity())
		}
	}
	for _, u := range w.units {
		if inBox(u.pos) {
			out = append(out, u.entity())
		}
	}
	return out
}

// Entity implements nav.EntityQuery.
func (w *World) Entity(id nav.EntityID) (nav.Entity, bool) {
	if o, ok := w.objects[id]; ok {
		return o.entity(), true
	}
	if u, ok := w.Unit(id); ok {
		return u.entity(), true
	}
	return nav.Entity{}, false
}

// around returns the entities whose spheres may come within reach of p.
func (w *World) around(p mgl64.Vec3, reach float64) []nav.Entity {
	reach += w.maxRadius
	r := mgl64.Vec3{reach, 0, reach}
	return w.EntitiesIn(p.Sub(r), p.Add(r))
}

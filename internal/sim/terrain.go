package sim

import (
	"math"

	"github.com/Garsondee/Nav-Sense/internal/nav"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/ojrac/opensimplex-go"
)

// TerrainConfig holds the tuneable relief parameters.
type TerrainConfig struct {
	// Relief is the peak-to-peak height of the noise layer. Zero gives a
	// flat floor at Base.
	Relief      float64 `yaml:"relief"`
	Base        float64 `yaml:"base"`
	Scale       float64 `yaml:"scale"` // noise frequency, smaller = broader hills
	Octaves     int     `yaml:"octaves"`
	Persistence float64 `yaml:"persistence"`

	Water   float64 `yaml:"water"`
	Ceiling float64 `yaml:"ceiling"`
}

// DefaultTerrainConfig is a dry flat plain.
func DefaultTerrainConfig() TerrainConfig {
	return TerrainConfig{
		Scale:       0.004,
		Octaves:     4,
		Persistence: 0.5,
		Water:       -100,
		Ceiling:     400,
	}
}

// FeatureKind selects how a Feature reshapes the floor.
type FeatureKind int

const (
	FeatureHill FeatureKind = iota // smooth bump of Height
	FeatureLake                    // bowl reaching Height below the water surface
	FeatureVoid                    // no floor at all
	FeatureHole                    // mined-out pit
	FeatureMesa                    // flat top Height high with a sheer rim
)

var featureNames = [...]string{"hill", "lake", "void", "hole", "mesa"}

func (k FeatureKind) String() string {
	if k < 0 || int(k) >= len(featureNames) {
		return "unknown"
	}
	return featureNames[k]
}

// ParseFeatureKind maps a feature name back to its kind.
func ParseFeatureKind(name string) (FeatureKind, bool) {
	for i, n := range featureNames {
		if n == name {
			return FeatureKind(i), true
		}
	}
	return FeatureHill, false
}

// Feature is a circular terrain override.
type Feature struct {
	Kind   FeatureKind
	X, Z   float64
	Radius float64
	Height float64
}

func (f Feature) contains(p mgl64.Vec3) bool {
	return math.Hypot(p[0]-f.X, p[2]-f.Z) <= f.Radius
}

// Terrain is a noise heightfield with features stamped on top. It
// implements nav.Terrain.
type Terrain struct {
	cfg      TerrainConfig
	noise    opensimplex.Noise
	features []Feature
}

// NewTerrain builds a terrain from seed. The same seed always yields the
// same floor.
func NewTerrain(cfg TerrainConfig, seed int64, features ...Feature) *Terrain {
	return &Terrain{
		cfg:      cfg,
		noise:    opensimplex.NewNormalized(seed),
		features: append([]Feature(nil), features...),
	}
}

// Add stamps another feature.
func (t *Terrain) Add(f Feature) { t.features = append(t.features, f) }

// Features returns the stamped features.
func (t *Terrain) Features() []Feature { return t.features }

// FloorHeight implements nav.Terrain.
func (t *Terrain) FloorHeight(p mgl64.Vec3) float64 {
	h := t.cfg.Base
	if t.cfg.Relief != 0 {
		h += (octaveNoise(t.noise, p[0], p[2], t.cfg.Octaves, t.cfg.Scale, t.cfg.Persistence) - 0.5) * t.cfg.Relief
	}
	for _, f := range t.features {
		d := math.Hypot(p[0]-f.X, p[2]-f.Z)
		if d > f.Radius {
			continue
		}
		switch f.Kind {
		case FeatureHill:
			k := d / f.Radius
			h += f.Height * (1 - k*k)
		case FeatureLake:
			// Bowl shaped so the shore stays climbable.
			if bottom := t.cfg.Water - f.Height; h > bottom {
				k := d / f.Radius
				h = bottom + (h-bottom)*k*k
			}
		case FeatureMesa:
			h += f.Height
		}
	}
	return h
}

// slopeDelta is the finite-difference half width used by FloorSlope.
const slopeDelta = 1.0

// FloorSlope implements nav.Terrain. Mesa rims report a vertical wall.
func (t *Terrain) FloorSlope(p mgl64.Vec3) float64 {
	for _, f := range t.features {
		if f.Kind != FeatureMesa {
			continue
		}
		d := math.Hypot(p[0]-f.X, p[2]-f.Z)
		if math.Abs(d-f.Radius) <= slopeDelta*2 {
			return math.Pi / 2
		}
	}
	dx := (t.FloorHeight(p.Add(mgl64.Vec3{slopeDelta, 0, 0})) - t.FloorHeight(p.Sub(mgl64.Vec3{slopeDelta, 0, 0}))) / (2 * slopeDelta)
	dz := (t.FloorHeight(p.Add(mgl64.Vec3{0, 0, slopeDelta})) - t.FloorHeight(p.Sub(mgl64.Vec3{0, 0, slopeDelta}))) / (2 * slopeDelta)
	return math.Atan(math.Hypot(dx, dz))
}

// ResourceAt implements nav.Terrain.
func (t *Terrain) ResourceAt(p mgl64.Vec3) nav.Resource {
	for _, f := range t.features {
		if !f.contains(p) {
			continue
		}
		switch f.Kind {
		case FeatureVoid:
			return nav.ResourceVoid
		case FeatureHole:
			return nav.ResourceHole
		}
	}
	return nav.ResourceSolid
}

// WaterLevel implements nav.Terrain.
func (t *Terrain) WaterLevel() float64 { return t.cfg.Water }

// FlyingCeiling implements nav.Terrain.
func (t *Terrain) FlyingCeiling() float64 { return t.cfg.Ceiling }

// Underwater reports whether the floor at p lies below the water surface.
func (t *Terrain) Underwater(p mgl64.Vec3) bool {
	return t.FloorHeight(p) < t.cfg.Water
}

// octaveNoise layers several frequencies of normalized noise. The result
// stays in [0, 1].
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	if octaves <= 0 {
		octaves = 1
	}
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0
	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}
	return total / maxVal
}

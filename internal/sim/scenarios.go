package sim

import (
	"fmt"
	"sort"

	"github.com/Garsondee/Nav-Sense/internal/nav"
	"github.com/go-gl/mathgl/mgl64"
)

// Scenario is a named, seedable navigation setup. Subject is the unit the
// reports follow.
type Scenario struct {
	Name        string
	Description string
	Subject     nav.EntityID
	MaxTicks    int
	// Want is the outcome the scenario is built to produce; nil means
	// success.
	Want  error
	Build func(seed int64) []SimOption
}

// New builds a fresh simulation of the scenario.
func (s Scenario) New(seed int64, extra ...SimOption) *TestSim {
	opts := append([]SimOption{WithSeed(seed)}, s.Build(seed)...)
	return NewTestSim(append(opts, extra...)...)
}

var scenarios = map[string]Scenario{}

func register(s Scenario) {
	if s.Subject == 0 {
		s.Subject = 1
	}
	if s.MaxTicks == 0 {
		s.MaxTicks = 2000
	}
	scenarios[s.Name] = s
}

// Lookup returns a registered scenario.
func Lookup(name string) (Scenario, error) {
	s, ok := scenarios[name]
	if !ok {
		return Scenario{}, fmt.Errorf("unknown scenario %q", name)
	}
	return s, nil
}

// Scenarios returns every registered scenario ordered by name.
func Scenarios() []Scenario {
	out := make([]Scenario, 0, len(scenarios))
	for _, s := range scenarios {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func goal(x, z float64) nav.Request {
	return nav.Request{Goal: mgl64.Vec3{x, 0, z}}
}

func init() {
	register(Scenario{
		Name:        "open-field",
		Description: "wheeled unit drives 100 units across a flat empty plain",
		Build: func(int64) []SimOption {
			return []SimOption{
				WithUnit(1, nav.ClassWheeled, 0, 0, 0),
				WithOrder(1, goal(100, 0)),
			}
		},
	})

	register(Scenario{
		Name:        "detour",
		Description: "a rock of radius 10 sits on the straight line to the goal",
		Build: func(int64) []SimOption {
			return []SimOption{
				WithRock(100, 50, 0, 10),
				WithUnit(1, nav.ClassWheeled, 0, 0, 0),
				WithOrder(1, goal(100, 0)),
			}
		},
	})

	register(Scenario{
		Name:        "busy",
		Description: "two units are sent to the same cargo crate; the second is refused",
		Want:        nav.ErrBusy,
		Subject:     2,
		Build: func(int64) []SimOption {
			return []SimOption{
				WithObject(Object{ID: 50, Kind: nav.KindCargo, Pos: mgl64.Vec3{100, 0, 0}, Radius: 1.5}),
				WithUnit(1, nav.ClassWheeled, 0, 0, 0),
				WithUnit(2, nav.ClassWheeled, 0, 30, 0),
				WithOrder(1, nav.Request{Target: 50}),
				WithOrder(2, nav.Request{Target: 50}),
			}
		},
	})

	register(Scenario{
		Name:        "leak",
		Description: "unit starts pressed against a rock and must back out before planning",
		Build: func(int64) []SimOption {
			return []SimOption{
				WithRock(100, 5, 0, 2),
				WithUnit(1, nav.ClassWheeled, 0, 0, 0),
				WithOrder(1, goal(0, 100)),
			}
		},
	})

	register(Scenario{
		Name:        "flyer",
		Description: "flyer cruises at altitude 50 over a hill and a rock, then lands",
		MaxTicks:    4000,
		Build: func(int64) []SimOption {
			return []SimOption{
				WithFeature(Feature{Kind: FeatureHill, X: 150, Z: 0, Radius: 40, Height: 20}),
				WithRock(100, 150, 0, 8),
				WithUnit(1, nav.ClassFlyer, 0, 0, 0),
				WithOrder(1, nav.Request{Goal: mgl64.Vec3{300, 0, 0}, Altitude: 50}),
			}
		},
	})

	register(Scenario{
		Name:        "slalom",
		Description: "seeded rock field on rolling ground",
		MaxTicks:    4000,
		Build: func(int64) []SimOption {
			start, end := mgl64.Vec3{0, 0, 0}, mgl64.Vec3{300, 0, 0}
			cfg := DefaultTerrainConfig()
			cfg.Relief = 8
			return []SimOption{
				WithTerrain(cfg),
				WithScatter(100, 14, mgl64.Vec3{40, 0, -60}, mgl64.Vec3{260, 0, 60}, 4, 10, 15, start, end),
				WithUnit(1, nav.ClassTracked, start[0], start[2], 0),
				WithOrder(1, goal(end[0], end[2])),
			}
		},
	})

	register(Scenario{
		Name:        "lake",
		Description: "wheeled unit skirts a lake it cannot ford",
		MaxTicks:    3000,
		Build: func(int64) []SimOption {
			return lakeScenario(nav.ClassWheeled)
		},
	})

	register(Scenario{
		Name:        "lake-sub",
		Description: "submersible drives straight through the lake",
		Build: func(int64) []SimOption {
			return lakeScenario(nav.ClassSubmersible)
		},
	})

	register(Scenario{
		Name:        "crater",
		Description: "legged unit walks around a bottomless void",
		MaxTicks:    3000,
		Build: func(int64) []SimOption {
			return []SimOption{
				WithFeature(Feature{Kind: FeatureVoid, X: 80, Z: 0, Radius: 25}),
				WithUnit(1, nav.ClassLegged, 0, 0, 0),
				WithOrder(1, goal(160, 0)),
			}
		},
	})

	register(Scenario{
		Name:        "plateau",
		Description: "heavy tracked unit rounds a sheer-sided mesa",
		MaxTicks:    4000,
		Build: func(int64) []SimOption {
			return []SimOption{
				WithFeature(Feature{Kind: FeatureMesa, X: 80, Z: 0, Radius: 25, Height: 15}),
				WithUnit(1, nav.ClassHeavyTracked, 0, 0, 0),
				WithOrder(1, goal(160, 0)),
			}
		},
	})

	register(Scenario{
		Name:        "factory",
		Description: "humanoid walks to the service point of a factory",
		Build: func(int64) []SimOption {
			return []SimOption{
				WithObject(Object{ID: 60, Kind: nav.KindInstallation, Installation: nav.InstallFactory,
					Pos: mgl64.Vec3{100, 0, 0}, Radius: 8}),
				WithUnit(1, nav.ClassHumanoid, 0, 0, 0),
				WithOrder(1, nav.Request{Target: 60}),
			}
		},
	})

	register(Scenario{
		Name:        "insect",
		Description: "crawler charges through a stand of flora with the express profile",
		Build: func(int64) []SimOption {
			return []SimOption{
				WithObject(Object{ID: 70, Kind: nav.KindFlora, Pos: mgl64.Vec3{40, 0, 6}, Radius: 2}),
				WithObject(Object{ID: 71, Kind: nav.KindFlora, Pos: mgl64.Vec3{60, 0, -6}, Radius: 2}),
				WithUnit(1, nav.ClassCrawler, 0, 0, 0),
				WithOrder(1, goal(100, 0)),
			}
		},
	})

	register(Scenario{
		Name:        "convoy",
		Description: "three wheeled units cross side by side toward adjacent goals",
		MaxTicks:    3000,
		Build: func(int64) []SimOption {
			return []SimOption{
				WithUnit(1, nav.ClassWheeled, 0, 0, 0),
				WithUnit(2, nav.ClassWheeled, 0, 20, 0),
				WithUnit(3, nav.ClassWheeled, 0, -20, 0),
				WithOrder(1, goal(200, 0)),
				WithOrder(2, goal(200, 20)),
				WithOrder(3, goal(200, -20)),
			}
		},
	})

	register(Scenario{
		Name:        "stuck",
		Description: "a unit whose wheels spin in place until the watchdog gives up",
		Want:        nav.ErrMoveBlocked,
		MaxTicks:    6000,
		Build: func(int64) []SimOption {
			return []SimOption{
				WithFrozenUnit(1, nav.ClassWheeled, 0, 0, 0),
				WithOrder(1, goal(100, 0)),
			}
		},
	})

	register(Scenario{
		Name:        "off-map",
		Description: "goal lies outside the map",
		Want:        nav.ErrImpossible,
		Build: func(int64) []SimOption {
			return []SimOption{
				WithUnit(1, nav.ClassWheeled, 0, 0, 0),
				WithOrder(1, goal(5000, 0)),
			}
		},
	})
}

func lakeScenario(class nav.Class) []SimOption {
	cfg := DefaultTerrainConfig()
	cfg.Base = 2
	cfg.Water = 0
	return []SimOption{
		WithTerrain(cfg),
		WithFeature(Feature{Kind: FeatureLake, X: 100, Z: 0, Radius: 40, Height: 6}),
		WithUnit(1, class, 0, 0, 0),
		WithOrder(1, goal(200, 0)),
	}
}

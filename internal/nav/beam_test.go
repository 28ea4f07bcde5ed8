package nav

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

// plan runs a planner to completion.
func plan(t *testing.T, p *Planner, start, goal mgl64.Vec3, radius float64) (PlanStatus, []mgl64.Vec3) {
	t.Helper()
	p.Reset(start, goal, radius)
	for i := 0; i < 10000; i++ {
		if st := p.Step(); st != PlanContinue {
			return st, p.Chain()
		}
	}
	t.Fatal("planner did not finish within 10000 steps")
	return PlanContinue, nil
}

// detourGrid returns a grid with a radius-10 rock at (50,0) inflated for a
// unit of radius 2.
func detourGrid(cfg Config) (*OccupancyGrid, float64) {
	g := openGrid(cfg)
	unitRadius := 2.0
	stampEntities(g, flatTerrain(), []Entity{rock(7, 50, 0, 10)}, obstacleStamp{
		radius: unitRadius,
		margin: cfg.Grid.SafetyMargin,
		band:   cfg.Grid.VerticalBand,
	})
	return g, 10 + unitRadius + cfg.Grid.SafetyMargin
}

func TestBranchAngle_Ordering(t *testing.T) {
	cone := math.Pi
	div := 4
	want := []float64{0, math.Pi / 4, -math.Pi / 4, math.Pi / 2, -math.Pi / 2}
	for b, w := range want {
		if got := branchAngle(b, cone, div); math.Abs(got-w) > 1e-12 {
			t.Fatalf("branch %d: expected %.3f got %.3f", b, w, got)
		}
	}
}

func TestExplorationMemo_FailForgetsDeeper(t *testing.T) {
	m := NewExplorationMemo(5)
	if !m.enter(0) || !m.enter(1) || !m.enter(2) {
		t.Fatal("first visits should report true")
	}
	if m.enter(1) {
		t.Fatal("second visit of a depth should report false")
	}
	m.fail(2, 0)
	m.fail(1, 3)
	if m.Cursor(1) != 4 {
		t.Fatalf("expected cursor 4 at depth 1, got %d", m.Cursor(1))
	}
	if m.Cursor(2) != -1 {
		t.Fatal("failing a branch must forget deeper cursors")
	}
	if m.Failed() != 2 {
		t.Fatalf("expected 2 failed branches, got %d", m.Failed())
	}
	m.Reset()
	if m.Cursor(0) != -1 || m.Failed() != 0 {
		t.Fatal("Reset should forget everything")
	}
}

func TestPlanner_OpenFieldTwoPointChain(t *testing.T) {
	cfg := DefaultConfig()
	g := openGrid(cfg)
	start, goal := mgl64.Vec3{0, 0, 0}, mgl64.Vec3{100, 0, 0}

	st, chain := plan(t, NewPlanner(g, cfg.Planner), start, goal, 0)
	if st != PlanFound {
		t.Fatalf("expected found, got %s", st)
	}
	if chain[0] != start || chain[len(chain)-1] != goal {
		t.Fatalf("chain should run from start to goal, got %v", chain)
	}
	// Step is clamp(100/5, 10.5, 20) = 20.
	if len(chain) != 6 {
		t.Fatalf("expected 6 raw points on a straight line, got %d", len(chain))
	}

	short := NewShortcutter(g).Collapse(chain)
	if len(short) != 2 || short[0] != start || short[1] != goal {
		t.Fatalf("shortcut chain should be [start, goal], got %v", short)
	}
}

func TestPlanner_OpenFieldAnyDirection(t *testing.T) {
	cfg := DefaultConfig()
	for _, goal := range []mgl64.Vec3{{-230, 0, 40}, {15, 0, -310}, {600, 0, 600}, {-12, 0, 3}} {
		g := openGrid(cfg)
		st, chain := plan(t, NewPlanner(g, cfg.Planner), mgl64.Vec3{}, goal, 0)
		if st != PlanFound {
			t.Fatalf("goal %v: expected found, got %s", goal, st)
		}
		if short := NewShortcutter(g).Collapse(chain); len(short) != 2 {
			t.Fatalf("goal %v: expected two points after shortcut, got %d", goal, len(short))
		}
	}
}

func TestPlanner_DetoursAroundObstacle(t *testing.T) {
	cfg := DefaultConfig()
	g, inflated := detourGrid(cfg)
	center := mgl64.Vec3{50, 0, 0}
	start, goal := mgl64.Vec3{0, 0, 0}, mgl64.Vec3{100, 0, 0}

	st, chain := plan(t, NewPlanner(g, cfg.Planner), start, goal, 0)
	if st != PlanFound {
		t.Fatalf("expected found, got %s", st)
	}
	for i, p := range chain {
		if d := distXZ(p, center); d < inflated {
			t.Fatalf("waypoint %d %v lies %.2f from the rock, inside %.2f", i, p, d, inflated)
		}
	}
	short := NewShortcutter(g).Collapse(chain)
	if len(short) < 3 {
		t.Fatalf("a detour needs at least one intermediate point, got %v", short)
	}
	for i := 1; i < len(short); i++ {
		if !g.TestLine(short[i-1], short[i], 0, false) {
			t.Fatalf("segment %d of the shortcut chain crosses blocked cells", i)
		}
	}
}

func TestPlanner_Deterministic(t *testing.T) {
	cfg := DefaultConfig()
	g1, _ := detourGrid(cfg)
	g2, _ := detourGrid(cfg)
	start, goal := mgl64.Vec3{0, 0, 3}, mgl64.Vec3{140, 0, -6}

	_, a := plan(t, NewPlanner(g1, cfg.Planner), start, goal, 0)
	_, b := plan(t, NewPlanner(g2, cfg.Planner), start, goal, 0)
	if len(a) != len(b) {
		t.Fatalf("chains differ in length: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("chains differ at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestPlanner_ResumesAcrossSteps(t *testing.T) {
	cfg := DefaultConfig()
	start, goal := mgl64.Vec3{0, 0, 0}, mgl64.Vec3{100, 0, 0}

	g1, _ := detourGrid(cfg)
	_, whole := plan(t, NewPlanner(g1, cfg.Planner), start, goal, 0)

	small := cfg.Planner
	small.BudgetPerTick = 3
	g2, _ := detourGrid(cfg)
	p := NewPlanner(g2, small)
	st, sliced := plan(t, p, start, goal, 0)
	if st != PlanFound {
		t.Fatalf("expected found, got %s", st)
	}
	if p.Memo().Steps() < 2 {
		t.Fatal("a tiny budget should spread the search over several steps")
	}
	if len(whole) != len(sliced) {
		t.Fatalf("budget changed the result: %d vs %d points", len(whole), len(sliced))
	}
	for i := range whole {
		if whole[i] != sliced[i] {
			t.Fatalf("budget changed point %d: %v vs %v", i, whole[i], sliced[i])
		}
	}
}

func TestPlanner_GoalRadiusStopsShort(t *testing.T) {
	cfg := DefaultConfig()
	g := openGrid(cfg)
	goal := mgl64.Vec3{80, 0, 0}
	st, chain := plan(t, NewPlanner(g, cfg.Planner), mgl64.Vec3{}, goal, 8)
	if st != PlanFound {
		t.Fatalf("expected found, got %s", st)
	}
	end := chain[len(chain)-1]
	if d := distXZ(end, goal); math.Abs(d-8) > 1e-6 {
		t.Fatalf("chain should end 8 from the goal, ended %.3f away", d)
	}
}

func TestPlanner_OffMapGoalImpossible(t *testing.T) {
	cfg := DefaultConfig()
	g := openGrid(cfg)
	p := NewPlanner(g, cfg.Planner)
	st, chain := plan(t, p, mgl64.Vec3{}, mgl64.Vec3{5000, 0, 0}, 0)
	if st != PlanImpossible {
		t.Fatalf("expected impossible, got %s", st)
	}
	if chain != nil {
		t.Fatal("a failed search has no chain")
	}
	if !errors.Is(st.Err(), ErrImpossible) {
		t.Fatal("impossible status should map to ErrImpossible")
	}
	if p.Step() != PlanImpossible {
		t.Fatal("a finished planner should keep reporting its result")
	}
}

func TestPlanner_EnclosedGoalFails(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Grid.Extent = 400
	g := openGrid(cfg)
	goal := mgl64.Vec3{100, 0, 0}
	// A blocked ring around the goal.
	for a := 0.0; a < 2*math.Pi; a += 0.05 {
		g.MarkCircle(goal.Add(headingVec(a).Mul(30)), 4)
	}

	st, _ := plan(t, NewPlanner(g, cfg.Planner), mgl64.Vec3{-100, 0, 0}, goal, 0)
	if st != PlanImpossible && st != PlanIterationLimit {
		t.Fatalf("expected impossible or iteration limit, got %s", st)
	}
	if st.Err() == nil {
		t.Fatal("a terminal failure must carry an error")
	}
}

func TestPlanner_DepthLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Planner.MaxDepth = 3
	g := openGrid(cfg)
	st, _ := plan(t, NewPlanner(g, cfg.Planner), mgl64.Vec3{}, mgl64.Vec3{300, 0, 0}, 0)
	if st != PlanIterationLimit {
		t.Fatalf("expected iteration limit, got %s", st)
	}
	if !errors.Is(st.Err(), ErrIterationLimit) {
		t.Fatal("iteration limit should map to ErrIterationLimit")
	}
}

func TestPlanner_ChainNeverExceedsMaxDepth(t *testing.T) {
	cfg := DefaultConfig()
	g := openGrid(cfg)
	goal := mgl64.Vec3{100, 0, 0} // five steps of 20

	cfg.Planner.MaxDepth = 6
	st, chain := plan(t, NewPlanner(g, cfg.Planner), mgl64.Vec3{}, goal, 0)
	if st != PlanFound || len(chain) != 6 {
		t.Fatalf("expected a 6-point chain, got %s with %d points", st, len(chain))
	}

	cfg.Planner.MaxDepth = 5
	st, chain = plan(t, NewPlanner(g, cfg.Planner), mgl64.Vec3{}, goal, 0)
	if st != PlanIterationLimit {
		t.Fatalf("a route needing 6 points must hit the limit at 5, got %s with %d points", st, len(chain))
	}
	if chain != nil {
		t.Fatalf("no chain after a failed search, got %v", chain)
	}
}

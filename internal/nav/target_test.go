package nav

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func near(a, b mgl64.Vec3, tol float64) bool {
	return a.Sub(b).Len() <= tol
}

func TestResolver_PlainPoint(t *testing.T) {
	w := &testWorld{}
	r := NewResolver(DefaultConfig().Target, w)
	goal := mgl64.Vec3{30, 0, 40}
	a, err := r.Resolve(1, ClassWheeled, mgl64.Vec3{}, Request{Goal: goal}, true)
	if err != nil {
		t.Fatal(err)
	}
	if a.Point != goal || a.Target != 0 || a.Face || a.StandOff != 0 {
		t.Fatalf("a bare point should resolve to itself, got %+v", a)
	}
}

func TestResolver_InvalidTarget(t *testing.T) {
	w := &testWorld{}
	r := NewResolver(DefaultConfig().Target, w)
	if _, err := r.Resolve(1, ClassWheeled, mgl64.Vec3{}, Request{Target: 42}, true); !errors.Is(err, ErrInvalidTarget) {
		t.Fatalf("expected ErrInvalidTarget, got %v", err)
	}

	carried := rock(42, 10, 0, 1)
	carried.Transported = true
	w.add(carried)
	if _, err := r.Resolve(1, ClassWheeled, mgl64.Vec3{}, Request{Target: 42}, true); !errors.Is(err, ErrInvalidTarget) {
		t.Fatalf("a carried entity is not a valid target, got %v", err)
	}
}

func TestResolver_CargoIsOmnidirectional(t *testing.T) {
	cfg := DefaultConfig().Target
	w := &testWorld{}
	cargo := rock(5, 40, 0, 1)
	cargo.Kind = KindCargo
	w.add(cargo)
	r := NewResolver(cfg, w)

	a, err := r.Resolve(1, ClassWheeled, mgl64.Vec3{}, Request{Target: 5}, true)
	if err != nil {
		t.Fatal(err)
	}
	if !a.Omnidirectional || a.Point != cargo.Position {
		t.Fatalf("planned cargo approach should aim at the cargo with a radius, got %+v", a)
	}
	if a.StandOff != cfg.TakeDistance+cfg.ApproachExtra {
		t.Fatalf("expected stand-off %.1f, got %.1f", cfg.TakeDistance+cfg.ApproachExtra, a.StandOff)
	}
	if !a.Face || a.Facing != cargo.Position {
		t.Fatal("the unit should face the cargo on arrival")
	}

	// Direct approach stops the take distance short, on the unit's side.
	a, _ = r.Resolve(1, ClassWheeled, mgl64.Vec3{}, Request{Target: 5}, false)
	if !near(a.Point, mgl64.Vec3{40 - cfg.TakeDistance, 0, 0}, 1e-9) {
		t.Fatalf("direct cargo approach should stop short, got %v", a.Point)
	}
}

func TestResolver_BaseStandOff(t *testing.T) {
	cfg := DefaultConfig().Target
	w := &testWorld{}
	base := rock(9, 0, 200, 20)
	base.Kind = KindBase
	w.add(base)
	a, err := NewResolver(cfg, w).Resolve(1, ClassTracked, mgl64.Vec3{}, Request{Target: 9}, true)
	if err != nil {
		t.Fatal(err)
	}
	if a.StandOff != cfg.BaseStandOff {
		t.Fatalf("bases use the base stand-off, got %.1f", a.StandOff)
	}
}

func TestResolver_InstallationServicePoint(t *testing.T) {
	w := &testWorld{}
	factory := Entity{ID: 3, Kind: KindInstallation, Installation: InstallFactory, Position: mgl64.Vec3{0, 0, 0}, Detectable: true}
	w.add(factory)
	r := NewResolver(DefaultConfig().Target, w)

	a, err := r.Resolve(1, ClassWheeled, mgl64.Vec3{-50, 0, 0}, Request{Target: 3}, true)
	if err != nil {
		t.Fatal(err)
	}
	// offset 4 + take 6 + stand-off 4 + supplement 6 along the local X axis.
	if !near(a.Point, mgl64.Vec3{20, 0, 0}, 1e-9) {
		t.Fatalf("expected the service point at (20,0,0), got %v", a.Point)
	}
	if a.FinalMove != 10 {
		t.Fatalf("expected a final move of 10, got %.2f", a.FinalMove)
	}
	if a.Omnidirectional {
		t.Fatal("installations are approached from their service side")
	}
}

func TestResolver_ServicePointFollowsHeading(t *testing.T) {
	w := &testWorld{}
	w.add(Entity{ID: 3, Kind: KindInstallation, Installation: InstallStation, Position: mgl64.Vec3{100, 0, 100}, Heading: math.Pi / 2})
	a, err := NewResolver(DefaultConfig().Target, w).Resolve(1, ClassWheeled, mgl64.Vec3{}, Request{Target: 3}, true)
	if err != nil {
		t.Fatal(err)
	}
	// Station: offset 4 + stand-off 4, no take distance, rotated onto +Z.
	if !near(a.Point, mgl64.Vec3{100, 0, 108}, 1e-9) {
		t.Fatalf("expected (100,0,108), got %v", a.Point)
	}
}

func TestResolver_VehiclePowerSlot(t *testing.T) {
	cfg := DefaultConfig().Target
	w := &testWorld{}
	w.add(Entity{ID: 4, Kind: KindVehicle, Position: mgl64.Vec3{0, 0, 0}})
	a, err := NewResolver(cfg, w).Resolve(1, ClassWheeled, mgl64.Vec3{50, 0, 0}, Request{Target: 4}, true)
	if err != nil {
		t.Fatal(err)
	}
	x := powerSlotOffset - (cfg.TakeDistance + cfg.TakeOther + cfg.CargoStandOff)
	if !near(a.Point, mgl64.Vec3{x, 0, 0}, 1e-9) {
		t.Fatalf("expected the point behind the power slot at x=%.1f, got %v", x, a.Point)
	}
}

func TestResolver_LandingPadFlyersOnly(t *testing.T) {
	w := &testWorld{}
	w.add(Entity{ID: 6, Kind: KindInstallation, Installation: InstallLandingPad, Position: mgl64.Vec3{60, 0, 0}})
	r := NewResolver(DefaultConfig().Target, w)

	ground, _ := r.Resolve(1, ClassWheeled, mgl64.Vec3{}, Request{Target: 6}, true)
	if ground.Point != (mgl64.Vec3{60, 0, 0}) {
		t.Fatalf("ground units aim at the pad itself, got %v", ground.Point)
	}
	air, _ := r.Resolve(1, ClassFlyer, mgl64.Vec3{}, Request{Target: 6}, true)
	if air.Point == ground.Point {
		t.Fatal("flyers should use the pad's service point")
	}
}

func TestResolver_GoalNearEntityPicksIt(t *testing.T) {
	w := &testWorld{}
	w.add(rock(7, 100, 0, 2))
	cargo := rock(8, 100.4, 0, 1)
	cargo.Kind = KindCargo
	w.add(cargo)
	a, err := NewResolver(DefaultConfig().Target, w).Resolve(1, ClassWheeled, mgl64.Vec3{}, Request{Goal: mgl64.Vec3{100.5, 0, 0}}, true)
	if err != nil {
		t.Fatal(err)
	}
	if a.Target != 8 {
		t.Fatalf("expected the nearest entity 8, got %d", a.Target)
	}
}

func TestResolver_CheckBusy(t *testing.T) {
	r := NewResolver(DefaultConfig().Target, &testWorld{})
	blocked := func(mgl64.Vec3) bool { return true }
	if err := r.CheckBusy(Approach{Point: mgl64.Vec3{1, 0, 1}}, blocked); !errors.Is(err, ErrBusy) {
		t.Fatalf("an occupied approach point is busy, got %v", err)
	}
	if err := r.CheckBusy(Approach{Omnidirectional: true}, blocked); err != nil {
		t.Fatalf("omnidirectional approaches are never busy, got %v", err)
	}
}
